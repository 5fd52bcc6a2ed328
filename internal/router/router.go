// Package router wires handlers and middleware onto an echo instance.
package router

import (
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/iliyamo/bike-sales-counter/internal/config"
	"github.com/iliyamo/bike-sales-counter/internal/handler"
	"github.com/iliyamo/bike-sales-counter/internal/metrics"
	"github.com/iliyamo/bike-sales-counter/internal/middleware"
	"github.com/iliyamo/bike-sales-counter/internal/model"
)

// Handlers bundles every route handler the API exposes.
type Handlers struct {
	Auth      *handler.AuthHandler
	Catalog   *handler.CatalogHandler
	Orders    *handler.OrderHandler
	Customers *handler.CustomerHandler
}

// Use installs the middleware every request passes through. The request id
// is set first so the request log can carry it.
func Use(e *echo.Echo, cfg config.Config, rdb *redis.Client, log *zap.Logger, m *metrics.Metrics) {
	e.Validator = handler.NewValidator()
	e.HTTPErrorHandler = handler.HTTPErrorHandler(log)
	e.HideBanner = true
	e.Use(echomw.RequestIDWithConfig(echomw.RequestIDConfig{Generator: uuid.NewString}))
	e.Use(middleware.RequestLog(log, m))
	e.Use(echomw.Recover())
	e.Use(echomw.CORS())
	e.Use(middleware.NewTokenBucket(cfg.RateLimit, rdb, log))
}

// RegisterRoutes registers the unauthenticated operational endpoints.
func RegisterRoutes(e *echo.Echo, db *sqlx.DB) {
	e.GET("/healthz", handler.Health)
	e.GET("/readyz", handler.Ready(db))
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
}

// RegisterAuth registers staff login and token endpoints. /v1/me needs a
// valid access token.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, jwtSecret string) {
	g := e.Group("/v1/auth")
	g.POST("/login", a.Login)
	g.POST("/refresh", a.Refresh)
	g.POST("/logout", a.Logout)

	me := e.Group("/v1", middleware.JWTAuth(jwtSecret), middleware.RequireRole(model.RoleStaff))
	me.GET("/me", a.Me)
}

// RegisterPublic registers what a shopper at the counter can do. Catalog
// reads go through the response cache.
func RegisterPublic(e *echo.Echo, h Handlers, cache echo.MiddlewareFunc) {
	e.GET("/v1/components", h.Catalog.List, cache)
	e.GET("/v1/components/:brand/:serial", h.Catalog.Get, cache)
	e.GET("/v1/brands", h.Catalog.Brands, cache)
	e.POST("/v1/quote", h.Catalog.Quote)

	e.POST("/v1/orders", h.Orders.Place)
	e.POST("/v1/orders/lookup", h.Orders.Lookup)
	e.GET("/v1/orders/:number", h.Orders.Get)
}

// RegisterStaff registers the back office endpoints behind JWT and the
// STAFF role.
func RegisterStaff(e *echo.Echo, h Handlers, jwtSecret string) {
	g := e.Group("/v1/staff", middleware.JWTAuth(jwtSecret), middleware.RequireRole(model.RoleStaff))

	g.GET("/orders", h.Orders.List)
	g.POST("/orders/:number/progress", h.Orders.Progress)
	g.GET("/orders/:number/missing", h.Orders.Missing)
	g.PATCH("/orders/:number/bike-name", h.Orders.Rename)
	g.DELETE("/orders/:number", h.Orders.Delete)

	g.POST("/components", h.Catalog.AddComponent)
	g.PATCH("/components/:brand/:serial/quantity", h.Catalog.UpdateQuantity)
	g.DELETE("/components/:brand/:serial", h.Catalog.DeleteComponent)
	g.POST("/brands", h.Catalog.AddBrand)
	g.POST("/catalog/refresh", h.Catalog.Refresh)

	g.GET("/customers", h.Customers.List)
	g.PUT("/customers/:id", h.Customers.Update)
	g.PUT("/customers/:id/address", h.Customers.UpdateAddress)
}

// New builds a fully wired echo instance.
func New(cfg config.Config, db *sqlx.DB, rdb *redis.Client, log *zap.Logger, m *metrics.Metrics, h Handlers) *echo.Echo {
	e := echo.New()
	Use(e, cfg, rdb, log, m)
	RegisterRoutes(e, db)
	RegisterAuth(e, h.Auth, cfg.JWTSecret)
	RegisterPublic(e, h, middleware.NewRedisCache(cfg.Cache, rdb, log))
	RegisterStaff(e, h, cfg.JWTSecret)
	return e
}
