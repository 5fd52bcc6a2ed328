package middleware

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/bike-sales-counter/internal/utils"
)

// Context keys set by JWTAuth.
const (
	KeyStaffID  = "staff_id"
	KeyUsername = "username"
	KeyRole     = "role"
)

// JWTAuth validates a Bearer access token signed with secret and stores the
// staff id, username and role in the echo context.
func JWTAuth(secret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			auth := c.Request().Header.Get(echo.HeaderAuthorization)
			if !strings.HasPrefix(auth, "Bearer ") {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing bearer token"})
			}
			claims, err := utils.ParseAccessToken(secret, strings.TrimPrefix(auth, "Bearer "))
			if err != nil {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid token"})
			}
			id, err := claims.StaffID()
			if err != nil {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid claims"})
			}

			c.Set(KeyStaffID, id)
			c.Set(KeyUsername, claims.Username)
			c.Set(KeyRole, claims.Role)
			return next(c)
		}
	}
}
