package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/iliyamo/bike-sales-counter/internal/config"
	"github.com/iliyamo/bike-sales-counter/internal/database"
	"github.com/iliyamo/bike-sales-counter/internal/handler"
	"github.com/iliyamo/bike-sales-counter/internal/logger"
	"github.com/iliyamo/bike-sales-counter/internal/metrics"
	"github.com/iliyamo/bike-sales-counter/internal/queue"
	"github.com/iliyamo/bike-sales-counter/internal/repository"
	"github.com/iliyamo/bike-sales-counter/internal/router"
	"github.com/iliyamo/bike-sales-counter/internal/service"
	"github.com/iliyamo/bike-sales-counter/internal/telemetry"
)

func main() {
	cfg, err := config.Load()
	log := logger.New(cfg.Env)
	defer func() { _ = log.Sync() }()
	if err != nil {
		log.Fatal("config", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.SetupTracing(ctx, cfg.Telemetry)
	if err != nil {
		log.Fatal("tracing", zap.Error(err))
	}

	db, err := database.Open(cfg.DB)
	if err != nil {
		log.Fatal("database", zap.Error(err))
	}
	defer db.Close()
	if cfg.DB.Migrate {
		if err := database.Migrate(db, log); err != nil {
			log.Fatal("migrate", zap.Error(err))
		}
	}

	rdb := config.NewRedisClient(cfg.Redis)
	if rdb == nil {
		log.Warn("redis unavailable: rate limit, response cache and snapshot mirror disabled")
	} else {
		defer rdb.Close()
	}

	publisher, err := queue.NewPublisher(cfg.Events, log)
	if err != nil {
		log.Fatal("events", zap.Error(err))
	}
	defer publisher.Close()
	if cfg.Events.AuditConsumer && cfg.Events.Broker == config.BrokerRabbitMQ {
		go queue.AuditConsumer{URL: cfg.Events.AMQPURL, Queue: cfg.Events.Topic, LogPath: cfg.Events.AuditLogPath, Log: log}.Start(ctx)
	}

	m := metrics.New(prometheus.DefaultRegisterer)

	components := repository.NewComponentRepo(db)
	customers := repository.NewCustomerRepo(db)
	orders := repository.NewOrderRepo(db)

	cache := service.NewCatalogCache(components, cfg.Catalog, rdb, log, m)
	catalog := service.NewCatalog(components, repository.NewBrandRepo(db), cache, log)
	directory := service.NewDirectory(db, repository.NewAddressRepo(db), customers, log)
	ledger := service.NewLedger(db, orders, components, customers, directory, publisher, m, log)
	lifecycle := service.NewLifecycle(db, orders, components, cache, publisher, m, log)
	accounts := service.NewAccounts(repository.NewStaffRepo(db), repository.NewTokenRepo(db),
		cfg.JWTSecret, cfg.AccessTTLMin, cfg.RefreshTTLDays, log)

	cache.Start(ctx)

	e := router.New(cfg, db, rdb, log, m, router.Handlers{
		Auth:      handler.NewAuthHandler(accounts, log),
		Catalog:   handler.NewCatalogHandler(catalog, cache, log),
		Orders:    handler.NewOrderHandler(ledger, lifecycle, log),
		Customers: handler.NewCustomerHandler(directory, log),
	})

	go func() {
		addr := ":" + cfg.Port
		log.Info("listening", zap.String("addr", addr), zap.String("env", cfg.Env), zap.String("db", cfg.DB.Driver))
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")
	sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(sctx); err != nil {
		log.Error("http shutdown", zap.Error(err))
	}
	if err := shutdownTracing(sctx); err != nil {
		log.Error("tracing shutdown", zap.Error(err))
	}
}
