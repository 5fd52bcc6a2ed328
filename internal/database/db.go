package database

import (
	"context"
	"fmt"
	"net/url"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"github.com/iliyamo/bike-sales-counter/internal/config"
)

// DSN builds the driver specific connection string for cfg.
func DSN(cfg config.DBConfig) (string, error) {
	timeout := cfg.ConnectTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	switch cfg.Driver {
	case "mysql":
		auth := cfg.User
		if cfg.Pass != "" {
			auth = fmt.Sprintf("%s:%s", cfg.User, cfg.Pass)
		}
		// parseTime=true -> DATETIME -> time.Time | loc=UTC keeps times consistent
		return fmt.Sprintf("%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=true&loc=UTC&timeout=%s",
			auth, cfg.Host, cfg.Port, cfg.Name, timeout), nil
	case "postgres":
		u := url.URL{
			Scheme: "postgres",
			User:   url.UserPassword(cfg.User, cfg.Pass),
			Host:   cfg.Host + ":" + cfg.Port,
			Path:   "/" + cfg.Name,
		}
		q := u.Query()
		q.Set("sslmode", "disable")
		q.Set("connect_timeout", fmt.Sprint(int(timeout.Seconds())))
		u.RawQuery = q.Encode()
		return u.String(), nil
	case "sqlite3", "":
		// immediate transactions take the write lock up front so concurrent
		// writers queue on busy_timeout instead of failing mid-transaction
		return fmt.Sprintf("file:%s?_busy_timeout=5000&_txlock=immediate&_foreign_keys=on&_journal_mode=WAL", cfg.Name), nil
	}
	return "", fmt.Errorf("unsupported driver %q", cfg.Driver)
}

// Open connects to the configured store and verifies the connection within
// cfg.ConnectTimeout.
func Open(cfg config.DBConfig) (*sqlx.DB, error) {
	dsn, err := DSN(cfg)
	if err != nil {
		return nil, err
	}
	driver := cfg.Driver
	if driver == "" {
		driver = "sqlite3"
	}
	db, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, err
	}

	// Pool settings
	maxOpen := cfg.MaxOpenConns
	if maxOpen <= 0 {
		maxOpen = 25
	}
	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(maxOpen)
	db.SetConnMaxLifetime(30 * time.Minute)

	timeout := cfg.ConnectTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s: %w", driver, err)
	}
	return db, nil
}
