package config // package config loads application configuration from the environment and an optional .env file

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all runtime configuration values. Sub-configs live next to
// the middleware or subsystem that consumes them.
type Config struct {
	Env            string // application environment (dev, test, prod)
	Port           string // HTTP port to listen on
	DB             DBConfig
	JWTSecret      string // secret used to sign staff access tokens
	AccessTTLMin   int    // access token time-to-live in minutes
	RefreshTTLDays int    // refresh token time-to-live in days
	Catalog        CatalogConfig
	Cache          CacheConfig
	RateLimit      RateLimitConfig
	Redis          RedisConfig
	Events         EventsConfig
	Telemetry      TelemetryConfig
}

// DBConfig selects and addresses the relational store.
type DBConfig struct {
	Driver         string        // mysql, postgres or sqlite3
	User           string        // database username
	Pass           string        // database password (optional)
	Host           string        // database host address
	Port           string        // database port number
	Name           string        // database name, or file path for sqlite3
	ConnectTimeout time.Duration // bound on the startup ping
	MaxOpenConns   int
	Migrate        bool // apply embedded migrations on startup
}

// Load reads .env (if present) and the environment. Every missing required
// variable is reported in the returned error.
func Load() (Config, error) {
	_ = godotenv.Load() // a missing .env file is fine

	var missing []string
	must := func(key string) string {
		v, ok := os.LookupEnv(key)
		if !ok || v == "" {
			missing = append(missing, key)
		}
		return v
	}

	cfg := Config{
		Env:            must("APP_ENV"),
		Port:           must("APP_PORT"),
		JWTSecret:      must("JWT_SECRET"),
		AccessTTLMin:   envInt("ACCESS_TOKEN_TTL_MIN", 15),
		RefreshTTLDays: envInt("REFRESH_TOKEN_TTL_DAYS", 7),
		DB: DBConfig{
			Driver:         strings.ToLower(must("DB_DRIVER")),
			Name:           must("DB_NAME"),
			User:           os.Getenv("DB_USER"),
			Pass:           os.Getenv("DB_PASS"),
			Host:           os.Getenv("DB_HOST"),
			Port:           os.Getenv("DB_PORT"),
			ConnectTimeout: envDur("DB_CONNECT_TIMEOUT", 15*time.Second),
			MaxOpenConns:   envInt("DB_MAX_OPEN_CONNS", 25),
			Migrate:        envBool("DB_MIGRATE", true),
		},
		Catalog:   LoadCatalogConfig(),
		Cache:     LoadCacheConfig(),
		RateLimit: LoadRateLimitConfig(),
		Redis:     LoadRedisConfig(),
		Events:    LoadEventsConfig(),
		Telemetry: LoadTelemetryConfig(),
	}

	switch cfg.DB.Driver {
	case "mysql", "postgres":
		must("DB_USER")
		must("DB_HOST")
		must("DB_PORT")
	case "sqlite3", "":
	default:
		return cfg, fmt.Errorf("unsupported DB_DRIVER %q", cfg.DB.Driver)
	}

	if len(missing) > 0 {
		return cfg, fmt.Errorf("missing required env vars: %s", strings.Join(missing, ", "))
	}
	return cfg, nil
}
