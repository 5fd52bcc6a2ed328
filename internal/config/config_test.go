package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Setenv("APP_ENV", "test")
	t.Setenv("APP_PORT", "8080")
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("DB_DRIVER", "sqlite3")
	t.Setenv("DB_NAME", "shop.db")
}

func TestLoadDefaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "sqlite3", cfg.DB.Driver)
	assert.Equal(t, 15*time.Second, cfg.DB.ConnectTimeout)
	assert.Equal(t, 15, cfg.AccessTTLMin)
	assert.Equal(t, 30*time.Second, cfg.Catalog.Staleness)
	assert.Equal(t, 15*time.Second, cfg.Catalog.RefreshInterval)
	assert.Equal(t, BrokerNone, cfg.Events.Broker)
	assert.Empty(t, cfg.Telemetry.Endpoint)
}

func TestLoadReportsAllMissing(t *testing.T) {
	setRequired(t)
	t.Setenv("DB_DRIVER", "mysql")
	t.Setenv("JWT_SECRET", "")

	_, err := Load()
	require.Error(t, err)
	for _, k := range []string{"JWT_SECRET", "DB_USER", "DB_HOST", "DB_PORT"} {
		assert.Contains(t, err.Error(), k)
	}
}

func TestLoadRejectsUnknownDriver(t *testing.T) {
	setRequired(t)
	t.Setenv("DB_DRIVER", "oracle")

	_, err := Load()
	assert.ErrorContains(t, err, "unsupported DB_DRIVER")
}

func TestCatalogConfigClampsInterval(t *testing.T) {
	t.Setenv("CATALOG_STALENESS", "10s")
	t.Setenv("CATALOG_REFRESH_INTERVAL", "1m")

	c := LoadCatalogConfig()
	assert.Equal(t, 10*time.Second, c.Staleness)
	assert.Equal(t, 5*time.Second, c.RefreshInterval)
}

func TestRateLimitConfigFloors(t *testing.T) {
	t.Setenv("RATE_LIMIT_CAPACITY", "0")
	t.Setenv("RATE_LIMIT_REFILL_INTERVAL", "2s")
	t.Setenv("RATE_LIMIT_TTL", "1s")

	c := LoadRateLimitConfig()
	assert.Equal(t, 1, c.Capacity)
	assert.Equal(t, 10*time.Second, c.TTL)
}

func TestEnvList(t *testing.T) {
	t.Setenv("KAFKA_BROKERS", " a:9092, ,b:9092 ")
	assert.Equal(t, []string{"a:9092", "b:9092"}, envList("KAFKA_BROKERS", ""))
}
