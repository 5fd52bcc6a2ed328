package database

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/bike-sales-counter/internal/config"
)

func TestDSN(t *testing.T) {
	dsn, err := DSN(config.DBConfig{Driver: "mysql", User: "shop", Pass: "pw", Host: "db", Port: "3306", Name: "bikes", ConnectTimeout: 3 * time.Second})
	require.NoError(t, err)
	assert.Equal(t, "shop:pw@tcp(db:3306)/bikes?charset=utf8mb4&parseTime=true&loc=UTC&timeout=3s", dsn)

	dsn, err = DSN(config.DBConfig{Driver: "postgres", User: "shop", Pass: "pw", Host: "db", Port: "5432", Name: "bikes"})
	require.NoError(t, err)
	assert.Equal(t, "postgres://shop:pw@db:5432/bikes?connect_timeout=15&sslmode=disable", dsn)

	dsn, err = DSN(config.DBConfig{Driver: "sqlite3", Name: "/tmp/shop.db"})
	require.NoError(t, err)
	assert.Contains(t, dsn, "_foreign_keys=on")
	assert.Contains(t, dsn, "_txlock=immediate")

	_, err = DSN(config.DBConfig{Driver: "oracle"})
	assert.Error(t, err)
}
