// Package testutil provides a migrated SQLite store and catalog fixtures for
// package tests.
package testutil

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/bike-sales-counter/internal/config"
	"github.com/iliyamo/bike-sales-counter/internal/database"
)

// NewDB opens a fresh SQLite file under t.TempDir and applies the
// migrations. The connection is closed when the test ends.
func NewDB(t testing.TB) *sqlx.DB {
	t.Helper()
	db, err := database.Open(config.DBConfig{
		Driver:         "sqlite3",
		Name:           filepath.Join(t.TempDir(), "bikeshop.db"),
		ConnectTimeout: 5 * time.Second,
		MaxOpenConns:   4,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, database.Migrate(db, nil))
	return db
}

// Fixture is a small catalog: one brand with a frame set, a handlebar and a
// wheel, each stocked with Stock units.
type Fixture struct {
	BrandID   int64
	BrandName string
	FrameSet  int64 // serial
	Handlebar int64 // serial
	Wheel     int64 // serial
}

// Stock is the quantity every fixture component starts with.
const Stock = 10

// Seed inserts the fixture catalog.
func Seed(t testing.TB, db *sqlx.DB) Fixture {
	t.Helper()
	f := Fixture{BrandName: "RALEIGH", FrameSet: 1001, Handlebar: 2001, Wheel: 3001}
	f.BrandID = Brand(t, db, f.BrandName)

	mustExec(t, db, "INSERT INTO components (brand_id, serial, price, name, quantity) VALUES (?, ?, ?, ?, ?)",
		f.BrandID, f.FrameSet, 25000, "CARBON PRO", Stock)
	mustExec(t, db, "INSERT INTO frame_sets (brand_id, serial, shocks, size, gears) VALUES (?, ?, ?, ?, ?)",
		f.BrandID, f.FrameSet, true, 54, 21)

	mustExec(t, db, "INSERT INTO components (brand_id, serial, price, name, quantity) VALUES (?, ?, ?, ?, ?)",
		f.BrandID, f.Handlebar, 4000, "AERO", Stock)
	mustExec(t, db, "INSERT INTO handlebars (brand_id, serial, style) VALUES (?, ?, ?)",
		f.BrandID, f.Handlebar, "DROPPED")

	mustExec(t, db, "INSERT INTO components (brand_id, serial, price, name, quantity) VALUES (?, ?, ?, ?, ?)",
		f.BrandID, f.Wheel, 3500, "SPEED", Stock)
	mustExec(t, db, "INSERT INTO wheels (brand_id, serial, diameter, style, brakes) VALUES (?, ?, ?, ?, ?)",
		f.BrandID, f.Wheel, 700, "ROAD", "DISK")
	return f
}

// Brand inserts a brand and returns its id.
func Brand(t testing.TB, db *sqlx.DB, name string) int64 {
	t.Helper()
	res, err := db.Exec(db.Rebind("INSERT INTO brands (brand_name) VALUES (?)"), name)
	require.NoError(t, err)
	id, err := res.LastInsertId()
	require.NoError(t, err)
	return id
}

// SetStock overwrites a component quantity.
func SetStock(t testing.TB, db *sqlx.DB, brandID, serial, qty int64) {
	t.Helper()
	mustExec(t, db, "UPDATE components SET quantity = ? WHERE brand_id = ? AND serial = ?", qty, brandID, serial)
}

// StockOf reads a component quantity.
func StockOf(t testing.TB, db *sqlx.DB, brandID, serial int64) int64 {
	t.Helper()
	var q int64
	require.NoError(t, db.Get(&q, db.Rebind("SELECT quantity FROM components WHERE brand_id = ? AND serial = ?"),
		brandID, serial))
	return q
}

// Count returns SELECT COUNT(*) FROM table WHERE where.
func Count(t testing.TB, db *sqlx.DB, table, where string, args ...interface{}) int {
	t.Helper()
	var n int
	require.NoError(t, db.Get(&n, db.Rebind("SELECT COUNT(*) FROM "+table+" WHERE "+where), args...))
	return n
}

func mustExec(t testing.TB, db *sqlx.DB, query string, args ...interface{}) {
	t.Helper()
	_, err := db.Exec(db.Rebind(query), args...)
	require.NoError(t, err)
}
