package database

import (
	"embed"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/pressly/goose/v3"
	"go.uber.org/zap"
)

//go:embed migrations/*/*.sql
var migrations embed.FS

// gooseLogger routes goose output through zap.
type gooseLogger struct{ s *zap.SugaredLogger }

func (l gooseLogger) Printf(format string, v ...interface{}) { l.s.Infof(format, v...) }
func (l gooseLogger) Fatalf(format string, v ...interface{}) { l.s.Fatalf(format, v...) }

// Migrate applies the embedded migrations for the connection's dialect.
func Migrate(db *sqlx.DB, log *zap.Logger) error {
	dialect := db.DriverName()
	goose.SetBaseFS(migrations)
	if log != nil {
		goose.SetLogger(gooseLogger{s: log.Sugar()})
	} else {
		goose.SetLogger(goose.NopLogger())
	}
	if err := goose.SetDialect(dialect); err != nil {
		return fmt.Errorf("goose dialect: %w", err)
	}
	if err := goose.Up(db.DB, "migrations/"+dialect); err != nil {
		return fmt.Errorf("migrate %s: %w", dialect, err)
	}
	return nil
}
