package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
)

// MySQL server error numbers.
const (
	mysqlDupEntry        = 1062
	mysqlRowIsReferenced = 1451
	mysqlNoReferencedRow = 1452
	mysqlCheckViolated   = 3819
)

// classify maps driver specific constraint failures onto the package
// sentinels. The driver error stays in the chain for logging.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var target error
	var me *mysql.MySQLError
	var pe *pq.Error
	var se sqlite3.Error
	switch {
	case errors.As(err, &me):
		switch me.Number {
		case mysqlDupEntry:
			target = ErrDuplicate
		case mysqlRowIsReferenced, mysqlNoReferencedRow:
			target = ErrForeignKey
		case mysqlCheckViolated:
			target = ErrCheck
		}
	case errors.As(err, &pe):
		switch pe.Code {
		case "23505":
			target = ErrDuplicate
		case "23503":
			target = ErrForeignKey
		case "23514":
			target = ErrCheck
		}
	case errors.As(err, &se):
		switch se.ExtendedCode {
		case sqlite3.ErrConstraintUnique, sqlite3.ErrConstraintPrimaryKey:
			target = ErrDuplicate
		case sqlite3.ErrConstraintForeignKey:
			target = ErrForeignKey
		case sqlite3.ErrConstraintCheck:
			target = ErrCheck
		}
	}
	if target == nil {
		return err
	}
	return fmt.Errorf("%w: %v", target, err)
}

// notFound turns sql.ErrNoRows into ErrNotFound.
func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

// insertID runs an INSERT and returns the generated key. Postgres has no
// LastInsertId so the key is read back with RETURNING.
func insertID(ctx context.Context, x sqlx.ExtContext, query, idColumn string, args ...interface{}) (int64, error) {
	if x.DriverName() == "postgres" {
		var id int64
		err := x.QueryRowxContext(ctx, x.Rebind(query+" RETURNING "+idColumn), args...).Scan(&id)
		return id, classify(err)
	}
	res, err := x.ExecContext(ctx, x.Rebind(query), args...)
	if err != nil {
		return 0, classify(err)
	}
	return res.LastInsertId()
}

// forUpdate returns the row lock suffix for the driver. SQLite has no row
// locks; connections open their transactions with BEGIN IMMEDIATE instead.
func forUpdate(x sqlx.ExtContext) string {
	if x.DriverName() == "sqlite3" {
		return ""
	}
	return " FOR UPDATE"
}

// exec rebinds and executes a statement, returning the affected row count.
func exec(ctx context.Context, x sqlx.ExtContext, query string, args ...interface{}) (int64, error) {
	res, err := x.ExecContext(ctx, x.Rebind(query), args...)
	if err != nil {
		return 0, classify(err)
	}
	return res.RowsAffected()
}
