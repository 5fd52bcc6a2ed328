package repository

import (
	"database/sql"
	"errors"
	"fmt"
	"testing"

	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want error
	}{
		{"mysql duplicate", &mysql.MySQLError{Number: 1062}, ErrDuplicate},
		{"mysql missing parent", &mysql.MySQLError{Number: 1452}, ErrForeignKey},
		{"mysql referenced row", &mysql.MySQLError{Number: 1451}, ErrForeignKey},
		{"mysql check", &mysql.MySQLError{Number: 3819}, ErrCheck},
		{"postgres unique", &pq.Error{Code: "23505"}, ErrDuplicate},
		{"postgres fk", &pq.Error{Code: "23503"}, ErrForeignKey},
		{"postgres check", &pq.Error{Code: "23514"}, ErrCheck},
		{"sqlite unique", sqlite3.Error{Code: sqlite3.ErrConstraint, ExtendedCode: sqlite3.ErrConstraintUnique}, ErrDuplicate},
		{"sqlite pk", sqlite3.Error{Code: sqlite3.ErrConstraint, ExtendedCode: sqlite3.ErrConstraintPrimaryKey}, ErrDuplicate},
		{"sqlite fk", sqlite3.Error{Code: sqlite3.ErrConstraint, ExtendedCode: sqlite3.ErrConstraintForeignKey}, ErrForeignKey},
		{"wrapped", fmt.Errorf("insert: %w", &mysql.MySQLError{Number: 1062}), ErrDuplicate},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.ErrorIs(t, classify(tc.err), tc.want)
		})
	}
}

func TestClassifyPassesThroughOtherErrors(t *testing.T) {
	other := errors.New("boom")
	assert.Same(t, other, classify(other))
	assert.Nil(t, classify(nil))

	unrelated := &mysql.MySQLError{Number: 1205}
	assert.Equal(t, error(unrelated), classify(unrelated))
}

func TestNotFound(t *testing.T) {
	assert.ErrorIs(t, notFound(sql.ErrNoRows), ErrNotFound)
	assert.NoError(t, notFound(nil))
}
