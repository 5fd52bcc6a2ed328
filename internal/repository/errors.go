// Package repository holds the sqlx backed stores for the catalog, the
// customer directory, the order ledger and staff accounts.
//
// Every store speaks the same SQL to MySQL, Postgres and SQLite: queries are
// written with '?' placeholders and rebound for the connection's driver, and
// driver specific constraint errors are translated into the sentinels below
// so callers can branch with errors.Is.
package repository

import "errors"

// ErrNotFound is returned when the addressed row does not exist.
var ErrNotFound = errors.New("not found")

// ErrDuplicate is returned when an insert or update would violate a unique
// key, such as an existing (brand, serial) pair.
var ErrDuplicate = errors.New("duplicate key")

// ErrForeignKey is returned when a write references a missing row or a
// delete would orphan rows that still reference it.
var ErrForeignKey = errors.New("foreign key violation")

// ErrCheck is returned when a CHECK constraint rejects a value.
var ErrCheck = errors.New("check constraint violation")

// ErrConflict is returned when a guarded update matched no row because the
// state it was conditioned on changed underneath it.
var ErrConflict = errors.New("conflict")

// ErrInsufficientStock is returned by a conditional stock decrement that
// would have taken the quantity below zero.
var ErrInsufficientStock = errors.New("insufficient stock")

// ErrNegativeQuantity rejects a quantity overwrite below zero.
var ErrNegativeQuantity = errors.New("quantity must not be negative")
