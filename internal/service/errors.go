// Package service implements the bike shop core: the catalog and its
// snapshot cache, the customer directory, the order ledger, the order
// lifecycle engine and staff accounts.
//
// Store failures are returned wrapped so callers can still match the
// sentinels below with errors.Is; logical failures (not found, already
// fulfilled, insufficient stock) are distinct from connectivity failures so
// the HTTP layer can answer with a specific message.
package service

import (
	"errors"
	"fmt"

	"go.opentelemetry.io/otel"

	"github.com/iliyamo/bike-sales-counter/internal/repository"
)

// Store level sentinels, re-exported so handlers depend on one package.
var (
	ErrNotFound          = repository.ErrNotFound
	ErrDuplicate         = repository.ErrDuplicate
	ErrForeignKey        = repository.ErrForeignKey
	ErrConflict          = repository.ErrConflict
	ErrInsufficientStock = repository.ErrInsufficientStock
)

var (
	ErrAlreadyFulfilled   = errors.New("order already fulfilled")
	ErrAddressNotFound    = errors.New("address not found")
	ErrCustomerNotFound   = errors.New("customer not found")
	ErrInvalidInput       = errors.New("invalid input")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrSerialCollision    = errors.New("could not allocate a unique order number")
)

// invalid wraps ErrInvalidInput with a field specific message.
func invalid(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}

var tracer = otel.Tracer("github.com/iliyamo/bike-sales-counter/internal/service")
