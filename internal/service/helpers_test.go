package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/iliyamo/bike-sales-counter/internal/config"
	"github.com/iliyamo/bike-sales-counter/internal/metrics"
	"github.com/iliyamo/bike-sales-counter/internal/model"
	"github.com/iliyamo/bike-sales-counter/internal/queue"
	"github.com/iliyamo/bike-sales-counter/internal/repository"
	"github.com/iliyamo/bike-sales-counter/internal/testutil"
)

// recorder is a queue.Publisher that keeps what it was given.
type recorder struct {
	mu     sync.Mutex
	events []queue.Event
}

func (r *recorder) Publish(_ context.Context, ev queue.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

func (r *recorder) Close() error { return nil }

func (r *recorder) all() []queue.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]queue.Event, len(r.events))
	copy(out, r.events)
	return out
}

type harness struct {
	db      *sqlx.DB
	f       testutil.Fixture
	events  *recorder
	metrics *metrics.Metrics

	cache     *CatalogCache
	catalog   *Catalog
	directory *Directory
	ledger    *Ledger
	lifecycle *Lifecycle
	accounts  *Accounts
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	db := testutil.NewDB(t)
	log := zap.NewNop()
	h := &harness{
		db:      db,
		f:       testutil.Seed(t, db),
		events:  &recorder{},
		metrics: metrics.New(prometheus.NewRegistry()),
	}

	components := repository.NewComponentRepo(db)
	customers := repository.NewCustomerRepo(db)
	orders := repository.NewOrderRepo(db)

	h.cache = NewCatalogCache(components, config.CatalogConfig{Staleness: time.Minute}, nil, log, h.metrics)
	h.catalog = NewCatalog(components, repository.NewBrandRepo(db), h.cache, log)
	h.directory = NewDirectory(db, repository.NewAddressRepo(db), customers, log)
	h.ledger = NewLedger(db, orders, components, customers, h.directory, h.events, h.metrics, log)
	h.lifecycle = NewLifecycle(db, orders, components, h.cache, h.events, h.metrics, log)
	h.accounts = NewAccounts(repository.NewStaffRepo(db), repository.NewTokenRepo(db), "test-secret", 15, 7, log)
	return h
}

func (h *harness) parts() OrderParts {
	return OrderParts{
		FrameSet:  model.ComponentKey{BrandID: h.f.BrandID, Serial: h.f.FrameSet},
		Handlebar: model.ComponentKey{BrandID: h.f.BrandID, Serial: h.f.Handlebar},
		Wheel:     model.ComponentKey{BrandID: h.f.BrandID, Serial: h.f.Wheel},
	}
}

func (h *harness) register(t *testing.T, forename, surname, postcode string, house int) model.CustomerInfo {
	t.Helper()
	ci, err := h.directory.RegisterCustomer(context.Background(), NewCustomer{
		Forename: forename,
		Surname:  surname,
		Address:  AddressInput{Postcode: postcode, HouseNum: house, Road: "Western Bank", City: "Sheffield"},
	})
	require.NoError(t, err)
	return ci
}

func (h *harness) order(t *testing.T, customerID int64) int64 {
	t.Helper()
	n, err := h.ledger.AddOrder(context.Background(), customerID, "Commuter", h.parts())
	require.NoError(t, err)
	return n
}
