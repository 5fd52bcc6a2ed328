package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/iliyamo/bike-sales-counter/internal/metrics"
	"github.com/iliyamo/bike-sales-counter/internal/model"
	"github.com/iliyamo/bike-sales-counter/internal/queue"
	"github.com/iliyamo/bike-sales-counter/internal/repository"
)

// Lifecycle advances orders PENDING -> CONFIRMED -> FULFILLED. Stock is
// drawn exactly once, on the CONFIRMED -> FULFILLED edge.
type Lifecycle struct {
	db         *sqlx.DB
	orders     *repository.OrderRepo
	components *repository.ComponentRepo
	cache      *CatalogCache
	publisher  queue.Publisher
	metrics    *metrics.Metrics
	log        *zap.Logger
	now        func() time.Time
}

func NewLifecycle(db *sqlx.DB, orders *repository.OrderRepo, components *repository.ComponentRepo,
	cache *CatalogCache, publisher queue.Publisher, m *metrics.Metrics, log *zap.Logger) *Lifecycle {
	if publisher == nil {
		publisher = queue.NopPublisher{}
	}
	return &Lifecycle{
		db: db, orders: orders, components: components, cache: cache,
		publisher: publisher, metrics: m, log: log, now: time.Now,
	}
}

// ProgressOrder moves the order one step forward and records staff as the
// member who did it. It returns the new status.
//
// Everything happens in one transaction: the status read (row locked), the
// guarded stock decrements and the guarded status write. A FULFILLED order
// yields ErrAlreadyFulfilled, a component short of stock
// ErrInsufficientStock and a concurrent advance ErrConflict; in every failure
// case nothing is changed.
func (s *Lifecycle) ProgressOrder(ctx context.Context, number int64, staff string) (model.Status, error) {
	ctx, span := tracer.Start(ctx, "lifecycle.progress_order")
	defer span.End()
	span.SetAttributes(attribute.Int64("order.number", number), attribute.String("staff", staff))

	from, to, drawn, err := s.progressTx(ctx, number, staff)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "progress order")
		if !errors.Is(err, ErrAlreadyFulfilled) && !errors.Is(err, ErrInsufficientStock) && !errors.Is(err, ErrNotFound) {
			s.log.Error("progress order failed", zap.Int64("order_number", number), zap.Error(err))
		}
		return "", err
	}
	span.SetAttributes(attribute.String("order.from", string(from)), attribute.String("order.to", string(to)))

	s.metrics.OrderProgressed(string(to))
	for _, c := range drawn {
		s.metrics.StockDecremented(string(c.Category), c.RequiredDraw())
	}
	s.log.Info("order progressed",
		zap.Int64("order_number", number), zap.String("from", string(from)), zap.String("to", string(to)),
		zap.String("staff", staff))

	ev := queue.NewOrderProgressed(number, from, to, staff, s.now())
	if err := s.publisher.Publish(ctx, ev); err != nil {
		s.log.Warn("order.progressed: publish failed", zap.Int64("order_number", number), zap.Error(err))
	}
	if len(drawn) > 0 && s.cache != nil {
		s.cache.RefreshAsync()
	}
	return to, nil
}

func (s *Lifecycle) progressTx(ctx context.Context, number int64, staff string) (from, to model.Status, drawn []model.Component, err error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return "", "", nil, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	from, err = s.orders.StatusTx(ctx, tx, number)
	if err != nil {
		return "", "", nil, fmt.Errorf("order %d: %w", number, err)
	}
	to, ok := from.Next()
	if !ok {
		if from == model.StatusFulfilled {
			return "", "", nil, ErrAlreadyFulfilled
		}
		return "", "", nil, fmt.Errorf("order %d has unknown status %q", number, from)
	}

	if from == model.StatusConfirmed {
		keys, err := s.orders.PartsTx(ctx, tx, number)
		if err != nil {
			return "", "", nil, err
		}
		for _, key := range keys {
			c, err := s.components.GetTx(ctx, tx, key)
			if err != nil {
				return "", "", nil, fmt.Errorf("component %d/%d: %w", key.BrandID, key.Serial, err)
			}
			if err := s.components.DecrementTx(ctx, tx, key, c.RequiredDraw()); err != nil {
				return "", "", nil, fmt.Errorf("%s: %w", c.DisplayName(), err)
			}
			drawn = append(drawn, c)
		}
	}

	if err := s.orders.AdvanceTx(ctx, tx, number, from, to, staff); err != nil {
		return "", "", nil, err
	}

	if err := tx.Commit(); err != nil {
		return "", "", nil, err
	}
	committed = true
	return from, to, drawn, nil
}

// MissingComponents lists the components of an order whose quantity on
// hand is below what one bike draws. An empty list means the order can be
// fulfilled right now.
func (s *Lifecycle) MissingComponents(ctx context.Context, number int64) ([]model.Component, error) {
	oi, err := s.orders.Get(ctx, number)
	if err != nil {
		return nil, err
	}
	missing := []model.Component{}
	for _, c := range oi.Components() {
		if c.Quantity < c.RequiredDraw() {
			missing = append(missing, c)
		}
	}
	return missing, nil
}
