package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"strings"
	"sync"
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

// Order numbers are drawn uniformly from [OrderNumberMin, OrderNumberMax).
// With n orders on file a single draw collides with probability
// n/999,999,998, so even a million orders leave a 0.1% chance per draw and
// MaxOrderNumberAttempts consecutive collisions are out of reach.
const (
	OrderNumberMin         int64 = 1
	OrderNumberMax         int64 = 999_999_999
	MaxOrderNumberAttempts       = 32

	// recentNumbers bounds the in-process memory of issued numbers.
	recentNumbers = 1 << 16

	maxBikeNameLen = 128
)

// Ledger creates, reads and deletes orders.
type Ledger struct {
	db         *sqlx.DB
	orders     *repository.OrderRepo
	components *repository.ComponentRepo
	customers  *repository.CustomerRepo
	directory  *Directory
	publisher  queue.Publisher
	metrics    *metrics.Metrics
	log        *zap.Logger
	now        func() time.Time
	draw       func() (int64, error)

	mu     sync.Mutex
	issued map[int64]struct{}
	ring   []int64
	next   int
}

func NewLedger(db *sqlx.DB, orders *repository.OrderRepo, components *repository.ComponentRepo,
	customers *repository.CustomerRepo, directory *Directory, publisher queue.Publisher,
	m *metrics.Metrics, log *zap.Logger) *Ledger {
	if publisher == nil {
		publisher = queue.NopPublisher{}
	}
	return &Ledger{
		db: db, orders: orders, components: components, customers: customers, directory: directory,
		publisher: publisher, metrics: m, log: log,
		now:    time.Now,
		draw:   drawOrderNumber,
		issued: make(map[int64]struct{}, recentNumbers),
		ring:   make([]int64, 0, recentNumbers),
	}
}

func drawOrderNumber() (int64, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(OrderNumberMax-OrderNumberMin))
	if err != nil {
		return 0, err
	}
	return n.Int64() + OrderNumberMin, nil
}

// GenerateOrderNumber draws a number that is neither on the ledger nor
// handed out earlier by this process. It gives up with ErrSerialCollision
// after MaxOrderNumberAttempts draws.
func (s *Ledger) GenerateOrderNumber(ctx context.Context) (int64, error) {
	return s.generate(func(n int64) (bool, error) { return s.orders.NumberExists(ctx, n) })
}

func (s *Ledger) generate(taken func(int64) (bool, error)) (int64, error) {
	for attempt := 0; attempt < MaxOrderNumberAttempts; attempt++ {
		n, err := s.draw()
		if err != nil {
			return 0, err
		}
		if !s.reserve(n) {
			continue
		}
		used, err := taken(n)
		if err != nil {
			return 0, err
		}
		if !used {
			return n, nil
		}
	}
	return 0, ErrSerialCollision
}

// reserve records n as issued and reports whether it was fresh.
func (s *Ledger) reserve(n int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, dup := s.issued[n]; dup {
		return false
	}
	if len(s.ring) < recentNumbers {
		s.ring = append(s.ring, n)
	} else {
		delete(s.issued, s.ring[s.next])
		s.ring[s.next] = n
		s.next = (s.next + 1) % recentNumbers
	}
	s.issued[n] = struct{}{}
	return true
}

// BikeSerial concatenates the creation time in whole seconds (rounded from
// milliseconds) with the order number, e.g. 1700000000 and 42 give
// 170000000042.
func BikeSerial(orderNumber int64, created time.Time) (int64, error) {
	secs := (created.UnixMilli() + 500) / 1000
	return strconv.ParseInt(strconv.FormatInt(secs, 10)+strconv.FormatInt(orderNumber, 10), 10, 64)
}

// BikeBrand is the frame set brand followed by the wheel style.
func BikeBrand(frame, wheel model.Component) string {
	style := ""
	if wheel.Wheel != nil {
		style = wheel.Wheel.Style
	}
	return frame.BrandName + " " + style
}

// OrderParts names the three components of a bike.
type OrderParts struct {
	FrameSet  model.ComponentKey
	Handlebar model.ComponentKey
	Wheel     model.ComponentKey
}

func (p OrderParts) keys() [3]model.ComponentKey {
	return [3]model.ComponentKey{p.FrameSet, p.Handlebar, p.Wheel}
}

// AddOrder creates a PENDING order for an existing customer. The order row
// and its three component rows are written in one transaction.
func (s *Ledger) AddOrder(ctx context.Context, customerID int64, bikeName string, parts OrderParts) (int64, error) {
	return s.create(ctx, bikeName, parts, func(ctx context.Context, tx *sqlx.Tx) (int64, error) {
		if _, err := s.customers.GetTx(ctx, tx, customerID); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return 0, ErrCustomerNotFound
			}
			return 0, err
		}
		return customerID, nil
	})
}

// PlaceOrderInput is what a shopper submits at the counter. Address is only
// needed when no customer matches Identity yet.
type PlaceOrderInput struct {
	Identity model.Identity
	Road     string
	City     string
	BikeName string
	Parts    OrderParts
}

// PlaceOrder finds the shopper by name and address, registering them when
// unknown, and creates the order. Registration and order are committed
// together.
func (s *Ledger) PlaceOrder(ctx context.Context, in PlaceOrderInput) (model.OrderInfo, error) {
	id, err := sanitiseIdentity(in.Identity)
	if err != nil {
		return model.OrderInfo{}, err
	}
	number, err := s.create(ctx, in.BikeName, in.Parts, func(ctx context.Context, tx *sqlx.Tx) (int64, error) {
		ci, err := s.customers.FindByIdentityTx(ctx, tx, id)
		if err == nil {
			return ci.Customer.ID, nil
		}
		if !errors.Is(err, repository.ErrNotFound) {
			return 0, err
		}
		ci, err = s.directory.registerTx(ctx, tx, NewCustomer{
			Forename: id.Forename,
			Surname:  id.Surname,
			Address:  AddressInput{Postcode: id.Postcode, HouseNum: id.HouseNum, Road: in.Road, City: in.City},
		})
		if err != nil {
			return 0, err
		}
		return ci.Customer.ID, nil
	})
	if err != nil {
		return model.OrderInfo{}, err
	}
	return s.GetByOrderNumber(ctx, number)
}

// create runs the order transaction, drawing a fresh number whenever the
// number or the derived bike serial turns out to be taken.
func (s *Ledger) create(ctx context.Context, bikeName string, parts OrderParts,
	customer func(context.Context, *sqlx.Tx) (int64, error)) (int64, error) {
	ctx, span := tracer.Start(ctx, "ledger.add_order")
	defer span.End()

	bikeName = strings.TrimSpace(bikeName)
	if bikeName == "" || len(bikeName) > maxBikeNameLen {
		return 0, invalid("bike name must be 1 to %d characters", maxBikeNameLen)
	}

	for attempt := 0; attempt < MaxOrderNumberAttempts; attempt++ {
		number, err := s.GenerateOrderNumber(ctx)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "order number")
			return 0, err
		}
		err = s.createTx(ctx, number, bikeName, parts, customer)
		if errors.Is(err, errRetryNumber) || errors.Is(err, repository.ErrDuplicate) {
			s.log.Debug("order number or serial taken, redrawing", zap.Int64("order_number", number))
			continue
		}
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "add order")
			return 0, err
		}

		span.SetAttributes(attribute.Int64("order.number", number))
		s.metrics.OrderPlaced()
		s.log.Info("order placed", zap.Int64("order_number", number))
		s.publishPlaced(ctx, number)
		return number, nil
	}
	return 0, ErrSerialCollision
}

var errRetryNumber = errors.New("order number or bike serial taken")

func (s *Ledger) createTx(ctx context.Context, number int64, bikeName string, parts OrderParts,
	customer func(context.Context, *sqlx.Tx) (int64, error)) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	comps, err := s.resolveTx(ctx, tx, parts)
	if err != nil {
		return err
	}
	customerID, err := customer(ctx, tx)
	if err != nil {
		return err
	}

	created := s.now().UTC()
	serial, err := BikeSerial(number, created)
	if err != nil {
		return fmt.Errorf("bike serial: %w", err)
	}
	if taken, err := s.orders.NumberExistsTx(ctx, tx, number); err != nil {
		return err
	} else if taken {
		return errRetryNumber
	}
	if taken, err := s.orders.SerialExistsTx(ctx, tx, serial); err != nil {
		return err
	} else if taken {
		return errRetryNumber
	}

	o := model.Order{
		OrderNumber: number,
		CustomerID:  customerID,
		CreatedAt:   created,
		Status:      model.StatusPending,
		BikeName:    bikeName,
		BikeSerial:  serial,
		BikeBrand:   BikeBrand(comps[0], comps[2]),
	}
	if err := s.orders.CreateTx(ctx, tx, o, parts.keys()); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

// resolveTx loads the three components and checks each slot holds the
// right category.
func (s *Ledger) resolveTx(ctx context.Context, tx *sqlx.Tx, parts OrderParts) ([3]model.Component, error) {
	var out [3]model.Component
	want := [3]model.Category{model.CategoryFrameSet, model.CategoryHandlebar, model.CategoryWheel}
	for i, key := range parts.keys() {
		c, err := s.components.GetTx(ctx, tx, key)
		if err != nil {
			return out, fmt.Errorf("%s %d/%d: %w", want[i], key.BrandID, key.Serial, err)
		}
		if c.Category != want[i] {
			return out, invalid("component %d/%d is a %s, not a %s", key.BrandID, key.Serial, c.Category, want[i])
		}
		out[i] = c
	}
	return out, nil
}

func (s *Ledger) publishPlaced(ctx context.Context, number int64) {
	oi, err := s.orders.Get(ctx, number)
	if err != nil {
		s.log.Warn("order.placed: reload failed", zap.Int64("order_number", number), zap.Error(err))
		return
	}
	if err := s.publisher.Publish(ctx, queue.NewOrderPlaced(oi)); err != nil {
		s.log.Warn("order.placed: publish failed", zap.Int64("order_number", number), zap.Error(err))
	}
}

// DeleteOrder removes an order and its component rows atomically.
func (s *Ledger) DeleteOrder(ctx context.Context, number int64) error {
	if err := s.orders.Delete(ctx, number); err != nil {
		return fmt.Errorf("delete order %d: %w", number, err)
	}
	s.log.Info("order deleted", zap.Int64("order_number", number))
	return nil
}

// GetByOrderNumber returns the projection of one order.
func (s *Ledger) GetByOrderNumber(ctx context.Context, number int64) (model.OrderInfo, error) {
	return s.orders.Get(ctx, number)
}

// GetByCustomerIdentity returns the orders of the customer identified by
// name and address. An unknown identity yields an empty list.
func (s *Ledger) GetByCustomerIdentity(ctx context.Context, id model.Identity) ([]model.OrderInfo, error) {
	id, err := sanitiseIdentity(id)
	if err != nil {
		return nil, err
	}
	return s.orders.ListByIdentity(ctx, id)
}

// GetAll returns every order ordered by number.
func (s *Ledger) GetAll(ctx context.Context) ([]model.OrderInfo, error) {
	return s.orders.ListAll(ctx)
}

// ListByStatus returns the orders in one status.
func (s *Ledger) ListByStatus(ctx context.Context, st model.Status) ([]model.OrderInfo, error) {
	if !st.Valid() {
		return nil, invalid("unknown status %q", st)
	}
	return s.orders.ListByStatus(ctx, st)
}

// UpdateBikeName renames the bike on an order.
func (s *Ledger) UpdateBikeName(ctx context.Context, number int64, name string) error {
	name = strings.TrimSpace(name)
	if name == "" || len(name) > maxBikeNameLen {
		return invalid("bike name must be 1 to %d characters", maxBikeNameLen)
	}
	return s.orders.UpdateBikeName(ctx, number, name)
}
