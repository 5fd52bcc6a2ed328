package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/iliyamo/bike-sales-counter/internal/model"
	"github.com/iliyamo/bike-sales-counter/internal/repository"
	"github.com/iliyamo/bike-sales-counter/internal/utils"
)

// Directory resolves customers and their postal addresses. Co-habitants
// share one address row; an edit by one of them forks a new row instead of
// changing the address under the others.
type Directory struct {
	db        *sqlx.DB
	addresses *repository.AddressRepo
	customers *repository.CustomerRepo
	log       *zap.Logger
}

func NewDirectory(db *sqlx.DB, addresses *repository.AddressRepo, customers *repository.CustomerRepo, log *zap.Logger) *Directory {
	return &Directory{db: db, addresses: addresses, customers: customers, log: log}
}

// AddressInput is a postal address as typed by a person.
type AddressInput struct {
	Postcode string
	HouseNum int
	Road     string
	City     string
}

// normalise sanitises the address fields and validates them.
func (in AddressInput) normalise() (model.Address, error) {
	a := model.Address{
		Postcode: utils.SanitisePostcode(in.Postcode),
		HouseNum: in.HouseNum,
		RoadName: utils.SanitiseName(in.Road),
		CityName: utils.SanitiseName(in.City),
	}
	if !utils.IsValidPostcode(a.Postcode) {
		return a, invalid("postcode %q is not a UK postcode", in.Postcode)
	}
	if a.HouseNum <= 0 {
		return a, invalid("house number must be positive")
	}
	if a.RoadName == "" || a.CityName == "" {
		return a, invalid("road and city are required")
	}
	return a, nil
}

// NewCustomer is the registration input for a shopper not yet on file.
type NewCustomer struct {
	Forename string
	Surname  string
	Address  AddressInput
}

func sanitiseIdentity(id model.Identity) (model.Identity, error) {
	id.Forename = utils.SanitiseName(id.Forename)
	id.Surname = utils.SanitiseName(id.Surname)
	id.Postcode = utils.SanitisePostcode(id.Postcode)
	if id.Forename == "" || id.Surname == "" {
		return id, invalid("forename and surname are required")
	}
	if id.HouseNum <= 0 || id.Postcode == "" {
		return id, invalid("house number and postcode are required")
	}
	return id, nil
}

// FindAddress looks an address up by postcode and house number.
func (s *Directory) FindAddress(ctx context.Context, postcode string, houseNum int) (model.Address, error) {
	a, err := s.addresses.Find(ctx, utils.SanitisePostcode(postcode), houseNum)
	if errors.Is(err, repository.ErrNotFound) {
		return model.Address{}, ErrAddressNotFound
	}
	return a, err
}

// CreateAddress sanitises and inserts a new address. An existing
// (postcode, houseNum) pair yields ErrDuplicate.
func (s *Directory) CreateAddress(ctx context.Context, in AddressInput) (model.Address, error) {
	a, err := in.normalise()
	if err != nil {
		return model.Address{}, err
	}
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return model.Address{}, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	if err := s.addresses.CreateTx(ctx, tx, &a); err != nil {
		return model.Address{}, fmt.Errorf("create address: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return model.Address{}, err
	}
	committed = true
	return a, nil
}

// FindCustomer matches a customer by name and address.
func (s *Directory) FindCustomer(ctx context.Context, id model.Identity) (model.CustomerInfo, error) {
	id, err := sanitiseIdentity(id)
	if err != nil {
		return model.CustomerInfo{}, err
	}
	ci, err := s.customers.FindByIdentity(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return model.CustomerInfo{}, ErrCustomerNotFound
	}
	return ci, err
}

// GetCustomer loads a customer with its address.
func (s *Directory) GetCustomer(ctx context.Context, id int64) (model.CustomerInfo, error) {
	ci, err := s.customers.Get(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return model.CustomerInfo{}, ErrCustomerNotFound
	}
	return ci, err
}

// ListCustomers returns every customer with their address.
func (s *Directory) ListCustomers(ctx context.Context) ([]model.CustomerInfo, error) {
	return s.customers.List(ctx)
}

// RegisterCustomer adds a customer, reusing the address row when one
// already exists at the postcode and house number.
func (s *Directory) RegisterCustomer(ctx context.Context, in NewCustomer) (model.CustomerInfo, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return model.CustomerInfo{}, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	ci, err := s.registerTx(ctx, tx, in)
	if err != nil {
		return model.CustomerInfo{}, err
	}
	if err := tx.Commit(); err != nil {
		return model.CustomerInfo{}, err
	}
	committed = true
	s.log.Info("customer registered", zap.Int64("customer_id", ci.Customer.ID), zap.Int64("address_id", ci.Address.ID))
	return ci, nil
}

func (s *Directory) registerTx(ctx context.Context, tx *sqlx.Tx, in NewCustomer) (model.CustomerInfo, error) {
	c := model.Customer{
		Forename: utils.SanitiseName(in.Forename),
		Surname:  utils.SanitiseName(in.Surname),
	}
	if c.Forename == "" || c.Surname == "" {
		return model.CustomerInfo{}, invalid("forename and surname are required")
	}
	a, err := in.Address.normalise()
	if err != nil {
		return model.CustomerInfo{}, err
	}

	existing, err := s.addresses.FindTx(ctx, tx, a.Postcode, a.HouseNum)
	switch {
	case err == nil:
		a = existing
	case errors.Is(err, repository.ErrNotFound):
		if err := s.addresses.CreateTx(ctx, tx, &a); err != nil {
			return model.CustomerInfo{}, fmt.Errorf("create address: %w", err)
		}
	default:
		return model.CustomerInfo{}, err
	}

	c.AddressID = a.ID
	if err := s.customers.CreateTx(ctx, tx, &c); err != nil {
		return model.CustomerInfo{}, fmt.Errorf("create customer: %w", err)
	}
	return model.CustomerInfo{Customer: c, Address: a}, nil
}

// UpdateCustomer persists forename, surname and address reference.
func (s *Directory) UpdateCustomer(ctx context.Context, c model.Customer) error {
	c.Forename = utils.SanitiseName(c.Forename)
	c.Surname = utils.SanitiseName(c.Surname)
	if c.Forename == "" || c.Surname == "" {
		return invalid("forename and surname are required")
	}
	err := s.customers.Update(ctx, c)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return ErrCustomerNotFound
	case errors.Is(err, repository.ErrForeignKey):
		return ErrAddressNotFound
	}
	return err
}

// Address update outcomes, reported for logging and tests.
const (
	AddressReused  = "reused"
	AddressForked  = "forked"
	AddressMutated = "mutated"
)

// UpdateCustomerAddress moves a customer to a new address in one
// transaction:
//
//  1. an address already on file at (postcode, houseNum) is reused;
//  2. otherwise the current address row is locked and its occupants
//     counted; when shared, a new row is forked for this customer alone,
//  3. when this customer is the only occupant, the row is edited in place.
//
// A concurrent insert of the same new address makes the first attempt fail
// on the unique key; the update is then retried once and takes branch 1.
func (s *Directory) UpdateCustomerAddress(ctx context.Context, customerID int64, in AddressInput) (model.CustomerInfo, string, error) {
	ctx, span := tracer.Start(ctx, "directory.update_customer_address")
	defer span.End()
	span.SetAttributes(attribute.Int64("customer.id", customerID))

	a, err := in.normalise()
	if err != nil {
		return model.CustomerInfo{}, "", err
	}

	var outcome string
	for attempt := 0; attempt < 2; attempt++ {
		outcome, err = s.moveCustomer(ctx, customerID, a)
		if !errors.Is(err, repository.ErrDuplicate) {
			break
		}
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "update address")
		return model.CustomerInfo{}, "", err
	}
	span.SetAttributes(attribute.String("address.outcome", outcome))
	s.log.Info("customer address updated", zap.Int64("customer_id", customerID), zap.String("outcome", outcome))

	ci, err := s.GetCustomer(ctx, customerID)
	return ci, outcome, err
}

func (s *Directory) moveCustomer(ctx context.Context, customerID int64, a model.Address) (string, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return "", err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	ci, err := s.customers.GetTx(ctx, tx, customerID)
	if errors.Is(err, repository.ErrNotFound) {
		return "", ErrCustomerNotFound
	}
	if err != nil {
		return "", err
	}
	c := ci.Customer

	var outcome string
	existing, err := s.addresses.FindTx(ctx, tx, a.Postcode, a.HouseNum)
	switch {
	case err == nil:
		outcome = AddressReused
		if existing.ID != c.AddressID {
			c.AddressID = existing.ID
			if err := s.customers.UpdateTx(ctx, tx, c); err != nil {
				return "", err
			}
		}
	case errors.Is(err, repository.ErrNotFound):
		current, err := s.addresses.LockTx(ctx, tx, c.AddressID)
		if err != nil {
			return "", err
		}
		occupants, err := s.addresses.OccupantsTx(ctx, tx, current.ID)
		if err != nil {
			return "", err
		}
		if occupants >= 2 {
			outcome = AddressForked
			if err := s.addresses.CreateTx(ctx, tx, &a); err != nil {
				return "", err
			}
			c.AddressID = a.ID
			if err := s.customers.UpdateTx(ctx, tx, c); err != nil {
				return "", err
			}
		} else {
			outcome = AddressMutated
			a.ID = current.ID
			if err := s.addresses.UpdateTx(ctx, tx, a); err != nil {
				return "", err
			}
		}
	default:
		return "", err
	}

	if err := tx.Commit(); err != nil {
		return "", err
	}
	committed = true
	return outcome, nil
}
