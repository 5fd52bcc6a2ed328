package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/iliyamo/bike-sales-counter/internal/model"
)

// AddressRepo manages postal addresses. (postcode, house_num) is unique, so
// co-habitants share one row.
type AddressRepo struct{ DB *sqlx.DB }

func NewAddressRepo(db *sqlx.DB) *AddressRepo { return &AddressRepo{DB: db} }

const addressCols = "address_id, postcode, house_num, road_name, city_name"

// Find looks an address up by its natural key. Postcode must already be
// sanitised.
func (r *AddressRepo) Find(ctx context.Context, postcode string, houseNum int) (model.Address, error) {
	return findAddress(ctx, r.DB, postcode, houseNum)
}

// FindTx is Find inside tx.
func (r *AddressRepo) FindTx(ctx context.Context, tx *sqlx.Tx, postcode string, houseNum int) (model.Address, error) {
	return findAddress(ctx, tx, postcode, houseNum)
}

func findAddress(ctx context.Context, x sqlx.ExtContext, postcode string, houseNum int) (model.Address, error) {
	var a model.Address
	err := sqlx.GetContext(ctx, x, &a,
		x.Rebind("SELECT "+addressCols+" FROM addresses WHERE postcode = ? AND house_num = ?"),
		postcode, houseNum)
	return a, notFound(err)
}

// Get fetches an address by id.
func (r *AddressRepo) Get(ctx context.Context, id int64) (model.Address, error) {
	var a model.Address
	err := r.DB.GetContext(ctx, &a, r.DB.Rebind("SELECT "+addressCols+" FROM addresses WHERE address_id = ?"), id)
	return a, notFound(err)
}

// LockTx reads an address and locks its row until tx ends, so the occupancy
// count that follows cannot change under the caller.
func (r *AddressRepo) LockTx(ctx context.Context, tx *sqlx.Tx, id int64) (model.Address, error) {
	var a model.Address
	err := tx.GetContext(ctx, &a,
		tx.Rebind("SELECT "+addressCols+" FROM addresses WHERE address_id = ?"+forUpdate(tx)), id)
	return a, notFound(err)
}

// CreateTx inserts a and sets its generated id.
func (r *AddressRepo) CreateTx(ctx context.Context, tx *sqlx.Tx, a *model.Address) error {
	id, err := insertID(ctx, tx,
		"INSERT INTO addresses (postcode, house_num, road_name, city_name) VALUES (?, ?, ?, ?)", "address_id",
		a.Postcode, a.HouseNum, a.RoadName, a.CityName)
	if err != nil {
		return err
	}
	a.ID = id
	return nil
}

// UpdateTx overwrites every field of the address row a.ID. Callers hold
// the row lock from LockTx, so existence is already established.
func (r *AddressRepo) UpdateTx(ctx context.Context, tx *sqlx.Tx, a model.Address) error {
	_, err := exec(ctx, tx,
		"UPDATE addresses SET postcode = ?, house_num = ?, road_name = ?, city_name = ? WHERE address_id = ?",
		a.Postcode, a.HouseNum, a.RoadName, a.CityName, a.ID)
	return err
}

// OccupantsTx counts the customers that reference the address.
func (r *AddressRepo) OccupantsTx(ctx context.Context, tx *sqlx.Tx, id int64) (int, error) {
	var n int
	err := tx.GetContext(ctx, &n, tx.Rebind("SELECT COUNT(*) FROM customers WHERE address_id = ?"), id)
	return n, err
}
