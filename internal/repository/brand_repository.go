package repository

import (
	"context"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/iliyamo/bike-sales-counter/internal/model"
)

// BrandRepo manages the brands table.
type BrandRepo struct{ DB *sqlx.DB }

func NewBrandRepo(db *sqlx.DB) *BrandRepo { return &BrandRepo{DB: db} }

// Create inserts a brand and returns it with the generated key. A name that
// already exists yields ErrDuplicate.
func (r *BrandRepo) Create(ctx context.Context, name string) (model.Brand, error) {
	name = strings.TrimSpace(name)
	id, err := insertID(ctx, r.DB, "INSERT INTO brands (brand_name) VALUES (?)", "brand_id", name)
	if err != nil {
		return model.Brand{}, err
	}
	return model.Brand{ID: id, Name: name}, nil
}

// List returns all brands ordered by name.
func (r *BrandRepo) List(ctx context.Context) ([]model.Brand, error) {
	var out []model.Brand
	err := r.DB.SelectContext(ctx, &out, "SELECT brand_id, brand_name FROM brands ORDER BY brand_name")
	return out, err
}

// Get fetches a brand by id.
func (r *BrandRepo) Get(ctx context.Context, id int64) (model.Brand, error) {
	var b model.Brand
	err := r.DB.GetContext(ctx, &b, r.DB.Rebind("SELECT brand_id, brand_name FROM brands WHERE brand_id = ?"), id)
	return b, notFound(err)
}

// GetTx fetches a brand by id inside tx.
func (r *BrandRepo) GetTx(ctx context.Context, tx *sqlx.Tx, id int64) (model.Brand, error) {
	var b model.Brand
	err := tx.GetContext(ctx, &b, tx.Rebind("SELECT brand_id, brand_name FROM brands WHERE brand_id = ?"), id)
	return b, notFound(err)
}
