package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/iliyamo/bike-sales-counter/internal/model"
)

// ComponentRepo stores catalog components. The base row lives in
// components and the category specific attributes in frame_sets, handlebars
// or wheels, keyed by the same (brand_id, serial) pair.
type ComponentRepo struct{ DB *sqlx.DB }

func NewComponentRepo(db *sqlx.DB) *ComponentRepo { return &ComponentRepo{DB: db} }

// One branch per category. The category column is a literal so the row is
// tagged by the branch that produced it, never by which columns are NULL.
// NULLIF(0, 0) is an integer typed NULL: Postgres resolves UNION column
// types pairwise and would settle two bare NULLs on text.
const (
	frameSetBranch = `SELECT 'frameset' AS category, c.brand_id, b.brand_name, c.serial, c.name, c.price, c.quantity,
       f.shocks AS shocks, f.size AS size, f.gears AS gears, NULL AS style, NULLIF(0, 0) AS diameter, NULL AS brakes
FROM components c
JOIN brands b ON b.brand_id = c.brand_id
JOIN frame_sets f ON f.brand_id = c.brand_id AND f.serial = c.serial`

	handlebarBranch = `SELECT 'handlebar' AS category, c.brand_id, b.brand_name, c.serial, c.name, c.price, c.quantity,
       NULL AS shocks, NULL AS size, NULL AS gears, h.style AS style, NULLIF(0, 0) AS diameter, NULL AS brakes
FROM components c
JOIN brands b ON b.brand_id = c.brand_id
JOIN handlebars h ON h.brand_id = c.brand_id AND h.serial = c.serial`

	wheelBranch = `SELECT 'wheel' AS category, c.brand_id, b.brand_name, c.serial, c.name, c.price, c.quantity,
       NULL AS shocks, NULL AS size, NULL AS gears, w.style AS style, w.diameter AS diameter, w.brakes AS brakes
FROM components c
JOIN brands b ON b.brand_id = c.brand_id
JOIN wheels w ON w.brand_id = c.brand_id AND w.serial = c.serial`

	allComponents = frameSetBranch + "\nUNION ALL\n" + handlebarBranch + "\nUNION ALL\n" + wheelBranch

	componentCols = `u.category, u.brand_id, u.brand_name, u.serial, u.name, u.price, u.quantity,
       u.shocks, u.size, u.gears, u.style, u.diameter, u.brakes`
)

// componentRow is the flat shape of one union row.
type componentRow struct {
	Category  string
	BrandID   int64
	BrandName string
	Serial    int64
	Name      string
	Price     int64
	Quantity  int64
	Shocks    sql.NullBool
	Size      sql.NullInt64
	Gears     sql.NullInt64
	Style     sql.NullString
	Diameter  sql.NullInt64
	Brakes    sql.NullString
}

// dest lists scan targets in componentCols order.
func (r *componentRow) dest() []interface{} {
	return []interface{}{
		&r.Category, &r.BrandID, &r.BrandName, &r.Serial, &r.Name, &r.Price, &r.Quantity,
		&r.Shocks, &r.Size, &r.Gears, &r.Style, &r.Diameter, &r.Brakes,
	}
}

func (r componentRow) component() (model.Component, error) {
	c := model.Component{
		Category:  model.Category(r.Category),
		BrandID:   r.BrandID,
		BrandName: r.BrandName,
		Serial:    r.Serial,
		Name:      r.Name,
		Price:     r.Price,
		Quantity:  r.Quantity,
	}
	switch c.Category {
	case model.CategoryFrameSet:
		c.FrameSet = &model.FrameSetSpec{Shocks: r.Shocks.Bool, Size: int(r.Size.Int64), Gears: int(r.Gears.Int64)}
	case model.CategoryHandlebar:
		c.Handlebar = &model.HandlebarSpec{Style: r.Style.String}
	case model.CategoryWheel:
		c.Wheel = &model.WheelSpec{Diameter: int(r.Diameter.Int64), Style: r.Style.String, Brakes: r.Brakes.String}
	default:
		return model.Component{}, fmt.Errorf("unknown component category %q", r.Category)
	}
	return c, nil
}

func scanComponents(rows *sqlx.Rows) ([]model.Component, error) {
	defer rows.Close()
	var out []model.Component
	for rows.Next() {
		var r componentRow
		if err := rows.Scan(r.dest()...); err != nil {
			return nil, err
		}
		c, err := r.component()
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// List returns every component across the three categories.
func (r *ComponentRepo) List(ctx context.Context) ([]model.Component, error) {
	q := "SELECT " + componentCols + " FROM (" + allComponents + ") u ORDER BY u.category, u.brand_name, u.serial"
	rows, err := r.DB.QueryxContext(ctx, q)
	if err != nil {
		return nil, err
	}
	return scanComponents(rows)
}

// ListByCategory returns the components of one category.
func (r *ComponentRepo) ListByCategory(ctx context.Context, cat model.Category) ([]model.Component, error) {
	var branch string
	switch cat {
	case model.CategoryFrameSet:
		branch = frameSetBranch
	case model.CategoryHandlebar:
		branch = handlebarBranch
	case model.CategoryWheel:
		branch = wheelBranch
	default:
		return nil, fmt.Errorf("unknown component category %q", cat)
	}
	q := "SELECT " + componentCols + " FROM (" + branch + ") u ORDER BY u.brand_name, u.serial"
	rows, err := r.DB.QueryxContext(ctx, q)
	if err != nil {
		return nil, err
	}
	return scanComponents(rows)
}

// Get loads one component by key.
func (r *ComponentRepo) Get(ctx context.Context, key model.ComponentKey) (model.Component, error) {
	return getComponent(ctx, r.DB, key)
}

// GetTx loads one component inside tx.
func (r *ComponentRepo) GetTx(ctx context.Context, tx *sqlx.Tx, key model.ComponentKey) (model.Component, error) {
	return getComponent(ctx, tx, key)
}

func getComponent(ctx context.Context, x sqlx.ExtContext, key model.ComponentKey) (model.Component, error) {
	q := "SELECT " + componentCols + " FROM (" + allComponents + ") u WHERE u.brand_id = ? AND u.serial = ?"
	var row componentRow
	if err := x.QueryRowxContext(ctx, x.Rebind(q), key.BrandID, key.Serial).Scan(row.dest()...); err != nil {
		return model.Component{}, notFound(err)
	}
	return row.component()
}

// Create inserts the base row and the category row in one transaction so
// a failed category insert leaves no orphan base row.
func (r *ComponentRepo) Create(ctx context.Context, c model.Component) error {
	tx, err := r.DB.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	if _, err := exec(ctx, tx,
		"INSERT INTO components (brand_id, serial, price, name, quantity) VALUES (?, ?, ?, ?, ?)",
		c.BrandID, c.Serial, c.Price, c.Name, c.Quantity); err != nil {
		return err
	}

	switch {
	case c.Category == model.CategoryFrameSet && c.FrameSet != nil:
		_, err = exec(ctx, tx,
			"INSERT INTO frame_sets (brand_id, serial, shocks, size, gears) VALUES (?, ?, ?, ?, ?)",
			c.BrandID, c.Serial, c.FrameSet.Shocks, c.FrameSet.Size, c.FrameSet.Gears)
	case c.Category == model.CategoryHandlebar && c.Handlebar != nil:
		_, err = exec(ctx, tx,
			"INSERT INTO handlebars (brand_id, serial, style) VALUES (?, ?, ?)",
			c.BrandID, c.Serial, c.Handlebar.Style)
	case c.Category == model.CategoryWheel && c.Wheel != nil:
		_, err = exec(ctx, tx,
			"INSERT INTO wheels (brand_id, serial, diameter, style, brakes) VALUES (?, ?, ?, ?, ?)",
			c.BrandID, c.Serial, c.Wheel.Diameter, c.Wheel.Style, c.Wheel.Brakes)
	default:
		err = fmt.Errorf("component %d/%d: %q attributes missing", c.BrandID, c.Serial, c.Category)
	}
	if err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

// UpdateQuantity overwrites the quantity on hand.
func (r *ComponentRepo) UpdateQuantity(ctx context.Context, key model.ComponentKey, qty int64) error {
	if qty < 0 {
		return ErrNegativeQuantity
	}
	n, err := exec(ctx, r.DB, "UPDATE components SET quantity = ? WHERE brand_id = ? AND serial = ?",
		qty, key.BrandID, key.Serial)
	if err != nil {
		return err
	}
	if n == 0 {
		// MySQL reports zero affected rows when the value is unchanged.
		if _, err := r.Get(ctx, key); err != nil {
			return err
		}
	}
	return nil
}

// Delete removes a component and its category row. A component still
// attached to an order yields ErrForeignKey.
func (r *ComponentRepo) Delete(ctx context.Context, key model.ComponentKey) error {
	tx, err := r.DB.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	for _, table := range []string{"frame_sets", "handlebars", "wheels"} {
		if _, err := exec(ctx, tx, "DELETE FROM "+table+" WHERE brand_id = ? AND serial = ?",
			key.BrandID, key.Serial); err != nil {
			return err
		}
	}
	n, err := exec(ctx, tx, "DELETE FROM components WHERE brand_id = ? AND serial = ?", key.BrandID, key.Serial)
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

// DecrementTx takes n units of stock, but only if at least n are on hand.
// The guard is evaluated by the store so concurrent callers cannot take the
// quantity below zero.
func (r *ComponentRepo) DecrementTx(ctx context.Context, tx *sqlx.Tx, key model.ComponentKey, n int64) error {
	affected, err := exec(ctx, tx,
		"UPDATE components SET quantity = quantity - ? WHERE brand_id = ? AND serial = ? AND quantity >= ?",
		n, key.BrandID, key.Serial, n)
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrInsufficientStock
	}
	return nil
}
