package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/iliyamo/bike-sales-counter/internal/model"
)

// OrderRepo stores orders and their component associations. Every order
// owns exactly three order_components rows, written and removed together
// with the order row.
type OrderRepo struct{ DB *sqlx.DB }

func NewOrderRepo(db *sqlx.DB) *OrderRepo { return &OrderRepo{DB: db} }

// NumberExistsTx reports whether the order number is already taken.
func (r *OrderRepo) NumberExistsTx(ctx context.Context, tx *sqlx.Tx, orderNumber int64) (bool, error) {
	return exists(ctx, tx, "SELECT COUNT(*) FROM orders WHERE order_number = ?", orderNumber)
}

// NumberExists is NumberExistsTx outside a transaction.
func (r *OrderRepo) NumberExists(ctx context.Context, orderNumber int64) (bool, error) {
	return exists(ctx, r.DB, "SELECT COUNT(*) FROM orders WHERE order_number = ?", orderNumber)
}

// SerialExistsTx reports whether a bike serial is already recorded.
func (r *OrderRepo) SerialExistsTx(ctx context.Context, tx *sqlx.Tx, serial int64) (bool, error) {
	return exists(ctx, tx, "SELECT COUNT(*) FROM orders WHERE bike_serial = ?", serial)
}

func exists(ctx context.Context, x sqlx.ExtContext, query string, arg interface{}) (bool, error) {
	var n int
	if err := sqlx.GetContext(ctx, x, &n, x.Rebind(query), arg); err != nil {
		return false, err
	}
	return n > 0, nil
}

// CreateTx inserts the order row and its three component rows. The caller
// owns tx and decides whether all four rows are committed.
func (r *OrderRepo) CreateTx(ctx context.Context, tx *sqlx.Tx, o model.Order, parts [3]model.ComponentKey) error {
	_, err := exec(ctx, tx, `INSERT INTO orders
    (order_number, customer_id, created_at, status, staff, bike_name, bike_serial, bike_brand)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		o.OrderNumber, o.CustomerID, o.CreatedAt, string(o.Status), o.Staff, o.BikeName, o.BikeSerial, o.BikeBrand)
	if err != nil {
		return fmt.Errorf("insert order %d: %w", o.OrderNumber, err)
	}
	// a single multi-row insert keeps the association atomic even without tx
	query := "INSERT INTO order_components (order_number, component_brand, component_serial) VALUES "
	args := make([]interface{}, 0, len(parts)*3)
	for i, p := range parts {
		if i > 0 {
			query += ", "
		}
		query += "(?, ?, ?)"
		args = append(args, o.OrderNumber, p.BrandID, p.Serial)
	}
	if _, err := exec(ctx, tx, query, args...); err != nil {
		return fmt.Errorf("insert order %d components: %w", o.OrderNumber, err)
	}
	return nil
}

// Delete removes an order and its component rows in one transaction.
func (r *OrderRepo) Delete(ctx context.Context, orderNumber int64) error {
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

	if _, err := exec(ctx, tx, "DELETE FROM order_components WHERE order_number = ?", orderNumber); err != nil {
		return err
	}
	n, err := exec(ctx, tx, "DELETE FROM orders WHERE order_number = ?", orderNumber)
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

// StatusTx reads the current status and locks the order row until tx ends.
func (r *OrderRepo) StatusTx(ctx context.Context, tx *sqlx.Tx, orderNumber int64) (model.Status, error) {
	var s string
	err := tx.GetContext(ctx, &s,
		tx.Rebind("SELECT status FROM orders WHERE order_number = ?"+forUpdate(tx)), orderNumber)
	if err != nil {
		return "", notFound(err)
	}
	return model.Status(s), nil
}

// AdvanceTx moves the order from one status to the next and records the
// staff member. The update only applies while the order is still in from;
// otherwise ErrConflict is returned and nothing changes.
func (r *OrderRepo) AdvanceTx(ctx context.Context, tx *sqlx.Tx, orderNumber int64, from, to model.Status, staff string) error {
	n, err := exec(ctx, tx, "UPDATE orders SET status = ?, staff = ? WHERE order_number = ? AND status = ?",
		string(to), staff, orderNumber, string(from))
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrConflict
	}
	return nil
}

// PartsTx returns the component keys attached to the order.
func (r *OrderRepo) PartsTx(ctx context.Context, tx *sqlx.Tx, orderNumber int64) ([]model.ComponentKey, error) {
	var keys []model.ComponentKey
	err := tx.SelectContext(ctx, &keys, tx.Rebind(`SELECT component_brand AS brand_id, component_serial AS serial
FROM order_components WHERE order_number = ? ORDER BY component_brand, component_serial`), orderNumber)
	return keys, err
}

// UpdateBikeName renames the bike on an order.
func (r *OrderRepo) UpdateBikeName(ctx context.Context, orderNumber int64, name string) error {
	n, err := exec(ctx, r.DB, "UPDATE orders SET bike_name = ? WHERE order_number = ?", name, orderNumber)
	if err != nil {
		return err
	}
	if n == 0 {
		if ok, err := r.NumberExists(ctx, orderNumber); err != nil {
			return err
		} else if !ok {
			return ErrNotFound
		}
	}
	return nil
}

const orderInfoFrom = `FROM orders o
JOIN customers cu ON cu.customer_id = o.customer_id
JOIN addresses a ON a.address_id = cu.address_id`

const orderInfoCols = `o.order_number, o.customer_id, o.created_at, o.status, o.staff, o.bike_name, o.bike_serial, o.bike_brand,
       cu.customer_id, cu.address_id, cu.forename, cu.surname,
       a.address_id, a.postcode, a.house_num, a.road_name, a.city_name`

// Get returns the full projection of one order.
func (r *OrderRepo) Get(ctx context.Context, orderNumber int64) (model.OrderInfo, error) {
	out, err := r.load(ctx, "o.order_number = ?", orderNumber)
	if err != nil {
		return model.OrderInfo{}, err
	}
	if len(out) == 0 {
		return model.OrderInfo{}, ErrNotFound
	}
	return out[0], nil
}

// ListAll returns every order ordered by number.
func (r *OrderRepo) ListAll(ctx context.Context) ([]model.OrderInfo, error) {
	return r.load(ctx, "1 = 1")
}

// ListByStatus returns the orders currently in status s.
func (r *OrderRepo) ListByStatus(ctx context.Context, s model.Status) ([]model.OrderInfo, error) {
	return r.load(ctx, "o.status = ?", string(s))
}

// ListByIdentity returns the orders of customers matching the identity.
// Inputs must already be sanitised.
func (r *OrderRepo) ListByIdentity(ctx context.Context, id model.Identity) ([]model.OrderInfo, error) {
	return r.load(ctx, "cu.forename = ? AND cu.surname = ? AND a.house_num = ? AND a.postcode = ?",
		id.Forename, id.Surname, id.HouseNum, id.Postcode)
}

// load runs the header query and the component query under the same filter
// and stitches the results together.
func (r *OrderRepo) load(ctx context.Context, where string, args ...interface{}) ([]model.OrderInfo, error) {
	rows, err := r.DB.QueryxContext(ctx,
		r.DB.Rebind("SELECT "+orderInfoCols+" "+orderInfoFrom+" WHERE "+where+" ORDER BY o.order_number"), args...)
	if err != nil {
		return nil, err
	}
	var out []model.OrderInfo
	index := make(map[int64]int)
	func() {
		defer rows.Close()
		for rows.Next() {
			var (
				oi      model.OrderInfo
				status  string
				staff   sql.NullString
				created time.Time
			)
			if err = rows.Scan(
				&oi.Order.OrderNumber, &oi.Order.CustomerID, &created, &status, &staff,
				&oi.Order.BikeName, &oi.Order.BikeSerial, &oi.Order.BikeBrand,
				&oi.Customer.ID, &oi.Customer.AddressID, &oi.Customer.Forename, &oi.Customer.Surname,
				&oi.Address.ID, &oi.Address.Postcode, &oi.Address.HouseNum, &oi.Address.RoadName, &oi.Address.CityName,
			); err != nil {
				return
			}
			oi.Order.CreatedAt = created.UTC()
			oi.Order.Status = model.Status(status)
			if staff.Valid {
				s := staff.String
				oi.Order.Staff = &s
			}
			index[oi.Order.OrderNumber] = len(out)
			out = append(out, oi)
		}
		err = rows.Err()
	}()
	if err != nil || len(out) == 0 {
		return out, err
	}

	q := "SELECT o.order_number, " + componentCols + `
FROM order_components oc
JOIN (` + allComponents + `) u ON u.brand_id = oc.component_brand AND u.serial = oc.component_serial
JOIN orders o ON o.order_number = oc.order_number
JOIN customers cu ON cu.customer_id = o.customer_id
JOIN addresses a ON a.address_id = cu.address_id
WHERE ` + where
	crows, err := r.DB.QueryxContext(ctx, r.DB.Rebind(q), args...)
	if err != nil {
		return nil, err
	}
	defer crows.Close()
	for crows.Next() {
		var (
			number int64
			row    componentRow
		)
		if err := crows.Scan(append([]interface{}{&number}, row.dest()...)...); err != nil {
			return nil, err
		}
		c, err := row.component()
		if err != nil {
			return nil, err
		}
		i, ok := index[number]
		if !ok {
			continue
		}
		switch c.Category {
		case model.CategoryFrameSet:
			out[i].FrameSet = c
		case model.CategoryHandlebar:
			out[i].Handlebar = c
		case model.CategoryWheel:
			out[i].Wheel = c
		}
	}
	return out, crows.Err()
}
