package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/iliyamo/bike-sales-counter/internal/model"
)

// CustomerRepo manages customers. Reads join the referenced address.
type CustomerRepo struct{ DB *sqlx.DB }

func NewCustomerRepo(db *sqlx.DB) *CustomerRepo { return &CustomerRepo{DB: db} }

const customerInfoQuery = `SELECT cu.customer_id, cu.address_id, cu.forename, cu.surname,
       a.address_id, a.postcode, a.house_num, a.road_name, a.city_name
FROM customers cu
JOIN addresses a ON a.address_id = cu.address_id`

func scanCustomerInfo(row interface{ Scan(...interface{}) error }) (model.CustomerInfo, error) {
	var ci model.CustomerInfo
	err := row.Scan(&ci.Customer.ID, &ci.Customer.AddressID, &ci.Customer.Forename, &ci.Customer.Surname,
		&ci.Address.ID, &ci.Address.Postcode, &ci.Address.HouseNum, &ci.Address.RoadName, &ci.Address.CityName)
	return ci, err
}

// Get fetches a customer with its address.
func (r *CustomerRepo) Get(ctx context.Context, id int64) (model.CustomerInfo, error) {
	return getCustomer(ctx, r.DB, id)
}

// GetTx is Get inside tx.
func (r *CustomerRepo) GetTx(ctx context.Context, tx *sqlx.Tx, id int64) (model.CustomerInfo, error) {
	return getCustomer(ctx, tx, id)
}

func getCustomer(ctx context.Context, x sqlx.ExtContext, id int64) (model.CustomerInfo, error) {
	ci, err := scanCustomerInfo(x.QueryRowxContext(ctx, x.Rebind(customerInfoQuery+" WHERE cu.customer_id = ?"), id))
	return ci, notFound(err)
}

// FindByIdentity matches a customer by name and address. All inputs must
// already be sanitised. When several rows match the oldest customer wins.
func (r *CustomerRepo) FindByIdentity(ctx context.Context, id model.Identity) (model.CustomerInfo, error) {
	return findByIdentity(ctx, r.DB, id)
}

// FindByIdentityTx is FindByIdentity inside tx.
func (r *CustomerRepo) FindByIdentityTx(ctx context.Context, tx *sqlx.Tx, id model.Identity) (model.CustomerInfo, error) {
	return findByIdentity(ctx, tx, id)
}

func findByIdentity(ctx context.Context, x sqlx.ExtContext, id model.Identity) (model.CustomerInfo, error) {
	q := customerInfoQuery + `
WHERE cu.forename = ? AND cu.surname = ? AND a.house_num = ? AND a.postcode = ?
ORDER BY cu.customer_id LIMIT 1`
	ci, err := scanCustomerInfo(x.QueryRowxContext(ctx, x.Rebind(q), id.Forename, id.Surname, id.HouseNum, id.Postcode))
	return ci, notFound(err)
}

// List returns every customer ordered by surname then forename.
func (r *CustomerRepo) List(ctx context.Context) ([]model.CustomerInfo, error) {
	rows, err := r.DB.QueryxContext(ctx, customerInfoQuery+" ORDER BY cu.surname, cu.forename, cu.customer_id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.CustomerInfo
	for rows.Next() {
		ci, err := scanCustomerInfo(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, ci)
	}
	return out, rows.Err()
}

// CreateTx inserts c and sets its generated id.
func (r *CustomerRepo) CreateTx(ctx context.Context, tx *sqlx.Tx, c *model.Customer) error {
	id, err := insertID(ctx, tx,
		"INSERT INTO customers (address_id, forename, surname) VALUES (?, ?, ?)", "customer_id",
		c.AddressID, c.Forename, c.Surname)
	if err != nil {
		return err
	}
	c.ID = id
	return nil
}

// Update persists forename, surname and address reference.
func (r *CustomerRepo) Update(ctx context.Context, c model.Customer) error {
	return updateCustomer(ctx, r.DB, c)
}

// UpdateTx is Update inside tx.
func (r *CustomerRepo) UpdateTx(ctx context.Context, tx *sqlx.Tx, c model.Customer) error {
	return updateCustomer(ctx, tx, c)
}

func updateCustomer(ctx context.Context, x sqlx.ExtContext, c model.Customer) error {
	n, err := exec(ctx, x, "UPDATE customers SET forename = ?, surname = ?, address_id = ? WHERE customer_id = ?",
		c.Forename, c.Surname, c.AddressID, c.ID)
	if err != nil {
		return err
	}
	if n == 0 {
		// MySQL counts unchanged rows as unaffected.
		var one int
		if err := sqlx.GetContext(ctx, x, &one,
			x.Rebind("SELECT 1 FROM customers WHERE customer_id = ?"), c.ID); err != nil {
			return notFound(err)
		}
	}
	return nil
}
