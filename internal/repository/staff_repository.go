package repository

import (
	"context"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/iliyamo/bike-sales-counter/internal/model"
)

// StaffRepo manages staff accounts.
type StaffRepo struct{ DB *sqlx.DB }

func NewStaffRepo(db *sqlx.DB) *StaffRepo { return &StaffRepo{DB: db} }

// Create inserts a staff member with an already encoded password hash and
// returns its ID. A taken username yields ErrDuplicate.
func (r *StaffRepo) Create(ctx context.Context, username, hashedPassword string) (int64, error) {
	username = strings.ToLower(strings.TrimSpace(username))
	return insertID(ctx, r.DB, "INSERT INTO staff (username, hashed_password) VALUES (?, ?)", "staff_id",
		username, hashedPassword)
}

// GetByUsername fetches a staff member by normalized username.
func (r *StaffRepo) GetByUsername(ctx context.Context, username string) (model.Staff, error) {
	username = strings.ToLower(strings.TrimSpace(username))
	var s model.Staff
	err := r.DB.GetContext(ctx, &s,
		r.DB.Rebind("SELECT staff_id, username, hashed_password FROM staff WHERE username = ?"), username)
	return s, notFound(err)
}

// GetByID fetches a staff member by id.
func (r *StaffRepo) GetByID(ctx context.Context, id int64) (model.Staff, error) {
	var s model.Staff
	err := r.DB.GetContext(ctx, &s,
		r.DB.Rebind("SELECT staff_id, username, hashed_password FROM staff WHERE staff_id = ?"), id)
	return s, notFound(err)
}

// SetPassword replaces the stored hash.
func (r *StaffRepo) SetPassword(ctx context.Context, id int64, hashedPassword string) error {
	n, err := exec(ctx, r.DB, "UPDATE staff SET hashed_password = ? WHERE staff_id = ?", hashedPassword, id)
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// List returns all staff ordered by username.
func (r *StaffRepo) List(ctx context.Context) ([]model.Staff, error) {
	var out []model.Staff
	err := r.DB.SelectContext(ctx, &out, "SELECT staff_id, username, hashed_password FROM staff ORDER BY username")
	return out, err
}
