package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
)

// TokenRepo persists/validates staff refresh tokens (single 'token_hash' column).
type TokenRepo struct{ DB *sqlx.DB }

func NewTokenRepo(db *sqlx.DB) *TokenRepo { return &TokenRepo{DB: db} }

// StoreRefresh inserts a refresh token hash row.
func (r *TokenRepo) StoreRefresh(ctx context.Context, staffID int64, tokenHash string, exp time.Time) error {
	_, err := exec(ctx, r.DB,
		"INSERT INTO staff_refresh_tokens (staff_id, token_hash, expires_at, created_at) VALUES (?, ?, ?, ?)",
		staffID, tokenHash, exp.UTC(), time.Now().UTC())
	return err
}

// ValidateRefresh returns the staff id if a non-revoked, non-expired token exists.
func (r *TokenRepo) ValidateRefresh(ctx context.Context, tokenHash string) (int64, error) {
	var (
		staffID   int64
		expiresAt time.Time
		revokedAt sql.NullTime
	)
	err := r.DB.QueryRowxContext(ctx,
		r.DB.Rebind("SELECT staff_id, expires_at, revoked_at FROM staff_refresh_tokens WHERE token_hash = ?"),
		tokenHash).Scan(&staffID, &expiresAt, &revokedAt)
	if err != nil {
		return 0, notFound(err)
	}
	if revokedAt.Valid {
		return 0, ErrNotFound
	}
	if time.Now().UTC().After(expiresAt) {
		return 0, ErrNotFound
	}
	return staffID, nil
}

// RevokeByHash marks a token as revoked.
func (r *TokenRepo) RevokeByHash(ctx context.Context, tokenHash string) error {
	_, err := exec(ctx, r.DB,
		"UPDATE staff_refresh_tokens SET revoked_at = ? WHERE token_hash = ? AND revoked_at IS NULL",
		time.Now().UTC(), tokenHash)
	return err
}

// RevokeAllForStaff revokes all of a staff member's active tokens.
func (r *TokenRepo) RevokeAllForStaff(ctx context.Context, staffID int64) error {
	_, err := exec(ctx, r.DB,
		"UPDATE staff_refresh_tokens SET revoked_at = ? WHERE staff_id = ? AND revoked_at IS NULL",
		time.Now().UTC(), staffID)
	return err
}

// RotateRefresh revokes oldHash and stores newHash in one transaction so a
// refresh token can be spent exactly once.
func (r *TokenRepo) RotateRefresh(ctx context.Context, staffID int64, oldHash, newHash string, exp time.Time) error {
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

	now := time.Now().UTC()
	n, err := exec(ctx, tx,
		"UPDATE staff_refresh_tokens SET revoked_at = ? WHERE token_hash = ? AND staff_id = ? AND revoked_at IS NULL",
		now, oldHash, staffID)
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrConflict
	}
	if _, err := exec(ctx, tx,
		"INSERT INTO staff_refresh_tokens (staff_id, token_hash, expires_at, created_at) VALUES (?, ?, ?, ?)",
		staffID, newHash, exp.UTC(), now); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}
