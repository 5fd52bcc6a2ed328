package model

import "time"

// Staff represents a shop staff account as stored in the `staff` table.
// Only staff accounts log in; shoppers identify themselves by name and
// address when looking up an order.
//
// Fields:
//  ID             – primary key identifier.
//  Username       – unique login name.
//  HashedPassword – PBKDF2 encoded hash "sha512:<iter>:<len>:<salt>:<hash>".
type Staff struct {
	ID             int64  `db:"staff_id"`
	Username       string `db:"username"`
	HashedPassword string `db:"hashed_password"`
}

// RefreshToken models an entry in the `staff_refresh_tokens` table. The
// plain token is never stored; only its SHA-256 hash.
//
// Fields:
//  ID        – primary key identifier.
//  StaffID   – owner of the token.
//  TokenHash – SHA-256 hex digest of the token value.
//  ExpiresAt – expiration timestamp of the token.
//  RevokedAt – when the token was revoked (null if still active).
type RefreshToken struct {
	ID        int64      `db:"id"`
	StaffID   int64      `db:"staff_id"`
	TokenHash string     `db:"token_hash"`
	ExpiresAt time.Time  `db:"expires_at"`
	RevokedAt *time.Time `db:"revoked_at"`
}

// RoleStaff is the role claim carried by staff access tokens.
const RoleStaff = "STAFF"
