package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/bike-sales-counter/internal/model"
	"github.com/iliyamo/bike-sales-counter/internal/utils"
)

func TestAccountsLogin(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	id, err := h.accounts.CreateStaff(ctx, " Alice ", []byte("correct horse"))
	require.NoError(t, err)

	pw := []byte("correct horse")
	st, err := h.accounts.Login(ctx, "ALICE", pw)
	require.NoError(t, err)
	assert.Equal(t, id, st.ID)
	assert.Equal(t, "alice", st.Username)
	assert.Equal(t, make([]byte, len(pw)), pw, "password must be wiped")

	_, err = h.accounts.Login(ctx, "alice", []byte("wrong horse"))
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = h.accounts.Login(ctx, "mallory", []byte("correct horse"))
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = h.db.Exec("UPDATE staff SET hashed_password = 'sha512:bogus' WHERE staff_id = ?", id)
	require.NoError(t, err)
	_, err = h.accounts.Login(ctx, "alice", []byte("correct horse"))
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestAccountsCreateStaffValidation(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.accounts.CreateStaff(ctx, "", []byte("long enough"))
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = h.accounts.CreateStaff(ctx, "bob", []byte("short"))
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = h.accounts.CreateStaff(ctx, "bob", []byte("long enough"))
	require.NoError(t, err)
	_, err = h.accounts.CreateStaff(ctx, "BOB", []byte("long enough"))
	assert.ErrorIs(t, err, ErrDuplicate)
}

func TestAccountsSessionRotation(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	id, err := h.accounts.CreateStaff(ctx, "alice", []byte("correct horse"))
	require.NoError(t, err)

	s, err := h.accounts.IssueSession(ctx, model.Staff{ID: id, Username: "alice"})
	require.NoError(t, err)
	claims, err := utils.ParseAccessToken("test-secret", s.AccessToken.Token)
	require.NoError(t, err)
	assert.Equal(t, model.RoleStaff, claims.Role)
	sub, err := claims.StaffID()
	require.NoError(t, err)
	assert.Equal(t, id, sub)

	next, err := h.accounts.Refresh(ctx, s.RefreshToken.Raw)
	require.NoError(t, err)
	assert.NotEqual(t, s.RefreshToken.Raw, next.RefreshToken.Raw)

	_, err = h.accounts.Refresh(ctx, s.RefreshToken.Raw)
	assert.ErrorIs(t, err, ErrInvalidCredentials, "a spent refresh token must not work twice")

	require.NoError(t, h.accounts.Logout(ctx, next.RefreshToken.Raw))
	_, err = h.accounts.Refresh(ctx, next.RefreshToken.Raw)
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestAccountsSetPasswordRevokesSessions(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	id, err := h.accounts.CreateStaff(ctx, "alice", []byte("correct horse"))
	require.NoError(t, err)
	s, err := h.accounts.IssueSession(ctx, model.Staff{ID: id, Username: "alice"})
	require.NoError(t, err)

	require.NoError(t, h.accounts.SetPassword(ctx, "alice", []byte("battery staple")))
	_, err = h.accounts.Refresh(ctx, s.RefreshToken.Raw)
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = h.accounts.Login(ctx, "alice", []byte("battery staple"))
	assert.NoError(t, err)
}
