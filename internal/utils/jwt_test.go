package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAccessTokenRoundTrip(t *testing.T) {
	tok, err := NewAccessToken("s3cret", 42, "alice", "STAFF", 5)
	require.NoError(t, err)

	claims, err := ParseAccessToken("s3cret", tok.Token)
	require.NoError(t, err)
	id, err := claims.StaffID()
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)
	assert.Equal(t, "alice", claims.Username)
	assert.Equal(t, "STAFF", claims.Role)
}

func TestAccessTokenWrongSecret(t *testing.T) {
	tok, err := NewAccessToken("s3cret", 1, "bob", "STAFF", 5)
	require.NoError(t, err)

	_, err = ParseAccessToken("other", tok.Token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestAccessTokenExpired(t *testing.T) {
	tok, err := NewAccessToken("s3cret", 1, "bob", "STAFF", -1)
	require.NoError(t, err)

	_, err = ParseAccessToken("s3cret", tok.Token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestRefreshTokenHash(t *testing.T) {
	rt, err := NewRefreshToken(1)
	require.NoError(t, err)
	assert.Len(t, rt.Raw, 96)
	assert.Len(t, HashRefreshRaw(rt.Raw), 64)
	assert.Equal(t, HashRefreshRaw(rt.Raw), HashRefreshRaw(rt.Raw))
}
