package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/adminwatch/internal/apperror"
	"github.com/smallbiznis/adminwatch/internal/clock"
	"github.com/smallbiznis/adminwatch/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newManager(t *testing.T, clk clock.Clock) *TokenManager {
	t.Helper()
	m, err := NewTokenManager(config.Config{AuthJWTSecret: "test-secret", AuthTokenTTL: time.Hour}, clk)
	require.NoError(t, err)
	return m
}

func TestTokenRoundTrip(t *testing.T) {
	clk := clock.NewFakeClock(time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC))
	m := newManager(t, clk)

	token, err := m.GenerateAdminToken(1234)
	require.NoError(t, err)

	claims, err := m.ParseAdminToken(token)
	require.NoError(t, err)
	id, err := claims.ParsedAdminID()
	require.NoError(t, err)
	assert.Equal(t, snowflake.ID(1234), id)
}

func TestExpiredTokenIsUnauthorized(t *testing.T) {
	clk := clock.NewFakeClock(time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC))
	m := newManager(t, clk)

	token, err := m.GenerateAdminToken(1)
	require.NoError(t, err)

	clk.Advance(2 * time.Hour)
	_, err = m.ParseAdminToken(token)
	assert.ErrorIs(t, err, ErrExpiredToken)
	assert.True(t, errors.Is(err, apperror.ErrUnauthorized))
}

func TestTokenSignedWithOtherSecretIsRejected(t *testing.T) {
	clk := clock.NewFakeClock(time.Now().UTC())
	other, err := NewTokenManager(config.Config{AuthJWTSecret: "other"}, clk)
	require.NoError(t, err)
	token, err := other.GenerateAdminToken(1)
	require.NoError(t, err)

	_, err = newManager(t, clk).ParseAdminToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestProductionRequiresSecret(t *testing.T) {
	_, err := NewTokenManager(config.Config{Environment: "production"}, clock.SystemClock{})
	assert.ErrorIs(t, err, ErrNoSecret)
}

func TestBearerToken(t *testing.T) {
	assert.Equal(t, "abc", BearerToken("Bearer abc"))
	assert.Equal(t, "abc", BearerToken("bearer  abc "))
	assert.Equal(t, "", BearerToken("Basic abc"))
	assert.Equal(t, "", BearerToken(""))
}
