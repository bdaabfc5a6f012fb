package jwtauth

import (
	"context"
	"errors"
	"testing"
	"time"

	"animal-shelter/internal/ports/auth"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const secret = "test-secret-0123456789"

func TestVerify_RoundTrip(t *testing.T) {
	tok, err := Sign(secret, "shelter-idp", auth.Claims{
		UserID: "u-1",
		Email:  "ana@example.org",
		Roles:  []auth.Role{auth.RoleCoordinator, auth.RoleVet},
	}, time.Hour)
	require.NoError(t, err)

	c, err := NewVerifier(secret, "shelter-idp").Verify(context.Background(), tok)
	require.NoError(t, err)
	assert.Equal(t, "u-1", c.UserID)
	assert.Equal(t, "ana@example.org", c.Email)
	assert.Equal(t, []auth.Role{auth.RoleCoordinator, auth.RoleVet}, c.Roles)
}

func TestVerify_Rejects(t *testing.T) {
	ctx := context.Background()
	valid, err := Sign(secret, "shelter-idp", auth.Claims{UserID: "u-1"}, time.Hour)
	require.NoError(t, err)

	t.Run("empty", func(t *testing.T) {
		_, err := NewVerifier(secret, "").Verify(ctx, "  ")
		assert.ErrorIs(t, err, ErrTokenEmpty)
	})

	t.Run("wrong secret", func(t *testing.T) {
		_, err := NewVerifier("another-secret-0123456", "").Verify(ctx, valid)
		assert.ErrorIs(t, err, jwt.ErrTokenSignatureInvalid)
	})

	t.Run("wrong issuer", func(t *testing.T) {
		_, err := NewVerifier(secret, "someone-else").Verify(ctx, valid)
		assert.ErrorIs(t, err, jwt.ErrTokenInvalidIssuer)
	})

	t.Run("expired", func(t *testing.T) {
		v := NewVerifier(secret, "")
		v.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
		_, err := v.Verify(ctx, valid)
		assert.ErrorIs(t, err, jwt.ErrTokenExpired)
	})

	t.Run("not configured", func(t *testing.T) {
		_, err := NewVerifier("", "").Verify(ctx, valid)
		assert.True(t, errors.Is(err, ErrNotConfigured))
	})

	t.Run("no subject", func(t *testing.T) {
		claims := shelterClaims{RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		}}
		tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
		require.NoError(t, err)

		_, err = NewVerifier(secret, "").Verify(ctx, tok)
		assert.ErrorIs(t, err, ErrMissingSubject)
	})
}
