package auth_test

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rehla/internal/auth"
	dErrors "rehla/pkg/domainerrors"
)

func TestValidator(t *testing.T) {
	v := auth.NewValidator("cms-secret")

	t.Run("valid token", func(t *testing.T) {
		claims, err := v.ValidateToken(signedToken(42, time.Now().Add(time.Hour)))
		require.NoError(t, err)
		assert.Equal(t, "42", claims.UserID)
	})

	t.Run("expired token", func(t *testing.T) {
		_, err := v.ValidateToken(signedToken(42, time.Now().Add(-time.Hour)))
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
		assert.Contains(t, err.Error(), "expired")
	})

	t.Run("wrong secret", func(t *testing.T) {
		_, err := auth.NewValidator("other").ValidateToken(signedToken(42, time.Now().Add(time.Hour)))
		assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	t.Run("unconfigured secret rejects everything", func(t *testing.T) {
		_, err := auth.NewValidator("").ValidateToken(signedToken(42, time.Now().Add(time.Hour)))
		assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	t.Run("token without user id", func(t *testing.T) {
		tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		}).SignedString([]byte("cms-secret"))
		require.NoError(t, err)
		_, err = v.ValidateToken(tok)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	t.Run("unsigned token", func(t *testing.T) {
		tok, err := jwt.NewWithClaims(jwt.SigningMethodNone, auth.Claims{
			UserID:           1,
			RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))},
		}).SignedString(jwt.UnsafeAllowNoneSignatureType)
		require.NoError(t, err)
		_, err = v.ValidateToken(tok)
		assert.Error(t, err)
	})
}

func TestSessionExpiry(t *testing.T) {
	now := time.Now()
	assert.False(t, (&auth.Session{}).Expired(now))
	assert.Zero(t, (&auth.Session{}).TTL(now))
	s := &auth.Session{ExpiresAt: now.Add(time.Minute)}
	assert.False(t, s.Expired(now))
	assert.Equal(t, time.Minute, s.TTL(now))
	assert.True(t, s.Expired(now.Add(time.Minute)))
}
