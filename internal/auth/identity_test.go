package auth_test

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"adventure-server/internal/auth"
)

const testSecret = "test-secret-for-identity"

func signedToken(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func TestJWTResolver(t *testing.T) {
	resolver := auth.NewJWTResolver(testSecret, zerolog.Nop())

	t.Run("valid token yields the subject", func(t *testing.T) {
		token := signedToken(t, testSecret, jwt.MapClaims{
			"sub": "user-42",
			"exp": time.Now().Add(time.Hour).Unix(),
		})
		r := httptest.NewRequest("GET", "/ws?token="+token, nil)
		assert.Equal(t, "user-42", resolver.OptionalUserID(r))
	})

	t.Run("no token is anonymous", func(t *testing.T) {
		r := httptest.NewRequest("GET", "/ws", nil)
		assert.Empty(t, resolver.OptionalUserID(r))
	})

	t.Run("wrong signature is anonymous", func(t *testing.T) {
		token := signedToken(t, "some-other-secret", jwt.MapClaims{"sub": "user-42"})
		r := httptest.NewRequest("GET", "/ws?token="+token, nil)
		assert.Empty(t, resolver.OptionalUserID(r))
	})

	t.Run("expired token is anonymous", func(t *testing.T) {
		token := signedToken(t, testSecret, jwt.MapClaims{
			"sub": "user-42",
			"exp": time.Now().Add(-time.Hour).Unix(),
		})
		r := httptest.NewRequest("GET", "/ws?token="+token, nil)
		assert.Empty(t, resolver.OptionalUserID(r))
	})
}

func TestAnonymous(t *testing.T) {
	r := httptest.NewRequest("GET", "/ws?token=whatever", nil)
	assert.Empty(t, auth.Anonymous{}.OptionalUserID(r))
}
