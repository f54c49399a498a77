// Package auth resolves an optional user identity from an incoming
// request. Adventures work anonymously; a valid token only adds resumption
// by user id on top of resumption by state id.
package auth

import (
	"fmt"
	"net/http"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
)

// IdentityResolver extracts an optional user id from a request. An empty
// string means anonymous.
type IdentityResolver interface {
	OptionalUserID(r *http.Request) string
}

type jwtResolver struct {
	secret []byte
	logger zerolog.Logger
}

// NewJWTResolver builds a resolver that reads the 'token' query parameter
// and verifies it as an HMAC-signed JWT. Anything invalid degrades to
// anonymous with a warning, never an error.
func NewJWTResolver(secret string, logger zerolog.Logger) IdentityResolver {
	return &jwtResolver{
		secret: []byte(secret),
		logger: logger.With().Str("component", "IdentityResolver").Logger(),
	}
}

func (res *jwtResolver) OptionalUserID(r *http.Request) string {
	tokenString := r.URL.Query().Get("token")
	if tokenString == "" {
		return ""
	}

	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return res.secret, nil
	})
	if err != nil || !token.Valid {
		res.logger.Warn().Err(err).Msg("invalid token on websocket connect, treating as anonymous")
		return ""
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return ""
	}
	sub, _ := claims["sub"].(string)
	return sub
}

// Anonymous is a resolver that always returns the empty identity. Used
// when no JWT secret is configured.
type Anonymous struct{}

func (Anonymous) OptionalUserID(*http.Request) string { return "" }
