package api

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/motion-backend/motion-smoke/internal/motion/store"
)

// TokenTTL is the lifetime of a sign-in token.
const TokenTTL = 24 * time.Hour

// TokenIssuer signs HS256 session tokens with a shared secret.
type TokenIssuer struct {
	secret []byte
	clock  *store.Clock
}

// NewTokenIssuer returns nil when secret is empty, which makes sign-in
// answer without a token.
func NewTokenIssuer(secret string, clock *store.Clock) *TokenIssuer {
	if secret == "" {
		return nil
	}
	return &TokenIssuer{secret: []byte(secret), clock: clock}
}

// Issue creates a token with sub, email, iat and exp claims.
func (ti *TokenIssuer) Issue(userID, email string) (string, error) {
	now := ti.now()
	claims := jwt.MapClaims{
		"sub":   userID,
		"email": email,
		"iat":   now.Unix(),
		"exp":   now.Add(TokenTTL).Unix(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(ti.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign JWT: %w", err)
	}
	return signed, nil
}

// Verify checks the signature and expiry of token against the issuer's
// clock and returns its claims.
func (ti *TokenIssuer) Verify(token string) (jwt.MapClaims, error) {
	claims := jwt.MapClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return ti.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(ti.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, err
	}
	if sub, _ := claims.GetSubject(); sub == "" {
		return nil, errors.New("token has no subject")
	}
	return claims, nil
}

func (ti *TokenIssuer) now() time.Time {
	if ti.clock == nil {
		return time.Now()
	}
	return ti.clock.Now()
}
