// Package auth verifies bearer tokens issued by the identity provider.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/MicahParks/keyfunc/v3"
	"github.com/golang-jwt/jwt/v5"

	"inkwell/internal/domain"
)

// TokenVerifier validates a bearer token and resolves the user id it
// was issued to.
type TokenVerifier interface {
	VerifyToken(tokenString string) (string, error)
	// Close releases any resources held by the verifier.
	Close() error
}

// JWKSVerifier checks token signatures against keys fetched from a
// JWKS endpoint. The keyfunc client caches keys and refreshes them in
// the background.
type JWKSVerifier struct {
	jwks   keyfunc.Keyfunc
	logger *slog.Logger
}

// NewJWKSVerifier fetches the signing keys from jwksURL and returns a
// verifier backed by them.
func NewJWKSVerifier(jwksURL string, logger *slog.Logger) (*JWKSVerifier, error) {
	if jwksURL == "" {
		return nil, errors.New("jwks url cannot be empty")
	}

	jwks, err := keyfunc.NewDefaultCtx(context.Background(), []string{jwksURL})
	if err != nil {
		return nil, fmt.Errorf("create jwks client: %w", err)
	}

	logger.Info("token verifier initialized", "jwks_url", jwksURL)

	return &JWKSVerifier{jwks: jwks, logger: logger}, nil
}

// VerifyToken validates the token's signature, expiry, and algorithm,
// and returns its subject claim. Every failure maps to
// domain.ErrUnauthorized so callers cannot distinguish bad tokens from
// expired ones.
func (v *JWKSVerifier) VerifyToken(tokenString string) (string, error) {
	token, err := jwt.ParseWithClaims(tokenString, &jwt.RegisteredClaims{}, v.jwks.Keyfunc)
	if err != nil || !token.Valid {
		return "", domain.ErrUnauthorized
	}

	// Only asymmetric algorithms the provider actually signs with.
	switch token.Method.Alg() {
	case "RS256", "ES256":
	default:
		v.logger.Warn("token signed with unexpected algorithm", "algorithm", token.Method.Alg())
		return "", domain.ErrUnauthorized
	}

	claims, ok := token.Claims.(*jwt.RegisteredClaims)
	if !ok || claims.Subject == "" {
		return "", domain.ErrUnauthorized
	}

	return claims.Subject, nil
}

// Close is a no-op; the keyfunc client stops with its context.
func (v *JWKSVerifier) Close() error {
	return nil
}

// StaticVerifier resolves every token to one fixed user. It exists for
// local development where no identity provider is running.
type StaticVerifier struct {
	UserID string
}

func (v StaticVerifier) VerifyToken(string) (string, error) {
	return v.UserID, nil
}

func (v StaticVerifier) Close() error {
	return nil
}
