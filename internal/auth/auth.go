// Package auth validates the bearer credential on every externally reachable
// route and exposes the decoded identity to the rest of the pipeline. The raw
// credential is carried forward unmodified on outbound hops; tokens are never
// re-minted mid-pipeline.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/hakambing/GuardianCare/internal/domain"
)

// Identity is the decoded caller of a request, plus the raw credential that
// must accompany every downstream hop made on the caller's behalf.
type Identity struct {
	ElderlyID string
	Token     string
}

// Claims is the JWT payload issued by the auth service.
type Claims struct {
	UserID string `json:"userId"`
	jwt.RegisteredClaims
}

// Verifier validates HS256 bearer tokens against a shared signing secret.
type Verifier struct {
	secret []byte
}

func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: []byte(secret)}
}

// Verify parses and validates a raw token string. All failures map onto
// domain.ErrUnauthorized; the message distinguishes expiry for the caller's
// benefit only.
func (v *Verifier) Verify(token string) (Identity, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return v.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Identity{}, fmt.Errorf("%w: token has expired", domain.ErrUnauthorized)
		}
		return Identity{}, fmt.Errorf("%w: invalid token", domain.ErrUnauthorized)
	}
	if claims.UserID == "" {
		return Identity{}, fmt.Errorf("%w: token carries no user id", domain.ErrUnauthorized)
	}
	return Identity{ElderlyID: claims.UserID, Token: token}, nil
}

// FromRequestHeader extracts and verifies the bearer token from an
// Authorization header value.
func (v *Verifier) FromRequestHeader(header string) (Identity, error) {
	raw, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || raw == "" {
		return Identity{}, fmt.Errorf("%w: authorization header required", domain.ErrUnauthorized)
	}
	return v.Verify(raw)
}

type ctxKey struct{}

// WithIdentity stores the caller identity on the context.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// IdentityFrom returns the caller identity stored by the middleware.
func IdentityFrom(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(ctxKey{}).(Identity)
	return id, ok
}
