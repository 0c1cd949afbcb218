// Package auth issues and validates the bearer tokens protecting the
// HTTP surface. Clients exchange the configured API key for a short
// lived HMAC-signed JWT; every other route requires that JWT.
package auth

import (
	"context"
	"time"
)

// TokenService defines operations for managing JWT bearer tokens.
type TokenService interface {
	// IssueToken creates a signed token for an authenticated client.
	// Returns the token string and its expiry time.
	IssueToken(ctx context.Context, subject string) (string, time.Time, error)

	// ValidateToken validates the provided token string and extracts the
	// claims. Returns an error if validation fails (expired, invalid
	// signature, malformed).
	ValidateToken(ctx context.Context, tokenString string) (*Claims, error)
}

// Claims is the validated content of a bearer token.
type Claims struct {
	Subject   string    `json:"sub,omitempty"`
	IssuedAt  time.Time `json:"iat,omitempty"`
	ExpiresAt time.Time `json:"exp,omitempty"`
	ID        string    `json:"jti,omitempty"`
}
