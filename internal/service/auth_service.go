package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/concierge-dev/concierge/internal/service/auth"
)

// AuthService exchanges the configured API key for a bearer token.
type AuthService struct {
	tokens     auth.TokenService
	verifier   auth.KeyVerifier
	apiKeyHash string
	logger     *slog.Logger
}

// NewAuthService creates an AuthService. apiKeyHash is the bcrypt hash
// of the dashboard API key from configuration.
func NewAuthService(
	tokens auth.TokenService,
	verifier auth.KeyVerifier,
	apiKeyHash string,
	logger *slog.Logger,
) *AuthService {
	return &AuthService{
		tokens:     tokens,
		verifier:   verifier,
		apiKeyHash: apiKeyHash,
		logger:     logger.With("component", "auth_service"),
	}
}

// Authenticate verifies the API key and issues a bearer token.
// Returns auth.ErrInvalidAPIKey on mismatch.
func (s *AuthService) Authenticate(ctx context.Context, apiKey string) (string, time.Time, error) {
	if err := s.verifier.Compare(s.apiKeyHash, apiKey); err != nil {
		s.logger.Warn("authentication failed: api key mismatch")
		return "", time.Time{}, auth.ErrInvalidAPIKey
	}

	token, expiresAt, err := s.tokens.IssueToken(ctx, "dashboard")
	if err != nil {
		return "", time.Time{}, err
	}

	s.logger.Info("bearer token issued", "expires_at", expiresAt)
	return token, expiresAt, nil
}
