package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/concierge-dev/concierge/internal/config"
	"github.com/concierge-dev/concierge/internal/service"
	"github.com/concierge-dev/concierge/internal/service/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func newTokenService(t *testing.T) auth.TokenService {
	t.Helper()
	tokens, err := auth.NewTokenService(config.AuthConfig{
		JWTSecret:            "0123456789abcdef0123456789abcdef",
		TokenLifetimeMinutes: 60,
	})
	require.NoError(t, err)
	return tokens
}

func newAuthService(t *testing.T, tokens auth.TokenService, apiKey string) *service.AuthService {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(apiKey), bcrypt.MinCost)
	require.NoError(t, err)
	return service.NewAuthService(tokens, auth.NewBcryptVerifier(), string(hash), discardLogger())
}

func TestAuthenticateIssuesToken(t *testing.T) {
	svc := newAuthService(t, newTokenService(t), "letmein-please")

	token, expiresAt, err := svc.Authenticate(context.Background(), "letmein-please")
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.True(t, expiresAt.After(time.Now()))
}

func TestAuthenticateRejectsWrongKey(t *testing.T) {
	svc := newAuthService(t, newTokenService(t), "letmein-please")

	_, _, err := svc.Authenticate(context.Background(), "wrong-key")
	assert.ErrorIs(t, err, auth.ErrInvalidAPIKey)
}

func TestIssuedTokenValidates(t *testing.T) {
	tokens := newTokenService(t)
	svc := newAuthService(t, tokens, "letmein-please")

	token, _, err := svc.Authenticate(context.Background(), "letmein-please")
	require.NoError(t, err)

	claims, err := tokens.ValidateToken(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, "dashboard", claims.Subject)
}
