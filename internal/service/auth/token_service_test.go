package auth

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/concierge-dev/concierge/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func testAuthConfig() config.AuthConfig {
	return config.AuthConfig{
		JWTSecret:            strings.Repeat("s", 32),
		TokenLifetimeMinutes: 60,
	}
}

func TestNewTokenServiceRejectsShortSecret(t *testing.T) {
	cfg := testAuthConfig()
	cfg.JWTSecret = "too-short"
	_, err := NewTokenService(cfg)
	assert.Error(t, err)
}

func TestIssueAndValidateToken(t *testing.T) {
	svc, err := NewTokenService(testAuthConfig())
	require.NoError(t, err)

	token, expiresAt, err := svc.IssueToken(context.Background(), "dashboard")
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.WithinDuration(t, time.Now().Add(time.Hour), expiresAt, 5*time.Second)

	claims, err := svc.ValidateToken(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, "dashboard", claims.Subject)
	assert.NotEmpty(t, claims.ID)
	assert.WithinDuration(t, expiresAt, claims.ExpiresAt, time.Second)
}

func TestValidateTokenRejectsGarbage(t *testing.T) {
	svc, err := NewTokenService(testAuthConfig())
	require.NoError(t, err)

	_, err = svc.ValidateToken(context.Background(), "not.a.token")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestValidateTokenRejectsWrongKey(t *testing.T) {
	issuer, err := NewTokenService(testAuthConfig())
	require.NoError(t, err)

	otherCfg := testAuthConfig()
	otherCfg.JWTSecret = strings.Repeat("x", 32)
	validator, err := NewTokenService(otherCfg)
	require.NoError(t, err)

	token, _, err := issuer.IssueToken(context.Background(), "dashboard")
	require.NoError(t, err)

	_, err = validator.ValidateToken(context.Background(), token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestValidateTokenRejectsExpired(t *testing.T) {
	svc, err := NewTokenService(testAuthConfig())
	require.NoError(t, err)

	impl := svc.(*hmacTokenService)
	issuedAt := time.Now().Add(-24 * time.Hour)
	impl.timeFunc = func() time.Time { return issuedAt }

	token, _, err := svc.IssueToken(context.Background(), "dashboard")
	require.NoError(t, err)

	impl.timeFunc = time.Now
	_, err = svc.ValidateToken(context.Background(), token)
	assert.ErrorIs(t, err, ErrExpiredToken)
}

func TestBcryptVerifier(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("swordfish"), bcrypt.MinCost)
	require.NoError(t, err)

	v := NewBcryptVerifier()
	assert.NoError(t, v.Compare(string(hash), "swordfish"))
	assert.Error(t, v.Compare(string(hash), "wrong"))
}
