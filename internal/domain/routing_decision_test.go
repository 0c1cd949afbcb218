package domain_test

import (
	"testing"
	"time"

	"github.com/concierge-dev/concierge/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRoutingDecision(t *testing.T) {
	t.Run("creates valid decision", func(t *testing.T) {
		decision, err := domain.NewRoutingDecision(
			"open issue in repo X",
			domain.TierRegex,
			"code-hosting",
			1.0,
			750*time.Microsecond,
		)
		require.NoError(t, err)

		assert.Equal(t, domain.TierRegex, decision.TierUsed)
		assert.Equal(t, "code-hosting", decision.SelectedHandler)
		assert.Equal(t, 1.0, decision.Confidence)
		assert.Equal(t, int64(0), decision.LatencyMs, "sub-millisecond latency rounds down")
		assert.False(t, decision.CreatedAt.IsZero())
	})

	t.Run("rejects whitespace-only query", func(t *testing.T) {
		_, err := domain.NewRoutingDecision("   \t\n", domain.TierHybrid, "email", 0.8, time.Millisecond)
		assert.ErrorIs(t, err, domain.ErrQueryEmpty)
	})

	t.Run("rejects unknown tier", func(t *testing.T) {
		_, err := domain.NewRoutingDecision("query", domain.RoutingTier("oracle"), "email", 0.8, time.Millisecond)
		assert.ErrorIs(t, err, domain.ErrDecisionTierInvalid)
	})

	t.Run("rejects empty handler", func(t *testing.T) {
		_, err := domain.NewRoutingDecision("query", domain.TierFallback, "", 0.5, time.Millisecond)
		assert.ErrorIs(t, err, domain.ErrDecisionHandlerEmpty)
	})

	t.Run("rejects confidence out of range", func(t *testing.T) {
		_, err := domain.NewRoutingDecision("query", domain.TierHybrid, "email", 1.2, time.Millisecond)
		assert.ErrorIs(t, err, domain.ErrDecisionConfidenceInvalid)

		_, err = domain.NewRoutingDecision("query", domain.TierHybrid, "email", -0.1, time.Millisecond)
		assert.ErrorIs(t, err, domain.ErrDecisionConfidenceInvalid)
	})
}
