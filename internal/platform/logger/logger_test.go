package logger_test

import (
	"context"
	"log/slog"
	"os"
	"testing"

	"github.com/concierge-dev/concierge/internal/platform/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetup(t *testing.T) {
	tests := []struct {
		name     string
		logLevel string
	}{
		{name: "debug level", logLevel: "debug"},
		{name: "info level", logLevel: "info"},
		{name: "warn level", logLevel: "warn"},
		{name: "error level", logLevel: "error"},
		{name: "case insensitive", logLevel: "DEBUG"},
		{name: "invalid level falls back to info", logLevel: "verbose"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			log, err := logger.Setup(tt.logLevel)
			require.NoError(t, err)
			assert.NotNil(t, log)
		})
	}
}

func TestWithLoggerAndFromContext(t *testing.T) {
	base := slog.New(slog.NewTextHandler(os.Stderr, nil)).With("component", "test")

	ctx := logger.WithLogger(context.Background(), base)
	assert.Same(t, base, logger.FromContext(ctx))
}

func TestFromContextFallsBackToDefault(t *testing.T) {
	log := logger.FromContext(context.Background())
	assert.NotNil(t, log)
	assert.Same(t, slog.Default(), log)
}

func TestFromContextOrDefault(t *testing.T) {
	def := slog.New(slog.NewTextHandler(os.Stderr, nil))

	t.Run("returns context logger when present", func(t *testing.T) {
		stored := slog.New(slog.NewTextHandler(os.Stderr, nil))
		ctx := logger.WithLogger(context.Background(), stored)
		assert.Same(t, stored, logger.FromContextOrDefault(ctx, def))
	})

	t.Run("returns default when context has no logger", func(t *testing.T) {
		assert.Same(t, def, logger.FromContextOrDefault(context.Background(), def))
	})

	t.Run("returns process default when both missing", func(t *testing.T) {
		assert.NotNil(t, logger.FromContextOrDefault(context.Background(), nil))
	})
}
