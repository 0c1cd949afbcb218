package postgres

import (
	"database/sql"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/concierge-dev/concierge/internal/store"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMapError(t *testing.T) {
	t.Run("nil passes through", func(t *testing.T) {
		assert.NoError(t, MapError(nil))
	})

	t.Run("no rows maps to not found", func(t *testing.T) {
		err := MapError(sql.ErrNoRows)
		assert.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("foreign key violation maps to invalid entity", func(t *testing.T) {
		pgErr := &pgconn.PgError{Code: foreignKeyViolationCode, ConstraintName: "tasks_parent_task_id_fkey"}
		err := MapError(pgErr)
		assert.ErrorIs(t, err, store.ErrInvalidEntity)
		assert.Contains(t, err.Error(), "tasks_parent_task_id_fkey")
	})

	t.Run("check violation maps to invalid entity", func(t *testing.T) {
		pgErr := &pgconn.PgError{Code: checkViolationCode, ConstraintName: "tasks_priority_check"}
		assert.ErrorIs(t, MapError(pgErr), store.ErrInvalidEntity)
	})

	t.Run("unknown errors pass through unchanged", func(t *testing.T) {
		original := errors.New("connection refused")
		assert.Equal(t, original, MapError(original))
	})
}

func TestMarshalMetadata(t *testing.T) {
	t.Run("empty metadata stores as NULL", func(t *testing.T) {
		v, err := marshalMetadata(nil)
		require.NoError(t, err)
		assert.Nil(t, v)

		v, err = marshalMetadata(map[string]any{})
		require.NoError(t, err)
		assert.Nil(t, v)
	})

	t.Run("round trips through json", func(t *testing.T) {
		v, err := marshalMetadata(map[string]any{"repo": "concierge", "labels": []any{"bug"}})
		require.NoError(t, err)

		raw, ok := v.([]byte)
		require.True(t, ok)

		var decoded map[string]any
		require.NoError(t, json.Unmarshal(raw, &decoded))
		assert.Equal(t, "concierge", decoded["repo"])
	})
}

func TestNullHelpers(t *testing.T) {
	assert.False(t, nullString("").Valid)
	assert.True(t, nullString("email").Valid)

	assert.False(t, nullTime(nil).Valid)
	now := time.Now()
	assert.True(t, nullTime(&now).Valid)

	assert.False(t, nullUUID(nil).Valid)
	id := uuid.New()
	assert.True(t, nullUUID(&id).Valid)
	assert.Equal(t, id, nullUUID(&id).UUID)
}
