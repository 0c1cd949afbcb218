package domain_test

import (
	"testing"

	"github.com/concierge-dev/concierge/internal/domain"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewExecution(t *testing.T) {
	t.Run("creates running execution", func(t *testing.T) {
		taskID := uuid.New()
		exec, err := domain.NewExecution("email", &taskID, nil)
		require.NoError(t, err)

		assert.Equal(t, domain.ExecutionStatusRunning, exec.Status)
		assert.Equal(t, "email", exec.HandlerName)
		assert.Equal(t, &taskID, exec.TaskID)
		assert.Nil(t, exec.ParentExecutionID)
		assert.Nil(t, exec.CompletedAt)
		assert.False(t, exec.Sealed())
	})

	t.Run("rejects empty handler name", func(t *testing.T) {
		_, err := domain.NewExecution("", nil, nil)
		assert.ErrorIs(t, err, domain.ErrExecutionHandlerEmpty)
	})

	t.Run("task ID is optional for live chat turns", func(t *testing.T) {
		exec, err := domain.NewExecution("calendar", nil, nil)
		require.NoError(t, err)
		assert.Nil(t, exec.TaskID)
	})
}

func TestExecutionSeal(t *testing.T) {
	exec, err := domain.NewExecution("notes", nil, nil)
	require.NoError(t, err)

	require.NoError(t, exec.AppendLog(domain.LogKindThought, "looking up notebook"))
	require.NoError(t, exec.AppendLog(domain.LogKindTool, "notes.search"))
	require.NoError(t, exec.AddUsage(120, 4))

	require.NoError(t, exec.Seal(domain.ExecutionStatusCompleted))

	assert.True(t, exec.Sealed())
	assert.Equal(t, domain.ExecutionStatusCompleted, exec.Status)
	require.NotNil(t, exec.CompletedAt)
	assert.Len(t, exec.Log, 2)
	assert.Equal(t, int64(120), exec.TokensUsed)
	assert.Equal(t, int64(4), exec.CostMillicents)

	// Sealed executions are immutable.
	assert.ErrorIs(t, exec.AppendLog(domain.LogKindThought, "late note"), domain.ErrExecutionSealed)
	assert.ErrorIs(t, exec.AddUsage(1, 1), domain.ErrExecutionSealed)
	assert.ErrorIs(t, exec.Seal(domain.ExecutionStatusFailed), domain.ErrExecutionSealed)
	assert.Equal(t, domain.ExecutionStatusCompleted, exec.Status, "status must not change after sealing")
}

func TestExecutionDelegationLinks(t *testing.T) {
	parent, err := domain.NewExecution("full-reasoning", nil, nil)
	require.NoError(t, err)

	child, err := domain.NewExecution("code-hosting", nil, &parent.ID)
	require.NoError(t, err)

	require.NotNil(t, child.ParentExecutionID)
	assert.Equal(t, parent.ID, *child.ParentExecutionID)
	assert.False(t, child.StartedAt.Before(parent.StartedAt),
		"child execution must start no earlier than its parent")
}
