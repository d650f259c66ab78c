package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTask_Lifecycle(t *testing.T) {
	task := NewTask("ext-1", TaskKindPriceSearch, "fridge")
	assert.Equal(t, TaskStatusPending, task.Status)
	assert.False(t, task.IsTerminal())

	require.NoError(t, task.MarkRunning())
	assert.Equal(t, TaskStatusRunning, task.Status)

	require.NoError(t, task.MarkCompleted("raw output"))
	assert.Equal(t, TaskStatusCompleted, task.Status)
	assert.Equal(t, "raw output", task.RawOutput)
	assert.True(t, task.IsTerminal())
	require.NotNil(t, task.CompletedAt)
}

func TestTask_TransitionsAreForwardOnly(t *testing.T) {
	task := NewTask("ext-1", TaskKindPriceSearch, "fridge")
	require.NoError(t, task.MarkCompleted("done"))

	assert.Error(t, task.MarkRunning())
	assert.Error(t, task.MarkCompleted("again"))
	assert.Error(t, task.MarkError("too late"))

	// terminal state is untouched by rejected transitions
	assert.Equal(t, TaskStatusCompleted, task.Status)
	assert.Equal(t, "done", task.RawOutput)
	assert.Empty(t, task.Error)
}

func TestTask_MarkError(t *testing.T) {
	task := NewTask("ext-2", TaskKindDiscovery, "soundbar")
	require.NoError(t, task.MarkError("agent crashed"))

	assert.Equal(t, TaskStatusError, task.Status)
	assert.Equal(t, "agent crashed", task.Error)
	assert.True(t, task.IsTerminal())
}

func TestTask_Duration(t *testing.T) {
	task := NewTask("ext-3", TaskKindPriceSearch, "fridge")
	task.StartedAt = time.Now().Add(-time.Minute)

	assert.GreaterOrEqual(t, task.Duration(), time.Minute)

	completed := task.StartedAt.Add(30 * time.Second)
	task.CompletedAt = &completed
	assert.Equal(t, 30*time.Second, task.Duration())
}

func TestHistoryEntry_Placeholder(t *testing.T) {
	entry := NewHistoryEntry("fridge", "ext-1")

	assert.True(t, len(entry.ID) > len("hist_"))
	assert.Equal(t, "fridge", entry.Query)
	assert.Equal(t, "ext-1", entry.ExternalTaskID)
	assert.Equal(t, TaskStatusRunning, entry.Status)
	assert.Zero(t, entry.ResultCount)
}

func TestSellerDirectoryEntry_ContactNumber(t *testing.T) {
	both := SellerDirectoryEntry{Phone: "111", WhatsappNumber: "222"}
	assert.Equal(t, "111", both.ContactNumber())

	whatsappOnly := SellerDirectoryEntry{WhatsappNumber: "222"}
	assert.Equal(t, "222", whatsappOnly.ContactNumber())

	neither := SellerDirectoryEntry{}
	assert.Empty(t, neither.ContactNumber())
}
