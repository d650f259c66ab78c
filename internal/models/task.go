package models

import (
	"fmt"
	"time"
)

// TaskStatus represents the state of an asynchronous search task
type TaskStatus string

const (
	TaskStatusPending   TaskStatus = "pending"
	TaskStatusRunning   TaskStatus = "running"
	TaskStatusCompleted TaskStatus = "completed"
	TaskStatusError     TaskStatus = "error"
)

// TaskKind classifies what the upstream agent is asked to do
type TaskKind string

const (
	TaskKindPriceSearch TaskKind = "price_search"
	TaskKindDiscovery   TaskKind = "discovery"
	TaskKindRefinement  TaskKind = "refinement"
)

// Task tracks one asynchronous execution by its externally assigned id.
// Mutated only by the tracker; immutable once terminal.
type Task struct {
	ID          string     `json:"id"` // External task id assigned on submission
	Kind        TaskKind   `json:"kind"`
	Query       string     `json:"query"`
	Status      TaskStatus `json:"status"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Error       string     `json:"error,omitempty"`
	RawOutput   string     `json:"raw_output,omitempty"`
	Progress    string     `json:"progress,omitempty"` // Best-effort step name from non-terminal events
}

// NewTask creates a pending task for an externally assigned id
func NewTask(externalID string, kind TaskKind, query string) *Task {
	return &Task{
		ID:        externalID,
		Kind:      kind,
		Query:     query,
		Status:    TaskStatusPending,
		StartedAt: time.Now(),
	}
}

// IsTerminal returns true if the task is in a terminal state
func (t *Task) IsTerminal() bool {
	return t.Status == TaskStatusCompleted || t.Status == TaskStatusError
}

// MarkRunning transitions the task to running. Transitions are forward-only.
func (t *Task) MarkRunning() error {
	if t.IsTerminal() {
		return fmt.Errorf("task %s is terminal (%s), cannot transition to running", t.ID, t.Status)
	}
	t.Status = TaskStatusRunning
	return nil
}

// MarkCompleted terminalizes the task with its raw output
func (t *Task) MarkCompleted(rawOutput string) error {
	if t.IsTerminal() {
		return fmt.Errorf("task %s is terminal (%s), cannot complete", t.ID, t.Status)
	}
	t.Status = TaskStatusCompleted
	t.RawOutput = rawOutput
	now := time.Now()
	t.CompletedAt = &now
	return nil
}

// MarkError terminalizes the task with an error message
func (t *Task) MarkError(errorMsg string) error {
	if t.IsTerminal() {
		return fmt.Errorf("task %s is terminal (%s), cannot fail", t.ID, t.Status)
	}
	t.Status = TaskStatusError
	t.Error = errorMsg
	now := time.Now()
	t.CompletedAt = &now
	return nil
}

// Duration returns elapsed time from start until completion, or until now
// for non-terminal tasks.
func (t *Task) Duration() time.Duration {
	if t.CompletedAt != nil {
		return t.CompletedAt.Sub(t.StartedAt)
	}
	return time.Since(t.StartedAt)
}
