package interfaces

import "context"

// TaskEventType classifies push events delivered by the task runner
type TaskEventType string

const (
	TaskEventStepStarted TaskEventType = "step_started"
	TaskEventStepEnded   TaskEventType = "step_ended"
	TaskEventTaskEnded   TaskEventType = "task_ended"
)

// TaskEvent is one push event from the runner's event subscription
type TaskEvent struct {
	TaskID    string        `json:"task_id"`
	EventType TaskEventType `json:"event_type"`
	StepName  string        `json:"step_name,omitempty"`
	Output    string        `json:"output,omitempty"`
	Error     string        `json:"error,omitempty"`
}

// TaskRecord is the runner's pull-side view of a task, used by the
// fallback fetch when the push channel is lost.
type TaskRecord struct {
	ID             string   `json:"id"`
	Status         string   `json:"status"`
	RawOutput      string   `json:"raw_output,omitempty"`
	ErrorMessage   string   `json:"error_message,omitempty"`
	ProgressEvents []string `json:"progress_events,omitempty"`
}

// IsTerminal reports whether the record is in a terminal runner state
func (r *TaskRecord) IsTerminal() bool {
	return r.Status == "completed" || r.Status == "error" || r.Status == "failed"
}

// TaskSubscription is one push-event stream filtered to a single task id.
// The events channel is closed when the transport closes or Close is
// called; Close is idempotent.
type TaskSubscription interface {
	Events() <-chan TaskEvent
	Close()
}

// RunnerClient is the consumed contract of the external task runner
type RunnerClient interface {
	// Submit starts a task and returns the externally assigned task id
	Submit(ctx context.Context, query string, kind string, params map[string]interface{}) (string, error)

	// Fetch returns the current record for a task id
	Fetch(ctx context.Context, taskID string) (*TaskRecord, error)

	// Subscribe opens a push-event stream for one task id
	Subscribe(ctx context.Context, taskID string) (TaskSubscription, error)
}
