package runner

import (
	"sync"

	"github.com/gorilla/websocket"
	"github.com/ternarybob/arbor"

	"github.com/shopwise/dealagent/internal/interfaces"
)

// Subscription is one push-event stream filtered to a single task id.
// The reader goroutine owns the events channel: it closes it when the
// transport closes, so a closed channel always means "no more events for
// this task", whether by server close or by Close.
type Subscription struct {
	conn      *websocket.Conn
	taskID    string
	events    chan interfaces.TaskEvent
	done      chan struct{}
	closeOnce sync.Once
	logger    arbor.ILogger
}

func newSubscription(conn *websocket.Conn, taskID string, logger arbor.ILogger) *Subscription {
	s := &Subscription{
		conn:   conn,
		taskID: taskID,
		events: make(chan interfaces.TaskEvent, 16),
		done:   make(chan struct{}),
		logger: logger,
	}
	go s.readLoop()
	return s
}

// Events returns the filtered event stream. Closed on transport close or
// after Close.
func (s *Subscription) Events() <-chan interfaces.TaskEvent {
	return s.events
}

// Close stops the subscription. Idempotent; further events for this task
// are no longer honored even if the transport is still open.
func (s *Subscription) Close() {
	s.closeOnce.Do(func() {
		close(s.done)
		_ = s.conn.Close()
	})
}

// readLoop delivers events whose task id matches; everything else on the
// shared endpoint is dropped, never cross-applied.
func (s *Subscription) readLoop() {
	defer close(s.events)

	for {
		var event interfaces.TaskEvent
		if err := s.conn.ReadJSON(&event); err != nil {
			select {
			case <-s.done:
				// closed by Close, not a transport failure
			default:
				s.logger.Debug().Err(err).Str("task_id", s.taskID).Msg("Event stream closed")
			}
			return
		}

		if event.TaskID != s.taskID {
			continue
		}

		select {
		case s.events <- event:
		case <-s.done:
			return
		}
	}
}
