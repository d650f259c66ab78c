package interfaces

import "errors"

var (
	// ErrKeyNotFound is returned when a key does not exist in storage
	ErrKeyNotFound = errors.New("key not found")

	// ErrEntryNotFound is returned when a history or shopping list entry
	// does not exist
	ErrEntryNotFound = errors.New("entry not found")

	// ErrTaskNotFound is returned when the runner has no record of a task id
	ErrTaskNotFound = errors.New("task not found")

	// ErrTransportLost is returned when the event channel closed before a
	// terminal event and the fallback fetch could not produce a terminal
	// record either
	ErrTransportLost = errors.New("event transport lost before task completion")

	// ErrDirectoryUnavailable is returned when neither the directory
	// service nor the local seed file could be loaded
	ErrDirectoryUnavailable = errors.New("seller directory unavailable")
)
