package scheduler

import "errors"

var (
	// ErrDuplicateAgent is returned when registering an agent ID that is
	// already registered.
	ErrDuplicateAgent = errors.New("agent already registered")

	// ErrUnknownAgent is returned when enqueueing to an agent that is not
	// registered. Boundary callers ignore it to tolerate races with
	// concurrent removal.
	ErrUnknownAgent = errors.New("agent not registered")

	// ErrQueueFull is returned when an agent's queue is at capacity. The
	// caller must surface a terminal "queue is full" completion to the
	// submitter rather than dropping the item silently.
	ErrQueueFull = errors.New("agent queue is full")
)
