// Package agent defines the contract between the scheduler and whatever
// actually executes work for an agent (a spawned process, an LLM call).
// The scheduler never looks inside a work item; it only hands items to an
// Adapter and reacts to the terminal callback.
package agent

import "encoding/json"

// WorkItem is one unit of work addressed to an agent. Immutable once
// enqueued. ID is the submitter's correlation identifier.
type WorkItem struct {
	AgentID string
	ID      string
	Content json.RawMessage
}

// Completion receives the terminal signal for a dispatched work item.
// Exactly one of the two methods must be called per dispatch, exactly
// once, asynchronously. The scheduler implements this interface.
type Completion interface {
	// OnComplete reports that the agent finished its in-flight item.
	OnComplete(agentID string)

	// OnError reports that the in-flight item failed. The scheduler
	// treats it as a normal advancement signal: one item's failure
	// never starves the rest of the queue.
	OnError(agentID string, err error)
}

// Adapter executes work items for a single agent. Dispatch is
// fire-and-forget: the scheduler does not block on it and only reacts to
// the Completion callback. An adapter that never calls back leaves its
// agent permanently busy; calling back exactly once is a correctness
// requirement on adapters, not enforced here.
type Adapter interface {
	// Dispatch starts executing one work item.
	Dispatch(item WorkItem)

	// Abort requests cancellation of the in-flight item, if any. The
	// item's terminal callback still fires exactly once; Abort only
	// asks it to arrive sooner.
	Abort()

	// Close releases the adapter's resources. Called when the agent is
	// removed from the scheduler.
	Close() error
}
