// Package scheduler dispatches inbound work items to agents, one item in
// flight per agent, with a bounded FIFO queue behind each.
package scheduler

import (
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/NoPKT/agentim/internal/agent"
)

// DefaultQueueCap is the per-agent queue capacity.
const DefaultQueueCap = 50

// Config tunes scheduler behavior.
type Config struct {
	// QueueCap bounds each agent's pending queue. Zero means DefaultQueueCap.
	QueueCap int

	// DispatchTimeout, when positive, arms a watchdog per dispatch that
	// synthesizes a failure if the adapter never calls back in time. Zero
	// disables it: hung items are the adapter's responsibility.
	DispatchTimeout time.Duration
}

// TransitionFunc observes agent state transitions. busy=false implies
// queueDepth 0. Calls for one agent arrive in transition order. The
// function must not call back into the Scheduler.
type TransitionFunc func(agentID string, busy bool, queueDepth int)

// Scheduler owns one queue and concurrency gate per registered agent.
// Agents proceed fully independently; within one agent, items dispatch in
// strict arrival order.
type Scheduler struct {
	cap     int
	timeout time.Duration

	mu     sync.RWMutex
	agents map[string]*agentEntry

	listenerMu sync.RWMutex
	listeners  []TransitionFunc
}

// agentEntry is the per-agent record. Owned exclusively by the Scheduler.
type agentEntry struct {
	id      string
	adapter agent.Adapter

	mu       sync.Mutex
	busy     bool
	queue    []agent.WorkItem
	seq      uint64      // incremented per dispatch, guards the watchdog
	stale    int         // terminal callbacks to swallow after a watchdog fired
	watchdog *time.Timer // pending dispatch watchdog, nil when disarmed
}

// New creates a scheduler.
func New(cfg Config) *Scheduler {
	if cfg.QueueCap <= 0 {
		cfg.QueueCap = DefaultQueueCap
	}
	return &Scheduler{
		cap:     cfg.QueueCap,
		timeout: cfg.DispatchTimeout,
		agents:  make(map[string]*agentEntry),
	}
}

// OnTransition registers a transition observer.
func (s *Scheduler) OnTransition(fn TransitionFunc) {
	s.listenerMu.Lock()
	defer s.listenerMu.Unlock()
	s.listeners = append(s.listeners, fn)
}

// Register creates an idle entry for agentID backed by the adapter.
func (s *Scheduler) Register(agentID string, adapter agent.Adapter) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.agents[agentID]; ok {
		return ErrDuplicateAgent
	}
	s.agents[agentID] = &agentEntry{id: agentID, adapter: adapter}
	slog.Debug("agent registered", "agent", agentID)
	return nil
}

// Enqueue accepts a work item for agentID. If the agent is idle the item
// dispatches immediately; otherwise it queues FIFO up to capacity.
// Returns ErrUnknownAgent or ErrQueueFull; on ErrQueueFull the caller
// must deliver a terminal rejection to the submitter.
func (s *Scheduler) Enqueue(agentID string, item agent.WorkItem) error {
	e, ok := s.lookup(agentID)
	if !ok {
		return ErrUnknownAgent
	}

	e.mu.Lock()
	if e.busy {
		if len(e.queue) >= s.cap {
			e.mu.Unlock()
			return ErrQueueFull
		}
		e.queue = append(e.queue, item)
		depth := len(e.queue)
		s.notify(agentID, true, depth)
		e.mu.Unlock()
		return nil
	}

	e.busy = true
	e.armWatchdogLocked(s)
	s.notify(agentID, true, 0)
	e.mu.Unlock()

	e.adapter.Dispatch(item)
	return nil
}

// OnComplete signals that agentID's in-flight item finished.
func (s *Scheduler) OnComplete(agentID string) {
	s.advance(agentID, nil)
}

// OnError signals that agentID's in-flight item failed. Identical to
// OnComplete from the scheduler's perspective: the failure is isolated to
// its item and the queue keeps draining.
func (s *Scheduler) OnError(agentID string, err error) {
	if err != nil {
		slog.Warn("agent work item failed", "agent", agentID, "error", err)
	}
	s.advance(agentID, nil)
}

// advance moves the agent to its next item or back to idle. fromSeq is
// non-nil when the watchdog fired: the advance only applies if that
// dispatch is still the one in flight, and the adapter's late terminal
// callback (if it ever arrives) is swallowed instead of double-advancing.
func (s *Scheduler) advance(agentID string, fromSeq *uint64) {
	e, ok := s.lookup(agentID)
	if !ok {
		return
	}

	e.mu.Lock()
	if fromSeq != nil {
		if !e.busy || e.seq != *fromSeq {
			e.mu.Unlock()
			return
		}
		e.stale++
		slog.Warn("dispatch watchdog fired", "agent", agentID, "timeout", s.timeout)
	} else {
		if e.stale > 0 {
			e.stale--
			e.mu.Unlock()
			return
		}
		if !e.busy {
			// terminal callback with nothing in flight: adapter contract
			// violation, ignore
			e.mu.Unlock()
			slog.Warn("terminal callback for idle agent ignored", "agent", agentID)
			return
		}
	}
	e.disarmWatchdogLocked()

	if len(e.queue) == 0 {
		e.busy = false
		s.notify(agentID, false, 0)
		e.mu.Unlock()
		return
	}

	item := e.queue[0]
	e.queue = e.queue[1:]
	depth := len(e.queue)
	e.armWatchdogLocked(s)
	s.notify(agentID, true, depth)
	e.mu.Unlock()

	e.adapter.Dispatch(item)
}

// Stop discards agentID's pending queue and asks the adapter to abort the
// in-flight item. The in-flight item's terminal callback still fires
// exactly once; the agent then reports online with an empty queue. The
// agent stays registered.
func (s *Scheduler) Stop(agentID string) {
	e, ok := s.lookup(agentID)
	if !ok {
		return
	}

	e.mu.Lock()
	dropped := len(e.queue)
	e.queue = nil
	busy := e.busy
	e.mu.Unlock()

	if dropped > 0 {
		slog.Info("agent queue cleared", "agent", agentID, "dropped", dropped)
	}
	if busy {
		e.adapter.Abort()
	}
}

// Remove disposes the adapter and deletes the entry. Idempotent: removing
// an unknown agent is a no-op.
func (s *Scheduler) Remove(agentID string) {
	s.mu.Lock()
	e, ok := s.agents[agentID]
	delete(s.agents, agentID)
	s.mu.Unlock()

	if !ok {
		return
	}

	e.mu.Lock()
	e.queue = nil
	e.disarmWatchdogLocked()
	e.mu.Unlock()

	if err := e.adapter.Close(); err != nil {
		slog.Warn("adapter close failed", "agent", agentID, "error", err)
	}
	slog.Debug("agent removed", "agent", agentID)
}

// Depth returns the number of queued (not in-flight) items for agentID.
func (s *Scheduler) Depth(agentID string) int {
	e, ok := s.lookup(agentID)
	if !ok {
		return 0
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.queue)
}

// Busy reports whether agentID has an item in flight.
func (s *Scheduler) Busy(agentID string) bool {
	e, ok := s.lookup(agentID)
	if !ok {
		return false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.busy
}

// AgentStats is a point-in-time view of one agent's scheduling state.
type AgentStats struct {
	ID         string `json:"id"`
	Busy       bool   `json:"busy"`
	QueueDepth int    `json:"queueDepth"`
}

// Stats returns a snapshot for all registered agents, sorted by ID.
func (s *Scheduler) Stats() []AgentStats {
	s.mu.RLock()
	entries := make([]*agentEntry, 0, len(s.agents))
	for _, e := range s.agents {
		entries = append(entries, e)
	}
	s.mu.RUnlock()

	stats := make([]AgentStats, 0, len(entries))
	for _, e := range entries {
		e.mu.Lock()
		stats = append(stats, AgentStats{ID: e.id, Busy: e.busy, QueueDepth: len(e.queue)})
		e.mu.Unlock()
	}
	sort.Slice(stats, func(i, j int) bool { return stats[i].ID < stats[j].ID })
	return stats
}

func (s *Scheduler) lookup(agentID string) (*agentEntry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.agents[agentID]
	return e, ok
}

func (s *Scheduler) notify(agentID string, busy bool, depth int) {
	s.listenerMu.RLock()
	defer s.listenerMu.RUnlock()
	for _, fn := range s.listeners {
		fn(agentID, busy, depth)
	}
}

// armWatchdogLocked starts the dispatch watchdog for the item about to be
// dispatched. Must be called with e.mu held.
func (e *agentEntry) armWatchdogLocked(s *Scheduler) {
	e.seq++
	if s.timeout <= 0 {
		return
	}
	seq := e.seq
	e.watchdog = time.AfterFunc(s.timeout, func() {
		s.advance(e.id, &seq)
	})
}

// disarmWatchdogLocked cancels any pending watchdog. Must be called with
// e.mu held.
func (e *agentEntry) disarmWatchdogLocked() {
	if e.watchdog != nil {
		e.watchdog.Stop()
		e.watchdog = nil
	}
}
