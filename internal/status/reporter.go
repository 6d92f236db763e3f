// Package status translates scheduler state transitions into agent:status
// frames for remote observers.
package status

import (
	"sync"

	"github.com/NoPKT/agentim/pkg/protocol"
)

// Sender delivers frames to the coordinator. Satisfied by the gateway
// client: frames sent while disconnected are queued there.
type Sender interface {
	Send(frame protocol.Frame)
}

type report struct {
	status string
	depth  int
}

// Reporter emits exactly one status frame per scheduler transition and
// suppresses consecutive duplicates per agent.
type Reporter struct {
	sender Sender

	mu   sync.Mutex
	last map[string]report
}

// NewReporter creates a reporter sending through sender.
func NewReporter(sender Sender) *Reporter {
	return &Reporter{sender: sender, last: make(map[string]report)}
}

// AgentTransition is registered as the scheduler's transition observer.
func (r *Reporter) AgentTransition(agentID string, busy bool, queueDepth int) {
	st := protocol.StatusOnline
	if busy {
		st = protocol.StatusBusy
	}
	cur := report{status: st, depth: queueDepth}

	r.mu.Lock()
	if prev, ok := r.last[agentID]; ok && prev == cur {
		r.mu.Unlock()
		return
	}
	r.last[agentID] = cur
	r.mu.Unlock()

	r.sender.Send(protocol.NewStatus(agentID, st, queueDepth))
}

// Forget drops the dedup state for a removed agent.
func (r *Reporter) Forget(agentID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.last, agentID)
}
