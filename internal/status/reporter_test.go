package status

import (
	"sync"
	"testing"

	"github.com/NoPKT/agentim/pkg/protocol"
)

type captureSender struct {
	mu     sync.Mutex
	frames []protocol.StatusFrame
}

func (s *captureSender) Send(frame protocol.Frame) {
	if sf, ok := frame.(protocol.StatusFrame); ok {
		s.mu.Lock()
		s.frames = append(s.frames, sf)
		s.mu.Unlock()
	}
}

func (s *captureSender) all() []protocol.StatusFrame {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]protocol.StatusFrame(nil), s.frames...)
}

func TestReporter_MapsTransitions(t *testing.T) {
	sender := &captureSender{}
	r := NewReporter(sender)

	r.AgentTransition("coder", true, 0)
	r.AgentTransition("coder", true, 3)
	r.AgentTransition("coder", false, 0)

	frames := sender.all()
	if len(frames) != 3 {
		t.Fatalf("frames = %d, want 3", len(frames))
	}
	if frames[0].Status != protocol.StatusBusy || frames[0].QueueDepth != 0 {
		t.Errorf("frame[0] = %+v", frames[0])
	}
	if frames[1].Status != protocol.StatusBusy || frames[1].QueueDepth != 3 {
		t.Errorf("frame[1] = %+v", frames[1])
	}
	if frames[2].Status != protocol.StatusOnline || frames[2].QueueDepth != 0 {
		t.Errorf("frame[2] = %+v", frames[2])
	}
}

func TestReporter_SuppressesConsecutiveDuplicates(t *testing.T) {
	sender := &captureSender{}
	r := NewReporter(sender)

	r.AgentTransition("coder", true, 2)
	r.AgentTransition("coder", true, 2) // duplicate
	r.AgentTransition("coder", true, 1)

	if n := len(sender.all()); n != 2 {
		t.Errorf("frames = %d, want 2 (duplicate suppressed)", n)
	}
}

func TestReporter_AgentsIndependent(t *testing.T) {
	sender := &captureSender{}
	r := NewReporter(sender)

	r.AgentTransition("coder", true, 0)
	r.AgentTransition("reviewer", true, 0) // same shape, different agent

	if n := len(sender.all()); n != 2 {
		t.Errorf("frames = %d, want 2", n)
	}
}

func TestReporter_ForgetResetsDedup(t *testing.T) {
	sender := &captureSender{}
	r := NewReporter(sender)

	r.AgentTransition("coder", false, 0)
	r.Forget("coder")
	r.AgentTransition("coder", false, 0)

	if n := len(sender.all()); n != 2 {
		t.Errorf("frames = %d, want 2 after Forget", n)
	}
}
