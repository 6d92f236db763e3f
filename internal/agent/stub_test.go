package agent

import (
	"context"
	"errors"
	"testing"
	"time"
)

type sinkRecorder struct {
	completions chan string
	failures    chan error
}

func newSinkRecorder() *sinkRecorder {
	return &sinkRecorder{
		completions: make(chan string, 8),
		failures:    make(chan error, 8),
	}
}

func (s *sinkRecorder) OnComplete(agentID string) { s.completions <- agentID }

func (s *sinkRecorder) OnError(agentID string, err error) { s.failures <- err }

func TestFuncAdapter_CompletionDelivered(t *testing.T) {
	sink := newSinkRecorder()
	a := NewFuncAdapter(func(_ context.Context, _ WorkItem) error { return nil }, sink)

	a.Dispatch(WorkItem{AgentID: "coder", ID: "w-1"})

	select {
	case id := <-sink.completions:
		if id != "coder" {
			t.Errorf("completion for %q, want coder", id)
		}
	case <-time.After(time.Second):
		t.Fatal("no completion delivered")
	}
}

func TestFuncAdapter_ErrorDelivered(t *testing.T) {
	sink := newSinkRecorder()
	boom := errors.New("boom")
	a := NewFuncAdapter(func(_ context.Context, _ WorkItem) error { return boom }, sink)

	a.Dispatch(WorkItem{AgentID: "coder", ID: "w-1"})

	select {
	case err := <-sink.failures:
		if !errors.Is(err, boom) {
			t.Errorf("err = %v, want boom", err)
		}
	case <-time.After(time.Second):
		t.Fatal("no error delivered")
	}
}

func TestFuncAdapter_AbortCancelsRun(t *testing.T) {
	sink := newSinkRecorder()
	started := make(chan struct{})
	a := NewFuncAdapter(func(ctx context.Context, _ WorkItem) error {
		close(started)
		<-ctx.Done()
		return ctx.Err()
	}, sink)

	a.Dispatch(WorkItem{AgentID: "coder", ID: "w-1"})
	<-started
	a.Abort()

	select {
	case err := <-sink.failures:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("err = %v, want context.Canceled", err)
		}
	case <-time.After(time.Second):
		t.Fatal("aborted run never called back")
	}
}
