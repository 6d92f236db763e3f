package agent

import (
	"context"
	"sync"
)

// FuncAdapter wraps a run function as an Adapter. Each dispatch runs the
// function in its own goroutine and reports the outcome to the sink.
// Abort cancels the in-flight run's context.
type FuncAdapter struct {
	run  func(ctx context.Context, item WorkItem) error
	sink Completion

	mu     sync.Mutex
	cancel context.CancelFunc
	closed bool
}

// NewFuncAdapter creates an adapter backed by fn. The sink receives
// exactly one terminal callback per dispatched item.
func NewFuncAdapter(fn func(ctx context.Context, item WorkItem) error, sink Completion) *FuncAdapter {
	return &FuncAdapter{run: fn, sink: sink}
}

func (a *FuncAdapter) Dispatch(item WorkItem) {
	ctx, cancel := context.WithCancel(context.Background())

	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		cancel()
		return
	}
	a.cancel = cancel
	a.mu.Unlock()

	go func() {
		err := a.run(ctx, item)

		a.mu.Lock()
		if a.cancel != nil {
			a.cancel()
			a.cancel = nil
		}
		a.mu.Unlock()

		if err != nil {
			a.sink.OnError(item.AgentID, err)
			return
		}
		a.sink.OnComplete(item.AgentID)
	}()
}

func (a *FuncAdapter) Abort() {
	a.mu.Lock()
	cancel := a.cancel
	a.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

func (a *FuncAdapter) Close() error {
	a.mu.Lock()
	a.closed = true
	cancel := a.cancel
	a.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	return nil
}
