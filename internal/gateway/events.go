package gateway

import (
	"sync"

	"github.com/google/uuid"
)

// eventHub holds the client's observer registrations. Each Subscribe
// returns an unsubscribe closure keyed by a generated ID. Handlers must
// be fast and must not call back into the Client: they may run while the
// client's own lock is held.
type eventHub struct {
	mu         sync.RWMutex
	status     map[string]func(Status)
	reconnect  map[string]func()
	overflow   map[string]func()
	validation map[string]func(error)
}

func newEventHub() *eventHub {
	return &eventHub{
		status:     make(map[string]func(Status)),
		reconnect:  make(map[string]func()),
		overflow:   make(map[string]func()),
		validation: make(map[string]func(error)),
	}
}

func (h *eventHub) subscribeStatus(fn func(Status)) func() {
	h.mu.Lock()
	defer h.mu.Unlock()
	id := uuid.NewString()
	h.status[id] = fn
	return func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		delete(h.status, id)
	}
}

func (h *eventHub) subscribeReconnect(fn func()) func() {
	h.mu.Lock()
	defer h.mu.Unlock()
	id := uuid.NewString()
	h.reconnect[id] = fn
	return func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		delete(h.reconnect, id)
	}
}

func (h *eventHub) subscribeOverflow(fn func()) func() {
	h.mu.Lock()
	defer h.mu.Unlock()
	id := uuid.NewString()
	h.overflow[id] = fn
	return func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		delete(h.overflow, id)
	}
}

func (h *eventHub) subscribeValidation(fn func(error)) func() {
	h.mu.Lock()
	defer h.mu.Unlock()
	id := uuid.NewString()
	h.validation[id] = fn
	return func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		delete(h.validation, id)
	}
}

func (h *eventHub) emitStatus(s Status) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, fn := range h.status {
		fn(s)
	}
}

func (h *eventHub) emitReconnect() {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, fn := range h.reconnect {
		fn()
	}
}

func (h *eventHub) emitOverflow() {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, fn := range h.overflow {
		fn()
	}
}

func (h *eventHub) emitValidation(err error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, fn := range h.validation {
		fn(err)
	}
}
