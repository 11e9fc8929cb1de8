package canroute

import (
	"sync"
)

// LoopbackBus is an in-memory CAN bus for tests and simulations.
// Multiple endpoints opened from the same bus can exchange frames.
//
// Delivery is synchronous: Send invokes the receive callback of every other
// endpoint on the caller's goroutine before returning, which models the
// receive-interrupt behavior of a real peripheral and keeps tests
// deterministic. Endpoints without a callback drop the frame.
type LoopbackBus struct {
	mu        sync.RWMutex
	closed    bool
	endpoints map[*loopEndpoint]struct{}
}

// NewLoopbackBus creates a new loopback bus.
func NewLoopbackBus() *LoopbackBus {
	return &LoopbackBus{endpoints: make(map[*loopEndpoint]struct{})}
}

// Open creates a new endpoint attached to the bus.
func (b *LoopbackBus) Open() Bus {
	ep := &loopEndpoint{bus: b}
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		ep.mu.Lock()
		ep.dead = true
		ep.mu.Unlock()
		return ep
	}
	b.endpoints[ep] = struct{}{}
	b.mu.Unlock()
	return ep
}

// Close closes the bus and detaches all endpoints.
func (b *LoopbackBus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	for ep := range b.endpoints {
		ep.markDead()
	}
	b.endpoints = nil
	b.mu.Unlock()
	return nil
}

type loopEndpoint struct {
	bus *LoopbackBus

	mu   sync.Mutex
	dead bool
	recv Handler
}

// Send broadcasts the frame to all other endpoints on the same bus.
func (e *loopEndpoint) Send(frame Frame) error {
	if err := frame.Validate(); err != nil {
		return err
	}
	e.mu.Lock()
	if e.dead {
		e.mu.Unlock()
		return ErrClosed
	}
	e.mu.Unlock()
	// Snapshot targets under the bus lock, deliver outside it so handlers
	// may themselves send.
	e.bus.mu.RLock()
	if e.bus.closed {
		e.bus.mu.RUnlock()
		return ErrClosed
	}
	targets := make([]*loopEndpoint, 0, len(e.bus.endpoints))
	for ep := range e.bus.endpoints {
		if ep != e {
			targets = append(targets, ep)
		}
	}
	e.bus.mu.RUnlock()

	for _, t := range targets {
		t.deliver(frame)
	}
	return nil
}

// OnReceive installs h as the endpoint's receive callback. Calling it again
// replaces the callback; nil clears it.
func (e *loopEndpoint) OnReceive(h Handler) {
	e.mu.Lock()
	e.recv = h
	e.mu.Unlock()
}

// Close detaches the endpoint from the bus and drops its callback.
func (e *loopEndpoint) Close() error {
	e.bus.mu.Lock()
	if e.bus.endpoints != nil {
		delete(e.bus.endpoints, e)
	}
	e.bus.mu.Unlock()
	e.markDead()
	return nil
}

func (e *loopEndpoint) deliver(frame Frame) {
	e.mu.Lock()
	h := e.recv
	dead := e.dead
	e.mu.Unlock()
	if dead || h == nil {
		return
	}
	h(frame)
}

func (e *loopEndpoint) markDead() {
	e.mu.Lock()
	e.dead = true
	e.recv = nil
	e.mu.Unlock()
}
