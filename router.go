package canroute

import "sync"

// Router dispatches frames received on a single Bus to callbacks registered
// per identifier.
//
// The router claims the bus's one receive callback slot at construction and
// keeps it until Close. Modules register routes with Add or AddFunc; for each
// received frame the router scans its routes in registration order and hands
// the frame to the first route whose identifier is equal to the frame's. A
// frame matching no route is dropped silently. Two routes may share an
// identifier; only the first registered one is ever reachable. This is the
// documented policy, not an error.
//
// Registration, removal and handler replacement all take the router's
// internal lock, as does the dispatch scan, so the route table is never
// observed in a half-linked state no matter which goroutine frames arrive
// on. The matched handler itself runs outside the lock, so a handler may add
// or remove routes.
//
// Exactly one live router may be bound to a bus at a time. Constructing a
// second router on the same bus replaces the first one's binding (that is
// the bus callback contract) and leaves the first router registered but
// unreachable.
type Router struct {
	bus Bus

	mu     sync.Mutex
	head   *Route
	tail   *Route
	closed bool
}

// Route is a caller-owned handle for one identifier→handler binding.
//
// The route is a node of the router's intrusive list: the handle is the
// storage. Keep it reachable for as long as the binding should stay active
// and call Close to retire it; removal is O(1) regardless of table size or
// position, and sibling routes keep their handles across it.
type Route struct {
	router  *Router
	id      uint32
	linked  bool
	handler Handler
	prev    *Route
	next    *Route
}

// New constructs a router bound to the given bus and installs its dispatch
// function as the bus receive callback. New panics if bus is nil; a router
// without a peripheral is meaningless.
func New(bus Bus) *Router {
	if bus == nil {
		panic("canroute: nil bus")
	}
	r := &Router{bus: bus}
	bus.OnReceive(r.dispatch)
	return r
}

// Bus returns the bound peripheral. Use it to transmit frames on the same
// port the router listens on.
func (r *Router) Bus() Bus {
	return r.bus
}

// Add registers a route for id with the default handler, which drops the
// frame. The route still consumes matching frames: a later route with the
// same id will not see them. Set a handler later with Route.SetHandler.
func (r *Router) Add(id uint32) *Route {
	return r.AddFunc(id, nil)
}

// AddFunc registers a route invoking fn for every frame whose identifier
// equals id, subject to first-match-wins ordering. A nil fn is the drop
// handler. Registration cannot fail and never allocates beyond the handle
// itself.
func (r *Router) AddFunc(id uint32, fn Handler) *Route {
	rt := &Route{router: r, id: id, handler: fn, linked: true}
	r.mu.Lock()
	if r.tail == nil {
		r.head = rt
		r.tail = rt
	} else {
		rt.prev = r.tail
		r.tail.next = rt
		r.tail = rt
	}
	r.mu.Unlock()
	return rt
}

// Routes returns a snapshot of the current routes in registration order.
// Meant for tests and diagnostics, not production control flow.
func (r *Router) Routes() []*Route {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*Route
	for e := r.head; e != nil; e = e.next {
		out = append(out, e)
	}
	return out
}

// Len returns the number of registered routes.
func (r *Router) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for e := r.head; e != nil; e = e.next {
		n++
	}
	return n
}

// Close unbinds the router from its bus by clearing the receive callback,
// so the bus never calls into a router that is gone. Routes and their
// handles stay valid but nothing dispatches to them. Close is idempotent.
func (r *Router) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	r.mu.Unlock()
	r.bus.OnReceive(nil)
	return nil
}

// dispatch is the bus receive callback: scan in registration order, first
// identifier match wins, unmatched frames are dropped.
func (r *Router) dispatch(f Frame) {
	r.mu.Lock()
	for e := r.head; e != nil; e = e.next {
		if e.id == f.ID {
			h := e.handler
			r.mu.Unlock()
			if h != nil {
				h(f)
			}
			return
		}
	}
	r.mu.Unlock()
}

// ID returns the identifier the route was registered for.
func (rt *Route) ID() uint32 {
	return rt.id
}

// SetHandler installs fn as the route's handler, replacing the previous one.
// A nil fn restores the drop handler. Safe to call while frames arrive;
// in-flight dispatches keep the handler they already matched.
func (rt *Route) SetHandler(fn Handler) {
	rt.router.mu.Lock()
	rt.handler = fn
	rt.router.mu.Unlock()
}

// Close unlinks the route from the router's table in O(1). Dispatch for the
// route's identifier falls through to the next route with that identifier,
// or drops. Close is idempotent and does not disturb sibling routes.
func (rt *Route) Close() {
	r := rt.router
	r.mu.Lock()
	if !rt.linked {
		r.mu.Unlock()
		return
	}
	rt.linked = false
	if rt.prev != nil {
		rt.prev.next = rt.next
	} else {
		r.head = rt.next
	}
	if rt.next != nil {
		rt.next.prev = rt.prev
	} else {
		r.tail = rt.prev
	}
	rt.prev = nil
	rt.next = nil
	r.mu.Unlock()
}
