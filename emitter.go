package reactive

import "sync"

// Emitter is a minimal publish/subscribe primitive. Listeners are invoked in
// registration order. Settle turns the emitter into a latched one-time
// readiness signal: late listeners immediately observe the settled value.
type Emitter[T any] struct {
	mu        sync.Mutex
	order     []uint64
	listeners map[uint64]func(T)
	settled   bool
	last      T
}

// NewEmitter creates an empty emitter.
func NewEmitter[T any]() *Emitter[T] {
	return &Emitter[T]{listeners: make(map[uint64]func(T))}
}

// Listen registers a listener and returns an unsubscribe function. If the
// emitter has already settled, the listener fires immediately with the
// settled value.
func (e *Emitter[T]) Listen(fn func(T)) (off func()) {
	id := nextCellID()
	return e.listenKeyed(id, fn)
}

func (e *Emitter[T]) listenKeyed(id uint64, fn func(T)) (off func()) {
	e.mu.Lock()
	if e.settled {
		last := e.last
		e.mu.Unlock()
		fn(last)
		return func() {}
	}
	e.order = append(e.order, id)
	e.listeners[id] = fn
	e.mu.Unlock()

	return func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		if _, ok := e.listeners[id]; !ok {
			return
		}
		delete(e.listeners, id)
		for i, v := range e.order {
			if v == id {
				e.order = append(e.order[:i], e.order[i+1:]...)
				break
			}
		}
	}
}

// Emit delivers a value to all current listeners.
func (e *Emitter[T]) Emit(v T) {
	for _, ref := range e.refs() {
		ref.fn(v)
	}
}

// Settle delivers a value to all current listeners and latches it: every
// later Listen fires immediately, and further Emit/Settle calls are no-ops.
func (e *Emitter[T]) Settle(v T) {
	e.mu.Lock()
	if e.settled {
		e.mu.Unlock()
		return
	}
	e.settled = true
	e.last = v
	refs := make([]listenerRef[T], 0, len(e.order))
	for _, id := range e.order {
		refs = append(refs, listenerRef[T]{id: id, fn: e.listeners[id]})
	}
	e.order = nil
	e.listeners = map[uint64]func(T){}
	e.mu.Unlock()

	for _, ref := range refs {
		ref.fn(v)
	}
}

// Settled reports whether Settle has been called.
func (e *Emitter[T]) Settled() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.settled
}

// Len returns the number of registered listeners.
func (e *Emitter[T]) Len() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.listeners)
}

type listenerRef[T any] struct {
	id uint64
	fn func(T)
}

// refs snapshots the current listeners in registration order.
func (e *Emitter[T]) refs() []listenerRef[T] {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]listenerRef[T], 0, len(e.order))
	for _, id := range e.order {
		if fn, ok := e.listeners[id]; ok {
			out = append(out, listenerRef[T]{id: id, fn: fn})
		}
	}
	return out
}
