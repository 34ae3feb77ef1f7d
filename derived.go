package reactive

import (
	"errors"
	"fmt"
	"sync"
)

// Derived is a read-only reactive cell computed from other cells by a
// selector. Each (re)computation runs inside a fresh tracking scope, and the
// node re-subscribes to exactly the cells read during that run, so
// conditional dependencies attach and detach as the selector's branches
// change.
//
// The node moves through uninitialized → computing → {ready | pending |
// errored}, returning to computing whenever a current dependency notifies or
// Refresh is called. A derived node holds only subscriptions into its
// dependencies, never ownership, so it needs no dispose step: dropping all
// references to it is enough.
type Derived[T any] struct {
	id       uint64
	key      string
	eq       Equality
	fallback any
	hasFall  bool
	selector func(*SelectCtx) (T, error)
	owner    any // reported to the error hook instead of the node when set

	mu       sync.Mutex
	tags     map[any]any
	state    CellState
	value    T
	err      error
	fut      AnyFuture
	last     T
	hasLast  bool
	stale    bool
	forced   bool
	deps     []AnyCell
	unsubs   []func()
	token    uint64
	subs     *Emitter[struct{}]
	detached bool
}

// NewDerived creates a derived node. The selector is not run until the node
// is first forced: read, subscribed, or refreshed. After that it recomputes
// eagerly on every dependency notification.
func NewDerived[T any](selector func(*SelectCtx) (T, error), opts ...Option) *Derived[T] {
	d := newDerived(selector, opts...)
	reportCreation(CreationRecord{
		Kind:     KindDerived,
		Key:      d.key,
		Metadata: d.tags,
		Instance: d,
	})
	return d
}

func newDerived[T any](selector func(*SelectCtx) (T, error), opts ...Option) *Derived[T] {
	d := &Derived[T]{
		id:       nextCellID(),
		eq:       Identity(),
		selector: selector,
		tags:     make(map[any]any),
		state:    StateUninitialized,
		subs:     NewEmitter[struct{}](),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *Derived[T]) setKey(key string)       { d.key = key }
func (d *Derived[T]) setEquality(eq Equality) { d.eq = eq }
func (d *Derived[T]) setFallback(v any)       { d.fallback, d.hasFall = v, true }
func (d *Derived[T]) setValidator(func(any) error) {
	panic(&UsageError{Op: "derived", Detail: "validators apply to atoms only"})
}

// Key returns the node's key (empty unless set via WithKey).
func (d *Derived[T]) Key() string { return d.key }

// GetTag retrieves a metadata tag from the node.
func (d *Derived[T]) GetTag(tag any) (any, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	val, ok := d.tags[tag]
	return val, ok
}

// SetTag stores a metadata tag on the node.
func (d *Derived[T]) SetTag(tag any, val any) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.tags[tag] = val
}

// State reports the node's current state.
func (d *Derived[T]) State() CellState {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// Get forces the node if it has never computed or is stale, then returns the
// cached result: the ready value, a *Pending error while an input future is
// outstanding, or the stored computation error.
func (d *Derived[T]) Get() (T, error) {
	d.mu.Lock()
	if d.state == StateComputing {
		d.mu.Unlock()
		var zero T
		return zero, &UsageError{
			Op:     "derived.get",
			Detail: "cycle: node read during its own computation",
		}
	}
	if !d.forced || d.stale {
		d.mu.Unlock()
		d.recompute()
		d.mu.Lock()
	}
	defer d.mu.Unlock()
	switch d.state {
	case StatePending:
		var zero T
		return zero, suspend(d.fut)
	case StateErrored:
		var zero T
		return zero, d.err
	default:
		return d.value, nil
	}
}

// ValueAny is the type-erased Get.
func (d *Derived[T]) ValueAny() (any, error) {
	v, err := d.Get()
	if err != nil {
		return nil, err
	}
	return v, nil
}

// Refresh invalidates the cached result and recomputes immediately.
func (d *Derived[T]) Refresh() {
	d.mu.Lock()
	d.stale = true
	d.mu.Unlock()
	d.recompute()
}

// Subscribe registers a change listener, forcing the node first so its
// dependency set is live. Returns an unsubscribe function.
func (d *Derived[T]) Subscribe(fn func()) (off func()) {
	d.ensureForced()
	return d.subs.listenKeyed(nextCellID(), func(struct{}) { fn() })
}

// SubscribeAny is the type-erased Subscribe.
func (d *Derived[T]) SubscribeAny(fn func()) (off func()) {
	return d.Subscribe(fn)
}

func (d *Derived[T]) subscribeKeyed(id uint64, fn func()) (off func()) {
	return d.subs.listenKeyed(id, func(struct{}) { fn() })
}

// StaleValue returns the last good ready value, or the configured fallback
// when the node has never been ready. It never blocks and never forces a
// computation.
func (d *Derived[T]) StaleValue() (T, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.hasLast {
		return d.last, true
	}
	if d.hasFall {
		return d.fallback.(T), true
	}
	var zero T
	return zero, false
}

// Dependencies returns the cells read by the selector's most recent
// execution, in read order.
func (d *Derived[T]) Dependencies() []AnyCell {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]AnyCell, len(d.deps))
	copy(out, d.deps)
	return out
}

func (d *Derived[T]) pendingFuture() AnyFuture {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.state == StatePending {
		return d.fut
	}
	return nil
}

func (d *Derived[T]) ensureForced() {
	d.mu.Lock()
	needs := !d.forced || d.stale
	d.mu.Unlock()
	if needs {
		d.recompute()
	}
}

// onNotify is the dependency-notification entry. It is enqueued in the
// scheduler under the node's id, so any number of dependency changes within
// one flush wave collapse into a single recomputation.
func (d *Derived[T]) onNotify() {
	d.mu.Lock()
	if d.detached {
		d.mu.Unlock()
		return
	}
	d.stale = true
	forced := d.forced
	d.mu.Unlock()
	if forced {
		d.recompute()
	}
}

func (d *Derived[T]) scheduleRecompute() {
	sched.dispatch([]job{{id: d.id, run: d.onNotify}})
}

func (d *Derived[T]) recompute() {
	d.mu.Lock()
	if d.detached {
		d.mu.Unlock()
		return
	}
	if d.state == StateComputing {
		// a computation is in flight; it reschedules itself when it
		// commits and finds the stale flag set
		d.stale = true
		d.mu.Unlock()
		return
	}
	d.state = StateComputing
	d.stale = false
	d.forced = true
	d.token++
	tok := d.token
	d.mu.Unlock()

	ctx := newSelectCtx()
	v, err := d.runSelector(ctx)
	ctx.close()

	d.mu.Lock()
	if d.token != tok || d.detached {
		d.mu.Unlock()
		return
	}
	d.resubscribeLocked(ctx.reads)

	switch {
	case err == nil:
		d.state = StateReady
		changed := !(d.hasLast && d.eq(d.last, v))
		d.value = v
		d.last = v
		d.hasLast = true
		d.err = nil
		d.fut = nil
		var jobs []job
		if changed {
			jobs = d.notifyLocked()
		}
		d.finishLocked(jobs, nil, 0)

	case IsPending(err):
		p, _ := AsPending(err)
		d.state = StatePending
		d.fut = p.Future()
		d.err = nil
		d.finishLocked(d.notifyLocked(), p.Future(), tok)

	default:
		var ce *ComputeError
		if !errors.As(err, &ce) {
			ce = newComputeError(d, err)
			err = ce
		}
		d.state = StateErrored
		d.err = err
		d.fut = nil
		originated := ce.Source == AnyCell(d)
		jobs := d.notifyLocked()
		restale := d.stale
		d.mu.Unlock()
		if originated {
			src := any(d)
			if d.owner != nil {
				src = d.owner
			}
			reportError(src, err)
		}
		if restale {
			d.scheduleRecompute()
		}
		sched.dispatch(jobs)
	}
}

// finishLocked releases d.mu, wires the pending-settle continuation when
// there is one, reschedules if the node went stale mid-computation, and
// dispatches notifications.
func (d *Derived[T]) finishLocked(jobs []job, pending AnyFuture, tok uint64) {
	restale := d.stale
	d.mu.Unlock()
	if pending != nil {
		pending.onSettled(func() {
			d.mu.Lock()
			if d.token != tok || d.detached {
				d.mu.Unlock()
				return
			}
			d.stale = true
			d.mu.Unlock()
			d.scheduleRecompute()
		})
	}
	if restale {
		d.scheduleRecompute()
	}
	sched.dispatch(jobs)
}

func (d *Derived[T]) runSelector(ctx *SelectCtx) (v T, err error) {
	defer func() {
		if r := recover(); r != nil {
			var cause error
			if e, ok := r.(error); ok {
				cause = e
			} else {
				cause = fmt.Errorf("panic: %v", r)
			}
			err = newComputeError(d, cause)
		}
	}()
	return d.selector(ctx)
}

// resubscribeLocked replaces the active subscription set with exactly the
// cells read by the latest run. Caller holds d.mu.
func (d *Derived[T]) resubscribeLocked(reads []AnyCell) {
	for _, off := range d.unsubs {
		off()
	}
	d.unsubs = d.unsubs[:0]
	d.deps = reads
	for _, c := range reads {
		d.unsubs = append(d.unsubs, c.subscribeKeyed(d.id, d.onNotify))
	}
}

func (d *Derived[T]) notifyLocked() []job {
	refs := d.subs.refs()
	jobs := make([]job, 0, len(refs))
	for _, ref := range refs {
		fn := ref.fn
		jobs = append(jobs, job{id: ref.id, run: func() { fn(struct{}{}) }})
	}
	return jobs
}

// detach permanently disconnects the node: dependencies unsubscribed,
// listeners dropped, scheduled recomputations turned into no-ops. Used by
// effect disposal.
func (d *Derived[T]) detach() {
	d.mu.Lock()
	d.detached = true
	d.token++
	for _, off := range d.unsubs {
		off()
	}
	d.unsubs = nil
	d.deps = nil
	d.subs = NewEmitter[struct{}]()
	d.mu.Unlock()
}
