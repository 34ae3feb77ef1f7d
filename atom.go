package reactive

import "sync"

// Atom is a mutable reactive cell. Its current value is either ready,
// pending on an unsettled future, or errored (the future rejected). Every
// successful mutation routes notification through the batching scheduler, so
// multiple sets inside one batch collapse into a single flush per
// subscriber.
type Atom[T any] struct {
	id       uint64
	key      string
	eq       Equality
	fallback any
	hasFall  bool
	validate func(any) error
	init     func() T

	mu          sync.Mutex
	tags        map[any]any
	initialized bool
	state       CellState
	value       T
	err         error
	fut         AnyFuture
	last        T
	hasLast     bool
	subs        *Emitter[struct{}]
	token       uint64
	detached    bool
}

// NewAtom creates an atom holding an initial value.
func NewAtom[T any](initial T, opts ...Option) *Atom[T] {
	return NewAtomFunc(func() T { return initial }, opts...)
}

// NewAtomFunc creates an atom with a lazy initializer, invoked on first
// access and re-invoked by Reset.
func NewAtomFunc[T any](init func() T, opts ...Option) *Atom[T] {
	a := newAtom(init, opts...)
	reportCreation(CreationRecord{
		Kind:     KindMutable,
		Key:      a.key,
		Metadata: a.tags,
		Instance: a,
	})
	return a
}

func newAtom[T any](init func() T, opts ...Option) *Atom[T] {
	a := &Atom[T]{
		id:   nextCellID(),
		eq:   Identity(),
		init: init,
		tags: make(map[any]any),
		subs: NewEmitter[struct{}](),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *Atom[T]) setKey(key string)               { a.key = key }
func (a *Atom[T]) setEquality(eq Equality)         { a.eq = eq }
func (a *Atom[T]) setFallback(v any)               { a.fallback, a.hasFall = v, true }
func (a *Atom[T]) setValidator(fn func(any) error) { a.validate = fn }

// Key returns the atom's key (empty unless set via WithKey).
func (a *Atom[T]) Key() string { return a.key }

// GetTag retrieves a metadata tag from the atom.
func (a *Atom[T]) GetTag(tag any) (any, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	val, ok := a.tags[tag]
	return val, ok
}

// SetTag stores a metadata tag on the atom.
func (a *Atom[T]) SetTag(tag any, val any) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.tags[tag] = val
}

// State reports the atom's current state without forcing a lazy
// initializer.
func (a *Atom[T]) State() CellState {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.initialized {
		return StateUninitialized
	}
	return a.state
}

// Get returns the current value as-is: a pending atom returns a *Pending
// error carrying the future handle, an errored atom returns its stored
// error. A lazy initializer is invoked on first read.
func (a *Atom[T]) Get() (T, error) {
	a.mu.Lock()
	a.ensureInitLocked()
	defer a.mu.Unlock()
	switch a.state {
	case StatePending:
		var zero T
		return zero, suspend(a.fut)
	case StateErrored:
		var zero T
		return zero, a.err
	default:
		return a.value, nil
	}
}

// ValueAny is the type-erased Get.
func (a *Atom[T]) ValueAny() (any, error) {
	v, err := a.Get()
	if err != nil {
		return nil, err
	}
	return v, nil
}

// Set replaces the value. If the new value is equal to the previous ready
// value per the atom's equality strategy, notification is suppressed. A
// configured validator can reject the mutation.
func (a *Atom[T]) Set(v T) error {
	if a.validate != nil {
		if err := a.validate(v); err != nil {
			return err
		}
	}
	a.commit(v)
	return nil
}

// SetFunc computes the next value from the previous resolved value. If the
// atom has never been ready, the updater receives the zero value.
func (a *Atom[T]) SetFunc(updater func(prev T) T) error {
	a.mu.Lock()
	a.ensureInitLocked()
	prev := a.last
	a.mu.Unlock()
	return a.Set(updater(prev))
}

// SetFuture installs an unsettled asynchronous computation. Subscribers are
// notified once when the future is installed and again when it settles. A
// late settlement is ignored if the atom has been mutated in the meantime.
func (a *Atom[T]) SetFuture(f *Future[T]) {
	a.mu.Lock()
	a.initialized = true
	a.token++
	tok := a.token
	a.state = StatePending
	a.fut = f
	a.err = nil
	jobs := a.notifyLocked()
	a.mu.Unlock()

	// The settle handler must register before subscribers are notified:
	// a recomputing subscriber suspends on this same future, and its
	// continuation has to observe the committed value, so it must run
	// after the handler.
	f.OnSettle(func(v T, err error) {
		a.settleFromFuture(tok, v, err)
	})
	sched.dispatch(jobs)
}

// Reset restores the atom to its original initializer, re-invoking a lazy
// one. Equality suppression applies as for Set.
func (a *Atom[T]) Reset() {
	a.commit(a.init())
}

func (a *Atom[T]) commit(v T) {
	a.mu.Lock()
	// force a lazy initializer first so the equality comparison runs
	// against the initial value even when the atom has never been read
	a.ensureInitLocked()
	suppressed := a.state == StateReady && a.eq(a.value, v)
	a.token++
	a.state = StateReady
	a.value = v
	a.last = v
	a.hasLast = true
	a.err = nil
	a.fut = nil
	if suppressed {
		a.mu.Unlock()
		return
	}
	jobs := a.notifyLocked()
	a.mu.Unlock()
	sched.dispatch(jobs)
}

func (a *Atom[T]) settleFromFuture(tok uint64, v T, err error) {
	a.mu.Lock()
	if a.token != tok || a.detached {
		a.mu.Unlock()
		return
	}
	if err != nil {
		a.state = StateErrored
		a.err = err
	} else {
		a.state = StateReady
		a.value = v
		a.last = v
		a.hasLast = true
		a.err = nil
	}
	a.fut = nil
	jobs := a.notifyLocked()
	a.mu.Unlock()
	sched.dispatch(jobs)
}

// Subscribe registers a listener invoked (with no payload) after each
// unsuppressed change, and returns an unsubscribe function.
func (a *Atom[T]) Subscribe(fn func()) (off func()) {
	return a.subscribeKeyed(nextCellID(), fn)
}

// SubscribeAny is the type-erased Subscribe.
func (a *Atom[T]) SubscribeAny(fn func()) (off func()) {
	return a.Subscribe(fn)
}

func (a *Atom[T]) subscribeKeyed(id uint64, fn func()) (off func()) {
	return a.subs.listenKeyed(id, func(struct{}) { fn() })
}

// StaleValue returns the last good ready value, or the configured fallback
// when the atom has never been ready. It never blocks and never forces a
// lazy initializer.
func (a *Atom[T]) StaleValue() (T, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.hasLast {
		return a.last, true
	}
	if a.hasFall {
		return a.fallback.(T), true
	}
	var zero T
	return zero, false
}

func (a *Atom[T]) pendingFuture() AnyFuture {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.state == StatePending {
		return a.fut
	}
	return nil
}

// notifyLocked snapshots the subscriber list as scheduler jobs. Caller holds
// a.mu.
func (a *Atom[T]) notifyLocked() []job {
	refs := a.subs.refs()
	jobs := make([]job, 0, len(refs))
	for _, ref := range refs {
		fn := ref.fn
		jobs = append(jobs, job{id: ref.id, run: func() { fn(struct{}{}) }})
	}
	return jobs
}

// detach drops all subscribers and invalidates outstanding settlements. Used
// by pool entry disposal.
func (a *Atom[T]) detach() {
	a.mu.Lock()
	a.detached = true
	a.token++
	a.subs = NewEmitter[struct{}]()
	a.mu.Unlock()
}

func (a *Atom[T]) ensureInitLocked() {
	if a.initialized {
		return
	}
	a.initialized = true
	a.state = StateReady
	a.value = a.init()
	a.last = a.value
	a.hasLast = true
}
