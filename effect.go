package reactive

import "sync"

// EffectCtx is the tracking scope of an effect run, extended with cleanup
// registration.
type EffectCtx struct {
	*SelectCtx
	effect *Effect
}

// OnCleanup registers a callback run before the effect's next execution and
// on disposal. Callbacks run in registration order. Registrations on a
// disposed effect are discarded; using the context after the run's
// synchronous extent has ended panics with a *UsageError.
func (ctx *EffectCtx) OnCleanup(fn func()) {
	if ctx.closed {
		panic(&UsageError{
			Op:     "effect.onCleanup",
			Detail: "cleanup registered after the effect's synchronous extent ended",
		})
	}
	ctx.effect.addCleanup(fn)
}

// Effect is a derived node run purely for its side effects. It executes once
// immediately on creation and re-executes exactly as a derived node
// recomputes. Each re-execution first drains the outstanding cleanup queue
// in registration order, then runs the body inside a batch so the atom
// writes it performs coalesce into one flush.
type Effect struct {
	node *Derived[struct{}]

	mu       sync.Mutex
	cleanups []func()
	disposed bool
}

// NewEffect creates and immediately runs an effect. The body must stay
// synchronous: asynchronous data enters through atoms holding futures, read
// via the tracking scope.
func NewEffect(fn func(ctx *EffectCtx) error, opts ...Option) *Effect {
	e := &Effect{}
	e.node = newDerived(func(sctx *SelectCtx) (struct{}, error) {
		e.mu.Lock()
		if e.disposed {
			e.mu.Unlock()
			return struct{}{}, nil
		}
		queue := e.cleanups
		e.cleanups = nil
		e.mu.Unlock()
		runCleanups(queue)

		var err error
		Batch(func() {
			err = fn(&EffectCtx{SelectCtx: sctx, effect: e})
		})
		return struct{}{}, err
	}, opts...)
	e.node.owner = e

	reportCreation(CreationRecord{
		Kind:     KindEffect,
		Key:      e.node.key,
		Metadata: e.node.tags,
		Instance: e,
	})

	e.node.ensureForced()
	return e
}

// Key returns the effect's key (empty unless set via WithKey).
func (e *Effect) Key() string { return e.node.Key() }

// GetTag retrieves a metadata tag from the effect.
func (e *Effect) GetTag(tag any) (any, bool) { return e.node.GetTag(tag) }

// SetTag stores a metadata tag on the effect.
func (e *Effect) SetTag(tag any, val any) { e.node.SetTag(tag, val) }

// State reports the underlying node's state; StateErrored exposes the last
// run's failure.
func (e *Effect) State() CellState { return e.node.State() }

// Err returns the last run's error, if any, without re-running the effect.
func (e *Effect) Err() error {
	e.node.mu.Lock()
	defer e.node.mu.Unlock()
	if e.node.state == StateErrored {
		return e.node.err
	}
	return nil
}

// Refresh re-runs the effect immediately.
func (e *Effect) Refresh() {
	e.mu.Lock()
	disposed := e.disposed
	e.mu.Unlock()
	if disposed {
		return
	}
	e.node.Refresh()
}

// Dispose drains and runs the outstanding cleanups once more and marks the
// effect permanently inert: later scheduled re-executions are no-ops and no
// new cleanup can be registered.
func (e *Effect) Dispose() {
	e.mu.Lock()
	if e.disposed {
		e.mu.Unlock()
		return
	}
	e.disposed = true
	queue := e.cleanups
	e.cleanups = nil
	e.mu.Unlock()

	e.node.detach()
	runCleanups(queue)
}

// Disposed reports whether Dispose has been called.
func (e *Effect) Disposed() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.disposed
}

func (e *Effect) addCleanup(fn func()) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.disposed {
		return
	}
	e.cleanups = append(e.cleanups, fn)
}

// runCleanups invokes callbacks in registration order (FIFO).
func runCleanups(queue []func()) {
	for _, fn := range queue {
		fn()
	}
}
