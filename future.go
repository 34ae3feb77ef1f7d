package reactive

import (
	"context"
	"sync"
	"sync/atomic"
)

// AnyFuture is the type-erased handle to an eventual result, used by the
// pending signal and the combinator joins.
type AnyFuture interface {
	// Done is closed when the future settles
	Done() <-chan struct{}

	// Settled reports whether the future has fulfilled or rejected
	Settled() bool

	// onSettled registers a callback invoked once the future settles
	// (immediately if it already has).
	onSettled(fn func())
}

type settlement[T any] struct {
	value T
	err   error
}

// Future is an eventual result with states pending, fulfilled, and rejected.
// Once settled, its result never changes and every settle callback fires
// exactly once.
type Future[T any] struct {
	done chan struct{}
	em   *Emitter[settlement[T]]

	mu     sync.Mutex
	result settlement[T]
	state  int // 0 pending, 1 fulfilled, 2 rejected
}

// NewFuture creates a pending future plus its resolve and reject functions.
// Only the first settlement wins; later calls are no-ops.
func NewFuture[T any]() (f *Future[T], resolve func(T), reject func(error)) {
	f = &Future[T]{
		done: make(chan struct{}),
		em:   NewEmitter[settlement[T]](),
	}
	return f, func(v T) { f.settle(settlement[T]{value: v}) },
		func(err error) { f.settle(settlement[T]{err: err}) }
}

// GoFuture runs fn in its own goroutine and settles the future with its
// result.
func GoFuture[T any](fn func() (T, error)) *Future[T] {
	f, resolve, reject := NewFuture[T]()
	go func() {
		v, err := fn()
		if err != nil {
			reject(err)
			return
		}
		resolve(v)
	}()
	return f
}

// ResolvedFuture returns an already-fulfilled future.
func ResolvedFuture[T any](v T) *Future[T] {
	f, resolve, _ := NewFuture[T]()
	resolve(v)
	return f
}

// RejectedFuture returns an already-rejected future.
func RejectedFuture[T any](err error) *Future[T] {
	f, _, reject := NewFuture[T]()
	reject(err)
	return f
}

func (f *Future[T]) settle(s settlement[T]) {
	f.mu.Lock()
	if f.state != 0 {
		f.mu.Unlock()
		return
	}
	f.result = s
	if s.err != nil {
		f.state = 2
	} else {
		f.state = 1
	}
	f.mu.Unlock()

	close(f.done)
	f.em.Settle(s)
}

// Done returns a channel closed when the future settles.
func (f *Future[T]) Done() <-chan struct{} {
	return f.done
}

// Settled reports whether the future has settled.
func (f *Future[T]) Settled() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state != 0
}

// TryResult returns the result if the future has settled.
func (f *Future[T]) TryResult() (value T, err error, ok bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state == 0 {
		var zero T
		return zero, nil, false
	}
	return f.result.value, f.result.err, true
}

// Await blocks until the future settles or ctx is done.
func (f *Future[T]) Await(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		f.mu.Lock()
		defer f.mu.Unlock()
		return f.result.value, f.result.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// OnSettle registers a callback invoked once with the final result,
// immediately if the future has already settled.
func (f *Future[T]) OnSettle(fn func(T, error)) {
	f.em.Listen(func(s settlement[T]) {
		fn(s.value, s.err)
	})
}

func (f *Future[T]) onSettled(fn func()) {
	f.em.Listen(func(settlement[T]) { fn() })
}

// joinAll returns a future that settles once every input future has settled.
func joinAll(futs []AnyFuture) AnyFuture {
	f, resolve, _ := NewFuture[struct{}]()
	if len(futs) == 0 {
		resolve(struct{}{})
		return f
	}
	var remaining atomic.Int64
	remaining.Store(int64(len(futs)))
	for _, fut := range futs {
		fut.onSettled(func() {
			if remaining.Add(-1) == 0 {
				resolve(struct{}{})
			}
		})
	}
	return f
}

// joinAny returns a future that settles as soon as any input future settles.
func joinAny(futs []AnyFuture) AnyFuture {
	f, resolve, _ := NewFuture[struct{}]()
	for _, fut := range futs {
		fut.onSettled(func() {
			resolve(struct{}{})
		})
	}
	return f
}
