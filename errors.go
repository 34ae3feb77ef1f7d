package reactive

import (
	"errors"
	"fmt"
	"runtime/debug"
	"strings"
)

// Pending is the control-flow signal meaning "one of my inputs is an
// unsettled asynchronous computation". It travels up through selector calls
// as an error value but is not a user-visible failure: the engine intercepts
// it, registers on the carried future, and recomputes once it settles.
type Pending struct {
	future AnyFuture
}

func (p *Pending) Error() string {
	return "reactive: value pending"
}

// Future returns the outstanding future handle.
func (p *Pending) Future() AnyFuture {
	return p.future
}

func suspend(f AnyFuture) error {
	return &Pending{future: f}
}

// IsPending reports whether err is (or wraps) the pending signal.
func IsPending(err error) bool {
	var p *Pending
	return errors.As(err, &p)
}

// AsPending extracts the pending signal from err.
func AsPending(err error) (*Pending, bool) {
	var p *Pending
	if errors.As(err, &p) {
		return p, true
	}
	return nil, false
}

// ComputeError is a computation failure captured on a derived node or
// effect: a selector returned an error, panicked, or an awaited future
// rejected. It is stored on the owning node, re-thrown to readers, and
// reported once to the global error hook.
type ComputeError struct {
	Source     AnyCell
	Cause      error
	StackTrace []byte
}

func (e *ComputeError) Error() string {
	key := e.Source.Key()
	if key == "" {
		key = fmt.Sprintf("%p", e.Source)
	}
	return fmt.Sprintf("reactive: compute error in %s: %v", key, e.Cause)
}

func (e *ComputeError) Unwrap() error {
	return e.Cause
}

func newComputeError(source AnyCell, cause error) *ComputeError {
	return &ComputeError{
		Source:     source,
		Cause:      cause,
		StackTrace: debug.Stack(),
	}
}

// AllRejectedError is produced by Any when every source has errored. Errors
// is index-aligned with the input cells; Keys carries each cell's key for
// attribution.
type AllRejectedError struct {
	Keys   []string
	Errors []error
}

func (e *AllRejectedError) Error() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "reactive: all %d sources rejected", len(e.Errors))
	for i, err := range e.Errors {
		key := e.Keys[i]
		if key == "" {
			key = fmt.Sprintf("#%d", i)
		}
		fmt.Fprintf(&sb, "; %s: %v", key, err)
	}
	return sb.String()
}

// UsageError signals programmer misuse: reading through a tracking scope
// after its synchronous extent has ended, overriding an initialized
// singleton, registering cleanup on a disposed effect. These fail fast and
// are never retried.
type UsageError struct {
	Op     string
	Detail string
}

func (e *UsageError) Error() string {
	return fmt.Sprintf("reactive: usage error in %s: %s", e.Op, e.Detail)
}

// Catch intercepts a computation error without breaking suspension: nil
// errors and the pending signal pass through untouched, every other error is
// routed to handler. This is the sanctioned alternative to blanket error
// handling inside a selector, which would also swallow the pending signal.
func Catch[T any](value T, err error, handler func(error) (T, error)) (T, error) {
	if err == nil || IsPending(err) {
		return value, err
	}
	return handler(err)
}
