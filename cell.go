package reactive

import "sync/atomic"

// CellState describes the externally observable state of a cell.
type CellState uint8

const (
	// StateUninitialized means the cell has never been computed
	StateUninitialized CellState = iota
	// StateComputing means a computation is currently in progress
	StateComputing
	// StateReady means the cell holds a settled value
	StateReady
	// StatePending means the cell is waiting on an unsettled future
	StatePending
	// StateErrored means the last computation failed
	StateErrored
)

func (s CellState) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateComputing:
		return "computing"
	case StateReady:
		return "ready"
	case StatePending:
		return "pending"
	case StateErrored:
		return "errored"
	default:
		return "unknown"
	}
}

// AnyCell is the type-erased view of atoms and derived nodes. It is the
// surface that combinators, pools, and external inspection tooling work
// against.
type AnyCell interface {
	// Key returns the cell's key (empty unless set via WithKey)
	Key() string

	// State reports the cell's current state
	State() CellState

	// ValueAny returns the current value, or an error. A cell holding an
	// unsettled future returns a *Pending error carrying the future handle.
	ValueAny() (any, error)

	// SubscribeAny registers a listener invoked (with no payload) whenever
	// the cell changes, and returns an unsubscribe function.
	SubscribeAny(fn func()) (off func())

	// GetTag retrieves a metadata tag from the cell
	GetTag(tag any) (any, bool)

	// SetTag stores a metadata tag on the cell
	SetTag(tag any, val any)

	// pendingFuture returns the outstanding future while the cell is
	// pending, nil otherwise.
	pendingFuture() AnyFuture

	// subscribeKeyed registers a listener under the caller's identity so
	// the scheduler can coalesce notifications per subscriber.
	subscribeKeyed(id uint64, fn func()) (off func())
}

// Cell is the typed read surface shared by Atom[T] and Derived[T].
type Cell[T any] interface {
	AnyCell

	// Get returns the current value. A pending cell returns a *Pending
	// error; an errored cell returns its stored error.
	Get() (T, error)

	// Subscribe registers a change listener and returns an unsubscribe
	// function. Listeners receive no payload; they re-read the cell.
	Subscribe(fn func()) (off func())

	// StaleValue returns the last good ready value (or the configured
	// fallback) without blocking, even while the cell is pending or
	// errored.
	StaleValue() (T, bool)
}

var cellIDs atomic.Uint64

func nextCellID() uint64 {
	return cellIDs.Add(1)
}
