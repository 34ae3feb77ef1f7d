package reactive

import "sync"

// Kind discriminates the entity types reported through the creation hook.
type Kind string

const (
	KindMutable Kind = "mutable"
	KindDerived Kind = "derived"
	KindEffect  Kind = "effect"
	KindPool    Kind = "pool"
	KindModule  Kind = "module"
)

// CreationRecord describes a newly created entity. External inspection
// tooling registers against the creation hook without the engine depending
// on it.
type CreationRecord struct {
	Kind     Kind
	Key      string
	Metadata map[any]any
	Instance any
}

// CreationHook observes entity creation.
type CreationHook func(CreationRecord)

// ErrorRecord describes a computation error, tagged with the originating
// node for attribution.
type ErrorRecord struct {
	Source any
	Err    error
}

// ErrorHook observes computation errors.
type ErrorHook func(ErrorRecord)

var hooks struct {
	mu     sync.RWMutex
	create CreationHook
	err    ErrorHook
}

// SetCreationHook installs the global creation hook and returns the previous
// one (nil if none). Overrides compose by wrapping: a hook that wants to
// chain calls the previous hook itself.
func SetCreationHook(h CreationHook) CreationHook {
	hooks.mu.Lock()
	defer hooks.mu.Unlock()
	prev := hooks.create
	hooks.create = h
	return prev
}

// SetErrorHook installs the global error hook and returns the previous one
// (nil if none).
func SetErrorHook(h ErrorHook) ErrorHook {
	hooks.mu.Lock()
	defer hooks.mu.Unlock()
	prev := hooks.err
	hooks.err = h
	return prev
}

func reportCreation(rec CreationRecord) {
	hooks.mu.RLock()
	h := hooks.create
	hooks.mu.RUnlock()
	if h != nil {
		h(rec)
	}
}

func reportError(source any, err error) {
	hooks.mu.RLock()
	h := hooks.err
	hooks.mu.RUnlock()
	if h != nil {
		h(ErrorRecord{Source: source, Err: err})
	}
}
