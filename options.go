package reactive

// configurable is the option target shared by atoms, derived nodes, and
// effects.
type configurable interface {
	setKey(key string)
	setEquality(eq Equality)
	setFallback(v any)
	setValidator(fn func(any) error)
	SetTag(tag any, val any)
}

// Option is a modifier for atoms, derived nodes, and effects.
type Option func(configurable)

// WithKey sets the entity's key, used for attribution in hooks, logs, and
// error messages.
func WithKey(key string) Option {
	return func(c configurable) {
		c.setKey(key)
	}
}

// WithEquality sets the strategy used to decide whether a new value should
// suppress notification. The default is Identity.
func WithEquality(eq Equality) Option {
	return func(c configurable) {
		c.setEquality(eq)
	}
}

// WithTag returns an option that sets a metadata tag on the entity.
func WithTag[V any](tag Tag[V], val V) Option {
	return func(c configurable) {
		c.SetTag(tag, val)
	}
}

// WithFallback sets the value exposed by StaleValue before the cell has ever
// been ready. The type must match the cell's value type.
func WithFallback[T any](v T) Option {
	return func(c configurable) {
		c.setFallback(v)
	}
}

// WithValidator installs a validation hook consulted by Set and SetFunc;
// a non-nil error rejects the mutation. The type must match the atom's value
// type.
func WithValidator[T any](fn func(T) error) Option {
	return func(c configurable) {
		c.setValidator(func(v any) error {
			return fn(v.(T))
		})
	}
}
