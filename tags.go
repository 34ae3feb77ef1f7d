package reactive

// Tagger is anything that carries type-safe metadata tags: atoms, derived
// nodes, effects, and pools.
type Tagger interface {
	GetTag(tag any) (any, bool)
	SetTag(tag any, val any)
}

// Tag is a type-safe key for metadata
type Tag[T any] struct {
	key string
}

// NewTag creates a new tag with the given key
func NewTag[T any](key string) Tag[T] {
	return Tag[T]{key: key}
}

// Key returns the tag's key (for debugging)
func (t Tag[T]) Key() string {
	return t.key
}

// Get retrieves the tag value from an entity
func (t Tag[T]) Get(entity Tagger) (T, bool) {
	val, ok := entity.GetTag(t)
	if !ok {
		var zero T
		return zero, false
	}
	return val.(T), true
}

// MustGet retrieves the tag value or panics if not found
func (t Tag[T]) MustGet(entity Tagger) T {
	val, ok := t.Get(entity)
	if !ok {
		panic("tag " + t.key + " not found")
	}
	return val
}

// GetOrDefault retrieves the tag value or returns a default
func (t Tag[T]) GetOrDefault(entity Tagger, defaultVal T) T {
	if val, ok := t.Get(entity); ok {
		return val
	}
	return defaultVal
}

// Set stores the tag value on an entity
func (t Tag[T]) Set(entity Tagger, val T) {
	entity.SetTag(t, val)
}
