package reactive

import "sync"

// Singleton is a lazily initialized value with dependency-injection
// overrides: Define a factory once, Override it in tests before first use,
// Reset or Invalidate to recompute.
type Singleton[T any] struct {
	key     string
	factory func() T

	mu          sync.Mutex
	override    func() T
	value       T
	initialized bool
}

// Define creates a lazy singleton accessor for factory.
func Define[T any](factory func() T, opts ...SingletonOption) *Singleton[T] {
	s := &Singleton[T]{factory: factory}
	for _, opt := range opts {
		opt.apply(&s.key)
	}
	reportCreation(CreationRecord{
		Kind:     KindModule,
		Key:      s.key,
		Instance: s,
	})
	return s
}

// SingletonOption configures Define.
type SingletonOption struct {
	apply func(key *string)
}

// WithSingletonKey sets the singleton's key for hook attribution.
func WithSingletonKey(key string) SingletonOption {
	return SingletonOption{apply: func(dst *string) { *dst = key }}
}

// Key returns the singleton's key.
func (s *Singleton[T]) Key() string { return s.key }

// Get returns the value, invoking the (possibly overridden) factory on first
// use.
func (s *Singleton[T]) Get() T {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.initialized {
		factory := s.factory
		if s.override != nil {
			factory = s.override
		}
		s.value = factory()
		s.initialized = true
	}
	return s.value
}

// Override replaces the factory. Overriding after the singleton has been
// initialized is a usage error.
func (s *Singleton[T]) Override(factory func() T) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.initialized {
		return &UsageError{
			Op:     "singleton.override",
			Detail: "override after initialization; Reset or Invalidate first",
		}
	}
	s.override = factory
	return nil
}

// Reset restores the original factory and discards any cached value and
// override.
func (s *Singleton[T]) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.override = nil
	s.initialized = false
	var zero T
	s.value = zero
}

// Invalidate discards the cached value but keeps the active override; the
// next Get re-invokes the effective factory.
func (s *Singleton[T]) Invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.initialized = false
	var zero T
	s.value = zero
}

// IsOverridden reports whether an override is active.
func (s *Singleton[T]) IsOverridden() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.override != nil
}

// IsInitialized reports whether the value has been computed.
func (s *Singleton[T]) IsInitialized() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.initialized
}
