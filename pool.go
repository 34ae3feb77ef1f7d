package reactive

import (
	"fmt"
	"reflect"
	"sync"
	"time"
)

// PoolOption is a modifier for pools.
type PoolOption func(*poolConfig)

type poolConfig struct {
	key  string
	ttl  time.Duration
	eq   Equality
	tags map[any]any
}

// WithPoolKey sets the pool's key; entry atoms derive theirs from it.
func WithPoolKey(key string) PoolOption {
	return func(c *poolConfig) { c.key = key }
}

// WithPoolTTL enables eviction: an entry untouched for ttl is removed. The
// timer never fires while the entry's value is an unsettled future; arming
// is deferred until the future settles. A zero ttl (the default) disables
// eviction.
func WithPoolTTL(ttl time.Duration) PoolOption {
	return func(c *poolConfig) { c.ttl = ttl }
}

// WithPoolEquality sets the strategy used to match parameter values. The
// default is Deep, so structurally equal parameters share an entry.
func WithPoolEquality(eq Equality) PoolOption {
	return func(c *poolConfig) { c.eq = eq }
}

// WithPoolTag returns an option that sets a metadata tag on the pool.
func WithPoolTag[V any](tag Tag[V], val V) PoolOption {
	return func(c *poolConfig) { c.tags[tag] = val }
}

// Pool is a keyed collection of atoms created lazily per parameter value.
// Parameters are matched by a configurable equality strategy, with an
// opportunistic identity-keyed cache for comparable parameter values.
// Entries are evicted after a TTL of inactivity, but never while their value
// is an in-flight asynchronous computation.
type Pool[P any, T any] struct {
	key  string
	ttl  time.Duration
	eq   Equality
	init func(P) T

	mu       sync.Mutex
	tags     map[any]any
	entries  []*poolEntry[P, T]
	refCache map[any]*poolEntry[P, T]

	changed *Emitter[P]
	removed *Emitter[P]
}

type poolEntry[P any, T any] struct {
	id       uint64
	params   P
	atom     *Atom[T]
	timer    *time.Timer
	token    uint64
	removed  bool
	disposal *Emitter[struct{}]
	unsub    func()
}

// NewPool creates a pool whose entries are initialized by init on first
// access of a parameter value.
func NewPool[P any, T any](init func(P) T, opts ...PoolOption) *Pool[P, T] {
	cfg := poolConfig{eq: Deep(), tags: make(map[any]any)}
	for _, opt := range opts {
		opt(&cfg)
	}
	p := &Pool[P, T]{
		key:      cfg.key,
		ttl:      cfg.ttl,
		eq:       cfg.eq,
		init:     init,
		tags:     cfg.tags,
		refCache: make(map[any]*poolEntry[P, T]),
		changed:  NewEmitter[P](),
		removed:  NewEmitter[P](),
	}
	reportCreation(CreationRecord{
		Kind:     KindPool,
		Key:      p.key,
		Metadata: p.tags,
		Instance: p,
	})
	return p
}

// Key returns the pool's key.
func (p *Pool[P, T]) Key() string { return p.key }

// GetTag retrieves a metadata tag from the pool.
func (p *Pool[P, T]) GetTag(tag any) (any, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	val, ok := p.tags[tag]
	return val, ok
}

// SetTag stores a metadata tag on the pool.
func (p *Pool[P, T]) SetTag(tag any, val any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.tags[tag] = val
}

// Get locates or creates the entry for params and returns its current value
// (pending and errored entries behave like atom reads). The entry's eviction
// timer is re-armed.
func (p *Pool[P, T]) Get(params P) (T, error) {
	e := p.acquire(params)
	return e.atom.Get()
}

// GetAtom locates or creates the entry for params and returns its atom. The
// returned handle stays valid until the entry is removed; use OnEntryDispose
// to react to that.
func (p *Pool[P, T]) GetAtom(params P) *Atom[T] {
	return p.acquire(params).atom
}

// Set locates or creates the entry for params and replaces its value.
func (p *Pool[P, T]) Set(params P, v T) error {
	e := p.acquire(params)
	if err := e.atom.Set(v); err != nil {
		return err
	}
	p.touch(e)
	return nil
}

// SetFunc locates or creates the entry for params and updates its value from
// the previous resolved value.
func (p *Pool[P, T]) SetFunc(params P, updater func(prev T) T) error {
	e := p.acquire(params)
	if err := e.atom.SetFunc(updater); err != nil {
		return err
	}
	p.touch(e)
	return nil
}

// SetFuture locates or creates the entry for params and installs an
// asynchronous computation. Eviction is suspended until it settles.
func (p *Pool[P, T]) SetFuture(params P, f *Future[T]) {
	e := p.acquire(params)
	e.atom.SetFuture(f)
	p.touch(e)
}

// Has reports whether an entry exists for params, without creating one and
// without resetting its eviction timer.
func (p *Pool[P, T]) Has(params P) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lookupLocked(params) != nil
}

// Len returns the number of live entries.
func (p *Pool[P, T]) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.entries)
}

// ForEach calls fn for every live entry.
func (p *Pool[P, T]) ForEach(fn func(params P, atom *Atom[T])) {
	p.mu.Lock()
	snapshot := make([]*poolEntry[P, T], len(p.entries))
	copy(snapshot, p.entries)
	p.mu.Unlock()
	for _, e := range snapshot {
		fn(e.params, e.atom)
	}
}

// Remove removes the entry for params, if any, running the full disposal
// pipeline. It reports whether an entry was removed.
func (p *Pool[P, T]) Remove(params P) bool {
	p.mu.Lock()
	e := p.lookupLocked(params)
	if e == nil {
		p.mu.Unlock()
		return false
	}
	p.removeEntryLocked(e)
	return true
}

// Clear removes every entry.
func (p *Pool[P, T]) Clear() {
	p.mu.Lock()
	snapshot := make([]*poolEntry[P, T], len(p.entries))
	copy(snapshot, p.entries)
	p.mu.Unlock()
	for _, e := range snapshot {
		p.mu.Lock()
		if e.removed {
			p.mu.Unlock()
			continue
		}
		p.removeEntryLocked(e)
	}
}

// OnChange registers a collection-level listener fired with the parameter
// value whenever an entry is created or its value changes.
func (p *Pool[P, T]) OnChange(fn func(params P)) (off func()) {
	return p.changed.Listen(fn)
}

// OnRemove registers a collection-level listener fired with the parameter
// value after an entry has been removed.
func (p *Pool[P, T]) OnRemove(fn func(params P)) (off func()) {
	return p.removed.Listen(fn)
}

// OnEntryDispose registers a listener on a specific entry's disposal signal,
// so holders of a scoped reference into that entry can react and re-resolve.
// It reports false when no entry exists for params. The signal is latched:
// listeners added after disposal fire immediately.
func (p *Pool[P, T]) OnEntryDispose(params P, fn func()) (off func(), ok bool) {
	p.mu.Lock()
	e := p.lookupLocked(params)
	p.mu.Unlock()
	if e == nil {
		return nil, false
	}
	return e.disposal.Listen(func(struct{}) { fn() }), true
}

// acquire locates or creates the entry for params and re-arms its eviction
// timer.
func (p *Pool[P, T]) acquire(params P) *poolEntry[P, T] {
	p.mu.Lock()
	e := p.lookupLocked(params)
	created := false
	if e == nil {
		e = p.createLocked(params)
		created = true
	}
	after := p.armLocked(e)
	p.mu.Unlock()
	if after != nil {
		after()
	}
	if created {
		p.changed.Emit(params)
	}
	return e
}

func (p *Pool[P, T]) touch(e *poolEntry[P, T]) {
	p.mu.Lock()
	if e.removed {
		p.mu.Unlock()
		return
	}
	after := p.armLocked(e)
	p.mu.Unlock()
	if after != nil {
		after()
	}
}

// lookupLocked consults the identity cache first, then falls back to an
// equality scan, repopulating the cache on a hit.
func (p *Pool[P, T]) lookupLocked(params P) *poolEntry[P, T] {
	ck, cacheable := identityKey(params)
	if cacheable {
		if e, ok := p.refCache[ck]; ok && !e.removed {
			return e
		}
	}
	for _, e := range p.entries {
		if p.eq(e.params, params) {
			if cacheable {
				p.refCache[ck] = e
			}
			return e
		}
	}
	return nil
}

func (p *Pool[P, T]) createLocked(params P) *poolEntry[P, T] {
	e := &poolEntry[P, T]{
		id:       nextCellID(),
		params:   params,
		disposal: NewEmitter[struct{}](),
	}
	e.atom = NewAtomFunc(
		func() T { return p.init(params) },
		WithKey(p.entryKey(params)),
	)
	e.unsub = e.atom.subscribeKeyed(e.id, func() { p.onEntryChange(e) })
	p.entries = append(p.entries, e)
	if ck, ok := identityKey(params); ok {
		p.refCache[ck] = e
	}
	return e
}

func (p *Pool[P, T]) entryKey(params P) string {
	if p.key == "" {
		return ""
	}
	return fmt.Sprintf("%s[%v]", p.key, params)
}

func (p *Pool[P, T]) onEntryChange(e *poolEntry[P, T]) {
	p.mu.Lock()
	if e.removed {
		p.mu.Unlock()
		return
	}
	params := e.params
	after := p.armLocked(e)
	p.mu.Unlock()
	if after != nil {
		after()
	}
	p.changed.Emit(params)
}

// armLocked re-arms the entry's eviction timer. While the entry's value is
// an unsettled future, arming is deferred to a retry-after-settle
// continuation; the shared change token invalidates stale timers and stale
// continuations alike. The returned func, if non-nil, must be called after
// releasing p.mu.
func (p *Pool[P, T]) armLocked(e *poolEntry[P, T]) (after func()) {
	e.token++
	tok := e.token
	if e.timer != nil {
		e.timer.Stop()
		e.timer = nil
	}
	if p.ttl <= 0 {
		return nil
	}
	if fut := e.atom.pendingFuture(); fut != nil {
		return func() {
			fut.onSettled(func() {
				p.mu.Lock()
				if e.removed || e.token != tok {
					p.mu.Unlock()
					return
				}
				retry := p.armLocked(e)
				p.mu.Unlock()
				if retry != nil {
					retry()
				}
			})
		}
	}
	e.timer = time.AfterFunc(p.ttl, func() { p.evict(e, tok) })
	return nil
}

func (p *Pool[P, T]) evict(e *poolEntry[P, T], tok uint64) {
	p.mu.Lock()
	if e.removed || e.token != tok {
		p.mu.Unlock()
		return
	}
	p.removeEntryLocked(e)
}

// removeEntryLocked runs the disposal pipeline: dispose the atom, cancel
// timers and subscriptions, fire the entry-scoped disposal signal, remove
// from the backing collection, fire the collection-level removal event.
// Caller holds p.mu; it is released on return.
func (p *Pool[P, T]) removeEntryLocked(e *poolEntry[P, T]) {
	e.removed = true
	e.token++
	timer := e.timer
	e.timer = nil
	params := e.params
	p.mu.Unlock()

	e.atom.detach()
	if timer != nil {
		timer.Stop()
	}
	e.unsub()
	e.disposal.Settle(struct{}{})

	p.mu.Lock()
	for i, cur := range p.entries {
		if cur == e {
			p.entries = append(p.entries[:i], p.entries[i+1:]...)
			break
		}
	}
	if ck, ok := identityKey(params); ok {
		if p.refCache[ck] == e {
			delete(p.refCache, ck)
		}
	}
	p.mu.Unlock()

	p.removed.Emit(params)
}

// identityKey returns params as a map key for the fast-path cache when its
// dynamic type is comparable.
func identityKey[P any](params P) (any, bool) {
	rv := reflect.ValueOf(params)
	if !rv.IsValid() || !rv.Comparable() {
		return nil, false
	}
	return params, true
}
