package reactive

// SelectCtx is the tracking scope for one synchronous execution of a
// selector. Every cell read through it is recorded, in read order, and the
// recorded set replaces the owning node's subscription list after the run.
// The context is explicit rather than ambient: it only works within the
// selector's synchronous extent, and any use after that extent ends panics
// with a *UsageError.
type SelectCtx struct {
	reads  []AnyCell
	seen   map[AnyCell]struct{}
	closed bool
}

func newSelectCtx() *SelectCtx {
	return &SelectCtx{seen: make(map[AnyCell]struct{})}
}

func (ctx *SelectCtx) close() {
	ctx.closed = true
}

// Tracking is the dependency-recording capability passed into selectors:
// *SelectCtx for derived nodes, *EffectCtx for effects (which embeds
// *SelectCtx and promotes the capability). Get and the combinators accept
// either.
type Tracking interface {
	record(c AnyCell)
}

func (ctx *SelectCtx) record(c AnyCell) {
	if ctx.closed {
		panic(&UsageError{
			Op:     "select",
			Detail: "tracking scope used after its synchronous extent ended",
		})
	}
	if _, ok := ctx.seen[c]; ok {
		return
	}
	ctx.seen[c] = struct{}{}
	ctx.reads = append(ctx.reads, c)
}

// Get reads a cell inside a tracking scope, recording it as a dependency.
// A pending cell suspends the selector by returning a *Pending error; an
// errored cell propagates its error the same way. Both must be returned up
// the call stack, not swallowed (see Catch).
func Get[T any](ctx Tracking, c Cell[T]) (T, error) {
	ctx.record(c)
	return c.Get()
}

// All reads every source and requires all of them to be ready. If any source
// is errored, that error propagates immediately (first error in iteration
// order). Otherwise, if any source is pending, All suspends on a combined
// future that settles once every pending source has settled. Empty input
// returns an empty result immediately.
func All(ctx Tracking, cells ...AnyCell) ([]any, error) {
	values := make([]any, len(cells))
	var pendings []AnyFuture
	for i, c := range cells {
		ctx.record(c)
		v, err := c.ValueAny()
		if err != nil {
			if p, ok := AsPending(err); ok {
				pendings = append(pendings, p.Future())
				continue
			}
			return nil, err
		}
		values[i] = v
	}
	if len(pendings) > 0 {
		return nil, suspend(joinAll(pendings))
	}
	return values, nil
}

// Any returns the first ready source in iteration order, skipping errored
// and pending ones. If none is ready and at least one is pending, Any
// suspends until some pending source settles. If every source has errored,
// it fails with an *AllRejectedError carrying each individual error, also
// on empty input (vacuous failure).
func Any(ctx Tracking, cells ...AnyCell) (index int, value any, err error) {
	errs := make([]error, len(cells))
	keys := make([]string, len(cells))
	var pendings []AnyFuture
	for i, c := range cells {
		ctx.record(c)
		keys[i] = c.Key()
		v, rerr := c.ValueAny()
		if rerr == nil {
			return i, v, nil
		}
		if p, ok := AsPending(rerr); ok {
			pendings = append(pendings, p.Future())
			continue
		}
		errs[i] = rerr
	}
	if len(pendings) > 0 {
		return -1, nil, suspend(joinAny(pendings))
	}
	return -1, nil, &AllRejectedError{Keys: keys, Errors: errs}
}

// Race returns the first settled source, ready or errored, in iteration
// order; an errored winner propagates its error. If no source has settled,
// Race suspends until any of them does. Empty input returns index -1 with no
// value and no error ("no winner").
func Race(ctx Tracking, cells ...AnyCell) (index int, value any, err error) {
	var pendings []AnyFuture
	for i, c := range cells {
		ctx.record(c)
		v, rerr := c.ValueAny()
		if rerr == nil {
			return i, v, nil
		}
		if p, ok := AsPending(rerr); ok {
			pendings = append(pendings, p.Future())
			continue
		}
		return i, nil, rerr
	}
	if len(pendings) > 0 {
		return -1, nil, suspend(joinAny(pendings))
	}
	return -1, nil, nil
}

// SettledResult is one source's outcome from Settled: either a ready value
// or an error record.
type SettledResult struct {
	Value any
	Err   error
}

// Ready reports whether the source settled with a value.
func (r SettledResult) Ready() bool {
	return r.Err == nil
}

// Settled never propagates a source error itself: it suspends until every
// source has individually settled, then returns each source's ready value or
// error record. Empty input returns an empty result immediately.
func Settled(ctx Tracking, cells ...AnyCell) ([]SettledResult, error) {
	results := make([]SettledResult, len(cells))
	var pendings []AnyFuture
	for i, c := range cells {
		ctx.record(c)
		v, err := c.ValueAny()
		if err != nil {
			if p, ok := AsPending(err); ok {
				pendings = append(pendings, p.Future())
				continue
			}
			results[i] = SettledResult{Err: err}
			continue
		}
		results[i] = SettledResult{Value: v}
	}
	if len(pendings) > 0 {
		return nil, suspend(joinAll(pendings))
	}
	return results, nil
}
