// Package reactive provides a reactive value-graph runtime for Go: mutable
// cells (atoms), computed cells (derived nodes) that recompute from other
// cells, and side-effect runners (effects) that re-execute when their inputs
// change.
//
// # Overview
//
// The runtime organizes state around four concepts:
//
//  1. Atoms: mutable cells holding a value or an in-flight asynchronous
//     computation
//  2. Derived nodes: read-only cells computed from other cells via a
//     selector, with dynamically tracked dependencies
//  3. Effects: derived nodes run for their side effects, with cleanup
//     callbacks
//  4. Pools: parameterized collections of atoms with automatic, future-aware
//     eviction
//
// # Basic Usage
//
// Create atoms and derive values from them:
//
//	count := reactive.NewAtom(0)
//
//	doubled := reactive.NewDerived(func(ctx *reactive.SelectCtx) (int, error) {
//	    v, err := reactive.Get(ctx, count)
//	    if err != nil {
//	        return 0, err
//	    }
//	    return v * 2, nil
//	})
//
//	v, _ := doubled.Get() // 0
//	count.Set(21)
//	v, _ = doubled.Get() // 42
//
// # Dependency Tracking
//
// Every cell read through the selector's SelectCtx is recorded, and the
// recorded set replaces the node's subscriptions after each run. An atom read
// on only one branch is subscribed only while that branch is taken:
//
//	visible := reactive.NewDerived(func(ctx *reactive.SelectCtx) (string, error) {
//	    flag, err := reactive.Get(ctx, showDetails)
//	    if err != nil {
//	        return "", err
//	    }
//	    if flag {
//	        return reactive.Get(ctx, details) // tracked only when flag is true
//	    }
//	    return reactive.Get(ctx, summary)
//	})
//
// Reads must stay within the selector's synchronous extent; using the
// context from a timer or goroutine afterwards panics with a *UsageError.
//
// # Asynchronous Values
//
// An atom can hold a Future. Reading it while unsettled suspends the reading
// selector by propagating a *Pending error up the call stack; the node
// recomputes automatically once the future settles:
//
//	user := reactive.NewAtom(User{})
//	user.SetFuture(reactive.GoFuture(fetchUser))
//
//	greeting := reactive.NewDerived(func(ctx *reactive.SelectCtx) (string, error) {
//	    u, err := reactive.Get(ctx, user) // *Pending until fetchUser returns
//	    if err != nil {
//	        return "", err
//	    }
//	    return "hello, " + u.Name, nil
//	})
//
// The pending signal must be returned, never swallowed; Catch intercepts
// computation errors while letting the pending signal through.
//
// Multi-source composition uses the combinators All, Any, Race, and Settled,
// which operate over any mix of atoms and derived nodes read inside the same
// scope.
//
// # Batching
//
// Mutations inside one Batch call are applied immediately but notified once,
// with at most one recomputation per affected subscriber:
//
//	reactive.Batch(func() {
//	    firstName.Set("Ada")
//	    lastName.Set("Lovelace")
//	})
//	// fullName recomputed once, not twice
//
// # Effects
//
//	e := reactive.NewEffect(func(ctx *reactive.EffectCtx) error {
//	    addr, err := reactive.Get(ctx, listenAddr)
//	    if err != nil {
//	        return err
//	    }
//	    srv := startServer(addr)
//	    ctx.OnCleanup(func() { srv.Close() })
//	    return nil
//	})
//	defer e.Dispose()
//
// Cleanups registered during one execution run in registration order before
// the next execution, and once more on Dispose.
//
// # Pools
//
// Pools key atoms by a parameter value, compared with a configurable
// equality strategy:
//
//	users := reactive.NewPool(func(id string) User {
//	    return User{ID: id}
//	}, reactive.WithPoolTTL(5*time.Minute), reactive.WithPoolKey("users"))
//
//	users.SetFuture("u1", reactive.GoFuture(func() (User, error) {
//	    return loadUser("u1")
//	}))
//
// An entry untouched for the TTL is evicted, but never while its value is an
// unsettled future; eviction re-arms only after settlement.
//
// # Telemetry
//
// Every entity creation and every computation error is reported through a
// process-wide overridable hook (SetCreationHook, SetErrorHook). Inspection
// tooling composes by wrapping the previous hook; see the extensions
// package for ready-made zerolog, slog, and prometheus consumers.
//
// # Dependency Injection
//
// Define builds lazy singletons with test-time overrides:
//
//	db := reactive.Define(openDB)
//	// in tests, before first Get:
//	db.Override(func() *DB { return &DB{mock: true} })
//
// # Concurrency Model
//
// The graph is designed for a single logical execution flow. All operations
// are guarded for memory safety, and future settlement may arrive from other
// goroutines, but there is no internal parallelism: notification, batching,
// and recomputation run on the flow that triggered them.
package reactive
