package reactive

import (
	"errors"
	"strings"
	"testing"
)

func TestDerived_LazyUntilForced(t *testing.T) {
	a := NewAtom(1)

	runs := 0
	d := NewDerived(func(ctx *SelectCtx) (int, error) {
		runs++
		return Get(ctx, a)
	})

	if runs != 0 {
		t.Errorf("Selector ran before first force: %d runs", runs)
	}
	if d.State() != StateUninitialized {
		t.Errorf("Expected uninitialized, got %v", d.State())
	}

	v, err := d.Get()
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if v != 1 || runs != 1 {
		t.Errorf("Expected value 1 after 1 run, got %d after %d runs", v, runs)
	}
}

func TestDerived_CachesUntilInvalidated(t *testing.T) {
	a := NewAtom(1)

	runs := 0
	d := NewDerived(func(ctx *SelectCtx) (int, error) {
		runs++
		v, err := Get(ctx, a)
		return v * 10, err
	})

	d.Get()
	d.Get()
	if runs != 1 {
		t.Errorf("Repeated reads must hit the cache, got %d runs", runs)
	}

	a.Set(2)
	v, _ := d.Get()
	if v != 20 {
		t.Errorf("Expected 20 after dependency change, got %d", v)
	}
}

func TestDerived_EagerRecomputationAfterFirstForce(t *testing.T) {
	a := NewAtom(1)

	runs := 0
	d := NewDerived(func(ctx *SelectCtx) (int, error) {
		runs++
		return Get(ctx, a)
	})

	d.Get()
	a.Set(2)
	if runs != 2 {
		t.Errorf("Expected eager recomputation on change, got %d runs", runs)
	}
}

func TestDerived_ChainPropagation(t *testing.T) {
	a := NewAtom(1)
	b := NewDerived(func(ctx *SelectCtx) (int, error) {
		v, err := Get(ctx, a)
		return v * 2, err
	})
	c := NewDerived(func(ctx *SelectCtx) (int, error) {
		v, err := Get(ctx, b)
		return v + 10, err
	})

	v, err := c.Get()
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if v != 12 {
		t.Errorf("Expected 12, got %d", v)
	}

	a.Set(5)
	v, _ = c.Get()
	if v != 20 {
		t.Errorf("Expected 20, got %d", v)
	}
}

func TestDerived_ConditionalDependencies(t *testing.T) {
	useLeft := NewAtom(true)
	left := NewAtom("l")
	right := NewAtom("r")

	runs := 0
	d := NewDerived(func(ctx *SelectCtx) (string, error) {
		runs++
		use, err := Get(ctx, useLeft)
		if err != nil {
			return "", err
		}
		if use {
			return Get(ctx, left)
		}
		return Get(ctx, right)
	})

	v, _ := d.Get()
	if v != "l" {
		t.Fatalf("Expected 'l', got %q", v)
	}

	// the untaken branch's cell must not be a dependency
	right.Set("r2")
	if runs != 1 {
		t.Errorf("Change in untracked cell triggered recomputation: %d runs", runs)
	}

	useLeft.Set(false)
	v, _ = d.Get()
	if v != "r2" {
		t.Errorf("Expected 'r2' after branch switch, got %q", v)
	}

	// dependencies swapped: left is now untracked, right is tracked
	runsBefore := runs
	left.Set("l2")
	if runs != runsBefore {
		t.Errorf("Change in abandoned dependency triggered recomputation")
	}
	right.Set("r3")
	if runs != runsBefore+1 {
		t.Errorf("Change in newly tracked cell did not trigger recomputation")
	}
}

func TestDerived_DependenciesReflectLatestRun(t *testing.T) {
	useLeft := NewAtom(true, WithKey("switch"))
	left := NewAtom(1, WithKey("left"))
	right := NewAtom(2, WithKey("right"))

	d := NewDerived(func(ctx *SelectCtx) (int, error) {
		use, _ := Get(ctx, useLeft)
		if use {
			return Get(ctx, left)
		}
		return Get(ctx, right)
	})
	d.Get()

	deps := d.Dependencies()
	if len(deps) != 2 || deps[0].Key() != "switch" || deps[1].Key() != "left" {
		t.Errorf("Unexpected dependency set: %v", depKeys(deps))
	}

	useLeft.Set(false)
	deps = d.Dependencies()
	if len(deps) != 2 || deps[1].Key() != "right" {
		t.Errorf("Dependencies not updated after branch switch: %v", depKeys(deps))
	}
}

func depKeys(deps []AnyCell) []string {
	keys := make([]string, len(deps))
	for i, d := range deps {
		keys[i] = d.Key()
	}
	return keys
}

func TestDerived_DiamondRecomputesOnce(t *testing.T) {
	a := NewAtom(1)
	b := NewDerived(func(ctx *SelectCtx) (int, error) {
		v, err := Get(ctx, a)
		return v * 2, err
	})
	c := NewDerived(func(ctx *SelectCtx) (int, error) {
		v, err := Get(ctx, a)
		return v + 1, err
	})

	runs := 0
	d := NewDerived(func(ctx *SelectCtx) (int, error) {
		runs++
		bv, err := Get(ctx, b)
		if err != nil {
			return 0, err
		}
		cv, err := Get(ctx, c)
		if err != nil {
			return 0, err
		}
		return bv + cv, nil
	})

	v, _ := d.Get()
	if v != 4 { // 1*2 + 1+1
		t.Fatalf("Expected 4, got %d", v)
	}

	runs = 0
	a.Set(3)
	if runs != 1 {
		t.Errorf("Diamond tip recomputed %d times for one source change", runs)
	}
	v, _ = d.Get()
	if v != 10 { // 3*2 + 3+1
		t.Errorf("Expected 10, got %d", v)
	}
}

func TestDerived_SuspendsOnPendingDependency(t *testing.T) {
	a := NewAtom(0)
	d := NewDerived(func(ctx *SelectCtx) (int, error) {
		v, err := Get(ctx, a)
		return v + 1, err
	})
	d.Get()

	f, resolve, _ := NewFuture[int]()
	a.SetFuture(f)

	if d.State() != StatePending {
		t.Errorf("Expected pending, got %v", d.State())
	}
	if _, err := d.Get(); !IsPending(err) {
		t.Errorf("Expected pending error, got %v", err)
	}

	resolve(41)

	v, err := d.Get()
	if err != nil {
		t.Fatalf("Get failed after settle: %v", err)
	}
	if v != 42 {
		t.Errorf("Expected 42, got %d", v)
	}
}

func TestDerived_SelectorErrorWrappedWithSource(t *testing.T) {
	boom := errors.New("boom")
	d := NewDerived(func(ctx *SelectCtx) (int, error) {
		return 0, boom
	}, WithKey("broken"))

	_, err := d.Get()
	var ce *ComputeError
	if !errors.As(err, &ce) {
		t.Fatalf("Expected *ComputeError, got %v", err)
	}
	if ce.Source.Key() != "broken" {
		t.Errorf("Expected source 'broken', got %q", ce.Source.Key())
	}
	if !errors.Is(err, boom) {
		t.Error("ComputeError must unwrap to the cause")
	}
	if len(ce.StackTrace) == 0 {
		t.Error("Expected a captured stack trace")
	}
	if d.State() != StateErrored {
		t.Errorf("Expected errored, got %v", d.State())
	}
}

func TestDerived_SelectorPanicBecomesComputeError(t *testing.T) {
	d := NewDerived(func(ctx *SelectCtx) (int, error) {
		panic("bad index")
	})

	_, err := d.Get()
	var ce *ComputeError
	if !errors.As(err, &ce) {
		t.Fatalf("Expected *ComputeError, got %v", err)
	}
	if !strings.Contains(ce.Cause.Error(), "bad index") {
		t.Errorf("Cause should carry the panic payload, got %v", ce.Cause)
	}
}

func TestDerived_ErrorPropagatesWithOriginalSource(t *testing.T) {
	inner := NewDerived(func(ctx *SelectCtx) (int, error) {
		return 0, errors.New("inner failure")
	}, WithKey("inner"))
	outer := NewDerived(func(ctx *SelectCtx) (int, error) {
		return Get(ctx, inner)
	}, WithKey("outer"))

	_, err := outer.Get()
	var ce *ComputeError
	if !errors.As(err, &ce) {
		t.Fatalf("Expected *ComputeError, got %v", err)
	}
	if ce.Source.Key() != "inner" {
		t.Errorf("Propagated error must keep its original source, got %q", ce.Source.Key())
	}
}

func TestDerived_RecoversAfterError(t *testing.T) {
	a := NewAtom(-1)
	d := NewDerived(func(ctx *SelectCtx) (int, error) {
		v, err := Get(ctx, a)
		if err != nil {
			return 0, err
		}
		if v < 0 {
			return 0, errors.New("negative input")
		}
		return v, nil
	})

	if _, err := d.Get(); err == nil {
		t.Fatal("Expected error for negative input")
	}

	a.Set(4)
	v, err := d.Get()
	if err != nil {
		t.Fatalf("Expected recovery after valid input, got %v", err)
	}
	if v != 4 {
		t.Errorf("Expected 4, got %d", v)
	}
}

func TestDerived_CycleDetected(t *testing.T) {
	var d *Derived[int]
	d = NewDerived(func(ctx *SelectCtx) (int, error) {
		return d.Get()
	})

	_, err := d.Get()
	var ue *UsageError
	if !errors.As(err, &ue) {
		t.Fatalf("Expected *UsageError for self-read, got %v", err)
	}
}

func TestDerived_Refresh(t *testing.T) {
	calls := 0
	d := NewDerived(func(ctx *SelectCtx) (int, error) {
		calls++
		return calls, nil
	})

	v, _ := d.Get()
	if v != 1 {
		t.Fatalf("Expected 1, got %d", v)
	}

	d.Refresh()
	v, _ = d.Get()
	if v != 2 {
		t.Errorf("Expected recomputation on refresh, got %d", v)
	}
}

func TestDerived_EqualitySuppressesDownstream(t *testing.T) {
	a := NewAtom(1)
	parity := NewDerived(func(ctx *SelectCtx) (bool, error) {
		v, err := Get(ctx, a)
		return v%2 == 0, err
	})

	fires := 0
	parity.Subscribe(func() { fires++ })

	a.Set(3) // still odd
	if fires != 0 {
		t.Errorf("Unchanged derived value must not notify, got %d fires", fires)
	}

	a.Set(4)
	if fires != 1 {
		t.Errorf("Expected 1 notification, got %d", fires)
	}
}

func TestDerived_StaleValueDuringPendingAndError(t *testing.T) {
	a := NewAtom(2)
	d := NewDerived(func(ctx *SelectCtx) (int, error) {
		v, err := Get(ctx, a)
		return v * 2, err
	}, WithFallback(0))

	v, ok := d.StaleValue()
	if !ok || v != 0 {
		t.Errorf("Expected fallback 0 before first computation, got %d (%v)", v, ok)
	}

	d.Get()

	f, _, reject := NewFuture[int]()
	a.SetFuture(f)
	v, ok = d.StaleValue()
	if !ok || v != 4 {
		t.Errorf("Expected last good value 4 while pending, got %d (%v)", v, ok)
	}

	reject(errors.New("boom"))
	v, ok = d.StaleValue()
	if !ok || v != 4 {
		t.Errorf("Expected last good value 4 while errored, got %d (%v)", v, ok)
	}
}

func TestDerived_SubscribeForcesNode(t *testing.T) {
	a := NewAtom(1)

	runs := 0
	d := NewDerived(func(ctx *SelectCtx) (int, error) {
		runs++
		return Get(ctx, a)
	})

	got := make([]int, 0, 2)
	d.Subscribe(func() {
		v, _ := d.Get()
		got = append(got, v)
	})
	if runs != 1 {
		t.Errorf("Subscribe must force the first computation, got %d runs", runs)
	}

	a.Set(2)
	a.Set(3)
	if len(got) != 2 || got[0] != 2 || got[1] != 3 {
		t.Errorf("Unexpected notification sequence: %v", got)
	}
}

func TestCatch_PassesPendingThrough(t *testing.T) {
	a := NewAtom(0)
	d := NewDerived(func(ctx *SelectCtx) (int, error) {
		v, err := Get(ctx, a)
		return Catch(v, err, func(error) (int, error) {
			return -1, nil
		})
	})
	d.Get()

	f, resolve, _ := NewFuture[int]()
	a.SetFuture(f)
	if d.State() != StatePending {
		t.Errorf("Catch must not swallow suspension, state %v", d.State())
	}

	resolve(7)
	v, _ := d.Get()
	if v != 7 {
		t.Errorf("Expected 7, got %d", v)
	}
}

func TestCatch_HandlesRealErrors(t *testing.T) {
	a := NewAtom(0)
	d := NewDerived(func(ctx *SelectCtx) (int, error) {
		v, err := Get(ctx, a)
		return Catch(v, err, func(error) (int, error) {
			return -1, nil
		})
	})
	d.Get()

	f, _, reject := NewFuture[int]()
	a.SetFuture(f)
	reject(errors.New("upstream failure"))

	v, err := d.Get()
	if err != nil {
		t.Fatalf("Catch should have handled the error, got %v", err)
	}
	if v != -1 {
		t.Errorf("Expected handler fallback -1, got %d", v)
	}
}
