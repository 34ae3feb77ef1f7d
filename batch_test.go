package reactive

import "testing"

func TestBatch_CoalescesNotifications(t *testing.T) {
	a := NewAtom(0)

	runs := 0
	d := NewDerived(func(ctx *SelectCtx) (int, error) {
		runs++
		return Get(ctx, a)
	})
	d.Get()

	runs = 0
	Batch(func() {
		a.Set(1)
		a.Set(2)
		a.Set(3)
	})

	if runs != 1 {
		t.Errorf("Expected 1 recomputation per flush wave, got %d", runs)
	}
	v, _ := d.Get()
	if v != 3 {
		t.Errorf("Expected final value 3, got %d", v)
	}
}

func TestBatch_WithoutBatchEachSetFlushes(t *testing.T) {
	a := NewAtom(0)

	runs := 0
	d := NewDerived(func(ctx *SelectCtx) (int, error) {
		runs++
		return Get(ctx, a)
	})
	d.Get()

	runs = 0
	a.Set(1)
	a.Set(2)
	a.Set(3)

	if runs != 3 {
		t.Errorf("Each unbatched set is its own flush, got %d runs", runs)
	}
}

func TestBatch_MultipleAtomsSingleRecompute(t *testing.T) {
	x := NewAtom(1)
	y := NewAtom(2)

	runs := 0
	sum := NewDerived(func(ctx *SelectCtx) (int, error) {
		runs++
		xv, err := Get(ctx, x)
		if err != nil {
			return 0, err
		}
		yv, err := Get(ctx, y)
		if err != nil {
			return 0, err
		}
		return xv + yv, nil
	})
	sum.Get()

	runs = 0
	Batch(func() {
		x.Set(10)
		y.Set(20)
	})

	if runs != 1 {
		t.Errorf("Expected 1 recomputation for batched writes, got %d", runs)
	}
	v, _ := sum.Get()
	if v != 30 {
		t.Errorf("Expected 30, got %d", v)
	}
}

func TestBatch_NestedFlushesAtOutermostExit(t *testing.T) {
	a := NewAtom(0)

	fires := 0
	a.Subscribe(func() { fires++ })

	Batch(func() {
		a.Set(1)
		Batch(func() {
			a.Set(2)
		})
		if fires != 0 {
			t.Errorf("Inner batch exit must not flush, got %d fires", fires)
		}
		a.Set(3)
	})

	if fires != 1 {
		t.Errorf("Expected a single flush at outermost exit, got %d", fires)
	}
}

func TestBatch_ReadsInsideBatchSeeWrites(t *testing.T) {
	a := NewAtom(1)

	Batch(func() {
		a.Set(5)
		v, err := a.Get()
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if v != 5 {
			t.Errorf("Writes must be visible inside the batch, got %d", v)
		}
	})
}

func TestBatch_CascadeWithinOneFlush(t *testing.T) {
	src := NewAtom(1)
	dst := NewAtom(0)

	// an effect that mirrors src into dst; the cascaded write must reach
	// dst's own subscribers within the same flush wave
	eff := NewEffect(func(ctx *EffectCtx) error {
		v, err := Get(ctx, src)
		if err != nil {
			return err
		}
		return dst.Set(v * 10)
	})
	defer eff.Dispose()

	seen := []int{}
	dst.Subscribe(func() {
		v, _ := dst.Get()
		seen = append(seen, v)
	})

	src.Set(2)

	if len(seen) != 1 || seen[0] != 20 {
		t.Errorf("Cascaded write did not propagate, saw %v", seen)
	}
	v, _ := dst.Get()
	if v != 20 {
		t.Errorf("Expected 20, got %d", v)
	}
}
