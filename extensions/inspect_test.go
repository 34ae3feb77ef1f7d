package extensions

import (
	"bytes"
	"errors"
	"log/slog"
	"strings"
	"testing"

	reactive "github.com/reactive-fn/reactive-go"
)

func TestInspector_FormatDependencies(t *testing.T) {
	insp := NewInspector(NewSilentHandler())

	a := reactive.NewAtom(1, reactive.WithKey("a"))
	b := reactive.NewAtom(2, reactive.WithKey("b"))
	sum := reactive.NewDerived(func(ctx *reactive.SelectCtx) (int, error) {
		av, err := reactive.Get(ctx, a)
		if err != nil {
			return 0, err
		}
		bv, err := reactive.Get(ctx, b)
		if err != nil {
			return 0, err
		}
		return av + bv, nil
	}, reactive.WithKey("sum"))
	sum.Get()

	out := insp.FormatDependencies(sum)

	if !strings.Contains(out, "sum ✓") {
		t.Errorf("Expected ready root, got:\n%s", out)
	}
	if !strings.Contains(out, "├─> a ✓") {
		t.Errorf("Expected first child connector, got:\n%s", out)
	}
	if !strings.Contains(out, "└─> b ✓") {
		t.Errorf("Expected last child connector, got:\n%s", out)
	}
}

func TestInspector_MarksPendingAndErroredNodes(t *testing.T) {
	insp := NewInspector(NewSilentHandler())

	a := reactive.NewAtom(0, reactive.WithKey("pending-input"))
	d := reactive.NewDerived(func(ctx *reactive.SelectCtx) (int, error) {
		return reactive.Get(ctx, a)
	}, reactive.WithKey("view"))
	d.Get()

	f, _, _ := reactive.NewFuture[int]()
	a.SetFuture(f)

	out := insp.FormatDependencies(d)
	if !strings.Contains(out, "pending-input (pending)") {
		t.Errorf("Expected pending marker, got:\n%s", out)
	}
}

func TestInspector_LogsErrorWithGraph(t *testing.T) {
	var buf bytes.Buffer
	insp := NewInspector(NewHumanHandler(&buf, slog.LevelError))

	uninstall := insp.Install()
	defer uninstall()

	a := reactive.NewAtom(-1, reactive.WithKey("input"))
	d := reactive.NewDerived(func(ctx *reactive.SelectCtx) (int, error) {
		v, err := reactive.Get(ctx, a)
		if err != nil {
			return 0, err
		}
		if v < 0 {
			return 0, errors.New("negative input")
		}
		return v, nil
	}, reactive.WithKey("validated"))
	d.Get()

	out := buf.String()
	if !strings.Contains(out, "Computation Error") {
		t.Errorf("Expected error log, got:\n%s", out)
	}
	if !strings.Contains(out, "validated") {
		t.Errorf("Expected failing node name, got:\n%s", out)
	}
	if !strings.Contains(out, "dependency_graph") {
		t.Errorf("Expected dependency graph attribute, got:\n%s", out)
	}
	if !strings.Contains(out, "input ✓") {
		t.Errorf("Expected healthy dependency in graph, got:\n%s", out)
	}
	if !strings.Contains(out, "❌") {
		t.Errorf("Expected failure marker on the errored node, got:\n%s", out)
	}
}

func TestInspector_UninstallRestoresPreviousHook(t *testing.T) {
	fires := 0
	prev := reactive.SetErrorHook(func(reactive.ErrorRecord) { fires++ })
	defer reactive.SetErrorHook(prev)

	insp := NewInspector(NewSilentHandler())
	uninstall := insp.Install()

	d := reactive.NewDerived(func(ctx *reactive.SelectCtx) (int, error) {
		return 0, errors.New("boom")
	})
	d.Get()
	if fires != 1 {
		t.Errorf("Wrapped hook must still fire, got %d", fires)
	}

	uninstall()
	d.Refresh()
	if fires != 2 {
		t.Errorf("Previous hook must survive uninstall, got %d", fires)
	}
}
