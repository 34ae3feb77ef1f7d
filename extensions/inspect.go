package extensions

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	reactive "github.com/reactive-fn/reactive-go"
)

// Inspector logs the dependency graph around a node when its computation
// errors. It tracks entity creations through the creation hook so it can
// name nodes, and renders the failing node's dependency tree on each error.
//
// Usage:
//
//	// Human-readable formatted output (with line breaks)
//	insp := extensions.NewInspector(extensions.NewHumanHandler(os.Stdout, slog.LevelError))
//	defer insp.Install()()
//
//	// Structured JSON logging (compact, machine-readable)
//	insp := extensions.NewInspector(slog.NewJSONHandler(os.Stdout, nil))
//
//	// Silent (for testing)
//	insp := extensions.NewInspector(extensions.NewSilentHandler())
type Inspector struct {
	logger *slog.Logger

	mu      sync.Mutex
	errored map[any]error
}

// NewInspector creates an inspector logging through the given slog handler.
func NewInspector(handler slog.Handler) *Inspector {
	return &Inspector{
		logger:  slog.New(handler),
		errored: make(map[any]error),
	}
}

// Install registers the inspector on the global error hook, wrapping the
// previous hook. The returned function uninstalls it.
func (i *Inspector) Install() (uninstall func()) {
	var prev reactive.ErrorHook
	prev = reactive.SetErrorHook(func(rec reactive.ErrorRecord) {
		i.onError(rec)
		if prev != nil {
			prev(rec)
		}
	})
	return func() {
		reactive.SetErrorHook(prev)
	}
}

func (i *Inspector) onError(rec reactive.ErrorRecord) {
	i.mu.Lock()
	i.errored[rec.Source] = rec.Err
	i.mu.Unlock()

	cell, ok := rec.Source.(reactive.AnyCell)
	if !ok {
		i.logger.Error("Computation Error",
			"source", sourceName(rec.Source),
			"error", rec.Err.Error(),
		)
		return
	}

	i.logger.Error("Computation Error",
		"source", i.cellName(cell),
		"error", rec.Err.Error(),
		"dependency_graph", i.FormatDependencies(cell),
	)
}

// FormatDependencies renders the cell's dependency tree with one line per
// node, marking each node's state.
func (i *Inspector) FormatDependencies(cell reactive.AnyCell) string {
	var sb strings.Builder
	sb.WriteString("\n")
	sb.WriteString(fmt.Sprintf("  %s\n", i.describe(cell)))
	i.writeChildren(&sb, cell, "  ")
	return sb.String()
}

func (i *Inspector) writeChildren(sb *strings.Builder, cell reactive.AnyCell, indent string) {
	deps := dependenciesOf(cell)
	for n, dep := range deps {
		connector := "├─>"
		childIndent := indent + "│   "
		if n == len(deps)-1 {
			connector = "└─>"
			childIndent = indent + "    "
		}
		fmt.Fprintf(sb, "%s%s %s\n", indent, connector, i.describe(dep))
		i.writeChildren(sb, dep, childIndent)
	}
}

func (i *Inspector) describe(cell reactive.AnyCell) string {
	name := i.cellName(cell)
	i.mu.Lock()
	err, failed := i.errored[any(cell)]
	i.mu.Unlock()
	if failed {
		return fmt.Sprintf("%s ❌ (error: %v)", name, err)
	}
	switch cell.State() {
	case reactive.StateReady:
		return name + " ✓"
	case reactive.StatePending:
		return name + " (pending)"
	case reactive.StateErrored:
		return name + " ❌"
	default:
		return name
	}
}

func (i *Inspector) cellName(cell reactive.AnyCell) string {
	if key := cell.Key(); key != "" {
		return key
	}
	return fmt.Sprintf("cell_%p", cell)
}

// dependenciesOf returns the cell's current dependencies; atoms have none.
func dependenciesOf(cell reactive.AnyCell) []reactive.AnyCell {
	if d, ok := cell.(interface{ Dependencies() []reactive.AnyCell }); ok {
		return d.Dependencies()
	}
	return nil
}

// SilentHandler is a slog.Handler that discards all log output.
// Useful for testing when you don't want log output.
type SilentHandler struct{}

// NewSilentHandler creates a new silent log handler
func NewSilentHandler() *SilentHandler {
	return &SilentHandler{}
}

func (h *SilentHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return false
}

func (h *SilentHandler) Handle(ctx context.Context, record slog.Record) error {
	return nil
}

func (h *SilentHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return h
}

func (h *SilentHandler) WithGroup(name string) slog.Handler {
	return h
}

// HumanHandler is a slog.Handler that formats logs for human readability,
// giving multi-line attributes such as dependency graphs their own lines.
type HumanHandler struct {
	writer io.Writer
	level  slog.Level
}

// NewHumanHandler creates a new human-readable log handler
func NewHumanHandler(writer io.Writer, level slog.Level) *HumanHandler {
	return &HumanHandler{writer: writer, level: level}
}

func (h *HumanHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return level >= h.level
}

func (h *HumanHandler) Handle(ctx context.Context, record slog.Record) error {
	if _, err := fmt.Fprintf(h.writer, "[%s] %s\n", record.Level, record.Message); err != nil {
		return err
	}
	var writeErr error
	record.Attrs(func(a slog.Attr) bool {
		val := a.Value.String()
		if strings.Contains(val, "\n") {
			_, writeErr = fmt.Fprintf(h.writer, "  %s:%s\n", a.Key, val)
		} else {
			_, writeErr = fmt.Fprintf(h.writer, "  %s: %s\n", a.Key, val)
		}
		return writeErr == nil
	})
	return writeErr
}

func (h *HumanHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return h
}

func (h *HumanHandler) WithGroup(name string) slog.Handler {
	return h
}
