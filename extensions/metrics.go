package extensions

import (
	"github.com/prometheus/client_golang/prometheus"

	reactive "github.com/reactive-fn/reactive-go"
)

// Metrics exposes creation and error counters for the reactive runtime.
type Metrics struct {
	Creations *prometheus.CounterVec
	Errors    prometheus.Counter

	uninstall func()
}

// InstallMetrics registers the counters with reg and wires them into the
// global hooks, wrapping the previously installed ones.
func InstallMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		Creations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "reactive_entities_created_total",
			Help: "Entities created, by kind.",
		}, []string{"kind"}),
		Errors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "reactive_compute_errors_total",
			Help: "Computation errors reported by derived nodes and effects.",
		}),
	}
	if err := reg.Register(m.Creations); err != nil {
		return nil, err
	}
	if err := reg.Register(m.Errors); err != nil {
		return nil, err
	}

	var prevCreate reactive.CreationHook
	prevCreate = reactive.SetCreationHook(func(rec reactive.CreationRecord) {
		m.Creations.WithLabelValues(string(rec.Kind)).Inc()
		if prevCreate != nil {
			prevCreate(rec)
		}
	})

	var prevErr reactive.ErrorHook
	prevErr = reactive.SetErrorHook(func(rec reactive.ErrorRecord) {
		m.Errors.Inc()
		if prevErr != nil {
			prevErr(rec)
		}
	})

	m.uninstall = func() {
		reactive.SetCreationHook(prevCreate)
		reactive.SetErrorHook(prevErr)
		reg.Unregister(m.Creations)
		reg.Unregister(m.Errors)
	}
	return m, nil
}

// Uninstall restores the previous hooks and unregisters the counters.
func (m *Metrics) Uninstall() {
	if m.uninstall != nil {
		m.uninstall()
		m.uninstall = nil
	}
}
