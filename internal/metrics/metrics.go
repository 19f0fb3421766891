// Package metrics exposes synchronization counters in Prometheus format.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Import outcomes used as the "outcome" label.
const (
	OutcomeImported  = "imported"
	OutcomeUnchanged = "unchanged"
	OutcomeNoData    = "no_data"
	OutcomeFailed    = "failed"
)

// Metrics holds every counter the sync engine updates. A nil *Metrics is
// valid and records nothing, so tests and one-shot commands can skip it.
type Metrics struct {
	registry *prometheus.Registry

	records     *prometheus.CounterVec
	imports     *prometheus.CounterVec
	exports     *prometheus.CounterVec
	droppedTick prometheus.Counter
}

// New creates the counters on a private registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		records: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "carbsync",
			Name:      "records_total",
			Help:      "Imported snapshot rows by collection and result (applied, skipped, error).",
		}, []string{"collection", "result"}),
		imports: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "carbsync",
			Name:      "imports_total",
			Help:      "Snapshot file imports by collection and outcome.",
		}, []string{"collection", "outcome"}),
		exports: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "carbsync",
			Name:      "exports_total",
			Help:      "Snapshot file exports by collection and status.",
		}, []string{"collection", "status"}),
		droppedTick: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "carbsync",
			Name:      "poller_dropped_ticks_total",
			Help:      "Poll ticks dropped because an import was still in flight.",
		}),
	}

	m.registry.MustRegister(m.records, m.imports, m.exports, m.droppedTick)

	return m
}

// Records adds per-row results of one import.
func (m *Metrics) Records(collection string, applied, skipped, errors int) {
	if m == nil {
		return
	}

	m.records.WithLabelValues(collection, "applied").Add(float64(applied))
	m.records.WithLabelValues(collection, "skipped").Add(float64(skipped))
	m.records.WithLabelValues(collection, "error").Add(float64(errors))
}

// Import counts one import attempt.
func (m *Metrics) Import(collection, outcome string) {
	if m == nil {
		return
	}

	m.imports.WithLabelValues(collection, outcome).Inc()
}

// Export counts one export attempt.
func (m *Metrics) Export(collection string, err error) {
	if m == nil {
		return
	}

	status := "ok"
	if err != nil {
		status = "error"
	}

	m.exports.WithLabelValues(collection, status).Inc()
}

// DroppedTick counts a poll tick skipped because of an in-flight import.
func (m *Metrics) DroppedTick() {
	if m == nil {
		return
	}

	m.droppedTick.Inc()
}

// Registry returns the underlying registry, mostly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry at /metrics.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
