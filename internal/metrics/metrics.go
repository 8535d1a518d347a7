// Package metrics exposes Prometheus counters for imports and enrichment.
//
// All methods are safe on a nil *Metrics so callers never need to check
// whether metrics are enabled.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "promptvault"

// Enrichment outcomes.
const (
	EnrichOK          = "ok"
	EnrichFallback    = "fallback"
	EnrichPatchFailed = "patch_failed"
)

// Metrics holds the collectors registered on a private registry.
type Metrics struct {
	registry       *prometheus.Registry
	imports        *prometheus.CounterVec
	importDuration prometheus.Histogram
	activeImports  prometheus.Gauge
	promptsSaved   prometheus.Counter
	enrichments    *prometheus.CounterVec
}

// New creates and registers every collector, plus Go runtime and process
// collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		imports: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "imports_total",
			Help:      "Finished imports by source format and outcome.",
		}, []string{"format", "outcome"}),
		importDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "import_duration_seconds",
			Help:      "Wall time of an import from parsing to done or error.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
		}),
		activeImports: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "imports_active",
			Help:      "Imports currently running.",
		}),
		promptsSaved: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "prompts_saved_total",
			Help:      "Prompt records committed by imports.",
		}),
		enrichments: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "enrichments_total",
			Help:      "Enrichment attempts by outcome.",
		}, []string{"outcome"}),
	}
	m.registry.MustRegister(
		m.imports,
		m.importDuration,
		m.activeImports,
		m.promptsSaved,
		m.enrichments,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ImportStarted marks an import as running.
func (m *Metrics) ImportStarted() {
	if m == nil {
		return
	}
	m.activeImports.Inc()
}

// ImportFinished records the outcome of an import started with ImportStarted.
func (m *Metrics) ImportFinished(format, outcome string, took time.Duration) {
	if m == nil {
		return
	}
	if format == "" {
		format = "unknown"
	}
	m.activeImports.Dec()
	m.imports.WithLabelValues(format, outcome).Inc()
	m.importDuration.Observe(took.Seconds())
}

// PromptsSaved adds n committed records.
func (m *Metrics) PromptsSaved(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.promptsSaved.Add(float64(n))
}

// Enrichment records one enrichment attempt.
func (m *Metrics) Enrichment(outcome string) {
	if m == nil {
		return
	}
	m.enrichments.WithLabelValues(outcome).Inc()
}
