// Package metrics owns the Prometheus registry for docgraph: check outcomes,
// ingestion throughput, LLM call latency and breaker state.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "docgraph"

// DefaultBuckets are histogram buckets in seconds. LLM calls on a cold model
// can take a minute or more, hence the long tail.
var DefaultBuckets = []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120}

// Metrics groups every collector docgraph exports.
type Metrics struct {
	reg *prometheus.Registry

	ChecksTotal       *prometheus.CounterVec
	CheckDuration     *prometheus.HistogramVec
	LLMCalls          *prometheus.CounterVec
	LLMDuration       *prometheus.HistogramVec
	ChunksIngested    prometheus.Counter
	ChunksSkipped     prometheus.Counter
	EntitiesExtracted *prometheus.CounterVec
	ExtractionCache   *prometheus.CounterVec
	BreakerState      *prometheus.GaugeVec
}

// New creates a Metrics bound to a fresh registry with Go runtime collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		reg: reg,
		ChecksTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "check", Name: "runs_total",
			Help: "Smoke check runs by check name and result.",
		}, []string{"check", "result"}),
		CheckDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "check", Name: "duration_seconds",
			Help: "Smoke check duration.", Buckets: DefaultBuckets,
		}, []string{"check"}),
		LLMCalls: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "llm", Name: "calls_total",
			Help: "LLM calls by backend, operation and outcome.",
		}, []string{"backend", "op", "outcome"}),
		LLMDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "llm", Name: "call_duration_seconds",
			Help: "LLM call latency.", Buckets: DefaultBuckets,
		}, []string{"backend", "op"}),
		ChunksIngested: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "ingest", Name: "chunks_total",
			Help: "Chunks written to the knowledge graph.",
		}),
		ChunksSkipped: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "ingest", Name: "chunks_skipped_total",
			Help: "Chunks that produced no entities.",
		}),
		EntitiesExtracted: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "ingest", Name: "entities_total",
			Help: "Entities extracted by schema type.",
		}, []string{"type"}),
		ExtractionCache: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "extract", Name: "cache_total",
			Help: "Extraction cache lookups by result.",
		}, []string{"result"}),
		BreakerState: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "resilience", Name: "breaker_state",
			Help: "Circuit breaker state (0 closed, 1 open, 2 half-open).",
		}, []string{"name"}),
	}
}

// Registry exposes the underlying registry, e.g. for tests.
func (m *Metrics) Registry() *prometheus.Registry { return m.reg }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{Registry: m.reg})
}

// ObserveCheck records one check outcome.
func (m *Metrics) ObserveCheck(name string, passed bool, seconds float64) {
	if m == nil {
		return
	}
	result := "fail"
	if passed {
		result = "pass"
	}
	m.ChecksTotal.WithLabelValues(name, result).Inc()
	m.CheckDuration.WithLabelValues(name).Observe(seconds)
}

// ObserveLLM records one LLM call.
func (m *Metrics) ObserveLLM(backend, op string, err error, seconds float64) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.LLMCalls.WithLabelValues(backend, op, outcome).Inc()
	m.LLMDuration.WithLabelValues(backend, op).Observe(seconds)
}
