// Package metrics holds the Prometheus collectors for the refresh cache.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the service.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry prometheus.Gatherer

	CacheLookups     *prometheus.CounterVec // labels: result=memory|file|miss
	CacheWrites      *prometheus.CounterVec // labels: layer, result=ok|error
	Productions      *prometheus.CounterVec // labels: kind, state=done|failed, source
	Transitions      *prometheus.CounterVec // labels: kind, state
	ProductionDur    *prometheus.HistogramVec
	ProviderCalls    *prometheus.CounterVec // labels: provider, result
	LeasesInFlight   prometheus.Gauge
	PoolQueueDepth   prometheus.Gauge
	PoolRejected     prometheus.Counter
	QuoteFetches     *prometheus.CounterVec // labels: source, result
	SchedulerSkipped *prometheus.CounterVec // labels: job
}

// NewMetrics registers and returns all Prometheus metrics on reg.
// Passing nil registers on the default registry.
func NewMetrics(reg *prometheus.Registry) *Metrics {
	var registerer prometheus.Registerer = prometheus.DefaultRegisterer
	var gatherer prometheus.Gatherer = prometheus.DefaultGatherer
	if reg != nil {
		registerer = reg
		gatherer = reg
	}

	m := &Metrics{
		registry: gatherer,
		CacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "aurum_cache_lookups_total",
			Help: "Cache lookups by the layer that answered (or miss)",
		}, []string{"result"}),
		CacheWrites: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "aurum_cache_writes_total",
			Help: "Cache writes per layer and outcome",
		}, []string{"layer", "result"}),
		Productions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "aurum_artifact_productions_total",
			Help: "Artifact production runs by kind, terminal state and payload source",
		}, []string{"kind", "state", "source"}),
		Transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "aurum_artifact_state_transitions_total",
			Help: "Producer state machine transitions by kind and entered state",
		}, []string{"kind", "state"}),
		ProductionDur: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "aurum_artifact_production_duration_seconds",
			Help:    "Wall time of a full artifact production run",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		}, []string{"kind"}),
		ProviderCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "aurum_provider_calls_total",
			Help: "Generation provider calls by provider and result",
		}, []string{"provider", "result"}),
		LeasesInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "aurum_production_leases_in_flight",
			Help: "Production leases currently held by the refresh coordinator",
		}),
		PoolQueueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "aurum_worker_pool_queue_depth",
			Help: "Tasks waiting in the background worker pool",
		}),
		PoolRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "aurum_worker_pool_rejected_total",
			Help: "Tasks rejected because the worker pool queue was full",
		}),
		QuoteFetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "aurum_quote_fetches_total",
			Help: "Quote source fetches by source and result",
		}, []string{"source", "result"}),
		SchedulerSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "aurum_scheduler_skipped_total",
			Help: "Scheduled runs skipped (non-trading day or pool saturation)",
		}, []string{"job"}),
	}

	registerer.MustRegister(
		m.CacheLookups,
		m.CacheWrites,
		m.Productions,
		m.Transitions,
		m.ProductionDur,
		m.ProviderCalls,
		m.LeasesInFlight,
		m.PoolQueueDepth,
		m.PoolRejected,
		m.QuoteFetches,
		m.SchedulerSkipped,
	)

	return m
}

// Handler returns the /metrics HTTP handler for the registry the metrics live on.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) CacheLookup(result string) {
	if m == nil {
		return
	}
	m.CacheLookups.WithLabelValues(result).Inc()
}

func (m *Metrics) CacheWrite(layer string, err error) {
	if m == nil {
		return
	}
	m.CacheWrites.WithLabelValues(layer, outcome(err)).Inc()
}

func (m *Metrics) Production(kind, state, source string, took time.Duration) {
	if m == nil {
		return
	}
	m.Productions.WithLabelValues(kind, state, source).Inc()
	m.ProductionDur.WithLabelValues(kind).Observe(took.Seconds())
}

func (m *Metrics) Transition(kind, state string) {
	if m == nil {
		return
	}
	m.Transitions.WithLabelValues(kind, state).Inc()
}

func (m *Metrics) ProviderCall(provider string, err error) {
	if m == nil {
		return
	}
	m.ProviderCalls.WithLabelValues(provider, outcome(err)).Inc()
}

func (m *Metrics) QuoteFetch(source string, err error) {
	if m == nil {
		return
	}
	m.QuoteFetches.WithLabelValues(source, outcome(err)).Inc()
}

func (m *Metrics) SetLeases(n int) {
	if m == nil {
		return
	}
	m.LeasesInFlight.Set(float64(n))
}

func (m *Metrics) SetQueueDepth(n int) {
	if m == nil {
		return
	}
	m.PoolQueueDepth.Set(float64(n))
}

func (m *Metrics) Rejected() {
	if m == nil {
		return
	}
	m.PoolRejected.Inc()
}

func (m *Metrics) Skipped(job string) {
	if m == nil {
		return
	}
	m.SchedulerSkipped.WithLabelValues(job).Inc()
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
