// Package telemetry wires Prometheus metrics and OpenTelemetry tracing
// for the gateway, following the same promauto registration pattern the
// transport adapter uses for request metrics.
package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus instruments emitted by validation,
// caching, and rate-limiting.
type Metrics struct {
	DecisionsTotal      *prometheus.CounterVec
	CacheHitsTotal      *prometheus.CounterVec
	CacheMissesTotal    *prometheus.CounterVec
	AggregateRecompute  prometheus.Histogram
	RateLimitTableSize  prometheus.Gauge
	AuthorizationErrors prometheus.Counter
}

// NewMetrics creates and registers all instruments with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	return &Metrics{
		DecisionsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "actiongate",
				Name:      "decisions_total",
				Help:      "Total validation decisions by outcome and reason class",
			},
			[]string{"verdict", "reason_class"}, // verdict=allow/reject, reason_class=none/constraint/rate_limit/aggregate/policy
		),
		CacheHitsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "actiongate",
				Name:      "cache_hits_total",
				Help:      "Total cache hits by key family",
			},
			[]string{"family"}, // family=policy/credential/agg
		),
		CacheMissesTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "actiongate",
				Name:      "cache_misses_total",
				Help:      "Total cache misses by key family",
			},
			[]string{"family"},
		),
		AggregateRecompute: promauto.With(reg).NewHistogram(
			prometheus.HistogramOpts{
				Namespace: "actiongate",
				Name:      "aggregate_recompute_seconds",
				Help:      "Latency of recomputing an aggregate limit from the audit store",
				Buckets:   prometheus.DefBuckets,
			},
		),
		RateLimitTableSize: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Namespace: "actiongate",
				Name:      "rate_limit_table_size",
				Help:      "Number of active rate limiter keys held in memory",
			},
		),
		AuthorizationErrors: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Namespace: "actiongate",
				Name:      "authorization_errors_total",
				Help:      "Total credential resolution failures",
			},
		),
	}
}

// RecordDecision increments the decision counter for the given outcome.
func (m *Metrics) RecordDecision(verdict, reasonClass string) {
	if m == nil {
		return
	}
	m.DecisionsTotal.WithLabelValues(verdict, reasonClass).Inc()
}

// RecordCacheResult increments the hit or miss counter for family.
func (m *Metrics) RecordCacheResult(family string, hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.CacheHitsTotal.WithLabelValues(family).Inc()
		return
	}
	m.CacheMissesTotal.WithLabelValues(family).Inc()
}

// IncAuthorizationError increments the credential-resolution failure
// counter.
func (m *Metrics) IncAuthorizationError() {
	if m == nil {
		return
	}
	m.AuthorizationErrors.Inc()
}

// ObserveAggregateRecompute records how long an aggregate recompute took.
func (m *Metrics) ObserveAggregateRecompute(seconds float64) {
	if m == nil {
		return
	}
	m.AggregateRecompute.Observe(seconds)
}
