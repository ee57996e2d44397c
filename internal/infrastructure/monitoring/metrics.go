package monitoring

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/turtacn/gts/internal/domain/models"
)

// Metrics holds the service's Prometheus instruments.
type Metrics struct {
	HTTPRequests *prometheus.CounterVec
	HTTPLatency  *prometheus.HistogramVec

	UpstreamRequests *prometheus.CounterVec
	UpstreamLatency  *prometheus.HistogramVec

	CacheReads         *prometheus.CounterVec
	StaleFallbacks     prometheus.Counter
	ConsumerMismatches prometheus.Counter

	BreakerState       *prometheus.GaugeVec
	BreakerTransitions *prometheus.CounterVec

	TokensIssued     *prometheus.CounterVec
	TokenIssueTime   prometheus.Histogram
	TokenValidations *prometheus.CounterVec
}

// NewMetrics registers the instruments on the default registry.
func NewMetrics() *Metrics {
	return NewMetricsWith(prometheus.DefaultRegisterer)
}

// NewMetricsWith registers the instruments on the given registry. Tests pass
// a fresh registry so repeated construction never collides.
func NewMetricsWith(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		HTTPRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gts_http_requests_total",
				Help: "HTTP requests by method, route template and status.",
			},
			[]string{"method", "path", "status"},
		),
		HTTPLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "gts_http_request_duration_seconds",
				Help:    "HTTP request latency by method and route template.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		UpstreamRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gts_upstream_requests_total",
				Help: "Upstream admin API requests by operation and result.",
			},
			[]string{"operation", "result"},
		),
		UpstreamLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "gts_upstream_request_duration_seconds",
				Help:    "Upstream admin API request latency.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		CacheReads: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gts_cache_reads_total",
				Help: "Secret cache reads by outcome.",
			},
			[]string{"outcome"},
		),
		StaleFallbacks: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "gts_cache_stale_fallbacks_total",
				Help: "Stale-tier reads served while the circuit was open.",
			},
		),
		ConsumerMismatches: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "gts_consumer_mismatches_total",
				Help: "Upstream responses whose embedded consumer id differed from the requested one.",
			},
		),
		BreakerState: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "gts_breaker_state",
				Help: "Circuit state per operation: 0 closed, 1 open, 2 half-open.",
			},
			[]string{"operation"},
		),
		BreakerTransitions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gts_breaker_transitions_total",
				Help: "Circuit state transitions.",
			},
			[]string{"operation", "from", "to"},
		),
		TokensIssued: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gts_tokens_issued_total",
				Help: "Issued tokens by result.",
			},
			[]string{"result"},
		),
		TokenIssueTime: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "gts_token_issue_duration_seconds",
				Help:    "End-to-end token issuance latency.",
				Buckets: prometheus.DefBuckets,
			},
		),
		TokenValidations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gts_token_validations_total",
				Help: "Token validations by result.",
			},
			[]string{"result"},
		),
	}
}

// RecordHTTPRequest records one served HTTP request. path is the route
// template, not the raw URL, to keep label cardinality bounded.
func (m *Metrics) RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	m.HTTPRequests.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	m.HTTPLatency.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordUpstreamRequest records one admin API round trip.
func (m *Metrics) RecordUpstreamRequest(operation, result string, duration time.Duration) {
	m.UpstreamRequests.WithLabelValues(operation, result).Inc()
	m.UpstreamLatency.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordCacheRead records a primary-tier cache read.
func (m *Metrics) RecordCacheRead(hit bool) {
	outcome := "miss"
	if hit {
		outcome = "hit"
	}
	m.CacheReads.WithLabelValues(outcome).Inc()
}

// RecordStaleFallback records a stale-tier read served during an open
// circuit.
func (m *Metrics) RecordStaleFallback() {
	m.StaleFallbacks.Inc()
}

// RecordConsumerMismatch records an upstream response rejected by the
// ownership guard.
func (m *Metrics) RecordConsumerMismatch() {
	m.ConsumerMismatches.Inc()
}

// RecordBreakerTransition updates the per-operation state gauge and the
// transition counter.
func (m *Metrics) RecordBreakerTransition(operation string, from, to models.BreakerState) {
	m.BreakerState.WithLabelValues(operation).Set(breakerStateValue(to))
	m.BreakerTransitions.WithLabelValues(operation, string(from), string(to)).Inc()
}

// RecordTokenIssued records one issuance attempt.
func (m *Metrics) RecordTokenIssued(result string, duration time.Duration) {
	m.TokensIssued.WithLabelValues(result).Inc()
	m.TokenIssueTime.Observe(duration.Seconds())
}

// RecordTokenValidation records one validation outcome.
func (m *Metrics) RecordTokenValidation(result string) {
	m.TokenValidations.WithLabelValues(result).Inc()
}

func breakerStateValue(state models.BreakerState) float64 {
	switch state {
	case models.BreakerOpen:
		return 1
	case models.BreakerHalfOpen:
		return 2
	default:
		return 0
	}
}
