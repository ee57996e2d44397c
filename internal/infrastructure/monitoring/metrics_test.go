package monitoring

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/turtacn/gts/internal/domain/models"
)

func newTestMetrics() *Metrics {
	return NewMetricsWith(prometheus.NewRegistry())
}

func TestMetricsRecordUpstreamRequest(t *testing.T) {
	m := newTestMetrics()

	m.RecordUpstreamRequest("getConsumerSecret", "success", 30*time.Millisecond)
	m.RecordUpstreamRequest("getConsumerSecret", "success", 10*time.Millisecond)
	m.RecordUpstreamRequest("getConsumerSecret", "error", 5*time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.UpstreamRequests.WithLabelValues("getConsumerSecret", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.UpstreamRequests.WithLabelValues("getConsumerSecret", "error")))
}

func TestMetricsRecordCacheReads(t *testing.T) {
	m := newTestMetrics()

	m.RecordCacheRead(true)
	m.RecordCacheRead(true)
	m.RecordCacheRead(false)
	m.RecordStaleFallback()
	m.RecordConsumerMismatch()

	assert.Equal(t, 2.0, testutil.ToFloat64(m.CacheReads.WithLabelValues("hit")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CacheReads.WithLabelValues("miss")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.StaleFallbacks))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ConsumerMismatches))
}

func TestMetricsBreakerTransitionGauge(t *testing.T) {
	m := newTestMetrics()

	m.RecordBreakerTransition("getConsumerSecret", models.BreakerClosed, models.BreakerOpen)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.BreakerState.WithLabelValues("getConsumerSecret")))

	m.RecordBreakerTransition("getConsumerSecret", models.BreakerOpen, models.BreakerHalfOpen)
	assert.Equal(t, 2.0, testutil.ToFloat64(m.BreakerState.WithLabelValues("getConsumerSecret")))

	m.RecordBreakerTransition("getConsumerSecret", models.BreakerHalfOpen, models.BreakerClosed)
	assert.Equal(t, 0.0, testutil.ToFloat64(m.BreakerState.WithLabelValues("getConsumerSecret")))

	assert.Equal(t, 1.0, testutil.ToFloat64(
		m.BreakerTransitions.WithLabelValues("getConsumerSecret", "closed", "open")))
}

func TestMetricsTokenCounters(t *testing.T) {
	m := newTestMetrics()

	m.RecordTokenIssued("success", 12*time.Millisecond)
	m.RecordTokenIssued("error", 2*time.Millisecond)
	m.RecordTokenValidation("valid")
	m.RecordTokenValidation("expired")

	assert.Equal(t, 1.0, testutil.ToFloat64(m.TokensIssued.WithLabelValues("success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.TokensIssued.WithLabelValues("error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.TokenValidations.WithLabelValues("valid")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.TokenValidations.WithLabelValues("expired")))
}
