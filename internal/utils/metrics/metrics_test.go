package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

// createTestMetrics registers on a private registry to avoid default-registry conflicts.
func createTestMetrics() *Metrics {
	return New("test", prometheus.NewRegistry())
}

func TestNew(t *testing.T) {
	m := createTestMetrics()
	assert.NotNil(t, m.HTTPRequestsTotal)
	assert.NotNil(t, m.QuotaOpsTotal)
	assert.NotNil(t, m.GenerationsTotal)
	assert.NotNil(t, m.TasksInFlight)
}

func TestMetrics_RecordHTTPRequest(t *testing.T) {
	m := createTestMetrics()

	m.RecordHTTPRequest("POST", "/webhooks/stripe", 200, 20*time.Millisecond)
	m.RecordHTTPRequest("POST", "/webhooks/stripe", 400, 5*time.Millisecond)
	m.RecordHTTPRequest("GET", "/healthz", 503, time.Millisecond)

	assert.Equal(t, float64(1), testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("POST", "/webhooks/stripe", "2xx")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("POST", "/webhooks/stripe", "4xx")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("GET", "/healthz", "5xx")))
}

func TestMetrics_Quota(t *testing.T) {
	m := createTestMetrics()

	m.RecordQuotaOp("consume", "image", "ok")
	m.RecordQuotaOp("consume", "image", "ok")
	m.RecordQuotaOp("consume", "video", "denied")
	m.RecordQuotaRetry("consume")

	assert.Equal(t, float64(2), testutil.ToFloat64(m.QuotaOpsTotal.WithLabelValues("consume", "image", "ok")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.QuotaOpsTotal.WithLabelValues("consume", "video", "denied")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.QuotaRetriesTotal.WithLabelValues("consume")))
}

func TestMetrics_Billing(t *testing.T) {
	m := createTestMetrics()

	m.RecordPassActivation("pass_7d", "ok")
	m.RecordTopup("image_10", "error")
	m.RecordPaymentEvent("stripe", "duplicate")

	assert.Equal(t, float64(1), testutil.ToFloat64(m.PassActivations.WithLabelValues("pass_7d", "ok")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.TopupsTotal.WithLabelValues("image_10", "error")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.PaymentEventsTotal.WithLabelValues("stripe", "duplicate")))
}

func TestMetrics_Generation(t *testing.T) {
	m := createTestMetrics()

	m.TaskStarted()
	m.TaskStarted()
	m.TaskFinished()
	m.RecordGeneration("video", "error", 3*time.Second)

	assert.Equal(t, float64(1), testutil.ToFloat64(m.TasksInFlight))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.GenerationsTotal.WithLabelValues("video", "error")))
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordHTTPRequest("GET", "/", 200, time.Millisecond)
		m.RecordQuotaOp("refund", "image", "ok")
		m.RecordQuotaRetry("refund")
		m.RecordPassActivation("pass_1d", "ok")
		m.RecordTopup("video_3", "ok")
		m.RecordPaymentEvent("telegram", "applied")
		m.RecordGeneration("image", "success", time.Second)
		m.TaskStarted()
		m.TaskFinished()
	})
}

func TestStatusCodeToString(t *testing.T) {
	tests := []struct {
		code     int
		expected string
	}{
		{200, "2xx"},
		{302, "3xx"},
		{404, "4xx"},
		{500, "5xx"},
		{100, "unknown"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expected, statusCodeToString(tt.code))
	}
}
