package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all application metrics. A nil *Metrics is valid and records nothing.
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge

	// Quota metrics
	QuotaOpsTotal      *prometheus.CounterVec
	QuotaRetriesTotal  *prometheus.CounterVec
	PassActivations    *prometheus.CounterVec
	TopupsTotal        *prometheus.CounterVec
	PaymentEventsTotal *prometheus.CounterVec

	// Generation metrics
	GenerationsTotal   *prometheus.CounterVec
	GenerationDuration *prometheus.HistogramVec
	TasksInFlight      prometheus.Gauge
}

// New creates a new Metrics instance registered on reg.
// A nil reg registers on the default registry.
func New(namespace string, reg prometheus.Registerer) *Metrics {
	if namespace == "" {
		namespace = "stylebot"
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		// HTTP metrics
		HTTPRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),
		HTTPRequestsInFlight: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "requests_in_flight",
				Help:      "Current number of HTTP requests being processed",
			},
		),

		// Quota metrics
		QuotaOpsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "quota",
				Name:      "operations_total",
				Help:      "Total number of quota ledger operations",
			},
			[]string{"op", "service", "result"}, // result: ok, denied, error, unlimited
		),
		QuotaRetriesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "quota",
				Name:      "optimistic_retries_total",
				Help:      "Optimistic transaction retries caused by concurrent writers",
			},
			[]string{"op"},
		),
		PassActivations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "billing",
				Name:      "pass_activations_total",
				Help:      "Total number of pass activations",
			},
			[]string{"pass_type", "result"},
		),
		TopupsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "billing",
				Name:      "topups_total",
				Help:      "Total number of pay-as-you-go top-ups",
			},
			[]string{"topup", "result"},
		),
		PaymentEventsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "billing",
				Name:      "payment_events_total",
				Help:      "Payment success events by provider and outcome",
			},
			[]string{"provider", "result"}, // result: applied, duplicate, failed
		),

		// Generation metrics
		GenerationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "generation",
				Name:      "requests_total",
				Help:      "Total number of generation attempts",
			},
			[]string{"service", "status"}, // status: success, empty, error, panic
		),
		GenerationDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "generation",
				Name:      "duration_seconds",
				Help:      "Generation call duration in seconds",
				Buckets:   []float64{.5, 1, 2.5, 5, 10, 20, 30, 60, 120, 300},
			},
			[]string{"service"},
		),
		TasksInFlight: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "generation",
				Name:      "tasks_in_flight",
				Help:      "Background generation tasks currently running",
			},
		),
	}
}

// --- Convenience methods ---

// RecordHTTPRequest records an HTTP request.
func (m *Metrics) RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	statusStr := statusCodeToString(status)
	m.HTTPRequestsTotal.WithLabelValues(method, path, statusStr).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordQuotaOp records a ledger operation outcome.
func (m *Metrics) RecordQuotaOp(op, service, result string) {
	if m == nil {
		return
	}
	m.QuotaOpsTotal.WithLabelValues(op, service, result).Inc()
}

// RecordQuotaRetry records an optimistic transaction retry.
func (m *Metrics) RecordQuotaRetry(op string) {
	if m == nil {
		return
	}
	m.QuotaRetriesTotal.WithLabelValues(op).Inc()
}

// RecordPassActivation records a pass activation attempt.
func (m *Metrics) RecordPassActivation(passType, result string) {
	if m == nil {
		return
	}
	m.PassActivations.WithLabelValues(passType, result).Inc()
}

// RecordTopup records a top-up attempt.
func (m *Metrics) RecordTopup(topup, result string) {
	if m == nil {
		return
	}
	m.TopupsTotal.WithLabelValues(topup, result).Inc()
}

// RecordPaymentEvent records a payment event outcome.
func (m *Metrics) RecordPaymentEvent(provider, result string) {
	if m == nil {
		return
	}
	m.PaymentEventsTotal.WithLabelValues(provider, result).Inc()
}

// RecordGeneration records a generation attempt.
func (m *Metrics) RecordGeneration(service, status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.GenerationsTotal.WithLabelValues(service, status).Inc()
	m.GenerationDuration.WithLabelValues(service).Observe(duration.Seconds())
}

// TaskStarted increments the in-flight task gauge.
func (m *Metrics) TaskStarted() {
	if m == nil {
		return
	}
	m.TasksInFlight.Inc()
}

// TaskFinished decrements the in-flight task gauge.
func (m *Metrics) TaskFinished() {
	if m == nil {
		return
	}
	m.TasksInFlight.Dec()
}

// statusCodeToString converts an HTTP status code to a string category.
func statusCodeToString(code int) string {
	switch {
	case code >= 200 && code < 300:
		return "2xx"
	case code >= 300 && code < 400:
		return "3xx"
	case code >= 400 && code < 500:
		return "4xx"
	case code >= 500:
		return "5xx"
	default:
		return "unknown"
	}
}
