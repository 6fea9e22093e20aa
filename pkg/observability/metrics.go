// Package observability wires Prometheus metrics and OpenTelemetry tracing
// for the response pipeline.
package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the pipeline collectors. Build it with NewMetrics against a
// dedicated registry in tests.
//
// Raw message text never becomes a label.
type Metrics struct {
	registry prometheus.Gatherer

	// Requests counts pipeline runs.
	// Labels: persona, outcome (normal|crisis|error)
	Requests *prometheus.CounterVec

	// RequestDuration measures a full pipeline run in seconds.
	// Labels: persona
	RequestDuration *prometheus.HistogramVec

	// FilterAttempts counts generation attempts by result.
	// Labels: persona, result (clean|violation)
	FilterAttempts *prometheus.CounterVec

	// FilterExhausted counts replies accepted with violations.
	// Labels: persona
	FilterExhausted *prometheus.CounterVec

	// CrisisDetections counts crisis-branch requests.
	// Labels: language
	CrisisDetections *prometheus.CounterVec

	// MemoryDegraded counts memory retrievals that failed and were skipped.
	MemoryDegraded prometheus.Counter

	// ProviderCalls counts provider calls.
	// Labels: operation (complete|embed), status (success|error)
	ProviderCalls *prometheus.CounterVec

	// HTTPRequests counts gateway requests.
	// Labels: method, path, status_code
	HTTPRequests *prometheus.CounterVec

	// HTTPRequestDuration measures gateway latency.
	// Labels: method, path
	HTTPRequestDuration *prometheus.HistogramVec
}

// NewMetrics registers every collector with reg. A nil reg uses a fresh
// private registry.
func NewMetrics(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	f := promauto.With(reg)
	return &Metrics{
		registry: reg,
		Requests: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mindglow_requests_total",
				Help: "Pipeline runs by persona and outcome",
			},
			[]string{"persona", "outcome"},
		),
		RequestDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "mindglow_request_duration_seconds",
				Help:    "Duration of a full pipeline run in seconds",
				Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 20, 40},
			},
			[]string{"persona"},
		),
		FilterAttempts: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mindglow_filter_attempts_total",
				Help: "Generation attempts by persona and filter result",
			},
			[]string{"persona", "result"},
		),
		FilterExhausted: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mindglow_filter_exhausted_total",
				Help: "Replies accepted with violations after all retries",
			},
			[]string{"persona"},
		),
		CrisisDetections: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mindglow_crisis_detections_total",
				Help: "Requests that tripped the crisis catalogue",
			},
			[]string{"language"},
		),
		MemoryDegraded: f.NewCounter(
			prometheus.CounterOpts{
				Name: "mindglow_memory_degraded_total",
				Help: "Memory retrievals that failed and were skipped",
			},
		),
		ProviderCalls: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mindglow_provider_calls_total",
				Help: "Provider calls by operation and status",
			},
			[]string{"operation", "status"},
		),
		HTTPRequests: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mindglow_http_requests_total",
				Help: "Gateway requests by method, path and status code",
			},
			[]string{"method", "path", "status_code"},
		),
		HTTPRequestDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "mindglow_http_request_duration_seconds",
				Help:    "Gateway request latency in seconds",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30},
			},
			[]string{"method", "path"},
		),
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) ObserveRequest(persona, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.Requests.WithLabelValues(persona, outcome).Inc()
	m.RequestDuration.WithLabelValues(persona).Observe(d.Seconds())
}

func (m *Metrics) FilterAttempt(persona string, violated bool) {
	if m == nil {
		return
	}
	result := "clean"
	if violated {
		result = "violation"
	}
	m.FilterAttempts.WithLabelValues(persona, result).Inc()
}

func (m *Metrics) FilterExhaustedInc(persona string) {
	if m == nil {
		return
	}
	m.FilterExhausted.WithLabelValues(persona).Inc()
}

func (m *Metrics) Crisis(language string) {
	if m == nil {
		return
	}
	m.CrisisDetections.WithLabelValues(language).Inc()
}

func (m *Metrics) MemoryDegradedInc() {
	if m == nil {
		return
	}
	m.MemoryDegraded.Inc()
}

func (m *Metrics) ProviderCall(operation string, err error) {
	if m == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	m.ProviderCalls.WithLabelValues(operation, status).Inc()
}

func (m *Metrics) HTTPRequest(method, path string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path).Observe(d.Seconds())
}
