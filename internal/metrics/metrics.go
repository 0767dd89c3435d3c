// Package metrics exposes prometheus collectors for the complaint pipeline.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Outcome labels for upstream requests.
const (
	OutcomeSuccess   = "success"
	OutcomeTransport = "transport_error"
	OutcomeStatus    = "status_error"
	OutcomeMalformed = "malformed"
)

// UpstreamMetrics tracks calls to the complaint search API and fallbacks to mock data.
// A nil *UpstreamMetrics is valid and records nothing.
type UpstreamMetrics struct {
	requests  *prometheus.CounterVec
	duration  *prometheus.HistogramVec
	fallbacks *prometheus.CounterVec
}

// NewUpstreamMetrics creates the collectors and registers them with reg when reg is not nil.
func NewUpstreamMetrics(reg prometheus.Registerer) *UpstreamMetrics {
	m := &UpstreamMetrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "complaint_upstream_requests_total",
			Help: "Requests sent to the complaint search API by product and outcome.",
		}, []string{"product", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "complaint_upstream_request_duration_seconds",
			Help:    "Latency of complaint search API requests.",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 15},
		}, []string{"product"}),
		fallbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "complaint_fallback_total",
			Help: "Times synthetic complaint data replaced a failed upstream fetch.",
		}, []string{"product"}),
	}

	if reg != nil {
		reg.MustRegister(m.requests, m.duration, m.fallbacks)
	}
	return m
}

// ObserveRequest records one upstream call.
func (m *UpstreamMetrics) ObserveRequest(product, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(product, outcome).Inc()
	m.duration.WithLabelValues(product).Observe(elapsed.Seconds())
}

// ObserveFallback records that mock data was served for product.
func (m *UpstreamMetrics) ObserveFallback(product string) {
	if m == nil {
		return
	}
	m.fallbacks.WithLabelValues(product).Inc()
}
