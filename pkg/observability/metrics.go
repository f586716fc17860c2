// Package observability provides Prometheus metrics and HTTP middleware
// for monitoring the sensei gateway.
package observability

import "github.com/prometheus/client_golang/prometheus"

const namespace = "sensei"

// LLMBuckets spans model inference latencies from 100ms to two minutes.
var LLMBuckets = []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120}

// Inbound traffic.
var (
	// RequestsTotal is labelled by API surface, method and status class.
	RequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "requests_total",
		Help:      "Inbound requests",
	}, []string{"surface", "method", "status"})

	RequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "request_duration_seconds",
		Help:      "Inbound request duration",
		Buckets:   LLMBuckets,
	}, []string{"surface"})

	RequestsInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "requests_in_flight",
		Help:      "Inbound requests being served",
	})

	// AuthFailuresTotal reason is "missing" when no credential was offered
	// and "invalid" otherwise.
	AuthFailuresTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "auth_failures_total",
		Help:      "Rejected authentication attempts",
	}, []string{"reason"})

	// RateLimitRejectedTotal is labelled by limiter class (general, ai).
	RateLimitRejectedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "ratelimit",
		Name:      "rejected_total",
		Help:      "Rate limit rejections",
	}, []string{"class"})
)

// Outbound calls to AI providers and the automation engine.
var (
	ProviderRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "provider",
		Name:      "requests_total",
		Help:      "Provider requests",
	}, []string{"provider", "status"})

	ProviderLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "provider",
		Name:      "latency_seconds",
		Help:      "Provider latency",
		Buckets:   LLMBuckets,
	}, []string{"provider"})

	// ProviderAvailable is 1 when the latest probe reached the provider.
	ProviderAvailable = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "provider",
		Name:      "available",
		Help:      "Provider availability from the latest probe",
	}, []string{"provider"})

	EngineRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "engine",
		Name:      "requests_total",
		Help:      "Automation engine requests",
	}, []string{"op", "status"})
)

// Interaction recording.
var (
	// RecorderDroppedTotal counts records lost to a full or closed queue.
	RecorderDroppedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "recorder",
		Name:      "dropped_total",
		Help:      "Dropped interaction records",
	})

	RecorderSavesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "recorder",
		Name:      "saves_total",
		Help:      "Interaction record saves",
	}, []string{"status"})
)

func init() {
	prometheus.MustRegister(
		RequestsTotal, RequestDuration, RequestsInFlight, AuthFailuresTotal, RateLimitRejectedTotal,
		ProviderRequestsTotal, ProviderLatency, ProviderAvailable, EngineRequestsTotal,
		RecorderDroppedTotal, RecorderSavesTotal,
	)
}
