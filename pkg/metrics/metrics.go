// Package metrics provides Prometheus metrics instrumentation.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestDuration tracks HTTP request duration.
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
		[]string{"method", "path", "status"},
	)

	// RequestsTotal tracks total HTTP requests.
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// RateLimitDecisions tracks admission outcomes per window scope.
	RateLimitDecisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rate_limit_decisions_total",
			Help: "Rate limit admission decisions",
		},
		[]string{"scope", "outcome"},
	)

	// CacheOps tracks history cache operations by result.
	CacheOps = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "history_cache_ops_total",
			Help: "History cache operations",
		},
		[]string{"op", "result"},
	)

	// LLMRequestDuration tracks generation backend call duration.
	LLMRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "llm_request_duration_seconds",
			Help:    "Generation backend call duration",
			Buckets: []float64{.25, .5, 1, 2, 5, 10, 15, 20, 30},
		},
		[]string{"model", "status"},
	)

	// LLMTokensTotal tracks total tokens processed.
	LLMTokensTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "llm_tokens_total",
			Help: "Total LLM tokens processed",
		},
		[]string{"model", "direction"},
	)

	// MessagesPersisted tracks durably stored message pairs.
	MessagesPersisted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "messages_persisted_total",
			Help: "Total message pairs written to the durable store",
		},
	)
)

// RecordRequest records an HTTP request observation.
func RecordRequest(method, path, status string, durationSec float64) {
	RequestDuration.WithLabelValues(method, path, status).Observe(durationSec)
	RequestsTotal.WithLabelValues(method, path, status).Inc()
}

// RecordLLMCall records a generation backend call observation.
func RecordLLMCall(model, status string, durationSec float64, tokensIn, tokensOut int) {
	LLMRequestDuration.WithLabelValues(model, status).Observe(durationSec)
	LLMTokensTotal.WithLabelValues(model, "in").Add(float64(tokensIn))
	LLMTokensTotal.WithLabelValues(model, "out").Add(float64(tokensOut))
}
