// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	BuildInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "schema_assistant_build_info",
			Help: "Build information of the schema assistant",
		},
		[]string{"version"},
	)

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "schema_assistant_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "schema_assistant_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "schema_assistant_http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)

	// ChatRequestsTotal counts chat requests by how they finished:
	// "direct", "tool", "fallback_intent", "fallback_tool", "fallback_final", "rejected".
	ChatRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "schema_assistant_chat_requests_total",
			Help: "Total number of chat requests by outcome",
		},
		[]string{"outcome"},
	)

	ToolInvocationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "schema_assistant_tool_invocations_total",
			Help: "Total number of tool invocations",
		},
		[]string{"tool", "result"},
	)

	CompletionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "schema_assistant_completion_duration_seconds",
			Help:    "Duration of completion service calls in seconds",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"provider", "result"},
	)

	StoreErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "schema_assistant_store_errors_total",
			Help: "Total number of failed data store calls",
		},
		[]string{"operation"},
	)
)

// Result labels shared by the counters above.
const (
	ResultOK    = "ok"
	ResultError = "error"
)
