// Package observability provides Prometheus metrics and HTTP middleware
// for monitoring the chatrelay service.
package observability

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// LLMBuckets defines histogram buckets suited for LLM inference latencies,
// ranging from 100ms to 120s.
var LLMBuckets = []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120}

// UpstreamBuckets covers the bootstrap round trips, which are much shorter
// than a full generation.
var UpstreamBuckets = []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30}

// Upstream step labels.
const (
	StepCreateConversation = "create_conversation"
	StepPageData           = "page_data"
	StepSubmitMessage      = "submit_message"
)

var (
	// RequestsTotal counts all HTTP requests by method, status class, and route.
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatrelay_requests_total",
			Help: "Total requests",
		},
		[]string{"method", "status", "route"},
	)

	// RequestDuration records HTTP request duration in seconds by method and route.
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "chatrelay_request_duration_seconds",
			Help:    "Request duration",
			Buckets: LLMBuckets,
		},
		[]string{"method", "route"},
	)

	// StreamingConnections tracks the number of active SSE streaming connections.
	StreamingConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "chatrelay_streaming_connections_active",
			Help: "Active streaming connections",
		},
	)

	// UpstreamRequestsTotal counts calls made to the conversational backend
	// by bootstrap step and HTTP status (or "error" for transport failures).
	UpstreamRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatrelay_upstream_requests_total",
			Help: "Upstream requests",
		},
		[]string{"step", "status"},
	)

	// UpstreamLatency records the round-trip time of each bootstrap step.
	UpstreamLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "chatrelay_upstream_latency_seconds",
			Help:    "Upstream latency",
			Buckets: UpstreamBuckets,
		},
		[]string{"step"},
	)

	// TokensTotal counts output tokens relayed per model.
	TokensTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatrelay_tokens_total",
			Help: "Output tokens relayed",
		},
		[]string{"model"},
	)

	// FramesSkippedTotal counts extracted frames that failed to parse.
	FramesSkippedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "chatrelay_frames_skipped_total",
			Help: "Malformed upstream frames skipped",
		},
	)

	// RateLimitRejectedTotal counts requests rejected by the rate limiter.
	RateLimitRejectedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatrelay_ratelimit_rejected_total",
			Help: "Rate limit rejections",
		},
		[]string{"tier"},
	)
)

func init() {
	prometheus.MustRegister(
		RequestsTotal,
		RequestDuration,
		StreamingConnections,
		UpstreamRequestsTotal,
		UpstreamLatency,
		TokensTotal,
		FramesSkippedTotal,
		RateLimitRejectedTotal,
	)
}

// ObserveUpstream records one bootstrap round trip. status is the HTTP status
// code, or 0 when the request never got a response.
func ObserveUpstream(step string, status int, elapsed time.Duration) {
	label := "error"
	if status > 0 {
		label = strconv.Itoa(status)
	}
	UpstreamRequestsTotal.WithLabelValues(step, label).Inc()
	UpstreamLatency.WithLabelValues(step).Observe(elapsed.Seconds())
}

// TrackStream marks an SSE stream as open. The returned func marks it closed
// and must be called exactly once.
func TrackStream() func() {
	StreamingConnections.Inc()
	return StreamingConnections.Dec
}
