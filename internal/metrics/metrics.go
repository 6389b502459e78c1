// Package metrics defines the Prometheus metrics exported on /metrics
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/themobileprof/kernelchat/internal/circuitbreaker"
	"github.com/themobileprof/kernelchat/pkg/llm"
)

// LLMBuckets covers local model latencies from 100ms to 2 minutes
var LLMBuckets = []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120}

var (
	// HTTPRequestsTotal counts HTTP requests by method, route and status class
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kernelchat_http_requests_total",
			Help: "HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	// HTTPRequestDuration records HTTP request duration in seconds
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "kernelchat_http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: LLMBuckets,
		},
		[]string{"method", "route"},
	)

	// ProviderRequestsTotal counts completion requests sent to the model server
	ProviderRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kernelchat_provider_requests_total",
			Help: "Provider requests",
		},
		[]string{"mode", "status"},
	)

	// ProviderLatency records time to a buffered reply or to an open stream
	ProviderLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "kernelchat_provider_latency_seconds",
			Help:    "Provider latency",
			Buckets: LLMBuckets,
		},
		[]string{"mode"},
	)

	// ProviderTokensTotal counts tokens reported by the model server
	ProviderTokensTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kernelchat_provider_tokens_total",
			Help: "Token count",
		},
		[]string{"direction"},
	)

	// StreamFragmentsTotal counts fragments forwarded to websocket clients
	StreamFragmentsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kernelchat_stream_fragments_total",
			Help: "Streamed fragments",
		},
		[]string{"demo"},
	)

	// ActiveStreams tracks websocket replies currently streaming
	ActiveStreams = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "kernelchat_streams_active",
			Help: "Active streaming replies",
		},
	)

	// PluginInvocationsTotal counts kernel function calls by outcome
	PluginInvocationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kernelchat_plugin_invocations_total",
			Help: "Plugin function invocations",
		},
		[]string{"plugin", "function", "status"},
	)

	// CircuitBreakerState is 0 closed, 1 half-open, 2 open
	CircuitBreakerState = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "kernelchat_circuit_breaker_state",
			Help: "Provider circuit breaker state",
		},
	)

	// RateLimitRejectedTotal counts requests rejected by the rate limiter
	RateLimitRejectedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "kernelchat_ratelimit_rejected_total",
			Help: "Rate limit rejections",
		},
	)
)

func init() {
	prometheus.MustRegister(
		HTTPRequestsTotal,
		HTTPRequestDuration,
		ProviderRequestsTotal,
		ProviderLatency,
		ProviderTokensTotal,
		StreamFragmentsTotal,
		ActiveStreams,
		PluginInvocationsTotal,
		CircuitBreakerState,
		RateLimitRejectedTotal,
	)
}

// Handler serves the default registry
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveProvider records one provider call. mode is "buffered" or "stream".
func ObserveProvider(mode string, start time.Time, err error) {
	ProviderRequestsTotal.WithLabelValues(mode, ProviderStatus(err)).Inc()
	ProviderLatency.WithLabelValues(mode).Observe(time.Since(start).Seconds())
}

// ObserveUsage records token usage when the server reported it
func ObserveUsage(usage *llm.Usage) {
	if usage == nil {
		return
	}
	ProviderTokensTotal.WithLabelValues("prompt").Add(float64(usage.PromptTokens))
	ProviderTokensTotal.WithLabelValues("completion").Add(float64(usage.CompletionTokens))
}

// ProviderStatus maps a provider error to a low-cardinality label
func ProviderStatus(err error) string {
	if err == nil {
		return "ok"
	}
	var te *llm.TransportError
	switch {
	case errors.As(err, &te) && te.StatusCode != 0:
		return statusClass(te.StatusCode)
	case errors.Is(err, llm.ErrTransport):
		return "transport_error"
	case errors.Is(err, context.Canceled):
		return "cancelled"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	default:
		return "error"
	}
}

// ObservePlugin records a kernel invocation; it matches kernel.InvokeObserver
func ObservePlugin(plugin, function string, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	PluginInvocationsTotal.WithLabelValues(plugin, function, status).Inc()
}

// ObserveBreaker records a circuit breaker transition
func ObserveBreaker(_, to circuitbreaker.State) {
	CircuitBreakerState.Set(float64(to))
}

func statusClass(code int) string {
	switch {
	case code >= 500:
		return "5xx"
	case code >= 400:
		return "4xx"
	case code >= 300:
		return "3xx"
	case code >= 200:
		return "2xx"
	default:
		return "other"
	}
}
