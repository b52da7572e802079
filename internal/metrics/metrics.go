// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Request counters
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "xinstan",
			Subsystem: "server",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	// Request duration histogram
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "xinstan",
			Subsystem: "server",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"method", "endpoint"},
	)

	// Proxy outcomes by error kind ("ok" on success)
	ProxyRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "xinstan",
			Subsystem: "proxy",
			Name:      "requests_total",
			Help:      "Total media proxy requests by outcome",
		},
		[]string{"outcome"},
	)

	// Bytes streamed to callers
	ProxyBytesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "xinstan",
			Subsystem: "proxy",
			Name:      "bytes_total",
			Help:      "Total bytes streamed from the media CDN",
		},
		[]string{"extension"},
	)

	// Resolver outcomes
	ResolveRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "xinstan",
			Subsystem: "resolver",
			Name:      "requests_total",
			Help:      "Total resolver requests by outcome",
		},
		[]string{"outcome"},
	)

	// Upstream converter latency
	ResolveDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "xinstan",
			Subsystem: "resolver",
			Name:      "upstream_duration_seconds",
			Help:      "RapidAPI converter call duration in seconds",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10},
		},
	)
)

// RecordRequest records an HTTP request
func RecordRequest(method, endpoint, status string, durationSec float64) {
	RequestsTotal.WithLabelValues(method, endpoint, status).Inc()
	RequestDuration.WithLabelValues(method, endpoint).Observe(durationSec)
}

// RecordProxy records one proxy request and the bytes it streamed.
func RecordProxy(outcome, extension string, bytes int64) {
	ProxyRequestsTotal.WithLabelValues(outcome).Inc()
	if bytes > 0 {
		ProxyBytesTotal.WithLabelValues(extension).Add(float64(bytes))
	}
}

// RecordResolve records one resolver request
func RecordResolve(outcome string, durationSec float64) {
	ResolveRequestsTotal.WithLabelValues(outcome).Inc()
	if durationSec > 0 {
		ResolveDuration.Observe(durationSec)
	}
}
