// ABOUTME: Prometheus instrumentation for tool calls, probes, and upstream latency
// ABOUTME: A nil *Metrics is a no-op so components never need to guard

package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the gateway's instruments. All observe methods are safe on
// a nil receiver so wiring metrics stays optional.
type Metrics struct {
	registry *prometheus.Registry

	toolCalls       *prometheus.CounterVec
	seasonProbes    *prometheus.CounterVec
	upstreamLatency prometheus.Histogram
}

// New creates a Metrics with its own registry, including the standard Go
// and process collectors.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		toolCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gateway_tool_calls_total",
			Help: "Tool invocations by tool name and outcome.",
		}, []string{"tool", "outcome"}),
		seasonProbes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gateway_season_probes_total",
			Help: "Season discovery probes by outcome.",
		}, []string{"outcome"}),
		upstreamLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "gateway_upstream_request_seconds",
			Help:    "Latency of upstream provider requests.",
			Buckets: prometheus.DefBuckets,
		}),
	}

	registry.MustRegister(
		m.toolCalls,
		m.seasonProbes,
		m.upstreamLatency,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return m
}

// Handler returns the /metrics HTTP handler for this registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveToolCall records one tool invocation outcome ("ok", "error",
// "auth_error").
func (m *Metrics) ObserveToolCall(tool, outcome string) {
	if m == nil {
		return
	}
	m.toolCalls.WithLabelValues(tool, outcome).Inc()
}

// ObserveProbe records one season probe outcome ("hit", "miss",
// "rate_limited", "skipped", "error").
func (m *Metrics) ObserveProbe(outcome string) {
	if m == nil {
		return
	}
	m.seasonProbes.WithLabelValues(outcome).Inc()
}

// ObserveUpstreamLatency records the duration of one upstream request.
func (m *Metrics) ObserveUpstreamLatency(d time.Duration) {
	if m == nil {
		return
	}
	m.upstreamLatency.Observe(d.Seconds())
}
