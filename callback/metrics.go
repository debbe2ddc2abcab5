package callback

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus collectors of agent executions.
type Metrics struct {
	registry *prometheus.Registry

	RunsTotal    *prometheus.CounterVec
	RunDuration  *prometheus.HistogramVec
	EventsTotal  *prometheus.CounterVec
	TokensTotal  prometheus.Counter
	ToolDuration *prometheus.HistogramVec
}

// NewMetrics creates and registers all collectors on a private registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		RunsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agentexec_runs_total",
				Help: "Total number of agent invocations by execution mode and status",
			},
			[]string{"mode", "status"},
		),
		RunDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "agentexec_run_duration_seconds",
				Help:    "Duration of agent invocations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"mode"},
		),
		EventsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agentexec_callback_events_total",
				Help: "Total number of callback events by type",
			},
			[]string{"type"},
		),
		TokensTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "agentexec_streamed_tokens_total",
				Help: "Total number of streamed token events",
			},
		),
		ToolDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "agentexec_tool_duration_seconds",
				Help:    "Duration of tool executions in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"tool", "status"},
		),
	}

	registry.MustRegister(
		m.RunsTotal,
		m.RunDuration,
		m.EventsTotal,
		m.TokensTotal,
		m.ToolDuration,
	)

	return m
}

// Registry returns the registry holding the collectors.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler exposes the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveRun records one finished invocation.
func (m *Metrics) ObserveRun(mode string, dur time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	m.RunsTotal.WithLabelValues(mode, status).Inc()
	m.RunDuration.WithLabelValues(mode).Observe(dur.Seconds())
}

// MetricsObserver counts pipeline events into Metrics.
type MetricsObserver struct {
	metrics *Metrics
}

// NewMetricsObserver creates a MetricsObserver.
func NewMetricsObserver(m *Metrics) *MetricsObserver {
	return &MetricsObserver{metrics: m}
}

// Observe implements Observer.
func (o *MetricsObserver) Observe(_ context.Context, ev Event) {
	o.metrics.EventsTotal.WithLabelValues(string(ev.Type)).Inc()

	switch ev.Type {
	case EventToken:
		o.metrics.TokensTotal.Inc()
	case EventToolEnd:
		o.metrics.ToolDuration.WithLabelValues(ev.Name, "success").Observe(ev.Duration.Seconds())
	case EventToolError:
		o.metrics.ToolDuration.WithLabelValues(ev.Name, "error").Observe(ev.Duration.Seconds())
	}
}
