package httpapi

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const metricsNamespace = "mcp"

// Metrics owns a private registry so tests can build as many as they like.
type Metrics struct {
	registry *prometheus.Registry

	sessionsActive prometheus.Gauge
	messagesRouted *prometheus.CounterVec
	toolCalls      *prometheus.CounterVec
	authFailures   *prometheus.CounterVec
}

func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		sessionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "sessions_active",
			Help:      "Number of open SSE sessions.",
		}),
		messagesRouted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "messages_routed_total",
			Help:      "Posted messages by routing outcome.",
		}, []string{"outcome"}),
		toolCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "tool_calls_total",
			Help:      "Completed tool calls by tool and result.",
		}, []string{"tool", "result"}),
		authFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "auth_failures_total",
			Help:      "Rejected requests by reason.",
		}, []string{"reason"}),
	}
	m.registry.MustRegister(
		m.sessionsActive,
		m.messagesRouted,
		m.toolCalls,
		m.authFailures,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ObserveToolCall has the shape of mcpserver.ToolObserver.
func (m *Metrics) ObserveToolCall(tool string, isError bool) {
	result := "ok"
	if isError {
		result = "error"
	}
	m.toolCalls.WithLabelValues(tool, result).Inc()
}

func (m *Metrics) setSessions(n int) {
	m.sessionsActive.Set(float64(n))
}

func (m *Metrics) routed(outcome string) {
	m.messagesRouted.WithLabelValues(outcome).Inc()
}

func (m *Metrics) authFailed(reason string) {
	m.authFailures.WithLabelValues(reason).Inc()
}
