// Package metrics exposes prometheus metrics about tool executions.
package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/awlx/agentops-mcp/pkg/config"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	statusSuccess = "success"
	statusError   = "error"
)

// Metrics holds the tool execution collectors and their registry.
type Metrics struct {
	registry     *prometheus.Registry
	toolExecCnt  *prometheus.CounterVec
	toolExecDur  *prometheus.HistogramVec
	toolExecInfl *prometheus.GaugeVec
}

// New registers the collectors on a fresh registry.
func New(cfg config.MetricsConfig) *Metrics {
	ns := cfg.Namespace
	buckets := cfg.Buckets
	if len(buckets) == 0 {
		buckets = prometheus.DefBuckets
	}
	r := prometheus.NewRegistry()
	r.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	r.MustRegister(collectors.NewGoCollector())

	toolExecCnt := prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: ns, Name: "tool_execution_total"}, []string{"tool_name", "status"})
	toolExecDur := prometheus.NewHistogramVec(prometheus.HistogramOpts{Namespace: ns, Name: "tool_execution_duration_seconds", Buckets: buckets}, []string{"tool_name", "status"})
	toolExecInfl := prometheus.NewGaugeVec(prometheus.GaugeOpts{Namespace: ns, Name: "tool_execution_inflight_requests"}, []string{"tool_name"})
	r.MustRegister(toolExecCnt, toolExecDur, toolExecInfl)

	return &Metrics{
		registry:     r,
		toolExecCnt:  toolExecCnt,
		toolExecDur:  toolExecDur,
		toolExecInfl: toolExecInfl,
	}
}

// ToolExecStart marks a tool call as in flight.
func (m *Metrics) ToolExecStart(toolName string) {
	m.toolExecInfl.WithLabelValues(toolName).Inc()
}

// ToolExecDone records the outcome and duration of a tool call.
func (m *Metrics) ToolExecDone(toolName string, since time.Time, failed bool) {
	status := statusSuccess
	if failed {
		status = statusError
	}
	m.toolExecCnt.WithLabelValues(toolName, status).Inc()
	m.toolExecDur.WithLabelValues(toolName, status).Observe(time.Since(since).Seconds())
	m.toolExecInfl.WithLabelValues(toolName).Dec()
}

// Handler exposes the registry in the prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Middleware records every tool call. A result flagged IsError counts as a
// failure just like a returned error.
func (m *Metrics) Middleware() server.ToolHandlerMiddleware {
	return func(next server.ToolHandlerFunc) server.ToolHandlerFunc {
		return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			name := request.Params.Name
			start := time.Now()
			m.ToolExecStart(name)
			result, err := next(ctx, request)
			m.ToolExecDone(name, start, err != nil || (result != nil && result.IsError))
			return result, err
		}
	}
}
