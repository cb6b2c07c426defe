// Package telemetry exposes the process's Prometheus collectors.
package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds every collector the assistant pipeline records into. A nil
// *Metrics is valid and records nothing, so tests can skip wiring it.
type Metrics struct {
	Turns          *prometheus.CounterVec
	ToolExecutions *prometheus.CounterVec
	LLMLatency     *prometheus.HistogramVec
	RepairCalls    prometheus.Counter
	StreamTokens   prometheus.Counter
}

// New builds the collector set and registers it with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Turns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "daybreak",
			Name:      "assistant_turns_total",
			Help:      "Completed assistant turns by provider and outcome.",
		}, []string{"provider", "outcome"}),
		ToolExecutions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "daybreak",
			Name:      "tool_executions_total",
			Help:      "Tool calls executed by tool name and result.",
		}, []string{"tool", "result"}),
		LLMLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "daybreak",
			Name:      "llm_request_seconds",
			Help:      "Latency of upstream model calls.",
			Buckets:   []float64{0.25, 0.5, 1, 2, 4, 8, 16, 32, 64},
		}, []string{"provider", "kind"}),
		RepairCalls: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "daybreak",
			Name:      "json_repair_calls_total",
			Help:      "Corrective reformat calls issued by the repair pipeline.",
		}),
		StreamTokens: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "daybreak",
			Name:      "stream_tokens_total",
			Help:      "Tokens emitted to streaming clients.",
		}),
	}
	reg.MustRegister(m.Turns, m.ToolExecutions, m.LLMLatency, m.RepairCalls, m.StreamTokens)
	return m
}

// TurnDone increments the per-provider turn counter. Safe on nil.
func (m *Metrics) TurnDone(provider, outcome string) {
	if m == nil {
		return
	}
	m.Turns.WithLabelValues(provider, outcome).Inc()
}

// ToolDone increments the per-tool execution counter. Safe on nil.
func (m *Metrics) ToolDone(tool string, ok bool) {
	if m == nil {
		return
	}
	result := "ok"
	if !ok {
		result = "error"
	}
	m.ToolExecutions.WithLabelValues(tool, result).Inc()
}

// ObserveLLM records one upstream call's latency. Safe on nil.
func (m *Metrics) ObserveLLM(provider, kind string, seconds float64) {
	if m == nil {
		return
	}
	m.LLMLatency.WithLabelValues(provider, kind).Observe(seconds)
}

// RepairCall counts one corrective reformat call. Safe on nil.
func (m *Metrics) RepairCall() {
	if m == nil {
		return
	}
	m.RepairCalls.Inc()
}

// Token counts one streamed token. Safe on nil.
func (m *Metrics) Token() {
	if m == nil {
		return
	}
	m.StreamTokens.Inc()
}
