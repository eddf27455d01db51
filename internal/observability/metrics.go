package observability

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds the Prometheus instruments the orchestration loop publishes
// against, including the latency of its checkpoint saves. No non-test implementation of a
// metrics surface survived in the reference repository; the instrument
// names and shapes here follow the reference repo's general
// "prometheus.NewCounterVec keyed by component" convention seen in its
// go.mod dependency on github.com/prometheus/client_golang.
type Metrics struct {
	Iterations        *prometheus.CounterVec
	CheckpointLatency *prometheus.HistogramVec
	ToolErrors        *prometheus.CounterVec
}

// NewMetrics registers a fresh instrument set against reg (use
// prometheus.NewRegistry() in tests to avoid global-registry collisions).
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Iterations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "agentcore_loop_iterations_total",
			Help: "Orchestration loop steps that reached a terminal step, labeled by that step.",
		}, []string{"step"}),
		CheckpointLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name: "agentcore_checkpoint_save_seconds",
			Help: "Latency of a full checkpoint save (metadata+agent+conversation+index+session).",
		}, []string{"backend"}),
		ToolErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "agentcore_tool_errors_total",
			Help: "Tool dispatch failures, labeled by tool name and source.",
		}, []string{"tool", "source"}),
	}
	reg.MustRegister(m.Iterations, m.CheckpointLatency, m.ToolErrors)
	return m
}
