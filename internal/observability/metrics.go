package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics collects workflow engine metrics.
type Metrics struct {
	// RunsCompleted counts finished workflow runs.
	// Labels: trigger_type, continue_reason (goal_achieved|goal_not_met)
	RunsCompleted *prometheus.CounterVec

	// LoopIterations observes iterations consumed per run.
	LoopIterations prometheus.Histogram

	// CompletionDuration measures completion-service call latency in seconds.
	// Labels: provider, phase (gather|decide)
	CompletionDuration *prometheus.HistogramVec

	// CompletionTokens counts tokens consumed.
	// Labels: provider
	CompletionTokens *prometheus.CounterVec

	// ToolExecutions counts tool invocations.
	// Labels: tool, status (success|error|cached)
	ToolExecutions *prometheus.CounterVec

	// ToolDuration measures tool execution time in seconds.
	// Labels: tool
	ToolDuration *prometheus.HistogramVec

	// ActorHeat reports the last written heat per actor.
	// Labels: actor_id
	ActorHeat *prometheus.GaugeVec

	// NodeErrors counts fatal node failures.
	// Labels: node
	NodeErrors *prometheus.CounterVec
}

// NewMetrics registers workflow metrics on a registerer. Pass nil to use the
// default Prometheus registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		RunsCompleted: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "reverie",
			Name:      "runs_completed_total",
			Help:      "Workflow runs completed, by trigger type and outcome.",
		}, []string{"trigger_type", "continue_reason"}),

		LoopIterations: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "reverie",
			Name:      "loop_iterations",
			Help:      "Iterations consumed per workflow run.",
			Buckets:   []float64{1, 2, 3, 4, 5, 7, 10},
		}),

		CompletionDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "reverie",
			Name:      "completion_duration_seconds",
			Help:      "Completion-service call latency.",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		}, []string{"provider", "phase"}),

		CompletionTokens: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "reverie",
			Name:      "completion_tokens_total",
			Help:      "Tokens consumed by completion calls.",
		}, []string{"provider"}),

		ToolExecutions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "reverie",
			Name:      "tool_executions_total",
			Help:      "Tool invocations by outcome.",
		}, []string{"tool", "status"}),

		ToolDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "reverie",
			Name:      "tool_duration_seconds",
			Help:      "Tool execution time.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30},
		}, []string{"tool"}),

		ActorHeat: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "reverie",
			Name:      "actor_heat",
			Help:      "Last written heat per actor.",
		}, []string{"actor_id"}),

		NodeErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "reverie",
			Name:      "node_errors_total",
			Help:      "Fatal node failures by node.",
		}, []string{"node"}),
	}
}
