package workflow

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides Prometheus metric collection for workflow execution.
//
// Metrics exposed (all namespaced with "foundry_"):
//
//   - sessions_started_total (counter): Start calls accepted.
//   - sessions_resumed_total (counter): Resume calls accepted.
//   - suspensions_total (counter): sessions paused awaiting a decision.
//   - steps_total (counter, node_id): committed node executions.
//   - node_latency_ms (histogram, node_id/status): node execution
//     duration in milliseconds, status is "ok", "error" or "suspend".
//
// A nil *Metrics is valid and records nothing, so callers can wire
// metrics only where a registry exists.
//
// Usage:
//
//	registry := prometheus.NewRegistry()
//	metrics := workflow.NewMetrics(registry)
//	engine.WithMetrics(metrics)
//	http.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
type Metrics struct {
	sessionsStarted prometheus.Counter
	sessionsResumed prometheus.Counter
	suspensions     prometheus.Counter
	steps           *prometheus.CounterVec
	nodeLatency     *prometheus.HistogramVec
}

// NewMetrics creates and registers all workflow metrics with the
// provided registry. Pass prometheus.DefaultRegisterer to use the
// global registry, or a dedicated registry for isolation.
func NewMetrics(registry prometheus.Registerer) *Metrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}
	factory := promauto.With(registry)

	return &Metrics{
		sessionsStarted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "foundry",
			Name:      "sessions_started_total",
			Help:      "Total number of workflow sessions started.",
		}),
		sessionsResumed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "foundry",
			Name:      "sessions_resumed_total",
			Help:      "Total number of suspended sessions resumed.",
		}),
		suspensions: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "foundry",
			Name:      "suspensions_total",
			Help:      "Total number of sessions suspended for human review.",
		}),
		steps: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "foundry",
			Name:      "steps_total",
			Help:      "Total number of committed node executions.",
		}, []string{"node_id"}),
		nodeLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "foundry",
			Name:      "node_latency_ms",
			Help:      "Node execution duration in milliseconds.",
			Buckets:   []float64{1, 5, 10, 50, 100, 500, 1000, 5000, 10000},
		}, []string{"node_id", "status"}),
	}
}

// SessionStarted records an accepted Start call.
func (m *Metrics) SessionStarted() {
	if m == nil {
		return
	}
	m.sessionsStarted.Inc()
}

// SessionResumed records an accepted Resume call.
func (m *Metrics) SessionResumed() {
	if m == nil {
		return
	}
	m.sessionsResumed.Inc()
}

// Suspended records a session pausing for an external decision.
func (m *Metrics) Suspended() {
	if m == nil {
		return
	}
	m.suspensions.Inc()
}

// StepCommitted records a committed node execution.
func (m *Metrics) StepCommitted(nodeID string) {
	if m == nil {
		return
	}
	m.steps.WithLabelValues(nodeID).Inc()
}

// ObserveNode records the duration of a node execution with the given
// status ("ok", "error" or "suspend").
func (m *Metrics) ObserveNode(nodeID, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.nodeLatency.WithLabelValues(nodeID, status).Observe(float64(d.Milliseconds()))
}
