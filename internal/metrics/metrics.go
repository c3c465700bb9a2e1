// Package metrics exposes Prometheus counters and histograms for the
// worker: executions claimed/completed/failed and per-node execution
// duration. Instruments are promauto-registered behind a small
// recording API so callers never touch the prometheus package
// directly.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds every instrument the worker and executor record against.
type Metrics struct {
	executionsClaimed   prometheus.Counter
	executionsCompleted prometheus.Counter
	executionsFailed    prometheus.Counter
	nodeDuration        *prometheus.HistogramVec
}

// New registers the engine's metrics with registry. A nil registry
// falls back to prometheus.DefaultRegisterer.
func New(registry prometheus.Registerer) *Metrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}
	factory := promauto.With(registry)

	return &Metrics{
		executionsClaimed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "flowcraft",
			Subsystem: "worker",
			Name:      "executions_claimed_total",
			Help:      "Total number of executions claimed from the queue",
		}),
		executionsCompleted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "flowcraft",
			Subsystem: "worker",
			Name:      "executions_completed_total",
			Help:      "Total number of executions that finished successfully",
		}),
		executionsFailed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "flowcraft",
			Subsystem: "worker",
			Name:      "executions_failed_total",
			Help:      "Total number of executions that finished in error",
		}),
		nodeDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "flowcraft",
			Subsystem: "executor",
			Name:      "node_duration_seconds",
			Help:      "Duration of a single node's Run call",
			Buckets:   prometheus.DefBuckets,
		}, []string{"node_type", "status"}),
	}
}

// ClaimedExecution increments the claimed-executions counter.
func (m *Metrics) ClaimedExecution() {
	if m == nil {
		return
	}
	m.executionsClaimed.Inc()
}

// CompletedExecution increments the completed-executions counter.
func (m *Metrics) CompletedExecution() {
	if m == nil {
		return
	}
	m.executionsCompleted.Inc()
}

// FailedExecution increments the failed-executions counter.
func (m *Metrics) FailedExecution() {
	if m == nil {
		return
	}
	m.executionsFailed.Inc()
}

// ObserveNodeDuration records how long a single node's Run call took,
// labeled by node type and outcome ("success" or "error").
func (m *Metrics) ObserveNodeDuration(nodeType, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.nodeDuration.WithLabelValues(nodeType, status).Observe(d.Seconds())
}
