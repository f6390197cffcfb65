// Package metrics defines the Prometheus collectors for the workflow engine
// and session stores, registered on the default registry and exposed by the
// API server at /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// NodeExecutions counts workflow node executions by node name.
	NodeExecutions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "plantclinic",
		Subsystem: "workflow",
		Name:      "node_executions_total",
		Help:      "Workflow node executions by node.",
	}, []string{"node"})

	// NodeRetries counts retryable tool failures by node name.
	NodeRetries = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "plantclinic",
		Subsystem: "workflow",
		Name:      "node_retries_total",
		Help:      "Retried node executions after a retryable tool failure.",
	}, []string{"node"})

	// WorkflowErrors counts runs that ended in the error terminal state.
	WorkflowErrors = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "plantclinic",
		Subsystem: "workflow",
		Name:      "errors_total",
		Help:      "Workflow runs that reached the error terminal node.",
	})

	// RunsCompleted counts engine runs by outcome (completed, paused, error).
	RunsCompleted = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "plantclinic",
		Subsystem: "workflow",
		Name:      "runs_total",
		Help:      "Engine runs by outcome.",
	}, []string{"outcome"})

	// ActiveSessions tracks the number of live (unexpired) sessions.
	ActiveSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "plantclinic",
		Subsystem: "session",
		Name:      "active",
		Help:      "Live sessions in the store.",
	})

	// SessionOps counts session store operations by kind.
	SessionOps = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "plantclinic",
		Subsystem: "session",
		Name:      "ops_total",
		Help:      "Session store operations by kind.",
	}, []string{"op"})
)
