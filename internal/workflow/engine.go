package workflow

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/cropwise/plantclinic/internal/metrics"
	"github.com/cropwise/plantclinic/internal/models"
	"github.com/cropwise/plantclinic/internal/tools"
)

// DefaultMaxSteps caps node executions per run. A well-formed session
// never approaches it; exceeding it signals a routing defect.
const DefaultMaxSteps = 25

// PersistFunc saves the state after each completed node, so a canceled run
// leaves the session exactly as of the last completed node.
type PersistFunc func(ctx context.Context, state *models.WorkflowState) error

// StepFunc is invoked after every node execution during StreamRun; returning
// an error aborts the run.
type StepFunc func(state *models.WorkflowState) error

// Engine compiles the node set and router table into a runnable graph.
type Engine struct {
	nodes    map[string]Node
	routers  map[string]Router
	maxSteps int
	persist  PersistFunc
}

// Option configures the engine.
type Option func(*Engine)

// WithMaxSteps overrides the per-run step cap.
func WithMaxSteps(n int) Option {
	return func(e *Engine) { e.maxSteps = n }
}

// WithPersistence installs the per-node persistence hook.
func WithPersistence(fn PersistFunc) Option {
	return func(e *Engine) { e.persist = fn }
}

// NewEngine wires the node set to the given toolset.
func NewEngine(ts tools.Toolset, opts ...Option) *Engine {
	e := &Engine{
		nodes:    map[string]Node{},
		routers:  routerTable(),
		maxSteps: DefaultMaxSteps,
	}
	for _, n := range []Node{
		NewInitialNode(ts.Intent, ts.Context),
		NewClassifyingNode(ts.Classifier),
		NewPrescribingNode(ts.Prescriber),
		NewVendorQueryNode(),
		NewShowVendorsNode(ts.Vendors),
		NewOrderBookingNode(),
		NewFollowupNode(ts.Followup, ts.Goodbye),
		NewCompletedNode(ts.Goodbye),
		NewErrorNode(),
	} {
		e.nodes[n.Name()] = n
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// entryNode resolves where this run starts. Terminal states re-enter at
// initial, whose continuing-conversation check hands engaged sessions to
// followup.
func (e *Engine) entryNode(state *models.WorkflowState) string {
	switch state.CurrentNode {
	case "", models.NodeCompleted, models.NodeError:
		return models.NodeInitial
	default:
		return state.CurrentNode
	}
}

// Run drives the workflow until a terminal node or a pause for user input.
func (e *Engine) Run(ctx context.Context, state *models.WorkflowState) error {
	return e.StreamRun(ctx, state, nil)
}

// StreamRun is Run with a per-step callback, yielding after every node
// execution so a transport can flush partial output before the next
// (possibly slow) node begins.
func (e *Engine) StreamRun(ctx context.Context, state *models.WorkflowState, onStep StepFunc) error {
	node := e.entryNode(state)
	if node != state.CurrentNode {
		state.PreviousNode = state.CurrentNode
		state.CurrentNode = node
	}

	for steps := 0; ; {
		if err := ctx.Err(); err != nil {
			return err
		}
		steps++
		if steps > e.maxSteps {
			slog.Error("Engine.StreamRun: step cap exceeded", "session_id", state.SessionID, "max_steps", e.maxSteps)
			return &EngineLoopError{SessionID: state.SessionID, Steps: e.maxSteps}
		}

		impl, ok := e.nodes[node]
		if !ok {
			return fmt.Errorf("no handler for node %q", node)
		}
		slog.Debug("Engine.StreamRun: executing node", "session_id", state.SessionID, "node", node, "step", steps)
		metrics.NodeExecutions.WithLabelValues(node).Inc()
		if err := impl.Execute(ctx, state); err != nil {
			return fmt.Errorf("node %s failed: %w", node, err)
		}

		route, ok := e.routers[node]
		if !ok {
			return fmt.Errorf("no router for node %q", node)
		}
		next := route(state)
		if next != routeEnd {
			// The one place previous_node is written: exactly once per
			// transition, before the next node executes.
			state.PreviousNode = node
			state.CurrentNode = next
		}

		if e.persist != nil {
			if err := e.persist(ctx, state); err != nil {
				return fmt.Errorf("failed to persist session %s: %w", state.SessionID, err)
			}
		}
		if onStep != nil {
			if err := onStep(state); err != nil {
				return err
			}
		}

		if next == routeEnd {
			outcome := "completed"
			if node == models.NodeError {
				outcome = "error"
				metrics.WorkflowErrors.Inc()
			}
			metrics.RunsCompleted.WithLabelValues(outcome).Inc()
			slog.Debug("Engine.StreamRun: run finished", "session_id", state.SessionID, "terminal", node, "steps", steps)
			return nil
		}
		if state.RequiresUserInput {
			metrics.RunsCompleted.WithLabelValues("paused").Inc()
			slog.Debug("Engine.StreamRun: paused for user input", "session_id", state.SessionID, "resume_node", state.CurrentNode, "steps", steps)
			return nil
		}
		if state.IsComplete {
			metrics.RunsCompleted.WithLabelValues("completed").Inc()
			return nil
		}
		node = next
	}
}
