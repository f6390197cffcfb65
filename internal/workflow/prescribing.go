package workflow

import (
	"context"
	"log/slog"

	"github.com/cropwise/plantclinic/internal/metrics"
	"github.com/cropwise/plantclinic/internal/models"
	"github.com/cropwise/plantclinic/internal/tools"
)

// PrescribingNode generates the treatment plan for the stored diagnosis.
// Same missing-input / retry / fatal contract as classification.
type PrescribingNode struct {
	prescriber tools.Prescriber
}

// NewPrescribingNode creates the prescription node.
func NewPrescribingNode(p tools.Prescriber) *PrescribingNode {
	return &PrescribingNode{prescriber: p}
}

func (n *PrescribingNode) Name() string { return models.NodePrescribing }

// Execute invokes the prescriber and stores the treatment plan.
func (n *PrescribingNode) Execute(ctx context.Context, state *models.WorkflowState) error {
	if state.ClassificationResults == nil {
		err := &MissingInputError{Node: models.NodePrescribing, Input: "a diagnosis"}
		slog.Error("PrescribingNode.Execute: missing input", "session_id", state.SessionID, "error", err)
		state.SetError("I need to diagnose the disease before recommending treatments.")
		state.NextAction = models.ActionError
		return nil
	}

	data, err := n.prescriber.Prescribe(ctx, tools.PrescribeInput{
		DiseaseName: state.ClassificationResults.DiseaseName,
		PlantType:   state.UserContext.PlantType,
		Location:    state.UserContext.Location,
		Season:      state.UserContext.Season,
		Severity:    state.ClassificationResults.Severity,
		UserContext: state.UserContext,
	})
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return n.fail(state, err)
	}

	state.PrescriptionData = data
	state.RetryCount = 0
	respond(state, withGeneralAnswer(state, formatPrescription(data)))

	if state.UserIntent != nil && state.UserIntent.WantsVendors {
		state.NextAction = models.ActionVendorQuery
	} else {
		state.NextAction = models.ActionComplete
	}
	slog.Debug("PrescribingNode.Execute: prescribed", "session_id", state.SessionID, "treatments", len(data.Treatments), "next_action", state.NextAction)
	return nil
}

func (n *PrescribingNode) fail(state *models.WorkflowState, err error) error {
	toolErr := &ToolFailureError{Tool: "prescriber", Err: err}
	if state.CanRetry() {
		state.RetryCount++
		metrics.NodeRetries.WithLabelValues(models.NodePrescribing).Inc()
		slog.Debug("PrescribingNode.Execute: retrying", "session_id", state.SessionID, "retry_count", state.RetryCount, "error", toolErr)
		state.AddMessage(models.RoleAssistant, "🔄 Having trouble preparing the treatment plan, retrying...")
		state.NextAction = models.ActionRetry
		return nil
	}
	slog.Error("PrescribingNode.Execute: retries exhausted", "session_id", state.SessionID, "error", toolErr)
	state.SetError("I couldn't prepare a treatment plan right now. Please try asking again in a moment.")
	state.NextAction = models.ActionError
	return nil
}
