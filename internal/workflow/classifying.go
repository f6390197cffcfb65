package workflow

import (
	"context"
	"log/slog"

	"github.com/cropwise/plantclinic/internal/metrics"
	"github.com/cropwise/plantclinic/internal/models"
	"github.com/cropwise/plantclinic/internal/tools"
)

// ClassifyingNode runs the image classifier. Missing image is fatal;
// classifier failures retry up to the ceiling, then fail fatally.
type ClassifyingNode struct {
	classifier tools.Classifier
}

// NewClassifyingNode creates the classification node.
func NewClassifyingNode(c tools.Classifier) *ClassifyingNode {
	return &ClassifyingNode{classifier: c}
}

func (n *ClassifyingNode) Name() string { return models.NodeClassifying }

// Execute invokes the classifier and stores the diagnosis.
func (n *ClassifyingNode) Execute(ctx context.Context, state *models.WorkflowState) error {
	if state.UserImage == "" {
		err := &MissingInputError{Node: models.NodeClassifying, Input: "a plant image"}
		slog.Error("ClassifyingNode.Execute: missing input", "session_id", state.SessionID, "error", err)
		state.SetError("I need a photo of your plant before I can diagnose it. 📸")
		state.NextAction = models.ActionError
		return nil
	}

	result, err := n.classifier.Classify(ctx, tools.ClassifyInput{
		ImageB64:  state.UserImage,
		PlantType: state.UserContext.PlantType,
		Location:  state.UserContext.Location,
		Season:    state.UserContext.Season,
	})
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return n.fail(state, err)
	}

	state.ClassificationResults = result
	state.RetryCount = 0
	respond(state, withGeneralAnswer(state, formatClassification(result)))

	if state.UserIntent != nil && (state.UserIntent.WantsPrescription || state.UserIntent.WantsVendors) {
		state.NextAction = models.ActionPrescribe
	} else {
		state.NextAction = models.ActionCompleted
	}
	slog.Debug("ClassifyingNode.Execute: classified", "session_id", state.SessionID, "disease", result.DiseaseName, "next_action", state.NextAction)
	return nil
}

func (n *ClassifyingNode) fail(state *models.WorkflowState, err error) error {
	toolErr := &ToolFailureError{Tool: "classifier", Err: err}
	if state.CanRetry() {
		state.RetryCount++
		metrics.NodeRetries.WithLabelValues(models.NodeClassifying).Inc()
		slog.Debug("ClassifyingNode.Execute: retrying", "session_id", state.SessionID, "retry_count", state.RetryCount, "error", toolErr)
		state.AddMessage(models.RoleAssistant, "🔄 Having trouble analyzing the image, retrying...")
		state.NextAction = models.ActionRetry
		return nil
	}
	slog.Error("ClassifyingNode.Execute: retries exhausted", "session_id", state.SessionID, "error", toolErr)
	state.SetError("I couldn't analyze your plant photo. Please try again with a clearer picture of the affected leaves.")
	state.NextAction = models.ActionError
	return nil
}
