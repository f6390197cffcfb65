package workflow

import (
	"context"
	"log/slog"

	"github.com/cropwise/plantclinic/internal/models"
	"github.com/cropwise/plantclinic/internal/tools"
)

const stillHereMessage = "I'm still here to help! Ask me about your plant's diagnosis, treatments, suppliers — or say goodbye when you're all set. 🌱"

// FollowupNode is the re-entry point for every already-engaged session. It
// classifies the new message into a followup action, checks that action's
// prerequisites, and either answers in place or routes to the right node.
type FollowupNode struct {
	analyzer tools.FollowupAnalyzer
	goodbye  tools.GoodbyeDetector
}

// NewFollowupNode creates the followup node.
func NewFollowupNode(a tools.FollowupAnalyzer, g tools.GoodbyeDetector) *FollowupNode {
	return &FollowupNode{analyzer: a, goodbye: g}
}

func (n *FollowupNode) Name() string { return models.NodeFollowup }

// Execute routes the new message.
func (n *FollowupNode) Execute(ctx context.Context, state *models.WorkflowState) error {
	// A vendor selection reply takes priority over intent analysis.
	if len(state.VendorOptions) > 0 && state.SelectedVendor == nil {
		if parseVendorSelection(state.UserMessage, state.VendorOptions) != nil {
			state.NextAction = models.ActionShowVendors
			return nil
		}
	}
	// A fresh photo on an undiagnosed session means: classify it.
	if state.UserImage != "" && state.ClassificationResults == nil {
		slog.Debug("FollowupNode.Execute: image present without diagnosis, classifying", "session_id", state.SessionID)
		state.NextAction = models.ActionClassify
		return nil
	}

	intent, err := n.analyzer.AnalyzeFollowup(ctx, tools.FollowupContext{
		UserMessage:       state.UserMessage,
		DiseaseName:       diseaseName(state),
		HasClassification: state.ClassificationResults != nil,
		HasPrescription:   state.PrescriptionData != nil,
		HasVendors:        len(state.VendorOptions) > 0,
	})
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		slog.Debug("FollowupNode.Execute: analyzer failed, using keyword fallback", "session_id", state.SessionID, "error", err)
		intent = tools.FallbackFollowup(tools.FollowupContext{UserMessage: state.UserMessage})
	}
	slog.Debug("FollowupNode.Execute: action resolved", "session_id", state.SessionID, "action", intent.Action)

	switch intent.Action {
	case models.FollowupActionClassify:
		n.handleClassify(state)
	case models.FollowupActionPrescribe:
		n.handlePrescribe(state)
	case models.FollowupActionShowVendors:
		n.handleShowVendors(state)
	case models.FollowupActionAttentionOverlay:
		n.handleOverlay(state)
	case models.FollowupActionRestart:
		n.handleRestart(state)
	case models.FollowupActionComplete:
		n.handleComplete(ctx, state)
	default:
		n.handleDirectResponse(state, intent)
	}
	return nil
}

func (n *FollowupNode) handleClassify(state *models.WorkflowState) {
	if state.UserImage == "" {
		respond(state, requestImageMessage)
		state.RequiresUserInput = true
		state.NextAction = models.ActionRequestImage
		return
	}
	state.NextAction = models.ActionClassify
}

func (n *FollowupNode) handlePrescribe(state *models.WorkflowState) {
	// Dosage questions are answered from the stored plan without
	// re-running the prescriber.
	if state.PrescriptionData != nil && hasWord(state.UserMessage, dosageWords) {
		respond(state, dosageInfo(state.PrescriptionData))
		state.RequiresUserInput = true
		state.NextAction = models.ActionGeneralHelp
		return
	}
	if state.ClassificationResults == nil {
		respond(state, "I need to diagnose the disease first. "+requestImageMessage)
		state.RequiresUserInput = true
		state.NextAction = models.ActionClassifyFirst
		return
	}
	state.NextAction = models.ActionPrescribe
}

func (n *FollowupNode) handleShowVendors(state *models.WorkflowState) {
	if state.PrescriptionData == nil {
		respond(state, "Let's get you a treatment plan first, then I can find suppliers. Ask me for treatment recommendations — or share a photo if we haven't diagnosed your plant yet. 💊")
		state.RequiresUserInput = true
		state.NextAction = models.ActionPrescribeFirst
		return
	}
	state.NextAction = models.ActionShowVendors
}

func (n *FollowupNode) handleOverlay(state *models.WorkflowState) {
	if state.ClassificationResults != nil && state.ClassificationResults.AttentionOverlay != "" {
		respond(state, "🔬 I've highlighted the leaf areas that drove the diagnosis — open your session's diagnosis details to view the attention overlay.")
	} else {
		respond(state, "There's no attention overlay available yet. Share a photo for a diagnosis and I can show you which areas it focuses on. 📸")
	}
	state.RequiresUserInput = true
	state.NextAction = models.ActionGeneralHelp
}

func (n *FollowupNode) handleRestart(state *models.WorkflowState) {
	state.ResetResults()
	respond(state, "🔄 Starting fresh! Tell me about the plant problem you'd like help with, and share a photo if you have one.")
	state.RequiresUserInput = true
	state.NextAction = models.ActionRestart
}

func (n *FollowupNode) handleComplete(ctx context.Context, state *models.WorkflowState) {
	if n.goodbye != nil && !n.goodbye.IsGoodbye(ctx, state.UserMessage) {
		// No goodbye signal: stay open rather than terminating.
		respond(state, stillHereMessage)
		state.RequiresUserInput = true
		state.NextAction = models.ActionGeneralHelp
		return
	}
	state.NextAction = models.ActionComplete
}

func (n *FollowupNode) handleDirectResponse(state *models.WorkflowState, intent *models.FollowupIntent) {
	resp := intent.Response
	if resp == "" {
		resp = stillHereMessage
	}
	respond(state, resp)
	state.RequiresUserInput = true
	state.NextAction = models.ActionGeneralHelp
}

func diseaseName(state *models.WorkflowState) string {
	if state.ClassificationResults == nil {
		return ""
	}
	return state.ClassificationResults.DiseaseName
}
