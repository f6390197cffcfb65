package workflow

import (
	"context"
	"log/slog"

	"github.com/cropwise/plantclinic/internal/models"
	"github.com/cropwise/plantclinic/internal/tools"
)

const welcomeMessage = "👋 Welcome! I can diagnose plant diseases from a photo, recommend treatments, and help you find suppliers. Share a photo of the affected plant or tell me what's troubling it."

const requestImageMessage = "📸 Please share a clear photo of the affected leaves so I can diagnose the problem."

// InitialNode is the workflow entry point. For a fresh session it derives
// the one-time user intent, merges inferred context under caller precedence,
// and picks the first real step. Engaged sessions are handed straight to
// followup.
type InitialNode struct {
	intent           tools.IntentAnalyzer
	contextExtractor tools.ContextExtractor
}

// NewInitialNode creates the entry node.
func NewInitialNode(intent tools.IntentAnalyzer, ce tools.ContextExtractor) *InitialNode {
	return &InitialNode{intent: intent, contextExtractor: ce}
}

func (n *InitialNode) Name() string { return models.NodeInitial }

// Execute runs the fresh/continuing split and, for fresh sessions, the
// intent and context derivation.
func (n *InitialNode) Execute(ctx context.Context, state *models.WorkflowState) error {
	if isContinuing(state) {
		slog.Debug("InitialNode.Execute: continuing conversation, deferring to followup", "session_id", state.SessionID)
		state.NextAction = models.ActionFollowup
		return nil
	}

	if n.contextExtractor != nil {
		inferred, err := n.contextExtractor.Extract(ctx, state.UserMessage)
		if err != nil {
			// Inference is best-effort; the caller-supplied context stands.
			slog.Debug("InitialNode.Execute: context extraction skipped", "session_id", state.SessionID, "error", err)
		} else {
			state.UserContext.Merge(inferred)
		}
	}

	intent, err := n.intent.Analyze(ctx, state.UserMessage)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		slog.Debug("InitialNode.Execute: intent analysis failed, using keyword fallback", "session_id", state.SessionID, "error", err)
		intent = tools.FallbackIntent(state.UserMessage)
	}
	state.UserIntent = intent
	state.GeneralAnswer = intent.GeneralAnswer

	switch {
	case state.UserImage != "" && intent.WantsClassification:
		state.NextAction = models.ActionClassify

	case intent.WantsClassification:
		respond(state, withGeneralAnswer(state, requestImageMessage))
		state.RequiresUserInput = true
		state.NextAction = models.ActionRequestImage

	case intent.IsGeneralQuestion && !intent.WantsAnyTool():
		answer := state.GeneralAnswer
		state.GeneralAnswer = ""
		if answer == "" {
			answer = "I can best help with plant disease questions. Could you tell me more about your plant, or share a photo? 🌱"
		}
		respond(state, answer)
		state.NextAction = models.ActionCompleted

	default:
		respond(state, withGeneralAnswer(state, welcomeMessage))
		state.RequiresUserInput = true
		state.NextAction = models.ActionGeneralHelp
	}
	return nil
}

// isContinuing reports whether the session is already engaged: any prior
// result payload, more than the opening transcript entry, or an intent
// already derived.
func isContinuing(state *models.WorkflowState) bool {
	return state.HasPriorResults() || state.TranscriptLen() > 1 || state.UserIntent != nil
}
