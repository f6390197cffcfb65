package workflow

import (
	"context"
	"log/slog"
	"strings"

	"github.com/cropwise/plantclinic/internal/models"
	"github.com/cropwise/plantclinic/internal/tools"
)

// CompletedNode is the happy-path terminal. It offers context-aware
// follow-up suggestions and marks the session complete only when the user
// actually said goodbye; otherwise the session stays open for more turns.
type CompletedNode struct {
	goodbye tools.GoodbyeDetector
}

// NewCompletedNode creates the completion node.
func NewCompletedNode(g tools.GoodbyeDetector) *CompletedNode {
	return &CompletedNode{goodbye: g}
}

func (n *CompletedNode) Name() string { return models.NodeCompleted }

// Execute closes out the run.
func (n *CompletedNode) Execute(ctx context.Context, state *models.WorkflowState) error {
	if n.goodbye != nil && n.goodbye.IsGoodbye(ctx, state.UserMessage) {
		state.MarkComplete("Happy to help! Wishing you a healthy harvest. 🌾 Goodbye!")
		slog.Debug("CompletedNode.Execute: session complete", "session_id", state.SessionID)
		return nil
	}

	suggestions := followupSuggestions(state)
	var b strings.Builder
	b.WriteString("✨ Anything else I can help with?")
	if len(suggestions) > 0 {
		b.WriteString(" You could:\n")
		for _, s := range suggestions {
			b.WriteString("- ")
			b.WriteString(s)
			b.WriteString("\n")
		}
	}
	respond(state, strings.TrimRight(b.String(), "\n"))
	slog.Debug("CompletedNode.Execute: run closed, session stays open", "session_id", state.SessionID, "suggestions", len(suggestions))
	return nil
}
