package workflow

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/cropwise/plantclinic/internal/models"
)

// ErrorNode is the failure terminal: it surfaces the stored error message
// and unconditionally marks the session complete.
type ErrorNode struct{}

// NewErrorNode creates the error terminal node.
func NewErrorNode() *ErrorNode { return &ErrorNode{} }

func (n *ErrorNode) Name() string { return models.NodeError }

// Execute formats the stored error for the user.
func (n *ErrorNode) Execute(ctx context.Context, state *models.WorkflowState) error {
	msg := state.ErrorMessage
	if msg == "" {
		msg = "an unexpected error occurred"
	}
	slog.Error("ErrorNode.Execute: workflow failed", "session_id", state.SessionID, "error_message", msg)
	state.MarkComplete(fmt.Sprintf("❌ %s\n\nPlease try again, or start over with a new photo.", msg))
	return nil
}
