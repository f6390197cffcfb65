package workflow

import (
	"context"
	"log/slog"

	"github.com/cropwise/plantclinic/internal/models"
)

const vendorQueryMessage = "🛒 Would you like me to show you suppliers where you can buy these treatments? (yes/no)"

// VendorQueryNode asks the yes/no vendor question and pauses. The next
// turn re-enters here; the user's free-text reply decides whether to show
// vendors, finish up, or fall through to followup.
type VendorQueryNode struct{}

// NewVendorQueryNode creates the vendor-question node.
func NewVendorQueryNode() *VendorQueryNode { return &VendorQueryNode{} }

func (n *VendorQueryNode) Name() string { return models.NodeVendorQuery }

// Execute asks on first entry and inspects the reply on re-entry.
func (n *VendorQueryNode) Execute(ctx context.Context, state *models.WorkflowState) error {
	if state.NextAction != models.ActionAwaitVendorResponse {
		respond(state, vendorQueryMessage)
		state.RequiresUserInput = true
		state.NextAction = models.ActionAwaitVendorResponse
		return nil
	}

	// Re-entry with the user's reply.
	switch {
	case hasWord(state.UserMessage, affirmativeWords):
		state.NextAction = models.ActionShowVendors
	case hasWord(state.UserMessage, negativeWords):
		respond(state, "No problem! You have the treatment plan — wishing your plant a quick recovery. 🌱")
		state.NextAction = models.ActionComplete
	default:
		slog.Debug("VendorQueryNode.Execute: unclear reply, deferring to followup", "session_id", state.SessionID)
		state.NextAction = models.ActionFollowup
	}
	return nil
}
