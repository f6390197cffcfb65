package workflow

import (
	"context"
	"log/slog"

	"github.com/cropwise/plantclinic/internal/models"
	"github.com/cropwise/plantclinic/internal/tools"
)

const vendorFallbackMessage = "I couldn't fetch supplier options right now. Your local agricultural supply store should carry these treatments — take the treatment plan along. 🌱"

// ShowVendorsNode fetches and presents supplier options for the treatment
// plan. Lookup failure is non-fatal: it degrades to a local-suppliers
// message and completes. A reply selecting a vendor books the order.
type ShowVendorsNode struct {
	vendors tools.VendorLocator
}

// NewShowVendorsNode creates the vendor listing node.
func NewShowVendorsNode(v tools.VendorLocator) *ShowVendorsNode {
	return &ShowVendorsNode{vendors: v}
}

func (n *ShowVendorsNode) Name() string { return models.NodeShowVendors }

// Execute lists vendors, or resolves a selection from an already-shown list.
func (n *ShowVendorsNode) Execute(ctx context.Context, state *models.WorkflowState) error {
	if len(state.VendorOptions) > 0 {
		if picked := parseVendorSelection(state.UserMessage, state.VendorOptions); picked != nil {
			state.SelectedVendor = picked
			state.NextAction = models.ActionOrder
			slog.Debug("ShowVendorsNode.Execute: vendor selected", "session_id", state.SessionID, "vendor", picked.Name)
			return nil
		}
		// List already shown, no selection in the message: re-prompt.
		respond(state, formatVendors(state.VendorOptions))
		state.RequiresUserInput = true
		state.NextAction = models.ActionAwaitVendorSelection
		return nil
	}

	if state.PrescriptionData == nil {
		err := &MissingInputError{Node: models.NodeShowVendors, Input: "a treatment plan"}
		slog.Error("ShowVendorsNode.Execute: missing input", "session_id", state.SessionID, "error", err)
		state.SetError("I need to prepare a treatment plan before finding suppliers.")
		state.NextAction = models.ActionError
		return nil
	}

	vendors, err := n.vendors.FindVendors(ctx, tools.VendorInput{
		Treatments:  state.PrescriptionData.Treatments,
		Location:    state.UserContext.Location,
		Preferences: state.UserContext,
	})
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		// Non-fatal degradation, not an Error transition.
		slog.Debug("ShowVendorsNode.Execute: vendor lookup failed, degrading", "session_id", state.SessionID, "error", err)
		respond(state, vendorFallbackMessage)
		state.NextAction = models.ActionComplete
		return nil
	}
	if len(vendors) == 0 {
		respond(state, vendorFallbackMessage)
		state.NextAction = models.ActionComplete
		return nil
	}

	state.VendorOptions = vendors
	respond(state, formatVendors(vendors))
	state.RequiresUserInput = true
	state.NextAction = models.ActionAwaitVendorSelection
	slog.Debug("ShowVendorsNode.Execute: vendors listed", "session_id", state.SessionID, "count", len(vendors))
	return nil
}
