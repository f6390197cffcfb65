package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cropwise/plantclinic/internal/models"
)

// OrderBookingNode synthesizes an order record for the selected vendor and
// pauses for anything further the user wants.
type OrderBookingNode struct {
	now func() time.Time
}

// NewOrderBookingNode creates the order booking node.
func NewOrderBookingNode() *OrderBookingNode {
	return &OrderBookingNode{now: time.Now}
}

func (n *OrderBookingNode) Name() string { return models.NodeOrderBooking }

// Execute books the order with the selected vendor.
func (n *OrderBookingNode) Execute(ctx context.Context, state *models.WorkflowState) error {
	if state.SelectedVendor == nil {
		err := &MissingInputError{Node: models.NodeOrderBooking, Input: "a selected vendor"}
		slog.Error("OrderBookingNode.Execute: missing input", "session_id", state.SessionID, "error", err)
		state.SetError("Please pick a supplier from the list before I can place an order.")
		state.NextAction = models.ActionError
		return nil
	}

	var items []models.Treatment
	if state.PrescriptionData != nil {
		items = state.PrescriptionData.Treatments
	}
	order := &models.OrderDetails{
		OrderID:           orderID(state.SessionID, n.now()),
		Vendor:            state.SelectedVendor,
		Items:             items,
		TotalAmount:       state.SelectedVendor.TotalPrice,
		Status:            "confirmed",
		EstimatedDelivery: "3-5 days",
	}
	state.OrderDetails = order

	respond(state, formatOrder(order))
	state.RequiresUserInput = true
	state.NextAction = models.ActionAwaitFinalInput
	slog.Debug("OrderBookingNode.Execute: order booked", "session_id", state.SessionID, "order_id", order.OrderID, "vendor", order.Vendor.Name)
	return nil
}

// orderID derives a stable order identifier from the session and booking
// time.
func orderID(sessionID string, t time.Time) string {
	prefix := sessionID
	if len(prefix) > 8 {
		prefix = prefix[:8]
	}
	return fmt.Sprintf("ORD-%s-%d", prefix, t.UTC().Unix())
}
