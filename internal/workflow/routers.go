package workflow

import "github.com/cropwise/plantclinic/internal/models"

// routerTable builds the per-node routing functions. Every router is total:
// unrecognized actions take the explicit fallback edge, so the engine always
// has a valid next node.
func routerTable() map[string]Router {
	return map[string]Router{
		models.NodeInitial:      routeInitial,
		models.NodeClassifying:  routeClassifying,
		models.NodePrescribing:  routePrescribing,
		models.NodeVendorQuery:  routeVendorQuery,
		models.NodeShowVendors:  routeShowVendors,
		models.NodeOrderBooking: routeOrderBooking,
		models.NodeFollowup:     routeFollowup,
		models.NodeCompleted:    routeTerminal,
		models.NodeError:        routeTerminal,
	}
}

func routeInitial(s *models.WorkflowState) string {
	switch s.NextAction {
	case models.ActionClassify:
		return models.NodeClassifying
	case models.ActionRequestImage, models.ActionGeneralHelp, models.ActionFollowup:
		return models.NodeFollowup
	case models.ActionError:
		return models.NodeError
	default:
		return models.NodeCompleted
	}
}

func routeClassifying(s *models.WorkflowState) string {
	switch s.NextAction {
	case models.ActionPrescribe:
		return models.NodePrescribing
	case models.ActionCompleted:
		return models.NodeCompleted
	case models.ActionRetry:
		return models.NodeClassifying
	case models.ActionError:
		return models.NodeError
	default:
		return models.NodeFollowup
	}
}

func routePrescribing(s *models.WorkflowState) string {
	switch s.NextAction {
	case models.ActionVendorQuery:
		return models.NodeVendorQuery
	case models.ActionComplete:
		return models.NodeCompleted
	case models.ActionRetry:
		return models.NodePrescribing
	case models.ActionError:
		return models.NodeError
	default:
		return models.NodeFollowup
	}
}

func routeVendorQuery(s *models.WorkflowState) string {
	switch s.NextAction {
	case models.ActionAwaitVendorResponse:
		// Pause edge: the next turn re-enters here with the user's reply.
		return models.NodeVendorQuery
	case models.ActionShowVendors:
		return models.NodeShowVendors
	case models.ActionComplete:
		return models.NodeCompleted
	case models.ActionError:
		return models.NodeError
	default:
		return models.NodeFollowup
	}
}

func routeShowVendors(s *models.WorkflowState) string {
	switch s.NextAction {
	case models.ActionAwaitVendorSelection:
		// The selection reply arrives as a followup message.
		return models.NodeFollowup
	case models.ActionOrder:
		if s.SelectedVendor != nil {
			return models.NodeOrderBooking
		}
		return models.NodeFollowup
	case models.ActionError:
		return models.NodeError
	default:
		return models.NodeCompleted
	}
}

func routeOrderBooking(s *models.WorkflowState) string {
	switch s.NextAction {
	case models.ActionAwaitFinalInput:
		return models.NodeFollowup
	case models.ActionError:
		return models.NodeError
	default:
		return models.NodeCompleted
	}
}

func routeFollowup(s *models.WorkflowState) string {
	switch s.NextAction {
	case models.ActionRestart:
		return models.NodeInitial
	case models.ActionClassify:
		return models.NodeClassifying
	case models.ActionPrescribe:
		return models.NodePrescribing
	case models.ActionShowVendors:
		return models.NodeShowVendors
	case models.ActionComplete:
		return models.NodeCompleted
	case models.ActionError:
		return models.NodeError
	case models.ActionRequestImage, models.ActionClassifyFirst, models.ActionPrescribeFirst, models.ActionGeneralHelp:
		return models.NodeFollowup
	default:
		return models.NodeCompleted
	}
}

func routeTerminal(s *models.WorkflowState) string {
	return routeEnd
}
