// Package workflow implements the diagnosis state machine: one Node per
// workflow state, a pure router function per node, and the Engine that
// drives node→router→node until a terminal state or a pause for user input.
package workflow

import (
	"context"

	"github.com/cropwise/plantclinic/internal/models"
)

// Node is one workflow state handler. Execute mutates only its documented
// state fields and converts adapter failures into state bookkeeping
// (error_message, next_action, retry_count); it returns an error only for
// conditions the run cannot absorb, such as context cancellation.
type Node interface {
	Name() string
	Execute(ctx context.Context, state *models.WorkflowState) error
}

// Router maps a node's post-execution state to the next node name, reading
// state.NextAction. routeEnd stops the run.
type Router func(state *models.WorkflowState) string

// routeEnd is the terminal sentinel returned by routers of terminal nodes.
const routeEnd = "end"

// respond records msg as the latest assistant utterance and appends it to
// the transcript.
func respond(state *models.WorkflowState, msg string) {
	state.AssistantResponse = msg
	state.AddMessage(models.RoleAssistant, msg)
}

// withGeneralAnswer appends the pending general-question answer to msg, if
// one was derived at intent time, and consumes it so it is delivered once.
func withGeneralAnswer(state *models.WorkflowState, msg string) string {
	if state.GeneralAnswer == "" {
		return msg
	}
	out := msg + "\n\n🌱 " + state.GeneralAnswer
	state.GeneralAnswer = ""
	return out
}
