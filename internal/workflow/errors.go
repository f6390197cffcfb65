package workflow

import "fmt"

// MissingInputError reports a required precondition absent from the state,
// such as classification without an image. Never retried.
type MissingInputError struct {
	Node  string
	Input string
}

func (e *MissingInputError) Error() string {
	return fmt.Sprintf("node %s requires %s", e.Node, e.Input)
}

// ToolFailureError reports an adapter failure. Retryable up to the per-node
// ceiling, then fatal.
type ToolFailureError struct {
	Tool string
	Err  error
}

func (e *ToolFailureError) Error() string {
	return fmt.Sprintf("tool %s failed: %v", e.Tool, e.Err)
}

func (e *ToolFailureError) Unwrap() error { return e.Err }

// EngineLoopError reports that a run exceeded the step cap. Always fatal and
// signals a routing defect, not a user-facing failure.
type EngineLoopError struct {
	SessionID string
	Steps     int
}

func (e *EngineLoopError) Error() string {
	return fmt.Sprintf("workflow for session %s exceeded %d steps without reaching a terminal node", e.SessionID, e.Steps)
}
