// Package models defines API request/response structures for PlantClinic.
package models

// ChatRequest is the body of POST /api/v1/chat and /api/v1/chat-stream.
type ChatRequest struct {
	SessionID string       `json:"session_id,omitempty"`
	Message   string       `json:"message"`
	ImageB64  string       `json:"image_b64,omitempty"`
	Context   *UserContext `json:"context,omitempty"`
}

// ChatResponse is the synchronous result of a full workflow run.
type ChatResponse struct {
	Success               bool                  `json:"success"`
	SessionID             string                `json:"session_id"`
	Messages              []Message             `json:"messages,omitempty"`
	State                 string                `json:"state,omitempty"`
	IsComplete            bool                  `json:"is_complete"`
	RequiresUserInput     bool                  `json:"requires_user_input"`
	AssistantResponse     string                `json:"assistant_response,omitempty"`
	ClassificationResults *ClassificationResult `json:"classification_results,omitempty"`
	PrescriptionData      *PrescriptionData     `json:"prescription_data,omitempty"`
	VendorOptions         []Vendor              `json:"vendor_options,omitempty"`
	OrderDetails          *OrderDetails         `json:"order_details,omitempty"`
	Error                 string                `json:"error,omitempty"`
}

// Stream event types emitted by chat-stream.
const (
	StreamEventSessionStart = "session_start"
	StreamEventStateUpdate  = "state_update"
	StreamEventError        = "error"
	StreamEventDone         = "done"
)

// StreamEvent is one SSE payload of the chat-stream endpoint. Data carries
// the per-step state delta for state_update events.
type StreamEvent struct {
	Type      string         `json:"type"`
	SessionID string         `json:"session_id"`
	Data      map[string]any `json:"data,omitempty"`
	Error     string         `json:"error,omitempty"`
}

// SessionInfo is the inspection projection returned by GET /session/{id}.
type SessionInfo struct {
	SessionID         string `json:"session_id"`
	CurrentNode       string `json:"current_node"`
	PreviousNode      string `json:"previous_node,omitempty"`
	IsComplete        bool   `json:"is_complete"`
	RequiresUserInput bool   `json:"requires_user_input"`
	MessageCount      int    `json:"message_count"`
	HasClassification bool   `json:"has_classification"`
	HasPrescription   bool   `json:"has_prescription"`
	StartedAt         string `json:"started_at"`
	LastUpdatedAt     string `json:"last_updated_at"`
}

// StatsResponse summarizes the live session population.
type StatsResponse struct {
	ActiveSessions   int            `json:"active_sessions"`
	NodeDistribution map[string]int `json:"node_distribution"`
}

// API response status values.
const (
	APIStatusOK    = "ok"
	APIStatusError = "error"
)

// APIResponse is the standard envelope for non-chat endpoints.
type APIResponse struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Result  any    `json:"result,omitempty"`
}

// Success creates a successful API response with optional result data.
func Success(result any) APIResponse {
	return APIResponse{Status: APIStatusOK, Result: result}
}

// SuccessWithMessage creates a successful API response with a message.
func SuccessWithMessage(message string, result any) APIResponse {
	return APIResponse{Status: APIStatusOK, Message: message, Result: result}
}

// Error creates an error API response with a message.
func Error(message string) APIResponse {
	return APIResponse{Status: APIStatusError, Message: message}
}
