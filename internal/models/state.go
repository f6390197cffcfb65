// Package models defines the core data structures for PlantClinic.
//
// It includes the per-session WorkflowState record threaded through every
// workflow node, the conversation transcript, and the structured payloads
// produced by the diagnosis tools.
package models

import "time"

// Node names for the diagnosis workflow. The engine's node and router maps
// are keyed by these values; CurrentNode/PreviousNode hold them.
const (
	NodeInitial      = "initial"
	NodeClassifying  = "classifying"
	NodePrescribing  = "prescribing"
	NodeVendorQuery  = "vendor_query"
	NodeShowVendors  = "show_vendors"
	NodeOrderBooking = "order_booking"
	NodeFollowup     = "followup"
	NodeCompleted    = "completed"
	NodeError        = "error"
)

// Router hints produced by nodes via WorkflowState.NextAction.
const (
	ActionClassify             = "classify"
	ActionClassifyFirst        = "classify_first"
	ActionComplete             = "complete"
	ActionCompleted            = "completed"
	ActionError                = "error"
	ActionGeneralHelp          = "general_help"
	ActionOrder                = "order"
	ActionPrescribe            = "prescribe"
	ActionPrescribeFirst       = "prescribe_first"
	ActionRequestImage         = "request_image"
	ActionRestart              = "restart"
	ActionRetry                = "retry"
	ActionShowVendors          = "show_vendors"
	ActionVendorQuery          = "vendor_query"
	ActionAwaitFinalInput      = "await_final_input"
	ActionAwaitUserInput       = "await_user_input"
	ActionAwaitVendorResponse  = "await_vendor_response"
	ActionAwaitVendorSelection = "await_vendor_selection"
	ActionFollowup             = "followup"
)

// MaxRetries is the per-node retry ceiling: a node may execute at most
// MaxRetries+1 times for one logical attempt before failing fatally.
const MaxRetries = 2

// Message roles used in the conversation transcript.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is a single transcript entry. The transcript is append-only:
// entries are never removed or reordered.
type Message struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
	Node      string    `json:"node,omitempty"`
}

// UserContext carries growing-condition facts about the user's plant.
// Fields supplied by the caller take precedence over values inferred from
// free text; inference only fills empty fields.
type UserContext struct {
	PlantType   string `json:"plant_type,omitempty"`
	Location    string `json:"location,omitempty"`
	Season      string `json:"season,omitempty"`
	GrowthStage string `json:"growth_stage,omitempty"`
}

// Merge fills empty fields of c from other without overwriting set ones.
func (c *UserContext) Merge(other UserContext) {
	if c.PlantType == "" {
		c.PlantType = other.PlantType
	}
	if c.Location == "" {
		c.Location = other.Location
	}
	if c.Season == "" {
		c.Season = other.Season
	}
	if c.GrowthStage == "" {
		c.GrowthStage = other.GrowthStage
	}
}

// Override copies every non-empty field of other into c, overwriting what
// is there. Used for caller-supplied context, which always wins over
// inferred values.
func (c *UserContext) Override(other UserContext) {
	if other.PlantType != "" {
		c.PlantType = other.PlantType
	}
	if other.Location != "" {
		c.Location = other.Location
	}
	if other.Season != "" {
		c.Season = other.Season
	}
	if other.GrowthStage != "" {
		c.GrowthStage = other.GrowthStage
	}
}

// UserIntent holds the structured intent derived once per fresh
// conversation by the intent analyzer.
type UserIntent struct {
	WantsClassification bool   `json:"wants_classification"`
	WantsPrescription   bool   `json:"wants_prescription"`
	WantsVendors        bool   `json:"wants_vendors"`
	WantsFullWorkflow   bool   `json:"wants_full_workflow"`
	IsGeneralQuestion   bool   `json:"is_general_question"`
	GeneralAnswer       string `json:"general_answer,omitempty"`
}

// WantsAnyTool reports whether any specialized tool was requested.
func (i UserIntent) WantsAnyTool() bool {
	return i.WantsClassification || i.WantsPrescription || i.WantsVendors
}

// WorkflowState is the single mutable record threaded through every node of
// a session's workflow run. One in-memory instance exists per turn and is
// mutated strictly sequentially; the session manager serializes access per
// session id.
type WorkflowState struct {
	SessionID string `json:"session_id"`

	CurrentNode  string `json:"current_node"`
	PreviousNode string `json:"previous_node,omitempty"`
	NextAction   string `json:"next_action,omitempty"`

	IsComplete        bool `json:"is_complete"`
	RequiresUserInput bool `json:"requires_user_input"`

	UserMessage string      `json:"user_message"`
	UserImage   string      `json:"user_image,omitempty"` // base64; sticky across turns
	UserContext UserContext `json:"user_context"`
	UserIntent  *UserIntent `json:"user_intent,omitempty"`

	ClassificationResults *ClassificationResult `json:"classification_results,omitempty"`
	PrescriptionData      *PrescriptionData     `json:"prescription_data,omitempty"`
	VendorOptions         []Vendor              `json:"vendor_options,omitempty"`
	SelectedVendor        *Vendor               `json:"selected_vendor,omitempty"`
	OrderDetails          *OrderDetails         `json:"order_details,omitempty"`

	// GeneralAnswer holds agronomy advice produced by the intent analyzer
	// for hybrid requests; nodes append it to their outgoing messages.
	GeneralAnswer string `json:"general_answer,omitempty"`

	Messages []Message `json:"messages"`

	// AssistantResponse is the most recent assistant utterance, kept
	// outside Messages so streaming never resends the transcript.
	AssistantResponse string `json:"assistant_response,omitempty"`

	ErrorMessage string `json:"error_message,omitempty"`
	RetryCount   int    `json:"retry_count"`

	WorkflowStartTime time.Time `json:"workflow_start_time"`
	LastUpdateTime    time.Time `json:"last_update_time"`
}

// NewWorkflowState creates the defaulted state for a fresh session and
// appends the first user message to the transcript.
func NewWorkflowState(sessionID, userMessage, userImage string, userCtx UserContext) *WorkflowState {
	now := time.Now().UTC()
	s := &WorkflowState{
		SessionID:         sessionID,
		CurrentNode:       NodeInitial,
		UserMessage:       userMessage,
		UserImage:         userImage,
		UserContext:       userCtx,
		Messages:          []Message{},
		WorkflowStartTime: now,
		LastUpdateTime:    now,
	}
	s.AddMessage(RoleUser, userMessage)
	return s
}

// AddMessage appends a transcript entry tagged with the active node.
func (s *WorkflowState) AddMessage(role, content string) {
	s.Messages = append(s.Messages, Message{
		Role:      role,
		Content:   content,
		Timestamp: time.Now().UTC(),
		Node:      s.CurrentNode,
	})
	s.LastUpdateTime = time.Now().UTC()
}

// SetError records a failure on the state without touching the transcript.
func (s *WorkflowState) SetError(msg string) {
	s.ErrorMessage = msg
	s.LastUpdateTime = time.Now().UTC()
}

// CanRetry reports whether the active node may attempt another retry.
func (s *WorkflowState) CanRetry() bool {
	return s.RetryCount < MaxRetries
}

// MarkComplete flags the session complete, optionally appending a final
// assistant message.
func (s *WorkflowState) MarkComplete(message string) {
	if message != "" {
		s.AssistantResponse = message
		s.AddMessage(RoleAssistant, message)
	}
	s.IsComplete = true
}

// ResetResults clears accumulated result payloads and the sticky image so a
// restarted conversation begins fresh. The transcript is kept: it is
// append-only for the life of the session.
func (s *WorkflowState) ResetResults() {
	s.ClassificationResults = nil
	s.PrescriptionData = nil
	s.VendorOptions = nil
	s.SelectedVendor = nil
	s.OrderDetails = nil
	s.UserImage = ""
	s.UserIntent = nil
	s.GeneralAnswer = ""
	s.ErrorMessage = ""
	s.RetryCount = 0
	s.IsComplete = false
	s.LastUpdateTime = time.Now().UTC()
}

// TranscriptLen returns the number of transcript entries.
func (s *WorkflowState) TranscriptLen() int {
	return len(s.Messages)
}

// HasPriorResults reports whether any tool has already produced output for
// this session. Used by the initial node's continuing-conversation check.
func (s *WorkflowState) HasPriorResults() bool {
	return s.ClassificationResults != nil || s.PrescriptionData != nil || len(s.VendorOptions) > 0
}
