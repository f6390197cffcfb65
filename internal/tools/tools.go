// Package tools provides the narrow adapter interfaces the workflow nodes
// call out to: disease classification, prescription generation, vendor
// lookup, context extraction, intent analysis, and goodbye detection.
//
// LLM-backed implementations carry a pure-function fallback selected when
// the primary errors, so the workflow always gets an answer.
package tools

import (
	"context"
	"strings"

	"github.com/cropwise/plantclinic/internal/models"
)

// ClassifyInput is the classifier adapter input.
type ClassifyInput struct {
	ImageB64  string `json:"image_b64"`
	PlantType string `json:"plant_type,omitempty"`
	Location  string `json:"location,omitempty"`
	Season    string `json:"season,omitempty"`
}

// Classifier diagnoses a plant disease from a leaf image.
type Classifier interface {
	Classify(ctx context.Context, in ClassifyInput) (*models.ClassificationResult, error)
}

// PrescribeInput is the prescriber adapter input.
type PrescribeInput struct {
	DiseaseName string             `json:"disease_name"`
	PlantType   string             `json:"plant_type,omitempty"`
	Location    string             `json:"location,omitempty"`
	Season      string             `json:"season,omitempty"`
	Severity    string             `json:"severity,omitempty"`
	UserContext models.UserContext `json:"user_context"`
}

// Prescriber generates treatment recommendations for a diagnosed disease.
type Prescriber interface {
	Prescribe(ctx context.Context, in PrescribeInput) (*models.PrescriptionData, error)
}

// VendorInput is the vendor locator adapter input.
type VendorInput struct {
	Treatments  []models.Treatment `json:"treatments"`
	Location    string             `json:"location,omitempty"`
	Preferences models.UserContext `json:"preferences"`
}

// VendorLocator finds suppliers for recommended treatments.
type VendorLocator interface {
	FindVendors(ctx context.Context, in VendorInput) ([]models.Vendor, error)
}

// ContextExtractor infers growing-condition context from free text. The
// caller merges the result under the caller-precedence rule, so extractors
// only need to report what they found.
type ContextExtractor interface {
	Extract(ctx context.Context, userMessage string) (models.UserContext, error)
}

// IntentAnalyzer derives the one-time structured intent for a fresh
// conversation.
type IntentAnalyzer interface {
	Analyze(ctx context.Context, userMessage string) (*models.UserIntent, error)
}

// FollowupContext summarizes the session facts the followup analyzer needs.
type FollowupContext struct {
	UserMessage       string
	DiseaseName       string
	HasClassification bool
	HasPrescription   bool
	HasVendors        bool
}

// FollowupAnalyzer classifies a new message in an already-engaged session
// into one of the followup actions.
type FollowupAnalyzer interface {
	AnalyzeFollowup(ctx context.Context, fc FollowupContext) (*models.FollowupIntent, error)
}

// GoodbyeDetector reports whether a message signals the user wants to end
// the session. Implementations must not fail: LLM-backed detectors fall
// back to keyword matching on error.
type GoodbyeDetector interface {
	IsGoodbye(ctx context.Context, userMessage string) bool
}

// Toolset bundles the adapters a workflow run needs.
type Toolset struct {
	Classifier Classifier
	Prescriber Prescriber
	Vendors    VendorLocator
	Context    ContextExtractor
	Intent     IntentAnalyzer
	Followup   FollowupAnalyzer
	Goodbye    GoodbyeDetector
}

// containsAny reports whether the lowercase form of s contains any keyword.
func containsAny(s string, keywords []string) bool {
	s = strings.ToLower(s)
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}

// extractJSON pulls the outermost {...} object out of an LLM response that
// may carry extra prose around it. Returns "" if no object is present.
func extractJSON(text string) string {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start == -1 || end <= start {
		return ""
	}
	return text[start : end+1]
}
