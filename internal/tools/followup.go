package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/cropwise/plantclinic/internal/genai"
	"github.com/cropwise/plantclinic/internal/models"
)

var (
	restartKeywords = []string{"restart", "start over", "start again", "new plant", "different plant", "another plant", "new conversation"}
	overlayKeywords = []string{"overlay", "attention", "heatmap", "heat map", "highlight", "focus area", "which part"}
)

const followupSystemPrompt = `You are routing a follow-up message in an ongoing plant disease consultation.
Pick exactly one action for the farmer's message and respond with ONLY a JSON object:
{
  "action": "classify|prescribe|show_vendors|attention_overlay|restart|complete|direct_response",
  "response": "string",     // for direct_response: the answer to give the farmer, else ""
  "overlay_type": "string", // for attention_overlay: requested style, else ""
  "confidence": 0.0
}
Actions:
- classify: they want a (re-)diagnosis of their plant photo
- prescribe: they want treatment recommendations
- show_vendors: they want to see where to buy treatments
- attention_overlay: they want to see where the diagnosis focused on the image
- restart: they want to start over with a new plant or problem
- complete: they are saying goodbye or wrapping up
- direct_response: a question you can answer directly from the session facts`

var validFollowupActions = map[string]bool{
	models.FollowupActionClassify:         true,
	models.FollowupActionPrescribe:        true,
	models.FollowupActionShowVendors:      true,
	models.FollowupActionAttentionOverlay: true,
	models.FollowupActionRestart:          true,
	models.FollowupActionComplete:         true,
	models.FollowupActionDirectResponse:   true,
}

// LLMFollowupAnalyzer routes follow-up messages with an LLM and falls back
// to keyword heuristics when the model call or parse fails.
type LLMFollowupAnalyzer struct {
	llm genai.ClientInterface
}

// NewLLMFollowupAnalyzer creates a followup analyzer backed by the given client.
func NewLLMFollowupAnalyzer(llm genai.ClientInterface) *LLMFollowupAnalyzer {
	return &LLMFollowupAnalyzer{llm: llm}
}

// AnalyzeFollowup classifies the message into one followup action.
func (a *LLMFollowupAnalyzer) AnalyzeFollowup(ctx context.Context, fc FollowupContext) (*models.FollowupIntent, error) {
	intent, err := a.analyzeLLM(ctx, fc)
	if err != nil {
		slog.Debug("LLMFollowupAnalyzer.AnalyzeFollowup: falling back to keyword routing", "error", err)
		intent = FallbackFollowup(fc)
	}
	slog.Debug("LLMFollowupAnalyzer.AnalyzeFollowup: action chosen", "action", intent.Action, "confidence", intent.Confidence)
	return intent, nil
}

func (a *LLMFollowupAnalyzer) analyzeLLM(ctx context.Context, fc FollowupContext) (*models.FollowupIntent, error) {
	if a.llm == nil {
		return nil, fmt.Errorf("no LLM client configured")
	}
	raw, err := a.llm.Generate(ctx, followupSystemPrompt, followupUserPrompt(fc))
	if err != nil {
		return nil, fmt.Errorf("followup completion failed: %w", err)
	}
	obj := extractJSON(raw)
	if obj == "" {
		return nil, fmt.Errorf("no JSON object in followup response")
	}
	var intent models.FollowupIntent
	if err := json.Unmarshal([]byte(obj), &intent); err != nil {
		return nil, fmt.Errorf("failed to parse followup JSON: %w", err)
	}
	if !validFollowupActions[intent.Action] {
		return nil, fmt.Errorf("unknown followup action %q", intent.Action)
	}
	return &intent, nil
}

func followupUserPrompt(fc FollowupContext) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Farmer's message: %s\n\nSession facts:\n", fc.UserMessage)
	fmt.Fprintf(&b, "- diagnosis available: %t", fc.HasClassification)
	if fc.DiseaseName != "" {
		fmt.Fprintf(&b, " (%s)", fc.DiseaseName)
	}
	fmt.Fprintf(&b, "\n- prescription available: %t\n- vendor list shown: %t\n", fc.HasPrescription, fc.HasVendors)
	return b.String()
}

// FallbackFollowup is the keyword-based followup routing used when the LLM
// is unavailable.
func FallbackFollowup(fc FollowupContext) *models.FollowupIntent {
	msg := strings.ToLower(fc.UserMessage)
	switch {
	case containsAny(msg, restartKeywords):
		return &models.FollowupIntent{Action: models.FollowupActionRestart, Confidence: 0.6}
	case containsAny(msg, goodbyeKeywords):
		return &models.FollowupIntent{Action: models.FollowupActionComplete, Confidence: 0.6}
	case containsAny(msg, overlayKeywords):
		return &models.FollowupIntent{Action: models.FollowupActionAttentionOverlay, Confidence: 0.5}
	case containsAny(msg, vendorKeywords):
		return &models.FollowupIntent{Action: models.FollowupActionShowVendors, Confidence: 0.5}
	case containsAny(msg, prescriptionKeywords):
		return &models.FollowupIntent{Action: models.FollowupActionPrescribe, Confidence: 0.5}
	case containsAny(msg, classificationKeywords):
		return &models.FollowupIntent{Action: models.FollowupActionClassify, Confidence: 0.5}
	default:
		return &models.FollowupIntent{
			Action:     models.FollowupActionDirectResponse,
			Response:   "I can help with diagnosing your plant, recommending treatments, or finding suppliers. What would you like to do? 🌱",
			Confidence: 0.3,
		}
	}
}
