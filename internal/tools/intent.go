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

// Keyword sets backing the rule-based intent fallback.
var (
	classificationKeywords = []string{"analyze", "detect", "identify", "classify", "disease", "what", "wrong", "issue", "problem"}
	prescriptionKeywords   = []string{"treatment", "cure", "fix", "help", "recommend", "prescription", "medicine", "spray"}
	vendorKeywords         = []string{"buy", "purchase", "order", "vendor", "shop", "price", "cost"}
	fullWorkflowKeywords   = []string{"complete", "full", "everything", "all", "comprehensive"}
)

const intentSystemPrompt = `You are an intent analyzer for a plant disease assistance service.
Given a farmer's message, decide which services they want and answer any
general agronomy question they asked. Respond with ONLY a JSON object:
{
  "wants_classification": bool,  // diagnose a disease from their plant photo
  "wants_prescription": bool,    // treatment recommendations
  "wants_vendors": bool,         // where to buy treatments
  "wants_full_workflow": bool,   // the complete diagnose-treat-buy flow
  "is_general_question": bool,   // a general agronomy question is present
  "general_answer": "string"     // concise answer to the general question, else ""
}`

// LLMIntentAnalyzer derives UserIntent with an LLM and falls back to keyword
// matching when the model call or JSON parse fails.
type LLMIntentAnalyzer struct {
	llm genai.ClientInterface
}

// NewLLMIntentAnalyzer creates an intent analyzer backed by the given client.
func NewLLMIntentAnalyzer(llm genai.ClientInterface) *LLMIntentAnalyzer {
	return &LLMIntentAnalyzer{llm: llm}
}

// Analyze derives the structured intent for a fresh conversation.
func (a *LLMIntentAnalyzer) Analyze(ctx context.Context, userMessage string) (*models.UserIntent, error) {
	intent, err := a.analyzeLLM(ctx, userMessage)
	if err != nil {
		slog.Debug("LLMIntentAnalyzer.Analyze: falling back to keyword analysis", "error", err)
		intent = FallbackIntent(userMessage)
	}
	applyIntentDependencies(intent)
	slog.Debug("LLMIntentAnalyzer.Analyze: intent derived",
		"wants_classification", intent.WantsClassification,
		"wants_prescription", intent.WantsPrescription,
		"wants_vendors", intent.WantsVendors,
		"is_general_question", intent.IsGeneralQuestion)
	return intent, nil
}

func (a *LLMIntentAnalyzer) analyzeLLM(ctx context.Context, userMessage string) (*models.UserIntent, error) {
	if a.llm == nil {
		return nil, fmt.Errorf("no LLM client configured")
	}
	raw, err := a.llm.Generate(ctx, intentSystemPrompt, userMessage)
	if err != nil {
		return nil, fmt.Errorf("intent completion failed: %w", err)
	}
	obj := extractJSON(raw)
	if obj == "" {
		return nil, fmt.Errorf("no JSON object in intent response")
	}
	var intent models.UserIntent
	if err := json.Unmarshal([]byte(obj), &intent); err != nil {
		return nil, fmt.Errorf("failed to parse intent JSON: %w", err)
	}
	return &intent, nil
}

// FallbackIntent is the keyword-based intent analysis used when the LLM is
// unavailable. Exported so the followup path can reuse it in tests.
func FallbackIntent(userMessage string) *models.UserIntent {
	msg := strings.ToLower(userMessage)
	intent := &models.UserIntent{
		WantsClassification: containsAny(msg, classificationKeywords),
		WantsPrescription:   containsAny(msg, prescriptionKeywords),
		WantsVendors:        containsAny(msg, vendorKeywords),
		WantsFullWorkflow:   containsAny(msg, fullWorkflowKeywords),
	}
	if !intent.WantsAnyTool() && !intent.WantsFullWorkflow {
		intent.IsGeneralQuestion = true
	}
	return intent
}

// applyIntentDependencies enforces the workflow ordering implications:
// prescriptions need a diagnosis, vendors need a prescription, and the full
// workflow needs everything.
func applyIntentDependencies(intent *models.UserIntent) {
	if intent.WantsFullWorkflow {
		intent.WantsClassification = true
		intent.WantsPrescription = true
		intent.WantsVendors = true
	}
	if intent.WantsVendors {
		intent.WantsPrescription = true
	}
	if intent.WantsPrescription {
		intent.WantsClassification = true
	}
}
