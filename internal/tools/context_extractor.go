package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/cropwise/plantclinic/internal/genai"
	"github.com/cropwise/plantclinic/internal/models"
)

const contextSystemPrompt = `Extract growing-condition facts from a farmer's message about their plant.
Respond with ONLY a JSON object; use "" for anything not mentioned:
{
  "plant_type": "string",   // e.g. "tomato", "apple tree"
  "location": "string",     // region, state, or city
  "season": "string",       // e.g. "summer", "monsoon"
  "growth_stage": "string"  // e.g. "seedling", "flowering", "fruiting"
}`

// LLMContextExtractor infers UserContext fields from free text. Extraction
// failures are not fatal: callers get an empty context and proceed.
type LLMContextExtractor struct {
	llm genai.ClientInterface
}

// NewLLMContextExtractor creates a context extractor backed by the given client.
func NewLLMContextExtractor(llm genai.ClientInterface) *LLMContextExtractor {
	return &LLMContextExtractor{llm: llm}
}

// Extract infers growing-condition context from the message.
func (e *LLMContextExtractor) Extract(ctx context.Context, userMessage string) (models.UserContext, error) {
	if e.llm == nil {
		return models.UserContext{}, fmt.Errorf("no LLM client configured")
	}
	raw, err := e.llm.Generate(ctx, contextSystemPrompt, userMessage)
	if err != nil {
		return models.UserContext{}, fmt.Errorf("context extraction failed: %w", err)
	}
	obj := extractJSON(raw)
	if obj == "" {
		return models.UserContext{}, fmt.Errorf("no JSON object in context response")
	}
	var uc models.UserContext
	if err := json.Unmarshal([]byte(obj), &uc); err != nil {
		return models.UserContext{}, fmt.Errorf("failed to parse context JSON: %w", err)
	}
	slog.Debug("LLMContextExtractor.Extract: context inferred",
		"plant_type", uc.PlantType, "location", uc.Location, "season", uc.Season)
	return uc, nil
}
