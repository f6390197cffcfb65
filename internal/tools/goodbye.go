package tools

import (
	"context"
	"log/slog"
	"strings"

	"github.com/cropwise/plantclinic/internal/genai"
)

var goodbyeKeywords = []string{
	"thank you", "thanks", "bye", "goodbye", "that's all", "thats all",
	"that's it", "thats it", "done", "finish", "no more", "all set",
}

const goodbyeSystemPrompt = `You decide whether a farmer's message signals they want to end the conversation
with a plant disease assistance service. Respond with exactly YES or NO.
YES only for clear wrap-up signals (thanks and goodbye, "that's all", "I'm done").
NO for anything that asks a question or continues the conversation.`

// LLMGoodbyeDetector asks the model whether a message signals the end of the
// conversation and falls back to keyword matching on error.
type LLMGoodbyeDetector struct {
	llm genai.ClientInterface
}

// NewLLMGoodbyeDetector creates a goodbye detector backed by the given client.
func NewLLMGoodbyeDetector(llm genai.ClientInterface) *LLMGoodbyeDetector {
	return &LLMGoodbyeDetector{llm: llm}
}

// IsGoodbye reports whether the message signals the user wants to end the
// session. Never fails: errors degrade to keyword matching.
func (d *LLMGoodbyeDetector) IsGoodbye(ctx context.Context, userMessage string) bool {
	if d.llm == nil {
		return FallbackGoodbye(userMessage)
	}
	raw, err := d.llm.Generate(ctx, goodbyeSystemPrompt, userMessage)
	if err != nil {
		slog.Debug("LLMGoodbyeDetector.IsGoodbye: falling back to keyword detection", "error", err)
		return FallbackGoodbye(userMessage)
	}
	answer := strings.ToUpper(strings.TrimSpace(raw))
	switch {
	case strings.HasPrefix(answer, "YES"):
		return true
	case strings.HasPrefix(answer, "NO"):
		return false
	default:
		slog.Debug("LLMGoodbyeDetector.IsGoodbye: unexpected answer, falling back", "answer", raw)
		return FallbackGoodbye(userMessage)
	}
}

// FallbackGoodbye is the keyword-based goodbye check.
func FallbackGoodbye(userMessage string) bool {
	return containsAny(userMessage, goodbyeKeywords)
}
