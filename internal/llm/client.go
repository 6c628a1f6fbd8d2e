// Package llm is the outbound script-generation surface (spec.md §4.4,
// component C4's LLM dependency). It wraps whichever text-generation
// backend is configured behind one narrow interface so ScriptSynth never
// depends on a specific vendor SDK.
package llm

import (
	"context"
	"fmt"

	"github.com/pagecast/pagecast/internal/apierr"
	"github.com/pagecast/pagecast/internal/config"
)

// Message is one turn in a generation request. Role is "system" or "user".
type Message struct {
	Role    string
	Content string
}

// GenerateOptions tunes a single Generate call.
type GenerateOptions struct {
	Temperature float32
	MaxTokens   int
}

// Client generates script text from a prompt. Every backend adapter
// (Ollama, Gemini, Anthropic) implements this.
type Client interface {
	Generate(ctx context.Context, messages []Message, opts GenerateOptions) (string, error)
}

// New builds a Client for the configured provider (spec.md §6, LLM_PROVIDER).
func New(cfg config.LLMConfig) (Client, error) {
	switch cfg.Provider {
	case "ollama", "":
		return NewOllamaClient(cfg.Host, cfg.Model), nil
	case "gemini":
		return NewGeminiClient(cfg.APIKey, cfg.Model)
	case "anthropic":
		return NewAnthropicClient(cfg.APIKey, cfg.Model), nil
	default:
		return nil, apierr.New(apierr.CodeInvalidRequest, fmt.Sprintf("unknown LLM provider %q", cfg.Provider))
	}
}
