package llm

import (
	"context"
	"fmt"
	"strings"
)

// Request describes a single text completion call.
type Request struct {
	System      string
	Prompt      string
	Temperature float64
	MaxTokens   int
}

// Provider is the language-model collaborator. Implementations return the
// full completion text; streaming is not exposed because the pipeline only
// ever consumes whole drafts.
type Provider interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// NewProvider constructs a provider from configuration.
func NewProvider(cfg Config) (Provider, error) {
	switch strings.ToLower(cfg.Provider) {
	case "openai":
		return NewOpenAIProvider(cfg), nil
	case "anthropic":
		return NewAnthropicProvider(cfg), nil
	default:
		return nil, fmt.Errorf("unknown LLM provider %q", cfg.Provider)
	}
}
