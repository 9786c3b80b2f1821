// Package summarizer holds the generative API boundary: provider
// implementations for the supported endpoints, the failure taxonomy,
// and a retrying client that gates every exchange through the rate
// limiter.
package summarizer

import (
	"context"
	"fmt"
	"strings"
)

// Request describes one generation exchange: the full prompt plus the
// model parameters for the run.
type Request struct {
	Prompt          string
	Temperature     float64
	TopP            float64
	TopK            int
	MaxOutputTokens int
}

// Provider performs a single request/response exchange against one
// generative endpoint. Implementations classify their failures into
// *APIError; retrying is the Client's job, not theirs.
type Provider interface {
	Name() string

	// Generate returns the generated text for the request.
	Generate(ctx context.Context, req Request) (string, error)

	// GenerateStream produces the text incrementally, passing each
	// fragment to fn before returning the concatenated whole. The
	// stream is finite and not restartable.
	GenerateStream(ctx context.Context, req Request, fn func(fragment string) error) (string, error)

	// CountTokens reports the provider's token count for text. It may
	// call the endpoint; callers wanting a free estimate should use
	// EstimateTokens instead.
	CountTokens(ctx context.Context, text string) (int, error)
}

// NewProvider builds the provider selected by name.
func NewProvider(ctx context.Context, name, apiKey, model string) (Provider, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "gemini":
		return NewGeminiProvider(ctx, apiKey, model)
	case "openai":
		return NewOpenAIProvider(apiKey, model)
	case "anthropic":
		return NewAnthropicProvider(apiKey, model)
	default:
		return nil, fmt.Errorf("unknown provider %q", name)
	}
}
