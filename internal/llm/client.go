// Package llm provides generation backend client interfaces and
// implementations.
package llm

import (
	"context"
	"time"
)

// ChatMessage represents a role-tagged turn sent to the backend.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// CompletionRequest represents a completion request.
type CompletionRequest struct {
	Model       string
	Messages    []ChatMessage
	MaxTokens   int
	Temperature float64
}

// Generation is one generated turn plus backend-reported metadata.
type Generation struct {
	Text      string
	Model     string
	CreatedAt time.Time
	ID        string
	TokensIn  int
	TokensOut int
	LatencyMs int64
}

// Client is the interface for generation backend providers.
type Client interface {
	// Complete sends a completion request and returns the generation.
	Complete(ctx context.Context, req *CompletionRequest) (*Generation, error)

	// Name returns the provider name.
	Name() string

	// Models returns available models.
	Models() []string
}

// Provider is the type of generation backend provider.
type Provider string

const (
	ProviderOpenAI    Provider = "openai"
	ProviderAnthropic Provider = "anthropic"
)

// NewClient creates a new backend client for the given provider.
func NewClient(provider Provider, apiKey string) (Client, error) {
	switch provider {
	case ProviderAnthropic:
		return NewAnthropicClient(apiKey)
	default:
		return NewOpenAIClient(apiKey)
	}
}
