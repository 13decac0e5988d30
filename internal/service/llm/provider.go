package llm

import (
	"context"

	"portfolio-api/internal/domain"
)

// Provider generates one assistant reply for a conversation turn
type Provider interface {
	// Name is the human-readable label reported on chat responses, e.g. "Gemini 2.0 Flash"
	Name() string
	// Model is the underlying model identifier used for cache keying
	Model() string
	Invoke(ctx context.Context, systemPrompt string, history []domain.Message, message string) (string, error)
}

// Options are the sampling parameters shared by both providers
type Options struct {
	Temperature float64
	MaxTokens   int
}
