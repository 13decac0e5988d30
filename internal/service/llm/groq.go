package llm

import (
	"context"
	"fmt"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"portfolio-api/internal/domain"
)

const (
	groqBaseURL = "https://api.groq.com/openai/v1"
	groqTimeout = 30 * time.Second
)

// GroqProvider talks to Groq through its OpenAI-compatible API
type GroqProvider struct {
	client *openai.Client
	model  string
	opts   Options
}

// NewGroqProvider creates the backup chat provider
func NewGroqProvider(apiKey, model string, opts Options) (*GroqProvider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("groq API key is required")
	}
	if model == "" {
		model = "llama-3.3-70b-versatile"
	}

	cfg := openai.DefaultConfig(apiKey)
	cfg.BaseURL = groqBaseURL

	return &GroqProvider{
		client: openai.NewClientWithConfig(cfg),
		model:  model,
		opts:   opts,
	}, nil
}

func (p *GroqProvider) Name() string {
	return "Groq Llama 3.3"
}

func (p *GroqProvider) Model() string {
	return p.model
}

func (p *GroqProvider) Invoke(ctx context.Context, systemPrompt string, history []domain.Message, message string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, groqTimeout)
	defer cancel()

	messages := make([]openai.ChatCompletionMessage, 0, len(history)+2)
	if systemPrompt != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: systemPrompt,
		})
	}
	for _, msg := range history {
		role := openai.ChatMessageRoleUser
		if msg.Role == "assistant" {
			role = openai.ChatMessageRoleAssistant
		}
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    role,
			Content: msg.Content,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: message,
	})

	req := openai.ChatCompletionRequest{
		Model:       p.model,
		Messages:    messages,
		Temperature: float32(p.opts.Temperature),
		MaxTokens:   p.opts.MaxTokens,
	}

	resp, err := p.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("groq completion failed: %w", err)
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return "", fmt.Errorf("empty response from Groq")
	}
	return resp.Choices[0].Message.Content, nil
}
