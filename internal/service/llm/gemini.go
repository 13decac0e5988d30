package llm

import (
	"context"
	"fmt"
	"time"

	"google.golang.org/genai"

	"portfolio-api/internal/domain"
)

const geminiTimeout = 30 * time.Second

// GeminiProvider talks to Google Gemini through the official genai SDK
type GeminiProvider struct {
	client *genai.Client
	model  string
	opts   Options
}

// NewGeminiProvider creates the primary chat provider
func NewGeminiProvider(apiKey, model string, opts Options) (*GeminiProvider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}
	if model == "" {
		model = "gemini-2.0-flash"
	}

	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey: apiKey,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return &GeminiProvider{client: client, model: model, opts: opts}, nil
}

func (p *GeminiProvider) Name() string {
	return "Gemini 2.0 Flash"
}

func (p *GeminiProvider) Model() string {
	return p.model
}

func (p *GeminiProvider) Invoke(ctx context.Context, systemPrompt string, history []domain.Message, message string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, geminiTimeout)
	defer cancel()

	contents := make([]*genai.Content, 0, len(history)+1)
	for _, msg := range history {
		role := "user"
		if msg.Role == "assistant" {
			role = "model"
		}
		contents = append(contents, &genai.Content{
			Parts: []*genai.Part{{Text: msg.Content}},
			Role:  role,
		})
	}
	contents = append(contents, &genai.Content{
		Parts: []*genai.Part{{Text: message}},
		Role:  "user",
	})

	config := &genai.GenerateContentConfig{}
	if systemPrompt != "" {
		config.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{{Text: systemPrompt}},
			Role:  "user",
		}
	}
	if p.opts.Temperature > 0 {
		config.Temperature = genai.Ptr(float32(p.opts.Temperature))
	}
	if p.opts.MaxTokens > 0 {
		config.MaxOutputTokens = int32(p.opts.MaxTokens)
	}

	resp, err := p.client.Models.GenerateContent(ctx, p.model, contents, config)
	if err != nil {
		return "", fmt.Errorf("gemini generation failed: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", fmt.Errorf("empty response from Gemini")
	}

	var out string
	for _, part := range resp.Candidates[0].Content.Parts {
		out += part.Text
	}
	if out == "" {
		return "", fmt.Errorf("empty response from Gemini")
	}
	return out, nil
}
