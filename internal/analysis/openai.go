package analysis

import (
	"context"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"
)

// OpenAIConfig configures an OpenAI-compatible chat completions backend.
// BaseURL may point at any compatible server, e.g. http://localhost:11434/v1 for Ollama.
type OpenAIConfig struct {
	APIKey    string
	BaseURL   string
	Model     string
	MaxTokens int
}

// OpenAI implements the Analyzer interface using an OpenAI-compatible vision model
type OpenAI struct {
	client    *openai.Client
	model     string
	maxTokens int
	prompt    *Prompt
}

// NewOpenAI creates a new OpenAI Analyzer instance
func NewOpenAI(cfg OpenAIConfig, prompt *Prompt) (*OpenAI, error) {
	if cfg.APIKey == "" && cfg.BaseURL == "" {
		return nil, fmt.Errorf("openai api key is required")
	}
	if prompt == nil {
		return nil, fmt.Errorf("prompt is required")
	}
	if cfg.Model == "" {
		cfg.Model = openai.GPT4oMini
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = defaultGatewayMaxTokens
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}

	return &OpenAI{
		client:    openai.NewClientWithConfig(clientCfg),
		model:     cfg.Model,
		maxTokens: cfg.MaxTokens,
		prompt:    prompt,
	}, nil
}

// Analyze sends the image data URL to the chat completions API and parses the estimate
func (o *OpenAI) Analyze(ctx context.Context, imageDataURL string) (*Analysis, error) {
	if _, _, err := splitDataURL(imageDataURL); err != nil {
		return nil, err
	}

	req := openai.ChatCompletionRequest{
		Model: o.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role: openai.ChatMessageRoleUser,
				MultiContent: []openai.ChatMessagePart{
					{
						Type: openai.ChatMessagePartTypeImageURL,
						ImageURL: &openai.ChatMessageImageURL{
							URL:    imageDataURL,
							Detail: openai.ImageURLDetailAuto,
						},
					},
					{
						Type: openai.ChatMessagePartTypeText,
						Text: o.prompt.Text(),
					},
				},
			},
		},
	}
	// Reasoning models reject max_tokens
	if strings.HasPrefix(o.model, "o1") || strings.HasPrefix(o.model, "o3") || strings.HasPrefix(o.model, "o4") || strings.HasPrefix(o.model, "gpt-5") {
		req.MaxCompletionTokens = o.maxTokens
	} else {
		req.MaxTokens = o.maxTokens
	}

	resp, err := o.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("%w: creating chat completion: %v", ErrRequestFailed, err)
	}

	var text string
	if len(resp.Choices) > 0 {
		text = resp.Choices[0].Message.Content
	}

	data, err := parseAnalysisJSON(text)
	if err != nil {
		return nil, fmt.Errorf("parsing analysis: %w", err)
	}

	return data, nil
}

// Close is a no-op for the HTTP client
func (o *OpenAI) Close() error {
	return nil
}
