package analysis

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// Gemini implements the Analyzer interface using Google Gemini
type Gemini struct {
	client *genai.Client
	model  *genai.GenerativeModel
	prompt *Prompt
}

// NewGemini creates a new Gemini Analyzer instance
func NewGemini(apiKey string, modelName string, maxTokens int, prompt *Prompt) (*Gemini, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini api key is required")
	}
	if prompt == nil {
		return nil, fmt.Errorf("prompt is required")
	}
	if modelName == "" {
		modelName = "gemini-2.5-flash"
	}

	ctx := context.Background()
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("creating gemini client: %w", err)
	}

	model := client.GenerativeModel(modelName)
	if maxTokens > 0 {
		model.SetMaxOutputTokens(int32(maxTokens))
	}

	return &Gemini{
		client: client,
		model:  model,
		prompt: prompt,
	}, nil
}

// Analyze sends the image to Gemini and parses the estimate out of the reply text
func (g *Gemini) Analyze(ctx context.Context, imageDataURL string) (*Analysis, error) {
	mediaType, imageData, err := DecodeDataURL(imageDataURL)
	if err != nil {
		return nil, err
	}

	// genai.ImageData expects just the format suffix (e.g., "jpeg"), not the full MIME type
	format := strings.TrimPrefix(mediaType, "image/")

	parts := []genai.Part{
		genai.ImageData(format, imageData),
		genai.Text(g.prompt.Text()),
	}

	resp, err := g.model.GenerateContent(ctx, parts...)
	if err != nil {
		return nil, fmt.Errorf("%w: generating content: %v", ErrRequestFailed, err)
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil, fmt.Errorf("%w: no candidates from gemini", ErrNoJSON)
	}

	var responseText strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			responseText.WriteString(string(text))
		}
	}

	data, err := parseAnalysisJSON(responseText.String())
	if err != nil {
		return nil, fmt.Errorf("parsing analysis: %w", err)
	}

	return data, nil
}

// Close closes the Gemini client
func (g *Gemini) Close() error {
	return g.client.Close()
}
