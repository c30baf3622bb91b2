package analysis

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

const (
	defaultGatewayModel     = "claude-sonnet-4-20250514"
	defaultGatewayMaxTokens = 1024
)

// GatewayConfig configures the HTTP gateway that proxies to the multimodal model
type GatewayConfig struct {
	URL       string
	APIKey    string // sent as x-api-key when set
	Model     string
	MaxTokens int
	Timeout   time.Duration // zero leaves the transport default in place
}

// Gateway implements the Analyzer interface by POSTing a messages request to an AI gateway
type Gateway struct {
	url       string
	apiKey    string
	model     string
	maxTokens int
	prompt    *Prompt
	client    *http.Client
}

// NewGateway creates a new Gateway analyzer. An empty URL is accepted; every call then fails.
func NewGateway(cfg GatewayConfig, prompt *Prompt) (*Gateway, error) {
	if prompt == nil {
		return nil, fmt.Errorf("prompt is required")
	}
	if cfg.Model == "" {
		cfg.Model = defaultGatewayModel
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = defaultGatewayMaxTokens
	}

	return &Gateway{
		url:       cfg.URL,
		apiKey:    cfg.APIKey,
		model:     cfg.Model,
		maxTokens: cfg.MaxTokens,
		prompt:    prompt,
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
	}, nil
}

// gatewayRequest represents the request body for the gateway's messages API
type gatewayRequest struct {
	Model     string           `json:"model"`
	MaxTokens int              `json:"max_tokens"`
	Messages  []gatewayMessage `json:"messages"`
}

type gatewayMessage struct {
	Role    string           `json:"role"`
	Content []gatewayContent `json:"content"`
}

type gatewayContent struct {
	Type   string         `json:"type"`
	Source *gatewaySource `json:"source,omitempty"`
	Text   string         `json:"text,omitempty"`
}

type gatewaySource struct {
	Type      string `json:"type"`
	MediaType string `json:"media_type"`
	Data      string `json:"data"`
}

// gatewayResponse represents the response from the gateway's messages API
type gatewayResponse struct {
	Content []struct {
		Text string `json:"text"`
	} `json:"content"`
}

// buildRequest assembles the messages body for an image data URL
func (g *Gateway) buildRequest(imageDataURL string) (*gatewayRequest, error) {
	mediaType, payload, err := splitDataURL(imageDataURL)
	if err != nil {
		return nil, err
	}

	return &gatewayRequest{
		Model:     g.model,
		MaxTokens: g.maxTokens,
		Messages: []gatewayMessage{
			{
				Role: "user",
				Content: []gatewayContent{
					{
						Type: "image",
						Source: &gatewaySource{
							Type:      "base64",
							MediaType: mediaType,
							Data:      payload,
						},
					},
					{
						Type: "text",
						Text: g.prompt.Text(),
					},
				},
			},
		},
	}, nil
}

// Analyze sends the image to the gateway and parses the estimate out of the reply text
func (g *Gateway) Analyze(ctx context.Context, imageDataURL string) (*Analysis, error) {
	reqBody, err := g.buildRequest(imageDataURL)
	if err != nil {
		return nil, err
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.url, bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("%w: creating request: %v", ErrRequestFailed, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if g.apiKey != "" {
		req.Header.Set("x-api-key", g.apiKey)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: calling gateway: %v", ErrRequestFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("%w: gateway status %d: %s", ErrRequestFailed, resp.StatusCode, string(body))
	}

	var msgResp gatewayResponse
	if err := json.NewDecoder(resp.Body).Decode(&msgResp); err != nil {
		return nil, fmt.Errorf("%w: decoding gateway response: %v", ErrMalformedJSON, err)
	}

	var text string
	if len(msgResp.Content) > 0 {
		text = msgResp.Content[0].Text
	}

	data, err := parseAnalysisJSON(text)
	if err != nil {
		slog.Debug("Unparseable gateway reply", "text", text)
		return nil, fmt.Errorf("parsing analysis: %w", err)
	}

	return data, nil
}

// Close is a no-op for the HTTP client
func (g *Gateway) Close() error {
	return nil
}
