package analysis

import (
	"context"
	"errors"
)

var (
	// ErrRequestFailed is returned when the AI service cannot be reached or answers with a non-2xx status
	ErrRequestFailed = errors.New("analysis request failed")

	// ErrNoJSON is returned when the model's text contains no {...} object
	ErrNoJSON = errors.New("no JSON object found in response")

	// ErrMalformedJSON is returned when the extracted object does not unmarshal into an Analysis
	ErrMalformedJSON = errors.New("malformed JSON object in response")

	// ErrInvalidDataURL is returned when an image data URL has no base64 payload
	ErrInvalidDataURL = errors.New("invalid image data URL")
)

// Analysis is the nutrition estimate returned by the AI service
type Analysis struct {
	Name       string   `json:"name"`
	Calories   float64  `json:"calories"` // kcal
	Protein    float64  `json:"protein"`  // grams
	Carbs      float64  `json:"carbs"`    // grams
	Fat        float64  `json:"fat"`      // grams
	Fiber      *float64 `json:"fiber,omitempty"`
	Confidence float64  `json:"confidence"` // 0-100
	Tips       string   `json:"tips,omitempty"`
}

// Analyzer defines the interface for food photo analysis
type Analyzer interface {
	// Analyze sends an image data URL to the model and returns the parsed estimate
	Analyze(ctx context.Context, imageDataURL string) (*Analysis, error)

	// Close releases any client resources
	Close() error
}

// IsParseError reports whether err came from reading the model's answer rather than the transport
func IsParseError(err error) bool {
	return errors.Is(err, ErrNoJSON) || errors.Is(err, ErrMalformedJSON) || errors.Is(err, ErrInvalidDataURL)
}
