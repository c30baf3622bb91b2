package analysis

import (
	"encoding/json"
	"fmt"
	"strings"
)

// extractJSONObject returns the span from the first "{" to the last "}" in text
func extractJSONObject(text string) (string, error) {
	startIdx := strings.Index(text, "{")
	if startIdx == -1 {
		return "", ErrNoJSON
	}

	endIdx := strings.LastIndex(text, "}")
	if endIdx < startIdx {
		return "", ErrNoJSON
	}

	return text[startIdx : endIdx+1], nil
}

// parseAnalysisJSON pulls the first JSON object out of free-form model output.
// Surrounding prose and markdown fences are ignored.
func parseAnalysisJSON(text string) (*Analysis, error) {
	object, err := extractJSONObject(text)
	if err != nil {
		return nil, err
	}

	var data Analysis
	if err := json.Unmarshal([]byte(object), &data); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedJSON, err)
	}

	return &data, nil
}
