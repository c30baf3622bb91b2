package analysis

import (
	"embed"
	"fmt"
	"os"
	"strings"
	"text/template"
)

//go:embed prompts/*.tmpl
var promptFS embed.FS

// Languages with an embedded prompt and UI strings
var Languages = []string{"zh", "en"}

var unknownNames = map[string]string{
	"zh": "无法识别",
	"en": "Unrecognized",
}

// PromptData holds the values substituted into a prompt template
type PromptData struct {
	UnknownName  string
	IncludeFiber bool
}

// Prompt is the instruction text sent alongside every image
type Prompt struct {
	text string
}

// NewPrompt loads the embedded prompt template for a language
func NewPrompt(language string, includeFiber bool) (*Prompt, error) {
	language = strings.ToLower(strings.TrimSpace(language))
	if language == "" {
		language = "zh"
	}

	raw, err := promptFS.ReadFile("prompts/" + language + ".tmpl")
	if err != nil {
		return nil, fmt.Errorf("unsupported prompt language %q", language)
	}

	return newPrompt(language, string(raw), PromptData{
		UnknownName:  unknownNames[language],
		IncludeFiber: includeFiber,
	})
}

// LoadPrompt reads a prompt template from disk. The language still selects the
// "unrecognized food" placeholder name.
func LoadPrompt(path, language string, includeFiber bool) (*Prompt, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading prompt file: %w", err)
	}

	name, ok := unknownNames[language]
	if !ok {
		name = unknownNames["en"]
	}

	return newPrompt(path, string(raw), PromptData{
		UnknownName:  name,
		IncludeFiber: includeFiber,
	})
}

func newPrompt(name, text string, data PromptData) (*Prompt, error) {
	tmpl, err := template.New(name).Option("missingkey=error").Parse(text)
	if err != nil {
		return nil, fmt.Errorf("parsing prompt template: %w", err)
	}

	var b strings.Builder
	if err := tmpl.Execute(&b, data); err != nil {
		return nil, fmt.Errorf("rendering prompt template: %w", err)
	}

	return &Prompt{text: strings.TrimSpace(b.String())}, nil
}

// Text returns the rendered prompt
func (p *Prompt) Text() string {
	return p.text
}
