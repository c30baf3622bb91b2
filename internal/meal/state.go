package meal

import (
	"time"

	"github.com/zombor/calorie-scan/internal/analysis"
)

// Phase is the position of a session in the upload/analyze/display cycle
type Phase string

const (
	PhaseIdle      Phase = "idle"
	PhaseHasImage  Phase = "has_image"
	PhaseAnalyzing Phase = "analyzing"
	PhaseResult    Phase = "result"
	PhaseError     Phase = "error"
)

// State is everything the page shows for one session.
// Result and Error are never both set.
type State struct {
	ImageDataURL string             `json:"image_data_url,omitempty"`
	IsAnalyzing  bool               `json:"is_analyzing"`
	Result       *analysis.Analysis `json:"result,omitempty"`
	Error        string             `json:"error,omitempty"`
}

// Phase derives the state machine position from the fields
func (s State) Phase() Phase {
	switch {
	case s.ImageDataURL == "":
		return PhaseIdle
	case s.IsAnalyzing:
		return PhaseAnalyzing
	case s.Result != nil:
		return PhaseResult
	case s.Error != "":
		return PhaseError
	default:
		return PhaseHasImage
	}
}

// HistoryEntry is a successful analysis kept for later review
type HistoryEntry struct {
	ID        string            `json:"id"`
	SessionID string            `json:"session_id"`
	Analysis  analysis.Analysis `json:"analysis"`
	CreatedAt time.Time         `json:"created_at"`
}
