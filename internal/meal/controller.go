package meal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/zombor/calorie-scan/internal/analysis"
)

var (
	// ErrNoImage is returned when analysis is requested before an image is selected
	ErrNoImage = errors.New("no image selected")

	// ErrAnalysisInProgress is returned when analysis is requested while one is already running
	ErrAnalysisInProgress = errors.New("analysis already in progress")

	// ErrStaleAnalysis is returned when the image was cleared or replaced while the analysis ran
	ErrStaleAnalysis = errors.New("analysis result discarded: image changed")
)

// IDGenerator generates unique IDs for history entries
type IDGenerator interface {
	Generate() string
}

// TimeSource provides the current time
type TimeSource interface {
	Now() time.Time
}

// defaultIDGenerator generates time-ordered UUIDv7 IDs so history keys sort by creation
type defaultIDGenerator struct{}

func (g *defaultIDGenerator) Generate() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// defaultTimeSource provides the current time
type defaultTimeSource struct{}

func (t *defaultTimeSource) Now() time.Time {
	return time.Now()
}

// Recorder stores successful analyses
type Recorder interface {
	SaveEntry(entry *HistoryEntry) error
}

// Controller is the page state machine for one session:
// Idle -> HasImage -> Analyzing -> Result | Error, with Clear returning to Idle from anywhere.
type Controller struct {
	sessionID      string
	analyzer       analysis.Analyzer
	recorder       Recorder
	failureMessage string
	idGenerator    IDGenerator
	timeSource     TimeSource

	mu         sync.Mutex
	state      State
	generation uint64
	cancel     context.CancelFunc
	lastActive time.Time
}

// ControllerDeps holds the collaborators of a Controller
type ControllerDeps struct {
	Analyzer       analysis.Analyzer
	Recorder       Recorder // optional
	FailureMessage string
	IDGenerator    IDGenerator
	TimeSource     TimeSource
}

// NewController creates an idle Controller for a session
func NewController(sessionID string, deps ControllerDeps) *Controller {
	if deps.IDGenerator == nil {
		deps.IDGenerator = &defaultIDGenerator{}
	}
	if deps.TimeSource == nil {
		deps.TimeSource = &defaultTimeSource{}
	}
	if deps.FailureMessage == "" {
		deps.FailureMessage = failureMessages["en"]
	}

	return &Controller{
		sessionID:      sessionID,
		analyzer:       deps.Analyzer,
		recorder:       deps.Recorder,
		failureMessage: deps.FailureMessage,
		idGenerator:    deps.IDGenerator,
		timeSource:     deps.TimeSource,
		lastActive:     deps.TimeSource.Now(),
	}
}

// State returns a snapshot of the current state
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.touch()
	return c.state
}

// SelectImage shows a new image and drops any previous result, error or pending analysis
func (c *Controller) SelectImage(imageDataURL string) State {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.touch()

	c.abandonLocked()
	c.state = State{ImageDataURL: imageDataURL}
	return c.state
}

// Clear returns to Idle, abandoning any pending analysis
func (c *Controller) Clear() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.touch()

	c.abandonLocked()
	c.state = State{}
	return c.state
}

// abandonLocked cancels the in-flight analysis and makes its eventual result stale
func (c *Controller) abandonLocked() {
	c.generation++
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
}

func (c *Controller) touch() {
	c.lastActive = c.timeSource.Now()
}

// idleSince reports when the session was last used
func (c *Controller) idleSince() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastActive
}

// Analyze runs the analyzer on the selected image and blocks until it finishes.
// A failed analysis is not an error to the caller: it lands in State.Error with the
// generic message. The returned error is one of ErrNoImage, ErrAnalysisInProgress
// or ErrStaleAnalysis.
func (c *Controller) Analyze(ctx context.Context) (State, error) {
	c.mu.Lock()
	c.touch()
	if c.state.ImageDataURL == "" {
		defer c.mu.Unlock()
		return c.state, ErrNoImage
	}
	if c.state.IsAnalyzing {
		defer c.mu.Unlock()
		return c.state, ErrAnalysisInProgress
	}

	c.state.IsAnalyzing = true
	c.state.Result = nil
	c.state.Error = ""

	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	generation := c.generation
	imageDataURL := c.state.ImageDataURL
	c.mu.Unlock()

	defer cancel()

	result, err := c.analyzer.Analyze(ctx, imageDataURL)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.touch()

	if generation != c.generation {
		slog.Info("Discarding stale analysis", "session", c.sessionID)
		return c.state, ErrStaleAnalysis
	}

	c.cancel = nil
	c.state.IsAnalyzing = false

	if err != nil {
		slog.Error("Failed to analyze image",
			"session", c.sessionID,
			"parse_error", analysis.IsParseError(err),
			"error", err,
		)
		c.state.Error = c.failureMessage
		return c.state, nil
	}

	c.state.Result = result
	c.record(result)

	return c.state, nil
}

// record saves a successful analysis; failures only get logged
func (c *Controller) record(result *analysis.Analysis) {
	if c.recorder == nil {
		return
	}

	entry := &HistoryEntry{
		ID:        c.idGenerator.Generate(),
		SessionID: c.sessionID,
		Analysis:  *result,
		CreatedAt: c.timeSource.Now(),
	}
	if err := c.recorder.SaveEntry(entry); err != nil {
		slog.Warn("Failed to record analysis", "session", c.sessionID, "error", fmt.Errorf("saving history entry: %w", err))
	}
}
