package meal

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/zombor/calorie-scan/internal/analysis"
)

// ErrHistoryDisabled is returned when history is requested but no database is configured
var ErrHistoryDisabled = errors.New("history is disabled")

// Config holds the tunables of a Service
type Config struct {
	Language   string
	MaxUpload  int64
	SessionTTL time.Duration
}

// Service ties the uploader, the per-session controllers and the history store together
type Service struct {
	sessions *Sessions
	uploader *Uploader
	db       DB
}

// NewService creates a new Service. db may be nil to disable history.
func NewService(analyzer analysis.Analyzer, db DB, cfg Config) *Service {
	return NewServiceWithDeps(analyzer, db, cfg, nil, nil)
}

// NewServiceWithDeps creates a new Service with custom dependencies for testing
func NewServiceWithDeps(analyzer analysis.Analyzer, db DB, cfg Config, idGen IDGenerator, timeSrc TimeSource) *Service {
	deps := ControllerDeps{
		Analyzer:       analyzer,
		FailureMessage: FailureMessage(cfg.Language),
		IDGenerator:    idGen,
		TimeSource:     timeSrc,
	}
	if db != nil {
		deps.Recorder = db
	}

	return &Service{
		sessions: NewSessions(deps, cfg.SessionTTL),
		uploader: NewUploader(cfg.MaxUpload),
		db:       db,
	}
}

// Session returns the controller for a session, creating one if needed
func (s *Service) Session(id string) (string, *Controller) {
	return s.sessions.Get(id)
}

// SelectImage hands a file to the uploader and, when accepted, to the session's controller
func (s *Service) SelectImage(c *Controller, source Source, file File) (Selection, State, error) {
	selection, err := s.uploader.Accept(source, file)
	if err != nil {
		return Selection{}, c.State(), fmt.Errorf("accepting upload: %w", err)
	}
	if !selection.Accepted {
		return selection, c.State(), nil
	}

	return selection, c.SelectImage(selection.ImageDataURL), nil
}

// ListHistory returns recent successful analyses, newest first
func (s *Service) ListHistory(limit int) ([]*HistoryEntry, error) {
	if s.db == nil {
		return nil, ErrHistoryDisabled
	}

	entries, err := s.db.ListEntries(limit)
	if err != nil {
		return nil, fmt.Errorf("listing history: %w", err)
	}
	return entries, nil
}

// GetHistoryEntry retrieves one history entry
func (s *Service) GetHistoryEntry(id string) (*HistoryEntry, error) {
	if s.db == nil {
		return nil, ErrHistoryDisabled
	}

	entry, err := s.db.GetEntry(id)
	if err != nil {
		return nil, fmt.Errorf("getting history entry: %w", err)
	}
	return entry, nil
}

// DeleteHistoryEntry removes one history entry
func (s *Service) DeleteHistoryEntry(id string) error {
	if s.db == nil {
		return ErrHistoryDisabled
	}

	if _, err := s.db.GetEntry(id); err != nil {
		return fmt.Errorf("getting history entry for deletion: %w", err)
	}
	if err := s.db.DeleteEntry(id); err != nil {
		return fmt.Errorf("deleting history entry: %w", err)
	}
	return nil
}

// Run expires idle sessions until ctx is done
func (s *Service) Run(ctx context.Context) {
	s.sessions.Run(ctx)
}
