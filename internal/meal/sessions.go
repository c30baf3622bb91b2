package meal

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultSessionTTL is how long an untouched session is kept
const DefaultSessionTTL = 30 * time.Minute

// Sessions holds one page Controller per browser session
type Sessions struct {
	newController func(id string) *Controller
	ttl           time.Duration
	timeSource    TimeSource

	mu          sync.Mutex
	controllers map[string]*Controller
}

// NewSessions creates a session registry; deps are shared by every controller it creates
func NewSessions(deps ControllerDeps, ttl time.Duration) *Sessions {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	if deps.TimeSource == nil {
		deps.TimeSource = &defaultTimeSource{}
	}

	return &Sessions{
		newController: func(id string) *Controller {
			return NewController(id, deps)
		},
		ttl:         ttl,
		timeSource:  deps.TimeSource,
		controllers: make(map[string]*Controller),
	}
}

// Get returns the controller for a session ID, creating a fresh session when the ID
// is empty, malformed or unknown. The returned ID is the one to hand back to the client.
func (s *Sessions) Get(id string) (string, *Controller) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := uuid.Parse(id); err == nil {
		if c, ok := s.controllers[id]; ok {
			return id, c
		}
	}

	id = uuid.NewString()
	c := s.newController(id)
	s.controllers[id] = c
	return id, c
}

// Len returns the number of live sessions
func (s *Sessions) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.controllers)
}

// Sweep drops sessions idle for longer than the TTL, abandoning their pending analyses
func (s *Sessions) Sweep() int {
	cutoff := s.timeSource.Now().Add(-s.ttl)

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, c := range s.controllers {
		if c.idleSince().Before(cutoff) {
			c.Clear()
			delete(s.controllers, id)
			removed++
		}
	}
	if removed > 0 {
		slog.Debug("Expired sessions", "count", removed, "remaining", len(s.controllers))
	}
	return removed
}

// Run sweeps expired sessions until ctx is done
func (s *Sessions) Run(ctx context.Context) {
	ticker := time.NewTicker(s.ttl / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep()
		}
	}
}
