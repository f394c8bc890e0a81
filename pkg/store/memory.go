package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/synod-ai/synod/pkg/models"
)

// InMemory is the default repository: a map guarded by a RWMutex.
// Sessions are deep-copied on both write and read so no caller ever
// shares mutable state with the store.
type InMemory struct {
	mu       sync.RWMutex
	sessions map[string]*models.Session
	traces   map[string][]models.TraceEvent
	// order holds session ids in creation order; List walks it backwards.
	order []string
}

// NewInMemory creates an empty in-memory repository.
func NewInMemory() *InMemory {
	return &InMemory{
		sessions: make(map[string]*models.Session),
		traces:   make(map[string][]models.TraceEvent),
	}
}

// Create stores a new session.
func (s *InMemory) Create(_ context.Context, session *models.Session) error {
	if session == nil || session.ID == "" {
		return fmt.Errorf("session has no id")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.sessions[session.ID]; exists {
		return fmt.Errorf("session %s already exists", session.ID)
	}
	s.sessions[session.ID] = session.Clone()
	s.order = append(s.order, session.ID)
	return nil
}

// Get returns a snapshot of one session.
func (s *InMemory) Get(_ context.Context, id string) (*models.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, ok := s.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return session.Clone(), nil
}

// List returns session snapshots newest-first.
func (s *InMemory) List(_ context.Context, limit int) ([]*models.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := len(s.order)
	if limit > 0 && limit < count {
		count = limit
	}

	sessions := make([]*models.Session, 0, count)
	for i := len(s.order) - 1; i >= 0 && len(sessions) < count; i-- {
		if session, ok := s.sessions[s.order[i]]; ok {
			sessions = append(sessions, session.Clone())
		}
	}
	return sessions, nil
}

// Append stores one trace event for a session.
func (s *InMemory) Append(_ context.Context, sessionID string, event models.TraceEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[sessionID]; !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, sessionID)
	}
	s.traces[sessionID] = append(s.traces[sessionID], cloneEvent(event))
	return nil
}

// GetTraces returns a session's trace events in append order.
func (s *InMemory) GetTraces(_ context.Context, sessionID string) ([]models.TraceEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.sessions[sessionID]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, sessionID)
	}

	stored := s.traces[sessionID]
	events := make([]models.TraceEvent, 0, len(stored))
	for _, event := range stored {
		events = append(events, cloneEvent(event))
	}
	return events, nil
}

// Update overwrites a stored session.
func (s *InMemory) Update(_ context.Context, session *models.Session) error {
	if session == nil || session.ID == "" {
		return fmt.Errorf("session has no id")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[session.ID]; !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, session.ID)
	}
	s.sessions[session.ID] = session.Clone()
	return nil
}

// DeleteExpired removes terminal sessions last updated before the
// cutoff, together with their traces. Returns the number removed.
func (s *InMemory) DeleteExpired(_ context.Context, cutoff time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	deleted := 0
	kept := s.order[:0]
	for _, id := range s.order {
		session, ok := s.sessions[id]
		if ok && session.Status.IsTerminal() && session.UpdatedAt.Before(cutoff) {
			delete(s.sessions, id)
			delete(s.traces, id)
			deleted++
			continue
		}
		kept = append(kept, id)
	}
	s.order = kept
	return deleted, nil
}

func cloneEvent(event models.TraceEvent) models.TraceEvent {
	if event.Data == nil {
		return event
	}
	data := make(map[string]any, len(event.Data))
	for k, v := range event.Data {
		data[k] = v
	}
	event.Data = data
	return event
}
