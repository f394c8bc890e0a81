package events

import (
	"sync"

	"github.com/synod-ai/synod/pkg/models"
)

// TraceStore is the append-only in-memory trace log, keyed by session
// id. Writes for one session arrive already serialized by the bus's
// per-session lock; the store's own lock covers cross-session access.
type TraceStore struct {
	mu     sync.RWMutex
	traces map[string][]models.TraceEvent
}

// NewTraceStore creates an empty trace store.
func NewTraceStore() *TraceStore {
	return &TraceStore{traces: make(map[string][]models.TraceEvent)}
}

// Append records one event at the end of its session's trace.
func (s *TraceStore) Append(event models.TraceEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.traces[event.SessionID] = append(s.traces[event.SessionID], event)
}

// GetTraces returns the session's events in emission order. The slice
// is a copy; callers may not observe later appends through it.
func (s *TraceStore) GetTraces(sessionID string) []models.TraceEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stored := s.traces[sessionID]
	out := make([]models.TraceEvent, len(stored))
	copy(out, stored)
	return out
}

// Count returns the number of events recorded for a session.
func (s *TraceStore) Count(sessionID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.traces[sessionID])
}

// SessionIDs returns the ids of all sessions with recorded traces.
func (s *TraceStore) SessionIDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.traces))
	for id := range s.traces {
		ids = append(ids, id)
	}
	return ids
}

// Drop removes a session's trace. Used by retention cleanup.
func (s *TraceStore) Drop(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.traces, sessionID)
}
