// Package store persists council sessions and their trace events. The
// in-memory repository is the default backend; Postgres is selected by
// configuration for deployments that need durability.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/synod-ai/synod/pkg/models"
)

// ErrNotFound is returned when a session id is unknown to the store.
var ErrNotFound = errors.New("session not found")

// Repository persists sessions and their trace events. Writes are
// serialized per session id; reads return snapshots that later writes
// cannot mutate.
type Repository interface {
	// Create stores a new session in state pending or running.
	Create(ctx context.Context, session *models.Session) error

	// Get returns a snapshot of one session, or ErrNotFound.
	Get(ctx context.Context, id string) (*models.Session, error)

	// List returns session snapshots newest-first. A non-positive limit
	// returns all sessions.
	List(ctx context.Context, limit int) ([]*models.Session, error)

	// Append stores one trace event for a session, preserving append
	// order. ErrNotFound when the session is unknown.
	Append(ctx context.Context, sessionID string, event models.TraceEvent) error

	// GetTraces returns a session's trace events in append order. A
	// session without events yields an empty slice; an unknown session
	// yields ErrNotFound.
	GetTraces(ctx context.Context, sessionID string) ([]models.TraceEvent, error)

	// Update overwrites a stored session, normally with its terminal
	// state. ErrNotFound when the session was never created.
	Update(ctx context.Context, session *models.Session) error

	// DeleteExpired removes terminal sessions last updated before the
	// cutoff, with their traces, and reports how many were removed.
	DeleteExpired(ctx context.Context, cutoff time.Time) (int, error)
}
