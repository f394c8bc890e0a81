package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/synod-ai/synod/pkg/database"
	"github.com/synod-ai/synod/pkg/models"
)

// Postgres persists sessions as JSONB payloads with a few promoted
// columns for listing and retention queries. Trace events go to an
// append-only table ordered by a sequence column.
type Postgres struct {
	client *database.Client
}

// NewPostgres creates a repository over an initialized database client.
func NewPostgres(client *database.Client) *Postgres {
	return &Postgres{client: client}
}

// Create stores a new session.
func (s *Postgres) Create(ctx context.Context, session *models.Session) error {
	if session == nil || session.ID == "" {
		return fmt.Errorf("session has no id")
	}

	payload, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	_, err = s.client.DB().ExecContext(ctx,
		`INSERT INTO sessions (id, question, status, payload, created_at, updated_at, completed_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		session.ID, session.Question, string(session.Status), payload,
		session.CreatedAt, session.UpdatedAt, session.CompletedAt)
	if err != nil {
		return fmt.Errorf("failed to insert session: %w", err)
	}
	return nil
}

// Get returns one session.
func (s *Postgres) Get(ctx context.Context, id string) (*models.Session, error) {
	var payload []byte
	err := s.client.DB().QueryRowContext(ctx,
		`SELECT payload FROM sessions WHERE id = $1`, id).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query session: %w", err)
	}

	var session models.Session
	if err := json.Unmarshal(payload, &session); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session %s: %w", id, err)
	}
	return &session, nil
}

// List returns sessions newest-first.
func (s *Postgres) List(ctx context.Context, limit int) ([]*models.Session, error) {
	query := `SELECT payload FROM sessions ORDER BY created_at DESC, id DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT $1`
		args = append(args, limit)
	}

	rows, err := s.client.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*models.Session
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("failed to scan session row: %w", err)
		}
		var session models.Session
		if err := json.Unmarshal(payload, &session); err != nil {
			return nil, fmt.Errorf("failed to unmarshal session row: %w", err)
		}
		sessions = append(sessions, &session)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate session rows: %w", err)
	}
	return sessions, nil
}

// Append stores one trace event.
func (s *Postgres) Append(ctx context.Context, sessionID string, event models.TraceEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal trace event: %w", err)
	}

	result, err := s.client.DB().ExecContext(ctx,
		`INSERT INTO trace_events (id, session_id, event_type, payload, created_at)
		 SELECT $1, $2, $3, $4, $5
		 WHERE EXISTS (SELECT 1 FROM sessions WHERE id = $2)`,
		event.ID, sessionID, string(event.Type), payload, event.Timestamp)
	if err != nil {
		return fmt.Errorf("failed to insert trace event: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read insert result: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, sessionID)
	}
	return nil
}

// GetTraces returns a session's trace events in append order.
func (s *Postgres) GetTraces(ctx context.Context, sessionID string) ([]models.TraceEvent, error) {
	var exists bool
	err := s.client.DB().QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM sessions WHERE id = $1)`, sessionID).Scan(&exists)
	if err != nil {
		return nil, fmt.Errorf("failed to check session: %w", err)
	}
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, sessionID)
	}

	rows, err := s.client.DB().QueryContext(ctx,
		`SELECT payload FROM trace_events WHERE session_id = $1 ORDER BY seq`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query trace events: %w", err)
	}
	defer rows.Close()

	events := make([]models.TraceEvent, 0)
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("failed to scan trace event row: %w", err)
		}
		var event models.TraceEvent
		if err := json.Unmarshal(payload, &event); err != nil {
			return nil, fmt.Errorf("failed to unmarshal trace event: %w", err)
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate trace event rows: %w", err)
	}
	return events, nil
}

// Update overwrites a stored session.
func (s *Postgres) Update(ctx context.Context, session *models.Session) error {
	if session == nil || session.ID == "" {
		return fmt.Errorf("session has no id")
	}

	payload, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	result, err := s.client.DB().ExecContext(ctx,
		`UPDATE sessions
		 SET question = $2, status = $3, payload = $4, updated_at = $5, completed_at = $6
		 WHERE id = $1`,
		session.ID, session.Question, string(session.Status), payload,
		session.UpdatedAt, session.CompletedAt)
	if err != nil {
		return fmt.Errorf("failed to update session: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read update result: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, session.ID)
	}
	return nil
}

// DeleteExpired removes terminal sessions last updated before the
// cutoff. Trace events go with them via the cascading foreign key.
func (s *Postgres) DeleteExpired(ctx context.Context, cutoff time.Time) (int, error) {
	result, err := s.client.DB().ExecContext(ctx,
		`DELETE FROM sessions
		 WHERE status IN ('completed', 'failed') AND updated_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired sessions: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read delete result: %w", err)
	}
	return int(affected), nil
}
