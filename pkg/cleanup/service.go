// Package cleanup provides retention sweeping for finished sessions.
package cleanup

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/synod-ai/synod/pkg/config"
	"github.com/synod-ai/synod/pkg/events"
	"github.com/synod-ai/synod/pkg/store"
)

// Service periodically enforces the retention policy:
//   - Deletes terminal sessions last updated before the retention cutoff
//   - Drops hot trace and bus state for sessions no longer in the store
//
// All operations are idempotent; anything a sweep misses is picked up
// by the next one.
type Service struct {
	config *config.RetentionConfig
	repo   store.Repository
	bus    *events.Bus
	traces *events.TraceStore

	cancel context.CancelFunc
	done   chan struct{}
}

// NewService creates a new cleanup service.
func NewService(
	cfg *config.RetentionConfig,
	repo store.Repository,
	bus *events.Bus,
	traces *events.TraceStore,
) *Service {
	return &Service{
		config: cfg,
		repo:   repo,
		bus:    bus,
		traces: traces,
	}
}

// Start launches the background sweep loop. It is a no-op when the
// service is already running or retention is disabled.
func (s *Service) Start(ctx context.Context) {
	if s.cancel != nil || !s.config.Enabled {
		return
	}
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})

	go s.run(ctx)

	slog.Info("Cleanup service started",
		"max_age", s.config.MaxAge.Std(),
		"check_interval", s.config.CheckInterval.Std())
}

// Stop signals the sweep loop to exit and waits for it to finish.
func (s *Service) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
	slog.Info("Cleanup service stopped")
}

func (s *Service) run(ctx context.Context) {
	defer close(s.done)

	s.runAll(ctx)

	ticker := time.NewTicker(s.config.CheckInterval.Std())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runAll(ctx)
		}
	}
}

func (s *Service) runAll(ctx context.Context) {
	s.deleteExpiredSessions(ctx)
	s.dropOrphanedTraces(ctx)
}

func (s *Service) deleteExpiredSessions(_ context.Context) {
	cutoff := time.Now().Add(-s.config.MaxAge.Std())
	count, err := s.repo.DeleteExpired(context.Background(), cutoff)
	if err != nil {
		slog.Error("Retention: session delete failed", "error", err)
		return
	}
	if count > 0 {
		slog.Info("Retention: deleted expired sessions", "count", count)
	}
}

// dropOrphanedTraces clears hot state for sessions that no longer
// exist in the store, including ones deleted by another replica.
func (s *Service) dropOrphanedTraces(_ context.Context) {
	dropped := 0
	for _, id := range s.traces.SessionIDs() {
		_, err := s.repo.Get(context.Background(), id)
		if err == nil {
			continue
		}
		if !errors.Is(err, store.ErrNotFound) {
			slog.Error("Retention: trace reconciliation failed", "session_id", id, "error", err)
			continue
		}
		s.traces.Drop(id)
		s.bus.Forget(id)
		dropped++
	}
	if dropped > 0 {
		slog.Info("Retention: dropped orphaned traces", "count", dropped)
	}
}
