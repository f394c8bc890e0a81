// Package council orchestrates multi-model deliberation sessions:
// planning the council, realizing members, running the staged
// iteration loop with voting and self-correction, and synthesizing the
// final answer. The service is the package's entry point; everything
// a session does is observable through the event bus and persisted in
// the session repository.
package council

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/synod-ai/synod/pkg/adapter"
	"github.com/synod-ai/synod/pkg/config"
	"github.com/synod-ai/synod/pkg/council/prompt"
	"github.com/synod-ai/synod/pkg/events"
	"github.com/synod-ai/synod/pkg/masking"
	"github.com/synod-ai/synod/pkg/models"
	"github.com/synod-ai/synod/pkg/notify"
	"github.com/synod-ai/synod/pkg/planner"
	"github.com/synod-ai/synod/pkg/store"
)

// persistTimeout bounds repository writes that run detached from the
// session context, such as trace appends and terminal state writes.
const persistTimeout = 10 * time.Second

var (
	// ErrEmptyQuestion rejects runs with nothing to deliberate.
	ErrEmptyQuestion = errors.New("question must not be empty")

	// ErrSessionNotActive is returned when cancelling a session that
	// already reached a terminal state.
	ErrSessionNotActive = errors.New("session is not active")
)

// Service runs council deliberations and exposes their sessions and
// traces. Safe for concurrent use; sessions run fully independently.
type Service struct {
	cfg     *config.Config
	planner *planner.Planner
	repo    store.Repository
	bus     *events.Bus
	prompts *prompt.Builder
	masker  *masking.Masker
	logger  *slog.Logger

	newAdapter adapter.Factory

	// notifier may be nil (notifications disabled).
	notifier *notify.Service

	mu     sync.Mutex
	active map[string]context.CancelFunc
	wg     sync.WaitGroup
}

// Option customizes service construction.
type Option func(*Service)

// WithAdapterFactory replaces how member adapters are built. Tests use
// it to seat scripted models without network access.
func WithAdapterFactory(factory adapter.Factory) Option {
	return func(s *Service) { s.newAdapter = factory }
}

// WithNotifier delivers terminal session notifications through the
// given service.
func WithNotifier(n *notify.Service) Option {
	return func(s *Service) { s.notifier = n }
}

// NewService creates the council service. Every published event is
// also appended to the repository so traces survive the bus's
// in-memory store.
func NewService(cfg *config.Config, plnr *planner.Planner, repo store.Repository, bus *events.Bus, opts ...Option) *Service {
	if cfg == nil {
		panic("NewService: cfg must not be nil")
	}
	if plnr == nil {
		panic("NewService: planner must not be nil")
	}
	if repo == nil {
		panic("NewService: repo must not be nil")
	}
	if bus == nil {
		panic("NewService: bus must not be nil")
	}

	s := &Service{
		cfg:        cfg,
		planner:    plnr,
		repo:       repo,
		bus:        bus,
		prompts:    prompt.NewBuilder(),
		masker:     masking.FromModelRegistry(cfg.ModelRegistry),
		logger:     slog.With("component", "council"),
		newAdapter: adapter.CreateAdapter,
		active:     make(map[string]context.CancelFunc),
	}
	for _, opt := range opts {
		opt(s)
	}

	bus.Subscribe(s.persistTrace)
	return s
}

// Run deliberates a question synchronously and returns the finished
// session. Deliberation failures are recorded on the returned session
// rather than returned; the error return covers rejected input and
// session persistence only.
func (s *Service) Run(ctx context.Context, question string, opts RunOptions) (*models.Session, error) {
	session, runCfg, err := s.createSession(ctx, question, opts)
	if err != nil {
		return nil, err
	}

	s.wg.Add(1)
	defer s.wg.Done()
	s.execute(ctx, session, opts, runCfg)
	return session, nil
}

// Start begins a deliberation and returns its pending snapshot
// immediately. The run proceeds on a background context detached from
// the caller's; Cancel or Shutdown stops it.
func (s *Service) Start(ctx context.Context, question string, opts RunOptions) (*models.Session, error) {
	session, runCfg, err := s.createSession(ctx, question, opts)
	if err != nil {
		return nil, err
	}

	snapshot := session.Clone()
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.execute(context.Background(), session, opts, runCfg)
	}()
	return snapshot, nil
}

// Cancel aborts a running session. A session already terminal returns
// ErrSessionNotActive; an unknown id returns store.ErrNotFound.
func (s *Service) Cancel(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	cancel, ok := s.active[sessionID]
	s.mu.Unlock()
	if ok {
		cancel()
		return nil
	}

	if _, err := s.repo.Get(ctx, sessionID); err != nil {
		return err
	}
	return ErrSessionNotActive
}

// Get returns a snapshot of one session.
func (s *Service) Get(ctx context.Context, sessionID string) (*models.Session, error) {
	return s.repo.Get(ctx, sessionID)
}

// List returns session snapshots newest-first. A non-positive limit
// returns all sessions.
func (s *Service) List(ctx context.Context, limit int) ([]*models.Session, error) {
	return s.repo.List(ctx, limit)
}

// Traces returns a session's trace events in append order.
func (s *Service) Traces(ctx context.Context, sessionID string) ([]models.TraceEvent, error) {
	return s.repo.GetTraces(ctx, sessionID)
}

// ActiveCount reports how many sessions are deliberating right now.
// The API layer uses it for admission control.
func (s *Service) ActiveCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.active)
}

// CheckModels probes every registered model endpoint. Healthy models
// map to nil.
func (s *Service) CheckModels(ctx context.Context) map[string]error {
	results := make(map[string]error)
	for _, id := range s.cfg.ModelRegistry.IDs() {
		modelCfg, err := s.cfg.ModelRegistry.Get(id)
		if err != nil {
			results[id] = err
			continue
		}
		a, err := s.newAdapter(modelCfg)
		if err != nil {
			results[id] = err
			continue
		}
		results[id] = a.HealthCheck(ctx)
	}
	return results
}

// Shutdown cancels every active session and waits for their pipelines
// to reach a terminal state, up to ctx's deadline.
func (s *Service) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	for _, cancel := range s.active {
		cancel()
	}
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// createSession validates the question, resolves the effective run
// configuration, and persists the pending session.
func (s *Service) createSession(ctx context.Context, question string, opts RunOptions) (*models.Session, models.RunConfig, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, models.RunConfig{}, ErrEmptyQuestion
	}

	runCfg := s.resolveRunConfig(opts)
	now := time.Now().UTC()
	session := &models.Session{
		ID:        uuid.New().String(),
		Question:  question,
		Config:    runCfg,
		Status:    models.SessionStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.Create(ctx, session); err != nil {
		return nil, models.RunConfig{}, fmt.Errorf("persist session: %w", err)
	}
	return session, runCfg, nil
}

// resolveRunConfig layers the caller's overrides over the configured
// defaults. Overrides replace their section wholesale.
func (s *Service) resolveRunConfig(opts RunOptions) models.RunConfig {
	cfg := s.cfg.Defaults
	if opts.SessionOverride != nil {
		cfg.Session = *opts.SessionOverride
	}
	if opts.IterationOverride != nil {
		cfg.Iteration = *opts.IterationOverride
	}
	if opts.MemoryOverride != nil {
		cfg.Memory = *opts.MemoryOverride
	}
	return cfg
}

// execute drives one session's pipeline under a session-scoped context
// bounded by the configured timeout, then persists the terminal state.
func (s *Service) execute(ctx context.Context, session *models.Session, opts RunOptions, runCfg models.RunConfig) {
	var (
		runCtx context.Context
		cancel context.CancelFunc
	)
	if timeout := runCfg.Session.TimeoutMs; timeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, time.Duration(timeout)*time.Millisecond)
	} else {
		runCtx, cancel = context.WithCancel(ctx)
	}

	s.track(session.ID, cancel)
	defer func() {
		cancel()
		s.release(session.ID)
	}()

	session.Status = models.SessionStatusRunning
	session.UpdatedAt = time.Now().UTC()
	if err := s.repo.Update(runCtx, session); err != nil {
		s.logger.Warn("Failed to persist running status",
			"session_id", session.ID,
			"error", err)
	}

	newPipeline(s, session, opts, runCfg).execute(runCtx)

	s.persistTerminal(session)
	s.notifyTerminal(session)
}

// notifyTerminal delivers the terminal notification on a fresh context;
// delivery runs inline and is fail-open inside the notifier.
func (s *Service) notifyTerminal(session *models.Session) {
	if s.notifier == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()
	s.notifier.NotifySessionFinished(ctx, session.Clone())
}

// persistTerminal writes the session's final state on a fresh context;
// the run context is typically cancelled by the time a session fails.
func (s *Service) persistTerminal(session *models.Session) {
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()

	if err := s.repo.Update(ctx, session); err != nil {
		s.logger.Error("Failed to persist terminal session state",
			"session_id", session.ID,
			"status", string(session.Status),
			"error", err)
	}
}

// persistTrace mirrors every published event into the repository so
// traces outlive the bus's in-memory store.
func (s *Service) persistTrace(event models.TraceEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()
	return s.repo.Append(ctx, event.SessionID, event)
}

func (s *Service) track(sessionID string, cancel context.CancelFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active[sessionID] = cancel
}

func (s *Service) release(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.active, sessionID)
}
