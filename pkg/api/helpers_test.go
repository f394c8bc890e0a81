package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/synod-ai/synod/pkg/adapter"
	"github.com/synod-ai/synod/pkg/config"
	"github.com/synod-ai/synod/pkg/council"
	"github.com/synod-ai/synod/pkg/events"
	"github.com/synod-ai/synod/pkg/models"
	"github.com/synod-ai/synod/pkg/planner"
	"github.com/synod-ai/synod/pkg/store"
)

// stubAdapter answers every stage with fixed content, recognizing the
// stage from the task text in the user prompt. One shared instance
// serves all seats.
type stubAdapter struct {
	// delay is applied before every answer, interruptibly.
	delay time.Duration
	// healthErr makes health checks fail.
	healthErr error
}

func (a *stubAdapter) Complete(ctx context.Context, messages []models.Message, _ adapter.CompletionOptions) (*adapter.Response, error) {
	if a.delay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(a.delay):
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	user := messages[len(messages)-1].Content
	content := "Opinion from the council seat."
	switch {
	case strings.Contains(user, "final answer"):
		content = "The council's final answer."
	case strings.Contains(user, "Cast your vote"):
		content = "POSITION: Approve\nCONFIDENCE: 0.90\nREASONING: strong agreement"
	case strings.Contains(user, "Critique the opinions"):
		content = "Critique of the opinions."
	}

	return &adapter.Response{
		Content:   content,
		Usage:     models.TokenUsage{Prompt: 40, Completion: 60, Total: 100},
		LatencyMs: 3,
	}, nil
}

func (a *stubAdapter) HealthCheck(context.Context) error { return a.healthErr }

// apiEnv bundles a server over a fully wired in-memory council stack.
type apiEnv struct {
	server *Server
	svc    *council.Service
	repo   store.Repository
	bus    *events.Bus
	traces *events.TraceStore
}

// testModels are the model ids registered in every test environment.
// They cover the built-in presets plus the ad-hoc "mini" used by
// provided plans.
var testModels = []string{"gpt-4o", "gpt-4o-mini", "o3-mini", "mini"}

// newAPIEnv builds a server whose council members all answer from the
// given stub. A nil stub answers instantly and healthy. The repo can be
// swapped to exercise store failures.
func newAPIEnv(t *testing.T, stub *stubAdapter, repo store.Repository) *apiEnv {
	t.Helper()
	if stub == nil {
		stub = &stubAdapter{}
	}
	if repo == nil {
		repo = store.NewInMemory()
	}

	modelCfgs := make(map[string]*config.ModelConfig, len(testModels))
	for _, id := range testModels {
		modelCfgs[id] = &config.ModelConfig{
			Kind:       config.ProviderKindOpenAICompatible,
			Deployment: id,
			Endpoint:   "https://models.invalid",
		}
	}
	registry := config.NewModelRegistry(modelCfgs)

	builtin := config.GetBuiltinConfig()
	cfg := &config.Config{
		Defaults: (*config.RunDefaults)(nil).RunConfig(),
		Planner: &config.PlannerConfig{
			Mode:   models.PlannerModeStatic,
			Rules:  builtin.Rules,
			Ladder: builtin.Ladder,
		},
		Server:         &config.ServerConfig{Host: "127.0.0.1", Port: 0, MaxConcurrentSessions: 2},
		ModelRegistry:  registry,
		PresetRegistry: config.NewPresetRegistry(builtin.Presets),
	}

	traces := events.NewTraceStore()
	bus := events.NewBus(traces)
	svc := council.NewService(cfg, planner.New(cfg.Planner, registry, cfg.PresetRegistry, nil), repo, bus,
		council.WithAdapterFactory(func(*config.ModelConfig) (adapter.ModelAdapter, error) {
			return stub, nil
		}))

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = svc.Shutdown(ctx)
	})

	return &apiEnv{
		server: NewServer(cfg.Server, svc, repo, bus, traces),
		svc:    svc,
		repo:   repo,
		bus:    bus,
		traces: traces,
	}
}

// request routes one HTTP call through the full middleware chain.
func (env *apiEnv) request(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	env.server.echo.ServeHTTP(rec, req)
	return rec
}

// submitCouncil POSTs a question with a provided three-seat plan on the
// "mini" model and returns the accepted session id.
func (env *apiEnv) submitCouncil(t *testing.T, question string) string {
	t.Helper()
	rec := env.request(t, http.MethodPost, "/api/v1/councils", &SubmitCouncilRequest{
		Question: question,
		Options:  &CouncilOptions{Plan: miniPlan()},
	})
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())

	var session models.Session
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &session))
	require.NotEmpty(t, session.ID)
	return session.ID
}

// waitTerminal polls the repository until the session finishes.
func (env *apiEnv) waitTerminal(t *testing.T, sessionID string) *models.Session {
	t.Helper()
	var session *models.Session
	require.Eventually(t, func() bool {
		s, err := env.repo.Get(context.Background(), sessionID)
		if err != nil || !s.Status.IsTerminal() {
			return false
		}
		session = s
		return true
	}, 5*time.Second, 10*time.Millisecond)
	return session
}

// miniPlan is a three-seat council on the "mini" model with no iterations.
func miniPlan() *models.CouncilPlan {
	return &models.CouncilPlan{
		Complexity:   models.ComplexitySimple,
		Domain:       "general",
		CouncilSize:  3,
		VotingMethod: models.VotingMethodMajority,
		Members: []models.PlanMember{
			{Model: "mini", Role: models.RoleOpinionGiver},
			{Model: "mini", Role: models.RoleReviewer},
			{Model: "mini", Role: models.RoleSynthesizer},
		},
	}
}
