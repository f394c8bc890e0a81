// Package e2e boots a complete synod instance against scripted model
// adapters and drives it over real HTTP and WebSocket connections.
package e2e

import (
	"context"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/synod-ai/synod/pkg/api"
	"github.com/synod-ai/synod/pkg/config"
	"github.com/synod-ai/synod/pkg/council"
	"github.com/synod-ai/synod/pkg/events"
	"github.com/synod-ai/synod/pkg/metrics"
	"github.com/synod-ai/synod/pkg/models"
	"github.com/synod-ai/synod/pkg/notify"
	"github.com/synod-ai/synod/pkg/planner"
	"github.com/synod-ai/synod/pkg/store"
)

// shutdownBudget bounds the teardown of one test instance.
const shutdownBudget = 5 * time.Second

// TestApp is one running synod instance: in-memory store, live event
// bus, council service, and the HTTP server bound to a random port.
type TestApp struct {
	Config  *config.Config
	Repo    *store.InMemory
	Bus     *events.Bus
	Traces  *events.TraceStore
	Council *council.Service
	Server  *api.Server
	Scripts *ScriptBook

	BaseURL string
	WSURL   string

	t *testing.T
}

type testAppConfig struct {
	scripts               map[string]MemberScript
	maxConcurrentSessions int
	notifier              *notify.Service
}

// TestAppOption customizes a TestApp before it starts.
type TestAppOption func(*testAppConfig)

// WithScript assigns the script one model id plays. The model is added
// to the registry automatically.
func WithScript(modelID string, script MemberScript) TestAppOption {
	return func(c *testAppConfig) { c.scripts[modelID] = script }
}

// WithMaxConcurrentSessions caps deliberations running at once.
func WithMaxConcurrentSessions(n int) TestAppOption {
	return func(c *testAppConfig) { c.maxConcurrentSessions = n }
}

// WithNotifier wires a Slack notification service into the council.
func WithNotifier(svc *notify.Service) TestAppOption {
	return func(c *testAppConfig) { c.notifier = svc }
}

// NewTestApp starts a full synod instance and registers its teardown
// with t.Cleanup. The registry holds the built-in models plus every
// scripted id; the planner runs in static mode with the built-in rules
// and presets.
func NewTestApp(t *testing.T, opts ...TestAppOption) *TestApp {
	t.Helper()

	tc := &testAppConfig{
		scripts:               make(map[string]MemberScript),
		maxConcurrentSessions: 8,
	}
	for _, opt := range opts {
		opt(tc)
	}

	builtin := config.GetBuiltinConfig()
	modelCfgs := make(map[string]*config.ModelConfig, len(builtin.Models)+len(tc.scripts))
	for id := range builtin.Models {
		modelCfgs[id] = testModelConfig(id)
	}
	for id := range tc.scripts {
		modelCfgs[id] = testModelConfig(id)
	}
	registry := config.NewModelRegistry(modelCfgs)

	cfg := &config.Config{
		Defaults: (*config.RunDefaults)(nil).RunConfig(),
		Planner: &config.PlannerConfig{
			Mode:   models.PlannerModeStatic,
			Rules:  builtin.Rules,
			Ladder: builtin.Ladder,
		},
		Server: &config.ServerConfig{
			Host:                  "127.0.0.1",
			MaxConcurrentSessions: tc.maxConcurrentSessions,
		},
		ModelRegistry:  registry,
		PresetRegistry: config.NewPresetRegistry(builtin.Presets),
	}

	book := NewScriptBook()
	for id, script := range tc.scripts {
		book.Set(id, script)
	}

	traces := events.NewTraceStore()
	bus := events.NewBus(traces)
	repo := store.NewInMemory()

	councilOpts := []council.Option{council.WithAdapterFactory(book.Factory())}
	if tc.notifier != nil {
		councilOpts = append(councilOpts, council.WithNotifier(tc.notifier))
	}
	svc := council.NewService(cfg, planner.New(cfg.Planner, registry, cfg.PresetRegistry, nil), repo, bus, councilOpts...)

	collector := metrics.NewCollector()
	collector.Register(bus)

	server := api.NewServer(cfg.Server, svc, repo, bus, traces)
	server.SetMetricsHandler(collector.Handler())

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() {
		_ = server.StartWithListener(ln)
	}()

	addr := ln.Addr().String()
	app := &TestApp{
		Config:  cfg,
		Repo:    repo,
		Bus:     bus,
		Traces:  traces,
		Council: svc,
		Server:  server,
		Scripts: book,
		BaseURL: fmt.Sprintf("http://%s", addr),
		WSURL:   fmt.Sprintf("ws://%s/api/v1/ws", addr),
		t:       t,
	}

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownBudget)
		defer cancel()
		_ = server.Shutdown(ctx)
		_ = svc.Shutdown(ctx)
	})

	return app
}

// testModelConfig builds a registry entry for a scripted model. The
// endpoint is never dialed.
func testModelConfig(id string) *config.ModelConfig {
	return &config.ModelConfig{
		Kind:       config.ProviderKindOpenAICompatible,
		Deployment: id,
		Endpoint:   "https://models.invalid",
	}
}
