// Synod council orchestrator server — plans a council of models for
// each submitted question, runs the deliberation, and serves results
// over HTTP and WebSocket.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/synod-ai/synod/pkg/adapter"
	"github.com/synod-ai/synod/pkg/api"
	"github.com/synod-ai/synod/pkg/cleanup"
	"github.com/synod-ai/synod/pkg/config"
	"github.com/synod-ai/synod/pkg/council"
	"github.com/synod-ai/synod/pkg/database"
	"github.com/synod-ai/synod/pkg/events"
	"github.com/synod-ai/synod/pkg/metrics"
	"github.com/synod-ai/synod/pkg/notify"
	"github.com/synod-ai/synod/pkg/planner"
	"github.com/synod-ai/synod/pkg/store"
	"github.com/synod-ai/synod/pkg/version"
)

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func main() {
	// Parse command-line flags
	configDir := flag.String("config-dir",
		getEnv("CONFIG_DIR", "./deploy/config"),
		"Path to configuration directory")
	flag.Parse()

	// Load .env file from config directory
	envPath := filepath.Join(*configDir, ".env")
	if err := godotenv.Load(envPath); err != nil {
		slog.Warn("Could not load .env file, continuing with existing environment",
			"path", envPath, "error", err)
	} else {
		slog.Info("Loaded environment", "path", envPath)
	}

	ctx := context.Background()

	// 1. Initialize configuration
	cfg, err := config.Initialize(ctx, *configDir)
	if err != nil {
		slog.Error("Failed to initialize configuration", "error", err)
		os.Exit(1)
	}
	setupLogging(cfg.Log)

	stats := cfg.Stats()
	slog.Info("Starting synod",
		"version", version.Full(),
		"config_dir", *configDir,
		"models", stats.Models,
		"presets", stats.Presets,
		"plan_rules", stats.Rules)

	// 2. Initialize session store
	repo, closeStore, err := buildStore(ctx, cfg.Store)
	if err != nil {
		slog.Error("Failed to initialize session store", "error", err)
		os.Exit(1)
	}
	defer closeStore()

	// 3. Event bus and trace store
	traces := events.NewTraceStore()
	bus := events.NewBus(traces)

	// 4. Planner (an adapter is built only when model planning is configured)
	plannerAdapter, err := buildPlannerAdapter(cfg)
	if err != nil {
		slog.Error("Failed to initialize planner model", "error", err)
		os.Exit(1)
	}
	plnr := planner.New(cfg.Planner, cfg.ModelRegistry, cfg.PresetRegistry, plannerAdapter)

	// 5. Council service with optional Slack notifications
	notifier := notify.NewService(cfg.Slack)
	councilService := council.NewService(cfg, plnr, repo, bus,
		council.WithNotifier(notifier))

	// 6. Metrics collector fed from the event bus
	collector := metrics.NewCollector()
	collector.Register(bus)

	// 7. Retention sweeper
	cleanupService := cleanup.NewService(cfg.Retention, repo, bus, traces)
	cleanupService.Start(ctx)

	// 8. Start HTTP server (non-blocking)
	httpServer := api.NewServer(cfg.Server, councilService, repo, bus, traces)
	httpServer.SetMetricsHandler(collector.Handler())

	errCh := make(chan error, 1)
	go func() {
		if err := httpServer.Start(); err != nil {
			errCh <- err
		}
	}()

	slog.Info("Synod started successfully",
		"store", cfg.Store.Backend,
		"planner_mode", cfg.Planner.Mode,
		"slack_enabled", notifier != nil)

	// 9. Wait for shutdown signal or server error
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

	select {
	case sig := <-sigCh:
		slog.Info("Shutdown signal received", "signal", sig)
	case err := <-errCh:
		slog.Error("Server error triggered shutdown", "error", err)
	}

	// 10. Graceful shutdown: stop intake first, then drain deliberations.
	httpShutdownCtx, httpCancel := context.WithTimeout(ctx, 5*time.Second)
	defer httpCancel()
	if err := httpServer.Shutdown(httpShutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}

	drainCtx, drainCancel := context.WithTimeout(ctx, cfg.Server.ShutdownTimeout.Std())
	defer drainCancel()
	if err := councilService.Shutdown(drainCtx); err != nil {
		slog.Warn("Sessions did not drain before timeout", "error", err)
	} else {
		slog.Info("Council service stopped gracefully")
	}

	cleanupService.Stop()

	slog.Info("Shutdown complete")
}

// setupLogging replaces the default slog handler with one matching the
// configured level and format.
func setupLogging(cfg *config.LogConfig) {
	level := slog.LevelInfo
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if strings.EqualFold(cfg.Format, "text") {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(handler))
}

// buildStore selects the session store backend. The returned function
// releases the backend's resources on shutdown.
func buildStore(ctx context.Context, cfg *config.StoreConfig) (store.Repository, func(), error) {
	if cfg.Backend == "postgres" {
		client, err := database.NewClient(ctx, cfg)
		if err != nil {
			return nil, nil, err
		}
		slog.Info("Connected to PostgreSQL session store")
		closer := func() {
			if err := client.Close(); err != nil {
				slog.Error("Error closing database client", "error", err)
			}
		}
		return store.NewPostgres(client), closer, nil
	}

	slog.Info("Using in-memory session store",
		"hint", "sessions are lost on restart; set store.backend=postgres to persist")
	return store.NewInMemory(), func() {}, nil
}

// buildPlannerAdapter creates the adapter for model-mode planning, or
// nil when no planner model is configured (static planning only).
func buildPlannerAdapter(cfg *config.Config) (adapter.ModelAdapter, error) {
	if cfg.Planner.PlannerModel == "" {
		return nil, nil
	}
	modelCfg, err := cfg.GetModel(cfg.Planner.PlannerModel)
	if err != nil {
		return nil, err
	}
	a, err := adapter.CreateAdapter(modelCfg)
	if err != nil {
		return nil, err
	}
	slog.Info("Planner model initialized", "model", cfg.Planner.PlannerModel)
	return a, nil
}
