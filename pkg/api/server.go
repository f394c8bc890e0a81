// Package api exposes the council service over HTTP: a small REST
// surface for submitting questions and inspecting sessions, a WebSocket
// endpoint streaming trace events, and the Prometheus exposition
// endpoint. Handlers stay thin; deliberation semantics live in
// pkg/council.
package api

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"

	echo "github.com/labstack/echo/v5"

	"github.com/synod-ai/synod/pkg/config"
	"github.com/synod-ai/synod/pkg/council"
	"github.com/synod-ai/synod/pkg/events"
	"github.com/synod-ai/synod/pkg/store"
)

// Server is the HTTP front door. It owns the Echo router and the
// underlying http.Server; everything else is injected.
type Server struct {
	cfg     *config.ServerConfig
	council *council.Service
	repo    store.Repository
	bus     *events.Bus
	traces  *events.TraceStore

	echo *echo.Echo
	http *http.Server

	// metricsHandler serves GET /metrics when set.
	metricsHandler http.Handler
}

// NewServer wires routes and middleware. The council service, store,
// bus, and trace store must be non-nil.
func NewServer(cfg *config.ServerConfig, svc *council.Service, repo store.Repository, bus *events.Bus, traces *events.TraceStore) *Server {
	if cfg == nil {
		panic("api: nil server config")
	}
	if svc == nil {
		panic("api: nil council service")
	}
	if repo == nil {
		panic("api: nil repository")
	}
	if bus == nil {
		panic("api: nil event bus")
	}
	if traces == nil {
		panic("api: nil trace store")
	}

	s := &Server{
		cfg:     cfg,
		council: svc,
		repo:    repo,
		bus:     bus,
		traces:  traces,
		echo:    echo.New(),
	}
	s.registerRoutes()

	s.http = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      s.echo,
		ReadTimeout:  cfg.ReadTimeout.Std(),
		WriteTimeout: cfg.WriteTimeout.Std(),
	}
	return s
}

// SetMetricsHandler mounts a Prometheus exposition handler at /metrics.
// Optional; without it the route returns 404.
func (s *Server) SetMetricsHandler(h http.Handler) {
	s.metricsHandler = h
}

func (s *Server) registerRoutes() {
	e := s.echo
	e.Use(requestLogger())
	e.Use(securityHeaders())

	v1 := e.Group("/api/v1")
	v1.POST("/councils", s.submitCouncilHandler)
	v1.GET("/sessions", s.listSessionsHandler)
	v1.GET("/sessions/:id", s.getSessionHandler)
	v1.GET("/sessions/:id/traces", s.sessionTracesHandler)
	v1.POST("/sessions/:id/cancel", s.cancelSessionHandler)
	v1.GET("/ws", s.wsHandler)
	v1.GET("/health", s.healthHandler)

	e.GET("/metrics", s.metricsProxyHandler)
}

// metricsProxyHandler bridges the Prometheus http.Handler into Echo.
func (s *Server) metricsProxyHandler(c *echo.Context) error {
	if s.metricsHandler == nil {
		return echo.NewHTTPError(http.StatusNotFound, "metrics not configured")
	}
	s.metricsHandler.ServeHTTP(c.Response(), c.Request())
	return nil
}

// Addr returns the listen address the server binds to.
func (s *Server) Addr() string {
	return s.http.Addr
}

// Start serves until the listener fails or Shutdown is called.
// http.ErrServerClosed is translated to nil.
func (s *Server) Start() error {
	slog.Info("HTTP server listening", "addr", s.http.Addr)
	err := s.http.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// StartWithListener serves on a caller-provided listener. Tests use it
// to bind a random port.
func (s *Server) StartWithListener(ln net.Listener) error {
	err := s.http.Serve(ln)
	if err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests until ctx expires. Open WebSocket
// streams end when their request contexts are cancelled.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}
