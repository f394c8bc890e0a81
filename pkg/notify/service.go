package notify

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/synod-ai/synod/pkg/config"
	"github.com/synod-ai/synod/pkg/models"
)

// defaultTokenEnv is consulted when the config names no variable.
const defaultTokenEnv = "SLACK_BOT_TOKEN"

// postTimeout bounds one notification delivery.
const postTimeout = 10 * time.Second

// Service delivers terminal session notifications.
// Nil-safe: all methods are no-ops when service is nil.
type Service struct {
	client  *Client
	baseURL string
	logger  *slog.Logger
}

// NewService creates the notification service from configuration.
// Returns nil when notifications are disabled or the token or channel
// is missing, which callers treat as "notifications off".
func NewService(cfg *config.SlackConfig) *Service {
	if cfg == nil || !cfg.Enabled {
		return nil
	}

	tokenEnv := cfg.BotTokenEnv
	if tokenEnv == "" {
		tokenEnv = defaultTokenEnv
	}
	token := os.Getenv(tokenEnv)
	if token == "" || cfg.Channel == "" {
		slog.Warn("Slack notifications enabled but not configured, disabling",
			"token_env", tokenEnv, "channel", cfg.Channel)
		return nil
	}

	return &Service{
		client:  NewClient(token, cfg.Channel),
		baseURL: cfg.BaseURL,
		logger:  slog.Default().With("component", "slack-service"),
	}
}

// NewServiceWithClient creates a Service backed by a pre-built Client.
// Useful for testing with a mock API server.
func NewServiceWithClient(client *Client, baseURL string) *Service {
	return &Service{
		client:  client,
		baseURL: baseURL,
		logger:  slog.Default().With("component", "slack-service"),
	}
}

// NotifySessionFinished posts a terminal status notification.
// Fail-open: errors are logged, never returned.
func (s *Service) NotifySessionFinished(ctx context.Context, session *models.Session) {
	if s == nil || session == nil {
		return
	}

	blocks := BuildSessionMessage(session, s.baseURL)
	if err := s.client.PostMessage(ctx, blocks, postTimeout); err != nil {
		s.logger.Error("Failed to send Slack notification",
			"session_id", session.ID,
			"status", session.Status,
			"error", err)
	}
}
