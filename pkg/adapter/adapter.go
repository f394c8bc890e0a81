// Package adapter provides chat-completion clients for the model
// providers a council can seat. Implementations register themselves
// under a provider kind string; CreateAdapter selects one from a
// model's configuration.
package adapter

import (
	"context"

	"github.com/synod-ai/synod/pkg/models"
)

// ModelAdapter is the interface every provider implementation satisfies.
type ModelAdapter interface {
	// Complete sends a conversation to the model and returns its reply.
	// Rate-limited requests are retried internally; all other failures
	// surface as *Error with a classified kind.
	Complete(ctx context.Context, messages []models.Message, opts CompletionOptions) (*Response, error)

	// HealthCheck verifies the provider endpoint is reachable. Any HTTP
	// response counts as healthy; only transport failures do not.
	HealthCheck(ctx context.Context) error
}

// Response is one completed model reply.
type Response struct {
	Content      string            `json:"content"`
	Usage        models.TokenUsage `json:"usage"`
	LatencyMs    int64             `json:"latency_ms"`
	FinishReason string            `json:"finish_reason,omitempty"`
}
