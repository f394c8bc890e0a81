package adapter

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/synod-ai/synod/pkg/config"
	"github.com/synod-ai/synod/pkg/models"
)

func init() {
	Register(config.ProviderKindOpenAICompatible, newOpenAICompatAdapter)
}

// openAICompatAdapter speaks the plain OpenAI chat completions dialect
// served by OpenAI itself and by compatible gateways (vLLM, Ollama,
// LiteLLM). Auth is a bearer token; the model field carries the
// deployment name when set, otherwise the model ID.
type openAICompatAdapter struct {
	cfg    *config.ModelConfig
	model  string
	client *httpChatClient
}

func newOpenAICompatAdapter(cfg *config.ModelConfig) (ModelAdapter, error) {
	model := cfg.Deployment
	if model == "" {
		model = cfg.ID
	}

	url := fmt.Sprintf("%s/v1/chat/completions", strings.TrimRight(cfg.Endpoint, "/"))

	headers := map[string]string{}
	if key := os.Getenv(cfg.APIKeyEnv); key != "" {
		headers["Authorization"] = "Bearer " + key
	}

	return &openAICompatAdapter{
		cfg:    cfg,
		model:  model,
		client: newHTTPChatClient(url, headers, cfg.RequestTimeout.Std(), cfg.ID),
	}, nil
}

func (a *openAICompatAdapter) Complete(ctx context.Context, messages []models.Message, opts CompletionOptions) (*Response, error) {
	req := buildChatRequest(a.cfg, a.model, messages, opts)
	return a.client.complete(ctx, req, opts)
}

func (a *openAICompatAdapter) HealthCheck(ctx context.Context) error {
	return a.client.healthCheck(ctx, a.cfg.Endpoint)
}
