package adapter

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/synod-ai/synod/pkg/config"
	"github.com/synod-ai/synod/pkg/models"
)

// defaultAzureAPIVersion is used when the model config omits one.
const defaultAzureAPIVersion = "2024-10-21"

func init() {
	Register(config.ProviderKindAzureChat, newAzureChatAdapter)
}

// azureChatAdapter speaks the Azure OpenAI chat completions dialect:
// deployment-scoped URLs, api-version query parameter, api-key header.
// The deployment name replaces the model field in the request body.
type azureChatAdapter struct {
	cfg    *config.ModelConfig
	client *httpChatClient
}

func newAzureChatAdapter(cfg *config.ModelConfig) (ModelAdapter, error) {
	if cfg.Deployment == "" {
		return nil, fmt.Errorf("azure-chat model %s requires a deployment", cfg.ID)
	}

	apiVersion := cfg.APIVersion
	if apiVersion == "" {
		apiVersion = defaultAzureAPIVersion
	}
	url := fmt.Sprintf("%s/openai/deployments/%s/chat/completions?api-version=%s",
		strings.TrimRight(cfg.Endpoint, "/"), cfg.Deployment, apiVersion)

	headers := map[string]string{}
	if key := os.Getenv(cfg.APIKeyEnv); key != "" {
		headers["api-key"] = key
	}

	return &azureChatAdapter{
		cfg:    cfg,
		client: newHTTPChatClient(url, headers, cfg.RequestTimeout.Std(), cfg.ID),
	}, nil
}

func (a *azureChatAdapter) Complete(ctx context.Context, messages []models.Message, opts CompletionOptions) (*Response, error) {
	req := buildChatRequest(a.cfg, a.cfg.Deployment, messages, opts)
	return a.client.complete(ctx, req, opts)
}

func (a *azureChatAdapter) HealthCheck(ctx context.Context) error {
	return a.client.healthCheck(ctx, a.cfg.Endpoint)
}
