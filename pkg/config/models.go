package config

import (
	"fmt"
	"sort"
	"sync"
)

// ProviderKind selects the adapter implementation for a model.
type ProviderKind string

const (
	// ProviderKindAzureChat targets Azure-style chat completion deployments.
	ProviderKindAzureChat ProviderKind = "azure-chat"
	// ProviderKindOpenAICompatible targets OpenAI-compatible serverless endpoints.
	ProviderKindOpenAICompatible ProviderKind = "openai-compatible"
)

// IsValid checks if the provider kind is supported.
func (k ProviderKind) IsValid() bool {
	return k == ProviderKindAzureChat || k == ProviderKindOpenAICompatible
}

// ModelConfig defines one language model available to councils.
type ModelConfig struct {
	// ID is the model's registry key; assigned from the map key at load.
	ID string `yaml:"-"`

	// Kind selects the adapter implementation (required).
	Kind ProviderKind `yaml:"kind"`

	// Deployment is the provider-side model or deployment name (required).
	Deployment string `yaml:"deployment"`

	// Endpoint is the provider base URL (required).
	Endpoint string `yaml:"endpoint"`

	// APIKeyEnv names the environment variable holding the API key.
	APIKeyEnv string `yaml:"api_key_env"`

	// APIVersion is the query parameter used by azure-chat deployments.
	APIVersion string `yaml:"api_version,omitempty"`

	// Reasoning marks models that reject sampling controls. Requests to
	// these models must omit temperature, top_p, and stop.
	Reasoning bool `yaml:"reasoning,omitempty"`

	// SupportsSchemaJSON marks models that honor strict json_schema output.
	SupportsSchemaJSON bool `yaml:"supports_schema_json,omitempty"`

	// MaxTokens is the completion token ceiling for this model.
	MaxTokens int `yaml:"max_tokens,omitempty"`

	// DefaultTemperature is used when a request does not set one.
	DefaultTemperature *float64 `yaml:"default_temperature,omitempty"`

	// RequestTimeout bounds a single completion call. Zero uses the
	// adapter default.
	RequestTimeout Duration `yaml:"request_timeout,omitempty"`

	// Informational pricing per 1K tokens; not used by any decision.
	InputPricePer1K  float64 `yaml:"input_price_per_1k,omitempty"`
	OutputPricePer1K float64 `yaml:"output_price_per_1k,omitempty"`
}

// ModelRegistry stores model configurations with thread-safe access.
type ModelRegistry struct {
	models map[string]*ModelConfig
	mu     sync.RWMutex
}

// NewModelRegistry creates a registry from the given models, stamping
// each entry's ID from its map key. The map is copied so later external
// mutation cannot corrupt the registry.
func NewModelRegistry(models map[string]*ModelConfig) *ModelRegistry {
	copied := make(map[string]*ModelConfig, len(models))
	for id, m := range models {
		m.ID = id
		copied[id] = m
	}
	return &ModelRegistry{models: copied}
}

// Get retrieves a model configuration by id.
func (r *ModelRegistry) Get(id string) (*ModelConfig, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	m, ok := r.models[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrModelNotFound, id)
	}
	return m, nil
}

// GetAll returns a copy of all model configurations.
func (r *ModelRegistry) GetAll() map[string]*ModelConfig {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make(map[string]*ModelConfig, len(r.models))
	for id, m := range r.models {
		result[id] = m
	}
	return result
}

// Has checks if a model id exists in the registry.
func (r *ModelRegistry) Has(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.models[id]
	return ok
}

// Len returns the number of registered models.
func (r *ModelRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.models)
}

// IDs returns all model ids in sorted order.
func (r *ModelRegistry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.models))
	for id := range r.models {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
