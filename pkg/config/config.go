package config

import "github.com/synod-ai/synod/pkg/models"

// Config is the umbrella configuration object that encapsulates all
// registries, defaults, and configuration state. This is the primary
// object returned by Initialize() and used throughout the application.
type Config struct {
	configDir string // Configuration directory path (for reference)

	// Per-run defaults resolved from YAML + built-ins
	Defaults models.RunConfig

	// Planner mode, rules, ladder, and planner model
	Planner *PlannerConfig

	// Infrastructure settings
	Server    *ServerConfig
	Store     *StoreConfig
	Slack     *SlackConfig
	Retention *RetentionConfig
	Log       *LogConfig

	// Component registries
	ModelRegistry  *ModelRegistry
	PresetRegistry *PresetRegistry
}

// Initialize is defined in loader.go

// Stats contains statistics about loaded configuration
type Stats struct {
	Models  int
	Presets int
	Rules   int
}

// Stats returns configuration statistics for logging/monitoring
func (c *Config) Stats() Stats {
	s := Stats{}
	if c.ModelRegistry != nil {
		s.Models = c.ModelRegistry.Len()
	}
	if c.PresetRegistry != nil {
		s.Presets = c.PresetRegistry.Len()
	}
	if c.Planner != nil {
		s.Rules = len(c.Planner.Rules)
	}
	return s
}

// ConfigDir returns the configuration directory path
func (c *Config) ConfigDir() string {
	return c.configDir
}

// GetModel retrieves a model configuration by ID.
// This is a convenience method that wraps ModelRegistry.Get().
func (c *Config) GetModel(id string) (*ModelConfig, error) {
	return c.ModelRegistry.Get(id)
}

// GetPreset retrieves a council preset by name.
// This is a convenience method that wraps PresetRegistry.Get().
func (c *Config) GetPreset(name string) (*PresetConfig, error) {
	return c.PresetRegistry.Get(name)
}

// AllModelIDs returns a sorted list of all configured model IDs.
func (c *Config) AllModelIDs() []string {
	return c.ModelRegistry.IDs()
}
