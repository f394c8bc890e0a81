package config

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"dario.cat/mergo"
	"gopkg.in/yaml.v3"

	"github.com/synod-ai/synod/pkg/models"
)

// SynodYAMLConfig represents the complete synod.yaml file structure
type SynodYAMLConfig struct {
	System   *SystemYAMLConfig `yaml:"system"`
	Planner  *PlannerConfig    `yaml:"planner"`
	Defaults *RunDefaults      `yaml:"defaults"`
}

// SystemYAMLConfig groups system-wide infrastructure settings.
type SystemYAMLConfig struct {
	Server    *ServerConfig    `yaml:"server"`
	Store     *StoreConfig     `yaml:"store"`
	Slack     *SlackConfig     `yaml:"slack"`
	Retention *RetentionConfig `yaml:"retention"`
	Log       *LogConfig       `yaml:"log"`
}

// ModelsYAMLConfig represents the complete models.yaml file structure
type ModelsYAMLConfig struct {
	Models map[string]*ModelConfig `yaml:"models"`
}

// Initialize loads, validates, and returns ready-to-use configuration.
// This is the primary entry point for configuration loading.
//
// Steps performed:
//  1. Load YAML files from configDir
//  2. Expand environment variables
//  3. Parse YAML into structs
//  4. Merge built-in + user-defined configurations
//  5. Build in-memory registries
//  6. Apply default values
//  7. Validate all configuration
//  8. Return Config ready for use
func Initialize(ctx context.Context, configDir string) (*Config, error) {
	log := slog.With("config_dir", configDir)
	log.Info("Initializing configuration")

	cfg, err := load(ctx, configDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	stats := cfg.Stats()
	log.Info("Configuration initialized successfully",
		"models", stats.Models,
		"presets", stats.Presets,
		"rules", stats.Rules)

	return cfg, nil
}

// load is the internal loader (not exported)
func load(_ context.Context, configDir string) (*Config, error) {
	loader := &configLoader{
		configDir: configDir,
	}

	// 1. Load synod.yaml (system, planner, defaults)
	synodConfig, err := loader.loadSynodYAML()
	if err != nil {
		return nil, NewLoadError("synod.yaml", err)
	}

	// 2. Load models.yaml (optional; built-in models apply without it)
	userModels, err := loader.loadModelsYAML()
	if err != nil {
		return nil, NewLoadError("models.yaml", err)
	}

	// 3. Get built-in configuration
	builtin := GetBuiltinConfig()

	// 4. Merge built-in + user-defined components (user overrides built-in)
	modelConfigs := mergeModels(builtin.Models, userModels)
	planner := resolvePlannerConfig(builtin, synodConfig.Planner)

	// 5. Build registries
	modelRegistry := NewModelRegistry(modelConfigs)
	presetRegistry := NewPresetRegistry(planner.Presets)

	// 6. Resolve run defaults (YAML overrides built-in)
	runDefaults := synodConfig.Defaults.RunConfig()

	// 7. Resolve system config. Server and store merge user YAML over
	// defaults; slack, retention, and log need field-level resolution
	// because their bool zero values are meaningful.
	serverCfg := DefaultServerConfig()
	storeCfg := DefaultStoreConfig()
	if synodConfig.System != nil {
		if synodConfig.System.Server != nil {
			if err := mergo.Merge(serverCfg, synodConfig.System.Server, mergo.WithOverride); err != nil {
				return nil, fmt.Errorf("failed to merge server config: %w", err)
			}
		}
		if synodConfig.System.Store != nil {
			if err := mergo.Merge(storeCfg, synodConfig.System.Store, mergo.WithOverride); err != nil {
				return nil, fmt.Errorf("failed to merge store config: %w", err)
			}
		}
	}
	slackCfg := resolveSlackConfig(synodConfig.System)
	retentionCfg := resolveRetentionConfig(synodConfig.System)
	logCfg := resolveLogConfig(synodConfig.System)

	return &Config{
		configDir:      configDir,
		Defaults:       runDefaults,
		Planner:        planner,
		Server:         serverCfg,
		Store:          storeCfg,
		Slack:          slackCfg,
		Retention:      retentionCfg,
		Log:            logCfg,
		ModelRegistry:  modelRegistry,
		PresetRegistry: presetRegistry,
	}, nil
}

// validate performs comprehensive validation on loaded configuration
func validate(cfg *Config) error {
	validator := NewValidator(cfg)
	return validator.ValidateAll()
}

type configLoader struct {
	configDir string
}

func (l *configLoader) loadYAML(filename string, required bool, target any) error {
	path := filepath.Join(l.configDir, filename)

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			if !required {
				return nil
			}
			return fmt.Errorf("%w: %s", ErrConfigNotFound, path)
		}
		return err
	}

	// Expand environment variables using {{.VAR}} template syntax.
	// ExpandEnv passes original data through on parse/execution errors,
	// letting the YAML parser produce the clearer error message.
	data = ExpandEnv(data)

	if err := yaml.Unmarshal(data, target); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidYAML, err)
	}

	return nil
}

func (l *configLoader) loadSynodYAML() (*SynodYAMLConfig, error) {
	var config SynodYAMLConfig

	if err := l.loadYAML("synod.yaml", true, &config); err != nil {
		return nil, err
	}

	return &config, nil
}

func (l *configLoader) loadModelsYAML() (map[string]*ModelConfig, error) {
	var config ModelsYAMLConfig

	// Initialize map to avoid nil map
	config.Models = make(map[string]*ModelConfig)

	if err := l.loadYAML("models.yaml", false, &config); err != nil {
		return nil, err
	}

	return config.Models, nil
}

// mergeModels combines built-in and user-defined models; a user model
// under a built-in ID replaces it entirely.
func mergeModels(builtin map[string]*ModelConfig, user map[string]*ModelConfig) map[string]*ModelConfig {
	merged := make(map[string]*ModelConfig, len(builtin)+len(user))
	for id, m := range builtin {
		merged[id] = m
	}
	for id, m := range user {
		merged[id] = m
	}
	return merged
}

// resolvePlannerConfig resolves planner configuration, applying built-in
// rules, presets, and ladder for anything the YAML leaves unset. User
// rules are matched before built-in rules; user presets override
// built-in presets by name.
func resolvePlannerConfig(builtin *BuiltinConfig, user *PlannerConfig) *PlannerConfig {
	cfg := &PlannerConfig{
		Mode:    models.PlannerModeHybrid,
		Rules:   builtin.Rules,
		Ladder:  builtin.Ladder,
		Presets: make(map[string]*PresetConfig, len(builtin.Presets)),
	}
	for name, p := range builtin.Presets {
		cfg.Presets[name] = p
	}

	if user == nil {
		return cfg
	}

	if user.Mode != "" {
		cfg.Mode = user.Mode
	}
	cfg.PlannerModel = user.PlannerModel
	if len(user.Rules) > 0 {
		cfg.Rules = append(append([]PlanRule{}, user.Rules...), builtin.Rules...)
	}
	if user.Ladder.Short > 0 {
		cfg.Ladder.Short = user.Ladder.Short
	}
	if user.Ladder.Medium > 0 {
		cfg.Ladder.Medium = user.Ladder.Medium
	}
	if user.Ladder.Long > 0 {
		cfg.Ladder.Long = user.Ladder.Long
	}
	for name, p := range user.Presets {
		cfg.Presets[name] = p
	}

	return cfg
}

// resolveSlackConfig resolves Slack configuration from system YAML, applying defaults.
func resolveSlackConfig(sys *SystemYAMLConfig) *SlackConfig {
	cfg := &SlackConfig{
		Enabled:     false,
		BotTokenEnv: "SLACK_BOT_TOKEN",
	}

	if sys == nil || sys.Slack == nil {
		return cfg
	}

	s := sys.Slack
	cfg.Enabled = s.Enabled
	if s.BotTokenEnv != "" {
		cfg.BotTokenEnv = s.BotTokenEnv
	}
	if s.Channel != "" {
		cfg.Channel = s.Channel
	}
	if s.BaseURL != "" {
		cfg.BaseURL = s.BaseURL
	}

	return cfg
}

// resolveRetentionConfig resolves retention configuration from system YAML, applying defaults.
func resolveRetentionConfig(sys *SystemYAMLConfig) *RetentionConfig {
	cfg := DefaultRetentionConfig()

	if sys == nil || sys.Retention == nil {
		return cfg
	}

	r := sys.Retention
	cfg.Enabled = r.Enabled
	if r.MaxAge > 0 {
		cfg.MaxAge = r.MaxAge
	}
	if r.CheckInterval > 0 {
		cfg.CheckInterval = r.CheckInterval
	}

	return cfg
}

// resolveLogConfig resolves logging configuration from system YAML, applying defaults.
func resolveLogConfig(sys *SystemYAMLConfig) *LogConfig {
	cfg := DefaultLogConfig()

	if sys == nil || sys.Log == nil {
		return cfg
	}

	l := sys.Log
	if l.Level != "" {
		cfg.Level = l.Level
	}
	if l.Format != "" {
		cfg.Format = l.Format
	}

	return cfg
}
