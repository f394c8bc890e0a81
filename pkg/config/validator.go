package config

import (
	"fmt"
	"os"
	"regexp"

	"github.com/synod-ai/synod/pkg/models"
)

// ConfigValidator validates configuration comprehensively with clear error messages
type ConfigValidator struct {
	cfg *Config
}

// NewValidator creates a validator for the given configuration
func NewValidator(cfg *Config) *ConfigValidator {
	return &ConfigValidator{cfg: cfg}
}

// ValidateAll performs comprehensive validation (fail-fast - stops at first error)
func (v *ConfigValidator) ValidateAll() error {
	// Validate in order: models → presets → rules → planner → defaults → system
	// This ensures referenced components are validated before their referrers

	if err := v.validateModels(); err != nil {
		return fmt.Errorf("model validation failed: %w", err)
	}

	if err := v.validatePresets(); err != nil {
		return fmt.Errorf("preset validation failed: %w", err)
	}

	if err := v.validateRules(); err != nil {
		return fmt.Errorf("rule validation failed: %w", err)
	}

	if err := v.validatePlanner(); err != nil {
		return fmt.Errorf("planner validation failed: %w", err)
	}

	if err := v.validateDefaults(); err != nil {
		return fmt.Errorf("defaults validation failed: %w", err)
	}

	if err := v.validateSystem(); err != nil {
		return fmt.Errorf("system validation failed: %w", err)
	}

	return nil
}

func (v *ConfigValidator) validateModels() error {
	for id, model := range v.cfg.ModelRegistry.GetAll() {
		if !model.Kind.IsValid() {
			return NewValidationError("model", id, "kind", fmt.Errorf("invalid provider kind: %s", model.Kind))
		}

		if model.Endpoint == "" {
			return NewValidationError("model", id, "endpoint", ErrMissingRequiredField)
		}

		// azure-chat routes by deployment name; openai-compatible
		// falls back to the model ID when deployment is empty
		if model.Kind == ProviderKindAzureChat && model.Deployment == "" {
			return NewValidationError("model", id, "deployment", ErrMissingRequiredField)
		}

		if model.MaxTokens < 1 {
			return NewValidationError("model", id, "max_tokens", fmt.Errorf("must be at least 1"))
		}

		if t := model.DefaultTemperature; t != nil {
			if model.Reasoning {
				return NewValidationError("model", id, "default_temperature", fmt.Errorf("not allowed for reasoning models"))
			}
			if *t < 0 || *t > 2 {
				return NewValidationError("model", id, "default_temperature", fmt.Errorf("must be between 0 and 2"))
			}
		}

		// Fail fast on missing credentials rather than at first request
		if model.APIKeyEnv != "" {
			if value := os.Getenv(model.APIKeyEnv); value == "" {
				return NewValidationError("model", id, "api_key_env", fmt.Errorf("environment variable %s is not set", model.APIKeyEnv))
			}
		}
	}

	return nil
}

func (v *ConfigValidator) validatePresets() error {
	for name, preset := range v.cfg.PresetRegistry.GetAll() {
		if preset.Size < 3 || preset.Size > 9 {
			return NewValidationError("preset", name, "size", fmt.Errorf("must be between 3 and 9"))
		}

		if len(preset.Members) != preset.Size {
			return NewValidationError("preset", name, "members", fmt.Errorf("expected %d members, got %d", preset.Size, len(preset.Members)))
		}

		if !preset.VotingMethod.IsValid() {
			return NewValidationError("preset", name, "voting_method", fmt.Errorf("invalid voting method: %s", preset.VotingMethod))
		}

		hasSynthesizer := false
		for i, member := range preset.Members {
			field := fmt.Sprintf("members[%d]", i)

			if !member.Role.IsValid() {
				return NewValidationError("preset", name, field+".role", fmt.Errorf("invalid role: %s", member.Role))
			}
			if member.Role == models.RoleSynthesizer {
				hasSynthesizer = true
			}

			if member.Model == "" {
				return NewValidationError("preset", name, field+".model", ErrMissingRequiredField)
			}
			if !v.cfg.ModelRegistry.Has(member.Model) {
				return NewValidationError("preset", name, field+".model", fmt.Errorf("%w: %s", ErrModelNotFound, member.Model))
			}

			if member.Weight != nil && (*member.Weight < 0 || *member.Weight > 2) {
				return NewValidationError("preset", name, field+".weight", fmt.Errorf("must be between 0 and 2"))
			}
		}

		if !hasSynthesizer {
			return NewValidationError("preset", name, "members", fmt.Errorf("at least one synthesizer required"))
		}
	}

	return nil
}

func (v *ConfigValidator) validateRules() error {
	for i, rule := range v.cfg.Planner.Rules {
		id := fmt.Sprintf("%d", i)

		if rule.Pattern == "" {
			return NewValidationError("rule", id, "pattern", ErrMissingRequiredField)
		}
		if _, err := regexp.Compile(rule.Pattern); err != nil {
			return NewValidationError("rule", id, "pattern", fmt.Errorf("invalid regex: %v", err))
		}

		if rule.Preset == "" {
			return NewValidationError("rule", id, "preset", ErrMissingRequiredField)
		}
		if !v.cfg.PresetRegistry.Has(rule.Preset) {
			return NewValidationError("rule", id, "preset", fmt.Errorf("%w: %s", ErrPresetNotFound, rule.Preset))
		}

		if rule.Complexity != "" && !rule.Complexity.IsValid() {
			return NewValidationError("rule", id, "complexity", fmt.Errorf("invalid complexity: %s", rule.Complexity))
		}
	}

	return nil
}

func (v *ConfigValidator) validatePlanner() error {
	p := v.cfg.Planner

	if !p.Mode.IsValid() {
		return NewValidationError("planner", string(p.Mode), "mode", fmt.Errorf("invalid planner mode: %s", p.Mode))
	}

	if p.Mode == models.PlannerModeModel && p.PlannerModel == "" {
		return NewValidationError("planner", string(p.Mode), "planner_model", fmt.Errorf("required for model mode"))
	}

	if p.PlannerModel != "" {
		model, err := v.cfg.ModelRegistry.Get(p.PlannerModel)
		if err != nil {
			return NewValidationError("planner", string(p.Mode), "planner_model", err)
		}
		// Model-mode planning relies on strict structured output
		if !model.SupportsSchemaJSON {
			return NewValidationError("planner", string(p.Mode), "planner_model", fmt.Errorf("model %s does not support schema JSON", p.PlannerModel))
		}
	}

	ladder := p.Ladder
	if ladder.Short <= 0 || ladder.Medium <= ladder.Short || ladder.Long <= ladder.Medium {
		return NewValidationError("planner", string(p.Mode), "length_ladder", fmt.Errorf("thresholds must be increasing and positive"))
	}

	return nil
}

func (v *ConfigValidator) validateDefaults() error {
	d := v.cfg.Defaults

	if d.Session.SelfCorrectionThreshold < 0 || d.Session.SelfCorrectionThreshold > 1 {
		return NewValidationError("defaults", "session", "self_correction_threshold", fmt.Errorf("must be between 0 and 1"))
	}
	if d.Session.MaxCorrectionRounds < 0 {
		return NewValidationError("defaults", "session", "max_correction_rounds", fmt.Errorf("must not be negative"))
	}
	if d.Session.TimeoutMs <= 0 {
		return NewValidationError("defaults", "session", "timeout", fmt.Errorf("must be positive"))
	}

	if d.Iteration.MaxIterations < 1 || d.Iteration.MaxIterations > 5 {
		return NewValidationError("defaults", "iteration", "max_iterations", fmt.Errorf("must be between 1 and 5"))
	}
	if d.Iteration.ConvergenceThreshold < 0 || d.Iteration.ConvergenceThreshold > 1 {
		return NewValidationError("defaults", "iteration", "convergence_threshold", fmt.Errorf("must be between 0 and 1"))
	}
	if d.Iteration.Strategy != "" && !d.Iteration.Strategy.IsValid() {
		return NewValidationError("defaults", "iteration", "strategy", fmt.Errorf("invalid strategy: %s", d.Iteration.Strategy))
	}

	if d.Memory.MaxContextTokens < 1 {
		return NewValidationError("defaults", "memory", "max_context_tokens", fmt.Errorf("must be at least 1"))
	}
	if d.Memory.CompressorModel != "" && !v.cfg.ModelRegistry.Has(d.Memory.CompressorModel) {
		return NewValidationError("defaults", "memory", "compressor_model", fmt.Errorf("%w: %s", ErrModelNotFound, d.Memory.CompressorModel))
	}

	return nil
}

func (v *ConfigValidator) validateSystem() error {
	switch v.cfg.Store.Backend {
	case "memory":
	case "postgres":
		if v.cfg.Store.DSN == "" {
			return NewValidationError("store", v.cfg.Store.Backend, "dsn", fmt.Errorf("required for postgres backend"))
		}
	default:
		return NewValidationError("store", v.cfg.Store.Backend, "backend", fmt.Errorf("must be memory or postgres"))
	}

	switch v.cfg.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return NewValidationError("log", v.cfg.Log.Level, "level", fmt.Errorf("must be debug, info, warn, or error"))
	}

	switch v.cfg.Log.Format {
	case "json", "text":
	default:
		return NewValidationError("log", v.cfg.Log.Format, "format", fmt.Errorf("must be json or text"))
	}

	if v.cfg.Server.Port < 1 || v.cfg.Server.Port > 65535 {
		return NewValidationError("server", "http", "port", fmt.Errorf("must be between 1 and 65535"))
	}

	return nil
}
