package config

import (
	"sync"
	"time"

	"github.com/synod-ai/synod/pkg/models"
)

// Built-in model IDs referenced by the built-in presets. Operators can
// redefine them in models.yaml; the names stay stable so presets keep
// resolving.
const (
	DefaultModelID          = "gpt-4o"
	DefaultMiniModelID      = "gpt-4o-mini"
	DefaultReasoningModelID = "o3-mini"
)

// BuiltinConfig holds all built-in configuration data: default models,
// council presets, planning rules, and the length ladder.
type BuiltinConfig struct {
	Models  map[string]*ModelConfig
	Presets map[string]*PresetConfig
	Rules   []PlanRule
	Ladder  LengthLadder
}

var (
	builtinConfig     *BuiltinConfig
	builtinConfigOnce sync.Once
)

// GetBuiltinConfig returns the singleton built-in configuration (thread-safe, lazy-initialized)
func GetBuiltinConfig() *BuiltinConfig {
	builtinConfigOnce.Do(initBuiltinConfig)
	return builtinConfig
}

func initBuiltinConfig() {
	builtinConfig = &BuiltinConfig{
		Models:  initBuiltinModels(),
		Presets: initBuiltinPresets(),
		Rules:   initBuiltinRules(),
		Ladder:  LengthLadder{Short: 80, Medium: 250, Long: 600},
	}
}

func initBuiltinModels() map[string]*ModelConfig {
	return map[string]*ModelConfig{
		DefaultModelID: {
			Kind:               ProviderKindOpenAICompatible,
			Endpoint:           "https://api.openai.com",
			APIKeyEnv:          "OPENAI_API_KEY",
			MaxTokens:          4096,
			SupportsSchemaJSON: true,
			RequestTimeout:     Duration(60 * time.Second),
		},
		DefaultMiniModelID: {
			Kind:               ProviderKindOpenAICompatible,
			Endpoint:           "https://api.openai.com",
			APIKeyEnv:          "OPENAI_API_KEY",
			MaxTokens:          2048,
			SupportsSchemaJSON: true,
			RequestTimeout:     Duration(30 * time.Second),
		},
		DefaultReasoningModelID: {
			Kind:               ProviderKindOpenAICompatible,
			Endpoint:           "https://api.openai.com",
			APIKeyEnv:          "OPENAI_API_KEY",
			MaxTokens:          8192,
			Reasoning:          true,
			SupportsSchemaJSON: true,
			RequestTimeout:     Duration(120 * time.Second),
		},
	}
}

func initBuiltinPresets() map[string]*PresetConfig {
	return map[string]*PresetConfig{
		"small": {
			Size:         3,
			VotingMethod: models.VotingMethodMajority,
			Members: []PresetMember{
				{Role: models.RoleOpinionGiver, Model: DefaultMiniModelID},
				{Role: models.RoleReviewer, Model: DefaultMiniModelID},
				{Role: models.RoleSynthesizer, Model: DefaultModelID},
			},
		},
		"standard": {
			Size:         5,
			VotingMethod: models.VotingMethodWeighted,
			Members: []PresetMember{
				{Role: models.RoleOpinionGiver, Model: DefaultModelID},
				{Role: models.RoleDevilAdvocate, Model: DefaultMiniModelID},
				{Role: models.RoleReviewer, Model: DefaultMiniModelID},
				{Role: models.RoleSynthesizer, Model: DefaultModelID},
				{Role: models.RoleBackup, Model: DefaultMiniModelID},
			},
		},
		"reasoning": {
			Size:         5,
			VotingMethod: models.VotingMethodConfidence,
			Members: []PresetMember{
				{Role: models.RoleOpinionGiver, Model: DefaultReasoningModelID},
				{Role: models.RoleSkeptic, Model: DefaultReasoningModelID},
				{Role: models.RoleFactChecker, Model: DefaultModelID},
				{Role: models.RoleCritic, Model: DefaultMiniModelID},
				{Role: models.RoleSynthesizer, Model: DefaultReasoningModelID},
			},
		},
		"diverse": {
			Size:         7,
			VotingMethod: models.VotingMethodWeighted,
			Members: []PresetMember{
				{Role: models.RoleOpinionGiver, Model: DefaultModelID},
				{Role: models.RoleCreative, Model: DefaultModelID},
				{Role: models.RoleDevilAdvocate, Model: DefaultMiniModelID},
				{Role: models.RoleDomainExpert, Model: DefaultModelID, Weight: presetWeight(1.5)},
				{Role: models.RoleFactChecker, Model: DefaultMiniModelID},
				{Role: models.RoleSynthesizer, Model: DefaultModelID},
				{Role: models.RoleBackup, Model: DefaultMiniModelID},
			},
		},
	}
}

// initBuiltinRules returns the ordered built-in planning rules. First
// match wins; unmatched questions fall through to the length ladder.
func initBuiltinRules() []PlanRule {
	return []PlanRule{
		{
			Pattern:         `(?i)\b(prove|theorem|algorithm|complexity|step[- ]by[- ]step)\b`,
			Preset:          "reasoning",
			Complexity:      models.ComplexityComplex,
			AllowIterations: true,
		},
		{
			Pattern:         `(?i)\b(compare|trade-?offs?|pros and cons|versus|vs\.)\b`,
			Preset:          "diverse",
			Complexity:      models.ComplexityComplex,
			AllowIterations: true,
		},
		{
			Pattern:         `(?i)\b(design|architect(ure)?|migrate|refactor)\b`,
			Preset:          "standard",
			Complexity:      models.ComplexityModerate,
			AllowIterations: true,
		},
		{
			Pattern:    `(?i)^\s*(what is|what are|define|who is|when did)\b`,
			Preset:     "small",
			Complexity: models.ComplexitySimple,
		},
	}
}

func presetWeight(w float64) *float64 {
	return &w
}
