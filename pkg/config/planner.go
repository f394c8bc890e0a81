package config

import (
	"fmt"
	"sort"
	"sync"

	"github.com/synod-ai/synod/pkg/models"
)

// PlannerConfig controls how council plans are produced.
type PlannerConfig struct {
	// Mode selects static, model, or hybrid planning.
	Mode models.PlannerMode `yaml:"mode,omitempty"`

	// PlannerModel names the model used for model-mode planning. Required
	// for mode "model"; optional for "hybrid" (static-only when absent).
	PlannerModel string `yaml:"planner_model,omitempty"`

	// Rules are matched against the question in order; first match wins.
	Rules []PlanRule `yaml:"rules,omitempty"`

	// Ladder grades unmatched questions by length.
	Ladder LengthLadder `yaml:"length_ladder,omitempty"`

	// Presets may override or extend the built-in council presets.
	Presets map[string]*PresetConfig `yaml:"presets,omitempty"`
}

// PlanRule maps a question pattern to a preset.
type PlanRule struct {
	// Pattern is a case-insensitive regular expression.
	Pattern string `yaml:"pattern"`
	// Preset names the council preset applied on match.
	Preset string `yaml:"preset"`
	// Complexity grades questions hitting this rule.
	Complexity models.Complexity `yaml:"complexity,omitempty"`
	// AllowIterations enables the refinement loop for this rule.
	AllowIterations bool `yaml:"allow_iterations,omitempty"`
}

// LengthLadder holds the question-length thresholds (in characters) used
// when no rule matches: below Short picks the small preset, below Medium
// the standard preset, below Long standard with iterations, and anything
// longer the diverse preset with iterations.
type LengthLadder struct {
	Short  int `yaml:"short,omitempty"`
	Medium int `yaml:"medium,omitempty"`
	Long   int `yaml:"long,omitempty"`
}

// PresetConfig is a fixed council composition.
type PresetConfig struct {
	Size         int                 `yaml:"size"`
	VotingMethod models.VotingMethod `yaml:"voting_method"`
	Members      []PresetMember      `yaml:"members"`
}

// PresetMember is one seat of a preset council.
type PresetMember struct {
	Role    models.Role `yaml:"role"`
	Model   string      `yaml:"model"`
	Weight  *float64    `yaml:"weight,omitempty"`
	Persona string      `yaml:"persona,omitempty"`
}

// PresetRegistry provides thread-safe access to council presets.
type PresetRegistry struct {
	mu      sync.RWMutex
	presets map[string]*PresetConfig
}

// NewPresetRegistry creates a registry from a preset map.
func NewPresetRegistry(presets map[string]*PresetConfig) *PresetRegistry {
	if presets == nil {
		presets = make(map[string]*PresetConfig)
	}
	return &PresetRegistry{presets: presets}
}

// Get retrieves a preset by name.
func (r *PresetRegistry) Get(name string) (*PresetConfig, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	preset, ok := r.presets[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrPresetNotFound, name)
	}
	return preset, nil
}

// GetAll returns a copy of all presets.
func (r *PresetRegistry) GetAll() map[string]*PresetConfig {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make(map[string]*PresetConfig, len(r.presets))
	for name, p := range r.presets {
		result[name] = p
	}
	return result
}

// Has reports whether a preset exists.
func (r *PresetRegistry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.presets[name]
	return ok
}

// Len returns the number of registered presets.
func (r *PresetRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.presets)
}

// Names returns a sorted list of preset names.
func (r *PresetRegistry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.presets))
	for name := range r.presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
