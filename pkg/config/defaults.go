package config

import (
	"time"

	"github.com/synod-ai/synod/pkg/models"
)

// Built-in fallbacks applied when synod.yaml leaves run settings unset.
const (
	DefaultMaxIterations           = 3
	DefaultMaxTotalTokens          = 50000
	DefaultMaxRunDuration          = 5 * time.Minute
	DefaultConvergenceThreshold    = 0.85
	DefaultImprovementThreshold    = 0.02
	DefaultMaxContextTokens        = 4000
	DefaultSelfCorrectionThreshold = 0.6
	DefaultMaxCorrectionRounds     = 2
	DefaultSessionTimeout          = 10 * time.Minute
)

// RunDefaults is the `defaults` block of synod.yaml: per-run settings
// applied to sessions that do not override them. Unset fields fall back
// to the built-in constants above.
type RunDefaults struct {
	Session   SessionDefaults   `yaml:"session,omitempty"`
	Iteration IterationDefaults `yaml:"iteration,omitempty"`
	Memory    MemoryDefaults    `yaml:"memory,omitempty"`
}

// SessionDefaults tunes self-correction and member scheduling.
type SessionDefaults struct {
	SelfCorrectionEnabled   *bool    `yaml:"self_correction_enabled,omitempty"`
	SelfCorrectionThreshold *float64 `yaml:"self_correction_threshold,omitempty"`
	MaxCorrectionRounds     *int     `yaml:"max_correction_rounds,omitempty"`
	ParallelExecution       *bool    `yaml:"parallel_execution,omitempty"`
	Timeout                 Duration `yaml:"timeout,omitempty"`
	DebugMode               bool     `yaml:"debug_mode,omitempty"`
}

// IterationDefaults bounds the refinement loop.
type IterationDefaults struct {
	MaxIterations        *int                     `yaml:"max_iterations,omitempty"`
	MaxTotalTokens       *int                     `yaml:"max_total_tokens,omitempty"`
	MaxDuration          Duration                 `yaml:"max_duration,omitempty"`
	ConvergenceThreshold *float64                 `yaml:"convergence_threshold,omitempty"`
	ImprovementThreshold *float64                 `yaml:"improvement_threshold,omitempty"`
	Strategy             models.IterationStrategy `yaml:"strategy,omitempty"`
}

// MemoryDefaults tunes inter-iteration context carry-over.
type MemoryDefaults struct {
	Enabled            *bool  `yaml:"enabled,omitempty"`
	CompressionEnabled *bool  `yaml:"compression_enabled,omitempty"`
	MaxContextTokens   *int   `yaml:"max_context_tokens,omitempty"`
	LongTermEnabled    bool   `yaml:"long_term_enabled,omitempty"`
	CompressorModel    string `yaml:"compressor_model,omitempty"`
}

// RunConfig resolves the YAML defaults into an effective models.RunConfig.
// A nil receiver yields the pure built-in defaults.
func (d *RunDefaults) RunConfig() models.RunConfig {
	cfg := models.RunConfig{
		Session: models.SessionConfig{
			SelfCorrectionEnabled:   true,
			SelfCorrectionThreshold: DefaultSelfCorrectionThreshold,
			MaxCorrectionRounds:     DefaultMaxCorrectionRounds,
			ParallelExecution:       true,
			TimeoutMs:               DefaultSessionTimeout.Milliseconds(),
		},
		Iteration: models.IterationConfig{
			MaxIterations:        DefaultMaxIterations,
			MaxTotalTokens:       DefaultMaxTotalTokens,
			MaxDurationMs:        DefaultMaxRunDuration.Milliseconds(),
			MaxDepth:             DefaultMaxIterations,
			ConvergenceThreshold: DefaultConvergenceThreshold,
			ImprovementThreshold: DefaultImprovementThreshold,
			Strategy:             models.IterationStrategyRefine,
		},
		Memory: models.MemoryConfig{
			Enabled:              true,
			CompressionEnabled:   true,
			MaxContextTokens:     DefaultMaxContextTokens,
			PersistConsensus:     true,
			PersistDisagreements: true,
			PersistKeyInsights:   true,
		},
	}
	if d == nil {
		return cfg
	}

	s := d.Session
	if s.SelfCorrectionEnabled != nil {
		cfg.Session.SelfCorrectionEnabled = *s.SelfCorrectionEnabled
	}
	if s.SelfCorrectionThreshold != nil {
		cfg.Session.SelfCorrectionThreshold = *s.SelfCorrectionThreshold
	}
	if s.MaxCorrectionRounds != nil {
		cfg.Session.MaxCorrectionRounds = *s.MaxCorrectionRounds
	}
	if s.ParallelExecution != nil {
		cfg.Session.ParallelExecution = *s.ParallelExecution
	}
	if s.Timeout > 0 {
		cfg.Session.TimeoutMs = s.Timeout.Std().Milliseconds()
	}
	cfg.Session.DebugMode = s.DebugMode

	i := d.Iteration
	if i.MaxIterations != nil {
		cfg.Iteration.MaxIterations = *i.MaxIterations
		cfg.Iteration.MaxDepth = *i.MaxIterations
	}
	if i.MaxTotalTokens != nil {
		cfg.Iteration.MaxTotalTokens = *i.MaxTotalTokens
	}
	if i.MaxDuration > 0 {
		cfg.Iteration.MaxDurationMs = i.MaxDuration.Std().Milliseconds()
	}
	if i.ConvergenceThreshold != nil {
		cfg.Iteration.ConvergenceThreshold = *i.ConvergenceThreshold
	}
	if i.ImprovementThreshold != nil {
		cfg.Iteration.ImprovementThreshold = *i.ImprovementThreshold
	}
	if i.Strategy != "" {
		cfg.Iteration.Strategy = i.Strategy
	}

	m := d.Memory
	if m.Enabled != nil {
		cfg.Memory.Enabled = *m.Enabled
	}
	if m.CompressionEnabled != nil {
		cfg.Memory.CompressionEnabled = *m.CompressionEnabled
	}
	if m.MaxContextTokens != nil {
		cfg.Memory.MaxContextTokens = *m.MaxContextTokens
	}
	cfg.Memory.LongTermEnabled = m.LongTermEnabled
	cfg.Memory.CompressorModel = m.CompressorModel

	return cfg
}

// DefaultServerConfig returns the built-in HTTP listener settings.
func DefaultServerConfig() *ServerConfig {
	return &ServerConfig{
		Host:                  "0.0.0.0",
		Port:                  8080,
		ReadTimeout:           Duration(30 * time.Second),
		WriteTimeout:          Duration(30 * time.Second),
		ShutdownTimeout:       Duration(10 * time.Second),
		MaxConcurrentSessions: 10,
	}
}

// DefaultStoreConfig returns the built-in session store settings.
func DefaultStoreConfig() *StoreConfig {
	return &StoreConfig{
		Backend:      "memory",
		MaxOpenConns: 10,
		MaxIdleConns: 5,
	}
}

// DefaultRetentionConfig returns the built-in retention settings.
func DefaultRetentionConfig() *RetentionConfig {
	return &RetentionConfig{
		Enabled:       true,
		MaxAge:        Duration(30 * 24 * time.Hour),
		CheckInterval: Duration(1 * time.Hour),
	}
}

// DefaultLogConfig returns the built-in logging settings.
func DefaultLogConfig() *LogConfig {
	return &LogConfig{
		Level:  "info",
		Format: "json",
	}
}
