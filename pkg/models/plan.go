package models

// PlanMember describes one seat of a planned council.
type PlanMember struct {
	Model   string   `json:"model"`
	Role    Role     `json:"role"`
	Persona string   `json:"persona,omitempty"`
	Weight  *float64 `json:"weight,omitempty"`
}

// CouncilPlan is the planner's description of how to deliberate a question:
// who sits on the council, how they vote, and whether iteration is allowed.
type CouncilPlan struct {
	Complexity        Complexity        `json:"complexity"`
	Domain            string            `json:"domain"`
	Reasoning         string            `json:"reasoning"`
	CouncilSize       int               `json:"council_size"`
	Members           []PlanMember      `json:"members"`
	VotingMethod      VotingMethod      `json:"voting_method"`
	AllowIterations   bool              `json:"allow_iterations"`
	MaxIterations     int               `json:"max_iterations"`
	IterationStrategy IterationStrategy `json:"iteration_strategy"`
}

// IterationConfig bounds the deliberation loop.
type IterationConfig struct {
	Enabled              bool              `json:"enabled"`
	MaxIterations        int               `json:"max_iterations"`
	MaxTotalTokens       int               `json:"max_total_tokens"`
	MaxDurationMs        int64             `json:"max_duration_ms"`
	MaxDepth             int               `json:"max_depth"`
	ConvergenceThreshold float64           `json:"convergence_threshold"`
	ImprovementThreshold float64           `json:"improvement_threshold"`
	Strategy             IterationStrategy `json:"strategy"`
}

// MemoryConfig controls inter-iteration context carry-over.
type MemoryConfig struct {
	Enabled              bool   `json:"enabled"`
	CompressionEnabled   bool   `json:"compression_enabled"`
	MaxContextTokens     int    `json:"max_context_tokens"`
	PersistConsensus     bool   `json:"persist_consensus"`
	PersistDisagreements bool   `json:"persist_disagreements"`
	PersistKeyInsights   bool   `json:"persist_key_insights"`
	LongTermEnabled      bool   `json:"long_term_enabled"`
	CompressorModel      string `json:"compressor_model,omitempty"`
}

// SessionConfig controls per-session execution behavior.
type SessionConfig struct {
	SelfCorrectionEnabled   bool    `json:"self_correction_enabled"`
	SelfCorrectionThreshold float64 `json:"self_correction_threshold"`
	MaxCorrectionRounds     int     `json:"max_correction_rounds"`
	ParallelExecution       bool    `json:"parallel_execution"`
	TimeoutMs               int64   `json:"timeout_ms"`
	DebugMode               bool    `json:"debug_mode"`
}

// RunConfig is the effective configuration a session ran with.
type RunConfig struct {
	Session   SessionConfig   `json:"session"`
	Iteration IterationConfig `json:"iteration"`
	Memory    MemoryConfig    `json:"memory"`
}
