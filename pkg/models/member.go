package models

import "time"

// Member is one council participant: a model bound to a role, with an
// optional persona override and a voting weight.
type Member struct {
	ID      string  `json:"id"`
	Name    string  `json:"name"`
	Role    Role    `json:"role"`
	ModelID string  `json:"model_id"`
	Persona string  `json:"persona,omitempty"`
	Weight  float64 `json:"weight"`
	// IsActive marks members that participate in stages. Backups start
	// inactive and are activated one at a time during self-correction.
	IsActive bool `json:"is_active"`
	IsBackup bool `json:"is_backup"`
}

// TokenUsage accounts tokens consumed by a single model call.
type TokenUsage struct {
	Prompt     int `json:"prompt"`
	Completion int `json:"completion"`
	Total      int `json:"total"`
}

// MemberResponse is one member's answer within a stage.
type MemberResponse struct {
	MemberID   string     `json:"member_id"`
	MemberName string     `json:"member_name"`
	ModelID    string     `json:"model_id"`
	Content    string     `json:"content"`
	TokenUsage TokenUsage `json:"token_usage"`
	LatencyMs  int64      `json:"latency_ms"`
	Timestamp  time.Time  `json:"timestamp"`
}
