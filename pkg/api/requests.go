package api

import "github.com/synod-ai/synod/pkg/models"

// SubmitCouncilRequest is the HTTP request body for POST /api/v1/councils.
type SubmitCouncilRequest struct {
	Question string          `json:"question"`
	Options  *CouncilOptions `json:"options,omitempty"`
}

// CouncilOptions carries per-run overrides. All fields are optional;
// omitted ones fall back to server defaults.
type CouncilOptions struct {
	// PlannerMode overrides the configured planning mode for this run.
	PlannerMode models.PlannerMode `json:"planner_mode,omitempty"`
	// Plan bypasses the planner entirely. Clamped like any planner output.
	Plan *models.CouncilPlan `json:"plan,omitempty"`

	Iteration *models.IterationConfig `json:"iteration,omitempty"`
	Memory    *models.MemoryConfig    `json:"memory,omitempty"`
	Session   *models.SessionConfig   `json:"session,omitempty"`
}
