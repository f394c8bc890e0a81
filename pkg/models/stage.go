package models

import "time"

// StageResult captures one completed pipeline stage.
type StageResult struct {
	Stage        Stage            `json:"stage"`
	Responses    []MemberResponse `json:"responses"`
	VotingResult *VotingResult    `json:"voting_result,omitempty"`
	StartTime    time.Time        `json:"start_time"`
	EndTime      time.Time        `json:"end_time"`
	DurationMs   int64            `json:"duration_ms"`
}

// TotalTokens sums the token usage of every response in the stage.
func (s *StageResult) TotalTokens() int {
	total := 0
	for _, r := range s.Responses {
		total += r.TokenUsage.Total
	}
	return total
}

// IterationSnapshot records the outcome of one deliberation iteration.
type IterationSnapshot struct {
	Number     int     `json:"number"`
	Confidence float64 `json:"confidence"`
	TokensUsed int     `json:"tokens_used"`
	DurationMs int64   `json:"duration_ms"`
}
