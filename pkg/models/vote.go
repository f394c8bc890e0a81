package models

import "time"

// Vote is one member's stance extracted from its voting-stage response.
type Vote struct {
	MemberID   string    `json:"member_id"`
	MemberName string    `json:"member_name"`
	Position   string    `json:"position"`
	Confidence float64   `json:"confidence"`
	Reasoning  string    `json:"reasoning"`
	Rank       []string  `json:"rank,omitempty"`
	Veto       bool      `json:"veto,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// VotingResult is the outcome of tallying one set of votes.
// Winner is nil when the active method's win condition was not met.
type VotingResult struct {
	Method           VotingMethod       `json:"method"`
	Winner           *string            `json:"winner"`
	Votes            []Vote             `json:"votes"`
	Breakdown        map[string]float64 `json:"breakdown"`
	ConfidenceAvg    float64            `json:"confidence_avg"`
	ConsensusReached bool               `json:"consensus_reached"`
	RoundsNeeded     int                `json:"rounds_needed"`
	Metadata         map[string]any     `json:"metadata,omitempty"`
}

// WinnerOrEmpty returns the winning position or "" when there is none.
func (r *VotingResult) WinnerOrEmpty() string {
	if r == nil || r.Winner == nil {
		return ""
	}
	return *r.Winner
}
