package models

import "time"

// Session is the full record of one council deliberation. It accretes
// stages, iterations, and token accounting while running and becomes
// append-only once a terminal status is reached.
type Session struct {
	ID               string              `json:"id"`
	Question         string              `json:"question"`
	Config           RunConfig           `json:"config"`
	Members          []Member            `json:"members"`
	Stages           []StageResult       `json:"stages"`
	Iterations       []IterationSnapshot `json:"iterations"`
	FinalAnswer      *string             `json:"final_answer"`
	FinalConfidence  *float64            `json:"final_confidence"`
	Status           SessionStatus       `json:"status"`
	CorrectionRounds int                 `json:"correction_rounds"`
	TotalTokens      int                 `json:"total_tokens"`
	TotalDurationMs  int64               `json:"total_duration_ms"`
	CreatedAt        time.Time           `json:"created_at"`
	UpdatedAt        time.Time           `json:"updated_at"`
	CompletedAt      *time.Time          `json:"completed_at,omitempty"`
	Error            string              `json:"error,omitempty"`
	DynamicConfig    *CouncilPlan        `json:"dynamic_config,omitempty"`
}

// Clone returns a deep copy so callers can read a snapshot without
// racing against the running pipeline.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	out := *s

	out.Members = append([]Member(nil), s.Members...)

	out.Stages = make([]StageResult, len(s.Stages))
	for i, st := range s.Stages {
		out.Stages[i] = cloneStageResult(st)
	}

	out.Iterations = append([]IterationSnapshot(nil), s.Iterations...)

	if s.FinalAnswer != nil {
		v := *s.FinalAnswer
		out.FinalAnswer = &v
	}
	if s.FinalConfidence != nil {
		v := *s.FinalConfidence
		out.FinalConfidence = &v
	}
	if s.CompletedAt != nil {
		v := *s.CompletedAt
		out.CompletedAt = &v
	}
	if s.DynamicConfig != nil {
		plan := *s.DynamicConfig
		plan.Members = append([]PlanMember(nil), s.DynamicConfig.Members...)
		out.DynamicConfig = &plan
	}
	return &out
}

func cloneStageResult(st StageResult) StageResult {
	out := st
	out.Responses = append([]MemberResponse(nil), st.Responses...)
	if st.VotingResult != nil {
		vr := *st.VotingResult
		vr.Votes = append([]Vote(nil), st.VotingResult.Votes...)
		if st.VotingResult.Winner != nil {
			w := *st.VotingResult.Winner
			vr.Winner = &w
		}
		vr.Breakdown = make(map[string]float64, len(st.VotingResult.Breakdown))
		for k, v := range st.VotingResult.Breakdown {
			vr.Breakdown[k] = v
		}
		if st.VotingResult.Metadata != nil {
			vr.Metadata = make(map[string]any, len(st.VotingResult.Metadata))
			for k, v := range st.VotingResult.Metadata {
				vr.Metadata[k] = v
			}
		}
		out.VotingResult = &vr
	}
	return out
}

// LastVotingResult returns the most recent voting stage outcome, or nil.
func (s *Session) LastVotingResult() *VotingResult {
	for i := len(s.Stages) - 1; i >= 0; i-- {
		if s.Stages[i].Stage == StageVoting && s.Stages[i].VotingResult != nil {
			return s.Stages[i].VotingResult
		}
	}
	return nil
}

// SessionSummary is the list-view projection of a session.
type SessionSummary struct {
	ID              string        `json:"id"`
	Question        string        `json:"question"`
	Status          SessionStatus `json:"status"`
	FinalConfidence *float64      `json:"final_confidence"`
	MemberCount     int           `json:"member_count"`
	IterationCount  int           `json:"iteration_count"`
	TotalTokens     int           `json:"total_tokens"`
	TotalDurationMs int64         `json:"total_duration_ms"`
	CreatedAt       time.Time     `json:"created_at"`
	CompletedAt     *time.Time    `json:"completed_at,omitempty"`
	Error           string        `json:"error,omitempty"`
}

// Summary projects the session into its list view.
func (s *Session) Summary() SessionSummary {
	sum := SessionSummary{
		ID:              s.ID,
		Question:        s.Question,
		Status:          s.Status,
		MemberCount:     len(s.Members),
		IterationCount:  len(s.Iterations),
		TotalTokens:     s.TotalTokens,
		TotalDurationMs: s.TotalDurationMs,
		CreatedAt:       s.CreatedAt,
		Error:           s.Error,
	}
	if s.FinalConfidence != nil {
		v := *s.FinalConfidence
		sum.FinalConfidence = &v
	}
	if s.CompletedAt != nil {
		v := *s.CompletedAt
		sum.CompletedAt = &v
	}
	return sum
}
