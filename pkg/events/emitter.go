package events

import (
	"github.com/synod-ai/synod/pkg/models"
)

// Emitter publishes one session's trace events through the bus with
// typed helpers, one per event type. All methods are nil-safe so the
// pipeline never guards emission; a nil emitter makes every call a
// no-op.
type Emitter struct {
	bus       *Bus
	sessionID string
}

// NewEmitter binds an emitter to one session.
func NewEmitter(bus *Bus, sessionID string) *Emitter {
	return &Emitter{bus: bus, sessionID: sessionID}
}

func (e *Emitter) publish(event models.TraceEvent) {
	if e == nil || e.bus == nil {
		return
	}
	event.SessionID = e.sessionID
	e.bus.Publish(event)
}

// SessionStart announces a new deliberation. The council composition is
// not known yet; plan-ready carries it.
func (e *Emitter) SessionStart(question string) {
	e.publish(models.TraceEvent{
		Type: models.EventSessionStart,
		Data: map[string]any{
			"question": question,
		},
	})
}

// PlanReady announces the council composition chosen by the planner.
// Source identifies which planning path produced it (static rule name,
// "model", or "fallback").
func (e *Emitter) PlanReady(plan *models.CouncilPlan, source string) {
	if plan == nil {
		return
	}
	roles := make([]string, 0, len(plan.Members))
	for _, m := range plan.Members {
		roles = append(roles, string(m.Role))
	}
	e.publish(models.TraceEvent{
		Type: models.EventPlanReady,
		Data: map[string]any{
			"source":           source,
			"complexity":       string(plan.Complexity),
			"domain":           plan.Domain,
			"council_size":     plan.CouncilSize,
			"roles":            roles,
			"voting_method":    string(plan.VotingMethod),
			"allow_iterations": plan.AllowIterations,
		},
	})
}

// IterationStart announces one pass of the deliberation loop (1-based).
func (e *Emitter) IterationStart(iteration int, strategy models.IterationStrategy) {
	e.publish(models.TraceEvent{
		Type: models.EventIterationStart,
		Data: map[string]any{
			"iteration": iteration,
			"strategy":  string(strategy),
		},
	})
}

// IterationEnd records the iteration's confidence and its improvement
// over the previous iteration.
func (e *Emitter) IterationEnd(iteration int, confidence, improvement float64) {
	e.publish(models.TraceEvent{
		Type: models.EventIterationEnd,
		Data: map[string]any{
			"iteration":   iteration,
			"confidence":  confidence,
			"improvement": improvement,
		},
	})
}

// StageStart announces a stage beginning within an iteration.
func (e *Emitter) StageStart(stage models.Stage, iteration, memberCount int) {
	e.publish(models.TraceEvent{
		Type:  models.EventStageStart,
		Stage: stage,
		Data: map[string]any{
			"iteration":    iteration,
			"member_count": memberCount,
		},
	})
}

// StageEnd announces a finished stage with its duration and token cost.
func (e *Emitter) StageEnd(result *models.StageResult, iteration int) {
	if result == nil {
		return
	}
	e.publish(models.TraceEvent{
		Type:       models.EventStageEnd,
		Stage:      result.Stage,
		DurationMs: result.DurationMs,
		Data: map[string]any{
			"iteration":      iteration,
			"response_count": len(result.Responses),
			"tokens":         result.TotalTokens(),
		},
	})
}

// MemberRequest announces a model call about to be issued.
func (e *Emitter) MemberRequest(stage models.Stage, member *models.Member) {
	if member == nil {
		return
	}
	e.publish(models.TraceEvent{
		Type:       models.EventMemberRequest,
		Stage:      stage,
		MemberID:   member.ID,
		MemberName: member.Name,
		Data: map[string]any{
			"role":     string(member.Role),
			"model_id": member.ModelID,
		},
	})
}

// MemberResponse announces a completed model call.
func (e *Emitter) MemberResponse(stage models.Stage, resp *models.MemberResponse) {
	if resp == nil {
		return
	}
	e.publish(models.TraceEvent{
		Type:       models.EventMemberResponse,
		Stage:      stage,
		MemberID:   resp.MemberID,
		MemberName: resp.MemberName,
		DurationMs: resp.LatencyMs,
		Data: map[string]any{
			"model_id":       resp.ModelID,
			"tokens":         resp.TokenUsage.Total,
			"content_length": len(resp.Content),
		},
	})
}

// VoteCast announces one parsed vote.
func (e *Emitter) VoteCast(vote models.Vote) {
	e.publish(models.TraceEvent{
		Type:       models.EventVoteCast,
		Stage:      models.StageVoting,
		MemberID:   vote.MemberID,
		MemberName: vote.MemberName,
		Data: map[string]any{
			"position":   vote.Position,
			"confidence": vote.Confidence,
			"veto":       vote.Veto,
		},
	})
}

// VotingComplete announces the tally outcome.
func (e *Emitter) VotingComplete(result *models.VotingResult) {
	if result == nil {
		return
	}
	e.publish(models.TraceEvent{
		Type:  models.EventVotingComplete,
		Stage: models.StageVoting,
		Data: map[string]any{
			"method":            string(result.Method),
			"winner":            result.WinnerOrEmpty(),
			"consensus_reached": result.ConsensusReached,
			"confidence_avg":    result.ConfidenceAvg,
			"vote_count":        len(result.Votes),
		},
	})
}

// CorrectionTriggered announces a self-correction round.
func (e *Emitter) CorrectionTriggered(stage models.Stage, round int, avgConfidence float64) {
	e.publish(models.TraceEvent{
		Type:  models.EventCorrectionTriggered,
		Stage: stage,
		Data: map[string]any{
			"round":          round,
			"avg_confidence": avgConfidence,
		},
	})
}

// BackupActivated announces a backup member joining the active council.
func (e *Emitter) BackupActivated(member *models.Member, reason string) {
	if member == nil {
		return
	}
	e.publish(models.TraceEvent{
		Type:       models.EventBackupActivated,
		MemberID:   member.ID,
		MemberName: member.Name,
		Data: map[string]any{
			"model_id": member.ModelID,
			"reason":   reason,
		},
	})
}

// MemoryCompressed records a context compression pass.
func (e *Emitter) MemoryCompressed(beforeChars, afterChars int) {
	e.publish(models.TraceEvent{
		Type: models.EventMemoryCompressed,
		Data: map[string]any{
			"before_chars": beforeChars,
			"after_chars":  afterChars,
		},
	})
}

// SessionEnd announces a terminal session state.
func (e *Emitter) SessionEnd(status models.SessionStatus, stopReason string, totalTokens int, durationMs int64) {
	e.publish(models.TraceEvent{
		Type:       models.EventSessionEnd,
		DurationMs: durationMs,
		Data: map[string]any{
			"status":       string(status),
			"stop_reason":  stopReason,
			"total_tokens": totalTokens,
		},
	})
}

// Error records a non-fatal or fatal pipeline error with its classified
// kind. The message is expected to be pre-masked by the caller.
func (e *Emitter) Error(stage models.Stage, memberID, kind, message string) {
	e.publish(models.TraceEvent{
		Type:     models.EventError,
		Stage:    stage,
		MemberID: memberID,
		Data: map[string]any{
			"kind":    kind,
			"message": message,
		},
	})
}

// Narration records a human-readable progress line for UIs.
func (e *Emitter) Narration(text string) {
	e.publish(models.TraceEvent{
		Type: models.EventNarration,
		Data: map[string]any{
			"text": text,
		},
	})
}
