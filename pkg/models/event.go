package models

import "time"

// EventType discriminates trace events emitted during deliberation.
type EventType string

// Trace event types, in rough emission order within a session.
const (
	EventSessionStart        EventType = "session-start"
	EventSessionEnd          EventType = "session-end"
	EventPlanReady           EventType = "plan-ready"
	EventIterationStart      EventType = "iteration-start"
	EventIterationEnd        EventType = "iteration-end"
	EventStageStart          EventType = "stage-start"
	EventStageEnd            EventType = "stage-end"
	EventMemberRequest       EventType = "member-request"
	EventMemberResponse      EventType = "member-response"
	EventVoteCast            EventType = "vote-cast"
	EventVotingComplete      EventType = "voting-complete"
	EventCorrectionTriggered EventType = "correction-triggered"
	EventBackupActivated     EventType = "backup-activated"
	EventMemoryCompressed    EventType = "memory-compressed"
	EventError               EventType = "error"
	EventNarration           EventType = "narration"
)

// IsValid checks if the event type is one of the defined trace types.
func (t EventType) IsValid() bool {
	switch t {
	case EventSessionStart, EventSessionEnd, EventPlanReady,
		EventIterationStart, EventIterationEnd, EventStageStart, EventStageEnd,
		EventMemberRequest, EventMemberResponse, EventVoteCast,
		EventVotingComplete, EventCorrectionTriggered, EventBackupActivated,
		EventMemoryCompressed, EventError, EventNarration:
		return true
	default:
		return false
	}
}

// AllEventTypes lists every trace event type in a stable order.
func AllEventTypes() []EventType {
	return []EventType{
		EventSessionStart, EventSessionEnd, EventPlanReady,
		EventIterationStart, EventIterationEnd, EventStageStart, EventStageEnd,
		EventMemberRequest, EventMemberResponse, EventVoteCast,
		EventVotingComplete, EventCorrectionTriggered, EventBackupActivated,
		EventMemoryCompressed, EventError, EventNarration,
	}
}

// TraceEvent is one append-only audit record of a session. Events for a
// session are totally ordered by emission; Timestamp never decreases.
type TraceEvent struct {
	ID         string         `json:"id"`
	SessionID  string         `json:"session_id"`
	Type       EventType      `json:"type"`
	Timestamp  time.Time      `json:"timestamp"`
	Stage      Stage          `json:"stage,omitempty"`
	MemberID   string         `json:"member_id,omitempty"`
	MemberName string         `json:"member_name,omitempty"`
	DurationMs int64          `json:"duration_ms,omitempty"`
	Data       map[string]any `json:"data,omitempty"`
}
