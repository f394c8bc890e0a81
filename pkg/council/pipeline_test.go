package council

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/synod-ai/synod/pkg/adapter"
	"github.com/synod-ai/synod/pkg/models"
)

func TestRunCompletesSmallCouncil(t *testing.T) {
	env := newTestEnv(t, map[string]memberScript{
		"mini": {
			opinion:   "The answer is X.\nConfidence: 0.8",
			review:    "Solid reasoning, minor gaps. 8/10",
			votes:     []string{ballot("X", 0.9)},
			synthesis: "The council agrees: X.",
		},
	})

	session, err := env.svc.Run(context.Background(), "What is X?", RunOptions{Plan: smallPlan("mini")})
	require.NoError(t, err)

	assert.Equal(t, models.SessionStatusCompleted, session.Status)
	require.NotNil(t, session.FinalAnswer)
	assert.Equal(t, "The council agrees: X.", *session.FinalAnswer)
	require.NotNil(t, session.FinalConfidence)
	assert.InDelta(t, 0.9, *session.FinalConfidence, 1e-9)
	assert.Empty(t, session.Error)
	require.NotNil(t, session.CompletedAt)

	// One pass through all four stages.
	require.Len(t, session.Stages, 4)
	assert.Equal(t, models.StageOpinions, session.Stages[0].Stage)
	assert.Equal(t, models.StageReview, session.Stages[1].Stage)
	assert.Equal(t, models.StageVoting, session.Stages[2].Stage)
	assert.Equal(t, models.StageSynthesis, session.Stages[3].Stage)

	require.Len(t, session.Members, 3)
	assert.Equal(t, "opinion-giver-1", session.Members[0].Name)

	// Five calls of 100 tokens: opinion, review, two votes, synthesis.
	assert.Equal(t, 500, session.TotalTokens)

	require.Len(t, session.Iterations, 1)
	assert.InDelta(t, 0.9, session.Iterations[0].Confidence, 1e-9)

	vr := session.Stages[2].VotingResult
	require.NotNil(t, vr)
	assert.Equal(t, "X", vr.WinnerOrEmpty())
	assert.True(t, vr.ConsensusReached)
	assert.Len(t, vr.Votes, 2)
}

func TestRunEmitsOrderedTrace(t *testing.T) {
	env := newTestEnv(t, map[string]memberScript{
		"mini": {
			opinion:   "Opinion.",
			review:    "Review.",
			votes:     []string{ballot("X", 0.9)},
			synthesis: "Answer.",
		},
	})

	session, err := env.svc.Run(context.Background(), "What is X?", RunOptions{Plan: smallPlan("mini")})
	require.NoError(t, err)

	evts := env.traces.GetTraces(session.ID)
	require.NotEmpty(t, evts)

	assert.Equal(t, models.EventSessionStart, evts[0].Type)
	assert.Equal(t, models.EventPlanReady, evts[1].Type)
	assert.Equal(t, models.EventSessionEnd, evts[len(evts)-1].Type)

	// Every issued request has a matching response; nothing failed.
	assert.Equal(t, 5, countEvents(evts, models.EventMemberRequest))
	assert.Equal(t, 5, countEvents(evts, models.EventMemberResponse))
	assert.Zero(t, countEvents(evts, models.EventError))
	assert.Equal(t, 4, countEvents(evts, models.EventStageStart))
	assert.Equal(t, 4, countEvents(evts, models.EventStageEnd))
	assert.Equal(t, 2, countEvents(evts, models.EventVoteCast))
	assert.Equal(t, 1, countEvents(evts, models.EventVotingComplete))

	// Timestamps never decrease within a session.
	for i := 1; i < len(evts); i++ {
		assert.False(t, evts[i].Timestamp.Before(evts[i-1].Timestamp),
			"event %d (%s) precedes event %d (%s)", i, evts[i].Type, i-1, evts[i-1].Type)
	}

	// Stage events bracket their member traffic.
	types := eventTypes(evts)
	firstStageStart := indexOf(types, string(models.EventStageStart))
	firstRequest := indexOf(types, string(models.EventMemberRequest))
	assert.Less(t, firstStageStart, firstRequest)

	// The repository holds the same durable trace.
	stored, err := env.svc.Traces(context.Background(), session.ID)
	require.NoError(t, err)
	assert.Equal(t, len(evts), len(stored))
}

func TestRunPlansWithStaticRules(t *testing.T) {
	script := memberScript{
		opinion:   "Entropy measures disorder.",
		review:    "Accurate. 9/10",
		votes:     []string{ballot("Entropy measures disorder.", 0.9)},
		synthesis: "Entropy measures disorder in a system.",
	}
	env := newTestEnv(t, map[string]memberScript{
		"gpt-4o":      script,
		"gpt-4o-mini": script,
	})

	session, err := env.svc.Run(context.Background(), "Define entropy in one sentence.", RunOptions{})
	require.NoError(t, err)

	assert.Equal(t, models.SessionStatusCompleted, session.Status)
	require.NotNil(t, session.DynamicConfig)
	assert.Equal(t, models.ComplexitySimple, session.DynamicConfig.Complexity)
	assert.Equal(t, 3, session.DynamicConfig.CouncilSize)
	assert.False(t, session.DynamicConfig.AllowIterations)
	require.Len(t, session.Members, 3)
	assert.Equal(t, models.RoleOpinionGiver, session.Members[0].Role)
	assert.Equal(t, models.RoleReviewer, session.Members[1].Role)
	assert.Equal(t, models.RoleSynthesizer, session.Members[2].Role)
	assert.Len(t, session.Iterations, 1)

	evts := env.traces.GetTraces(session.ID)
	planReady := findEvent(evts, models.EventPlanReady)
	require.NotNil(t, planReady)
	assert.Equal(t, "static", planReady.Data["source"])
}

func TestIterationLoopStopsOnConvergence(t *testing.T) {
	env := newTestEnv(t, map[string]memberScript{
		"mini": {
			opinion:   "Working on it.",
			review:    "Keep going.",
			votes:     []string{ballot("A", 0.7), ballot("A", 0.9)},
			synthesis: "Final answer: A.",
		},
	})

	plan := smallPlan("mini")
	plan.AllowIterations = true
	plan.MaxIterations = 3

	session, err := env.svc.Run(context.Background(), "Iterate on this.", RunOptions{Plan: plan})
	require.NoError(t, err)

	assert.Equal(t, models.SessionStatusCompleted, session.Status)
	require.Len(t, session.Iterations, 2)
	assert.InDelta(t, 0.7, session.Iterations[0].Confidence, 1e-9)
	assert.InDelta(t, 0.9, session.Iterations[1].Confidence, 1e-9)
	require.NotNil(t, session.FinalConfidence)
	assert.InDelta(t, 0.9, *session.FinalConfidence, 1e-9)

	evts := env.traces.GetTraces(session.ID)
	assert.Equal(t, 2, countEvents(evts, models.EventIterationStart))
	assert.Equal(t, 2, countEvents(evts, models.EventIterationEnd))

	end := findEvent(evts, models.EventSessionEnd)
	require.NotNil(t, end)
	assert.Equal(t, StopReasonConverged, end.Data["stop_reason"])
}

func TestSecondIterationCarriesMemoryContext(t *testing.T) {
	env := newTestEnv(t, map[string]memberScript{
		"mini": {
			opinion:   "Position A, tentatively.",
			review:    "Needs sharpening.",
			votes:     []string{ballot("A", 0.7), ballot("A", 0.9)},
			synthesis: "A, refined.",
		},
	})

	plan := smallPlan("mini")
	plan.AllowIterations = true
	plan.MaxIterations = 3

	session, err := env.svc.Run(context.Background(), "Iterate on this.", RunOptions{Plan: plan})
	require.NoError(t, err)
	require.Len(t, session.Iterations, 2)

	// The opinions stage ran twice; its second prompt must carry the
	// memory section and the iteration directive.
	opinionUsers := collectUsersByStage(env, models.StageOpinions)
	require.Len(t, opinionUsers, 2)
	assert.NotContains(t, opinionUsers[0], "Deliberation memory")
	assert.Contains(t, opinionUsers[1], "Deliberation memory")
	assert.Contains(t, opinionUsers[1], "Iteration 2")
}

func TestSelfCorrectionActivatesBackup(t *testing.T) {
	env := newTestEnv(t, map[string]memberScript{
		"main": {
			opinion:   "Position A.",
			review:    "Weak but plausible.",
			votes:     []string{ballot("A", 0.4), ballot("A", 0.8)},
			synthesis: "A, with corrections.",
		},
		"fresh": {
			votes: []string{ballot("A", 0.9)},
		},
	})

	plan := &models.CouncilPlan{
		Complexity:   models.ComplexityModerate,
		CouncilSize:  4,
		VotingMethod: models.VotingMethodMajority,
		Members: []models.PlanMember{
			{Model: "main", Role: models.RoleOpinionGiver},
			{Model: "main", Role: models.RoleReviewer},
			{Model: "main", Role: models.RoleSynthesizer},
			{Model: "fresh", Role: models.RoleBackup},
		},
	}

	session, err := env.svc.Run(context.Background(), "Correct thyself.", RunOptions{Plan: plan})
	require.NoError(t, err)

	assert.Equal(t, models.SessionStatusCompleted, session.Status)
	assert.Equal(t, 1, session.CorrectionRounds)

	// Two voting stages: the low-confidence round and the re-vote.
	votingStages := stagesOf(session, models.StageVoting)
	require.Len(t, votingStages, 2)
	assert.Len(t, votingStages[0].VotingResult.Votes, 2)
	assert.Len(t, votingStages[1].VotingResult.Votes, 3)
	assert.InDelta(t, 0.4, votingStages[0].VotingResult.ConfidenceAvg, 1e-9)
	assert.InDelta(t, (0.8+0.8+0.9)/3, votingStages[1].VotingResult.ConfidenceAvg, 1e-9)

	// The backup seat is active on the final roster.
	backup := session.Members[3]
	assert.True(t, backup.IsBackup)
	assert.True(t, backup.IsActive)

	evts := env.traces.GetTraces(session.ID)
	assert.Equal(t, 1, countEvents(evts, models.EventBackupActivated))
	assert.Equal(t, 1, countEvents(evts, models.EventCorrectionTriggered))

	// backup-activated precedes correction-triggered.
	types := eventTypes(evts)
	assert.Less(t, indexOf(types, string(models.EventBackupActivated)),
		indexOf(types, string(models.EventCorrectionTriggered)))

	require.NotNil(t, session.FinalConfidence)
	assert.InDelta(t, (0.8+0.8+0.9)/3, *session.FinalConfidence, 1e-9)
}

func TestSelfCorrectionStopsWithoutBackups(t *testing.T) {
	env := newTestEnv(t, map[string]memberScript{
		"mini": {
			opinion:   "Uncertain position.",
			review:    "Shaky.",
			votes:     []string{ballot("A", 0.3)},
			synthesis: "A, weakly.",
		},
	})

	session, err := env.svc.Run(context.Background(), "No backups here.", RunOptions{Plan: smallPlan("mini")})
	require.NoError(t, err)

	assert.Equal(t, models.SessionStatusCompleted, session.Status)
	assert.Zero(t, session.CorrectionRounds)
	assert.Len(t, stagesOf(session, models.StageVoting), 1)
	assert.Zero(t, countEvents(env.traces.GetTraces(session.ID), models.EventBackupActivated))
}

func TestMemberFailureIsToleratedWhileOthersRespond(t *testing.T) {
	env := newTestEnv(t, map[string]memberScript{
		"stable": {
			opinion:   "Position A.",
			review:    "Fine.",
			votes:     []string{ballot("A", 0.8)},
			synthesis: "A.",
		},
		"flaky": {
			failStages: map[models.Stage]error{
				models.StageOpinions: adapter.NewError(adapter.ErrorKindUpstream, "model overloaded"),
			},
			votes: []string{ballot("A", 0.8)},
		},
	})

	plan := &models.CouncilPlan{
		CouncilSize:  4,
		VotingMethod: models.VotingMethodMajority,
		Members: []models.PlanMember{
			{Model: "stable", Role: models.RoleOpinionGiver},
			{Model: "flaky", Role: models.RoleOpinionGiver},
			{Model: "stable", Role: models.RoleReviewer},
			{Model: "stable", Role: models.RoleSynthesizer},
		},
	}

	session, err := env.svc.Run(context.Background(), "Tolerate one failure.", RunOptions{Plan: plan})
	require.NoError(t, err)

	assert.Equal(t, models.SessionStatusCompleted, session.Status)
	require.Len(t, session.Stages, 4)
	assert.Len(t, session.Stages[0].Responses, 1, "only the stable opinion survives")

	evts := env.traces.GetTraces(session.ID)
	require.Equal(t, 1, countEvents(evts, models.EventError))
	errEvt := findEvent(evts, models.EventError)
	assert.Equal(t, "upstream", errEvt.Data["kind"])
	assert.Equal(t, models.StageOpinions, errEvt.Stage)
}

func TestAllOpinionMembersFailingFailsSession(t *testing.T) {
	env := newTestEnv(t, map[string]memberScript{
		"broken": {
			failStages: map[models.Stage]error{
				models.StageOpinions: adapter.NewError(adapter.ErrorKindUpstream, "provider down"),
			},
		},
	})

	session, err := env.svc.Run(context.Background(), "Everything fails.", RunOptions{Plan: smallPlan("broken")})
	require.NoError(t, err)

	assert.Equal(t, models.SessionStatusFailed, session.Status)
	assert.Contains(t, session.Error, "opinions stage")
	assert.Nil(t, session.FinalAnswer)
	require.NotNil(t, session.CompletedAt)

	// The opinions stage failed wholesale, so only it was attempted.
	assert.Empty(t, stagesOf(session, models.StageVoting))

	evts := env.traces.GetTraces(session.ID)
	end := findEvent(evts, models.EventSessionEnd)
	require.NotNil(t, end)
	assert.Equal(t, string(models.SessionStatusFailed), end.Data["status"])
	assert.Equal(t, "upstream", end.Data["stop_reason"])
}

func TestUnparseableVotesFailTheSession(t *testing.T) {
	env := newTestEnv(t, map[string]memberScript{
		"mute": {
			opinion: "Position A.",
			review:  "Fine.",
			votes:   []string{"   "},
		},
	})

	session, err := env.svc.Run(context.Background(), "Silent voters.", RunOptions{Plan: smallPlan("mute")})
	require.NoError(t, err)

	assert.Equal(t, models.SessionStatusFailed, session.Status)
	assert.Contains(t, session.Error, "no parseable votes")
}

func TestCancelledContextFailsSessionAsCancelled(t *testing.T) {
	env := newTestEnv(t, map[string]memberScript{
		"mini": {
			opinion:   "Too late.",
			votes:     []string{ballot("A", 0.9)},
			synthesis: "Too late.",
		},
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	session, err := env.svc.Run(ctx, "Cancelled before start.", RunOptions{Plan: smallPlan("mini")})
	require.NoError(t, err)

	assert.Equal(t, models.SessionStatusFailed, session.Status)
	assert.Equal(t, "cancelled", session.Error)
	assert.Empty(t, session.Stages, "no stage ran under a cancelled context")

	evts := env.traces.GetTraces(session.ID)
	errEvt := findEvent(evts, models.EventError)
	require.NotNil(t, errEvt)
	assert.Equal(t, "cancelled", errEvt.Data["kind"])
}

func TestSessionTimeoutFailsAsCancelled(t *testing.T) {
	env := newTestEnv(t, map[string]memberScript{
		"slow": {
			opinion:   "Eventually...",
			votes:     []string{ballot("A", 0.9)},
			synthesis: "Eventually.",
			delay:     500 * time.Millisecond,
		},
	})

	override := env.svc.cfg.Defaults.Session
	override.TimeoutMs = 50

	session, err := env.svc.Run(context.Background(), "Beat the clock.", RunOptions{
		Plan:            smallPlan("slow"),
		SessionOverride: &override,
	})
	require.NoError(t, err)

	assert.Equal(t, models.SessionStatusFailed, session.Status)
	assert.Equal(t, "cancelled", session.Error)
}

func TestIterationOverrideWinsOverPlan(t *testing.T) {
	env := newTestEnv(t, map[string]memberScript{
		"mini": {
			opinion:   "One and done.",
			review:    "Agreed.",
			votes:     []string{ballot("A", 0.5)},
			synthesis: "A.",
		},
	})

	plan := smallPlan("mini")
	plan.AllowIterations = true
	plan.MaxIterations = 5

	override := env.svc.cfg.Defaults.Iteration
	override.Enabled = false
	override.MaxIterations = 1

	session, err := env.svc.Run(context.Background(), "Override the plan.", RunOptions{
		Plan:              plan,
		IterationOverride: &override,
	})
	require.NoError(t, err)

	assert.Equal(t, models.SessionStatusCompleted, session.Status)
	assert.Len(t, session.Iterations, 1)
	assert.False(t, session.Config.Iteration.Enabled)
	assert.Equal(t, 1, session.Config.Iteration.MaxIterations)
}

// stagesOf filters a session's stages by kind, preserving order.
func stagesOf(session *models.Session, stage models.Stage) []models.StageResult {
	var out []models.StageResult
	for _, st := range session.Stages {
		if st.Stage == stage {
			out = append(out, st)
		}
	}
	return out
}

func findEvent(evts []models.TraceEvent, eventType models.EventType) *models.TraceEvent {
	for i := range evts {
		if evts[i].Type == eventType {
			return &evts[i]
		}
	}
	return nil
}

func indexOf(values []string, want string) int {
	for i, v := range values {
		if v == want {
			return i
		}
	}
	return -1
}
