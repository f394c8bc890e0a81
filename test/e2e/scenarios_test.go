package e2e

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/synod-ai/synod/pkg/adapter"
	"github.com/synod-ai/synod/pkg/api"
	"github.com/synod-ai/synod/pkg/models"
)

// TestStaticRulePlansSmallCouncil submits a bare definition question and
// verifies the static planner routes it to the small preset: three
// seats, one pass through every stage, no iteration loop.
func TestStaticRulePlansSmallCouncil(t *testing.T) {
	app := NewTestApp(t)

	session := app.SubmitCouncil(api.SubmitCouncilRequest{
		Question: "Define entropy in one sentence.",
	})
	require.Equal(t, models.SessionStatusPending, session.Status)

	final := app.WaitTerminal(session.ID)
	require.Equal(t, models.SessionStatusCompleted, final.Status)

	plan := final.DynamicConfig
	require.NotNil(t, plan)
	assert.Equal(t, models.ComplexitySimple, plan.Complexity)
	assert.Equal(t, 3, plan.CouncilSize)
	assert.Equal(t, models.VotingMethodMajority, plan.VotingMethod)
	assert.False(t, plan.AllowIterations)
	assert.False(t, final.Config.Iteration.Enabled)

	assert.Equal(t, []models.Role{
		models.RoleOpinionGiver,
		models.RoleReviewer,
		models.RoleSynthesizer,
	}, memberRoles(final))
	assert.Equal(t, []models.Stage{
		models.StageOpinions,
		models.StageReview,
		models.StageVoting,
		models.StageSynthesis,
	}, stageNames(final))

	require.NotNil(t, final.FinalAnswer)
	assert.NotEmpty(t, *final.FinalAnswer)
	require.Len(t, final.Iterations, 1)
}

// TestMajorityTieLeavesNoWinner splits four voters two against two and
// verifies the session still completes, with the tally reporting no
// winner and no consensus.
func TestMajorityTieLeavesNoWinner(t *testing.T) {
	app := NewTestApp(t,
		WithScript("m1", MemberScript{Votes: []string{Ballot("A", 0.8)}}),
		WithScript("m2", MemberScript{Votes: []string{Ballot("B", 0.8)}}),
		WithScript("m3", MemberScript{Votes: []string{Ballot("A", 0.8)}}),
		WithScript("m4", MemberScript{Votes: []string{Ballot("B", 0.8)}}),
		WithScript("synth", MemberScript{Synthesis: "The council split evenly; both positions are summarized."}),
	)

	session := app.SubmitCouncil(api.SubmitCouncilRequest{
		Question: "Should the team adopt the new framework?",
		Options: &api.CouncilOptions{Plan: &models.CouncilPlan{
			Complexity:   models.ComplexityModerate,
			Domain:       "engineering",
			CouncilSize:  5,
			VotingMethod: models.VotingMethodMajority,
			Members: []models.PlanMember{
				{Model: "m1", Role: models.RoleOpinionGiver},
				{Model: "m2", Role: models.RoleOpinionGiver},
				{Model: "m3", Role: models.RoleOpinionGiver},
				{Model: "m4", Role: models.RoleOpinionGiver},
				{Model: "synth", Role: models.RoleSynthesizer},
			},
		}},
	})
	final := app.WaitTerminal(session.ID)
	require.Equal(t, models.SessionStatusCompleted, final.Status)

	vote := final.LastVotingResult()
	require.NotNil(t, vote)
	assert.Nil(t, vote.Winner)
	assert.False(t, vote.ConsensusReached)
	assert.InDelta(t, 0.8, vote.ConfidenceAvg, 1e-9)
	assert.Equal(t, map[string]float64{"A": 2, "B": 2}, vote.Breakdown)
	assert.Len(t, vote.Votes, 4)

	// The synthesizer still produces an answer covering the split.
	require.NotNil(t, final.FinalAnswer)
	assert.Contains(t, *final.FinalAnswer, "split evenly")
}

// TestWeightedVotingScoresWeightTimesConfidence pits a low-weight
// high-confidence pair against a heavier single vote and verifies the
// per-position scores and the winner.
func TestWeightedVotingScoresWeightTimesConfidence(t *testing.T) {
	app := NewTestApp(t,
		WithScript("m1", MemberScript{Votes: []string{Ballot("A", 0.9)}}),
		WithScript("m2", MemberScript{Votes: []string{Ballot("B", 0.8)}}),
		WithScript("m3", MemberScript{Votes: []string{Ballot("A", 0.6)}}),
		WithScript("synth", MemberScript{}),
	)

	w1, w2, w3 := 0.5, 1.0, 1.5
	session := app.SubmitCouncil(api.SubmitCouncilRequest{
		Question: "Which storage engine should back the ledger?",
		Options: &api.CouncilOptions{Plan: &models.CouncilPlan{
			Complexity:   models.ComplexityModerate,
			Domain:       "engineering",
			CouncilSize:  4,
			VotingMethod: models.VotingMethodWeighted,
			Members: []models.PlanMember{
				{Model: "m1", Role: models.RoleOpinionGiver, Weight: &w1},
				{Model: "m2", Role: models.RoleOpinionGiver, Weight: &w2},
				{Model: "m3", Role: models.RoleOpinionGiver, Weight: &w3},
				{Model: "synth", Role: models.RoleSynthesizer},
			},
		}},
	})
	final := app.WaitTerminal(session.ID)
	require.Equal(t, models.SessionStatusCompleted, final.Status)

	vote := final.LastVotingResult()
	require.NotNil(t, vote)
	require.NotNil(t, vote.Winner)
	assert.Equal(t, "A", *vote.Winner)
	assert.True(t, vote.ConsensusReached)

	// A: 0.5*0.9 + 1.5*0.6, B: 1.0*0.8.
	assert.InDelta(t, 1.35, vote.Breakdown["A"], 1e-9)
	assert.InDelta(t, 0.8, vote.Breakdown["B"], 1e-9)
}

// TestVetoBlocksConsensus gives three voters a shared position and one
// dissenter a veto, and verifies the veto overrides the majority.
func TestVetoBlocksConsensus(t *testing.T) {
	app := NewTestApp(t,
		WithScript("m1", MemberScript{Votes: []string{Ballot("A", 0.9)}}),
		WithScript("m2", MemberScript{Votes: []string{Ballot("A", 0.8)}}),
		WithScript("m3", MemberScript{Votes: []string{Ballot("A", 0.85)}}),
		WithScript("m4", MemberScript{Votes: []string{VetoBallot("B", 0.95, "unresolved security concern")}}),
		WithScript("synth", MemberScript{}),
	)

	session := app.SubmitCouncil(api.SubmitCouncilRequest{
		Question: "Ship the release this week?",
		Options: &api.CouncilOptions{Plan: &models.CouncilPlan{
			Complexity:   models.ComplexityModerate,
			Domain:       "engineering",
			CouncilSize:  5,
			VotingMethod: models.VotingMethodVeto,
			Members: []models.PlanMember{
				{Model: "m1", Role: models.RoleOpinionGiver},
				{Model: "m2", Role: models.RoleOpinionGiver},
				{Model: "m3", Role: models.RoleOpinionGiver},
				{Model: "m4", Role: models.RoleOpinionGiver},
				{Model: "synth", Role: models.RoleSynthesizer},
			},
		}},
	})
	final := app.WaitTerminal(session.ID)
	require.Equal(t, models.SessionStatusCompleted, final.Status)

	vetoer, ok := memberByModel(final, "m4")
	require.True(t, ok)

	vote := final.LastVotingResult()
	require.NotNil(t, vote)
	assert.Nil(t, vote.Winner)
	assert.False(t, vote.ConsensusReached)

	// Metadata travels through JSON, so the vetoer list arrives untyped.
	vetoers, ok := vote.Metadata["vetoers"].([]any)
	require.True(t, ok, "vetoers metadata missing: %v", vote.Metadata)
	require.Len(t, vetoers, 1)
	assert.Equal(t, vetoer.ID, vetoers[0])

	reasons, ok := vote.Metadata["veto_reasons"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, reasons[vetoer.ID], "security concern")
}

// TestIterationLoopStopsOnConvergence scripts a council whose second
// round crosses the convergence threshold and verifies one snapshot per
// round plus the recorded stop reason.
func TestIterationLoopStopsOnConvergence(t *testing.T) {
	risingVotes := []string{Ballot("A", 0.71), Ballot("A", 0.92)}
	app := NewTestApp(t,
		WithScript("m1", MemberScript{Votes: risingVotes}),
		WithScript("m2", MemberScript{Votes: risingVotes}),
		WithScript("m3", MemberScript{Votes: risingVotes}),
		WithScript("synth", MemberScript{Synthesis: "Converged plan."}),
	)

	session := app.SubmitCouncil(api.SubmitCouncilRequest{
		Question: "Draft a rollout plan for the new cache layer.",
		Options: &api.CouncilOptions{Plan: &models.CouncilPlan{
			Complexity:      models.ComplexityComplex,
			Domain:          "engineering",
			CouncilSize:     4,
			VotingMethod:    models.VotingMethodMajority,
			AllowIterations: true,
			MaxIterations:   3,
			Members: []models.PlanMember{
				{Model: "m1", Role: models.RoleOpinionGiver},
				{Model: "m2", Role: models.RoleOpinionGiver},
				{Model: "m3", Role: models.RoleOpinionGiver},
				{Model: "synth", Role: models.RoleSynthesizer},
			},
		}},
	})
	final := app.WaitTerminal(session.ID)
	require.Equal(t, models.SessionStatusCompleted, final.Status)

	// Round one stays under the 0.85 convergence threshold, round two
	// crosses it; the third budgeted round never runs.
	require.Len(t, final.Iterations, 2)
	assert.Equal(t, 1, final.Iterations[0].Number)
	assert.Equal(t, 2, final.Iterations[1].Number)
	assert.InDelta(t, 0.71, final.Iterations[0].Confidence, 1e-9)
	assert.InDelta(t, 0.92, final.Iterations[1].Confidence, 1e-9)

	traced := app.SessionTraces(session.ID)
	require.NotEmpty(t, traced)
	end := traced[len(traced)-1]
	require.Equal(t, models.EventSessionEnd, end.Type)
	assert.Equal(t, "converged", end.Data["stop_reason"])

	assert.Len(t, eventsOfType(traced, models.EventIterationStart), 2)
	assert.Len(t, eventsOfType(traced, models.EventIterationEnd), 2)
}

// TestFailingMemberIsTolerated seats one member that times out in every
// stage it participates in and verifies the rest of the council carries
// the session to completion.
func TestFailingMemberIsTolerated(t *testing.T) {
	timeout := adapter.NewError(adapter.ErrorKindTimeout, "request timed out after 120s")
	app := NewTestApp(t,
		WithScript("flaky", MemberScript{FailStages: map[models.Stage]error{
			models.StageOpinions: timeout,
			models.StageVoting:   timeout,
		}}),
		WithScript("steady", MemberScript{Votes: []string{Ballot("A", 0.9)}}),
		WithScript("synth", MemberScript{}),
	)

	session := app.SubmitCouncil(api.SubmitCouncilRequest{
		Question: "Summarize the incident findings.",
		Options: &api.CouncilOptions{Plan: &models.CouncilPlan{
			Complexity:   models.ComplexityModerate,
			Domain:       "general",
			CouncilSize:  6,
			VotingMethod: models.VotingMethodMajority,
			Members: []models.PlanMember{
				{Model: "steady", Role: models.RoleOpinionGiver},
				{Model: "steady", Role: models.RoleOpinionGiver},
				{Model: "flaky", Role: models.RoleOpinionGiver},
				{Model: "steady", Role: models.RoleOpinionGiver},
				{Model: "steady", Role: models.RoleOpinionGiver},
				{Model: "synth", Role: models.RoleSynthesizer},
			},
		}},
	})
	final := app.WaitTerminal(session.ID)
	require.Equal(t, models.SessionStatusCompleted, final.Status)

	flaky, ok := memberByModel(final, "flaky")
	require.True(t, ok)

	// No reviewer seats, so the review stage is skipped entirely.
	require.Equal(t, []models.Stage{
		models.StageOpinions,
		models.StageVoting,
		models.StageSynthesis,
	}, stageNames(final))

	opinions := final.Stages[0]
	assert.Len(t, opinions.Responses, 4)

	votingStage := final.Stages[1]
	require.NotNil(t, votingStage.VotingResult)
	assert.Len(t, votingStage.VotingResult.Votes, 4)
	require.NotNil(t, votingStage.VotingResult.Winner)
	assert.Equal(t, "A", *votingStage.VotingResult.Winner)

	traced := app.SessionTraces(session.ID)
	var failures, answers int
	for _, event := range traced {
		if event.MemberID != flaky.ID {
			continue
		}
		switch event.Type {
		case models.EventError:
			failures++
			assert.Equal(t, "timeout", event.Data["kind"])
		case models.EventMemberResponse:
			answers++
		}
	}
	assert.GreaterOrEqual(t, failures, 2)
	assert.Zero(t, answers)
}

// TestProvidedPlanIsClamped submits a plan with an unknown model, a
// bogus role, and no synthesizer, and verifies the server normalizes it
// rather than rejecting the run.
func TestProvidedPlanIsClamped(t *testing.T) {
	app := NewTestApp(t,
		WithScript("m1", MemberScript{}),
		WithScript("m2", MemberScript{}),
		WithScript("m3", MemberScript{}),
	)

	session := app.SubmitCouncil(api.SubmitCouncilRequest{
		Question: "Compare the two candidate architectures.",
		Options: &api.CouncilOptions{Plan: &models.CouncilPlan{
			Complexity:   "impossible",
			Domain:       "engineering",
			CouncilSize:  3,
			VotingMethod: models.VotingMethodMajority,
			Members: []models.PlanMember{
				{Model: "m1", Role: models.RoleOpinionGiver},
				{Model: "m2", Role: "oracle"},
				{Model: "ghost-model", Role: models.RoleOpinionGiver},
				{Model: "m3", Role: models.RoleOpinionGiver},
			},
		}},
	})
	final := app.WaitTerminal(session.ID)
	require.Equal(t, models.SessionStatusCompleted, final.Status)

	plan := final.DynamicConfig
	require.NotNil(t, plan)
	assert.Equal(t, models.ComplexityModerate, plan.Complexity)

	// The unknown model is dropped and the last seat becomes the
	// synthesizer the plan lacked.
	for _, m := range final.Members {
		assert.NotEqual(t, "ghost-model", m.ModelID)
	}
	assert.Equal(t, models.RoleSynthesizer, final.Members[len(final.Members)-1].Role)

	// The invalid role falls back to opinion-giver.
	seat, ok := memberByModel(final, "m2")
	require.True(t, ok)
	assert.Equal(t, models.RoleOpinionGiver, seat.Role)
}
