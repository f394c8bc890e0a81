package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRoleIsValid(t *testing.T) {
	tests := []struct {
		name  string
		role  Role
		valid bool
	}{
		{"opinion-giver", RoleOpinionGiver, true},
		{"reviewer", RoleReviewer, true},
		{"synthesizer", RoleSynthesizer, true},
		{"backup", RoleBackup, true},
		{"arbiter", RoleArbiter, true},
		{"devil-advocate", RoleDevilAdvocate, true},
		{"fact-checker", RoleFactChecker, true},
		{"domain-expert", RoleDomainExpert, true},
		{"moderator", RoleModerator, true},
		{"skeptic", RoleSkeptic, true},
		{"creative", RoleCreative, true},
		{"critic", RoleCritic, true},
		{"invalid", Role("chairman"), false},
		{"empty", Role(""), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.valid, tt.role.IsValid())
		})
	}
}

func TestAllRolesAreValid(t *testing.T) {
	roles := AllRoles()
	assert.Len(t, roles, 12)
	for _, r := range roles {
		assert.True(t, r.IsValid(), "role %q must validate", r)
	}
}

func TestStageIsValid(t *testing.T) {
	tests := []struct {
		name  string
		stage Stage
		valid bool
	}{
		{"opinions", StageOpinions, true},
		{"review", StageReview, true},
		{"voting", StageVoting, true},
		{"synthesis", StageSynthesis, true},
		{"invalid", Stage("deliberation"), false},
		{"empty", Stage(""), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.valid, tt.stage.IsValid())
		})
	}
}

func TestSessionStatusLifecycle(t *testing.T) {
	tests := []struct {
		name     string
		status   SessionStatus
		valid    bool
		terminal bool
	}{
		{"pending", SessionStatusPending, true, false},
		{"running", SessionStatusRunning, true, false},
		{"completed", SessionStatusCompleted, true, true},
		{"failed", SessionStatusFailed, true, true},
		{"invalid", SessionStatus("paused"), false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.valid, tt.status.IsValid())
			assert.Equal(t, tt.terminal, tt.status.IsTerminal())
		})
	}
}

func TestVotingMethodIsValid(t *testing.T) {
	tests := []struct {
		name   string
		method VotingMethod
		valid  bool
	}{
		{"majority", VotingMethodMajority, true},
		{"super-majority", VotingMethodSuperMajority, true},
		{"unanimous", VotingMethodUnanimous, true},
		{"weighted", VotingMethodWeighted, true},
		{"confidence", VotingMethodConfidence, true},
		{"ranked-choice", VotingMethodRankedChoice, true},
		{"veto", VotingMethodVeto, true},
		{"invalid", VotingMethod("borda"), false},
		{"empty", VotingMethod(""), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.valid, tt.method.IsValid())
		})
	}
}

func TestEventTypeIsValid(t *testing.T) {
	for _, et := range AllEventTypes() {
		assert.True(t, et.IsValid(), "event type %q must validate", et)
	}
	assert.Len(t, AllEventTypes(), 16)
	assert.False(t, EventType("member-timeout").IsValid())
	assert.False(t, EventType("").IsValid())
}
