package voting

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/synod-ai/synod/pkg/models"
)

func vote(memberID, position string, confidence float64) models.Vote {
	return models.Vote{
		MemberID:   memberID,
		MemberName: memberID,
		Position:   position,
		Confidence: confidence,
	}
}

func TestMajorityWinner(t *testing.T) {
	votes := []models.Vote{
		vote("m1", "A", 0.9),
		vote("m2", "A", 0.7),
		vote("m3", "B", 0.8),
	}

	result := Tally(votes, Config{Method: models.VotingMethodMajority})

	require.NotNil(t, result.Winner)
	assert.Equal(t, "A", *result.Winner)
	assert.True(t, result.ConsensusReached)
	assert.Equal(t, map[string]float64{"A": 2, "B": 1}, result.Breakdown)
	assert.InDelta(t, 0.8, result.ConfidenceAvg, 1e-9)
}

func TestMajorityTieHasNoWinner(t *testing.T) {
	// Four votes split evenly: no position holds a strict majority.
	votes := []models.Vote{
		vote("m1", "A", 0.8),
		vote("m2", "B", 0.8),
		vote("m3", "A", 0.8),
		vote("m4", "B", 0.8),
	}

	result := Tally(votes, Config{Method: models.VotingMethodMajority})

	assert.Nil(t, result.Winner)
	assert.False(t, result.ConsensusReached)
	assert.InDelta(t, 0.8, result.ConfidenceAvg, 1e-9)
	assert.Equal(t, map[string]float64{"A": 2, "B": 2}, result.Breakdown)
}

func TestSuperMajority(t *testing.T) {
	tests := []struct {
		name      string
		votes     []models.Vote
		threshold float64
		winner    string
	}{
		{
			name: "two thirds reached",
			votes: []models.Vote{
				vote("m1", "A", 0.9), vote("m2", "A", 0.8),
				vote("m3", "A", 0.7), vote("m4", "B", 0.6),
			},
			winner: "A",
		},
		{
			name: "two thirds missed",
			votes: []models.Vote{
				vote("m1", "A", 0.9), vote("m2", "A", 0.8),
				vote("m3", "B", 0.7), vote("m4", "B", 0.6),
			},
			winner: "",
		},
		{
			name: "custom threshold",
			votes: []models.Vote{
				vote("m1", "A", 0.9), vote("m2", "A", 0.8),
				vote("m3", "B", 0.7), vote("m4", "B", 0.6),
			},
			threshold: 0.5,
			winner:    "A", // tie at the threshold, broken by higher avg confidence
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Tally(tt.votes, Config{
				Method:                 models.VotingMethodSuperMajority,
				SuperMajorityThreshold: tt.threshold,
			})
			if tt.winner == "" {
				assert.Nil(t, result.Winner)
				assert.False(t, result.ConsensusReached)
			} else {
				require.NotNil(t, result.Winner)
				assert.Equal(t, tt.winner, *result.Winner)
			}
		})
	}
}

func TestUnanimous(t *testing.T) {
	all := []models.Vote{
		vote("m1", "A", 0.9), vote("m2", "A", 0.6), vote("m3", "A", 0.7),
	}
	result := Tally(all, Config{Method: models.VotingMethodUnanimous})
	require.NotNil(t, result.Winner)
	assert.Equal(t, "A", *result.Winner)

	split := []models.Vote{
		vote("m1", "A", 0.9), vote("m2", "A", 0.6), vote("m3", "B", 0.7),
	}
	result = Tally(split, Config{Method: models.VotingMethodUnanimous})
	assert.Nil(t, result.Winner)
}

func TestWeightedScoring(t *testing.T) {
	// A = 0.5*0.9 + 1.5*0.6 = 1.35, B = 1.0*0.8 = 0.8.
	votes := []models.Vote{
		vote("m1", "A", 0.9),
		vote("m2", "B", 0.8),
		vote("m3", "A", 0.6),
	}
	weights := map[string]float64{"m1": 0.5, "m2": 1.0, "m3": 1.5}

	result := Tally(votes, Config{Method: models.VotingMethodWeighted, Weights: weights})

	require.NotNil(t, result.Winner)
	assert.Equal(t, "A", *result.Winner)
	assert.InDelta(t, 1.35, result.Breakdown["A"], 1e-9)
	assert.InDelta(t, 0.8, result.Breakdown["B"], 1e-9)
}

func TestWeightedDefaultsToUnitWeight(t *testing.T) {
	votes := []models.Vote{
		vote("m1", "A", 0.9),
		vote("m2", "B", 0.5),
	}

	result := Tally(votes, Config{Method: models.VotingMethodWeighted})

	require.NotNil(t, result.Winner)
	assert.Equal(t, "A", *result.Winner)
	assert.InDelta(t, 0.9, result.Breakdown["A"], 1e-9)
}

func TestConfidenceScoring(t *testing.T) {
	// B wins on summed confidence despite fewer votes for A being higher individually.
	votes := []models.Vote{
		vote("m1", "A", 0.9),
		vote("m2", "B", 0.6),
		vote("m3", "B", 0.5),
	}

	result := Tally(votes, Config{Method: models.VotingMethodConfidence})

	require.NotNil(t, result.Winner)
	assert.Equal(t, "B", *result.Winner)
	assert.InDelta(t, 1.1, result.Breakdown["B"], 1e-9)
}

func TestTieBreakByAverageConfidence(t *testing.T) {
	// Two positions with one vote each: equal count, B has higher confidence.
	votes := []models.Vote{
		vote("m1", "A", 0.6),
		vote("m2", "B", 0.9),
	}

	result := Tally(votes, Config{Method: models.VotingMethodSuperMajority, SuperMajorityThreshold: 0.5})

	require.NotNil(t, result.Winner)
	assert.Equal(t, "B", *result.Winner)
}

func TestTieBreakLexicographic(t *testing.T) {
	// Equal count and equal confidence: the smaller position string wins.
	votes := []models.Vote{
		vote("m1", "B", 0.8),
		vote("m2", "A", 0.8),
	}

	result := Tally(votes, Config{Method: models.VotingMethodSuperMajority, SuperMajorityThreshold: 0.5})

	require.NotNil(t, result.Winner)
	assert.Equal(t, "A", *result.Winner)
}

func TestVetoBlocksConsensus(t *testing.T) {
	votes := []models.Vote{
		vote("m1", "A", 0.9),
		vote("m2", "A", 0.8),
		vote("m3", "A", 0.7),
		{MemberID: "m4", MemberName: "m4", Position: "B", Confidence: 0.9, Reasoning: "unsafe assumption", Veto: true},
	}

	result := Tally(votes, Config{Method: models.VotingMethodVeto})

	assert.Nil(t, result.Winner)
	assert.False(t, result.ConsensusReached)
	require.NotNil(t, result.Metadata)
	assert.Equal(t, []string{"m4"}, result.Metadata["vetoers"])
	reasons, ok := result.Metadata["veto_reasons"].(map[string]string)
	require.True(t, ok)
	assert.Equal(t, "unsafe assumption", reasons["m4"])
}

func TestVetoWithoutVetoesActsLikeMajority(t *testing.T) {
	votes := []models.Vote{
		vote("m1", "A", 0.9),
		vote("m2", "A", 0.8),
		vote("m3", "B", 0.7),
	}

	result := Tally(votes, Config{Method: models.VotingMethodVeto})

	require.NotNil(t, result.Winner)
	assert.Equal(t, "A", *result.Winner)
	assert.True(t, result.ConsensusReached)
}

func TestRankedChoiceInstantRunoff(t *testing.T) {
	// First round: A=2, B=2, C=1. C is eliminated; its ballot transfers
	// to B, giving B 3 of 5 in round two.
	ballot := func(id string, rank ...string) models.Vote {
		return models.Vote{MemberID: id, Position: rank[0], Confidence: 0.8, Rank: rank}
	}
	votes := []models.Vote{
		ballot("m1", "A", "B", "C"),
		ballot("m2", "A", "C", "B"),
		ballot("m3", "B", "A", "C"),
		ballot("m4", "B", "C", "A"),
		ballot("m5", "C", "B", "A"),
	}

	result := Tally(votes, Config{Method: models.VotingMethodRankedChoice})

	require.NotNil(t, result.Winner)
	assert.Equal(t, "B", *result.Winner)
	assert.Equal(t, 2, result.RoundsNeeded)
	assert.Equal(t, map[string]float64{"A": 2, "B": 2, "C": 1}, result.Breakdown)
}

func TestRankedChoiceFirstRoundMajority(t *testing.T) {
	votes := []models.Vote{
		{MemberID: "m1", Position: "A", Confidence: 0.9, Rank: []string{"A", "B"}},
		{MemberID: "m2", Position: "A", Confidence: 0.8, Rank: []string{"A", "B"}},
		{MemberID: "m3", Position: "B", Confidence: 0.7, Rank: []string{"B", "A"}},
	}

	result := Tally(votes, Config{Method: models.VotingMethodRankedChoice})

	require.NotNil(t, result.Winner)
	assert.Equal(t, "A", *result.Winner)
	assert.Equal(t, 1, result.RoundsNeeded)
}

func TestRankedChoiceWithoutBallotsDegrades(t *testing.T) {
	votes := []models.Vote{
		vote("m1", "A", 0.9),
		vote("m2", "B", 0.8),
	}

	result := Tally(votes, Config{Method: models.VotingMethodRankedChoice})

	assert.Nil(t, result.Winner)
	assert.False(t, result.ConsensusReached)
	assert.Equal(t, 0, result.RoundsNeeded)
}

func TestEmptyVoteSet(t *testing.T) {
	result := Tally(nil, Config{Method: models.VotingMethodMajority})

	assert.Nil(t, result.Winner)
	assert.False(t, result.ConsensusReached)
	assert.Equal(t, 0.0, result.ConfidenceAvg)
	assert.Empty(t, result.Breakdown)
	assert.Empty(t, result.Votes)
}

func TestTallyIsDeterministicAcrossInputOrder(t *testing.T) {
	forward := []models.Vote{
		vote("m1", "A", 0.9),
		vote("m2", "B", 0.8),
		vote("m3", "A", 0.6),
	}
	reversed := []models.Vote{forward[2], forward[1], forward[0]}

	cfg := Config{Method: models.VotingMethodWeighted, Weights: map[string]float64{"m1": 0.5, "m3": 1.5}}

	assert.Equal(t, Tally(forward, cfg), Tally(reversed, cfg))
}

func TestTallyIsIdempotent(t *testing.T) {
	votes := []models.Vote{
		vote("m1", "A", 0.9),
		vote("m2", "B", 0.8),
	}
	cfg := Config{Method: models.VotingMethodMajority}

	first := Tally(votes, cfg)
	second := Tally(votes, cfg)

	assert.Equal(t, first, second)
}

func TestTallyDoesNotMutateInput(t *testing.T) {
	votes := []models.Vote{
		vote("m2", "B", 0.8),
		vote("m1", "A", 0.9),
	}

	_ = Tally(votes, Config{Method: models.VotingMethodMajority})

	assert.Equal(t, "m2", votes[0].MemberID)
	assert.Equal(t, "m1", votes[1].MemberID)
}

func TestUnknownMethodFallsBackToMajority(t *testing.T) {
	votes := []models.Vote{
		vote("m1", "A", 0.9),
		vote("m2", "A", 0.7),
		vote("m3", "B", 0.8),
	}

	result := Tally(votes, Config{Method: models.VotingMethod("approval")})

	assert.Equal(t, models.VotingMethodMajority, result.Method)
	require.NotNil(t, result.Winner)
	assert.Equal(t, "A", *result.Winner)
}
