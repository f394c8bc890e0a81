// Package voting tallies council votes into a VotingResult. The tally is a
// pure function: it never errors, never mutates its input, and is
// deterministic for any ordering of the same vote set.
package voting

import (
	"sort"

	"github.com/synod-ai/synod/pkg/models"
)

// DefaultSuperMajorityThreshold is the fraction of votes required by the
// super-majority method when no threshold is configured.
const DefaultSuperMajorityThreshold = 2.0 / 3.0

// MaxRankedChoiceRounds caps instant-runoff elimination rounds.
const MaxRankedChoiceRounds = 100

// Config selects and parameterizes the tally method.
type Config struct {
	Method models.VotingMethod
	// SuperMajorityThreshold is the required vote fraction for the
	// super-majority method. Zero means DefaultSuperMajorityThreshold.
	SuperMajorityThreshold float64
	// Weights maps member id to voting weight for the weighted method.
	// Missing entries count as weight 1.0.
	Weights map[string]float64
}

// Tally computes the outcome of one vote set. Votes are evaluated in
// member-id order regardless of arrival order, so equal vote sets always
// produce equal results.
func Tally(votes []models.Vote, cfg Config) models.VotingResult {
	sorted := sortVotes(votes)

	result := models.VotingResult{
		Method:        cfg.Method,
		Votes:         sorted,
		Breakdown:     map[string]float64{},
		ConfidenceAvg: confidenceAvg(sorted),
	}

	if len(sorted) == 0 {
		return result
	}

	switch cfg.Method {
	case models.VotingMethodMajority:
		tallyMajority(sorted, &result)
	case models.VotingMethodSuperMajority:
		threshold := cfg.SuperMajorityThreshold
		if threshold <= 0 {
			threshold = DefaultSuperMajorityThreshold
		}
		tallySuperMajority(sorted, threshold, &result)
	case models.VotingMethodUnanimous:
		tallySuperMajority(sorted, 1.0, &result)
	case models.VotingMethodWeighted:
		tallyWeighted(sorted, cfg.Weights, &result)
	case models.VotingMethodConfidence:
		tallyConfidence(sorted, &result)
	case models.VotingMethodRankedChoice:
		tallyRankedChoice(sorted, &result)
	case models.VotingMethodVeto:
		tallyVeto(sorted, &result)
	default:
		// Unknown methods fall back to majority.
		result.Method = models.VotingMethodMajority
		tallyMajority(sorted, &result)
	}

	return result
}

// sortVotes returns a copy ordered by member id.
func sortVotes(votes []models.Vote) []models.Vote {
	sorted := append([]models.Vote(nil), votes...)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].MemberID < sorted[j].MemberID
	})
	return sorted
}

// confidenceAvg is the arithmetic mean of all votes' confidence.
func confidenceAvg(votes []models.Vote) float64 {
	if len(votes) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range votes {
		sum += v.Confidence
	}
	return sum / float64(len(votes))
}

// pickWinner selects the position with the highest score. Ties are broken
// by higher average confidence for the position, then by lexicographically
// smaller position string.
func pickWinner(scores map[string]float64, votes []models.Vote) (string, float64) {
	positions := make([]string, 0, len(scores))
	for pos := range scores {
		positions = append(positions, pos)
	}
	sort.Strings(positions)

	avgConf := positionConfidence(votes)

	var winner string
	var best float64
	found := false
	for _, pos := range positions {
		score := scores[pos]
		switch {
		case !found || score > best:
			winner, best, found = pos, score, true
		case score == best && avgConf[pos] > avgConf[winner]:
			winner = pos
		}
	}
	if !found {
		return "", 0
	}
	return winner, best
}

// positionConfidence averages vote confidence per position.
func positionConfidence(votes []models.Vote) map[string]float64 {
	sums := map[string]float64{}
	counts := map[string]int{}
	for _, v := range votes {
		sums[v.Position] += v.Confidence
		counts[v.Position]++
	}
	avg := make(map[string]float64, len(sums))
	for pos, sum := range sums {
		avg[pos] = sum / float64(counts[pos])
	}
	return avg
}

func setWinner(result *models.VotingResult, position string) {
	result.Winner = &position
	result.ConsensusReached = true
}
