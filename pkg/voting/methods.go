package voting

import (
	"math"
	"sort"

	"github.com/synod-ai/synod/pkg/models"
)

// tallyMajority counts votes per position; a position wins with strictly
// more than half the votes.
func tallyMajority(votes []models.Vote, result *models.VotingResult) {
	for _, v := range votes {
		result.Breakdown[v.Position]++
	}
	winner, count := pickWinner(result.Breakdown, votes)
	if count > float64(len(votes))/2 {
		setWinner(result, winner)
	}
}

// tallySuperMajority counts votes per position; a position wins with at
// least ceil(n * threshold) votes. A threshold of 1.0 demands unanimity.
func tallySuperMajority(votes []models.Vote, threshold float64, result *models.VotingResult) {
	for _, v := range votes {
		result.Breakdown[v.Position]++
	}
	required := math.Ceil(float64(len(votes)) * threshold)
	winner, count := pickWinner(result.Breakdown, votes)
	if count >= required {
		setWinner(result, winner)
	}
	result.Metadata = map[string]any{"required_votes": int(required)}
}

// tallyWeighted scores each position as the sum of member weight times
// vote confidence. Members without a configured weight count as 1.0.
func tallyWeighted(votes []models.Vote, weights map[string]float64, result *models.VotingResult) {
	for _, v := range votes {
		weight := 1.0
		if w, ok := weights[v.MemberID]; ok {
			weight = w
		}
		result.Breakdown[v.Position] += weight * v.Confidence
	}
	winner, score := pickWinner(result.Breakdown, votes)
	if score > 0 {
		setWinner(result, winner)
	}
}

// tallyConfidence scores each position as the sum of vote confidence.
func tallyConfidence(votes []models.Vote, result *models.VotingResult) {
	for _, v := range votes {
		result.Breakdown[v.Position] += v.Confidence
	}
	winner, score := pickWinner(result.Breakdown, votes)
	if score > 0 {
		setWinner(result, winner)
	}
}

// tallyRankedChoice runs instant-runoff rounds over the votes' rank
// ballots: count first choices, declare a winner once a position holds
// more than half the active ballots, otherwise eliminate the weakest
// position and recount. Votes without a ballot are ignored; if no ballots
// exist at all the tally degrades to a null winner with zero rounds.
func tallyRankedChoice(votes []models.Vote, result *models.VotingResult) {
	var ballots [][]string
	for _, v := range votes {
		if len(v.Rank) > 0 {
			ballots = append(ballots, v.Rank)
		}
	}
	if len(ballots) == 0 {
		return
	}

	eliminated := map[string]bool{}
	avgConf := positionConfidence(votes)

	for round := 1; round <= MaxRankedChoiceRounds; round++ {
		counts := map[string]float64{}
		active := 0
		for _, ballot := range ballots {
			for _, choice := range ballot {
				if !eliminated[choice] {
					counts[choice]++
					active++
					break
				}
			}
		}
		result.RoundsNeeded = round

		if active == 0 {
			return
		}

		// Record the first round's distribution as the breakdown.
		if round == 1 {
			for pos, c := range counts {
				result.Breakdown[pos] = c
			}
		}

		top, topCount := pickWinner(counts, votes)
		if topCount > float64(active)/2 {
			setWinner(result, top)
			return
		}
		if len(counts) <= 1 {
			// A single surviving position that cannot reach a majority
			// means the ballots are exhausted.
			return
		}

		eliminate(counts, avgConf, eliminated)
	}
}

// eliminate marks the weakest position of the round: lowest count, ties
// broken by lower average confidence, then lexicographically last so the
// smaller position string survives, mirroring the winner tie-break.
func eliminate(counts map[string]float64, avgConf map[string]float64, eliminated map[string]bool) {
	positions := make([]string, 0, len(counts))
	for pos := range counts {
		positions = append(positions, pos)
	}
	sort.Strings(positions)

	var weakest string
	var lowest float64
	found := false
	for _, pos := range positions {
		count := counts[pos]
		switch {
		case !found || count < lowest:
			weakest, lowest, found = pos, count, true
		case count == lowest && avgConf[pos] < avgConf[weakest]:
			weakest = pos
		case count == lowest && avgConf[pos] == avgConf[weakest] && pos > weakest:
			weakest = pos
		}
	}
	if found {
		eliminated[weakest] = true
	}
}

// tallyVeto runs a majority tally, then blocks consensus entirely if any
// vote carries a veto. Vetoers and their reasoning are surfaced in the
// result metadata.
func tallyVeto(votes []models.Vote, result *models.VotingResult) {
	tallyMajority(votes, result)

	var vetoers []string
	reasons := map[string]string{}
	for _, v := range votes {
		if v.Veto {
			vetoers = append(vetoers, v.MemberID)
			reasons[v.MemberID] = v.Reasoning
		}
	}
	if len(vetoers) == 0 {
		return
	}

	result.Winner = nil
	result.ConsensusReached = false
	result.Metadata = map[string]any{
		"vetoers":      vetoers,
		"veto_reasons": reasons,
	}
}
