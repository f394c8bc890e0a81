package council

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/synod-ai/synod/pkg/models"
)

// Vote extraction is tolerant: members write free-form text and the
// parser pulls out the structured lines, falling back to defaults when
// a line is missing.
const (
	// defaultVoteConfidence is assumed when no CONFIDENCE line parses.
	defaultVoteConfidence = 0.7
	// positionFallbackChars bounds the position taken from the raw
	// response when no POSITION line is present.
	positionFallbackChars = 100
)

var (
	positionRe   = regexp.MustCompile(`(?im)^\s*POSITION:\s*(.+)$`)
	confidenceRe = regexp.MustCompile(`(?im)^\s*CONFIDENCE:\s*([0-9.]+)`)
	reasoningRe  = regexp.MustCompile(`(?im)^\s*REASONING:\s*(.+)$`)
	vetoRe       = regexp.MustCompile(`(?im)^\s*VETO:\s*(yes|true)\b`)
	rankRe       = regexp.MustCompile(`(?im)^\s*RANK:\s*(.+)$`)
)

// ParseVote extracts one member's vote from its voting-stage response.
// The second return is false when the response carries no usable text
// at all.
func ParseVote(resp models.MemberResponse) (models.Vote, bool) {
	content := strings.TrimSpace(resp.Content)
	if content == "" {
		return models.Vote{}, false
	}

	vote := models.Vote{
		MemberID:   resp.MemberID,
		MemberName: resp.MemberName,
		Confidence: defaultVoteConfidence,
		Timestamp:  resp.Timestamp,
	}

	if m := positionRe.FindStringSubmatch(content); m != nil {
		vote.Position = strings.TrimSpace(m[1])
	} else {
		vote.Position = truncatePosition(content)
	}

	if m := confidenceRe.FindStringSubmatch(content); m != nil {
		if v, err := strconv.ParseFloat(m[1], 64); err == nil {
			vote.Confidence = clampConfidence(v)
		}
	}

	if m := reasoningRe.FindStringSubmatch(content); m != nil {
		vote.Reasoning = strings.TrimSpace(m[1])
	}

	vote.Veto = vetoRe.MatchString(content)

	if m := rankRe.FindStringSubmatch(content); m != nil {
		vote.Rank = parseRank(m[1])
	}

	return vote, true
}

// ParseVotes extracts every parseable vote from a voting stage's
// responses, preserving response order.
func ParseVotes(responses []models.MemberResponse) []models.Vote {
	votes := make([]models.Vote, 0, len(responses))
	for _, resp := range responses {
		if vote, ok := ParseVote(resp); ok {
			votes = append(votes, vote)
		}
	}
	return votes
}

func truncatePosition(content string) string {
	if len(content) <= positionFallbackChars {
		return content
	}
	return content[:positionFallbackChars]
}

func clampConfidence(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// parseRank splits a ranked ballot line. Both "A > B > C" and
// "A, B, C" orderings are accepted.
func parseRank(line string) []string {
	sep := ">"
	if !strings.Contains(line, ">") {
		sep = ","
	}

	var rank []string
	for _, part := range strings.Split(line, sep) {
		if p := strings.TrimSpace(part); p != "" {
			rank = append(rank, p)
		}
	}
	return rank
}
