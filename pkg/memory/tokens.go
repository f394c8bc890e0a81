package memory

import (
	"strings"
	"unicode/utf8"
)

// charsPerToken is the approximate number of characters per token for
// English text. Used for threshold estimation only — not exact counting.
const charsPerToken = 4

// EstimateTokens returns an approximate token count for the given text.
// Uses the common heuristic of ~4 characters per token.
//
// Note: len(text) counts bytes, not Unicode characters. For multi-byte
// UTF-8 content this overestimates the token count, which is the safe
// direction — compression triggers slightly earlier than necessary.
func EstimateTokens(text string) int {
	if len(text) == 0 {
		return 0
	}
	return (len(text) + charsPerToken - 1) / charsPerToken // Round up
}

// droppedMarker replaces history removed by keepSuffixWithinTokens. It
// counts against the budget like any other text.
const droppedMarker = "[earlier history dropped]\n"

// keepSuffixWithinTokens cuts history from the FRONT so the most recent
// text survives. The returned text, marker included, fits the token
// budget. The cut lands after a newline when one exists, so no exchange
// line is split in half, and never splits a multi-byte UTF-8 character.
func keepSuffixWithinTokens(content string, maxTokens int) string {
	maxChars := maxTokens * charsPerToken
	if maxChars <= 0 || len(content) <= maxChars {
		return content
	}

	keep := maxChars - len(droppedMarker)
	if keep < 0 {
		keep = 0
	}

	cut := len(content) - keep
	for cut < len(content) && !utf8.RuneStart(content[cut]) {
		cut++
	}
	kept := content[cut:]
	if idx := strings.Index(kept, "\n"); idx >= 0 && idx < len(kept)-1 {
		kept = kept[idx+1:]
	}
	return droppedMarker + kept
}
