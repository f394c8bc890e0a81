package prompt

import (
	"fmt"
	"strings"

	"github.com/synod-ai/synod/pkg/models"
)

const (
	// digestMaxStages caps how many trailing stages the synthesis
	// digest replays.
	digestMaxStages = 6
	// digestResponseMaxChars caps each replayed response.
	digestResponseMaxChars = 300
)

// FormatQuestionSection builds the question section every stage shares.
func FormatQuestionSection(question string) string {
	var sb strings.Builder
	sb.WriteString("## Question\n")
	sb.WriteString(question)
	sb.WriteString("\n")
	return sb.String()
}

// FormatMemorySection wraps the memory manager's context prompt for
// iterations after the first. Empty input produces no section.
func FormatMemorySection(memoryContext string) string {
	if memoryContext == "" {
		return ""
	}
	var sb strings.Builder
	sb.WriteString(compressionPreamble)
	sb.WriteString("\n\n")
	sb.WriteString(memoryContext)
	sb.WriteString("\n")
	return sb.String()
}

// FormatResponsesSection renders member responses labelled by member
// name under the given heading.
func FormatResponsesSection(heading string, responses []models.MemberResponse) string {
	var sb strings.Builder
	sb.WriteString("## ")
	sb.WriteString(heading)
	sb.WriteString("\n\n")
	if len(responses) == 0 {
		sb.WriteString("(no responses)\n")
		return sb.String()
	}
	for _, r := range responses {
		sb.WriteString("### ")
		sb.WriteString(r.MemberName)
		sb.WriteString("\n")
		sb.WriteString(r.Content)
		sb.WriteString("\n\n")
	}
	return sb.String()
}

// FormatDebateDigest replays the deliberation for the synthesizer,
// capped to the last stages and with each response truncated so long
// debates stay inside the synthesis context window.
func FormatDebateDigest(stages []models.StageResult) string {
	if len(stages) > digestMaxStages {
		stages = stages[len(stages)-digestMaxStages:]
	}

	var sb strings.Builder
	sb.WriteString("## Deliberation digest\n\n")
	for _, stage := range stages {
		sb.WriteString(fmt.Sprintf("### Stage: %s\n", stage.Stage))
		for _, r := range stage.Responses {
			sb.WriteString(fmt.Sprintf("- **%s**: %s\n", r.MemberName, truncate(r.Content, digestResponseMaxChars)))
		}
		if stage.VotingResult != nil {
			sb.WriteString(fmt.Sprintf("- voting (%s): winner %s, avg confidence %.2f\n",
				stage.VotingResult.Method,
				stage.VotingResult.WinnerOrEmpty(),
				stage.VotingResult.ConfidenceAvg))
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

// FormatVotingResultSection renders the final tally for the synthesizer.
func FormatVotingResultSection(result *models.VotingResult) string {
	if result == nil {
		return "## Voting result\nNo vote was held.\n"
	}

	var sb strings.Builder
	sb.WriteString("## Voting result\n")
	sb.WriteString(fmt.Sprintf("- method: %s\n", result.Method))
	if result.Winner != nil {
		sb.WriteString(fmt.Sprintf("- winner: %s\n", *result.Winner))
	} else {
		sb.WriteString("- winner: none (no consensus)\n")
	}
	sb.WriteString(fmt.Sprintf("- consensus reached: %t\n", result.ConsensusReached))
	sb.WriteString(fmt.Sprintf("- average confidence: %.2f\n", result.ConfidenceAvg))
	for _, vote := range result.Votes {
		sb.WriteString(fmt.Sprintf("- %s voted %q (confidence %.2f)\n",
			vote.MemberName, vote.Position, vote.Confidence))
	}
	return sb.String()
}

// FormatIterationSummary renders the confidence trajectory across
// iterations, e.g. "0.71 → 0.92".
func FormatIterationSummary(iterations []models.IterationSnapshot) string {
	if len(iterations) == 0 {
		return ""
	}
	parts := make([]string, 0, len(iterations))
	for _, it := range iterations {
		parts = append(parts, fmt.Sprintf("%.2f", it.Confidence))
	}
	return fmt.Sprintf("## Iterations\nThe council deliberated %d time(s); confidence moved %s.\n",
		len(iterations), strings.Join(parts, " → "))
}

// FormatIterationDirective primes members for a follow-up iteration
// according to the plan's strategy.
func FormatIterationDirective(number int, previousConfidence float64, strategy models.IterationStrategy) string {
	if number <= 1 {
		return ""
	}

	var directive string
	switch strategy {
	case models.IterationStrategyEscalate:
		directive = "Raise your scrutiny: attack the weakest points of the previous round head-on."
	case models.IterationStrategySpecialize:
		directive = "Narrow your focus to the open questions left by the previous round."
	case models.IterationStrategyDebate:
		directive = "Engage the competing positions directly: argue for or against them rather than restating your own."
	default:
		directive = "Refine and sharpen the council's previous answer."
	}

	return fmt.Sprintf("## Iteration %d\nThe previous round ended with average confidence %.2f. %s\n",
		number, previousConfidence, directive)
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
