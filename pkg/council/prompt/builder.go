package prompt

import (
	"strings"

	"github.com/synod-ai/synod/pkg/models"
)

// Builder composes the conversation for each stage of a deliberation.
// Stateless and thread-safe.
type Builder struct{}

// NewBuilder creates a prompt builder.
func NewBuilder() *Builder {
	return &Builder{}
}

// IterationInfo primes follow-up iterations. The zero value means the
// first iteration, which adds no directive.
type IterationInfo struct {
	Number             int
	PreviousConfidence float64
	Strategy           models.IterationStrategy
}

// SystemPrompt returns a member's effective system prompt: the persona
// when one is set, otherwise the canonical prompt for the role.
func (b *Builder) SystemPrompt(member models.Member) string {
	if member.Persona != "" {
		return member.Persona
	}
	return RolePrompt(member.Role)
}

// BuildOpinionMessages builds the conversation for one opinions-stage
// member: role prompt as system, then memory context, iteration
// directive, question, and task.
func (b *Builder) BuildOpinionMessages(member models.Member, question, memoryContext string, iter IterationInfo) []models.Message {
	var sb strings.Builder
	writeSection(&sb, FormatMemorySection(memoryContext))
	writeSection(&sb, FormatIterationDirective(iter.Number, iter.PreviousConfidence, iter.Strategy))
	writeSection(&sb, FormatQuestionSection(question))
	sb.WriteString(opinionTask)

	return []models.Message{
		models.SystemMessage(b.SystemPrompt(member)),
		models.UserMessage(sb.String()),
	}
}

// BuildReviewMessages builds the conversation for one review-stage
// member over the labelled opinions.
func (b *Builder) BuildReviewMessages(member models.Member, question string, opinions []models.MemberResponse, memoryContext string, iter IterationInfo) []models.Message {
	var sb strings.Builder
	writeSection(&sb, FormatMemorySection(memoryContext))
	writeSection(&sb, FormatIterationDirective(iter.Number, iter.PreviousConfidence, iter.Strategy))
	writeSection(&sb, FormatQuestionSection(question))
	writeSection(&sb, FormatResponsesSection("Council opinions", opinions))
	sb.WriteString(reviewTask)

	return []models.Message{
		models.SystemMessage(b.SystemPrompt(member)),
		models.UserMessage(sb.String()),
	}
}

// BuildVotingMessages builds the structured-vote conversation for one
// voting member. Reviews are included when the review stage ran.
func (b *Builder) BuildVotingMessages(member models.Member, question string, opinions, reviews []models.MemberResponse) []models.Message {
	var sb strings.Builder
	writeSection(&sb, FormatQuestionSection(question))
	writeSection(&sb, FormatResponsesSection("Council opinions", opinions))
	if len(reviews) > 0 {
		writeSection(&sb, FormatResponsesSection("Council reviews", reviews))
	}
	sb.WriteString(votingTask)

	return []models.Message{
		models.SystemMessage(b.SystemPrompt(member)),
		models.UserMessage(sb.String()),
	}
}

// BuildSynthesisMessages builds the conversation for the synthesizer:
// the capped debate digest, the final voting result, and the iteration
// confidence trajectory.
func (b *Builder) BuildSynthesisMessages(member models.Member, question string, stages []models.StageResult, finalVote *models.VotingResult, iterations []models.IterationSnapshot) []models.Message {
	var sb strings.Builder
	writeSection(&sb, FormatQuestionSection(question))
	writeSection(&sb, FormatDebateDigest(stages))
	writeSection(&sb, FormatVotingResultSection(finalVote))
	writeSection(&sb, FormatIterationSummary(iterations))
	sb.WriteString(synthesisTask)

	return []models.Message{
		models.SystemMessage(b.SystemPrompt(member)),
		models.UserMessage(sb.String()),
	}
}

// writeSection appends a section and a blank separator line, skipping
// empty sections entirely.
func writeSection(sb *strings.Builder, section string) {
	if section == "" {
		return
	}
	sb.WriteString(section)
	sb.WriteString("\n")
}
