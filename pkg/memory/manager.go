// Package memory carries deliberation context between iterations: a
// short-term tier of raw member exchanges, a working tier of distilled
// consensus/disagreements/open questions/key insights, and an optional
// long-term tier of retained insights.
package memory

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/synod-ai/synod/pkg/adapter"
	"github.com/synod-ai/synod/pkg/models"
)

// compressionMaxTokens caps the compressor's summary output.
const compressionMaxTokens = 200

// lowConfidenceCutoff marks votes whose positions stay open questions.
const lowConfidenceCutoff = 0.5

// insightMaxChars bounds how much of a synthesis answer is distilled
// into one key insight line.
const insightMaxChars = 200

const compressionSystemPrompt = `You compress multi-model deliberation history.
Produce a dense summary in at most 200 tokens. Preserve the current consensus,
unresolved disagreements, open questions, and decisions made so far.
Reply with the summary only.`

// Exchange is one short-term record of what a member said in a stage.
type Exchange struct {
	Iteration int
	Stage     models.Stage
	Member    string
	Content   string
	// Summary marks a compressor-produced record replacing raw history.
	Summary bool
}

// Working is the distilled tier carried across iterations.
type Working struct {
	Consensus     []string
	Disagreements []string
	OpenQuestions []string
	KeyInsights   []string
}

// CompressionResult reports one Compress call. Usage is informational;
// compressor tokens are not charged against the deliberation budget.
type CompressionResult struct {
	BeforeChars int
	AfterChars  int
	Summarized  bool
	Usage       models.TokenUsage
}

// Manager holds one session's memory tiers. Not safe for concurrent
// use; the pipeline mutates it between stages only.
type Manager struct {
	cfg        models.MemoryConfig
	compressor adapter.ModelAdapter

	shortTerm []Exchange
	working   Working
	longTerm  []string
}

// NewManager creates a memory manager. The compressor may be nil, in
// which case Compress always falls back to suffix truncation.
func NewManager(cfg models.MemoryConfig, compressor adapter.ModelAdapter) *Manager {
	return &Manager{cfg: cfg, compressor: compressor}
}

// UpdateFromStageResult appends the stage's exchanges to short-term
// memory and distils voting and synthesis outcomes into the working
// tier. A disabled manager records nothing.
func (m *Manager) UpdateFromStageResult(result *models.StageResult, iteration int) {
	if !m.cfg.Enabled || result == nil {
		return
	}

	for _, resp := range result.Responses {
		m.shortTerm = append(m.shortTerm, Exchange{
			Iteration: iteration,
			Stage:     result.Stage,
			Member:    resp.MemberName,
			Content:   resp.Content,
		})
	}

	switch result.Stage {
	case models.StageVoting:
		m.distillVoting(result.VotingResult, iteration)
	case models.StageSynthesis:
		m.distillSynthesis(result, iteration)
	}
}

func (m *Manager) distillVoting(vr *models.VotingResult, iteration int) {
	if vr == nil {
		return
	}

	winner := vr.WinnerOrEmpty()
	if m.cfg.PersistConsensus && vr.ConsensusReached && winner != "" {
		m.working.Consensus = appendUnique(m.working.Consensus,
			fmt.Sprintf("Iteration %d: consensus on %q (avg confidence %.2f)", iteration, winner, vr.ConfidenceAvg))
	}

	for _, vote := range vr.Votes {
		if vote.Position == "" {
			continue
		}
		if vote.Confidence < lowConfidenceCutoff {
			m.working.OpenQuestions = appendUnique(m.working.OpenQuestions,
				fmt.Sprintf("%s held %q at low confidence %.2f", vote.MemberName, vote.Position, vote.Confidence))
			continue
		}
		if m.cfg.PersistDisagreements && winner != "" && vote.Position != winner {
			m.working.Disagreements = appendUnique(m.working.Disagreements,
				fmt.Sprintf("%s dissented with %q against %q", vote.MemberName, vote.Position, winner))
		}
	}
}

func (m *Manager) distillSynthesis(result *models.StageResult, iteration int) {
	if !m.cfg.PersistKeyInsights || len(result.Responses) == 0 {
		return
	}

	answer := strings.TrimSpace(result.Responses[len(result.Responses)-1].Content)
	if answer == "" {
		return
	}
	if len(answer) > insightMaxChars {
		answer = answer[:insightMaxChars] + "..."
	}
	insight := fmt.Sprintf("Iteration %d answer: %s", iteration, answer)
	m.working.KeyInsights = appendUnique(m.working.KeyInsights, insight)

	if m.cfg.LongTermEnabled {
		m.longTerm = appendUnique(m.longTerm, insight)
	}
}

// IsOverLimit reports whether short-term memory exceeds the configured
// context budget.
func (m *Manager) IsOverLimit() bool {
	if !m.cfg.Enabled || m.cfg.MaxContextTokens <= 0 {
		return false
	}
	return EstimateTokens(m.shortTermText()) > m.cfg.MaxContextTokens
}

// Compress shrinks short-term memory. When compression is enabled and a
// compressor is available it asks for a bounded summary and replaces
// the raw history with it; any failure falls back to keeping the
// longest recent suffix that fits the budget. Compress never fails the
// pipeline.
func (m *Manager) Compress(ctx context.Context) CompressionResult {
	before := m.shortTermText()
	result := CompressionResult{BeforeChars: len(before)}

	if m.cfg.CompressionEnabled && m.compressor != nil {
		summary, usage, err := m.summarize(ctx, before)
		if err == nil && summary != "" {
			lastIteration := 0
			if n := len(m.shortTerm); n > 0 {
				lastIteration = m.shortTerm[n-1].Iteration
			}
			m.shortTerm = []Exchange{{
				Iteration: lastIteration,
				Member:    "memory",
				Content:   summary,
				Summary:   true,
			}}
			result.AfterChars = len(summary)
			result.Summarized = true
			result.Usage = usage
			return result
		}
		slog.Warn("Memory compression failed, keeping recent history",
			"error", err, "before_chars", result.BeforeChars)
	}

	m.truncateToFit()
	result.AfterChars = len(m.shortTermText())
	return result
}

func (m *Manager) summarize(ctx context.Context, history string) (string, models.TokenUsage, error) {
	messages := []models.Message{
		models.SystemMessage(compressionSystemPrompt),
		models.UserMessage(history + "\n\nCompress the deliberation history above."),
	}
	resp, err := m.compressor.Complete(ctx, messages, adapter.CompletionOptions{
		MaxTokens: compressionMaxTokens,
	})
	if err != nil {
		return "", models.TokenUsage{}, err
	}

	summary := strings.TrimSpace(resp.Content)
	if summary == "" {
		return "", resp.Usage, fmt.Errorf("compressor produced empty summary")
	}
	return summary, resp.Usage, nil
}

// truncateToFit drops the oldest exchanges until the remainder fits the
// budget. If even the newest exchange alone is too large, its text is
// cut from the front so the most recent lines survive.
func (m *Manager) truncateToFit() {
	if m.cfg.MaxContextTokens <= 0 {
		return
	}

	for len(m.shortTerm) > 1 && EstimateTokens(m.shortTermText()) > m.cfg.MaxContextTokens {
		m.shortTerm = m.shortTerm[1:]
	}

	if len(m.shortTerm) == 1 && EstimateTokens(m.shortTermText()) > m.cfg.MaxContextTokens {
		// Budget the raw content only: the rendered line carries an
		// iteration/member prefix that counts against the limit too.
		overheadChars := len(m.shortTermText()) - len(m.shortTerm[0].Content)
		budget := m.cfg.MaxContextTokens - (overheadChars+charsPerToken-1)/charsPerToken
		m.shortTerm[0].Content = keepSuffixWithinTokens(m.shortTerm[0].Content, budget)
	}
}

// GetContextPrompt serializes memory as markdown for prepending to the
// next iteration's user message. Output is deterministic: fixed section
// order, entries in insertion order.
func (m *Manager) GetContextPrompt() string {
	if !m.cfg.Enabled {
		return ""
	}

	var sb strings.Builder
	sb.WriteString("## Deliberation memory\n")

	writeSection(&sb, "Consensus so far", m.working.Consensus)
	writeSection(&sb, "Disagreements", m.working.Disagreements)
	writeSection(&sb, "Open questions", m.working.OpenQuestions)
	writeSection(&sb, "Key insights", m.working.KeyInsights)
	writeSection(&sb, "Prior knowledge", m.longTerm)

	if len(m.shortTerm) > 0 {
		sb.WriteString("\n### Recent exchanges\n")
		for _, ex := range m.shortTerm {
			if ex.Summary {
				sb.WriteString(fmt.Sprintf("[compressed summary] %s\n", ex.Content))
				continue
			}
			sb.WriteString(fmt.Sprintf("[iteration %d / %s] %s: %s\n", ex.Iteration, ex.Stage, ex.Member, ex.Content))
		}
	}

	return sb.String()
}

// Working returns the distilled tier for inspection.
func (m *Manager) Working() Working {
	return Working{
		Consensus:     append([]string(nil), m.working.Consensus...),
		Disagreements: append([]string(nil), m.working.Disagreements...),
		OpenQuestions: append([]string(nil), m.working.OpenQuestions...),
		KeyInsights:   append([]string(nil), m.working.KeyInsights...),
	}
}

// ExchangeCount returns the number of short-term records.
func (m *Manager) ExchangeCount() int {
	return len(m.shortTerm)
}

func (m *Manager) shortTermText() string {
	var sb strings.Builder
	for _, ex := range m.shortTerm {
		sb.WriteString(fmt.Sprintf("[iteration %d / %s] %s: %s\n", ex.Iteration, ex.Stage, ex.Member, ex.Content))
	}
	return sb.String()
}

func writeSection(sb *strings.Builder, title string, entries []string) {
	if len(entries) == 0 {
		return
	}
	sb.WriteString("\n### " + title + "\n")
	for _, entry := range entries {
		sb.WriteString("- " + entry + "\n")
	}
}

func appendUnique(entries []string, entry string) []string {
	for _, existing := range entries {
		if existing == entry {
			return entries
		}
	}
	return append(entries, entry)
}
