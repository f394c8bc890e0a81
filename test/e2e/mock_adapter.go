package e2e

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/synod-ai/synod/pkg/adapter"
	"github.com/synod-ai/synod/pkg/config"
	"github.com/synod-ai/synod/pkg/models"
)

// MemberScript defines how a scripted model answers each stage. Votes
// are consumed one per voting round; the last entry repeats. Zero-value
// fields fall back to generic answers, so a script only needs to spell
// out the parts a test asserts on. Scripted text must not contain the
// stage task phrases the classifier keys on.
type MemberScript struct {
	Opinion   string
	Review    string
	Votes     []string
	Synthesis string

	// Delay is applied before every answer, interruptibly.
	Delay time.Duration

	// FailStages makes the model error whenever it is called for one of
	// the listed stages.
	FailStages map[models.Stage]error
}

// Ballot renders a well-formed voting response.
func Ballot(position string, confidence float64) string {
	return fmt.Sprintf("POSITION: %s\nCONFIDENCE: %.2f\nREASONING: scripted vote", position, confidence)
}

// VetoBallot renders a ballot that blocks consensus.
func VetoBallot(position string, confidence float64, reason string) string {
	return fmt.Sprintf("POSITION: %s\nCONFIDENCE: %.2f\nREASONING: %s\nVETO: yes", position, confidence, reason)
}

// ScriptedAdapter plays a MemberScript. Every council seat gets its own
// instance, so vote consumption advances per member.
type ScriptedAdapter struct {
	ModelID string

	mu        sync.Mutex
	script    MemberScript
	voteCalls int
	stages    []models.Stage
}

func (a *ScriptedAdapter) Complete(ctx context.Context, messages []models.Message, _ adapter.CompletionOptions) (*adapter.Response, error) {
	if a.script.Delay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(a.script.Delay):
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	stage := classifyStage(messages[len(messages)-1].Content)
	a.stages = append(a.stages, stage)

	if err := a.script.FailStages[stage]; err != nil {
		return nil, err
	}

	var content string
	switch stage {
	case models.StageVoting:
		if n := len(a.script.Votes); n > 0 {
			idx := a.voteCalls
			if idx >= n {
				idx = n - 1
			}
			content = a.script.Votes[idx]
		} else {
			content = Ballot("agree", 0.9)
		}
		a.voteCalls++
	case models.StageReview:
		content = a.script.Review
		if content == "" {
			content = "The opinions hold up under scrutiny."
		}
	case models.StageSynthesis:
		content = a.script.Synthesis
		if content == "" {
			content = "Synthesized council position."
		}
	default:
		content = a.script.Opinion
		if content == "" {
			content = "A considered take on the question."
		}
	}

	return &adapter.Response{
		Content:   content,
		Usage:     models.TokenUsage{Prompt: 40, Completion: 60, Total: 100},
		LatencyMs: 5,
	}, nil
}

func (a *ScriptedAdapter) HealthCheck(context.Context) error { return nil }

// Stages returns the stages this seat answered, in call order.
func (a *ScriptedAdapter) Stages() []models.Stage {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]models.Stage(nil), a.stages...)
}

// classifyStage recognizes the stage from the task text the prompt
// builder appends to every user message.
func classifyStage(user string) models.Stage {
	switch {
	case strings.Contains(user, "final answer"):
		return models.StageSynthesis
	case strings.Contains(user, "Cast your vote"):
		return models.StageVoting
	case strings.Contains(user, "Critique the opinions"):
		return models.StageReview
	default:
		return models.StageOpinions
	}
}

// ScriptBook routes scripts by model id and records every seat it
// creates. Models without a script play the zero script.
type ScriptBook struct {
	mu      sync.Mutex
	scripts map[string]MemberScript
	seated  []*ScriptedAdapter
}

func NewScriptBook() *ScriptBook {
	return &ScriptBook{scripts: make(map[string]MemberScript)}
}

// Set assigns the script one model id plays.
func (b *ScriptBook) Set(modelID string, script MemberScript) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.scripts[modelID] = script
}

// Factory seats a fresh adapter per member.
func (b *ScriptBook) Factory() adapter.Factory {
	return func(cfg *config.ModelConfig) (adapter.ModelAdapter, error) {
		b.mu.Lock()
		defer b.mu.Unlock()
		a := &ScriptedAdapter{ModelID: cfg.ID, script: b.scripts[cfg.ID]}
		b.seated = append(b.seated, a)
		return a, nil
	}
}

// Seated returns every adapter created so far, in creation order.
func (b *ScriptBook) Seated() []*ScriptedAdapter {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]*ScriptedAdapter(nil), b.seated...)
}
