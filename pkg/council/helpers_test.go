package council

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/synod-ai/synod/pkg/adapter"
	"github.com/synod-ai/synod/pkg/config"
	"github.com/synod-ai/synod/pkg/events"
	"github.com/synod-ai/synod/pkg/models"
	"github.com/synod-ai/synod/pkg/planner"
	"github.com/synod-ai/synod/pkg/store"
)

// memberScript defines how a scripted model answers each stage. Voting
// answers are consumed one per voting round; the last entry repeats.
type memberScript struct {
	opinion   string
	review    string
	votes     []string
	synthesis string

	// delay is applied before every answer, interruptibly.
	delay time.Duration

	// failStages makes the model error on the given stages.
	failStages map[models.Stage]error
}

// scriptedAdapter plays a memberScript. Each seat gets its own
// instance, so voting rounds advance per member.
type scriptedAdapter struct {
	script memberScript

	mu        sync.Mutex
	voteCalls int
	users     []string
}

func (a *scriptedAdapter) Complete(ctx context.Context, messages []models.Message, _ adapter.CompletionOptions) (*adapter.Response, error) {
	if a.script.delay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(a.script.delay):
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	user := messages[len(messages)-1].Content
	a.users = append(a.users, user)

	stage := classifyStage(user)
	if err := a.script.failStages[stage]; err != nil {
		return nil, err
	}

	content := ""
	switch stage {
	case models.StageVoting:
		if n := len(a.script.votes); n > 0 {
			idx := a.voteCalls
			if idx >= n {
				idx = n - 1
			}
			content = a.script.votes[idx]
		}
		a.voteCalls++
	case models.StageReview:
		content = a.script.review
	case models.StageSynthesis:
		content = a.script.synthesis
	default:
		content = a.script.opinion
	}

	return &adapter.Response{
		Content:   content,
		Usage:     models.TokenUsage{Prompt: 40, Completion: 60, Total: 100},
		LatencyMs: 5,
	}, nil
}

func (a *scriptedAdapter) HealthCheck(context.Context) error { return nil }

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

// seatLog collects every adapter the factory seats, in creation order.
type seatLog struct {
	mu       sync.Mutex
	adapters []*scriptedAdapter
}

func (l *seatLog) add(a *scriptedAdapter) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.adapters = append(l.adapters, a)
}

// scriptedFactory seats a fresh scripted adapter per member, selected
// by model id.
func scriptedFactory(scripts map[string]memberScript, log *seatLog) adapter.Factory {
	return func(cfg *config.ModelConfig) (adapter.ModelAdapter, error) {
		script, ok := scripts[cfg.ID]
		if !ok {
			return nil, fmt.Errorf("no script for model %q", cfg.ID)
		}
		a := &scriptedAdapter{script: script}
		log.add(a)
		return a, nil
	}
}

// testEnv bundles the service with the stores tests inspect.
type testEnv struct {
	svc    *Service
	repo   *store.InMemory
	traces *events.TraceStore
	seats  *seatLog
}

// newTestEnv builds a service whose members answer from scripts. The
// registry holds one model per script key; the planner runs in static
// mode with the built-in presets available.
func newTestEnv(t *testing.T, scripts map[string]memberScript) *testEnv {
	t.Helper()

	modelCfgs := make(map[string]*config.ModelConfig, len(scripts))
	for id := range scripts {
		modelCfgs[id] = &config.ModelConfig{
			Kind:       config.ProviderKindOpenAICompatible,
			Deployment: id,
			Endpoint:   "https://models.invalid",
		}
	}
	registry := config.NewModelRegistry(modelCfgs)

	builtin := config.GetBuiltinConfig()
	cfg := &config.Config{
		Defaults: (*config.RunDefaults)(nil).RunConfig(),
		Planner: &config.PlannerConfig{
			Mode:   models.PlannerModeStatic,
			Rules:  builtin.Rules,
			Ladder: builtin.Ladder,
		},
		ModelRegistry:  registry,
		PresetRegistry: config.NewPresetRegistry(builtin.Presets),
	}

	traces := events.NewTraceStore()
	repo := store.NewInMemory()
	seats := &seatLog{}
	svc := NewService(cfg, planner.New(cfg.Planner, registry, cfg.PresetRegistry, nil), repo, events.NewBus(traces),
		WithAdapterFactory(scriptedFactory(scripts, seats)))

	return &testEnv{svc: svc, repo: repo, traces: traces, seats: seats}
}

// collectUsersByStage gathers the user prompts every seated adapter saw
// for one stage, in per-seat chronological order.
func collectUsersByStage(env *testEnv, stage models.Stage) []string {
	env.seats.mu.Lock()
	adapters := append([]*scriptedAdapter(nil), env.seats.adapters...)
	env.seats.mu.Unlock()

	var out []string
	for _, a := range adapters {
		a.mu.Lock()
		for _, user := range a.users {
			if classifyStage(user) == stage {
				out = append(out, user)
			}
		}
		a.mu.Unlock()
	}
	return out
}

// smallPlan is a three-seat council on one model: opinion-giver,
// reviewer, synthesizer, no iterations.
func smallPlan(modelID string) *models.CouncilPlan {
	return &models.CouncilPlan{
		Complexity:   models.ComplexitySimple,
		Domain:       "general",
		CouncilSize:  3,
		VotingMethod: models.VotingMethodMajority,
		Members: []models.PlanMember{
			{Model: modelID, Role: models.RoleOpinionGiver},
			{Model: modelID, Role: models.RoleReviewer},
			{Model: modelID, Role: models.RoleSynthesizer},
		},
	}
}

// ballot renders a well-formed voting response.
func ballot(position string, confidence float64) string {
	return fmt.Sprintf("POSITION: %s\nCONFIDENCE: %.2f\nREASONING: scripted vote", position, confidence)
}

// eventTypes projects trace events onto their type strings.
func eventTypes(evts []models.TraceEvent) []string {
	out := make([]string, 0, len(evts))
	for _, e := range evts {
		out = append(out, string(e.Type))
	}
	return out
}

// countEvents tallies occurrences of one event type.
func countEvents(evts []models.TraceEvent, eventType models.EventType) int {
	n := 0
	for _, e := range evts {
		if e.Type == eventType {
			n++
		}
	}
	return n
}
