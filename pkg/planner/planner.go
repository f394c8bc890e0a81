// Package planner produces council plans from questions. Static mode
// matches ordered rules and falls back to a question-length ladder;
// model mode asks a planner model for a plan under a strict JSON
// schema; hybrid escalates static plans of complex or expert grade to
// the model. Every plan leaving the package has passed the safety
// clamps.
package planner

import (
	"context"
	"log/slog"

	"github.com/synod-ai/synod/pkg/adapter"
	"github.com/synod-ai/synod/pkg/config"
	"github.com/synod-ai/synod/pkg/models"
)

// Plan sources reported on plan-ready events.
const (
	SourceStatic   = "static"
	SourceModel    = "model"
	SourceProvided = "provided"
)

// Planner turns questions into council plans.
type Planner struct {
	cfg     *config.PlannerConfig
	models  *config.ModelRegistry
	presets *config.PresetRegistry
	adapter adapter.ModelAdapter
	rules   []compiledRule
	logger  *slog.Logger
}

// New creates a planner. plannerAdapter is the model used for model and
// hybrid modes; nil restricts both to the static path.
func New(cfg *config.PlannerConfig, modelRegistry *config.ModelRegistry, presetRegistry *config.PresetRegistry, plannerAdapter adapter.ModelAdapter) *Planner {
	return &Planner{
		cfg:     cfg,
		models:  modelRegistry,
		presets: presetRegistry,
		adapter: plannerAdapter,
		rules:   compileRules(cfg.Rules),
		logger:  slog.With("component", "planner"),
	}
}

// Plan produces a clamped council plan for the question and reports
// which path produced it. Model-mode failures fall back to the static
// plan; the static path fails only when no models are registered.
func (p *Planner) Plan(ctx context.Context, question string) (*models.CouncilPlan, string, error) {
	return p.planWith(ctx, question, p.mode())
}

// PlanWithMode plans with an explicit mode, overriding the configured
// one. An invalid mode falls back to the configured default.
func (p *Planner) PlanWithMode(ctx context.Context, question string, mode models.PlannerMode) (*models.CouncilPlan, string, error) {
	if !mode.IsValid() {
		mode = p.mode()
	}
	return p.planWith(ctx, question, mode)
}

func (p *Planner) planWith(ctx context.Context, question string, mode models.PlannerMode) (*models.CouncilPlan, string, error) {
	switch mode {
	case models.PlannerModeModel:
		plan, err := p.modelPlan(ctx, question)
		if err == nil {
			return plan, SourceModel, nil
		}
		p.logger.Warn("Model planning failed, falling back to static plan",
			"error", err)
		plan, err = p.staticPlan(question)
		return plan, SourceStatic, err

	case models.PlannerModeHybrid:
		plan, err := p.staticPlan(question)
		if err != nil {
			return nil, SourceStatic, err
		}
		if p.adapter != nil && plan.Complexity.RequiresEscalation() {
			modelPlan, err := p.modelPlan(ctx, question)
			if err == nil {
				return modelPlan, SourceModel, nil
			}
			p.logger.Warn("Hybrid escalation failed, keeping static plan",
				"complexity", string(plan.Complexity),
				"error", err)
		}
		return plan, SourceStatic, nil

	default:
		plan, err := p.staticPlan(question)
		return plan, SourceStatic, err
	}
}

func (p *Planner) mode() models.PlannerMode {
	if p.cfg.Mode.IsValid() {
		return p.cfg.Mode
	}
	return models.PlannerModeHybrid
}
