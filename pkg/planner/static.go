package planner

import (
	"fmt"
	"log/slog"
	"regexp"

	"github.com/synod-ai/synod/pkg/config"
	"github.com/synod-ai/synod/pkg/models"
)

// Preset names the length ladder resolves to. The built-in presets
// always carry these names; user presets may override their contents.
const (
	presetSmall    = "small"
	presetStandard = "standard"
	presetDiverse  = "diverse"
)

// compiledRule is a planning rule with its pattern pre-compiled.
type compiledRule struct {
	pattern         string
	regex           *regexp.Regexp
	preset          string
	complexity      models.Complexity
	allowIterations bool
}

// compileRules compiles rule patterns eagerly. Invalid patterns are
// logged and skipped; the validator normally rejects them earlier.
func compileRules(rules []config.PlanRule) []compiledRule {
	compiled := make([]compiledRule, 0, len(rules))
	for _, rule := range rules {
		regex, err := regexp.Compile(rule.Pattern)
		if err != nil {
			slog.Error("Failed to compile planning rule, skipping",
				"pattern", rule.Pattern, "error", err)
			continue
		}
		complexity := rule.Complexity
		if !complexity.IsValid() {
			complexity = models.ComplexityModerate
		}
		compiled = append(compiled, compiledRule{
			pattern:         rule.Pattern,
			regex:           regex,
			preset:          rule.Preset,
			complexity:      complexity,
			allowIterations: rule.AllowIterations,
		})
	}
	return compiled
}

// staticPlan matches the question against the rule list, first match
// wins, and grades unmatched questions by length. Fails only when the
// model registry cannot seat a council.
func (p *Planner) staticPlan(question string) (*models.CouncilPlan, error) {
	for _, rule := range p.rules {
		if !rule.regex.MatchString(question) {
			continue
		}
		plan, err := p.planFromPreset(
			rule.preset,
			rule.complexity,
			rule.allowIterations,
			fmt.Sprintf("matched rule %q", rule.pattern),
		)
		if err != nil {
			p.logger.Warn("Rule preset unavailable, falling through to length ladder",
				"preset", rule.preset, "error", err)
			break
		}
		return plan, nil
	}
	return p.ladderPlan(question)
}

// ladderPlan grades a question by character length. Longer questions
// get larger councils and the iteration loop.
func (p *Planner) ladderPlan(question string) (*models.CouncilPlan, error) {
	ladder := p.cfg.Ladder
	length := len(question)

	switch {
	case length < ladder.Short:
		return p.planFromPreset(presetSmall, models.ComplexitySimple, false,
			fmt.Sprintf("short question (%d chars)", length))
	case length < ladder.Medium:
		return p.planFromPreset(presetStandard, models.ComplexityModerate, false,
			fmt.Sprintf("medium question (%d chars)", length))
	case length < ladder.Long:
		return p.planFromPreset(presetStandard, models.ComplexityModerate, true,
			fmt.Sprintf("long question (%d chars)", length))
	default:
		return p.planFromPreset(presetDiverse, models.ComplexityComplex, true,
			fmt.Sprintf("very long question (%d chars)", length))
	}
}

// planFromPreset expands a named preset into a clamped council plan.
func (p *Planner) planFromPreset(name string, complexity models.Complexity, allowIterations bool, reason string) (*models.CouncilPlan, error) {
	preset, err := p.presets.Get(name)
	if err != nil {
		return nil, err
	}

	plan := &models.CouncilPlan{
		Complexity:      complexity,
		Domain:          "general",
		Reasoning:       reason,
		CouncilSize:     preset.Size,
		Members:         make([]models.PlanMember, 0, len(preset.Members)),
		VotingMethod:    preset.VotingMethod,
		AllowIterations: allowIterations,
	}
	for _, seat := range preset.Members {
		plan.Members = append(plan.Members, models.PlanMember{
			Model:   seat.Model,
			Role:    seat.Role,
			Persona: seat.Persona,
			Weight:  seat.Weight,
		})
	}

	if err := applyClamps(plan, p.models); err != nil {
		return nil, err
	}
	return plan, nil
}
