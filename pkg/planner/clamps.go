package planner

import (
	"fmt"
	"log/slog"

	"github.com/synod-ai/synod/pkg/config"
	"github.com/synod-ai/synod/pkg/models"
)

const (
	minCouncilSize = 3
	maxCouncilSize = 9

	minIterations = 1
	maxIterations = 5
)

// Clamp normalizes a caller-provided plan with the same safety clamps
// applied to planner-produced plans. The plan is modified in place.
func Clamp(plan *models.CouncilPlan, registry *config.ModelRegistry) error {
	return applyClamps(plan, registry)
}

// applyClamps normalizes a plan in place so that every plan leaving the
// planner satisfies the same guarantees regardless of its source:
// council size in [3,9], exactly size members, exactly one synthesizer,
// only registered model ids, and iteration bounds in [1,5]. Returns
// ErrorKindNoModelAvailable when the registry cannot seat a council.
func applyClamps(plan *models.CouncilPlan, registry *config.ModelRegistry) error {
	if plan.CouncilSize < minCouncilSize {
		plan.CouncilSize = minCouncilSize
	}
	if plan.CouncilSize > maxCouncilSize {
		plan.CouncilSize = maxCouncilSize
	}

	kept := plan.Members[:0]
	for _, member := range plan.Members {
		if !registry.Has(member.Model) {
			slog.Warn("Dropping council member with unknown model",
				"model_id", member.Model,
				"role", string(member.Role))
			continue
		}
		if !member.Role.IsValid() {
			member.Role = models.RoleOpinionGiver
		}
		kept = append(kept, member)
	}
	plan.Members = kept

	if len(plan.Members) > plan.CouncilSize {
		plan.Members = plan.Members[:plan.CouncilSize]
	}
	if err := padMembers(plan, registry); err != nil {
		return err
	}

	enforceSingleSynthesizer(plan)

	if !plan.Complexity.IsValid() {
		plan.Complexity = models.ComplexityModerate
	}
	if !plan.VotingMethod.IsValid() {
		plan.VotingMethod = models.VotingMethodMajority
	}
	if !plan.IterationStrategy.IsValid() {
		plan.IterationStrategy = models.IterationStrategyRefine
	}
	clampIterations(plan)
	return nil
}

// padMembers fills empty seats. Existing members are cycled first so the
// padded seats reuse models the plan already trusts; a plan with no
// surviving members falls back to the registry in sorted id order.
func padMembers(plan *models.CouncilPlan, registry *config.ModelRegistry) error {
	if len(plan.Members) >= plan.CouncilSize {
		return nil
	}

	var pool []models.PlanMember
	for _, member := range plan.Members {
		pool = append(pool, models.PlanMember{Model: member.Model, Role: models.RoleOpinionGiver})
	}
	if len(pool) == 0 {
		for _, id := range registry.IDs() {
			pool = append(pool, models.PlanMember{Model: id, Role: models.RoleOpinionGiver})
		}
	}
	if len(pool) == 0 {
		return &Error{
			Kind:    ErrorKindNoModelAvailable,
			Message: fmt.Sprintf("cannot seat a council of %d: no registered models", plan.CouncilSize),
		}
	}

	for i := 0; len(plan.Members) < plan.CouncilSize; i++ {
		plan.Members = append(plan.Members, pool[i%len(pool)])
	}
	return nil
}

// enforceSingleSynthesizer keeps the first synthesizer seat, demotes any
// further ones to opinion-giver, and relabels the last member when the
// plan has none at all.
func enforceSingleSynthesizer(plan *models.CouncilPlan) {
	seen := false
	for i := range plan.Members {
		if plan.Members[i].Role != models.RoleSynthesizer {
			continue
		}
		if seen {
			plan.Members[i].Role = models.RoleOpinionGiver
			continue
		}
		seen = true
	}
	if !seen && len(plan.Members) > 0 {
		plan.Members[len(plan.Members)-1].Role = models.RoleSynthesizer
	}
}

func clampIterations(plan *models.CouncilPlan) {
	if plan.MaxIterations == 0 {
		if plan.AllowIterations {
			plan.MaxIterations = config.DefaultMaxIterations
		} else {
			plan.MaxIterations = minIterations
		}
	}
	if plan.MaxIterations < minIterations {
		plan.MaxIterations = minIterations
	}
	if plan.MaxIterations > maxIterations {
		plan.MaxIterations = maxIterations
	}
}
