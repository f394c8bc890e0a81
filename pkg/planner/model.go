package planner

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/synod-ai/synod/pkg/adapter"
	"github.com/synod-ai/synod/pkg/models"
)

const (
	// plannerMaxTokens caps the plan document length.
	plannerMaxTokens = 2000
	// plannerTemperature keeps plan output near-deterministic.
	plannerTemperature = 0.3
)

const plannerSystemPrompt = `You are the meta-planner for a council of AI models. Given a question, design the council best suited to deliberate it: grade the complexity, name the domain, choose the council size, seat members with roles and models, pick a voting method, and decide whether iterative refinement is worthwhile.

Available model ids: %s

Use only these model ids. Seat between 3 and 9 members and include exactly one synthesizer. Explain your choices in the reasoning field.`

// modelPlan asks the planner model for a plan under the strict
// council-plan schema and clamps the result.
func (p *Planner) modelPlan(ctx context.Context, question string) (*models.CouncilPlan, error) {
	if p.adapter == nil {
		return nil, &Error{
			Kind:    ErrorKindNoModelAvailable,
			Message: "no planner model configured",
		}
	}

	temperature := plannerTemperature
	messages := []models.Message{
		models.SystemMessage(fmt.Sprintf(plannerSystemPrompt, strings.Join(p.models.IDs(), ", "))),
		models.UserMessage(fmt.Sprintf("Design a council for this question:\n\n%s", question)),
	}
	opts := adapter.CompletionOptions{
		MaxTokens:   plannerMaxTokens,
		Temperature: &temperature,
		ResponseFormat: adapter.ResponseFormat{
			Type: adapter.ResponseFormatJSONSchema,
			JSONSchema: &adapter.JSONSchema{
				Name:   councilPlanSchemaName,
				Strict: true,
				Schema: json.RawMessage(councilPlanSchema),
			},
		},
	}

	resp, err := p.adapter.Complete(ctx, messages, opts)
	if err != nil {
		if adapter.IsKind(err, adapter.ErrorKindSchemaViolation) {
			return nil, &Error{
				Kind:    ErrorKindSchemaViolation,
				Message: "planner model broke the council-plan schema",
				Err:     err,
			}
		}
		return nil, fmt.Errorf("planner model call failed: %w", err)
	}

	plan, err := parsePlanDocument(resp.Content)
	if err != nil {
		return nil, err
	}
	if err := applyClamps(plan, p.models); err != nil {
		return nil, err
	}

	p.logger.Info("Model produced council plan",
		"complexity", string(plan.Complexity),
		"council_size", plan.CouncilSize,
		"voting_method", string(plan.VotingMethod),
		"tokens", resp.Usage.Total)
	return plan, nil
}
