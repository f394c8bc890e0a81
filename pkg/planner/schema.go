package planner

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/synod-ai/synod/pkg/models"
)

// councilPlanSchemaName is the schema name sent with json_schema requests.
const councilPlanSchemaName = "council_plan"

// councilPlanSchema is the strict output schema for model-mode planning.
// The member array travels under the key "roles"; optional plan fields
// (maxIterations, iterationStrategy) are defaulted by the clamps when the
// model omits them.
const councilPlanSchema = `{
  "type": "object",
  "properties": {
    "complexity": {
      "type": "string",
      "enum": ["simple", "moderate", "complex", "expert"]
    },
    "domain": {"type": "string"},
    "reasoning": {"type": "string"},
    "councilSize": {"type": "integer", "minimum": 3, "maximum": 9},
    "roles": {
      "type": "array",
      "items": {
        "type": "object",
        "properties": {
          "model": {"type": "string"},
          "role": {
            "type": "string",
            "enum": ["opinion-giver", "reviewer", "synthesizer", "backup",
                     "arbiter", "devil-advocate", "fact-checker", "domain-expert",
                     "moderator", "skeptic", "creative", "critic"]
          },
          "persona": {"type": "string"},
          "weight": {"type": "number"}
        },
        "required": ["model", "role"],
        "additionalProperties": false
      }
    },
    "votingMethod": {
      "type": "string",
      "enum": ["majority", "super-majority", "unanimous", "weighted",
               "confidence", "ranked-choice", "veto"]
    },
    "allowIterations": {"type": "boolean"},
    "maxIterations": {"type": "integer", "minimum": 1, "maximum": 5},
    "iterationStrategy": {
      "type": "string",
      "enum": ["refine", "escalate", "specialize", "debate"]
    }
  },
  "required": ["complexity", "domain", "reasoning", "councilSize",
               "roles", "votingMethod", "allowIterations"],
  "additionalProperties": false
}`

// planSeat is one member entry of a model-produced plan document.
type planSeat struct {
	Model   string   `json:"model"`
	Role    string   `json:"role"`
	Persona string   `json:"persona,omitempty"`
	Weight  *float64 `json:"weight,omitempty"`
}

// planDocument is the wire form of a model-produced council plan.
type planDocument struct {
	Complexity        string     `json:"complexity"`
	Domain            string     `json:"domain"`
	Reasoning         string     `json:"reasoning"`
	CouncilSize       int        `json:"councilSize"`
	Roles             []planSeat `json:"roles"`
	VotingMethod      string     `json:"votingMethod"`
	AllowIterations   bool       `json:"allowIterations"`
	MaxIterations     int        `json:"maxIterations,omitempty"`
	IterationStrategy string     `json:"iterationStrategy,omitempty"`
}

// parsePlanDocument decodes and validates a model reply against the
// council-plan schema. Violations that survived the provider's strict
// mode (or that a JSON-mode fallback never checked) are caught here.
func parsePlanDocument(content string) (*models.CouncilPlan, error) {
	var doc planDocument
	decoder := json.NewDecoder(strings.NewReader(content))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&doc); err != nil {
		return nil, &Error{
			Kind:    ErrorKindSchemaViolation,
			Message: fmt.Sprintf("plan document is not valid JSON: %v", err),
			Err:     err,
		}
	}

	if err := validatePlanDocument(&doc); err != nil {
		return nil, err
	}

	plan := &models.CouncilPlan{
		Complexity:        models.Complexity(doc.Complexity),
		Domain:            doc.Domain,
		Reasoning:         doc.Reasoning,
		CouncilSize:       doc.CouncilSize,
		Members:           make([]models.PlanMember, 0, len(doc.Roles)),
		VotingMethod:      models.VotingMethod(doc.VotingMethod),
		AllowIterations:   doc.AllowIterations,
		MaxIterations:     doc.MaxIterations,
		IterationStrategy: models.IterationStrategy(doc.IterationStrategy),
	}
	for _, seat := range doc.Roles {
		plan.Members = append(plan.Members, models.PlanMember{
			Model:   seat.Model,
			Role:    models.Role(seat.Role),
			Persona: seat.Persona,
			Weight:  seat.Weight,
		})
	}
	return plan, nil
}

func validatePlanDocument(doc *planDocument) error {
	if !models.Complexity(doc.Complexity).IsValid() {
		return schemaViolation(fmt.Sprintf("unknown complexity %q", doc.Complexity))
	}
	if !models.VotingMethod(doc.VotingMethod).IsValid() {
		return schemaViolation(fmt.Sprintf("unknown voting method %q", doc.VotingMethod))
	}
	if len(doc.Roles) == 0 {
		return schemaViolation("plan contains no members")
	}
	for i, seat := range doc.Roles {
		if seat.Model == "" {
			return schemaViolation(fmt.Sprintf("member %d has no model", i))
		}
		if !models.Role(seat.Role).IsValid() {
			return schemaViolation(fmt.Sprintf("member %d has unknown role %q", i, seat.Role))
		}
	}
	if doc.IterationStrategy != "" && !models.IterationStrategy(doc.IterationStrategy).IsValid() {
		return schemaViolation(fmt.Sprintf("unknown iteration strategy %q", doc.IterationStrategy))
	}
	return nil
}

func schemaViolation(message string) *Error {
	return &Error{Kind: ErrorKindSchemaViolation, Message: message}
}
