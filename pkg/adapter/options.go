package adapter

import "encoding/json"

// ResponseFormatType selects how the model must shape its output.
type ResponseFormatType string

const (
	// ResponseFormatText is free-form text output.
	ResponseFormatText ResponseFormatType = "text"
	// ResponseFormatJSONObject forces syntactically valid JSON output.
	ResponseFormatJSONObject ResponseFormatType = "json_object"
	// ResponseFormatJSONSchema forces output matching a named JSON schema.
	ResponseFormatJSONSchema ResponseFormatType = "json_schema"
)

// IsValid checks if the response format type is one of the defined values
func (t ResponseFormatType) IsValid() bool {
	return t == ResponseFormatText || t == ResponseFormatJSONObject || t == ResponseFormatJSONSchema
}

// ReasoningEffort hints how much internal reasoning a reasoning model
// should spend. Empty means provider default.
type ReasoningEffort string

const (
	ReasoningEffortLow    ReasoningEffort = "low"
	ReasoningEffortMedium ReasoningEffort = "medium"
	ReasoningEffortHigh   ReasoningEffort = "high"
)

// IsValid checks if the reasoning effort is one of the defined values
func (e ReasoningEffort) IsValid() bool {
	return e == ReasoningEffortLow || e == ReasoningEffortMedium || e == ReasoningEffortHigh
}

// JSONSchema names a strict output schema.
type JSONSchema struct {
	Name   string          `json:"name"`
	Strict bool            `json:"strict"`
	Schema json.RawMessage `json:"schema"`
}

// ResponseFormat is the requested output shape. Zero value means text.
type ResponseFormat struct {
	Type       ResponseFormatType `json:"type"`
	JSONSchema *JSONSchema        `json:"json_schema,omitempty"`
}

// CompletionOptions are the per-request knobs. Unset pointer fields are
// omitted from the wire request so provider defaults apply.
type CompletionOptions struct {
	// MaxTokens reserves at most this many completion tokens. Zero uses
	// the model's configured ceiling.
	MaxTokens int

	// Temperature and TopP are sampling controls. Never sent to
	// reasoning models.
	Temperature *float64
	TopP        *float64

	// Stop sequences. Never sent to reasoning models.
	Stop []string

	// Seed requests deterministic sampling where supported.
	Seed *int64

	// ResponseFormat selects text, json_object, or json_schema output.
	ResponseFormat ResponseFormat

	// ReasoningEffort is forwarded to reasoning models only.
	ReasoningEffort ReasoningEffort
}
