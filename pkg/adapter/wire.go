package adapter

import (
	"encoding/json"

	"github.com/synod-ai/synod/pkg/config"
	"github.com/synod-ai/synod/pkg/models"
)

// chatRequest is the OpenAI-style chat completions payload. Pointer
// fields are omitted when unset so provider defaults apply.
type chatRequest struct {
	Model               string              `json:"model"`
	Messages            []chatMessage       `json:"messages"`
	MaxCompletionTokens *int64              `json:"max_completion_tokens,omitempty"`
	Temperature         *float64            `json:"temperature,omitempty"`
	TopP                *float64            `json:"top_p,omitempty"`
	Stop                []string            `json:"stop,omitempty"`
	Seed                *int64              `json:"seed,omitempty"`
	ResponseFormat      *wireResponseFormat `json:"response_format,omitempty"`
	ReasoningEffort     string              `json:"reasoning_effort,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
	Name    string `json:"name,omitempty"`
}

type wireResponseFormat struct {
	Type       string          `json:"type"`
	JSONSchema *wireJSONSchema `json:"json_schema,omitempty"`
}

type wireJSONSchema struct {
	Name   string          `json:"name"`
	Strict bool            `json:"strict"`
	Schema json.RawMessage `json:"schema"`
}

// chatResponse is the OpenAI-style chat completions reply.
type chatResponse struct {
	ID      string       `json:"id"`
	Model   string       `json:"model"`
	Choices []wireChoice `json:"choices"`
	Usage   *wireUsage   `json:"usage,omitempty"`
	Error   *wireError   `json:"error,omitempty"`
}

type wireChoice struct {
	Index        int          `json:"index"`
	Message      *chatMessage `json:"message,omitempty"`
	FinishReason *string      `json:"finish_reason,omitempty"`
}

type wireUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

type wireError struct {
	Message string `json:"message"`
	Type    string `json:"type,omitempty"`
	Code    string `json:"code,omitempty"`
}

// buildChatRequest maps messages and options onto the wire payload,
// applying the model's constraints. Reasoning models must not receive
// temperature, top_p, or stop; reasoning_effort goes only to them.
func buildChatRequest(cfg *config.ModelConfig, model string, messages []models.Message, opts CompletionOptions) *chatRequest {
	req := &chatRequest{
		Model:    model,
		Messages: make([]chatMessage, 0, len(messages)),
	}
	for _, m := range messages {
		req.Messages = append(req.Messages, chatMessage{
			Role:    string(m.Role),
			Content: m.Content,
			Name:    m.Name,
		})
	}

	maxTokens := opts.MaxTokens
	if maxTokens <= 0 || (cfg.MaxTokens > 0 && maxTokens > cfg.MaxTokens) {
		maxTokens = cfg.MaxTokens
	}
	if maxTokens > 0 {
		v := int64(maxTokens)
		req.MaxCompletionTokens = &v
	}

	if cfg.Reasoning {
		if opts.ReasoningEffort != "" {
			req.ReasoningEffort = string(opts.ReasoningEffort)
		}
	} else {
		req.Temperature = opts.Temperature
		if req.Temperature == nil {
			req.Temperature = cfg.DefaultTemperature
		}
		req.TopP = opts.TopP
		req.Stop = opts.Stop
	}

	req.Seed = opts.Seed

	switch opts.ResponseFormat.Type {
	case ResponseFormatJSONObject:
		req.ResponseFormat = &wireResponseFormat{Type: string(ResponseFormatJSONObject)}
	case ResponseFormatJSONSchema:
		rf := &wireResponseFormat{Type: string(ResponseFormatJSONSchema)}
		if s := opts.ResponseFormat.JSONSchema; s != nil {
			rf.JSONSchema = &wireJSONSchema{Name: s.Name, Strict: s.Strict, Schema: s.Schema}
		}
		req.ResponseFormat = rf
	}

	return req
}
