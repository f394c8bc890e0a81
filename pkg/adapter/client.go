package adapter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/synod-ai/synod/pkg/models"
)

const (
	// maxRateLimitRetries bounds in-adapter retries of throttled requests.
	maxRateLimitRetries = 3

	// defaultRequestTimeout applies when the model config sets none.
	defaultRequestTimeout = 60 * time.Second

	// maxErrorBodyBytes caps how much of an error body is read.
	maxErrorBodyBytes = 8 << 10
)

// httpChatClient issues chat completions against one provider endpoint.
// Both adapter kinds share it; they differ only in URL and auth headers.
type httpChatClient struct {
	client  *http.Client
	url     string
	headers map[string]string
	timeout time.Duration
	modelID string
}

func newHTTPChatClient(url string, headers map[string]string, timeout time.Duration, modelID string) *httpChatClient {
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}
	return &httpChatClient{
		client:  &http.Client{},
		url:     url,
		headers: headers,
		timeout: timeout,
		modelID: modelID,
	}
}

// complete runs the request with in-adapter retries for rate limits.
// All other failures are permanent from the adapter's point of view.
func (c *httpChatClient) complete(ctx context.Context, req *chatRequest, opts CompletionOptions) (*Response, error) {
	bo := &rateLimitBackOff{
		base: backoff.WithMaxRetries(backoff.NewExponentialBackOff(), maxRateLimitRetries),
	}

	var resp *Response
	operation := func() error {
		r, err := c.completeOnce(ctx, req, opts)
		if err != nil {
			var apiErr *Error
			if errors.As(err, &apiErr) && apiErr.Kind == ErrorKindRateLimited {
				bo.hint = apiErr.RetryAfter
				slog.Warn("Model request rate limited, backing off",
					"model_id", c.modelID,
					"retry_after", apiErr.RetryAfter)
				return err
			}
			return backoff.Permanent(err)
		}
		resp = r
		return nil
	}

	if err := backoff.Retry(operation, backoff.WithContext(bo, ctx)); err != nil {
		return nil, err
	}
	return resp, nil
}

// completeOnce performs a single round trip, measuring latency
// end-to-end around the network call.
func (c *httpChatClient) completeOnce(ctx context.Context, req *chatRequest, opts CompletionOptions) (*Response, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, &Error{Kind: ErrorKindBadRequest, Message: "encoding request", Err: err}
	}

	callCtx := ctx
	if c.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	httpReq, err := http.NewRequestWithContext(callCtx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, &Error{Kind: ErrorKindBadRequest, Message: "building request", Err: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	for k, v := range c.headers {
		httpReq.Header.Set(k, v)
	}

	start := time.Now()
	httpResp, err := c.client.Do(httpReq)
	latency := time.Since(start)
	if err != nil {
		return nil, classifyTransportError(err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != http.StatusOK {
		return nil, classifyStatusError(httpResp)
	}

	var parsed chatResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&parsed); err != nil {
		return nil, &Error{Kind: ErrorKindUpstream, Message: "decoding response", StatusCode: httpResp.StatusCode, Err: err}
	}
	if parsed.Error != nil {
		return nil, &Error{Kind: ErrorKindUpstream, Message: parsed.Error.Message, StatusCode: httpResp.StatusCode}
	}
	if len(parsed.Choices) == 0 || parsed.Choices[0].Message == nil {
		return nil, &Error{Kind: ErrorKindUpstream, Message: "response contained no choices", StatusCode: httpResp.StatusCode}
	}

	choice := parsed.Choices[0]
	content := choice.Message.Content

	// Strict structured output must at least be a valid JSON document.
	if opts.ResponseFormat.Type == ResponseFormatJSONSchema && !json.Valid([]byte(content)) {
		name := ""
		if opts.ResponseFormat.JSONSchema != nil {
			name = opts.ResponseFormat.JSONSchema.Name
		}
		return nil, &Error{
			Kind:    ErrorKindSchemaViolation,
			Message: fmt.Sprintf("content is not valid JSON for schema %q", name),
		}
	}

	resp := &Response{
		Content:   content,
		LatencyMs: latency.Milliseconds(),
	}
	if choice.FinishReason != nil {
		resp.FinishReason = *choice.FinishReason
	}
	if parsed.Usage != nil {
		resp.Usage = models.TokenUsage{
			Prompt:     parsed.Usage.PromptTokens,
			Completion: parsed.Usage.CompletionTokens,
			Total:      parsed.Usage.TotalTokens,
		}
	}
	return resp, nil
}

// healthCheck reports reachability: any HTTP response is healthy.
func (c *httpChatClient) healthCheck(ctx context.Context, url string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return &Error{Kind: ErrorKindTransport, Message: "building health request", Err: err}
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return classifyTransportError(err)
	}
	resp.Body.Close()
	return nil
}

func classifyTransportError(err error) *Error {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return &Error{Kind: ErrorKindTimeout, Message: "request deadline exceeded", Err: err}
	default:
		return &Error{Kind: ErrorKindTransport, Message: "request failed", Err: err}
	}
}

func classifyStatusError(resp *http.Response) *Error {
	message := readErrorMessage(resp.Body)

	apiErr := &Error{
		Message:    message,
		StatusCode: resp.StatusCode,
	}
	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		apiErr.Kind = ErrorKindUnauthorized
	case resp.StatusCode == http.StatusTooManyRequests:
		apiErr.Kind = ErrorKindRateLimited
		apiErr.RetryAfter = parseRetryAfter(resp.Header.Get("Retry-After"))
	case resp.StatusCode == http.StatusBadRequest ||
		resp.StatusCode == http.StatusNotFound ||
		resp.StatusCode == http.StatusUnprocessableEntity:
		apiErr.Kind = ErrorKindBadRequest
	default:
		apiErr.Kind = ErrorKindUpstream
	}
	return apiErr
}

// readErrorMessage extracts the provider's error message, falling back
// to the raw body when it is not the usual {"error": {"message": ...}}.
func readErrorMessage(body io.Reader) string {
	raw, err := io.ReadAll(io.LimitReader(body, maxErrorBodyBytes))
	if err != nil || len(raw) == 0 {
		return "provider returned an error"
	}

	var envelope struct {
		Error *wireError `json:"error"`
	}
	if json.Unmarshal(raw, &envelope) == nil && envelope.Error != nil && envelope.Error.Message != "" {
		return envelope.Error.Message
	}
	return string(raw)
}

// parseRetryAfter reads a seconds-valued Retry-After header.
func parseRetryAfter(value string) time.Duration {
	if value == "" {
		return 0
	}
	seconds, err := strconv.Atoi(value)
	if err != nil || seconds < 0 {
		return 0
	}
	return time.Duration(seconds) * time.Second
}

// rateLimitBackOff is an exponential backoff that respects the
// provider's Retry-After hint as a floor for the next wait.
type rateLimitBackOff struct {
	base backoff.BackOff
	hint time.Duration
}

func (b *rateLimitBackOff) NextBackOff() time.Duration {
	next := b.base.NextBackOff()
	if next == backoff.Stop {
		return backoff.Stop
	}
	if b.hint > next {
		next = b.hint
	}
	b.hint = 0
	return next
}

func (b *rateLimitBackOff) Reset() {
	b.base.Reset()
}
