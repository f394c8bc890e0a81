package council

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/synod-ai/synod/pkg/adapter"
	"github.com/synod-ai/synod/pkg/models"
)

// memberCall is one model call scheduled within a stage.
type memberCall struct {
	member   models.Member
	messages []models.Message
}

// dispatchResult carries one call's outcome back to the collector,
// tagged with its launch index so parallel stages keep a stable
// response order.
type dispatchResult struct {
	index  int
	member models.Member
	resp   *models.MemberResponse
	err    error
}

// runStage executes one stage's member calls and assembles the stage
// result. Calls run in parallel when the session is configured for it,
// in launch order otherwise; either way the collected responses are
// ordered by launch index. Individual member failures are emitted as
// error events and tolerated while at least one response remains; a
// stage where every call failed returns an error.
func (p *pipeline) runStage(ctx context.Context, stage models.Stage, iteration int, calls []memberCall) (*models.StageResult, error) {
	p.emitter.StageStart(stage, iteration, len(calls))

	result := &models.StageResult{
		Stage:     stage,
		StartTime: time.Now().UTC(),
	}

	var outcomes []dispatchResult
	if p.runCfg.Session.ParallelExecution {
		outcomes = p.dispatchParallel(ctx, stage, calls)
	} else {
		outcomes = p.dispatchSequential(ctx, stage, calls)
	}

	var firstErr error
	for _, out := range outcomes {
		if out.err != nil {
			if firstErr == nil {
				firstErr = out.err
			}
			continue
		}
		result.Responses = append(result.Responses, *out.resp)
	}

	result.EndTime = time.Now().UTC()
	result.DurationMs = result.EndTime.Sub(result.StartTime).Milliseconds()
	p.emitter.StageEnd(result, iteration)

	if len(result.Responses) == 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if firstErr != nil {
			return nil, fmt.Errorf("%s stage: all %d members failed: %w", stage, len(calls), firstErr)
		}
		return nil, fmt.Errorf("%s stage: no members to call", stage)
	}
	return result, nil
}

// dispatchParallel launches every call in its own goroutine and
// collects outcomes through a buffered channel, re-ordered by launch
// index. Response events are published as calls complete.
func (p *pipeline) dispatchParallel(ctx context.Context, stage models.Stage, calls []memberCall) []dispatchResult {
	results := make(chan dispatchResult, len(calls))
	var wg sync.WaitGroup

	launched := 0
	for i, call := range calls {
		// Cancellation stops new work; in-flight calls drain below.
		if ctx.Err() != nil {
			break
		}
		launched++
		wg.Add(1)
		go func(index int, call memberCall) {
			defer wg.Done()
			resp, err := p.callMember(ctx, stage, call)
			results <- dispatchResult{index: index, member: call.member, resp: resp, err: err}
		}(i, call)
	}

	wg.Wait()
	close(results)

	ordered := make([]dispatchResult, 0, launched)
	for out := range results {
		ordered = append(ordered, out)
	}
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].index < ordered[j].index })
	return ordered
}

func (p *pipeline) dispatchSequential(ctx context.Context, stage models.Stage, calls []memberCall) []dispatchResult {
	outcomes := make([]dispatchResult, 0, len(calls))
	for i, call := range calls {
		if ctx.Err() != nil {
			break
		}
		resp, err := p.callMember(ctx, stage, call)
		outcomes = append(outcomes, dispatchResult{index: i, member: call.member, resp: resp, err: err})
	}
	return outcomes
}

// callMember issues one model call with its request/response events. A
// failed call emits an error event carrying the classified kind so
// every member-request is matched by either a response or an error.
func (p *pipeline) callMember(ctx context.Context, stage models.Stage, call memberCall) (*models.MemberResponse, error) {
	p.emitter.MemberRequest(stage, &call.member)

	completion, err := p.adapters[call.member.ID].Complete(ctx, call.messages, adapter.CompletionOptions{})
	if err != nil {
		p.emitter.Error(stage, call.member.ID, errorKind(err), p.masker.MaskError(err))
		p.logger.Warn("Member call failed",
			"stage", string(stage),
			"member", call.member.Name,
			"model_id", call.member.ModelID,
			"error_kind", errorKind(err))
		return nil, fmt.Errorf("member %s (%s): %w", call.member.Name, call.member.ModelID, err)
	}

	resp := &models.MemberResponse{
		MemberID:   call.member.ID,
		MemberName: call.member.Name,
		ModelID:    call.member.ModelID,
		Content:    p.masker.Mask(completion.Content),
		TokenUsage: completion.Usage,
		LatencyMs:  completion.LatencyMs,
		Timestamp:  time.Now().UTC(),
	}
	p.emitter.MemberResponse(stage, resp)
	return resp, nil
}
