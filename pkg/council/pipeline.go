package council

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/synod-ai/synod/pkg/adapter"
	"github.com/synod-ai/synod/pkg/config"
	"github.com/synod-ai/synod/pkg/council/prompt"
	"github.com/synod-ai/synod/pkg/events"
	"github.com/synod-ai/synod/pkg/masking"
	"github.com/synod-ai/synod/pkg/memory"
	"github.com/synod-ai/synod/pkg/models"
	"github.com/synod-ai/synod/pkg/planner"
	"github.com/synod-ai/synod/pkg/voting"
)

// Kinds reported on fatal error events that no component classified.
const (
	errorKindCancelled = "cancelled"
	errorKindInternal  = "internal"
)

// stopReasonDisabled is reported when the loop ends after a single
// iteration because the plan or config disabled iterating.
const stopReasonDisabled = "iterations disabled"

// RunOptions tunes one deliberation. The zero value plans with the
// configured planner mode and runs with the configured defaults.
type RunOptions struct {
	// Plan bypasses the planner. It passes the same safety clamps as a
	// planner-produced plan.
	Plan *models.CouncilPlan

	// PlannerMode overrides the configured planning mode for this run.
	// Ignored when Plan is set; invalid values fall back to the default.
	PlannerMode models.PlannerMode

	// Overrides replace the corresponding defaults wholesale when set.
	// An iteration override also wins over the plan's iteration wishes.
	IterationOverride *models.IterationConfig
	MemoryOverride    *models.MemoryConfig
	SessionOverride   *models.SessionConfig
}

// pipeline executes one session from planning through synthesis. It is
// single-use: construct, execute, discard. All mutation targets the
// session it was built around; the service persists the result.
type pipeline struct {
	session  *models.Session
	question string
	opts     RunOptions
	runCfg   models.RunConfig

	registry   *config.ModelRegistry
	planner    *planner.Planner
	emitter    *events.Emitter
	prompts    *prompt.Builder
	masker     *masking.Masker
	newAdapter adapter.Factory
	logger     *slog.Logger

	members    []models.Member
	adapters   map[string]adapter.ModelAdapter
	controller *Controller
	memory     *memory.Manager

	// Latest stage outputs, consumed by the next stage's prompts.
	opinions  []models.MemberResponse
	reviews   []models.MemberResponse
	finalVote *models.VotingResult

	stopReason string
}

func newPipeline(s *Service, session *models.Session, opts RunOptions, runCfg models.RunConfig) *pipeline {
	return &pipeline{
		session:    session,
		question:   session.Question,
		opts:       opts,
		runCfg:     runCfg,
		registry:   s.cfg.ModelRegistry,
		planner:    s.planner,
		emitter:    events.NewEmitter(s.bus, session.ID),
		prompts:    s.prompts,
		masker:     s.masker,
		newAdapter: s.newAdapter,
		logger:     s.logger.With("session_id", session.ID),
	}
}

// execute runs the full deliberation and leaves the session in a
// terminal state. Failures never propagate; they are recorded on the
// session and emitted as events so partial sessions stay coherent.
func (p *pipeline) execute(ctx context.Context) {
	p.emitter.SessionStart(p.question)

	if err := p.run(ctx); err != nil {
		p.fail(err)
		return
	}
	p.finish()
}

func (p *pipeline) run(ctx context.Context) error {
	plan, source, err := p.resolvePlan(ctx)
	if err != nil {
		return fmt.Errorf("plan council: %w", err)
	}
	p.session.DynamicConfig = plan
	p.runCfg.Iteration = resolveIterationConfig(p.runCfg.Iteration, plan, p.opts.IterationOverride)
	p.session.Config = p.runCfg
	p.emitter.PlanReady(plan, source)

	p.members = realizeMembers(plan)
	p.syncMembers()

	if err := p.createAdapters(); err != nil {
		return err
	}

	p.controller = NewController(p.runCfg.Iteration)
	p.memory = memory.NewManager(p.runCfg.Memory, p.compressorAdapter())

	if err := p.deliberate(ctx); err != nil {
		return err
	}
	return p.synthesize(ctx)
}

// resolvePlan returns the caller's clamped plan or asks the planner.
func (p *pipeline) resolvePlan(ctx context.Context) (*models.CouncilPlan, string, error) {
	if p.opts.Plan != nil {
		plan := clonePlan(p.opts.Plan)
		if err := planner.Clamp(plan, p.registry); err != nil {
			return nil, planner.SourceProvided, err
		}
		return plan, planner.SourceProvided, nil
	}
	return p.planner.PlanWithMode(ctx, p.question, p.opts.PlannerMode)
}

func (p *pipeline) createAdapters() error {
	p.adapters = make(map[string]adapter.ModelAdapter, len(p.members))
	for _, m := range p.members {
		a, err := p.adapterFor(m.ModelID)
		if err != nil {
			return fmt.Errorf("seat %s: %w", m.Name, err)
		}
		p.adapters[m.ID] = a
	}
	return nil
}

func (p *pipeline) adapterFor(modelID string) (adapter.ModelAdapter, error) {
	modelCfg, err := p.registry.Get(modelID)
	if err != nil {
		return nil, err
	}
	return p.newAdapter(modelCfg)
}

// compressorAdapter picks the memory compressor: a dedicated model when
// configured and constructible, otherwise the first member's adapter.
func (p *pipeline) compressorAdapter() adapter.ModelAdapter {
	if modelID := p.runCfg.Memory.CompressorModel; modelID != "" {
		compressor, err := p.adapterFor(modelID)
		if err == nil {
			return compressor
		}
		p.logger.Warn("Dedicated compressor model unavailable, falling back to first member",
			"model_id", modelID,
			"error", err)
	}
	if len(p.members) > 0 {
		return p.adapters[p.members[0].ID]
	}
	return nil
}

// deliberate runs the iteration loop: opinions, review, voting, and
// self-correction per pass, bounded by the iteration controller.
func (p *pipeline) deliberate(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		n := p.controller.Iterations() + 1
		p.emitter.IterationStart(n, p.runCfg.Iteration.Strategy)
		iterStart := time.Now()
		tokensBefore := p.session.TotalTokens

		memoryContext := ""
		if n > 1 {
			memoryContext = p.memory.GetContextPrompt()
		}
		iter := prompt.IterationInfo{
			Number:             n,
			PreviousConfidence: p.controller.LastConfidence(),
			Strategy:           p.runCfg.Iteration.Strategy,
		}

		opinionCalls := p.buildOpinionCalls(memoryContext, iter)
		if len(opinionCalls) == 0 {
			return errors.New("no active members eligible for the opinions stage")
		}
		opinionStage, err := p.runStage(ctx, models.StageOpinions, n, opinionCalls)
		if err != nil {
			return err
		}
		p.recordStage(opinionStage, n)
		p.opinions = opinionStage.Responses

		if err := ctx.Err(); err != nil {
			return err
		}

		// Councils without review-capable seats skip the stage.
		p.reviews = nil
		if reviewCalls := p.buildReviewCalls(memoryContext, iter); len(reviewCalls) > 0 {
			reviewStage, err := p.runStage(ctx, models.StageReview, n, reviewCalls)
			if err != nil {
				return err
			}
			p.recordStage(reviewStage, n)
			p.reviews = reviewStage.Responses
		}

		if err := ctx.Err(); err != nil {
			return err
		}

		votingStage, err := p.runVoting(ctx, n)
		if err != nil {
			return err
		}
		votingStage, err = p.selfCorrect(ctx, n, votingStage)
		if err != nil {
			return err
		}
		p.finalVote = votingStage.VotingResult

		tokensUsed := p.session.TotalTokens - tokensBefore
		p.controller.RecordIteration(votingStage, tokensUsed)
		p.session.Iterations = append(p.session.Iterations, models.IterationSnapshot{
			Number:     n,
			Confidence: p.controller.LastConfidence(),
			TokensUsed: tokensUsed,
			DurationMs: time.Since(iterStart).Milliseconds(),
		})

		if p.memory.IsOverLimit() {
			compressed := p.memory.Compress(ctx)
			p.emitter.MemoryCompressed(compressed.BeforeChars, compressed.AfterChars)
		}

		p.emitter.IterationEnd(n, p.controller.LastConfidence(), p.controller.LastImprovement())

		if !p.runCfg.Iteration.Enabled {
			p.stopReason = stopReasonDisabled
			return nil
		}
		cont, reason := p.controller.ShouldContinue()
		if !cont {
			p.stopReason = reason
			return nil
		}
	}
}

func (p *pipeline) buildOpinionCalls(memoryContext string, iter prompt.IterationInfo) []memberCall {
	members := opinionMembers(p.members)
	calls := make([]memberCall, 0, len(members))
	for _, m := range members {
		calls = append(calls, memberCall{
			member:   m,
			messages: p.prompts.BuildOpinionMessages(m, p.question, memoryContext, iter),
		})
	}
	return calls
}

func (p *pipeline) buildReviewCalls(memoryContext string, iter prompt.IterationInfo) []memberCall {
	members := reviewMembers(p.members)
	calls := make([]memberCall, 0, len(members))
	for _, m := range members {
		calls = append(calls, memberCall{
			member:   m,
			messages: p.prompts.BuildReviewMessages(m, p.question, p.opinions, memoryContext, iter),
		})
	}
	return calls
}

// runVoting executes one voting stage: collect ballot responses, parse
// the votes, tally, and record. At least one response must parse into
// a vote or the stage fails.
func (p *pipeline) runVoting(ctx context.Context, iteration int) (*models.StageResult, error) {
	voters := votingMembers(p.members)
	if len(voters) == 0 {
		return nil, errors.New("no active members eligible for the voting stage")
	}

	calls := make([]memberCall, 0, len(voters))
	for _, m := range voters {
		calls = append(calls, memberCall{
			member:   m,
			messages: p.prompts.BuildVotingMessages(m, p.question, p.opinions, p.reviews),
		})
	}

	stage, err := p.runStage(ctx, models.StageVoting, iteration, calls)
	if err != nil {
		return nil, err
	}

	votes := ParseVotes(stage.Responses)
	if len(votes) == 0 {
		return nil, fmt.Errorf("voting stage: no parseable votes among %d responses", len(stage.Responses))
	}
	for _, vote := range votes {
		p.emitter.VoteCast(vote)
	}

	tally := voting.Tally(votes, voting.Config{
		Method:  p.votingMethod(),
		Weights: memberWeights(voters),
	})
	stage.VotingResult = &tally
	p.emitter.VotingComplete(&tally)

	p.recordStage(stage, iteration)
	return stage, nil
}

// selfCorrect activates backups one at a time while the vote stays
// under the confidence threshold, re-running the voting stage with the
// grown voter set. The session-wide CorrectionRounds counter bounds
// corrections across all iterations.
func (p *pipeline) selfCorrect(ctx context.Context, iteration int, votingStage *models.StageResult) (*models.StageResult, error) {
	cfg := p.runCfg.Session
	if !cfg.SelfCorrectionEnabled {
		return votingStage, nil
	}

	for p.session.CorrectionRounds < cfg.MaxCorrectionRounds {
		result := votingStage.VotingResult
		if result == nil || result.ConfidenceAvg >= cfg.SelfCorrectionThreshold {
			break
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		// The backup's adapter already exists; every seat got one at
		// session start.
		backup, ok := activateNextBackup(p.members)
		if !ok {
			break
		}
		p.syncMembers()
		p.session.CorrectionRounds++

		p.emitter.BackupActivated(backup, fmt.Sprintf("average confidence %.2f below threshold %.2f",
			result.ConfidenceAvg, cfg.SelfCorrectionThreshold))
		p.emitter.CorrectionTriggered(models.StageVoting, p.session.CorrectionRounds, result.ConfidenceAvg)
		p.logger.Info("Activated backup member for self-correction",
			"member", backup.Name,
			"model_id", backup.ModelID,
			"confidence_avg", result.ConfidenceAvg,
			"correction_rounds", p.session.CorrectionRounds)

		rerun, err := p.runVoting(ctx, iteration)
		if err != nil {
			return nil, err
		}
		votingStage = rerun
	}
	return votingStage, nil
}

// synthesize asks the synthesizer seat for the final answer over the
// capped debate digest, the final tally, and the confidence trajectory.
func (p *pipeline) synthesize(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	synth, ok := synthesizerMember(p.members)
	if !ok {
		return errors.New("no member available for synthesis")
	}

	iteration := p.controller.Iterations()
	messages := p.prompts.BuildSynthesisMessages(synth, p.question, p.session.Stages, p.finalVote, p.session.Iterations)
	stage, err := p.runStage(ctx, models.StageSynthesis, iteration, []memberCall{{member: synth, messages: messages}})
	if err != nil {
		return fmt.Errorf("synthesis: %w", err)
	}
	p.recordStage(stage, iteration)

	// Synthesis tokens book onto the final snapshot; the snapshots sum
	// to the session's stage tokens.
	if n := len(p.session.Iterations); n > 0 {
		p.session.Iterations[n-1].TokensUsed += stage.TotalTokens()
	}

	answer := stage.Responses[len(stage.Responses)-1].Content
	confidence := 0.0
	if p.finalVote != nil {
		confidence = p.finalVote.ConfidenceAvg
	}
	p.session.FinalAnswer = &answer
	p.session.FinalConfidence = &confidence
	return nil
}

// recordStage appends a finished stage to the session and feeds it to
// the memory manager.
func (p *pipeline) recordStage(stage *models.StageResult, iteration int) {
	p.session.Stages = append(p.session.Stages, *stage)
	p.session.TotalTokens += stage.TotalTokens()
	p.session.UpdatedAt = time.Now().UTC()
	p.memory.UpdateFromStageResult(stage, iteration)
}

// syncMembers mirrors the working member set onto the session.
func (p *pipeline) syncMembers() {
	p.session.Members = append([]models.Member(nil), p.members...)
}

func (p *pipeline) votingMethod() models.VotingMethod {
	if p.session.DynamicConfig != nil && p.session.DynamicConfig.VotingMethod.IsValid() {
		return p.session.DynamicConfig.VotingMethod
	}
	return models.VotingMethodMajority
}

func (p *pipeline) finish() {
	now := time.Now().UTC()
	p.session.Status = models.SessionStatusCompleted
	p.session.CompletedAt = &now
	p.session.UpdatedAt = now
	p.session.TotalDurationMs = now.Sub(p.session.CreatedAt).Milliseconds()

	p.emitter.SessionEnd(models.SessionStatusCompleted, p.stopReason, p.session.TotalTokens, p.session.TotalDurationMs)
	p.logger.Info("Council session completed",
		"iterations", len(p.session.Iterations),
		"total_tokens", p.session.TotalTokens,
		"duration_ms", p.session.TotalDurationMs,
		"stop_reason", p.stopReason)
}

// fail records a terminal failure on the session. Cancellation is
// reported as the reason "cancelled"; everything else keeps its masked
// message.
func (p *pipeline) fail(err error) {
	now := time.Now().UTC()
	kind := errorKind(err)

	reason := p.masker.MaskError(err)
	if kind == errorKindCancelled {
		reason = "cancelled"
	}

	p.session.Status = models.SessionStatusFailed
	p.session.Error = reason
	p.session.CompletedAt = &now
	p.session.UpdatedAt = now
	p.session.TotalDurationMs = now.Sub(p.session.CreatedAt).Milliseconds()

	p.emitter.Error("", "", kind, reason)
	p.emitter.SessionEnd(models.SessionStatusFailed, kind, p.session.TotalTokens, p.session.TotalDurationMs)
	p.logger.Error("Council session failed",
		"error_kind", kind,
		"error", reason)
}

// errorKind classifies a pipeline error for error events: cancellation
// first, then adapter and planner kinds, with internal as the catch-all.
func errorKind(err error) string {
	if err == nil {
		return ""
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return errorKindCancelled
	}
	if kind := adapter.KindOf(err); kind != "" {
		return string(kind)
	}
	var plannerErr *planner.Error
	if errors.As(err, &plannerErr) {
		return string(plannerErr.Kind)
	}
	return errorKindInternal
}

// resolveIterationConfig folds the plan's iteration wishes into the
// configured defaults. An explicit override wins over both.
func resolveIterationConfig(defaults models.IterationConfig, plan *models.CouncilPlan, override *models.IterationConfig) models.IterationConfig {
	if override != nil {
		return *override
	}
	cfg := defaults
	cfg.Enabled = plan.AllowIterations
	if plan.MaxIterations > 0 {
		cfg.MaxIterations = plan.MaxIterations
		cfg.MaxDepth = plan.MaxIterations
	}
	if plan.IterationStrategy.IsValid() {
		cfg.Strategy = plan.IterationStrategy
	}
	return cfg
}

func clonePlan(plan *models.CouncilPlan) *models.CouncilPlan {
	out := *plan
	out.Members = append([]models.PlanMember(nil), plan.Members...)
	return &out
}
