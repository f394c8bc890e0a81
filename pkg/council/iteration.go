package council

import (
	"time"

	"github.com/synod-ai/synod/pkg/models"
)

// Stop reasons reported by the iteration controller.
const (
	StopReasonMaxIterations = "max iterations"
	StopReasonTokenBudget   = "token budget"
	StopReasonTimeBudget    = "time budget"
	StopReasonConverged     = "converged"
	StopReasonPlateau       = "plateau"
)

// IterationContext primes the prompts of the next iteration.
type IterationContext struct {
	// NextIteration is the 1-based number of the iteration about to run.
	NextIteration      int
	PreviousConfidence float64
	LastImprovement    float64
	ConfidenceHistory  []float64
}

// Controller enforces the deliberation budgets. The clock starts on the
// first RecordIteration; until then elapsed time is zero. Not safe for
// concurrent use; the pipeline calls it between stages only.
type Controller struct {
	cfg models.IterationConfig

	iterationIndex    int
	tokensSoFar       int
	startTime         time.Time
	confidenceHistory []float64
	improvements      []float64
}

// NewController creates a controller with the given budgets.
func NewController(cfg models.IterationConfig) *Controller {
	return &Controller{cfg: cfg}
}

// ShouldContinue evaluates the budget checks in fixed order and returns
// whether another iteration may run, with the stop reason when not.
func (c *Controller) ShouldContinue() (bool, string) {
	if c.iterationIndex >= c.cfg.MaxIterations {
		return false, StopReasonMaxIterations
	}
	if c.tokensSoFar >= c.cfg.MaxTotalTokens {
		return false, StopReasonTokenBudget
	}
	if c.elapsedMs() >= c.cfg.MaxDurationMs {
		return false, StopReasonTimeBudget
	}
	if n := len(c.confidenceHistory); n > 0 && c.confidenceHistory[n-1] >= c.cfg.ConvergenceThreshold {
		return false, StopReasonConverged
	}
	if n := len(c.improvements); n > 0 && c.improvements[n-1] < c.cfg.ImprovementThreshold {
		return false, StopReasonPlateau
	}
	return true, ""
}

// RecordIteration accounts one completed iteration: the voting stage's
// average confidence (zero when the stage carries no tally) and the
// tokens the iteration consumed.
func (c *Controller) RecordIteration(result *models.StageResult, tokensUsed int) {
	if c.startTime.IsZero() {
		c.startTime = time.Now()
	}

	confidence := 0.0
	if result != nil && result.VotingResult != nil {
		confidence = result.VotingResult.ConfidenceAvg
	}
	improvement := confidence - c.lastConfidence()

	c.confidenceHistory = append(c.confidenceHistory, confidence)
	c.improvements = append(c.improvements, improvement)
	c.iterationIndex++
	c.tokensSoFar += tokensUsed
}

// GetContext returns the state used to prime the next iteration.
func (c *Controller) GetContext() IterationContext {
	return IterationContext{
		NextIteration:      c.iterationIndex + 1,
		PreviousConfidence: c.lastConfidence(),
		LastImprovement:    c.lastImprovement(),
		ConfidenceHistory:  append([]float64(nil), c.confidenceHistory...),
	}
}

// Iterations returns the number of recorded iterations.
func (c *Controller) Iterations() int {
	return c.iterationIndex
}

// TokensSoFar returns the recorded token total.
func (c *Controller) TokensSoFar() int {
	return c.tokensSoFar
}

// LastConfidence returns the most recent iteration's confidence, or 0.
func (c *Controller) LastConfidence() float64 {
	return c.lastConfidence()
}

// LastImprovement returns the most recent confidence delta, or 0.
func (c *Controller) LastImprovement() float64 {
	return c.lastImprovement()
}

func (c *Controller) lastConfidence() float64 {
	if n := len(c.confidenceHistory); n > 0 {
		return c.confidenceHistory[n-1]
	}
	return 0
}

func (c *Controller) lastImprovement() float64 {
	if n := len(c.improvements); n > 0 {
		return c.improvements[n-1]
	}
	return 0
}

func (c *Controller) elapsedMs() int64 {
	if c.startTime.IsZero() {
		return 0
	}
	return time.Since(c.startTime).Milliseconds()
}
