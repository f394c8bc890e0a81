package api

import (
	"fmt"
	"net/http"

	echo "github.com/labstack/echo/v5"

	"github.com/synod-ai/synod/pkg/council"
)

// maxQuestionBytes bounds the submitted question size.
const maxQuestionBytes = 32 * 1024

// submitCouncilHandler handles POST /api/v1/councils.
// Starts the deliberation asynchronously and returns the pending
// session snapshot immediately.
func (s *Server) submitCouncilHandler(c *echo.Context) error {
	// 1. Bind HTTP request
	var req SubmitCouncilRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	// 2. Validate required fields
	if req.Question == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "question field is required")
	}

	// 3. Enforce question size limit
	if len(req.Question) > maxQuestionBytes {
		return echo.NewHTTPError(http.StatusRequestEntityTooLarge,
			fmt.Sprintf("question exceeds maximum size of %d bytes", maxQuestionBytes))
	}

	// 4. Validate and transform options
	opts, err := runOptionsFrom(req.Options)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	// 5. Admission control
	if limit := s.cfg.MaxConcurrentSessions; limit > 0 && s.council.ActiveCount() >= limit {
		return echo.NewHTTPError(http.StatusTooManyRequests,
			fmt.Sprintf("too many active sessions (limit %d)", limit))
	}

	// 6. Call service
	session, err := s.council.Start(c.Request().Context(), req.Question, opts)
	if err != nil {
		return mapServiceError(err)
	}

	// 7. Return the pending snapshot
	return c.JSON(http.StatusAccepted, session)
}

// runOptionsFrom validates the optional request knobs and converts them
// to service options.
func runOptionsFrom(o *CouncilOptions) (council.RunOptions, error) {
	var opts council.RunOptions
	if o == nil {
		return opts, nil
	}

	if o.PlannerMode != "" {
		if !o.PlannerMode.IsValid() {
			return opts, fmt.Errorf("unknown planner mode %q", o.PlannerMode)
		}
		opts.PlannerMode = o.PlannerMode
	}
	if o.Plan != nil {
		if len(o.Plan.Members) == 0 {
			return opts, fmt.Errorf("provided plan has no members")
		}
		opts.Plan = o.Plan
	}

	opts.IterationOverride = o.Iteration
	opts.MemoryOverride = o.Memory
	opts.SessionOverride = o.Session
	return opts, nil
}
