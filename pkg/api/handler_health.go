package api

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	echo "github.com/labstack/echo/v5"

	"github.com/synod-ai/synod/pkg/version"
)

const (
	healthStatusHealthy   = "healthy"
	healthStatusDegraded  = "degraded"
	healthStatusUnhealthy = "unhealthy"
)

// healthHandler handles GET /api/v1/health.
// The store is load-bearing, so a store failure reports unhealthy (503).
// Unreachable models only degrade the status: the service keeps
// accepting work for the models that still answer.
func (s *Server) healthHandler(c *echo.Context) error {
	reqCtx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	checks := make(map[string]HealthCheck)
	status := healthStatusHealthy

	if _, err := s.repo.List(reqCtx, 1); err != nil {
		status = healthStatusUnhealthy
		checks["store"] = HealthCheck{Status: healthStatusUnhealthy, Message: err.Error()}
	} else {
		checks["store"] = HealthCheck{Status: healthStatusHealthy}
	}

	modelErrs := s.council.CheckModels(reqCtx)
	var failing []string
	for id, err := range modelErrs {
		if err != nil {
			failing = append(failing, fmt.Sprintf("%s: %v", id, err))
		}
	}
	if len(failing) > 0 {
		if status == healthStatusHealthy {
			status = healthStatusDegraded
		}
		sort.Strings(failing)
		checks["models"] = HealthCheck{Status: healthStatusDegraded, Message: strings.Join(failing, "; ")}
	} else {
		checks["models"] = HealthCheck{Status: healthStatusHealthy}
	}

	httpStatus := http.StatusOK
	if status == healthStatusUnhealthy {
		httpStatus = http.StatusServiceUnavailable
	}

	return c.JSON(httpStatus, &HealthResponse{
		Status:  status,
		Version: version.GitCommit,
		Checks:  checks,
	})
}
