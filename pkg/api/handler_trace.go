package api

import (
	"net/http"

	echo "github.com/labstack/echo/v5"
)

// sessionTracesHandler handles GET /api/v1/sessions/:id/traces.
// Events are returned in emission order.
func (s *Server) sessionTracesHandler(c *echo.Context) error {
	sessionID := c.Param("id")
	if sessionID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "session id is required")
	}

	traces, err := s.council.Traces(c.Request().Context(), sessionID)
	if err != nil {
		return mapServiceError(err)
	}

	return c.JSON(http.StatusOK, traces)
}
