package api

import (
	"errors"
	"log/slog"
	"net/http"

	echo "github.com/labstack/echo/v5"

	"github.com/synod-ai/synod/pkg/council"
	"github.com/synod-ai/synod/pkg/store"
)

// mapServiceError maps service-layer errors to HTTP error responses.
func mapServiceError(err error) *echo.HTTPError {
	if errors.Is(err, council.ErrEmptyQuestion) {
		return echo.NewHTTPError(http.StatusBadRequest, council.ErrEmptyQuestion.Error())
	}
	if errors.Is(err, store.ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "session not found")
	}
	if errors.Is(err, council.ErrSessionNotActive) {
		return echo.NewHTTPError(http.StatusConflict, "session is not active")
	}

	// Unexpected error
	slog.Error("Unexpected service error", "error", err)
	return echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
}
