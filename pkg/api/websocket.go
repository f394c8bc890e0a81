package api

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	echo "github.com/labstack/echo/v5"

	"github.com/synod-ai/synod/pkg/models"
)

const (
	// wsEventBuffer absorbs bursts between bus delivery and socket writes.
	wsEventBuffer = 256
	// wsWriteTimeout bounds a single frame write.
	wsWriteTimeout = 10 * time.Second
)

// wsHandler handles GET /api/v1/ws?session_id=.
// Upgrades to WebSocket and streams the session's trace events as JSON:
// first a snapshot of everything recorded so far, then live events.
func (s *Server) wsHandler(c *echo.Context) error {
	sessionID := c.QueryParam("session_id")
	if sessionID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "session_id is required")
	}
	if _, err := s.council.Get(c.Request().Context(), sessionID); err != nil {
		return mapServiceError(err)
	}

	conn, err := websocket.Accept(c.Response(), c.Request(), &websocket.AcceptOptions{
		// Accept all origins; deployments front this with an authenticating
		// proxy. Replace with an OriginPatterns allowlist when exposed directly.
		InsecureSkipVerify: true,
	})
	if err != nil {
		return err
	}

	// streamTraces blocks until the WebSocket closes.
	s.streamTraces(c.Request().Context(), conn, sessionID)
	return nil
}

// streamTraces subscribes before reading the snapshot so no event can
// fall between them; live events repeating the snapshot are dropped by
// ID. A client too slow to drain the buffer is disconnected rather than
// served a stream with holes.
func (s *Server) streamTraces(ctx context.Context, conn *websocket.Conn, sessionID string) {
	defer conn.Close(websocket.StatusNormalClosure, "")

	// CloseRead cancels the context when the peer disconnects.
	ctx = conn.CloseRead(ctx)

	live := make(chan models.TraceEvent, wsEventBuffer)
	lagged := make(chan struct{})
	var laggedOnce sync.Once

	subID := s.bus.Subscribe(func(event models.TraceEvent) error {
		if event.SessionID != sessionID {
			return nil
		}
		select {
		case live <- event:
		default:
			laggedOnce.Do(func() { close(lagged) })
		}
		return nil
	})
	defer s.bus.Unsubscribe(subID)

	snapshot := s.traces.GetTraces(sessionID)
	seen := make(map[string]bool, len(snapshot))
	for _, event := range snapshot {
		seen[event.ID] = true
		if err := writeEvent(ctx, conn, event); err != nil {
			return
		}
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-lagged:
			conn.Close(websocket.StatusTryAgainLater, "event stream lagged")
			return
		case event := <-live:
			if seen[event.ID] {
				delete(seen, event.ID)
				continue
			}
			if err := writeEvent(ctx, conn, event); err != nil {
				return
			}
		}
	}
}

func writeEvent(ctx context.Context, conn *websocket.Conn, event models.TraceEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	writeCtx, cancel := context.WithTimeout(ctx, wsWriteTimeout)
	defer cancel()
	return conn.Write(writeCtx, websocket.MessageText, data)
}
