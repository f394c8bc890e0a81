package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/stretchr/testify/require"

	"github.com/synod-ai/synod/pkg/api"
	"github.com/synod-ai/synod/pkg/models"
)

const (
	terminalWait = 15 * time.Second
	pollInterval = 10 * time.Millisecond
)

// SubmitCouncil posts a question and returns the accepted pending
// session snapshot.
func (app *TestApp) SubmitCouncil(req api.SubmitCouncilRequest) *models.Session {
	app.t.Helper()

	resp := app.submit(req)
	defer resp.Body.Close()
	require.Equal(app.t, http.StatusAccepted, resp.StatusCode)

	var session models.Session
	require.NoError(app.t, json.NewDecoder(resp.Body).Decode(&session))
	return &session
}

// submit posts a question and returns the raw response for status
// assertions.
func (app *TestApp) submit(req api.SubmitCouncilRequest) *http.Response {
	app.t.Helper()

	body, err := json.Marshal(req)
	require.NoError(app.t, err)

	resp, err := http.Post(app.BaseURL+"/api/v1/councils", "application/json", bytes.NewReader(body))
	require.NoError(app.t, err)
	return resp
}

// GetSession fetches one session by id.
func (app *TestApp) GetSession(id string) *models.Session {
	app.t.Helper()

	var session models.Session
	app.getJSON("/api/v1/sessions/"+id, &session)
	return &session
}

// WaitTerminal polls until the session reaches a terminal status.
func (app *TestApp) WaitTerminal(id string) *models.Session {
	app.t.Helper()

	var session *models.Session
	require.Eventually(app.t, func() bool {
		session = app.GetSession(id)
		return session.Status.IsTerminal()
	}, terminalWait, pollInterval, "session %s did not finish", id)
	return session
}

// SessionTraces fetches the session's persisted trace events, in
// recording order.
func (app *TestApp) SessionTraces(id string) []models.TraceEvent {
	app.t.Helper()

	var traced []models.TraceEvent
	app.getJSON("/api/v1/sessions/"+id+"/traces", &traced)
	return traced
}

// CancelSession requests cancellation and returns the response status.
func (app *TestApp) CancelSession(id string) int {
	app.t.Helper()

	resp, err := http.Post(app.BaseURL+"/api/v1/sessions/"+id+"/cancel", "application/json", nil)
	require.NoError(app.t, err)
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.StatusCode
}

func (app *TestApp) getJSON(path string, target any) {
	app.t.Helper()

	resp, err := http.Get(app.BaseURL + path)
	require.NoError(app.t, err)
	defer resp.Body.Close()
	require.Equal(app.t, http.StatusOK, resp.StatusCode, "GET %s", path)
	require.NoError(app.t, json.NewDecoder(resp.Body).Decode(target))
}

// StreamEvents dials the WebSocket endpoint and reads trace events
// until the predicate matches. The subscription sees the recorded
// snapshot first, then live events.
func (app *TestApp) StreamEvents(sessionID string, until func(models.TraceEvent) bool) []models.TraceEvent {
	app.t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), terminalWait)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, fmt.Sprintf("%s?session_id=%s", app.WSURL, sessionID), nil)
	require.NoError(app.t, err)
	defer conn.Close(websocket.StatusNormalClosure, "")

	var streamed []models.TraceEvent
	for {
		_, data, err := conn.Read(ctx)
		require.NoError(app.t, err, "websocket read after %d events", len(streamed))

		var event models.TraceEvent
		require.NoError(app.t, json.Unmarshal(data, &event))
		streamed = append(streamed, event)
		if until(event) {
			return streamed
		}
	}
}

// untilSessionEnd stops a stream at the terminal event.
func untilSessionEnd(event models.TraceEvent) bool {
	return event.Type == models.EventSessionEnd
}

// eventsOfType filters trace events by type.
func eventsOfType(traced []models.TraceEvent, eventType models.EventType) []models.TraceEvent {
	var out []models.TraceEvent
	for _, event := range traced {
		if event.Type == eventType {
			out = append(out, event)
		}
	}
	return out
}

// memberByModel finds the first member seated for a model id.
func memberByModel(session *models.Session, modelID string) (models.Member, bool) {
	for _, m := range session.Members {
		if m.ModelID == modelID {
			return m, true
		}
	}
	return models.Member{}, false
}

// stageNames projects the executed stage sequence.
func stageNames(session *models.Session) []models.Stage {
	out := make([]models.Stage, 0, len(session.Stages))
	for _, s := range session.Stages {
		out = append(out, s.Stage)
	}
	return out
}

// memberRoles projects the seated roles in seat order.
func memberRoles(session *models.Session) []models.Role {
	out := make([]models.Role, 0, len(session.Members))
	for _, m := range session.Members {
		out = append(out, m.Role)
	}
	return out
}
