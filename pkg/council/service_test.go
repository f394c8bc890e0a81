package council

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/synod-ai/synod/pkg/models"
	"github.com/synod-ai/synod/pkg/store"
)

func quickScripts() map[string]memberScript {
	return map[string]memberScript{
		"mini": {
			opinion:   "Opinion.",
			review:    "Review.",
			votes:     []string{ballot("A", 0.9)},
			synthesis: "Answer: A.",
		},
	}
}

func TestRunRejectsEmptyQuestion(t *testing.T) {
	env := newTestEnv(t, quickScripts())

	_, err := env.svc.Run(context.Background(), "   \n\t", RunOptions{})
	require.ErrorIs(t, err, ErrEmptyQuestion)

	sessions, err := env.svc.List(context.Background(), 0)
	require.NoError(t, err)
	assert.Empty(t, sessions, "rejected questions leave no session behind")
}

func TestRunPersistsTerminalSession(t *testing.T) {
	env := newTestEnv(t, quickScripts())

	session, err := env.svc.Run(context.Background(), "What is A?", RunOptions{Plan: smallPlan("mini")})
	require.NoError(t, err)

	stored, err := env.svc.Get(context.Background(), session.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SessionStatusCompleted, stored.Status)
	require.NotNil(t, stored.FinalAnswer)
	assert.Equal(t, "Answer: A.", *stored.FinalAnswer)
	assert.Equal(t, session.TotalTokens, stored.TotalTokens)
	assert.Len(t, stored.Stages, 4)
}

func TestStartRunsAsynchronously(t *testing.T) {
	env := newTestEnv(t, quickScripts())

	snapshot, err := env.svc.Start(context.Background(), "What is A?", RunOptions{Plan: smallPlan("mini")})
	require.NoError(t, err)
	assert.Equal(t, models.SessionStatusPending, snapshot.Status)
	assert.Nil(t, snapshot.FinalAnswer)

	require.Eventually(t, func() bool {
		stored, err := env.svc.Get(context.Background(), snapshot.ID)
		return err == nil && stored.Status == models.SessionStatusCompleted
	}, 5*time.Second, 10*time.Millisecond)

	// The caller's snapshot stayed pending; progress lives in the store.
	assert.Equal(t, models.SessionStatusPending, snapshot.Status)
}

func TestStartDetachesFromCallerContext(t *testing.T) {
	env := newTestEnv(t, quickScripts())

	ctx, cancel := context.WithCancel(context.Background())
	snapshot, err := env.svc.Start(ctx, "What is A?", RunOptions{Plan: smallPlan("mini")})
	require.NoError(t, err)
	cancel()

	require.Eventually(t, func() bool {
		stored, err := env.svc.Get(context.Background(), snapshot.ID)
		return err == nil && stored.Status == models.SessionStatusCompleted
	}, 5*time.Second, 10*time.Millisecond)
}

func TestCancelStopsActiveSession(t *testing.T) {
	scripts := quickScripts()
	script := scripts["mini"]
	script.delay = 2 * time.Second
	scripts["mini"] = script
	env := newTestEnv(t, scripts)

	snapshot, err := env.svc.Start(context.Background(), "Slow question.", RunOptions{Plan: smallPlan("mini")})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return env.svc.ActiveCount() == 1
	}, 2*time.Second, 5*time.Millisecond)

	require.NoError(t, env.svc.Cancel(context.Background(), snapshot.ID))

	require.Eventually(t, func() bool {
		stored, err := env.svc.Get(context.Background(), snapshot.ID)
		return err == nil && stored.Status == models.SessionStatusFailed
	}, 5*time.Second, 10*time.Millisecond)

	stored, err := env.svc.Get(context.Background(), snapshot.ID)
	require.NoError(t, err)
	assert.Equal(t, "cancelled", stored.Error)
	assert.Zero(t, env.svc.ActiveCount())
}

func TestCancelUnknownSession(t *testing.T) {
	env := newTestEnv(t, quickScripts())

	err := env.svc.Cancel(context.Background(), "no-such-session")
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestCancelTerminalSession(t *testing.T) {
	env := newTestEnv(t, quickScripts())

	session, err := env.svc.Run(context.Background(), "What is A?", RunOptions{Plan: smallPlan("mini")})
	require.NoError(t, err)

	err = env.svc.Cancel(context.Background(), session.ID)
	require.ErrorIs(t, err, ErrSessionNotActive)
}

func TestListReturnsNewestFirst(t *testing.T) {
	env := newTestEnv(t, quickScripts())

	first, err := env.svc.Run(context.Background(), "First question.", RunOptions{Plan: smallPlan("mini")})
	require.NoError(t, err)
	second, err := env.svc.Run(context.Background(), "Second question.", RunOptions{Plan: smallPlan("mini")})
	require.NoError(t, err)

	sessions, err := env.svc.List(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, sessions, 2)
	assert.Equal(t, second.ID, sessions[0].ID)
	assert.Equal(t, first.ID, sessions[1].ID)

	limited, err := env.svc.List(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, limited, 1)
	assert.Equal(t, second.ID, limited[0].ID)
}

func TestTracesSurviveInRepository(t *testing.T) {
	env := newTestEnv(t, quickScripts())

	session, err := env.svc.Run(context.Background(), "What is A?", RunOptions{Plan: smallPlan("mini")})
	require.NoError(t, err)

	stored, err := env.svc.Traces(context.Background(), session.ID)
	require.NoError(t, err)
	hot := env.traces.GetTraces(session.ID)

	require.Equal(t, len(hot), len(stored))
	assert.Equal(t, models.EventSessionStart, stored[0].Type)
	assert.Equal(t, models.EventSessionEnd, stored[len(stored)-1].Type)
}

func TestShutdownCancelsActiveSessions(t *testing.T) {
	scripts := quickScripts()
	script := scripts["mini"]
	script.delay = 2 * time.Second
	scripts["mini"] = script
	env := newTestEnv(t, scripts)

	snapshot, err := env.svc.Start(context.Background(), "Slow question.", RunOptions{Plan: smallPlan("mini")})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return env.svc.ActiveCount() == 1
	}, 2*time.Second, 5*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, env.svc.Shutdown(ctx))

	assert.Zero(t, env.svc.ActiveCount())
	stored, err := env.svc.Get(context.Background(), snapshot.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SessionStatusFailed, stored.Status)
	assert.Equal(t, "cancelled", stored.Error)
}

func TestCheckModels(t *testing.T) {
	env := newTestEnv(t, quickScripts())

	results := env.svc.CheckModels(context.Background())
	require.Len(t, results, 1)
	assert.NoError(t, results["mini"])
}

func TestNewServicePanicsOnNilArguments(t *testing.T) {
	env := newTestEnv(t, quickScripts())

	assert.Panics(t, func() {
		NewService(nil, env.svc.planner, env.repo, env.svc.bus)
	})
	assert.Panics(t, func() {
		NewService(env.svc.cfg, nil, env.repo, env.svc.bus)
	})
	assert.Panics(t, func() {
		NewService(env.svc.cfg, env.svc.planner, nil, env.svc.bus)
	})
	assert.Panics(t, func() {
		NewService(env.svc.cfg, env.svc.planner, env.repo, nil)
	})
}
