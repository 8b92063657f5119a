package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/delverhq/delver/pkg/control"
	"github.com/delverhq/delver/pkg/events"
	"github.com/delverhq/delver/pkg/models"
)

// blockingRunner completes when released or its context is cut.
type blockingRunner struct {
	started  chan string
	release  chan struct{}
	artifact *models.RunArtifacts
}

func newBlockingRunner(artifact *models.RunArtifacts) *blockingRunner {
	return &blockingRunner{
		started:  make(chan string, 8),
		release:  make(chan struct{}),
		artifact: artifact,
	}
}

func (r *blockingRunner) Run(ctx context.Context, req *models.RunRequest) *models.RunArtifacts {
	r.started <- req.SessionID
	select {
	case <-r.release:
		return r.artifact
	case <-ctx.Done():
		return &models.RunArtifacts{IsCancelled: true, IsComplete: true, FinalReport: "task cancelled"}
	}
}

func newManager(runner Runner) *Manager {
	return NewManager(runner, events.NewBus(), control.NewRegistry(0, 0))
}

func waitStatus(t *testing.T, m *Manager, sessionID, want string) *RunState {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		if state, ok := m.Get(sessionID); ok && state.Status == want {
			return state
		}
		select {
		case <-deadline:
			state, _ := m.Get(sessionID)
			t.Fatalf("session %s never reached %s, state=%+v", sessionID, want, state)
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestStartAndComplete(t *testing.T) {
	runner := newBlockingRunner(&models.RunArtifacts{IsComplete: true, FinalReport: "done"})
	m := newManager(runner)

	id, err := m.Start(&models.RunRequest{Topic: "topic"})
	require.NoError(t, err)
	require.NotEmpty(t, id)
	<-runner.started

	state, ok := m.Get(id)
	require.True(t, ok)
	assert.Equal(t, StatusRunning, state.Status)

	close(runner.release)
	state = waitStatus(t, m, id, StatusCompleted)
	assert.Equal(t, "done", state.Artifacts.FinalReport)
	assert.False(t, state.FinishedAt.IsZero())
}

func TestStartRejectsEmptyTopic(t *testing.T) {
	m := newManager(newBlockingRunner(nil))
	_, err := m.Start(&models.RunRequest{})
	assert.Error(t, err)
}

func TestSingleFlightPerSession(t *testing.T) {
	runner := newBlockingRunner(&models.RunArtifacts{IsComplete: true})
	m := newManager(runner)

	_, err := m.Start(&models.RunRequest{Topic: "a", SessionID: "s1"})
	require.NoError(t, err)
	<-runner.started

	_, err = m.Start(&models.RunRequest{Topic: "b", SessionID: "s1"})
	assert.Error(t, err)

	// A different session is unaffected.
	_, err = m.Start(&models.RunRequest{Topic: "c", SessionID: "s2"})
	assert.NoError(t, err)

	close(runner.release)
	waitStatus(t, m, "s1", StatusCompleted)

	// A finished session accepts a new run.
	runner2 := newBlockingRunner(&models.RunArtifacts{IsComplete: true})
	m.runner = runner2
	_, err = m.Start(&models.RunRequest{Topic: "d", SessionID: "s1"})
	assert.NoError(t, err)
}

func TestCancelStopsRun(t *testing.T) {
	runner := newBlockingRunner(&models.RunArtifacts{IsComplete: true})
	m := newManager(runner)

	_, err := m.Start(&models.RunRequest{Topic: "topic", SessionID: "c1"})
	require.NoError(t, err)
	<-runner.started

	assert.True(t, m.Cancel("c1", "user request"))
	state := waitStatus(t, m, "c1", StatusCancelled)
	assert.Equal(t, "task cancelled", state.Artifacts.FinalReport)

	// Cancelling again reports nothing in flight.
	assert.False(t, m.Cancel("c1", "again"))
}

func TestCancelUnknownSession(t *testing.T) {
	m := newManager(newBlockingRunner(nil))
	assert.False(t, m.Cancel("ghost", "reason"))
}

func TestCloseSessionDropsState(t *testing.T) {
	runner := newBlockingRunner(&models.RunArtifacts{IsComplete: true})
	m := newManager(runner)

	_, err := m.Start(&models.RunRequest{Topic: "topic", SessionID: "x1"})
	require.NoError(t, err)
	<-runner.started

	m.CloseSession("x1")
	// State is gone even while the goroutine unwinds.
	_, ok := m.Get("x1")
	assert.False(t, ok)
}

func TestHealthCounts(t *testing.T) {
	runner := newBlockingRunner(&models.RunArtifacts{IsComplete: true})
	m := newManager(runner)

	_, err := m.Start(&models.RunRequest{Topic: "topic", SessionID: "h1"})
	require.NoError(t, err)
	<-runner.started

	h := m.Health()
	assert.Equal(t, 1, h["active_runs"])
	assert.Equal(t, 1, h["tracked_runs"])

	close(runner.release)
	waitStatus(t, m, "h1", StatusCompleted)
	h = m.Health()
	assert.Equal(t, 0, h["active_runs"])
}

func TestShutdownWaitsForRuns(t *testing.T) {
	runner := newBlockingRunner(&models.RunArtifacts{IsComplete: true})
	m := newManager(runner)

	_, err := m.Start(&models.RunRequest{Topic: "topic", SessionID: "d1"})
	require.NoError(t, err)
	<-runner.started

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, m.Shutdown(ctx))

	state, ok := m.Get("d1")
	require.True(t, ok)
	assert.NotEqual(t, StatusRunning, state.Status)
}
