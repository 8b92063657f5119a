// Package service owns run lifecycle management: it accepts research
// requests, enforces single-flight per session, runs the engine in the
// background, and exposes status and cancellation.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/delverhq/delver/pkg/control"
	"github.com/delverhq/delver/pkg/events"
	"github.com/delverhq/delver/pkg/models"
)

// Run statuses reported by the manager.
const (
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusCancelled = "cancelled"
	StatusFailed    = "failed"
)

// Runner is the slice of the research engine the manager drives.
type Runner interface {
	Run(ctx context.Context, req *models.RunRequest) *models.RunArtifacts
}

// RunState is the manager's view of one run.
type RunState struct {
	SessionID  string               `json:"session_id"`
	Topic      string               `json:"topic"`
	Status     string               `json:"status"`
	StartedAt  time.Time            `json:"started_at"`
	FinishedAt time.Time            `json:"finished_at,omitzero"`
	Artifacts  *models.RunArtifacts `json:"artifacts,omitempty"`
}

// Manager tracks active runs. One run per session at a time; finished
// states stay queryable until the session is closed.
type Manager struct {
	runner   Runner
	bus      *events.Bus
	registry *control.Registry

	mu      sync.RWMutex
	runs    map[string]*RunState
	cancels map[string]context.CancelFunc
	wg      sync.WaitGroup
}

// NewManager wires a run manager. It registers a global cancel callback
// so registry-level cancellations also stop the run's context.
func NewManager(runner Runner, bus *events.Bus, registry *control.Registry) *Manager {
	m := &Manager{
		runner:   runner,
		bus:      bus,
		registry: registry,
		runs:     make(map[string]*RunState),
		cancels:  make(map[string]context.CancelFunc),
	}
	registry.OnCancel(func(taskID, reason string) {
		m.mu.RLock()
		cancel, ok := m.cancels[taskID]
		m.mu.RUnlock()
		if ok {
			cancel()
		}
	})
	return m
}

// Start launches a run for the request in the background and returns
// the session id. A session with a run still in flight is refused.
func (m *Manager) Start(req *models.RunRequest) (string, error) {
	if req.Topic == "" {
		return "", fmt.Errorf("topic is required")
	}
	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = uuid.NewString()
		req.SessionID = sessionID
	}

	m.mu.Lock()
	if state, ok := m.runs[sessionID]; ok && state.Status == StatusRunning {
		m.mu.Unlock()
		return "", fmt.Errorf("session %s already has a run in flight", sessionID)
	}
	ctx, cancel := context.WithCancel(context.Background())
	m.runs[sessionID] = &RunState{
		SessionID: sessionID,
		Topic:     req.Topic,
		Status:    StatusRunning,
		StartedAt: time.Now(),
	}
	m.cancels[sessionID] = cancel
	m.mu.Unlock()

	slog.Info("Run accepted", "session_id", sessionID, "topic", req.Topic)

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		defer cancel()
		artifacts := m.runner.Run(ctx, req)
		m.finish(sessionID, artifacts)
	}()
	return sessionID, nil
}

func (m *Manager) finish(sessionID string, artifacts *models.RunArtifacts) {
	m.mu.Lock()
	defer m.mu.Unlock()
	state, ok := m.runs[sessionID]
	if !ok {
		return
	}
	state.FinishedAt = time.Now()
	state.Artifacts = artifacts
	switch {
	case artifacts == nil:
		state.Status = StatusFailed
	case artifacts.IsCancelled:
		state.Status = StatusCancelled
	case artifacts.IsComplete:
		state.Status = StatusCompleted
	default:
		state.Status = StatusFailed
	}
	delete(m.cancels, sessionID)
	slog.Info("Run finished", "session_id", sessionID, "status", state.Status)
}

// Get returns the state of a session's run.
func (m *Manager) Get(sessionID string) (*RunState, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	state, ok := m.runs[sessionID]
	return state, ok
}

// Cancel requests cooperative cancellation of a session's run: the
// registry token is cancelled (running its cleanups) and the run
// context is cut. Returns false when nothing is in flight.
func (m *Manager) Cancel(sessionID, reason string) bool {
	m.mu.RLock()
	state, ok := m.runs[sessionID]
	m.mu.RUnlock()
	if !ok || state.Status != StatusRunning {
		return false
	}
	if !m.registry.Cancel(sessionID, reason) {
		// No live token yet; cut the context directly.
		m.mu.RLock()
		cancel, ok := m.cancels[sessionID]
		m.mu.RUnlock()
		if !ok {
			return false
		}
		cancel()
	}
	return true
}

// CloseSession cancels any in-flight run and drops the session's event
// buffer, listeners, and run state.
func (m *Manager) CloseSession(sessionID string) {
	m.Cancel(sessionID, "session closed")
	m.bus.CloseSession(sessionID)
	m.registry.Remove(sessionID)

	m.mu.Lock()
	delete(m.runs, sessionID)
	delete(m.cancels, sessionID)
	m.mu.Unlock()
}

// Active returns the ids of sessions with a run in flight.
func (m *Manager) Active() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []string
	for id, state := range m.runs {
		if state.Status == StatusRunning {
			out = append(out, id)
		}
	}
	return out
}

// Health summarizes the manager for the health endpoint.
func (m *Manager) Health() map[string]any {
	m.mu.RLock()
	defer m.mu.RUnlock()
	running := 0
	for _, state := range m.runs {
		if state.Status == StatusRunning {
			running++
		}
	}
	return map[string]any{
		"active_runs":  running,
		"tracked_runs": len(m.runs),
	}
}

// Shutdown waits for in-flight runs to finish, up to the context
// deadline. Runs are cancelled first so they unwind promptly.
func (m *Manager) Shutdown(ctx context.Context) error {
	for _, id := range m.Active() {
		m.Cancel(id, "server shutting down")
	}
	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
