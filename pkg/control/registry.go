package control

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// CancelCallback observes every registry-level cancellation.
type CancelCallback func(taskID, reason string)

// Registry tracks cancellation tokens by task id and sweeps stale ones
// in the background.
type Registry struct {
	mu       sync.Mutex
	tokens   map[string]*Token
	onCancel []CancelCallback

	ttl      time.Duration
	interval time.Duration

	cancelJanitor context.CancelFunc
	done          chan struct{}
}

// NewRegistry creates a registry. ttl bounds token retention; interval
// is the janitor sweep period. Zero values disable the janitor until
// Start is called with usable settings.
func NewRegistry(ttl, interval time.Duration) *Registry {
	if ttl <= 0 {
		ttl = time.Hour
	}
	if interval <= 0 {
		interval = time.Minute
	}
	return &Registry{
		tokens:   make(map[string]*Token),
		ttl:      ttl,
		interval: interval,
	}
}

// Create allocates a token for taskID. When a live token already exists
// under the same id it is cancelled first, with its cleanups completed
// before the replacement is visible.
func (r *Registry) Create(taskID string, metadata map[string]any) *Token {
	r.mu.Lock()
	existing, ok := r.tokens[taskID]
	r.mu.Unlock()

	if ok && !existing.Cancelled() && !existing.Status().terminal() {
		slog.Info("Replacing live cancellation token", "task_id", taskID)
		existing.cancel("replaced by new task")
	}

	token := newToken(taskID, metadata)
	r.mu.Lock()
	r.tokens[taskID] = token
	r.mu.Unlock()
	return token
}

// Get returns the token registered for taskID.
func (r *Registry) Get(taskID string) (*Token, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tokens[taskID]
	return t, ok
}

// Cancel cancels the token for taskID: cleanups run LIFO, then global
// cancel callbacks fire. Returns false for unknown or already-cancelled
// tasks, in which case nothing runs again.
func (r *Registry) Cancel(taskID, reason string) bool {
	r.mu.Lock()
	token, ok := r.tokens[taskID]
	callbacks := make([]CancelCallback, len(r.onCancel))
	copy(callbacks, r.onCancel)
	r.mu.Unlock()
	if !ok {
		return false
	}
	if !token.cancel(reason) {
		return false
	}
	slog.Info("Task cancelled", "task_id", taskID, "reason", reason)
	for _, cb := range callbacks {
		cb(taskID, reason)
	}
	return true
}

// OnCancel registers a callback invoked after every successful Cancel.
func (r *Registry) OnCancel(cb CancelCallback) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onCancel = append(r.onCancel, cb)
}

// Remove drops the token for taskID without cancelling it.
func (r *Registry) Remove(taskID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.tokens, taskID)
}

// Scoped runs fn inside the token's lifecycle: running on entry,
// completed on normal return, failed on error. A cancellation error
// leaves the token as the cancel path set it.
func (r *Registry) Scoped(token *Token, fn func() error) error {
	token.setStatus(StatusRunning)
	err := fn()
	switch {
	case err == nil:
		token.setStatus(StatusCompleted)
	case IsCancelled(err):
		// Already cancelled; nothing to record.
	default:
		token.mu.Lock()
		if !token.status.terminal() {
			token.status = StatusFailed
			token.errText = err.Error()
		}
		token.mu.Unlock()
	}
	return err
}

// Pause marks a running token paused; Resume reverses it. Both are
// no-ops on terminal tokens.
func (r *Registry) Pause(taskID string) {
	if t, ok := r.Get(taskID); ok && t.Status() == StatusRunning {
		t.setStatus(StatusPaused)
	}
}

// Resume moves a paused token back to running.
func (r *Registry) Resume(taskID string) {
	if t, ok := r.Get(taskID); ok && t.Status() == StatusPaused {
		t.setStatus(StatusRunning)
	}
}

// Start launches the background janitor. Safe to call once.
func (r *Registry) Start(ctx context.Context) {
	if r.cancelJanitor != nil {
		return
	}
	ctx, r.cancelJanitor = context.WithCancel(ctx)
	r.done = make(chan struct{})
	go r.run(ctx)
	slog.Info("Token janitor started", "ttl", r.ttl, "interval", r.interval)
}

// Stop signals the janitor to exit and waits for it.
func (r *Registry) Stop() {
	if r.cancelJanitor == nil {
		return
	}
	r.cancelJanitor()
	<-r.done
	slog.Info("Token janitor stopped")
}

func (r *Registry) run(ctx context.Context) {
	defer close(r.done)
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.sweep()
		}
	}
}

// sweep removes tokens older than the TTL.
func (r *Registry) sweep() {
	cutoff := time.Now().Add(-r.ttl)
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, token := range r.tokens {
		if token.CreatedAt.Before(cutoff) {
			delete(r.tokens, id)
			slog.Debug("Swept stale token", "task_id", id, "age", time.Since(token.CreatedAt))
		}
	}
}
