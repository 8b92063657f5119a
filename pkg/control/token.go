package control

import (
	"log/slog"
	"sync"
	"time"
)

// Token status values. Transitions are monotonic except
// pending → running ⇄ paused.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusPaused    Status = "paused"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
	StatusFailed    Status = "failed"
)

// terminal reports whether a status permits no further transitions.
func (s Status) terminal() bool {
	return s == StatusCompleted || s == StatusCancelled || s == StatusFailed
}

// Checkpoint is one named cancellation poll site a run has passed.
type Checkpoint struct {
	Name      string    `json:"name"`
	Timestamp time.Time `json:"ts"`
}

// Token is a cooperative cancellation handle for one task. All methods
// are safe for concurrent use.
type Token struct {
	TaskID    string
	CreatedAt time.Time

	mu          sync.Mutex
	cancelled   bool
	reason      string
	cancelledAt time.Time
	status      Status
	errText     string
	metadata    map[string]any
	cleanups    []func()
	checkpoints []Checkpoint
}

func newToken(taskID string, metadata map[string]any) *Token {
	if metadata == nil {
		metadata = map[string]any{}
	}
	return &Token{
		TaskID:    taskID,
		CreatedAt: time.Now(),
		status:    StatusPending,
		metadata:  metadata,
	}
}

// Check fails with a CancelledError when the token is cancelled,
// otherwise it records the checkpoint on the token's trail.
func (t *Token) Check(checkpoint string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.cancelled {
		last := checkpoint
		if n := len(t.checkpoints); n > 0 {
			last = t.checkpoints[n-1].Name
		}
		return &CancelledError{TaskID: t.TaskID, Checkpoint: last, Reason: t.reason}
	}
	t.checkpoints = append(t.checkpoints, Checkpoint{Name: checkpoint, Timestamp: time.Now()})
	return nil
}

// Cancelled reports whether the token has been cancelled.
func (t *Token) Cancelled() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.cancelled
}

// Reason returns the cancellation reason, empty while live.
func (t *Token) Reason() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.reason
}

// Status returns the current lifecycle status.
func (t *Token) Status() Status {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.status
}

// Checkpoints returns a copy of the checkpoint trail.
func (t *Token) Checkpoints() []Checkpoint {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Checkpoint, len(t.checkpoints))
	copy(out, t.checkpoints)
	return out
}

// Metadata returns the value stored under key at creation time.
func (t *Token) Metadata(key string) (any, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	v, ok := t.metadata[key]
	return v, ok
}

// AddCleanup registers a callback run on cancellation. Callbacks run in
// LIFO order, each at most once.
func (t *Token) AddCleanup(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.cleanups = append(t.cleanups, fn)
}

// setStatus applies a lifecycle transition, refusing to leave a terminal
// state. Cancellation goes through cancel, not here.
func (t *Token) setStatus(next Status) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.status.terminal() {
		return
	}
	t.status = next
}

// cancel marks the token cancelled and runs its cleanups in LIFO order.
// It returns false when the token was already cancelled; the second call
// has no further effect.
func (t *Token) cancel(reason string) bool {
	t.mu.Lock()
	if t.cancelled {
		t.mu.Unlock()
		return false
	}
	t.cancelled = true
	t.reason = reason
	t.cancelledAt = time.Now()
	t.status = StatusCancelled
	cleanups := t.cleanups
	t.cleanups = nil
	t.mu.Unlock()

	for i := len(cleanups) - 1; i >= 0; i-- {
		runCleanup(t.TaskID, cleanups[i])
	}
	return true
}

// runCleanup executes one cleanup callback, recovering panics so a bad
// callback cannot abort the remaining ones.
func runCleanup(taskID string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Cancellation cleanup panicked", "task_id", taskID, "panic", r)
		}
	}()
	fn()
}
