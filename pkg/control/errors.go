// Package control implements cooperative cancellation and budget
// enforcement for research runs: tokens with named checkpoints and LIFO
// cleanup callbacks, a process-wide registry with a retention janitor,
// and time/token budget guards that preempt the pipeline between stages.
package control

import (
	"errors"
	"fmt"
)

// CancelledError unwinds a run when a checkpoint observes a cancelled
// token. It carries enough context to tell the caller where the run
// stopped and why.
type CancelledError struct {
	TaskID     string
	Checkpoint string
	Reason     string
}

func (e *CancelledError) Error() string {
	return fmt.Sprintf("task %s cancelled at checkpoint %q: %s", e.TaskID, e.Checkpoint, e.Reason)
}

// IsCancelled reports whether err is (or wraps) a cancellation.
func IsCancelled(err error) bool {
	var ce *CancelledError
	return errors.As(err, &ce)
}

// BudgetError is returned when a stage would exceed the run budget. It
// is a stop signal, not a failure: the runner finalizes with best-effort
// artifacts.
type BudgetError struct {
	// Reason is StopReasonTimeExceeded or StopReasonTokensExceeded.
	Reason string
}

func (e *BudgetError) Error() string {
	return fmt.Sprintf("budget exceeded: %s", e.Reason)
}

// IsBudget reports whether err is (or wraps) a budget stop.
func IsBudget(err error) bool {
	var be *BudgetError
	return errors.As(err, &be)
}
