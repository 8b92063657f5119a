package control

import (
	"sync/atomic"
	"time"

	"github.com/delverhq/delver/pkg/models"
)

// EstimateTokens approximates the token cost of a text as
// max(1, len/4). Cheap and deliberately rough; the budget is a guard
// rail, not an invoice.
func EstimateTokens(text string) int {
	n := len(text) / 4
	if n < 1 {
		n = 1
	}
	return n
}

// BudgetGuard enforces the time and token budgets of one run. A zero
// limit means unbounded. Charge and StopReason are safe from any
// goroutine.
type BudgetGuard struct {
	start       time.Time
	maxDuration time.Duration
	maxTokens   int64
	used        atomic.Int64
}

// NewBudgetGuard starts the clock for a run.
func NewBudgetGuard(maxDuration time.Duration, maxTokens int) *BudgetGuard {
	return &BudgetGuard{
		start:       time.Now(),
		maxDuration: maxDuration,
		maxTokens:   int64(maxTokens),
	}
}

// Charge adds the estimated token cost of the texts to the running
// total and returns the amount charged.
func (g *BudgetGuard) Charge(texts ...string) int {
	total := 0
	for _, t := range texts {
		if t == "" {
			continue
		}
		total += EstimateTokens(t)
	}
	if total > 0 {
		g.used.Add(int64(total))
	}
	return total
}

// ChargeResult charges a search result as title plus trimmed snippet.
func (g *BudgetGuard) ChargeResult(title, snippet string) int {
	const snippetCap = 500
	if len(snippet) > snippetCap {
		snippet = snippet[:snippetCap]
	}
	return g.Charge(title, snippet)
}

// Used returns the tokens charged so far.
func (g *BudgetGuard) Used() int {
	return int(g.used.Load())
}

// Elapsed returns the time since the guard was created.
func (g *BudgetGuard) Elapsed() time.Duration {
	return time.Since(g.start)
}

// StopReason reports whether a budget is exhausted. Time is checked
// before tokens so a run that blew both reports the earlier cause.
func (g *BudgetGuard) StopReason() string {
	if g.maxDuration > 0 && time.Since(g.start) >= g.maxDuration {
		return models.StopReasonTimeExceeded
	}
	if g.maxTokens > 0 && g.used.Load() >= g.maxTokens {
		return models.StopReasonTokensExceeded
	}
	return models.StopReasonNone
}

// Check returns a BudgetError when a budget is exhausted, nil otherwise.
func (g *BudgetGuard) Check() error {
	if reason := g.StopReason(); reason != models.StopReasonNone {
		return &BudgetError{Reason: reason}
	}
	return nil
}
