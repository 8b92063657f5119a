package e2e

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/delverhq/delver/pkg/models"
	"github.com/delverhq/delver/pkg/research"
	"github.com/delverhq/delver/pkg/search"
)

// ────────────────────────────────────────────────────────────
// Budget guard tests.
//
// Budgets are checked before spending, so an exhausted budget means
// the search layer is never touched. Either way the run completes
// with best-effort artifacts and a stop reason, never an error.
// ────────────────────────────────────────────────────────────

func TestE2E_TokenBudgetStopsBeforeSearch(t *testing.T) {
	cfg := baseConfig()
	cfg.Settings.MaxTokens = 3

	provider := newStubProvider("tavily", webResults(3)...)
	ms := &research.ModelSet{
		Planner:    script(`["a very long query that should consume token budget quickly"]`),
		Researcher: script("unused"),
		Writer:     script("unused"),
		Critic:     script("unused"),
		Gap:        script("unused"),
	}
	a := newApp(t, cfg, ms, []search.Provider{provider})

	sessionID := a.startRun(map[string]any{"topic": "AI"})
	st := a.waitDone(sessionID)

	assert.Equal(t, "completed", st.Status)
	require.NotNil(t, st.Artifacts)
	assert.Equal(t, models.StopReasonTokensExceeded, st.Artifacts.BudgetStopReason)
	assert.Equal(t, models.BudgetStopMessage(models.StopReasonTokensExceeded), st.Artifacts.UserMessage)
	assert.True(t, st.Artifacts.IsComplete)
	assert.Empty(t, provider.Queries())

	evs := a.sessionEvents(sessionID)
	require.NotEmpty(t, evs)
	last := evs[len(evs)-1]
	assert.Equal(t, models.EventDone, last.Type)
	assert.Equal(t, models.StopReasonTokensExceeded, last.Data["budget_stop_reason"])
	assert.Equal(t, models.BudgetStopMessage(models.StopReasonTokensExceeded), last.Data["user_message"])
	assert.Empty(t, a.eventsOfKind(sessionID, models.EventSearch))
}

func TestE2E_TimeBudgetStopsBeforeSearch(t *testing.T) {
	cfg := baseConfig()
	cfg.Settings.MaxSeconds = 0.001
	cfg.Settings.MaxTokens = 10000

	provider := newStubProvider("tavily", webResults(3)...)
	slowPlanner := script(`["quick query"]`)
	slowPlanner.delay = 20 * time.Millisecond
	ms := &research.ModelSet{
		Planner:    slowPlanner,
		Researcher: script("unused"),
		Writer:     script("unused"),
		Critic:     script("unused"),
		Gap:        script("unused"),
	}
	a := newApp(t, cfg, ms, []search.Provider{provider})

	sessionID := a.startRun(map[string]any{"topic": "slow topic"})
	st := a.waitDone(sessionID)

	assert.Equal(t, "completed", st.Status)
	require.NotNil(t, st.Artifacts)
	assert.Equal(t, models.StopReasonTimeExceeded, st.Artifacts.BudgetStopReason)
	assert.Equal(t, models.BudgetStopMessage(models.StopReasonTimeExceeded), st.Artifacts.UserMessage)
	assert.Empty(t, provider.Queries())
	assert.Empty(t, a.eventsOfKind(sessionID, models.EventSearch))
}
