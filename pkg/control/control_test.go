package control

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/delverhq/delver/pkg/models"
)

func TestCheckRecordsCheckpoints(t *testing.T) {
	r := NewRegistry(0, 0)
	token := r.Create("t1", nil)

	require.NoError(t, token.Check("query_gen"))
	require.NoError(t, token.Check("search"))

	cps := token.Checkpoints()
	require.Len(t, cps, 2)
	assert.Equal(t, "query_gen", cps[0].Name)
	assert.Equal(t, "search", cps[1].Name)
	assert.False(t, cps[0].Timestamp.After(cps[1].Timestamp))
}

func TestCheckAfterCancelFails(t *testing.T) {
	r := NewRegistry(0, 0)
	token := r.Create("t1", nil)
	require.NoError(t, token.Check("search"))

	require.True(t, r.Cancel("t1", "user request"))

	err := token.Check("summarize")
	require.Error(t, err)
	var ce *CancelledError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "t1", ce.TaskID)
	assert.Equal(t, "search", ce.Checkpoint)
	assert.Equal(t, "user request", ce.Reason)
	assert.True(t, IsCancelled(err))
}

func TestCancelRunsCleanupsLIFOOnce(t *testing.T) {
	r := NewRegistry(0, 0)
	token := r.Create("t1", nil)

	var order []int
	token.AddCleanup(func() { order = append(order, 1) })
	token.AddCleanup(func() { order = append(order, 2) })
	token.AddCleanup(func() { order = append(order, 3) })

	require.True(t, r.Cancel("t1", "stop"))
	assert.Equal(t, []int{3, 2, 1}, order)

	// Second cancel is a no-op: same observable effect as one.
	assert.False(t, r.Cancel("t1", "stop again"))
	assert.Equal(t, []int{3, 2, 1}, order)
	assert.Equal(t, "stop", token.Reason())
}

func TestCancelRecoversCleanupPanic(t *testing.T) {
	r := NewRegistry(0, 0)
	token := r.Create("t1", nil)

	ran := false
	token.AddCleanup(func() { ran = true })
	token.AddCleanup(func() { panic("bad cleanup") })

	assert.NotPanics(t, func() { r.Cancel("t1", "stop") })
	assert.True(t, ran, "cleanup after the panicking one must still run")
}

func TestCreateReplacesLiveToken(t *testing.T) {
	r := NewRegistry(0, 0)
	first := r.Create("t1", nil)

	cleaned := false
	first.AddCleanup(func() { cleaned = true })

	second := r.Create("t1", nil)
	assert.True(t, first.Cancelled())
	assert.Equal(t, "replaced by new task", first.Reason())
	assert.True(t, cleaned, "replacement awaits the old token's cleanups")
	assert.False(t, second.Cancelled())

	got, ok := r.Get("t1")
	require.True(t, ok)
	assert.Same(t, second, got)
}

func TestGlobalCancelCallbacks(t *testing.T) {
	r := NewRegistry(0, 0)
	r.Create("t1", nil)

	var gotTask, gotReason string
	r.OnCancel(func(taskID, reason string) {
		gotTask, gotReason = taskID, reason
	})

	r.Cancel("t1", "shutdown")
	assert.Equal(t, "t1", gotTask)
	assert.Equal(t, "shutdown", gotReason)
}

func TestScopedLifecycle(t *testing.T) {
	r := NewRegistry(0, 0)

	t.Run("completed on normal return", func(t *testing.T) {
		token := r.Create("ok", nil)
		var during Status
		err := r.Scoped(token, func() error {
			during = token.Status()
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, StatusRunning, during)
		assert.Equal(t, StatusCompleted, token.Status())
	})

	t.Run("failed on error", func(t *testing.T) {
		token := r.Create("bad", nil)
		err := r.Scoped(token, func() error { return errors.New("stage blew up") })
		require.Error(t, err)
		assert.Equal(t, StatusFailed, token.Status())
	})

	t.Run("cancelled status preserved", func(t *testing.T) {
		token := r.Create("cx", nil)
		err := r.Scoped(token, func() error {
			r.Cancel("cx", "mid-run")
			return token.Check("after")
		})
		require.True(t, IsCancelled(err))
		assert.Equal(t, StatusCancelled, token.Status())
	})
}

func TestPauseResume(t *testing.T) {
	r := NewRegistry(0, 0)
	token := r.Create("t1", nil)
	token.setStatus(StatusRunning)

	r.Pause("t1")
	assert.Equal(t, StatusPaused, token.Status())
	r.Resume("t1")
	assert.Equal(t, StatusRunning, token.Status())
}

func TestJanitorSweepsStaleTokens(t *testing.T) {
	r := NewRegistry(time.Millisecond, time.Hour)
	token := r.Create("old", nil)
	token.CreatedAt = time.Now().Add(-time.Minute)
	r.Create("fresh", nil)

	r.sweep()

	_, ok := r.Get("old")
	assert.False(t, ok)
	_, ok = r.Get("fresh")
	assert.True(t, ok)
}

func TestEstimateTokens(t *testing.T) {
	assert.Equal(t, 1, EstimateTokens(""))
	assert.Equal(t, 1, EstimateTokens("abc"))
	assert.Equal(t, 3, EstimateTokens("twelve chars"))
}

func TestBudgetGuardTokens(t *testing.T) {
	g := NewBudgetGuard(0, 3)
	assert.Equal(t, models.StopReasonNone, g.StopReason())
	require.NoError(t, g.Check())

	g.Charge("a very long query that should consume token budget quickly")
	assert.Equal(t, models.StopReasonTokensExceeded, g.StopReason())

	err := g.Check()
	require.Error(t, err)
	var be *BudgetError
	require.ErrorAs(t, err, &be)
	assert.Equal(t, models.StopReasonTokensExceeded, be.Reason)
	assert.True(t, IsBudget(err))
}

func TestBudgetGuardTime(t *testing.T) {
	g := NewBudgetGuard(time.Millisecond, 10000)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, models.StopReasonTimeExceeded, g.StopReason())
}

func TestBudgetGuardUnbounded(t *testing.T) {
	g := NewBudgetGuard(0, 0)
	g.Charge("anything at all, at any length, costs nothing against a zero budget")
	assert.Equal(t, models.StopReasonNone, g.StopReason())
}
