package research

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/delverhq/delver/pkg/config"
	"github.com/delverhq/delver/pkg/control"
	"github.com/delverhq/delver/pkg/events"
	"github.com/delverhq/delver/pkg/llm"
	"github.com/delverhq/delver/pkg/models"
)

func engineConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.LLMProviders = map[string]*config.LLMProviderConfig{
		"openai": {Type: config.LLMProviderOpenAI, APIKey: "test-key-1234567890"},
	}
	cfg.DefaultLLMProvider = "openai"
	return cfg
}

// stubRun returns fixed artifacts and records that it ran.
func stubRun(artifacts *models.RunArtifacts, err error, ran *bool) func(*ModelSet) RunFunc {
	return func(*ModelSet) RunFunc {
		return func(context.Context, *control.Token, *control.BudgetGuard, string, string, []string) (*models.RunArtifacts, error) {
			if ran != nil {
				*ran = true
			}
			return artifacts, err
		}
	}
}

func newTestEngine(t *testing.T, cfg *config.Config, opts ...Option) (*Engine, *events.Bus) {
	t.Helper()
	bus := events.NewBus()
	reg := control.NewRegistry(0, 0)
	e := NewEngine(cfg, bus, llm.NewRouter(cfg), &fakeSearcher{}, nil, reg, opts...)
	return e, bus
}

func TestResolveModePrecedence(t *testing.T) {
	cfg := engineConfig()
	e, _ := newTestEngine(t, cfg)

	t.Run("runtime override wins", func(t *testing.T) {
		cfg.Settings.DeepsearchMode = config.ModeTree
		got := e.ResolveMode(&models.Overrides{DeepsearchMode: models.ModeLinear})
		assert.Equal(t, models.ModeLinear, got)
	})

	t.Run("settings mode next", func(t *testing.T) {
		cfg.Settings.DeepsearchMode = config.ModeLinear
		assert.Equal(t, models.ModeLinear, e.ResolveMode(nil))
	})

	t.Run("auto follows tree_exploration_enabled", func(t *testing.T) {
		cfg.Settings.DeepsearchMode = config.ModeAuto
		enabled := true
		cfg.Settings.TreeExplorationEnabled = &enabled
		assert.Equal(t, models.ModeTree, e.ResolveMode(nil))

		disabled := false
		cfg.Settings.TreeExplorationEnabled = &disabled
		assert.Equal(t, models.ModeLinear, e.ResolveMode(nil))
	})
}

// A runtime linear override on a tree-mode configuration runs the
// linear runner and never touches the tree runner.
func TestRunModeOverride(t *testing.T) {
	cfg := engineConfig()
	cfg.Settings.DeepsearchMode = config.ModeTree

	var treeRan, linearRan bool
	e, _ := newTestEngine(t, cfg,
		WithTreeRun(stubRun(&models.RunArtifacts{Mode: models.ModeTree, IsComplete: true}, nil, &treeRan)),
		WithLinearRun(stubRun(&models.RunArtifacts{Mode: models.ModeLinear, IsComplete: true}, nil, &linearRan)),
	)

	artifacts := e.Run(context.Background(), &models.RunRequest{
		Topic:     "topic",
		SessionID: "m1",
		Overrides: &models.Overrides{DeepsearchMode: models.ModeLinear},
	})

	assert.False(t, treeRan)
	assert.True(t, linearRan)
	assert.Equal(t, models.ModeLinear, artifacts.Mode)
	assert.True(t, artifacts.EventsEmitted)
}

// Tree failure falls back to linear and the run still completes.
func TestRunTreeFallsBackToLinear(t *testing.T) {
	cfg := engineConfig()
	cfg.Settings.DeepsearchMode = config.ModeTree

	var linearRan bool
	e, bus := newTestEngine(t, cfg,
		WithTreeRun(stubRun(nil, errors.New("tree exploded"), nil)),
		WithLinearRun(stubRun(&models.RunArtifacts{Mode: models.ModeLinear, IsComplete: true, FinalReport: "linear report"}, nil, &linearRan)),
	)

	artifacts := e.Run(context.Background(), &models.RunRequest{Topic: "topic", SessionID: "m2"})

	assert.True(t, linearRan)
	assert.Equal(t, models.ModeLinear, artifacts.Mode)
	assert.Equal(t, "linear report", artifacts.FinalReport)

	evs := bus.Buffered("m2", 0)
	require.NotEmpty(t, evs)
	assert.Equal(t, models.EventDone, evs[len(evs)-1].Type)
}

// Cancellation folds into the artifact bundle with the fixed report and
// still emits the done event.
func TestRunCancelledArtifacts(t *testing.T) {
	cfg := engineConfig()
	cfg.Settings.DeepsearchMode = config.ModeLinear

	cancelErr := &control.CancelledError{TaskID: "m3", Reason: "user"}
	e, bus := newTestEngine(t, cfg,
		WithLinearRun(stubRun(nil, cancelErr, nil)),
	)

	artifacts := e.Run(context.Background(), &models.RunRequest{Topic: "topic", SessionID: "m3"})

	assert.True(t, artifacts.IsCancelled)
	assert.True(t, artifacts.IsComplete)
	assert.Equal(t, cancelledReport, artifacts.FinalReport)
	assert.NotEmpty(t, artifacts.Errors)
	assert.True(t, artifacts.EventsEmitted)

	evs := bus.Buffered("m3", 0)
	require.NotEmpty(t, evs)
	last := evs[len(evs)-1]
	assert.Equal(t, models.EventDone, last.Type)
	assert.Equal(t, true, last.Data["is_cancelled"])
}

// save_data writes the run record and reports its path.
func TestRunSavesRecord(t *testing.T) {
	cfg := engineConfig()
	cfg.Settings.DeepsearchMode = config.ModeLinear
	cfg.Settings.SaveData = true
	cfg.Settings.SaveDir = t.TempDir()

	e, _ := newTestEngine(t, cfg,
		WithLinearRun(stubRun(&models.RunArtifacts{
			Mode:        models.ModeLinear,
			IsComplete:  true,
			FinalReport: "saved report",
			Queries:     []string{"q1"},
			Epoch:       1,
		}, nil, nil)),
	)

	artifacts := e.Run(context.Background(), &models.RunRequest{Topic: "Saved Topic!", SessionID: "m4"})
	require.NotEmpty(t, artifacts.SavedPath)

	data, err := os.ReadFile(artifacts.SavedPath)
	require.NoError(t, err)
	var record models.RunRecord
	require.NoError(t, json.Unmarshal(data, &record))
	assert.Equal(t, "Saved Topic!", record.Topic)
	assert.Equal(t, "saved report", record.FinalReport)
	assert.Equal(t, []string{"q1"}, record.Queries)
	assert.Equal(t, models.ModeLinear, record.Mode)
}
