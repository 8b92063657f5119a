package research

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/delverhq/delver/pkg/config"
	"github.com/delverhq/delver/pkg/control"
	"github.com/delverhq/delver/pkg/crawl"
	"github.com/delverhq/delver/pkg/events"
	"github.com/delverhq/delver/pkg/llm"
	"github.com/delverhq/delver/pkg/models"
	"github.com/delverhq/delver/pkg/search"
)

// cancelledReport is the final_report value of a cancelled run.
const cancelledReport = "task cancelled"

// RunFunc is the shape both runners share; the runner factories on
// Engine are swappable through Options.
type RunFunc func(ctx context.Context, token *control.Token, guard *control.BudgetGuard, sessionID, topic string, profile []string) (*models.RunArtifacts, error)

// Engine is the auto runner: it resolves models, derives the provider
// profile, selects linear or tree mode, and drives one research run
// end to end, emitting all lifecycle events on the session stream.
type Engine struct {
	cfg      *config.Config
	bus      *events.Bus
	router   *llm.Router
	searcher Searcher
	crawler  crawl.Crawler
	registry *control.Registry

	treeRun   func(ms *ModelSet) RunFunc
	linearRun func(ms *ModelSet) RunFunc
}

// Option customizes an Engine, mainly for tests.
type Option func(*Engine)

// WithTreeRun replaces the tree runner factory.
func WithTreeRun(f func(ms *ModelSet) RunFunc) Option {
	return func(e *Engine) { e.treeRun = f }
}

// WithLinearRun replaces the linear runner factory.
func WithLinearRun(f func(ms *ModelSet) RunFunc) Option {
	return func(e *Engine) { e.linearRun = f }
}

// NewEngine wires the auto runner over its collaborators.
func NewEngine(cfg *config.Config, bus *events.Bus, router *llm.Router, searcher Searcher, crawler crawl.Crawler, registry *control.Registry, opts ...Option) *Engine {
	e := &Engine{
		cfg:      cfg,
		bus:      bus,
		router:   router,
		searcher: searcher,
		crawler:  crawler,
		registry: registry,
	}
	e.treeRun = func(ms *ModelSet) RunFunc {
		return NewTreeExplorer(bus, e.searcher, crawler, cfg.Settings, ms).Run
	}
	e.linearRun = func(ms *ModelSet) RunFunc {
		gap := NewGapAnalyzer(ms.Gap, 0)
		return NewLinearRunner(bus, e.searcher, crawler, cfg.Settings, ms, gap).Run
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ResolveMode applies the mode precedence: runtime override, settings
// mode, tree_exploration_enabled. Auto resolves to tree when enabled.
func (e *Engine) ResolveMode(overrides *models.Overrides) string {
	mode := ""
	if overrides != nil {
		mode = overrides.DeepsearchMode
	}
	if mode == "" {
		mode = e.cfg.Settings.DeepsearchMode
	}
	switch mode {
	case models.ModeTree, models.ModeLinear:
		return mode
	}
	if e.cfg.Settings.TreeEnabled() {
		return models.ModeTree
	}
	return models.ModeLinear
}

// Run executes one research run for the request. It never returns an
// error to the caller: cancellation and failures are folded into the
// artifact bundle, and the terminal done event is always emitted.
func (e *Engine) Run(ctx context.Context, req *models.RunRequest) *models.RunArtifacts {
	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	s := e.cfg.Settings

	token := e.registry.Create(sessionID, map[string]any{"topic": req.Topic})
	guard := control.NewBudgetGuard(s.MaxDuration(), s.MaxTokens)
	profile := search.DeriveProfile(req.Domain, req.SuggestedSources)
	mode := e.ResolveMode(req.Overrides)

	slog.Info("Starting research run",
		"session_id", sessionID, "topic", req.Topic, "mode", mode, "profile", profile)

	ms, err := e.buildModels(req.Overrides)
	if err != nil {
		slog.Error("Model resolution failed", "session_id", sessionID, "error", err)
		artifacts := &models.RunArtifacts{
			Mode:        mode,
			FinalReport: emptyReportNotice,
			Errors:      []string{err.Error()},
		}
		return e.finish(sessionID, req.Topic, artifacts)
	}

	var artifacts *models.RunArtifacts
	runErr := e.registry.Scoped(token, func() error {
		var err error
		artifacts, err = e.runMode(ctx, token, guard, sessionID, req.Topic, profile, mode, ms)
		return err
	})

	if runErr != nil {
		if control.IsCancelled(runErr) {
			artifacts = &models.RunArtifacts{
				Mode:        mode,
				FinalReport: cancelledReport,
				IsCancelled: true,
				IsComplete:  true,
				Errors:      []string{runErr.Error()},
			}
		} else {
			artifacts = &models.RunArtifacts{
				Mode:        mode,
				FinalReport: emptyReportNotice,
				Errors:      []string{runErr.Error()},
			}
		}
	}
	return e.finish(sessionID, req.Topic, artifacts)
}

// runMode dispatches to the selected runner, falling back to linear
// when the tree run fails for any reason other than cancellation.
func (e *Engine) runMode(ctx context.Context, token *control.Token, guard *control.BudgetGuard, sessionID, topic string, profile []string, mode string, ms *ModelSet) (*models.RunArtifacts, error) {
	if mode == models.ModeTree {
		artifacts, err := e.treeRun(ms)(ctx, token, guard, sessionID, topic, profile)
		if err == nil {
			return artifacts, nil
		}
		if control.IsCancelled(err) {
			return nil, err
		}
		slog.Warn("Tree exploration failed, falling back to linear", "session_id", sessionID, "error", err)
	}
	return e.linearRun(ms)(ctx, token, guard, sessionID, topic, profile)
}

// buildModels resolves the chat model per task through the router.
func (e *Engine) buildModels(overrides *models.Overrides) (*ModelSet, error) {
	planner, err := e.router.BuildModel(llm.TaskPlanning, overrides, nil)
	if err != nil {
		return nil, err
	}
	researcher, err := e.router.BuildModel(llm.TaskResearch, overrides, nil)
	if err != nil {
		return nil, err
	}
	writer, err := e.router.BuildModel(llm.TaskWriting, overrides, nil)
	if err != nil {
		return nil, err
	}
	critic, err := e.router.BuildModel(llm.TaskCritique, overrides, nil)
	if err != nil {
		return nil, err
	}
	gap, err := e.router.BuildModel(llm.TaskGapAnalysis, overrides, nil)
	if err != nil {
		return nil, err
	}
	return &ModelSet{Planner: planner, Researcher: researcher, Writer: writer, Critic: critic, Gap: gap}, nil
}

// finish stamps the artifact bundle, persists the run record when
// enabled, and emits the terminal done event.
func (e *Engine) finish(sessionID, topic string, artifacts *models.RunArtifacts) *models.RunArtifacts {
	s := e.cfg.Settings
	artifacts.EventsEmitted = true

	if s.SaveData && !artifacts.IsCancelled {
		record := &models.RunRecord{
			Topic:       topic,
			Queries:     artifacts.Queries,
			Summaries:   artifacts.Summaries,
			SearchRuns:  artifacts.SearchRuns,
			FinalReport: artifacts.FinalReport,
			Epoch:       artifacts.Epoch,
			Mode:        artifacts.Mode,
		}
		now := time.Now()
		path, err := SaveRunRecord(s.SaveDir, record, now)
		if err != nil {
			slog.Warn("Run record save failed", "session_id", sessionID, "error", err)
		} else {
			artifacts.SavedPath = path
		}
		if s.SaveFormat == config.SaveFormatDocx && s.DocxTemplate != "" {
			if _, err := ExportReportDocx(s.DocxTemplate, s.SaveDir, topic, artifacts.FinalReport, now); err != nil {
				slog.Warn("Docx export failed", "session_id", sessionID, "error", err)
			}
		}
	}

	doneData := map[string]any{
		"mode":         artifacts.Mode,
		"is_complete":  artifacts.IsComplete,
		"is_cancelled": artifacts.IsCancelled,
	}
	if artifacts.BudgetStopReason != "" && artifacts.BudgetStopReason != models.StopReasonNone {
		doneData["budget_stop_reason"] = artifacts.BudgetStopReason
		if artifacts.UserMessage != "" {
			doneData["user_message"] = artifacts.UserMessage
		}
	}
	e.bus.Emit(sessionID, models.EventDone, doneData)
	return artifacts
}
