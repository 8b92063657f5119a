package research

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/delverhq/delver/pkg/config"
	"github.com/delverhq/delver/pkg/control"
	"github.com/delverhq/delver/pkg/crawl"
	"github.com/delverhq/delver/pkg/events"
	"github.com/delverhq/delver/pkg/llm"
	"github.com/delverhq/delver/pkg/models"
)

// emptyReportNotice is the fixed report produced when every epoch came
// back with zero search results.
const emptyReportNotice = "No usable search results were found for this topic. " +
	"The research run produced no report; try rephrasing the topic or enabling more search providers."

// hydrateThreshold is the body length below which the crawler fetches
// the page for more text.
const hydrateThreshold = 200

// LinearRunner drives epoch-based research: generate queries, search,
// select and read sources, judge sufficiency, repeat until enough or
// budgets exhaust, then write the report.
type LinearRunner struct {
	deps *runDeps
	gap  *GapAnalyzer
}

// NewLinearRunner wires a linear runner.
func NewLinearRunner(bus *events.Bus, searcher Searcher, crawler crawl.Crawler, settings *config.Settings, ms *ModelSet, gap *GapAnalyzer) *LinearRunner {
	return &LinearRunner{
		deps: &runDeps{bus: bus, searcher: searcher, crawler: crawler, settings: settings, ms: ms},
		gap:  gap,
	}
}

// linearState accumulates across epochs.
type linearState struct {
	queries       []string
	searchRuns    []models.SearchRun
	notes         []string
	sources       []models.SearchResult
	selectedURLs  map[string]struct{}
	missingTopics []string
	epoch         int
}

// Run executes the linear loop for one session. Only cancellation
// propagates as an error; budget exhaustion returns best-effort
// artifacts with a stop reason.
func (r *LinearRunner) Run(ctx context.Context, token *control.Token, guard *control.BudgetGuard, sessionID, topic string, profile []string) (*models.RunArtifacts, error) {
	s := r.deps.settings
	st := &linearState{selectedURLs: make(map[string]struct{})}

	maxEpochs := s.MaxEpochs
	if maxEpochs < 1 {
		maxEpochs = 1
	}

	stopReason := models.StopReasonNone
	for epoch := 0; epoch < maxEpochs; epoch++ {
		st.epoch = epoch
		if err := token.Check(fmt.Sprintf("epoch_%d_start", epoch)); err != nil {
			return nil, err
		}
		if err := guard.Check(); err != nil {
			stopReason = guard.StopReason()
			slog.Info("Budget exhausted before epoch", "session_id", sessionID, "epoch", epoch, "reason", stopReason)
			break
		}

		enough, reason, err := r.runEpoch(ctx, token, guard, sessionID, topic, profile, st)
		if err != nil {
			if control.IsCancelled(err) {
				return nil, err
			}
			slog.Error("Epoch failed, continuing", "session_id", sessionID, "epoch", epoch, "error", err)
			continue
		}
		if reason != models.StopReasonNone {
			stopReason = reason
			break
		}
		if enough {
			break
		}
	}

	if err := token.Check("write_report"); err != nil {
		return nil, err
	}
	report := r.writeReport(ctx, topic, st)
	guard.Charge(report)

	diag := BuildDiagnostics(topic, st.queries, st.searchRuns, s)
	if diag.FreshnessWarning != "" {
		report += "\n\n" + FreshnessNote
	}

	return &models.RunArtifacts{
		Mode:             models.ModeLinear,
		Queries:          st.queries,
		QualitySummary:   diag,
		QueryCoverage:    diag.QueryCoverage,
		FreshnessSummary: diag.Freshness,
		FinalReport:      report,
		Summaries:        st.notes,
		SearchRuns:       st.searchRuns,
		Epoch:            st.epoch,
		BudgetStopReason: stopReason,
		UserMessage:      models.BudgetStopMessage(stopReason),
		IsComplete:       true,
	}, nil
}

// runEpoch runs one epoch. The returned stop reason is non-none when a
// budget tripped mid-epoch.
func (r *LinearRunner) runEpoch(ctx context.Context, token *control.Token, guard *control.BudgetGuard, sessionID, topic string, profile []string, st *linearState) (enough bool, stopReason string, err error) {
	d := r.deps
	s := d.settings
	nodeID := uuid.NewString()

	d.bus.Emit(sessionID, models.EventResearchNodeStart, map[string]any{
		"node_id": nodeID,
		"topic":   topic,
		"depth":   0,
		"epoch":   st.epoch,
	})

	queries := r.generateQueries(ctx, topic, st)
	st.queries = append(st.queries, queries...)
	guard.Charge(queries...)

	var epochResults []models.SearchResult
	for _, query := range queries {
		if err := token.Check("search_" + query); err != nil {
			return false, models.StopReasonNone, err
		}
		if err := guard.Check(); err != nil {
			return false, guard.StopReason(), nil
		}

		results := d.searcher.Search(ctx, query, s.ResultsPerQuery, profile)
		for _, res := range results {
			guard.ChargeResult(res.Title, res.Snippet)
		}
		run := models.SearchRun{Query: query, Results: results, Epoch: st.epoch, Mode: models.ModeLinear}
		st.searchRuns = append(st.searchRuns, run)
		d.emitSearch(sessionID, run)
		epochResults = append(epochResults, results...)
	}

	epochResults = models.DedupeResults(epochResults)
	if len(epochResults) == 0 {
		diag := BuildDiagnostics(topic, st.queries, st.searchRuns, s)
		d.emitQuality(sessionID, st.epoch, "epoch_end", diag)
		d.bus.Emit(sessionID, models.EventResearchNodeComplete, map[string]any{
			"node_id": nodeID,
			"summary": "",
			"sources": []models.SourcePreview{},
			"quality": diag,
			"epoch":   st.epoch,
		})
		return false, models.StopReasonNone, nil
	}

	if err := token.Check("select_url"); err != nil {
		return false, models.StopReasonNone, err
	}
	picked := r.selectResult(ctx, topic, queries, epochResults, st.selectedURLs)
	st.selectedURLs[models.NormalizeURL(picked.URL)] = struct{}{}
	st.sources = append(st.sources, epochResults...)

	body := r.hydrate(ctx, picked)
	guard.Charge(body)

	if err := token.Check("summarize"); err != nil {
		return false, models.StopReasonNone, err
	}
	enough, note := r.summarize(ctx, topic, st.notes, picked, body)
	if note != "" {
		st.notes = append(st.notes, note)
		guard.Charge(note)
	}

	if !enough && st.epoch < s.MaxEpochs-1 && s.GapAnalysisEnabled() && r.gap != nil {
		analysis := r.gap.Analyze(ctx, sessionID, topic, st.queries, strings.Join(st.notes, "\n"))
		st.missingTopics = TargetedQueries(analysis, 3)
		if analysis.IsSufficient {
			enough = true
		}
	}

	diag := BuildDiagnostics(topic, st.queries, st.searchRuns, s)
	d.emitQuality(sessionID, st.epoch, "epoch_end", diag)
	d.bus.Emit(sessionID, models.EventResearchNodeComplete, map[string]any{
		"node_id": nodeID,
		"summary": note,
		"sources": models.Previews(epochResults, d.eventResultsLimit()),
		"quality": diag,
		"epoch":   st.epoch,
	})
	return enough, models.StopReasonNone, nil
}

// generateQueries asks the planner for the epoch's queries and tops the
// set up to query_num with dimension backfill. Epoch zero always
// includes the topic itself.
func (r *LinearRunner) generateQueries(ctx context.Context, topic string, st *linearState) []string {
	s := r.deps.settings
	n := s.QueryNum
	if n < 1 {
		n = 1
	}

	var generated []string
	response, err := r.deps.ms.Planner.Complete(ctx, []llm.Message{
		llm.System(queryGenSystem),
		llm.User(queryGenPrompt(topic, n, st.epoch, st.queries, st.missingTopics)),
	})
	if err != nil {
		slog.Warn("Query generation failed, falling back to templates", "error", err)
	} else {
		generated = ParseList(response)
	}

	if st.epoch == 0 {
		generated = append([]string{topic}, generated...)
	}
	return BackfillDiverse(topic, generated, st.queries, n)
}

// selectResult asks the critic which result to read next, excluding
// already-selected URLs. Model failure or a bad answer falls back to
// the top-scored candidate.
func (r *LinearRunner) selectResult(ctx context.Context, topic string, queries []string, results []models.SearchResult, selected map[string]struct{}) models.SearchResult {
	candidates := make([]models.SearchResult, 0, len(results))
	for _, res := range results {
		if _, done := selected[models.NormalizeURL(res.URL)]; !done {
			candidates = append(candidates, res)
		}
	}
	if len(candidates) == 0 {
		candidates = results
	}

	response, err := r.deps.ms.Critic.Complete(ctx, []llm.Message{
		llm.System(selectURLSystem),
		llm.User(selectURLPrompt(topic, strings.Join(queries, "; "), FormatResults(candidates))),
	})
	if err == nil {
		if idx, perr := strconv.Atoi(strings.TrimSpace(response)); perr == nil && idx >= 1 && idx <= len(candidates) {
			return candidates[idx-1]
		}
	} else {
		slog.Warn("URL selection model call failed, using top score", "error", err)
	}
	return topScored(candidates)
}

func topScored(results []models.SearchResult) models.SearchResult {
	best := results[0]
	for _, r := range results[1:] {
		if r.Score > best.Score {
			best = r
		}
	}
	return best
}

// hydrate returns the text to summarize for a result, fetching the page
// when the snippet is too short and the crawler is enabled.
func (r *LinearRunner) hydrate(ctx context.Context, res models.SearchResult) string {
	body := res.RawExcerpt
	if body == "" {
		body = res.Snippet
	}
	if len(body) >= hydrateThreshold || !r.deps.settings.EnableCrawler || r.deps.crawler == nil {
		return body
	}
	fetched, err := r.deps.crawler.Fetch(ctx, res.URL)
	if err != nil {
		slog.Warn("Crawler fetch failed", "url", res.URL, "error", err)
		return body
	}
	return fetched
}

// summarize runs the critic over the new material and parses the
// 回答/总结 protocol.
func (r *LinearRunner) summarize(ctx context.Context, topic string, notes []string, res models.SearchResult, body string) (enough bool, note string) {
	material := fmt.Sprintf("%s\n%s\n%s", res.Title, res.URL, body)
	response, err := r.deps.ms.Critic.Complete(ctx, []llm.Message{
		llm.System(summarizeSystem),
		llm.User(summarizePrompt(topic, notes, material)),
	})
	if err != nil {
		slog.Warn("Summary model call failed", "error", err)
		return false, trimTo(body, 500)
	}
	return ParseEnough(response), ExtractSummary(response)
}

// writeReport asks the writer for the final report over the accumulated
// notes. No notes at all degrades to the fixed notice.
func (r *LinearRunner) writeReport(ctx context.Context, topic string, st *linearState) string {
	if len(st.notes) == 0 && len(st.sources) == 0 {
		return emptyReportNotice
	}
	deduped := models.DedupeResults(st.sources)
	if len(deduped) > 10 {
		deduped = deduped[:10]
	}
	sources := FormatResults(deduped)
	report, err := r.deps.ms.Writer.Complete(ctx, []llm.Message{
		llm.System(reportSystem),
		llm.User(reportPrompt(topic, st.notes, sources)),
	})
	if err != nil {
		slog.Error("Report writing failed, returning notes", "error", err)
		return strings.Join(st.notes, "\n\n")
	}
	return report
}
