package research

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/delverhq/delver/pkg/config"
	"github.com/delverhq/delver/pkg/control"
	"github.com/delverhq/delver/pkg/crawl"
	"github.com/delverhq/delver/pkg/events"
	"github.com/delverhq/delver/pkg/llm"
	"github.com/delverhq/delver/pkg/models"
)

// subtopic is the planner's decomposition item.
type subtopic struct {
	Topic     string  `json:"topic"`
	Relevance float64 `json:"relevance"`
}

// TreeExplorer drives hierarchical research: explore the root, split it
// into subtopics, explore first-level branches in parallel under a
// semaphore, recurse within branches, then merge everything into one
// report.
type TreeExplorer struct {
	deps *runDeps
}

// NewTreeExplorer wires a tree explorer.
func NewTreeExplorer(bus *events.Bus, searcher Searcher, crawler crawl.Crawler, settings *config.Settings, ms *ModelSet) *TreeExplorer {
	return &TreeExplorer{
		deps: &runDeps{bus: bus, searcher: searcher, crawler: crawler, settings: settings, ms: ms},
	}
}

// Run explores the topic as a tree. A cancellation propagates; any
// other failure of the run as a whole is returned so the caller can
// fall back to linear mode. Individual branch failures only mark their
// node failed.
func (e *TreeExplorer) Run(ctx context.Context, token *control.Token, guard *control.BudgetGuard, sessionID, topic string, profile []string) (*models.RunArtifacts, error) {
	s := e.deps.settings
	tree := NewTree(s.TreeMaxDepth, s.TreeMaxBranches)
	root := tree.CreateRoot(topic)
	rootScope := NewBranchScope()

	if err := token.Check("tree_root"); err != nil {
		return nil, err
	}
	if err := e.exploreNode(ctx, token, guard, tree, root.ID, sessionID, profile, rootScope); err != nil {
		return nil, fmt.Errorf("explore root: %w", err)
	}

	stopReason := models.StopReasonNone
	if err := guard.Check(); err != nil {
		stopReason = guard.StopReason()
	} else {
		children := e.decompose(ctx, tree, root.ID, topic, s.TreeMaxBranches, rootScope)
		if err := e.exploreBranches(ctx, token, guard, tree, sessionID, profile, rootScope, children); err != nil {
			return nil, err
		}
		if err := guard.Check(); err != nil {
			stopReason = guard.StopReason()
		}
	}

	allQueries := tree.AllQueries()
	searchRuns := e.collectRuns(tree)
	diag := BuildDiagnostics(topic, allQueries, searchRuns, s)

	e.deps.bus.Emit(sessionID, models.EventResearchTreeUpdate, map[string]any{
		"tree":    tree.Snapshot(),
		"quality": diag,
	})

	if err := token.Check("tree_merge"); err != nil {
		return nil, err
	}
	report := e.mergeBranches(ctx, topic, tree)
	guard.Charge(report)
	if diag.FreshnessWarning != "" {
		report += "\n\n" + FreshnessNote
	}

	var summaries []string
	for _, node := range tree.CompletedNodes() {
		if node.Summary != "" {
			summaries = append(summaries, node.Summary)
		}
	}

	e.deps.bus.Emit(sessionID, models.EventResearchNodeComplete, map[string]any{
		"node_id": root.ID,
		"summary": report,
		"sources": models.Previews(tree.AllSources(), e.deps.eventResultsLimit()),
		"quality": diag,
	})

	return &models.RunArtifacts{
		Mode:             models.ModeTree,
		Queries:          allQueries,
		ResearchTree:     tree.Snapshot(),
		QualitySummary:   diag,
		QueryCoverage:    diag.QueryCoverage,
		FreshnessSummary: diag.Freshness,
		FinalReport:      report,
		Summaries:        summaries,
		SearchRuns:       searchRuns,
		BudgetStopReason: stopReason,
		UserMessage:      models.BudgetStopMessage(stopReason),
		IsComplete:       true,
	}, nil
}

// exploreBranches runs first-level children concurrently, gated by the
// parallel-branches semaphore, then merges their scopes back into the
// parent in child order.
func (e *TreeExplorer) exploreBranches(ctx context.Context, token *control.Token, guard *control.BudgetGuard, tree *Tree, sessionID string, profile []string, parent *BranchScope, children []*Node) error {
	if len(children) == 0 {
		return nil
	}
	parallel := e.deps.settings.TreeParallelBranches
	if parallel < 1 {
		parallel = 1
	}
	sem := make(chan struct{}, parallel)

	scopes := make([]*BranchScope, len(children))
	var wg sync.WaitGroup
	for i, child := range children {
		scopes[i] = parent.Fork()
		wg.Add(1)
		go func(node *Node, scope *BranchScope) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			e.exploreBranch(ctx, token, guard, tree, node, sessionID, profile, scope)
		}(child, scopes[i])
	}
	wg.Wait()

	if err := token.Check("branches_done"); err != nil {
		return err
	}
	for _, scope := range scopes {
		parent.Merge(scope)
	}
	return nil
}

// exploreBranch explores one node and, below max depth, recurses into a
// narrower decomposition. A failure marks only this node.
func (e *TreeExplorer) exploreBranch(ctx context.Context, token *control.Token, guard *control.BudgetGuard, tree *Tree, node *Node, sessionID string, profile []string, scope *BranchScope) {
	if err := e.exploreNode(ctx, token, guard, tree, node.ID, sessionID, profile, scope); err != nil {
		tree.SetError(node.ID, err.Error())
		slog.Warn("Branch failed, siblings continue", "node_id", node.ID, "topic", node.Topic, "error", err)
		return
	}
	if node.Depth >= tree.maxDepth {
		return
	}
	if guard.Check() != nil {
		return
	}

	branches := min(2, e.deps.settings.TreeMaxBranches)
	children := e.decompose(ctx, tree, node.ID, node.Topic, branches, scope)
	for _, child := range children {
		childScope := scope.Fork()
		e.exploreBranch(ctx, token, guard, tree, child, sessionID, profile, childScope)
		scope.Merge(childScope)
	}
}

// exploreNode runs the per-node pipeline: queries, searches, findings,
// researcher summary.
func (e *TreeExplorer) exploreNode(ctx context.Context, token *control.Token, guard *control.BudgetGuard, tree *Tree, nodeID, sessionID string, profile []string, scope *BranchScope) error {
	node, ok := tree.Get(nodeID)
	if !ok {
		return fmt.Errorf("unknown node %q", nodeID)
	}
	d := e.deps
	s := d.settings

	tree.SetStatus(nodeID, NodeInProgress)
	startData := map[string]any{
		"node_id": nodeID,
		"topic":   node.Topic,
		"depth":   node.Depth,
	}
	if node.ParentID != "" {
		startData["parent_id"] = node.ParentID
	}
	d.bus.Emit(sessionID, models.EventResearchNodeStart, startData)

	queries := e.branchQueries(ctx, node.Topic, scope)
	var (
		findings []models.Finding
		sources  []models.SearchResult
	)
	for _, query := range queries {
		if err := token.Check("node_search_" + query); err != nil {
			return err
		}
		if guard.Check() != nil {
			break
		}
		results := d.searcher.Search(ctx, query, s.ResultsPerQuery, profile)
		now := time.Now().Unix()
		for _, res := range results {
			guard.ChargeResult(res.Title, res.Snippet)
			findings = append(findings, models.Finding{Query: query, Result: res, Timestamp: now})
		}
		run := models.SearchRun{Query: query, Results: results, Mode: models.ModeTree}
		d.emitSearch(sessionID, run)
		sources = append(sources, results...)
	}

	if err := token.Check("node_summary_" + nodeID); err != nil {
		return err
	}
	summary := e.summarizeNode(ctx, node.Topic, sources)
	guard.Charge(summary)

	scope.AddQueries(queries...)
	scope.AddFindings(findings...)
	scope.AddSources(sources...)
	scope.AddNote(summary)

	tree.RecordExploration(nodeID, queries, findings, sources, summary)
	tree.SetStatus(nodeID, NodeCompleted)

	completeData := map[string]any{
		"node_id": nodeID,
		"summary": summary,
		"sources": models.Previews(sources, d.eventResultsLimit()),
	}
	d.bus.Emit(sessionID, models.EventResearchNodeComplete, completeData)
	return nil
}

// branchQueries asks the planner for this node's queries and backfills
// to tree_queries_per_branch, avoiding anything an ancestor searched.
func (e *TreeExplorer) branchQueries(ctx context.Context, topic string, scope *BranchScope) []string {
	n := e.deps.settings.TreeQueriesPerBranch
	if n < 1 {
		n = 1
	}
	known := scope.KnownQueries()

	var generated []string
	response, err := e.deps.ms.Planner.Complete(ctx, []llm.Message{
		llm.System(queryGenSystem),
		llm.User(queryGenPrompt(topic, n, 0, known, nil)),
	})
	if err != nil {
		slog.Warn("Branch query generation failed, falling back to templates", "topic", topic, "error", err)
	} else {
		generated = ParseList(response)
	}
	generated = append([]string{topic}, generated...)
	return BackfillDiverse(topic, generated, known, n)
}

// summarizeNode asks the researcher what the node's material establishes.
func (e *TreeExplorer) summarizeNode(ctx context.Context, topic string, sources []models.SearchResult) string {
	if len(sources) == 0 {
		return ""
	}
	response, err := e.deps.ms.Researcher.Complete(ctx, []llm.Message{
		llm.System(branchSummarySystem),
		llm.User(branchSummaryPrompt(topic, FormatResults(models.DedupeResults(sources)))),
	})
	if err != nil {
		slog.Warn("Node summary failed", "topic", topic, "error", err)
		return ""
	}
	return strings.TrimSpace(response)
}

// decompose asks the planner for subtopics and attaches them as
// children. Attach rejections (caps) are silent per the tree contract.
func (e *TreeExplorer) decompose(ctx context.Context, tree *Tree, parentID, topic string, maxBranches int, scope *BranchScope) []*Node {
	response, err := e.deps.ms.Planner.Complete(ctx, []llm.Message{
		llm.System(decomposeSystem),
		llm.User(decomposePrompt(topic, maxBranches, scope.ParentContext())),
	})
	if err != nil {
		slog.Warn("Decomposition failed", "topic", topic, "error", err)
		return nil
	}

	var subs []subtopic
	if err := ExtractJSONArray(response, &subs); err != nil {
		slog.Warn("Decomposition returned malformed JSON", "topic", topic, "error", err)
		return nil
	}

	var children []*Node
	for _, sub := range subs {
		if len(children) >= maxBranches {
			break
		}
		name := strings.TrimSpace(sub.Topic)
		if name == "" {
			continue
		}
		if child := tree.AddChild(parentID, name, sub.Relevance); child != nil {
			children = append(children, child)
		}
	}
	return children
}

// collectRuns reconstructs search runs from tree findings for the
// freshness summary.
func (e *TreeExplorer) collectRuns(tree *Tree) []models.SearchRun {
	byQuery := make(map[string]*models.SearchRun)
	var order []string
	for _, f := range tree.AllFindings() {
		run, ok := byQuery[f.Query]
		if !ok {
			run = &models.SearchRun{Query: f.Query, Mode: models.ModeTree}
			byQuery[f.Query] = run
			order = append(order, f.Query)
		}
		run.Results = append(run.Results, f.Result)
	}
	runs := make([]models.SearchRun, 0, len(order))
	for _, q := range order {
		runs = append(runs, *byQuery[q])
	}
	return runs
}

// mergeBranches asks the writer to integrate the completed summaries.
// Model failure degrades to the raw merged summary text.
func (e *TreeExplorer) mergeBranches(ctx context.Context, topic string, tree *Tree) string {
	merged := tree.MergedSummary()
	if strings.TrimSpace(merged) == "" {
		return emptyReportNotice
	}
	report, err := e.deps.ms.Writer.Complete(ctx, []llm.Message{
		llm.System(mergeSystem),
		llm.User(mergePrompt(topic, merged)),
	})
	if err != nil {
		slog.Error("Branch merge failed, returning merged summaries", "error", err)
		return merged
	}
	return report
}
