package research

import (
	"context"

	"github.com/delverhq/delver/pkg/config"
	"github.com/delverhq/delver/pkg/crawl"
	"github.com/delverhq/delver/pkg/events"
	"github.com/delverhq/delver/pkg/llm"
	"github.com/delverhq/delver/pkg/models"
)

// Searcher is the slice of the search orchestrator the runners need.
// It never fails; exhaustion yields nil.
type Searcher interface {
	Search(ctx context.Context, query string, maxResults int, profile []string) []models.SearchResult
}

// ModelSet holds the chat models a run resolved for its tasks.
type ModelSet struct {
	Planner    llm.ChatModel
	Researcher llm.ChatModel
	Writer     llm.ChatModel
	Critic     llm.ChatModel
	Gap        llm.ChatModel
}

// runDeps bundles the collaborators shared by both runners.
type runDeps struct {
	bus      *events.Bus
	searcher Searcher
	crawler  crawl.Crawler
	settings *config.Settings
	ms       *ModelSet
}

// eventResultsLimit clamps the per-event source preview count to [1,20].
func (d *runDeps) eventResultsLimit() int {
	limit := d.settings.EventResultsLimit
	if limit < 1 {
		limit = 5
	}
	if limit > 20 {
		limit = 20
	}
	return limit
}

// providerLabel names the provider for a search event: the single
// provider serving all results, "multi" for a mix, "unknown" when
// nothing is tagged.
func providerLabel(results []models.SearchResult) string {
	var label string
	for _, r := range results {
		if r.Provider == "" {
			continue
		}
		if label == "" {
			label = r.Provider
			continue
		}
		if r.Provider != label {
			return "multi"
		}
	}
	if label == "" {
		return "unknown"
	}
	return label
}

// providerBreakdown counts results per provider.
func providerBreakdown(results []models.SearchResult) map[string]int {
	out := make(map[string]int)
	for _, r := range results {
		name := r.Provider
		if name == "" {
			name = "unknown"
		}
		out[name]++
	}
	return out
}

// emitSearch publishes one executed query with compact previews.
func (d *runDeps) emitSearch(sessionID string, run models.SearchRun) {
	d.bus.Emit(sessionID, models.EventSearch, map[string]any{
		"query":              run.Query,
		"provider":           providerLabel(run.Results),
		"provider_breakdown": providerBreakdown(run.Results),
		"results":            models.Previews(run.Results, d.eventResultsLimit()),
		"count":              len(run.Results),
		"epoch":              run.Epoch,
		"mode":               run.Mode,
	})
}

// emitQuality publishes the quality snapshot for one stage.
func (d *runDeps) emitQuality(sessionID string, epoch int, stage string, diag *models.QualityDiagnostics) {
	d.bus.Emit(sessionID, models.EventQualityUpdate, map[string]any{
		"epoch":                    epoch,
		"stage":                    stage,
		"query_coverage":           diag.QueryCoverage,
		"query_coverage_score":     diag.QueryCoverage.Score,
		"query_dimensions_covered": diag.QueryCoverage.CoveredDimensions,
		"query_dimensions_missing": diag.QueryCoverage.MissingDimensions,
		"query_dimension_hits":     diag.QueryCoverage.DimensionHits,
		"freshness_summary":        diag.Freshness,
		"time_sensitive_query":     diag.TimeSensitive,
		"freshness_warning":        diag.FreshnessWarning,
	})
}
