package e2e

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/delverhq/delver/pkg/models"
	"github.com/delverhq/delver/pkg/search"
)

// ────────────────────────────────────────────────────────────
// Freshness warning tests.
//
// A time-sensitive topic backed mostly by stale sources gets the
// low-freshness warning on the quality stream and the caution note
// appended to the report. The warning is suppressed when fewer than
// min_known results carry dates at all.
// ────────────────────────────────────────────────────────────

func staleResults() []models.SearchResult {
	return []models.SearchResult{
		{Title: "old survey", URL: "https://example.com/survey", Snippet: "a broad overview", Score: 0.9, PublishedDate: "2020-03-01"},
		{Title: "old benchmark", URL: "https://example.com/benchmark", Snippet: "numbers from years ago", Score: 0.8, PublishedDate: "2019-11-20"},
		{Title: "old analysis", URL: "https://example.com/analysis", Snippet: "dated conclusions", Score: 0.7, PublishedDate: "2021-06-15"},
	}
}

func TestE2E_StaleSourcesRaiseFreshnessWarning(t *testing.T) {
	cfg := baseConfig()
	cfg.Settings.FreshnessWarningMinKnown = 2
	cfg.Settings.FreshnessWarningMinRatio = 0.5

	provider := newStubProvider("tavily", staleResults()...)
	a := newApp(t, cfg, linearModels("dated findings report"), []search.Provider{provider})

	sessionID := a.startRun(map[string]any{"topic": "latest large language model releases 2026"})
	st := a.waitDone(sessionID)

	assert.Equal(t, "completed", st.Status)
	require.NotNil(t, st.Artifacts)
	require.NotNil(t, st.Artifacts.QualitySummary)
	assert.NotEmpty(t, st.Artifacts.QualitySummary.FreshnessWarning)
	assert.True(t, st.Artifacts.QualitySummary.TimeSensitive)
	assert.True(t, strings.Contains(st.Artifacts.FinalReport, "新鲜来源占比较低"))

	quality := a.eventsOfKind(sessionID, models.EventQualityUpdate)
	require.NotEmpty(t, quality)
	last := quality[len(quality)-1]
	warning, _ := last.Data["freshness_warning"].(string)
	assert.NotEmpty(t, warning)
	assert.Equal(t, true, last.Data["time_sensitive_query"])
}

func TestE2E_FewDatedSourcesSuppressWarning(t *testing.T) {
	cfg := baseConfig()
	cfg.Settings.FreshnessWarningMinKnown = 10
	cfg.Settings.FreshnessWarningMinRatio = 0.5

	provider := newStubProvider("tavily", staleResults()...)
	a := newApp(t, cfg, linearModels("sparse evidence report"), []search.Provider{provider})

	sessionID := a.startRun(map[string]any{"topic": "latest large language model releases 2026"})
	st := a.waitDone(sessionID)

	assert.Equal(t, "completed", st.Status)
	require.NotNil(t, st.Artifacts)
	require.NotNil(t, st.Artifacts.QualitySummary)
	assert.True(t, st.Artifacts.QualitySummary.TimeSensitive)
	assert.Empty(t, st.Artifacts.QualitySummary.FreshnessWarning)
	assert.False(t, strings.Contains(st.Artifacts.FinalReport, "新鲜来源占比较低"))
}
