package research

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/delverhq/delver/pkg/config"
	"github.com/delverhq/delver/pkg/models"
)

func TestQueryDimensions(t *testing.T) {
	tests := []struct {
		query string
		want  []string
	}{
		{"golang 1.25 latest release notes", []string{"freshness"}},
		{"kubernetes official documentation", []string{"official"}},
		{"LLM evaluation research paper", []string{"evidence"}},
		{"vector database limitations and risks", []string{"risk"}},
		{"metadata management", nil},
		{"updates to the newest standards", []string{"freshness", "official"}},
		{"how to deploy redis cluster", []string{"implementation"}},
		{"量子计算 最新 研究", []string{"freshness", "evidence"}},
		{"plain topic", nil},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			assert.Equal(t, tt.want, QueryDimensions(tt.query))
		})
	}
}

func TestAnalyzeCoverage(t *testing.T) {
	cov := AnalyzeCoverage([]string{
		"topic latest news",
		"topic official docs",
		"topic research data",
		"topic risks",
		"topic tutorial",
	})
	assert.Equal(t, 1.0, cov.Score)
	assert.Empty(t, cov.MissingDimensions)

	cov = AnalyzeCoverage([]string{"topic latest news"})
	assert.Equal(t, 0.2, cov.Score)
	assert.Equal(t, []string{"official", "evidence", "risk", "implementation"}, cov.MissingDimensions)
	assert.Equal(t, []string{"topic latest news"}, cov.DimensionHits["freshness"])
}

func TestIsTimeSensitive(t *testing.T) {
	assert.True(t, IsTimeSensitive("latest LLM benchmarks"))
	assert.True(t, IsTimeSensitive("election results 2026"))
	assert.True(t, IsTimeSensitive("最新 AI 进展"))
	assert.False(t, IsTimeSensitive("history of the roman empire"))
}

func TestBackfillDiverse(t *testing.T) {
	t.Run("fills missing dimensions", func(t *testing.T) {
		out := BackfillDiverse("solar power", []string{"solar power latest news"}, nil, 4)
		require.Len(t, out, 4)
		assert.Equal(t, "solar power latest news", out[0])
		assert.Contains(t, out, "solar power official documentation")
	})

	t.Run("drops historical duplicates", func(t *testing.T) {
		out := BackfillDiverse("x", []string{"Repeat Me", "keep me"}, []string{"repeat me"}, 2)
		assert.NotContains(t, out, "Repeat Me")
		assert.Contains(t, out, "keep me")
	})

	t.Run("chinese templates for cjk topics", func(t *testing.T) {
		out := BackfillDiverse("量子计算", nil, nil, 2)
		require.NotEmpty(t, out)
		assert.Contains(t, out[0], "量子计算")
		assert.Contains(t, out[0], "最新")
	})
}

func TestParsePublishedDate(t *testing.T) {
	for _, raw := range []string{
		"2026-08-01T10:30:00Z",
		"2026-08-01T10:30:00",
		"2026-08-01",
		"2026/08/01",
		"Aug 1, 2026",
	} {
		_, ok := ParsePublishedDate(raw)
		assert.True(t, ok, raw)
	}
	_, ok := ParsePublishedDate("last tuesday")
	assert.False(t, ok)
	_, ok = ParsePublishedDate("")
	assert.False(t, ok)
}

func runsWithDates(now time.Time, dates ...string) []models.SearchRun {
	results := make([]models.SearchResult, 0, len(dates))
	for i, d := range dates {
		results = append(results, models.SearchResult{
			URL:           "https://example.com/" + string(rune('a'+i)),
			PublishedDate: d,
		})
	}
	return []models.SearchRun{{Query: "q", Results: results}}
}

func TestSummarizeFreshnessBuckets(t *testing.T) {
	now := time.Date(2026, 8, 26, 0, 0, 0, 0, time.UTC)
	runs := runsWithDates(now,
		now.AddDate(0, 0, -3).Format("2006-01-02"),   // fresh7 and fresh30
		now.AddDate(0, 0, -20).Format("2006-01-02"),  // fresh30
		now.AddDate(0, 0, -200).Format("2006-01-02"), // stale180
		"",                                           // unknown
	)
	s := summarizeFreshnessAt(runs, now)
	assert.Equal(t, 4, s.Total)
	assert.Equal(t, 3, s.Known)
	assert.Equal(t, 1, s.Unknown)
	assert.Equal(t, 1, s.Fresh7)
	assert.Equal(t, 2, s.Fresh30)
	assert.Equal(t, 1, s.Stale180)
	assert.InDelta(t, 2.0/3.0, s.Fresh30Ratio, 1e-9)
	assert.InDelta(t, 20, s.MedianAgeDays, 0.5)
}

// A time-sensitive topic with mostly stale dated sources gets the
// low-freshness warning.
func TestFreshnessWarningFires(t *testing.T) {
	now := time.Now()
	stale := now.AddDate(0, 0, -300).Format("2006-01-02")
	runs := runsWithDates(now, stale, stale, stale)

	s := config.DefaultSettings()
	d := BuildDiagnostics("latest fusion breakthroughs", []string{"latest fusion breakthroughs"}, runs, s)
	assert.True(t, d.TimeSensitive)
	assert.Equal(t, models.FreshnessWarningLowFreshness, d.FreshnessWarning)
}

// Below min_known dated results the warning stays off even when all of
// them are stale.
func TestFreshnessWarningSuppressedBelowMinKnown(t *testing.T) {
	now := time.Now()
	stale := now.AddDate(0, 0, -300).Format("2006-01-02")
	runs := runsWithDates(now, stale, stale, "")

	s := config.DefaultSettings()
	d := BuildDiagnostics("latest fusion breakthroughs", []string{"latest fusion breakthroughs"}, runs, s)
	assert.True(t, d.TimeSensitive)
	assert.Equal(t, 2, d.Freshness.Known)
	assert.Empty(t, d.FreshnessWarning)
}

func TestFreshnessWarningOffForTimelessTopic(t *testing.T) {
	now := time.Now()
	stale := now.AddDate(0, 0, -300).Format("2006-01-02")
	runs := runsWithDates(now, stale, stale, stale)

	d := BuildDiagnostics("history of mathematics", []string{"history of mathematics"}, runs, config.DefaultSettings())
	assert.False(t, d.TimeSensitive)
	assert.Empty(t, d.FreshnessWarning)
}
