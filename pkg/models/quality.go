package models

// FreshnessWarningLowFreshness is set on QualityDiagnostics when a
// time-sensitive query produced mostly stale sources.
const FreshnessWarningLowFreshness = "low_freshness_for_time_sensitive_query"

// QueryCoverage reports how well a query set spans the five research
// dimensions (freshness, official, evidence, risk, implementation).
type QueryCoverage struct {
	Score             float64             `json:"score"`
	CoveredDimensions []string            `json:"covered_dimensions"`
	MissingDimensions []string            `json:"missing_dimensions"`
	DimensionHits     map[string][]string `json:"dimension_hits"`
}

// FreshnessSummary buckets search results by the age of their published
// date. Ratios are computed over results with a known date.
type FreshnessSummary struct {
	Total         int     `json:"total"`
	Known         int     `json:"known"`
	Unknown       int     `json:"unknown"`
	Fresh7        int     `json:"fresh_7"`
	Fresh30       int     `json:"fresh_30"`
	Stale180      int     `json:"stale_180"`
	Fresh30Ratio  float64 `json:"fresh_30_ratio"`
	Stale180Ratio float64 `json:"stale_180_ratio"`
	MedianAgeDays float64 `json:"median_age_days,omitempty"`
}

// QualityDiagnostics aggregates coverage and freshness signals for one
// run or epoch.
type QualityDiagnostics struct {
	QueryCoverage    *QueryCoverage    `json:"query_coverage,omitempty"`
	Freshness        *FreshnessSummary `json:"freshness,omitempty"`
	TimeSensitive    bool              `json:"time_sensitive"`
	FreshnessWarning string            `json:"freshness_warning,omitempty"`
}
