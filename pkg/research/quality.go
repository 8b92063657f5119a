package research

import (
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode"

	"github.com/montanaflynn/stats"

	"github.com/delverhq/delver/pkg/config"
	"github.com/delverhq/delver/pkg/models"
)

// The five query dimensions a balanced query set should cover.
var Dimensions = []string{"freshness", "official", "evidence", "risk", "implementation"}

// dimensionMarkers maps each dimension to its lowercase marker terms,
// English and Chinese. The tables are package vars rather than
// constants so new languages can be appended without touching the
// scan.
var dimensionMarkers = map[string][]string{
	"freshness": {
		"latest", "recent", "new", "update", "current", "today", "this year",
		"最新", "近期", "最近", "更新", "今年",
	},
	"official": {
		"official", "documentation", "docs", "spec", "standard", "government",
		"regulation", "announcement", "官方", "文档", "标准", "规范", "公告", "政策",
	},
	"evidence": {
		"study", "research", "paper", "data", "statistics", "survey", "benchmark",
		"evidence", "report", "研究", "论文", "数据", "统计", "调查", "报告", "证据",
	},
	"risk": {
		"risk", "problem", "issue", "limitation", "drawback", "criticism",
		"vulnerability", "failure", "风险", "问题", "缺陷", "局限", "批评", "漏洞",
	},
	"implementation": {
		"how to", "implement", "tutorial", "guide", "example", "practice",
		"deploy", "setup", "如何", "实现", "教程", "指南", "示例", "实践", "部署",
	},
}

var yearRe = regexp.MustCompile(`\b(19|20)\d{2}\b`)

// markerRes compiles each English marker as a whole-word pattern with
// an optional plural s, so "data" stops matching inside "database".
// CJK markers have no word boundaries and stay substring matched.
var markerRes = func() map[string]*regexp.Regexp {
	out := make(map[string]*regexp.Regexp)
	for _, markers := range dimensionMarkers {
		for _, m := range markers {
			if !hasCJK(m) {
				out[m] = regexp.MustCompile(`\b` + regexp.QuoteMeta(m) + `s?\b`)
			}
		}
	}
	return out
}()

func matchesMarker(lower, marker string) bool {
	if re, ok := markerRes[marker]; ok {
		return re.MatchString(lower)
	}
	return strings.Contains(lower, marker)
}

// QueryDimensions returns the dimensions a single query touches.
func QueryDimensions(query string) []string {
	lower := strings.ToLower(query)
	var hit []string
	for _, dim := range Dimensions {
		if dim == "freshness" && yearRe.MatchString(lower) {
			hit = append(hit, dim)
			continue
		}
		for _, marker := range dimensionMarkers[dim] {
			if matchesMarker(lower, marker) {
				hit = append(hit, dim)
				break
			}
		}
	}
	return hit
}

// AnalyzeCoverage scores a query set against the five dimensions:
// score = covered/5, with per-dimension query hits.
func AnalyzeCoverage(queries []string) *models.QueryCoverage {
	hits := make(map[string][]string)
	for _, q := range queries {
		for _, dim := range QueryDimensions(q) {
			hits[dim] = append(hits[dim], q)
		}
	}

	covered := make([]string, 0, len(Dimensions))
	missing := make([]string, 0, len(Dimensions))
	for _, dim := range Dimensions {
		if len(hits[dim]) > 0 {
			covered = append(covered, dim)
		} else {
			missing = append(missing, dim)
		}
	}
	return &models.QueryCoverage{
		Score:             float64(len(covered)) / float64(len(Dimensions)),
		CoveredDimensions: covered,
		MissingDimensions: missing,
		DimensionHits:     hits,
	}
}

// IsTimeSensitive reports whether a topic asks about current affairs:
// freshness markers or an explicit year.
func IsTimeSensitive(topic string) bool {
	lower := strings.ToLower(topic)
	if yearRe.MatchString(lower) {
		return true
	}
	for _, marker := range dimensionMarkers["freshness"] {
		if matchesMarker(lower, marker) {
			return true
		}
	}
	return false
}

// backfill templates per missing dimension, English and Chinese. The
// template set matching the topic's script is used.
var backfillTemplates = map[string]map[string]string{
	"en": {
		"freshness":      "%s latest updates",
		"official":       "%s official documentation",
		"evidence":       "%s research data and statistics",
		"risk":           "%s risks and limitations",
		"implementation": "%s implementation guide",
	},
	"zh": {
		"freshness":      "%s 最新进展",
		"official":       "%s 官方文档",
		"evidence":       "%s 研究数据",
		"risk":           "%s 风险与局限",
		"implementation": "%s 实现指南",
	},
}

// hasCJK reports whether the topic contains CJK characters.
func hasCJK(s string) bool {
	for _, r := range s {
		if unicode.Is(unicode.Han, r) {
			return true
		}
	}
	return false
}

// BackfillDiverse tops a query set up to targetN: existing queries are
// kept (minus case-insensitive duplicates of historical ones), then
// missing dimensions are filled from seeded templates chosen by the
// topic's script.
func BackfillDiverse(topic string, existing, historical []string, targetN int) []string {
	if targetN < 1 {
		targetN = 1
	}
	seen := make(map[string]struct{}, len(historical))
	for _, q := range historical {
		seen[strings.ToLower(strings.TrimSpace(q))] = struct{}{}
	}

	out := make([]string, 0, targetN)
	add := func(q string) {
		q = strings.TrimSpace(q)
		key := strings.ToLower(q)
		if q == "" || len(out) >= targetN {
			return
		}
		if _, dup := seen[key]; dup {
			return
		}
		seen[key] = struct{}{}
		out = append(out, q)
	}

	for _, q := range existing {
		add(q)
	}
	if len(out) >= targetN {
		return out
	}

	lang := "en"
	if hasCJK(topic) {
		lang = "zh"
	}
	coverage := AnalyzeCoverage(out)
	for _, dim := range coverage.MissingDimensions {
		add(fmt.Sprintf(backfillTemplates[lang][dim], topic))
		if len(out) >= targetN {
			break
		}
	}

	// Still short: reuse the remaining templates in dimension order.
	for _, dim := range Dimensions {
		if len(out) >= targetN {
			break
		}
		add(fmt.Sprintf(backfillTemplates[lang][dim], topic))
	}
	return out
}

// dateLayouts accepted for published dates, most specific first.
var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02",
	"2006/01/02",
	"Jan 2, 2006",
	"2006",
}

// ParsePublishedDate parses a published date leniently. The zero time
// and false mean unparseable.
func ParsePublishedDate(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, true
		}
	}
	// Trailing Z on a bare datetime.
	if trimmed := strings.TrimSuffix(raw, "Z"); trimmed != raw {
		for _, layout := range dateLayouts {
			if t, err := time.Parse(layout, trimmed); err == nil {
				return t, true
			}
		}
	}
	return time.Time{}, false
}

// SummarizeFreshness buckets the results of all search runs by age:
// ≤7 days, ≤30 days, >180 days. Ratios are over dated results only.
func SummarizeFreshness(runs []models.SearchRun) *models.FreshnessSummary {
	return summarizeFreshnessAt(runs, time.Now())
}

func summarizeFreshnessAt(runs []models.SearchRun, now time.Time) *models.FreshnessSummary {
	s := &models.FreshnessSummary{}
	var ages []float64
	for _, run := range runs {
		for _, r := range run.Results {
			s.Total++
			published, ok := ParsePublishedDate(r.PublishedDate)
			if !ok {
				s.Unknown++
				continue
			}
			s.Known++
			age := now.Sub(published).Hours() / 24
			ages = append(ages, age)
			if age <= 7 {
				s.Fresh7++
			}
			if age <= 30 {
				s.Fresh30++
			}
			if age > 180 {
				s.Stale180++
			}
		}
	}
	if s.Known > 0 {
		s.Fresh30Ratio = float64(s.Fresh30) / float64(s.Known)
		s.Stale180Ratio = float64(s.Stale180) / float64(s.Known)
		if median, err := stats.Median(ages); err == nil {
			s.MedianAgeDays = median
		}
	}
	return s
}

// BuildDiagnostics assembles the quality picture for a run: query
// coverage, freshness buckets, and the low-freshness warning for
// time-sensitive topics. The warning fires only when at least
// minKnown results carry dates and the fresh-30 ratio is below
// minRatio.
func BuildDiagnostics(topic string, queries []string, runs []models.SearchRun, settings *config.Settings) *models.QualityDiagnostics {
	d := &models.QualityDiagnostics{
		QueryCoverage: AnalyzeCoverage(queries),
		Freshness:     SummarizeFreshness(runs),
		TimeSensitive: IsTimeSensitive(topic),
	}
	if d.TimeSensitive &&
		d.Freshness.Known >= settings.FreshnessWarningMinKnown &&
		d.Freshness.Fresh30Ratio < settings.FreshnessWarningMinRatio {
		d.FreshnessWarning = models.FreshnessWarningLowFreshness
	}
	return d
}

// FreshnessNote is the user-facing message appended to reports when
// the low-freshness warning fires.
const FreshnessNote = "注意：新鲜来源占比较低，时效性结论请谨慎对待。" +
	" (Note: the share of fresh sources is low; treat time-sensitive conclusions with care.)"
