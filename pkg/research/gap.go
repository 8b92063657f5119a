package research

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/delverhq/delver/pkg/llm"
	"github.com/delverhq/delver/pkg/models"
)

// DefaultCoverageThreshold is the coverage at which research counts as
// sufficient, absent high-importance gaps.
const DefaultCoverageThreshold = 0.8

// GapAnalyzer judges knowledge coverage with one model call per epoch
// and tracks per-session coverage history for trend reporting.
type GapAnalyzer struct {
	model     llm.ChatModel
	threshold float64

	mu      sync.Mutex
	history map[string][]float64
}

// NewGapAnalyzer creates an analyzer. threshold <= 0 uses the default.
func NewGapAnalyzer(model llm.ChatModel, threshold float64) *GapAnalyzer {
	if threshold <= 0 {
		threshold = DefaultCoverageThreshold
	}
	return &GapAnalyzer{
		model:     model,
		threshold: threshold,
		history:   make(map[string][]float64),
	}
}

// neutralResult is returned when the model call or parse fails: middle
// coverage, low confidence, never sufficient.
func neutralResult(reason string) *models.GapAnalysis {
	return &models.GapAnalysis{
		OverallCoverage: 0.5,
		Confidence:      0.1,
		Analysis:        "gap analysis degraded: " + reason,
	}
}

// Analyze runs one gap-analysis model call over the executed queries
// and accumulated summary, records the coverage point for the session,
// and returns the structured result. Failures degrade to a neutral
// low-confidence result rather than erroring.
func (a *GapAnalyzer) Analyze(ctx context.Context, sessionID, topic string, queries []string, summary string) *models.GapAnalysis {
	prompt := gapAnalysisPrompt(topic, queries, summary)
	response, err := a.model.Complete(ctx, []llm.Message{
		llm.System(gapAnalysisSystem),
		llm.User(prompt),
	})
	if err != nil {
		slog.Warn("Gap analysis model call failed", "session_id", sessionID, "error", err)
		return a.record(sessionID, neutralResult("model call failed"))
	}

	var result models.GapAnalysis
	if err := ExtractJSON(response, &result); err != nil {
		slog.Warn("Gap analysis returned malformed JSON", "session_id", sessionID, "error", err)
		return a.record(sessionID, neutralResult("malformed model output"))
	}
	result.OverallCoverage = clamp01(result.OverallCoverage)
	result.Confidence = clamp01(result.Confidence)
	result.IsSufficient = a.IsSufficient(&result)
	return a.record(sessionID, &result)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func (a *GapAnalyzer) record(sessionID string, result *models.GapAnalysis) *models.GapAnalysis {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.history[sessionID] = append(a.history[sessionID], result.OverallCoverage)
	return result
}

// CoverageTrend returns the session's coverage history delta: positive
// when the latest analysis covers more than the previous one.
func (a *GapAnalyzer) CoverageTrend(sessionID string) float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	h := a.history[sessionID]
	if len(h) < 2 {
		return 0
	}
	return h[len(h)-1] - h[len(h)-2]
}

// Forget drops the session's coverage history.
func (a *GapAnalyzer) Forget(sessionID string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.history, sessionID)
}

// IsSufficient applies the sufficiency rule: coverage at or above the
// threshold and no high-importance gap.
func (a *GapAnalyzer) IsSufficient(result *models.GapAnalysis) bool {
	if result.OverallCoverage < a.threshold {
		return false
	}
	return len(result.HighImportanceGaps()) == 0
}

// importanceRank orders gap importance, highest first.
var importanceRank = map[string]int{
	models.GapImportanceHigh:   0,
	models.GapImportanceMedium: 1,
	models.GapImportanceLow:    2,
}

// PriorityQueries returns up to n suggested queries ordered by gap
// importance. Suggestions pair with gaps by position in the model
// output; a gap without one contributes nothing here, see
// TargetedQueries.
func PriorityQueries(result *models.GapAnalysis, n int) []string {
	type rankedGap struct {
		gap        models.Gap
		suggestion string
	}
	pairs := make([]rankedGap, len(result.Gaps))
	for i, gap := range result.Gaps {
		pairs[i] = rankedGap{gap: gap}
		if i < len(result.SuggestedQueries) {
			pairs[i].suggestion = strings.TrimSpace(result.SuggestedQueries[i])
		}
	}
	sort.SliceStable(pairs, func(i, j int) bool {
		return importanceRank[pairs[i].gap.Importance] < importanceRank[pairs[j].gap.Importance]
	})

	var out []string
	for _, p := range pairs {
		if len(out) >= n {
			break
		}
		if p.suggestion != "" {
			out = append(out, p.suggestion)
		}
	}
	return out
}

// TargetedQueries returns up to n queries for the most important gaps,
// preferring suggested queries and falling back to the gap's aspect
// string.
func TargetedQueries(result *models.GapAnalysis, n int) []string {
	queries := PriorityQueries(result, n)
	seen := make(map[string]struct{}, len(queries))
	for _, q := range queries {
		seen[strings.ToLower(q)] = struct{}{}
	}

	gaps := make([]models.Gap, len(result.Gaps))
	copy(gaps, result.Gaps)
	sort.SliceStable(gaps, func(i, j int) bool {
		return importanceRank[gaps[i].Importance] < importanceRank[gaps[j].Importance]
	})
	for _, gap := range gaps {
		if len(queries) >= n {
			break
		}
		aspect := strings.TrimSpace(gap.Aspect)
		if aspect == "" {
			continue
		}
		if _, dup := seen[strings.ToLower(aspect)]; dup {
			continue
		}
		seen[strings.ToLower(aspect)] = struct{}{}
		queries = append(queries, aspect)
	}
	return queries
}

const gapAnalysisSystem = `You are a research-coverage auditor. Respond with a single JSON object:
{"overall_coverage": 0.0-1.0, "confidence": 0.0-1.0,
 "gaps": [{"aspect": "...", "importance": "high|medium|low", "reason": "..."}],
 "suggested_queries": ["..."], "covered_aspects": ["..."], "analysis": "..."}`

func gapAnalysisPrompt(topic string, queries []string, summary string) string {
	return fmt.Sprintf(
		"Topic: %s\n\nQueries executed so far:\n- %s\n\nAccumulated findings:\n%s\n\n"+
			"Judge how completely the findings cover the topic and identify the most important gaps.",
		topic, strings.Join(queries, "\n- "), trimTo(summary, 4000))
}
