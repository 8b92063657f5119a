package models

// Gap importance levels, highest first.
const (
	GapImportanceHigh   = "high"
	GapImportanceMedium = "medium"
	GapImportanceLow    = "low"
)

// Gap is one missing aspect identified by the knowledge-gap analyzer.
type Gap struct {
	Aspect     string `json:"aspect"`
	Importance string `json:"importance"`
	Reason     string `json:"reason,omitempty"`
}

// GapAnalysis is the structured output of one gap-analysis model call.
type GapAnalysis struct {
	OverallCoverage  float64  `json:"overall_coverage"`
	Confidence       float64  `json:"confidence"`
	Gaps             []Gap    `json:"gaps"`
	SuggestedQueries []string `json:"suggested_queries"`
	CoveredAspects   []string `json:"covered_aspects"`
	Analysis         string   `json:"analysis,omitempty"`
	IsSufficient     bool     `json:"is_sufficient"`
}

// HighImportanceGaps returns the gaps marked high, in order.
func (g *GapAnalysis) HighImportanceGaps() []Gap {
	var out []Gap
	for _, gap := range g.Gaps {
		if gap.Importance == GapImportanceHigh {
			out = append(out, gap)
		}
	}
	return out
}
