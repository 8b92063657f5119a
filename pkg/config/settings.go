package config

import "time"

// Valid deepsearch modes.
const (
	ModeAuto   = "auto"
	ModeTree   = "tree"
	ModeLinear = "linear"
)

// Valid search strategies.
const (
	StrategyFallback = "fallback"
	StrategyProfile  = "profile"
)

// Valid run-record save formats.
const (
	SaveFormatJSON = "json"
	SaveFormatDocx = "docx"
)

// Settings holds the engine options recognized per run. Boolean options
// whose default is true are pointers so an explicit false in YAML survives
// the merge with defaults.
type Settings struct {
	// Scheduling.
	DeepsearchMode         string `yaml:"deepsearch_mode"`
	TreeExplorationEnabled *bool  `yaml:"tree_exploration_enabled"`
	TreeMaxDepth           int    `yaml:"tree_max_depth"`
	TreeMaxBranches        int    `yaml:"tree_max_branches"`
	TreeQueriesPerBranch   int    `yaml:"tree_queries_per_branch"`
	TreeParallelBranches   int    `yaml:"tree_parallel_branches"`
	MaxEpochs              int    `yaml:"deepsearch_max_epochs"`
	QueryNum               int    `yaml:"deepsearch_query_num"`
	ResultsPerQuery        int    `yaml:"deepsearch_results_per_query"`

	// Budgets. Zero means unbounded.
	MaxSeconds float64 `yaml:"deepsearch_max_seconds"`
	MaxTokens  int     `yaml:"deepsearch_max_tokens"`

	// Quality.
	FreshnessWarningMinKnown int     `yaml:"deepsearch_freshness_warning_min_known"`
	FreshnessWarningMinRatio float64 `yaml:"deepsearch_freshness_warning_min_ratio"`
	UseGapAnalysis           *bool   `yaml:"deepsearch_use_gap_analysis"`
	EventResultsLimit        int     `yaml:"deepsearch_event_results_limit"`
	EnableCrawler            bool    `yaml:"deepsearch_enable_crawler"`

	// Search.
	SearchStrategy string `yaml:"search_strategy"`

	// Model routing.
	PrimaryModel    string `yaml:"primary_model"`
	ReasoningModel  string `yaml:"reasoning_model"`
	PlannerModel    string `yaml:"planner_model"`
	ResearcherModel string `yaml:"researcher_model"`
	WriterModel     string `yaml:"writer_model"`
	EvaluatorModel  string `yaml:"evaluator_model"`
	CriticModel     string `yaml:"critic_model"`

	// Persistence. SaveFormat "docx" additionally exports the final
	// report through the configured .docx template.
	SaveData     bool   `yaml:"deepsearch_save_data"`
	SaveDir      string `yaml:"deepsearch_save_dir"`
	SaveFormat   string `yaml:"deepsearch_save_format"`
	DocxTemplate string `yaml:"deepsearch_docx_template"`

	// Crawler.
	CrawlerTimeoutSeconds int `yaml:"crawler_timeout_seconds"`
}

// TreeEnabled reports whether tree exploration is enabled (default true).
func (s *Settings) TreeEnabled() bool {
	return s.TreeExplorationEnabled == nil || *s.TreeExplorationEnabled
}

// GapAnalysisEnabled reports whether gap analysis runs between epochs
// (default true).
func (s *Settings) GapAnalysisEnabled() bool {
	return s.UseGapAnalysis == nil || *s.UseGapAnalysis
}

// CrawlerTimeout returns the per-fetch crawler timeout.
func (s *Settings) CrawlerTimeout() time.Duration {
	if s.CrawlerTimeoutSeconds <= 0 {
		return 20 * time.Second
	}
	return time.Duration(s.CrawlerTimeoutSeconds) * time.Second
}

// MaxDuration returns the run time budget, zero when unbounded.
func (s *Settings) MaxDuration() time.Duration {
	if s.MaxSeconds <= 0 {
		return 0
	}
	return time.Duration(s.MaxSeconds * float64(time.Second))
}
