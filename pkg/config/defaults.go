package config

import (
	"log/slog"
	"os"
	"time"
)

// DefaultSettings returns the built-in engine settings.
func DefaultSettings() *Settings {
	enabled := true
	gap := true
	return &Settings{
		DeepsearchMode:         ModeAuto,
		TreeExplorationEnabled: &enabled,
		TreeMaxDepth:           2,
		TreeMaxBranches:        4,
		TreeQueriesPerBranch:   3,
		TreeParallelBranches:   3,
		MaxEpochs:              3,
		QueryNum:               5,
		ResultsPerQuery:        5,

		MaxSeconds: 0,
		MaxTokens:  0,

		FreshnessWarningMinKnown: 3,
		FreshnessWarningMinRatio: 0.4,
		UseGapAnalysis:           &gap,
		EventResultsLimit:        5,

		SearchStrategy: StrategyFallback,

		SaveFormat: SaveFormatJSON,

		PrimaryModel:   "gpt-4o-mini",
		ReasoningModel: "gpt-4o",
	}
}

// DefaultConfig returns the complete built-in configuration. Search provider
// keys are picked up from conventional environment variables so a bare
// deployment with a .env file works without any YAML.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:              "0.0.0.0",
			Port:              8094,
			SSETimeoutSeconds: 300,
		},
		Retention: RetentionConfig{
			TokenTTL:      time.Hour,
			SweepInterval: time.Minute,
		},
		Settings: DefaultSettings(),
		LLMProviders: map[string]*LLMProviderConfig{
			"openai": {
				Type:   LLMProviderOpenAI,
				APIKey: os.Getenv("OPENAI_API_KEY"),
			},
			"anthropic": {
				Type:   LLMProviderAnthropic,
				APIKey: os.Getenv("ANTHROPIC_API_KEY"),
			},
		},
		SearchProviders: map[string]*SearchProviderConfig{
			"tavily":           {APIKey: os.Getenv("TAVILY_API_KEY")},
			"serper":           {APIKey: os.Getenv("SERPER_API_KEY")},
			"duckduckgo":       {},
			"arxiv":            {},
			"pubmed":           {APIKey: os.Getenv("PUBMED_API_KEY")},
			"semantic_scholar": {APIKey: os.Getenv("SEMANTIC_SCHOLAR_API_KEY")},
			"exa":              {APIKey: os.Getenv("EXA_API_KEY")},
		},
		DefaultLLMProvider: "openai",
	}
}

// Normalize replaces invalid option values with their documented defaults,
// logging each correction. It never fails: an unrecognized mode or strategy
// degrades to the default rather than aborting startup.
func (c *Config) Normalize() {
	if c.Settings == nil {
		c.Settings = DefaultSettings()
	}
	s := c.Settings

	switch s.DeepsearchMode {
	case ModeAuto, ModeTree, ModeLinear:
	default:
		slog.Warn("Unrecognized deepsearch_mode, using default",
			"value", s.DeepsearchMode, "default", ModeAuto)
		s.DeepsearchMode = ModeAuto
	}

	switch s.SearchStrategy {
	case StrategyFallback, StrategyProfile:
	default:
		slog.Warn("Unrecognized search_strategy, using default",
			"value", s.SearchStrategy, "default", StrategyFallback)
		s.SearchStrategy = StrategyFallback
	}

	switch s.SaveFormat {
	case "", SaveFormatJSON, SaveFormatDocx:
		if s.SaveFormat == "" {
			s.SaveFormat = SaveFormatJSON
		}
	default:
		slog.Warn("Unrecognized deepsearch_save_format, using default",
			"value", s.SaveFormat, "default", SaveFormatJSON)
		s.SaveFormat = SaveFormatJSON
	}

	if s.EventResultsLimit < 1 || s.EventResultsLimit > 20 {
		slog.Warn("deepsearch_event_results_limit out of range [1,20], using default",
			"value", s.EventResultsLimit, "default", 5)
		s.EventResultsLimit = 5
	}

	clampMin := func(name string, v *int, min, def int) {
		if *v < min {
			slog.Warn("Invalid setting, using default", "option", name, "value", *v, "default", def)
			*v = def
		}
	}
	clampMin("tree_max_depth", &s.TreeMaxDepth, 1, 2)
	clampMin("tree_max_branches", &s.TreeMaxBranches, 1, 4)
	clampMin("tree_queries_per_branch", &s.TreeQueriesPerBranch, 1, 3)
	clampMin("tree_parallel_branches", &s.TreeParallelBranches, 1, 3)
	clampMin("deepsearch_max_epochs", &s.MaxEpochs, 1, 3)
	clampMin("deepsearch_query_num", &s.QueryNum, 1, 5)
	clampMin("deepsearch_results_per_query", &s.ResultsPerQuery, 1, 5)

	if s.MaxSeconds < 0 {
		slog.Warn("deepsearch_max_seconds must be >= 0, treating as unbounded", "value", s.MaxSeconds)
		s.MaxSeconds = 0
	}
	if s.MaxTokens < 0 {
		slog.Warn("deepsearch_max_tokens must be >= 0, treating as unbounded", "value", s.MaxTokens)
		s.MaxTokens = 0
	}
	if s.FreshnessWarningMinRatio < 0 || s.FreshnessWarningMinRatio > 1 {
		slog.Warn("deepsearch_freshness_warning_min_ratio out of [0,1], using default",
			"value", s.FreshnessWarningMinRatio, "default", 0.4)
		s.FreshnessWarningMinRatio = 0.4
	}
	if s.FreshnessWarningMinKnown < 0 {
		slog.Warn("deepsearch_freshness_warning_min_known must be >= 0, using default",
			"value", s.FreshnessWarningMinKnown, "default", 3)
		s.FreshnessWarningMinKnown = 3
	}

	if c.DefaultLLMProvider == "" {
		c.DefaultLLMProvider = "openai"
	}
	if _, ok := c.LLMProviders[c.DefaultLLMProvider]; !ok && len(c.LLMProviders) > 0 {
		slog.Warn("default_llm_provider not configured, picking first configured provider",
			"value", c.DefaultLLMProvider)
		for name := range c.LLMProviders {
			c.DefaultLLMProvider = name
			break
		}
	}
}
