package models

// Research run modes.
const (
	ModeAuto   = "auto"
	ModeTree   = "tree"
	ModeLinear = "linear"
)

// Budget stop reasons surfaced in RunArtifacts.
const (
	StopReasonNone           = "none"
	StopReasonTimeExceeded   = "time_exceeded"
	StopReasonTokensExceeded = "tokens_exceeded"
)

// BudgetStopMessage renders the user-facing explanation for a budget
// stop reason. Empty for none or an unknown reason.
func BudgetStopMessage(reason string) string {
	switch reason {
	case StopReasonTimeExceeded:
		return "Research stopped early because the time budget ran out; the report covers what was gathered before the cutoff."
	case StopReasonTokensExceeded:
		return "Research stopped early because the token budget ran out; the report covers what was gathered before the cutoff."
	}
	return ""
}

// Overrides carries per-run configuration supplied by the caller. All
// fields are optional; unset fields fall through to settings.
type Overrides struct {
	DeepsearchMode string `json:"deepsearch_mode,omitempty"`

	// General model overrides. Model applies to non-reasoning tasks,
	// ReasoningModel to reasoning tasks.
	Model          string `json:"model,omitempty"`
	ReasoningModel string `json:"reasoning_model,omitempty"`

	// Task-specific model overrides. These win over everything else.
	RoutingModel     string `json:"routing_model,omitempty"`
	PlanningModel    string `json:"planning_model,omitempty"`
	QueryGenModel    string `json:"query_gen_model,omitempty"`
	ResearchModel    string `json:"research_model,omitempty"`
	CritiqueModel    string `json:"critique_model,omitempty"`
	SynthesisModel   string `json:"synthesis_model,omitempty"`
	WritingModel     string `json:"writing_model,omitempty"`
	EvaluationModel  string `json:"evaluation_model,omitempty"`
	ReflectionModel  string `json:"reflection_model,omitempty"`
	GapAnalysisModel string `json:"gap_analysis_model,omitempty"`
}

// TaskModel returns the task-specific override for a task name, or "".
func (o *Overrides) TaskModel(task string) string {
	if o == nil {
		return ""
	}
	switch task {
	case "routing":
		return o.RoutingModel
	case "planning":
		return o.PlanningModel
	case "query_gen":
		return o.QueryGenModel
	case "research":
		return o.ResearchModel
	case "critique":
		return o.CritiqueModel
	case "synthesis":
		return o.SynthesisModel
	case "writing":
		return o.WritingModel
	case "evaluation":
		return o.EvaluationModel
	case "reflection":
		return o.ReflectionModel
	case "gap_analysis":
		return o.GapAnalysisModel
	}
	return ""
}

// RunRequest starts one research run.
type RunRequest struct {
	Topic     string `json:"topic"`
	SessionID string `json:"session_id,omitempty"`

	// Domain metadata used to derive the provider profile.
	Domain           string   `json:"domain,omitempty"`
	SuggestedSources []string `json:"suggested_sources,omitempty"`

	Overrides *Overrides `json:"config,omitempty"`
}

// RunArtifacts is the bundle returned by a finished (or stopped) run.
type RunArtifacts struct {
	Mode             string              `json:"mode"`
	Queries          []string            `json:"queries"`
	ResearchTree     *TreeSnapshot       `json:"research_tree,omitempty"`
	QualitySummary   *QualityDiagnostics `json:"quality_summary,omitempty"`
	QueryCoverage    *QueryCoverage      `json:"query_coverage,omitempty"`
	FreshnessSummary *FreshnessSummary   `json:"freshness_summary,omitempty"`

	FinalReport string      `json:"final_report"`
	Summaries   []string    `json:"summaries,omitempty"`
	SearchRuns  []SearchRun `json:"search_runs,omitempty"`
	Epoch       int         `json:"epoch"`

	BudgetStopReason string   `json:"budget_stop_reason,omitempty"`
	UserMessage      string   `json:"user_message,omitempty"`
	IsCancelled      bool     `json:"is_cancelled,omitempty"`
	IsComplete       bool     `json:"is_complete"`
	Errors           []string `json:"errors,omitempty"`

	// EventsEmitted tells upstream wrappers the terminal events were
	// already published on the session stream.
	EventsEmitted bool `json:"_deepsearch_events_emitted"`

	SavedPath string `json:"saved_path,omitempty"`
}

// RunRecord is the append-only JSON document written when save_data is
// enabled.
type RunRecord struct {
	Topic       string      `json:"topic"`
	Queries     []string    `json:"queries"`
	Summaries   []string    `json:"summaries"`
	SearchRuns  []SearchRun `json:"search_runs"`
	FinalReport string      `json:"final_report"`
	Epoch       int         `json:"epoch"`
	Mode        string      `json:"mode"`
}
