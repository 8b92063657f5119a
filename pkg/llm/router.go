package llm

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/delverhq/delver/pkg/config"
	"github.com/delverhq/delver/pkg/models"
)

// Task identifies what a model call is for. The router maps tasks to
// model names and default temperatures.
type Task string

const (
	TaskRouting     Task = "routing"
	TaskPlanning    Task = "planning"
	TaskQueryGen    Task = "query_gen"
	TaskResearch    Task = "research"
	TaskCritique    Task = "critique"
	TaskSynthesis   Task = "synthesis"
	TaskWriting     Task = "writing"
	TaskEvaluation  Task = "evaluation"
	TaskReflection  Task = "reflection"
	TaskGapAnalysis Task = "gap_analysis"
)

// taskTemperatures holds the per-task default sampling temperature.
var taskTemperatures = map[Task]float32{
	TaskRouting:     0.3,
	TaskPlanning:    0.4,
	TaskQueryGen:    0.8,
	TaskResearch:    0.7,
	TaskCritique:    0.2,
	TaskSynthesis:   0.5,
	TaskWriting:     0.6,
	TaskEvaluation:  0.2,
	TaskReflection:  0.3,
	TaskGapAnalysis: 0.2,
}

// reasoningTasks use the configured reasoning model by default.
var reasoningTasks = map[Task]bool{
	TaskRouting:     true,
	TaskPlanning:    true,
	TaskEvaluation:  true,
	TaskCritique:    true,
	TaskReflection:  true,
	TaskGapAnalysis: true,
}

// Temperature returns the default temperature for a task.
func Temperature(task Task) float32 {
	if t, ok := taskTemperatures[task]; ok {
		return t
	}
	return 0.7
}

// IsReasoningTask reports whether a task belongs to the reasoning class.
func IsReasoningTask(task Task) bool { return reasoningTasks[task] }

// Router resolves task → model name → provider and constructs chat
// models. It is process-wide and safe for concurrent use; all state is
// immutable after construction.
type Router struct {
	cfg *config.Config

	// build constructs the adapter for a resolved model + provider.
	// Swappable in tests.
	build func(model string, provider *config.LLMProviderConfig, temperature float32) (ChatModel, error)
}

// NewRouter creates a router over the loaded configuration.
func NewRouter(cfg *config.Config) *Router {
	return &Router{cfg: cfg, build: buildAdapter}
}

// settingsTaskModel maps a task to its settings field.
func settingsTaskModel(s *config.Settings, task Task) string {
	switch task {
	case TaskPlanning, TaskQueryGen:
		return s.PlannerModel
	case TaskResearch, TaskSynthesis:
		return s.ResearcherModel
	case TaskWriting:
		return s.WriterModel
	case TaskEvaluation, TaskReflection:
		return s.EvaluatorModel
	case TaskCritique, TaskGapAnalysis:
		return s.CriticModel
	}
	return ""
}

// ResolveModel applies the precedence chain: task-specific runtime
// override, general runtime override (reasoning/primary), settings task
// field, settings reasoning/primary model.
func (r *Router) ResolveModel(task Task, overrides *models.Overrides) string {
	if name := overrides.TaskModel(string(task)); name != "" {
		return name
	}
	if overrides != nil {
		if IsReasoningTask(task) && overrides.ReasoningModel != "" {
			return overrides.ReasoningModel
		}
		if !IsReasoningTask(task) && overrides.Model != "" {
			return overrides.Model
		}
	}
	s := r.cfg.Settings
	if name := settingsTaskModel(s, task); name != "" {
		return name
	}
	if IsReasoningTask(task) && s.ReasoningModel != "" {
		return s.ReasoningModel
	}
	return s.PrimaryModel
}

// providerFor picks the provider config serving a model name: an
// explicit models list wins, then name prefix conventions, then the
// configured default provider.
func (r *Router) providerFor(model string) (*config.LLMProviderConfig, string, error) {
	for name, p := range r.cfg.LLMProviders {
		for _, served := range p.Models {
			if served == model {
				return p, name, nil
			}
		}
	}

	lower := strings.ToLower(model)
	byType := func(t config.LLMProviderType) (*config.LLMProviderConfig, string, bool) {
		for name, p := range r.cfg.LLMProviders {
			if p.Type == t {
				return p, name, true
			}
		}
		return nil, "", false
	}
	switch {
	case strings.HasPrefix(lower, "claude"):
		if p, name, ok := byType(config.LLMProviderAnthropic); ok {
			return p, name, nil
		}
	case strings.HasPrefix(lower, "deepseek"):
		if p, name, ok := byType(config.LLMProviderDeepSeek); ok {
			return p, name, nil
		}
	}

	if p, ok := r.cfg.LLMProviders[r.cfg.DefaultLLMProvider]; ok {
		return p, r.cfg.DefaultLLMProvider, nil
	}
	return nil, "", fmt.Errorf("no provider configured for model %q", model)
}

// BuildModel resolves and constructs the chat model for a task. A nil
// temperatureOverride uses the task default. When a fallback chain is
// configured for the resolved name, the returned model tries each chain
// member in order after a primary failure.
func (r *Router) BuildModel(task Task, overrides *models.Overrides, temperatureOverride *float32) (ChatModel, error) {
	name := r.ResolveModel(task, overrides)
	if name == "" {
		return nil, fmt.Errorf("no model configured for task %q", task)
	}
	temperature := Temperature(task)
	if temperatureOverride != nil {
		temperature = *temperatureOverride
	}

	primary, err := r.buildOne(name, temperature)
	if err != nil {
		return nil, err
	}

	chain := r.cfg.ModelFallbacks[name]
	if len(chain) == 0 {
		return primary, nil
	}
	fallbacks := make([]ChatModel, 0, len(chain))
	for _, alt := range chain {
		m, err := r.buildOne(alt, temperature)
		if err != nil {
			slog.Warn("Skipping unbuildable fallback model", "model", alt, "error", err)
			continue
		}
		fallbacks = append(fallbacks, m)
	}
	return newFallbackChain(primary, fallbacks), nil
}

func (r *Router) buildOne(model string, temperature float32) (ChatModel, error) {
	provider, providerName, err := r.providerFor(model)
	if err != nil {
		return nil, err
	}
	m, err := r.build(model, provider, temperature)
	if err != nil {
		return nil, fmt.Errorf("build model %q via provider %q: %w", model, providerName, err)
	}
	return m, nil
}

// buildAdapter picks the SDK adapter for a provider type.
func buildAdapter(model string, provider *config.LLMProviderConfig, temperature float32) (ChatModel, error) {
	switch provider.Type {
	case config.LLMProviderAnthropic:
		return newAnthropicModel(model, provider, temperature)
	case config.LLMProviderOpenAI, config.LLMProviderAzure, config.LLMProviderOllama,
		config.LLMProviderDeepSeek, config.LLMProviderCustom:
		return newOpenAIModel(model, provider, temperature)
	default:
		return nil, fmt.Errorf("unknown provider type %q", provider.Type)
	}
}
