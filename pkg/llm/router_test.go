package llm

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/delverhq/delver/pkg/config"
	"github.com/delverhq/delver/pkg/models"
)

func testConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.Settings.PrimaryModel = "gpt-4o-mini"
	cfg.Settings.ReasoningModel = "gpt-4o"
	cfg.LLMProviders = map[string]*config.LLMProviderConfig{
		"openai":    {Type: config.LLMProviderOpenAI, APIKey: "sk-test-key-123456"},
		"anthropic": {Type: config.LLMProviderAnthropic, APIKey: "anth-test-key-123456"},
	}
	cfg.DefaultLLMProvider = "openai"
	return cfg
}

func TestResolveModelPrecedence(t *testing.T) {
	cfg := testConfig()
	cfg.Settings.PlannerModel = "planner-from-settings"
	r := NewRouter(cfg)

	t.Run("task-specific runtime override wins", func(t *testing.T) {
		ov := &models.Overrides{PlanningModel: "planner-override", ReasoningModel: "reasoning-override"}
		assert.Equal(t, "planner-override", r.ResolveModel(TaskPlanning, ov))
	})

	t.Run("general runtime override next", func(t *testing.T) {
		ov := &models.Overrides{ReasoningModel: "reasoning-override", Model: "general-override"}
		assert.Equal(t, "reasoning-override", r.ResolveModel(TaskCritique, ov),
			"reasoning task uses the reasoning override")
		assert.Equal(t, "general-override", r.ResolveModel(TaskWriting, ov),
			"non-reasoning task uses the general override")
	})

	t.Run("settings task field next", func(t *testing.T) {
		assert.Equal(t, "planner-from-settings", r.ResolveModel(TaskPlanning, nil))
		assert.Equal(t, "planner-from-settings", r.ResolveModel(TaskQueryGen, nil))
	})

	t.Run("settings reasoning or primary last", func(t *testing.T) {
		assert.Equal(t, "gpt-4o", r.ResolveModel(TaskGapAnalysis, nil))
		assert.Equal(t, "gpt-4o-mini", r.ResolveModel(TaskWriting, nil))
	})
}

func TestTaskTemperatures(t *testing.T) {
	assert.InDelta(t, 0.3, Temperature(TaskRouting), 1e-6)
	assert.InDelta(t, 0.8, Temperature(TaskQueryGen), 1e-6)
	assert.InDelta(t, 0.2, Temperature(TaskCritique), 1e-6)
}

func TestReasoningClass(t *testing.T) {
	for _, task := range []Task{TaskRouting, TaskPlanning, TaskEvaluation, TaskCritique, TaskReflection, TaskGapAnalysis} {
		assert.True(t, IsReasoningTask(task), "%s is a reasoning task", task)
	}
	for _, task := range []Task{TaskQueryGen, TaskResearch, TaskSynthesis, TaskWriting} {
		assert.False(t, IsReasoningTask(task), "%s is not a reasoning task", task)
	}
}

func TestProviderForModelList(t *testing.T) {
	cfg := testConfig()
	cfg.LLMProviders["local"] = &config.LLMProviderConfig{
		Type:    config.LLMProviderOllama,
		BaseURL: "http://localhost:11434/v1",
		Models:  []string{"llama3.1:70b"},
	}
	r := NewRouter(cfg)

	p, name, err := r.providerFor("llama3.1:70b")
	require.NoError(t, err)
	assert.Equal(t, "local", name)
	assert.Equal(t, config.LLMProviderOllama, p.Type)
}

func TestProviderForPrefix(t *testing.T) {
	r := NewRouter(testConfig())

	_, name, err := r.providerFor("claude-sonnet-4-5")
	require.NoError(t, err)
	assert.Equal(t, "anthropic", name)

	_, name, err = r.providerFor("gpt-4o")
	require.NoError(t, err)
	assert.Equal(t, "openai", name, "unmatched names go to the default provider")
}

// scriptedModel returns canned responses or errors in order.
type scriptedModel struct {
	name  string
	text  string
	err   error
	calls int
}

func (s *scriptedModel) Name() string { return s.name }
func (s *scriptedModel) Complete(context.Context, []Message) (string, error) {
	s.calls++
	return s.text, s.err
}

func TestFallbackChain(t *testing.T) {
	primary := &scriptedModel{name: "a", err: errors.New("rate limited")}
	backup := &scriptedModel{name: "b", text: "from backup"}
	chain := newFallbackChain(primary, []ChatModel{backup})

	text, err := chain.Complete(context.Background(), []Message{User("hi")})
	require.NoError(t, err)
	assert.Equal(t, "from backup", text)
	assert.Equal(t, 1, primary.calls)
	assert.Equal(t, 1, backup.calls)
}

func TestFallbackChainStopsOnContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	primary := &scriptedModel{name: "a", err: context.Canceled}
	backup := &scriptedModel{name: "b", text: "unreachable"}
	chain := newFallbackChain(primary, []ChatModel{backup})

	cancel()
	_, err := chain.Complete(ctx, []Message{User("hi")})
	require.Error(t, err)
	assert.Zero(t, backup.calls, "cancellation must not advance the chain")
}

func TestBuildModelUsesFallbackConfig(t *testing.T) {
	cfg := testConfig()
	cfg.ModelFallbacks = map[string][]string{"gpt-4o-mini": {"claude-sonnet-4-5"}}
	r := NewRouter(cfg)

	var built []string
	r.build = func(model string, _ *config.LLMProviderConfig, _ float32) (ChatModel, error) {
		built = append(built, model)
		return &scriptedModel{name: model, text: "ok"}, nil
	}

	m, err := r.BuildModel(TaskWriting, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"gpt-4o-mini", "claude-sonnet-4-5"}, built)
	assert.Equal(t, "gpt-4o-mini", m.Name())
}
