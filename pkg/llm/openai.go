package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	openai "github.com/sashabaranov/go-openai"

	"github.com/delverhq/delver/pkg/config"
)

// defaultBaseURLs for OpenAI-compatible providers that serve a fixed
// endpoint. Azure, Ollama, and custom providers must configure one.
var defaultBaseURLs = map[config.LLMProviderType]string{
	config.LLMProviderDeepSeek: "https://api.deepseek.com/v1",
}

// openaiModel adapts the OpenAI Chat Completions wire protocol, which
// also serves Azure OpenAI, Ollama-compatible endpoints, DeepSeek, and
// custom gateways.
type openaiModel struct {
	name        string
	client      *openai.Client
	temperature float32
	maxTokens   int
}

func newOpenAIModel(model string, provider *config.LLMProviderConfig, temperature float32) (ChatModel, error) {
	var clientCfg openai.ClientConfig
	switch provider.Type {
	case config.LLMProviderAzure:
		if provider.BaseURL == "" {
			return nil, errors.New("azure provider requires base_url")
		}
		clientCfg = openai.DefaultAzureConfig(provider.APIKey, provider.BaseURL)
		if provider.APIVersion != "" {
			clientCfg.APIVersion = provider.APIVersion
		}
	case config.LLMProviderOllama, config.LLMProviderCustom:
		if provider.BaseURL == "" {
			return nil, fmt.Errorf("%s provider requires base_url", provider.Type)
		}
		clientCfg = openai.DefaultConfig(provider.APIKey)
		clientCfg.BaseURL = provider.BaseURL
	default:
		if provider.APIKey == "" {
			return nil, fmt.Errorf("%s provider requires api_key", provider.Type)
		}
		clientCfg = openai.DefaultConfig(provider.APIKey)
		if provider.BaseURL != "" {
			clientCfg.BaseURL = provider.BaseURL
		} else if url, ok := defaultBaseURLs[provider.Type]; ok {
			clientCfg.BaseURL = url
		}
	}
	clientCfg.HTTPClient = &http.Client{Timeout: provider.Timeout()}

	return &openaiModel{
		name:        model,
		client:      openai.NewClientWithConfig(clientCfg),
		temperature: temperature,
		maxTokens:   provider.CompletionTokens(),
	}, nil
}

func (m *openaiModel) Name() string { return m.name }

func (m *openaiModel) Complete(ctx context.Context, messages []Message) (string, error) {
	req := openai.ChatCompletionRequest{
		Model:       m.name,
		Temperature: m.temperature,
		MaxTokens:   m.maxTokens,
		Messages:    make([]openai.ChatCompletionMessage, 0, len(messages)),
	}
	for _, msg := range messages {
		req.Messages = append(req.Messages, openai.ChatCompletionMessage{
			Role:    msg.Role,
			Content: msg.Content,
		})
	}

	resp, err := m.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("chat completion (%s): %w", m.name, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("chat completion (%s): empty choices", m.name)
	}
	return resp.Choices[0].Message.Content, nil
}
