package llm

import (
	"context"
	"errors"
	"fmt"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/delverhq/delver/pkg/config"
)

// anthropicModel adapts the Anthropic Messages API.
type anthropicModel struct {
	name        string
	client      sdk.Client
	temperature float32
	maxTokens   int
}

func newAnthropicModel(model string, provider *config.LLMProviderConfig, temperature float32) (ChatModel, error) {
	if provider.APIKey == "" {
		return nil, errors.New("anthropic provider requires api_key")
	}
	opts := []option.RequestOption{
		option.WithAPIKey(provider.APIKey),
		option.WithRequestTimeout(provider.Timeout()),
	}
	if provider.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(provider.BaseURL))
	}
	return &anthropicModel{
		name:        model,
		client:      sdk.NewClient(opts...),
		temperature: temperature,
		maxTokens:   provider.CompletionTokens(),
	}, nil
}

func (m *anthropicModel) Name() string { return m.name }

func (m *anthropicModel) Complete(ctx context.Context, messages []Message) (string, error) {
	params := sdk.MessageNewParams{
		Model:       sdk.Model(m.name),
		MaxTokens:   int64(m.maxTokens),
		Temperature: sdk.Float(float64(m.temperature)),
	}
	for _, msg := range messages {
		switch msg.Role {
		case RoleSystem:
			params.System = append(params.System, sdk.TextBlockParam{Text: msg.Content})
		case RoleAssistant:
			params.Messages = append(params.Messages, sdk.NewAssistantMessage(sdk.NewTextBlock(msg.Content)))
		default:
			params.Messages = append(params.Messages, sdk.NewUserMessage(sdk.NewTextBlock(msg.Content)))
		}
	}

	resp, err := m.client.Messages.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("anthropic messages.new (%s): %w", m.name, err)
	}
	text := ""
	for _, block := range resp.Content {
		if block.Type == "text" {
			text += block.Text
		}
	}
	return text, nil
}
