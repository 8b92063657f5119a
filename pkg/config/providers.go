package config

import "time"

// LLMProviderType selects the wire protocol for an LLM provider.
type LLMProviderType string

const (
	LLMProviderOpenAI    LLMProviderType = "openai"
	LLMProviderAzure     LLMProviderType = "azure"
	LLMProviderOllama    LLMProviderType = "ollama"
	LLMProviderDeepSeek  LLMProviderType = "deepseek"
	LLMProviderAnthropic LLMProviderType = "anthropic"
	LLMProviderCustom    LLMProviderType = "custom"
)

// LLMProviderConfig defines one chat-model provider.
type LLMProviderConfig struct {
	// Provider type (required).
	Type LLMProviderType `yaml:"type"`

	// API key. Usually injected via {{.OPENAI_API_KEY}} expansion.
	APIKey string `yaml:"api_key,omitempty"`

	// Optional custom endpoint. Required for azure, ollama, and custom.
	BaseURL string `yaml:"base_url,omitempty"`

	// Azure API version.
	APIVersion string `yaml:"api_version,omitempty"`

	// Models served by this provider. A model name listed here routes to
	// this provider regardless of prefix rules.
	Models []string `yaml:"models,omitempty"`

	// Request timeout in seconds (default 60).
	TimeoutSeconds int `yaml:"timeout_seconds,omitempty"`

	// Completion token cap passed to the provider (default 4096).
	MaxTokens int `yaml:"max_tokens,omitempty"`
}

// Timeout returns the per-request timeout.
func (c *LLMProviderConfig) Timeout() time.Duration {
	if c.TimeoutSeconds <= 0 {
		return 60 * time.Second
	}
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// CompletionTokens returns the completion token cap.
func (c *LLMProviderConfig) CompletionTokens() int {
	if c.MaxTokens <= 0 {
		return 4096
	}
	return c.MaxTokens
}

// SearchProviderConfig defines one web-search provider's credentials and
// client limits.
type SearchProviderConfig struct {
	APIKey string `yaml:"api_key,omitempty"`

	// Optional endpoint override, mainly for tests.
	BaseURL string `yaml:"base_url,omitempty"`

	// Request timeout in seconds (default 20).
	TimeoutSeconds int `yaml:"timeout_seconds,omitempty"`

	// Client-side rate limit in requests per second (default 2).
	RequestsPerSecond float64 `yaml:"requests_per_second,omitempty"`
}

// Timeout returns the per-request timeout.
func (c *SearchProviderConfig) Timeout() time.Duration {
	if c == nil || c.TimeoutSeconds <= 0 {
		return 20 * time.Second
	}
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// RateLimit returns the client-side requests-per-second cap.
func (c *SearchProviderConfig) RateLimit() float64 {
	if c == nil || c.RequestsPerSecond <= 0 {
		return 2
	}
	return c.RequestsPerSecond
}
