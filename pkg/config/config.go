// Package config defines the delver configuration tree: engine settings,
// server options, and provider credentials. Configuration is loaded from an
// optional YAML file with {{.VAR}} environment expansion, merged over the
// built-in defaults, then normalized. Invalid values are replaced with
// documented defaults and logged, never fatal.
package config

import (
	"fmt"
	"time"
)

// Config is the complete runtime configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Retention RetentionConfig `yaml:"retention"`
	Settings  *Settings       `yaml:"settings"`

	// LLMProviders maps provider name to its connection settings.
	LLMProviders map[string]*LLMProviderConfig `yaml:"llm_providers"`

	// SearchProviders maps search provider name to its credentials.
	SearchProviders map[string]*SearchProviderConfig `yaml:"search_providers"`

	// DefaultLLMProvider names the llm_providers entry used when a model
	// name matches no provider's model list or prefix rules.
	DefaultLLMProvider string `yaml:"default_llm_provider"`

	// ModelFallbacks maps a model name to the ordered chain of alternate
	// model names tried when the primary invocation fails.
	ModelFallbacks map[string][]string `yaml:"model_fallbacks"`
}

// ServerConfig holds HTTP server options.
type ServerConfig struct {
	Host              string `yaml:"host"`
	Port              int    `yaml:"port"`
	SSETimeoutSeconds int    `yaml:"sse_timeout_seconds"`
}

// Addr returns the listen address in host:port form.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// SSETimeout returns the maximum lifetime of one SSE stream.
func (s ServerConfig) SSETimeout() time.Duration {
	if s.SSETimeoutSeconds <= 0 {
		return 300 * time.Second
	}
	return time.Duration(s.SSETimeoutSeconds) * time.Second
}

// RetentionConfig controls the cancellation-token janitor.
type RetentionConfig struct {
	// TokenTTL is the maximum age of a token before the janitor removes it.
	TokenTTL time.Duration `yaml:"token_ttl"`

	// SweepInterval is how often the janitor loop runs.
	SweepInterval time.Duration `yaml:"sweep_interval"`
}
