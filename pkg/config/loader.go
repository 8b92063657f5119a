package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"dario.cat/mergo"
	"gopkg.in/yaml.v3"
)

// Load builds the runtime configuration: built-in defaults, overlaid with
// the YAML file at path when one exists, environment-expanded, merged, and
// normalized. An empty path or a missing file is not an error; the defaults
// (plus environment credentials) apply.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path == "" {
		cfg.Normalize()
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			slog.Info("No configuration file found, using defaults", "path", path)
			cfg.Normalize()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	data = ExpandEnv(data)

	var user Config
	if err := yaml.Unmarshal(data, &user); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	// Merge user config into defaults: non-zero user values override,
	// unset values keep their defaults.
	if err := mergo.Merge(cfg, &user, mergo.WithOverride); err != nil {
		return nil, fmt.Errorf("failed to merge config: %w", err)
	}
	if user.Settings != nil {
		if err := mergo.Merge(cfg.Settings, user.Settings, mergo.WithOverride); err != nil {
			return nil, fmt.Errorf("failed to merge settings: %w", err)
		}
		// mergo dereferences *bool and treats false as a zero value, so
		// explicit toggles are carried over by hand.
		if user.Settings.TreeExplorationEnabled != nil {
			cfg.Settings.TreeExplorationEnabled = user.Settings.TreeExplorationEnabled
		}
		if user.Settings.UseGapAnalysis != nil {
			cfg.Settings.UseGapAnalysis = user.Settings.UseGapAnalysis
		}
	}
	cfg.LLMProviders = mergeLLMProviders(DefaultConfig().LLMProviders, user.LLMProviders)
	cfg.SearchProviders = mergeSearchProviders(DefaultConfig().SearchProviders, user.SearchProviders)

	cfg.Normalize()

	slog.Info("Configuration loaded",
		"path", path,
		"llm_providers", len(cfg.LLMProviders),
		"search_providers", len(cfg.SearchProviders))
	return cfg, nil
}

// mergeLLMProviders merges built-in and user-defined LLM provider
// configurations. User-defined providers override built-ins with the
// same name.
func mergeLLMProviders(builtin, user map[string]*LLMProviderConfig) map[string]*LLMProviderConfig {
	result := make(map[string]*LLMProviderConfig, len(builtin)+len(user))
	for name, p := range builtin {
		cp := *p
		result[name] = &cp
	}
	for name, p := range user {
		if p == nil {
			continue
		}
		cp := *p
		result[name] = &cp
	}
	return result
}

// mergeSearchProviders merges built-in and user-defined search provider
// configurations. User-defined providers override built-ins with the
// same name.
func mergeSearchProviders(builtin, user map[string]*SearchProviderConfig) map[string]*SearchProviderConfig {
	result := make(map[string]*SearchProviderConfig, len(builtin)+len(user))
	for name, p := range builtin {
		cp := *p
		result[name] = &cp
	}
	for name, p := range user {
		if p == nil {
			continue
		}
		cp := *p
		result[name] = &cp
	}
	return result
}
