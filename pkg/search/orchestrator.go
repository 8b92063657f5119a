package search

import (
	"context"
	"log/slog"
	"strings"

	"github.com/delverhq/delver/pkg/config"
	"github.com/delverhq/delver/pkg/models"
)

// Orchestrator drives ordered provider calls for one query under a
// strategy, with a keyed result cache in front.
type Orchestrator struct {
	registry *Registry
	cache    *Cache
	strategy string
}

// NewOrchestrator wires the orchestrator. An unrecognized strategy has
// already been normalized to fallback by config loading.
func NewOrchestrator(registry *Registry, cache *Cache, strategy string) *Orchestrator {
	if strategy != config.StrategyFallback && strategy != config.StrategyProfile {
		strategy = config.StrategyFallback
	}
	return &Orchestrator{registry: registry, cache: cache, strategy: strategy}
}

// Strategy returns the active strategy name.
func (o *Orchestrator) Strategy() string { return o.strategy }

// Registry exposes the provider registry, for availability checks.
func (o *Orchestrator) Registry() *Registry { return o.registry }

// Search runs one query against the profile's providers. Under both
// strategies providers are tried in profile order and the first one
// returning at least one result wins; profile mode additionally refuses
// to consider providers outside the profile. Results are normalized and
// cached. Search never fails: an exhausted profile gets one last-chance
// Tavily call, and nil only when that too comes up empty.
func (o *Orchestrator) Search(ctx context.Context, query string, maxResults int, profile []string) []models.SearchResult {
	if maxResults < 1 {
		maxResults = 1
	}
	if len(profile) == 0 {
		profile = DefaultProfile()
	}

	if cached, ok := o.cache.Get(o.strategy, maxResults, profile, query); ok {
		slog.Debug("Search cache hit", "query", query, "results", len(cached))
		return cached
	}

	results := o.run(ctx, query, maxResults, profile)
	o.cache.Put(o.strategy, maxResults, profile, query, results)
	return results
}

func (o *Orchestrator) run(ctx context.Context, query string, maxResults int, profile []string) []models.SearchResult {
	tried := make(map[string]bool, len(profile))
	for _, name := range profile {
		tried[name] = true
		provider, ok := o.registry.Get(name)
		if !ok {
			slog.Warn("Unknown provider in profile, skipping", "provider", name)
			continue
		}
		if !provider.IsAvailable() {
			slog.Debug("Provider unavailable, skipping", "provider", name)
			continue
		}

		results, err := provider.Search(ctx, query, maxResults)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			slog.Warn("Provider search failed, trying next",
				"provider", name, "error", SanitizeError(err.Error()))
			continue
		}
		if len(results) == 0 {
			continue
		}
		return Normalize(results, name, maxResults)
	}
	return o.lastChance(ctx, query, maxResults, tried)
}

// lastChanceProvider gets one extra call when the profile came up empty.
const lastChanceProvider = "tavily"

// lastChance runs the single Tavily call behind an exhausted profile.
// Skipped when Tavily already had its turn or is unavailable; a failure
// here just leaves the query with zero results.
func (o *Orchestrator) lastChance(ctx context.Context, query string, maxResults int, tried map[string]bool) []models.SearchResult {
	if tried[lastChanceProvider] || ctx.Err() != nil {
		return nil
	}
	provider, ok := o.registry.Get(lastChanceProvider)
	if !ok || !provider.IsAvailable() {
		return nil
	}

	slog.Debug("Profile exhausted, last-chance call", "provider", lastChanceProvider, "query", query)
	results, err := provider.Search(ctx, query, maxResults)
	if err != nil {
		slog.Warn("Last-chance search failed",
			"provider", lastChanceProvider, "error", SanitizeError(err.Error()))
		return nil
	}
	if len(results) == 0 {
		return nil
	}
	return Normalize(results, lastChanceProvider, maxResults)
}

// Normalize coerces raw provider results into the canonical shape:
// blank-URL entries dropped, scores clamped to [0,1] with 0.5 for
// missing, provider tagged, and the list truncated to maxResults.
func Normalize(results []models.SearchResult, provider string, maxResults int) []models.SearchResult {
	out := make([]models.SearchResult, 0, len(results))
	for _, r := range results {
		if strings.TrimSpace(r.URL) == "" {
			continue
		}
		if r.Score <= 0 {
			r.Score = 0.5
		} else if r.Score > 1 {
			r.Score = 1
		}
		if r.Provider == "" {
			r.Provider = provider
		}
		r.Title = strings.TrimSpace(r.Title)
		r.Snippet = strings.TrimSpace(r.Snippet)
		out = append(out, r)
		if len(out) >= maxResults {
			break
		}
	}
	return out
}
