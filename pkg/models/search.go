package models

import (
	"net/url"
	"strings"
)

// SearchResult is one normalized hit from a search provider.
type SearchResult struct {
	Title         string  `json:"title"`
	URL           string  `json:"url"`
	Snippet       string  `json:"snippet"`
	RawExcerpt    string  `json:"raw_excerpt,omitempty"`
	Score         float64 `json:"score"`
	PublishedDate string  `json:"published_date,omitempty"`
	Provider      string  `json:"provider,omitempty"`
}

// SearchRun records one executed query with its results, for artifacts
// and freshness analysis.
type SearchRun struct {
	Query   string         `json:"query"`
	Results []SearchResult `json:"results"`
	Epoch   int            `json:"epoch"`
	Mode    string         `json:"mode,omitempty"`
}

// Finding ties a search result to the query that produced it.
type Finding struct {
	Query     string       `json:"query"`
	Result    SearchResult `json:"result"`
	Timestamp int64        `json:"ts"`
}

// SourcePreview is the compact source shape carried in
// research_node_complete events.
type SourcePreview struct {
	Title         string  `json:"title"`
	URL           string  `json:"url"`
	Provider      string  `json:"provider,omitempty"`
	PublishedDate string  `json:"published_date,omitempty"`
	Score         float64 `json:"score"`
}

// NormalizeURL canonicalizes a URL for deduplication: scheme and host
// are lowercased, the trailing slash is stripped, and common tracking
// query parameters (utm_*) are removed. Unparseable input is returned
// lowercase-trimmed so dedup still has a stable key.
func NormalizeURL(raw string) string {
	raw = strings.TrimSpace(raw)
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return strings.ToLower(strings.TrimRight(raw, "/"))
	}
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""

	q := u.Query()
	for key := range q {
		if strings.HasPrefix(strings.ToLower(key), "utm_") {
			q.Del(key)
		}
	}
	u.RawQuery = q.Encode()

	u.Path = strings.TrimRight(u.Path, "/")
	return u.String()
}

// DedupeResults removes duplicate results by normalized URL, keeping
// the first occurrence. Order is preserved.
func DedupeResults(results []SearchResult) []SearchResult {
	seen := make(map[string]struct{}, len(results))
	out := make([]SearchResult, 0, len(results))
	for _, r := range results {
		key := NormalizeURL(r.URL)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, r)
	}
	return out
}

// Previews converts results to the compact event shape, deduplicated by
// normalized URL and truncated to limit entries.
func Previews(results []SearchResult, limit int) []SourcePreview {
	if limit < 1 {
		limit = 1
	}
	deduped := DedupeResults(results)
	if len(deduped) > limit {
		deduped = deduped[:limit]
	}
	previews := make([]SourcePreview, 0, len(deduped))
	for _, r := range deduped {
		previews = append(previews, SourcePreview{
			Title:         r.Title,
			URL:           NormalizeURL(r.URL),
			Provider:      r.Provider,
			PublishedDate: r.PublishedDate,
			Score:         r.Score,
		})
	}
	return previews
}
