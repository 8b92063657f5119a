package search

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/delverhq/delver/pkg/config"
	"github.com/delverhq/delver/pkg/models"
)

const duckduckgoDefaultURL = "https://api.duckduckgo.com/"

// DuckDuckGoProvider wraps the keyless DuckDuckGo Instant Answer API.
// Results are abstracts and related topics rather than full web hits,
// so it sits late in most profiles.
type DuckDuckGoProvider struct {
	baseURL string
	http    *httpClient
}

// NewDuckDuckGoProvider builds the adapter from provider config.
func NewDuckDuckGoProvider(cfg *config.SearchProviderConfig) *DuckDuckGoProvider {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = duckduckgoDefaultURL
	}
	return &DuckDuckGoProvider{
		baseURL: baseURL,
		http:    newHTTPClient(cfg),
	}
}

func (p *DuckDuckGoProvider) Name() string { return "duckduckgo" }

// IsAvailable is always true: the Instant Answer API needs no key.
func (p *DuckDuckGoProvider) IsAvailable() bool { return true }

type duckduckgoTopic struct {
	Text     string            `json:"Text"`
	FirstURL string            `json:"FirstURL"`
	Topics   []duckduckgoTopic `json:"Topics"`
}

type duckduckgoResponse struct {
	Heading       string            `json:"Heading"`
	AbstractText  string            `json:"AbstractText"`
	AbstractURL   string            `json:"AbstractURL"`
	RelatedTopics []duckduckgoTopic `json:"RelatedTopics"`
}

func (p *DuckDuckGoProvider) Search(ctx context.Context, query string, maxResults int) ([]models.SearchResult, error) {
	endpoint := fmt.Sprintf("%s?q=%s&format=json&no_html=1&skip_disambig=1",
		p.baseURL, url.QueryEscape(query))

	var resp duckduckgoResponse
	if err := p.http.getJSON(ctx, endpoint, nil, &resp); err != nil {
		return nil, fmt.Errorf("duckduckgo search: %w", err)
	}

	var results []models.SearchResult
	if resp.AbstractText != "" && resp.AbstractURL != "" {
		results = append(results, models.SearchResult{
			Title:    resp.Heading,
			URL:      resp.AbstractURL,
			Snippet:  resp.AbstractText,
			Provider: p.Name(),
		})
	}
	for _, topic := range flattenTopics(resp.RelatedTopics) {
		if len(results) >= maxResults {
			break
		}
		if topic.FirstURL == "" || topic.Text == "" {
			continue
		}
		results = append(results, models.SearchResult{
			Title:    topicTitle(topic.Text),
			URL:      topic.FirstURL,
			Snippet:  topic.Text,
			Provider: p.Name(),
		})
	}
	return results, nil
}

// flattenTopics expands one level of topic grouping.
func flattenTopics(topics []duckduckgoTopic) []duckduckgoTopic {
	var out []duckduckgoTopic
	for _, t := range topics {
		if len(t.Topics) > 0 {
			out = append(out, t.Topics...)
			continue
		}
		out = append(out, t)
	}
	return out
}

// topicTitle takes the leading clause of a topic text as its title.
func topicTitle(text string) string {
	if idx := strings.Index(text, " - "); idx > 0 {
		return text[:idx]
	}
	if len(text) > 80 {
		return text[:80]
	}
	return text
}
