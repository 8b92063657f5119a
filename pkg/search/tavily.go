package search

import (
	"context"
	"fmt"

	"github.com/delverhq/delver/pkg/config"
	"github.com/delverhq/delver/pkg/models"
)

const tavilyDefaultURL = "https://api.tavily.com/search"

// TavilyProvider wraps the Tavily search API, the engine's default
// general-purpose provider.
type TavilyProvider struct {
	apiKey  string
	baseURL string
	http    *httpClient
}

// NewTavilyProvider builds the adapter from provider config.
func NewTavilyProvider(cfg *config.SearchProviderConfig) *TavilyProvider {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = tavilyDefaultURL
	}
	return &TavilyProvider{
		apiKey:  cfg.APIKey,
		baseURL: baseURL,
		http:    newHTTPClient(cfg),
	}
}

func (p *TavilyProvider) Name() string { return "tavily" }

func (p *TavilyProvider) IsAvailable() bool {
	return ValidateAPIKey(p.Name(), p.apiKey) == nil
}

type tavilyRequest struct {
	APIKey     string `json:"api_key"`
	Query      string `json:"query"`
	MaxResults int    `json:"max_results"`
}

type tavilyResponse struct {
	Results []struct {
		Title         string  `json:"title"`
		URL           string  `json:"url"`
		Content       string  `json:"content"`
		RawContent    string  `json:"raw_content"`
		Score         float64 `json:"score"`
		PublishedDate string  `json:"published_date"`
	} `json:"results"`
}

func (p *TavilyProvider) Search(ctx context.Context, query string, maxResults int) ([]models.SearchResult, error) {
	if err := ValidateAPIKey(p.Name(), p.apiKey); err != nil {
		return nil, err
	}
	var resp tavilyResponse
	err := p.http.postJSON(ctx, p.baseURL, nil, tavilyRequest{
		APIKey:     p.apiKey,
		Query:      query,
		MaxResults: maxResults,
	}, &resp)
	if err != nil {
		return nil, fmt.Errorf("tavily search: %w", err)
	}

	results := make([]models.SearchResult, 0, len(resp.Results))
	for _, r := range resp.Results {
		results = append(results, models.SearchResult{
			Title:         r.Title,
			URL:           r.URL,
			Snippet:       r.Content,
			RawExcerpt:    r.RawContent,
			Score:         r.Score,
			PublishedDate: r.PublishedDate,
			Provider:      p.Name(),
		})
	}
	return results, nil
}
