package search

import (
	"context"
	"fmt"

	"github.com/delverhq/delver/pkg/config"
	"github.com/delverhq/delver/pkg/models"
)

const exaDefaultURL = "https://api.exa.ai/search"

// ExaProvider wraps the Exa neural search API.
type ExaProvider struct {
	apiKey  string
	baseURL string
	http    *httpClient
}

// NewExaProvider builds the adapter from provider config.
func NewExaProvider(cfg *config.SearchProviderConfig) *ExaProvider {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = exaDefaultURL
	}
	return &ExaProvider{
		apiKey:  cfg.APIKey,
		baseURL: baseURL,
		http:    newHTTPClient(cfg),
	}
}

func (p *ExaProvider) Name() string { return "exa" }

func (p *ExaProvider) IsAvailable() bool {
	return ValidateAPIKey(p.Name(), p.apiKey) == nil
}

type exaResponse struct {
	Results []struct {
		Title         string  `json:"title"`
		URL           string  `json:"url"`
		Text          string  `json:"text"`
		Score         float64 `json:"score"`
		PublishedDate string  `json:"publishedDate"`
	} `json:"results"`
}

func (p *ExaProvider) Search(ctx context.Context, query string, maxResults int) ([]models.SearchResult, error) {
	if err := ValidateAPIKey(p.Name(), p.apiKey); err != nil {
		return nil, err
	}
	var resp exaResponse
	err := p.http.postJSON(ctx, p.baseURL,
		map[string]string{"x-api-key": p.apiKey},
		map[string]any{"query": query, "numResults": maxResults, "contents": map[string]any{"text": true}},
		&resp)
	if err != nil {
		return nil, fmt.Errorf("exa search: %w", err)
	}

	results := make([]models.SearchResult, 0, len(resp.Results))
	for _, r := range resp.Results {
		results = append(results, models.SearchResult{
			Title:         r.Title,
			URL:           r.URL,
			Snippet:       r.Text,
			Score:         r.Score,
			PublishedDate: r.PublishedDate,
			Provider:      p.Name(),
		})
	}
	return results, nil
}
