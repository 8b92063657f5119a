package search

import (
	"context"
	"fmt"

	"github.com/delverhq/delver/pkg/config"
	"github.com/delverhq/delver/pkg/models"
)

const serperDefaultURL = "https://google.serper.dev/search"

// SerperProvider wraps the Serper Google-search API.
type SerperProvider struct {
	apiKey  string
	baseURL string
	http    *httpClient
}

// NewSerperProvider builds the adapter from provider config.
func NewSerperProvider(cfg *config.SearchProviderConfig) *SerperProvider {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = serperDefaultURL
	}
	return &SerperProvider{
		apiKey:  cfg.APIKey,
		baseURL: baseURL,
		http:    newHTTPClient(cfg),
	}
}

func (p *SerperProvider) Name() string { return "serper" }

func (p *SerperProvider) IsAvailable() bool {
	return ValidateAPIKey(p.Name(), p.apiKey) == nil
}

type serperResponse struct {
	Organic []struct {
		Title   string `json:"title"`
		Link    string `json:"link"`
		Snippet string `json:"snippet"`
		Date    string `json:"date"`
	} `json:"organic"`
}

func (p *SerperProvider) Search(ctx context.Context, query string, maxResults int) ([]models.SearchResult, error) {
	if err := ValidateAPIKey(p.Name(), p.apiKey); err != nil {
		return nil, err
	}
	var resp serperResponse
	err := p.http.postJSON(ctx, p.baseURL,
		map[string]string{"X-API-KEY": p.apiKey},
		map[string]any{"q": query, "num": maxResults},
		&resp)
	if err != nil {
		return nil, fmt.Errorf("serper search: %w", err)
	}

	results := make([]models.SearchResult, 0, len(resp.Organic))
	for i, r := range resp.Organic {
		if i >= maxResults {
			break
		}
		results = append(results, models.SearchResult{
			Title:         r.Title,
			URL:           r.Link,
			Snippet:       r.Snippet,
			PublishedDate: r.Date,
			Provider:      p.Name(),
		})
	}
	return results, nil
}
