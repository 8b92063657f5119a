package search

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/delverhq/delver/pkg/config"
	"github.com/delverhq/delver/pkg/models"
)

const semanticScholarDefaultURL = "https://api.semanticscholar.org/graph/v1/paper/search"

// SemanticScholarProvider wraps the Semantic Scholar Graph API. A key
// is optional; when present it is sent as x-api-key for higher limits.
type SemanticScholarProvider struct {
	apiKey  string
	baseURL string
	http    *httpClient
}

// NewSemanticScholarProvider builds the adapter from provider config.
func NewSemanticScholarProvider(cfg *config.SearchProviderConfig) *SemanticScholarProvider {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = semanticScholarDefaultURL
	}
	return &SemanticScholarProvider{
		apiKey:  cfg.APIKey,
		baseURL: baseURL,
		http:    newHTTPClient(cfg),
	}
}

func (p *SemanticScholarProvider) Name() string { return "semantic_scholar" }

func (p *SemanticScholarProvider) IsAvailable() bool { return true }

type semanticScholarResponse struct {
	Data []struct {
		Title           string `json:"title"`
		URL             string `json:"url"`
		Abstract        string `json:"abstract"`
		PublicationDate string `json:"publicationDate"`
	} `json:"data"`
}

func (p *SemanticScholarProvider) Search(ctx context.Context, query string, maxResults int) ([]models.SearchResult, error) {
	endpoint := fmt.Sprintf("%s?query=%s&limit=%d&fields=title,url,abstract,publicationDate",
		p.baseURL, url.QueryEscape(query), maxResults)

	headers := map[string]string{}
	if strings.TrimSpace(p.apiKey) != "" {
		headers["x-api-key"] = p.apiKey
	}

	var resp semanticScholarResponse
	if err := p.http.getJSON(ctx, endpoint, headers, &resp); err != nil {
		return nil, fmt.Errorf("semantic scholar search: %w", err)
	}

	results := make([]models.SearchResult, 0, len(resp.Data))
	for _, paper := range resp.Data {
		if paper.URL == "" {
			continue
		}
		results = append(results, models.SearchResult{
			Title:         paper.Title,
			URL:           paper.URL,
			Snippet:       paper.Abstract,
			PublishedDate: paper.PublicationDate,
			Provider:      p.Name(),
		})
	}
	return results, nil
}
