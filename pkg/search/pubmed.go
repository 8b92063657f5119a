package search

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/delverhq/delver/pkg/config"
	"github.com/delverhq/delver/pkg/models"
)

const pubmedDefaultURL = "https://eutils.ncbi.nlm.nih.gov/entrez/eutils"

// PubMedProvider wraps the NCBI E-utilities: esearch resolves PMIDs,
// esummary hydrates them. An API key is optional (it only raises NCBI's
// rate limits), so the provider stays available without one.
type PubMedProvider struct {
	apiKey  string
	baseURL string
	http    *httpClient
}

// NewPubMedProvider builds the adapter from provider config.
func NewPubMedProvider(cfg *config.SearchProviderConfig) *PubMedProvider {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = pubmedDefaultURL
	}
	return &PubMedProvider{
		apiKey:  cfg.APIKey,
		baseURL: baseURL,
		http:    newHTTPClient(cfg),
	}
}

func (p *PubMedProvider) Name() string { return "pubmed" }

func (p *PubMedProvider) IsAvailable() bool { return true }

type pubmedSearchResponse struct {
	ESearchResult struct {
		IDList []string `json:"idlist"`
	} `json:"esearchresult"`
}

type pubmedSummaryResponse struct {
	Result map[string]any `json:"result"`
}

func (p *PubMedProvider) Search(ctx context.Context, query string, maxResults int) ([]models.SearchResult, error) {
	searchURL := fmt.Sprintf("%s/esearch.fcgi?db=pubmed&retmode=json&retmax=%d&term=%s%s",
		p.baseURL, maxResults, url.QueryEscape(query), p.keyParam())

	var searchResp pubmedSearchResponse
	if err := p.http.getJSON(ctx, searchURL, nil, &searchResp); err != nil {
		return nil, fmt.Errorf("pubmed esearch: %w", err)
	}
	ids := searchResp.ESearchResult.IDList
	if len(ids) == 0 {
		return nil, nil
	}

	summaryURL := fmt.Sprintf("%s/esummary.fcgi?db=pubmed&retmode=json&id=%s%s",
		p.baseURL, strings.Join(ids, ","), p.keyParam())

	var summaryResp pubmedSummaryResponse
	if err := p.http.getJSON(ctx, summaryURL, nil, &summaryResp); err != nil {
		return nil, fmt.Errorf("pubmed esummary: %w", err)
	}

	results := make([]models.SearchResult, 0, len(ids))
	for _, id := range ids {
		doc, ok := summaryResp.Result[id].(map[string]any)
		if !ok {
			continue
		}
		title, _ := doc["title"].(string)
		pubdate, _ := doc["pubdate"].(string)
		source, _ := doc["source"].(string)
		results = append(results, models.SearchResult{
			Title:         title,
			URL:           "https://pubmed.ncbi.nlm.nih.gov/" + id + "/",
			Snippet:       source,
			PublishedDate: pubdate,
			Provider:      p.Name(),
		})
	}
	return results, nil
}

func (p *PubMedProvider) keyParam() string {
	if strings.TrimSpace(p.apiKey) == "" {
		return ""
	}
	return "&api_key=" + url.QueryEscape(p.apiKey)
}
