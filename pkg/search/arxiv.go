package search

import (
	"context"
	"encoding/xml"
	"fmt"
	"net/url"
	"strings"

	"github.com/delverhq/delver/pkg/config"
	"github.com/delverhq/delver/pkg/models"
)

const arxivDefaultURL = "http://export.arxiv.org/api/query"

// ArxivProvider wraps the keyless arXiv Atom API for scientific topics.
type ArxivProvider struct {
	baseURL string
	http    *httpClient
}

// NewArxivProvider builds the adapter from provider config.
func NewArxivProvider(cfg *config.SearchProviderConfig) *ArxivProvider {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = arxivDefaultURL
	}
	return &ArxivProvider{
		baseURL: baseURL,
		http:    newHTTPClient(cfg),
	}
}

func (p *ArxivProvider) Name() string { return "arxiv" }

// IsAvailable is always true: the arXiv API needs no key.
func (p *ArxivProvider) IsAvailable() bool { return true }

type arxivFeed struct {
	Entries []struct {
		Title     string `xml:"title"`
		Summary   string `xml:"summary"`
		Published string `xml:"published"`
		Links     []struct {
			Href string `xml:"href,attr"`
			Rel  string `xml:"rel,attr"`
		} `xml:"link"`
	} `xml:"entry"`
}

func (p *ArxivProvider) Search(ctx context.Context, query string, maxResults int) ([]models.SearchResult, error) {
	endpoint := fmt.Sprintf("%s?search_query=all:%s&start=0&max_results=%d",
		p.baseURL, url.QueryEscape(query), maxResults)

	data, err := p.http.getRaw(ctx, endpoint)
	if err != nil {
		return nil, fmt.Errorf("arxiv search: %w", err)
	}

	var feed arxivFeed
	if err := xml.Unmarshal(data, &feed); err != nil {
		return nil, fmt.Errorf("arxiv feed parse: %w", err)
	}

	results := make([]models.SearchResult, 0, len(feed.Entries))
	for _, entry := range feed.Entries {
		link := ""
		for _, l := range entry.Links {
			if l.Rel == "alternate" || link == "" {
				link = l.Href
			}
		}
		if link == "" {
			continue
		}
		published := entry.Published
		if len(published) >= 10 {
			published = published[:10]
		}
		results = append(results, models.SearchResult{
			Title:         collapseWhitespace(entry.Title),
			URL:           link,
			Snippet:       collapseWhitespace(entry.Summary),
			PublishedDate: published,
			Provider:      p.Name(),
		})
	}
	return results, nil
}

// collapseWhitespace flattens the newline-wrapped text arXiv feeds carry.
func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
