// Package crawl hydrates thin search results: an HTTP fetcher that
// extracts readable text from HTML pages and PDF documents.
package crawl

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ledongthuc/pdf"
	"golang.org/x/net/html"

	"github.com/delverhq/delver/pkg/version"
)

// maxBodyBytes bounds fetched documents.
const maxBodyBytes = 8 << 20

// maxExtractChars bounds extracted text per page.
const maxExtractChars = 8000

// Crawler fetches a URL and returns its readable text.
type Crawler interface {
	Fetch(ctx context.Context, url string) (string, error)
}

// HTTPCrawler is the production Crawler: plain GET with a bounded
// timeout, HTML text extraction, and PDF extraction for
// application/pdf responses.
type HTTPCrawler struct {
	client *http.Client
}

// NewHTTPCrawler creates a crawler with the given per-fetch timeout.
func NewHTTPCrawler(timeout time.Duration) *HTTPCrawler {
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &HTTPCrawler{client: &http.Client{Timeout: timeout}}
}

// Fetch downloads the URL and returns extracted text, truncated to a
// bounded length.
func (c *HTTPCrawler) Fetch(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", version.Full())
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/pdf,*/*")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("status %d fetching %s", resp.StatusCode, url)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return "", fmt.Errorf("read body: %w", err)
	}

	contentType := resp.Header.Get("Content-Type")
	var text string
	switch {
	case strings.Contains(contentType, "application/pdf") || bytes.HasPrefix(body, []byte("%PDF")):
		text, err = ExtractPDFText(body)
	default:
		text, err = ExtractHTMLText(body)
	}
	if err != nil {
		return "", err
	}
	if len(text) > maxExtractChars {
		text = text[:maxExtractChars]
	}
	return text, nil
}

// skipElements are HTML elements whose text content is never readable
// prose.
var skipElements = map[string]struct{}{
	"script": {}, "style": {}, "noscript": {}, "svg": {},
	"head": {}, "nav": {}, "footer": {}, "iframe": {},
}

// ExtractHTMLText walks the HTML tree and joins visible text nodes,
// collapsing runs of whitespace to single spaces.
func ExtractHTMLText(body []byte) (string, error) {
	doc, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("parse html: %w", err)
	}

	var sb strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			if _, skip := skipElements[n.Data]; skip {
				return
			}
		}
		if n.Type == html.TextNode {
			if text := strings.Join(strings.Fields(n.Data), " "); text != "" {
				if sb.Len() > 0 {
					sb.WriteByte(' ')
				}
				sb.WriteString(text)
			}
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(doc)
	return sb.String(), nil
}

// ExtractPDFText extracts plain text from a PDF document.
func ExtractPDFText(body []byte) (string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(body), int64(len(body)))
	if err != nil {
		return "", fmt.Errorf("parse pdf: %w", err)
	}
	plain, err := reader.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("extract pdf text: %w", err)
	}
	text, err := io.ReadAll(plain)
	if err != nil {
		return "", fmt.Errorf("read pdf text: %w", err)
	}
	return strings.Join(strings.Fields(string(text)), " "), nil
}
