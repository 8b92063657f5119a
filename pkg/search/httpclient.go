package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"golang.org/x/time/rate"

	"github.com/delverhq/delver/pkg/config"
)

// maxResponseBytes bounds provider response bodies.
const maxResponseBytes = 4 << 20

// httpClient is the shared HTTP plumbing for provider adapters: a
// bounded-timeout client plus a client-side rate limiter so a burst of
// branch searches cannot hammer one provider.
type httpClient struct {
	client  *http.Client
	limiter *rate.Limiter
}

func newHTTPClient(cfg *config.SearchProviderConfig) *httpClient {
	return &httpClient{
		client:  &http.Client{Timeout: cfg.Timeout()},
		limiter: rate.NewLimiter(rate.Limit(cfg.RateLimit()), 1),
	}
}

// getJSON performs a rate-limited GET and decodes the JSON response
// into out.
func (h *httpClient) getJSON(ctx context.Context, url string, headers map[string]string, out any) error {
	return h.doJSON(ctx, http.MethodGet, url, headers, nil, out)
}

// postJSON performs a rate-limited POST with a JSON body and decodes
// the JSON response into out.
func (h *httpClient) postJSON(ctx context.Context, url string, headers map[string]string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	return h.doJSON(ctx, http.MethodPost, url, headers, payload, out)
}

func (h *httpClient) doJSON(ctx context.Context, method, url string, headers map[string]string, body []byte, out any) error {
	if err := h.limiter.Wait(ctx); err != nil {
		return err
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("status %d: %s", resp.StatusCode, data)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// getRaw performs a rate-limited GET and returns the raw body, for
// non-JSON endpoints such as the arxiv Atom feed.
func (h *httpClient) getRaw(ctx context.Context, url string) ([]byte, error) {
	if err := h.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	resp, err := h.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("status %d: %s", resp.StatusCode, data)
	}
	return data, nil
}
