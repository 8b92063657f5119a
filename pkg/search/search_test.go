package search

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/delverhq/delver/pkg/config"
	"github.com/delverhq/delver/pkg/models"
)

// fakeProvider is a scriptable in-memory provider.
type fakeProvider struct {
	name      string
	available bool
	results   []models.SearchResult
	err       error
	calls     int
}

func (f *fakeProvider) Name() string      { return f.name }
func (f *fakeProvider) IsAvailable() bool { return f.available }
func (f *fakeProvider) Search(_ context.Context, _ string, _ int) ([]models.SearchResult, error) {
	f.calls++
	return f.results, f.err
}

func result(url string) models.SearchResult {
	return models.SearchResult{Title: "t", URL: url, Snippet: "s", Score: 0.9}
}

func TestValidateAPIKey(t *testing.T) {
	tests := []struct {
		name    string
		key     string
		wantErr bool
	}{
		{"empty", "", true},
		{"whitespace", "   ", true},
		{"placeholder", "your-api-key", true},
		{"placeholder case", "CHANGEME", true},
		{"too short", "short", true},
		{"valid", "tvly-abcdef123456", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateAPIKey("tavily", tt.key)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestSanitizeError(t *testing.T) {
	t.Run("redacts url", func(t *testing.T) {
		out := SanitizeError(`request to https://api.tavily.com/search?q=x failed`)
		assert.NotContains(t, out, "api.tavily.com")
		assert.Contains(t, out, "<url>")
	})
	t.Run("redacts api key param", func(t *testing.T) {
		out := SanitizeError(`bad request: api_key=sk-123secret456`)
		assert.NotContains(t, out, "sk-123secret456")
	})
	t.Run("redacts bearer token", func(t *testing.T) {
		out := SanitizeError(`auth failed: Bearer eyJhbGciOiJIUzI1NiJ9.payload`)
		assert.NotContains(t, out, "eyJhbGci")
		assert.Contains(t, out, "Bearer ***")
	})
	t.Run("redacts long base64ish blob", func(t *testing.T) {
		out := SanitizeError("token QWxhZGRpbjpvcGVuIHNlc2FtZUFsYWRkaW46b3BlbiBzZXNhbWU= leaked")
		assert.NotContains(t, out, "QWxhZGRpbjpvcGVu")
	})
	t.Run("truncates to 300", func(t *testing.T) {
		out := SanitizeError(strings.Repeat("x ", 400))
		assert.LessOrEqual(t, len(out), 300)
	})
}

func TestFallbackStrategyFirstNonEmptyWins(t *testing.T) {
	reg := NewRegistry()
	failing := &fakeProvider{name: "tavily", available: true, err: errors.New("HTTP 500")}
	empty := &fakeProvider{name: "duckduckgo", available: true}
	winning := &fakeProvider{name: "serper", available: true, results: []models.SearchResult{result("https://a.example/1")}}
	untouched := &fakeProvider{name: "exa", available: true, results: []models.SearchResult{result("https://b.example/1")}}
	for _, p := range []Provider{failing, empty, winning, untouched} {
		reg.Register(p)
	}

	o := NewOrchestrator(reg, NewCache(0), config.StrategyFallback)
	results := o.Search(context.Background(), "q", 5, []string{"tavily", "duckduckgo", "serper", "exa"})

	require.Len(t, results, 1)
	assert.Equal(t, "serper", results[0].Provider)
	assert.Equal(t, 1, failing.calls)
	assert.Equal(t, 1, empty.calls)
	assert.Equal(t, 1, winning.calls)
	assert.Zero(t, untouched.calls, "providers after the first non-empty result are not called")
}

func TestProfileStrategyIgnoresOutsiders(t *testing.T) {
	reg := NewRegistry()
	arxiv := &fakeProvider{name: "arxiv", available: true, results: []models.SearchResult{result("https://arxiv.org/abs/1")}}
	tavily := &fakeProvider{name: "tavily", available: true, results: []models.SearchResult{result("https://t.example/1")}}
	reg.Register(arxiv)
	reg.Register(tavily)

	o := NewOrchestrator(reg, NewCache(0), config.StrategyProfile)
	results := o.Search(context.Background(), "quantum error correction", 3, []string{"arxiv"})

	require.Len(t, results, 1)
	assert.Equal(t, "arxiv", results[0].Provider)
	assert.Zero(t, tavily.calls, "tavily is outside the profile")
}

func TestUnknownProfileNameSkipped(t *testing.T) {
	reg := NewRegistry()
	tavily := &fakeProvider{name: "tavily", available: true, results: []models.SearchResult{result("https://t.example/1")}}
	reg.Register(tavily)

	o := NewOrchestrator(reg, NewCache(0), config.StrategyFallback)
	results := o.Search(context.Background(), "q", 3, []string{"nonsense", "tavily"})
	require.Len(t, results, 1)
}

func TestExhaustedProfileYieldsNil(t *testing.T) {
	reg := NewRegistry()
	tavily := &fakeProvider{name: "tavily", available: true, err: errors.New("down")}
	reg.Register(tavily)

	o := NewOrchestrator(reg, NewCache(0), config.StrategyFallback)
	assert.Empty(t, o.Search(context.Background(), "q", 3, []string{"tavily"}))
	assert.Equal(t, 1, tavily.calls, "a provider that already had its turn gets no last-chance call")
}

// A profile without results falls through to one last-chance tavily
// call, even when tavily is outside the profile.
func TestExhaustedProfileGetsLastChanceTavily(t *testing.T) {
	reg := NewRegistry()
	arxiv := &fakeProvider{name: "arxiv", available: true}
	tavily := &fakeProvider{name: "tavily", available: true, results: []models.SearchResult{result("https://t.example/1")}}
	reg.Register(arxiv)
	reg.Register(tavily)

	o := NewOrchestrator(reg, NewCache(0), config.StrategyProfile)
	results := o.Search(context.Background(), "obscure preprint", 3, []string{"arxiv"})

	require.Len(t, results, 1)
	assert.Equal(t, "tavily", results[0].Provider)
	assert.Equal(t, 1, arxiv.calls)
	assert.Equal(t, 1, tavily.calls)
}

func TestSearchCachesResults(t *testing.T) {
	reg := NewRegistry()
	p := &fakeProvider{name: "tavily", available: true, results: []models.SearchResult{result("https://t.example/1")}}
	reg.Register(p)

	o := NewOrchestrator(reg, NewCache(0), config.StrategyFallback)
	first := o.Search(context.Background(), "q", 3, []string{"tavily"})
	second := o.Search(context.Background(), "q", 3, []string{"tavily"})

	assert.Equal(t, 1, p.calls, "second call must hit the cache")
	require.Len(t, second, 1)

	// Cache hits are copies: mutating one does not poison the other.
	second[0].Title = "mutated"
	assert.NotEqual(t, second[0].Title, first[0].Title)
}

func TestCacheKeyDiscriminates(t *testing.T) {
	c := NewCache(0)
	c.Put("fallback", 5, []string{"tavily"}, "q", []models.SearchResult{result("https://a/1")})

	_, ok := c.Get("profile", 5, []string{"tavily"}, "q")
	assert.False(t, ok, "strategy is part of the key")
	_, ok = c.Get("fallback", 3, []string{"tavily"}, "q")
	assert.False(t, ok, "max results is part of the key")
	_, ok = c.Get("fallback", 5, []string{"serper"}, "q")
	assert.False(t, ok, "profile is part of the key")
	_, ok = c.Get("fallback", 5, []string{"tavily"}, "q")
	assert.True(t, ok)
}

func TestNormalize(t *testing.T) {
	raw := []models.SearchResult{
		{Title: "  spaced  ", URL: "https://a/1", Score: 0},
		{URL: "", Score: 0.5},
		{Title: "over", URL: "https://a/2", Score: 3.2},
		{Title: "tagged", URL: "https://a/3", Score: 0.4, Provider: "upstream"},
		{Title: "dropped by cap", URL: "https://a/4", Score: 0.4},
	}
	out := Normalize(raw, "tavily", 3)

	require.Len(t, out, 3)
	assert.Equal(t, "spaced", out[0].Title)
	assert.Equal(t, 0.5, out[0].Score, "missing score defaults to 0.5")
	assert.Equal(t, "tavily", out[0].Provider)
	assert.Equal(t, 1.0, out[1].Score, "scores clamp to [0,1]")
	assert.Equal(t, "upstream", out[2].Provider, "existing provider tag preserved")
}

func TestDeriveProfile(t *testing.T) {
	t.Run("maps suggested sources then appends domain defaults", func(t *testing.T) {
		profile := DeriveProfile("scientific", []string{"https://arxiv.org/list/cs.AI", "https://github.com/foo"})
		assert.Equal(t, []string{"arxiv", "duckduckgo", "pubmed", "semantic_scholar", "exa", "tavily"}, profile)
	})
	t.Run("deduplicates", func(t *testing.T) {
		profile := DeriveProfile("scientific", []string{"arxiv.org", "export.arxiv.org"})
		count := 0
		for _, name := range profile {
			if name == "arxiv" {
				count++
			}
		}
		assert.Equal(t, 1, count)
	})
	t.Run("generic default", func(t *testing.T) {
		assert.Equal(t, []string{"tavily", "duckduckgo", "serper"}, DeriveProfile("", nil))
	})
}
