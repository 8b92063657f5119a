package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeURL(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "strips utm tracking params",
			in:   "https://example.com/a?utm_source=nl",
			want: "https://example.com/a",
		},
		{
			name: "strips trailing slash",
			in:   "https://example.com/a/",
			want: "https://example.com/a",
		},
		{
			name: "lowercases host",
			in:   "https://EXAMPLE.com/b",
			want: "https://example.com/b",
		},
		{
			name: "keeps non-tracking query params",
			in:   "https://example.com/search?q=go&utm_medium=email",
			want: "https://example.com/search?q=go",
		},
		{
			name: "drops fragment",
			in:   "https://example.com/doc#section-2",
			want: "https://example.com/doc",
		},
		{
			name: "unparseable input falls back to lowercase trim",
			in:   "not a url/",
			want: "not a url",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeURL(tt.in))
		})
	}
}

func TestNormalizeURLEquivalence(t *testing.T) {
	// The two forms from the preview-dedupe scenario collapse to one key.
	a := NormalizeURL("https://example.com/a?utm_source=nl")
	b := NormalizeURL("https://example.com/a/")
	assert.Equal(t, a, b)

	// Case-insensitive host dedupe.
	c := NormalizeURL("https://EXAMPLE.com/b")
	d := NormalizeURL("https://example.com/b")
	assert.Equal(t, c, d)
}

func TestDedupeResults(t *testing.T) {
	results := []SearchResult{
		{Title: "first", URL: "https://example.com/a?utm_source=nl"},
		{Title: "dup", URL: "https://example.com/a/"},
		{Title: "second", URL: "https://EXAMPLE.com/b"},
		{Title: "dup2", URL: "https://example.com/b"},
		{Title: "third", URL: "https://example.com/c"},
	}

	out := DedupeResults(results)

	assert.Len(t, out, 3)
	assert.Equal(t, "first", out[0].Title)
	assert.Equal(t, "second", out[1].Title)
	assert.Equal(t, "third", out[2].Title)
}

func TestPreviews(t *testing.T) {
	results := []SearchResult{
		{Title: "a", URL: "https://example.com/a?utm_source=nl", Score: 0.9, Provider: "tavily"},
		{Title: "a-dup", URL: "https://example.com/a/", Score: 0.8},
		{Title: "b", URL: "https://example.com/b", Score: 0.7},
		{Title: "c", URL: "https://example.com/c", Score: 0.6},
	}

	previews := Previews(results, 2)

	assert.Len(t, previews, 2)
	assert.Equal(t, "https://example.com/a", previews[0].URL)
	assert.Equal(t, "tavily", previews[0].Provider)
	assert.Equal(t, "https://example.com/b", previews[1].URL)
}

func TestPreviewsClampsLimit(t *testing.T) {
	results := []SearchResult{
		{Title: "a", URL: "https://example.com/a"},
		{Title: "b", URL: "https://example.com/b"},
	}
	previews := Previews(results, 0)
	assert.Len(t, previews, 1)
}

func TestTaskModel(t *testing.T) {
	o := &Overrides{PlanningModel: "gpt-4o", GapAnalysisModel: "deepseek-reasoner"}

	assert.Equal(t, "gpt-4o", o.TaskModel("planning"))
	assert.Equal(t, "deepseek-reasoner", o.TaskModel("gap_analysis"))
	assert.Empty(t, o.TaskModel("writing"))

	var nilOverrides *Overrides
	assert.Empty(t, nilOverrides.TaskModel("planning"))
}
