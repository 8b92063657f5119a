package research

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/delverhq/delver/pkg/models"
)

func TestParseList(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []string
	}{
		{
			name: "fenced json array",
			in:   "Here you go:\n```json\n[\"alpha\", \"beta\"]\n```",
			want: []string{"alpha", "beta"},
		},
		{
			name: "bare json array with prose",
			in:   `Sure! ["one", "two", "three"] hope that helps`,
			want: []string{"one", "two", "three"},
		},
		{
			name: "newline bullets",
			in:   "- first query\n* second query\n3. third query",
			want: []string{"first query", "second query", "third query"},
		},
		{
			name: "bracketed non-json falls back to the raw line",
			in:   "[x for x in range(3)]",
			want: []string{"[x for x in range(3)]"},
		},
		{
			name: "empty",
			in:   "   ",
			want: nil,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseList(tt.in))
		})
	}
}

func TestExtractJSONTolerance(t *testing.T) {
	type payload struct {
		Coverage float64 `json:"overall_coverage"`
	}

	t.Run("fenced", func(t *testing.T) {
		var p payload
		require.NoError(t, ExtractJSON("```json\n{\"overall_coverage\": 0.7}\n```", &p))
		assert.Equal(t, 0.7, p.Coverage)
	})

	t.Run("surrounded by prose", func(t *testing.T) {
		var p payload
		require.NoError(t, ExtractJSON("The result is {\"overall_coverage\": 0.4} as requested.", &p))
		assert.Equal(t, 0.4, p.Coverage)
	})

	t.Run("no object", func(t *testing.T) {
		var p payload
		assert.Error(t, ExtractJSON("no json here", &p))
	})
}

func TestExtractJSONArray(t *testing.T) {
	var subs []subtopic
	text := "```\n[{\"topic\": \"history\", \"relevance\": 0.9}]\n```"
	require.NoError(t, ExtractJSONArray(text, &subs))
	require.Len(t, subs, 1)
	assert.Equal(t, "history", subs[0].Topic)
	assert.Equal(t, 0.9, subs[0].Relevance)
}

func TestParseEnough(t *testing.T) {
	assert.True(t, ParseEnough("回答: yes\n总结: all covered"))
	assert.True(t, ParseEnough("回答：Yes"))
	assert.False(t, ParseEnough("回答: no\n总结: more needed"))
	assert.False(t, ParseEnough("yes but no marker"))
}

func TestExtractSummary(t *testing.T) {
	assert.Equal(t, "key point here", ExtractSummary("回答: no\n总结: key point here"))
	assert.Equal(t, "whole text", ExtractSummary("whole text"))
	assert.Equal(t, "after colon", ExtractSummary("总结：after colon"))
}

func TestFormatResults(t *testing.T) {
	out := FormatResults([]models.SearchResult{
		{Title: "A", URL: "https://a.example", Snippet: "s", Score: 0.8, PublishedDate: "2026-01-01"},
	})
	assert.Contains(t, out, "[1] A")
	assert.Contains(t, out, "2026-01-01")
	assert.Equal(t, "(no results)", FormatResults(nil))
}
