package research

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/delverhq/delver/pkg/models"
)

func TestForkIsolatesAccumulators(t *testing.T) {
	parent := NewBranchScope()
	parent.AddQueries("parent query")
	parent.AddNote("parent note")

	child := parent.Fork()
	assert.Empty(t, child.Queries())
	assert.Empty(t, child.Notes())
	assert.Contains(t, child.ParentContext(), "parent note")
	assert.Equal(t, []string{"parent query"}, child.KnownQueries())

	child.AddQueries("child query")
	assert.Equal(t, []string{"parent query"}, parent.Queries())
}

func TestMergeIsDeterministic(t *testing.T) {
	parent := NewBranchScope()
	parent.AddSources(models.SearchResult{Title: "p", URL: "https://example.com/a"})

	first := parent.Fork()
	first.AddQueries("q1")
	first.AddNote("n1")
	first.AddSources(
		models.SearchResult{Title: "dup", URL: "https://example.com/a/"},
		models.SearchResult{Title: "b", URL: "https://example.com/b"},
	)

	second := parent.Fork()
	second.AddQueries("q2")
	second.AddNote("n2")
	second.AddSources(models.SearchResult{Title: "c", URL: "https://example.com/c"})

	parent.Merge(first)
	parent.Merge(second)

	assert.Equal(t, []string{"q1", "q2"}, parent.Queries())
	assert.Equal(t, []string{"n1", "n2"}, parent.Notes())

	sources := parent.Sources()
	require.Len(t, sources, 3)
	assert.Equal(t, "p", sources[0].Title)
	assert.Equal(t, "b", sources[1].Title)
	assert.Equal(t, "c", sources[2].Title)
}
