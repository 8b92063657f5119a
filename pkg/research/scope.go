package research

import (
	"strings"

	"github.com/delverhq/delver/pkg/models"
)

// BranchScope isolates one branch's accumulators from its siblings.
// A fork sees the parent's state read-only and starts with empty
// accumulators of its own; the parent merges children back in
// deterministic child order after all branches finish. No locking:
// each scope is touched by exactly one goroutine, and merges happen
// after the gather point.
type BranchScope struct {
	parentSummary string
	parentQueries []string

	queries  []string
	findings []models.Finding
	sources  []models.SearchResult
	notes    []string
}

// NewBranchScope creates the root scope.
func NewBranchScope() *BranchScope {
	return &BranchScope{}
}

// Fork creates a child scope whose parent view is this scope's current
// state. Accumulators start empty.
func (s *BranchScope) Fork() *BranchScope {
	return &BranchScope{
		parentSummary: s.ParentContext(),
		parentQueries: append(append([]string(nil), s.parentQueries...), s.queries...),
	}
}

// ParentContext renders what the parent knew at fork time plus this
// scope's own notes, for use in branch prompts.
func (s *BranchScope) ParentContext() string {
	parts := make([]string, 0, 2)
	if s.parentSummary != "" {
		parts = append(parts, s.parentSummary)
	}
	if len(s.notes) > 0 {
		parts = append(parts, strings.Join(s.notes, "\n"))
	}
	return strings.Join(parts, "\n")
}

// KnownQueries returns the parent's queries plus this scope's own, so
// branches avoid repeating what any ancestor already searched.
func (s *BranchScope) KnownQueries() []string {
	return append(append([]string(nil), s.parentQueries...), s.queries...)
}

func (s *BranchScope) AddQueries(qs ...string)             { s.queries = append(s.queries, qs...) }
func (s *BranchScope) AddFindings(fs ...models.Finding)    { s.findings = append(s.findings, fs...) }
func (s *BranchScope) AddSources(rs ...models.SearchResult) { s.sources = append(s.sources, rs...) }
func (s *BranchScope) AddNote(note string) {
	if note != "" {
		s.notes = append(s.notes, note)
	}
}

func (s *BranchScope) Queries() []string             { return s.queries }
func (s *BranchScope) Findings() []models.Finding    { return s.findings }
func (s *BranchScope) Sources() []models.SearchResult { return s.sources }
func (s *BranchScope) Notes() []string               { return s.notes }

// Merge folds a child's accumulators into this scope: lists are
// concatenated in child order, sources are deduplicated by normalized
// URL against everything already merged, notes are concatenated.
func (s *BranchScope) Merge(child *BranchScope) {
	s.queries = append(s.queries, child.queries...)
	s.findings = append(s.findings, child.findings...)
	s.sources = models.DedupeResults(append(s.sources, child.sources...))
	s.notes = append(s.notes, child.notes...)
}
