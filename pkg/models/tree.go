package models

// NodeSnapshot is the compact per-node shape used in tree serializations
// and research_tree_update events.
type NodeSnapshot struct {
	ID             string          `json:"id"`
	Topic          string          `json:"topic"`
	Depth          int             `json:"depth"`
	ParentID       string          `json:"parent_id,omitempty"`
	ChildrenIDs    []string        `json:"children_ids,omitempty"`
	Status         string          `json:"status"`
	Summary        string          `json:"summary,omitempty"`
	Queries        []string        `json:"queries,omitempty"`
	Sources        []SourcePreview `json:"sources,omitempty"`
	FindingCount   int             `json:"finding_count"`
	RelevanceScore float64         `json:"relevance_score"`
	CreatedAt      int64           `json:"created_at"`
	CompletedAt    int64           `json:"completed_at,omitempty"`
}

// TreeSnapshot is the serialized research tree: enough to rebuild the
// node set and edges, compact enough for UI snapshots.
type TreeSnapshot struct {
	RootID      string         `json:"root_id,omitempty"`
	MaxDepth    int            `json:"max_depth"`
	MaxBranches int            `json:"max_branches"`
	CreatedAt   int64          `json:"created_at"`
	Nodes       []NodeSnapshot `json:"nodes"`
}
