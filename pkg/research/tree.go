package research

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/delverhq/delver/pkg/models"
)

// Node status lifecycle: pending → in_progress → {completed, failed,
// skipped}. Terminal transitions set CompletedAt.
const (
	NodePending    = "pending"
	NodeInProgress = "in_progress"
	NodeCompleted  = "completed"
	NodeFailed     = "failed"
	NodeSkipped    = "skipped"
)

// Node is one topic in the research tree. Fields are owned by the
// exploring branch; cross-branch access goes through Tree methods.
type Node struct {
	ID             string
	Topic          string
	Depth          int
	ParentID       string
	ChildrenIDs    []string
	Status         string
	Findings       []models.Finding
	Sources        []models.SearchResult
	Summary        string
	Queries        []string
	RelevanceScore float64
	Error          string
	CreatedAt      time.Time
	CompletedAt    time.Time
}

// Tree is the hierarchical work model for tree-mode exploration. All
// methods are safe for concurrent use; branch goroutines mutate only
// their own node's fields via the setters here.
type Tree struct {
	mu          sync.RWMutex
	rootID      string
	nodes       map[string]*Node
	maxDepth    int
	maxBranches int
	createdAt   time.Time
}

// NewTree creates an empty tree with the given caps.
func NewTree(maxDepth, maxBranches int) *Tree {
	if maxDepth < 1 {
		maxDepth = 1
	}
	if maxBranches < 1 {
		maxBranches = 1
	}
	return &Tree{
		nodes:       make(map[string]*Node),
		maxDepth:    maxDepth,
		maxBranches: maxBranches,
		createdAt:   time.Now(),
	}
}

// CreateRoot creates the depth-zero node. Subsequent calls replace the
// whole tree content only if no root exists; an existing root is
// returned unchanged.
func (t *Tree) CreateRoot(topic string) *Node {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.rootID != "" {
		return t.nodes[t.rootID]
	}
	node := &Node{
		ID:             uuid.NewString(),
		Topic:          topic,
		Status:         NodePending,
		RelevanceScore: 1,
		CreatedAt:      time.Now(),
	}
	t.rootID = node.ID
	t.nodes[node.ID] = node
	return node
}

// RootID returns the root node id, empty before CreateRoot.
func (t *Tree) RootID() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.rootID
}

// AddChild attaches a new node under parentID. The attach is rejected
// silently (nil) when the parent is unknown, already at max depth, or
// already has max branches.
func (t *Tree) AddChild(parentID, topic string, relevance float64) *Node {
	t.mu.Lock()
	defer t.mu.Unlock()
	parent, ok := t.nodes[parentID]
	if !ok {
		return nil
	}
	if parent.Depth >= t.maxDepth || len(parent.ChildrenIDs) >= t.maxBranches {
		return nil
	}
	node := &Node{
		ID:             uuid.NewString(),
		Topic:          topic,
		Depth:          parent.Depth + 1,
		ParentID:       parentID,
		Status:         NodePending,
		RelevanceScore: clamp01(relevance),
		CreatedAt:      time.Now(),
	}
	parent.ChildrenIDs = append(parent.ChildrenIDs, node.ID)
	t.nodes[node.ID] = node
	return node
}

// Get returns a node by id.
func (t *Tree) Get(id string) (*Node, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	n, ok := t.nodes[id]
	return n, ok
}

// SetStatus transitions a node. Terminal statuses stamp CompletedAt.
func (t *Tree) SetStatus(id, status string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	node, ok := t.nodes[id]
	if !ok {
		return
	}
	node.Status = status
	switch status {
	case NodeCompleted, NodeFailed, NodeSkipped:
		node.CompletedAt = time.Now()
	}
}

// SetError marks a node failed with its error text.
func (t *Tree) SetError(id, errText string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	node, ok := t.nodes[id]
	if !ok {
		return
	}
	node.Status = NodeFailed
	node.Error = errText
	node.CompletedAt = time.Now()
}

// RecordExploration stores a branch's results on its node.
func (t *Tree) RecordExploration(id string, queries []string, findings []models.Finding, sources []models.SearchResult, summary string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	node, ok := t.nodes[id]
	if !ok {
		return
	}
	node.Queries = append(node.Queries, queries...)
	node.Findings = append(node.Findings, findings...)
	node.Sources = append(node.Sources, sources...)
	node.Summary = summary
}

// NodesAtDepth returns nodes at depth d in creation order.
func (t *Tree) NodesAtDepth(d int) []*Node {
	t.mu.RLock()
	defer t.mu.RUnlock()
	var out []*Node
	t.walk(t.rootID, func(n *Node) {
		if n.Depth == d {
			out = append(out, n)
		}
	})
	return out
}

// CompletedNodes returns all nodes in completed status.
func (t *Tree) CompletedNodes() []*Node { return t.byStatus(NodeCompleted) }

// PendingNodes returns all nodes in pending status.
func (t *Tree) PendingNodes() []*Node { return t.byStatus(NodePending) }

func (t *Tree) byStatus(status string) []*Node {
	t.mu.RLock()
	defer t.mu.RUnlock()
	var out []*Node
	t.walk(t.rootID, func(n *Node) {
		if n.Status == status {
			out = append(out, n)
		}
	})
	return out
}

// walk visits nodes depth-first in child order. Callers hold the lock.
func (t *Tree) walk(id string, visit func(*Node)) {
	node, ok := t.nodes[id]
	if !ok {
		return
	}
	visit(node)
	for _, childID := range node.ChildrenIDs {
		t.walk(childID, visit)
	}
}

// AllSources returns every recorded source, deduplicated by normalized
// URL, in traversal order.
func (t *Tree) AllSources() []models.SearchResult {
	t.mu.RLock()
	defer t.mu.RUnlock()
	var all []models.SearchResult
	t.walk(t.rootID, func(n *Node) {
		all = append(all, n.Sources...)
	})
	return models.DedupeResults(all)
}

// AllFindings returns every finding in traversal order.
func (t *Tree) AllFindings() []models.Finding {
	t.mu.RLock()
	defer t.mu.RUnlock()
	var all []models.Finding
	t.walk(t.rootID, func(n *Node) {
		all = append(all, n.Findings...)
	})
	return all
}

// AllQueries returns every query in traversal order.
func (t *Tree) AllQueries() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	var all []string
	t.walk(t.rootID, func(n *Node) {
		all = append(all, n.Queries...)
	})
	return all
}

// MergedSummary renders completed nodes depth-first, indented two
// spaces per level.
func (t *Tree) MergedSummary() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	var sb strings.Builder
	t.walk(t.rootID, func(n *Node) {
		if n.Status != NodeCompleted || n.Summary == "" {
			return
		}
		indent := strings.Repeat("  ", n.Depth)
		fmt.Fprintf(&sb, "%s- %s\n%s  %s\n", indent, n.Topic, indent, n.Summary)
	})
	return sb.String()
}

// Snapshot serializes the tree into the compact UI shape.
func (t *Tree) Snapshot() *models.TreeSnapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()
	snap := &models.TreeSnapshot{
		RootID:      t.rootID,
		MaxDepth:    t.maxDepth,
		MaxBranches: t.maxBranches,
		CreatedAt:   t.createdAt.Unix(),
	}
	t.walk(t.rootID, func(n *Node) {
		entry := models.NodeSnapshot{
			ID:             n.ID,
			Topic:          n.Topic,
			Depth:          n.Depth,
			ParentID:       n.ParentID,
			ChildrenIDs:    append([]string(nil), n.ChildrenIDs...),
			Status:         n.Status,
			Summary:        n.Summary,
			Queries:        append([]string(nil), n.Queries...),
			Sources:        models.Previews(n.Sources, 5),
			FindingCount:   len(n.Findings),
			RelevanceScore: n.RelevanceScore,
			CreatedAt:      n.CreatedAt.Unix(),
		}
		if !n.CompletedAt.IsZero() {
			entry.CompletedAt = n.CompletedAt.Unix()
		}
		snap.Nodes = append(snap.Nodes, entry)
	})
	return snap
}

// FromSnapshot rebuilds a tree from its serialized form. Round-trips
// preserve the node set and edges.
func FromSnapshot(snap *models.TreeSnapshot) *Tree {
	t := NewTree(snap.MaxDepth, snap.MaxBranches)
	t.rootID = snap.RootID
	t.createdAt = time.Unix(snap.CreatedAt, 0)
	for _, e := range snap.Nodes {
		node := &Node{
			ID:             e.ID,
			Topic:          e.Topic,
			Depth:          e.Depth,
			ParentID:       e.ParentID,
			ChildrenIDs:    append([]string(nil), e.ChildrenIDs...),
			Status:         e.Status,
			Summary:        e.Summary,
			Queries:        append([]string(nil), e.Queries...),
			RelevanceScore: e.RelevanceScore,
			CreatedAt:      time.Unix(e.CreatedAt, 0),
		}
		if e.CompletedAt != 0 {
			node.CompletedAt = time.Unix(e.CompletedAt, 0)
		}
		t.nodes[e.ID] = node
	}
	return t
}
