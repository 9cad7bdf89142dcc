// Package storage provides the graph-store contract the inference engine
// runs against, plus two implementations: an in-memory engine for tests and
// small datasets, and a persistent BadgerDB engine.
//
// The model is a labeled property graph: nodes carry labels and a property
// map, edges are directed, typed, and attributed. The engine never assumes a
// query language; it requires only exact-match lookups by id and
// label-filtered scans, which every implementation here supports.
//
// Design Principles:
//   - Testability through dependency injection (Engine is an interface)
//   - Thread-safe implementations
//   - True upsert semantics: UpsertNode creates or replaces, never duplicates
//   - Atomic batches: an opportunity node and its provenance edges are
//     applied as one unit, so a reader can never observe a node without its
//     edges or vice versa
//
// Example Usage:
//
//	engine := storage.NewMemoryEngine()
//	defer engine.Close()
//
//	node := &storage.Node{
//		ID:     storage.NodeID("REQ_001"),
//		Labels: []string{"BusinessRequirement"},
//		Properties: map[string]any{
//			"description": "Implement supplier tracking system",
//			"domain":      "manufacturing",
//		},
//		CreatedAt: time.Now(),
//	}
//	if err := engine.CreateNode(node); err != nil {
//		log.Fatal(err)
//	}
//
//	reqs, _ := engine.GetNodesByLabel("BusinessRequirement")
//	fmt.Printf("Found %d requirements\n", len(reqs))
package storage

import (
	"errors"
	"time"
)

// Common errors.
var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
	ErrInvalidID     = errors.New("invalid id")
	ErrInvalidData   = errors.New("invalid data")
	ErrInvalidEdge   = errors.New("invalid edge: start or end node not found")
	ErrStorageClosed = errors.New("storage closed")
)

// NodeID is a strongly-typed unique identifier for graph nodes.
type NodeID string

// EdgeID is a strongly-typed unique identifier for graph edges.
type EdgeID string

// Node is a graph vertex in the labeled property graph.
//
// Labels are type tags ("BusinessRequirement", "AnalyticalOpportunity") and
// Properties hold any JSON-serializable values. Node structs themselves are
// not thread-safe; the storage engine handles concurrency and hands out
// copies, never internal references.
type Node struct {
	ID         NodeID         `json:"id"`
	Labels     []string       `json:"labels"`
	Properties map[string]any `json:"properties"`

	CreatedAt time.Time `json:"-"`
	UpdatedAt time.Time `json:"-"`
}

// Edge is a directed, typed, attributed relationship between two nodes.
type Edge struct {
	ID         EdgeID         `json:"id"`
	StartNode  NodeID         `json:"startNode"`
	EndNode    NodeID         `json:"endNode"`
	Type       string         `json:"type"`
	Properties map[string]any `json:"properties"`

	CreatedAt time.Time `json:"-"`
}

// Batch is an atomic unit of graph mutations. All nodes and edges in a batch
// become visible together or not at all. Nodes are upserted; edges are
// upserted by id (a replayed batch with identical edge ids is a no-op rather
// than a duplicate).
type Batch struct {
	Nodes []*Node
	Edges []*Edge
}

// Engine is the storage contract for graph database operations.
//
// All implementations MUST be safe for concurrent use from multiple
// goroutines, and ApplyBatch MUST be atomic: no partially applied batch may
// ever be observable by a concurrent or subsequent reader.
//
// Implementations:
//   - MemoryEngine: in-memory, for tests and small datasets
//   - BadgerEngine: persistent disk storage via BadgerDB
type Engine interface {
	// Node operations
	CreateNode(node *Node) error
	GetNode(id NodeID) (*Node, error)
	// UpsertNode creates the node or replaces the stored version without
	// ever duplicating. It is the write primitive for idempotent replays.
	UpsertNode(node *Node) error
	DeleteNode(id NodeID) error

	// Edge operations
	CreateEdge(edge *Edge) error
	GetEdge(id EdgeID) (*Edge, error)
	DeleteEdge(id EdgeID) error
	// GetEdgeBetween returns the first edge of the given type between two
	// nodes, or nil if none exists.
	GetEdgeBetween(startID, endID NodeID, edgeType string) (*Edge, error)

	// Query operations
	GetNodesByLabel(label string) ([]*Node, error)
	GetOutgoingEdges(nodeID NodeID) ([]*Edge, error)
	GetIncomingEdges(nodeID NodeID) ([]*Edge, error)
	AllNodes() ([]*Node, error)
	AllEdges() ([]*Edge, error)

	// ApplyBatch applies all mutations in the batch atomically.
	ApplyBatch(batch *Batch) error

	// Stats
	NodeCount() (int64, error)
	EdgeCount() (int64, error)

	// Lifecycle
	Close() error
}

// CopyNode returns a deep copy of a node so callers can mutate the result
// without aliasing engine-internal state.
func CopyNode(n *Node) *Node {
	if n == nil {
		return nil
	}
	cp := &Node{
		ID:        n.ID,
		Labels:    append([]string(nil), n.Labels...),
		CreatedAt: n.CreatedAt,
		UpdatedAt: n.UpdatedAt,
	}
	if n.Properties != nil {
		cp.Properties = make(map[string]any, len(n.Properties))
		for k, v := range n.Properties {
			cp.Properties[k] = v
		}
	}
	return cp
}

// CopyEdge returns a deep copy of an edge.
func CopyEdge(e *Edge) *Edge {
	if e == nil {
		return nil
	}
	cp := &Edge{
		ID:        e.ID,
		StartNode: e.StartNode,
		EndNode:   e.EndNode,
		Type:      e.Type,
		CreatedAt: e.CreatedAt,
	}
	if e.Properties != nil {
		cp.Properties = make(map[string]any, len(e.Properties))
		for k, v := range e.Properties {
			cp.Properties[k] = v
		}
	}
	return cp
}
