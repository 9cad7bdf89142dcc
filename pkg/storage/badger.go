package storage

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
)

// Key prefixes for BadgerDB storage organization.
// Single-byte prefixes keep keys short and scans cheap.
const (
	prefixNode          = byte(0x01) // node:nodeID -> JSON(Node)
	prefixEdge          = byte(0x02) // edge:edgeID -> JSON(Edge)
	prefixLabelIndex    = byte(0x03) // label + 0x00 + nodeID -> empty
	prefixOutgoingIndex = byte(0x04) // nodeID + 0x00 + edgeID -> empty
	prefixIncomingIndex = byte(0x05) // nodeID + 0x00 + edgeID -> empty
)

// BadgerEngine provides persistent graph storage using BadgerDB.
//
// Features:
//   - ACID transactions for all operations, including whole batches
//   - Secondary indexes for label and adjacency scans
//   - Thread-safe concurrent access
//   - Automatic crash recovery
//
// Key Structure:
//   - Nodes: 0x01 + nodeID -> JSON(Node)
//   - Edges: 0x02 + edgeID -> JSON(Edge)
//   - Label Index: 0x03 + label + 0x00 + nodeID -> empty
//   - Outgoing Index: 0x04 + nodeID + 0x00 + edgeID -> empty
//   - Incoming Index: 0x05 + nodeID + 0x00 + edgeID -> empty
//
// Example:
//
//	engine, err := storage.NewBadgerEngine("./data/sowgraph")
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer engine.Close()
type BadgerEngine struct {
	db     *badger.DB
	mu     sync.RWMutex
	closed bool
}

// DefaultMemTableSize is the memtable size used when BadgerOptions does not
// override it.
const DefaultMemTableSize int64 = 16 << 20

// BadgerOptions configures the BadgerDB engine.
type BadgerOptions struct {
	// DataDir is the directory for storing data files. Required unless
	// InMemory is set.
	DataDir string

	// InMemory runs BadgerDB in memory-only mode. Useful for testing;
	// data is not persisted.
	InMemory bool

	// SyncWrites forces fsync after each write. Slower but more durable.
	SyncWrites bool

	// MemTableSize overrides the memtable size in bytes. Zero keeps
	// DefaultMemTableSize.
	MemTableSize int64

	// Logger for BadgerDB internal logging. Nil silences it.
	Logger badger.Logger
}

// NewBadgerEngine creates a persistent storage engine with default settings
// in the given directory. The directory is created if it does not exist.
func NewBadgerEngine(dataDir string) (*BadgerEngine, error) {
	return NewBadgerEngineWithOptions(BadgerOptions{DataDir: dataDir})
}

// NewBadgerEngineInMemory creates an in-memory BadgerDB for testing.
// Data is lost when the engine is closed.
func NewBadgerEngineInMemory() (*BadgerEngine, error) {
	return NewBadgerEngineWithOptions(BadgerOptions{InMemory: true})
}

// NewBadgerEngineWithOptions creates a BadgerEngine with custom settings.
func NewBadgerEngineWithOptions(opts BadgerOptions) (*BadgerEngine, error) {
	badgerOpts := badger.DefaultOptions(opts.DataDir)

	if opts.InMemory {
		badgerOpts = badgerOpts.WithInMemory(true).WithDir("").WithValueDir("")
	}
	if opts.SyncWrites {
		badgerOpts = badgerOpts.WithSyncWrites(true)
	}
	badgerOpts = badgerOpts.WithLogger(opts.Logger)

	memTableSize := opts.MemTableSize
	if memTableSize <= 0 {
		memTableSize = DefaultMemTableSize
	}

	// Constrained buffer sizes for containerized environments.
	badgerOpts = badgerOpts.
		WithMemTableSize(memTableSize).
		WithValueLogFileSize(64 << 20).
		WithNumMemtables(2).
		WithNumLevelZeroTables(2).
		WithNumLevelZeroTablesStall(4).
		WithValueThreshold(1024).
		WithBlockCacheSize(32 << 20).
		WithIndexCacheSize(16 << 20)

	db, err := badger.Open(badgerOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to open BadgerDB: %w", err)
	}

	return &BadgerEngine{db: db}, nil
}

// ============================================================================
// Key encoding helpers
// ============================================================================

func nodeKey(id NodeID) []byte {
	return append([]byte{prefixNode}, []byte(id)...)
}

func edgeKey(id EdgeID) []byte {
	return append([]byte{prefixEdge}, []byte(id)...)
}

// labelIndexKey formats prefix + label (lowercase) + 0x00 + nodeID.
func labelIndexKey(label string, nodeID NodeID) []byte {
	normalized := strings.ToLower(label)
	key := make([]byte, 0, 1+len(normalized)+1+len(nodeID))
	key = append(key, prefixLabelIndex)
	key = append(key, []byte(normalized)...)
	key = append(key, 0x00)
	key = append(key, []byte(nodeID)...)
	return key
}

func labelIndexPrefix(label string) []byte {
	normalized := strings.ToLower(label)
	key := make([]byte, 0, 1+len(normalized)+1)
	key = append(key, prefixLabelIndex)
	key = append(key, []byte(normalized)...)
	key = append(key, 0x00)
	return key
}

func adjacencyIndexKey(prefix byte, nodeID NodeID, edgeID EdgeID) []byte {
	key := make([]byte, 0, 1+len(nodeID)+1+len(edgeID))
	key = append(key, prefix)
	key = append(key, []byte(nodeID)...)
	key = append(key, 0x00)
	key = append(key, []byte(edgeID)...)
	return key
}

func adjacencyIndexPrefix(prefix byte, nodeID NodeID) []byte {
	key := make([]byte, 0, 1+len(nodeID)+1)
	key = append(key, prefix)
	key = append(key, []byte(nodeID)...)
	key = append(key, 0x00)
	return key
}

// extractEdgeIDFromIndexKey pulls the edgeID out of an adjacency index key
// (prefix + nodeID + 0x00 + edgeID).
func extractEdgeIDFromIndexKey(key []byte) EdgeID {
	for i := 1; i < len(key); i++ {
		if key[i] == 0x00 {
			return EdgeID(key[i+1:])
		}
	}
	return ""
}

// extractNodeIDFromLabelIndex pulls the nodeID out of a label index key.
func extractNodeIDFromLabelIndex(key []byte, labelLen int) NodeID {
	offset := 1 + labelLen + 1
	if offset >= len(key) {
		return ""
	}
	return NodeID(key[offset:])
}

// ============================================================================
// Serialization helpers
// ============================================================================

type serializableNode struct {
	ID         string         `json:"id"`
	Labels     []string       `json:"labels"`
	Properties map[string]any `json:"properties"`
	CreatedAt  int64          `json:"createdAt"`
	UpdatedAt  int64          `json:"updatedAt"`
}

type serializableEdge struct {
	ID         string         `json:"id"`
	StartNode  string         `json:"startNode"`
	EndNode    string         `json:"endNode"`
	Type       string         `json:"type"`
	Properties map[string]any `json:"properties"`
	CreatedAt  int64          `json:"createdAt"`
}

func encodeNode(n *Node) ([]byte, error) {
	return json.Marshal(serializableNode{
		ID:         string(n.ID),
		Labels:     n.Labels,
		Properties: n.Properties,
		CreatedAt:  n.CreatedAt.Unix(),
		UpdatedAt:  n.UpdatedAt.Unix(),
	})
}

func decodeNode(data []byte) (*Node, error) {
	var sn serializableNode
	if err := json.Unmarshal(data, &sn); err != nil {
		return nil, err
	}
	return &Node{
		ID:         NodeID(sn.ID),
		Labels:     sn.Labels,
		Properties: sn.Properties,
		CreatedAt:  unixToTime(sn.CreatedAt),
		UpdatedAt:  unixToTime(sn.UpdatedAt),
	}, nil
}

func encodeEdge(e *Edge) ([]byte, error) {
	return json.Marshal(serializableEdge{
		ID:         string(e.ID),
		StartNode:  string(e.StartNode),
		EndNode:    string(e.EndNode),
		Type:       e.Type,
		Properties: e.Properties,
		CreatedAt:  e.CreatedAt.Unix(),
	})
}

func decodeEdge(data []byte) (*Edge, error) {
	var se serializableEdge
	if err := json.Unmarshal(data, &se); err != nil {
		return nil, err
	}
	return &Edge{
		ID:         EdgeID(se.ID),
		StartNode:  NodeID(se.StartNode),
		EndNode:    NodeID(se.EndNode),
		Type:       se.Type,
		Properties: se.Properties,
		CreatedAt:  unixToTime(se.CreatedAt),
	}, nil
}

func unixToTime(unix int64) time.Time {
	if unix <= 0 {
		return time.Time{}
	}
	return time.Unix(unix, 0)
}

// ============================================================================
// Node Operations
// ============================================================================

// CreateNode creates a new node in persistent storage.
func (b *BadgerEngine) CreateNode(node *Node) error {
	if node == nil {
		return ErrInvalidData
	}
	if node.ID == "" {
		return ErrInvalidID
	}
	if err := b.checkOpen(); err != nil {
		return err
	}

	return b.db.Update(func(txn *badger.Txn) error {
		key := nodeKey(node.ID)
		_, err := txn.Get(key)
		if err == nil {
			return ErrAlreadyExists
		}
		if err != badger.ErrKeyNotFound {
			return err
		}
		return b.setNodeInTxn(txn, node, nil)
	})
}

// UpsertNode creates the node or replaces the stored version, keeping label
// indexes consistent. The original CreatedAt survives a replace when the
// incoming node does not carry one.
func (b *BadgerEngine) UpsertNode(node *Node) error {
	if node == nil {
		return ErrInvalidData
	}
	if node.ID == "" {
		return ErrInvalidID
	}
	if err := b.checkOpen(); err != nil {
		return err
	}

	return b.db.Update(func(txn *badger.Txn) error {
		return b.upsertNodeInTxn(txn, node)
	})
}

func (b *BadgerEngine) upsertNodeInTxn(txn *badger.Txn, node *Node) error {
	key := nodeKey(node.ID)
	item, err := txn.Get(key)
	if err == badger.ErrKeyNotFound {
		return b.setNodeInTxn(txn, node, nil)
	}
	if err != nil {
		return err
	}

	var existing *Node
	if err := item.Value(func(val []byte) error {
		var decodeErr error
		existing, decodeErr = decodeNode(val)
		return decodeErr
	}); err != nil {
		return err
	}
	if node.CreatedAt.IsZero() {
		node = CopyNode(node)
		node.CreatedAt = existing.CreatedAt
	}
	return b.setNodeInTxn(txn, node, existing)
}

// setNodeInTxn writes the node and rebuilds its label indexes. existing may
// be nil for fresh inserts.
func (b *BadgerEngine) setNodeInTxn(txn *badger.Txn, node *Node, existing *Node) error {
	if existing != nil {
		for _, label := range existing.Labels {
			if err := txn.Delete(labelIndexKey(label, node.ID)); err != nil {
				return err
			}
		}
	}

	stored := CopyNode(node)
	stored.UpdatedAt = time.Now()
	data, err := encodeNode(stored)
	if err != nil {
		return fmt.Errorf("failed to encode node: %w", err)
	}
	if err := txn.Set(nodeKey(node.ID), data); err != nil {
		return err
	}
	for _, label := range node.Labels {
		if err := txn.Set(labelIndexKey(label, node.ID), []byte{}); err != nil {
			return err
		}
	}
	return nil
}

// GetNode retrieves a node by id.
func (b *BadgerEngine) GetNode(id NodeID) (*Node, error) {
	if id == "" {
		return nil, ErrInvalidID
	}
	if err := b.checkOpen(); err != nil {
		return nil, err
	}

	var node *Node
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(nodeKey(id))
		if err == badger.ErrKeyNotFound {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			var decodeErr error
			node, decodeErr = decodeNode(val)
			return decodeErr
		})
	})
	return node, err
}

// DeleteNode removes a node and all its edges.
func (b *BadgerEngine) DeleteNode(id NodeID) error {
	if id == "" {
		return ErrInvalidID
	}
	if err := b.checkOpen(); err != nil {
		return err
	}

	return b.db.Update(func(txn *badger.Txn) error {
		key := nodeKey(id)
		item, err := txn.Get(key)
		if err == badger.ErrKeyNotFound {
			return ErrNotFound
		}
		if err != nil {
			return err
		}

		var node *Node
		if err := item.Value(func(val []byte) error {
			var decodeErr error
			node, decodeErr = decodeNode(val)
			return decodeErr
		}); err != nil {
			return err
		}

		for _, label := range node.Labels {
			if err := txn.Delete(labelIndexKey(label, id)); err != nil {
				return err
			}
		}
		if err := b.deleteEdgesWithPrefix(txn, adjacencyIndexPrefix(prefixOutgoingIndex, id)); err != nil {
			return err
		}
		if err := b.deleteEdgesWithPrefix(txn, adjacencyIndexPrefix(prefixIncomingIndex, id)); err != nil {
			return err
		}
		return txn.Delete(key)
	})
}

func (b *BadgerEngine) deleteEdgesWithPrefix(txn *badger.Txn, prefix []byte) error {
	opts := badger.DefaultIteratorOptions
	opts.PrefetchValues = false
	it := txn.NewIterator(opts)
	defer it.Close()

	var edgeIDs []EdgeID
	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		edgeIDs = append(edgeIDs, extractEdgeIDFromIndexKey(it.Item().KeyCopy(nil)))
	}
	for _, edgeID := range edgeIDs {
		if err := b.deleteEdgeInTxn(txn, edgeID); err != nil && err != ErrNotFound {
			return err
		}
	}
	return nil
}

// ============================================================================
// Edge Operations
// ============================================================================

// CreateEdge creates a new edge. Both endpoints must already exist.
func (b *BadgerEngine) CreateEdge(edge *Edge) error {
	if edge == nil {
		return ErrInvalidData
	}
	if edge.ID == "" {
		return ErrInvalidID
	}
	if err := b.checkOpen(); err != nil {
		return err
	}

	return b.db.Update(func(txn *badger.Txn) error {
		key := edgeKey(edge.ID)
		_, err := txn.Get(key)
		if err == nil {
			return ErrAlreadyExists
		}
		if err != badger.ErrKeyNotFound {
			return err
		}
		return b.setEdgeInTxn(txn, edge)
	})
}

// setEdgeInTxn validates endpoints and writes the edge plus its adjacency
// indexes.
func (b *BadgerEngine) setEdgeInTxn(txn *badger.Txn, edge *Edge) error {
	if _, err := txn.Get(nodeKey(edge.StartNode)); err == badger.ErrKeyNotFound {
		return ErrInvalidEdge
	} else if err != nil {
		return err
	}
	if _, err := txn.Get(nodeKey(edge.EndNode)); err == badger.ErrKeyNotFound {
		return ErrInvalidEdge
	} else if err != nil {
		return err
	}

	data, err := encodeEdge(edge)
	if err != nil {
		return fmt.Errorf("failed to encode edge: %w", err)
	}
	if err := txn.Set(edgeKey(edge.ID), data); err != nil {
		return err
	}
	if err := txn.Set(adjacencyIndexKey(prefixOutgoingIndex, edge.StartNode, edge.ID), []byte{}); err != nil {
		return err
	}
	return txn.Set(adjacencyIndexKey(prefixIncomingIndex, edge.EndNode, edge.ID), []byte{})
}

// GetEdge retrieves an edge by id.
func (b *BadgerEngine) GetEdge(id EdgeID) (*Edge, error) {
	if id == "" {
		return nil, ErrInvalidID
	}
	if err := b.checkOpen(); err != nil {
		return nil, err
	}

	var edge *Edge
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(edgeKey(id))
		if err == badger.ErrKeyNotFound {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			var decodeErr error
			edge, decodeErr = decodeEdge(val)
			return decodeErr
		})
	})
	return edge, err
}

// DeleteEdge removes an edge.
func (b *BadgerEngine) DeleteEdge(id EdgeID) error {
	if id == "" {
		return ErrInvalidID
	}
	if err := b.checkOpen(); err != nil {
		return err
	}

	return b.db.Update(func(txn *badger.Txn) error {
		return b.deleteEdgeInTxn(txn, id)
	})
}

func (b *BadgerEngine) deleteEdgeInTxn(txn *badger.Txn, id EdgeID) error {
	key := edgeKey(id)
	item, err := txn.Get(key)
	if err == badger.ErrKeyNotFound {
		return ErrNotFound
	}
	if err != nil {
		return err
	}

	var edge *Edge
	if err := item.Value(func(val []byte) error {
		var decodeErr error
		edge, decodeErr = decodeEdge(val)
		return decodeErr
	}); err != nil {
		return err
	}

	if err := txn.Delete(adjacencyIndexKey(prefixOutgoingIndex, edge.StartNode, id)); err != nil {
		return err
	}
	if err := txn.Delete(adjacencyIndexKey(prefixIncomingIndex, edge.EndNode, id)); err != nil {
		return err
	}
	return txn.Delete(key)
}

// GetEdgeBetween returns the first edge of the given type from startID to
// endID, or nil if none exists.
func (b *BadgerEngine) GetEdgeBetween(startID, endID NodeID, edgeType string) (*Edge, error) {
	if err := b.checkOpen(); err != nil {
		return nil, err
	}

	var found *Edge
	err := b.db.View(func(txn *badger.Txn) error {
		edges, err := b.edgesForPrefix(txn, adjacencyIndexPrefix(prefixOutgoingIndex, startID))
		if err != nil {
			return err
		}
		for _, edge := range edges {
			if edge.EndNode == endID && edge.Type == edgeType {
				found = edge
				return nil
			}
		}
		return nil
	})
	return found, err
}

// ============================================================================
// Query Operations
// ============================================================================

// GetNodesByLabel returns all nodes with the specified label.
func (b *BadgerEngine) GetNodesByLabel(label string) ([]*Node, error) {
	if err := b.checkOpen(); err != nil {
		return nil, err
	}

	var nodes []*Node
	err := b.db.View(func(txn *badger.Txn) error {
		prefix := labelIndexPrefix(label)
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			nodeID := extractNodeIDFromLabelIndex(it.Item().KeyCopy(nil), len(label))
			if nodeID == "" {
				continue
			}
			item, err := txn.Get(nodeKey(nodeID))
			if err != nil {
				continue // node removed concurrently
			}
			var node *Node
			if err := item.Value(func(val []byte) error {
				var decodeErr error
				node, decodeErr = decodeNode(val)
				return decodeErr
			}); err != nil {
				return err
			}
			nodes = append(nodes, node)
		}
		return nil
	})
	return nodes, err
}

// GetOutgoingEdges returns all edges starting at nodeID.
func (b *BadgerEngine) GetOutgoingEdges(nodeID NodeID) ([]*Edge, error) {
	return b.adjacentEdges(prefixOutgoingIndex, nodeID)
}

// GetIncomingEdges returns all edges ending at nodeID.
func (b *BadgerEngine) GetIncomingEdges(nodeID NodeID) ([]*Edge, error) {
	return b.adjacentEdges(prefixIncomingIndex, nodeID)
}

func (b *BadgerEngine) adjacentEdges(indexPrefix byte, nodeID NodeID) ([]*Edge, error) {
	if err := b.checkOpen(); err != nil {
		return nil, err
	}

	var edges []*Edge
	err := b.db.View(func(txn *badger.Txn) error {
		var viewErr error
		edges, viewErr = b.edgesForPrefix(txn, adjacencyIndexPrefix(indexPrefix, nodeID))
		return viewErr
	})
	return edges, err
}

func (b *BadgerEngine) edgesForPrefix(txn *badger.Txn, prefix []byte) ([]*Edge, error) {
	opts := badger.DefaultIteratorOptions
	opts.PrefetchValues = false
	it := txn.NewIterator(opts)
	defer it.Close()

	var edges []*Edge
	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		edgeID := extractEdgeIDFromIndexKey(it.Item().KeyCopy(nil))
		item, err := txn.Get(edgeKey(edgeID))
		if err != nil {
			continue // edge removed concurrently
		}
		var edge *Edge
		if err := item.Value(func(val []byte) error {
			var decodeErr error
			edge, decodeErr = decodeEdge(val)
			return decodeErr
		}); err != nil {
			return nil, err
		}
		edges = append(edges, edge)
	}
	return edges, nil
}

// AllNodes returns every stored node.
func (b *BadgerEngine) AllNodes() ([]*Node, error) {
	if err := b.checkOpen(); err != nil {
		return nil, err
	}

	var nodes []*Node
	err := b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte{prefixNode}
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var node *Node
			if err := it.Item().Value(func(val []byte) error {
				var decodeErr error
				node, decodeErr = decodeNode(val)
				return decodeErr
			}); err != nil {
				return err
			}
			nodes = append(nodes, node)
		}
		return nil
	})
	return nodes, err
}

// AllEdges returns every stored edge.
func (b *BadgerEngine) AllEdges() ([]*Edge, error) {
	if err := b.checkOpen(); err != nil {
		return nil, err
	}

	var edges []*Edge
	err := b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte{prefixEdge}
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var edge *Edge
			if err := it.Item().Value(func(val []byte) error {
				var decodeErr error
				edge, decodeErr = decodeEdge(val)
				return decodeErr
			}); err != nil {
				return err
			}
			edges = append(edges, edge)
		}
		return nil
	})
	return edges, err
}

// ApplyBatch applies all mutations in one BadgerDB transaction. Either the
// whole batch commits or none of it does.
func (b *BadgerEngine) ApplyBatch(batch *Batch) error {
	if batch == nil {
		return ErrInvalidData
	}
	if err := b.checkOpen(); err != nil {
		return err
	}

	return b.db.Update(func(txn *badger.Txn) error {
		for _, node := range batch.Nodes {
			if node == nil || node.ID == "" {
				return ErrInvalidID
			}
			if err := b.upsertNodeInTxn(txn, node); err != nil {
				return err
			}
		}
		for _, edge := range batch.Edges {
			if edge == nil || edge.ID == "" {
				return ErrInvalidID
			}
			// Upsert semantics: replace an existing edge with the same id.
			if err := b.deleteEdgeInTxn(txn, edge.ID); err != nil && err != ErrNotFound {
				return err
			}
			if err := b.setEdgeInTxn(txn, edge); err != nil {
				return err
			}
		}
		return nil
	})
}

// NodeCount returns the number of stored nodes.
func (b *BadgerEngine) NodeCount() (int64, error) {
	return b.countPrefix(prefixNode)
}

// EdgeCount returns the number of stored edges.
func (b *BadgerEngine) EdgeCount() (int64, error) {
	return b.countPrefix(prefixEdge)
}

func (b *BadgerEngine) countPrefix(prefix byte) (int64, error) {
	if err := b.checkOpen(); err != nil {
		return 0, err
	}

	var count int64
	err := b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		p := []byte{prefix}
		for it.Seek(p); it.ValidForPrefix(p); it.Next() {
			count++
		}
		return nil
	})
	return count, err
}

// Close flushes and closes the underlying BadgerDB.
func (b *BadgerEngine) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	return b.db.Close()
}

func (b *BadgerEngine) checkOpen() error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return ErrStorageClosed
	}
	return nil
}
