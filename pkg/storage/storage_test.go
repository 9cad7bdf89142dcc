package storage

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// engineFactories lets every contract test run against both implementations.
var engineFactories = map[string]func(t *testing.T) Engine{
	"memory": func(t *testing.T) Engine {
		return NewMemoryEngine()
	},
	"badger": func(t *testing.T) Engine {
		engine, err := NewBadgerEngineInMemory()
		require.NoError(t, err)
		return engine
	},
}

func forEachEngine(t *testing.T, fn func(t *testing.T, engine Engine)) {
	for name, factory := range engineFactories {
		t.Run(name, func(t *testing.T) {
			engine := factory(t)
			defer engine.Close()
			fn(t, engine)
		})
	}
}

func testNode(id string, labels ...string) *Node {
	if len(labels) == 0 {
		labels = []string{"BusinessRequirement"}
	}
	return &Node{
		ID:     NodeID(id),
		Labels: labels,
		Properties: map[string]any{
			"description": "Implement supplier tracking system",
			"priority":    float64(1),
		},
		CreatedAt: time.Now(),
	}
}

func testEdge(id, start, end, edgeType string) *Edge {
	return &Edge{
		ID:        EdgeID(id),
		StartNode: NodeID(start),
		EndNode:   NodeID(end),
		Type:      edgeType,
		Properties: map[string]any{
			"confidence": 0.624,
		},
		CreatedAt: time.Now(),
	}
}

func TestCreateAndGetNode(t *testing.T) {
	forEachEngine(t, func(t *testing.T, engine Engine) {
		node := testNode("REQ_001")
		require.NoError(t, engine.CreateNode(node))

		got, err := engine.GetNode("REQ_001")
		require.NoError(t, err)
		assert.Equal(t, NodeID("REQ_001"), got.ID)
		assert.Equal(t, []string{"BusinessRequirement"}, got.Labels)
		assert.Equal(t, "Implement supplier tracking system", got.Properties["description"])
	})
}

func TestCreateNodeDuplicate(t *testing.T) {
	forEachEngine(t, func(t *testing.T, engine Engine) {
		require.NoError(t, engine.CreateNode(testNode("REQ_001")))
		err := engine.CreateNode(testNode("REQ_001"))
		assert.ErrorIs(t, err, ErrAlreadyExists)
	})
}

func TestGetNodeNotFound(t *testing.T) {
	forEachEngine(t, func(t *testing.T, engine Engine) {
		_, err := engine.GetNode("missing")
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestUpsertNodeCreatesThenReplaces(t *testing.T) {
	forEachEngine(t, func(t *testing.T, engine Engine) {
		node := testNode("OPP_001", "AnalyticalOpportunity")
		require.NoError(t, engine.UpsertNode(node))

		updated := testNode("OPP_001", "AnalyticalOpportunity")
		updated.Properties["description"] = "Supply chain risk analytics"
		require.NoError(t, engine.UpsertNode(updated))

		got, err := engine.GetNode("OPP_001")
		require.NoError(t, err)
		assert.Equal(t, "Supply chain risk analytics", got.Properties["description"])

		count, err := engine.NodeCount()
		require.NoError(t, err)
		assert.Equal(t, int64(1), count, "upsert must never duplicate")
	})
}

func TestUpsertNodeReindexesLabels(t *testing.T) {
	forEachEngine(t, func(t *testing.T, engine Engine) {
		require.NoError(t, engine.UpsertNode(testNode("N1", "OldLabel")))
		require.NoError(t, engine.UpsertNode(testNode("N1", "NewLabel")))

		old, err := engine.GetNodesByLabel("OldLabel")
		require.NoError(t, err)
		assert.Empty(t, old)

		fresh, err := engine.GetNodesByLabel("NewLabel")
		require.NoError(t, err)
		assert.Len(t, fresh, 1)
	})
}

func TestDeleteNodeRemovesEdges(t *testing.T) {
	forEachEngine(t, func(t *testing.T, engine Engine) {
		require.NoError(t, engine.CreateNode(testNode("A")))
		require.NoError(t, engine.CreateNode(testNode("B")))
		require.NoError(t, engine.CreateEdge(testEdge("A_implies_B", "A", "B", "IMPLIES")))

		require.NoError(t, engine.DeleteNode("A"))

		_, err := engine.GetNode("A")
		assert.ErrorIs(t, err, ErrNotFound)
		_, err = engine.GetEdge("A_implies_B")
		assert.ErrorIs(t, err, ErrNotFound)

		incoming, err := engine.GetIncomingEdges("B")
		require.NoError(t, err)
		assert.Empty(t, incoming)
	})
}

func TestCreateEdgeValidation(t *testing.T) {
	forEachEngine(t, func(t *testing.T, engine Engine) {
		require.NoError(t, engine.CreateNode(testNode("A")))

		err := engine.CreateEdge(testEdge("A_implies_missing", "A", "missing", "IMPLIES"))
		assert.ErrorIs(t, err, ErrInvalidEdge)
	})
}

func TestGetEdgeBetween(t *testing.T) {
	forEachEngine(t, func(t *testing.T, engine Engine) {
		require.NoError(t, engine.CreateNode(testNode("A")))
		require.NoError(t, engine.CreateNode(testNode("B")))
		require.NoError(t, engine.CreateEdge(testEdge("e1", "A", "B", "IMPLIES")))
		require.NoError(t, engine.CreateEdge(testEdge("e2", "A", "B", "DEPENDS_ON")))

		edge, err := engine.GetEdgeBetween("A", "B", "IMPLIES")
		require.NoError(t, err)
		require.NotNil(t, edge)
		assert.Equal(t, EdgeID("e1"), edge.ID)

		none, err := engine.GetEdgeBetween("B", "A", "IMPLIES")
		require.NoError(t, err)
		assert.Nil(t, none, "direction matters")

		none, err = engine.GetEdgeBetween("A", "B", "ENABLES")
		require.NoError(t, err)
		assert.Nil(t, none)
	})
}

func TestAdjacency(t *testing.T) {
	forEachEngine(t, func(t *testing.T, engine Engine) {
		for _, id := range []string{"A", "B", "C"} {
			require.NoError(t, engine.CreateNode(testNode(id)))
		}
		require.NoError(t, engine.CreateEdge(testEdge("ab", "A", "B", "IMPLIES")))
		require.NoError(t, engine.CreateEdge(testEdge("ac", "A", "C", "IMPLIES")))
		require.NoError(t, engine.CreateEdge(testEdge("cb", "C", "B", "ENABLES")))

		out, err := engine.GetOutgoingEdges("A")
		require.NoError(t, err)
		assert.Len(t, out, 2)

		in, err := engine.GetIncomingEdges("B")
		require.NoError(t, err)
		assert.Len(t, in, 2)

		in, err = engine.GetIncomingEdges("A")
		require.NoError(t, err)
		assert.Empty(t, in)
	})
}

func TestGetNodesByLabel(t *testing.T) {
	forEachEngine(t, func(t *testing.T, engine Engine) {
		for i := 0; i < 3; i++ {
			require.NoError(t, engine.CreateNode(testNode(fmt.Sprintf("REQ_%03d", i), "BusinessRequirement")))
		}
		require.NoError(t, engine.CreateNode(testNode("ENT_001", "DomainEntity")))

		reqs, err := engine.GetNodesByLabel("BusinessRequirement")
		require.NoError(t, err)
		assert.Len(t, reqs, 3)

		entities, err := engine.GetNodesByLabel("DomainEntity")
		require.NoError(t, err)
		assert.Len(t, entities, 1)

		none, err := engine.GetNodesByLabel("InferenceRule")
		require.NoError(t, err)
		assert.Empty(t, none)
	})
}

func TestApplyBatchAtomic(t *testing.T) {
	forEachEngine(t, func(t *testing.T, engine Engine) {
		require.NoError(t, engine.CreateNode(testNode("REQ_001")))

		opp := testNode("REQ_001_OPP_001", "AnalyticalOpportunity")
		batch := &Batch{
			Nodes: []*Node{opp},
			Edges: []*Edge{
				testEdge("REQ_001_implies_REQ_001_OPP_001", "REQ_001", "REQ_001_OPP_001", "IMPLIES"),
				testEdge("REQ_001_OPP_001_depends_REQ_001", "REQ_001_OPP_001", "REQ_001", "DEPENDS_ON"),
			},
		}
		require.NoError(t, engine.ApplyBatch(batch))

		_, err := engine.GetNode("REQ_001_OPP_001")
		require.NoError(t, err)
		edge, err := engine.GetEdgeBetween("REQ_001", "REQ_001_OPP_001", "IMPLIES")
		require.NoError(t, err)
		assert.NotNil(t, edge)
	})
}

func TestApplyBatchRejectsDanglingEdge(t *testing.T) {
	forEachEngine(t, func(t *testing.T, engine Engine) {
		batch := &Batch{
			Nodes: []*Node{testNode("OPP_X", "AnalyticalOpportunity")},
			Edges: []*Edge{
				testEdge("bad", "OPP_X", "nowhere", "IMPLIES"),
			},
		}
		err := engine.ApplyBatch(batch)
		require.Error(t, err)

		// Nothing from the failed batch may be visible.
		_, err = engine.GetNode("OPP_X")
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestApplyBatchReplayIsNoOp(t *testing.T) {
	forEachEngine(t, func(t *testing.T, engine Engine) {
		require.NoError(t, engine.CreateNode(testNode("REQ_001")))

		batch := &Batch{
			Nodes: []*Node{testNode("OPP_1", "AnalyticalOpportunity")},
			Edges: []*Edge{testEdge("e1", "REQ_001", "OPP_1", "IMPLIES")},
		}
		require.NoError(t, engine.ApplyBatch(batch))
		require.NoError(t, engine.ApplyBatch(batch))

		nodes, err := engine.NodeCount()
		require.NoError(t, err)
		assert.Equal(t, int64(2), nodes)

		edges, err := engine.EdgeCount()
		require.NoError(t, err)
		assert.Equal(t, int64(1), edges)
	})
}

func TestCounts(t *testing.T) {
	forEachEngine(t, func(t *testing.T, engine Engine) {
		require.NoError(t, engine.CreateNode(testNode("A")))
		require.NoError(t, engine.CreateNode(testNode("B")))
		require.NoError(t, engine.CreateEdge(testEdge("ab", "A", "B", "IMPLIES")))

		nodes, err := engine.NodeCount()
		require.NoError(t, err)
		assert.Equal(t, int64(2), nodes)

		edges, err := engine.EdgeCount()
		require.NoError(t, err)
		assert.Equal(t, int64(1), edges)

		require.NoError(t, engine.DeleteEdge("ab"))
		edges, err = engine.EdgeCount()
		require.NoError(t, err)
		assert.Equal(t, int64(0), edges)
	})
}

func TestAllNodesAndEdges(t *testing.T) {
	forEachEngine(t, func(t *testing.T, engine Engine) {
		require.NoError(t, engine.CreateNode(testNode("A")))
		require.NoError(t, engine.CreateNode(testNode("B")))
		require.NoError(t, engine.CreateEdge(testEdge("ab", "A", "B", "IMPLIES")))

		nodes, err := engine.AllNodes()
		require.NoError(t, err)
		assert.Len(t, nodes, 2)

		edges, err := engine.AllEdges()
		require.NoError(t, err)
		assert.Len(t, edges, 1)
	})
}

func TestClosedEngine(t *testing.T) {
	forEachEngine(t, func(t *testing.T, engine Engine) {
		require.NoError(t, engine.Close())

		err := engine.CreateNode(testNode("A"))
		assert.ErrorIs(t, err, ErrStorageClosed)
		_, err = engine.GetNode("A")
		assert.ErrorIs(t, err, ErrStorageClosed)
		err = engine.ApplyBatch(&Batch{})
		assert.ErrorIs(t, err, ErrStorageClosed)

		// Double close is harmless.
		assert.NoError(t, engine.Close())
	})
}

func TestReturnedNodesAreCopies(t *testing.T) {
	forEachEngine(t, func(t *testing.T, engine Engine) {
		require.NoError(t, engine.CreateNode(testNode("A")))

		got, err := engine.GetNode("A")
		require.NoError(t, err)
		got.Properties["description"] = "mutated"

		again, err := engine.GetNode("A")
		require.NoError(t, err)
		assert.Equal(t, "Implement supplier tracking system", again.Properties["description"])
	})
}

func TestBadgerPersistence(t *testing.T) {
	dir := t.TempDir()

	engine, err := NewBadgerEngine(dir)
	require.NoError(t, err)
	require.NoError(t, engine.CreateNode(testNode("REQ_001")))
	require.NoError(t, engine.Close())

	reopened, err := NewBadgerEngine(dir)
	require.NoError(t, err)
	defer reopened.Close()

	got, err := reopened.GetNode("REQ_001")
	require.NoError(t, err)
	assert.Equal(t, "Implement supplier tracking system", got.Properties["description"])
}
