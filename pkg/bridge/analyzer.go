package bridge

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/orneryd/sowgraph/pkg/storage"
)

// Node property keys written back by centrality analysis.
const (
	PropBetweenness = "centrality_betweenness"
	PropDegree      = "centrality_degree"
	PropCloseness   = "centrality_closeness"
	PropCombined    = "centrality_combined"
	PropUpdated     = "centrality_updated"
)

// Config holds the bridge constants.
type Config struct {
	// Combined-score weights. They should sum to 1 but are not enforced;
	// the combined score is a ranking signal, not a probability.
	BetweennessWeight float64
	DegreeWeight      float64
	ClosenessWeight   float64

	// MaxDepth bounds neighborhood export; requested depths clamp to
	// [1, MaxDepth].
	MaxDepth int

	// PathCutoff bounds simple-path enumeration, which is exponential in
	// the worst case.
	PathCutoff int

	// MaxNodes caps exported subgraph size.
	MaxNodes int
}

// DefaultConfig returns the calibrated bridge constants.
func DefaultConfig() *Config {
	return &Config{
		BetweennessWeight: 0.4,
		DegreeWeight:      0.3,
		ClosenessWeight:   0.3,
		MaxDepth:          4,
		PathCutoff:        4,
		MaxNodes:          1000,
	}
}

// CentralityScores are the per-node results of a centrality run.
type CentralityScores struct {
	Betweenness float64 `json:"betweenness"`
	Degree      float64 `json:"degree"`
	Closeness   float64 `json:"closeness"`
	Combined    float64 `json:"combined"`
}

// Exporter is the abstract bridge contract: project part of the stored
// graph into memory. Analyzer implements it over a storage.Engine; a store
// with native traversal support can provide its own.
type Exporter interface {
	ExportNeighborhood(ctx context.Context, root storage.NodeID, depth int) (*Subgraph, error)
}

// Analyzer exports subgraphs from a storage engine, runs centrality and
// path algorithms, and imports scores back.
type Analyzer struct {
	store storage.Engine
	cfg   *Config

	now func() time.Time
}

// NewAnalyzer creates an analyzer over the given store. A nil cfg uses
// defaults.
func NewAnalyzer(store storage.Engine, cfg *Config) *Analyzer {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	return &Analyzer{store: store, cfg: cfg, now: time.Now}
}

// ExportNeighborhood walks outgoing and incoming edges breadth-first from
// root up to depth hops (clamped to [1, MaxDepth]) and returns the induced
// subgraph. Export stops early at MaxNodes.
func (a *Analyzer) ExportNeighborhood(ctx context.Context, root storage.NodeID, depth int) (*Subgraph, error) {
	if depth < 1 {
		depth = 1
	}
	if depth > a.cfg.MaxDepth {
		depth = a.cfg.MaxDepth
	}

	if _, err := a.store.GetNode(root); err != nil {
		return nil, fmt.Errorf("failed to export neighborhood of %s: %w", root, err)
	}

	graph := NewSubgraph()
	graph.AddNode(root)

	frontier := []storage.NodeID{root}
	visited := map[storage.NodeID]struct{}{root: {}}

	for hop := 0; hop < depth && len(frontier) > 0; hop++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		var next []storage.NodeID
		for _, nodeID := range frontier {
			outgoing, err := a.store.GetOutgoingEdges(nodeID)
			if err != nil {
				return nil, fmt.Errorf("failed to read edges of %s: %w", nodeID, err)
			}
			incoming, err := a.store.GetIncomingEdges(nodeID)
			if err != nil {
				return nil, fmt.Errorf("failed to read edges of %s: %w", nodeID, err)
			}

			for _, edge := range outgoing {
				graph.AddEdge(edge.StartNode, edge.EndNode)
				if _, seen := visited[edge.EndNode]; !seen {
					visited[edge.EndNode] = struct{}{}
					next = append(next, edge.EndNode)
				}
			}
			for _, edge := range incoming {
				graph.AddEdge(edge.StartNode, edge.EndNode)
				if _, seen := visited[edge.StartNode]; !seen {
					visited[edge.StartNode] = struct{}{}
					next = append(next, edge.StartNode)
				}
			}
			if graph.Len() >= a.cfg.MaxNodes {
				return graph, nil
			}
		}
		frontier = next
	}
	return graph, nil
}

// RunCentrality exports the neighborhood of root, computes betweenness,
// degree, and closeness centrality plus the weighted combined score, writes
// the scores back onto the stored nodes, and returns them.
func (a *Analyzer) RunCentrality(ctx context.Context, root storage.NodeID, depth int) (map[storage.NodeID]CentralityScores, error) {
	graph, err := a.ExportNeighborhood(ctx, root, depth)
	if err != nil {
		return nil, err
	}
	if graph.Len() < 2 {
		log.Printf("bridge: neighborhood of %s too small for centrality", root)
		return map[storage.NodeID]CentralityScores{}, nil
	}

	betweenness := graph.BetweennessCentrality()
	degree := graph.DegreeCentrality()
	closeness := graph.ClosenessCentrality()

	scores := make(map[storage.NodeID]CentralityScores, graph.Len())
	for _, id := range graph.NodeIDs() {
		scores[id] = CentralityScores{
			Betweenness: betweenness[id],
			Degree:      degree[id],
			Closeness:   closeness[id],
			Combined: betweenness[id]*a.cfg.BetweennessWeight +
				degree[id]*a.cfg.DegreeWeight +
				closeness[id]*a.cfg.ClosenessWeight,
		}
	}

	if err := a.ImportScores(ctx, scores); err != nil {
		return scores, err
	}
	log.Printf("bridge: analyzed centrality for %d nodes around %s", len(scores), root)
	return scores, nil
}

// ImportScores writes centrality results back as node properties.
func (a *Analyzer) ImportScores(ctx context.Context, scores map[storage.NodeID]CentralityScores) error {
	stamp := a.now().UTC().Format(time.RFC3339)
	for id, s := range scores {
		if err := ctx.Err(); err != nil {
			return err
		}
		node, err := a.store.GetNode(id)
		if err != nil {
			return fmt.Errorf("failed to import scores for %s: %w", id, err)
		}
		if node.Properties == nil {
			node.Properties = make(map[string]any)
		}
		node.Properties[PropBetweenness] = s.Betweenness
		node.Properties[PropDegree] = s.Degree
		node.Properties[PropCloseness] = s.Closeness
		node.Properties[PropCombined] = s.Combined
		node.Properties[PropUpdated] = stamp
		if err := a.store.UpsertNode(node); err != nil {
			return fmt.Errorf("failed to import scores for %s: %w", id, err)
		}
	}
	return nil
}

// FindCriticalPaths enumerates the simple directed paths from a requirement
// to an opportunity within the path cutoff. Useful for auditing how a
// discovery chain hangs together.
func (a *Analyzer) FindCriticalPaths(ctx context.Context, startID, endID storage.NodeID) ([][]storage.NodeID, error) {
	graph, err := a.ExportNeighborhood(ctx, startID, a.cfg.PathCutoff)
	if err != nil {
		return nil, err
	}
	paths := graph.SimplePaths(startID, endID, a.cfg.PathCutoff)
	log.Printf("bridge: found %d paths from %s to %s", len(paths), startID, endID)
	return paths, nil
}
