// Package bridge runs graph algorithms the storage engine has no native
// support for: it exports a bounded neighborhood into an in-memory subgraph,
// computes centrality and simple paths there, and writes scores back onto
// the stored nodes.
//
// The bridge is a stop-gap by contract, not by accident. Exporter keeps the
// inference engine decoupled from whichever store ends up providing native
// traversal; swapping in an engine with built-in centrality means replacing
// the Analyzer, not the callers.
package bridge

import (
	"sort"

	"github.com/orneryd/sowgraph/pkg/storage"
)

// Subgraph is an in-memory projection of part of the property graph.
// Centrality treats edges as undirected (relationship direction is an
// encoding choice, not a distance); path enumeration follows edge direction.
type Subgraph struct {
	nodes      map[storage.NodeID]struct{}
	undirected map[storage.NodeID][]storage.NodeID
	directed   map[storage.NodeID][]storage.NodeID

	seenDirected   map[[2]storage.NodeID]struct{}
	seenUndirected map[[2]storage.NodeID]struct{}
}

// NewSubgraph creates an empty subgraph.
func NewSubgraph() *Subgraph {
	return &Subgraph{
		nodes:          make(map[storage.NodeID]struct{}),
		undirected:     make(map[storage.NodeID][]storage.NodeID),
		directed:       make(map[storage.NodeID][]storage.NodeID),
		seenDirected:   make(map[[2]storage.NodeID]struct{}),
		seenUndirected: make(map[[2]storage.NodeID]struct{}),
	}
}

// AddEdge records a directed edge and its undirected projection. Nodes are
// added implicitly. Parallel edges between the same pair collapse to one;
// an IMPLIES edge and the reverse DEPENDS_ON edge must not double a node's
// degree.
func (g *Subgraph) AddEdge(from, to storage.NodeID) {
	g.AddNode(from)
	g.AddNode(to)
	if from == to {
		return
	}

	dkey := [2]storage.NodeID{from, to}
	if _, ok := g.seenDirected[dkey]; !ok {
		g.seenDirected[dkey] = struct{}{}
		g.directed[from] = append(g.directed[from], to)
	}

	ukey := [2]storage.NodeID{from, to}
	if to < from {
		ukey = [2]storage.NodeID{to, from}
	}
	if _, ok := g.seenUndirected[ukey]; !ok {
		g.seenUndirected[ukey] = struct{}{}
		g.undirected[from] = append(g.undirected[from], to)
		g.undirected[to] = append(g.undirected[to], from)
	}
}

// AddNode records an isolated node.
func (g *Subgraph) AddNode(id storage.NodeID) {
	g.nodes[id] = struct{}{}
}

// Len returns the node count.
func (g *Subgraph) Len() int {
	return len(g.nodes)
}

// Contains reports whether the node is part of the subgraph.
func (g *Subgraph) Contains(id storage.NodeID) bool {
	_, ok := g.nodes[id]
	return ok
}

// NodeIDs returns all node ids in ascending order.
func (g *Subgraph) NodeIDs() []storage.NodeID {
	ids := make([]storage.NodeID, 0, len(g.nodes))
	for id := range g.nodes {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// BetweennessCentrality computes Brandes betweenness over the undirected
// projection, normalized to [0,1]. Graphs with fewer than three nodes score
// zero everywhere.
func (g *Subgraph) BetweennessCentrality() map[storage.NodeID]float64 {
	ids := g.NodeIDs()
	betweenness := make(map[storage.NodeID]float64, len(ids))
	for _, id := range ids {
		betweenness[id] = 0
	}

	for _, source := range ids {
		stack := make([]storage.NodeID, 0, len(ids))
		pred := make(map[storage.NodeID][]storage.NodeID, len(ids))
		sigma := make(map[storage.NodeID]float64, len(ids))
		dist := make(map[storage.NodeID]int, len(ids))
		for _, id := range ids {
			sigma[id] = 0
			dist[id] = -1
		}
		sigma[source] = 1
		dist[source] = 0

		queue := []storage.NodeID{source}
		for len(queue) > 0 {
			current := queue[0]
			queue = queue[1:]
			stack = append(stack, current)

			for _, neighbor := range g.undirected[current] {
				if dist[neighbor] < 0 {
					dist[neighbor] = dist[current] + 1
					queue = append(queue, neighbor)
				}
				if dist[neighbor] == dist[current]+1 {
					sigma[neighbor] += sigma[current]
					pred[neighbor] = append(pred[neighbor], current)
				}
			}
		}

		delta := make(map[storage.NodeID]float64, len(ids))
		for i := len(stack) - 1; i >= 0; i-- {
			w := stack[i]
			for _, v := range pred[w] {
				delta[v] += (sigma[v] / sigma[w]) * (1 + delta[w])
			}
			if w != source {
				betweenness[w] += delta[w]
			}
		}
	}

	n := float64(len(ids))
	if n < 3 {
		for _, id := range ids {
			betweenness[id] = 0
		}
		return betweenness
	}
	// Undirected pair paths are counted twice.
	norm := 2.0 / ((n - 1) * (n - 2))
	for _, id := range ids {
		betweenness[id] *= norm / 2
	}
	return betweenness
}

// DegreeCentrality returns each node's undirected degree divided by n-1.
func (g *Subgraph) DegreeCentrality() map[storage.NodeID]float64 {
	scores := make(map[storage.NodeID]float64, len(g.nodes))
	n := float64(len(g.nodes))
	if n <= 1 {
		for id := range g.nodes {
			scores[id] = 0
		}
		return scores
	}
	for id := range g.nodes {
		scores[id] = float64(len(g.undirected[id])) / (n - 1)
	}
	return scores
}

// ClosenessCentrality returns, per node, the number of reachable nodes
// divided by the sum of shortest-path distances to them (undirected).
// Isolated nodes score zero.
func (g *Subgraph) ClosenessCentrality() map[storage.NodeID]float64 {
	scores := make(map[storage.NodeID]float64, len(g.nodes))

	for source := range g.nodes {
		dist := map[storage.NodeID]int{source: 0}
		queue := []storage.NodeID{source}
		for len(queue) > 0 {
			current := queue[0]
			queue = queue[1:]
			for _, neighbor := range g.undirected[current] {
				if _, seen := dist[neighbor]; !seen {
					dist[neighbor] = dist[current] + 1
					queue = append(queue, neighbor)
				}
			}
		}

		sum := 0
		reachable := 0
		for id, d := range dist {
			if id != source {
				sum += d
				reachable++
			}
		}
		if reachable > 0 {
			scores[source] = float64(reachable) / float64(sum)
		} else {
			scores[source] = 0
		}
	}
	return scores
}

// SimplePaths enumerates every directed path from start to end with at most
// cutoff edges and no repeated node. Results are ordered lexicographically
// by the visited node sequence, so output is deterministic.
func (g *Subgraph) SimplePaths(start, end storage.NodeID, cutoff int) [][]storage.NodeID {
	if !g.Contains(start) || !g.Contains(end) || cutoff < 1 {
		return nil
	}

	// Sorted adjacency gives deterministic enumeration order.
	next := make(map[storage.NodeID][]storage.NodeID, len(g.directed))
	for id, targets := range g.directed {
		sorted := append([]storage.NodeID(nil), targets...)
		sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
		next[id] = sorted
	}

	var (
		paths   [][]storage.NodeID
		current = []storage.NodeID{start}
		onPath  = map[storage.NodeID]struct{}{start: {}}
	)
	var walk func(node storage.NodeID)
	walk = func(node storage.NodeID) {
		if node == end {
			paths = append(paths, append([]storage.NodeID(nil), current...))
			return
		}
		if len(current)-1 >= cutoff {
			return
		}
		for _, neighbor := range next[node] {
			if _, seen := onPath[neighbor]; seen {
				continue
			}
			onPath[neighbor] = struct{}{}
			current = append(current, neighbor)
			walk(neighbor)
			current = current[:len(current)-1]
			delete(onPath, neighbor)
		}
	}
	walk(start)
	return paths
}
