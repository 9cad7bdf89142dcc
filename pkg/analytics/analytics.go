// Package analytics provides read-only projections over the SOW graph:
// discovery method breakdowns, complexity distribution, value rankings,
// rule performance, and a nodes-and-edges view for external renderers.
//
// Everything here works over value snapshots read from the store at call
// time. No method mutates the graph.
package analytics

import (
	"fmt"
	"sort"

	"github.com/orneryd/sowgraph/pkg/sow"
	"github.com/orneryd/sowgraph/pkg/storage"
)

// Service answers analytical queries against a graph store.
type Service struct {
	store storage.Engine
}

// NewService creates an analytics service over the given store.
func NewService(store storage.Engine) *Service {
	return &Service{store: store}
}

// MethodStats summarizes the opportunities found by one discovery method.
type MethodStats struct {
	Method        sow.DiscoveryMethod `json:"method"`
	Count         int                 `json:"count"`
	AvgConfidence float64             `json:"avg_confidence"`
	TotalValue    float64             `json:"total_value"`
}

// ByDiscoveryMethod groups all opportunities by how they were found.
// Results are ordered by method name for stable output.
func (s *Service) ByDiscoveryMethod() ([]MethodStats, error) {
	opportunities, err := s.opportunities()
	if err != nil {
		return nil, err
	}

	byMethod := make(map[sow.DiscoveryMethod]*MethodStats)
	for _, opp := range opportunities {
		stats, ok := byMethod[opp.DiscoveryMethod]
		if !ok {
			stats = &MethodStats{Method: opp.DiscoveryMethod}
			byMethod[opp.DiscoveryMethod] = stats
		}
		stats.Count++
		stats.AvgConfidence += opp.ConfidenceScore
		stats.TotalValue += opp.BusinessValue
	}

	out := make([]MethodStats, 0, len(byMethod))
	for _, stats := range byMethod {
		stats.AvgConfidence /= float64(stats.Count)
		out = append(out, *stats)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Method < out[j].Method })
	return out, nil
}

// ComplexityHistogram counts opportunities per complexity level.
func (s *Service) ComplexityHistogram() (map[sow.Complexity]int, error) {
	opportunities, err := s.opportunities()
	if err != nil {
		return nil, err
	}
	histogram := make(map[sow.Complexity]int)
	for _, opp := range opportunities {
		histogram[opp.Complexity]++
	}
	return histogram, nil
}

// TopByBusinessValue returns the n highest-value opportunities, ties broken
// by id ascending.
func (s *Service) TopByBusinessValue(n int) ([]*sow.AnalyticalOpportunity, error) {
	opportunities, err := s.opportunities()
	if err != nil {
		return nil, err
	}
	sort.Slice(opportunities, func(i, j int) bool {
		if opportunities[i].BusinessValue != opportunities[j].BusinessValue {
			return opportunities[i].BusinessValue > opportunities[j].BusinessValue
		}
		return opportunities[i].ID < opportunities[j].ID
	})
	if n >= 0 && len(opportunities) > n {
		opportunities = opportunities[:n]
	}
	return opportunities, nil
}

// RuleTypeStats aggregates catalog performance per rule type.
type RuleTypeStats struct {
	RuleType      sow.RuleType `json:"rule_type"`
	Rules         int          `json:"rules"`
	AvgSuccess    float64      `json:"avg_success"`
	AvgConfidence float64      `json:"avg_confidence"`
	TotalUsage    int64        `json:"total_usage"`
}

// RulePerformance summarizes the loaded rules by type, ordered by type
// name.
func (s *Service) RulePerformance() ([]RuleTypeStats, error) {
	nodes, err := s.store.GetNodesByLabel(sow.LabelRule)
	if err != nil {
		return nil, fmt.Errorf("failed to load rules: %w", err)
	}

	byType := make(map[sow.RuleType]*RuleTypeStats)
	for _, node := range nodes {
		rule := sow.RuleFromNode(node)
		stats, ok := byType[rule.RuleType]
		if !ok {
			stats = &RuleTypeStats{RuleType: rule.RuleType}
			byType[rule.RuleType] = stats
		}
		stats.Rules++
		stats.AvgSuccess += rule.SuccessRate
		stats.AvgConfidence += rule.ConfidenceWeight
		stats.TotalUsage += rule.UsageCount
	}

	out := make([]RuleTypeStats, 0, len(byType))
	for _, stats := range byType {
		stats.AvgSuccess /= float64(stats.Rules)
		stats.AvgConfidence /= float64(stats.Rules)
		out = append(out, *stats)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RuleType < out[j].RuleType })
	return out, nil
}

// GraphNode is one vertex of a graph view, shaped for external renderers.
type GraphNode struct {
	ID         string         `json:"id"`
	Labels     []string       `json:"labels"`
	Properties map[string]any `json:"properties"`
}

// GraphEdge is one relationship of a graph view.
type GraphEdge struct {
	ID         string         `json:"id"`
	Source     string         `json:"source"`
	Target     string         `json:"target"`
	Type       string         `json:"type"`
	Properties map[string]any `json:"properties"`
}

// GraphView is a nodes-and-edges projection of a requirement's discovery
// neighborhood. Rendering itself is out of scope; this is the wire shape
// renderers consume.
type GraphView struct {
	Nodes []GraphNode `json:"nodes"`
	Edges []GraphEdge `json:"edges"`
}

// RequirementGraph projects a requirement and everything one hop around it:
// its discovered opportunities, contributing rules, and enabling entities.
// Output ordering is deterministic (node and edge ids ascending).
func (s *Service) RequirementGraph(requirementID string) (*GraphView, error) {
	root, err := s.store.GetNode(storage.NodeID(requirementID))
	if err != nil {
		return nil, fmt.Errorf("requirement %s: %w", requirementID, err)
	}

	seen := map[storage.NodeID]*storage.Node{root.ID: root}
	var edges []*storage.Edge

	outgoing, err := s.store.GetOutgoingEdges(root.ID)
	if err != nil {
		return nil, err
	}
	incoming, err := s.store.GetIncomingEdges(root.ID)
	if err != nil {
		return nil, err
	}
	edges = append(edges, outgoing...)
	edges = append(edges, incoming...)

	// Pull in each connected opportunity's own neighborhood so rule and
	// entity provenance shows up in the view.
	for _, edge := range append(append([]*storage.Edge(nil), outgoing...), incoming...) {
		for _, id := range []storage.NodeID{edge.StartNode, edge.EndNode} {
			if _, ok := seen[id]; ok {
				continue
			}
			node, err := s.store.GetNode(id)
			if err != nil {
				return nil, err
			}
			seen[id] = node

			if hasLabel(node, sow.LabelOpportunity) {
				in, err := s.store.GetIncomingEdges(id)
				if err != nil {
					return nil, err
				}
				edges = append(edges, in...)
			}
		}
	}

	// Second pass for nodes reached only via opportunity edges.
	for _, edge := range edges {
		for _, id := range []storage.NodeID{edge.StartNode, edge.EndNode} {
			if _, ok := seen[id]; !ok {
				node, err := s.store.GetNode(id)
				if err != nil {
					return nil, err
				}
				seen[id] = node
			}
		}
	}

	view := &GraphView{}
	for _, node := range seen {
		view.Nodes = append(view.Nodes, GraphNode{
			ID:         string(node.ID),
			Labels:     node.Labels,
			Properties: node.Properties,
		})
	}
	sort.Slice(view.Nodes, func(i, j int) bool { return view.Nodes[i].ID < view.Nodes[j].ID })

	seenEdges := make(map[storage.EdgeID]struct{}, len(edges))
	for _, edge := range edges {
		if _, ok := seenEdges[edge.ID]; ok {
			continue
		}
		seenEdges[edge.ID] = struct{}{}
		view.Edges = append(view.Edges, GraphEdge{
			ID:         string(edge.ID),
			Source:     string(edge.StartNode),
			Target:     string(edge.EndNode),
			Type:       edge.Type,
			Properties: edge.Properties,
		})
	}
	sort.Slice(view.Edges, func(i, j int) bool { return view.Edges[i].ID < view.Edges[j].ID })
	return view, nil
}

// Opportunities returns every discovered opportunity, id ascending.
func (s *Service) Opportunities() ([]*sow.AnalyticalOpportunity, error) {
	opportunities, err := s.opportunities()
	if err != nil {
		return nil, err
	}
	sort.Slice(opportunities, func(i, j int) bool { return opportunities[i].ID < opportunities[j].ID })
	return opportunities, nil
}

func (s *Service) opportunities() ([]*sow.AnalyticalOpportunity, error) {
	nodes, err := s.store.GetNodesByLabel(sow.LabelOpportunity)
	if err != nil {
		return nil, fmt.Errorf("failed to load opportunities: %w", err)
	}
	out := make([]*sow.AnalyticalOpportunity, 0, len(nodes))
	for _, node := range nodes {
		out = append(out, sow.OpportunityFromNode(node))
	}
	return out, nil
}

func hasLabel(node *storage.Node, label string) bool {
	for _, l := range node.Labels {
		if l == label {
			return true
		}
	}
	return false
}
