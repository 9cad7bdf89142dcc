package inference

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/orneryd/sowgraph/pkg/sow"
	"github.com/orneryd/sowgraph/pkg/storage"
)

// Generator assembles opportunity records and writes them to the graph
// store. Assembly (FromRule, FromEntity) is pure; Persist performs the
// atomic, idempotent write.
type Generator struct {
	store  storage.Engine
	cfg    *Config
	scorer *Scorer

	// now is swappable for deterministic tests.
	now func() time.Time
}

// NewGenerator creates a generator writing to the given store.
func NewGenerator(store storage.Engine, cfg *Config) *Generator {
	return &Generator{
		store:  store,
		cfg:    cfg,
		scorer: NewScorer(cfg),
		now:    time.Now,
	}
}

// FromRule assembles a rule-based opportunity. seq is the per-requirement
// sequence number of matched rules (starting at 1); with the catalog's
// deterministic rule ordering it makes regenerated ids stable across runs.
func (g *Generator) FromRule(req *sow.BusinessRequirement, rule *sow.InferenceRule, ev MatchEvidence, seq int) *sow.AnalyticalOpportunity {
	return &sow.AnalyticalOpportunity{
		ID:                     fmt.Sprintf("%s_OPP_%03d", req.ID, seq),
		Description:            rule.ConclusionTemplate,
		Complexity:             g.scorer.InferComplexity(req.Complexity, rule.ConfidenceWeight),
		BusinessValue:          g.scorer.BusinessValue(rule.ConfidenceWeight, rule.SuccessRate),
		ConfidenceScore:        g.scorer.Score(rule.ConfidenceWeight, rule.SuccessRate, ev.Tier),
		DiscoveryMethod:        sow.DiscoveryGraphTraversal,
		RelatedRequirements:    []string{req.ID},
		ImplementationApproach: g.scorer.SuggestApproach(rule.ConclusionTemplate),
		EstimatedHours:         g.scorer.EstimateHours(rule.ConclusionTemplate, req.Complexity),
		CreatedAt:              g.now(),
		Status:                 sow.StatusDiscovered,
	}
}

// FromEntity assembles a cross-domain opportunity from a source entity in
// another industry. Confidence is the fixed cross-domain constant.
func (g *Generator) FromEntity(req *sow.BusinessRequirement, entity *sow.DomainEntity, seq int) *sow.AnalyticalOpportunity {
	description := fmt.Sprintf(
		"Cross-domain analytics leveraging %s domain patterns for enhanced %s insights",
		entity.Industry, req.Domain)

	tech := entity.TechnologyStack
	if len(tech) > 3 {
		tech = tech[:3]
	}
	approach := fmt.Sprintf("Leverage %s domain expertise and %s technologies",
		entity.Industry, strings.Join(tech, ", "))

	return &sow.AnalyticalOpportunity{
		ID:                     fmt.Sprintf("%s_CROSS_%03d", req.ID, seq),
		Description:            description,
		Complexity:             sow.ComplexityMedium,
		BusinessValue:          g.scorer.CrossDomainValue(req.Domain, entity.Industry),
		ConfidenceScore:        g.cfg.CrossDomainConfidence,
		DiscoveryMethod:        sow.DiscoveryCrossDomain,
		RelatedRequirements:    []string{req.ID},
		ImplementationApproach: approach,
		EstimatedHours:         g.scorer.EstimateCrossDomainHours(req.Description),
		CreatedAt:              g.now(),
		Status:                 sow.StatusDiscovered,
	}
}

// Persist writes an opportunity and its provenance edges as one atomic
// batch: the opportunity node, the IMPLIES edge from the requirement, the
// DEPENDS_ON edge back to it, a GENERATES edge from the source rule when one
// exists in the graph, and any extra edges the caller supplies (the
// correlator's ENABLES edge).
//
// Idempotence: if the opportunity node already exists with the same content
// hash the write collapses to a no-op, except that missing provenance edges
// are re-created (repair after a manual edge deletion). If it exists with a
// different hash, Persist writes nothing and returns ConflictError.
//
// The returned bool reports whether anything was written.
func (g *Generator) Persist(opp *sow.AnalyticalOpportunity, req *sow.BusinessRequirement, sourceID string, order int, extra ...*storage.Edge) (bool, error) {
	hash := opp.ContentHash()
	now := g.now()

	existing, err := g.store.GetNode(storage.NodeID(opp.ID))
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return false, fmt.Errorf("failed to check opportunity %s: %w", opp.ID, err)
	}

	replay := false
	if existing != nil {
		storedHash, _ := existing.Properties[sow.PropContentHash].(string)
		if storedHash != hash {
			return false, &ConflictError{
				OpportunityID: opp.ID,
				ExistingHash:  storedHash,
				IncomingHash:  hash,
			}
		}
		replay = true
		implies, err := g.store.GetEdgeBetween(storage.NodeID(req.ID), storage.NodeID(opp.ID), sow.EdgeImplies)
		if err != nil {
			return false, fmt.Errorf("failed to check provenance of %s: %w", opp.ID, err)
		}
		if implies != nil {
			return false, nil // full replay, nothing to do
		}
		// Node intact but provenance missing; fall through and repair.
	}

	confidence := opp.ConfidenceScore
	reasoning := fmt.Sprintf("Discovered via %s", opp.DiscoveryMethod)
	inferencePath := fmt.Sprintf("REQ:%s -> SOURCE:%s -> OPP:%s", req.ID, sourceID, opp.ID)

	criticality := "medium"
	if confidence >= 0.8 {
		criticality = "high"
	}

	batch := &storage.Batch{
		Edges: []*storage.Edge{
			sow.ImpliesEdge(req.ID, opp.ID, confidence, reasoning, inferencePath, now),
			sow.DependsOnEdge(opp.ID, req.ID, "source_requirement", criticality, order, now),
		},
	}
	if !replay {
		batch.Nodes = []*storage.Node{sow.OpportunityNode(opp)}
	}

	if opp.DiscoveryMethod == sow.DiscoveryGraphTraversal {
		// Rule provenance is best-effort: catalogs loaded outside the
		// graph have no rule node to anchor the edge on.
		if _, err := g.store.GetNode(storage.NodeID(sourceID)); err == nil {
			ctx := fmt.Sprintf("domain=%s requirement=%s", req.Domain, req.ID)
			batch.Edges = append(batch.Edges, sow.GeneratesEdge(sourceID, opp.ID, confidence, ctx, now))
		} else if !errors.Is(err, storage.ErrNotFound) {
			return false, fmt.Errorf("failed to check rule node %s: %w", sourceID, err)
		}
	}
	batch.Edges = append(batch.Edges, extra...)

	if err := g.store.ApplyBatch(batch); err != nil {
		return false, fmt.Errorf("failed to write opportunity %s: %w", opp.ID, err)
	}
	return true, nil
}
