package inference

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/orneryd/sowgraph/pkg/rules"
	"github.com/orneryd/sowgraph/pkg/sow"
	"github.com/orneryd/sowgraph/pkg/storage"
)

// Engine orchestrates a discovery run: rule-based traversal first, then
// cross-domain correlation, with per-source failure isolation.
//
// Example:
//
//	catalog := rules.NewCatalog(store)
//	catalog.Load(rules.DefaultRules())
//	engine := inference.NewEngine(store, catalog, inference.DefaultConfig())
//
//	opportunities, err := engine.DiscoverOpportunities(ctx, "REQ_001")
//	var partial *inference.PartialFailure
//	if errors.As(err, &partial) {
//		log.Printf("%d sources failed", len(partial.Causes))
//	}
type Engine struct {
	store      storage.Engine
	catalog    *rules.Catalog
	cfg        *Config
	generator  *Generator
	correlator *Correlator
}

// NewEngine wires a discovery engine over a store and rule catalog. A nil
// cfg uses the calibrated defaults.
func NewEngine(store storage.Engine, catalog *rules.Catalog, cfg *Config) *Engine {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	gen := NewGenerator(store, cfg)
	return &Engine{
		store:      store,
		catalog:    catalog,
		cfg:        cfg,
		generator:  gen,
		correlator: NewCorrelator(store, cfg, gen),
	}
}

// DiscoverOpportunities runs the full discovery pipeline for one
// requirement and returns every opportunity found, including ones already
// present from earlier runs (replays are no-ops, not errors).
//
// A missing requirement is fatal. Failures of individual rules or entities
// are accumulated into a PartialFailure returned alongside the successful
// subset; the error is nil only when every source succeeded.
func (e *Engine) DiscoverOpportunities(ctx context.Context, requirementID string) ([]*sow.AnalyticalOpportunity, error) {
	node, err := e.store.GetNode(storage.NodeID(requirementID))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("requirement %s: %w", requirementID, storage.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to load requirement %s: %w", requirementID, err)
	}
	req := sow.RequirementFromNode(node)

	var (
		opportunities []*sow.AnalyticalOpportunity
		causes        []FailureCause
	)

	seq := 0
	for _, rule := range e.catalog.Applicable(req.Domain) {
		if err := ctx.Err(); err != nil {
			return opportunities, err
		}

		evidence, ok := Match(req.Description, rule.ConditionPattern)
		if !ok {
			continue
		}
		seq++

		opp := e.generator.FromRule(req, &rule, evidence, seq)
		if _, err := e.generator.Persist(opp, req, rule.ID, seq); err != nil {
			causes = append(causes, FailureCause{SourceID: rule.ID, Err: err})
			continue
		}
		opportunities = append(opportunities, opp)
		e.catalog.RecordUsage(rule.ID)
	}

	if err := ctx.Err(); err != nil {
		return opportunities, err
	}

	crossOpps, crossCauses := e.correlator.Discover(ctx, req)
	opportunities = append(opportunities, crossOpps...)
	causes = append(causes, crossCauses...)

	log.Printf("inference: discovered %d opportunities for %s (%d failures)",
		len(opportunities), requirementID, len(causes))

	if len(causes) > 0 {
		return opportunities, &PartialFailure{RequirementID: requirementID, Causes: causes}
	}
	return opportunities, nil
}
