package inference

import (
	"context"
	"fmt"
	"sort"

	"github.com/orneryd/sowgraph/pkg/sow"
	"github.com/orneryd/sowgraph/pkg/storage"
)

// Correlator discovers cross-domain opportunities: analytical patterns
// proven in one industry transplanted into the requirement's domain.
type Correlator struct {
	store storage.Engine
	cfg   *Config
	gen   *Generator
}

// NewCorrelator creates a correlator sharing the generator's store and
// config.
func NewCorrelator(store storage.Engine, cfg *Config, gen *Generator) *Correlator {
	return &Correlator{store: store, cfg: cfg, gen: gen}
}

// Discover synthesizes one opportunity per eligible source entity, up to the
// configured limit.
//
// Eligibility is a quality gate: the entity's industry must differ from the
// requirement's domain, its maturity level must be established (mature or
// enterprise), and its data maturity stable (managed or optimized). An
// immature source pattern is not worth transplanting.
//
// Selection order is entity id ascending, so results are reproducible for a
// fixed graph snapshot. Per-entity failures are returned as causes without
// aborting the remaining entities.
func (c *Correlator) Discover(ctx context.Context, req *sow.BusinessRequirement) ([]*sow.AnalyticalOpportunity, []FailureCause) {
	nodes, err := c.store.GetNodesByLabel(sow.LabelEntity)
	if err != nil {
		return nil, []FailureCause{{
			SourceID: "cross_domain",
			Err:      fmt.Errorf("failed to list domain entities: %w", err),
		}}
	}

	entities := make([]*sow.DomainEntity, 0, len(nodes))
	for _, node := range nodes {
		entity := sow.EntityFromNode(node)
		if entity.Industry == req.Domain {
			continue
		}
		if !entity.MaturityLevel.Established() || !entity.DataMaturity.Stable() {
			continue
		}
		entities = append(entities, entity)
	}
	sort.Slice(entities, func(i, j int) bool { return entities[i].ID < entities[j].ID })
	if len(entities) > c.cfg.CrossDomainLimit {
		entities = entities[:c.cfg.CrossDomainLimit]
	}

	var (
		opportunities []*sow.AnalyticalOpportunity
		causes        []FailureCause
	)
	for i, entity := range entities {
		if err := ctx.Err(); err != nil {
			causes = append(causes, FailureCause{SourceID: entity.ID, Err: err})
			return opportunities, causes
		}

		seq := i + 1
		opp := c.gen.FromEntity(req, entity, seq)

		tech := entity.TechnologyStack
		if len(tech) > 3 {
			tech = tech[:3]
		}
		enables := sow.EnablesEdge(entity.ID, opp.ID, "pattern_transfer",
			c.cfg.CrossDomainConfidence, tech, opp.EstimatedHours/8, opp.CreatedAt)

		if _, err := c.gen.Persist(opp, req, "CROSS_DOMAIN_"+entity.ID, seq, enables); err != nil {
			causes = append(causes, FailureCause{SourceID: entity.ID, Err: err})
			continue
		}
		opportunities = append(opportunities, opp)
	}
	return opportunities, causes
}
