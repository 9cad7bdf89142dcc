package sow

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orneryd/sowgraph/pkg/storage"
)

// roundTrip pushes a node through a storage engine so properties take the
// same shape callers will actually see.
func roundTrip(t *testing.T, engine storage.Engine, node *storage.Node) *storage.Node {
	t.Helper()
	require.NoError(t, engine.UpsertNode(node))
	got, err := engine.GetNode(node.ID)
	require.NoError(t, err)
	return got
}

func engines(t *testing.T) map[string]storage.Engine {
	badger, err := storage.NewBadgerEngineInMemory()
	require.NoError(t, err)
	memory := storage.NewMemoryEngine()
	t.Cleanup(func() {
		badger.Close()
		memory.Close()
	})
	return map[string]storage.Engine{"memory": memory, "badger": badger}
}

func TestRequirementRoundTrip(t *testing.T) {
	created := time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)
	req := &BusinessRequirement{
		ID:             "REQ_001",
		Description:    "Implement supplier tracking system",
		Priority:       2,
		Domain:         "manufacturing",
		Complexity:     ComplexityHigh,
		EstimatedHours: 200,
		BusinessValue:  5000.0,
		CreatedAt:      created,
	}

	for name, engine := range engines(t) {
		t.Run(name, func(t *testing.T) {
			node := roundTrip(t, engine, RequirementNode(req))
			got := RequirementFromNode(node)
			assert.Equal(t, req, got)
		})
	}
}

func TestEntityRoundTrip(t *testing.T) {
	entity := &DomainEntity{
		ID:              "ENT_001",
		Name:            "AutoParts Corp",
		EntityType:      "company",
		Industry:        "manufacturing",
		MaturityLevel:   MaturityMature,
		TechnologyStack: []string{"sap", "kafka"},
		DataMaturity:    DataManaged,
	}

	for name, engine := range engines(t) {
		t.Run(name, func(t *testing.T) {
			node := roundTrip(t, engine, EntityNode(entity))
			assert.Equal(t, entity, EntityFromNode(node))
		})
	}
}

func TestRuleRoundTrip(t *testing.T) {
	rule := &InferenceRule{
		ID:                  "RULE_002",
		RuleType:            RuleSequence,
		ConditionPattern:    "supplier_tracking",
		ConclusionTemplate:  "Supply chain risk analytics and predictive monitoring",
		ConfidenceWeight:    0.8,
		DomainApplicability: []string{"manufacturing", "retail", "logistics"},
		SuccessRate:         0.78,
		UsageCount:          7,
		LastApplied:         time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC),
	}

	for name, engine := range engines(t) {
		t.Run(name, func(t *testing.T) {
			node := roundTrip(t, engine, RuleNode(rule))
			assert.Equal(t, rule, RuleFromNode(node))
		})
	}
}

func TestOpportunityRoundTripKeepsHash(t *testing.T) {
	opp := &AnalyticalOpportunity{
		ID:                     "REQ_001_OPP_001",
		Description:            "Supply chain risk analytics and predictive monitoring",
		Complexity:             ComplexityHigh,
		BusinessValue:          936.0,
		ConfidenceScore:        0.624,
		DiscoveryMethod:        DiscoveryGraphTraversal,
		RelatedRequirements:    []string{"REQ_001"},
		ImplementationApproach: "Deploy predictive analytics models with real-time monitoring dashboards",
		EstimatedHours:         320,
		CreatedAt:              time.Date(2026, 6, 2, 8, 30, 0, 0, time.UTC),
		Status:                 StatusDiscovered,
	}

	for name, engine := range engines(t) {
		t.Run(name, func(t *testing.T) {
			node := roundTrip(t, engine, OpportunityNode(opp))

			got := OpportunityFromNode(node)
			assert.Equal(t, opp, got)

			// The stored hash must match a recomputation over the decoded
			// record, across both property encodings.
			assert.Equal(t, opp.ContentHash(), node.Properties[PropContentHash])
			assert.Equal(t, opp.ContentHash(), got.ContentHash())
		})
	}
}

func TestEdgeBuilders(t *testing.T) {
	at := time.Now()

	implies := ImpliesEdge("REQ_001", "OPP_1", 0.624, "Discovered via graph_traversal",
		"REQ:REQ_001 -> SOURCE:RULE_002 -> OPP:OPP_1", at)
	assert.Equal(t, storage.EdgeID("REQ_001_implies_OPP_1"), implies.ID)
	assert.Equal(t, EdgeImplies, implies.Type)
	assert.Equal(t, 0.624, implies.Properties["confidence"])

	generates := GeneratesEdge("RULE_002", "OPP_1", 0.624, "domain=manufacturing", at)
	assert.Equal(t, storage.EdgeID("RULE_002_generates_OPP_1"), generates.ID)
	assert.Equal(t, "pending", generates.Properties["validation_status"])

	enables := EnablesEdge("ENT_1", "OPP_1", "pattern_transfer", 0.7, []string{"kafka"}, 30, at)
	assert.Equal(t, EdgeEnables, enables.Type)
	assert.Equal(t, storage.NodeID("ENT_1"), enables.StartNode)

	depends := DependsOnEdge("OPP_1", "REQ_001", "source_requirement", "high", 1, at)
	assert.Equal(t, storage.NodeID("OPP_1"), depends.StartNode)
	assert.Equal(t, storage.NodeID("REQ_001"), depends.EndNode)

	belongs := BelongsToEdge("REQ_001", "ENT_1", "primary", 0.9, at)
	assert.Equal(t, EdgeBelongsTo, belongs.Type)
	assert.Equal(t, "primary", belongs.Properties["ownership_level"])

	correlates := CorrelatesWithEdge("OPP_1", "OPP_2", 0.8, "complementary", 1.3, at)
	assert.Equal(t, EdgeCorrelatesWith, correlates.Type)
	assert.Equal(t, storage.EdgeID("OPP_1_correlates_OPP_2"), correlates.ID)
	assert.Equal(t, 1.3, correlates.Properties["synergy_potential"])
}
