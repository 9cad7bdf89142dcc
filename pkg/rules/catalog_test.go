package rules

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orneryd/sowgraph/pkg/sow"
	"github.com/orneryd/sowgraph/pkg/storage"
)

func TestLoadRejectsInvalidRule(t *testing.T) {
	catalog := NewCatalog(nil)

	bad := []sow.InferenceRule{
		{
			ID:                  "RULE_X",
			RuleType:            sow.RuleImplication,
			ConditionPattern:    "anything",
			ConfidenceWeight:    1.5, // out of range
			DomainApplicability: []string{"finance"},
			SuccessRate:         0.9,
		},
	}
	err := catalog.Load(bad)
	require.ErrorIs(t, err, sow.ErrInvalidRule)
	assert.Equal(t, 0, catalog.Len(), "failed load must leave catalog unchanged")
}

func TestLoadRejectsEmptyDomains(t *testing.T) {
	catalog := NewCatalog(nil)

	err := catalog.Load([]sow.InferenceRule{
		{
			ID:               "RULE_X",
			RuleType:         sow.RuleImplication,
			ConditionPattern: "anything",
			ConfidenceWeight: 0.8,
			SuccessRate:      0.9,
		},
	})
	require.ErrorIs(t, err, sow.ErrInvalidRule)
}

func TestApplicableFiltersByDomain(t *testing.T) {
	catalog := NewCatalog(nil)
	require.NoError(t, catalog.Load(DefaultRules()))

	applicable := catalog.Applicable("manufacturing")

	ids := make([]string, 0, len(applicable))
	for _, rule := range applicable {
		ids = append(ids, rule.ID)
	}
	// RULE_001 (manufacturing listed), RULE_002 (manufacturing listed),
	// RULE_004 ("all"). RULE_003 and RULE_005 do not list manufacturing.
	assert.Equal(t, []string{"RULE_001", "RULE_002", "RULE_004"}, ids)
}

func TestApplicableExcludesLowSuccessRate(t *testing.T) {
	catalog := NewCatalog(nil)
	require.NoError(t, catalog.Load([]sow.InferenceRule{
		{
			ID:                  "RULE_WEAK",
			RuleType:            sow.RuleImplication,
			ConditionPattern:    "anything",
			ConfidenceWeight:    0.95,
			DomainApplicability: []string{sow.DomainAll},
			SuccessRate:         0.5,
		},
		{
			ID:                  "RULE_OK",
			RuleType:            sow.RuleImplication,
			ConditionPattern:    "anything",
			ConfidenceWeight:    0.7,
			DomainApplicability: []string{sow.DomainAll},
			SuccessRate:         0.75,
		},
	}))

	// The floor gates catch-all rules only.
	applicable := catalog.Applicable("finance")
	require.Len(t, applicable, 1)
	assert.Equal(t, "RULE_OK", applicable[0].ID)
}

func TestApplicableDirectDomainIgnoresSuccessRate(t *testing.T) {
	catalog := NewCatalog(nil)
	require.NoError(t, catalog.Load([]sow.InferenceRule{
		{
			ID:                  "RULE_DIRECT",
			RuleType:            sow.RuleImplication,
			ConditionPattern:    "anything",
			ConfidenceWeight:    0.9,
			DomainApplicability: []string{"manufacturing"},
			SuccessRate:         0.5,
		},
	}))

	// A rule that names the domain directly fires regardless of its
	// success rate; only the "all" sentinel is gated on the floor.
	applicable := catalog.Applicable("manufacturing")
	require.Len(t, applicable, 1)
	assert.Equal(t, "RULE_DIRECT", applicable[0].ID)

	assert.Empty(t, catalog.Applicable("finance"))
}

func TestSetMinSuccessRate(t *testing.T) {
	catalog := NewCatalog(nil)
	require.NoError(t, catalog.Load([]sow.InferenceRule{
		{
			ID: "RULE_LOW", RuleType: sow.RuleImplication, ConditionPattern: "x",
			ConfidenceWeight: 0.9, DomainApplicability: []string{sow.DomainAll}, SuccessRate: 0.5,
		},
	}))

	assert.Empty(t, catalog.Applicable("finance"))

	catalog.SetMinSuccessRate(0.4)
	require.Len(t, catalog.Applicable("finance"), 1)

	// Out-of-range values restore the default floor.
	catalog.SetMinSuccessRate(1.2)
	assert.Empty(t, catalog.Applicable("finance"))
}

func TestApplicableOrderingDeterministic(t *testing.T) {
	catalog := NewCatalog(nil)
	require.NoError(t, catalog.Load([]sow.InferenceRule{
		{
			ID: "RULE_B", RuleType: sow.RuleImplication, ConditionPattern: "x",
			ConfidenceWeight: 0.9, DomainApplicability: []string{sow.DomainAll}, SuccessRate: 0.8,
		},
		{
			ID: "RULE_A", RuleType: sow.RuleImplication, ConditionPattern: "x",
			ConfidenceWeight: 0.9, DomainApplicability: []string{sow.DomainAll}, SuccessRate: 0.8,
		},
		{
			ID: "RULE_C", RuleType: sow.RuleImplication, ConditionPattern: "x",
			ConfidenceWeight: 0.9, DomainApplicability: []string{sow.DomainAll}, SuccessRate: 0.9,
		},
	}))

	for i := 0; i < 10; i++ {
		applicable := catalog.Applicable("finance")
		ids := []string{applicable[0].ID, applicable[1].ID, applicable[2].ID}
		// Equal confidence: higher success first, then id ascending.
		assert.Equal(t, []string{"RULE_C", "RULE_A", "RULE_B"}, ids)
	}
}

func TestSnapshotIsIsolatedCopy(t *testing.T) {
	catalog := NewCatalog(nil)
	require.NoError(t, catalog.Load(DefaultRules()))

	snapshot := catalog.Snapshot()
	require.NotEmpty(t, snapshot)
	snapshot[0].ConfidenceWeight = 0.0
	snapshot[0].DomainApplicability[0] = "mutated"

	fresh, ok := catalog.Get(snapshot[0].ID)
	require.True(t, ok)
	assert.NotEqual(t, 0.0, fresh.ConfidenceWeight)
	assert.NotEqual(t, "mutated", fresh.DomainApplicability[0])
}

func TestRecordUsage(t *testing.T) {
	engine := storage.NewMemoryEngine()
	defer engine.Close()

	catalog := NewCatalog(engine)
	require.NoError(t, catalog.Load(DefaultRules()))

	catalog.RecordUsage("RULE_002")
	catalog.RecordUsage("RULE_002")
	catalog.RecordUsage("unknown-rule") // ignored
	catalog.Flush()

	rule, ok := catalog.Get("RULE_002")
	require.True(t, ok)
	assert.Equal(t, int64(2), rule.UsageCount)
	assert.False(t, rule.LastApplied.IsZero())

	// Persisted snapshot reflects the counter.
	node, err := engine.GetNode(storage.NodeID("RULE_002"))
	require.NoError(t, err)
	persisted := sow.RuleFromNode(node)
	assert.Equal(t, int64(2), persisted.UsageCount)
}

func TestLoadFromStore(t *testing.T) {
	engine := storage.NewMemoryEngine()
	defer engine.Close()

	for _, rule := range DefaultRules() {
		require.NoError(t, engine.UpsertNode(sow.RuleNode(&rule)))
	}

	catalog := NewCatalog(engine)
	require.NoError(t, catalog.LoadFromStore())
	assert.Equal(t, 5, catalog.Len())

	rule, ok := catalog.Get("RULE_002")
	require.True(t, ok)
	assert.Equal(t, sow.RuleSequence, rule.RuleType)
	assert.Equal(t, 0.8, rule.ConfidenceWeight)
	assert.Equal(t, []string{"manufacturing", "retail", "logistics"}, rule.DomainApplicability)
}
