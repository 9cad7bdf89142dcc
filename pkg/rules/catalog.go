// Package rules manages the inference rule catalog: validated load,
// domain-filtered retrieval with deterministic ordering, and best-effort
// usage statistics.
//
// The catalog is the only mutable shared state in the discovery path, so it
// is guarded by a RWMutex and hands out value snapshots. A discovery run
// works over its own copy of the applicable rules and cannot observe
// concurrent catalog edits mid-run.
package rules

import (
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/orneryd/sowgraph/pkg/sow"
	"github.com/orneryd/sowgraph/pkg/storage"
)

// MinSuccessRate is the floor below which an "all"-sentinel rule is excluded
// from discovery. Rules that name a domain directly always fire in it; the
// floor only keeps weak catch-all rules from spraying every domain.
const MinSuccessRate = 0.6

// Catalog holds the loaded inference rules.
//
// Example:
//
//	catalog := rules.NewCatalog(engine)
//	if err := catalog.Load(rules.DefaultRules()); err != nil {
//		log.Fatal(err)
//	}
//	for _, rule := range catalog.Applicable("manufacturing") {
//		fmt.Println(rule.ID)
//	}
type Catalog struct {
	mu    sync.RWMutex
	rules map[string]*sow.InferenceRule

	// minSuccess overrides MinSuccessRate when non-zero.
	minSuccess float64

	// engine receives usage statistic flushes. Nil disables persistence;
	// the in-memory counters still work.
	engine storage.Engine

	// flushMu serializes background writes so the last flush always
	// persists the newest counter value.
	flushMu sync.Mutex
	flushWG sync.WaitGroup
}

// NewCatalog creates an empty catalog. engine may be nil when usage
// statistics do not need to survive the process.
func NewCatalog(engine storage.Engine) *Catalog {
	return &Catalog{
		rules:  make(map[string]*sow.InferenceRule),
		engine: engine,
	}
}

// Load validates and installs rules into the catalog. Existing rules with
// the same id are replaced. The whole load is rejected on the first invalid
// rule; the catalog is left unchanged in that case.
func (c *Catalog) Load(ruleSet []sow.InferenceRule) error {
	for i := range ruleSet {
		if err := ruleSet[i].Validate(); err != nil {
			return err
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range ruleSet {
		cp := ruleSet[i]
		cp.DomainApplicability = append([]string(nil), cp.DomainApplicability...)
		c.rules[cp.ID] = &cp
	}
	return nil
}

// LoadFromStore reads all InferenceRule nodes from the graph store and
// installs them.
func (c *Catalog) LoadFromStore() error {
	if c.engine == nil {
		return fmt.Errorf("catalog has no storage engine")
	}
	nodes, err := c.engine.GetNodesByLabel(sow.LabelRule)
	if err != nil {
		return fmt.Errorf("failed to load rules from store: %w", err)
	}
	ruleSet := make([]sow.InferenceRule, 0, len(nodes))
	for _, node := range nodes {
		ruleSet = append(ruleSet, *sow.RuleFromNode(node))
	}
	return c.Load(ruleSet)
}

// SetMinSuccessRate overrides the success-rate floor applied to
// "all"-sentinel rules. Zero or out-of-range values restore the
// MinSuccessRate default.
func (c *Catalog) SetMinSuccessRate(v float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if v <= 0 || v >= 1 {
		v = 0
	}
	c.minSuccess = v
}

// Get returns a copy of the rule with the given id.
func (c *Catalog) Get(id string) (sow.InferenceRule, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	rule, ok := c.rules[id]
	if !ok {
		return sow.InferenceRule{}, false
	}
	return copyRule(rule), true
}

// Applicable returns the rules eligible for the given domain: either the
// domain is listed directly, or the rule carries the "all" sentinel and its
// success rate clears MinSuccessRate. Directly listed rules are never gated
// on success rate.
//
// Ordering is deterministic: confidence weight descending, then success rate
// descending, then id ascending. Two runs over the same catalog always see
// the same rule sequence, which keeps generated opportunity ids stable.
func (c *Catalog) Applicable(domain string) []sow.InferenceRule {
	c.mu.RLock()
	defer c.mu.RUnlock()

	floor := c.minSuccess
	if floor == 0 {
		floor = MinSuccessRate
	}

	out := make([]sow.InferenceRule, 0, len(c.rules))
	for _, rule := range c.rules {
		if !rule.AppliesTo(domain) {
			continue
		}
		if !rule.ListsDomain(domain) && rule.SuccessRate <= floor {
			continue
		}
		out = append(out, copyRule(rule))
	}
	sortRules(out)
	return out
}

// Snapshot returns copies of every loaded rule in deterministic order.
func (c *Catalog) Snapshot() []sow.InferenceRule {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]sow.InferenceRule, 0, len(c.rules))
	for _, rule := range c.rules {
		out = append(out, copyRule(rule))
	}
	sortRules(out)
	return out
}

// Len returns the number of loaded rules.
func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.rules)
}

// RecordUsage bumps a rule's usage counter and last-applied timestamp. The
// in-memory update is immediate; persistence to the graph store happens in
// the background and never fails a discovery. Unknown ids are ignored.
func (c *Catalog) RecordUsage(ruleID string) {
	c.mu.Lock()
	rule, ok := c.rules[ruleID]
	if !ok {
		c.mu.Unlock()
		return
	}
	rule.UsageCount++
	rule.LastApplied = time.Now()
	c.mu.Unlock()

	if c.engine == nil {
		return
	}
	c.flushWG.Add(1)
	go func() {
		defer c.flushWG.Done()
		c.flushMu.Lock()
		defer c.flushMu.Unlock()

		// Snapshot at write time, not at record time, so serialized
		// flushes never regress the persisted counter.
		c.mu.RLock()
		rule, ok := c.rules[ruleID]
		var snapshot sow.InferenceRule
		if ok {
			snapshot = copyRule(rule)
		}
		c.mu.RUnlock()
		if !ok {
			return
		}
		if err := c.engine.UpsertNode(sow.RuleNode(&snapshot)); err != nil {
			log.Printf("rules: failed to persist usage for %s: %v", ruleID, err)
		}
	}()
}

// Flush blocks until all pending usage writes have completed. Call before
// shutdown or in tests that assert on persisted statistics.
func (c *Catalog) Flush() {
	c.flushWG.Wait()
}

func copyRule(r *sow.InferenceRule) sow.InferenceRule {
	cp := *r
	cp.DomainApplicability = append([]string(nil), r.DomainApplicability...)
	return cp
}

func sortRules(ruleSet []sow.InferenceRule) {
	sort.Slice(ruleSet, func(i, j int) bool {
		a, b := ruleSet[i], ruleSet[j]
		if a.ConfidenceWeight != b.ConfidenceWeight {
			return a.ConfidenceWeight > b.ConfidenceWeight
		}
		if a.SuccessRate != b.SuccessRate {
			return a.SuccessRate > b.SuccessRate
		}
		return a.ID < b.ID
	})
}

// DefaultRules returns the built-in starter catalog covering the common SOW
// analytics patterns. Installed by `sowgraph init` and usable directly in
// tests.
func DefaultRules() []sow.InferenceRule {
	return []sow.InferenceRule{
		{
			ID:                 "RULE_001",
			RuleType:           sow.RuleImplication,
			ConditionPattern:   "data_collection",
			ConclusionTemplate: "Data quality assessment and profiling capabilities",
			ConfidenceWeight:   0.9,
			DomainApplicability: []string{
				"finance", "healthcare", "manufacturing", "retail",
			},
			SuccessRate: 0.85,
		},
		{
			ID:                 "RULE_002",
			RuleType:           sow.RuleSequence,
			ConditionPattern:   "supplier_tracking",
			ConclusionTemplate: "Supply chain risk analytics and predictive monitoring",
			ConfidenceWeight:   0.8,
			DomainApplicability: []string{
				"manufacturing", "retail", "logistics",
			},
			SuccessRate: 0.78,
		},
		{
			ID:                 "RULE_003",
			RuleType:           sow.RuleCorrelation,
			ConditionPattern:   "customer_data",
			ConclusionTemplate: "Customer segmentation and behavioral analytics",
			ConfidenceWeight:   0.85,
			DomainApplicability: []string{
				"retail", "e-commerce", "financial_services",
			},
			SuccessRate: 0.82,
		},
		{
			ID:                  "RULE_004",
			RuleType:            sow.RulePrerequisite,
			ConditionPattern:    "reporting_automation",
			ConclusionTemplate:  "Data governance framework and metadata management",
			ConfidenceWeight:    0.75,
			DomainApplicability: []string{sow.DomainAll},
			SuccessRate:         0.70,
		},
		{
			ID:                 "RULE_005",
			RuleType:           sow.RuleImplication,
			ConditionPattern:   "regulatory_compliance",
			ConclusionTemplate: "Automated compliance monitoring and audit trails",
			ConfidenceWeight:   0.9,
			DomainApplicability: []string{
				"finance", "healthcare", "insurance",
			},
			SuccessRate: 0.88,
		},
	}
}
