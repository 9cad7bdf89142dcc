// Package sow defines the domain model for statement-of-work opportunity
// inference: explicit business requirements, the declarative rules that
// match against them, the domain entities used for cross-domain analogy,
// and the analytical opportunities the engine discovers.
//
// All types are plain value structs. The inference engine works over value
// snapshots of these records, never over live graph references, so scoring
// stays pure and testable. Mapping to and from graph nodes lives in graph.go.
//
// Example Usage:
//
//	req := &sow.BusinessRequirement{
//		ID:          "REQ_001",
//		Description: "Implement supplier tracking system for automotive parts",
//		Priority:    1,
//		Domain:      "manufacturing",
//		Complexity:  sow.ComplexityHigh,
//	}
//	if err := req.Validate(); err != nil {
//		log.Fatal(err)
//	}
//
//	rule := &sow.InferenceRule{
//		ID:                  "RULE_002",
//		RuleType:            sow.RuleSequence,
//		ConditionPattern:    "supplier_tracking",
//		ConclusionTemplate:  "Supply chain risk analytics and predictive monitoring",
//		ConfidenceWeight:    0.8,
//		DomainApplicability: []string{"manufacturing", "retail", "logistics"},
//		SuccessRate:         0.78,
//	}
package sow

import (
	"errors"
	"fmt"
	"time"
)

// Domain validation errors.
var (
	ErrInvalidRule       = errors.New("invalid inference rule")
	ErrInvalidComplexity = errors.New("invalid complexity")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrMissingID         = errors.New("missing id")
)

// DomainAll is the sentinel domain that makes a rule applicable everywhere.
const DomainAll = "all"

// RuleType classifies how an inference rule relates condition to conclusion.
type RuleType string

// Rule types. The set is closed: switch statements over RuleType should
// handle every constant so new types surface as compile-visible gaps.
const (
	RuleImplication  RuleType = "implication"
	RuleCorrelation  RuleType = "correlation"
	RuleSequence     RuleType = "sequence"
	RulePrerequisite RuleType = "prerequisite"
)

// Valid reports whether rt is a known rule type.
func (rt RuleType) Valid() bool {
	switch rt {
	case RuleImplication, RuleCorrelation, RuleSequence, RulePrerequisite:
		return true
	}
	return false
}

// DiscoveryMethod records how an opportunity was found.
type DiscoveryMethod string

// Discovery methods.
const (
	DiscoveryGraphTraversal DiscoveryMethod = "graph_traversal"
	DiscoveryCrossDomain    DiscoveryMethod = "cross_domain"
)

// Valid reports whether m is a known discovery method.
func (m DiscoveryMethod) Valid() bool {
	switch m {
	case DiscoveryGraphTraversal, DiscoveryCrossDomain:
		return true
	}
	return false
}

// Complexity is an ordered implementation-complexity scale.
type Complexity string

// Complexity levels, lowest to highest.
const (
	ComplexityLow      Complexity = "low"
	ComplexityMedium   Complexity = "medium"
	ComplexityHigh     Complexity = "high"
	ComplexityVeryHigh Complexity = "very_high"
)

// complexityRank orders complexity levels for comparison.
var complexityRank = map[Complexity]int{
	ComplexityLow:      0,
	ComplexityMedium:   1,
	ComplexityHigh:     2,
	ComplexityVeryHigh: 3,
}

// Valid reports whether c is a known complexity level.
func (c Complexity) Valid() bool {
	_, ok := complexityRank[c]
	return ok
}

// Rank returns the ordinal position of c (low=0 .. very_high=3).
// Unknown levels rank as medium so callers degrade rather than panic.
func (c Complexity) Rank() int {
	if r, ok := complexityRank[c]; ok {
		return r
	}
	return complexityRank[ComplexityMedium]
}

// AtLeast reports whether c is the same level as other or higher.
func (c Complexity) AtLeast(other Complexity) bool {
	return c.Rank() >= other.Rank()
}

// MaturityLevel describes how established a domain entity is.
type MaturityLevel string

// Maturity levels.
const (
	MaturityStartup    MaturityLevel = "startup"
	MaturityGrowth     MaturityLevel = "growth"
	MaturityMature     MaturityLevel = "mature"
	MaturityEnterprise MaturityLevel = "enterprise"
)

// Valid reports whether m is a known maturity level.
func (m MaturityLevel) Valid() bool {
	switch m {
	case MaturityStartup, MaturityGrowth, MaturityMature, MaturityEnterprise:
		return true
	}
	return false
}

// Established reports whether the entity is mature enough to serve as a
// cross-domain pattern source (mature or enterprise).
func (m MaturityLevel) Established() bool {
	return m == MaturityMature || m == MaturityEnterprise
}

// DataMaturity describes how disciplined an entity's data practice is.
type DataMaturity string

// Data maturity levels.
const (
	DataAdHoc     DataMaturity = "ad_hoc"
	DataDefined   DataMaturity = "defined"
	DataManaged   DataMaturity = "managed"
	DataOptimized DataMaturity = "optimized"
)

// Valid reports whether d is a known data maturity level.
func (d DataMaturity) Valid() bool {
	switch d {
	case DataAdHoc, DataDefined, DataManaged, DataOptimized:
		return true
	}
	return false
}

// Stable reports whether the entity's data practice is stable enough to
// transplant patterns from (managed or optimized). Immature entities are
// excluded from cross-domain discovery: an unstable source pattern is not
// worth copying.
func (d DataMaturity) Stable() bool {
	return d == DataManaged || d == DataOptimized
}

// OpportunityStatus tracks the review lifecycle of a discovered opportunity.
type OpportunityStatus string

// Lifecycle states. The engine only ever creates opportunities in
// StatusDiscovered; later transitions are driven by external review.
const (
	StatusDiscovered  OpportunityStatus = "discovered"
	StatusValidated   OpportunityStatus = "validated"
	StatusImplemented OpportunityStatus = "implemented"
	StatusRejected    OpportunityStatus = "rejected"
)

// Valid reports whether s is a known status.
func (s OpportunityStatus) Valid() bool {
	switch s {
	case StatusDiscovered, StatusValidated, StatusImplemented, StatusRejected:
		return true
	}
	return false
}

// Terminal reports whether s is an end state.
func (s OpportunityStatus) Terminal() bool {
	return s == StatusImplemented || s == StatusRejected
}

// Transition validates a lifecycle move from s to next.
//
// Replaying a transition that already happened (next == s) is an idempotent
// no-op so external callers can safely retry. Legal forward moves:
//
//	discovered -> validated
//	validated  -> implemented | rejected
//
// Anything else returns ErrInvalidTransition.
func (s OpportunityStatus) Transition(next OpportunityStatus) (OpportunityStatus, error) {
	if !next.Valid() {
		return s, fmt.Errorf("%w: unknown status %q", ErrInvalidTransition, next)
	}
	if next == s {
		return s, nil // replayed transition, no-op
	}
	switch s {
	case StatusDiscovered:
		if next == StatusValidated {
			return next, nil
		}
	case StatusValidated:
		if next == StatusImplemented || next == StatusRejected {
			return next, nil
		}
	}
	return s, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, s, next)
}

// BusinessRequirement is an explicit, user-authored business need.
//
// Requirements are created by ingestion before discovery runs and are never
// mutated or deleted by the inference engine.
type BusinessRequirement struct {
	ID             string     `json:"id" yaml:"id"`
	Description    string     `json:"description" yaml:"description"`
	Priority       int        `json:"priority" yaml:"priority"` // 1-5 scale
	Domain         string     `json:"domain" yaml:"domain"`
	Complexity     Complexity `json:"complexity" yaml:"complexity"`
	EstimatedHours int        `json:"estimated_hours,omitempty" yaml:"estimated_hours,omitempty"`
	BusinessValue  float64    `json:"business_value,omitempty" yaml:"business_value,omitempty"`
	CreatedAt      time.Time  `json:"created_at,omitempty" yaml:"created_at,omitempty"`
}

// Validate checks structural invariants of the requirement.
func (r *BusinessRequirement) Validate() error {
	if r.ID == "" {
		return ErrMissingID
	}
	if r.Priority < 1 || r.Priority > 5 {
		return fmt.Errorf("requirement %s: priority %d out of range [1,5]", r.ID, r.Priority)
	}
	if !r.Complexity.Valid() {
		return fmt.Errorf("%w: requirement %s has complexity %q", ErrInvalidComplexity, r.ID, r.Complexity)
	}
	return nil
}

// DomainEntity is an organization, department, or system profile used as a
// pattern source for cross-domain discovery. Read-only from the engine's
// perspective.
type DomainEntity struct {
	ID              string        `json:"id" yaml:"id"`
	Name            string        `json:"name" yaml:"name"`
	EntityType      string        `json:"entity_type" yaml:"entity_type"` // company, department, system, process
	Industry        string        `json:"industry" yaml:"industry"`
	MaturityLevel   MaturityLevel `json:"maturity_level" yaml:"maturity_level"`
	TechnologyStack []string      `json:"technology_stack" yaml:"technology_stack"`
	DataMaturity    DataMaturity  `json:"data_maturity" yaml:"data_maturity"`
}

// Validate checks structural invariants of the entity.
func (e *DomainEntity) Validate() error {
	if e.ID == "" {
		return ErrMissingID
	}
	if !e.MaturityLevel.Valid() {
		return fmt.Errorf("entity %s: unknown maturity level %q", e.ID, e.MaturityLevel)
	}
	if !e.DataMaturity.Valid() {
		return fmt.Errorf("entity %s: unknown data maturity %q", e.ID, e.DataMaturity)
	}
	return nil
}

// InferenceRule is a declarative condition -> conclusion mapping.
//
// UsageCount and LastApplied are statistics fields, updated best-effort each
// time the rule contributes to a discovery. Everything else is immutable
// after catalog load.
type InferenceRule struct {
	ID                  string    `json:"id" yaml:"id"`
	RuleType            RuleType  `json:"rule_type" yaml:"rule_type"`
	ConditionPattern    string    `json:"condition_pattern" yaml:"condition_pattern"`
	ConclusionTemplate  string    `json:"conclusion_template" yaml:"conclusion_template"`
	ConfidenceWeight    float64   `json:"confidence_weight" yaml:"confidence_weight"`
	DomainApplicability []string  `json:"domain_applicability" yaml:"domain_applicability"`
	SuccessRate         float64   `json:"success_rate" yaml:"success_rate"`
	UsageCount          int64     `json:"usage_count,omitempty" yaml:"usage_count,omitempty"`
	LastApplied         time.Time `json:"last_applied,omitempty" yaml:"last_applied,omitempty"`
}

// Validate checks the rule invariants enforced at catalog load time:
// confidence weight and success rate in [0,1], a non-empty domain set, a
// known rule type, and a non-empty condition pattern.
func (r *InferenceRule) Validate() error {
	if r.ID == "" {
		return fmt.Errorf("%w: %v", ErrInvalidRule, ErrMissingID)
	}
	if !r.RuleType.Valid() {
		return fmt.Errorf("%w: rule %s has unknown type %q", ErrInvalidRule, r.ID, r.RuleType)
	}
	if r.ConditionPattern == "" {
		return fmt.Errorf("%w: rule %s has empty condition pattern", ErrInvalidRule, r.ID)
	}
	if r.ConfidenceWeight < 0 || r.ConfidenceWeight > 1 {
		return fmt.Errorf("%w: rule %s confidence weight %.3f out of [0,1]", ErrInvalidRule, r.ID, r.ConfidenceWeight)
	}
	if r.SuccessRate < 0 || r.SuccessRate > 1 {
		return fmt.Errorf("%w: rule %s success rate %.3f out of [0,1]", ErrInvalidRule, r.ID, r.SuccessRate)
	}
	if len(r.DomainApplicability) == 0 {
		return fmt.Errorf("%w: rule %s has empty domain applicability", ErrInvalidRule, r.ID)
	}
	return nil
}

// AppliesTo reports whether the rule is applicable in the given domain,
// either directly or via the "all" sentinel.
func (r *InferenceRule) AppliesTo(domain string) bool {
	for _, d := range r.DomainApplicability {
		if d == domain || d == DomainAll {
			return true
		}
	}
	return false
}

// ListsDomain reports whether the rule names the domain directly, as opposed
// to matching through the "all" sentinel.
func (r *InferenceRule) ListsDomain(domain string) bool {
	for _, d := range r.DomainApplicability {
		if d == domain {
			return true
		}
	}
	return false
}

// AnalyticalOpportunity is a discovered, not explicitly requested, analytical
// capability.
//
// The ID is derived deterministically from the source requirement, the
// discovery method, and a per-requirement sequence number, so re-running
// discovery over the same inputs regenerates the identical record instead of
// a duplicate. See ContentHash in hash.go for the conflict guard.
type AnalyticalOpportunity struct {
	ID                     string            `json:"id" yaml:"id"`
	Description            string            `json:"description" yaml:"description"`
	Complexity             Complexity        `json:"complexity" yaml:"complexity"`
	BusinessValue          float64           `json:"business_value" yaml:"business_value"`
	ConfidenceScore        float64           `json:"confidence_score" yaml:"confidence_score"`
	DiscoveryMethod        DiscoveryMethod   `json:"discovery_method" yaml:"discovery_method"`
	RelatedRequirements    []string          `json:"related_requirements" yaml:"related_requirements"`
	ImplementationApproach string            `json:"implementation_approach" yaml:"implementation_approach"`
	EstimatedHours         int               `json:"estimated_hours" yaml:"estimated_hours"`
	ROIProjection          float64           `json:"roi_projection,omitempty" yaml:"roi_projection,omitempty"`
	CreatedAt              time.Time         `json:"created_at,omitempty" yaml:"created_at,omitempty"`
	Status                 OpportunityStatus `json:"status" yaml:"status"`
}

// Validate checks structural invariants of the opportunity.
func (o *AnalyticalOpportunity) Validate() error {
	if o.ID == "" {
		return ErrMissingID
	}
	if o.ConfidenceScore < 0 || o.ConfidenceScore > 1 {
		return fmt.Errorf("opportunity %s: confidence %.3f out of [0,1]", o.ID, o.ConfidenceScore)
	}
	if !o.DiscoveryMethod.Valid() {
		return fmt.Errorf("opportunity %s: unknown discovery method %q", o.ID, o.DiscoveryMethod)
	}
	if !o.Complexity.Valid() {
		return fmt.Errorf("%w: opportunity %s has complexity %q", ErrInvalidComplexity, o.ID, o.Complexity)
	}
	if !o.Status.Valid() {
		return fmt.Errorf("opportunity %s: unknown status %q", o.ID, o.Status)
	}
	return nil
}
