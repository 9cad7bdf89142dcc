package sow

import (
	"time"

	"github.com/orneryd/sowgraph/pkg/storage"
)

// Node labels for the SOW property graph.
const (
	LabelRequirement = "BusinessRequirement"
	LabelEntity      = "DomainEntity"
	LabelRule        = "InferenceRule"
	LabelOpportunity = "AnalyticalOpportunity"
)

// Relationship types. All edges are directed and attributed.
const (
	EdgeImplies        = "IMPLIES"         // Requirement -> Opportunity
	EdgeEnables        = "ENABLES"         // DomainEntity -> Opportunity
	EdgeDependsOn      = "DEPENDS_ON"      // Opportunity -> Requirement
	EdgeBelongsTo      = "BELONGS_TO"      // Requirement -> DomainEntity
	EdgeCorrelatesWith = "CORRELATES_WITH" // Opportunity -> Opportunity
	EdgeGenerates      = "GENERATES"       // InferenceRule -> Opportunity
)

// Well-known property keys shared across node kinds.
const (
	PropStatus      = "status"
	PropContentHash = "content_hash"
	PropCreatedAt   = "created_at"
)

// timeFormat is the canonical on-graph timestamp encoding. RFC3339 survives
// the JSON round-trip through every storage engine unchanged.
const timeFormat = time.RFC3339

// RequirementNode converts a requirement into its graph representation.
func RequirementNode(r *BusinessRequirement) *storage.Node {
	return &storage.Node{
		ID:     storage.NodeID(r.ID),
		Labels: []string{LabelRequirement},
		Properties: map[string]any{
			"description":     r.Description,
			"priority":        r.Priority,
			"domain":          r.Domain,
			"complexity":      string(r.Complexity),
			"estimated_hours": r.EstimatedHours,
			"business_value":  r.BusinessValue,
			PropCreatedAt:     encodeTime(r.CreatedAt),
		},
		CreatedAt: r.CreatedAt,
	}
}

// RequirementFromNode rebuilds a requirement value from its graph node.
func RequirementFromNode(n *storage.Node) *BusinessRequirement {
	return &BusinessRequirement{
		ID:             string(n.ID),
		Description:    propString(n.Properties, "description"),
		Priority:       propInt(n.Properties, "priority"),
		Domain:         propString(n.Properties, "domain"),
		Complexity:     Complexity(propString(n.Properties, "complexity")),
		EstimatedHours: propInt(n.Properties, "estimated_hours"),
		BusinessValue:  propFloat(n.Properties, "business_value"),
		CreatedAt:      propTime(n.Properties, PropCreatedAt),
	}
}

// EntityNode converts a domain entity into its graph representation.
func EntityNode(e *DomainEntity) *storage.Node {
	return &storage.Node{
		ID:     storage.NodeID(e.ID),
		Labels: []string{LabelEntity},
		Properties: map[string]any{
			"name":             e.Name,
			"entity_type":      e.EntityType,
			"industry":         e.Industry,
			"maturity_level":   string(e.MaturityLevel),
			"technology_stack": toAnySlice(e.TechnologyStack),
			"data_maturity":    string(e.DataMaturity),
		},
	}
}

// EntityFromNode rebuilds a domain entity value from its graph node.
func EntityFromNode(n *storage.Node) *DomainEntity {
	return &DomainEntity{
		ID:              string(n.ID),
		Name:            propString(n.Properties, "name"),
		EntityType:      propString(n.Properties, "entity_type"),
		Industry:        propString(n.Properties, "industry"),
		MaturityLevel:   MaturityLevel(propString(n.Properties, "maturity_level")),
		TechnologyStack: propStringSlice(n.Properties, "technology_stack"),
		DataMaturity:    DataMaturity(propString(n.Properties, "data_maturity")),
	}
}

// RuleNode converts an inference rule into its graph representation.
func RuleNode(r *InferenceRule) *storage.Node {
	return &storage.Node{
		ID:     storage.NodeID(r.ID),
		Labels: []string{LabelRule},
		Properties: map[string]any{
			"rule_type":            string(r.RuleType),
			"condition_pattern":    r.ConditionPattern,
			"conclusion_template":  r.ConclusionTemplate,
			"confidence_weight":    r.ConfidenceWeight,
			"domain_applicability": toAnySlice(r.DomainApplicability),
			"success_rate":         r.SuccessRate,
			"usage_count":          r.UsageCount,
			"last_applied":         encodeTime(r.LastApplied),
		},
	}
}

// RuleFromNode rebuilds an inference rule value from its graph node.
func RuleFromNode(n *storage.Node) *InferenceRule {
	return &InferenceRule{
		ID:                  string(n.ID),
		RuleType:            RuleType(propString(n.Properties, "rule_type")),
		ConditionPattern:    propString(n.Properties, "condition_pattern"),
		ConclusionTemplate:  propString(n.Properties, "conclusion_template"),
		ConfidenceWeight:    propFloat(n.Properties, "confidence_weight"),
		DomainApplicability: propStringSlice(n.Properties, "domain_applicability"),
		SuccessRate:         propFloat(n.Properties, "success_rate"),
		UsageCount:          int64(propInt(n.Properties, "usage_count")),
		LastApplied:         propTime(n.Properties, "last_applied"),
	}
}

// OpportunityNode converts an opportunity into its graph representation.
// The content hash is stored alongside the payload so idempotent replays can
// be distinguished from conflicting rewrites without re-deriving anything.
func OpportunityNode(o *AnalyticalOpportunity) *storage.Node {
	return &storage.Node{
		ID:     storage.NodeID(o.ID),
		Labels: []string{LabelOpportunity},
		Properties: map[string]any{
			"description":             o.Description,
			"complexity":              string(o.Complexity),
			"business_value":          o.BusinessValue,
			"confidence_score":        o.ConfidenceScore,
			"discovery_method":        string(o.DiscoveryMethod),
			"related_requirements":    toAnySlice(o.RelatedRequirements),
			"implementation_approach": o.ImplementationApproach,
			"estimated_hours":         o.EstimatedHours,
			"roi_projection":          o.ROIProjection,
			PropCreatedAt:             encodeTime(o.CreatedAt),
			PropStatus:                string(o.Status),
			PropContentHash:           o.ContentHash(),
		},
		CreatedAt: o.CreatedAt,
	}
}

// OpportunityFromNode rebuilds an opportunity value from its graph node.
func OpportunityFromNode(n *storage.Node) *AnalyticalOpportunity {
	return &AnalyticalOpportunity{
		ID:                     string(n.ID),
		Description:            propString(n.Properties, "description"),
		Complexity:             Complexity(propString(n.Properties, "complexity")),
		BusinessValue:          propFloat(n.Properties, "business_value"),
		ConfidenceScore:        propFloat(n.Properties, "confidence_score"),
		DiscoveryMethod:        DiscoveryMethod(propString(n.Properties, "discovery_method")),
		RelatedRequirements:    propStringSlice(n.Properties, "related_requirements"),
		ImplementationApproach: propString(n.Properties, "implementation_approach"),
		EstimatedHours:         propInt(n.Properties, "estimated_hours"),
		ROIProjection:          propFloat(n.Properties, "roi_projection"),
		CreatedAt:              propTime(n.Properties, PropCreatedAt),
		Status:                 OpportunityStatus(propString(n.Properties, PropStatus)),
	}
}

// ImpliesEdge builds the provenance edge from a requirement to a discovered
// opportunity. The inference path is the audit trail of rule/entity ids the
// discovery traversed.
func ImpliesEdge(reqID, oppID string, confidence float64, reasoning, inferencePath string, at time.Time) *storage.Edge {
	return &storage.Edge{
		ID:        storage.EdgeID(reqID + "_implies_" + oppID),
		StartNode: storage.NodeID(reqID),
		EndNode:   storage.NodeID(oppID),
		Type:      EdgeImplies,
		Properties: map[string]any{
			"confidence":     confidence,
			"reasoning":      reasoning,
			"inference_path": inferencePath,
			PropCreatedAt:    encodeTime(at),
		},
		CreatedAt: at,
	}
}

// GeneratesEdge builds the provenance edge from a rule to an opportunity it
// produced.
func GeneratesEdge(ruleID, oppID string, confidenceUsed float64, applicationContext string, at time.Time) *storage.Edge {
	return &storage.Edge{
		ID:        storage.EdgeID(ruleID + "_generates_" + oppID),
		StartNode: storage.NodeID(ruleID),
		EndNode:   storage.NodeID(oppID),
		Type:      EdgeGenerates,
		Properties: map[string]any{
			"application_context": applicationContext,
			"confidence_used":     confidenceUsed,
			"validation_status":   "pending",
			PropCreatedAt:         encodeTime(at),
		},
		CreatedAt: at,
	}
}

// EnablesEdge builds the edge from a cross-domain source entity to the
// opportunity it enables.
func EnablesEdge(entityID, oppID string, enablementType string, readiness float64, prerequisites []string, timelineDays int, at time.Time) *storage.Edge {
	return &storage.Edge{
		ID:        storage.EdgeID(entityID + "_enables_" + oppID),
		StartNode: storage.NodeID(entityID),
		EndNode:   storage.NodeID(oppID),
		Type:      EdgeEnables,
		Properties: map[string]any{
			"enablement_type":         enablementType,
			"readiness_score":         readiness,
			"prerequisites":           toAnySlice(prerequisites),
			"estimated_timeline_days": timelineDays,
			PropCreatedAt:             encodeTime(at),
		},
		CreatedAt: at,
	}
}

// DependsOnEdge builds the dependency edge from an opportunity back to the
// requirement it was inferred from.
func DependsOnEdge(oppID, reqID string, dependencyType, criticality string, order int, at time.Time) *storage.Edge {
	return &storage.Edge{
		ID:        storage.EdgeID(oppID + "_depends_" + reqID),
		StartNode: storage.NodeID(oppID),
		EndNode:   storage.NodeID(reqID),
		Type:      EdgeDependsOn,
		Properties: map[string]any{
			"dependency_type":      dependencyType,
			"criticality":          criticality,
			"implementation_order": order,
			PropCreatedAt:          encodeTime(at),
		},
		CreatedAt: at,
	}
}

// BelongsToEdge builds the ownership edge from a requirement to its domain
// entity. Created by ingestion, read by the engine.
func BelongsToEdge(reqID, entityID string, ownershipLevel string, stakeholderPriority float64, at time.Time) *storage.Edge {
	return &storage.Edge{
		ID:        storage.EdgeID(reqID + "_belongs_" + entityID),
		StartNode: storage.NodeID(reqID),
		EndNode:   storage.NodeID(entityID),
		Type:      EdgeBelongsTo,
		Properties: map[string]any{
			"ownership_level":      ownershipLevel,
			"stakeholder_priority": stakeholderPriority,
			PropCreatedAt:          encodeTime(at),
		},
		CreatedAt: at,
	}
}

// CorrelatesWithEdge builds a correlation edge between two opportunities.
func CorrelatesWithEdge(fromOpp, toOpp string, strength float64, correlationType string, synergy float64, at time.Time) *storage.Edge {
	return &storage.Edge{
		ID:        storage.EdgeID(fromOpp + "_correlates_" + toOpp),
		StartNode: storage.NodeID(fromOpp),
		EndNode:   storage.NodeID(toOpp),
		Type:      EdgeCorrelatesWith,
		Properties: map[string]any{
			"correlation_strength": strength,
			"correlation_type":     correlationType,
			"synergy_potential":    synergy,
			PropCreatedAt:          encodeTime(at),
		},
		CreatedAt: at,
	}
}

// Property decoding helpers. Values arrive either as the Go types written by
// MemoryEngine or as the widened types produced by a JSON round-trip through
// BadgerEngine (numbers become float64, string slices become []any), so each
// helper accepts both shapes.

func propString(props map[string]any, key string) string {
	if v, ok := props[key].(string); ok {
		return v
	}
	return ""
}

func propFloat(props map[string]any, key string) float64 {
	switch v := props[key].(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case int:
		return float64(v)
	case int64:
		return float64(v)
	}
	return 0
}

func propInt(props map[string]any, key string) int {
	switch v := props[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return 0
}

func propStringSlice(props map[string]any, key string) []string {
	switch v := props[key].(type) {
	case []string:
		out := make([]string, len(v))
		copy(out, v)
		return out
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

func propTime(props map[string]any, key string) time.Time {
	s, ok := props[key].(string)
	if !ok || s == "" {
		return time.Time{}
	}
	t, err := time.Parse(timeFormat, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func encodeTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(timeFormat)
}

func toAnySlice(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}
