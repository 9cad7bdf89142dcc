package inference

import (
	"github.com/orneryd/sowgraph/pkg/sow"
)

// DomainPair keys the synergy table by (source, target) domain.
type DomainPair struct {
	Source string
	Target string
}

// KeywordMultiplier is a keyword-triggered hour surcharge. Multipliers
// compose multiplicatively and independently when several keywords appear.
type KeywordMultiplier struct {
	Keyword    string
	Multiplier float64
}

// KeywordTemplate maps a description keyword to an implementation approach.
type KeywordTemplate struct {
	Keyword  string
	Template string
}

// Escalation is one row of the complexity inference table: when confidence
// exceeds Threshold, the opportunity escalates from the requirement's level
// to Next. A negative threshold escalates unconditionally.
type Escalation struct {
	Threshold float64
	Next      sow.Complexity
}

// Config holds every heuristic constant of the inference engine as a named,
// overridable field. The defaults are carried over from the field-calibrated
// SOW middleware unchanged; none of them has a documented derivation, so
// treat changes as a domain-expert decision, not a tuning knob.
type Config struct {
	// PhraseMultiplier and TokenMultiplier weight the two match tiers.
	// Exact phrase containment is the strong signal, single-token overlap
	// the weak one.
	PhraseMultiplier float64
	TokenMultiplier  float64

	// BaseBusinessValue and ValueBoost drive rule-based valuation:
	// value = base * confidence_weight * success_rate * boost.
	BaseBusinessValue float64
	ValueBoost        float64

	// CrossDomainBaseValue is the higher base for cross-domain discoveries,
	// scaled by the synergy table (DefaultSynergy for unlisted pairs).
	CrossDomainBaseValue float64
	DefaultSynergy       float64
	DomainSynergies      map[DomainPair]float64

	// CrossDomainConfidence is the fixed confidence for every cross-domain
	// opportunity, deliberately below typical rule-based scores.
	CrossDomainConfidence float64

	// CrossDomainLimit caps entities considered per discovery run.
	CrossDomainLimit int

	// BaseHours maps complexity to the estimation baseline, scaled by
	// HourSurcharges keyed on description keywords.
	BaseHours      map[sow.Complexity]int
	HourSurcharges []KeywordMultiplier

	// CrossDomainBaseHours and CrossDomainSurcharges estimate cross-domain
	// work, which starts from a higher baseline.
	CrossDomainBaseHours  int
	CrossDomainSurcharges []KeywordMultiplier

	// Escalations is the complexity inference table. Inference only ever
	// escalates, never reduces.
	Escalations map[sow.Complexity]Escalation

	// ApproachTemplates are checked in order against the opportunity
	// description; the first keyword hit wins, DefaultApproach otherwise.
	ApproachTemplates []KeywordTemplate
	DefaultApproach   string
}

// DefaultConfig returns the calibrated constants.
func DefaultConfig() *Config {
	return &Config{
		PhraseMultiplier: 1.0,
		TokenMultiplier:  0.7,

		BaseBusinessValue: 1000,
		ValueBoost:        1.5,

		CrossDomainBaseValue: 1200,
		DefaultSynergy:       1.1,
		DomainSynergies: map[DomainPair]float64{
			{"finance", "healthcare"}:   1.4,
			{"manufacturing", "retail"}: 1.3,
			{"healthcare", "insurance"}: 1.5,
			{"retail", "logistics"}:     1.2,
		},

		CrossDomainConfidence: 0.7,
		CrossDomainLimit:      5,

		BaseHours: map[sow.Complexity]int{
			sow.ComplexityLow:      80,
			sow.ComplexityMedium:   160,
			sow.ComplexityHigh:     320,
			sow.ComplexityVeryHigh: 480,
		},
		HourSurcharges: []KeywordMultiplier{
			{Keyword: "automation", Multiplier: 1.3},
			{Keyword: "machine learning", Multiplier: 1.4},
			{Keyword: "real-time", Multiplier: 1.2},
		},

		CrossDomainBaseHours: 240,
		CrossDomainSurcharges: []KeywordMultiplier{
			{Keyword: "integration", Multiplier: 1.3},
			{Keyword: "correlation", Multiplier: 1.2},
		},

		Escalations: map[sow.Complexity]Escalation{
			sow.ComplexityLow:      {Threshold: 0.8, Next: sow.ComplexityMedium},
			sow.ComplexityMedium:   {Threshold: 0.7, Next: sow.ComplexityHigh},
			sow.ComplexityHigh:     {Threshold: 0.8, Next: sow.ComplexityVeryHigh},
			sow.ComplexityVeryHigh: {Threshold: -1, Next: sow.ComplexityVeryHigh},
		},

		ApproachTemplates: []KeywordTemplate{
			{Keyword: "quality", Template: "Implement data profiling tools with automated quality checks and remediation workflows"},
			{Keyword: "risk", Template: "Deploy predictive analytics models with real-time monitoring dashboards"},
			{Keyword: "segmentation", Template: "Develop machine learning clustering models with behavioral analysis"},
			{Keyword: "compliance", Template: "Build automated compliance monitoring with audit trail management"},
		},
		DefaultApproach: "Implement analytics platform with custom dashboards and reporting capabilities",
	}
}

// Multiplier returns the scoring weight for a match tier.
func (c *Config) Multiplier(tier EvidenceTier) float64 {
	switch tier {
	case EvidencePhrase:
		return c.PhraseMultiplier
	case EvidenceToken:
		return c.TokenMultiplier
	}
	return 0
}
