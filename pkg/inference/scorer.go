package inference

import (
	"math"
	"strings"

	"github.com/orneryd/sowgraph/pkg/sow"
)

// Scorer derives confidence, business value, and complexity for discovered
// opportunities. All methods are pure functions over the config constants.
type Scorer struct {
	cfg *Config
}

// NewScorer creates a scorer over the given constants.
func NewScorer(cfg *Config) *Scorer {
	return &Scorer{cfg: cfg}
}

// Score computes inference confidence from the rule's confidence weight, its
// historical success rate, and the evidence tier multiplier. The result is
// clamped to [0,1] regardless of config values.
func (s *Scorer) Score(confidenceWeight, successRate float64, tier EvidenceTier) float64 {
	return clamp01(confidenceWeight * successRate * s.cfg.Multiplier(tier))
}

// BusinessValue scores a rule-based opportunity in business units:
// base * weight * success * boost, rounded to cents.
func (s *Scorer) BusinessValue(confidenceWeight, successRate float64) float64 {
	return round2(s.cfg.BaseBusinessValue * confidenceWeight * successRate * s.cfg.ValueBoost)
}

// CrossDomainValue scores a cross-domain opportunity using the domain-pair
// synergy table; unlisted pairs fall back to the default synergy.
func (s *Scorer) CrossDomainValue(sourceDomain, targetDomain string) float64 {
	synergy, ok := s.cfg.DomainSynergies[DomainPair{Source: sourceDomain, Target: targetDomain}]
	if !ok {
		synergy = s.cfg.DefaultSynergy
	}
	return round2(s.cfg.CrossDomainBaseValue * synergy)
}

// InferComplexity derives an opportunity's complexity from the requirement's
// complexity and the rule's confidence weight. High-confidence inferences
// escalate one level; complexity is never reduced. Unknown input levels
// resolve to medium.
func (s *Scorer) InferComplexity(base sow.Complexity, confidence float64) sow.Complexity {
	esc, ok := s.cfg.Escalations[base]
	if !ok {
		return sow.ComplexityMedium
	}
	if esc.Threshold < 0 || confidence > esc.Threshold {
		return esc.Next
	}
	return base
}

// EstimateHours projects implementation effort for a rule-based opportunity:
// the complexity baseline scaled by each keyword surcharge present in the
// description. Surcharges compose multiplicatively.
func (s *Scorer) EstimateHours(description string, complexity sow.Complexity) int {
	hours, ok := s.cfg.BaseHours[complexity]
	if !ok {
		hours = s.cfg.BaseHours[sow.ComplexityMedium]
	}
	return applySurcharges(hours, description, s.cfg.HourSurcharges)
}

// EstimateCrossDomainHours projects effort for a cross-domain opportunity
// from its higher fixed baseline.
func (s *Scorer) EstimateCrossDomainHours(description string) int {
	return applySurcharges(s.cfg.CrossDomainBaseHours, description, s.cfg.CrossDomainSurcharges)
}

// SuggestApproach picks an implementation approach by first keyword hit in
// the opportunity description.
func (s *Scorer) SuggestApproach(description string) string {
	desc := strings.ToLower(description)
	for _, t := range s.cfg.ApproachTemplates {
		if strings.Contains(desc, t.Keyword) {
			return t.Template
		}
	}
	return s.cfg.DefaultApproach
}

func applySurcharges(base int, description string, surcharges []KeywordMultiplier) int {
	desc := strings.ToLower(description)
	hours := float64(base)
	for _, s := range surcharges {
		if strings.Contains(desc, s.Keyword) {
			hours *= s.Multiplier
		}
	}
	return int(hours)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
