package inference

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/orneryd/sowgraph/pkg/sow"
)

func TestScore(t *testing.T) {
	scorer := NewScorer(DefaultConfig())

	// RULE_002 against a phrase match.
	assert.InDelta(t, 0.624, scorer.Score(0.8, 0.78, EvidencePhrase), 1e-9)

	// Token matches are discounted.
	assert.InDelta(t, 0.624*0.7, scorer.Score(0.8, 0.78, EvidenceToken), 1e-9)

	// Unmatched evidence scores zero.
	assert.Equal(t, 0.0, scorer.Score(0.9, 0.9, EvidenceNone))
}

func TestScoreClamped(t *testing.T) {
	cfg := DefaultConfig()
	cfg.PhraseMultiplier = 3.0
	scorer := NewScorer(cfg)

	assert.Equal(t, 1.0, scorer.Score(0.9, 0.9, EvidencePhrase))
}

func TestBusinessValue(t *testing.T) {
	scorer := NewScorer(DefaultConfig())

	assert.Equal(t, 936.0, scorer.BusinessValue(0.8, 0.78))
	assert.Equal(t, 1147.5, scorer.BusinessValue(0.9, 0.85))
}

func TestCrossDomainValue(t *testing.T) {
	scorer := NewScorer(DefaultConfig())

	// Listed pair uses its synergy.
	assert.Equal(t, 1560.0, scorer.CrossDomainValue("manufacturing", "retail"))
	assert.Equal(t, 1800.0, scorer.CrossDomainValue("healthcare", "insurance"))

	// Synergy is directional; the reverse pair is unlisted.
	assert.Equal(t, 1320.0, scorer.CrossDomainValue("retail", "manufacturing"))

	// Unlisted pairs fall back to the default.
	assert.Equal(t, 1320.0, scorer.CrossDomainValue("energy", "telecom"))
}

func TestInferComplexity(t *testing.T) {
	scorer := NewScorer(DefaultConfig())

	tests := []struct {
		base       sow.Complexity
		confidence float64
		want       sow.Complexity
	}{
		{sow.ComplexityLow, 0.85, sow.ComplexityMedium},
		{sow.ComplexityLow, 0.8, sow.ComplexityLow}, // threshold is strict
		{sow.ComplexityMedium, 0.75, sow.ComplexityHigh},
		{sow.ComplexityMedium, 0.6, sow.ComplexityMedium},
		{sow.ComplexityHigh, 0.9, sow.ComplexityVeryHigh},
		{sow.ComplexityHigh, 0.7, sow.ComplexityHigh},
		{sow.ComplexityVeryHigh, 0.1, sow.ComplexityVeryHigh},
		{sow.Complexity("unknown"), 0.9, sow.ComplexityMedium},
	}
	for _, tt := range tests {
		got := scorer.InferComplexity(tt.base, tt.confidence)
		assert.Equal(t, tt.want, got, "base=%s confidence=%.2f", tt.base, tt.confidence)
	}
}

func TestInferComplexityNeverReduces(t *testing.T) {
	scorer := NewScorer(DefaultConfig())

	for _, base := range []sow.Complexity{
		sow.ComplexityLow, sow.ComplexityMedium, sow.ComplexityHigh, sow.ComplexityVeryHigh,
	} {
		for _, conf := range []float64{0.0, 0.5, 0.75, 0.85, 1.0} {
			got := scorer.InferComplexity(base, conf)
			assert.True(t, got.AtLeast(base), "reduced %s to %s at confidence %.2f", base, got, conf)
		}
	}
}

func TestEstimateHours(t *testing.T) {
	scorer := NewScorer(DefaultConfig())

	assert.Equal(t, 80, scorer.EstimateHours("plain analytics", sow.ComplexityLow))
	assert.Equal(t, 160, scorer.EstimateHours("plain analytics", sow.ComplexityMedium))
	assert.Equal(t, 320, scorer.EstimateHours("plain analytics", sow.ComplexityHigh))
	assert.Equal(t, 480, scorer.EstimateHours("plain analytics", sow.ComplexityVeryHigh))

	// Keyword surcharges compose multiplicatively.
	assert.Equal(t, 416, scorer.EstimateHours("reporting automation", sow.ComplexityHigh))
	assert.Equal(t, 582, scorer.EstimateHours("automation with machine learning", sow.ComplexityHigh))
	assert.Equal(t, 192, scorer.EstimateHours("real-time alerts", sow.ComplexityMedium))

	// Unknown complexity falls back to the medium baseline.
	assert.Equal(t, 160, scorer.EstimateHours("plain analytics", sow.Complexity("weird")))
}

func TestEstimateCrossDomainHours(t *testing.T) {
	scorer := NewScorer(DefaultConfig())

	assert.Equal(t, 240, scorer.EstimateCrossDomainHours("plain description"))
	assert.Equal(t, 312, scorer.EstimateCrossDomainHours("system integration work"))
	assert.Equal(t, 374, scorer.EstimateCrossDomainHours("integration and correlation analysis"))
}

func TestSuggestApproach(t *testing.T) {
	scorer := NewScorer(DefaultConfig())

	tests := []struct {
		description string
		wantSubstr  string
	}{
		{"Data quality assessment and profiling capabilities", "profiling"},
		{"Supply chain risk analytics and predictive monitoring", "predictive analytics"},
		{"Customer segmentation and behavioral analytics", "clustering"},
		{"Automated compliance monitoring and audit trails", "compliance monitoring"},
		{"Something entirely different", "analytics platform"},
	}
	for _, tt := range tests {
		got := scorer.SuggestApproach(tt.description)
		assert.Contains(t, got, tt.wantSubstr, "description: %s", tt.description)
	}
}
