// Package inference implements rule-driven opportunity discovery over the
// SOW property graph: pattern matching, confidence scoring, opportunity
// generation with idempotent graph writes, and cross-domain correlation.
//
// The pipeline is deliberately split into small pure stages (Matcher,
// Scorer) and effectful ones (Generator, Correlator), orchestrated by
// Engine. Pure stages take value snapshots and touch no storage, so every
// scoring decision is testable without a graph.
package inference

import (
	"strings"
	"unicode"
)

// EvidenceTier records which match tier fired. The scorer weights phrase
// matches higher than token overlap.
type EvidenceTier int

// Match tiers, weakest to strongest.
const (
	EvidenceNone EvidenceTier = iota
	EvidenceToken
	EvidencePhrase
)

// String returns the tier name for logs and diagnostics.
func (t EvidenceTier) String() string {
	switch t {
	case EvidencePhrase:
		return "phrase"
	case EvidenceToken:
		return "token"
	}
	return "none"
}

// MatchEvidence describes how a rule's condition pattern matched a
// requirement description.
type MatchEvidence struct {
	Tier        EvidenceTier
	MatchedTerm string
}

// Match tests a condition pattern against a requirement description.
//
// Patterns are written in snake_case ("supplier_tracking") while
// descriptions are natural language ("Implement supplier tracking system"),
// so underscores and hyphens in the pattern are treated as spaces before
// comparison. Matching is case-insensitive and two-tier:
//
//   - phrase: the whole normalized pattern appears as a substring of the
//     description (strong signal)
//   - token: any single pattern token appears as a token of the description
//     (weak signal)
//
// The returned evidence records the tier and the term that matched. Pure
// function; no side effects.
func Match(description, conditionPattern string) (MatchEvidence, bool) {
	desc := strings.ToLower(description)
	pattern := normalizePattern(conditionPattern)
	if pattern == "" {
		return MatchEvidence{}, false
	}

	if strings.Contains(desc, pattern) {
		return MatchEvidence{Tier: EvidencePhrase, MatchedTerm: pattern}, true
	}

	descTokens := tokenize(desc)
	for _, token := range strings.Fields(pattern) {
		if _, ok := descTokens[token]; ok {
			return MatchEvidence{Tier: EvidenceToken, MatchedTerm: token}, true
		}
	}
	return MatchEvidence{}, false
}

// normalizePattern lowercases and converts snake_case / kebab-case word
// separators to spaces.
func normalizePattern(pattern string) string {
	pattern = strings.ToLower(pattern)
	pattern = strings.ReplaceAll(pattern, "_", " ")
	pattern = strings.ReplaceAll(pattern, "-", " ")
	return strings.Join(strings.Fields(pattern), " ")
}

// tokenize splits a lowercased description into its word set.
func tokenize(s string) map[string]struct{} {
	words := strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}
