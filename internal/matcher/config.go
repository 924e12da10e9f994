// Package matcher scores how closely two account labels agree and buckets the
// score into a confidence tier.
//
// Two algorithms are available:
//   - AlgorithmSequence: longest-matching-block ratio (2*M/T), the default,
//     against which the confidence thresholds are tuned
//   - AlgorithmLevenshtein: an edit-distance ratio
//
// Example usage:
//
//	config := matcher.DefaultMatchingConfig()
//	m := matcher.NewMatcher(config)
//
//	account, ratio := m.BestMatch("7350 Domain / Website", rollingLabels)
//	tier := m.ConfidenceFor(ratio)
package matcher

import (
	"fmt"
)

// Algorithm selects the similarity measure
type Algorithm string

const (
	// AlgorithmSequence compares labels by their longest matching blocks.
	AlgorithmSequence Algorithm = "sequence"

	// AlgorithmLevenshtein compares labels by edit distance, counting a
	// substitution as a deletion plus an insertion.
	AlgorithmLevenshtein Algorithm = "levenshtein"
)

// ParseAlgorithm converts a configuration string into an Algorithm
func ParseAlgorithm(s string) (Algorithm, error) {
	switch Algorithm(s) {
	case AlgorithmSequence, AlgorithmLevenshtein:
		return Algorithm(s), nil
	case "":
		return AlgorithmSequence, nil
	default:
		return "", fmt.Errorf("unknown similarity algorithm '%s': must be sequence or levenshtein", s)
	}
}

// MatchingConfig holds configuration parameters for label matching.
type MatchingConfig struct {
	// Algorithm is the similarity measure
	Algorithm Algorithm `json:"algorithm"`

	// HighThreshold is the minimum ratio for High confidence
	HighThreshold float64 `json:"high_threshold"`

	// MediumThreshold is the minimum ratio for Medium confidence
	MediumThreshold float64 `json:"medium_threshold"`

	// LowThreshold is the minimum ratio for Low confidence; anything
	// below it is left unmapped
	LowThreshold float64 `json:"low_threshold"`

	// CacheEnabled memoizes pairwise similarity scores
	CacheEnabled bool `json:"cache_enabled"`
}

// DefaultMatchingConfig returns a configuration with the standard thresholds
func DefaultMatchingConfig() *MatchingConfig {
	return &MatchingConfig{
		Algorithm:       AlgorithmSequence,
		HighThreshold:   0.8,
		MediumThreshold: 0.6,
		LowThreshold:    0.4,
		CacheEnabled:    true,
	}
}

// Validate checks if the matching configuration is valid
func (mc *MatchingConfig) Validate() error {
	if _, err := ParseAlgorithm(string(mc.Algorithm)); err != nil {
		return err
	}

	for name, v := range map[string]float64{
		"high":   mc.HighThreshold,
		"medium": mc.MediumThreshold,
		"low":    mc.LowThreshold,
	} {
		if v < 0.0 || v > 1.0 {
			return fmt.Errorf("%s threshold must be between 0.0 and 1.0: %f", name, v)
		}
	}

	if mc.LowThreshold > mc.MediumThreshold || mc.MediumThreshold > mc.HighThreshold {
		return fmt.Errorf("thresholds must satisfy low <= medium <= high, got %.2f/%.2f/%.2f",
			mc.LowThreshold, mc.MediumThreshold, mc.HighThreshold)
	}

	return nil
}

// Clone creates a copy of the matching configuration
func (mc *MatchingConfig) Clone() *MatchingConfig {
	if mc == nil {
		return nil
	}
	clone := *mc
	return &clone
}

// String returns a human-readable description of the configuration
func (mc *MatchingConfig) String() string {
	return fmt.Sprintf("MatchingConfig{Algorithm: %s, High: %.2f, Medium: %.2f, Low: %.2f, Cache: %t}",
		mc.Algorithm, mc.HighThreshold, mc.MediumThreshold, mc.LowThreshold, mc.CacheEnabled)
}
