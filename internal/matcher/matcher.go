package matcher

import (
	"math"

	"rolling-pnl-reconciler/internal/cache"
	"rolling-pnl-reconciler/internal/models"
	"rolling-pnl-reconciler/pkg/logger"
)

// Matcher compares source labels against rolling account labels
type Matcher struct {
	Config *MatchingConfig
	scores *cache.Store[pairKey, float64]
	logger logger.Logger
}

type pairKey struct {
	algorithm Algorithm
	a, b      string
}

// NewMatcher creates a matcher with the specified configuration
func NewMatcher(config *MatchingConfig) *Matcher {
	if config == nil {
		config = DefaultMatchingConfig()
	}
	return &Matcher{
		Config: config,
		scores: cache.New[pairKey, float64](),
		logger: logger.GetGlobalLogger().WithComponent("matcher"),
	}
}

// Similarity returns a ratio in [0,1] for a and b. The block ratio is taken
// in both directions and the larger kept, so Similarity(a, b) always equals
// Similarity(b, a).
func (m *Matcher) Similarity(a, b string) float64 {
	na, nb := Normalize(a), Normalize(b)
	if nb < na {
		na, nb = nb, na
	}
	key := pairKey{algorithm: m.Config.Algorithm, a: na, b: nb}

	if !m.Config.CacheEnabled {
		return m.ratio(na, nb)
	}
	// ratio never fails
	v, _ := m.scores.GetOrCompute(key, func() (float64, error) {
		return m.ratio(na, nb), nil
	})
	return v
}

func (m *Matcher) ratio(na, nb string) float64 {
	switch m.Config.Algorithm {
	case AlgorithmLevenshtein:
		return LevenshteinRatio(na, nb)
	default:
		return math.Max(SequenceRatio(na, nb), SequenceRatio(nb, na))
	}
}

// BestMatch returns the candidate most similar to label and its ratio. Ties
// keep the earliest candidate. No candidates yields ("", 0).
func (m *Matcher) BestMatch(label string, candidates []string) (string, float64) {
	best := ""
	bestRatio := -1.0
	for _, c := range candidates {
		if r := m.Similarity(label, c); r > bestRatio {
			best, bestRatio = c, r
		}
	}
	if bestRatio < 0 {
		return "", 0
	}
	return best, bestRatio
}

// ConfidenceFor buckets a ratio into a confidence tier
func (m *Matcher) ConfidenceFor(ratio float64) models.Confidence {
	switch {
	case ratio >= m.Config.HighThreshold:
		return models.ConfidenceHigh
	case ratio >= m.Config.MediumThreshold:
		return models.ConfidenceMedium
	case ratio >= m.Config.LowThreshold:
		return models.ConfidenceLow
	default:
		return models.ConfidenceNone
	}
}

// Suggest builds an automatic mapping entry for label. A ratio below the low
// threshold leaves the rolling account empty.
func (m *Matcher) Suggest(label string, candidates []string) models.AccountMapping {
	account, ratio := m.BestMatch(label, candidates)
	confidence := m.ConfidenceFor(ratio)
	if confidence == models.ConfidenceNone {
		account = ""
	}

	m.logger.WithFields(logger.Fields{
		"label":      label,
		"account":    account,
		"ratio":      ratio,
		"confidence": string(confidence),
	}).Debug("Suggested rolling account")

	return models.AccountMapping{
		SourceLabel:    label,
		RollingAccount: account,
		Confidence:     confidence,
		Similarity:     Percentage(ratio),
	}
}

// Percentage converts a ratio to a percentage rounded to one decimal place
func Percentage(ratio float64) float64 {
	return math.Round(ratio*1000) / 10
}

// InvalidateCache drops every memoized score
func (m *Matcher) InvalidateCache() {
	m.scores.InvalidateAll()
}

// CacheStats reports score cache usage
func (m *Matcher) CacheStats() cache.Stats {
	return m.scores.Stats()
}
