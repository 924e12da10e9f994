// Package classifier separates postable ledger accounts from headings and totals.
package classifier

import (
	"regexp"
	"strings"
	"unicode"
)

// Config holds the vocabularies used to recognize headings
type Config struct {
	// HeadingKeywords mark a label as a heading or total when contained in it
	HeadingKeywords []string `json:"heading_keywords"`

	// CategoryTerms are income/expense/balance-sheet category names
	CategoryTerms []string `json:"category_terms"`

	// CapitalizedRatio is the share of capitalized words that marks a heading
	CapitalizedRatio float64 `json:"capitalized_ratio"`

	// ShortLabelWords is the word count at or below which a digit-free label is a heading
	ShortLabelWords int `json:"short_label_words"`
}

// DefaultConfig returns the default classifier vocabulary
func DefaultConfig() *Config {
	return &Config{
		HeadingKeywords: []string{
			"total", "subtotal", "sum", "grand total", "heading",
			"section", "category", "group", "division",
		},
		CategoryTerms: []string{
			"income", "revenue", "expense", "expenses", "utilities", "insurance",
			"assets", "liabilities", "equity", "cost of goods sold", "cost of sales",
			"operating", "payroll", "taxes", "maintenance", "administrative",
			"other income", "other expense", "current assets", "fixed assets",
			"current liabilities", "long-term liabilities",
		},
		CapitalizedRatio: 0.7,
		ShortLabelWords:  4,
	}
}

// Classifier decides whether labels are postable accounts
type Classifier struct {
	config *Config
}

// New creates a classifier; a nil config uses the defaults
func New(config *Config) *Classifier {
	if config == nil {
		config = DefaultConfig()
	}
	return &Classifier{config: config}
}

var accountNumberPatterns = []*regexp.Regexp{
	regexp.MustCompile(`^\s*\d{3,}`),
	regexp.MustCompile(`\d{3,}-\d{3,}`),
	regexp.MustCompile(`\d{3,}\.\d{2,}`),
	regexp.MustCompile(`#\d{3,}`),
	regexp.MustCompile(`(?i)\bGL\s*\d{3,}`),
}

// HasAccountNumber reports whether label carries a ledger account number:
// a leading run of three or more digits, NNN-NNN, NNN.NN, #NNN or GL NNN.
func HasAccountNumber(label string) bool {
	for _, p := range accountNumberPatterns {
		if p.MatchString(label) {
			return true
		}
	}
	return false
}

// IsPostableAccount reports whether label is a ledger account. An account
// number always wins over every heading heuristic.
func (c *Classifier) IsPostableAccount(label string) bool {
	return c.Classify(label) == KindAccount
}

// IsHeadingOrTotal is the inverse of IsPostableAccount
func (c *Classifier) IsHeadingOrTotal(label string) bool {
	return !c.IsPostableAccount(label)
}

// Kind is the classification of a label along with the rule that decided it
type Kind string

const (
	KindAccount Kind = "account"
	KindHeading Kind = "heading"
)

// Reason names the rule that decided a classification
type Reason string

const (
	ReasonAccountNumber Reason = "account_number"
	ReasonKeyword       Reason = "heading_keyword"
	ReasonCategory      Reason = "category_term"
	ReasonCapitalized   Reason = "capitalized"
	ReasonShortLabel    Reason = "short_label"
	ReasonDefault       Reason = "default"
	ReasonEmpty         Reason = "empty"
)

// Classify returns the kind of label
func (c *Classifier) Classify(label string) Kind {
	kind, _ := c.Explain(label)
	return kind
}

// Explain returns the kind of label and the rule that decided it.
func (c *Classifier) Explain(label string) (Kind, Reason) {
	trimmed := strings.TrimSpace(label)
	if trimmed == "" {
		return KindHeading, ReasonEmpty
	}

	if HasAccountNumber(trimmed) {
		return KindAccount, ReasonAccountNumber
	}

	lower := strings.ToLower(trimmed)
	for _, kw := range c.config.HeadingKeywords {
		if strings.Contains(lower, kw) {
			return KindHeading, ReasonKeyword
		}
	}

	for _, term := range c.config.CategoryTerms {
		if strings.Contains(lower, term) {
			return KindHeading, ReasonCategory
		}
	}

	if c.mostlyCapitalized(trimmed) || isShoutedLabel(trimmed) {
		return KindHeading, ReasonCapitalized
	}

	if len(strings.Fields(trimmed)) <= c.config.ShortLabelWords && !containsDigit(trimmed) {
		return KindHeading, ReasonShortLabel
	}

	return KindAccount, ReasonDefault
}

// mostlyCapitalized reports whether the configured share of the label's
// alphabetic words start with an upper-case letter.
func (c *Classifier) mostlyCapitalized(label string) bool {
	words := 0
	capitalized := 0
	for _, w := range strings.Fields(label) {
		first, ok := firstLetter(w)
		if !ok {
			continue
		}
		words++
		if unicode.IsUpper(first) {
			capitalized++
		}
	}
	if words == 0 {
		return false
	}
	return float64(capitalized)/float64(words) >= c.config.CapitalizedRatio
}

func isShoutedLabel(label string) bool {
	n := len([]rune(label))
	if n < 3 || n > 49 {
		return false
	}
	hasLetter := false
	for _, r := range label {
		if unicode.IsLetter(r) {
			hasLetter = true
			if unicode.IsLower(r) {
				return false
			}
		}
	}
	return hasLetter
}

func firstLetter(word string) (rune, bool) {
	for _, r := range word {
		if unicode.IsLetter(r) {
			return r, true
		}
	}
	return 0, false
}

func containsDigit(s string) bool {
	for _, r := range s {
		if unicode.IsDigit(r) {
			return true
		}
	}
	return false
}
