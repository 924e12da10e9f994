// Package parsers turns spreadsheet cell text into amounts and reporting periods.
package parsers

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

var currencyReplacer = strings.NewReplacer(
	"$", "",
	"\u20ac", "",
	"\u00a3", "",
	"\u00a5", "",
	",", "",
	" ", "",
	"\u00a0", "",
)

// ParseAmount parses a currency-formatted number such as "$1,234.56" or "(123)".
// Parentheses denote a negative amount.
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, fmt.Errorf("amount string cannot be empty")
	}

	cleaned := currencyReplacer.Replace(s)
	negative := false
	if strings.HasPrefix(cleaned, "(") && strings.HasSuffix(cleaned, ")") {
		negative = true
		cleaned = strings.TrimSuffix(strings.TrimPrefix(cleaned, "("), ")")
	}
	if cleaned == "" {
		return decimal.Zero, fmt.Errorf("invalid amount format '%s'", s)
	}

	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid amount format '%s': %w", s, err)
	}

	if negative {
		d = d.Neg()
	}
	return d, nil
}

// IsPurelyNumeric reports whether text is a number once currency symbols,
// thousands separators and parentheses are removed.
func IsPurelyNumeric(s string) bool {
	cleaned := currencyReplacer.Replace(strings.TrimSpace(s))
	cleaned = strings.NewReplacer("(", "", ")", "").Replace(cleaned)
	if cleaned == "" {
		return false
	}

	f, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return false
	}
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// FormatAmount renders an amount the way it is written into formulas.
func FormatAmount(d decimal.Decimal) string {
	return d.String()
}
