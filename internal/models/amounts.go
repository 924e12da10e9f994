package models

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
)

// MonthlyAmounts maps a source account label to its amount in the target month.
type MonthlyAmounts map[string]decimal.Decimal

// AggregatedAmounts maps a rolling account label to the sum of the source
// amounts mapped onto it.
type AggregatedAmounts map[string]decimal.Decimal

// Labels returns the keys in sorted order
func (m MonthlyAmounts) Labels() []string {
	return sortedKeys(m)
}

// Total sums all amounts
func (m MonthlyAmounts) Total() decimal.Decimal {
	return sum(m)
}

// Labels returns the keys in sorted order
func (a AggregatedAmounts) Labels() []string {
	return sortedKeys(a)
}

// Total sums all amounts
func (a AggregatedAmounts) Total() decimal.Decimal {
	return sum(a)
}

func sortedKeys(m map[string]decimal.Decimal) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func sum(m map[string]decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, v := range m {
		total = total.Add(v)
	}
	return total
}

// TargetMonthSource records which heuristic located the target month column.
type TargetMonthSource string

const (
	// SourceDatePattern is a header that parsed as a month/year
	SourceDatePattern TargetMonthSource = "date_pattern"
	// SourceActualKeyword is a header containing "actual" or "current"
	SourceActualKeyword TargetMonthSource = "actual_keyword"
	// SourceNumericData is the rightmost column holding numbers
	SourceNumericData TargetMonthSource = "numeric_data"
	// SourceManual is a column chosen by a user
	SourceManual TargetMonthSource = "manual"
)

// TargetMonth identifies the source column holding the reporting month.
type TargetMonth struct {
	ColumnIndex int               `json:"column_index" toml:"column_index"`
	HeaderLabel string            `json:"header_label" toml:"header_label"`
	Year        int               `json:"year,omitempty" toml:"year,omitempty"`
	Month       int               `json:"month,omitempty" toml:"month,omitempty"`
	Source      TargetMonthSource `json:"source" toml:"source"`
}

// String returns a string representation of the TargetMonth
func (t TargetMonth) String() string {
	return fmt.Sprintf("TargetMonth{Column: %d, Header: %q, Source: %s}", t.ColumnIndex, t.HeaderLabel, t.Source)
}

// HasPeriod reports whether a calendar month was recognized for the column.
func (t TargetMonth) HasPeriod() bool {
	return t.Year > 0 && t.Month >= 1 && t.Month <= 12
}

// PreviewRow describes one rolling cell that a write-back would touch.
type PreviewRow struct {
	Row            int             `json:"row"`
	Cell           string          `json:"cell"`
	RollingAccount string          `json:"rolling_account"`
	ExistingValue  string          `json:"existing_value"`
	ExistingTotal  decimal.Decimal `json:"existing_total"`
	Evaluated      bool            `json:"evaluated"`
	NewAmount      decimal.Decimal `json:"new_amount"`
	ComposedValue  string          `json:"composed_value"`
}
