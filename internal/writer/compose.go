package writer

import (
	"strings"

	"github.com/shopspring/decimal"

	"rolling-pnl-reconciler/internal/sheet"
)

// WriteValue is what will be stored in a rolling cell: a plain amount or a
// formula accumulating the amount onto the cell's history.
type WriteValue struct {
	Amount decimal.Decimal
	// Formula is set, with its leading "=", when the value is a formula
	Formula string
}

// IsFormula reports whether the value is a formula
func (v WriteValue) IsFormula() bool {
	return v.Formula != ""
}

// String renders the value as it would be typed into the cell
func (v WriteValue) String() string {
	if v.IsFormula() {
		return v.Formula
	}
	return v.Amount.String()
}

// compose combines an existing cell with a new amount:
//   - empty or zero: the amount
//   - formula: "=(<existing>)+<amount>", unless longer than ceiling
//   - number: "=<existing>+<amount>"
//   - text or date: the amount, overwriting the cell
//
// The boolean reports that a formula was abandoned for exceeding ceiling.
func compose(existing sheet.Cell, amount decimal.Decimal, ceiling int) (WriteValue, bool) {
	plain := WriteValue{Amount: amount}

	switch existing.Kind {
	case sheet.CellFormula:
		formula, ok := accumulate(existing, amount)
		if !ok {
			return plain, false
		}
		if len(formula) > ceiling {
			return plain, true
		}
		return WriteValue{Amount: amount, Formula: formula}, false

	case sheet.CellNumber:
		if existing.Number == 0 {
			return plain, false
		}
		prev := strings.TrimSpace(existing.Raw)
		if d, err := decimal.NewFromString(prev); err == nil {
			prev = d.String()
		} else {
			prev = decimal.NewFromFloat(existing.Number).String()
		}
		return WriteValue{Amount: amount, Formula: "=" + prev + "+" + amount.String()}, false

	default:
		return plain, false
	}
}

// accumulate wraps the formula held by c and adds amount to it.
func accumulate(c sheet.Cell, amount decimal.Decimal) (string, bool) {
	expr := strings.TrimPrefix(strings.TrimSpace(c.Text), "=")
	if expr == "" {
		return "", false
	}
	return "=(" + expr + ")+" + amount.String(), true
}
