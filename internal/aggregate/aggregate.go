// Package aggregate reads per-account amounts for the target month and sums
// them by rolling account.
package aggregate

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"rolling-pnl-reconciler/internal/models"
	"rolling-pnl-reconciler/internal/parsers"
	"rolling-pnl-reconciler/internal/sheet"
	apperrors "rolling-pnl-reconciler/pkg/errors"
	"rolling-pnl-reconciler/pkg/logger"
)

// Config controls amount extraction
type Config struct {
	// DiagnosticLimit caps collected per-cell diagnostics; 0 keeps all
	DiagnosticLimit int `json:"diagnostic_limit"`
}

// DefaultConfig returns the default aggregation configuration
func DefaultConfig() *Config {
	return &Config{DiagnosticLimit: 500}
}

// Validate checks the aggregation configuration
func (c *Config) Validate() error {
	if c.DiagnosticLimit < 0 {
		return fmt.Errorf("diagnostic limit cannot be negative: %d", c.DiagnosticLimit)
	}
	return nil
}

// Engine extracts monthly amounts and aggregates them
type Engine struct {
	config *Config
	logger logger.Logger
}

// NewEngine creates an aggregation engine; nil config uses defaults
func NewEngine(config *Config) *Engine {
	if config == nil {
		config = DefaultConfig()
	}
	return &Engine{
		config: config,
		logger: logger.GetGlobalLogger().WithComponent("aggregate"),
	}
}

// ExtractMonthlyAmounts reads, for every label in rng, the amount in the
// target month's column on the label's row. Empty and unparseable cells are
// left out of the result; unparseable ones are reported as diagnostics.
func (e *Engine) ExtractMonthlyAmounts(g *sheet.Grid, rng sheet.RangeAddress, target models.TargetMonth) (models.MonthlyAmounts, []apperrors.Diagnostic, error) {
	col := target.ColumnIndex
	if col < 1 || col > g.Cols() {
		return nil, nil, apperrors.ReconciliationError(apperrors.CodeStaleTargetMonth, "amount extraction",
			fmt.Errorf("target column %d outside sheet width %d", col, g.Cols())).
			WithContext("sheet", g.Sheet).
			WithContext("column", sheet.NumberToColumnLetters(col))
	}

	collector := apperrors.NewDiagnosticCollector(e.config.DiagnosticLimit)
	amounts := make(models.MonthlyAmounts)

	for _, lc := range sheet.ExtractLabelCells(g, rng, true) {
		cell := g.Cell(lc.Row, col)
		name := sheet.CellName(lc.Row, col)

		amount, ok := cellAmount(cell)
		if !ok {
			if !cell.IsEmpty() {
				collector.Add(apperrors.InvalidAmountDiagnostic(g.Sheet, name, strings.TrimSpace(cell.Text)))
			}
			e.logger.WithFields(logger.Fields{
				"label": lc.Label,
				"cell":  name,
				"kind":  cell.Kind.String(),
			}).Debug("Skipping amount cell")
			continue
		}
		amounts[lc.Label] = amount
	}

	e.logger.WithFields(logger.Fields{
		"sheet":   g.Sheet,
		"column":  sheet.NumberToColumnLetters(col),
		"amounts": len(amounts),
		"skipped": len(collector.Diagnostics()) + collector.Dropped(),
	}).Info("Extracted monthly amounts")

	return amounts, collector.Diagnostics(), nil
}

func cellAmount(c sheet.Cell) (decimal.Decimal, bool) {
	switch c.Kind {
	case sheet.CellNumber:
		if d, err := decimal.NewFromString(strings.TrimSpace(c.Raw)); err == nil {
			return d, true
		}
		return decimal.NewFromFloat(c.Number), true
	case sheet.CellFormula:
		// Formula-preserving grids keep the cached result in Raw.
		if d, err := parsers.ParseAmount(c.Raw); err == nil {
			return d, true
		}
	case sheet.CellText:
		if d, err := parsers.ParseAmount(c.Text); err == nil {
			return d, true
		}
	}
	return decimal.Zero, false
}

// Aggregate sums monthly amounts by the rolling account each label maps to.
// Labels without a mapping or mapped to nothing are skipped.
func Aggregate(monthly models.MonthlyAmounts, mappings *models.MappingSet) models.AggregatedAmounts {
	out := make(models.AggregatedAmounts)
	for label, amount := range monthly {
		m, ok := mappings.Get(label)
		if !ok || !m.IsMapped() {
			continue
		}
		out[m.RollingAccount] = out[m.RollingAccount].Add(amount)
	}
	return out
}

// Unmapped returns the labels with an amount but no rolling account, sorted.
func Unmapped(monthly models.MonthlyAmounts, mappings *models.MappingSet) []string {
	var out []string
	for _, label := range monthly.Labels() {
		if m, ok := mappings.Get(label); !ok || !m.IsMapped() {
			out = append(out, label)
		}
	}
	return out
}
