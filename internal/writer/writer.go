package writer

import (
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"rolling-pnl-reconciler/internal/models"
	"rolling-pnl-reconciler/internal/parsers"
	"rolling-pnl-reconciler/internal/sheet"
	apperrors "rolling-pnl-reconciler/pkg/errors"
	"rolling-pnl-reconciler/pkg/logger"
)

// WrittenCell records one cell changed by a write
type WrittenCell struct {
	Row            int    `json:"row"`
	Cell           string `json:"cell"`
	RollingAccount string `json:"rolling_account"`
	Value          string `json:"value"`
}

// Result summarizes a write-back
type Result struct {
	Column      int                    `json:"column"`
	Header      string                 `json:"header"`
	OutputFile  string                 `json:"output_file,omitempty"`
	Written     []WrittenCell          `json:"written"`
	Unplaced    []string               `json:"unplaced,omitempty"`
	Diagnostics []apperrors.Diagnostic `json:"diagnostics,omitempty"`
}

// Count returns the number of cells written
func (r *Result) Count() int {
	return len(r.Written)
}

// Writer composes and stores aggregated amounts in a rolling sheet
type Writer struct {
	config *Config
	logger logger.Logger
}

// NewWriter creates a writer; nil config uses defaults
func NewWriter(config *Config) *Writer {
	if config == nil {
		config = DefaultConfig()
	}
	return &Writer{
		config: config,
		logger: logger.GetGlobalLogger().WithComponent("writer"),
	}
}

// ComposeWriteValue combines an existing cell with a new amount. The boolean
// reports that an accumulated formula was too long and the plain amount is
// used instead.
func (w *Writer) ComposeWriteValue(existing sheet.Cell, amount decimal.Decimal) (WriteValue, bool) {
	return compose(existing, amount, w.config.FormulaCeiling)
}

// FindMatchingColumn returns the header-row column whose header equals label,
// or else whose header names the same month and year as label.
func (w *Writer) FindMatchingColumn(g *sheet.Grid, label string) (int, bool) {
	want := strings.TrimSpace(label)
	if col, ok := w.findExact(g, want); ok {
		return col, true
	}
	p, err := parsers.ParseMonthLabel(want)
	if err != nil {
		return 0, false
	}
	return w.findPeriod(g, p)
}

// FindColumnForTarget locates the rolling column for a resolved target month,
// comparing by calendar month when the month is known.
func (w *Writer) FindColumnForTarget(g *sheet.Grid, target models.TargetMonth) (int, error) {
	if col, ok := w.findExact(g, strings.TrimSpace(target.HeaderLabel)); ok {
		return col, nil
	}
	if target.HasPeriod() {
		if col, ok := w.findPeriod(g, parsers.Period{Year: target.Year, Month: target.Month}); ok {
			return col, nil
		}
	} else if col, ok := w.FindMatchingColumn(g, target.HeaderLabel); ok {
		return col, nil
	}
	return 0, apperrors.MatchingColumnNotFoundError(g.Sheet, target.HeaderLabel).
		WithContext("file_path", g.Path)
}

func (w *Writer) findExact(g *sheet.Grid, want string) (int, bool) {
	if want == "" {
		return 0, false
	}
	for col := 1; col <= g.Cols(); col++ {
		if cellText(g.Cell(w.config.HeaderRow, col)) == want {
			return col, true
		}
	}
	return 0, false
}

func (w *Writer) findPeriod(g *sheet.Grid, want parsers.Period) (int, bool) {
	for col := 1; col <= g.Cols(); col++ {
		if p, ok := headerPeriod(g.Cell(w.config.HeaderRow, col)); ok && p == want {
			return col, true
		}
	}
	return 0, false
}

func headerPeriod(c sheet.Cell) (parsers.Period, bool) {
	switch c.Kind {
	case sheet.CellDate:
		return parsers.PeriodOf(c.Time), true
	case sheet.CellFormula:
		// A date formula caches its serial number.
		if f, err := strconv.ParseFloat(strings.TrimSpace(c.Raw), 64); err == nil {
			if t, err := excelize.ExcelDateToTime(f, false); err == nil && f > 1 {
				return parsers.PeriodOf(t), true
			}
			return parsers.Period{}, false
		}
	case sheet.CellEmpty, sheet.CellNumber:
		return parsers.Period{}, false
	}
	p, err := parsers.ParseMonthLabel(cellText(c))
	return p, err == nil
}

// cellText is the trimmed visible text of c; formulas yield their cached value.
func cellText(c sheet.Cell) string {
	if c.Kind == sheet.CellFormula {
		return strings.TrimSpace(c.Raw)
	}
	return strings.TrimSpace(c.Text)
}

type plannedCell struct {
	row      int
	name     string
	account  string
	existing sheet.Cell
	amount   decimal.Decimal
	value    WriteValue
	tooLong  bool
}

func (w *Writer) labelColumn(rollingRange sheet.RangeAddress) int {
	if w.config.LabelColumn > 0 {
		return w.config.LabelColumn
	}
	return rollingRange.StartCol
}

// plan lists the cells of targetCol, within rollingRange, whose row label is
// an aggregated rolling account.
func (w *Writer) plan(g *sheet.Grid, targetCol int, rollingRange sheet.RangeAddress, aggregated models.AggregatedAmounts) ([]plannedCell, []string) {
	labelCol := w.labelColumn(rollingRange)
	placed := make(map[string]bool)
	var cells []plannedCell

	first, last := rollingRange.StartRow, rollingRange.EndRow
	if last > g.Rows() {
		last = g.Rows()
	}
	for row := first; row <= last; row++ {
		account := cellText(g.Cell(row, labelCol))
		amount, ok := aggregated[account]
		if account == "" || !ok {
			continue
		}
		existing := g.Cell(row, targetCol)
		value, tooLong := w.ComposeWriteValue(existing, amount)
		cells = append(cells, plannedCell{
			row:      row,
			name:     sheet.CellName(row, targetCol),
			account:  account,
			existing: existing,
			amount:   amount,
			value:    value,
			tooLong:  tooLong,
		})
		placed[account] = true
	}

	var unplaced []string
	for account := range aggregated {
		if !placed[account] {
			unplaced = append(unplaced, account)
		}
	}
	sort.Strings(unplaced)
	return cells, unplaced
}

// Write stores aggregated amounts into targetCol of the sheet g was loaded
// from. g must reflect the current contents of f, loaded formula-preserving.
func (w *Writer) Write(f *excelize.File, g *sheet.Grid, targetCol int, rollingRange sheet.RangeAddress, aggregated models.AggregatedAmounts) (*Result, error) {
	cells, unplaced := w.plan(g, targetCol, rollingRange, aggregated)
	result := &Result{
		Column:   targetCol,
		Header:   cellText(g.Cell(w.config.HeaderRow, targetCol)),
		Unplaced: unplaced,
	}

	for _, pc := range cells {
		var err error
		if pc.value.IsFormula() {
			err = f.SetCellFormula(g.Sheet, pc.name, strings.TrimPrefix(pc.value.Formula, "="))
		} else {
			err = f.SetCellValue(g.Sheet, pc.name, pc.amount.InexactFloat64())
		}
		if err != nil {
			return nil, apperrors.FileError(apperrors.CodeWriteFailed, g.Path, err).
				WithContext("sheet", g.Sheet).
				WithContext("cell", pc.name)
		}

		if pc.tooLong {
			formula, _ := accumulate(pc.existing, pc.amount)
			length := len(formula)
			d := apperrors.FormulaTooLongDiagnostic(g.Sheet, pc.name, length, w.config.FormulaCeiling)
			result.Diagnostics = append(result.Diagnostics, d)
			w.logger.WithFields(logger.Fields{
				"cell":    pc.name,
				"account": pc.account,
				"length":  length,
			}).Warn("Formula too long, overwrote cell with the new amount")
		}

		result.Written = append(result.Written, WrittenCell{
			Row:            pc.row,
			Cell:           pc.name,
			RollingAccount: pc.account,
			Value:          pc.value.String(),
		})
	}

	if len(unplaced) > 0 {
		w.logger.WithFields(logger.Fields{
			"sheet":    g.Sheet,
			"accounts": strings.Join(unplaced, ", "),
		}).Warn("Rolling accounts without a row in the rolling range")
	}
	w.logger.WithFields(logger.Fields{
		"sheet":   g.Sheet,
		"column":  sheet.NumberToColumnLetters(targetCol),
		"written": result.Count(),
	}).Info("Wrote aggregated amounts")

	return result, nil
}

// Preview describes the cells Write would change without changing them. f is
// optional and lets formulas with cell references be evaluated.
func (w *Writer) Preview(f *excelize.File, g *sheet.Grid, targetCol int, rollingRange sheet.RangeAddress, aggregated models.AggregatedAmounts) []models.PreviewRow {
	cells, _ := w.plan(g, targetCol, rollingRange, aggregated)
	rows := make([]models.PreviewRow, 0, len(cells))
	for _, pc := range cells {
		total, ok := existingTotal(f, g.Sheet, pc.name, pc.existing)
		rows = append(rows, models.PreviewRow{
			Row:            pc.row,
			Cell:           pc.name,
			RollingAccount: pc.account,
			ExistingValue:  strings.TrimSpace(pc.existing.Text),
			ExistingTotal:  total,
			Evaluated:      ok,
			NewAmount:      pc.amount,
			ComposedValue:  pc.value.String(),
		})
	}
	return rows
}

func existingTotal(f *excelize.File, sheetName, cell string, c sheet.Cell) (decimal.Decimal, bool) {
	switch c.Kind {
	case sheet.CellEmpty:
		return decimal.Zero, true
	case sheet.CellNumber:
		if d, err := decimal.NewFromString(strings.TrimSpace(c.Raw)); err == nil {
			return d, true
		}
		return decimal.NewFromFloat(c.Number), true
	case sheet.CellFormula:
		if d, ok := EvaluateSimple(c.Text); ok {
			return d, true
		}
		if f != nil {
			if v, err := f.CalcCellValue(sheetName, cell); err == nil {
				if d, err := parsers.ParseAmount(v); err == nil {
					return d, true
				}
			}
		}
	case sheet.CellText:
		if d, err := parsers.ParseAmount(c.Text); err == nil {
			return d, true
		}
	}
	return decimal.Zero, false
}

// WriteToFile opens the rolling workbook, writes aggregated amounts into the
// column matching target and saves the result to outputPath. The rolling
// workbook itself is never modified unless outputPath names it.
func (w *Writer) WriteToFile(rollingPath, outputPath string, g *sheet.Grid, target models.TargetMonth, rollingRange sheet.RangeAddress, aggregated models.AggregatedAmounts) (*Result, error) {
	col, err := w.FindColumnForTarget(g, target)
	if err != nil {
		return nil, err
	}

	if _, err := os.Stat(rollingPath); err != nil {
		return nil, apperrors.FileError(apperrors.CodeFileNotFound, rollingPath, err)
	}
	f, err := excelize.OpenFile(rollingPath)
	if err != nil {
		return nil, apperrors.FileError(apperrors.CodeFileCorrupted, rollingPath, err)
	}
	defer f.Close()

	result, err := w.Write(f, g, col, rollingRange, aggregated)
	if err != nil {
		return nil, err
	}

	if err := f.SaveAs(outputPath); err != nil {
		return nil, apperrors.FileError(apperrors.CodeWriteFailed, outputPath, err)
	}
	result.OutputFile = outputPath
	return result, nil
}
