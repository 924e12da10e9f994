package errors

import (
	"fmt"
	"sort"
	"strings"
)

// Diagnostic describes a single cell that was skipped or degraded while
// processing a sheet. Diagnostics never abort an operation.
type Diagnostic struct {
	Sheet   string    `json:"sheet,omitempty"`
	Cell    string    `json:"cell,omitempty"`
	Value   string    `json:"value,omitempty"`
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

// String renders the diagnostic with its location.
func (d Diagnostic) String() string {
	location := d.Cell
	if d.Sheet != "" {
		location = d.Sheet + "!" + d.Cell
	}
	if d.Value != "" {
		return fmt.Sprintf("%s: %s (value %q)", location, d.Message, d.Value)
	}
	return fmt.Sprintf("%s: %s", location, d.Message)
}

// InvalidAmountDiagnostic is recorded for amount cells whose text is not a number.
func InvalidAmountDiagnostic(sheet, cell, value string) Diagnostic {
	return Diagnostic{
		Sheet:   sheet,
		Cell:    cell,
		Value:   value,
		Code:    CodeInvalidAmount,
		Message: "amount is not numeric, skipped",
	}
}

// FormulaTooLongDiagnostic is recorded when an accumulated formula would exceed
// the spreadsheet formula length ceiling and the cell was overwritten instead.
func FormulaTooLongDiagnostic(sheet, cell string, length, ceiling int) Diagnostic {
	return Diagnostic{
		Sheet:   sheet,
		Cell:    cell,
		Code:    CodeFormulaTooLong,
		Message: fmt.Sprintf("formula would be %d characters (limit %d), wrote plain amount", length, ceiling),
	}
}

// FormulaTooLongError is the error form of FormulaTooLongDiagnostic.
func FormulaTooLongError(sheet, cell string, length, ceiling int) *ReconcilerError {
	return New(CategoryReconciliation, CodeFormulaTooLong,
		fmt.Sprintf("formula for %s!%s would be %d characters (limit %d)", sheet, cell, length, ceiling)).
		WithSuggestion("consolidate the history in this cell before accumulating further").
		WithContext("sheet", sheet).
		WithContext("cell", cell)
}

// DiagnosticCollector collects per-cell diagnostics during processing
type DiagnosticCollector struct {
	diagnostics []Diagnostic
	limit       int
	dropped     int
}

// NewDiagnosticCollector creates a collector that keeps at most limit entries.
// A limit of zero or less keeps everything.
func NewDiagnosticCollector(limit int) *DiagnosticCollector {
	return &DiagnosticCollector{limit: limit}
}

// Add records a diagnostic.
func (c *DiagnosticCollector) Add(d Diagnostic) {
	if c.limit > 0 && len(c.diagnostics) >= c.limit {
		c.dropped++
		return
	}
	c.diagnostics = append(c.diagnostics, d)
}

// Merge appends all diagnostics from another collection.
func (c *DiagnosticCollector) Merge(ds []Diagnostic) {
	for _, d := range ds {
		c.Add(d)
	}
}

// HasDiagnostics returns true if anything was collected
func (c *DiagnosticCollector) HasDiagnostics() bool {
	return len(c.diagnostics) > 0 || c.dropped > 0
}

// Diagnostics returns the collected entries in insertion order.
func (c *DiagnosticCollector) Diagnostics() []Diagnostic {
	out := make([]Diagnostic, len(c.diagnostics))
	copy(out, c.diagnostics)
	return out
}

// Dropped returns how many diagnostics were discarded past the limit.
func (c *DiagnosticCollector) Dropped() int {
	return c.dropped
}

// CountByCode groups the collected diagnostics by code.
func (c *DiagnosticCollector) CountByCode() map[ErrorCode]int {
	counts := make(map[ErrorCode]int)
	for _, d := range c.diagnostics {
		counts[d.Code]++
	}
	return counts
}

// Clear clears all collected diagnostics
func (c *DiagnosticCollector) Clear() {
	c.diagnostics = c.diagnostics[:0]
	c.dropped = 0
}

// FormatDiagnosticsForUser formats diagnostics grouped by sheet.
func FormatDiagnosticsForUser(diagnostics []Diagnostic) string {
	if len(diagnostics) == 0 {
		return "No diagnostics"
	}

	bySheet := make(map[string][]Diagnostic)
	for _, d := range diagnostics {
		bySheet[d.Sheet] = append(bySheet[d.Sheet], d)
	}

	sheets := make([]string, 0, len(bySheet))
	for sheet := range bySheet {
		sheets = append(sheets, sheet)
	}
	sort.Strings(sheets)

	var lines []string
	lines = append(lines, fmt.Sprintf("Found %d diagnostics:", len(diagnostics)))

	maxDetailed := 5
	for _, sheet := range sheets {
		entries := bySheet[sheet]
		name := sheet
		if name == "" {
			name = "(no sheet)"
		}
		lines = append(lines, fmt.Sprintf("Sheet: %s (%d)", name, len(entries)))
		for i, d := range entries {
			if i == maxDetailed {
				lines = append(lines, fmt.Sprintf("  ... and %d more", len(entries)-maxDetailed))
				break
			}
			lines = append(lines, "  - "+d.String())
		}
	}

	return strings.Join(lines, "\n")
}
