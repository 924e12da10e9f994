package sheet

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"rolling-pnl-reconciler/internal/parsers"
)

// CellKind classifies a cell's value
type CellKind int

const (
	CellEmpty CellKind = iota
	CellNumber
	CellText
	CellDate
	CellFormula
)

// String returns the string representation of CellKind
func (k CellKind) String() string {
	switch k {
	case CellNumber:
		return "number"
	case CellText:
		return "text"
	case CellDate:
		return "date"
	case CellFormula:
		return "formula"
	default:
		return "empty"
	}
}

// Cell is one typed worksheet value.
type Cell struct {
	Kind CellKind
	// Text is the displayed value, or the formula with its leading "=" for CellFormula.
	Text string
	// Raw is the stored value without number formatting.
	Raw    string
	Number float64
	Time   time.Time
}

// IsEmpty reports whether the cell holds nothing
func (c Cell) IsEmpty() bool {
	return c.Kind == CellEmpty
}

// Stamp is the state of the file a grid was read from. Grids built in
// memory carry the zero stamp.
type Stamp struct {
	ModTime time.Time
	Size    int64
}

// Equal reports whether both stamps describe the same file state
func (s Stamp) Equal(other Stamp) bool {
	return s.ModTime.Equal(other.ModTime) && s.Size == other.Size
}

// Grid is a worksheet loaded into memory, addressed 1-based.
type Grid struct {
	Path  string
	Sheet string
	Mode  LoadMode
	Stamp Stamp
	rows  [][]Cell
	cols  int
}

// NewGrid builds a grid from cells, mostly for tests and callers that already
// hold sheet data.
func NewGrid(sheetName string, rows [][]Cell) *Grid {
	g := &Grid{Sheet: sheetName, rows: rows}
	for _, r := range rows {
		if len(r) > g.cols {
			g.cols = len(r)
		}
	}
	return g
}

// GridFromStrings builds a data-only grid from display strings, classifying
// each value as the reader would.
func GridFromStrings(sheetName string, rows [][]string) *Grid {
	cells := make([][]Cell, len(rows))
	for i, r := range rows {
		cells[i] = make([]Cell, len(r))
		for j, v := range r {
			cells[i][j] = classify(v, v)
		}
	}
	return NewGrid(sheetName, cells)
}

// Rows returns the number of rows holding data
func (g *Grid) Rows() int {
	return len(g.rows)
}

// Cols returns the widest row's column count
func (g *Grid) Cols() int {
	return g.cols
}

// Cell returns the cell at (row, col); out-of-bounds positions are empty.
func (g *Grid) Cell(row, col int) Cell {
	if row < 1 || row > len(g.rows) {
		return Cell{}
	}
	r := g.rows[row-1]
	if col < 1 || col > len(r) {
		return Cell{}
	}
	return r[col-1]
}

// Text returns the trimmed display text at (row, col)
func (g *Grid) Text(row, col int) string {
	return strings.TrimSpace(g.Cell(row, col).Text)
}

var dateLike = regexp.MustCompile(`(?i)^\d{1,4}[/\-.]\d{1,2}([/\-.]\d{1,4})?(\s.*)?$|[a-z]{3,}[\s\-/]*\d{2,4}|^\d{1,2}[\s\-/][a-z]{3,}`)

// classify derives the kind of a cell from its displayed and raw values.
// A numeric raw value displayed as something date-shaped is a date serial.
func classify(display, raw string) Cell {
	if strings.TrimSpace(display) == "" && strings.TrimSpace(raw) == "" {
		return Cell{Kind: CellEmpty}
	}
	if display == "" {
		display = raw
	}

	if f, err := strconv.ParseFloat(strings.TrimSpace(raw), 64); err == nil {
		trimmed := strings.TrimSpace(display)
		if trimmed != strings.TrimSpace(raw) && !parsers.IsPurelyNumeric(trimmed) &&
			!strings.HasSuffix(trimmed, "%") && dateLike.MatchString(trimmed) {
			if t, err := excelize.ExcelDateToTime(f, false); err == nil {
				return Cell{Kind: CellDate, Text: display, Raw: raw, Number: f, Time: t}
			}
		}
		return Cell{Kind: CellNumber, Text: display, Raw: raw, Number: f}
	}

	return Cell{Kind: CellText, Text: display, Raw: raw}
}
