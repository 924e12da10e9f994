// Package sheet loads worksheets into typed grids and addresses them with A1 ranges.
package sheet

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	apperrors "rolling-pnl-reconciler/pkg/errors"
)

// MaxRows is the worksheet height used when a reference omits its row.
const MaxRows = excelize.TotalRows

var refPattern = regexp.MustCompile(`^([A-Z]+)(\d*)$`)

// RangeAddress is a 1-based inclusive rectangle of cells.
type RangeAddress struct {
	StartRow int `json:"start_row"`
	EndRow   int `json:"end_row"`
	StartCol int `json:"start_col"`
	EndCol   int `json:"end_col"`
}

// ParseRange parses "A8:F170", "A1" or a whole-column "A". The input is
// upper-cased first. A side without a row number spans the full sheet height.
func ParseRange(s string) (RangeAddress, error) {
	input := strings.ToUpper(strings.TrimSpace(s))
	if input == "" {
		return RangeAddress{}, apperrors.InvalidRangeError(s, nil)
	}

	parts := strings.Split(input, ":")
	if len(parts) > 2 {
		return RangeAddress{}, apperrors.InvalidRangeError(s, nil)
	}

	startCol, startRow, err := parseRef(parts[0], 1)
	if err != nil {
		return RangeAddress{}, apperrors.InvalidRangeError(s, err)
	}

	endCol, endRow := startCol, startRow
	if len(parts) == 2 {
		endCol, endRow, err = parseRef(parts[1], MaxRows)
		if err != nil {
			return RangeAddress{}, apperrors.InvalidRangeError(s, err)
		}
	} else if !strings.ContainsAny(parts[0], "0123456789") {
		endRow = MaxRows
	}

	r := RangeAddress{StartRow: startRow, EndRow: endRow, StartCol: startCol, EndCol: endCol}
	return r.normalize(), nil
}

// MustParseRange is ParseRange for literals known to be valid.
func MustParseRange(s string) RangeAddress {
	r, err := ParseRange(s)
	if err != nil {
		panic(err)
	}
	return r
}

func parseRef(ref string, missingRow int) (col, row int, err error) {
	m := refPattern.FindStringSubmatch(ref)
	if m == nil {
		return 0, 0, fmt.Errorf("reference %q is not column letters followed by an optional row", ref)
	}

	col, err = ColumnLettersToNumber(m[1])
	if err != nil {
		return 0, 0, err
	}

	if m[2] == "" {
		return col, missingRow, nil
	}
	row, err = strconv.Atoi(m[2])
	if err != nil || row < 1 || row > MaxRows {
		return 0, 0, fmt.Errorf("row %q out of range", m[2])
	}
	return col, row, nil
}

func (r RangeAddress) normalize() RangeAddress {
	if r.StartRow > r.EndRow {
		r.StartRow, r.EndRow = r.EndRow, r.StartRow
	}
	if r.StartCol > r.EndCol {
		r.StartCol, r.EndCol = r.EndCol, r.StartCol
	}
	return r
}

// String renders the range in A1 notation
func (r RangeAddress) String() string {
	if r.StartRow == 1 && r.EndRow == MaxRows {
		if r.StartCol == r.EndCol {
			return NumberToColumnLetters(r.StartCol)
		}
		return NumberToColumnLetters(r.StartCol) + ":" + NumberToColumnLetters(r.EndCol)
	}

	start := NumberToColumnLetters(r.StartCol) + strconv.Itoa(r.StartRow)
	if r.StartRow == r.EndRow && r.StartCol == r.EndCol {
		return start
	}
	return start + ":" + NumberToColumnLetters(r.EndCol) + strconv.Itoa(r.EndRow)
}

// Rows returns the number of rows spanned
func (r RangeAddress) Rows() int {
	return r.EndRow - r.StartRow + 1
}

// Cols returns the number of columns spanned
func (r RangeAddress) Cols() int {
	return r.EndCol - r.StartCol + 1
}

// Clamp limits the range to a sheet of maxRow rows and maxCol columns. The
// second result is false when nothing of the range remains.
func (r RangeAddress) Clamp(maxRow, maxCol int) (RangeAddress, bool) {
	if r.EndRow > maxRow {
		r.EndRow = maxRow
	}
	if r.EndCol > maxCol {
		r.EndCol = maxCol
	}
	return r, r.StartRow <= r.EndRow && r.StartCol <= r.EndCol
}

// ColumnLettersToNumber converts "A" to 1, "Z" to 26, "AA" to 27.
func ColumnLettersToNumber(letters string) (int, error) {
	n, err := excelize.ColumnNameToNumber(letters)
	if err != nil {
		return 0, fmt.Errorf("invalid column %q: %w", letters, err)
	}
	return n, nil
}

// NumberToColumnLetters converts 1 to "A", 27 to "AA". It returns "" for
// numbers outside the worksheet column range.
func NumberToColumnLetters(n int) string {
	name, err := excelize.ColumnNumberToName(n)
	if err != nil {
		return ""
	}
	return name
}

// CellName renders a 1-based (row, col) pair as "F12".
func CellName(row, col int) string {
	return NumberToColumnLetters(col) + strconv.Itoa(row)
}
