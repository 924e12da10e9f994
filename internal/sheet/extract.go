package sheet

import (
	"strings"

	"rolling-pnl-reconciler/internal/parsers"
)

// LabelCell is a label and the first cell it was found in.
type LabelCell struct {
	Label string `json:"label"`
	Row   int    `json:"row"`
	Col   int    `json:"col"`
}

// ExtractLabelCells walks rng row-major and returns each distinct trimmed
// label with its first position. Ranges past the sheet's extent are clamped.
func ExtractLabelCells(g *Grid, rng RangeAddress, excludeNumeric bool) []LabelCell {
	clamped, ok := rng.Clamp(g.Rows(), g.Cols())
	if !ok {
		return nil
	}

	seen := make(map[string]bool)
	var out []LabelCell
	for row := clamped.StartRow; row <= clamped.EndRow; row++ {
		for col := clamped.StartCol; col <= clamped.EndCol; col++ {
			label, ok := labelAt(g, row, col, excludeNumeric)
			if !ok || seen[label] {
				continue
			}
			seen[label] = true
			out = append(out, LabelCell{Label: label, Row: row, Col: col})
		}
	}
	return out
}

// ExtractLabels returns the distinct labels of rng in first-seen order.
func ExtractLabels(g *Grid, rng RangeAddress, excludeNumeric bool) []string {
	cells := ExtractLabelCells(g, rng, excludeNumeric)
	labels := make([]string, len(cells))
	for i, c := range cells {
		labels[i] = c.Label
	}
	return labels
}

// IsPurelyNumeric reports whether a cell's text is a number after currency
// symbols, commas and parentheses are stripped.
func IsPurelyNumeric(text string) bool {
	return parsers.IsPurelyNumeric(text)
}

func labelAt(g *Grid, row, col int, excludeNumeric bool) (string, bool) {
	c := g.Cell(row, col)
	if c.IsEmpty() {
		return "", false
	}
	text := strings.TrimSpace(c.Text)
	if c.Kind == CellFormula {
		text = strings.TrimSpace(c.Raw)
	}
	if text == "" {
		return "", false
	}
	if excludeNumeric && (c.Kind == CellNumber || IsPurelyNumeric(text)) {
		return "", false
	}
	return text, true
}
