package sheet

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	apperrors "rolling-pnl-reconciler/pkg/errors"
)

// createWorkbook writes an .xlsx with one sheet populated from cells (A1 name -> value).
// Values that are strings starting with "=" are written as formulas.
func createWorkbook(t *testing.T, sheetName string, cells map[string]interface{}) string {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()

	f.SetSheetName("Sheet1", sheetName)
	for cell, value := range cells {
		if s, ok := value.(string); ok && len(s) > 1 && s[0] == '=' {
			if err := f.SetCellFormula(sheetName, cell, s[1:]); err != nil {
				t.Fatalf("Failed to set formula %s: %v", cell, err)
			}
			continue
		}
		if err := f.SetCellValue(sheetName, cell, value); err != nil {
			t.Fatalf("Failed to set %s: %v", cell, err)
		}
	}

	path := filepath.Join(t.TempDir(), "book.xlsx")
	if err := f.SaveAs(path); err != nil {
		t.Fatalf("Failed to save workbook: %v", err)
	}
	return path
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name    string
		display string
		raw     string
		kind    CellKind
	}{
		{"empty", "", "", CellEmpty},
		{"number", "1234.5", "1234.5", CellNumber},
		{"formatted number", "$1,234.50", "1234.5", CellNumber},
		{"percent", "12%", "0.12", CellNumber},
		{"text", "Rent", "Rent", CellText},
		{"currency text", "$1,234.56", "$1,234.56", CellText},
		{"date serial", "6/1/25", "45809", CellDate},
		{"month format", "Jun-25", "45809", CellDate},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := classify(tt.display, tt.raw)
			if c.Kind != tt.kind {
				t.Errorf("Expected kind %s, got %s", tt.kind, c.Kind)
			}
		})
	}

	d := classify("6/1/25", "45809")
	if d.Time.Year() != 2025 || d.Time.Month() != time.June || d.Time.Day() != 1 {
		t.Errorf("Expected 2025-06-01, got %s", d.Time)
	}
}

func TestExtractLabels(t *testing.T) {
	g := GridFromStrings("P&L", [][]string{
		{"Header"},
		{"Rent", "1000"},
		{"  Utilities ", "$250.00"},
		{"Rent", "(50)"},
		{"1234", ""},
		{"", "Telephone"},
	})

	got := ExtractLabels(g, MustParseRange("A2:B200"), true)
	expected := []string{"Rent", "Utilities", "Telephone"}
	if len(got) != len(expected) {
		t.Fatalf("Expected %v, got %v", expected, got)
	}
	for i := range expected {
		if got[i] != expected[i] {
			t.Errorf("Expected label %d to be %q, got %q", i, expected[i], got[i])
		}
	}

	withNumbers := ExtractLabels(g, MustParseRange("A2:A5"), false)
	if len(withNumbers) != 3 || withNumbers[2] != "1234" {
		t.Errorf("Expected numeric label kept when not excluded, got %v", withNumbers)
	}

	cells := ExtractLabelCells(g, MustParseRange("A"), true)
	if len(cells) != 3 || cells[2].Label != "Utilities" || cells[2].Row != 3 || cells[2].Col != 1 {
		t.Errorf("Unexpected label cells: %+v", cells)
	}

	if out := ExtractLabels(g, MustParseRange("A50:B60"), true); len(out) != 0 {
		t.Errorf("Expected no labels past the sheet end, got %v", out)
	}
}

func TestReaderLoadDataOnly(t *testing.T) {
	path := createWorkbook(t, "P&L", map[string]interface{}{
		"A1": "Account",
		"B1": "Jun 2025",
		"A2": "Rent",
		"B2": 1000,
		"A3": "Misc",
		"B3": "$1,234.56",
	})

	r := NewReader(nil)
	g, err := r.LoadDataOnly(path, "P&L")
	if err != nil {
		t.Fatalf("LoadDataOnly failed: %v", err)
	}

	if g.Rows() != 3 || g.Cols() != 2 {
		t.Errorf("Expected 3x2 grid, got %dx%d", g.Rows(), g.Cols())
	}
	if c := g.Cell(2, 2); c.Kind != CellNumber || c.Number != 1000 {
		t.Errorf("Expected number 1000 at B2, got %+v", c)
	}
	if c := g.Cell(3, 2); c.Kind != CellText || c.Text != "$1,234.56" {
		t.Errorf("Expected text at B3, got %+v", c)
	}
	if !g.Cell(10, 10).IsEmpty() {
		t.Error("Expected out-of-bounds cell to be empty")
	}

	first, err := r.LoadDataOnly(path, "")
	if err != nil {
		t.Fatalf("Load of first sheet failed: %v", err)
	}
	if first.Sheet != "P&L" {
		t.Errorf("Expected first sheet P&L, got %s", first.Sheet)
	}
}

func TestReaderCachesUntilFileChanges(t *testing.T) {
	path := createWorkbook(t, "Data", map[string]interface{}{"A1": "Rent"})

	r := NewReader(nil)
	g1, err := r.LoadDataOnly(path, "Data")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	g2, err := r.LoadDataOnly(path, "Data")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if g1 != g2 {
		t.Error("Expected second load to return the cached grid")
	}

	later := time.Now().Add(2 * time.Second)
	if err := os.Chtimes(path, later, later); err != nil {
		t.Fatalf("Chtimes failed: %v", err)
	}
	g3, err := r.LoadDataOnly(path, "Data")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if g3 == g1 {
		t.Error("Expected a changed modification time to force a reload")
	}

	r.Invalidate(path, "Data")
	g4, _ := r.LoadDataOnly(path, "Data")
	if g4 == g3 {
		t.Error("Expected Invalidate to force a reload")
	}

	r.InvalidateAll()
	if r.CacheStats().Entries != 0 {
		t.Errorf("Expected empty cache, got %d entries", r.CacheStats().Entries)
	}
}

func TestReaderErrors(t *testing.T) {
	path := createWorkbook(t, "Data", map[string]interface{}{"A1": "Rent"})
	r := NewReader(nil)

	_, err := r.LoadDataOnly(path, "Missing")
	if !apperrors.Is(err, apperrors.ErrSheetNotFound) {
		t.Errorf("Expected ErrSheetNotFound, got %v", err)
	}

	_, err = r.LoadDataOnly(filepath.Join(t.TempDir(), "nope.xlsx"), "Data")
	re, ok := apperrors.AsReconcilerError(err)
	if !ok || re.Code != apperrors.CodeFileNotFound {
		t.Errorf("Expected file_not_found, got %v", err)
	}
}

func TestReaderFormulaPreserving(t *testing.T) {
	path := createWorkbook(t, "Rolling", map[string]interface{}{
		"A1": "Account",
		"A2": "Rent",
		"B2": 300,
		"C2": "=B2+200",
		"D2": "note",
	})

	r := NewReader(nil)
	g, err := r.LoadFormulaPreserving(path, "Rolling")
	if err != nil {
		t.Fatalf("LoadFormulaPreserving failed: %v", err)
	}

	c := g.Cell(2, 3)
	if c.Kind != CellFormula || c.Text != "=B2+200" {
		t.Errorf("Expected formula =B2+200 at C2, got %+v", c)
	}
	if g.Cell(2, 2).Kind != CellNumber {
		t.Errorf("Expected plain number at B2, got %s", g.Cell(2, 2).Kind)
	}

	data, err := r.LoadDataOnly(path, "Rolling")
	if err != nil {
		t.Fatalf("LoadDataOnly failed: %v", err)
	}
	if data.Cell(2, 3).Kind == CellFormula {
		t.Error("Expected data-only load not to expose formulas")
	}
}
