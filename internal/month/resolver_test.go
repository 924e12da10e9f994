package month

import (
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"rolling-pnl-reconciler/internal/models"
	"rolling-pnl-reconciler/internal/sheet"
	apperrors "rolling-pnl-reconciler/pkg/errors"
)

// gridOf builds a data-only grid from A1-addressed display values.
func gridOf(t *testing.T, cells map[string]string) *sheet.Grid {
	t.Helper()
	rows, cols := 0, 0
	for name := range cells {
		c, r, err := excelize.CellNameToCoordinates(name)
		if err != nil {
			t.Fatalf("bad cell name %s: %v", name, err)
		}
		rows, cols = max(rows, r), max(cols, c)
	}
	data := make([][]string, rows)
	for i := range data {
		data[i] = make([]string, cols)
	}
	for name, v := range cells {
		c, r, _ := excelize.CellNameToCoordinates(name)
		data[r-1][c-1] = v
	}
	return sheet.GridFromStrings("P&L", data)
}

func TestResolveLatestMonth(t *testing.T) {
	g := gridOf(t, map[string]string{
		"A6":  "Account",
		"C6":  "Apr 2025 Actual",
		"D6":  "May 2025 Actual",
		"Q6":  "Jun 2025 Actual",
		"R6":  "Budget 2025",
		"A40": "7350 Domain / Website",
		"Q40": "$1,234.56",
	})

	tm, err := NewResolver(nil).Resolve(g, nil)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if tm.ColumnIndex != 17 {
		t.Errorf("Expected column 17 (Q), got %d", tm.ColumnIndex)
	}
	if tm.HeaderLabel != "Jun 2025 Actual" || tm.Year != 2025 || tm.Month != 6 {
		t.Errorf("Unexpected target month %+v", tm)
	}
	if tm.Source != models.SourceDatePattern {
		t.Errorf("Expected date pattern source, got %s", tm.Source)
	}
}

func TestResolvePatterns(t *testing.T) {
	tests := []struct {
		name     string
		cells    map[string]string
		expected int
	}{
		{
			name:     "MM/YYYY across rows",
			cells:    map[string]string{"B5": "05/2025", "C7": "06/2025", "D6": "04/2025"},
			expected: 3,
		},
		{
			name:     "YYYY-MM",
			cells:    map[string]string{"B6": "2025-01", "C6": "2024-12"},
			expected: 2,
		},
		{
			name:     "tie broken by rightmost column",
			cells:    map[string]string{"B6": "Jun 2025", "E6": "June 2025 Actual", "C6": "May 2025"},
			expected: 5,
		},
		{
			name:     "bare year loses to a month of the same year",
			cells:    map[string]string{"B6": "2025", "C6": "Jan 2025"},
			expected: 3,
		},
		{
			name:     "bare years only",
			cells:    map[string]string{"B6": "2023", "C6": "2024"},
			expected: 3,
		},
		{
			name:     "headers outside rows 5-7 are ignored",
			cells:    map[string]string{"B6": "Jan 2025", "C2": "Dec 2025", "D8": "Nov 2025"},
			expected: 2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tm, err := NewResolver(nil).Resolve(gridOf(t, tt.cells), nil)
			if err != nil {
				t.Fatalf("Resolve failed: %v", err)
			}
			if tm.ColumnIndex != tt.expected {
				t.Errorf("Expected column %d, got %d (%+v)", tt.expected, tm.ColumnIndex, tm)
			}
		})
	}
}

func TestResolveDateCells(t *testing.T) {
	g := sheet.NewGrid("P&L", [][]sheet.Cell{
		{}, {}, {}, {},
		{},
		{{}, {Kind: sheet.CellText, Text: "Account"}, sheetDate(t, "5/1/25", 45778), sheetDate(t, "6/1/25", 45809)},
	})

	tm, err := NewResolver(nil).Resolve(g, nil)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if tm.ColumnIndex != 4 || tm.Month != 6 || tm.Year != 2025 {
		t.Errorf("Expected June 2025 in column 4, got %+v", tm)
	}
}

func sheetDate(t *testing.T, display string, serial float64) sheet.Cell {
	t.Helper()
	tm, err := excelize.ExcelDateToTime(serial, false)
	if err != nil {
		t.Fatalf("ExcelDateToTime failed: %v", err)
	}
	return sheet.Cell{Kind: sheet.CellDate, Text: display, Number: serial, Time: tm}
}

func TestResolveFallbacks(t *testing.T) {
	t.Run("actual keyword scanned right to left", func(t *testing.T) {
		g := gridOf(t, map[string]string{"B6": "Actual", "D6": "Current Period", "E6": "Budget"})
		tm, err := NewResolver(nil).Resolve(g, nil)
		if err != nil {
			t.Fatalf("Resolve failed: %v", err)
		}
		if tm.ColumnIndex != 4 || tm.Source != models.SourceActualKeyword {
			t.Errorf("Expected column 4 from keyword fallback, got %+v", tm)
		}
	})

	t.Run("rightmost numeric column", func(t *testing.T) {
		g := gridOf(t, map[string]string{
			"B6": "Budget", "C6": "Forecast", "D6": "Notes",
			"A8": "Rent", "B8": "100", "C9": "$200.00", "D8": "see memo",
		})
		tm, err := NewResolver(nil).Resolve(g, nil)
		if err != nil {
			t.Fatalf("Resolve failed: %v", err)
		}
		if tm.ColumnIndex != 3 || tm.Source != models.SourceNumericData || tm.HeaderLabel != "Forecast" {
			t.Errorf("Expected column 3 from numeric fallback, got %+v", tm)
		}
	})

	t.Run("numeric data past the probe window is ignored", func(t *testing.T) {
		g := gridOf(t, map[string]string{"B6": "Budget", "A8": "Rent", "C40": "100"})
		_, err := NewResolver(nil).Resolve(g, nil)
		if !apperrors.Is(err, apperrors.ErrUnresolvedTargetMonth) {
			t.Errorf("Expected ErrUnresolvedTargetMonth, got %v", err)
		}
	})
}

func TestResolveWithinRange(t *testing.T) {
	g := gridOf(t, map[string]string{"B6": "May 2025", "H6": "Jun 2025"})
	within := sheet.MustParseRange("A8:F200")

	tm, err := NewResolver(nil).Resolve(g, &within)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if tm.ColumnIndex != 2 {
		t.Errorf("Expected column 2 when restricted to A:F, got %d", tm.ColumnIndex)
	}

	full, _ := NewResolver(nil).Resolve(g, nil)
	if full.ColumnIndex != 8 {
		t.Errorf("Expected column 8 for a full-sheet scan, got %d", full.ColumnIndex)
	}
}

func TestResolveColumnCap(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxColumns = 3
	g := gridOf(t, map[string]string{"B6": "May 2025", "E6": "Jun 2025"})

	tm, err := NewResolver(cfg).Resolve(g, nil)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if tm.ColumnIndex != 2 {
		t.Errorf("Expected column 2 with a 3-column cap, got %d", tm.ColumnIndex)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"default", func(*Config) {}, false},
		{"no header rows", func(c *Config) { c.HeaderRows = nil }, true},
		{"zero header row", func(c *Config) { c.HeaderRows = []int{0} }, true},
		{"zero columns", func(c *Config) { c.MaxColumns = 0 }, true},
		{"zero probe rows", func(c *Config) { c.NumericProbeRows = 0 }, true},
		{"blank keyword", func(c *Config) { c.ActualKeywords = []string{" "} }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestCachedResolver(t *testing.T) {
	g := gridOf(t, map[string]string{"B6": "May 2025", "Q6": "Jun 2025"})
	key := Key{Project: "Tower A", File: "source.xlsx"}
	c := NewCachedResolver(nil)

	tm, err := c.Resolve(key, g, nil)
	if err != nil || tm.ColumnIndex != 17 {
		t.Fatalf("Expected column 17, got %+v (%v)", tm, err)
	}

	// A different grid under the same key returns the cached answer.
	other := gridOf(t, map[string]string{"B6": "Jul 2025", "Q6": "Jun 2025"})
	tm, _ = c.Resolve(key, other, nil)
	if tm.ColumnIndex != 17 {
		t.Errorf("Expected cached column 17, got %d", tm.ColumnIndex)
	}

	// A cached column past the sheet width is discarded.
	narrow := gridOf(t, map[string]string{"B6": "Jul 2025"})
	tm, _ = c.Resolve(key, narrow, nil)
	if tm.ColumnIndex != 2 {
		t.Errorf("Expected stale cache to re-resolve to column 2, got %d", tm.ColumnIndex)
	}

	c.Invalidate(key)
	if _, ok := c.store.Get(key); ok {
		t.Error("Expected Invalidate to drop the entry")
	}

	c.Select(key, narrow, 5, "Mar 2025")
	if entry, ok := c.store.Get(key); !ok || entry.month.Source != models.SourceManual || entry.month.Month != 3 {
		t.Errorf("Expected manual selection to be cached, got %+v", entry.month)
	}

	c.InvalidateProject("Tower A")
	if _, ok := c.store.Get(key); ok {
		t.Error("Expected InvalidateProject to drop the entry")
	}

	if _, err := c.Resolve(key, gridOf(t, map[string]string{"A1": "x"}), nil); err == nil {
		t.Error("Expected unresolved error for a sheet without headers")
	}
	if _, ok := c.store.Get(key); ok {
		t.Error("Expected failures not to be cached")
	}
}

func TestCachedResolverFileChange(t *testing.T) {
	key := Key{Project: "Tower A", File: "source.xlsx"}
	c := NewCachedResolver(nil)
	saved := time.Date(2025, 7, 1, 9, 0, 0, 0, time.UTC)

	june := gridOf(t, map[string]string{"Q6": "Jun 2025 Actual", "R6": ""})
	june.Stamp = sheet.Stamp{ModTime: saved, Size: 4096}
	if tm, err := c.Resolve(key, june, nil); err != nil || tm.ColumnIndex != 17 {
		t.Fatalf("Expected column 17, got %+v (%v)", tm, err)
	}

	tests := []struct {
		name     string
		stamp    sheet.Stamp
		expected int
	}{
		{"same file state keeps the cached column", sheet.Stamp{ModTime: saved, Size: 4096}, 17},
		{"newer file is resolved again", sheet.Stamp{ModTime: saved.Add(time.Hour), Size: 4096}, 18},
		{"resized file is resolved again", sheet.Stamp{ModTime: saved.Add(time.Hour), Size: 5120}, 18},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			july := gridOf(t, map[string]string{"Q6": "Jun 2025 Actual", "R6": "Jul 2025 Actual"})
			july.Stamp = tt.stamp
			tm, err := c.Resolve(key, july, nil)
			if err != nil {
				t.Fatalf("Resolve failed: %v", err)
			}
			if tm.ColumnIndex != tt.expected {
				t.Errorf("Expected column %d, got %d (%s)", tt.expected, tm.ColumnIndex, tm.HeaderLabel)
			}
		})
	}
}
