// Command workbook_generator writes a sample project for trying the
// reconciler by hand: a source P&L workbook with one sheet per project, a
// rolling P&L workbook and a projects.toml manifest tying them together.
//
//	go run ./testdata/generators -output-dir generated -month 2025-06
package main

import (
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"rolling-pnl-reconciler/internal/models"
	"rolling-pnl-reconciler/internal/project"
	"rolling-pnl-reconciler/internal/sheet"
)

// WorkbookGenerator creates the sample workbooks
type WorkbookGenerator struct {
	OutputDir string
	Month     time.Time
	Months    int
	rng       *rand.Rand
}

// department is one source sheet: headings followed by their accounts
type department struct {
	Name     string
	Sections map[string][]string
	Order    []string
}

var departments = []department{
	{
		Name:  "Ops",
		Order: []string{"OPERATING EXPENSES", "Facilities"},
		Sections: map[string][]string{
			"OPERATING EXPENSES": {"7350 Domain / Website", "7360 Software Subscriptions", "7400 Travel"},
			"Facilities":         {"6100 Rent", "6110 Rent - Storage", "6200 Phone", "6300 Utilities"},
		},
	},
	{
		Name:  "Sales",
		Order: []string{"REVENUE", "Cost of Sales"},
		Sections: map[string][]string{
			"REVENUE":       {"4000 Product Sales", "4100 Service Revenue"},
			"Cost of Sales": {"5000 Freight", "5100 Merchant Fees", "5200 Bank Charges"},
		},
	},
}

var rollingAccounts = []string{
	"Product Sales", "Service Revenue", "Freight", "Merchant Fees", "Bank Fees",
	"Website Expense", "Software", "Travel", "Rent", "Phone", "Utilities",
}

func main() {
	var (
		outputDir = flag.String("output-dir", "generated", "Output directory for the sample project")
		month     = flag.String("month", time.Now().Format("2006-01"), "Target month as YYYY-MM")
		months    = flag.Int("months", 6, "Month columns in the source sheets, ending at -month")
		seed      = flag.Int64("seed", time.Now().UnixNano(), "Random seed for reproducible amounts")
	)
	flag.Parse()

	target, err := time.Parse("2006-01", *month)
	if err != nil {
		log.Fatalf("Invalid month %q: %v", *month, err)
	}
	if *months < 1 || *months > 24 {
		log.Fatalf("Months must be between 1 and 24, got %d", *months)
	}
	if err := os.MkdirAll(*outputDir, 0755); err != nil {
		log.Fatalf("Failed to create output directory: %v", err)
	}

	generator := &WorkbookGenerator{
		OutputDir: *outputDir,
		Month:     target,
		Months:    *months,
		rng:       rand.New(rand.NewSource(*seed)),
	}

	if err := generator.GenerateSource("source.xlsx"); err != nil {
		log.Fatalf("Failed to generate source workbook: %v", err)
	}
	if err := generator.GenerateRolling("rolling.xlsx"); err != nil {
		log.Fatalf("Failed to generate rolling workbook: %v", err)
	}
	if err := generator.GenerateManifest("projects.toml", "source.xlsx", "rolling.xlsx"); err != nil {
		log.Fatalf("Failed to generate manifest: %v", err)
	}

	fmt.Printf("Generated sample project in %s\n", *outputDir)
	fmt.Printf("Seed used: %d\n", *seed)
	fmt.Printf("Try: reconciler reconcile --manifest %s --dry-run\n", filepath.Join(*outputDir, "projects.toml"))
}

// GenerateSource writes one sheet per department. Month headers sit in row 6
// from column P onwards, the last one marked Actual; accounts start at row 8.
// A few amounts are text so the run reports diagnostics.
func (wg *WorkbookGenerator) GenerateSource(name string) error {
	f := excelize.NewFile()
	defer f.Close()

	for i, d := range departments {
		if i == 0 {
			if err := f.SetSheetName("Sheet1", d.Name); err != nil {
				return err
			}
		} else if _, err := f.NewSheet(d.Name); err != nil {
			return err
		}

		f.SetCellValue(d.Name, "A1", fmt.Sprintf("%s Profit & Loss", d.Name))
		firstCol := 16
		for m := 0; m < wg.Months; m++ {
			period := wg.Month.AddDate(0, m-wg.Months+1, 0)
			header := period.Format("Jan 2006")
			if m == wg.Months-1 {
				header += " Actual"
			}
			f.SetCellValue(d.Name, sheet.CellName(6, firstCol+m), header)
		}

		row := 8
		for _, heading := range d.Order {
			f.SetCellValue(d.Name, sheet.CellName(row, 1), heading)
			row++
			for _, account := range d.Sections[heading] {
				f.SetCellValue(d.Name, sheet.CellName(row, 1), account)
				for m := 0; m < wg.Months; m++ {
					col := firstCol + m
					if wg.rng.Intn(25) == 0 {
						f.SetCellValue(d.Name, sheet.CellName(row, col), "n/a")
						continue
					}
					f.SetCellValue(d.Name, sheet.CellName(row, col), wg.amount().InexactFloat64())
				}
				row++
			}
		}
		f.SetCellValue(d.Name, sheet.CellName(row+1, 1), "Total")
	}

	return f.SaveAs(filepath.Join(wg.OutputDir, name))
}

// GenerateRolling writes the rolling sheet: account labels in column A and
// one month header per column in row 1. Some cells of the target month
// already hold values or formulas so new amounts are accumulated onto them.
func (wg *WorkbookGenerator) GenerateRolling(name string) error {
	const sheetName = "Rolling P&L"
	f := excelize.NewFile()
	defer f.Close()
	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return err
	}

	f.SetCellValue(sheetName, "A1", "Account")
	for m := 0; m < 12; m++ {
		period := wg.Month.AddDate(0, m-11, 0)
		f.SetCellValue(sheetName, sheet.CellName(1, 2+m), fmt.Sprintf("%d/%d", int(period.Month()), period.Year()))
	}

	targetCol := 13
	for i, account := range rollingAccounts {
		row := 2 + i
		f.SetCellValue(sheetName, sheet.CellName(row, 1), account)
		switch wg.rng.Intn(4) {
		case 0:
			f.SetCellValue(sheetName, sheet.CellName(row, targetCol), wg.amount().InexactFloat64())
		case 1:
			a, b := wg.amount(), wg.amount()
			f.SetCellFormula(sheetName, sheet.CellName(row, targetCol), fmt.Sprintf("%s+%s", a.StringFixed(2), b.StringFixed(2)))
		}
	}

	return f.SaveAs(filepath.Join(wg.OutputDir, name))
}

// GenerateManifest writes a manifest with one project per department,
// sharing the rolling workbook and output so runs chain.
func (wg *WorkbookGenerator) GenerateManifest(name, source, rolling string) error {
	m := project.New(wg.OutputDir)
	m.Defaults = project.Defaults{
		SourceFile:   source,
		RollingFile:  rolling,
		RollingSheet: "Rolling P&L",
		OutputFile:   "rolling_reconciled.xlsx",
		MappingDir:   "mappings",
	}
	for _, d := range departments {
		p := models.NewProject(d.Name)
		p.SourceRange = "A8:A40"
		m.Add(p)
	}
	return project.Save(filepath.Join(wg.OutputDir, name), m)
}

func (wg *WorkbookGenerator) amount() decimal.Decimal {
	cents := wg.rng.Int63n(500000) + 100
	return decimal.New(cents, -2)
}
