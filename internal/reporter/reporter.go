// Package reporter renders reconciliation results for people and programs.
//
// Supported output formats:
//   - Console: human-readable sections for terminal display
//   - JSON: the structured result for programmatic consumption
//   - CSV: one record per mapping, aggregate, written cell and diagnostic
//
// Example usage:
//
//	generator, err := reporter.NewReportGenerator(&reporter.ReportConfig{Format: reporter.FormatJSON})
//	err = generator.GenerateReport(result, os.Stdout)
package reporter

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"rolling-pnl-reconciler/internal/models"
	"rolling-pnl-reconciler/internal/reconciler"
	"rolling-pnl-reconciler/internal/sheet"
)

// OutputFormat represents the supported report output formats.
type OutputFormat string

const (
	FormatConsole OutputFormat = "console"
	FormatJSON    OutputFormat = "json"
	FormatCSV     OutputFormat = "csv"
)

// IsValid checks if the output format is supported
func (f OutputFormat) IsValid() bool {
	switch f {
	case FormatConsole, FormatJSON, FormatCSV:
		return true
	default:
		return false
	}
}

// ReportConfig holds configuration options for report generation
type ReportConfig struct {
	// Output format
	Format OutputFormat `json:"format"`

	// Detail level options
	IncludeMappings    bool `json:"include_mappings"`
	IncludeMonthly     bool `json:"include_monthly"`
	IncludeAggregated  bool `json:"include_aggregated"`
	IncludePreview     bool `json:"include_preview"`
	IncludeDiagnostics bool `json:"include_diagnostics"`

	// Console formatting options
	TableMaxWidth int `json:"table_max_width"`
	MaxListItems  int `json:"max_list_items"`

	// CSV options
	CSVDelimiter rune `json:"csv_delimiter"`
	CSVHeaders   bool `json:"csv_headers"`

	// SortByAmount lists amounts largest first instead of by label
	SortByAmount bool `json:"sort_by_amount"`
}

// DefaultReportConfig returns a default report configuration
func DefaultReportConfig() *ReportConfig {
	return &ReportConfig{
		Format:             FormatConsole,
		IncludeMappings:    true,
		IncludeMonthly:     false,
		IncludeAggregated:  true,
		IncludePreview:     true,
		IncludeDiagnostics: true,
		TableMaxWidth:      120,
		MaxListItems:       50,
		CSVDelimiter:       ',',
		CSVHeaders:         true,
	}
}

// Validate validates the report configuration
func (c *ReportConfig) Validate() error {
	if !c.Format.IsValid() {
		return fmt.Errorf("invalid output format: %s", c.Format)
	}

	if c.TableMaxWidth < 50 {
		return fmt.Errorf("table max width must be at least 50 characters, got %d", c.TableMaxWidth)
	}

	if c.MaxListItems < 0 {
		return fmt.Errorf("max list items cannot be negative, got %d", c.MaxListItems)
	}

	if c.Format == FormatCSV && (c.CSVDelimiter == 0 || c.CSVDelimiter == '"' || c.CSVDelimiter == '\n') {
		return fmt.Errorf("invalid CSV delimiter %q", c.CSVDelimiter)
	}

	return nil
}

// ReportGenerator generates reconciliation reports in various formats
type ReportGenerator struct {
	config *ReportConfig
}

// NewReportGenerator creates a new report generator with the specified configuration
func NewReportGenerator(config *ReportConfig) (*ReportGenerator, error) {
	if config == nil {
		config = DefaultReportConfig()
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid report configuration: %w", err)
	}

	return &ReportGenerator{
		config: config,
	}, nil
}

// GenerateReport generates a report from a run result and writes it to the provided writer
func (rg *ReportGenerator) GenerateReport(result *reconciler.Result, writer io.Writer) error {
	if result == nil {
		return fmt.Errorf("reconciliation result cannot be nil")
	}

	switch rg.config.Format {
	case FormatConsole:
		return rg.generateConsoleReport(result, writer)
	case FormatJSON:
		return rg.generateJSONReport(result, writer)
	case FormatCSV:
		return rg.generateCSVReport(result, writer)
	default:
		return fmt.Errorf("unsupported output format: %s", rg.config.Format)
	}
}

// generateConsoleReport generates a human-readable console report
func (rg *ReportGenerator) generateConsoleReport(result *reconciler.Result, writer io.Writer) error {
	ew := &errWriter{w: writer}

	ew.printf("RECONCILIATION REPORT\n")
	ew.printf("Run:       %s\n", result.RunID)
	ew.printf("Generated: %s\n", result.StartedAt.Format(time.RFC3339))
	if result.DryRun {
		ew.printf("Mode:      dry run (no workbook written)\n")
	}
	ew.printf("\n=== SUMMARY ===\n")
	if result.Summary != nil {
		rg.printSummary(result.Summary, ew)
	}

	for _, pr := range result.Projects {
		ew.printf("\n=== PROJECT %s ===\n", pr.Project)
		rg.printProject(pr, ew)
	}

	return ew.err
}

func (rg *ReportGenerator) printSummary(s *reconciler.Summary, ew *errWriter) {
	ew.printf("Projects:          %d (%d succeeded, %d failed)\n", s.Projects, s.Succeeded, s.Failed)
	ew.printf("Source accounts:   %d\n", s.SourceAccounts)
	ew.printf("  Mapped:          %d (%.1f%%)\n", s.MappedAccounts, rg.calculatePercentage(s.MappedAccounts, s.SourceAccounts))
	ew.printf("  Unmapped:        %d (%.1f%%)\n", s.UnmappedAccounts, rg.calculatePercentage(s.UnmappedAccounts, s.SourceAccounts))
	ew.printf("Total aggregated:  %s\n", s.TotalAggregated.StringFixed(2))
	ew.printf("Cells written:     %d\n", s.CellsWritten)
	ew.printf("Diagnostics:       %d\n", s.Diagnostics)
	ew.printf("Duration:          %v\n", s.Duration.Round(time.Millisecond))

	total := 0
	for _, n := range s.ByConfidence {
		total += n
	}
	if total > 0 {
		ew.printf("\nMapping confidence:\n")
		for _, c := range confidenceOrder {
			ew.printf("  %-7s %d (%.1f%%)\n", c, s.ByConfidence[c], rg.calculatePercentage(s.ByConfidence[c], total))
		}
	}
}

var confidenceOrder = []models.Confidence{
	models.ConfidenceHigh,
	models.ConfidenceMedium,
	models.ConfidenceLow,
	models.ConfidenceManual,
	models.ConfidenceNone,
}

func (rg *ReportGenerator) printProject(pr *reconciler.ProjectResult, ew *errWriter) {
	ew.printf("Source: %s [%s]\n", pr.SourceFile, pr.SourceSheet)
	if pr.TargetMonth != nil {
		ew.printf("Target month: %q in column %s (%s)\n",
			pr.TargetMonth.HeaderLabel, sheet.NumberToColumnLetters(pr.TargetMonth.ColumnIndex), pr.TargetMonth.Source)
	}
	if !pr.Succeeded() {
		ew.printf("FAILED: %s\n", pr.Error)
		return
	}

	if len(pr.NewAccounts) > 0 {
		ew.printf("New accounts: %d\n", len(pr.NewAccounts))
	}

	if rg.config.IncludeMappings && pr.Mappings != nil {
		ew.printf("\nMappings (%d):\n", pr.Mappings.Len())
		rows := make([][]string, 0, pr.Mappings.Len())
		for _, m := range pr.Mappings.Entries() {
			account := m.RollingAccount
			if account == "" {
				account = "-"
			}
			rows = append(rows, []string{m.SourceLabel, account, string(m.Confidence), fmt.Sprintf("%.1f%%", m.Similarity)})
		}
		rg.printTable(ew, []string{"Source account", "Rolling account", "Confidence", "Similarity"}, rows)
	}

	if rg.config.IncludeMonthly && len(pr.Monthly) > 0 {
		ew.printf("\nMonthly amounts (%d):\n", len(pr.Monthly))
		rg.printTable(ew, []string{"Source account", "Amount"}, rg.amountRows(pr.Monthly))
	}

	if rg.config.IncludeAggregated && len(pr.Aggregated) > 0 {
		ew.printf("\nAggregated per rolling account (%d):\n", len(pr.Aggregated))
		rg.printTable(ew, []string{"Rolling account", "Amount"}, rg.amountRows(pr.Aggregated))
	}

	if len(pr.Unmapped) > 0 {
		ew.printf("\nUnmapped accounts with amounts (%d):\n", len(pr.Unmapped))
		rg.printList(ew, pr.Unmapped)
	}

	if rg.config.IncludePreview && len(pr.Preview) > 0 {
		ew.printf("\nChanges (%d):\n", len(pr.Preview))
		rows := make([][]string, 0, len(pr.Preview))
		for _, p := range pr.Preview {
			existing := p.ExistingValue
			if existing == "" {
				existing = "-"
			}
			rows = append(rows, []string{p.Cell, p.RollingAccount, existing, p.NewAmount.StringFixed(2), p.ComposedValue})
		}
		rg.printTable(ew, []string{"Cell", "Rolling account", "Existing", "Amount", "New value"}, rows)
	}

	if pr.Write != nil {
		ew.printf("\nWrote %d cells to %s\n", pr.Write.Count(), pr.Write.OutputFile)
		if len(pr.Write.Unplaced) > 0 {
			ew.printf("Rolling accounts not found in the rolling sheet:\n")
			rg.printList(ew, pr.Write.Unplaced)
		}
	}

	if rg.config.IncludeDiagnostics && len(pr.Diagnostics) > 0 {
		ew.printf("\nDiagnostics (%d):\n", len(pr.Diagnostics))
		lines := make([]string, len(pr.Diagnostics))
		for i, d := range pr.Diagnostics {
			lines[i] = d.String()
		}
		rg.printList(ew, lines)
	}
}

func (rg *ReportGenerator) amountRows(amounts map[string]decimal.Decimal) [][]string {
	labels := make([]string, 0, len(amounts))
	for label := range amounts {
		labels = append(labels, label)
	}
	sort.Strings(labels)
	if rg.config.SortByAmount {
		sort.SliceStable(labels, func(i, j int) bool {
			return amounts[labels[i]].GreaterThan(amounts[labels[j]])
		})
	}

	rows := make([][]string, len(labels))
	for i, label := range labels {
		rows[i] = []string{label, amounts[label].StringFixed(2)}
	}
	return rows
}

// printTable prints left-aligned columns, truncating cells so each row fits
// TableMaxWidth.
func (rg *ReportGenerator) printTable(ew *errWriter, headers []string, rows [][]string) {
	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = len([]rune(h))
	}
	for _, row := range rows {
		for i, cell := range row {
			if n := len([]rune(cell)); n > widths[i] {
				widths[i] = n
			}
		}
	}

	limit := (rg.config.TableMaxWidth - 2*len(headers)) / len(headers)
	for i := range widths {
		widths[i] = min(widths[i], max(limit, 8))
	}

	printRow := func(cells []string) {
		parts := make([]string, len(cells))
		for i, cell := range cells {
			parts[i] = pad(truncate(cell, widths[i]), widths[i])
		}
		ew.printf("  %s\n", strings.TrimRight(strings.Join(parts, "  "), " "))
	}

	printRow(headers)
	rules := make([]string, len(headers))
	for i, w := range widths {
		rules[i] = strings.Repeat("-", w)
	}
	printRow(rules)

	for i, row := range rows {
		if rg.config.MaxListItems > 0 && i >= rg.config.MaxListItems {
			ew.printf("  ... and %d more\n", len(rows)-i)
			break
		}
		printRow(row)
	}
}

func (rg *ReportGenerator) printList(ew *errWriter, items []string) {
	for i, item := range items {
		if rg.config.MaxListItems > 0 && i >= rg.config.MaxListItems {
			ew.printf("  ... and %d more\n", len(items)-i)
			break
		}
		ew.printf("  %d. %s\n", i+1, item)
	}
}

// generateJSONReport generates a structured JSON report
func (rg *ReportGenerator) generateJSONReport(result *reconciler.Result, writer io.Writer) error {
	encoder := json.NewEncoder(writer)
	encoder.SetIndent("", "  ")
	encoder.SetEscapeHTML(false)

	return encoder.Encode(rg.filterResultForOutput(result))
}

// generateCSVReport writes one record per reported item
func (rg *ReportGenerator) generateCSVReport(result *reconciler.Result, writer io.Writer) error {
	csvWriter := csv.NewWriter(writer)
	csvWriter.Comma = rg.config.CSVDelimiter

	if rg.config.CSVHeaders {
		headers := []string{
			"Project",
			"Type",
			"Label",
			"Rolling_Account",
			"Confidence",
			"Similarity",
			"Amount",
			"Cell",
			"Value",
			"Notes",
		}
		if err := csvWriter.Write(headers); err != nil {
			return fmt.Errorf("failed to write CSV headers: %w", err)
		}
	}

	for _, pr := range result.Projects {
		for _, record := range rg.projectRecords(pr) {
			if err := csvWriter.Write(record); err != nil {
				return fmt.Errorf("failed to write %s record for project %s: %w", record[1], pr.Project, err)
			}
		}
	}

	csvWriter.Flush()
	return csvWriter.Error()
}

func (rg *ReportGenerator) projectRecords(pr *reconciler.ProjectResult) [][]string {
	var records [][]string
	add := func(kind, label, account, confidence, similarity, amount, cell, value, notes string) {
		records = append(records, []string{pr.Project, kind, label, account, confidence, similarity, amount, cell, value, notes})
	}

	if !pr.Succeeded() {
		add("Error", "", "", "", "", "", "", "", pr.Error)
		return records
	}

	if rg.config.IncludeMappings && pr.Mappings != nil {
		for _, m := range pr.Mappings.Entries() {
			amount := ""
			if v, ok := pr.Monthly[m.SourceLabel]; ok {
				amount = v.String()
			}
			notes := ""
			if m.UserEdited {
				notes = "user edited"
			}
			add("Mapping", m.SourceLabel, m.RollingAccount, string(m.Confidence),
				fmt.Sprintf("%.1f", m.Similarity), amount, "", "", notes)
		}
	}

	if rg.config.IncludeAggregated {
		for _, row := range rg.amountRows(pr.Aggregated) {
			add("Aggregate", "", row[0], "", "", pr.Aggregated[row[0]].String(), "", "", "")
		}
	}

	if pr.Write != nil {
		for _, wc := range pr.Write.Written {
			add("Written", "", wc.RollingAccount, "", "", "", wc.Cell, wc.Value, pr.Write.OutputFile)
		}
	} else if rg.config.IncludePreview {
		for _, p := range pr.Preview {
			add("Preview", "", p.RollingAccount, "", "", p.NewAmount.String(), p.Cell, p.ComposedValue, "not written")
		}
	}

	for _, label := range pr.Unmapped {
		add("Unmapped", label, "", "", "", pr.Monthly[label].String(), "", "", "no rolling account")
	}

	if rg.config.IncludeDiagnostics {
		for _, d := range pr.Diagnostics {
			add("Diagnostic", "", "", "", "", "", d.Cell, d.Value, fmt.Sprintf("%s: %s", d.Code, d.Message))
		}
	}
	return records
}

// Helper methods

func (rg *ReportGenerator) calculatePercentage(part, total int) float64 {
	if total == 0 {
		return 0.0
	}
	return float64(part) / float64(total) * 100.0
}

func (rg *ReportGenerator) filterResultForOutput(result *reconciler.Result) map[string]interface{} {
	projects := make([]map[string]interface{}, 0, len(result.Projects))
	for _, pr := range result.Projects {
		p := map[string]interface{}{
			"project":      pr.Project,
			"source_file":  pr.SourceFile,
			"source_sheet": pr.SourceSheet,
			"succeeded":    pr.Succeeded(),
			"duration":     pr.Duration.String(),
		}
		if pr.Error != "" {
			p["error"] = pr.Error
		}
		if pr.TargetMonth != nil {
			p["target_month"] = pr.TargetMonth
		}
		if len(pr.NewAccounts) > 0 {
			p["new_accounts"] = pr.NewAccounts
		}
		if rg.config.IncludeMappings && pr.Mappings != nil {
			p["mappings"] = pr.Mappings
		}
		if rg.config.IncludeMonthly && pr.Monthly != nil {
			p["monthly_amounts"] = pr.Monthly
		}
		if rg.config.IncludeAggregated && pr.Aggregated != nil {
			p["aggregated_amounts"] = pr.Aggregated
		}
		if len(pr.Unmapped) > 0 {
			p["unmapped"] = pr.Unmapped
		}
		if rg.config.IncludePreview && len(pr.Preview) > 0 {
			p["preview"] = pr.Preview
		}
		if pr.Write != nil {
			p["write"] = pr.Write
		}
		if rg.config.IncludeDiagnostics && len(pr.Diagnostics) > 0 {
			p["diagnostics"] = pr.Diagnostics
		}
		projects = append(projects, p)
	}

	return map[string]interface{}{
		"run_id":     result.RunID,
		"started_at": result.StartedAt,
		"dry_run":    result.DryRun,
		"summary":    result.Summary,
		"projects":   projects,
	}
}

// GenerateInspection writes what reconciler.Service.Inspect found
func (rg *ReportGenerator) GenerateInspection(ins *reconciler.Inspection, writer io.Writer) error {
	if ins == nil {
		return fmt.Errorf("inspection cannot be nil")
	}

	switch rg.config.Format {
	case FormatJSON:
		encoder := json.NewEncoder(writer)
		encoder.SetIndent("", "  ")
		encoder.SetEscapeHTML(false)
		return encoder.Encode(ins)
	case FormatCSV:
		csvWriter := csv.NewWriter(writer)
		csvWriter.Comma = rg.config.CSVDelimiter
		if rg.config.CSVHeaders {
			_ = csvWriter.Write([]string{"Cell", "Label", "Kind", "Reason", "Amount"})
		}
		for _, l := range ins.Labels {
			amount := ""
			if l.Amount != nil {
				amount = l.Amount.String()
			}
			_ = csvWriter.Write([]string{l.Cell, l.Label, string(l.Kind), string(l.Reason), amount})
		}
		csvWriter.Flush()
		return csvWriter.Error()
	}

	ew := &errWriter{w: writer}
	ew.printf("%s [%s] range %s\n", ins.File, ins.Sheet, ins.Range)
	ew.printf("Sheets: %s\n", strings.Join(ins.Sheets, ", "))
	if ins.TargetMonth != nil {
		ew.printf("Target month: %q in column %s (%s)\n",
			ins.TargetMonth.HeaderLabel, sheet.NumberToColumnLetters(ins.TargetMonth.ColumnIndex), ins.TargetMonth.Source)
	} else {
		ew.printf("Target month: unresolved (%s)\n", ins.ResolveError)
	}

	ew.printf("\nLabels (%d):\n", len(ins.Labels))
	rows := make([][]string, len(ins.Labels))
	for i, l := range ins.Labels {
		amount := "-"
		if l.Amount != nil {
			amount = l.Amount.StringFixed(2)
		}
		rows[i] = []string{l.Cell, l.Label, string(l.Kind), string(l.Reason), amount}
	}
	rg.printTable(ew, []string{"Cell", "Label", "Kind", "Reason", "Amount"}, rows)
	return ew.err
}

// GenerateMappings writes the mappings of one project, keeping only the
// given confidence tiers when any are passed
func (rg *ReportGenerator) GenerateMappings(projectName string, set *models.MappingSet, writer io.Writer, tiers ...models.Confidence) error {
	keep := make(map[models.Confidence]bool, len(tiers))
	for _, c := range tiers {
		keep[c] = true
	}
	var entries []models.AccountMapping
	for _, m := range set.Entries() {
		if len(keep) == 0 || keep[m.Confidence] {
			entries = append(entries, m)
		}
	}

	switch rg.config.Format {
	case FormatJSON:
		filtered := models.NewMappingSet()
		for _, m := range entries {
			filtered.Set(m)
		}
		encoder := json.NewEncoder(writer)
		encoder.SetIndent("", "  ")
		encoder.SetEscapeHTML(false)
		return encoder.Encode(map[string]interface{}{
			"project":  projectName,
			"mappings": filtered,
		})
	case FormatCSV:
		csvWriter := csv.NewWriter(writer)
		csvWriter.Comma = rg.config.CSVDelimiter
		if rg.config.CSVHeaders {
			_ = csvWriter.Write([]string{"Project", "Source_Account", "Rolling_Account", "Confidence", "Similarity", "User_Edited"})
		}
		for _, m := range entries {
			_ = csvWriter.Write([]string{projectName, m.SourceLabel, m.RollingAccount, string(m.Confidence),
				fmt.Sprintf("%.1f", m.Similarity), fmt.Sprintf("%t", m.UserEdited)})
		}
		csvWriter.Flush()
		return csvWriter.Error()
	}

	ew := &errWriter{w: writer}
	ew.printf("=== MAPPINGS %s (%d of %d) ===\n", projectName, len(entries), set.Len())
	rows := make([][]string, len(entries))
	for i, m := range entries {
		account := m.RollingAccount
		if account == "" {
			account = "-"
		}
		edited := ""
		if m.UserEdited {
			edited = "yes"
		}
		rows[i] = []string{m.SourceLabel, account, string(m.Confidence), fmt.Sprintf("%.1f%%", m.Similarity), edited}
	}
	rg.printTable(ew, []string{"Source account", "Rolling account", "Confidence", "Similarity", "Edited"}, rows)
	return ew.err
}

// UpdateConfiguration updates the report generator configuration
func (rg *ReportGenerator) UpdateConfiguration(config *ReportConfig) error {
	if err := config.Validate(); err != nil {
		return fmt.Errorf("invalid report configuration: %w", err)
	}

	rg.config = config
	return nil
}

// GetConfiguration returns the current configuration
func (rg *ReportGenerator) GetConfiguration() *ReportConfig {
	return rg.config
}

// errWriter keeps the first write error so console output can be written
// without checking every line.
type errWriter struct {
	w   io.Writer
	err error
}

func (ew *errWriter) printf(format string, args ...interface{}) {
	if ew.err != nil {
		return
	}
	_, ew.err = fmt.Fprintf(ew.w, format, args...)
}

func truncate(s string, width int) string {
	r := []rune(s)
	if len(r) <= width {
		return s
	}
	if width <= 3 {
		return string(r[:width])
	}
	return string(r[:width-3]) + "..."
}

func pad(s string, width int) string {
	if n := len([]rune(s)); n < width {
		return s + strings.Repeat(" ", width-n)
	}
	return s
}
