package models

import (
	"fmt"
	"strings"
)

const (
	// DefaultSourceRange is the account range used when a project has none
	DefaultSourceRange = "A8:F200"
	// DefaultRollingRange is the rolling label range used when a project has none
	DefaultRollingRange = "A1:A100"
)

// SheetRange is the remembered pair of ranges for one sheet.
type SheetRange struct {
	Source  string `json:"source" toml:"source"`
	Rolling string `json:"rolling" toml:"rolling"`
}

// WorkflowState tracks which reconciliation steps have completed for a project.
type WorkflowState struct {
	MappingsGenerated bool   `json:"has_generated_mappings" toml:"has_generated_mappings"`
	MonthlyGenerated  bool   `json:"has_generated_monthly" toml:"has_generated_monthly"`
	Exported          bool   `json:"step4_complete" toml:"step4_complete"`
	LastStatusMessage string `json:"last_status_message,omitempty" toml:"last_status_message,omitempty"`
}

// Project is one reconciliation unit: a source sheet, its ranges and mappings,
// and the data derived from them.
type Project struct {
	Name           string                `json:"name" toml:"name"`
	SourceFile     string                `json:"source_file" toml:"source_file"`
	SourceSheet    string                `json:"source_sheet" toml:"source_sheet"`
	SourceRange    string                `json:"source_range" toml:"source_range"`
	RollingFile    string                `json:"rolling_file" toml:"rolling_file"`
	RollingSheet   string                `json:"rolling_sheet" toml:"rolling_sheet"`
	RollingRange   string                `json:"rolling_range" toml:"rolling_range"`
	OutputFile     string                `json:"output_file,omitempty" toml:"output_file,omitempty"`
	MappingFile    string                `json:"mapping_file,omitempty" toml:"mapping_file,omitempty"`
	LastExportFile string                `json:"last_export_file,omitempty" toml:"last_export_file,omitempty"`
	SheetRanges    map[string]SheetRange `json:"sheet_ranges,omitempty" toml:"sheet_ranges,omitempty"`
	Workflow       WorkflowState         `json:"workflow_state" toml:"workflow_state"`

	// Derived data, owned by the project but never written to the manifest.
	Mappings       *MappingSet       `json:"-" toml:"-"`
	MonthlyData    MonthlyAmounts    `json:"-" toml:"-"`
	AggregatedData AggregatedAmounts `json:"-" toml:"-"`
	PreviewData    []PreviewRow      `json:"-" toml:"-"`
	TargetMonth    *TargetMonth      `json:"-" toml:"-"`
}

// NewProject creates a project with every optional field at its default.
func NewProject(name string) *Project {
	p := &Project{Name: name}
	p.ApplyDefaults()
	return p
}

// ApplyDefaults fills in fields left empty. Loaded projects go through this
// so no field ever needs an existence check.
func (p *Project) ApplyDefaults() {
	if strings.TrimSpace(p.SourceRange) == "" {
		p.SourceRange = DefaultSourceRange
	}
	if strings.TrimSpace(p.RollingRange) == "" {
		p.RollingRange = DefaultRollingRange
	}
	if p.SourceSheet == "" {
		p.SourceSheet = p.Name
	}
	if p.SheetRanges == nil {
		p.SheetRanges = make(map[string]SheetRange)
	}
	if p.Mappings == nil {
		p.Mappings = NewMappingSet()
	}
	if p.MonthlyData == nil {
		p.MonthlyData = make(MonthlyAmounts)
	}
	if p.AggregatedData == nil {
		p.AggregatedData = make(AggregatedAmounts)
	}
}

// Validate performs basic validation on the Project
func (p *Project) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("project name cannot be empty")
	}
	if strings.TrimSpace(p.SourceFile) == "" {
		return fmt.Errorf("project %q: source file cannot be empty", p.Name)
	}
	if strings.TrimSpace(p.RollingFile) == "" {
		return fmt.Errorf("project %q: rolling file cannot be empty", p.Name)
	}
	if strings.TrimSpace(p.RollingSheet) == "" {
		return fmt.Errorf("project %q: rolling sheet cannot be empty", p.Name)
	}
	return nil
}

// RememberRanges stores the project's current ranges against sheet.
func (p *Project) RememberRanges(sheet string) {
	if p.SheetRanges == nil {
		p.SheetRanges = make(map[string]SheetRange)
	}
	p.SheetRanges[sheet] = SheetRange{Source: p.SourceRange, Rolling: p.RollingRange}
}

// RangesFor returns the ranges remembered for sheet.
func (p *Project) RangesFor(sheet string) (SheetRange, bool) {
	r, ok := p.SheetRanges[sheet]
	return r, ok
}

// UseSheet switches the project to sheet, restoring its remembered ranges.
func (p *Project) UseSheet(sheet string) {
	p.SourceSheet = sheet
	if r, ok := p.RangesFor(sheet); ok {
		if r.Source != "" {
			p.SourceRange = r.Source
		}
		if r.Rolling != "" {
			p.RollingRange = r.Rolling
		}
	}
	p.InvalidateAggregates()
	p.TargetMonth = nil
}

// InvalidateAggregates drops everything derived from the mappings.
func (p *Project) InvalidateAggregates() {
	p.MonthlyData = make(MonthlyAmounts)
	p.AggregatedData = make(AggregatedAmounts)
	p.PreviewData = nil
	p.Workflow.MonthlyGenerated = false
	p.Workflow.Exported = false
}

// ResetData clears mappings, derived data, workflow state and the last export
// while keeping the workbook bindings and range memory.
func (p *Project) ResetData() {
	sheetRanges := make(map[string]SheetRange, len(p.SheetRanges))
	for k, v := range p.SheetRanges {
		sheetRanges[k] = v
	}

	*p = Project{
		Name:         p.Name,
		SourceFile:   p.SourceFile,
		SourceSheet:  p.SourceSheet,
		SourceRange:  p.SourceRange,
		RollingFile:  p.RollingFile,
		RollingSheet: p.RollingSheet,
		RollingRange: p.RollingRange,
		OutputFile:   p.OutputFile,
		MappingFile:  p.MappingFile,
		SheetRanges:  sheetRanges,
	}
	p.ApplyDefaults()
}
