package models

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
)

func TestParseConfidence(t *testing.T) {
	tests := []struct {
		input    string
		expected Confidence
		wantErr  bool
	}{
		{"High", ConfidenceHigh, false},
		{"medium", ConfidenceMedium, false},
		{" LOW ", ConfidenceLow, false},
		{"Manual", ConfidenceManual, false},
		{"none", ConfidenceNone, false},
		{"Exact", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseConfidence(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseConfidence(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if got != tt.expected {
				t.Errorf("Expected %s, got %s", tt.expected, got)
			}
		})
	}
}

func TestAccountMappingValidate(t *testing.T) {
	tests := []struct {
		name    string
		mapping AccountMapping
		wantErr bool
	}{
		{"manual", ManualMapping("Rent", "Rental Income"), false},
		{"empty label", AccountMapping{Confidence: ConfidenceNone}, true},
		{"bad confidence", AccountMapping{SourceLabel: "Rent", Confidence: "Exact"}, true},
		{"similarity above 100", AccountMapping{SourceLabel: "Rent", Confidence: ConfidenceHigh, Similarity: 101}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.mapping.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestMappingSetKeepsInsertionOrder(t *testing.T) {
	s := NewMappingSet()
	s.Set(AccountMapping{SourceLabel: "Zeta", Confidence: ConfidenceNone})
	s.Set(AccountMapping{SourceLabel: "Alpha", Confidence: ConfidenceNone})
	s.Set(AccountMapping{SourceLabel: "Mid", Confidence: ConfidenceNone})
	s.Set(ManualMapping("Zeta", "Other"))

	labels := s.Labels()
	expected := []string{"Zeta", "Alpha", "Mid"}
	if len(labels) != len(expected) {
		t.Fatalf("Expected %d labels, got %d", len(expected), len(labels))
	}
	for i := range expected {
		if labels[i] != expected[i] {
			t.Errorf("Expected label %d to be %s, got %s", i, expected[i], labels[i])
		}
	}

	m, _ := s.Get("Zeta")
	if m.RollingAccount != "Other" || !m.UserEdited {
		t.Errorf("Expected replaced entry to be the manual one, got %+v", m)
	}
}

func TestMappingSetJSONPreservesOrder(t *testing.T) {
	s := NewMappingSet()
	s.Set(AccountMapping{SourceLabel: "Telephone", RollingAccount: "Phone", Confidence: ConfidenceHigh, Similarity: 85.7})
	s.Set(AccountMapping{SourceLabel: "P&L Adjust", RollingAccount: "", Confidence: ConfidenceNone})
	s.Set(ManualMapping("Advertising", "Marketing"))

	data, err := json.Marshal(s)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	decoded := NewMappingSet()
	if err := json.Unmarshal(data, decoded); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if !decoded.Equal(s) {
		t.Errorf("Expected decoded set to equal original.\noriginal: %+v\ndecoded:  %+v", s.Entries(), decoded.Entries())
	}
}

func TestMappingSetUnmarshalLegacyValues(t *testing.T) {
	data := []byte(`{"Rent": "Rental Income", "Misc": {"rolling_account": "", "confidence": "None", "similarity": 12.5, "user_edited": false}}`)

	s := NewMappingSet()
	if err := json.Unmarshal(data, s); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}

	rent, ok := s.Get("Rent")
	if !ok {
		t.Fatal("Expected Rent entry")
	}
	if rent != ManualMapping("Rent", "Rental Income") {
		t.Errorf("Expected legacy value upgraded to a manual mapping, got %+v", rent)
	}

	misc, _ := s.Get("Misc")
	if misc.Confidence != ConfidenceNone || misc.Similarity != 12.5 || misc.SourceLabel != "Misc" {
		t.Errorf("Unexpected Misc entry: %+v", misc)
	}
	if s.Labels()[0] != "Rent" {
		t.Errorf("Expected Rent first, got %v", s.Labels())
	}
}

func TestMappingSetUnmarshalRejectsArray(t *testing.T) {
	s := NewMappingSet()
	if err := json.Unmarshal([]byte(`["Rent"]`), s); err == nil {
		t.Error("Expected error for non-object input")
	}
}

func TestMappingSetRollingAccounts(t *testing.T) {
	s := NewMappingSet()
	s.Set(ManualMapping("Rent A", "Rental Income"))
	s.Set(ManualMapping("Rent B", "Rental Income"))
	s.Set(AccountMapping{SourceLabel: "Misc", Confidence: ConfidenceNone})
	s.Set(ManualMapping("Phone", "Telephone"))

	got := s.RollingAccounts()
	if len(got) != 2 || got[0] != "Rental Income" || got[1] != "Telephone" {
		t.Errorf("Expected [Rental Income Telephone], got %v", got)
	}
	if s.CountByConfidence()[ConfidenceManual] != 3 {
		t.Errorf("Expected 3 manual entries, got %d", s.CountByConfidence()[ConfidenceManual])
	}
}

func TestAmountTotals(t *testing.T) {
	m := MonthlyAmounts{
		"Rent A": decimal.NewFromInt(1000),
		"Misc":   decimal.RequireFromString("50.25"),
	}
	if !m.Total().Equal(decimal.RequireFromString("1050.25")) {
		t.Errorf("Expected total 1050.25, got %s", m.Total())
	}
	labels := m.Labels()
	if labels[0] != "Misc" || labels[1] != "Rent A" {
		t.Errorf("Expected sorted labels, got %v", labels)
	}
}

func TestProjectDefaults(t *testing.T) {
	p := NewProject("Tower A")

	if p.SourceRange != DefaultSourceRange {
		t.Errorf("Expected source range %s, got %s", DefaultSourceRange, p.SourceRange)
	}
	if p.RollingRange != DefaultRollingRange {
		t.Errorf("Expected rolling range %s, got %s", DefaultRollingRange, p.RollingRange)
	}
	if p.SourceSheet != "Tower A" {
		t.Errorf("Expected source sheet to default to the project name, got %s", p.SourceSheet)
	}
	if p.Mappings == nil || p.MonthlyData == nil || p.AggregatedData == nil || p.SheetRanges == nil {
		t.Error("Expected all collections to be initialized")
	}
}

func TestProjectValidate(t *testing.T) {
	p := NewProject("Tower A")
	if err := p.Validate(); err == nil {
		t.Error("Expected error for project without files")
	}

	p.SourceFile = "source.xlsx"
	p.RollingFile = "rolling.xlsx"
	p.RollingSheet = "Rolling"
	if err := p.Validate(); err != nil {
		t.Errorf("Expected valid project, got %v", err)
	}
}

func TestProjectRangeMemory(t *testing.T) {
	p := NewProject("Tower A")
	p.SourceRange = "A10:G90"
	p.RollingRange = "A2:A80"
	p.RememberRanges("Tower A")

	p.SourceRange = "B1:B5"
	p.UseSheet("Tower A")

	if p.SourceRange != "A10:G90" || p.RollingRange != "A2:A80" {
		t.Errorf("Expected remembered ranges to be restored, got %s and %s", p.SourceRange, p.RollingRange)
	}

	if _, ok := p.RangesFor("Unknown"); ok {
		t.Error("Expected no ranges for an unknown sheet")
	}
}

func TestProjectResetDataPreservesRanges(t *testing.T) {
	p := NewProject("Tower A")
	p.SourceFile = "source.xlsx"
	p.SourceRange = "A10:G90"
	p.RememberRanges("Tower A")
	p.Mappings.Set(ManualMapping("Rent", "Rental Income"))
	p.MonthlyData["Rent"] = decimal.NewFromInt(10)
	p.TargetMonth = &TargetMonth{ColumnIndex: 17, HeaderLabel: "Jun 2025"}
	p.Workflow.MappingsGenerated = true
	p.LastExportFile = "out.xlsx"

	p.ResetData()

	if p.SourceFile != "source.xlsx" {
		t.Errorf("Expected source file kept, got %s", p.SourceFile)
	}
	if p.LastExportFile != "" {
		t.Errorf("Expected last export cleared, got %s", p.LastExportFile)
	}
	if p.Mappings.Len() != 0 || len(p.MonthlyData) != 0 {
		t.Error("Expected derived data to be cleared")
	}
	if p.TargetMonth != nil {
		t.Error("Expected target month cleared")
	}
	if p.Workflow.MappingsGenerated {
		t.Error("Expected workflow state reset")
	}
	if p.SourceRange != "A10:G90" {
		t.Errorf("Expected source range preserved, got %s", p.SourceRange)
	}
	if r, ok := p.RangesFor("Tower A"); !ok || r.Source != "A10:G90" {
		t.Errorf("Expected sheet range memory preserved, got %+v", r)
	}
}

func TestProjectInvalidateAggregates(t *testing.T) {
	p := NewProject("Tower A")
	p.MonthlyData["Rent"] = decimal.NewFromInt(10)
	p.AggregatedData["Rental Income"] = decimal.NewFromInt(10)
	p.PreviewData = []PreviewRow{{Row: 2}}
	p.Workflow.MonthlyGenerated = true

	p.InvalidateAggregates()

	if len(p.MonthlyData) != 0 || len(p.AggregatedData) != 0 || p.PreviewData != nil {
		t.Error("Expected derived amounts to be cleared")
	}
	if p.Workflow.MonthlyGenerated {
		t.Error("Expected MonthlyGenerated to be reset")
	}
}
