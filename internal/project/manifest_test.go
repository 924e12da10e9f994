package project

import (
	"os"
	"path/filepath"
	"testing"

	"rolling-pnl-reconciler/internal/models"
	apperrors "rolling-pnl-reconciler/pkg/errors"
)

const sampleManifest = `
version = 1

[defaults]
rolling_file = "rolling.xlsx"
rolling_sheet = "Rolling"
mapping_dir = "maps"

[[projects]]
name = "North Shore"
source_file = "source.xlsx"

[[projects]]
name = "South"
source_file = "/data/south.xlsx"
source_sheet = "South P&L"
source_range = "A10:H300"
rolling_file = "other.xlsx"

[projects.sheet_ranges."South P&L"]
source = "A10:H300"
rolling = "A2:A80"
`

func writeManifest(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "projects.toml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write manifest: %v", err)
	}
	return path
}

func TestLoad(t *testing.T) {
	path := writeManifest(t, sampleManifest)
	m, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if len(m.Projects) != 2 {
		t.Fatalf("Expected 2 projects, got %d", len(m.Projects))
	}

	north, ok := m.Find("North Shore")
	if !ok {
		t.Fatal("Expected to find North Shore")
	}
	if north.RollingFile != "rolling.xlsx" || north.RollingSheet != "Rolling" {
		t.Errorf("Expected rolling defaults to be inherited, got %q %q", north.RollingFile, north.RollingSheet)
	}
	if north.SourceSheet != "North Shore" {
		t.Errorf("Expected source sheet to default to the project name, got %q", north.SourceSheet)
	}
	if north.SourceRange != models.DefaultSourceRange || north.RollingRange != models.DefaultRollingRange {
		t.Errorf("Expected default ranges, got %q %q", north.SourceRange, north.RollingRange)
	}
	if north.Mappings == nil {
		t.Error("Expected an empty mapping set")
	}

	south, _ := m.Find("South")
	if south.RollingFile != "other.xlsx" {
		t.Errorf("Expected project value to win over defaults, got %q", south.RollingFile)
	}
	if r, ok := south.RangesFor("South P&L"); !ok || r.Rolling != "A2:A80" {
		t.Errorf("Expected remembered ranges, got %+v", r)
	}

	dir := filepath.Dir(path)
	if got := m.Resolve(north.SourceFile); got != filepath.Join(dir, "source.xlsx") {
		t.Errorf("Expected relative path resolved against the manifest, got %s", got)
	}
	if got := m.Resolve(south.SourceFile); got != "/data/south.xlsx" {
		t.Errorf("Expected absolute path unchanged, got %s", got)
	}
	if got := m.MappingPath(north); got != filepath.Join(dir, "maps", "North_Shore.mappings.json") {
		t.Errorf("Unexpected mapping path %s", got)
	}
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		code    apperrors.ErrorCode
	}{
		{"syntax", "version = \n", apperrors.CodeInvalidConfig},
		{"missing rolling sheet", "[[projects]]\nname = \"A\"\nsource_file = \"a.xlsx\"\nrolling_file = \"r.xlsx\"\n", apperrors.CodeMissingField},
		{
			"duplicate names",
			"[defaults]\nsource_file = \"a.xlsx\"\nrolling_file = \"r.xlsx\"\nrolling_sheet = \"R\"\n[[projects]]\nname = \"A\"\n[[projects]]\nname = \"A\"\n",
			apperrors.CodeOutOfRange,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeManifest(t, tt.content))
			re, ok := apperrors.AsReconcilerError(err)
			if !ok {
				t.Fatalf("Expected ReconcilerError, got %v", err)
			}
			if re.Code != tt.code {
				t.Errorf("Expected %s, got %s", tt.code, re.Code)
			}
			if re.Context["file_path"] == nil {
				t.Error("Expected error to name the manifest file")
			}
		})
	}

	_, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	if re, ok := apperrors.AsReconcilerError(err); !ok || re.Code != apperrors.CodeFileNotFound {
		t.Errorf("Expected file_not_found, got %v", err)
	}
}

func TestSaveRoundTrip(t *testing.T) {
	m, err := Load(writeManifest(t, sampleManifest))
	if err != nil {
		t.Fatal(err)
	}
	south, _ := m.Find("South")
	south.Workflow.MappingsGenerated = true

	path := filepath.Join(t.TempDir(), "nested", "out.toml")
	if err := Save(path, m); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load of saved manifest failed: %v", err)
	}
	got, ok := loaded.Find("South")
	if !ok {
		t.Fatal("Expected South after round trip")
	}
	if got.SourceRange != "A10:H300" || got.SourceSheet != "South P&L" || !got.Workflow.MappingsGenerated {
		t.Errorf("Unexpected project after round trip: %+v", got)
	}
	if r, _ := got.RangesFor("South P&L"); r.Rolling != "A2:A80" {
		t.Errorf("Expected sheet ranges to survive, got %+v", r)
	}
	if loaded.Defaults.MappingDir != "maps" {
		t.Errorf("Expected defaults to survive, got %+v", loaded.Defaults)
	}
}

func TestSelect(t *testing.T) {
	m, err := Load(writeManifest(t, sampleManifest))
	if err != nil {
		t.Fatal(err)
	}

	all, err := m.Select("")
	if err != nil || len(all) != 2 {
		t.Errorf("Expected every project, got %d (%v)", len(all), err)
	}
	one, err := m.Select("South")
	if err != nil || len(one) != 1 || one[0].Name != "South" {
		t.Errorf("Expected South only, got %v (%v)", one, err)
	}
	if _, err := m.Select("West"); err == nil {
		t.Error("Expected error for unknown project")
	}

	m.Add(models.NewProject("South"))
	if len(m.Projects) != 2 {
		t.Errorf("Expected Add to replace a same-named project, got %d projects", len(m.Projects))
	}
}

func TestMappingsSidecar(t *testing.T) {
	m := New(t.TempDir())
	p := models.NewProject("North")

	if err := m.LoadMappings(p); err != nil {
		t.Fatalf("Expected missing sidecar to be fine: %v", err)
	}
	if p.Mappings.Len() != 0 {
		t.Errorf("Expected empty mappings, got %d", p.Mappings.Len())
	}

	p.Mappings.Set(models.ManualMapping("6100 Rent", "Rent"))
	if err := m.SaveMappings(p); err != nil {
		t.Fatalf("SaveMappings failed: %v", err)
	}

	reloaded := models.NewProject("North")
	if err := m.LoadMappings(reloaded); err != nil {
		t.Fatalf("LoadMappings failed: %v", err)
	}
	if !reloaded.Mappings.Equal(p.Mappings) {
		t.Errorf("Expected mappings to round trip, got %v", reloaded.Mappings.Entries())
	}
	if !reloaded.Workflow.MappingsGenerated {
		t.Error("Expected loaded mappings to mark the step as done")
	}
}
