// Package project persists reconciliation projects in a TOML manifest, with
// each project's mappings kept in a JSON sidecar file.
package project

import (
	stderrors "errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"rolling-pnl-reconciler/internal/mapping"
	"rolling-pnl-reconciler/internal/models"
	apperrors "rolling-pnl-reconciler/pkg/errors"
	"rolling-pnl-reconciler/pkg/logger"
)

// ManifestVersion is the manifest layout version written by Save
const ManifestVersion = 1

// Defaults are inherited by every project that leaves the field empty
type Defaults struct {
	SourceFile   string `toml:"source_file,omitempty"`
	RollingFile  string `toml:"rolling_file,omitempty"`
	RollingSheet string `toml:"rolling_sheet,omitempty"`
	OutputFile   string `toml:"output_file,omitempty"`
	MappingDir   string `toml:"mapping_dir,omitempty"`
}

// Manifest lists the projects of one reconciliation workspace
type Manifest struct {
	Version  int               `toml:"version"`
	Defaults Defaults          `toml:"defaults"`
	Projects []*models.Project `toml:"projects"`

	// Dir is the directory relative paths are resolved against
	Dir string `toml:"-"`
}

// New creates an empty manifest rooted at dir
func New(dir string) *Manifest {
	return &Manifest{Version: ManifestVersion, Dir: dir}
}

// Load reads and validates the manifest at path
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		code := apperrors.CodeFileNotFound
		if os.IsPermission(err) {
			code = apperrors.CodeFilePermission
		}
		return nil, apperrors.FileError(code, path, err)
	}

	m := New(filepath.Dir(path))
	if err := toml.Unmarshal(data, m); err != nil {
		re := apperrors.Wrap(err, apperrors.CategoryConfiguration, apperrors.CodeInvalidConfig,
			fmt.Sprintf("invalid project manifest %s", path)).
			WithContext("file_path", path)
		var de *toml.DecodeError
		if stderrors.As(err, &de) {
			row, col := de.Position()
			re = re.WithContext("line", row).WithContext("column", col)
		}
		return nil, re
	}

	for _, p := range m.Projects {
		m.inherit(p)
	}
	if err := m.Validate(); err != nil {
		if re, ok := apperrors.AsReconcilerError(err); ok {
			return nil, re.WithContext("file_path", path)
		}
		return nil, err
	}

	logger.GetGlobalLogger().WithComponent("project").WithFields(logger.Fields{
		"file":     path,
		"projects": len(m.Projects),
	}).Debug("Loaded project manifest")
	return m, nil
}

func (m *Manifest) inherit(p *models.Project) {
	if p.SourceFile == "" {
		p.SourceFile = m.Defaults.SourceFile
	}
	if p.RollingFile == "" {
		p.RollingFile = m.Defaults.RollingFile
	}
	if p.RollingSheet == "" {
		p.RollingSheet = m.Defaults.RollingSheet
	}
	if p.OutputFile == "" {
		p.OutputFile = m.Defaults.OutputFile
	}
	p.ApplyDefaults()
}

// Validate checks every project and that names are unique
func (m *Manifest) Validate() error {
	seen := make(map[string]bool)
	for i, p := range m.Projects {
		if err := p.Validate(); err != nil {
			return apperrors.ValidationError(apperrors.CodeMissingField,
				fmt.Sprintf("projects[%d]", i), p.Name, err)
		}
		if seen[p.Name] {
			return apperrors.ValidationError(apperrors.CodeOutOfRange, "projects.name", p.Name,
				fmt.Errorf("duplicate project name %q", p.Name))
		}
		seen[p.Name] = true
	}
	return nil
}

// Save writes the manifest to path. Derived project data is not written.
func Save(path string, m *Manifest) error {
	if m.Version == 0 {
		m.Version = ManifestVersion
	}
	data, err := toml.Marshal(m)
	if err != nil {
		return apperrors.InternalError(apperrors.CodeUnexpectedError, "encode project manifest", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return apperrors.FileError(apperrors.CodeWriteFailed, path, err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return apperrors.FileError(apperrors.CodeWriteFailed, path, err)
	}
	return nil
}

// Find returns the project called name
func (m *Manifest) Find(name string) (*models.Project, bool) {
	for _, p := range m.Projects {
		if p.Name == name {
			return p, true
		}
	}
	return nil, false
}

// Select returns the named project, or every project when name is empty.
func (m *Manifest) Select(name string) ([]*models.Project, error) {
	if name == "" {
		return m.Projects, nil
	}
	p, ok := m.Find(name)
	if !ok {
		names := make([]string, len(m.Projects))
		for i, p := range m.Projects {
			names[i] = p.Name
		}
		return nil, apperrors.ValidationError(apperrors.CodeUnknownLabel, "project", name, nil).
			WithSuggestion(fmt.Sprintf("available projects: %s", strings.Join(names, ", ")))
	}
	return []*models.Project{p}, nil
}

// Add appends p, replacing a project with the same name
func (m *Manifest) Add(p *models.Project) {
	for i, existing := range m.Projects {
		if existing.Name == p.Name {
			m.Projects[i] = p
			return
		}
	}
	m.Projects = append(m.Projects, p)
}

// Resolve makes a relative path relative to the manifest directory
func (m *Manifest) Resolve(path string) string {
	if path == "" || filepath.IsAbs(path) || m.Dir == "" {
		return path
	}
	return filepath.Join(m.Dir, path)
}

var unsafeName = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// MappingPath returns where p's mappings are stored: its MappingFile, or a
// file named after the project in the mapping directory.
func (m *Manifest) MappingPath(p *models.Project) string {
	if p.MappingFile != "" {
		return m.Resolve(p.MappingFile)
	}
	name := strings.Trim(unsafeName.ReplaceAllString(p.Name, "_"), "_")
	if name == "" {
		name = "project"
	}
	return m.Resolve(filepath.Join(m.Defaults.MappingDir, name+".mappings.json"))
}

// LoadMappings reads p's sidecar mapping file into p.Mappings. A missing file
// leaves p with an empty set.
func (m *Manifest) LoadMappings(p *models.Project) error {
	path := m.MappingPath(p)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		p.Mappings = models.NewMappingSet()
		return nil
	}
	doc, err := mapping.LoadFile(path)
	if err != nil {
		return err
	}
	p.Mappings = doc.Mappings
	p.Workflow.MappingsGenerated = doc.Mappings.Len() > 0
	return nil
}

// SaveMappings writes p.Mappings to p's sidecar mapping file
func (m *Manifest) SaveMappings(p *models.Project) error {
	return mapping.SaveFile(m.MappingPath(p), p.Name, p.Mappings)
}
