package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"rolling-pnl-reconciler/internal/models"
	"rolling-pnl-reconciler/internal/project"
	apperrors "rolling-pnl-reconciler/pkg/errors"
)

// Project selection flags shared by reconcile and mapping
var (
	manifestFile string
	projectName  string
	sourceFile   string
	sourceSheet  string
	sourceRange  string
	rollingFile  string
	rollingSheet string
	rollingRange string
	mappingFile  string
)

func addProjectFlags(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&manifestFile, "manifest", "m", "", "path to the TOML project manifest")
	cmd.Flags().StringVarP(&projectName, "project", "p", "", "only this project (default: all)")

	// Single project without a manifest
	cmd.Flags().StringVar(&sourceFile, "source-file", "", "source P&L workbook")
	cmd.Flags().StringVar(&sourceSheet, "source-sheet", "", "source sheet name")
	cmd.Flags().StringVar(&sourceRange, "source-range", models.DefaultSourceRange, "source label range")
	cmd.Flags().StringVar(&rollingFile, "rolling-file", "", "rolling P&L workbook")
	cmd.Flags().StringVar(&rollingSheet, "rolling-sheet", "", "rolling sheet name")
	cmd.Flags().StringVar(&rollingRange, "rolling-range", models.DefaultRollingRange, "rolling label range")
	cmd.Flags().StringVar(&mappingFile, "mapping-file", "", "mapping JSON file to load and update")
}

func validateProjectFlags() error {
	if manifestFile == "" && sourceFile == "" {
		return fmt.Errorf("either --manifest or --source-file is required")
	}
	if manifestFile != "" && sourceFile != "" {
		return fmt.Errorf("--manifest and --source-file cannot be combined")
	}

	if manifestFile != "" {
		return validateFileExists(manifestFile, "project manifest")
	}

	if err := validateFileExists(sourceFile, "source workbook"); err != nil {
		return err
	}
	if err := validateFileExists(rollingFile, "rolling workbook"); err != nil {
		return err
	}
	if sourceSheet == "" || rollingSheet == "" {
		return fmt.Errorf("--source-sheet and --rolling-sheet are required with --source-file")
	}
	return nil
}

// loadProjects returns the manifest and the selected projects. Without a
// manifest the project comes from the flags, and a manifest rooted in the
// working directory is returned only when --mapping-file names where its
// mappings live. With a manifest, an explicit --source-sheet or range flag
// overrides the selected project.
func loadProjects(cmd *cobra.Command) (*project.Manifest, []*models.Project, error) {
	if manifestFile == "" {
		p := models.NewProject(sourceSheet)
		p.SourceFile = sourceFile
		p.SourceSheet = sourceSheet
		p.SourceRange = sourceRange
		p.RollingFile = rollingFile
		p.RollingSheet = rollingSheet
		p.RollingRange = rollingRange
		p.MappingFile = mappingFile

		var m *project.Manifest
		if mappingFile != "" {
			m = project.New("")
		}
		return m, []*models.Project{p}, nil
	}

	m, err := project.Load(manifestFile)
	if err != nil {
		return nil, nil, err
	}
	projects, err := m.Select(projectName)
	if err != nil {
		return nil, nil, err
	}

	if hasOverrides(cmd) {
		if len(projects) != 1 {
			return nil, nil, apperrors.ValidationError(apperrors.CodeMissingField, "project", projectName, nil).
				WithSuggestion("Select the project to override with --project")
		}
		applyOverrides(cmd, projects[0])
	}
	return m, projects, nil
}

var overrideFlags = []string{"source-sheet", "source-range", "rolling-range"}

func hasOverrides(cmd *cobra.Command) bool {
	for _, name := range overrideFlags {
		if cmd.Flags().Changed(name) {
			return true
		}
	}
	return false
}

// applyOverrides switches p to --source-sheet, restoring the ranges
// remembered for it, then applies explicit range flags. The ranges of the
// sheet being left and of the resulting sheet are both remembered.
func applyOverrides(cmd *cobra.Command, p *models.Project) {
	flags := cmd.Flags()
	if flags.Changed("source-sheet") && sourceSheet != p.SourceSheet {
		p.RememberRanges(p.SourceSheet)
		p.UseSheet(sourceSheet)
	}
	if flags.Changed("source-range") {
		p.SourceRange = sourceRange
	}
	if flags.Changed("rolling-range") {
		p.RollingRange = rollingRange
	}
	p.InvalidateAggregates()
	p.RememberRanges(p.SourceSheet)
}
