package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"rolling-pnl-reconciler/internal/project"
)

var keepMappings bool

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Clear the stored state of manifest projects",
	Long: `Reset clears the mappings, workflow state and last export of each selected
project and saves the manifest. Workbook paths, sheets and the ranges
remembered per sheet are kept.

Examples:
  reconciler reset --manifest projects.toml --project Ops
  reconciler reset --manifest projects.toml --keep-mappings`,
	PreRunE: validateResetFlags,
	RunE:    runReset,
}

func init() {
	rootCmd.AddCommand(resetCmd)

	resetCmd.Flags().StringVarP(&manifestFile, "manifest", "m", "", "path to the TOML project manifest")
	resetCmd.Flags().StringVarP(&projectName, "project", "p", "", "only this project (default: all)")
	resetCmd.Flags().BoolVar(&keepMappings, "keep-mappings", false, "keep the stored mappings")
	resetCmd.MarkFlagRequired("manifest")
}

func validateResetFlags(cmd *cobra.Command, args []string) error {
	return validateFileExists(manifestFile, "project manifest")
}

func runReset(cmd *cobra.Command, args []string) error {
	m, projects, err := loadProjects(cmd)
	if err != nil {
		return err
	}
	service, _, err := newService("console")
	if err != nil {
		return err
	}

	if projectName == "" {
		service.ClearCaches()
	}

	out := cmd.OutOrStdout()
	for _, p := range projects {
		if err := service.ResetProject(m, p, keepMappings); err != nil {
			return err
		}
		if keepMappings {
			fmt.Fprintf(out, "%s: reset, %d mapping(s) kept\n", p.Name, p.Mappings.Len())
		} else {
			fmt.Fprintf(out, "%s: reset, mappings cleared in %s\n", p.Name, m.MappingPath(p))
		}
	}

	if err := project.Save(manifestFile, m); err != nil {
		return err
	}
	fmt.Fprintf(out, "Saved %s\n", manifestFile)
	return nil
}
