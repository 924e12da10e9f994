package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"rolling-pnl-reconciler/cmd/reconciler/config"
	"rolling-pnl-reconciler/internal/models"
	"rolling-pnl-reconciler/internal/reporter"
	apperrors "rolling-pnl-reconciler/pkg/errors"
)

var (
	editSources    []string
	editRolling    string
	showConfidence []string
	mappingFormat  string
)

var mappingCmd = &cobra.Command{
	Use:   "mapping",
	Short: "Generate, review and edit account mappings",
	Long: `Mapping manages the source-to-rolling account mappings stored beside the
project manifest (or in --mapping-file). Generated entries carry a confidence
tier from the fuzzy match; edited entries are marked Manual and are never
replaced by later generation.`,
}

var mappingGenerateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Match new source accounts against the rolling accounts",
	Long: `Generate adds an entry for every source account that has no mapping yet,
keeping existing entries unchanged.

Examples:
  reconciler mapping generate --manifest projects.toml
  reconciler mapping generate --manifest projects.toml --project Ops`,
	PreRunE: validateMappingFlags,
	RunE:    runMappingGenerate,
}

var mappingEditCmd = &cobra.Command{
	Use:   "edit",
	Short: "Point one or more source accounts at a rolling account",
	Long: `Edit sets the rolling account of every --source label. The edit is applied
to all labels or to none: an unknown label fails the command. Pass an empty
--rolling to leave the labels unmapped.

Examples:
  reconciler mapping edit --manifest projects.toml --project Ops \
    --source "7350 Domain / Website" --rolling "Website Expense"
  reconciler mapping edit --manifest projects.toml --project Ops \
    --source "6100 Rent" --source "6110 Rent - Storage" --rolling "Rent"`,
	PreRunE: validateMappingEditFlags,
	RunE:    runMappingEdit,
}

var mappingShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the stored mappings",
	Long: `Show prints the stored mappings of each selected project.

Examples:
  reconciler mapping show --manifest projects.toml
  reconciler mapping show --manifest projects.toml --confidence Low,None --output-format csv`,
	PreRunE: validateMappingShowFlags,
	RunE:    runMappingShow,
}

func init() {
	rootCmd.AddCommand(mappingCmd)
	mappingCmd.AddCommand(mappingGenerateCmd, mappingEditCmd, mappingShowCmd)

	for _, c := range []*cobra.Command{mappingGenerateCmd, mappingEditCmd, mappingShowCmd} {
		addProjectFlags(c)
	}

	mappingEditCmd.Flags().StringArrayVarP(&editSources, "source", "s", nil, "source account label (repeatable)")
	mappingEditCmd.Flags().StringVarP(&editRolling, "rolling", "r", "", "rolling account to map the labels to")
	mappingEditCmd.MarkFlagRequired("source")

	mappingShowCmd.Flags().StringSliceVar(&showConfidence, "confidence", nil, "only these tiers: High, Medium, Low, Manual, None")
	mappingShowCmd.Flags().StringVarP(&mappingFormat, "output-format", "f", "console", "output format: console, json, csv")
}

func validateMappingFlags(cmd *cobra.Command, args []string) error {
	if err := validateProjectFlags(); err != nil {
		return err
	}
	if manifestFile == "" && mappingFile == "" {
		return fmt.Errorf("--mapping-file is required with --source-file so mappings can be stored")
	}
	return nil
}

func validateMappingEditFlags(cmd *cobra.Command, args []string) error {
	if err := validateMappingFlags(cmd, args); err != nil {
		return err
	}
	for _, label := range editSources {
		if strings.TrimSpace(label) == "" {
			return fmt.Errorf("--source labels cannot be empty")
		}
	}
	return nil
}

func validateMappingShowFlags(cmd *cobra.Command, args []string) error {
	if err := validateMappingFlags(cmd, args); err != nil {
		return err
	}
	if _, err := parseConfidences(showConfidence); err != nil {
		return err
	}
	return validateOutputFormat(mappingFormat)
}

func parseConfidences(values []string) ([]models.Confidence, error) {
	tiers := make([]models.Confidence, 0, len(values))
	for _, v := range values {
		c, err := models.ParseConfidence(strings.TrimSpace(v))
		if err != nil {
			return nil, err
		}
		tiers = append(tiers, c)
	}
	return tiers, nil
}

func runMappingGenerate(cmd *cobra.Command, args []string) error {
	m, projects, err := loadProjects(cmd)
	if err != nil {
		return err
	}
	service, _, err := newService("console")
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	for _, p := range projects {
		added, err := service.GenerateMappings(m, p)
		if err != nil {
			return err
		}
		counts := p.Mappings.CountByConfidence()
		fmt.Fprintf(out, "%s: %d new account(s), %d total (High %d, Medium %d, Low %d, Manual %d, None %d)\n",
			p.Name, len(added), p.Mappings.Len(),
			counts[models.ConfidenceHigh], counts[models.ConfidenceMedium], counts[models.ConfidenceLow],
			counts[models.ConfidenceManual], counts[models.ConfidenceNone])
		for _, label := range added {
			mapping, _ := p.Mappings.Get(label)
			account := mapping.RollingAccount
			if account == "" {
				account = "(unmapped)"
			}
			fmt.Fprintf(out, "  + %s -> %s [%s]\n", label, account, mapping.Confidence)
		}
		if len(added) > 0 {
			fmt.Fprintf(out, "  saved to %s\n", m.MappingPath(p))
		}
	}
	return nil
}

func runMappingEdit(cmd *cobra.Command, args []string) error {
	m, projects, err := loadProjects(cmd)
	if err != nil {
		return err
	}
	if len(projects) != 1 {
		return apperrors.ValidationError(apperrors.CodeMissingField, "project", projectName, nil).
			WithSuggestion("Select the project to edit with --project")
	}
	p := projects[0]

	service, _, err := newService("console")
	if err != nil {
		return err
	}
	if err := service.EditMappings(m, p, editSources, editRolling); err != nil {
		return err
	}

	target := editRolling
	if target == "" {
		target = "(unmapped)"
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s: %d account(s) now map to %s, saved to %s\n",
		p.Name, len(editSources), target, m.MappingPath(p))
	return nil
}

func runMappingShow(cmd *cobra.Command, args []string) error {
	m, projects, err := loadProjects(cmd)
	if err != nil {
		return err
	}
	tiers, err := parseConfidences(showConfidence)
	if err != nil {
		return err
	}

	generator, err := reporter.NewReportGenerator(config.CreateReportConfig(mappingFormat))
	if err != nil {
		return err
	}

	for _, p := range projects {
		if err := m.LoadMappings(p); err != nil {
			return err
		}
		if p.Mappings.Len() == 0 {
			fmt.Fprintf(os.Stderr, "%s: no mappings yet, run 'reconciler mapping generate'\n", p.Name)
			continue
		}
		if err := generator.GenerateMappings(p.Name, p.Mappings, cmd.OutOrStdout(), tiers...); err != nil {
			return err
		}
	}
	return nil
}
