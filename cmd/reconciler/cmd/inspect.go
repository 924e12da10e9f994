package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"rolling-pnl-reconciler/cmd/reconciler/config"
	"rolling-pnl-reconciler/internal/models"
	"rolling-pnl-reconciler/internal/reporter"
)

var (
	inspectFile   string
	inspectSheet  string
	inspectRange  string
	inspectFormat string
)

var inspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "Show the target month and labels found in a sheet",
	Long: `Inspect resolves the target month column of one sheet and lists the labels
in the range with their heading/account classification and, when a month was
found, their amount. Nothing is written.

Examples:
  reconciler inspect --file pnl.xlsx --sheet Ops
  reconciler inspect --file pnl.xlsx --sheet Ops --range A1:A300 --output-format json`,
	PreRunE: func(cmd *cobra.Command, args []string) error {
		if err := validateFileExists(inspectFile, "workbook"); err != nil {
			return err
		}
		if inspectSheet == "" {
			return fmt.Errorf("--sheet is required")
		}
		return validateOutputFormat(inspectFormat)
	},
	RunE: runInspect,
}

func init() {
	rootCmd.AddCommand(inspectCmd)

	inspectCmd.Flags().StringVar(&inspectFile, "file", "", "workbook to inspect (required)")
	inspectCmd.Flags().StringVar(&inspectSheet, "sheet", "", "sheet name (required)")
	inspectCmd.Flags().StringVar(&inspectRange, "range", models.DefaultSourceRange, "label range")
	inspectCmd.Flags().StringVarP(&inspectFormat, "output-format", "f", "console", "output format: console, json, csv")

	inspectCmd.MarkFlagRequired("file")
	inspectCmd.MarkFlagRequired("sheet")
}

func runInspect(cmd *cobra.Command, args []string) error {
	service, _, err := newService(inspectFormat)
	if err != nil {
		return err
	}

	ins, err := service.Inspect(inspectFile, inspectSheet, inspectRange)
	if err != nil {
		return err
	}

	generator, err := reporter.NewReportGenerator(config.CreateReportConfig(inspectFormat))
	if err != nil {
		return err
	}
	return generator.GenerateInspection(ins, cmd.OutOrStdout())
}
