package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"rolling-pnl-reconciler/cmd/reconciler/config"
	"rolling-pnl-reconciler/internal/project"
	"rolling-pnl-reconciler/internal/reconciler"
	"rolling-pnl-reconciler/internal/reporter"
	"rolling-pnl-reconciler/internal/sheet"
)

// Flags for the reconcile command
var (
	outputFile    string
	reportFile    string
	outputFormat  string
	targetColumn  string
	dryRun        bool
	showProgress  bool
	continueOnErr bool
)

// reconcileCmd represents the reconcile command
var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Write the current month of each project into the rolling P&L",
	Long: `Reconcile runs every selected project in order: it resolves the target
month column of the source sheet, refreshes the account mappings, sums the
source amounts per rolling account and accumulates them into the matching
month column of the rolling sheet. The rolling workbook itself is never
modified; results go to --output, the project's output_file, or
<rolling>_reconciled.xlsx. Projects sharing an output workbook are chained.

Projects come from a TOML manifest, or a single project can be described
with the --source-file/--rolling-file flags.

Examples:
  # Preview every project of a manifest without writing
  reconciler reconcile --manifest projects.toml --dry-run

  # One project into an explicit output workbook
  reconciler reconcile --manifest projects.toml --project Ops --output june.xlsx

  # Force the source month column and report as JSON
  reconciler reconcile --manifest projects.toml --target-column Q --output-format json

  # Without a manifest
  reconciler reconcile --source-file pnl.xlsx --source-sheet Ops \
    --rolling-file rolling.xlsx --rolling-sheet "Rolling P&L"`,

	PreRunE: validateReconcileFlags,
	RunE:    runReconcile,
}

func init() {
	rootCmd.AddCommand(reconcileCmd)

	addProjectFlags(reconcileCmd)

	// Output flags
	reconcileCmd.Flags().StringVarP(&outputFile, "output", "o", "", "output workbook (overrides every project)")
	reconcileCmd.Flags().StringVarP(&outputFormat, "output-format", "f", "console", "report format: console, json, csv")
	reconcileCmd.Flags().StringVar(&reportFile, "report-file", "", "write the report to this file (default: stdout)")

	// Behaviour flags
	reconcileCmd.Flags().StringVar(&targetColumn, "target-column", "", "use this source column (letters) as the target month")
	reconcileCmd.Flags().BoolVar(&dryRun, "dry-run", false, "compute and preview without writing a workbook")
	reconcileCmd.Flags().BoolVar(&showProgress, "progress", false, "show progress indicators")
	reconcileCmd.Flags().BoolVar(&continueOnErr, "continue-on-error", false, "keep going when a project fails")

	bindReconcileFlags()
}

// bindReconcileFlags binds the reconcile flags to viper
func bindReconcileFlags() {
	viper.BindPFlag("output", reconcileCmd.Flags().Lookup("output"))
	viper.BindPFlag(config.KeyOutputFormat, reconcileCmd.Flags().Lookup("output-format"))
	viper.BindPFlag("report-file", reconcileCmd.Flags().Lookup("report-file"))
	viper.BindPFlag("target-column", reconcileCmd.Flags().Lookup("target-column"))
	viper.BindPFlag("dry-run", reconcileCmd.Flags().Lookup("dry-run"))
	viper.BindPFlag("progress", reconcileCmd.Flags().Lookup("progress"))
	viper.BindPFlag(config.KeyContinueOnError, reconcileCmd.Flags().Lookup("continue-on-error"))
}

func validateReconcileFlags(cmd *cobra.Command, args []string) error {
	// Get values from viper (allows override from config file)
	outputFile = viper.GetString("output")
	outputFormat = viper.GetString(config.KeyOutputFormat)
	reportFile = viper.GetString("report-file")
	targetColumn = viper.GetString("target-column")
	dryRun = viper.GetBool("dry-run")
	showProgress = viper.GetBool("progress")

	if err := validateProjectFlags(); err != nil {
		return err
	}

	if err := validateOutputFormat(outputFormat); err != nil {
		return err
	}

	if targetColumn != "" {
		if _, err := sheet.ColumnLettersToNumber(targetColumn); err != nil {
			return fmt.Errorf("invalid target column '%s': %w", targetColumn, err)
		}
	}

	for _, path := range []string{outputFile, reportFile} {
		if err := validateOutputDir(path); err != nil {
			return err
		}
	}

	return nil
}

func validateOutputFormat(format string) error {
	if !reporter.OutputFormat(format).IsValid() {
		return fmt.Errorf("invalid output format '%s'. Valid formats: console, json, csv", format)
	}
	return nil
}

func validateOutputDir(path string) error {
	if path == "" {
		return nil
	}
	dir := filepath.Dir(path)
	if dir != "." {
		if _, err := os.Stat(dir); os.IsNotExist(err) {
			return fmt.Errorf("output directory does not exist: %s", dir)
		}
	}
	return nil
}

func validateFileExists(filePath, description string) error {
	if filePath == "" {
		return fmt.Errorf("%s path cannot be empty", description)
	}

	info, err := os.Stat(filePath)
	if os.IsNotExist(err) {
		return fmt.Errorf("%s does not exist: %s", description, filePath)
	}
	if err != nil {
		return fmt.Errorf("error accessing %s: %w", description, err)
	}

	if info.IsDir() {
		return fmt.Errorf("%s is a directory, expected a file: %s", description, filePath)
	}

	file, err := os.Open(filePath)
	if err != nil {
		return fmt.Errorf("%s is not readable: %w", description, err)
	}
	file.Close()

	return nil
}

// newService builds the reconciliation service from the current settings
func newService(format string) (*reconciler.Service, *reporter.ReportConfig, error) {
	reconcilerConfig, err := config.CreateReconcilerConfig()
	if err != nil {
		return nil, nil, err
	}
	reportConfig := config.CreateReportConfig(format)
	if err := config.ValidateConfig(reconcilerConfig, reportConfig); err != nil {
		return nil, nil, err
	}

	service, err := reconciler.NewService(reconcilerConfig)
	if err != nil {
		return nil, nil, err
	}
	return service, reportConfig, nil
}

// openReport returns the report destination and a function closing it
func openReport(cmd *cobra.Command, path string) (io.Writer, func(), error) {
	if path == "" {
		return cmd.OutOrStdout(), func() {}, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create report file: %w", err)
	}
	return f, func() { f.Close() }, nil
}

func runReconcile(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m, projects, err := loadProjects(cmd)
	if err != nil {
		return err
	}

	service, reportConfig, err := newService(outputFormat)
	if err != nil {
		return err
	}

	if showProgress {
		service.AddProgressCallback(func(progress *reconciler.Progress) {
			fmt.Fprintf(os.Stderr, "\r[%d/%d] %s: %s (%.1f%% complete)   ",
				progress.CompletedSteps, progress.TotalSteps,
				progress.Project, progress.CurrentStep, progress.PercentComplete)
		})
	}

	if viper.GetBool("verbose") {
		fmt.Fprintf(os.Stderr, "Reconciling %d project(s)", len(projects))
		if dryRun {
			fmt.Fprintf(os.Stderr, " (dry run)")
		}
		fmt.Fprintln(os.Stderr)
	}

	result, runErr := service.Run(ctx, &reconciler.Request{
		Manifest:     m,
		Projects:     projects,
		OutputFile:   outputFile,
		TargetColumn: targetColumn,
		DryRun:       dryRun,
	})
	if showProgress {
		fmt.Fprintln(os.Stderr)
	}
	if result == nil {
		return runErr
	}

	// Workflow state is kept in the manifest between runs
	if m != nil && manifestFile != "" && !dryRun {
		if err := project.Save(manifestFile, m); err != nil {
			return err
		}
	}

	out, closeReport, err := openReport(cmd, reportFile)
	if err != nil {
		return err
	}
	defer closeReport()

	generator, err := reporter.NewSafeReportGenerator(reportConfig, nil)
	if err != nil {
		return err
	}
	if err := generator.GenerateReportSafely(result, out); err != nil {
		return err
	}

	if viper.GetBool("verbose") && result.Summary != nil {
		fmt.Fprintf(os.Stderr, "Reconciled %d of %d project(s), %d cells written in %v\n",
			result.Summary.Succeeded, result.Summary.Projects, result.Summary.CellsWritten, result.Summary.Duration)
	}

	return runErr
}
