package cmd

import (
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"syscall"

	"github.com/spf13/viper"

	"rolling-pnl-reconciler/pkg/errors"
	"rolling-pnl-reconciler/pkg/logger"
)

// CLIErrorHandler provides user-friendly error handling for CLI operations
type CLIErrorHandler struct {
	logger  logger.Logger
	verbose bool
	out     io.Writer
}

// NewCLIErrorHandler creates a new CLI error handler writing to stderr
func NewCLIErrorHandler() *CLIErrorHandler {
	return &CLIErrorHandler{
		logger:  logger.GetGlobalLogger().WithComponent("cli"),
		verbose: viper.GetBool("verbose"),
		out:     os.Stderr,
	}
}

// HandleError prints err for the user and returns the process exit code
func (h *CLIErrorHandler) HandleError(err error) int {
	if err == nil {
		return 0
	}

	h.logger.WithError(err).Debug("Command failed")

	var summary *errors.ErrorSummary
	if stderrors.As(err, &summary) {
		return h.handleErrorSummary(summary)
	}

	if reconcilerErr, ok := errors.AsReconcilerError(err); ok {
		return h.handleReconcilerError(reconcilerErr)
	}

	return h.handleGenericError(err)
}

func (h *CLIErrorHandler) handleErrorSummary(summary *errors.ErrorSummary) int {
	errs := make([]error, len(summary.Errors))
	for i, e := range summary.Errors {
		errs[i] = e
	}
	fmt.Fprintln(h.out, FormatValidationErrors(errs))

	for _, e := range summary.Errors {
		if e.Suggestion != "" {
			fmt.Fprintf(h.out, "\nSuggestion (%s): %s\n", e.Code, e.Suggestion)
		}
	}
	return summary.GetExitCode()
}

func (h *CLIErrorHandler) handleReconcilerError(err *errors.ReconcilerError) int {
	fmt.Fprintf(h.out, "Error: %s\n", err.Message)

	if len(err.Context) > 0 {
		keys := make([]string, 0, len(err.Context))
		for key := range err.Context {
			keys = append(keys, key)
		}
		sort.Strings(keys)

		fmt.Fprintf(h.out, "\nContext:\n")
		for _, key := range keys {
			fmt.Fprintf(h.out, "  %s: %v\n", key, err.Context[key])
		}
	}

	if err.Suggestion != "" {
		fmt.Fprintf(h.out, "\nSuggestion: %s\n", err.Suggestion)
	}

	fmt.Fprintf(h.out, "\n%s\n", h.getCategoryHelp(err.Category))

	if h.verbose && err.Cause != nil {
		fmt.Fprintf(h.out, "\nUnderlying error: %v\n", err.Cause)
		SuggestRecoveryActions(h.out, err.Category)
	}

	return err.GetExitCode()
}

func (h *CLIErrorHandler) handleGenericError(err error) int {
	var pathErr *os.PathError
	if stderrors.As(err, &pathErr) {
		fmt.Fprint(h.out, FormatFileError(pathErr.Path, pathErr.Err))
		return 2
	}

	if h.isFileNotFoundError(err) {
		fmt.Fprintf(h.out, "Error: File not found\n")
		fmt.Fprintf(h.out, "Suggestion: Check if the file path is correct and the file exists\n")
		return 2
	}

	if h.isPermissionError(err) {
		fmt.Fprintf(h.out, "Error: Permission denied\n")
		fmt.Fprintf(h.out, "Suggestion: Check file permissions and ensure you have read access\n")
		return 2
	}

	if h.isDiskFullError(err) {
		fmt.Fprintf(h.out, "Error: Insufficient disk space\n")
		fmt.Fprintf(h.out, "Suggestion: Free up disk space and try again\n")
		return 2
	}

	fmt.Fprintf(h.out, "Error: %v\n", err)
	if !h.verbose {
		fmt.Fprintf(h.out, "\nRun with --verbose for more details\n")
	}

	return 1
}

// getCategoryHelp returns category-specific help text
func (h *CLIErrorHandler) getCategoryHelp(category errors.ErrorCategory) string {
	switch category {
	case errors.CategoryFile:
		return `File error help:
• Check that the workbook exists and is an .xlsx file
• Close the workbook in Excel if it is locked
• Check the sheet name; 'reconciler inspect --file F --sheet S' lists the sheets`

	case errors.CategoryParse:
		return `Parse error help:
• Ranges use A1 notation, e.g. A8:F200
• Amount cells should hold numbers; text amounts are skipped with a diagnostic`

	case errors.CategoryValidation:
		return `Validation error help:
• Check the project entries of the manifest (source_file, rolling_file, rolling_sheet)
• Mapping edits must name source accounts that exist; see 'reconciler mapping show'`

	case errors.CategoryConfiguration:
		return `Configuration error help:
• Check your command-line flags and the --config file
• Matcher thresholds must satisfy low <= medium <= high
• Use 'reconciler <command> --help' to see all available options`

	case errors.CategoryReconciliation:
		return `Reconciliation error help:
• Month headers are read from the rows configured in month.header_rows (default 5-7)
• Use --target-column to pick the source month column by hand
• The rolling sheet needs a header for the same month (e.g. 6/2025) in writer.header_row`

	default:
		return `For more help:
• Use 'reconciler --help' for general help
• Run with --verbose --log-level debug for a full trace`
	}
}

// Error detection helpers

func (h *CLIErrorHandler) isFileNotFoundError(err error) bool {
	return os.IsNotExist(err) || strings.Contains(err.Error(), "no such file or directory")
}

func (h *CLIErrorHandler) isPermissionError(err error) bool {
	return os.IsPermission(err) ||
		strings.Contains(err.Error(), "permission denied") ||
		strings.Contains(err.Error(), "access denied")
}

func (h *CLIErrorHandler) isDiskFullError(err error) bool {
	if stderrors.Is(err, syscall.ENOSPC) {
		return true
	}
	errStr := strings.ToLower(err.Error())
	return strings.Contains(errStr, "no space left") ||
		strings.Contains(errStr, "disk full") ||
		strings.Contains(errStr, "device full")
}

// FormatValidationErrors formats a list of errors in a user-friendly way
func FormatValidationErrors(errs []error) string {
	if len(errs) == 0 {
		return ""
	}

	if len(errs) == 1 {
		return fmt.Sprintf("Error: %v", errs[0])
	}

	var lines []string
	lines = append(lines, fmt.Sprintf("Found %d errors:", len(errs)))

	for i, err := range errs {
		lines = append(lines, fmt.Sprintf("  %d. %v", i+1, err))
		// Limit the number of errors shown
		if i >= 9 && len(errs) > 10 {
			lines = append(lines, fmt.Sprintf("  ... and %d more errors", len(errs)-10))
			break
		}
	}

	return strings.Join(lines, "\n")
}

// FormatFileError formats file-related errors with helpful information
func FormatFileError(filePath string, err error) string {
	baseName := filepath.Base(filePath)
	dir := filepath.Dir(filePath)

	var message strings.Builder
	message.WriteString(fmt.Sprintf("Error with file '%s':\n", baseName))
	message.WriteString(fmt.Sprintf("  Path: %s\n", filePath))
	message.WriteString(fmt.Sprintf("  Error: %v\n", err))

	if os.IsNotExist(err) {
		message.WriteString("  Suggestion: Check if the file exists in the specified location\n")

		// Suggest workbooks with a similar name
		if entries, dirErr := os.ReadDir(dir); dirErr == nil {
			prefix := strings.ToLower(baseName[:min(len(baseName), 3)])
			var similar []string
			for _, entry := range entries {
				if !entry.IsDir() && strings.Contains(strings.ToLower(entry.Name()), prefix) {
					similar = append(similar, entry.Name())
				}
			}
			if len(similar) > 0 {
				message.WriteString("  Similar files found:\n")
				for _, name := range similar[:min(len(similar), 3)] {
					message.WriteString(fmt.Sprintf("    - %s\n", name))
				}
			}
		}
	} else if os.IsPermission(err) {
		message.WriteString("  Suggestion: Check file permissions - you may need read access\n")
	}

	return message.String()
}

// SuggestRecoveryActions prints actions the user can take to recover from errors
func SuggestRecoveryActions(w io.Writer, category errors.ErrorCategory) {
	fmt.Fprintf(w, "\nRecovery suggestions:\n")

	switch category {
	case errors.CategoryFile:
		fmt.Fprintf(w, "• Verify workbook paths and permissions\n")
		fmt.Fprintf(w, "• Re-save the workbook as .xlsx if it was exported from another tool\n")

	case errors.CategoryParse:
		fmt.Fprintf(w, "• Fix the range in the manifest\n")
		fmt.Fprintf(w, "• Check the diagnostics in the report for skipped cells\n")

	case errors.CategoryValidation:
		fmt.Fprintf(w, "• Correct the manifest or mapping file entries\n")
		fmt.Fprintf(w, "• Regenerate mappings with 'reconciler mapping generate'\n")

	case errors.CategoryConfiguration:
		fmt.Fprintf(w, "• Review command-line arguments\n")
		fmt.Fprintf(w, "• Try with default settings first\n")

	case errors.CategoryReconciliation:
		fmt.Fprintf(w, "• Run 'reconciler inspect' on the source sheet\n")
		fmt.Fprintf(w, "• Add the missing month header to the rolling sheet\n")
	}

	fmt.Fprintf(w, "• Run 'reconciler reconcile --dry-run' to preview before writing\n")
}
