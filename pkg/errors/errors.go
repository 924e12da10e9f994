package errors

import (
	stderrors "errors"
	"fmt"
	"sort"
	"strings"

	"github.com/pkg/errors"
)

// ErrorCategory represents different categories of errors
type ErrorCategory string

const (
	CategoryFile           ErrorCategory = "file"
	CategoryParse          ErrorCategory = "parse"
	CategoryValidation     ErrorCategory = "validation"
	CategoryConfiguration  ErrorCategory = "configuration"
	CategoryReconciliation ErrorCategory = "reconciliation"
	CategoryInternal       ErrorCategory = "internal"
)

// ErrorCode represents specific error codes within categories
type ErrorCode string

const (
	// File errors
	CodeFileNotFound   ErrorCode = "file_not_found"
	CodeFilePermission ErrorCode = "file_permission"
	CodeFileCorrupted  ErrorCode = "file_corrupted"
	CodeSheetNotFound  ErrorCode = "sheet_not_found"
	CodeWriteFailed    ErrorCode = "write_failed"

	// Parse errors
	CodeInvalidRange  ErrorCode = "invalid_range"
	CodeInvalidAmount ErrorCode = "invalid_amount"
	CodeInvalidPeriod ErrorCode = "invalid_period"
	CodeInvalidFormat ErrorCode = "invalid_format"

	// Validation errors
	CodeMissingField ErrorCode = "missing_field"
	CodeOutOfRange   ErrorCode = "out_of_range"
	CodeUnknownLabel ErrorCode = "unknown_label"

	// Configuration errors
	CodeInvalidConfig ErrorCode = "invalid_config"
	CodeMissingConfig ErrorCode = "missing_config"

	// Reconciliation errors
	CodeUnresolvedTargetMonth  ErrorCode = "unresolved_target_month"
	CodeMatchingColumnNotFound ErrorCode = "matching_column_not_found"
	CodeFormulaTooLong         ErrorCode = "formula_too_long"
	CodeStaleTargetMonth       ErrorCode = "stale_target_month"
	CodeNothingToAggregate     ErrorCode = "nothing_to_aggregate"

	// Internal errors
	CodeUnexpectedError ErrorCode = "unexpected_error"
)

// Sentinels for errors.Is checks against the spreadsheet-level failures.
var (
	ErrInvalidRange           = stderrors.New("invalid range")
	ErrSheetNotFound          = stderrors.New("sheet not found")
	ErrUnresolvedTargetMonth  = stderrors.New("unresolved target month")
	ErrMatchingColumnNotFound = stderrors.New("matching column not found")
	ErrFormulaTooLong         = stderrors.New("formula too long")
)

// ReconcilerError is the base error type for all application errors
type ReconcilerError struct {
	Category   ErrorCategory     `json:"category"`
	Code       ErrorCode         `json:"code"`
	Message    string            `json:"message"`
	Suggestion string            `json:"suggestion,omitempty"`
	Context    Context           `json:"context,omitempty"`
	Cause      error             `json:"-"`
	StackTrace errors.StackTrace `json:"-"`
}

// Context provides additional information about the error
type Context map[string]interface{}

// Error implements the error interface
func (e *ReconcilerError) Error() string {
	if e.Suggestion != "" {
		return fmt.Sprintf("%s (suggestion: %s)", e.Message, e.Suggestion)
	}
	return e.Message
}

// Unwrap returns the underlying cause error
func (e *ReconcilerError) Unwrap() error {
	return e.Cause
}

// Is lets errors.Is match a ReconcilerError against the package sentinels by code.
func (e *ReconcilerError) Is(target error) bool {
	switch target {
	case ErrInvalidRange:
		return e.Code == CodeInvalidRange
	case ErrSheetNotFound:
		return e.Code == CodeSheetNotFound
	case ErrUnresolvedTargetMonth:
		return e.Code == CodeUnresolvedTargetMonth
	case ErrMatchingColumnNotFound:
		return e.Code == CodeMatchingColumnNotFound
	case ErrFormulaTooLong:
		return e.Code == CodeFormulaTooLong
	}
	return false
}

// GetExitCode returns an appropriate exit code for the error
func (e *ReconcilerError) GetExitCode() int {
	switch e.Category {
	case CategoryFile:
		return 2
	case CategoryParse, CategoryValidation:
		return 3
	case CategoryConfiguration:
		return 4
	case CategoryReconciliation, CategoryInternal:
		return 5
	default:
		return 1
	}
}

// WithContext adds context information to the error
func (e *ReconcilerError) WithContext(key string, value interface{}) *ReconcilerError {
	if e.Context == nil {
		e.Context = make(Context)
	}
	e.Context[key] = value
	return e
}

// WithSuggestion adds a suggestion for fixing the error
func (e *ReconcilerError) WithSuggestion(suggestion string) *ReconcilerError {
	e.Suggestion = suggestion
	return e
}

// New creates a new ReconcilerError
func New(category ErrorCategory, code ErrorCode, message string) *ReconcilerError {
	return &ReconcilerError{
		Category:   category,
		Code:       code,
		Message:    message,
		StackTrace: errors.New("").(stackTracer).StackTrace(),
	}
}

// Wrap wraps an existing error with ReconcilerError context
func Wrap(err error, category ErrorCategory, code ErrorCode, message string) *ReconcilerError {
	if err == nil {
		return nil
	}

	return &ReconcilerError{
		Category:   category,
		Code:       code,
		Message:    message,
		Cause:      err,
		StackTrace: errors.WithStack(err).(stackTracer).StackTrace(),
	}
}

// stackTracer interface for extracting stack traces
type stackTracer interface {
	StackTrace() errors.StackTrace
}

func newOrWrap(err error, category ErrorCategory, code ErrorCode, message string) *ReconcilerError {
	if err != nil {
		return Wrap(err, category, code, message)
	}
	return New(category, code, message)
}

// Specific error constructors

// FileError creates a file-related error
func FileError(code ErrorCode, path string, err error) *ReconcilerError {
	var message string
	var suggestion string

	switch code {
	case CodeFileNotFound:
		message = fmt.Sprintf("file not found: %s", path)
		suggestion = "check if the workbook path is correct and the file exists"
	case CodeFilePermission:
		message = fmt.Sprintf("permission denied accessing file: %s", path)
		suggestion = "check file permissions and ensure you have read access"
	case CodeFileCorrupted:
		message = fmt.Sprintf("workbook could not be opened: %s", path)
		suggestion = "verify the file is a valid .xlsx workbook"
	case CodeWriteFailed:
		message = fmt.Sprintf("failed to save workbook: %s", path)
		suggestion = "ensure the output directory exists and the file is not open in another program"
	default:
		message = fmt.Sprintf("file error: %s", path)
		suggestion = "check the file and try again"
	}

	return newOrWrap(err, CategoryFile, code, message).
		WithSuggestion(suggestion).
		WithContext("file_path", path)
}

// InvalidRangeError reports a range string that is not A1 notation.
func InvalidRangeError(rangeStr string, err error) *ReconcilerError {
	return newOrWrap(err, CategoryParse, CodeInvalidRange,
		fmt.Sprintf("invalid range %q", rangeStr)).
		WithSuggestion("use A1 notation such as A8:F200, A1 or A").
		WithContext("range", rangeStr)
}

// SheetNotFoundError reports a sheet name that is absent from a workbook.
func SheetNotFoundError(path, sheet string, available []string) *ReconcilerError {
	return New(CategoryFile, CodeSheetNotFound,
		fmt.Sprintf("sheet %q not found in %s", sheet, path)).
		WithSuggestion(fmt.Sprintf("available sheets: %s", strings.Join(available, ", "))).
		WithContext("file_path", path).
		WithContext("sheet", sheet)
}

// UnresolvedTargetMonthError reports that no month column could be determined.
func UnresolvedTargetMonthError(path, sheet string) *ReconcilerError {
	return New(CategoryReconciliation, CodeUnresolvedTargetMonth,
		fmt.Sprintf("could not determine the target month column in %s!%s", path, sheet)).
		WithSuggestion("pick the month column manually or add a month header (e.g. 'Jun 2025') in rows 5-7").
		WithContext("file_path", path).
		WithContext("sheet", sheet)
}

// MatchingColumnNotFoundError reports a rolling sheet without a header for the target month.
func MatchingColumnNotFoundError(sheet, label string) *ReconcilerError {
	return New(CategoryReconciliation, CodeMatchingColumnNotFound,
		fmt.Sprintf("no column in rolling sheet %q matches target month %q", sheet, label)).
		WithSuggestion("add a header such as 'MM/YYYY' or 'Mon YYYY' for that month in row 1 of the rolling sheet").
		WithContext("sheet", sheet).
		WithContext("target_month", label)
}

// ValidationError creates a validation-related error
func ValidationError(code ErrorCode, field string, value interface{}, err error) *ReconcilerError {
	var message string
	var suggestion string

	switch code {
	case CodeMissingField:
		message = fmt.Sprintf("required field '%s' is missing or empty", field)
		suggestion = "provide a value for this required field"
	case CodeOutOfRange:
		message = fmt.Sprintf("value out of range in field '%s': %v", field, value)
		suggestion = "ensure the value is within the acceptable range"
	case CodeUnknownLabel:
		message = fmt.Sprintf("unknown account label in field '%s': %v", field, value)
		suggestion = "check the label against the mapping file"
	default:
		message = fmt.Sprintf("validation error in field '%s': %v", field, value)
		suggestion = "check the field value and format"
	}

	return newOrWrap(err, CategoryValidation, code, message).
		WithSuggestion(suggestion).
		WithContext("field", field).
		WithContext("value", value)
}

// ConfigurationError creates a configuration-related error
func ConfigurationError(code ErrorCode, setting string, value interface{}, err error) *ReconcilerError {
	var message string
	var suggestion string

	switch code {
	case CodeInvalidConfig:
		message = fmt.Sprintf("invalid configuration for '%s': %v", setting, value)
		suggestion = "check the configuration documentation for valid values"
	case CodeMissingConfig:
		message = fmt.Sprintf("missing required configuration: %s", setting)
		suggestion = "provide this configuration setting or use a config file"
	default:
		message = fmt.Sprintf("configuration error: %s", setting)
		suggestion = "check your configuration and try again"
	}

	return newOrWrap(err, CategoryConfiguration, code, message).
		WithSuggestion(suggestion).
		WithContext("setting", setting).
		WithContext("value", value)
}

// ReconciliationError creates a reconciliation-related error
func ReconciliationError(code ErrorCode, operation string, err error) *ReconcilerError {
	var message string
	var suggestion string

	switch code {
	case CodeStaleTargetMonth:
		message = fmt.Sprintf("cached target month is no longer valid during %s", operation)
		suggestion = "re-resolve the target month after the source file changed"
	case CodeNothingToAggregate:
		message = fmt.Sprintf("no mapped amounts to write during %s", operation)
		suggestion = "generate mappings and map at least one account"
	default:
		message = fmt.Sprintf("reconciliation error during %s", operation)
		suggestion = "review the data and configuration"
	}

	return newOrWrap(err, CategoryReconciliation, code, message).
		WithSuggestion(suggestion).
		WithContext("operation", operation)
}

// InternalError creates an internal error
func InternalError(code ErrorCode, operation string, err error) *ReconcilerError {
	return newOrWrap(err, CategoryInternal, code,
		fmt.Sprintf("unexpected error during %s", operation)).
		WithSuggestion("this is likely a bug - please report it with the error details").
		WithContext("operation", operation)
}

// Utility functions

// AsReconcilerError extracts a ReconcilerError from an error chain
func AsReconcilerError(err error) (*ReconcilerError, bool) {
	var reconcilerErr *ReconcilerError
	if errors.As(err, &reconcilerErr) {
		return reconcilerErr, true
	}
	return nil, false
}

// WrapIfNeeded wraps an error if it's not already a ReconcilerError
func WrapIfNeeded(err error, category ErrorCategory, code ErrorCode, message string) *ReconcilerError {
	if err == nil {
		return nil
	}

	if reconcilerErr, ok := AsReconcilerError(err); ok {
		return reconcilerErr
	}

	return Wrap(err, category, code, message)
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return stderrors.Is(err, target)
}

// IsReconcilerError checks if an error is a ReconcilerError
func IsReconcilerError(err error) bool {
	_, ok := AsReconcilerError(err)
	return ok
}

// ErrorSummary provides a summary of multiple errors
type ErrorSummary struct {
	Total      int                   `json:"total"`
	ByCategory map[ErrorCategory]int `json:"by_category"`
	ByCode     map[ErrorCode]int     `json:"by_code"`
	Errors     []*ReconcilerError    `json:"errors"`
}

// NewErrorSummary creates a new error summary
func NewErrorSummary(errs []*ReconcilerError) *ErrorSummary {
	summary := &ErrorSummary{
		Total:      len(errs),
		ByCategory: make(map[ErrorCategory]int),
		ByCode:     make(map[ErrorCode]int),
		Errors:     errs,
	}
	for _, err := range errs {
		summary.ByCategory[err.Category]++
		summary.ByCode[err.Code]++
	}
	return summary
}

// Error returns a formatted error message for the summary
func (es *ErrorSummary) Error() string {
	switch es.Total {
	case 0:
		return "no errors"
	case 1:
		return es.Errors[0].Error()
	}

	categories := make([]string, 0, len(es.ByCategory))
	for category, count := range es.ByCategory {
		categories = append(categories, fmt.Sprintf("%s: %d", category, count))
	}
	sort.Strings(categories)

	return fmt.Sprintf("%d errors occurred (%s)", es.Total, strings.Join(categories, ", "))
}

// HasCode checks if the summary contains errors with the given code
func (es *ErrorSummary) HasCode(code ErrorCode) bool {
	return es.ByCode[code] > 0
}

// GetExitCode returns the highest exit code from all errors
func (es *ErrorSummary) GetExitCode() int {
	exitCode := 0
	for _, err := range es.Errors {
		if code := err.GetExitCode(); code > exitCode {
			exitCode = code
		}
	}
	return exitCode
}
