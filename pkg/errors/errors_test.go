package errors

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestReconcilerError(t *testing.T) {
	missing := errors.New("open rolling.xlsx: no such file or directory")

	tests := []struct {
		name       string
		err        *ReconcilerError
		expectMsg  string
		expectCode int
		cause      error
	}{
		{
			name:       "missing workbook",
			err:        Wrap(missing, CategoryFile, CodeFileNotFound, "rolling workbook not found"),
			expectMsg:  "rolling workbook not found",
			expectCode: 2,
			cause:      missing,
		},
		{
			name:       "bad range",
			err:        New(CategoryParse, CodeInvalidRange, "invalid range \"8A\""),
			expectMsg:  "invalid range \"8A\"",
			expectCode: 3,
		},
		{
			name:       "with suggestion",
			err:        New(CategoryConfiguration, CodeInvalidConfig, "thresholds out of order").WithSuggestion("keep low <= medium <= high"),
			expectMsg:  "thresholds out of order (suggestion: keep low <= medium <= high)",
			expectCode: 4,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Error() != tt.expectMsg {
				t.Errorf("expected error string %q, got %q", tt.expectMsg, tt.err.Error())
			}
			if tt.err.GetExitCode() != tt.expectCode {
				t.Errorf("expected exit code %d, got %d", tt.expectCode, tt.err.GetExitCode())
			}
			if tt.err.Unwrap() != tt.cause {
				t.Errorf("expected to unwrap to %v, got %v", tt.cause, tt.err.Unwrap())
			}
		})
	}
}

func TestReconcilerErrorWithContext(t *testing.T) {
	err := New(CategoryReconciliation, CodeMatchingColumnNotFound, "no column for Jun 2025").
		WithContext("sheet", "Rolling").
		WithContext("header_row", 1)

	if err.Context["sheet"] != "Rolling" || err.Context["header_row"] != 1 {
		t.Errorf("expected sheet and header_row context, got %v", err.Context)
	}
	if err.Suggestion != "" {
		t.Errorf("expected no suggestion, got %q", err.Suggestion)
	}
}

func TestSpecificErrorConstructors(t *testing.T) {
	t.Run("FileError", func(t *testing.T) {
		cause := errors.New("permission denied")
		err := FileError(CodeFilePermission, "/test/source.xlsx", cause)

		if err.Category != CategoryFile {
			t.Errorf("expected file category, got %s", err.Category)
		}
		if err.Code != CodeFilePermission {
			t.Errorf("expected permission code, got %s", err.Code)
		}
		if err.Context["file_path"] != "/test/source.xlsx" {
			t.Errorf("expected file_path context, got %v", err.Context["file_path"])
		}
		if err.Suggestion == "" {
			t.Error("expected suggestion to be set")
		}
		if err.Cause != cause {
			t.Errorf("expected cause to be %v, got %v", cause, err.Cause)
		}
	})

	t.Run("InvalidRangeError", func(t *testing.T) {
		err := InvalidRangeError("A0:B", nil)

		if err.Category != CategoryParse {
			t.Errorf("expected parse category, got %s", err.Category)
		}
		if err.Context["range"] != "A0:B" {
			t.Errorf("expected range context, got %v", err.Context["range"])
		}
		if !Is(err, ErrInvalidRange) {
			t.Error("expected errors.Is to match ErrInvalidRange")
		}
	})

	t.Run("SheetNotFoundError", func(t *testing.T) {
		err := SheetNotFoundError("book.xlsx", "P&L", []string{"Sheet1", "Rolling"})

		if err.Context["sheet"] != "P&L" {
			t.Errorf("expected sheet context, got %v", err.Context["sheet"])
		}
		if !strings.Contains(err.Suggestion, "Sheet1, Rolling") {
			t.Errorf("expected available sheets in suggestion, got %s", err.Suggestion)
		}
		if !Is(err, ErrSheetNotFound) {
			t.Error("expected errors.Is to match ErrSheetNotFound")
		}
		if Is(err, ErrInvalidRange) {
			t.Error("expected errors.Is not to match ErrInvalidRange")
		}
	})

	t.Run("UnresolvedTargetMonthError", func(t *testing.T) {
		err := UnresolvedTargetMonthError("book.xlsx", "P&L")
		wrapped := fmt.Errorf("resolve: %w", err)

		if !Is(wrapped, ErrUnresolvedTargetMonth) {
			t.Error("expected wrapped error to match ErrUnresolvedTargetMonth")
		}
		if err.GetExitCode() != 5 {
			t.Errorf("expected exit code 5, got %d", err.GetExitCode())
		}
	})

	t.Run("MatchingColumnNotFoundError", func(t *testing.T) {
		err := MatchingColumnNotFoundError("Rolling", "Jun 2025 Actual")

		if err.Context["target_month"] != "Jun 2025 Actual" {
			t.Errorf("expected target_month context, got %v", err.Context["target_month"])
		}
		if !Is(err, ErrMatchingColumnNotFound) {
			t.Error("expected errors.Is to match ErrMatchingColumnNotFound")
		}
	})

	t.Run("ValidationError", func(t *testing.T) {
		err := ValidationError(CodeUnknownLabel, "source", "Rent", nil)

		if err.Category != CategoryValidation {
			t.Errorf("expected validation category, got %s", err.Category)
		}
		if err.Context["field"] != "source" {
			t.Errorf("expected field context, got %v", err.Context["field"])
		}
		if err.Context["value"] != "Rent" {
			t.Errorf("expected value context, got %v", err.Context["value"])
		}
	})
}

func TestErrorSummary(t *testing.T) {
	tests := []struct {
		name       string
		errs       []*ReconcilerError
		expectMsg  string
		expectCode int
	}{
		{
			name:       "empty",
			errs:       nil,
			expectMsg:  "no errors",
			expectCode: 0,
		},
		{
			name:       "single",
			errs:       []*ReconcilerError{SheetNotFoundError("ops.xlsx", "Ops", []string{"Sheet1"})},
			expectMsg:  "sheet \"Ops\" not found in ops.xlsx (suggestion: available sheets: Sheet1)",
			expectCode: 2,
		},
		{
			name: "mixed projects",
			errs: []*ReconcilerError{
				SheetNotFoundError("ops.xlsx", "Ops", nil),
				InvalidRangeError("8A", nil),
				UnresolvedTargetMonthError("sales.xlsx", "Sales"),
			},
			expectMsg:  "3 errors occurred (file: 1, parse: 1, reconciliation: 1)",
			expectCode: 5,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			summary := NewErrorSummary(tt.errs)
			if summary.Total != len(tt.errs) {
				t.Errorf("expected total %d, got %d", len(tt.errs), summary.Total)
			}
			if summary.Error() != tt.expectMsg {
				t.Errorf("expected %q, got %q", tt.expectMsg, summary.Error())
			}
			if summary.GetExitCode() != tt.expectCode {
				t.Errorf("expected exit code %d, got %d", tt.expectCode, summary.GetExitCode())
			}
		})
	}

	summary := NewErrorSummary([]*ReconcilerError{
		InvalidRangeError("8A", nil),
		InvalidRangeError("A0", nil),
	})
	if summary.ByCode[CodeInvalidRange] != 2 || summary.ByCategory[CategoryParse] != 2 {
		t.Errorf("expected two parse errors with code invalid_range, got %v %v", summary.ByCode, summary.ByCategory)
	}
	if !summary.HasCode(CodeInvalidRange) || summary.HasCode(CodeFormulaTooLong) {
		t.Error("expected HasCode to report only invalid_range")
	}
}

func TestErrorHelpers(t *testing.T) {
	re := SheetNotFoundError("rolling.xlsx", "Rolling", nil)
	wrapped := fmt.Errorf("project Ops: %w", re)
	plain := errors.New("disk quota exceeded")

	tests := []struct {
		name      string
		err       error
		isRecErr  bool
		wrapCause error
	}{
		{"reconciler error", re, true, nil},
		{"wrapped reconciler error", wrapped, true, nil},
		{"plain error", plain, false, plain},
		{"nil", nil, false, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if IsReconcilerError(tt.err) != tt.isRecErr {
				t.Errorf("expected IsReconcilerError %v", tt.isRecErr)
			}
			extracted, ok := AsReconcilerError(tt.err)
			if ok != tt.isRecErr || (ok && extracted != re) {
				t.Errorf("expected AsReconcilerError to extract %v, got %v", tt.isRecErr, extracted)
			}

			result := WrapIfNeeded(tt.err, CategoryInternal, CodeUnexpectedError, "project failed")
			switch {
			case tt.err == nil:
				if result != nil {
					t.Error("expected nil for nil input")
				}
			case tt.isRecErr:
				if result != re {
					t.Error("expected the existing ReconcilerError to be returned")
				}
			default:
				if result.Cause != tt.wrapCause || result.Category != CategoryInternal {
					t.Errorf("expected a wrapped internal error, got %+v", result)
				}
			}
		})
	}
}

func TestExitCodes(t *testing.T) {
	tests := []struct {
		category     ErrorCategory
		expectedCode int
	}{
		{CategoryFile, 2},
		{CategoryParse, 3},
		{CategoryValidation, 3},
		{CategoryConfiguration, 4},
		{CategoryReconciliation, 5},
		{CategoryInternal, 5},
		{"unknown", 1},
	}

	for _, tt := range tests {
		t.Run(string(tt.category), func(t *testing.T) {
			err := New(tt.category, "test_code", "test message")
			if err.GetExitCode() != tt.expectedCode {
				t.Errorf("expected exit code %d for category %s, got %d",
					tt.expectedCode, tt.category, err.GetExitCode())
			}
		})
	}
}