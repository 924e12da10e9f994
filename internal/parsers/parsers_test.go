package parsers

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestParseAmount(t *testing.T) {
	tests := []struct {
		input    string
		expected string
		wantErr  bool
	}{
		{"1234.56", "1234.56", false},
		{"$1,234.56", "1234.56", false},
		{"(123)", "-123", false},
		{"($1,000.50)", "-1000.5", false},
		{"-42", "-42", false},
		{"  7 ", "7", false},
		{"", "", true},
		{"n/a", "", true},
		{"()", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseAmount(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseAmount(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if !got.Equal(decimal.RequireFromString(tt.expected)) {
				t.Errorf("Expected %s, got %s", tt.expected, got)
			}
		})
	}
}

func TestIsPurelyNumeric(t *testing.T) {
	tests := []struct {
		input    string
		expected bool
	}{
		{"1234", true},
		{"$1,234.56", true},
		{"(500)", true},
		{"-3.5", true},
		{"", false},
		{"Rent", false},
		{"7350 Domain / Website", false},
		{"NaN", false},
		{"4000 - Sales", false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := IsPurelyNumeric(tt.input); got != tt.expected {
				t.Errorf("IsPurelyNumeric(%q) = %v, expected %v", tt.input, got, tt.expected)
			}
		})
	}
}

func TestExtractPeriod(t *testing.T) {
	tests := []struct {
		input    string
		expected Period
		found    bool
	}{
		{"Jun 2025 Actual", Period{2025, 6}, true},
		{"June 2025", Period{2025, 6}, true},
		{"Sept 2024", Period{2024, 9}, true},
		{"dec-2023", Period{2023, 12}, true},
		{"06/2025", Period{2025, 6}, true},
		{"6/2025", Period{2025, 6}, true},
		{"6/30/2025", Period{2025, 6}, true},
		{"2025-06", Period{2025, 6}, true},
		{"FY 2024", Period{2024, 0}, true},
		{"Marketing", Period{}, false},
		{"Budget", Period{}, false},
		{"", Period{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, ok := ExtractPeriod(tt.input)
			if ok != tt.found {
				t.Fatalf("ExtractPeriod(%q) found = %v, expected %v", tt.input, ok, tt.found)
			}
			if got != tt.expected {
				t.Errorf("Expected %v, got %v", tt.expected, got)
			}
		})
	}
}

func TestParseMonthLabel(t *testing.T) {
	tests := []struct {
		input    string
		expected Period
		wantErr  bool
	}{
		{"6/2025", Period{2025, 6}, false},
		{"06/2025", Period{2025, 6}, false},
		{"Jun 2025", Period{2025, 6}, false},
		{"Jun 2025 Actual", Period{2025, 6}, false},
		{"June 2025 actual", Period{2025, 6}, false},
		{"jun-2025", Period{2025, 6}, false},
		{"Jun-25", Period{2025, 6}, false},
		{"2025-06", Period{2025, 6}, false},
		{"6/1/25", Period{2025, 6}, false},
		{"Sept 2025", Period{2025, 9}, false},
		{"SEPT-2025 Actual", Period{2025, 9}, false},
		{"Sept-25", Period{2025, 9}, false},
		{"September 2025", Period{2025, 9}, false},
		{"Septa 2025", Period{}, true},
		{"Actual", Period{}, true},
		{"Budget", Period{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseMonthLabel(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseMonthLabel(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if got != tt.expected {
				t.Errorf("Expected %v, got %v", tt.expected, got)
			}
		})
	}
}

func TestPeriodCompare(t *testing.T) {
	jun := Period{2025, 6}
	may := Period{2025, 5}
	year := Period{2025, 0}
	prev := Period{2024, 12}

	if !jun.After(may) || may.After(jun) {
		t.Error("Expected Jun 2025 after May 2025")
	}
	if !may.After(year) {
		t.Error("Expected a month to sort after its bare year")
	}
	if !year.After(prev) {
		t.Error("Expected 2025 after Dec 2024")
	}
	if jun.Compare(Period{2025, 6}) != 0 {
		t.Error("Expected equal periods to compare 0")
	}
	if jun.String() != "2025-06" || year.String() != "2025" {
		t.Errorf("Unexpected strings %s and %s", jun, year)
	}
	if PeriodOf(time.Date(2025, time.June, 30, 0, 0, 0, 0, time.UTC)) != jun {
		t.Error("Expected PeriodOf to return Jun 2025")
	}
}
