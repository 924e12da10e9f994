package parsers

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Period is a reporting month. Month is 0 when only the year is known.
type Period struct {
	Year  int `json:"year"`
	Month int `json:"month"`
}

// Compare orders periods chronologically. A year-only period sorts before
// every month of that year.
func (p Period) Compare(other Period) int {
	switch {
	case p.Year != other.Year:
		if p.Year < other.Year {
			return -1
		}
		return 1
	case p.Month != other.Month:
		if p.Month < other.Month {
			return -1
		}
		return 1
	}
	return 0
}

// After reports whether p is later than other
func (p Period) After(other Period) bool {
	return p.Compare(other) > 0
}

// IsZero reports whether the period is unset
func (p Period) IsZero() bool {
	return p.Year == 0 && p.Month == 0
}

// String returns "YYYY-MM", or "YYYY" for a year-only period
func (p Period) String() string {
	if p.Month == 0 {
		return strconv.Itoa(p.Year)
	}
	return fmt.Sprintf("%04d-%02d", p.Year, p.Month)
}

// PeriodOf returns the period containing t
func PeriodOf(t time.Time) Period {
	return Period{Year: t.Year(), Month: int(t.Month())}
}

var monthNumbers = map[string]int{
	"jan": 1, "feb": 2, "mar": 3, "apr": 4, "may": 5, "jun": 6,
	"jul": 7, "aug": 8, "sep": 9, "oct": 10, "nov": 11, "dec": 12,
}

var (
	monthNameYearPattern = regexp.MustCompile(`(?i)\b(jan(?:uary)?|feb(?:ruary)?|mar(?:ch)?|apr(?:il)?|may|june?|july?|aug(?:ust)?|sep(?:t(?:ember)?)?|oct(?:ober)?|nov(?:ember)?|dec(?:ember)?)[\s\-/.,']*(\d{4})\b`)
	fullDatePattern      = regexp.MustCompile(`\b(\d{1,2})/(\d{1,2})/(\d{4})\b`)
	monthSlashYear       = regexp.MustCompile(`\b(0?[1-9]|1[0-2])/(\d{4})\b`)
	yearDashMonth        = regexp.MustCompile(`\b(\d{4})-(0?[1-9]|1[0-2])\b`)
	bareYearPattern      = regexp.MustCompile(`\b((?:19|20)\d{2})\b`)
)

// ExtractPeriod finds a month/year inside header text such as "Jun 2025 Actual",
// "06/2025", "2025-06" or a bare "2025". Patterns are tried from most to least
// specific and the first hit wins.
func ExtractPeriod(text string) (Period, bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Period{}, false
	}

	if m := monthNameYearPattern.FindStringSubmatch(text); m != nil {
		year, _ := strconv.Atoi(m[2])
		return Period{Year: year, Month: monthNumbers[strings.ToLower(m[1][:3])]}, true
	}
	if m := fullDatePattern.FindStringSubmatch(text); m != nil {
		month, _ := strconv.Atoi(m[1])
		year, _ := strconv.Atoi(m[3])
		if month >= 1 && month <= 12 {
			return Period{Year: year, Month: month}, true
		}
	}
	if m := monthSlashYear.FindStringSubmatch(text); m != nil {
		month, _ := strconv.Atoi(m[1])
		year, _ := strconv.Atoi(m[2])
		return Period{Year: year, Month: month}, true
	}
	if m := yearDashMonth.FindStringSubmatch(text); m != nil {
		year, _ := strconv.Atoi(m[1])
		month, _ := strconv.Atoi(m[2])
		return Period{Year: year, Month: month}, true
	}
	if m := bareYearPattern.FindStringSubmatch(text); m != nil {
		year, _ := strconv.Atoi(m[1])
		return Period{Year: year}, true
	}

	return Period{}, false
}

// monthLabelLayouts are the header spellings accepted for a whole label.
var monthLabelLayouts = []string{
	"1/2006",
	"01/2006",
	"January 2006",
	"Jan 2006",
	"Jan-2006",
	"January-2006",
	"Jan-06",
	"2006-01",
	"1/2/2006",
	"1/2/06",
	"2006-01-02",
}

var (
	trailingActual = regexp.MustCompile(`(?i)[\s\-]*\bactuals?\s*$`)
	septAbbrev     = regexp.MustCompile(`(?i)\bsept\b`)
)

// ParseMonthLabel parses a complete month header, ignoring a trailing "Actual".
func ParseMonthLabel(label string) (Period, error) {
	s := strings.TrimSpace(trailingActual.ReplaceAllString(strings.TrimSpace(label), ""))
	if s == "" {
		return Period{}, fmt.Errorf("month label cannot be empty")
	}
	// time only knows the three letter "Sep"
	s = septAbbrev.ReplaceAllString(s, "Sep")

	var lastErr error
	for _, layout := range monthLabelLayouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			return PeriodOf(t), nil
		}
		lastErr = err
	}

	return Period{}, fmt.Errorf("unable to parse month label '%s': %w", label, lastErr)
}
