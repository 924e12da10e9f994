package month

import (
	"fmt"
	"strings"
)

// Config holds configuration for target month resolution
type Config struct {
	// HeaderRows are the 1-based rows scanned for month headers
	HeaderRows []int `json:"header_rows"`

	// MaxColumns caps how many columns are scanned
	MaxColumns int `json:"max_columns"`

	// NumericProbeRows is how many rows below the headers the numeric fallback inspects
	NumericProbeRows int `json:"numeric_probe_rows"`

	// ActualKeywords mark a header as the current period when no date is found
	ActualKeywords []string `json:"actual_keywords"`
}

// DefaultConfig returns the default resolver configuration
func DefaultConfig() *Config {
	return &Config{
		HeaderRows:       []int{5, 6, 7},
		MaxColumns:       50,
		NumericProbeRows: 20,
		ActualKeywords:   []string{"actual", "current"},
	}
}

// Validate checks the resolver configuration
func (c *Config) Validate() error {
	if len(c.HeaderRows) == 0 {
		return fmt.Errorf("at least one header row is required")
	}
	for _, row := range c.HeaderRows {
		if row < 1 {
			return fmt.Errorf("header row must be positive, got %d", row)
		}
	}
	if c.MaxColumns < 1 {
		return fmt.Errorf("max columns must be positive, got %d", c.MaxColumns)
	}
	if c.NumericProbeRows < 1 {
		return fmt.Errorf("numeric probe rows must be positive, got %d", c.NumericProbeRows)
	}
	for _, kw := range c.ActualKeywords {
		if strings.TrimSpace(kw) == "" {
			return fmt.Errorf("actual keywords cannot be empty")
		}
	}
	return nil
}

func (c *Config) lastHeaderRow() int {
	last := 0
	for _, row := range c.HeaderRows {
		if row > last {
			last = row
		}
	}
	return last
}
