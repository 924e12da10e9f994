// Package writer places aggregated amounts into the matching month column of
// a rolling workbook without discarding what the cells already hold.
package writer

import "fmt"

// DefaultFormulaCeiling is the longest formula the writer will produce.
// Excel rejects formulas over 8192 characters.
const DefaultFormulaCeiling = 8000

// Config controls write-back
type Config struct {
	// HeaderRow is the rolling sheet row holding month headers
	HeaderRow int `json:"header_row"`

	// LabelColumn holds rolling account labels; 0 uses the first column of the rolling range
	LabelColumn int `json:"label_column"`

	// FormulaCeiling is the maximum composed formula length
	FormulaCeiling int `json:"formula_ceiling"`
}

// DefaultConfig returns the default writer configuration
func DefaultConfig() *Config {
	return &Config{
		HeaderRow:      1,
		FormulaCeiling: DefaultFormulaCeiling,
	}
}

// Validate checks the writer configuration
func (c *Config) Validate() error {
	if c.HeaderRow < 1 {
		return fmt.Errorf("header row must be positive: %d", c.HeaderRow)
	}
	if c.LabelColumn < 0 {
		return fmt.Errorf("label column cannot be negative: %d", c.LabelColumn)
	}
	if c.FormulaCeiling <= 0 {
		return fmt.Errorf("formula ceiling must be positive: %d", c.FormulaCeiling)
	}
	return nil
}
