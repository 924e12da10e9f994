// Package config builds component configurations from viper settings. Every
// builder starts from the component defaults and overrides only the keys that
// were set by a flag, the config file or a RECONCILER_ environment variable.
package config

import (
	"fmt"

	"github.com/spf13/viper"

	"rolling-pnl-reconciler/internal/aggregate"
	"rolling-pnl-reconciler/internal/classifier"
	"rolling-pnl-reconciler/internal/mapping"
	"rolling-pnl-reconciler/internal/matcher"
	"rolling-pnl-reconciler/internal/month"
	"rolling-pnl-reconciler/internal/reconciler"
	"rolling-pnl-reconciler/internal/reporter"
	"rolling-pnl-reconciler/internal/sheet"
	"rolling-pnl-reconciler/internal/writer"
)

// Setting keys, as written in a config file
const (
	KeySheetCache          = "sheet.cache"
	KeySheetMaxScanCells   = "sheet.max_formula_scan_cells"
	KeyMonthHeaderRows     = "month.header_rows"
	KeyMonthMaxColumns     = "month.max_columns"
	KeyMonthProbeRows      = "month.numeric_probe_rows"
	KeyMonthActualKeywords = "month.actual_keywords"
	KeyHeadingKeywords     = "classifier.heading_keywords"
	KeyCategoryTerms       = "classifier.category_terms"
	KeyMatcherAlgorithm    = "matcher.algorithm"
	KeyMatcherHigh         = "matcher.high_threshold"
	KeyMatcherMedium       = "matcher.medium_threshold"
	KeyMatcherLow          = "matcher.low_threshold"
	KeyMatcherCache        = "matcher.cache"
	KeySkipHeadings        = "mapping.skip_headings"
	KeyDiagnosticLimit     = "aggregate.diagnostic_limit"
	KeyWriterHeaderRow     = "writer.header_row"
	KeyWriterLabelColumn   = "writer.label_column"
	KeyFormulaCeiling      = "writer.formula_ceiling"
	KeySaveMappings        = "save_mappings"
	KeyContinueOnError     = "continue_on_error"
	KeyOutputFormat        = "output-format"
	KeyReportMappings      = "report.include_mappings"
	KeyReportMonthly       = "report.include_monthly"
	KeyReportPreview       = "report.include_preview"
	KeyReportDiagnostics   = "report.include_diagnostics"
	KeyReportMaxItems      = "report.max_list_items"
	KeyReportSortByAmount  = "report.sort_by_amount"
)

// CreateSheetConfig creates the workbook reader configuration
func CreateSheetConfig() *sheet.ReaderConfig {
	config := sheet.DefaultReaderConfig()

	if viper.IsSet(KeySheetCache) {
		config.CacheEnabled = viper.GetBool(KeySheetCache)
	}
	if viper.IsSet(KeySheetMaxScanCells) {
		config.MaxFormulaScanCells = viper.GetInt(KeySheetMaxScanCells)
	}

	return config
}

// CreateMonthConfig creates the target month resolver configuration
func CreateMonthConfig() *month.Config {
	config := month.DefaultConfig()

	if viper.IsSet(KeyMonthHeaderRows) {
		config.HeaderRows = viper.GetIntSlice(KeyMonthHeaderRows)
	}
	if viper.IsSet(KeyMonthMaxColumns) {
		config.MaxColumns = viper.GetInt(KeyMonthMaxColumns)
	}
	if viper.IsSet(KeyMonthProbeRows) {
		config.NumericProbeRows = viper.GetInt(KeyMonthProbeRows)
	}
	if viper.IsSet(KeyMonthActualKeywords) {
		config.ActualKeywords = viper.GetStringSlice(KeyMonthActualKeywords)
	}

	return config
}

// CreateClassifierConfig creates the heading classifier vocabulary
func CreateClassifierConfig() *classifier.Config {
	config := classifier.DefaultConfig()

	if viper.IsSet(KeyHeadingKeywords) {
		config.HeadingKeywords = viper.GetStringSlice(KeyHeadingKeywords)
	}
	if viper.IsSet(KeyCategoryTerms) {
		config.CategoryTerms = viper.GetStringSlice(KeyCategoryTerms)
	}

	return config
}

// CreateMatcherConfig creates a matching configuration with the configured
// algorithm and confidence thresholds
func CreateMatcherConfig() (*matcher.MatchingConfig, error) {
	config := matcher.DefaultMatchingConfig()

	if viper.IsSet(KeyMatcherAlgorithm) {
		algorithm, err := matcher.ParseAlgorithm(viper.GetString(KeyMatcherAlgorithm))
		if err != nil {
			return nil, err
		}
		config.Algorithm = algorithm
	}
	if viper.IsSet(KeyMatcherHigh) {
		config.HighThreshold = viper.GetFloat64(KeyMatcherHigh)
	}
	if viper.IsSet(KeyMatcherMedium) {
		config.MediumThreshold = viper.GetFloat64(KeyMatcherMedium)
	}
	if viper.IsSet(KeyMatcherLow) {
		config.LowThreshold = viper.GetFloat64(KeyMatcherLow)
	}
	if viper.IsSet(KeyMatcherCache) {
		config.CacheEnabled = viper.GetBool(KeyMatcherCache)
	}

	return config, nil
}

// CreateMappingConfig creates the mapping engine configuration
func CreateMappingConfig() *mapping.Config {
	config := mapping.DefaultConfig()

	if viper.IsSet(KeySkipHeadings) {
		config.SkipHeadings = viper.GetBool(KeySkipHeadings)
	}

	return config
}

// CreateAggregateConfig creates the amount extraction configuration
func CreateAggregateConfig() *aggregate.Config {
	config := aggregate.DefaultConfig()

	if viper.IsSet(KeyDiagnosticLimit) {
		config.DiagnosticLimit = viper.GetInt(KeyDiagnosticLimit)
	}

	return config
}

// CreateWriterConfig creates the rolling sheet writer configuration
func CreateWriterConfig() *writer.Config {
	config := writer.DefaultConfig()

	if viper.IsSet(KeyWriterHeaderRow) {
		config.HeaderRow = viper.GetInt(KeyWriterHeaderRow)
	}
	if viper.IsSet(KeyWriterLabelColumn) {
		config.LabelColumn = viper.GetInt(KeyWriterLabelColumn)
	}
	if viper.IsSet(KeyFormulaCeiling) {
		config.FormulaCeiling = viper.GetInt(KeyFormulaCeiling)
	}

	return config
}

// CreateReconcilerConfig assembles the service configuration from every
// component builder
func CreateReconcilerConfig() (*reconciler.Config, error) {
	matching, err := CreateMatcherConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to create matcher config: %w", err)
	}

	config := reconciler.DefaultConfig()
	config.Reader = CreateSheetConfig()
	config.Month = CreateMonthConfig()
	config.Classifier = CreateClassifierConfig()
	config.Matching = matching
	config.Mapping = CreateMappingConfig()
	config.Aggregate = CreateAggregateConfig()
	config.Writer = CreateWriterConfig()

	if viper.IsSet(KeySaveMappings) {
		config.SaveMappings = viper.GetBool(KeySaveMappings)
	}
	if viper.IsSet(KeyContinueOnError) {
		config.ContinueOnError = viper.GetBool(KeyContinueOnError)
	}

	return config, nil
}

// CreateReportConfig creates a report configuration for the specified output format
func CreateReportConfig(format string) *reporter.ReportConfig {
	config := reporter.DefaultReportConfig()

	switch format {
	case "json":
		config.Format = reporter.FormatJSON
		config.IncludeMonthly = true
	case "csv":
		config.Format = reporter.FormatCSV
		config.CSVHeaders = true
		config.CSVDelimiter = ','
	default:
		config.Format = reporter.OutputFormat(format)
	}

	if viper.IsSet(KeyReportMappings) {
		config.IncludeMappings = viper.GetBool(KeyReportMappings)
	}
	if viper.IsSet(KeyReportMonthly) {
		config.IncludeMonthly = viper.GetBool(KeyReportMonthly)
	}
	if viper.IsSet(KeyReportPreview) {
		config.IncludePreview = viper.GetBool(KeyReportPreview)
	}
	if viper.IsSet(KeyReportDiagnostics) {
		config.IncludeDiagnostics = viper.GetBool(KeyReportDiagnostics)
	}
	if viper.IsSet(KeyReportMaxItems) {
		config.MaxListItems = viper.GetInt(KeyReportMaxItems)
	}
	if viper.IsSet(KeyReportSortByAmount) {
		config.SortByAmount = viper.GetBool(KeyReportSortByAmount)
	}

	return config
}

// ValidateConfig validates that all required configurations are valid
func ValidateConfig(reconcilerConfig *reconciler.Config, reportConfig *reporter.ReportConfig) error {
	if err := reconcilerConfig.Validate(); err != nil {
		return fmt.Errorf("invalid reconciler config: %w", err)
	}

	if err := reportConfig.Validate(); err != nil {
		return fmt.Errorf("invalid report config: %w", err)
	}

	return nil
}
