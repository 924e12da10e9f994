package reconciler

import (
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"rolling-pnl-reconciler/internal/aggregate"
	"rolling-pnl-reconciler/internal/cache"
	"rolling-pnl-reconciler/internal/classifier"
	"rolling-pnl-reconciler/internal/mapping"
	"rolling-pnl-reconciler/internal/matcher"
	"rolling-pnl-reconciler/internal/models"
	"rolling-pnl-reconciler/internal/month"
	"rolling-pnl-reconciler/internal/project"
	"rolling-pnl-reconciler/internal/sheet"
	"rolling-pnl-reconciler/internal/writer"
	apperrors "rolling-pnl-reconciler/pkg/errors"
	"rolling-pnl-reconciler/pkg/logger"
)

// Config holds the configuration of every pipeline component
type Config struct {
	Reader     *sheet.ReaderConfig     `json:"reader"`
	Month      *month.Config           `json:"month"`
	Classifier *classifier.Config      `json:"classifier"`
	Matching   *matcher.MatchingConfig `json:"matching"`
	Mapping    *mapping.Config         `json:"mapping"`
	Aggregate  *aggregate.Config       `json:"aggregate"`
	Writer     *writer.Config          `json:"writer"`

	// SaveMappings writes changed mappings back to the project's sidecar file
	SaveMappings bool `json:"save_mappings"`

	// ContinueOnError processes the remaining projects after one fails
	ContinueOnError bool `json:"continue_on_error"`
}

// DefaultConfig returns a default configuration for the reconciliation service
func DefaultConfig() *Config {
	return &Config{
		Reader:       sheet.DefaultReaderConfig(),
		Month:        month.DefaultConfig(),
		Classifier:   classifier.DefaultConfig(),
		Matching:     matcher.DefaultMatchingConfig(),
		Mapping:      mapping.DefaultConfig(),
		Aggregate:    aggregate.DefaultConfig(),
		Writer:       writer.DefaultConfig(),
		SaveMappings: true,
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Reader != nil {
		if err := c.Reader.Validate(); err != nil {
			return fmt.Errorf("reader configuration: %w", err)
		}
	}
	if c.Month != nil {
		if err := c.Month.Validate(); err != nil {
			return fmt.Errorf("month configuration: %w", err)
		}
	}
	if c.Matching != nil {
		if err := c.Matching.Validate(); err != nil {
			return fmt.Errorf("matching configuration: %w", err)
		}
	}
	if c.Mapping != nil {
		if err := c.Mapping.Validate(); err != nil {
			return fmt.Errorf("mapping configuration: %w", err)
		}
	}
	if c.Aggregate != nil {
		if err := c.Aggregate.Validate(); err != nil {
			return fmt.Errorf("aggregate configuration: %w", err)
		}
	}
	if c.Writer != nil {
		if err := c.Writer.Validate(); err != nil {
			return fmt.Errorf("writer configuration: %w", err)
		}
	}
	return nil
}

// Request describes one reconciliation run
type Request struct {
	// Manifest resolves relative paths and stores mapping sidecars; may be nil
	Manifest *project.Manifest

	// Projects are processed in order
	Projects []*models.Project

	// OutputFile overrides every project's output workbook
	OutputFile string

	// TargetColumn, in column letters, skips month resolution and uses that source column
	TargetColumn string

	// DryRun computes mappings, amounts and a preview without writing a workbook
	DryRun bool
}

// Validate validates the reconciliation request
func (r *Request) Validate() error {
	if len(r.Projects) == 0 {
		return apperrors.ValidationError(apperrors.CodeMissingField, "projects", nil, nil).
			WithSuggestion("add at least one project to the manifest")
	}
	for i, p := range r.Projects {
		if p == nil {
			return apperrors.ValidationError(apperrors.CodeMissingField, fmt.Sprintf("projects[%d]", i), nil, nil)
		}
		if err := p.Validate(); err != nil {
			return apperrors.ValidationError(apperrors.CodeMissingField, fmt.Sprintf("projects[%d]", i), p.Name, err)
		}
	}
	if r.TargetColumn != "" {
		if _, err := sheet.ColumnLettersToNumber(r.TargetColumn); err != nil {
			return apperrors.ValidationError(apperrors.CodeOutOfRange, "target_column", r.TargetColumn, err)
		}
	}
	return nil
}

// ProjectResult holds what one project's reconciliation produced
type ProjectResult struct {
	Project     string                   `json:"project"`
	SourceFile  string                   `json:"source_file"`
	SourceSheet string                   `json:"source_sheet"`
	TargetMonth *models.TargetMonth      `json:"target_month,omitempty"`
	Mappings    *models.MappingSet       `json:"mappings,omitempty"`
	NewAccounts []string                 `json:"new_accounts,omitempty"`
	Monthly     models.MonthlyAmounts    `json:"monthly_amounts,omitempty"`
	Aggregated  models.AggregatedAmounts `json:"aggregated_amounts,omitempty"`
	Unmapped    []string                 `json:"unmapped,omitempty"`
	Preview     []models.PreviewRow      `json:"preview,omitempty"`
	Write       *writer.Result           `json:"write,omitempty"`
	Diagnostics []apperrors.Diagnostic   `json:"diagnostics,omitempty"`
	Error       string                   `json:"error,omitempty"`
	Duration    time.Duration            `json:"duration"`

	err error
}

// Err returns the error that stopped the project, if any
func (pr *ProjectResult) Err() error {
	return pr.err
}

// Succeeded reports whether the project ran to completion
func (pr *ProjectResult) Succeeded() bool {
	return pr.err == nil && pr.Error == ""
}

// Summary provides a high-level overview of a run
type Summary struct {
	Projects         int                       `json:"projects"`
	Succeeded        int                       `json:"succeeded"`
	Failed           int                       `json:"failed"`
	SourceAccounts   int                       `json:"source_accounts"`
	MappedAccounts   int                       `json:"mapped_accounts"`
	UnmappedAccounts int                       `json:"unmapped_accounts"`
	ByConfidence     map[models.Confidence]int `json:"by_confidence"`
	CellsWritten     int                       `json:"cells_written"`
	Diagnostics      int                       `json:"diagnostics"`
	TotalAggregated  decimal.Decimal           `json:"total_aggregated"`
	Duration         time.Duration             `json:"duration"`
}

// Result contains the complete results of a run
type Result struct {
	RunID     string           `json:"run_id"`
	StartedAt time.Time        `json:"started_at"`
	DryRun    bool             `json:"dry_run"`
	Summary   *Summary         `json:"summary"`
	Projects  []*ProjectResult `json:"projects"`
	Caches    CacheUsage       `json:"caches"`
}

// CacheUsage reports the service's cache counters at the end of a run.
// Counters accumulate over the life of the service.
type CacheUsage struct {
	Grids  cache.Stats `json:"grids"`
	Scores cache.Stats `json:"scores"`
}

func (r *Result) summarize(elapsed time.Duration) {
	s := &Summary{
		Projects:        len(r.Projects),
		ByConfidence:    make(map[models.Confidence]int),
		TotalAggregated: decimal.Zero,
		Duration:        elapsed,
	}
	for _, pr := range r.Projects {
		if pr.Succeeded() {
			s.Succeeded++
		} else {
			s.Failed++
		}
		s.SourceAccounts += len(pr.Monthly)
		s.UnmappedAccounts += len(pr.Unmapped)
		s.MappedAccounts += len(pr.Monthly) - len(pr.Unmapped)
		if pr.Mappings != nil {
			for c, n := range pr.Mappings.CountByConfidence() {
				s.ByConfidence[c] += n
			}
		}
		if pr.Write != nil {
			s.CellsWritten += pr.Write.Count()
		}
		s.Diagnostics += len(pr.Diagnostics)
		s.TotalAggregated = s.TotalAggregated.Add(pr.Aggregated.Total())
	}
	r.Summary = s
}

// Service runs the resolve, map, aggregate and write pipeline for projects
type Service struct {
	config        *Config
	reader        *sheet.Reader
	monthResolver *month.Resolver
	resolver      *month.CachedResolver
	classifier    *classifier.Classifier
	matcher       *matcher.Matcher
	mappings      *mapping.Engine
	aggregator    *aggregate.Engine
	writer        *writer.Writer
	logger        logger.Logger

	progressCallbacks []ProgressCallback
	progress          *Progress
	progressMutex     sync.Mutex
}

// NewService creates a reconciliation service. Nil component configs use defaults.
func NewService(config *Config) (*Service, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, apperrors.ConfigurationError(apperrors.CodeInvalidConfig, "reconciler", nil, err).
			WithSuggestion("check the reconciliation settings")
	}

	log := logger.GetGlobalLogger().WithComponent("reconciler")

	m := matcher.NewMatcher(config.Matching)
	c := classifier.New(config.Classifier)
	r := month.NewResolver(config.Month)
	s := &Service{
		config:        config,
		reader:        sheet.NewReader(config.Reader),
		monthResolver: r,
		resolver:      month.NewCachedResolver(r),
		classifier:    c,
		matcher:       m,
		mappings:      mapping.NewEngine(config.Mapping, m, c),
		aggregator:    aggregate.NewEngine(config.Aggregate),
		writer:        writer.NewWriter(config.Writer),
		logger:        log,
	}

	log.WithField("matching", m.Config.String()).Debug("Reconciliation service created")
	return s, nil
}

// Config returns the service configuration
func (s *Service) Config() *Config {
	return s.config
}

// Reader returns the shared sheet reader
func (s *Service) Reader() *sheet.Reader {
	return s.reader
}

// Classifier returns the account classifier
func (s *Service) Classifier() *classifier.Classifier {
	return s.classifier
}

// Resolver returns the cached target month resolver
func (s *Service) Resolver() *month.CachedResolver {
	return s.resolver
}

// AddProgressCallback adds a progress callback function
func (s *Service) AddProgressCallback(callback ProgressCallback) {
	s.progressCallbacks = append(s.progressCallbacks, callback)
}

func newRunID() string {
	return uuid.New().String()
}

// outputPath picks where a project's workbook is written: the request
// override, the project's own output file, or "<rolling>_reconciled.xlsx"
// beside the rolling workbook.
func outputPath(req *Request, p *models.Project, rollingPath string) string {
	if req.OutputFile != "" {
		return resolvePath(req.Manifest, req.OutputFile)
	}
	if p.OutputFile != "" {
		return resolvePath(req.Manifest, p.OutputFile)
	}
	ext := filepath.Ext(rollingPath)
	return strings.TrimSuffix(rollingPath, ext) + "_reconciled" + ext
}

func resolvePath(m *project.Manifest, path string) string {
	if m == nil {
		return path
	}
	return m.Resolve(path)
}
