// Package reconciler runs the reconciliation pipeline for the projects of a
// manifest.
//
// For each project the service:
//   - loads the source sheet with calculated values
//   - resolves the target month column
//   - extracts source and rolling account labels
//   - generates or extends the account mappings
//   - extracts monthly amounts and aggregates them per rolling account
//   - previews and then writes the aggregated amounts into the rolling workbook
//
// Example usage:
//
//	service, err := reconciler.NewService(reconciler.DefaultConfig())
//	service.AddProgressCallback(func(p *reconciler.Progress) {
//		fmt.Printf("%.0f%% %s\n", p.PercentComplete, p.CurrentStep)
//	})
//
//	result, err := service.Run(ctx, &reconciler.Request{
//		Manifest: manifest,
//		Projects: manifest.Projects,
//	})
package reconciler

import (
	"context"
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"

	"rolling-pnl-reconciler/internal/aggregate"
	"rolling-pnl-reconciler/internal/models"
	"rolling-pnl-reconciler/internal/month"
	"rolling-pnl-reconciler/internal/project"
	"rolling-pnl-reconciler/internal/sheet"
	"rolling-pnl-reconciler/internal/writer"
	apperrors "rolling-pnl-reconciler/pkg/errors"
	"rolling-pnl-reconciler/pkg/logger"
)

// stepsPerProject is the number of progress steps reported for each project
const stepsPerProject = 7

// Progress tracks the progress of a run
type Progress struct {
	RunID              string        `json:"run_id"`
	Project            string        `json:"project"`
	TotalSteps         int           `json:"total_steps"`
	CompletedSteps     int           `json:"completed_steps"`
	CurrentStep        string        `json:"current_step"`
	PercentComplete    float64       `json:"percent_complete"`
	StartTime          time.Time     `json:"start_time"`
	ElapsedTime        time.Duration `json:"elapsed_time"`
	EstimatedRemaining time.Duration `json:"estimated_remaining"`
}

// ProgressCallback is called to report run progress
type ProgressCallback func(*Progress)

func (s *Service) initializeProgress(runID string, projects int) {
	s.progressMutex.Lock()
	defer s.progressMutex.Unlock()

	s.progress = &Progress{
		RunID:      runID,
		TotalSteps: projects * stepsPerProject,
		StartTime:  time.Now(),
	}
}

func (s *Service) updateProgress(projectName, step string) {
	s.progressMutex.Lock()
	defer s.progressMutex.Unlock()

	p := s.progress
	if p == nil {
		return
	}
	p.CompletedSteps++
	if p.CompletedSteps > p.TotalSteps {
		p.CompletedSteps = p.TotalSteps
	}
	p.Project = projectName
	p.CurrentStep = step
	p.ElapsedTime = time.Since(p.StartTime)
	if p.TotalSteps > 0 {
		p.PercentComplete = float64(p.CompletedSteps) / float64(p.TotalSteps) * 100
	}

	p.EstimatedRemaining = 0
	if p.CompletedSteps > 0 && p.CompletedSteps < p.TotalSteps {
		avgTimePerStep := p.ElapsedTime / time.Duration(p.CompletedSteps)
		p.EstimatedRemaining = avgTimePerStep * time.Duration(p.TotalSteps-p.CompletedSteps)
	}

	snapshot := *p
	for _, callback := range s.progressCallbacks {
		callback(&snapshot)
	}
}

// finishProject advances progress past any steps a failed project skipped
func (s *Service) finishProject(index int) {
	s.progressMutex.Lock()
	defer s.progressMutex.Unlock()
	if s.progress != nil {
		s.progress.CompletedSteps = (index+1)*stepsPerProject - 1
	}
}

// Run reconciles every project of req in order. Projects writing to the same
// output workbook are chained: each later project starts from what the
// earlier ones wrote. When a project fails the run stops, unless
// ContinueOnError is set, in which case the failures are returned together
// as an *errors.ErrorSummary after all projects ran.
func (s *Service) Run(ctx context.Context, req *Request) (*Result, error) {
	if req == nil {
		return nil, apperrors.ValidationError(apperrors.CodeMissingField, "request", nil, nil)
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	result := &Result{
		RunID:     newRunID(),
		StartedAt: time.Now(),
		DryRun:    req.DryRun,
	}
	log := s.logger.WithField("run_id", result.RunID)
	op := logger.NewOperationLogger("reconcile", log).WithFields(logger.Fields{
		"projects": len(req.Projects),
		"dry_run":  req.DryRun,
	})

	s.initializeProgress(result.RunID, len(req.Projects))
	produced := make(map[string]bool)

	var failures []*apperrors.ReconcilerError
	for i, p := range req.Projects {
		if err := ctx.Err(); err != nil {
			op.Error(err, "Run cancelled")
			result.summarize(op.Elapsed())
			return result, apperrors.Wrap(err, apperrors.CategoryInternal, apperrors.CodeUnexpectedError, "run cancelled")
		}

		pr := s.reconcileProject(ctx, req, p, produced, log)
		result.Projects = append(result.Projects, pr)
		op.Step("project", logger.Fields{"project": p.Name, "succeeded": pr.Succeeded()})

		if pr.err != nil {
			s.finishProject(i)
			s.updateProgress(p.Name, "Failed")
			re := apperrors.WrapIfNeeded(pr.err, apperrors.CategoryInternal, apperrors.CodeUnexpectedError,
				fmt.Sprintf("project %s failed", p.Name))
			failures = append(failures, re)
			if !s.config.ContinueOnError {
				result.summarize(op.Elapsed())
				op.Error(pr.err, "Reconciliation stopped")
				return result, re
			}
		}
	}

	result.summarize(op.Elapsed())
	result.Caches = s.cacheUsage()
	op.WithFields(logger.Fields{
		"succeeded":     result.Summary.Succeeded,
		"failed":        result.Summary.Failed,
		"cells_written": result.Summary.CellsWritten,
	})
	log.WithFields(logger.Fields{
		"grid_hits":    result.Caches.Grids.Hits,
		"grid_misses":  result.Caches.Grids.Misses,
		"score_hits":   result.Caches.Scores.Hits,
		"score_misses": result.Caches.Scores.Misses,
	}).Debug("Cache usage")

	if len(failures) > 0 {
		summary := apperrors.NewErrorSummary(failures)
		op.Error(summary, "Reconciliation finished with failures")
		return result, summary
	}
	op.Success("Reconciliation completed")
	return result, nil
}

func (s *Service) reconcileProject(ctx context.Context, req *Request, p *models.Project, produced map[string]bool, runLog logger.Logger) *ProjectResult {
	start := time.Now()
	pr := &ProjectResult{Project: p.Name, SourceSheet: p.SourceSheet}
	log := runLog.WithField("project", p.Name)

	fail := func(err error) *ProjectResult {
		if re, ok := apperrors.AsReconcilerError(err); ok {
			re.WithContext("project", p.Name)
		}
		pr.err = err
		pr.Error = err.Error()
		pr.Duration = time.Since(start)
		p.Workflow.LastStatusMessage = err.Error()
		log.WithError(err).Error("Project reconciliation failed")
		return pr
	}

	sourcePath := resolvePath(req.Manifest, p.SourceFile)
	rollingPath := resolvePath(req.Manifest, p.RollingFile)
	outPath := outputPath(req, p, rollingPath)
	if produced[outPath] {
		// a previous project of this run already wrote here
		rollingPath = outPath
	}
	pr.SourceFile = sourcePath

	// Step 1: source sheet
	src, err := s.reader.LoadDataOnly(sourcePath, p.SourceSheet)
	if err != nil {
		return fail(err)
	}
	srcRange, err := sheet.ParseRange(p.SourceRange)
	if err != nil {
		return fail(err)
	}
	s.updateProgress(p.Name, "Loaded source sheet")

	// Step 2: target month
	tm, err := s.targetMonth(req, p, src, sourcePath)
	if err != nil {
		return fail(err)
	}
	p.TargetMonth = &tm
	pr.TargetMonth = &tm
	log.WithFields(logger.Fields{
		"column": sheet.NumberToColumnLetters(tm.ColumnIndex),
		"header": tm.HeaderLabel,
		"source": tm.Source,
	}).Info("Target month resolved")
	s.updateProgress(p.Name, "Resolved target month")

	// Step 3: rolling sheet
	rolling, err := s.reader.LoadFormulaPreserving(rollingPath, p.RollingSheet)
	if err != nil {
		return fail(err)
	}
	rollRange, err := sheet.ParseRange(p.RollingRange)
	if err != nil {
		return fail(err)
	}
	s.updateProgress(p.Name, "Loaded rolling sheet")

	// Step 4: mappings
	added, err := s.updateMappings(req, p, src, srcRange, rolling, rollRange)
	if err != nil {
		return fail(err)
	}
	pr.Mappings = p.Mappings
	pr.NewAccounts = added
	s.updateProgress(p.Name, "Updated mappings")

	if err := ctx.Err(); err != nil {
		return fail(err)
	}

	// Step 5: monthly amounts
	monthly, diags, err := s.aggregator.ExtractMonthlyAmounts(src, srcRange, tm)
	if err != nil {
		s.resolver.Invalidate(monthKey(p, sourcePath))
		return fail(err)
	}
	p.MonthlyData = monthly
	p.Workflow.MonthlyGenerated = true
	pr.Monthly = monthly
	pr.Diagnostics = append(pr.Diagnostics, diags...)
	s.updateProgress(p.Name, "Extracted monthly amounts")

	// Step 6: aggregation
	aggregated := aggregate.Aggregate(monthly, p.Mappings)
	p.AggregatedData = aggregated
	pr.Aggregated = aggregated
	pr.Unmapped = aggregate.Unmapped(monthly, p.Mappings)
	if len(pr.Unmapped) > 0 {
		log.WithField("unmapped", pr.Unmapped).Warn("Accounts without a rolling mapping were left out")
	}
	s.updateProgress(p.Name, "Aggregated amounts")

	// Step 7: preview and write-back
	targetCol, err := s.writer.FindColumnForTarget(rolling, tm)
	if err != nil {
		return fail(err)
	}
	pr.Preview = s.preview(rollingPath, rolling, targetCol, rollRange, aggregated, log)
	p.PreviewData = pr.Preview

	switch {
	case len(aggregated) == 0:
		pr.Diagnostics = append(pr.Diagnostics, apperrors.Diagnostic{
			Sheet:   p.RollingSheet,
			Code:    apperrors.CodeNothingToAggregate,
			Message: "no mapped amounts for the target month, workbook not written",
		})
		p.Workflow.LastStatusMessage = "nothing to write"
	case req.DryRun:
		p.Workflow.LastStatusMessage = fmt.Sprintf("dry run: %d cells would change", len(pr.Preview))
	default:
		var written *writer.Result
		err := logger.TimedOperation("write rolling workbook", log.WithField("output", outPath), func() error {
			var err error
			written, err = s.writer.WriteToFile(rollingPath, outPath, rolling, tm, rollRange, aggregated)
			return err
		})
		if err != nil {
			return fail(err)
		}
		s.reader.InvalidateFile(outPath)
		produced[outPath] = true
		pr.Write = written
		pr.Diagnostics = append(pr.Diagnostics, written.Diagnostics...)
		p.LastExportFile = outPath
		p.Workflow.Exported = true
		p.Workflow.LastStatusMessage = fmt.Sprintf("wrote %d cells to %s", written.Count(), outPath)
	}
	s.updateProgress(p.Name, "Wrote rolling workbook")

	pr.Duration = time.Since(start)
	log.WithFields(logger.Fields{
		"accounts":    len(monthly),
		"aggregated":  len(aggregated),
		"diagnostics": len(pr.Diagnostics),
		"duration":    pr.Duration.String(),
	}).Info("Project reconciled")
	return pr
}

// ClearCaches drops every cached grid, target month and similarity score.
func (s *Service) ClearCaches() {
	s.reader.InvalidateAll()
	s.resolver.InvalidateAll()
	s.matcher.InvalidateCache()
	s.logger.Debug("Caches cleared")
}

func monthKey(p *models.Project, sourcePath string) month.Key {
	return month.Key{Project: p.Name, File: sourcePath, Sheet: p.SourceSheet}
}

func (s *Service) cacheUsage() CacheUsage {
	return CacheUsage{Grids: s.reader.CacheStats(), Scores: s.matcher.CacheStats()}
}

func (s *Service) targetMonth(req *Request, p *models.Project, src *sheet.Grid, sourcePath string) (models.TargetMonth, error) {
	key := monthKey(p, sourcePath)
	if req.TargetColumn == "" {
		return s.resolver.Resolve(key, src, nil)
	}

	col, err := sheet.ColumnLettersToNumber(req.TargetColumn)
	if err != nil {
		return models.TargetMonth{}, apperrors.ValidationError(apperrors.CodeOutOfRange, "target_column", req.TargetColumn, err)
	}
	label := ""
	for _, row := range s.config.monthHeaderRows() {
		if text := src.Text(row, col); text != "" {
			label = text
			break
		}
	}
	return s.resolver.Select(key, src, col, label), nil
}

func (c *Config) monthHeaderRows() []int {
	if c.Month == nil {
		return month.DefaultConfig().HeaderRows
	}
	return c.Month.HeaderRows
}

// updateMappings loads the project's saved mappings when it has none in
// memory, then generates entries for new source labels. Changed mappings are
// saved unless the run is a dry run.
func (s *Service) updateMappings(req *Request, p *models.Project, src *sheet.Grid, srcRange sheet.RangeAddress, rolling *sheet.Grid, rollRange sheet.RangeAddress) ([]string, error) {
	if req.Manifest != nil && (p.Mappings == nil || p.Mappings.Len() == 0) {
		if err := req.Manifest.LoadMappings(p); err != nil {
			return nil, err
		}
	}
	if p.Mappings == nil {
		p.Mappings = models.NewMappingSet()
	}

	sourceLabels := sheet.ExtractLabels(src, srcRange, true)
	rollingLabels := sheet.ExtractLabels(rolling, rollRange, true)

	var added []string
	if p.Mappings.Len() == 0 {
		p.Mappings = s.mappings.Generate(sourceLabels, rollingLabels, nil)
		added = p.Mappings.Labels()
	} else {
		p.Mappings, added = s.mappings.AddNewAccounts(sourceLabels, rollingLabels, p.Mappings)
	}
	p.Workflow.MappingsGenerated = true

	if len(added) > 0 && s.config.SaveMappings && !req.DryRun && req.Manifest != nil {
		if err := req.Manifest.SaveMappings(p); err != nil {
			return nil, err
		}
	}
	return added, nil
}

func (s *Service) preview(rollingPath string, rolling *sheet.Grid, col int, rollRange sheet.RangeAddress, aggregated models.AggregatedAmounts, log logger.Logger) []models.PreviewRow {
	f, err := excelize.OpenFile(rollingPath)
	if err != nil {
		log.WithError(err).Warn("Preview without formula evaluation")
		return s.writer.Preview(nil, rolling, col, rollRange, aggregated)
	}
	defer f.Close()
	return s.writer.Preview(f, rolling, col, rollRange, aggregated)
}

// GenerateMappings refreshes p's mappings from its workbooks without
// extracting amounts or writing anything. It returns the labels that were added.
func (s *Service) GenerateMappings(m *project.Manifest, p *models.Project) ([]string, error) {
	req := &Request{Manifest: m, Projects: []*models.Project{p}}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	src, err := s.reader.LoadDataOnly(resolvePath(m, p.SourceFile), p.SourceSheet)
	if err != nil {
		return nil, err
	}
	srcRange, err := sheet.ParseRange(p.SourceRange)
	if err != nil {
		return nil, err
	}
	rolling, err := s.reader.LoadDataOnly(resolvePath(m, p.RollingFile), p.RollingSheet)
	if err != nil {
		return nil, err
	}
	rollRange, err := sheet.ParseRange(p.RollingRange)
	if err != nil {
		return nil, err
	}
	return s.updateMappings(req, p, src, srcRange, rolling, rollRange)
}

// EditMappings points every label in sourceLabels at rollingAccount, drops the
// project's derived amounts and saves the mappings when m is not nil.
func (s *Service) EditMappings(m *project.Manifest, p *models.Project, sourceLabels []string, rollingAccount string) error {
	if m != nil && (p.Mappings == nil || p.Mappings.Len() == 0) {
		if err := m.LoadMappings(p); err != nil {
			return err
		}
	}
	if p.Mappings == nil {
		p.Mappings = models.NewMappingSet()
	}

	updated, err := s.mappings.ApplyBulkEdit(p.Mappings, sourceLabels, rollingAccount)
	if err != nil {
		return err
	}
	p.Mappings = updated
	p.InvalidateAggregates()

	if m != nil {
		return m.SaveMappings(p)
	}
	return nil
}

// ResetProject clears p's mappings, derived data and workflow state and drops
// its cached target months. The stored mappings are emptied when m is not nil,
// unless keepMappings is set.
func (s *Service) ResetProject(m *project.Manifest, p *models.Project, keepMappings bool) error {
	var kept *models.MappingSet
	if keepMappings {
		if m != nil && (p.Mappings == nil || p.Mappings.Len() == 0) {
			if err := m.LoadMappings(p); err != nil {
				return err
			}
		}
		kept = p.Mappings
	}

	sourcePath := resolvePath(m, p.SourceFile)
	p.ResetData()
	s.resolver.InvalidateProject(p.Name)
	s.reader.Invalidate(sourcePath, p.SourceSheet)
	s.logger.WithFields(logger.Fields{
		"project":       p.Name,
		"keep_mappings": keepMappings,
	}).Info("Project reset")

	if kept != nil {
		p.Mappings = kept
		p.Workflow.MappingsGenerated = kept.Len() > 0
		return nil
	}
	if m != nil {
		return m.SaveMappings(p)
	}
	return nil
}
