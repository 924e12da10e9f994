// Package month locates the source column holding the latest reporting month.
package month

import (
	"strings"

	"rolling-pnl-reconciler/internal/cache"
	"rolling-pnl-reconciler/internal/models"
	"rolling-pnl-reconciler/internal/parsers"
	"rolling-pnl-reconciler/internal/sheet"
	apperrors "rolling-pnl-reconciler/pkg/errors"
	"rolling-pnl-reconciler/pkg/logger"
)

// Resolver finds the target month column of a source grid
type Resolver struct {
	config *Config
	logger logger.Logger
}

// NewResolver creates a resolver; a nil config uses the defaults
func NewResolver(config *Config) *Resolver {
	if config == nil {
		config = DefaultConfig()
	}
	return &Resolver{
		config: config,
		logger: logger.GetGlobalLogger().WithComponent("month_resolver"),
	}
}

type candidate struct {
	col    int
	label  string
	period parsers.Period
}

// Resolve scans the header rows for the chronologically latest month, breaking
// ties by the rightmost column. When within is nil every column up to the
// configured cap is scanned, otherwise only the columns of within.
// Without any date header it falls back to an "actual"/"current" header and
// then to the rightmost column holding numbers.
func (r *Resolver) Resolve(g *sheet.Grid, within *sheet.RangeAddress) (models.TargetMonth, error) {
	first, last := r.columnBounds(g, within)

	var best *candidate
	for _, row := range r.config.HeaderRows {
		for col := first; col <= last; col++ {
			c, ok := headerPeriod(g, row, col)
			if !ok {
				continue
			}
			if best == nil || c.period.After(best.period) ||
				(c.period.Compare(best.period) == 0 && c.col > best.col) {
				found := c
				best = &found
			}
		}
	}

	if best != nil {
		tm := models.TargetMonth{
			ColumnIndex: best.col,
			HeaderLabel: best.label,
			Year:        best.period.Year,
			Month:       best.period.Month,
			Source:      models.SourceDatePattern,
		}
		r.logResolved(g, tm)
		return tm, nil
	}

	if tm, ok := r.keywordFallback(g, first, last); ok {
		r.logResolved(g, tm)
		return tm, nil
	}

	if tm, ok := r.numericFallback(g, first, last); ok {
		r.logResolved(g, tm)
		return tm, nil
	}

	r.logger.WithFields(logger.Fields{"file": g.Path, "sheet": g.Sheet}).Warn("No target month column found")
	return models.TargetMonth{}, apperrors.UnresolvedTargetMonthError(g.Path, g.Sheet)
}

func (r *Resolver) columnBounds(g *sheet.Grid, within *sheet.RangeAddress) (int, int) {
	first, last := 1, g.Cols()
	if within != nil {
		first = within.StartCol
		if within.EndCol < last {
			last = within.EndCol
		}
	}
	if limit := first + r.config.MaxColumns - 1; last > limit {
		last = limit
	}
	return first, last
}

func headerPeriod(g *sheet.Grid, row, col int) (candidate, bool) {
	cell := g.Cell(row, col)
	label := strings.TrimSpace(cell.Text)

	switch cell.Kind {
	case sheet.CellEmpty:
		return candidate{}, false
	case sheet.CellDate:
		return candidate{col: col, label: label, period: parsers.PeriodOf(cell.Time)}, true
	case sheet.CellNumber:
		// A bare number only counts when it reads as a year.
		if cell.Number < 1900 || cell.Number > 2100 || cell.Number != float64(int(cell.Number)) {
			return candidate{}, false
		}
	}

	p, ok := parsers.ExtractPeriod(label)
	if !ok {
		return candidate{}, false
	}
	return candidate{col: col, label: label, period: p}, true
}

func (r *Resolver) keywordFallback(g *sheet.Grid, first, last int) (models.TargetMonth, bool) {
	for col := last; col >= first; col-- {
		for _, row := range r.config.HeaderRows {
			text := g.Text(row, col)
			lower := strings.ToLower(text)
			for _, kw := range r.config.ActualKeywords {
				if text != "" && strings.Contains(lower, strings.ToLower(kw)) {
					return models.TargetMonth{
						ColumnIndex: col,
						HeaderLabel: text,
						Source:      models.SourceActualKeyword,
					}, true
				}
			}
		}
	}
	return models.TargetMonth{}, false
}

func (r *Resolver) numericFallback(g *sheet.Grid, first, last int) (models.TargetMonth, bool) {
	start := r.config.lastHeaderRow() + 1
	end := start + r.config.NumericProbeRows - 1

	for col := last; col >= first; col-- {
		for row := start; row <= end; row++ {
			cell := g.Cell(row, col)
			if cell.Kind == sheet.CellNumber || (cell.Kind == sheet.CellText && parsers.IsPurelyNumeric(cell.Text)) {
				return models.TargetMonth{
					ColumnIndex: col,
					HeaderLabel: r.headerText(g, col),
					Source:      models.SourceNumericData,
				}, true
			}
		}
	}
	return models.TargetMonth{}, false
}

func (r *Resolver) headerText(g *sheet.Grid, col int) string {
	for _, row := range r.config.HeaderRows {
		if text := g.Text(row, col); text != "" {
			return text
		}
	}
	return sheet.NumberToColumnLetters(col)
}

func (r *Resolver) logResolved(g *sheet.Grid, tm models.TargetMonth) {
	r.logger.WithFields(logger.Fields{
		"file":   g.Path,
		"sheet":  g.Sheet,
		"column": sheet.NumberToColumnLetters(tm.ColumnIndex),
		"header": tm.HeaderLabel,
		"source": string(tm.Source),
	}).Info("Resolved target month")
}

// Key identifies one cached resolution
type Key struct {
	Project string
	File    string
	Sheet   string
}

type cachedMonth struct {
	month models.TargetMonth
	stamp sheet.Stamp
}

// CachedResolver memoizes resolutions per (project, file, sheet) until invalidated.
// An entry is also dropped when the grid comes from a different file state
// than the one it was resolved against.
type CachedResolver struct {
	resolver *Resolver
	store    *cache.Store[Key, cachedMonth]
	logger   logger.Logger
}

// NewCachedResolver wraps resolver with a result cache
func NewCachedResolver(resolver *Resolver) *CachedResolver {
	if resolver == nil {
		resolver = NewResolver(nil)
	}
	return &CachedResolver{
		resolver: resolver,
		store:    cache.New[Key, cachedMonth](),
		logger:   logger.GetGlobalLogger().WithComponent("month_cache"),
	}
}

// Resolve returns the cached target month for key, resolving on a miss. A
// cached entry is re-resolved when the file behind g changed or the cached
// column lies beyond the grid's current width.
func (c *CachedResolver) Resolve(key Key, g *sheet.Grid, within *sheet.RangeAddress) (models.TargetMonth, error) {
	if entry, ok := c.store.Get(key); ok {
		switch {
		case !entry.stamp.Equal(g.Stamp):
			c.logger.WithFields(logger.Fields{
				"project": key.Project,
				"file":    key.File,
			}).Info("Source file changed, resolving target month again")
			c.store.Invalidate(key)
		case entry.month.ColumnIndex > g.Cols():
			c.logger.WithFields(logger.Fields{
				"project": key.Project,
				"file":    key.File,
				"column":  entry.month.ColumnIndex,
				"cols":    g.Cols(),
			}).Info("Cached target month is past the sheet width, resolving again")
			c.store.Invalidate(key)
		default:
			return entry.month, nil
		}
	}

	tm, err := c.resolver.Resolve(g, within)
	if err != nil {
		return models.TargetMonth{}, err
	}
	c.store.Put(key, cachedMonth{month: tm, stamp: g.Stamp})
	return tm, nil
}

// Select records a user-chosen column of g for key
func (c *CachedResolver) Select(key Key, g *sheet.Grid, column int, label string) models.TargetMonth {
	tm := models.TargetMonth{ColumnIndex: column, HeaderLabel: label, Source: models.SourceManual}
	if p, err := parsers.ParseMonthLabel(label); err == nil {
		tm.Year, tm.Month = p.Year, p.Month
	}
	c.store.Put(key, cachedMonth{month: tm, stamp: g.Stamp})
	return tm
}

// Invalidate drops the cached resolution for key
func (c *CachedResolver) Invalidate(key Key) {
	c.store.Invalidate(key)
}

// InvalidateProject drops every cached resolution of a project
func (c *CachedResolver) InvalidateProject(project string) {
	c.store.InvalidateWhere(func(k Key) bool { return k.Project == project })
}

// InvalidateAll drops every cached resolution
func (c *CachedResolver) InvalidateAll() {
	c.store.InvalidateAll()
}
