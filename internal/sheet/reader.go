package sheet

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"rolling-pnl-reconciler/internal/cache"
	apperrors "rolling-pnl-reconciler/pkg/errors"
	"rolling-pnl-reconciler/pkg/logger"
)

// LoadMode selects what a loaded grid holds for formula cells
type LoadMode int

const (
	// DataOnly reads calculated values; used for matching and aggregation.
	DataOnly LoadMode = iota
	// FormulaPreserving reads formula text; used when preparing a write-back.
	FormulaPreserving
)

// String returns the string representation of LoadMode
func (m LoadMode) String() string {
	if m == FormulaPreserving {
		return "formula_preserving"
	}
	return "data_only"
}

// ReaderConfig holds configuration for the sheet reader
type ReaderConfig struct {
	// CacheEnabled keeps loaded grids until the file changes or is invalidated.
	CacheEnabled bool `json:"cache_enabled"`
	// MaxFormulaScanCells bounds the cells inspected for formulas in FormulaPreserving mode.
	MaxFormulaScanCells int `json:"max_formula_scan_cells"`
}

// DefaultReaderConfig returns the default reader configuration
func DefaultReaderConfig() *ReaderConfig {
	return &ReaderConfig{
		CacheEnabled:        true,
		MaxFormulaScanCells: 1_000_000,
	}
}

// Validate checks the reader configuration
func (c *ReaderConfig) Validate() error {
	if c.MaxFormulaScanCells <= 0 {
		return fmt.Errorf("max formula scan cells must be positive")
	}
	return nil
}

type gridKey struct {
	path  string
	sheet string
	mode  LoadMode
}

type cachedGrid struct {
	grid  *Grid
	stamp Stamp
}

// Reader loads worksheets into grids, caching them per (file, sheet, mode).
// A cached grid is reused only while the file's modification time and size are unchanged.
type Reader struct {
	config *ReaderConfig
	cache  *cache.Store[gridKey, cachedGrid]
	logger logger.Logger
}

// NewReader creates a sheet reader
func NewReader(config *ReaderConfig) *Reader {
	if config == nil {
		config = DefaultReaderConfig()
	}
	return &Reader{
		config: config,
		cache:  cache.New[gridKey, cachedGrid](),
		logger: logger.GetGlobalLogger().WithComponent("sheet_reader"),
	}
}

// LoadDataOnly loads calculated values
func (r *Reader) LoadDataOnly(path, sheetName string) (*Grid, error) {
	return r.Load(path, sheetName, DataOnly)
}

// LoadFormulaPreserving loads formulas as text
func (r *Reader) LoadFormulaPreserving(path, sheetName string) (*Grid, error) {
	return r.Load(path, sheetName, FormulaPreserving)
}

// Load reads sheetName from the workbook at path. An empty sheetName selects
// the first sheet. A sheet that does not exist is an error.
func (r *Reader) Load(path, sheetName string, mode LoadMode) (*Grid, error) {
	info, err := statWorkbook(path)
	if err != nil {
		return nil, err
	}

	stamp := Stamp{ModTime: info.ModTime(), Size: info.Size()}
	key := gridKey{path: cleanPath(path), sheet: sheetName, mode: mode}
	if r.config.CacheEnabled {
		if entry, ok := r.cache.Get(key); ok {
			if entry.stamp.Equal(stamp) {
				r.logger.WithFields(logger.Fields{"file": path, "sheet": sheetName, "mode": mode.String()}).
					Debug("Using cached grid")
				return entry.grid, nil
			}
			r.cache.Invalidate(key)
		}
	}

	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, apperrors.FileError(apperrors.CodeFileCorrupted, path, err)
	}
	defer f.Close()

	grid, err := r.readGrid(f, path, sheetName, mode)
	if err != nil {
		return nil, err
	}
	grid.Stamp = stamp

	if r.config.CacheEnabled {
		r.cache.Put(key, cachedGrid{grid: grid, stamp: stamp})
	}

	r.logger.WithFields(logger.Fields{
		"file":  path,
		"sheet": grid.Sheet,
		"mode":  mode.String(),
		"rows":  grid.Rows(),
		"cols":  grid.Cols(),
	}).Debug("Loaded sheet")

	return grid, nil
}

// SheetNames lists the sheets of a workbook in tab order
func (r *Reader) SheetNames(path string) ([]string, error) {
	if _, err := statWorkbook(path); err != nil {
		return nil, err
	}
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, apperrors.FileError(apperrors.CodeFileCorrupted, path, err)
	}
	defer f.Close()
	return f.GetSheetList(), nil
}

// Invalidate drops cached grids for one sheet of a file, in both load modes.
func (r *Reader) Invalidate(path, sheetName string) {
	p := cleanPath(path)
	r.cache.InvalidateWhere(func(k gridKey) bool {
		return k.path == p && k.sheet == sheetName
	})
}

// InvalidateFile drops every cached grid of a file
func (r *Reader) InvalidateFile(path string) {
	p := cleanPath(path)
	r.cache.InvalidateWhere(func(k gridKey) bool { return k.path == p })
}

// InvalidateAll empties the grid cache
func (r *Reader) InvalidateAll() {
	r.cache.InvalidateAll()
}

// CacheStats reports grid cache counters
func (r *Reader) CacheStats() cache.Stats {
	return r.cache.Stats()
}

func (r *Reader) readGrid(f *excelize.File, path, sheetName string, mode LoadMode) (*Grid, error) {
	sheets := f.GetSheetList()
	if sheetName == "" {
		if len(sheets) == 0 {
			return nil, apperrors.SheetNotFoundError(path, sheetName, sheets)
		}
		sheetName = sheets[0]
	}
	if !containsSheet(sheets, sheetName) {
		return nil, apperrors.SheetNotFoundError(path, sheetName, sheets)
	}

	display, err := f.GetRows(sheetName)
	if err != nil {
		return nil, apperrors.FileError(apperrors.CodeFileCorrupted, path, err).WithContext("sheet", sheetName)
	}
	raw, err := f.GetRows(sheetName, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, apperrors.FileError(apperrors.CodeFileCorrupted, path, err).WithContext("sheet", sheetName)
	}

	nRows := max(len(display), len(raw))
	nCols := 0
	for i := 0; i < nRows; i++ {
		nCols = max(nCols, len(rowAt(display, i)), len(rowAt(raw, i)))
	}

	if mode == FormulaPreserving {
		if dim, err := f.GetSheetDimension(sheetName); err == nil && dim != "" {
			if rng, err := ParseRange(dim); err == nil {
				nRows = max(nRows, rng.EndRow)
				nCols = max(nCols, rng.EndCol)
			}
		}
	}

	rows := make([][]Cell, nRows)
	for i := 0; i < nRows; i++ {
		d, rw := rowAt(display, i), rowAt(raw, i)
		width := max(len(d), len(rw))
		if mode == FormulaPreserving {
			width = nCols
		}
		rows[i] = make([]Cell, width)
		for j := 0; j < width; j++ {
			rows[i][j] = classify(valueAt(d, j), valueAt(rw, j))
		}
	}

	if mode == FormulaPreserving {
		if err := r.overlayFormulas(f, sheetName, rows); err != nil {
			return nil, apperrors.FileError(apperrors.CodeFileCorrupted, path, err).WithContext("sheet", sheetName)
		}
	}

	grid := NewGrid(sheetName, rows)
	grid.Path = path
	grid.Mode = mode
	return grid, nil
}

func (r *Reader) overlayFormulas(f *excelize.File, sheetName string, rows [][]Cell) error {
	scanned := 0
	for i := range rows {
		for j := range rows[i] {
			if scanned >= r.config.MaxFormulaScanCells {
				r.logger.WithField("sheet", sheetName).Warn("Formula scan limit reached, remaining cells read as values")
				return nil
			}
			scanned++

			formula, err := f.GetCellFormula(sheetName, CellName(i+1, j+1))
			if err != nil {
				return err
			}
			if formula == "" {
				continue
			}
			cached := rows[i][j].Raw
			rows[i][j] = Cell{
				Kind: CellFormula,
				Text: "=" + strings.TrimPrefix(formula, "="),
				Raw:  cached,
			}
		}
	}
	return nil
}

func statWorkbook(path string) (os.FileInfo, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, apperrors.FileError(apperrors.CodeFileNotFound, path, err)
		}
		if os.IsPermission(err) {
			return nil, apperrors.FileError(apperrors.CodeFilePermission, path, err)
		}
		return nil, apperrors.FileError(apperrors.CodeFileCorrupted, path, err)
	}
	if info.IsDir() {
		return nil, apperrors.FileError(apperrors.CodeFileCorrupted, path, fmt.Errorf("path is a directory"))
	}
	return info, nil
}

func cleanPath(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return filepath.Clean(path)
}

func containsSheet(sheets []string, name string) bool {
	for _, s := range sheets {
		if s == name {
			return true
		}
	}
	return false
}

func rowAt(rows [][]string, i int) []string {
	if i < len(rows) {
		return rows[i]
	}
	return nil
}

func valueAt(row []string, j int) string {
	if j < len(row) {
		return row[j]
	}
	return ""
}
