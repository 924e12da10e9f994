package reconciler

import (
	"github.com/shopspring/decimal"

	"rolling-pnl-reconciler/internal/classifier"
	"rolling-pnl-reconciler/internal/models"
	"rolling-pnl-reconciler/internal/sheet"
	"rolling-pnl-reconciler/pkg/logger"
)

// LabelInfo describes one label found by Inspect
type LabelInfo struct {
	Label  string            `json:"label"`
	Cell   string            `json:"cell"`
	Kind   classifier.Kind   `json:"kind"`
	Reason classifier.Reason `json:"reason"`
	Amount *decimal.Decimal  `json:"amount,omitempty"`
}

// Inspection is what Inspect found in one sheet
type Inspection struct {
	File         string              `json:"file"`
	Sheet        string              `json:"sheet"`
	Sheets       []string            `json:"sheets"`
	Range        string              `json:"range"`
	TargetMonth  *models.TargetMonth `json:"target_month,omitempty"`
	ResolveError string              `json:"resolve_error,omitempty"`
	Labels       []LabelInfo         `json:"labels"`
}

// Inspect resolves the target month of a sheet and classifies the labels in
// rangeStr, with each label's target month amount when one was resolved. An
// unresolved month is reported in the result rather than as an error.
func (s *Service) Inspect(path, sheetName, rangeStr string) (*Inspection, error) {
	rng, err := sheet.ParseRange(rangeStr)
	if err != nil {
		return nil, err
	}
	sheets, err := s.reader.SheetNames(path)
	if err != nil {
		return nil, err
	}
	g, err := s.reader.LoadDataOnly(path, sheetName)
	if err != nil {
		return nil, err
	}

	ins := &Inspection{File: path, Sheet: g.Sheet, Sheets: sheets, Range: rng.String()}

	var monthly models.MonthlyAmounts
	if tm, err := s.monthResolver.Resolve(g, nil); err != nil {
		ins.ResolveError = err.Error()
	} else {
		ins.TargetMonth = &tm
		monthly, _, _ = s.aggregator.ExtractMonthlyAmounts(g, rng, tm)
	}

	for _, lc := range sheet.ExtractLabelCells(g, rng, true) {
		kind, reason := s.classifier.Explain(lc.Label)
		info := LabelInfo{
			Label:  lc.Label,
			Cell:   sheet.CellName(lc.Row, lc.Col),
			Kind:   kind,
			Reason: reason,
		}
		if amount, ok := monthly[lc.Label]; ok {
			info.Amount = &amount
		}
		ins.Labels = append(ins.Labels, info)
	}

	s.logger.WithFields(logger.Fields{
		"file":   path,
		"sheet":  ins.Sheet,
		"labels": len(ins.Labels),
	}).Debug("Inspected sheet")
	return ins, nil
}
