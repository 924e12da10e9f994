// Package mapping builds and maintains the source account to rolling account
// mapping of a project.
package mapping

import (
	"strings"

	"rolling-pnl-reconciler/internal/classifier"
	"rolling-pnl-reconciler/internal/matcher"
	"rolling-pnl-reconciler/internal/models"
	apperrors "rolling-pnl-reconciler/pkg/errors"
	"rolling-pnl-reconciler/pkg/logger"
)

// Config controls mapping generation
type Config struct {
	// SkipHeadings leaves headings and totals unmapped instead of fuzzy matching them
	SkipHeadings bool `json:"skip_headings"`
}

// DefaultConfig returns the default mapping configuration
func DefaultConfig() *Config {
	return &Config{SkipHeadings: true}
}

// Validate checks the mapping configuration
func (c *Config) Validate() error {
	return nil
}

// Engine creates mapping entries for new accounts and applies user edits.
// Inputs are never modified; every operation returns a new set.
type Engine struct {
	config     *Config
	matcher    *matcher.Matcher
	classifier *classifier.Classifier
	logger     logger.Logger
}

// NewEngine creates a mapping engine. Nil arguments use defaults.
func NewEngine(config *Config, m *matcher.Matcher, c *classifier.Classifier) *Engine {
	if config == nil {
		config = DefaultConfig()
	}
	if m == nil {
		m = matcher.NewMatcher(nil)
	}
	if c == nil {
		c = classifier.New(nil)
	}
	return &Engine{
		config:     config,
		matcher:    m,
		classifier: c,
		logger:     logger.GetGlobalLogger().WithComponent("mapping"),
	}
}

// Generate returns a mapping for sourceLabels. Labels already present in
// existing are copied unchanged; the rest are matched against rollingLabels.
// Entries of existing that no longer appear in sourceLabels are kept after
// the source labels in their previous order.
func (e *Engine) Generate(sourceLabels, rollingLabels []string, existing *models.MappingSet) *models.MappingSet {
	out, added := e.merge(sourceLabels, rollingLabels, existing)
	e.logger.WithFields(logger.Fields{
		"source_labels": len(sourceLabels),
		"new":           len(added),
		"total":         out.Len(),
	}).Info("Generated mappings")
	return out
}

// AddNewAccounts maps only the labels missing from existing and returns the
// merged set in source order together with the newly added labels.
func (e *Engine) AddNewAccounts(sourceLabels, rollingLabels []string, existing *models.MappingSet) (*models.MappingSet, []string) {
	out, added := e.merge(sourceLabels, rollingLabels, existing)
	if len(added) > 0 {
		e.logger.WithFields(logger.Fields{
			"added": len(added),
			"total": out.Len(),
		}).Info("Added new accounts to mappings")
	}
	return out, added
}

func (e *Engine) merge(sourceLabels, rollingLabels []string, existing *models.MappingSet) (*models.MappingSet, []string) {
	candidates := cleanCandidates(rollingLabels)
	out := models.NewMappingSet()
	var added []string

	for _, label := range sourceLabels {
		label = strings.TrimSpace(label)
		if label == "" || out.Has(label) {
			continue
		}
		if prev, ok := existing.Get(label); ok {
			out.Set(prev)
			continue
		}
		out.Set(e.suggest(label, candidates))
		added = append(added, label)
	}

	for _, prev := range existing.Entries() {
		if !out.Has(prev.SourceLabel) {
			out.Set(prev)
		}
	}

	return out, added
}

func (e *Engine) suggest(label string, candidates []string) models.AccountMapping {
	if e.config.SkipHeadings {
		if kind, reason := e.classifier.Explain(label); kind == classifier.KindHeading {
			e.logger.WithFields(logger.Fields{
				"label":  label,
				"reason": string(reason),
			}).Debug("Skipping heading")
			return models.AccountMapping{SourceLabel: label, Confidence: models.ConfidenceNone}
		}
	}
	return e.matcher.Suggest(label, candidates)
}

// ApplyManualEdit assigns rollingAccount to sourceLabel as a manual mapping.
func (e *Engine) ApplyManualEdit(set *models.MappingSet, sourceLabel, rollingAccount string) (*models.MappingSet, error) {
	return e.ApplyBulkEdit(set, []string{sourceLabel}, rollingAccount)
}

// ApplyBulkEdit assigns rollingAccount to every label in sourceLabels. Either
// all labels are edited or, when one is unknown, none are.
func (e *Engine) ApplyBulkEdit(set *models.MappingSet, sourceLabels []string, rollingAccount string) (*models.MappingSet, error) {
	if len(sourceLabels) == 0 {
		return nil, apperrors.ValidationError(apperrors.CodeMissingField, "source_labels", "", nil)
	}
	for _, label := range sourceLabels {
		if !set.Has(label) {
			return nil, apperrors.ValidationError(apperrors.CodeUnknownLabel, "source_label", label, nil)
		}
	}

	out := set.Clone()
	rollingAccount = strings.TrimSpace(rollingAccount)
	for _, label := range sourceLabels {
		out.Set(models.ManualMapping(label, rollingAccount))
	}

	e.logger.WithFields(logger.Fields{
		"labels":          len(sourceLabels),
		"rolling_account": rollingAccount,
	}).Info("Applied manual mapping edit")
	return out, nil
}

func cleanCandidates(labels []string) []string {
	seen := make(map[string]bool, len(labels))
	out := make([]string, 0, len(labels))
	for _, l := range labels {
		l = strings.TrimSpace(l)
		if l == "" || seen[l] {
			continue
		}
		seen[l] = true
		out = append(out, l)
	}
	return out
}
