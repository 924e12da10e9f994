package mapping

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"rolling-pnl-reconciler/internal/models"
	apperrors "rolling-pnl-reconciler/pkg/errors"
	"rolling-pnl-reconciler/pkg/logger"
)

// FormatVersion is the version written to mapping files
const FormatVersion = "2.0"

// Document is the on-disk form of a project's mappings
type Document struct {
	Version     string             `json:"version"`
	ProjectName string             `json:"project_name"`
	Mappings    *models.MappingSet `json:"mappings"`

	// Legacy is set when the document was read from the flat
	// {source: rolling} form and upgraded.
	Legacy bool `json:"-"`
}

// Encode renders mappings as an indented version 2.0 document. Output is
// deterministic for a given set.
func Encode(projectName string, set *models.MappingSet) ([]byte, error) {
	if set == nil {
		set = models.NewMappingSet()
	}
	doc := Document{Version: FormatVersion, ProjectName: projectName, Mappings: set}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return nil, apperrors.InternalError(apperrors.CodeUnexpectedError, "encode mappings", err)
	}
	return buf.Bytes(), nil
}

// Decode reads a version 2.0 document, or a legacy flat map which is
// upgraded to manual entries. Any document carrying a version key is read as
// 2.0 and must hold a mappings object.
func Decode(data []byte) (*Document, error) {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(data, &top); err != nil {
		return nil, apperrors.Wrap(err, apperrors.CategoryParse, apperrors.CodeInvalidFormat,
			"mapping file is not a JSON object")
	}

	raw, hasMappings := top["mappings"]
	_, hasVersion := top["version"]
	if hasVersion && !(hasMappings && isObject(raw)) {
		return nil, apperrors.New(apperrors.CategoryParse, apperrors.CodeInvalidFormat,
			"mapping document has a version but no mappings object")
	}
	if hasVersion || (hasMappings && isObject(raw)) {
		doc := &Document{Mappings: models.NewMappingSet()}
		if err := json.Unmarshal(data, doc); err != nil {
			return nil, apperrors.Wrap(err, apperrors.CategoryParse, apperrors.CodeInvalidFormat,
				"invalid mapping document")
		}
		if doc.Version == "" {
			doc.Version = FormatVersion
		}
		return doc, nil
	}

	set := models.NewMappingSet()
	if err := json.Unmarshal(data, set); err != nil {
		return nil, apperrors.Wrap(err, apperrors.CategoryParse, apperrors.CodeInvalidFormat,
			"invalid legacy mapping file")
	}
	return &Document{Version: FormatVersion, Mappings: set, Legacy: true}, nil
}

func isObject(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && trimmed[0] == '{'
}

// LoadFile reads the mapping document at path
func LoadFile(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		code := apperrors.CodeFileNotFound
		if os.IsPermission(err) {
			code = apperrors.CodeFilePermission
		}
		return nil, apperrors.FileError(code, path, err)
	}

	doc, err := Decode(data)
	if err != nil {
		if re, ok := apperrors.AsReconcilerError(err); ok {
			return nil, re.WithContext("file_path", path)
		}
		return nil, err
	}

	logger.GetGlobalLogger().WithComponent("mapping").WithFields(logger.Fields{
		"file":     path,
		"entries":  doc.Mappings.Len(),
		"upgraded": doc.Legacy,
	}).Debug("Loaded mappings")
	return doc, nil
}

// SaveFile writes mappings for projectName to path, creating parent directories.
func SaveFile(path, projectName string, set *models.MappingSet) error {
	data, err := Encode(projectName, set)
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return apperrors.FileError(apperrors.CodeWriteFailed, path, err)
		}
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return apperrors.FileError(apperrors.CodeWriteFailed, path, fmt.Errorf("write mappings: %w", err))
	}
	return nil
}
