package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Confidence represents how a mapping was established
type Confidence string

const (
	// ConfidenceHigh is a fuzzy match with ratio >= 0.8
	ConfidenceHigh Confidence = "High"
	// ConfidenceMedium is a fuzzy match with ratio >= 0.6
	ConfidenceMedium Confidence = "Medium"
	// ConfidenceLow is a fuzzy match with ratio >= 0.4
	ConfidenceLow Confidence = "Low"
	// ConfidenceManual is a mapping set by a user
	ConfidenceManual Confidence = "Manual"
	// ConfidenceNone means the account is unmapped
	ConfidenceNone Confidence = "None"
)

// String returns the string representation of Confidence
func (c Confidence) String() string {
	return string(c)
}

// IsValid checks if the confidence value is one of the known tiers
func (c Confidence) IsValid() bool {
	switch c {
	case ConfidenceHigh, ConfidenceMedium, ConfidenceLow, ConfidenceManual, ConfidenceNone:
		return true
	}
	return false
}

// ParseConfidence parses a confidence tier, case-insensitively.
func ParseConfidence(s string) (Confidence, error) {
	for _, c := range []Confidence{ConfidenceHigh, ConfidenceMedium, ConfidenceLow, ConfidenceManual, ConfidenceNone} {
		if strings.EqualFold(strings.TrimSpace(s), string(c)) {
			return c, nil
		}
	}
	return "", fmt.Errorf("invalid confidence '%s': must be High, Medium, Low, Manual or None", s)
}

// AccountMapping associates one source account label with a rolling account
type AccountMapping struct {
	SourceLabel    string     `json:"-"`
	RollingAccount string     `json:"rolling_account"`
	Confidence     Confidence `json:"confidence"`
	Similarity     float64    `json:"similarity"`
	UserEdited     bool       `json:"user_edited"`
}

// ManualMapping builds the entry produced by a user override.
func ManualMapping(sourceLabel, rollingAccount string) AccountMapping {
	return AccountMapping{
		SourceLabel:    sourceLabel,
		RollingAccount: rollingAccount,
		Confidence:     ConfidenceManual,
		Similarity:     100.0,
		UserEdited:     true,
	}
}

// IsMapped reports whether the entry points at a rolling account.
func (m AccountMapping) IsMapped() bool {
	return m.RollingAccount != ""
}

// Validate performs basic validation on the AccountMapping
func (m AccountMapping) Validate() error {
	if strings.TrimSpace(m.SourceLabel) == "" {
		return fmt.Errorf("source label cannot be empty")
	}
	if !m.Confidence.IsValid() {
		return fmt.Errorf("invalid confidence: %s", m.Confidence)
	}
	if m.Similarity < 0 || m.Similarity > 100 {
		return fmt.Errorf("similarity %.1f outside [0,100]", m.Similarity)
	}
	return nil
}

// MappingSet is an insertion-ordered collection of AccountMapping keyed by source label.
type MappingSet struct {
	order   []string
	entries map[string]AccountMapping
}

// NewMappingSet creates an empty MappingSet
func NewMappingSet() *MappingSet {
	return &MappingSet{entries: make(map[string]AccountMapping)}
}

// Len returns the number of entries
func (s *MappingSet) Len() int {
	if s == nil {
		return 0
	}
	return len(s.order)
}

// Has reports whether label is a key of the set
func (s *MappingSet) Has(label string) bool {
	if s == nil {
		return false
	}
	_, ok := s.entries[label]
	return ok
}

// Get returns the entry for label
func (s *MappingSet) Get(label string) (AccountMapping, bool) {
	if s == nil {
		return AccountMapping{}, false
	}
	m, ok := s.entries[label]
	return m, ok
}

// Set inserts or replaces the entry keyed by m.SourceLabel. A replaced entry
// keeps its position.
func (s *MappingSet) Set(m AccountMapping) {
	if s.entries == nil {
		s.entries = make(map[string]AccountMapping)
	}
	if _, ok := s.entries[m.SourceLabel]; !ok {
		s.order = append(s.order, m.SourceLabel)
	}
	s.entries[m.SourceLabel] = m
}

// Labels returns the source labels in order
func (s *MappingSet) Labels() []string {
	if s == nil {
		return nil
	}
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

// Entries returns the mappings in order
func (s *MappingSet) Entries() []AccountMapping {
	if s == nil {
		return nil
	}
	out := make([]AccountMapping, 0, len(s.order))
	for _, label := range s.order {
		out = append(out, s.entries[label])
	}
	return out
}

// Clone returns an independent copy
func (s *MappingSet) Clone() *MappingSet {
	c := NewMappingSet()
	for _, m := range s.Entries() {
		c.Set(m)
	}
	return c
}

// Equal reports whether both sets hold the same entries in the same order.
func (s *MappingSet) Equal(other *MappingSet) bool {
	if s.Len() != other.Len() {
		return false
	}
	a, b := s.Entries(), other.Entries()
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// CountByConfidence groups entries by confidence tier
func (s *MappingSet) CountByConfidence() map[Confidence]int {
	counts := make(map[Confidence]int)
	for _, m := range s.Entries() {
		counts[m.Confidence]++
	}
	return counts
}

// RollingAccounts returns the distinct non-empty rolling accounts in first-seen order.
func (s *MappingSet) RollingAccounts() []string {
	seen := make(map[string]bool)
	var out []string
	for _, m := range s.Entries() {
		if m.RollingAccount == "" || seen[m.RollingAccount] {
			continue
		}
		seen[m.RollingAccount] = true
		out = append(out, m.RollingAccount)
	}
	return out
}

// MarshalJSON encodes the set as a JSON object whose keys keep insertion order.
func (s *MappingSet) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, m := range s.Entries() {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := encodeNoEscape(m.SourceLabel)
		if err != nil {
			return nil, err
		}
		value, err := encodeNoEscape(m)
		if err != nil {
			return nil, fmt.Errorf("encode mapping for %q: %w", m.SourceLabel, err)
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes a JSON object preserving key order. A value may be a
// full entry object or a bare string (legacy form), which is read as a manual mapping.
func (s *MappingSet) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))

	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("mappings must be a JSON object")
	}

	*s = MappingSet{entries: make(map[string]AccountMapping)}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		label, ok := tok.(string)
		if !ok {
			return fmt.Errorf("unexpected token %v", tok)
		}

		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return fmt.Errorf("decode mapping for %q: %w", label, err)
		}

		entry, err := decodeEntry(label, raw)
		if err != nil {
			return err
		}
		s.Set(entry)
	}

	_, err = dec.Token()
	return err
}

func encodeNoEscape(v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

func decodeEntry(label string, raw json.RawMessage) (AccountMapping, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && trimmed[0] == '"' {
		var rolling string
		if err := json.Unmarshal(trimmed, &rolling); err != nil {
			return AccountMapping{}, fmt.Errorf("decode mapping for %q: %w", label, err)
		}
		return ManualMapping(label, rolling), nil
	}

	entry := AccountMapping{Confidence: ConfidenceNone}
	if err := json.Unmarshal(trimmed, &entry); err != nil {
		return AccountMapping{}, fmt.Errorf("decode mapping for %q: %w", label, err)
	}
	entry.SourceLabel = label
	if entry.Confidence == "" {
		entry.Confidence = ConfidenceNone
	}
	if !entry.Confidence.IsValid() {
		c, err := ParseConfidence(string(entry.Confidence))
		if err != nil {
			return AccountMapping{}, fmt.Errorf("mapping for %q: %w", label, err)
		}
		entry.Confidence = c
	}
	return entry, nil
}
