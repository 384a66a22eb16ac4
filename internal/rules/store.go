// Package rules persists the user's inclusion/exclusion rules as one ordered
// YAML file and validates them on every load and save.
package rules

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/legallex/djenwatch/internal/model"
)

// ValidationError reports a malformed rule. It is surfaced to the rule editor
// immediately and never persisted.
type ValidationError struct {
	Rule   string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid rule %q: %s", e.Rule, e.Reason)
}

// Store reads and writes the rule file. Load is idempotent; Save replaces the
// file atomically and preserves rule order.
type Store struct {
	path string
}

// NewStore creates a store over the given rule file path.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Path returns the rule file path.
func (s *Store) Path() string { return s.path }

// ruleFile is the on-disk document. Keeping rules under a named key leaves
// room for file-level settings without breaking round-trips.
type ruleFile struct {
	Rules []model.SearchRule `yaml:"rules"`
}

// Load reads the ordered rule set. A missing file is an empty rule set, not
// an error (first run).
func (s *Store) Load() ([]model.SearchRule, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read rules file: %w", err)
	}

	var doc ruleFile
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse rules file %s: %w", s.path, err)
	}
	if err := Validate(doc.Rules); err != nil {
		return nil, err
	}
	return doc.Rules, nil
}

// Save validates and writes the rule set, assigning IDs to rules that lack
// one. The file is written to a temporary path and renamed so readers never
// observe a partial write.
func (s *Store) Save(ruleSet []model.SearchRule) error {
	if err := Validate(ruleSet); err != nil {
		return err
	}

	for i := range ruleSet {
		if ruleSet[i].ID == "" {
			ruleSet[i].ID = uuid.NewString()
		}
	}

	data, err := yaml.Marshal(ruleFile{Rules: ruleSet})
	if err != nil {
		return fmt.Errorf("marshal rules: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create rules dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".rules-*.yaml")
	if err != nil {
		return fmt.Errorf("create temp rules file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write rules file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close rules file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("publish rules file: %w", err)
	}
	return nil
}

// Snapshot loads the rule set and filters it down to enabled rules. A run
// captures one snapshot at start; edits during the run affect only the next
// one.
func (s *Store) Snapshot() ([]model.SearchRule, error) {
	all, err := s.Load()
	if err != nil {
		return nil, err
	}
	enabled := make([]model.SearchRule, 0, len(all))
	for _, r := range all {
		if r.Enabled {
			enabled = append(enabled, r)
		}
	}
	return enabled, nil
}

// Validate checks every rule: non-empty name, a known kind, and at least one
// populated criterion. A rule with no criteria would match everything and is
// rejected.
func Validate(ruleSet []model.SearchRule) error {
	for _, r := range ruleSet {
		if r.Name == "" {
			return &ValidationError{Rule: r.ID, Reason: "name must not be empty"}
		}
		if !r.Kind.Valid() {
			return &ValidationError{Rule: r.Name, Reason: fmt.Sprintf("unknown kind %q: want include or exclude", r.Kind)}
		}
		if r.Criteria.Empty() {
			return &ValidationError{Rule: r.Name, Reason: "at least one criterion must be set"}
		}
	}
	return nil
}
