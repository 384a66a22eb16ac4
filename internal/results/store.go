// Package results persists one immutable result artifact per calendar date
// and serves reads for external consumers. Writes are atomic: an artifact is
// staged to a temporary file and renamed into place, so readers never observe
// a half-written result and a failed run never clobbers a prior one.
package results

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/legallex/djenwatch/internal/model"
)

// ErrNotFound means no run has been recorded for the requested date. It is
// distinct from a run that executed with zero matches.
var ErrNotFound = errors.New("no result for date")

// PersistenceError wraps a storage failure. It is fatal for the current run
// but never corrupts previously persisted artifacts.
type PersistenceError struct {
	Op   string
	Date model.Date
	Err  error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("results %s %s: %v", e.Op, e.Date, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

const (
	filePrefix = "results_"
	fileSuffix = ".json"
)

// Store keeps one JSON artifact per date under dir, with a read-through
// memory cache in front of the files.
type Store struct {
	dir   string
	cache *gocache.Cache
}

// NewStore creates a store over the given directory. cacheTTL bounds how long
// reads may serve a cached artifact.
func NewStore(dir string, cacheTTL time.Duration) *Store {
	if cacheTTL <= 0 {
		cacheTTL = 5 * time.Minute
	}
	return &Store{
		dir:   dir,
		cache: gocache.New(cacheTTL, 10*time.Minute),
	}
}

// Write replaces the artifact for the result's date. Rerunning for a date
// overwrites, never merges.
func (s *Store) Write(result *model.DailyResult) error {
	date := result.Date
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return &PersistenceError{Op: "marshal", Date: date, Err: err}
	}

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return &PersistenceError{Op: "mkdir", Date: date, Err: err}
	}

	tmp, err := os.CreateTemp(s.dir, ".results-*.json")
	if err != nil {
		return &PersistenceError{Op: "stage", Date: date, Err: err}
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return &PersistenceError{Op: "write", Date: date, Err: err}
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return &PersistenceError{Op: "close", Date: date, Err: err}
	}
	if err := os.Rename(tmpName, s.path(date)); err != nil {
		os.Remove(tmpName)
		return &PersistenceError{Op: "publish", Date: date, Err: err}
	}

	s.cache.Delete(date.String())
	return nil
}

// Read returns the artifact for a date, or ErrNotFound when no run has been
// recorded for it.
func (s *Store) Read(date model.Date) (*model.DailyResult, error) {
	if cached, ok := s.cache.Get(date.String()); ok {
		return cached.(*model.DailyResult), nil
	}

	data, err := os.ReadFile(s.path(date))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, &PersistenceError{Op: "read", Date: date, Err: err}
	}

	var result model.DailyResult
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, &PersistenceError{Op: "decode", Date: date, Err: err}
	}

	s.cache.SetDefault(date.String(), &result)
	return &result, nil
}

// ListDates returns every date with a stored artifact, ascending. A missing
// results directory is an empty list.
func (s *Store) ListDates() ([]model.Date, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("list results dir: %w", err)
	}

	var dates []model.Date
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, filePrefix) || !strings.HasSuffix(name, fileSuffix) {
			continue
		}
		raw := strings.TrimSuffix(strings.TrimPrefix(name, filePrefix), fileSuffix)
		date, err := model.ParseDate(raw)
		if err != nil {
			continue
		}
		dates = append(dates, date)
	}

	sort.Slice(dates, func(i, j int) bool { return dates[i].Time.Before(dates[j].Time) })
	return dates, nil
}

// path encodes the date unambiguously into the artifact filename.
func (s *Store) path(date model.Date) string {
	return filepath.Join(s.dir, filePrefix+date.String()+fileSuffix)
}
