package results

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/legallex/djenwatch/internal/model"
)

func testResult(date model.Date, pubs ...model.Publication) *model.DailyResult {
	return &model.DailyResult{
		Date: date,
		Execution: model.ExecutionRecord{
			Date:    date,
			Fetched: len(pubs),
			Matched: len(pubs),
			Outcome: model.OutcomeSuccess,
		},
		Publications: pubs,
	}
}

func TestWriteReadRoundTrip(t *testing.T) {
	store := NewStore(t.TempDir(), time.Minute)
	date := model.NewDate(2026, time.August, 27)

	pub := model.Publication{ID: 1, Hash: "h1", AvailableOn: date, TribunalCode: "TJES"}
	if err := store.Write(testResult(date, pub)); err != nil {
		t.Fatalf("write: %v", err)
	}

	got, err := store.Read(date)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(got.Publications) != 1 || got.Publications[0].Hash != "h1" {
		t.Errorf("unexpected result: %+v", got)
	}
	if got.Execution.Outcome != model.OutcomeSuccess {
		t.Errorf("outcome = %s", got.Execution.Outcome)
	}
}

func TestReadNotFound(t *testing.T) {
	store := NewStore(t.TempDir(), time.Minute)
	_, err := store.Read(model.NewDate(2026, time.August, 27))
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRerunReplaces(t *testing.T) {
	store := NewStore(t.TempDir(), time.Minute)
	date := model.NewDate(2026, time.August, 27)

	first := testResult(date,
		model.Publication{ID: 1, Hash: "old", AvailableOn: date},
		model.Publication{ID: 2, Hash: "old2", AvailableOn: date},
	)
	if err := store.Write(first); err != nil {
		t.Fatalf("first write: %v", err)
	}

	second := testResult(date, model.Publication{ID: 3, Hash: "new", AvailableOn: date})
	if err := store.Write(second); err != nil {
		t.Fatalf("second write: %v", err)
	}

	got, err := store.Read(date)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	// Replace, never merge.
	if len(got.Publications) != 1 || got.Publications[0].Hash != "new" {
		t.Errorf("rerun must replace the stored result, got %+v", got.Publications)
	}
}

func TestListDates(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(dir, time.Minute)

	dates := []model.Date{
		model.NewDate(2026, time.August, 27),
		model.NewDate(2026, time.August, 25),
		model.NewDate(2026, time.August, 26),
	}
	for _, d := range dates {
		if err := store.Write(testResult(d)); err != nil {
			t.Fatalf("write %s: %v", d, err)
		}
	}

	// Stray files must be ignored.
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "results_garbage.json"), []byte("{}"), 0o644); err != nil {
		t.Fatal(err)
	}

	got, err := store.ListDates()
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	want := []string{"2026-08-25", "2026-08-26", "2026-08-27"}
	if len(got) != len(want) {
		t.Fatalf("dates = %v, want %v", got, want)
	}
	for i := range want {
		if got[i].String() != want[i] {
			t.Errorf("dates[%d] = %s, want %s", i, got[i], want[i])
		}
	}
}

func TestListDatesMissingDir(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "nope"), time.Minute)
	dates, err := store.ListDates()
	if err != nil {
		t.Fatalf("missing dir should not be an error, got %v", err)
	}
	if len(dates) != 0 {
		t.Errorf("expected no dates, got %v", dates)
	}
}

func TestWriteLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(dir, time.Minute)
	date := model.NewDate(2026, time.August, 27)

	if err := store.Write(testResult(date)); err != nil {
		t.Fatalf("write: %v", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Name() != "results_2026-08-27.json" {
		names := make([]string, 0, len(entries))
		for _, e := range entries {
			names = append(names, e.Name())
		}
		t.Errorf("unexpected directory contents: %v", names)
	}
}

func TestReadServesCacheUntilInvalidated(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(dir, time.Minute)
	date := model.NewDate(2026, time.August, 27)

	if err := store.Write(testResult(date, model.Publication{ID: 1, Hash: "a", AvailableOn: date})); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := store.Read(date); err != nil {
		t.Fatalf("read: %v", err)
	}

	// Remove the file behind the cache; the cached artifact still serves.
	if err := os.Remove(filepath.Join(dir, "results_2026-08-27.json")); err != nil {
		t.Fatal(err)
	}
	if _, err := store.Read(date); err != nil {
		t.Fatalf("cached read: %v", err)
	}

	// A write for the date invalidates the cache entry.
	if err := store.Write(testResult(date, model.Publication{ID: 2, Hash: "b", AvailableOn: date})); err != nil {
		t.Fatalf("rewrite: %v", err)
	}
	got, err := store.Read(date)
	if err != nil {
		t.Fatalf("read after rewrite: %v", err)
	}
	if got.Publications[0].Hash != "b" {
		t.Errorf("stale cache served after write: %+v", got.Publications)
	}
}
