package rules

import (
	"errors"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/legallex/djenwatch/internal/model"
)

func testRules() []model.SearchRule {
	start := model.NewDate(2026, time.January, 1)
	return []model.SearchRule{
		{
			Name:    "OAB Principal",
			Kind:    model.KindInclude,
			Enabled: true,
			Criteria: model.RuleCriteria{
				OABNumber: "8773",
				OABState:  "ES",
				StartDate: &start,
			},
		},
		{
			Name:     "Darwin",
			Kind:     model.KindInclude,
			Enabled:  true,
			Criteria: model.RuleCriteria{PartyName: "Darwin", TribunalCode: "TJES"},
		},
		{
			Name:     "Arquivados",
			Kind:     model.KindExclude,
			Enabled:  false,
			Criteria: model.RuleCriteria{DocumentType: "Arquivamento"},
		},
	}
}

func TestStoreRoundTrip(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "rules.yaml"))

	saved := testRules()
	if err := store.Save(saved); err != nil {
		t.Fatalf("save: %v", err)
	}

	loaded, err := store.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !reflect.DeepEqual(loaded, saved) {
		t.Errorf("round trip mismatch:\n got %+v\nwant %+v", loaded, saved)
	}

	// Save must have assigned stable IDs.
	for i, r := range loaded {
		if r.ID == "" {
			t.Errorf("rule %d has no ID after save", i)
		}
	}

	// A second round trip yields the identical rule set.
	if err := store.Save(loaded); err != nil {
		t.Fatalf("second save: %v", err)
	}
	again, err := store.Load()
	if err != nil {
		t.Fatalf("second load: %v", err)
	}
	if !reflect.DeepEqual(again, loaded) {
		t.Error("second round trip changed the rule set")
	}
}

func TestStoreLoadMissingFile(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "nope.yaml"))
	loaded, err := store.Load()
	if err != nil {
		t.Fatalf("missing file should not be an error, got %v", err)
	}
	if len(loaded) != 0 {
		t.Errorf("expected empty rule set, got %+v", loaded)
	}
}

func TestStoreSaveOrderPreserved(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "rules.yaml"))

	ruleSet := testRules()
	if err := store.Save(ruleSet); err != nil {
		t.Fatalf("save: %v", err)
	}
	loaded, err := store.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	for i := range ruleSet {
		if loaded[i].Name != ruleSet[i].Name {
			t.Fatalf("order changed: position %d is %q, want %q", i, loaded[i].Name, ruleSet[i].Name)
		}
	}
}

func TestSnapshotFiltersDisabled(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "rules.yaml"))
	if err := store.Save(testRules()); err != nil {
		t.Fatalf("save: %v", err)
	}

	snapshot, err := store.Snapshot()
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if len(snapshot) != 2 {
		t.Fatalf("expected 2 enabled rules, got %d", len(snapshot))
	}
	for _, r := range snapshot {
		if !r.Enabled {
			t.Errorf("disabled rule %q leaked into snapshot", r.Name)
		}
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		rule    model.SearchRule
		wantErr bool
	}{
		{
			"valid",
			model.SearchRule{Name: "ok", Kind: model.KindInclude, Criteria: model.RuleCriteria{PartyName: "x"}},
			false,
		},
		{
			"empty name",
			model.SearchRule{Kind: model.KindInclude, Criteria: model.RuleCriteria{PartyName: "x"}},
			true,
		},
		{
			"unknown kind",
			model.SearchRule{Name: "bad", Kind: "maybe", Criteria: model.RuleCriteria{PartyName: "x"}},
			true,
		},
		{
			"no criteria",
			model.SearchRule{Name: "match-all", Kind: model.KindInclude},
			true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate([]model.SearchRule{tt.rule})
			if tt.wantErr {
				var verr *ValidationError
				if !errors.As(err, &verr) {
					t.Errorf("expected *ValidationError, got %v", err)
				}
				return
			}
			if err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestSaveRejectsInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	store := NewStore(path)

	if err := store.Save(testRules()); err != nil {
		t.Fatalf("save valid: %v", err)
	}

	bad := []model.SearchRule{{Name: "match-all", Kind: model.KindInclude}}
	if err := store.Save(bad); err == nil {
		t.Fatal("expected validation error")
	}

	// The prior file must be untouched by the rejected save.
	loaded, err := store.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(loaded) != len(testRules()) {
		t.Errorf("prior rule set was corrupted: %d rules", len(loaded))
	}
}
