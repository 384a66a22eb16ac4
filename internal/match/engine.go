// Package match implements the rule matching engine: a pure function from a
// rule snapshot and a publication batch to the deduplicated matched set.
package match

import (
	"sort"
	"strings"

	"github.com/legallex/djenwatch/internal/model"
)

// Stats describes one evaluation.
type Stats struct {
	Candidates    int            // publications matched by at least one include rule
	Excluded      int            // candidates removed by an exclude rule
	Duplicates    int            // repeated identities collapsed by deduplication
	RuleMatches   map[string]int // include-rule name -> publications it matched
	Exclusions    map[string]int // exclude-rule name -> publications it removed
	ConfigWarning bool           // no include rules present
}

// Evaluate filters publications against the rule snapshot.
//
// A publication is a candidate when at least one include rule matches it
// (every populated criterion of the rule must hold). Any matching exclude
// rule then removes it: exclusion has strict precedence over inclusion.
// Candidates are deduplicated by identity and returned sorted by availability
// date, then identity, so identical inputs produce identical output
// regardless of input order.
//
// An empty include set yields an empty result and a configuration warning;
// it never defaults to matching everything.
func Evaluate(ruleSet []model.SearchRule, pubs []model.Publication) ([]model.Publication, Stats) {
	stats := Stats{
		RuleMatches: make(map[string]int),
		Exclusions:  make(map[string]int),
	}

	var includes, excludes []model.SearchRule
	for _, r := range ruleSet {
		switch r.Kind {
		case model.KindInclude:
			includes = append(includes, r)
		case model.KindExclude:
			excludes = append(excludes, r)
		default:
			// Unknown kinds never influence the result.
		}
	}

	if len(includes) == 0 {
		stats.ConfigWarning = true
		return nil, stats
	}

	seen := make(map[string]struct{})
	var matched []model.Publication

	for _, pub := range pubs {
		candidate := false
		for _, r := range includes {
			if Matches(r, pub) {
				stats.RuleMatches[r.Name]++
				candidate = true
			}
		}
		if !candidate {
			continue
		}
		stats.Candidates++

		excluded := false
		for _, r := range excludes {
			if Matches(r, pub) {
				stats.Exclusions[r.Name]++
				excluded = true
				break
			}
		}
		if excluded {
			stats.Excluded++
			continue
		}

		key := pub.Key()
		if _, dup := seen[key]; dup {
			stats.Duplicates++
			continue
		}
		seen[key] = struct{}{}
		matched = append(matched, pub)
	}

	sort.Slice(matched, func(i, j int) bool {
		di, dj := matched[i].AvailableOn.Time, matched[j].AvailableOn.Time
		if !di.Equal(dj) {
			return di.Before(dj)
		}
		return matched[i].Key() < matched[j].Key()
	})

	return matched, stats
}

// Matches reports whether every populated criterion of the rule holds for the
// publication. Unset criteria are wildcards.
func Matches(r model.SearchRule, pub model.Publication) bool {
	c := r.Criteria

	if c.OABNumber != "" || c.OABState != "" {
		if !matchesRegistration(pub, c.OABNumber, c.OABState) {
			return false
		}
	}
	if c.LawyerName != "" && !matchesLawyerName(pub, c.LawyerName) {
		return false
	}
	if c.PartyName != "" && !matchesPartyName(pub, c.PartyName) {
		return false
	}
	if c.ProcessNumber != "" && !containsFold(pub.MaskedProcessNumber, c.ProcessNumber) {
		return false
	}
	if c.TribunalCode != "" && !strings.EqualFold(pub.TribunalCode, c.TribunalCode) {
		return false
	}
	if c.DocumentType != "" && !strings.EqualFold(pub.DocumentType, c.DocumentType) {
		return false
	}
	if c.ClassName != "" && !strings.EqualFold(pub.ClassName, c.ClassName) {
		return false
	}
	if c.BodyName != "" && !containsFold(pub.BodyName, c.BodyName) {
		return false
	}
	if c.StartDate != nil {
		if pub.AvailableOn.IsZero() || pub.AvailableOn.BeforeDate(*c.StartDate) {
			return false
		}
	}
	return true
}

// matchesRegistration requires a single legal representative to satisfy both
// the number and the jurisdiction when both are set; a registration is a
// number/jurisdiction pair, not two independent fields.
func matchesRegistration(pub model.Publication, number, state string) bool {
	for _, ref := range pub.Lawyers {
		l := ref.Lawyer
		if number != "" && !strings.EqualFold(strings.TrimSpace(l.OABNumber.String()), strings.TrimSpace(number)) {
			continue
		}
		if state != "" && !strings.EqualFold(l.OABState, state) {
			continue
		}
		return true
	}
	return false
}

func matchesLawyerName(pub model.Publication, name string) bool {
	for _, ref := range pub.Lawyers {
		if containsFold(ref.Lawyer.Name, name) {
			return true
		}
	}
	return false
}

func matchesPartyName(pub model.Publication, name string) bool {
	for _, p := range pub.Parties {
		if containsFold(p.Name, name) {
			return true
		}
	}
	return false
}

func containsFold(haystack, needle string) bool {
	return strings.Contains(strings.ToLower(haystack), strings.ToLower(needle))
}
