// Package aggregate folds validation outcomes into summary counts for the
// reporting layer.
//
// The fold is a pure, stateless reduction with no knowledge of cache or
// network: the same Summary shape is produced whether outcomes came from a
// live run or were reconstructed from cache alone. Counting is commutative,
// so permuting the outcome order never changes the result.
package aggregate

import "github.com/fedtools/fedcheck/internal/model"

// CountMode decides how a URL shared by entities in different federations
// is counted.
//
// Federation operators disagree on this: some want "how many of my
// entities point at a working policy" (per owner), others want "how many
// distinct policy documents are broken" (unique URL). The engine makes it
// a knob instead of guessing.
type CountMode int

const (
	// CountPerOwner counts every outcome: a shared URL contributes once
	// per owning entity, in each owning federation. This is the default
	// because compliance statistics are usually quoted per entity.
	CountPerOwner CountMode = iota

	// CountUniqueURL counts each URL once per federation and once in the
	// totals, regardless of how many entities share it.
	CountUniqueURL
)

// Fold reduces outcomes into a Summary using the given counting mode.
//
// Outcomes for the same URL always carry the same reachability (a URL is
// probed at most once per run), so under CountUniqueURL the result is
// independent of which occurrence is counted first.
func Fold(outcomes []model.ValidationOutcome, mode CountMode) model.Summary {
	s := model.Summary{ByFederation: make(map[string]model.GroupCount)}

	seen := make(map[string]bool)
	seenByGroup := make(map[string]map[string]bool)

	for _, o := range outcomes {
		if mode == CountUniqueURL {
			if !seen[o.Target.URL] {
				seen[o.Target.URL] = true
				count(&s, o)
			}

			group := seenByGroup[o.Target.Federation]
			if group == nil {
				group = make(map[string]bool)
				seenByGroup[o.Target.Federation] = group
			}
			if !group[o.Target.URL] {
				group[o.Target.URL] = true
				countGroup(&s, o)
			}
			continue
		}

		count(&s, o)
		countGroup(&s, o)
	}

	return s
}

// count updates the top-level tallies with one outcome.
func count(s *model.Summary, o model.ValidationOutcome) {
	s.Total++
	if o.Accessible {
		s.Accessible++
	} else {
		s.Broken++
	}
	if o.FromCache {
		s.FromCache++
	}
}

// countGroup updates the per-federation tallies with one outcome.
func countGroup(s *model.Summary, o model.ValidationOutcome) {
	gc := s.ByFederation[o.Target.Federation]
	gc.Total++
	if o.Accessible {
		gc.Accessible++
	} else {
		gc.Broken++
	}
	s.ByFederation[o.Target.Federation] = gc
}
