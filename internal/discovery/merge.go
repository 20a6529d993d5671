package discovery

import (
	"github.com/felixgeelhaar/pomgen/internal/domain"
	"github.com/felixgeelhaar/pomgen/internal/naming"
)

// MergeResult summarizes a merge.
type MergeResult struct {
	Descriptors []domain.ElementDescriptor
	Added       int
	Updated     int
}

// suffixedMatch finds a descriptor of the same role that an earlier
// merge stored under a suffixed name because d's name was taken.
// Descriptors already matched in this merge are skipped.
func suffixedMatch(existing []domain.ElementDescriptor, d domain.ElementDescriptor, matched map[int]bool) (int, bool) {
	k := naming.Key(d.SuggestedName)
	for i, e := range existing {
		if matched[i] || e.Role != d.Role || e.DisambiguatedFrom == "" {
			continue
		}
		if naming.Key(e.DisambiguatedFrom) == k {
			return i, true
		}
	}
	return 0, false
}

// Merge folds incoming descriptors into existing ones. An incoming
// descriptor with the same role and name as an existing one replaces its
// locator in place, so the generated method keeps its name; anything
// else is appended under a name no existing descriptor uses. Existing
// descriptors are never removed.
func Merge(existing, incoming []domain.ElementDescriptor) MergeResult {
	type key struct {
		role domain.Role
		name string
	}

	res := MergeResult{Descriptors: append([]domain.ElementDescriptor(nil), existing...)}
	index := make(map[key]int, len(existing))
	taken := make(map[string]bool, len(existing))
	matched := make(map[int]bool, len(incoming))
	for i, d := range existing {
		index[key{d.Role, naming.Key(d.SuggestedName)}] = i
		taken[naming.Key(d.SuggestedName)] = true
	}

	for _, d := range incoming {
		k := key{d.Role, naming.Key(d.SuggestedName)}
		i, ok := index[k]
		if !ok {
			i, ok = suffixedMatch(res.Descriptors, d, matched)
		}
		if ok {
			matched[i] = true
			cur := res.Descriptors[i]
			if cur.Strategy != d.Strategy || cur.Value != d.Value {
				cur.Strategy, cur.Value = d.Strategy, d.Value
				res.Descriptors[i] = cur
				res.Updated++
			}
			continue
		}
		if name := uniqueName(d.SuggestedName, taken); name != d.SuggestedName {
			d.DisambiguatedFrom, d.SuggestedName = d.SuggestedName, name
		}
		taken[naming.Key(d.SuggestedName)] = true
		index[key{d.Role, naming.Key(d.SuggestedName)}] = len(res.Descriptors)
		res.Descriptors = append(res.Descriptors, d)
		res.Added++
	}
	return res
}
