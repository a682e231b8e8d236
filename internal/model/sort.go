package model

import "sort"

// SortResults orders fetched results into their natural collection sequence.
//
// Results are compared by OrderKey. Ties, which happen when a track number
// collides with another item's position, are broken by Position and then
// by ItemID so the outcome never depends on completion order.
// Results with a zero Position are assigned their index in rs (1-based)
// before sorting.
func SortResults(rs []*ItemResult) {
	for i, r := range rs {
		if r.Position == 0 {
			r.Position = i + 1
		}
	}
	sort.SliceStable(rs, func(i, j int) bool {
		a, b := rs[i], rs[j]
		if ka, kb := a.OrderKey(), b.OrderKey(); ka != kb {
			return ka < kb
		}
		if a.Position != b.Position {
			return a.Position < b.Position
		}
		return a.ItemID < b.ItemID
	})
}
