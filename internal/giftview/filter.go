package giftview

import (
	"cmp"
	"slices"
)

// Filter selects which items are shown by aggregate purchase state.
type Filter string

const (
	FilterAll         Filter = "all"
	FilterUnpurchased Filter = "unpurchased"
	FilterPurchased   Filter = "purchased"
)

// ParseFilter maps a form value to a Filter. Unknown values mean FilterAll.
func ParseFilter(s string) Filter {
	switch Filter(s) {
	case FilterUnpurchased, FilterPurchased:
		return Filter(s)
	default:
		return FilterAll
	}
}

// Match reports whether v passes the filter.
func (f Filter) Match(v *ItemView) bool {
	switch f {
	case FilterUnpurchased:
		return !v.Purchased
	case FilterPurchased:
		return v.Purchased
	default:
		return true
	}
}

// Apply returns the views passing the filter, in their original order.
func (f Filter) Apply(views []ItemView) []ItemView {
	out := make([]ItemView, 0, len(views))
	for i := range views {
		if f.Match(&views[i]) {
			out = append(out, views[i])
		}
	}
	return out
}

// SortUnpurchasedFirst stable-partitions views in place so every unpurchased
// item precedes every purchased one.
func SortUnpurchasedFirst(views []ItemView) {
	slices.SortStableFunc(views, func(a, b ItemView) int {
		return cmp.Compare(rank(a.Purchased), rank(b.Purchased))
	})
}

func rank(purchased bool) int {
	if purchased {
		return 1
	}
	return 0
}
