package listing

import (
	"cmp"
	"slices"
	"strconv"
	"strings"

	"github.com/TemirB/freight-portal/internal/domain"
)

// ExtractNumber strips every non-digit from s and parses the rest.
// Anything that does not parse (empty, overflow) counts as 0.
func ExtractNumber(s string) int64 {
	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, s)
	n, err := strconv.ParseInt(digits, 10, 64)
	if err != nil {
		return 0
	}
	return n
}

// SortByNumberDesc orders items by descending ExtractNumber(ItemNumber()).
// Equal numbers keep their relative order.
func SortByNumberDesc[T domain.ListItem](items []T) {
	slices.SortStableFunc(items, func(a, b T) int {
		return cmp.Compare(ExtractNumber(b.ItemNumber()), ExtractNumber(a.ItemNumber()))
	})
}

// merge appends incoming to existing, replacing items whose key is already
// present, and re-sorts the whole result. existing is not modified.
func merge[T domain.ListItem](existing, incoming []T) []T {
	out := make([]T, 0, len(existing)+len(incoming))
	out = append(out, existing...)

	idx := make(map[string]int, len(out))
	for i, it := range out {
		idx[it.ItemKey()] = i
	}
	for _, it := range incoming {
		k := it.ItemKey()
		if i, ok := idx[k]; ok {
			out[i] = it
			continue
		}
		idx[k] = len(out)
		out = append(out, it)
	}

	SortByNumberDesc(out)
	return out
}
