package view

import (
	"cmp"
	"slices"
	"strings"
)

// Offset converts a zero-based page index and page size into the skip/limit
// pair sent to paged endpoints.
func Offset(page, size int) (skip, limit int) {
	if page < 0 {
		page = 0
	}
	if size <= 0 {
		return 0, 0
	}
	return page * size, size
}

// PageCount returns how many pages of size hold total items.
func PageCount(total, size int) int {
	if total <= 0 || size <= 0 {
		return 0
	}
	return (total + size - 1) / size
}

// Slice returns page (zero-based) of an already-fetched slice. Out of range
// pages are empty; size <= 0 returns everything.
func Slice[T any](items []T, page, size int) []T {
	if size <= 0 {
		return items
	}
	skip, _ := Offset(page, size)
	if skip >= len(items) {
		return nil
	}
	end := min(skip+size, len(items))
	return items[skip:end]
}

// Filter returns the items for which keep reports true.
func Filter[T any](items []T, keep func(T) bool) []T {
	out := make([]T, 0, len(items))
	for _, it := range items {
		if keep(it) {
			out = append(out, it)
		}
	}
	return out
}

// SortBy returns a stably sorted copy of items ordered by key.
func SortBy[T any, K cmp.Ordered](items []T, key func(T) K, desc bool) []T {
	out := slices.Clone(items)
	slices.SortStableFunc(out, func(a, b T) int {
		c := cmp.Compare(key(a), key(b))
		if desc {
			return -c
		}
		return c
	})
	return out
}

// ContainsFold reports whether any of fields contains query, ignoring case.
// An empty query matches everything.
func ContainsFold(query string, fields ...string) bool {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return true
	}
	for _, f := range fields {
		if strings.Contains(strings.ToLower(f), q) {
			return true
		}
	}
	return false
}
