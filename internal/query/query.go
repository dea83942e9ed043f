// Package query filters, sorts and paginates in-memory collections.
package query

import (
	"bytes"
	"sort"
	"strings"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/linkshift/redirector/internal/domain"
)

const (
	// DefaultLimit bounds page size when the caller gives none
	DefaultLimit = 50
	// MaxLimit bounds page size regardless of caller input
	MaxLimit = 500
)

// SortKey orders items. Text keys are compared with a case-insensitive
// collator; Compare is used when Text is nil.
type SortKey[T any] struct {
	Text    func(item *T) string
	Compare func(a, b *T) int
}

// Schema describes how one entity type is searched and sorted
type Schema[T any] struct {
	// Search returns the fields matched by the search term
	Search       func(item *T) []string
	Sorts        map[string]SortKey[T]
	DefaultSort  string
	DefaultOrder string
	// NaturalSort names the key the storage order already follows ascending.
	// Requests for it are paginated by index arithmetic without sorting.
	NaturalSort string
}

// Filter keeps items for which it returns true
type Filter[T any] func(item *T) bool

// Run returns one page of items after search, filters and sort.
// items is not modified.
func Run[T any](items []T, params domain.ListParams, schema Schema[T], filters ...Filter[T]) domain.Page[T] {
	page, limit := normalizePaging(params.Page, params.Limit)
	sortBy, desc := resolveSort(params, schema)

	filtered := items
	needle := strings.ToLower(strings.TrimSpace(params.Search))
	if needle != "" || len(filters) > 0 {
		filtered = make([]T, 0, len(items))
		for i := range items {
			if keep(&items[i], needle, schema.Search, filters) {
				filtered = append(filtered, items[i])
			}
		}
	}

	result := domain.Page[T]{
		Total:      len(filtered),
		TotalAll:   len(items),
		TotalPages: (len(filtered) + limit - 1) / limit,
		Page:       page,
		Limit:      limit,
	}

	start := min((page-1)*limit, len(filtered))
	end := min(start+limit, len(filtered))

	if sortBy == "" || sortBy == schema.NaturalSort {
		result.Items = naturalWindow(filtered, start, end, desc)
		return result
	}

	perm := sortedPermutation(filtered, schema.Sorts[sortBy], desc)
	result.Items = make([]T, 0, end-start)
	for _, i := range perm[start:end] {
		result.Items = append(result.Items, filtered[i])
	}
	return result
}

func normalizePaging(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	return page, limit
}

func resolveSort[T any](params domain.ListParams, schema Schema[T]) (string, bool) {
	sortBy := params.SortBy
	if _, ok := schema.Sorts[sortBy]; !ok && (sortBy == "" || sortBy != schema.NaturalSort) {
		sortBy = schema.DefaultSort
	}
	order := strings.ToLower(params.SortOrder)
	if order != domain.SortAsc && order != domain.SortDesc {
		order = schema.DefaultOrder
	}
	return sortBy, order == domain.SortDesc
}

func keep[T any](item *T, needle string, search func(*T) []string, filters []Filter[T]) bool {
	for _, f := range filters {
		if !f(item) {
			return false
		}
	}
	if needle == "" {
		return true
	}
	if search == nil {
		return false
	}
	for _, field := range search(item) {
		if strings.Contains(strings.ToLower(field), needle) {
			return true
		}
	}
	return false
}

// naturalWindow copies positions [start, end) of items in storage order,
// or of its reverse when desc is set, without touching the rest
func naturalWindow[T any](items []T, start, end int, desc bool) []T {
	out := make([]T, 0, end-start)
	if !desc {
		return append(out, items[start:end]...)
	}
	n := len(items)
	out = append(out, items[n-end:n-start]...)
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out
}

// sortedPermutation returns item positions in sorted order. Ties keep input order.
func sortedPermutation[T any](items []T, key SortKey[T], desc bool) []int {
	perm := make([]int, len(items))
	for i := range perm {
		perm[i] = i
	}

	var cmp func(a, b int) int
	switch {
	case key.Text != nil:
		col := collate.New(language.Und, collate.IgnoreCase, collate.Numeric)
		var buf collate.Buffer
		keys := make([][]byte, len(items))
		for i := range items {
			keys[i] = col.KeyFromString(&buf, key.Text(&items[i]))
		}
		cmp = func(a, b int) int { return bytes.Compare(keys[a], keys[b]) }
	case key.Compare != nil:
		cmp = func(a, b int) int { return key.Compare(&items[a], &items[b]) }
	default:
		return perm
	}

	sort.SliceStable(perm, func(i, j int) bool {
		c := cmp(perm[i], perm[j])
		if desc {
			return c > 0
		}
		return c < 0
	})
	return perm
}
