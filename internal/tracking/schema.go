package tracking

import (
	"cmp"

	"github.com/linkshift/redirector/internal/domain"
	"github.com/linkshift/redirector/internal/query"
)

// EntrySchema drives search and sorting of tracking entries. The log is
// appended in timestamp order, so timestamp pages never sort the collection.
var EntrySchema = query.Schema[domain.TrackingEntry]{
	Search: func(e *domain.TrackingEntry) []string {
		return []string{e.OldURL, e.NewURL, e.Path, e.UserAgent}
	},
	Sorts: map[string]query.SortKey[domain.TrackingEntry]{
		"oldUrl":    {Text: func(e *domain.TrackingEntry) string { return e.OldURL }},
		"newUrl":    {Text: func(e *domain.TrackingEntry) string { return e.NewURL }},
		"path":      {Text: func(e *domain.TrackingEntry) string { return e.Path }},
		"userAgent": {Text: func(e *domain.TrackingEntry) string { return e.UserAgent }},
		"matchQuality": {Compare: func(a, b *domain.TrackingEntry) int {
			return cmp.Compare(a.MatchQuality, b.MatchQuality)
		}},
	},
	DefaultSort:  "timestamp",
	DefaultOrder: domain.SortDesc,
	NaturalSort:  "timestamp",
}

// URLCountSchema drives sorting of the top URL view. Equal counts keep
// the order in which paths were first seen.
var URLCountSchema = query.Schema[domain.URLCount]{
	Search: func(u *domain.URLCount) []string { return []string{u.Path} },
	Sorts: map[string]query.SortKey[domain.URLCount]{
		"count": {Compare: func(a, b *domain.URLCount) int { return cmp.Compare(a.Count, b.Count) }},
		"path":  {Text: func(u *domain.URLCount) string { return u.Path }},
	},
	DefaultSort:  "count",
	DefaultOrder: domain.SortDesc,
}
