package rulecache

import (
	"github.com/linkshift/redirector/internal/domain"
	"github.com/linkshift/redirector/internal/query"
)

// RuleSchema drives search and sorting of the rule list
var RuleSchema = query.Schema[domain.Rule]{
	Search: func(r *domain.Rule) []string {
		return []string{r.Matcher, r.TargetURL, r.InfoText, string(r.RedirectType)}
	},
	Sorts: map[string]query.SortKey[domain.Rule]{
		"matcher":      {Text: func(r *domain.Rule) string { return r.Matcher }},
		"targetUrl":    {Text: func(r *domain.Rule) string { return r.TargetURL }},
		"redirectType": {Text: func(r *domain.Rule) string { return string(r.RedirectType) }},
		"createdAt":    {Compare: func(a, b *domain.Rule) int { return a.CreatedAt.Compare(b.CreatedAt) }},
	},
	DefaultSort:  "createdAt",
	DefaultOrder: domain.SortDesc,
}
