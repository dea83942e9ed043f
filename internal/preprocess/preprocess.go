// Package preprocess derives matchable rules from persisted rules.
//
// Everything here is a pure function of its arguments: the same rule and
// matching configuration always produce the same derived fields, so the rule
// cache can rebuild any subset of rules at any time without observable drift.
package preprocess

import (
	"net/url"
	"regexp"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/linkshift/redirector/internal/domain"
)

// Preprocess derives the matchable form of rule under cfg
func Preprocess(rule domain.Rule, cfg domain.MatchingConfig) domain.MatchableRule {
	m := domain.MatchableRule{
		Rule:             rule,
		NormalizedTarget: strings.TrimSpace(rule.TargetURL),
		ConfigVersion:    cfg.Version,
	}

	parts := SplitMatcher(rule)
	m.Host = parts.Host

	if parts.Path != "" || parts.Host == "" {
		m.NormalizedPath = NormalizePath(CollapseSlashes(parts.Path), cfg)
	}
	// host with a bare root path constrains the host only
	if m.Host != "" && m.NormalizedPath == "/" {
		m.NormalizedPath = ""
	}

	m.QueryParams = NormalizeQuery(parts.Query, cfg)
	m.NormalizedQuery = EncodeQuery(m.QueryParams)

	if strings.Contains(m.NormalizedPath, "*") {
		m.Pattern = compileGlob(m.NormalizedPath)
		m.LiteralLength = utf8.RuneCountInString(m.NormalizedPath[:strings.Index(m.NormalizedPath, "*")])
	} else {
		m.LiteralLength = utf8.RuneCountInString(m.NormalizedPath)
	}
	m.Segments = countSegments(m.NormalizedPath)
	m.IsDomainMatcher = rule.RedirectType == domain.RedirectDomain && m.Host != ""

	return m
}

// SplitMatcher splits a rule's matcher into host, path and query
func SplitMatcher(rule domain.Rule) URLParts {
	return SplitURL(strings.TrimSpace(rule.Matcher), matcherMayBeHost(rule))
}

// PreprocessAll derives every rule in rules under cfg
func PreprocessAll(rules []domain.Rule, cfg domain.MatchingConfig) []domain.MatchableRule {
	out := make([]domain.MatchableRule, len(rules))
	for i := range rules {
		out[i] = Preprocess(rules[i], cfg)
	}
	return out
}

// matcherMayBeHost reports whether a matcher without scheme or leading slash
// should be read as a host. Domain rules always are; other rules only when
// the first segment looks like a hostname.
func matcherMayBeHost(rule domain.Rule) bool {
	m := strings.TrimSpace(rule.Matcher)
	if m == "" || strings.HasPrefix(m, "/") {
		return false
	}
	if rule.RedirectType == domain.RedirectDomain {
		return true
	}
	first, _, _ := strings.Cut(m, "/")
	first, _, _ = strings.Cut(first, "?")
	return strings.Contains(first, ".") && !strings.Contains(first, "*")
}

// CollapseSlashes ensures a leading slash and collapses runs of slashes
func CollapseSlashes(p string) string {
	if p == "" {
		return "/"
	}
	var b strings.Builder
	b.Grow(len(p) + 1)
	if p[0] != '/' {
		b.WriteByte('/')
	}
	prevSlash := false
	for i := 0; i < len(p); i++ {
		c := p[i]
		if c == '/' {
			if prevSlash {
				continue
			}
			prevSlash = true
		} else {
			prevSlash = false
		}
		b.WriteByte(c)
	}
	return b.String()
}

// NormalizePath case-folds and applies the trailing slash policy to a
// collapsed path. Folding maps rune to rune, so rune offsets into the result
// are valid rune offsets into the input.
func NormalizePath(p string, cfg domain.MatchingConfig) string {
	if !cfg.CaseSensitivePath {
		p = strings.Map(unicode.ToLower, p)
	}
	if cfg.TrailingSlashPolicy != domain.TrailingSlashStrict && len(p) > 1 {
		p = strings.TrimRight(p, "/")
		if p == "" {
			p = "/"
		}
	}
	return p
}

// NormalizeQuery parses a raw query string, folding keys and values unless
// the query is case sensitive. Values of each key are sorted.
func NormalizeQuery(rawQuery string, cfg domain.MatchingConfig) map[string][]string {
	if rawQuery == "" {
		return nil
	}
	values, err := url.ParseQuery(rawQuery)
	if err != nil && len(values) == 0 {
		return nil
	}
	out := make(map[string][]string, len(values))
	for k, vs := range values {
		if k == "" {
			continue
		}
		if !cfg.CaseSensitiveQuery {
			k = strings.ToLower(k)
		}
		for _, v := range vs {
			if !cfg.CaseSensitiveQuery {
				v = strings.ToLower(v)
			}
			out[k] = append(out[k], v)
		}
	}
	for k := range out {
		sort.Strings(out[k])
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// EncodeQuery renders normalized params in canonical key-sorted form
func EncodeQuery(params map[string][]string) string {
	if len(params) == 0 {
		return ""
	}
	return url.Values(params).Encode()
}

// compileGlob turns a normalized path containing '*' into a regexp anchored
// at the start. The single capture group marks the segment boundary after
// the match so callers can locate the end of the matched prefix.
func compileGlob(p string) *regexp.Regexp {
	pieces := strings.Split(p, "*")
	for i := range pieces {
		pieces[i] = regexp.QuoteMeta(pieces[i])
	}
	return regexp.MustCompile("^" + strings.Join(pieces, ".*") + "(/|$)")
}

func countSegments(p string) int {
	n := 0
	for _, s := range strings.Split(p, "/") {
		if s != "" {
			n++
		}
	}
	return n
}
