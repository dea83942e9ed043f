package matcher

import (
	"cmp"
	"context"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/linkshift/redirector/internal/domain"
	"github.com/linkshift/redirector/internal/preprocess"
)

// Options carries the settings that shape a decision
type Options struct {
	// Base URL for root, no-match and relative targets
	DefaultDomain string
	// Used when the winning rule does not set its own value
	AutoRedirect bool
}

// OptionsFrom projects resolver options from settings
func OptionsFrom(s domain.Settings) Options {
	return Options{DefaultDomain: s.DefaultNewDomain, AutoRedirect: s.AutoRedirect}
}

// Match tiers, higher wins
const (
	tierHost   = 1
	tierPrefix = 2
	tierExact  = 3
)

// Quality scores
const (
	qualityNormalized  = 95
	qualityExtraParams = 75
	qualityHostOnly    = 90
	qualityPrefixFloor = 10
	qualityPrefixSpan  = 49
)

// ctxCheckInterval is the number of rules scanned between cancellation checks
const ctxCheckInterval = 1024

type candidate struct {
	rule  *domain.MatchableRule
	index int
	tier  int
	// runes of the normalized request path covered by the matcher
	consumed int
	query    bool
}

// Resolve picks the most specific rule matching requestURL and builds the
// decision for it. rules must have been derived under cfg.
//
// Candidates are ordered by: match tier (exact path, then prefix or glob,
// then host only), longer literal prefix, more path segments, a satisfied
// query constraint, literal over glob, newer creation time, and finally
// later position in the rule list. Rules sharing one matcher therefore
// resolve to the most recently created one.
func Resolve(ctx context.Context, requestURL string, rules []domain.MatchableRule, cfg domain.MatchingConfig, opts Options) (*domain.Decision, error) {
	raw := strings.TrimSpace(requestURL)
	if raw == "" {
		return nil, domain.NewAppError(domain.ErrInvalidInput, "Request URL is required", 400, map[string]any{"field": "url"})
	}
	req := preprocess.NormalizeRequest(raw, cfg)
	root := req.IsRoot()

	var candidates []candidate
	for i := range rules {
		if i%ctxCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return nil, domain.NewAppErrorWithCause(
					domain.ErrTimeout,
					"Resolve operation cancelled during matching",
					408,
					err,
					map[string]any{"url": raw, "processed_rules": i},
				).WithContext(ctx, "resolve")
			}
		}
		c, ok := matchRule(&rules[i], &req)
		if !ok {
			continue
		}
		// catch-all prefixes never claim the start page
		if root && c.tier == tierPrefix {
			continue
		}
		c.index = i
		candidates = append(candidates, c)
	}

	if len(candidates) == 0 {
		if root {
			return fallback(raw, domain.QualityExact, domain.BandRoot, opts), nil
		}
		return fallback(raw, 0, domain.BandNone, opts), nil
	}

	slices.SortFunc(candidates, compareCandidates)
	return decide(&req, candidates, opts), nil
}

func matchRule(m *domain.MatchableRule, req *preprocess.Request) (candidate, bool) {
	if m.IsDomainMatcher && req.Host == "" {
		return candidate{}, false
	}
	if m.Host != "" && req.Host != "" && m.Host != req.Host {
		return candidate{}, false
	}
	if len(m.QueryParams) > 0 && !containsParams(req.QueryParams, m.QueryParams) {
		return candidate{}, false
	}

	c := candidate{rule: m, query: len(m.QueryParams) > 0}
	if m.NormalizedPath == "" {
		c.tier = tierHost
		return c, true
	}

	path := req.NormalizedPath
	switch {
	case m.Pattern != nil:
		loc := m.Pattern.FindStringSubmatchIndex(path)
		if loc == nil {
			return candidate{}, false
		}
		c.tier = tierPrefix
		c.consumed = utf8.RuneCountInString(path[:loc[2]])
	case path == m.NormalizedPath:
		c.tier = tierExact
		c.consumed = utf8.RuneCountInString(path)
	case strings.HasPrefix(path, m.NormalizedPath) &&
		(strings.HasSuffix(m.NormalizedPath, "/") || path[len(m.NormalizedPath)] == '/'):
		c.tier = tierPrefix
		c.consumed = utf8.RuneCountInString(m.NormalizedPath)
	default:
		return candidate{}, false
	}
	return c, true
}

// containsParams reports whether every value required by want is present in have
func containsParams(have, want map[string][]string) bool {
	for k, values := range want {
		for _, v := range values {
			if !slices.Contains(have[k], v) {
				return false
			}
		}
	}
	return true
}

// compareCandidates orders the most specific candidate first
func compareCandidates(a, b candidate) int {
	if c := cmp.Compare(b.tier, a.tier); c != 0 {
		return c
	}
	if c := cmp.Compare(b.rule.LiteralLength, a.rule.LiteralLength); c != 0 {
		return c
	}
	if c := cmp.Compare(b.rule.Segments, a.rule.Segments); c != 0 {
		return c
	}
	if a.query != b.query {
		if a.query {
			return -1
		}
		return 1
	}
	if aGlob, bGlob := a.rule.Pattern != nil, b.rule.Pattern != nil; aGlob != bGlob {
		if bGlob {
			return -1
		}
		return 1
	}
	if c := b.rule.CreatedAt.Compare(a.rule.CreatedAt); c != 0 {
		return c
	}
	return cmp.Compare(b.index, a.index)
}

func fallback(raw string, quality int, band domain.QualityBand, opts Options) *domain.Decision {
	return &domain.Decision{
		RequestURL:   raw,
		TargetURL:    opts.DefaultDomain,
		Quality:      quality,
		Band:         band,
		RuleIDs:      []string{},
		AutoRedirect: opts.AutoRedirect,
	}
}

func decide(req *preprocess.Request, candidates []candidate, opts Options) *domain.Decision {
	best := candidates[0]
	m := best.rule

	ids := make([]string, len(candidates))
	for i := range candidates {
		ids[i] = candidates[i].rule.ID
	}

	quality := score(req, best)
	rule := m.Clean()
	d := &domain.Decision{
		RequestURL:   req.Raw,
		Quality:      quality,
		Band:         domain.BandFor(quality),
		Rule:         &rule,
		RuleIDs:      ids,
		AutoRedirect: opts.AutoRedirect,
		InfoText:     m.InfoText,
	}
	if m.AutoRedirect != nil {
		d.AutoRedirect = *m.AutoRedirect
	}

	switch m.RedirectType {
	case domain.RedirectWildcard:
		d.TargetURL = absolute(m.NormalizedTarget, opts.DefaultDomain)
		d.ParameterPolicy = domain.ParamsDrop
		if m.ForwardsQuery() {
			d.ParameterPolicy = domain.ParamsForward
			d.TargetURL = appendQuery(d.TargetURL, req.RawQuery)
		}
	case domain.RedirectDomain:
		d.TargetURL = swapHost(req, m.NormalizedTarget, opts.DefaultDomain)
		d.ParameterPolicy = keepOrDiscard(m, req, &d.TargetURL)
		d.TargetURL = appendFragment(d.TargetURL, req.Fragment)
	default:
		base := absolute(m.NormalizedTarget, opts.DefaultDomain)
		d.TargetURL = joinPath(base, req.Remainder(best.consumed))
		d.ParameterPolicy = keepOrDiscard(m, req, &d.TargetURL)
		d.TargetURL = appendFragment(d.TargetURL, req.Fragment)
	}
	return d
}

func score(req *preprocess.Request, c candidate) int {
	m := c.rule
	switch c.tier {
	case tierHost:
		return qualityHostOnly
	case tierExact:
		if req.NormalizedQuery != m.NormalizedQuery {
			return qualityExtraParams
		}
		parts := preprocess.SplitMatcher(m.Rule)
		if preprocess.CollapseSlashes(parts.Path) == req.Path && parts.Query == req.RawQuery {
			return domain.QualityExact
		}
		return qualityNormalized
	default:
		pathRunes := max(utf8.RuneCountInString(req.NormalizedPath), 1)
		literal := min(m.LiteralLength, pathRunes)
		return qualityPrefixFloor + qualityPrefixSpan*literal/pathRunes
	}
}

func keepOrDiscard(m *domain.MatchableRule, req *preprocess.Request, target *string) domain.ParameterPolicy {
	if m.DiscardsQuery() {
		return domain.ParamsDiscard
	}
	*target = appendQuery(*target, req.RawQuery)
	return domain.ParamsKeep
}

// absolute resolves a relative target against base
func absolute(target, base string) string {
	if target == "" {
		return base
	}
	if strings.Contains(target, "://") || strings.HasPrefix(target, "//") {
		return target
	}
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(target, "/")
}

// joinPath appends remainder to the path of base, ahead of any query or fragment in base
func joinPath(base, remainder string) string {
	if remainder == "" || remainder == "/" && strings.HasSuffix(base, "/") {
		return base
	}
	head, tail := base, ""
	if i := strings.IndexAny(base, "?#"); i >= 0 {
		head, tail = base[:i], base[i:]
	}
	return strings.TrimRight(head, "/") + "/" + strings.TrimLeft(remainder, "/") + tail
}

func appendQuery(u, query string) string {
	if query == "" {
		return u
	}
	frag := ""
	if i := strings.IndexByte(u, '#'); i >= 0 {
		u, frag = u[:i], u[i:]
	}
	sep := "?"
	if strings.Contains(u, "?") {
		sep = "&"
	}
	return u + sep + query + frag
}

func appendFragment(u, fragment string) string {
	if fragment == "" || strings.Contains(u, "#") {
		return u
	}
	return u + "#" + fragment
}

// swapHost rebuilds the request URL on the host named by target, or by the
// default domain when target has none
func swapHost(req *preprocess.Request, target, defaultDomain string) string {
	dest := preprocess.SplitURL(target, true)
	if dest.Host == "" {
		dest = preprocess.SplitURL(defaultDomain, true)
	}
	scheme := dest.Scheme
	if scheme == "" {
		scheme = req.Scheme
	}
	if scheme == "" {
		scheme = "https"
	}
	return scheme + "://" + dest.Host + req.Path
}
