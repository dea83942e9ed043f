package matcher

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/linkshift/redirector/internal/domain"
	"github.com/linkshift/redirector/internal/preprocess"
)

var (
	defaultCfg  = domain.DefaultMatchingConfig()
	defaultOpts = Options{DefaultDomain: "https://new.example.com/"}
	epoch       = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
)

func partial(id, matcher, target string) domain.Rule {
	r := domain.Rule{ID: id, Matcher: matcher, TargetURL: target, RedirectType: domain.RedirectPartial, CreatedAt: epoch}
	domain.SanitizeFlags(&r)
	return r
}

func withType(r domain.Rule, t domain.RedirectType) domain.Rule {
	r.RedirectType = t
	r.DiscardQueryParams, r.ForwardQueryParams = nil, nil
	domain.SanitizeFlags(&r)
	return r
}

func derive(cfg domain.MatchingConfig, rules ...domain.Rule) []domain.MatchableRule {
	return preprocess.PreprocessAll(rules, cfg)
}

func resolve(t *testing.T, url string, rules ...domain.Rule) *domain.Decision {
	t.Helper()
	d, err := Resolve(context.Background(), url, derive(defaultCfg, rules...), defaultCfg, defaultOpts)
	require.NoError(t, err)
	return d
}

func TestResolve_RootAndNoMatch(t *testing.T) {
	for _, url := range []string{"/", "https://old.example.com/", "https://old.example.com", "//"} {
		d := resolve(t, url, partial("a", "/old", "/new"))
		assert.Equal(t, domain.BandRoot, d.Band, url)
		assert.Equal(t, 100, d.Quality, url)
		assert.Equal(t, "https://new.example.com/", d.TargetURL, url)
		assert.Empty(t, d.RuleIDs, url)
		assert.Nil(t, d.Rule, url)
	}

	d := resolve(t, "/unknown/page", partial("a", "/old", "/new"))
	assert.Equal(t, domain.BandNone, d.Band)
	assert.Equal(t, 0, d.Quality)
	assert.Equal(t, "https://new.example.com/", d.TargetURL)
	assert.NotNil(t, d.RuleIDs)
}

func TestResolve_EmptyURL(t *testing.T) {
	_, err := Resolve(context.Background(), "  ", nil, defaultCfg, defaultOpts)
	require.Error(t, err)
	appErr, ok := domain.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, domain.ErrInvalidInput, appErr.Code)
}

func TestResolve_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Resolve(ctx, "/old", derive(defaultCfg, partial("a", "/old", "/new")), defaultCfg, defaultOpts)
	assert.True(t, domain.IsTimeout(err))
}

func TestResolve_ExactQualities(t *testing.T) {
	rule := partial("a", "/old", "/new")

	tests := []struct {
		url     string
		quality int
		band    domain.QualityBand
		target  string
	}{
		{"/old", 100, domain.BandHigh, "https://new.example.com/new"},
		{"https://old.example.com/old", 100, domain.BandHigh, "https://new.example.com/new"},
		{"/OLD", 95, domain.BandHigh, "https://new.example.com/new"},
		{"/old/", 95, domain.BandHigh, "https://new.example.com/new/"},
		{"/old?x=1", 75, domain.BandMedium, "https://new.example.com/new?x=1"},
	}
	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			d := resolve(t, tt.url, rule)
			assert.Equal(t, tt.quality, d.Quality)
			assert.Equal(t, tt.band, d.Band)
			assert.Equal(t, tt.target, d.TargetURL)
			assert.Equal(t, "a", d.RuleID())
		})
	}
}

func TestResolve_PartialKeepsRemainderQueryAndFragment(t *testing.T) {
	d := resolve(t, "/news/2024/Item?page=2#comments", partial("a", "/news", "/articles"))

	assert.Equal(t, "https://new.example.com/articles/2024/Item?page=2#comments", d.TargetURL)
	assert.Equal(t, domain.ParamsKeep, d.ParameterPolicy)
	// 10 + 49*5/15
	assert.Equal(t, 26, d.Quality)
	assert.Equal(t, domain.BandLow, d.Band)
}

func TestResolve_PartialDiscardQuery(t *testing.T) {
	rule := partial("a", "/news", "https://blog.example.com/posts?src=legacy")
	rule.DiscardQueryParams = domain.Bool(true)

	d := resolve(t, "/news/1?page=2#top", rule)
	assert.Equal(t, "https://blog.example.com/posts/1?src=legacy#top", d.TargetURL)
	assert.Equal(t, domain.ParamsDiscard, d.ParameterPolicy)
}

func TestResolve_PrefixRespectsSegmentBoundary(t *testing.T) {
	d := resolve(t, "/newsletter", partial("a", "/news", "/articles"))
	assert.Equal(t, domain.BandNone, d.Band)
}

func TestResolve_WildcardQueryHandling(t *testing.T) {
	rule := withType(partial("a", "/shop", "https://shop.example.com/"), domain.RedirectWildcard)

	d := resolve(t, "/shop/item?id=3#reviews", rule)
	assert.Equal(t, "https://shop.example.com/", d.TargetURL)
	assert.Equal(t, domain.ParamsDrop, d.ParameterPolicy)

	rule.ForwardQueryParams = domain.Bool(true)
	d = resolve(t, "/shop/item?id=3#reviews", rule)
	assert.Equal(t, "https://shop.example.com/?id=3", d.TargetURL)
	assert.Equal(t, domain.ParamsForward, d.ParameterPolicy)
}

func TestResolve_RelativeTargets(t *testing.T) {
	opts := Options{DefaultDomain: "https://new.example.com"}
	rules := derive(defaultCfg, withType(partial("a", "/help", "support/faq"), domain.RedirectWildcard))

	d, err := Resolve(context.Background(), "/help", rules, defaultCfg, opts)
	require.NoError(t, err)
	assert.Equal(t, "https://new.example.com/support/faq", d.TargetURL)
}

func TestResolve_DomainRules(t *testing.T) {
	rule := withType(partial("a", "old.example.com", "https://new.example.org"), domain.RedirectDomain)

	d := resolve(t, "https://old.example.com/path/A?q=1#f", rule)
	assert.Equal(t, "https://new.example.org/path/A?q=1#f", d.TargetURL)
	assert.Equal(t, 90, d.Quality)
	assert.Equal(t, domain.BandHigh, d.Band)
	assert.Equal(t, domain.ParamsKeep, d.ParameterPolicy)

	// host-only matches also claim the start page of that host
	d = resolve(t, "https://OLD.example.com/", rule)
	assert.Equal(t, "https://new.example.org/", d.TargetURL)
	assert.Equal(t, "a", d.RuleID())

	// other hosts and host-less requests do not match
	d = resolve(t, "https://other.example.com/path", rule)
	assert.Equal(t, domain.BandNone, d.Band)
	d = resolve(t, "/path", rule)
	assert.Equal(t, domain.BandNone, d.Band)

	rule.DiscardQueryParams = domain.Bool(true)
	rule.TargetURL = ""
	d = resolve(t, "http://old.example.com/x?q=1", rule)
	assert.Equal(t, "https://new.example.com/x", d.TargetURL)
	assert.Equal(t, domain.ParamsDiscard, d.ParameterPolicy)
}

func TestResolve_LongerPrefixWins(t *testing.T) {
	news := partial("news", "/news", "/a")
	sub := partial("sub", "/news/sub", "/b")

	d := resolve(t, "/news/sub/x", news, sub)
	assert.Equal(t, "sub", d.RuleID())
	assert.Equal(t, []string{"sub", "news"}, d.RuleIDs)
	assert.Equal(t, "https://new.example.com/b/x", d.TargetURL)

	d = resolve(t, "/news/other", news, sub)
	assert.Equal(t, "news", d.RuleID())
	assert.Equal(t, []string{"news"}, d.RuleIDs)
}

func TestResolve_ExactBeatsPrefixAndGlob(t *testing.T) {
	exact := partial("exact", "/a/b", "/exact")
	prefix := partial("prefix", "/a", "/prefix")
	glob := partial("glob", "/a/*", "/glob")

	d := resolve(t, "/a/b", prefix, glob, exact)
	assert.Equal(t, "exact", d.RuleID())
	assert.Equal(t, []string{"exact", "glob", "prefix"}, d.RuleIDs)
}

func TestResolve_Glob(t *testing.T) {
	d := resolve(t, "/blog/2020/post/7", partial("g", "/blog/*/post", "/p"))
	assert.Equal(t, "g", d.RuleID())
	assert.Equal(t, "https://new.example.com/p/7", d.TargetURL)
	assert.Equal(t, domain.BandLow, d.Band)
}

func TestResolve_QueryConstraint(t *testing.T) {
	plain := partial("plain", "/shop", "/all")
	filtered := partial("filtered", "/shop?cat=A", "/category-a")

	d := resolve(t, "/shop?cat=a", plain, filtered)
	assert.Equal(t, "filtered", d.RuleID())
	assert.Equal(t, 95, d.Quality)

	d = resolve(t, "/shop?cat=b", plain, filtered)
	assert.Equal(t, "plain", d.RuleID())
	assert.Equal(t, []string{"plain"}, d.RuleIDs)
}

func TestResolve_DuplicateMatchersPreferMostRecent(t *testing.T) {
	older := partial("older", "/old", "/first")
	newer := partial("newer", "/old", "/second")
	newer.CreatedAt = epoch.Add(time.Minute)

	d := resolve(t, "/old", newer, older)
	assert.Equal(t, "newer", d.RuleID())
	assert.Equal(t, []string{"newer", "older"}, d.RuleIDs)

	// identical timestamps fall back to list order, later wins
	newer.CreatedAt = epoch
	d = resolve(t, "/old", older, newer)
	assert.Equal(t, "newer", d.RuleID())
	d = resolve(t, "/old", newer, older)
	assert.Equal(t, "older", d.RuleID())
}

func TestResolve_AutoRedirectOverride(t *testing.T) {
	rule := partial("a", "/old", "/new")
	opts := Options{DefaultDomain: "https://new.example.com/", AutoRedirect: true}

	d, err := Resolve(context.Background(), "/old", derive(defaultCfg, rule), defaultCfg, opts)
	require.NoError(t, err)
	assert.True(t, d.AutoRedirect)

	rule.AutoRedirect = domain.Bool(false)
	d, err = Resolve(context.Background(), "/old", derive(defaultCfg, rule), defaultCfg, opts)
	require.NoError(t, err)
	assert.False(t, d.AutoRedirect)

	d, err = Resolve(context.Background(), "/", derive(defaultCfg, rule), defaultCfg, opts)
	require.NoError(t, err)
	assert.True(t, d.AutoRedirect)
}

func TestResolve_CaseSensitiveConfig(t *testing.T) {
	cfg := domain.MatchingConfig{CaseSensitivePath: true, TrailingSlashPolicy: domain.TrailingSlashStrict, Version: 2}
	rules := derive(cfg, partial("a", "/News", "/n"))

	d, err := Resolve(context.Background(), "/news", rules, cfg, defaultOpts)
	require.NoError(t, err)
	assert.Equal(t, domain.BandNone, d.Band)

	d, err = Resolve(context.Background(), "/News/", rules, cfg, defaultOpts)
	require.NoError(t, err)
	assert.Equal(t, "a", d.RuleID())
	assert.Equal(t, "https://new.example.com/n/", d.TargetURL)
}

func TestResolve_InfoTextAndCleanRule(t *testing.T) {
	rule := partial("a", "/old", "/new")
	rule.InfoText = "Moved during the relaunch"

	d := resolve(t, "/old", rule)
	assert.Equal(t, "Moved during the relaunch", d.InfoText)
	require.NotNil(t, d.Rule)
	assert.Equal(t, rule, *d.Rule)
}

// Feature: redirector, Property 3: decisions are well formed
func TestProperty_DecisionWellFormed(t *testing.T) {
	pool := []domain.Rule{
		partial("p1", "/news", "/articles"),
		partial("p2", "/news/sub", "https://other.example.com/x"),
		partial("p3", "/shop?cat=a", "/a"),
		partial("p4", "/blog/*", "/b"),
		withType(partial("w1", "/shop", "https://shop.example.com/"), domain.RedirectWildcard),
		withType(partial("d1", "old.example.com", "https://new.example.org"), domain.RedirectDomain),
		partial("p5", "/", "/home"),
	}
	for i := range pool {
		pool[i].CreatedAt = epoch.Add(time.Duration(i) * time.Second)
	}

	properties := gopter.NewProperties(nil)

	properties.Property("quality is bounded, band agrees with quality and the winner is a candidate", prop.ForAll(
		func(picks []bool, host string, path string, query string) bool {
			var rules []domain.Rule
			for i, pick := range picks {
				if pick && i < len(pool) {
					rules = append(rules, pool[i])
				}
			}
			url := host + path + query
			d, err := Resolve(context.Background(), url, derive(defaultCfg, rules...), defaultCfg, defaultOpts)
			if err != nil || d.TargetURL == "" || d.Quality < 0 || d.Quality > 100 {
				return false
			}
			switch d.Band {
			case domain.BandRoot:
				return d.Quality == 100 && d.Rule == nil
			case domain.BandNone:
				return d.Quality == 0 && d.Rule == nil && len(d.RuleIDs) == 0
			}
			return d.Band == domain.BandFor(d.Quality) && len(d.RuleIDs) > 0 && d.RuleIDs[0] == d.RuleID()
		},
		gen.SliceOfN(len(pool), gen.Bool()),
		gen.OneConstOf("", "https://old.example.com", "http://other.example.com"),
		gen.OneConstOf("/", "/news", "/News/sub/Deep", "/newsletter", "/shop", "/blog/2020/x", "/shop/x/"),
		gen.OneConstOf("", "?cat=a", "?x=1&cat=A", "#frag"),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

func BenchmarkResolve(b *testing.B) {
	rules := make([]domain.Rule, 5000)
	for i := range rules {
		rules[i] = partial(fmt.Sprintf("r%d", i), fmt.Sprintf("/section/%d/page", i), "/new")
	}
	derived := derive(defaultCfg, rules...)
	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = Resolve(ctx, "/section/4999/page/tail?x=1", derived, defaultCfg, defaultOpts)
	}
}
