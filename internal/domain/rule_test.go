package domain

import (
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Feature: redirector, Property 1: query flag exclusivity
func TestProperty_SanitizeFlagsKeepsExactlyOneFlag(t *testing.T) {
	properties := gopter.NewProperties(nil)

	optionalBool := gen.OneGenOf(
		gen.Const((*bool)(nil)),
		gen.Bool().Map(func(b bool) *bool { return Bool(b) }),
	)

	properties.Property("after sanitizing, only the flag meaningful for the redirect type is present", prop.ForAll(
		func(redirectType string, discard *bool, forward *bool) bool {
			rule := Rule{
				Matcher:            "/old",
				RedirectType:       RedirectType(redirectType),
				DiscardQueryParams: discard,
				ForwardQueryParams: forward,
			}
			SanitizeFlags(&rule)

			if rule.RedirectType == RedirectWildcard {
				return rule.DiscardQueryParams == nil && rule.ForwardQueryParams != nil &&
					(forward == nil || *rule.ForwardQueryParams == *forward)
			}
			return rule.ForwardQueryParams == nil && rule.DiscardQueryParams != nil &&
				(discard == nil || *rule.DiscardQueryParams == *discard)
		},
		gen.OneConstOf("wildcard", "partial", "domain"),
		optionalBool,
		optionalBool,
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

func TestSanitizeFlags_Defaults(t *testing.T) {
	wildcard := Rule{RedirectType: RedirectWildcard, DiscardQueryParams: Bool(true)}
	SanitizeFlags(&wildcard)
	assert.Nil(t, wildcard.DiscardQueryParams)
	require.NotNil(t, wildcard.ForwardQueryParams)
	assert.False(t, wildcard.ForwardsQuery())

	partial := Rule{RedirectType: RedirectPartial, ForwardQueryParams: Bool(true)}
	SanitizeFlags(&partial)
	assert.Nil(t, partial.ForwardQueryParams)
	require.NotNil(t, partial.DiscardQueryParams)
	assert.False(t, partial.DiscardsQuery())
}

func TestRulePatch_Apply(t *testing.T) {
	created := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	rule := Rule{ID: "r1", Matcher: "/old", TargetURL: "/new", RedirectType: RedirectPartial, CreatedAt: created}

	target := "/newer"
	wildcard := RedirectWildcard
	RulePatch{TargetURL: &target, RedirectType: &wildcard, ForwardQueryParams: Bool(true)}.Apply(&rule)

	assert.Equal(t, "r1", rule.ID)
	assert.Equal(t, "/old", rule.Matcher)
	assert.Equal(t, "/newer", rule.TargetURL)
	assert.Equal(t, RedirectWildcard, rule.RedirectType)
	assert.True(t, rule.ForwardsQuery())
	assert.Equal(t, created, rule.CreatedAt)
}

func TestImportRecord_RedirectType(t *testing.T) {
	tests := []struct {
		name   string
		record ImportRecord
		want   RedirectType
	}{
		{"missing defaults to partial", ImportRecord{}, RedirectPartial},
		{"legacy redirect", ImportRecord{"type": "redirect"}, RedirectPartial},
		{"type alias", ImportRecord{"type": "Wildcard"}, RedirectWildcard},
		{"redirectType wins", ImportRecord{"redirectType": "domain", "type": "wildcard"}, RedirectDomain},
		{"unknown passes through", ImportRecord{"redirectType": "bogus"}, RedirectType("bogus")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.record.RedirectType())
		})
	}
}

func TestImportRecord_Accessors(t *testing.T) {
	record := ImportRecord{
		"matcher":      "  /old  ",
		"count":        float64(3),
		"autoRedirect": "ja",
		"discard":      float64(0),
		"broken":       "maybe",
	}

	assert.Equal(t, "/old", record.String("matcher"))
	assert.Equal(t, "3", record.String("count"))
	assert.Equal(t, "", record.String("missing"))

	v, ok := record.Bool("autoRedirect")
	assert.True(t, ok)
	assert.True(t, v)

	require.NotNil(t, record.BoolPtr("discard"))
	assert.False(t, *record.BoolPtr("discard"))
	assert.Nil(t, record.BoolPtr("broken"))
	assert.Nil(t, record.BoolPtr("missing"))
}

func TestBandFor(t *testing.T) {
	assert.Equal(t, BandHigh, BandFor(100))
	assert.Equal(t, BandHigh, BandFor(90))
	assert.Equal(t, BandMedium, BandFor(89))
	assert.Equal(t, BandMedium, BandFor(60))
	assert.Equal(t, BandLow, BandFor(59))
	assert.Equal(t, BandLow, BandFor(0))
}

func TestMatchingConfig_SameFields(t *testing.T) {
	a := MatchingConfig{CaseSensitivePath: true, TrailingSlashPolicy: TrailingSlashIgnore, Version: 1}
	b := a
	b.Version = 7
	assert.True(t, a.SameFields(b))

	b.CaseSensitiveQuery = true
	assert.False(t, a.SameFields(b))
}

func TestSettings_MatchingConfigDefaults(t *testing.T) {
	var s Settings
	cfg := s.MatchingConfig()
	assert.Equal(t, TrailingSlashIgnore, cfg.TrailingSlashPolicy)
	assert.Equal(t, uint64(1), cfg.Version)

	s = DefaultSettings("id", time.Now())
	s.CaseSensitiveLinkDetection = true
	s.MatchingVersion = 4
	cfg = s.MatchingConfig()
	assert.True(t, cfg.CaseSensitivePath)
	assert.Equal(t, uint64(4), cfg.Version)
	assert.Equal(t, s.MatchLowExplanation, s.Explanation(BandLow))
	assert.Equal(t, s.MatchNoneExplanation, s.Explanation(BandNone))
}

func TestSettingsPatch_Apply(t *testing.T) {
	s := DefaultSettings("id", time.Now())
	title := "Moved"
	strict := TrailingSlashStrict
	SettingsPatch{MainTitle: &title, TrailingSlashPolicy: &strict, EnableTrackingCache: Bool(false)}.Apply(&s)

	assert.Equal(t, "Moved", s.MainTitle)
	assert.Equal(t, TrailingSlashStrict, s.TrailingSlashPolicy)
	assert.False(t, s.EnableTrackingCache)
	assert.Equal(t, "URL Migration Tool", s.HeaderTitle)
}

func TestTrackingEntry_ReferencedRuleIDs(t *testing.T) {
	assert.Nil(t, (&TrackingEntry{}).ReferencedRuleIDs())
	assert.Equal(t, []string{"a"}, (&TrackingEntry{RuleID: "a"}).ReferencedRuleIDs())
	assert.Equal(t, []string{"a", "b"}, (&TrackingEntry{RuleID: "a", RuleIDs: []string{"a", "b"}}).ReferencedRuleIDs())
	assert.True(t, (&TrackingEntry{RuleIDs: []string{"x"}}).HasRule())
}

func TestDecision_Clone(t *testing.T) {
	d := &Decision{Rule: &Rule{ID: "a"}, RuleIDs: []string{"a"}}
	c := d.Clone()
	c.RuleIDs[0] = "b"
	c.Rule.ID = "b"
	assert.Equal(t, "a", d.RuleIDs[0])
	assert.Equal(t, "a", d.RuleID())
}
