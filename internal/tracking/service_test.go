package tracking

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/linkshift/redirector/internal/domain"
	"github.com/linkshift/redirector/internal/storage"
)

type staticRules []domain.Rule

func (r staticRules) Rules(ctx context.Context) ([]domain.Rule, error) {
	return r, nil
}

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func newTestService(t *testing.T, rules ...domain.Rule) (*Service, *clock) {
	t.Helper()
	store := storage.NewTrackingStore(filepath.Join(t.TempDir(), "tracking.json"), 0, nil)
	svc := NewService(store, staticRules(rules), nil)
	c := &clock{t: time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)}
	svc.now = c.now
	store.SetClock(c.now)
	return svc, c
}

func record(t *testing.T, svc *Service, c *clock, path string, quality int, ruleIDs ...string) {
	t.Helper()
	c.t = c.t.Add(time.Minute)
	require.NoError(t, svc.Record(context.Background(), domain.TrackingEntry{
		OldURL:       "https://old.example.com" + path,
		NewURL:       "https://new.example.com" + path,
		Path:         path,
		UserAgent:    "Mozilla/5.0",
		MatchQuality: quality,
		RuleIDs:      ruleIDs,
	}))
}

func intPtr(v int) *int { return &v }

func TestEntryFor(t *testing.T) {
	d := &domain.Decision{
		RequestURL: "https://old.example.com//news//1?x=1#top",
		TargetURL:  "https://new.example.com/articles/1?x=1",
		Quality:    26,
		Rule:       &domain.Rule{ID: "a"},
		RuleIDs:    []string{"a", "b"},
	}
	entry := EntryFor(d, "curl/8")

	assert.Equal(t, "/news/1?x=1", entry.Path)
	assert.Equal(t, "a", entry.RuleID)
	assert.Equal(t, []string{"a", "b"}, entry.RuleIDs)
	assert.Equal(t, 26, entry.MatchQuality)
	assert.Equal(t, "curl/8", entry.UserAgent)

	d.RuleIDs[0] = "mutated"
	assert.Equal(t, "a", entry.RuleIDs[0])
}

func TestRequestPath(t *testing.T) {
	assert.Equal(t, "/", RequestPath("https://old.example.com"))
	assert.Equal(t, "/?admin=true", RequestPath("/?admin=true"))
	assert.Equal(t, "/a/b", RequestPath("/a//b#frag"))
}

func TestService_RecordSkipsRootAndStampsTime(t *testing.T) {
	svc, c := newTestService(t)
	ctx := context.Background()

	require.NoError(t, svc.Record(ctx, domain.TrackingEntry{Path: "/"}))
	require.NoError(t, svc.Record(ctx, domain.TrackingEntry{
		ID:        "caller-chosen",
		Path:      "/old",
		Timestamp: time.Date(1999, 1, 1, 0, 0, 0, 0, time.UTC),
	}))

	page, err := svc.Entries(ctx, domain.EntryQuery{})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, 1, page.TotalAll)
	assert.Equal(t, c.t, page.Items[0].Timestamp)
	assert.NotEqual(t, "caller-chosen", page.Items[0].ID)
	assert.NotEmpty(t, page.Items[0].ID)
}

func TestService_EntriesNewestFirstByDefault(t *testing.T) {
	svc, c := newTestService(t)
	for i := 1; i <= 5; i++ {
		record(t, svc, c, fmt.Sprintf("/p%d", i), 50)
	}

	page, err := svc.Entries(context.Background(), domain.EntryQuery{ListParams: domain.ListParams{Limit: 2, Page: 2}})
	require.NoError(t, err)
	require.Len(t, page.Items, 2)
	assert.Equal(t, "/p3", page.Items[0].Path)
	assert.Equal(t, "/p2", page.Items[1].Path)
	assert.Equal(t, 5, page.Total)
	assert.Equal(t, 3, page.TotalPages)
}

func TestService_EntriesFilters(t *testing.T) {
	svc, c := newTestService(t)
	record(t, svc, c, "/exact", 100, "a")
	record(t, svc, c, "/partial", 26, "b")
	record(t, svc, c, "/none", 0)
	record(t, svc, c, "/medium", 75, "a")
	ctx := context.Background()

	page, err := svc.Entries(ctx, domain.EntryQuery{RuleFilter: domain.RuleFilterNoRule})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "/none", page.Items[0].Path)

	page, err = svc.Entries(ctx, domain.EntryQuery{RuleFilter: domain.RuleFilterWithRule, MinQuality: intPtr(60)})
	require.NoError(t, err)
	require.Len(t, page.Items, 2)
	assert.Equal(t, "/medium", page.Items[0].Path)
	assert.Equal(t, "/exact", page.Items[1].Path)

	page, err = svc.Entries(ctx, domain.EntryQuery{MaxQuality: intPtr(30), ListParams: domain.ListParams{SortBy: "matchQuality", SortOrder: "asc"}})
	require.NoError(t, err)
	require.Len(t, page.Items, 2)
	assert.Equal(t, "/none", page.Items[0].Path)
	assert.Equal(t, "/partial", page.Items[1].Path)

	page, err = svc.Entries(ctx, domain.EntryQuery{ListParams: domain.ListParams{Search: "PARTIAL"}})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, 4, page.TotalAll)
}

func TestService_EntriesEnrichment(t *testing.T) {
	rules := []domain.Rule{{ID: "a", Matcher: "/exact"}, {ID: "b", Matcher: "/partial"}}
	svc, c := newTestService(t, rules...)
	record(t, svc, c, "/both", 100, "a", "deleted", "b")
	record(t, svc, c, "/none", 0)

	page, err := svc.Entries(context.Background(), domain.EntryQuery{ListParams: domain.ListParams{SortOrder: "asc"}})
	require.NoError(t, err)
	require.Len(t, page.Items, 2)

	both := page.Items[0]
	require.Len(t, both.Rules, 2)
	assert.Equal(t, "a", both.Rules[0].ID)
	assert.Equal(t, "b", both.Rules[1].ID)
	assert.Nil(t, both.Rule)

	assert.Empty(t, page.Items[1].Rules)
	assert.NotNil(t, page.Items[1].Rules)
}

func TestService_EntriesLegacySingleRule(t *testing.T) {
	svc, _ := newTestService(t, domain.Rule{ID: "a", Matcher: "/x"})
	ctx := context.Background()
	require.NoError(t, svc.Record(ctx, domain.TrackingEntry{Path: "/x", RuleID: "a"}))

	page, err := svc.Entries(ctx, domain.EntryQuery{RuleFilter: domain.RuleFilterWithRule})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	require.NotNil(t, page.Items[0].Rule)
	assert.Equal(t, "a", page.Items[0].Rule.ID)
	require.Len(t, page.Items[0].Rules, 1)
}

func TestService_Stats(t *testing.T) {
	svc, c := newTestService(t)
	record(t, svc, c, "/old", 100)
	c.t = c.t.Add(3 * 24 * time.Hour)
	record(t, svc, c, "/old", 100)
	c.t = c.t.Add(2 * time.Hour)
	record(t, svc, c, "/other", 0)
	c.t = c.t.Add(6 * 24 * time.Hour)

	stats, err := svc.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.TrackingStats{Total: 3, Last24h: 0, Last7d: 2}, stats)

	c.t = c.t.Add(-5*24*time.Hour - 12*time.Hour)
	stats, err = svc.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Total)
	assert.Equal(t, 2, stats.Last24h)
}

func TestService_TopURLs(t *testing.T) {
	svc, c := newTestService(t)
	record(t, svc, c, "/b", 0)
	record(t, svc, c, "/a", 0)
	record(t, svc, c, "/?admin=true", 0)
	record(t, svc, c, "/a", 0)
	record(t, svc, c, "/c", 0)
	record(t, svc, c, "/b", 0)
	record(t, svc, c, "/a", 0)
	ctx := context.Background()

	page, err := svc.TopURLs(ctx, domain.TopQuery{})
	require.NoError(t, err)
	assert.Equal(t, []domain.URLCount{{Path: "/a", Count: 3}, {Path: "/b", Count: 2}, {Path: "/c", Count: 1}}, page.Items)
	assert.Equal(t, 3, page.Total)

	c.t = c.t.Add(24*time.Hour + 2*time.Minute)
	page, err = svc.TopURLs(ctx, domain.TopQuery{Range: domain.Range24h})
	require.NoError(t, err)
	assert.Empty(t, page.Items)

	page, err = svc.TopURLs(ctx, domain.TopQuery{Range: domain.RangeAll, ListParams: domain.ListParams{Limit: 1, Page: 2}})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "/b", page.Items[0].Path)
	assert.Equal(t, 3, page.TotalPages)
}

func TestService_Clear(t *testing.T) {
	svc, c := newTestService(t)
	record(t, svc, c, "/a", 0)
	ctx := context.Background()

	require.NoError(t, svc.Clear(ctx))
	stats, err := svc.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Total)
}

// Feature: redirector, Property 8: top URL counts add up
func TestProperty_TopURLCountsAddUp(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("counts over all pages sum to the non-root accesses", prop.ForAll(
		func(paths []string) bool {
			svc, c := newTestService(t)
			ctx := context.Background()
			expected := 0
			for _, p := range paths {
				c.t = c.t.Add(time.Second)
				if err := svc.Record(ctx, domain.TrackingEntry{Path: p}); err != nil {
					return false
				}
				if p != domain.RootPath && p != domain.AdminPath {
					expected++
				}
			}

			sum, pageNo := 0, 1
			for {
				page, err := svc.TopURLs(ctx, domain.TopQuery{ListParams: domain.ListParams{Page: pageNo, Limit: 2}})
				if err != nil {
					return false
				}
				if len(page.Items) == 0 {
					break
				}
				for i, u := range page.Items {
					if i > 0 && u.Count > page.Items[i-1].Count {
						return false
					}
					sum += u.Count
				}
				pageNo++
			}
			return sum == expected
		},
		gen.SliceOfN(15, gen.OneConstOf("/", "/?admin=true", "/a", "/b", "/c?x=1")),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}
