package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/linkshift/redirector/internal/app"
	"github.com/linkshift/redirector/internal/config"
)

type integration struct {
	t      testing.TB
	result *RouterResult
	c      *app.Components
}

func newIntegration(t testing.TB) *integration {
	t.Helper()
	cfg := &config.Config{}
	cfg.Storage.DataDir = t.TempDir()
	cfg.Storage.RulesFile = "rules.json"
	cfg.Storage.TrackingFile = "tracking.json"
	cfg.Storage.SettingsFile = "settings.json"
	cfg.Storage.LargeFileThreshold = 1 << 20
	cfg.Cache.ReprocessBatchSize = 100
	cfg.Cache.DecisionCacheSize = 100

	c, err := app.Build(context.Background(), cfg)
	require.NoError(t, err)

	result := SetupRouter(RouterDependencies{
		Resolver:      c.Matcher,
		Rules:         c.Rules,
		Tracking:      c.Tracking,
		Settings:      c.SettingsStore,
		Validator:     c.Validator,
		HealthChecker: c.Health,
		Metrics:       c.Metrics.Handler(c.Registry),
	}, RouterConfig{BodyLimit: 1 << 20})
	t.Cleanup(result.Cleanup)

	return &integration{t: t, result: result, c: c}
}

func (it *integration) call(method, target, body string) (int, map[string]any) {
	it.t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	req.Header.Set("Content-Type", "application/json")
	resp, err := it.result.App.Test(req, 5000)
	require.NoError(it.t, err)

	raw, err := io.ReadAll(resp.Body)
	require.NoError(it.t, err)
	var decoded map[string]any
	_ = json.Unmarshal(raw, &decoded)
	return resp.StatusCode, decoded
}

func (it *integration) resolve(url string) map[string]any {
	it.t.Helper()
	status, body := it.call("POST", "/api/resolve", fmt.Sprintf(`{"url":%q}`, url))
	require.Equal(it.t, 200, status, "body: %v", body)
	return body["data"].(map[string]any)
}

func TestIntegration_RuleLifecycle(t *testing.T) {
	it := newIntegration(t)

	status, body := it.call("POST", "/api/admin/rules", `{"matcher":"/news","targetUrl":"/articles"}`)
	require.Equal(t, 201, status, "body: %v", body)
	id := body["data"].(map[string]any)["id"].(string)

	d := it.resolve("https://old.example.com/news/2023/post?id=7")
	assert.Equal(t, "https://thisisthenewurl.com/articles/2023/post?id=7", d["targetUrl"])
	assert.Equal(t, "low", d["band"])

	status, _ = it.call("POST", "/api/admin/rules", `{"matcher":"/news","targetUrl":"/elsewhere"}`)
	assert.Equal(t, 422, status)

	status, _ = it.call("PUT", "/api/admin/rules/"+id, `{"targetUrl":"/magazine"}`)
	require.Equal(t, 200, status)

	d = it.resolve("/news")
	assert.Equal(t, "https://thisisthenewurl.com/magazine", d["targetUrl"])
	assert.Equal(t, float64(100), d["quality"])

	status, _ = it.call("DELETE", "/api/admin/rules/"+id, "")
	require.Equal(t, 200, status)

	d = it.resolve("/news")
	assert.Equal(t, "none", d["band"])
	assert.Equal(t, "https://thisisthenewurl.com/", d["targetUrl"])

	status, _ = it.call("GET", "/api/admin/rules/"+id, "")
	assert.Equal(t, 404, status)
}

func TestIntegration_ImportExportRoundTrip(t *testing.T) {
	it := newIntegration(t)

	status, body := it.call("POST", "/api/admin/rules/import",
		`{"rules":[{"matcher":"/a","targetUrl":"/b"},{"matcher":"old.example.com","redirectType":"domain","targetUrl":"https://new.example.com"},{"matcher":"/c","targetUrl":"/d","redirectType":"teleport"},{"matcher":"/skipped"}]}`)
	require.Equal(t, 200, status)
	result := body["data"].(map[string]any)
	assert.Equal(t, float64(2), result["imported"])
	assert.Len(t, result["errors"], 1)

	req := httptest.NewRequest("GET", "/api/admin/rules/export", nil)
	resp, err := it.result.App.Test(req, 5000)
	require.NoError(t, err)
	exported, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	// a fresh instance imports the export unchanged
	other := newIntegration(t)
	status, body = other.call("POST", "/api/admin/rules/import", string(exported))
	require.Equal(t, 200, status)
	assert.Equal(t, float64(2), body["data"].(map[string]any)["imported"])

	status, body = other.call("GET", "/api/admin/rules?sortBy=matcher&sortOrder=asc", "")
	require.Equal(t, 200, status)
	page := body["data"].(map[string]any)
	assert.Equal(t, float64(2), page["total"])
	items := page["items"].([]any)
	assert.Equal(t, "/a", items[0].(map[string]any)["matcher"])
	assert.NotContains(t, items[0], "normalizedPath")
}

func TestIntegration_TrackingAndStats(t *testing.T) {
	it := newIntegration(t)

	status, _ := it.call("POST", "/api/admin/rules", `{"matcher":"/a","targetUrl":"/b"}`)
	require.Equal(t, 201, status)

	it.resolve("/a")
	it.resolve("/a")
	it.resolve("/missing")
	it.resolve("/")
	status, _ = it.call("GET", "/api/resolve?url=/a&track=false", "")
	require.Equal(t, 200, status)

	status, body := it.call("GET", "/api/admin/stats", "")
	require.Equal(t, 200, status)
	stats := body["data"].(map[string]any)
	assert.Equal(t, float64(3), stats["total"])
	assert.Equal(t, float64(3), stats["last24h"])

	status, body = it.call("GET", "/api/admin/stats/top", "")
	require.Equal(t, 200, status)
	top := body["data"].(map[string]any)["items"].([]any)
	require.Len(t, top, 2)
	assert.Equal(t, "/a", top[0].(map[string]any)["path"])
	assert.Equal(t, float64(2), top[0].(map[string]any)["count"])

	status, body = it.call("GET", "/api/admin/stats/entries?ruleFilter=with_rule", "")
	require.Equal(t, 200, status)
	entries := body["data"].(map[string]any)
	assert.Equal(t, float64(2), entries["total"])
	first := entries["items"].([]any)[0].(map[string]any)
	assert.Equal(t, "/a", first["rule"].(map[string]any)["matcher"])

	status, _ = it.call("DELETE", "/api/admin/stats", "")
	require.Equal(t, 200, status)
	_, body = it.call("GET", "/api/admin/stats", "")
	assert.Equal(t, float64(0), body["data"].(map[string]any)["total"])
}

func TestIntegration_SettingsDriveDecisions(t *testing.T) {
	it := newIntegration(t)

	status, _ := it.call("POST", "/api/admin/rules", `{"matcher":"/a","targetUrl":"/b"}`)
	require.Equal(t, 201, status)
	assert.Equal(t, "https://thisisthenewurl.com/b", it.resolve("/a")["targetUrl"])

	status, body := it.call("PUT", "/api/admin/settings", `{"defaultNewDomain":"https://relaunch.example.com/","autoRedirect":true}`)
	require.Equal(t, 200, status, "body: %v", body)

	d := it.resolve("/a")
	assert.Equal(t, "https://relaunch.example.com/b", d["targetUrl"])
	assert.Equal(t, true, d["autoRedirect"])

	status, body = it.call("PUT", "/api/admin/settings?mode=replace", `{"defaultNewDomain":"https://other.example.com/"}`)
	require.Equal(t, 200, status)
	settings := body["data"].(map[string]any)
	assert.Equal(t, false, settings["autoRedirect"])
	assert.Equal(t, "https://other.example.com/", settings["defaultNewDomain"])
}

func TestIntegration_RebuildAndHealth(t *testing.T) {
	it := newIntegration(t)

	status, body := it.call("GET", "/health", "")
	assert.Equal(t, 200, status)
	assert.Equal(t, "degraded", body["status"])

	status, _ = it.call("POST", "/api/admin/rules", `{"matcher":"/a","targetUrl":"/b"}`)
	require.Equal(t, 201, status)

	status, body = it.call("POST", "/api/admin/maintenance/rebuild-cache", "")
	require.Equal(t, 200, status)
	rules := body["data"].(map[string]any)["rules"].(map[string]any)
	assert.Equal(t, float64(1), rules["rule_count"])
	assert.Equal(t, float64(1), rules["rebuilds"])
}

func TestIntegration_Metrics(t *testing.T) {
	it := newIntegration(t)
	it.resolve("/anything")

	req := httptest.NewRequest("GET", "/metrics", nil)
	resp, err := it.result.App.Test(req, 5000)
	require.NoError(t, err)
	require.Equal(t, 200, resp.StatusCode)

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "redirector_resolutions_total")
	assert.Contains(t, string(raw), "redirector_cache_generation")
}
