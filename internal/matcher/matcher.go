// Package matcher resolves request URLs to redirect decisions.
package matcher

import (
	"context"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/linkshift/redirector/internal/domain"
	"github.com/linkshift/redirector/internal/observability"
	"github.com/linkshift/redirector/internal/rulecache"
)

// SnapshotSource yields the rule snapshot to resolve against
type SnapshotSource interface {
	Acquire(ctx context.Context, cfg *domain.MatchingConfig) (*rulecache.Snapshot, error)
	Current() *rulecache.Snapshot
}

// SettingsSource supplies settings and a revision that changes on every update
type SettingsSource interface {
	domain.SettingsProvider
	Revision() uint64
}

var bands = []domain.QualityBand{domain.BandHigh, domain.BandMedium, domain.BandLow, domain.BandRoot, domain.BandNone}

// Matcher implements the Resolver interface over the rule cache
type Matcher struct {
	rules    SnapshotSource
	settings SettingsSource
	cache    domain.DecisionCache
	metrics  *observability.Metrics

	resolutions atomic.Int64
	byBand      map[domain.QualityBand]*atomic.Int64
}

// NewMatcher creates a Matcher. metrics may be nil.
func NewMatcher(rules SnapshotSource, settings SettingsSource, cache domain.DecisionCache, metrics *observability.Metrics) *Matcher {
	byBand := make(map[domain.QualityBand]*atomic.Int64, len(bands))
	for _, b := range bands {
		byBand[b] = new(atomic.Int64)
	}
	return &Matcher{
		rules:    rules,
		settings: settings,
		cache:    cache,
		metrics:  metrics,
		byBand:   byBand,
	}
}

// Resolve returns the decision for url. Decisions are memoized per snapshot
// generation and settings revision, so neither a rule mutation nor a settings
// change can serve a stale decision.
func (m *Matcher) Resolve(ctx context.Context, url string) (*domain.Decision, error) {
	select {
	case <-ctx.Done():
		return nil, domain.NewAppErrorWithCause(
			domain.ErrTimeout,
			"Resolve operation cancelled",
			408,
			ctx.Err(),
			map[string]any{"url": url},
		).WithContext(ctx, "resolve")
	default:
	}

	start := time.Now()

	// read the revision first so a concurrent update can only make the entry newer than its key
	revision := m.settings.Revision()
	settings, err := m.settings.Get(ctx)
	if err != nil {
		return nil, err
	}
	cfg := settings.MatchingConfig()

	snap, err := m.rules.Acquire(ctx, &cfg)
	if err != nil {
		return nil, err
	}

	// snapshots that were never installed have no stable generation
	cacheable := snap.Generation > 0
	key := cacheKey(snap.Generation, revision, url)
	if cacheable {
		if cached, ok := m.cache.Get(key); ok {
			m.record(cached, true, start)
			return cached, nil
		}
	}

	decision, err := Resolve(ctx, url, snap.Rules, snap.Config, OptionsFrom(settings))
	if err != nil {
		return nil, err
	}
	decision.Explanation = settings.Explanation(decision.Band)

	if cacheable {
		m.cache.Set(key, decision)
	}
	m.record(decision, false, start)

	log.Debug().
		Str("url", url).
		Str("target", decision.TargetURL).
		Str("rule_id", decision.RuleID()).
		Int("quality", decision.Quality).
		Int("candidates", len(decision.RuleIDs)).
		Uint64("generation", snap.Generation).
		Msg("URL resolved")
	return decision, nil
}

func (m *Matcher) record(d *domain.Decision, hit bool, start time.Time) {
	m.resolutions.Add(1)
	if c, ok := m.byBand[d.Band]; ok {
		c.Add(1)
	}
	m.metrics.ObserveResolution(string(d.Band), hit, time.Since(start))
}

func cacheKey(generation, revision uint64, url string) string {
	b := make([]byte, 0, len(url)+24)
	b = strconv.AppendUint(b, generation, 10)
	b = append(b, ':')
	b = strconv.AppendUint(b, revision, 10)
	b = append(b, ':')
	b = append(b, url...)
	return string(b)
}

// InvalidateCache drops every memoized decision
func (m *Matcher) InvalidateCache(ctx context.Context) error {
	m.cache.Clear()
	log.Info().Msg("Decision cache invalidated")
	return nil
}

// HealthCheck performs a health check on the matcher
func (m *Matcher) HealthCheck(ctx context.Context) domain.HealthStatus {
	now := time.Now()
	status := domain.HealthStatusHealthy
	message := "Matcher is operating normally"

	cacheStats := m.cache.Stats()
	details := map[string]any{
		"cache_size":      cacheStats.Size,
		"cache_hits":      cacheStats.Hits,
		"cache_misses":    cacheStats.Misses,
		"cache_hit_ratio": cacheStats.HitRatio,
	}

	snap := m.rules.Current()
	switch {
	case snap == nil:
		status = domain.HealthStatusDegraded
		message = "Rules not loaded yet"
	case len(snap.Rules) == 0:
		status = domain.HealthStatusDegraded
		message = "No rules loaded"
		details["warning"] = "Every request resolves to the default domain"
	default:
		details["rule_count"] = len(snap.Rules)
		details["generation"] = snap.Generation
	}

	if cacheHealth := m.cache.HealthCheck(ctx); cacheHealth.Status != domain.HealthStatusHealthy {
		if status == domain.HealthStatusHealthy {
			status = domain.HealthStatusDegraded
			message = "Decision cache issues detected"
		}
		details["cache_status"] = cacheHealth.Status
		details["cache_message"] = cacheHealth.Message
	}

	return domain.HealthStatus{
		Status:    status,
		Message:   message,
		Details:   details,
		Timestamp: now,
	}
}

// GetStats returns matcher statistics
func (m *Matcher) GetStats(ctx context.Context) map[string]any {
	cacheStats := m.cache.Stats()

	byBand := make(map[domain.QualityBand]int64, len(m.byBand))
	for band, c := range m.byBand {
		byBand[band] = c.Load()
	}

	stats := map[string]any{
		"resolutions":     m.resolutions.Load(),
		"bands":           byBand,
		"cache_hits":      cacheStats.Hits,
		"cache_misses":    cacheStats.Misses,
		"cache_size":      cacheStats.Size,
		"cache_max_size":  cacheStats.MaxSize,
		"cache_hit_ratio": cacheStats.HitRatio,
	}
	if snap := m.rules.Current(); snap != nil {
		stats["rule_count"] = len(snap.Rules)
		stats["generation"] = snap.Generation
	}
	return stats
}
