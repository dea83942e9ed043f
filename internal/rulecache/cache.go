// Package rulecache owns the in-memory view of all rules.
//
// The view is an immutable Snapshot swapped atomically. Readers never lock;
// they see either the previous snapshot or the complete next one. Snapshots
// are derived under exactly one MatchingConfig version. Reprocessing for a
// new version runs in fixed-size batches on a background goroutine and is
// installed only after the full pass completes.
package rulecache

import (
	"context"
	"runtime"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"

	"github.com/linkshift/redirector/internal/domain"
	"github.com/linkshift/redirector/internal/observability"
	"github.com/linkshift/redirector/internal/preprocess"
)

// DefaultBatchSize is the number of rules reprocessed between scheduler yields
const DefaultBatchSize = 1000

// maxInstallAttempts bounds how often a reprocess pass restarts because a
// mutation replaced its base snapshot mid-pass
const maxInstallAttempts = 3

// Snapshot is one immutable generation of the rule view
type Snapshot struct {
	Rules      []domain.MatchableRule
	Config     domain.MatchingConfig
	Generation uint64
	index      map[string]int
}

// Lookup returns the position of the rule with id, or -1
func (s *Snapshot) Lookup(id string) int {
	if i, ok := s.index[id]; ok {
		return i
	}
	return -1
}

// Options tunes a Cache
type Options struct {
	BatchSize int
	Metrics   *observability.Metrics
	Validator domain.Validator
	Now       func() time.Time
	NewID     func() string
}

// Cache is the single authoritative in-memory view of the rule store
type Cache struct {
	store    domain.RuleRecordStore
	settings domain.SettingsProvider
	opts     Options

	snap    atomic.Pointer[Snapshot]
	nextGen atomic.Uint64
	group   singleflight.Group

	// serializes persist-then-swap so the store and the snapshot never diverge
	writeMu sync.Mutex

	listenersMu sync.RWMutex
	onSwap      []func(*Snapshot)

	stats struct {
		reprocessPasses atomic.Int64
		batches         atomic.Int64
		populations     atomic.Int64
		rebuilds        atomic.Int64
		lastPassNanos   atomic.Int64
	}
}

// New creates an empty cache. Nothing is read until the first Get.
func New(store domain.RuleRecordStore, settings domain.SettingsProvider, opts Options) *Cache {
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.NewID == nil {
		opts.NewID = func() string { return uuid.New().String() }
	}
	return &Cache{store: store, settings: settings, opts: opts}
}

// OnSwap registers fn to run after every snapshot install
func (c *Cache) OnSwap(fn func(*Snapshot)) {
	c.listenersMu.Lock()
	defer c.listenersMu.Unlock()
	c.onSwap = append(c.onSwap, fn)
}

// Current returns the installed snapshot without waiting; nil before the first population
func (c *Cache) Current() *Snapshot {
	return c.snap.Load()
}

// Generation returns the installed snapshot's generation; zero before population
func (c *Cache) Generation() uint64 {
	if s := c.snap.Load(); s != nil {
		return s.Generation
	}
	return 0
}

// effectiveConfig returns cfg, or the config derived from settings when cfg is nil
func (c *Cache) effectiveConfig(ctx context.Context, cfg *domain.MatchingConfig) (domain.MatchingConfig, error) {
	if cfg != nil {
		out := *cfg
		if out.Version == 0 {
			out.Version = 1
		}
		return out, nil
	}
	if c.settings == nil {
		return domain.DefaultMatchingConfig(), nil
	}
	settings, err := c.settings.Get(ctx)
	if err != nil {
		return domain.MatchingConfig{}, err
	}
	return settings.MatchingConfig(), nil
}

// Get returns a snapshot derived under cfg, or under the settings' config
// when cfg is nil. If the installed snapshot was built from another config
// version or other field values every rule is reprocessed first. Waiting callers may give up via
// ctx; the pass itself always runs to completion.
func (c *Cache) Get(ctx context.Context, cfg *domain.MatchingConfig) (*Snapshot, error) {
	want, err := c.effectiveConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if snap := c.snap.Load(); coherent(snap, want) {
		return snap, nil
	}
	return c.await(ctx, want)
}

// Acquire returns the installed snapshot immediately, scheduling a background
// reprocess when it is stale relative to cfg. It only blocks for the very
// first population. Resolvers use it so that a config change never stalls
// request handling; the returned snapshot is coherent with its own Config.
func (c *Cache) Acquire(ctx context.Context, cfg *domain.MatchingConfig) (*Snapshot, error) {
	want, err := c.effectiveConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	snap := c.snap.Load()
	if snap == nil {
		return c.await(ctx, want)
	}
	if !coherent(snap, want) && want.Version >= snap.Config.Version {
		c.Refresh(want)
	}
	return snap, nil
}

// Refresh starts reprocessing under cfg in the background and returns at once
func (c *Cache) Refresh(cfg domain.MatchingConfig) {
	if coherent(c.snap.Load(), cfg) {
		return
	}
	ch := c.group.DoChan(flightKey(cfg), func() (any, error) {
		return c.build(context.Background(), cfg)
	})
	go func() {
		if res := <-ch; res.Err != nil {
			log.Error().Err(res.Err).Uint64("config_version", cfg.Version).Msg("Background rule reprocessing failed")
		}
	}()
}

func (c *Cache) await(ctx context.Context, want domain.MatchingConfig) (*Snapshot, error) {
	ch := c.group.DoChan(flightKey(want), func() (any, error) {
		return c.build(context.WithoutCancel(ctx), want)
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Snapshot), nil
	case <-ctx.Done():
		return nil, domain.NewAppErrorWithCause(
			domain.ErrTimeout,
			"Waiting for rule cache cancelled",
			408,
			ctx.Err(),
			map[string]any{"config_version": want.Version},
		).WithContext(ctx, "rule_cache_get")
	}
}

// coherent reports whether snap was derived under exactly want
func coherent(snap *Snapshot, want domain.MatchingConfig) bool {
	return snap != nil && snap.Config.Version == want.Version && snap.Config.SameFields(want)
}

// flightKey identifies one derivation; unversioned configs with different
// fields share a version and must not share a pass
func flightKey(cfg domain.MatchingConfig) string {
	b := make([]byte, 0, 32)
	b = append(b, 'v')
	b = strconv.AppendUint(b, cfg.Version, 10)
	b = append(b, ':')
	b = strconv.AppendBool(b, cfg.CaseSensitivePath)
	b = append(b, ':')
	b = strconv.AppendBool(b, cfg.CaseSensitiveQuery)
	b = append(b, ':')
	b = append(b, cfg.TrailingSlashPolicy...)
	return string(b)
}

// build derives a snapshot for want from the installed one, populating from
// the store when nothing is installed. The result is installed unless a
// newer config version is already active, in which case it is only returned.
func (c *Cache) build(ctx context.Context, want domain.MatchingConfig) (*Snapshot, error) {
	for attempt := 0; ; attempt++ {
		base := c.snap.Load()
		if coherent(base, want) {
			return base, nil
		}

		// the last attempt holds the write lock for the whole pass so
		// mutations cannot keep invalidating it
		final := attempt >= maxInstallAttempts-1
		if final {
			c.writeMu.Lock()
			base = c.snap.Load()
			if coherent(base, want) {
				c.writeMu.Unlock()
				return base, nil
			}
		}

		rules, trigger, err := c.sourceRules(ctx, base)
		if err != nil {
			if final {
				c.writeMu.Unlock()
			}
			return nil, err
		}

		start := time.Now()
		derived, batches := c.reprocess(rules, want)
		elapsed := time.Since(start)

		if !final {
			c.writeMu.Lock()
			if c.snap.Load() != base {
				c.writeMu.Unlock()
				log.Debug().Uint64("config_version", want.Version).Int("attempt", attempt+1).Msg("Rule snapshot changed during reprocessing, restarting pass")
				continue
			}
		}

		snap := c.newSnapshot(derived, want)
		installed := base == nil || want.Version >= base.Config.Version
		if installed {
			c.installLocked(snap)
		}
		c.writeMu.Unlock()

		c.stats.reprocessPasses.Add(1)
		c.stats.batches.Add(int64(batches))
		c.stats.lastPassNanos.Store(int64(elapsed))
		c.opts.Metrics.ObserveReprocess(trigger, batches, elapsed)

		log.Info().
			Str("trigger", trigger).
			Int("rules", len(derived)).
			Int("batches", batches).
			Uint64("config_version", want.Version).
			Uint64("generation", snap.Generation).
			Bool("installed", installed).
			Dur("duration", elapsed).
			Msg("Rules reprocessed")

		if installed {
			c.notify(snap)
		}
		return snap, nil
	}
}

func (c *Cache) sourceRules(ctx context.Context, base *Snapshot) ([]domain.Rule, string, error) {
	if base != nil {
		return domain.CleanRules(base.Rules), "config", nil
	}
	rules, err := c.store.ReadAll(ctx)
	if err != nil {
		return nil, "", err
	}
	c.stats.populations.Add(1)
	return rules, "populate", nil
}

// reprocess derives every rule under cfg in fixed-size batches, yielding to
// the scheduler between batches
func (c *Cache) reprocess(rules []domain.Rule, cfg domain.MatchingConfig) ([]domain.MatchableRule, int) {
	out := make([]domain.MatchableRule, len(rules))
	batches := 0
	for start := 0; start < len(rules); start += c.opts.BatchSize {
		end := min(start+c.opts.BatchSize, len(rules))
		for i := start; i < end; i++ {
			out[i] = preprocess.Preprocess(rules[i], cfg)
		}
		batches++
		runtime.Gosched()
	}
	return out, batches
}

func (c *Cache) newSnapshot(rules []domain.MatchableRule, cfg domain.MatchingConfig) *Snapshot {
	index := make(map[string]int, len(rules))
	for i := range rules {
		index[rules[i].ID] = i
	}
	return &Snapshot{Rules: rules, Config: cfg, index: index}
}

// installLocked assigns the next generation and publishes snap. writeMu must be held.
func (c *Cache) installLocked(snap *Snapshot) {
	snap.Generation = c.nextGen.Add(1)
	c.snap.Store(snap)
	c.opts.Metrics.ObserveSnapshot(len(snap.Rules), snap.Generation)
}

func (c *Cache) notify(snap *Snapshot) {
	c.listenersMu.RLock()
	listeners := c.onSwap
	c.listenersMu.RUnlock()
	for _, fn := range listeners {
		fn(snap)
	}
}

// Rebuild drops the snapshot and its remembered config and repopulates from
// the store under the settings' current config
func (c *Cache) Rebuild(ctx context.Context) error {
	want, err := c.effectiveConfig(ctx, nil)
	if err != nil {
		return err
	}

	c.writeMu.Lock()
	rules, err := c.store.ReadAll(ctx)
	if err != nil {
		c.writeMu.Unlock()
		return err
	}
	start := time.Now()
	derived, batches := c.reprocess(rules, want)
	elapsed := time.Since(start)
	snap := c.newSnapshot(derived, want)
	c.installLocked(snap)
	c.writeMu.Unlock()

	c.stats.rebuilds.Add(1)
	c.stats.batches.Add(int64(batches))
	c.opts.Metrics.ObserveReprocess("rebuild", batches, elapsed)
	log.Warn().
		Int("rules", len(derived)).
		Uint64("config_version", want.Version).
		Uint64("generation", snap.Generation).
		Dur("duration", elapsed).
		Msg("Rule cache rebuilt from storage")

	c.notify(snap)
	return nil
}

// HealthCheck reports whether a snapshot is installed and current
func (c *Cache) HealthCheck(ctx context.Context) domain.HealthStatus {
	now := time.Now()
	snap := c.snap.Load()
	if snap == nil {
		return domain.HealthStatus{
			Status:    domain.HealthStatusDegraded,
			Message:   "Rule cache not populated yet",
			Timestamp: now,
		}
	}

	details := map[string]any{
		"rule_count":     len(snap.Rules),
		"generation":     snap.Generation,
		"config_version": snap.Config.Version,
	}
	status := domain.HealthStatusHealthy
	message := "Rule cache is operating normally"

	if want, err := c.effectiveConfig(ctx, nil); err == nil && !coherent(snap, want) {
		status = domain.HealthStatusDegraded
		message = "Rule cache is reprocessing for a new matching configuration"
		details["pending_config_version"] = want.Version
	}

	return domain.HealthStatus{
		Status:    status,
		Message:   message,
		Details:   details,
		Timestamp: now,
	}
}

// GetStats returns cache statistics
func (c *Cache) GetStats(ctx context.Context) map[string]any {
	stats := map[string]any{
		"reprocess_passes": c.stats.reprocessPasses.Load(),
		"batches":          c.stats.batches.Load(),
		"populations":      c.stats.populations.Load(),
		"rebuilds":         c.stats.rebuilds.Load(),
		"batch_size":       c.opts.BatchSize,
	}
	if d := c.stats.lastPassNanos.Load(); d > 0 {
		stats["last_pass"] = time.Duration(d).String()
	}
	if snap := c.snap.Load(); snap != nil {
		stats["rule_count"] = len(snap.Rules)
		stats["generation"] = snap.Generation
		stats["config_version"] = snap.Config.Version

		types := make(map[domain.RedirectType]int)
		for i := range snap.Rules {
			types[snap.Rules[i].RedirectType]++
		}
		stats["rule_types"] = types
	}
	return stats
}
