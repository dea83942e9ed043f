// Package app assembles the redirector components from configuration.
package app

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"

	"github.com/linkshift/redirector/internal/cache"
	"github.com/linkshift/redirector/internal/config"
	"github.com/linkshift/redirector/internal/domain"
	"github.com/linkshift/redirector/internal/health"
	"github.com/linkshift/redirector/internal/matcher"
	"github.com/linkshift/redirector/internal/observability"
	"github.com/linkshift/redirector/internal/rulecache"
	"github.com/linkshift/redirector/internal/storage"
	"github.com/linkshift/redirector/internal/tracking"
)

// Components holds the wired services
type Components struct {
	Registry  *prometheus.Registry
	Metrics   *observability.Metrics
	Validator *domain.InputValidator

	RuleStore     *storage.RuleStore
	SettingsStore *storage.SettingsStore
	TrackingStore *storage.TrackingStore

	Rules     *rulecache.Cache
	Decisions *cache.DecisionLRU
	Matcher   *matcher.Matcher
	Tracking  *tracking.Service
	Health    *health.SystemHealthChecker
}

// Build wires every component over the files named by cfg. The rule cache is
// populated before Build returns so that the first request is not delayed.
func Build(ctx context.Context, cfg *config.Config) (*Components, error) {
	reg := prometheus.NewRegistry()
	metrics := observability.NewMetrics(reg)
	validator := domain.NewInputValidator()

	settings := storage.NewSettingsStore(cfg.SettingsPath())
	ruleStore := storage.NewRuleStore(cfg.RulesPath(), cfg.Storage.LargeFileThreshold)
	trackingStore := storage.NewTrackingStore(cfg.TrackingPath(), cfg.Storage.LargeFileThreshold, settings)

	rules := rulecache.New(ruleStore, settings, rulecache.Options{
		BatchSize: cfg.Cache.ReprocessBatchSize,
		Metrics:   metrics,
		Validator: validator,
	})
	decisions := cache.NewDecisionLRU(cfg.Cache.DecisionCacheSize)

	settings.OnChange(func(old, updated domain.Settings) {
		if old.MatchingVersion != updated.MatchingVersion {
			rules.Refresh(updated.MatchingConfig())
		}
	})
	// decisions are keyed by generation, so earlier entries can never hit again
	rules.OnSwap(func(snap *rulecache.Snapshot) {
		decisions.Clear()
		log.Debug().Uint64("generation", snap.Generation).Int("rules", len(snap.Rules)).Msg("Rule snapshot installed")
	})

	snap, err := rules.Get(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to load rules: %w", err)
	}
	log.Info().
		Int("rules", len(snap.Rules)).
		Uint64("config_version", snap.Config.Version).
		Str("rules_file", ruleStore.Path()).
		Msg("Rules loaded")

	m := matcher.NewMatcher(rules, settings, decisions, metrics)
	trackingSvc := tracking.NewService(trackingStore, rules, metrics)

	return &Components{
		Registry:      reg,
		Metrics:       metrics,
		Validator:     validator,
		RuleStore:     ruleStore,
		SettingsStore: settings,
		TrackingStore: trackingStore,
		Rules:         rules,
		Decisions:     decisions,
		Matcher:       m,
		Tracking:      trackingSvc,
		Health:        health.NewSystemHealthChecker(ruleStore, rules, m, decisions),
	}, nil
}
