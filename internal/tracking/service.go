// Package tracking records resolved accesses and serves statistics over them.
package tracking

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/linkshift/redirector/internal/domain"
	"github.com/linkshift/redirector/internal/observability"
	"github.com/linkshift/redirector/internal/preprocess"
	"github.com/linkshift/redirector/internal/query"
)

// Log is the append-only access log
type Log interface {
	Append(ctx context.Context, entry domain.TrackingEntry) (bool, error)
	All(ctx context.Context) ([]domain.TrackingEntry, error)
	Clear(ctx context.Context) error
}

// RuleSource supplies the rules referenced by tracking entries
type RuleSource interface {
	Rules(ctx context.Context) ([]domain.Rule, error)
}

// Service implements domain.TrackingService
type Service struct {
	log     Log
	rules   RuleSource
	metrics *observability.Metrics
	now     func() time.Time
}

// NewService creates a tracking service. metrics may be nil.
func NewService(l Log, rules RuleSource, metrics *observability.Metrics) *Service {
	return &Service{log: l, rules: rules, metrics: metrics, now: time.Now}
}

// EntryFor builds the tracking entry for a resolved request
func EntryFor(d *domain.Decision, userAgent string) domain.TrackingEntry {
	return domain.TrackingEntry{
		OldURL:       d.RequestURL,
		NewURL:       d.TargetURL,
		Path:         RequestPath(d.RequestURL),
		UserAgent:    userAgent,
		MatchQuality: d.Quality,
		RuleID:       d.RuleID(),
		RuleIDs:      append([]string{}, d.RuleIDs...),
	}
}

// RequestPath returns the path and query of a request URL as counted by the statistics
func RequestPath(raw string) string {
	parts := preprocess.SplitURL(raw, false)
	path := preprocess.CollapseSlashes(parts.Path)
	if parts.Query != "" {
		path += "?" + parts.Query
	}
	return path
}

// Record appends entry. The log assigns the ID and the timestamp, so it
// stays in timestamp order even under concurrent callers.
func (s *Service) Record(ctx context.Context, entry domain.TrackingEntry) error {
	entry.ID = ""
	entry.Timestamp = time.Time{}

	stored, err := s.log.Append(ctx, entry)
	s.metrics.ObserveTracking(stored, err)
	if err != nil {
		log.Error().Err(err).Str("path", entry.Path).Msg("Failed to record access")
		return err
	}
	return nil
}

// Entries returns one page of entries, enriched with the rules they reference
func (s *Service) Entries(ctx context.Context, q domain.EntryQuery) (domain.Page[domain.EnrichedEntry], error) {
	entries, err := s.log.All(ctx)
	if err != nil {
		return domain.Page[domain.EnrichedEntry]{}, err
	}

	filters := []query.Filter[domain.TrackingEntry]{notRoot}
	if q.MinQuality != nil {
		minQuality := *q.MinQuality
		filters = append(filters, func(e *domain.TrackingEntry) bool { return e.MatchQuality >= minQuality })
	}
	if q.MaxQuality != nil {
		maxQuality := *q.MaxQuality
		filters = append(filters, func(e *domain.TrackingEntry) bool { return e.MatchQuality <= maxQuality })
	}
	switch q.RuleFilter {
	case domain.RuleFilterWithRule:
		filters = append(filters, func(e *domain.TrackingEntry) bool { return e.HasRule() })
	case domain.RuleFilterNoRule:
		filters = append(filters, func(e *domain.TrackingEntry) bool { return !e.HasRule() })
	}

	page := query.Run(entries, q.ListParams, EntrySchema, filters...)

	rules, err := s.rules.Rules(ctx)
	if err != nil {
		return domain.Page[domain.EnrichedEntry]{}, err
	}
	byID := make(map[string]*domain.Rule, len(rules))
	for i := range rules {
		byID[rules[i].ID] = &rules[i]
	}

	out := domain.Page[domain.EnrichedEntry]{
		Items:      make([]domain.EnrichedEntry, len(page.Items)),
		Total:      page.Total,
		TotalAll:   page.TotalAll,
		TotalPages: page.TotalPages,
		Page:       page.Page,
		Limit:      page.Limit,
	}
	for i, e := range page.Items {
		out.Items[i] = enrich(e, byID)
	}
	return out, nil
}

func enrich(e domain.TrackingEntry, rules map[string]*domain.Rule) domain.EnrichedEntry {
	out := domain.EnrichedEntry{TrackingEntry: e, Rules: []domain.Rule{}}
	if r, ok := rules[e.RuleID]; ok && e.RuleID != "" {
		rule := *r
		out.Rule = &rule
	}
	for _, id := range e.ReferencedRuleIDs() {
		if r, ok := rules[id]; ok {
			out.Rules = append(out.Rules, *r)
		}
	}
	return out
}

func notRoot(e *domain.TrackingEntry) bool {
	return e.Path != domain.RootPath
}

// Stats counts accesses overall and in the last 24 hours and 7 days
func (s *Service) Stats(ctx context.Context) (domain.TrackingStats, error) {
	entries, err := s.log.All(ctx)
	if err != nil {
		return domain.TrackingStats{}, err
	}

	now := s.now()
	day, week := domain.Range24h.Cutoff(now), domain.Range7d.Cutoff(now)

	var stats domain.TrackingStats
	for i := range entries {
		if !notRoot(&entries[i]) {
			continue
		}
		stats.Total++
		ts := entries[i].Timestamp
		if !ts.Before(week) {
			stats.Last7d++
		}
		if !ts.Before(day) {
			stats.Last24h++
		}
	}
	return stats, nil
}

// TopURLs returns one page of paths ranked by access count
func (s *Service) TopURLs(ctx context.Context, q domain.TopQuery) (domain.Page[domain.URLCount], error) {
	entries, err := s.log.All(ctx)
	if err != nil {
		return domain.Page[domain.URLCount]{}, err
	}

	cutoff := q.Range.Cutoff(s.now())
	index := make(map[string]int)
	var counts []domain.URLCount
	for i := range entries {
		e := &entries[i]
		if e.Path == domain.RootPath || e.Path == domain.AdminPath {
			continue
		}
		if !cutoff.IsZero() && e.Timestamp.Before(cutoff) {
			continue
		}
		if j, ok := index[e.Path]; ok {
			counts[j].Count++
			continue
		}
		index[e.Path] = len(counts)
		counts = append(counts, domain.URLCount{Path: e.Path, Count: 1})
	}

	return query.Run(counts, q.ListParams, URLCountSchema), nil
}

// Clear empties the log
func (s *Service) Clear(ctx context.Context) error {
	if err := s.log.Clear(ctx); err != nil {
		return err
	}
	log.Warn().Msg("Tracking log cleared")
	return nil
}
