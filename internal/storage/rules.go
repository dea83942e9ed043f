package storage

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/linkshift/redirector/internal/domain"
)

// RuleStore is the file-backed rule list. It only supports reading and
// replacing the whole file; callers own the in-memory view.
type RuleStore struct {
	path      string
	threshold int64

	lastCount   atomic.Int64
	lastWrite   atomic.Int64
	streamReads atomic.Int64
}

// NewRuleStore creates a store over path. threshold is the size above
// which reads stream the array; zero selects DefaultLargeFileThreshold.
func NewRuleStore(path string, threshold int64) *RuleStore {
	if threshold == 0 {
		threshold = DefaultLargeFileThreshold
	}
	return &RuleStore{path: path, threshold: threshold}
}

// Path returns the backing file
func (s *RuleStore) Path() string {
	return s.path
}

// ReadAll returns every persisted rule in file order
func (s *RuleStore) ReadAll(ctx context.Context) ([]domain.Rule, error) {
	rules, streamed, err := ReadArray[domain.Rule](ctx, s.path, s.threshold)
	if err != nil {
		return nil, domain.NewAppErrorWithCause(
			domain.ErrInternal,
			"Failed to read rules file",
			500,
			err,
			map[string]any{"path": s.path},
		).WithContext(ctx, "read_rules")
	}
	if streamed {
		s.streamReads.Add(1)
		log.Info().Str("path", s.path).Int("rules", len(rules)).Msg("Rules file streamed")
	}
	s.lastCount.Store(int64(len(rules)))
	return rules, nil
}

// ReplaceAll atomically replaces the file with rules. Flags are sanitized on
// the way out so no write path can persist a conflicting flag pair.
func (s *RuleStore) ReplaceAll(ctx context.Context, rules []domain.Rule) error {
	if err := ctx.Err(); err != nil {
		return domain.NewAppErrorWithCause(domain.ErrTimeout, "Write cancelled", 408, err, nil).WithContext(ctx, "write_rules")
	}

	out := make([]domain.Rule, len(rules))
	for i := range rules {
		out[i] = rules[i]
		domain.SanitizeFlags(&out[i])
	}

	if err := WriteJSON(s.path, out); err != nil {
		return domain.NewPersistenceError(s.path, err).WithContext(ctx, "write_rules")
	}
	s.lastCount.Store(int64(len(out)))
	s.lastWrite.Store(time.Now().UnixNano())
	return nil
}

// HealthCheck performs a health check on the rules file
func (s *RuleStore) HealthCheck(ctx context.Context) domain.HealthStatus {
	now := time.Now()
	details := map[string]any{
		"path":       s.path,
		"rule_count": s.lastCount.Load(),
	}

	dir := filepath.Dir(s.path)
	if _, err := os.Stat(dir); err != nil {
		details["error"] = err.Error()
		return domain.HealthStatus{
			Status:    domain.HealthStatusUnhealthy,
			Message:   "Data directory is not accessible",
			Details:   details,
			Timestamp: now,
		}
	}

	if info, err := os.Stat(s.path); err == nil {
		details["size_bytes"] = info.Size()
		details["streaming"] = info.Size() > s.threshold
	}

	return domain.HealthStatus{
		Status:    domain.HealthStatusHealthy,
		Message:   "Storage is operating normally",
		Details:   details,
		Timestamp: now,
	}
}

// GetStats returns storage statistics
func (s *RuleStore) GetStats(ctx context.Context) map[string]any {
	stats := map[string]any{
		"rule_count":       s.lastCount.Load(),
		"path":             s.path,
		"stream_threshold": s.threshold,
		"streamed_reads":   s.streamReads.Load(),
	}
	if last := s.lastWrite.Load(); last > 0 {
		stats["last_write"] = time.Unix(0, last).UTC()
	}
	return stats
}
