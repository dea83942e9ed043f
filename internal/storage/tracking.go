package storage

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/linkshift/redirector/internal/domain"
)

// TrackingStore is the append-only access log. When the settings enable the
// tracking cache the decoded log is kept in memory between calls.
type TrackingStore struct {
	mu        sync.Mutex
	path      string
	threshold int64
	settings  domain.SettingsProvider

	cache  []domain.TrackingEntry
	cached bool
	now    func() time.Time
}

// NewTrackingStore creates a store over path
func NewTrackingStore(path string, threshold int64, settings domain.SettingsProvider) *TrackingStore {
	if threshold == 0 {
		threshold = DefaultLargeFileThreshold
	}
	return &TrackingStore{path: path, threshold: threshold, settings: settings, now: time.Now}
}

// SetClock replaces the clock used to stamp appended entries
func (s *TrackingStore) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

func (s *TrackingStore) cacheEnabled(ctx context.Context) bool {
	if s.settings == nil {
		return true
	}
	settings, err := s.settings.Get(ctx)
	if err != nil {
		return true
	}
	return settings.EnableTrackingCache
}

// loadLocked returns the full log, from memory when cached
func (s *TrackingStore) loadLocked(ctx context.Context) ([]domain.TrackingEntry, error) {
	useCache := s.cacheEnabled(ctx)
	if useCache && s.cached {
		return s.cache, nil
	}

	entries, _, err := ReadArray[domain.TrackingEntry](ctx, s.path, s.threshold)
	if err != nil {
		return nil, domain.NewAppErrorWithCause(domain.ErrInternal, "Failed to read tracking log", 500, err,
			map[string]any{"path": s.path}).WithContext(ctx, "read_tracking")
	}

	if useCache {
		s.cache, s.cached = entries, true
	} else {
		s.cache, s.cached = nil, false
	}
	return entries, nil
}

// Append adds an entry. Root path accesses are never stored.
func (s *TrackingStore) Append(ctx context.Context, entry domain.TrackingEntry) (bool, error) {
	if entry.Path == domain.RootPath {
		return false, nil
	}
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if entry.RuleIDs == nil {
		entry.RuleIDs = []string{}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// stamped under the lock so the log stays in timestamp order
	if entry.Timestamp.IsZero() {
		entry.Timestamp = s.now().UTC()
	}

	entries, err := s.loadLocked(ctx)
	if err != nil {
		return false, err
	}

	next := make([]domain.TrackingEntry, len(entries), len(entries)+1)
	copy(next, entries)
	next = append(next, entry)

	if err := WriteJSON(s.path, next); err != nil {
		return false, domain.NewPersistenceError(s.path, err).WithContext(ctx, "append_tracking")
	}
	if s.cached {
		s.cache = next
	}
	return true, nil
}

// All returns the log in append order. The result must not be modified.
func (s *TrackingStore) All(ctx context.Context) ([]domain.TrackingEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.loadLocked(ctx)
	if err != nil {
		return nil, err
	}
	return entries[:len(entries):len(entries)], nil
}

// Clear empties the log
func (s *TrackingStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := WriteJSON(s.path, []domain.TrackingEntry{}); err != nil {
		return domain.NewPersistenceError(s.path, err).WithContext(ctx, "clear_tracking")
	}
	s.cache, s.cached = nil, false
	return nil
}
