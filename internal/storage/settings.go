package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/linkshift/redirector/internal/domain"
)

// SettingsListener observes committed settings changes
type SettingsListener func(old, updated domain.Settings)

// SettingsStore persists the settings singleton. The first read of a missing
// file synthesizes and persists the defaults.
type SettingsStore struct {
	mu        sync.RWMutex
	path      string
	current   *domain.Settings
	listeners []SettingsListener
	revision  atomic.Uint64
	now       func() time.Time
}

// NewSettingsStore creates a store over path
func NewSettingsStore(path string) *SettingsStore {
	return &SettingsStore{path: path, now: time.Now}
}

// OnChange registers fn to be called after every committed update
func (s *SettingsStore) OnChange(fn SettingsListener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

// Revision increases on every committed update
func (s *SettingsStore) Revision() uint64 {
	return s.revision.Load()
}

// Get returns the current settings
func (s *SettingsStore) Get(ctx context.Context) (domain.Settings, error) {
	s.mu.RLock()
	if s.current != nil {
		out := *s.current
		s.mu.RUnlock()
		return out, nil
	}
	s.mu.RUnlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.loadLocked(ctx); err != nil {
		return domain.Settings{}, err
	}
	return *s.current, nil
}

func (s *SettingsStore) loadLocked(ctx context.Context) error {
	if s.current != nil {
		return nil
	}

	data, err := os.ReadFile(s.path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return domain.NewAppErrorWithCause(domain.ErrInternal, "Failed to read settings", 500, err,
			map[string]any{"path": s.path}).WithContext(ctx, "read_settings")
	}

	if err == nil && len(data) > 0 {
		// keys missing from older files keep their defaults
		settings := domain.DefaultSettings("", time.Time{})
		if err := json.Unmarshal(data, &settings); err != nil {
			return domain.NewAppErrorWithCause(domain.ErrInternal, "Failed to parse settings", 500,
				fmt.Errorf("%s: %w", s.path, err), map[string]any{"path": s.path}).WithContext(ctx, "read_settings")
		}
		if settings.ID == "" {
			settings.ID = uuid.New().String()
		}
		s.current = &settings
		return nil
	}

	defaults := domain.DefaultSettings(uuid.New().String(), s.now().UTC())
	if err := WriteJSON(s.path, defaults); err != nil {
		return domain.NewPersistenceError(s.path, err).WithContext(ctx, "write_settings")
	}
	log.Info().Str("path", s.path).Msg("Default settings created")
	s.current = &defaults
	return nil
}

// Update applies patch and persists the result. With replace set, every
// editable field is first reset to its default so the patch describes the
// complete settings. The matching version is bumped when a matching field
// changes.
func (s *SettingsStore) Update(ctx context.Context, patch domain.SettingsPatch, replace bool) (domain.Settings, error) {
	s.mu.Lock()
	if err := s.loadLocked(ctx); err != nil {
		s.mu.Unlock()
		return domain.Settings{}, err
	}

	old := *s.current
	next := old
	if replace {
		next = domain.DefaultSettings(old.ID, old.UpdatedAt)
		next.MatchingVersion = old.MatchingVersion
	}
	patch.Apply(&next)

	oldCfg := old.MatchingConfig()
	if !oldCfg.SameFields(next.MatchingConfig()) {
		next.MatchingVersion = oldCfg.Version + 1
	} else {
		next.MatchingVersion = oldCfg.Version
	}
	next.UpdatedAt = s.now().UTC()

	if err := WriteJSON(s.path, next); err != nil {
		s.mu.Unlock()
		return domain.Settings{}, domain.NewPersistenceError(s.path, err).WithContext(ctx, "write_settings")
	}
	s.current = &next
	s.revision.Add(1)
	listeners := append([]SettingsListener(nil), s.listeners...)
	s.mu.Unlock()

	if next.MatchingVersion != oldCfg.Version {
		log.Info().
			Uint64("matching_version", next.MatchingVersion).
			Bool("case_sensitive_path", next.CaseSensitiveLinkDetection).
			Bool("case_sensitive_query", next.CaseSensitiveQuery).
			Str("trailing_slash", string(next.MatchingConfig().TrailingSlashPolicy)).
			Msg("Matching configuration changed")
	}

	for _, fn := range listeners {
		fn(old, next)
	}
	return next, nil
}
