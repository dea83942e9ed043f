package domain

import "context"

// RuleRecordStore is the durable rule list. It supports whole-file read and replace only.
type RuleRecordStore interface {
	ReadAll(ctx context.Context) ([]Rule, error)
	ReplaceAll(ctx context.Context, rules []Rule) error

	// Health and monitoring
	HealthCheck(ctx context.Context) HealthStatus
}

// SettingsProvider supplies the current settings singleton
type SettingsProvider interface {
	Get(ctx context.Context) (Settings, error)
}

// SettingsService reads and updates the settings singleton
type SettingsService interface {
	SettingsProvider
	// Update merges the patch, or resets every editable field to it when replace is set
	Update(ctx context.Context, patch SettingsPatch, replace bool) (Settings, error)
	// Revision increases on every successful update
	Revision() uint64
}

// RuleService is the administrative contract of the rule cache
type RuleService interface {
	List(ctx context.Context, params ListParams) (Page[Rule], error)
	Rule(ctx context.Context, id string) (*Rule, error)
	Rules(ctx context.Context) ([]Rule, error)
	// Create and Update reject a duplicate matcher unless force is set
	Create(ctx context.Context, input RuleInput, force bool) (*Rule, error)
	// Update returns nil, nil when the rule does not exist
	Update(ctx context.Context, id string, patch RulePatch, force bool) (*Rule, error)
	// Delete returns false, nil when the rule does not exist
	Delete(ctx context.Context, id string) (bool, error)
	BulkDelete(ctx context.Context, ids []string) (BulkDeleteResult, error)
	Clear(ctx context.Context) error
	Import(ctx context.Context, records []ImportRecord) (ImportResult, error)
	Rebuild(ctx context.Context) error

	// Health and monitoring
	HealthCheck(ctx context.Context) HealthStatus
	GetStats(ctx context.Context) map[string]any
}

// Resolver turns a request URL into a redirect decision
type Resolver interface {
	Resolve(ctx context.Context, requestURL string) (*Decision, error)
	InvalidateCache(ctx context.Context) error

	// Health and monitoring
	HealthCheck(ctx context.Context) HealthStatus
	GetStats(ctx context.Context) map[string]any
}

// DecisionCache memoizes decisions for repeated request URLs
type DecisionCache interface {
	Get(key string) (*Decision, bool)
	Set(key string, decision *Decision)
	Invalidate(key string)
	Clear()
	Stats() CacheStats

	// Health and monitoring
	HealthCheck(ctx context.Context) HealthStatus
}

// TrackingService records accesses and serves statistics over them
type TrackingService interface {
	Record(ctx context.Context, entry TrackingEntry) error
	Entries(ctx context.Context, query EntryQuery) (Page[EnrichedEntry], error)
	Stats(ctx context.Context) (TrackingStats, error)
	TopURLs(ctx context.Context, query TopQuery) (Page[URLCount], error)
	Clear(ctx context.Context) error
}

// HealthChecker defines the interface for system health monitoring
type HealthChecker interface {
	CheckHealth(ctx context.Context) SystemHealth
	CheckComponent(ctx context.Context, component string) HealthStatus
}

// Validator defines the interface for input validation
type Validator interface {
	ValidateStruct(s any) error
	ValidateRule(rule *Rule) error
	ValidateURL(url string) error
}
