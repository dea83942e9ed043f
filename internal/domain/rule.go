package domain

import (
	"regexp"
	"time"
)

// RedirectType selects how a matched URL is rewritten
type RedirectType string

const (
	// RedirectWildcard replaces the whole old URL with a fixed target
	RedirectWildcard RedirectType = "wildcard"
	// RedirectPartial replaces the matched path prefix and keeps the remainder
	RedirectPartial RedirectType = "partial"
	// RedirectDomain replaces the host only
	RedirectDomain RedirectType = "domain"
)

// Valid reports whether t is one of the supported redirect types
func (t RedirectType) Valid() bool {
	switch t {
	case RedirectWildcard, RedirectPartial, RedirectDomain:
		return true
	}
	return false
}

// Rule is the persisted form of a redirect rule
// @Description Redirect rule as stored on disk
type Rule struct {
	ID           string       `json:"id" yaml:"id" example:"123e4567-e89b-12d3-a456-426614174000"`
	Matcher      string       `json:"matcher" yaml:"matcher" example:"/old-page"`
	TargetURL    string       `json:"targetUrl,omitempty" yaml:"targetUrl,omitempty" example:"/new-page"`
	InfoText     string       `json:"infoText,omitempty" yaml:"infoText,omitempty" example:"News articles were migrated"`
	RedirectType RedirectType `json:"redirectType" yaml:"redirectType" example:"partial" enums:"wildcard,partial,domain"`
	AutoRedirect *bool        `json:"autoRedirect,omitempty" yaml:"autoRedirect,omitempty"`

	// Only one of these survives SanitizeFlags, depending on RedirectType
	DiscardQueryParams *bool `json:"discardQueryParams,omitempty" yaml:"discardQueryParams,omitempty"`
	ForwardQueryParams *bool `json:"forwardQueryParams,omitempty" yaml:"forwardQueryParams,omitempty"`

	CreatedAt time.Time `json:"createdAt" yaml:"createdAt" example:"2024-01-01T12:00:00Z"`
}

// SanitizeFlags keeps only the query-parameter flag that is meaningful for the
// rule's redirect type. The retained flag is always present after the call.
func SanitizeFlags(rule *Rule) {
	switch rule.RedirectType {
	case RedirectWildcard:
		rule.DiscardQueryParams = nil
		if rule.ForwardQueryParams == nil {
			rule.ForwardQueryParams = Bool(false)
		}
	case RedirectPartial, RedirectDomain:
		rule.ForwardQueryParams = nil
		if rule.DiscardQueryParams == nil {
			rule.DiscardQueryParams = Bool(false)
		}
	}
}

// ForwardsQuery reports whether a wildcard rule appends the original query string
func (r *Rule) ForwardsQuery() bool {
	return r.ForwardQueryParams != nil && *r.ForwardQueryParams
}

// DiscardsQuery reports whether a partial or domain rule drops the original query string
func (r *Rule) DiscardsQuery() bool {
	return r.DiscardQueryParams != nil && *r.DiscardQueryParams
}

// Bool returns a pointer to b
func Bool(b bool) *bool {
	return &b
}

// RuleInput is the payload for creating a rule
// @Description Payload for creating a redirect rule
type RuleInput struct {
	Matcher            string       `json:"matcher" validate:"required,max=2048" example:"/old-page"`
	TargetURL          string       `json:"targetUrl" validate:"max=2048" example:"/new-page"`
	InfoText           string       `json:"infoText" validate:"max=65536"`
	RedirectType       RedirectType `json:"redirectType" validate:"omitempty,oneof=wildcard partial domain" example:"partial"`
	AutoRedirect       *bool        `json:"autoRedirect,omitempty"`
	DiscardQueryParams *bool        `json:"discardQueryParams,omitempty"`
	ForwardQueryParams *bool        `json:"forwardQueryParams,omitempty"`
}

// RulePatch is a partial update; nil fields are left unchanged
// @Description Partial update of a redirect rule
type RulePatch struct {
	Matcher            *string       `json:"matcher,omitempty" validate:"omitempty,min=1,max=2048"`
	TargetURL          *string       `json:"targetUrl,omitempty" validate:"omitempty,max=2048"`
	InfoText           *string       `json:"infoText,omitempty" validate:"omitempty,max=65536"`
	RedirectType       *RedirectType `json:"redirectType,omitempty" validate:"omitempty,oneof=wildcard partial domain"`
	AutoRedirect       *bool         `json:"autoRedirect,omitempty"`
	DiscardQueryParams *bool         `json:"discardQueryParams,omitempty"`
	ForwardQueryParams *bool         `json:"forwardQueryParams,omitempty"`
}

// Apply merges the patch into rule
func (p RulePatch) Apply(rule *Rule) {
	if p.Matcher != nil {
		rule.Matcher = *p.Matcher
	}
	if p.TargetURL != nil {
		rule.TargetURL = *p.TargetURL
	}
	if p.InfoText != nil {
		rule.InfoText = *p.InfoText
	}
	if p.RedirectType != nil {
		rule.RedirectType = *p.RedirectType
	}
	if p.AutoRedirect != nil {
		rule.AutoRedirect = p.AutoRedirect
	}
	if p.DiscardQueryParams != nil {
		rule.DiscardQueryParams = p.DiscardQueryParams
	}
	if p.ForwardQueryParams != nil {
		rule.ForwardQueryParams = p.ForwardQueryParams
	}
}

// TrailingSlashPolicy controls whether a trailing slash is significant when matching
type TrailingSlashPolicy string

const (
	// TrailingSlashIgnore treats "/a" and "/a/" as the same path
	TrailingSlashIgnore TrailingSlashPolicy = "ignore"
	// TrailingSlashStrict treats "/a" and "/a/" as different paths
	TrailingSlashStrict TrailingSlashPolicy = "strict"
)

// MatchingConfig is the configuration a MatchableRule is derived under.
// Version is bumped whenever any other field changes; caches compare the version and the fields.
type MatchingConfig struct {
	CaseSensitivePath   bool                `json:"caseSensitivePath"`
	CaseSensitiveQuery  bool                `json:"caseSensitiveQuery"`
	TrailingSlashPolicy TrailingSlashPolicy `json:"trailingSlashPolicy"`
	Version             uint64              `json:"version"`
}

// SameFields reports whether two configs would produce identical derived rules
func (c MatchingConfig) SameFields(o MatchingConfig) bool {
	return c.CaseSensitivePath == o.CaseSensitivePath &&
		c.CaseSensitiveQuery == o.CaseSensitiveQuery &&
		c.TrailingSlashPolicy == o.TrailingSlashPolicy
}

// DefaultMatchingConfig is used when no settings exist yet
func DefaultMatchingConfig() MatchingConfig {
	return MatchingConfig{
		TrailingSlashPolicy: TrailingSlashIgnore,
		Version:             1,
	}
}

// MatchableRule is a Rule plus the artifacts needed to resolve requests against it.
// It is only valid together with the MatchingConfig whose Version it carries.
type MatchableRule struct {
	Rule

	// Host constraint, lower-cased; empty when the matcher is path-only
	Host string
	// Normalized path form of the matcher; empty for host-only domain matchers
	NormalizedPath string
	// Canonical "k=v&k=v" form of the matcher's query, keys sorted
	NormalizedQuery string
	QueryParams     map[string][]string
	// Trimmed target used when building the redirect
	NormalizedTarget string
	// Compiled glob for matchers containing '*'; nil for literal matchers
	Pattern *regexp.Regexp
	// Length in runes of the path before the first '*'
	LiteralLength int
	Segments      int
	// Set for domain rules whose matcher names a host
	IsDomainMatcher bool
	ConfigVersion   uint64
}

// Clean returns the persisted form with every derived field dropped
func (m *MatchableRule) Clean() Rule {
	return m.Rule
}

// CleanRules strips derived fields from a slice of matchable rules
func CleanRules(rules []MatchableRule) []Rule {
	out := make([]Rule, len(rules))
	for i := range rules {
		out[i] = rules[i].Clean()
	}
	return out
}

// ImportResult summarizes an import batch
type ImportResult struct {
	Imported int      `json:"imported"`
	Updated  int      `json:"updated"`
	Errors   []string `json:"errors"`
}

// BulkDeleteResult reports how many of the requested IDs existed
type BulkDeleteResult struct {
	Deleted  int `json:"deleted"`
	NotFound int `json:"notFound"`
}

// CacheStats represents decision cache metrics
type CacheStats struct {
	Hits     int64   `json:"hits"`
	Misses   int64   `json:"misses"`
	Size     int     `json:"size"`
	MaxSize  int     `json:"max_size"`
	HitRatio float64 `json:"hit_ratio"`
}

// HealthStatus represents the health status of a component
type HealthStatus struct {
	Status    string         `json:"status"` // "healthy", "unhealthy", "degraded"
	Message   string         `json:"message,omitempty"`
	Details   map[string]any `json:"details,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// Health status constants
const (
	HealthStatusHealthy   = "healthy"
	HealthStatusUnhealthy = "unhealthy"
	HealthStatusDegraded  = "degraded"
)

// SystemHealth represents overall system health
type SystemHealth struct {
	Status     string                  `json:"status"`
	Timestamp  time.Time               `json:"timestamp"`
	Components map[string]HealthStatus `json:"components"`
	Metrics    map[string]any          `json:"metrics,omitempty"`
	Uptime     time.Duration           `json:"uptime"`
}
