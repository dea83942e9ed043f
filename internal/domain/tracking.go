package domain

import "time"

// RootPath and AdminPath are excluded from every statistic
const (
	RootPath  = "/"
	AdminPath = "/?admin=true"
)

// TrackingEntry records one resolved access. Entries are never mutated.
// @Description Access log entry
type TrackingEntry struct {
	ID           string    `json:"id"`
	OldURL       string    `json:"oldUrl"`
	NewURL       string    `json:"newUrl,omitempty"`
	Path         string    `json:"path"`
	Timestamp    time.Time `json:"timestamp"`
	UserAgent    string    `json:"userAgent,omitempty"`
	MatchQuality int       `json:"matchQuality"`
	RuleID       string    `json:"ruleId,omitempty"`
	RuleIDs      []string  `json:"ruleIds"`
}

// HasRule reports whether any rule contributed to the entry
func (e *TrackingEntry) HasRule() bool {
	return e.RuleID != "" || len(e.RuleIDs) > 0
}

// ReferencedRuleIDs returns RuleIDs, falling back to the single RuleID
func (e *TrackingEntry) ReferencedRuleIDs() []string {
	if len(e.RuleIDs) > 0 {
		return e.RuleIDs
	}
	if e.RuleID != "" {
		return []string{e.RuleID}
	}
	return nil
}

// TimeRange limits statistics to a recent window
type TimeRange string

const (
	Range24h TimeRange = "24h"
	Range7d  TimeRange = "7d"
	RangeAll TimeRange = "all"
)

// Cutoff returns the earliest timestamp inside the range; zero for all
func (r TimeRange) Cutoff(now time.Time) time.Time {
	switch r {
	case Range24h:
		return now.Add(-24 * time.Hour)
	case Range7d:
		return now.AddDate(0, 0, -7)
	default:
		return time.Time{}
	}
}

// Rule filters for tracking entries
const (
	RuleFilterAll      = "all"
	RuleFilterWithRule = "with_rule"
	RuleFilterNoRule   = "no_rule"
)

// EntryQuery selects a page of tracking entries
type EntryQuery struct {
	ListParams
	RuleFilter string `query:"ruleFilter" validate:"omitempty,oneof=all with_rule no_rule"`
	MinQuality *int   `query:"minQuality" validate:"omitempty,min=0,max=100"`
	MaxQuality *int   `query:"maxQuality" validate:"omitempty,min=0,max=100"`
}

// EnrichedEntry is a tracking entry joined with the rules it references.
// Rules that were deleted since the access are omitted.
type EnrichedEntry struct {
	TrackingEntry
	Rule  *Rule  `json:"rule,omitempty"`
	Rules []Rule `json:"rules,omitempty"`
}

// TrackingStats counts accesses, excluding the root path
type TrackingStats struct {
	Total   int `json:"total"`
	Last24h int `json:"last24h"`
	Last7d  int `json:"last7d"`
}

// TopQuery selects a page of the most accessed paths
type TopQuery struct {
	ListParams
	Range TimeRange `query:"timeRange" validate:"omitempty,oneof=24h 7d all"`
}

// URLCount is the number of accesses for one path
type URLCount struct {
	Path  string `json:"path"`
	Count int    `json:"count"`
}
