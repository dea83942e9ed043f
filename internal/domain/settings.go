package domain

import "time"

// Settings is the singleton configuration record
// @Description General settings
type Settings struct {
	ID string `json:"id"`

	HeaderTitle       string `json:"headerTitle"`
	MainTitle         string `json:"mainTitle"`
	MainDescription   string `json:"mainDescription"`
	OldURLLabel       string `json:"oldUrlLabel"`
	NewURLLabel       string `json:"newUrlLabel"`
	CopyButtonText    string `json:"copyButtonText"`
	OpenButtonText    string `json:"openButtonText"`
	SpecialHintsTitle string `json:"specialHintsTitle"`
	FooterCopyright   string `json:"footerCopyright"`

	// Base URL for root, no-match and relative targets
	DefaultNewDomain string `json:"defaultNewDomain" example:"https://new.example.com/"`

	CaseSensitiveLinkDetection bool                `json:"caseSensitiveLinkDetection"`
	CaseSensitiveQuery         bool                `json:"caseSensitiveQuery"`
	TrailingSlashPolicy        TrailingSlashPolicy `json:"trailingSlashPolicy" enums:"ignore,strict"`
	MatchingVersion            uint64              `json:"matchingVersion"`

	AutoRedirect           bool   `json:"autoRedirect"`
	ShowLinkQualityGauge   bool   `json:"showLinkQualityGauge"`
	MatchHighExplanation   string `json:"matchHighExplanation"`
	MatchMediumExplanation string `json:"matchMediumExplanation"`
	MatchLowExplanation    string `json:"matchLowExplanation"`
	MatchRootExplanation   string `json:"matchRootExplanation"`
	MatchNoneExplanation   string `json:"matchNoneExplanation"`

	EnableTrackingCache bool `json:"enableTrackingCache"`

	UpdatedAt time.Time `json:"updatedAt"`
}

// MatchingConfig projects the matching fields of the settings
func (s *Settings) MatchingConfig() MatchingConfig {
	policy := s.TrailingSlashPolicy
	if policy == "" {
		policy = TrailingSlashIgnore
	}
	version := s.MatchingVersion
	if version == 0 {
		version = 1
	}
	return MatchingConfig{
		CaseSensitivePath:   s.CaseSensitiveLinkDetection,
		CaseSensitiveQuery:  s.CaseSensitiveQuery,
		TrailingSlashPolicy: policy,
		Version:             version,
	}
}

// Explanation returns the administrator-defined message for a quality band
func (s *Settings) Explanation(band QualityBand) string {
	switch band {
	case BandHigh:
		return s.MatchHighExplanation
	case BandMedium:
		return s.MatchMediumExplanation
	case BandLow:
		return s.MatchLowExplanation
	case BandRoot:
		return s.MatchRootExplanation
	default:
		return s.MatchNoneExplanation
	}
}

// DefaultSettings is synthesized and persisted when no settings file exists
func DefaultSettings(id string, now time.Time) Settings {
	return Settings{
		ID:                     id,
		HeaderTitle:            "URL Migration Tool",
		MainTitle:              "Outdated link detected",
		MainDescription:        "You are using an outdated link. Please update your bookmarks and use the new URL below.",
		OldURLLabel:            "Old URL (outdated)",
		NewURLLabel:            "New URL (use this one)",
		CopyButtonText:         "Copy URL",
		OpenButtonText:         "Open in new tab",
		SpecialHintsTitle:      "Notes for this URL",
		FooterCopyright:        "",
		DefaultNewDomain:       "https://thisisthenewurl.com/",
		TrailingSlashPolicy:    TrailingSlashIgnore,
		MatchingVersion:        1,
		ShowLinkQualityGauge:   true,
		MatchHighExplanation:   "The new URL corresponds exactly to the requested page. Highest quality.",
		MatchMediumExplanation: "The URL was recognized but differs slightly, for example by additional parameters.",
		MatchLowExplanation:    "Only part of the URL was recognized and replaced.",
		MatchRootExplanation:   "Start page detected. Redirecting to the new domain.",
		MatchNoneExplanation:   "The URL could not be mapped specifically. Redirecting to the default page.",
		EnableTrackingCache:    true,
		UpdatedAt:              now,
	}
}

// SettingsPatch is a merge-mode settings update; nil fields are left unchanged
// @Description Partial settings update
type SettingsPatch struct {
	HeaderTitle       *string `json:"headerTitle,omitempty"`
	MainTitle         *string `json:"mainTitle,omitempty"`
	MainDescription   *string `json:"mainDescription,omitempty"`
	OldURLLabel       *string `json:"oldUrlLabel,omitempty"`
	NewURLLabel       *string `json:"newUrlLabel,omitempty"`
	CopyButtonText    *string `json:"copyButtonText,omitempty"`
	OpenButtonText    *string `json:"openButtonText,omitempty"`
	SpecialHintsTitle *string `json:"specialHintsTitle,omitempty"`
	FooterCopyright   *string `json:"footerCopyright,omitempty"`

	DefaultNewDomain *string `json:"defaultNewDomain,omitempty" validate:"omitempty,url"`

	CaseSensitiveLinkDetection *bool                `json:"caseSensitiveLinkDetection,omitempty"`
	CaseSensitiveQuery         *bool                `json:"caseSensitiveQuery,omitempty"`
	TrailingSlashPolicy        *TrailingSlashPolicy `json:"trailingSlashPolicy,omitempty" validate:"omitempty,oneof=ignore strict"`

	AutoRedirect           *bool   `json:"autoRedirect,omitempty"`
	ShowLinkQualityGauge   *bool   `json:"showLinkQualityGauge,omitempty"`
	MatchHighExplanation   *string `json:"matchHighExplanation,omitempty"`
	MatchMediumExplanation *string `json:"matchMediumExplanation,omitempty"`
	MatchLowExplanation    *string `json:"matchLowExplanation,omitempty"`
	MatchRootExplanation   *string `json:"matchRootExplanation,omitempty"`
	MatchNoneExplanation   *string `json:"matchNoneExplanation,omitempty"`

	EnableTrackingCache *bool `json:"enableTrackingCache,omitempty"`
}

// Apply merges the patch into s. MatchingVersion and identity are managed by the store.
func (p SettingsPatch) Apply(s *Settings) {
	setString(&s.HeaderTitle, p.HeaderTitle)
	setString(&s.MainTitle, p.MainTitle)
	setString(&s.MainDescription, p.MainDescription)
	setString(&s.OldURLLabel, p.OldURLLabel)
	setString(&s.NewURLLabel, p.NewURLLabel)
	setString(&s.CopyButtonText, p.CopyButtonText)
	setString(&s.OpenButtonText, p.OpenButtonText)
	setString(&s.SpecialHintsTitle, p.SpecialHintsTitle)
	setString(&s.FooterCopyright, p.FooterCopyright)
	setString(&s.DefaultNewDomain, p.DefaultNewDomain)
	setString(&s.MatchHighExplanation, p.MatchHighExplanation)
	setString(&s.MatchMediumExplanation, p.MatchMediumExplanation)
	setString(&s.MatchLowExplanation, p.MatchLowExplanation)
	setString(&s.MatchRootExplanation, p.MatchRootExplanation)
	setString(&s.MatchNoneExplanation, p.MatchNoneExplanation)

	setBool(&s.CaseSensitiveLinkDetection, p.CaseSensitiveLinkDetection)
	setBool(&s.CaseSensitiveQuery, p.CaseSensitiveQuery)
	setBool(&s.AutoRedirect, p.AutoRedirect)
	setBool(&s.ShowLinkQualityGauge, p.ShowLinkQualityGauge)
	setBool(&s.EnableTrackingCache, p.EnableTrackingCache)

	if p.TrailingSlashPolicy != nil {
		s.TrailingSlashPolicy = *p.TrailingSlashPolicy
	}
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

func setBool(dst *bool, v *bool) {
	if v != nil {
		*dst = *v
	}
}
