package domain

// QualityBand groups match quality scores for the explanatory text shown to visitors
type QualityBand string

const (
	BandHigh   QualityBand = "high"
	BandMedium QualityBand = "medium"
	BandLow    QualityBand = "low"
	BandRoot   QualityBand = "root"
	BandNone   QualityBand = "none"
)

// Quality thresholds
const (
	QualityExact  = 100
	QualityHigh   = 90
	QualityMedium = 60
)

// BandFor maps a score to its band. Root and none are decided by the
// resolver, not by the score, and are never returned here.
func BandFor(quality int) QualityBand {
	switch {
	case quality >= QualityHigh:
		return BandHigh
	case quality >= QualityMedium:
		return BandMedium
	default:
		return BandLow
	}
}

// ParameterPolicy describes what happened to the request's query string
type ParameterPolicy string

const (
	// ParamsDrop is the wildcard default: the query string is not carried over
	ParamsDrop ParameterPolicy = "drop"
	// ParamsForward appends the original query string to a wildcard target
	ParamsForward ParameterPolicy = "forward"
	// ParamsKeep is the partial/domain default: the query string is preserved
	ParamsKeep ParameterPolicy = "keep"
	// ParamsDiscard strips the query string from a partial/domain target
	ParamsDiscard ParameterPolicy = "discard"
)

// Decision is the outcome of resolving one request URL
// @Description Redirect decision for a request URL
type Decision struct {
	RequestURL      string          `json:"requestUrl" example:"https://old.example.com/news/1?x=1"`
	TargetURL       string          `json:"targetUrl" example:"https://new.example.com/articles/1?x=1"`
	Quality         int             `json:"quality" example:"45"`
	Band            QualityBand     `json:"band" example:"low"`
	Explanation     string          `json:"explanation,omitempty"`
	Rule            *Rule           `json:"rule,omitempty"`
	RuleIDs         []string        `json:"ruleIds"`
	ParameterPolicy ParameterPolicy `json:"parameterPolicy,omitempty" example:"keep"`
	AutoRedirect    bool            `json:"autoRedirect"`
	InfoText        string          `json:"infoText,omitempty"`
	CacheHit        bool            `json:"cacheHit"`
}

// RuleID returns the winning rule's ID or ""
func (d *Decision) RuleID() string {
	if d.Rule == nil {
		return ""
	}
	return d.Rule.ID
}

// Clone returns a copy that shares no slices with d
func (d *Decision) Clone() *Decision {
	out := *d
	out.RuleIDs = append([]string(nil), d.RuleIDs...)
	if d.Rule != nil {
		r := *d.Rule
		out.Rule = &r
	}
	return &out
}
