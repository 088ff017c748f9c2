package domain

import (
	"strings"
	"time"
)

// Region is a tracked world power.
type Region string

const (
	RegionUS    Region = "US"
	RegionChina Region = "China"
	RegionEU    Region = "EU"
	RegionJapan Region = "Japan"
	RegionKorea Region = "Korea"
	RegionIndia Region = "India"
)

// Regions is the fixed region set in canonical order. Adding an entry here is
// a schema migration: every artifact keyed by region grows a column.
var Regions = []Region{RegionUS, RegionChina, RegionEU, RegionJapan, RegionKorea, RegionIndia}

var regionAliases = map[string]Region{
	"us":             RegionUS,
	"usa":            RegionUS,
	"u.s.":           RegionUS,
	"united states":  RegionUS,
	"america":        RegionUS,
	"china":          RegionChina,
	"prc":            RegionChina,
	"cn":             RegionChina,
	"eu":             RegionEU,
	"europe":         RegionEU,
	"european union": RegionEU,
	"japan":          RegionJapan,
	"jp":             RegionJapan,
	"korea":          RegionKorea,
	"south korea":    RegionKorea,
	"kr":             RegionKorea,
	"india":          RegionIndia,
	"in":             RegionIndia,
}

// ParseRegion maps a free-form region name onto the fixed set.
func ParseRegion(value string) (Region, bool) {
	r, ok := regionAliases[strings.ToLower(strings.TrimSpace(value))]
	return r, ok
}

// Index returns the canonical position of the region, or -1.
func (r Region) Index() int {
	for i, known := range Regions {
		if known == r {
			return i
		}
	}
	return -1
}

// Dimension is one of the five impact axes.
type Dimension int

const (
	ResearchIntensity Dimension = iota
	StandardizationInfluence
	IndustrialDeployment
	SpectrumPolicySignal
	EcosystemMaturity
	dimensionCount
)

// Dimensions lists the impact axes in canonical order.
var Dimensions = []Dimension{
	ResearchIntensity,
	StandardizationInfluence,
	IndustrialDeployment,
	SpectrumPolicySignal,
	EcosystemMaturity,
}

// Key is the JSON field name of the dimension.
func (d Dimension) Key() string {
	switch d {
	case ResearchIntensity:
		return "research_intensity"
	case StandardizationInfluence:
		return "standardization_influence"
	case IndustrialDeployment:
		return "industrial_deployment"
	case SpectrumPolicySignal:
		return "spectrum_policy_signal"
	case EcosystemMaturity:
		return "ecosystem_maturity"
	default:
		return "unknown"
	}
}

// Score bounds.
const (
	MaxImpact     = 5
	MaxImportance = 10.0
)

// Impact holds the five dimension scores, each in [0,5].
type Impact [dimensionCount]int

// Get returns the score for a dimension.
func (i Impact) Get(d Dimension) int {
	return i[d]
}

// MarshalMap renders the impact as a JSON-friendly map.
func (i Impact) MarshalMap() map[string]int {
	out := make(map[string]int, len(Dimensions))
	for _, d := range Dimensions {
		out[d.Key()] = i[d]
	}
	return out
}

// Horizon is the expected time to impact.
type Horizon string

const (
	HorizonNear Horizon = "near"
	HorizonMid  Horizon = "mid"
	HorizonLong Horizon = "long"
)

// AnalysisProfile is the validated intelligence record for one article.
type AnalysisProfile struct {
	ArticleID        Fingerprint
	Topics           []string
	Impact           Impact
	Horizon          Horizon
	Importance       float64
	SourceRegion     Region
	WorldPowerImpact map[Region]int
	EmergingConcepts []string
	Evidence         []string
	Degraded         bool
	PublishedAt      time.Time
	AnalyzedAt       time.Time
}

// EffectiveDate is the date used for windowing.
func (p AnalysisProfile) EffectiveDate() time.Time {
	if p.PublishedAt.IsZero() {
		return p.AnalyzedAt
	}
	return p.PublishedAt
}

// Insights is the JSON shape of a profile inside latest_digest.json.
type Insights struct {
	Topics           []string       `json:"6g_topics"`
	Dimensions       map[string]int `json:"impact_dimensions"`
	TimeHorizon      Horizon        `json:"time_horizon"`
	Importance       float64        `json:"overall_6g_importance"`
	SourceRegion     string         `json:"source_region,omitempty"`
	WorldPowerImpact map[Region]int `json:"world_power_impact"`
	EmergingConcepts []string       `json:"emerging_concepts"`
	Evidence         []string       `json:"key_evidence"`
	Degraded         bool           `json:"degraded,omitempty"`
}

// Insights converts the profile into its persisted representation.
func (p AnalysisProfile) Insights() Insights {
	powers := make(map[Region]int, len(Regions))
	for _, r := range Regions {
		powers[r] = p.WorldPowerImpact[r]
	}
	return Insights{
		Topics:           nonNil(p.Topics),
		Dimensions:       p.Impact.MarshalMap(),
		TimeHorizon:      p.Horizon,
		Importance:       p.Importance,
		SourceRegion:     string(p.SourceRegion),
		WorldPowerImpact: powers,
		EmergingConcepts: nonNil(p.EmergingConcepts),
		Evidence:         nonNil(p.Evidence),
		Degraded:         p.Degraded,
	}
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}

// Profile rebuilds an AnalysisProfile from its persisted representation.
// Unknown regions are dropped.
func (in Insights) Profile(id Fingerprint, publishedAt, analyzedAt time.Time) AnalysisProfile {
	var impact Impact
	for _, d := range Dimensions {
		impact[d] = in.Dimensions[d.Key()]
	}
	powers := make(map[Region]int, len(in.WorldPowerImpact))
	for r, v := range in.WorldPowerImpact {
		if r.Index() >= 0 && v != 0 {
			powers[r] = v
		}
	}
	region, _ := ParseRegion(in.SourceRegion)
	return AnalysisProfile{
		ArticleID:        id,
		Topics:           in.Topics,
		Impact:           impact,
		Horizon:          in.TimeHorizon,
		Importance:       in.Importance,
		SourceRegion:     region,
		WorldPowerImpact: powers,
		EmergingConcepts: in.EmergingConcepts,
		Evidence:         in.Evidence,
		Degraded:         in.Degraded,
		PublishedAt:      publishedAt,
		AnalyzedAt:       analyzedAt,
	}
}
