package domain

import (
	"fmt"
	"strings"
	"time"
)

// Granularity selects the calendar bucket used for time windows.
type Granularity string

const (
	GranularityQuarter Granularity = "quarter"
	GranularityHalf    Granularity = "half"
	GranularityYear    Granularity = "year"
)

// ParseGranularity validates a configured granularity; empty means quarter.
func ParseGranularity(value string) (Granularity, error) {
	switch Granularity(strings.ToLower(strings.TrimSpace(value))) {
	case "", GranularityQuarter:
		return GranularityQuarter, nil
	case GranularityHalf:
		return GranularityHalf, nil
	case GranularityYear:
		return GranularityYear, nil
	default:
		return "", fmt.Errorf("unknown window granularity %q", value)
	}
}

// WindowKey maps a date onto its bucket label (2026-Q1, 2026-H2, 2026).
// Buckets come from integer division on the month, in UTC.
func WindowKey(t time.Time, g Granularity) string {
	t = t.UTC()
	month := int(t.Month()) - 1
	switch g {
	case GranularityYear:
		return fmt.Sprintf("%04d", t.Year())
	case GranularityHalf:
		return fmt.Sprintf("%04d-H%d", t.Year(), month/6+1)
	default:
		return fmt.Sprintf("%04d-Q%d", t.Year(), month/3+1)
	}
}

// MomentumRecord is the aggregate activity of one region in one window.
type MomentumRecord struct {
	Region                   Region  `json:"region"`
	TimeWindow               string  `json:"time_window"`
	ResearchIntensity        float64 `json:"research_intensity"`
	StandardizationInfluence float64 `json:"standardization_influence"`
	IndustrialDeployment     float64 `json:"industrial_deployment"`
	SpectrumPolicySignal     float64 `json:"spectrum_policy_signal"`
	EcosystemMaturity        float64 `json:"ecosystem_maturity"`
	MomentumScore            float64 `json:"momentum_score"`
	Contributors             int     `json:"contributors"`
}

// InfluenceMatrix is a dense source × target magnitude matrix over Regions.
type InfluenceMatrix map[Region]map[Region]float64

// NewInfluenceMatrix returns a matrix with every cell present and zero.
func NewInfluenceMatrix() InfluenceMatrix {
	m := make(InfluenceMatrix, len(Regions))
	for _, src := range Regions {
		row := make(map[Region]float64, len(Regions))
		for _, dst := range Regions {
			row[dst] = 0
		}
		m[src] = row
	}
	return m
}

// WindowStart returns the first instant (UTC) of the bucket holding t,
// shifted back by `back` whole buckets.
func WindowStart(t time.Time, g Granularity, back int) time.Time {
	t = t.UTC()
	months := 3
	switch g {
	case GranularityYear:
		months = 12
	case GranularityHalf:
		months = 6
	}
	first := (int(t.Month())-1)/months*months + 1
	start := time.Date(t.Year(), time.Month(first), 1, 0, 0, 0, 0, time.UTC)
	return start.AddDate(0, -months*back, 0)
}
