package aggregate

import (
	"cmp"
	"fmt"
	"math"
	"slices"

	"Sentinel6G/internal/domain"
)

// Config holds the aggregation policy.
type Config struct {
	Granularity domain.Granularity
	// DegradedWeight scales the importance of keyword-fallback profiles.
	DegradedWeight        float64
	IncludeSelfReferences bool
}

// DefaultConfig is quarterly windows, half weight for degraded profiles and
// self references kept.
func DefaultConfig() Config {
	return Config{
		Granularity:           domain.GranularityQuarter,
		DegradedWeight:        0.5,
		IncludeSelfReferences: true,
	}
}

// Result is everything one aggregation pass produces.
type Result struct {
	Records  []domain.MomentumRecord
	Matrix   domain.InfluenceMatrix
	Excluded []*domain.AggregationError
}

// Engine computes momentum records and the influence matrix. It holds no
// state between calls.
type Engine struct {
	cfg Config
}

// NewEngine validates the policy, falling back to defaults for nonsense values.
func NewEngine(cfg Config) *Engine {
	if cfg.Granularity == "" {
		cfg.Granularity = domain.GranularityQuarter
	}
	if math.IsNaN(cfg.DegradedWeight) || cfg.DegradedWeight < 0 || cfg.DegradedWeight > 1 {
		cfg.DegradedWeight = DefaultConfig().DegradedWeight
	}
	return &Engine{cfg: cfg}
}

// Granularity is the window size used by the engine.
func (e *Engine) Granularity() domain.Granularity {
	return e.cfg.Granularity
}

type cellKey struct {
	window string
	region domain.Region
}

// dimVector holds one float per impact dimension.
type dimVector [len(domain.Impact{})]float64

type accumulator struct {
	weighted     dimVector
	weight       float64
	contributors int
}

// Aggregate merges current profiles over history (same article id: current
// wins), drops out-of-range profiles and derives the records. The output
// depends only on the multiset of inputs.
func (e *Engine) Aggregate(profiles, history []domain.AnalysisProfile) Result {
	merged := merge(profiles, history)

	valid := make([]domain.AnalysisProfile, 0, len(merged))
	var excluded []*domain.AggregationError
	for _, p := range merged {
		if err := checkRange(p); err != nil {
			excluded = append(excluded, err)
			continue
		}
		valid = append(valid, p)
	}
	slices.SortFunc(valid, compareProfiles)
	slices.SortFunc(excluded, func(a, b *domain.AggregationError) int {
		return cmp.Or(cmp.Compare(a.ArticleID, b.ArticleID), cmp.Compare(a.Reason, b.Reason))
	})

	return Result{
		Records:  e.momentum(valid),
		Matrix:   e.matrix(valid),
		Excluded: excluded,
	}
}

func (e *Engine) weight(p domain.AnalysisProfile) float64 {
	if p.Degraded {
		return p.Importance * e.cfg.DegradedWeight
	}
	return p.Importance
}

func (e *Engine) momentum(profiles []domain.AnalysisProfile) []domain.MomentumRecord {
	cells := map[cellKey]*accumulator{}
	for _, p := range profiles {
		window := domain.WindowKey(p.EffectiveDate(), e.cfg.Granularity)
		w := e.weight(p)
		for _, region := range domain.Regions {
			if p.WorldPowerImpact[region] <= 0 {
				continue
			}
			key := cellKey{window: window, region: region}
			acc, ok := cells[key]
			if !ok {
				acc = &accumulator{}
				cells[key] = acc
			}
			acc.contributors++
			acc.weight += w
			for _, d := range domain.Dimensions {
				acc.weighted[d] += float64(p.Impact.Get(d)) * w
			}
		}
	}

	records := make([]domain.MomentumRecord, 0, len(cells))
	for key, acc := range cells {
		if acc.weight <= 0 {
			continue
		}
		var dims dimVector
		sum := 0.0
		for _, d := range domain.Dimensions {
			dims[d] = acc.weighted[d] / acc.weight
			sum += dims[d]
		}
		records = append(records, domain.MomentumRecord{
			Region:                   key.region,
			TimeWindow:               key.window,
			ResearchIntensity:        round4(dims[domain.ResearchIntensity]),
			StandardizationInfluence: round4(dims[domain.StandardizationInfluence]),
			IndustrialDeployment:     round4(dims[domain.IndustrialDeployment]),
			SpectrumPolicySignal:     round4(dims[domain.SpectrumPolicySignal]),
			EcosystemMaturity:        round4(dims[domain.EcosystemMaturity]),
			MomentumScore:            round4(sum / float64(len(domain.Dimensions))),
			Contributors:             acc.contributors,
		})
	}
	slices.SortFunc(records, func(a, b domain.MomentumRecord) int {
		return cmp.Or(cmp.Compare(a.TimeWindow, b.TimeWindow), cmp.Compare(a.Region.Index(), b.Region.Index()))
	})
	return records
}

func (e *Engine) matrix(profiles []domain.AnalysisProfile) domain.InfluenceMatrix {
	m := domain.NewInfluenceMatrix()
	for _, p := range profiles {
		if p.SourceRegion.Index() < 0 {
			continue
		}
		for _, target := range domain.Regions {
			impact := p.WorldPowerImpact[target]
			if impact <= 0 {
				continue
			}
			if target == p.SourceRegion && !e.cfg.IncludeSelfReferences {
				continue
			}
			m[p.SourceRegion][target] += float64(impact)
		}
	}
	return m
}

// merge picks one profile per article id. Within one input set the most
// recently analyzed profile wins, with compareProfiles breaking ties so the
// choice does not depend on slice order.
func merge(current, history []domain.AnalysisProfile) []domain.AnalysisProfile {
	pick := func(set []domain.AnalysisProfile) (map[domain.Fingerprint]domain.AnalysisProfile, []domain.AnalysisProfile) {
		byID := make(map[domain.Fingerprint]domain.AnalysisProfile, len(set))
		var anonymous []domain.AnalysisProfile
		for _, p := range set {
			if p.ArticleID == "" {
				anonymous = append(anonymous, p)
				continue
			}
			prev, ok := byID[p.ArticleID]
			if !ok || newer(p, prev) {
				byID[p.ArticleID] = p
			}
		}
		return byID, anonymous
	}

	cur, curAnon := pick(current)
	hist, histAnon := pick(history)

	out := make([]domain.AnalysisProfile, 0, len(cur)+len(hist)+len(curAnon)+len(histAnon))
	for id, p := range hist {
		if _, overridden := cur[id]; !overridden {
			out = append(out, p)
		}
	}
	for _, p := range cur {
		out = append(out, p)
	}
	out = append(out, histAnon...)
	return append(out, curAnon...)
}

func newer(a, b domain.AnalysisProfile) bool {
	if c := a.AnalyzedAt.Compare(b.AnalyzedAt); c != 0 {
		return c > 0
	}
	return compareProfiles(a, b) > 0
}

// compareProfiles is a total order over every field aggregation reads.
func compareProfiles(a, b domain.AnalysisProfile) int {
	if c := cmp.Compare(a.ArticleID, b.ArticleID); c != 0 {
		return c
	}
	if c := a.EffectiveDate().Compare(b.EffectiveDate()); c != 0 {
		return c
	}
	if c := cmp.Compare(a.Importance, b.Importance); c != 0 {
		return c
	}
	if a.Degraded != b.Degraded {
		if a.Degraded {
			return 1
		}
		return -1
	}
	for _, d := range domain.Dimensions {
		if c := cmp.Compare(a.Impact.Get(d), b.Impact.Get(d)); c != 0 {
			return c
		}
	}
	for _, r := range domain.Regions {
		if c := cmp.Compare(a.WorldPowerImpact[r], b.WorldPowerImpact[r]); c != 0 {
			return c
		}
	}
	return cmp.Compare(a.SourceRegion, b.SourceRegion)
}

func checkRange(p domain.AnalysisProfile) *domain.AggregationError {
	fail := func(format string, args ...any) *domain.AggregationError {
		return &domain.AggregationError{ArticleID: p.ArticleID, Reason: fmt.Sprintf(format, args...)}
	}
	for _, d := range domain.Dimensions {
		if v := p.Impact.Get(d); v < 0 || v > domain.MaxImpact {
			return fail("%s = %d outside [0,%d]", d.Key(), v, domain.MaxImpact)
		}
	}
	for _, r := range domain.Regions {
		if v := p.WorldPowerImpact[r]; v < 0 || v > domain.MaxImpact {
			return fail("world power %s = %d outside [0,%d]", r, v, domain.MaxImpact)
		}
	}
	if math.IsNaN(p.Importance) || math.IsInf(p.Importance, 0) || p.Importance < 0 || p.Importance > domain.MaxImportance {
		return fail("importance %v outside [0,%v]", p.Importance, domain.MaxImportance)
	}
	if p.EffectiveDate().IsZero() {
		return fail("no publication or analysis date")
	}
	return nil
}

func round4(v float64) float64 {
	return math.Round(v*1e4) / 1e4
}
