package analysis

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"time"

	"Sentinel6G/internal/domain"
)

// Ingestor turns oracle answers into validated profiles and substitutes a
// degraded profile whenever the answer is missing or unusable.
type Ingestor struct {
	now    func() time.Time
	logger *slog.Logger
}

// NewIngestor builds an ingestor; now defaults to time.Now.
func NewIngestor(now func() time.Time, log *slog.Logger) *Ingestor {
	if now == nil {
		now = time.Now
	}
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Ingestor{now: now, logger: log}
}

// Ingest never fails: raw == nil means the oracle was not consulted or did
// not answer, and an answer that cannot be repaired is replaced as well.
func (i *Ingestor) Ingest(article domain.Article, raw []byte, keywordScore int) domain.AnalysisProfile {
	if raw == nil {
		return i.Degraded(article, keywordScore)
	}
	profile, err := i.Validate(article, raw)
	if err != nil {
		i.logger.Warn("oracle answer rejected, using keyword fallback", "url", article.URL, "error", err)
		return i.Degraded(article, keywordScore)
	}
	return profile
}

// Degraded builds the low-confidence profile from the keyword score alone.
func (i *Ingestor) Degraded(article domain.Article, keywordScore int) domain.AnalysisProfile {
	score := max(keywordScore, 0)
	proxy := min(domain.MaxImpact, (score+1)/2)

	var impact domain.Impact
	impact[domain.ResearchIntensity] = proxy

	powers := map[domain.Region]int{}
	region, known := domain.ParseRegion(article.SourceRegion)
	if known && proxy > 0 {
		powers[region] = proxy
	}
	if !known {
		region = ""
	}

	return domain.AnalysisProfile{
		ArticleID:        article.Fingerprint(),
		Impact:           impact,
		Horizon:          domain.HorizonMid,
		Importance:       math.Min(domain.MaxImportance, float64(score)),
		SourceRegion:     region,
		WorldPowerImpact: powers,
		Degraded:         true,
		PublishedAt:      article.PublishedAt,
		AnalyzedAt:       i.now().UTC(),
	}
}

// Validate parses and repairs an oracle answer. It fails with a
// SchemaViolation only when nothing usable is left.
func (i *Ingestor) Validate(article domain.Article, raw []byte) (domain.AnalysisProfile, error) {
	doc, err := decodeObject(raw)
	if err != nil {
		return domain.AnalysisProfile{}, &domain.OracleError{Kind: domain.OracleSchemaViolation, Err: err}
	}

	now := i.now().UTC()
	profile := domain.AnalysisProfile{
		ArticleID:        article.Fingerprint(),
		WorldPowerImpact: map[domain.Region]int{},
		PublishedAt:      article.PublishedAt,
		AnalyzedAt:       now,
	}

	dims, hasDims := i.readDimensions(doc)
	profile.Impact = dims

	importance, hasImportance := number(lookup(doc, "overall_6g_importance", "importance", "overall_importance"))
	if !hasDims && !hasImportance {
		return domain.AnalysisProfile{}, &domain.OracleError{
			Kind: domain.OracleSchemaViolation,
			Err:  errors.New("answer has neither impact dimensions nor importance"),
		}
	}
	if hasImportance {
		profile.Importance = clampFloat(importance, 0, domain.MaxImportance)
	} else {
		profile.Importance = importanceFromImpact(dims)
	}

	profile.Topics, profile.EmergingConcepts = splitTopics(
		stringList(lookup(doc, "6g_topics", "topics")),
		stringList(lookup(doc, "emerging_concepts")),
	)
	switch ev := lookup(doc, "key_evidence", "evidence").(type) {
	case string:
		profile.Evidence = dedupe([]string{ev})
	default:
		profile.Evidence = dedupe(stringList(ev))
	}
	profile.Horizon = RepairHorizon(lookup(doc, "time_horizon", "horizon"), now.Year())

	if name, ok := lookup(doc, "source_region").(string); ok {
		if region, known := domain.ParseRegion(name); known {
			profile.SourceRegion = region
		} else if name != "" {
			i.logger.Warn("unknown source region dropped", "region", name, "url", article.URL)
		}
	}
	if profile.SourceRegion == "" {
		if region, known := domain.ParseRegion(article.SourceRegion); known {
			profile.SourceRegion = region
		}
	}

	if powers, ok := lookup(doc, "world_power_impact").(map[string]any); ok {
		for name, v := range powers {
			region, known := domain.ParseRegion(name)
			if !known {
				i.logger.Warn("unknown world power dropped", "region", name, "url", article.URL)
				continue
			}
			if score, ok := number(v); ok {
				profile.WorldPowerImpact[region] = clampInt(score, 0, domain.MaxImpact)
			}
		}
	}

	return profile, nil
}

func (i *Ingestor) readDimensions(doc map[string]any) (domain.Impact, bool) {
	var impact domain.Impact
	src, ok := lookup(doc, "impact_dimensions", "dimensions").(map[string]any)
	if !ok {
		src = doc
	}
	normalized := make(map[string]any, len(src))
	for k, v := range src {
		normalized[normalizeKey(k)] = v
	}

	found := false
	for _, d := range domain.Dimensions {
		if v, ok := number(normalized[d.Key()]); ok {
			impact[d] = clampInt(v, 0, domain.MaxImpact)
			found = true
		}
	}
	return impact, found
}

// decodeObject accepts a bare JSON object or one wrapped in a markdown fence
// or surrounded by chatter.
func decodeObject(raw []byte) (map[string]any, error) {
	body := bytes.TrimSpace(raw)
	if start := bytes.IndexByte(body, '{'); start > 0 {
		body = body[start:]
	}
	if end := bytes.LastIndexByte(body, '}'); end >= 0 && end < len(body)-1 {
		body = body[:end+1]
	}
	if len(body) == 0 || body[0] != '{' {
		return nil, errors.New("answer is not a JSON object")
	}

	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var doc map[string]any
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode answer: %w", err)
	}
	return doc, nil
}

func lookup(doc map[string]any, keys ...string) any {
	for _, k := range keys {
		if v, ok := doc[k]; ok && v != nil {
			return v
		}
	}
	return nil
}

func normalizeKey(k string) string {
	k = strings.ToLower(strings.TrimSpace(k))
	return strings.NewReplacer(" ", "_", "-", "_", "/", "_").Replace(k)
}

// number reads a JSON number or a numeric string; NaN and infinities are rejected.
func number(v any) (float64, bool) {
	var f float64
	switch x := v.(type) {
	case json.Number:
		parsed, err := x.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	case float64:
		f = x
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// stringList reads an array of strings or a comma-separated string.
func stringList(v any) []string {
	switch x := v.(type) {
	case []any:
		out := make([]string, 0, len(x))
		for _, item := range x {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	case string:
		return strings.Split(x, ",")
	default:
		return nil
	}
}

// splitTopics keeps vocabulary topics and moves everything else into the
// emerging concepts bucket verbatim.
func splitTopics(topics, concepts []string) ([]string, []string) {
	var known, unknown []string
	for _, t := range topics {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		if canonical, ok := CanonicalTopic(t); ok {
			known = append(known, canonical)
			continue
		}
		unknown = append(unknown, t)
	}
	return dedupe(known), dedupe(append(concepts, unknown...))
}

func dedupe(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		key := strings.ToLower(v)
		if v == "" {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, v)
	}
	return out
}

func importanceFromImpact(impact domain.Impact) float64 {
	sum := 0
	for _, d := range domain.Dimensions {
		sum += impact[d]
	}
	mean := float64(sum) / float64(len(domain.Dimensions))
	return math.Round(mean*2*10) / 10
}

func clampInt(v float64, lo, hi int) int {
	return int(math.Round(clampFloat(v, float64(lo), float64(hi))))
}

func clampFloat(v, lo, hi float64) float64 {
	return math.Min(math.Max(v, lo), hi)
}
