package filter

import (
	"time"

	"Sentinel6G/internal/domain"
	"Sentinel6G/internal/ports"
)

// SkipReason explains why a candidate article was dropped.
type SkipReason string

const (
	SkipDuplicate SkipReason = "duplicate"
	SkipStale     SkipReason = "stale"
	SkipFuture    SkipReason = "future"
)

// Decision is the verdict on one candidate.
type Decision struct {
	Keep   bool
	Reason SkipReason
}

// Config tunes freshness and the keyword fallback.
type Config struct {
	FreshnessDays   int
	FutureTolerance time.Duration
	MinKeywordScore int
	Keywords        []Keyword
}

// Filter applies dedup, the freshness window and the keyword relevance floor.
type Filter struct {
	maxAge    time.Duration
	tolerance time.Duration
	minScore  int
	matchers  []matcher
}

// New builds a filter, filling zero values with the defaults (30 days,
// one day of clock skew, score 3, default keyword table).
func New(cfg Config) *Filter {
	if cfg.FreshnessDays <= 0 {
		cfg.FreshnessDays = 30
	}
	if cfg.FutureTolerance <= 0 {
		cfg.FutureTolerance = 24 * time.Hour
	}
	if cfg.MinKeywordScore <= 0 {
		cfg.MinKeywordScore = 3
	}
	if len(cfg.Keywords) == 0 {
		cfg.Keywords = DefaultKeywords()
	}
	return &Filter{
		maxAge:    time.Duration(cfg.FreshnessDays) * 24 * time.Hour,
		tolerance: cfg.FutureTolerance,
		minScore:  cfg.MinKeywordScore,
		matchers:  compile(cfg.Keywords),
	}
}

// Decide keeps an article unless it was seen in a previous run or falls
// outside the freshness window. Undated articles count as published now.
func (f *Filter) Decide(article domain.Article, seen ports.SeenStore, now time.Time) Decision {
	if seen != nil && seen.Seen(article.Fingerprint()) {
		return Decision{Reason: SkipDuplicate}
	}
	published := article.PublishedAt
	if published.IsZero() {
		return Decision{Keep: true}
	}
	if published.Before(now.Add(-f.maxAge)) {
		return Decision{Reason: SkipStale}
	}
	if published.After(now.Add(f.tolerance)) {
		return Decision{Reason: SkipFuture}
	}
	return Decision{Keep: true}
}

// Score sums the weights of distinct keywords found in title and summary.
func (f *Filter) Score(article domain.Article) int {
	text := article.Text()
	score := 0
	for _, m := range f.matchers {
		if m.re.MatchString(text) {
			score += m.weight
		}
	}
	return score
}

// Matches lists the keyword terms present in the article, in table order.
func (f *Filter) Matches(article domain.Article) []string {
	text := article.Text()
	var terms []string
	for _, m := range f.matchers {
		if m.re.MatchString(text) {
			terms = append(terms, m.term)
		}
	}
	return terms
}

// Retain is the relevance gate used when the oracle cannot be consulted.
func (f *Filter) Retain(article domain.Article) (int, bool) {
	score := f.Score(article)
	return score, score >= f.minScore
}
