package domain

import "time"

// FetchReport summarises what happened to one source during a run.
type FetchReport struct {
	Source      string       `json:"source"`
	Domain      string       `json:"domain"`
	Strategy    StrategyKind `json:"strategy,omitempty"`
	Outcome     string       `json:"outcome"`
	StatusCode  int          `json:"status,omitempty"`
	Reason      string       `json:"reason,omitempty"`
	Attempts    int          `json:"attempts"`
	Escalated   bool         `json:"escalated,omitempty"`
	Articles    int          `json:"articles"`
	ParseErrors int          `json:"parse_errors,omitempty"`
}

// SourceBatch is everything one source contributed to a run.
type SourceBatch struct {
	Source   Source
	Report   FetchReport
	Articles []Article
	// Err is the *FetchError of a source that could not be acquired.
	Err error
}

// RegionalSummary totals world-power impact over the articles of one run.
type RegionalSummary struct {
	TotalScores    map[Region]int     `json:"total_scores"`
	AverageImpact  map[Region]float64 `json:"average_impact_per_article"`
	ArticleMention map[Region]int     `json:"article_mentions"`
	// Leader is "None" when no region received any impact.
	Leader string `json:"leader"`
}

// ConceptCount is an emerging concept and how many articles named it.
type ConceptCount struct {
	Concept   string `json:"concept"`
	Frequency int    `json:"frequency"`
}

// DigestArticle is one entry of the published digest.
type DigestArticle struct {
	Source   string    `json:"source"`
	Title    string    `json:"title"`
	Link     string    `json:"link"`
	Date     string    `json:"date,omitempty"`
	Summary  string    `json:"summary"`
	Score    int       `json:"score,omitempty"`
	Insights *Insights `json:"ai_insights,omitempty"`
}

// DigestEntry renders a processed article for the digest.
func (pa ProcessedArticle) DigestEntry() DigestArticle {
	out := DigestArticle{
		Source:  pa.Article.SourceName,
		Title:   pa.Article.Title,
		Link:    pa.Article.URL,
		Summary: pa.Article.RawSummary,
		Score:   pa.Score,
	}
	if !pa.Article.PublishedAt.IsZero() {
		out.Date = pa.Article.PublishedAt.UTC().Format(time.RFC3339)
	}
	if pa.Profile.ArticleID != "" {
		in := pa.Profile.Insights()
		out.Insights = &in
	}
	return out
}

// Digest is the dashboard-facing summary of the latest run.
type Digest struct {
	Date              string           `json:"date"`
	Articles          []DigestArticle  `json:"articles"`
	Momentum          []MomentumRecord `json:"momentum_data,omitempty"`
	FlowMatrix        InfluenceMatrix  `json:"flow_matrix,omitempty"`
	ExecutiveBriefing string           `json:"executive_briefing,omitempty"`
	RegionalSummary   *RegionalSummary `json:"regional_summary,omitempty"`
	EmergingConcepts  []ConceptCount   `json:"emerging_concepts,omitempty"`
	FetchReport       []FetchReport    `json:"fetch_report,omitempty"`
	Standardization   *Standardization `json:"standardization,omitempty"`
}

// Snapshot is one entry of the append-only run history.
type Snapshot struct {
	RunID          string           `json:"run_id"`
	Date           string           `json:"date"`
	ArticleCount   int              `json:"article_count"`
	DegradedCount  int              `json:"degraded_count"`
	RegionalTotals map[Region]int   `json:"regional_totals"`
	Momentum       []MomentumRecord `json:"momentum"`
}
