package usecase

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"

	"Sentinel6G/internal/domain"
)

func processed(powers map[domain.Region]int, topics, concepts []string, degraded bool) domain.ProcessedArticle {
	return domain.ProcessedArticle{Profile: domain.AnalysisProfile{
		ArticleID:        "x",
		WorldPowerImpact: powers,
		Topics:           topics,
		EmergingConcepts: concepts,
		Degraded:         degraded,
	}}
}

func TestRegionalSummary(t *testing.T) {
	t.Parallel()

	s := RegionalSummary([]domain.ProcessedArticle{
		processed(map[domain.Region]int{domain.RegionChina: 4, domain.RegionUS: 1}, nil, nil, false),
		processed(map[domain.Region]int{domain.RegionChina: 1}, nil, nil, false),
		processed(map[domain.Region]int{domain.RegionUS: 2}, nil, nil, false),
	})

	assert.Equal(t, "China", s.Leader)
	assert.Equal(t, 5, s.TotalScores[domain.RegionChina])
	assert.Equal(t, 2.5, s.AverageImpact[domain.RegionChina])
	assert.Equal(t, 1.5, s.AverageImpact[domain.RegionUS])
	assert.Equal(t, 2, s.ArticleMention[domain.RegionUS])
	assert.Len(t, s.TotalScores, len(domain.Regions))
	assert.Zero(t, s.AverageImpact[domain.RegionIndia])
}

func TestRegionalSummaryWithoutImpact(t *testing.T) {
	t.Parallel()

	s := RegionalSummary(nil)
	assert.Equal(t, "None", s.Leader)
	assert.Len(t, s.ArticleMention, len(domain.Regions))
}

func TestEmergingConcepts(t *testing.T) {
	t.Parallel()

	got := EmergingConcepts([]domain.ProcessedArticle{
		processed(nil, nil, []string{"Zero-energy devices", "semantic comms"}, false),
		processed(nil, nil, []string{"zero-energy devices ", "digital twin"}, false),
		processed(nil, nil, []string{"Digital twin", "Semantic comms", " "}, false),
		processed(nil, nil, []string{"digital twin"}, false),
	})

	want := []domain.ConceptCount{
		{Concept: "digital twin", Frequency: 3},
		{Concept: "Zero-energy devices", Frequency: 2},
		{Concept: "semantic comms", Frequency: 2},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("concepts mismatch (-want +got):\n%s", diff)
	}
}

func TestExecutiveBriefing(t *testing.T) {
	t.Parallel()

	articles := []domain.ProcessedArticle{
		processed(map[domain.Region]int{domain.RegionChina: 3}, []string{"ISAC", "NTN"}, []string{"RIS"}, false),
		processed(map[domain.Region]int{domain.RegionEU: 2}, []string{"ISAC"}, []string{"RIS"}, true),
	}
	matrix := domain.NewInfluenceMatrix()
	matrix[domain.RegionEU][domain.RegionChina] = 2.5
	in := BriefingInput{
		Date:     runDate,
		Articles: articles,
		Summary:  RegionalSummary(articles),
		Concepts: EmergingConcepts(articles),
		Records: []domain.MomentumRecord{
			{Region: domain.RegionEU, TimeWindow: "2025-Q4", MomentumScore: 9},
			{Region: domain.RegionEU, TimeWindow: "2026-Q1", MomentumScore: 1.25},
			{Region: domain.RegionChina, TimeWindow: "2026-Q1", MomentumScore: 2},
		},
		Matrix: matrix,
		Reports: []domain.FetchReport{
			{Source: "Ericsson", Outcome: "success"},
			{Source: "Thales", Outcome: "timed_out"},
		},
		Standards: &domain.Standardization{RecentMeetings: []domain.Meeting{
			{MeetingID: "TSGR1_120b", WorkingGroup: "RAN1", Sentiment: domain.SentimentMixed, KeyAgreements: []string{"a", "b", "c"}},
			{MeetingID: "TSGS2_170", WorkingGroup: "SA2", Sentiment: domain.SentimentUnknown},
		}},
	}

	got := ExecutiveBriefing(in)
	want := strings.Join([]string{
		"6G Sentinel briefing 2026-03-20",
		"Articles analysed: 2 (1 from keyword fallback)",
		"Top topics: ISAC (2), NTN (1)",
		"Leading region: China (total impact 3 across 1 articles)",
		"Momentum 2026-Q1: China 2, EU 1.25",
		"Strongest influence: EU -> China (2.5)",
		"Emerging concepts: RIS (2)",
		"3GPP meetings: RAN1 TSGR1_120b (mixed, 3 agreements), SA2 TSGS2_170 (unknown, 0 agreements)",
		"Sources unavailable: Thales (timed_out)",
	}, "\n")
	assert.Equal(t, want, got)
	assert.Equal(t, got, ExecutiveBriefing(in))
}

func TestExecutiveBriefingEmptyRun(t *testing.T) {
	t.Parallel()

	got := ExecutiveBriefing(BriefingInput{Date: runDate, Summary: RegionalSummary(nil)})
	assert.Equal(t, "6G Sentinel briefing 2026-03-20\nArticles analysed: 0", got)
}
