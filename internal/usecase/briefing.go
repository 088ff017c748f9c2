package usecase

import (
	"cmp"
	"fmt"
	"math"
	"slices"
	"strings"
	"time"

	"Sentinel6G/internal/domain"
)

const (
	minConceptFrequency = 2
	briefingTopTopics   = 5
	briefingTopConcepts = 5
)

// RegionalSummary totals world-power impact across the processed articles.
// Averages are over the articles that gave the region a positive score.
func RegionalSummary(articles []domain.ProcessedArticle) domain.RegionalSummary {
	s := domain.RegionalSummary{
		TotalScores:    make(map[domain.Region]int, len(domain.Regions)),
		AverageImpact:  make(map[domain.Region]float64, len(domain.Regions)),
		ArticleMention: make(map[domain.Region]int, len(domain.Regions)),
		Leader:         "None",
	}
	for _, r := range domain.Regions {
		s.TotalScores[r] = 0
		s.ArticleMention[r] = 0
	}

	for _, a := range articles {
		for _, r := range domain.Regions {
			v := a.Profile.WorldPowerImpact[r]
			s.TotalScores[r] += v
			if v > 0 {
				s.ArticleMention[r]++
			}
		}
	}

	best := 0
	for _, r := range domain.Regions {
		if n := s.ArticleMention[r]; n > 0 {
			s.AverageImpact[r] = math.Round(float64(s.TotalScores[r])/float64(n)*100) / 100
		} else {
			s.AverageImpact[r] = 0
		}
		if s.TotalScores[r] > best {
			best = s.TotalScores[r]
			s.Leader = string(r)
		}
	}
	return s
}

// EmergingConcepts counts concepts across articles and keeps those named at
// least twice, most frequent first.
func EmergingConcepts(articles []domain.ProcessedArticle) []domain.ConceptCount {
	counts := map[string]int{}
	display := map[string]string{}
	for _, a := range articles {
		for _, c := range a.Profile.EmergingConcepts {
			key := strings.ToLower(strings.TrimSpace(c))
			if key == "" {
				continue
			}
			counts[key]++
			if _, ok := display[key]; !ok {
				display[key] = strings.TrimSpace(c)
			}
		}
	}
	return ranked(counts, display, minConceptFrequency)
}

func topTopics(articles []domain.ProcessedArticle) []domain.ConceptCount {
	counts := map[string]int{}
	display := map[string]string{}
	for _, a := range articles {
		for _, t := range a.Profile.Topics {
			counts[t]++
			display[t] = t
		}
	}
	return ranked(counts, display, 1)
}

func ranked(counts map[string]int, display map[string]string, minFreq int) []domain.ConceptCount {
	out := make([]domain.ConceptCount, 0, len(counts))
	for key, n := range counts {
		if n >= minFreq {
			out = append(out, domain.ConceptCount{Concept: display[key], Frequency: n})
		}
	}
	slices.SortFunc(out, func(a, b domain.ConceptCount) int {
		if c := cmp.Compare(b.Frequency, a.Frequency); c != 0 {
			return c
		}
		return cmp.Compare(a.Concept, b.Concept)
	})
	return out
}

// BriefingInput is everything the executive briefing is written from.
type BriefingInput struct {
	Date     time.Time
	Articles []domain.ProcessedArticle
	Summary  domain.RegionalSummary
	Concepts []domain.ConceptCount
	Records  []domain.MomentumRecord
	Matrix   domain.InfluenceMatrix
	Reports  []domain.FetchReport
	// Standards is nil when meeting reports were not collected.
	Standards *domain.Standardization
}

// ExecutiveBriefing renders a short plain-text briefing. The output depends
// only on the input.
func ExecutiveBriefing(in BriefingInput) string {
	var b strings.Builder
	fmt.Fprintf(&b, "6G Sentinel briefing %s\n", in.Date.UTC().Format("2006-01-02"))

	degraded := 0
	for _, a := range in.Articles {
		if a.Profile.Degraded {
			degraded++
		}
	}
	fmt.Fprintf(&b, "Articles analysed: %d", len(in.Articles))
	if degraded > 0 {
		fmt.Fprintf(&b, " (%d from keyword fallback)", degraded)
	}
	b.WriteString("\n")

	if topics := topTopics(in.Articles); len(topics) > 0 {
		b.WriteString("Top topics: " + joinCounts(topics[:min(len(topics), briefingTopTopics)]) + "\n")
	}

	if in.Summary.Leader != "" && in.Summary.Leader != "None" {
		leader := domain.Region(in.Summary.Leader)
		fmt.Fprintf(&b, "Leading region: %s (total impact %d across %d articles)\n",
			leader, in.Summary.TotalScores[leader], in.Summary.ArticleMention[leader])
	}

	if line := latestMomentum(in.Records); line != "" {
		b.WriteString(line + "\n")
	}

	if src, dst, v := strongestFlow(in.Matrix); v > 0 {
		fmt.Fprintf(&b, "Strongest influence: %s -> %s (%s)\n", src, dst, formatFloat(v))
	}

	if len(in.Concepts) > 0 {
		b.WriteString("Emerging concepts: " + joinCounts(in.Concepts[:min(len(in.Concepts), briefingTopConcepts)]) + "\n")
	}

	if line := meetingsLine(in.Standards); line != "" {
		b.WriteString(line + "\n")
	}

	var failed []string
	for _, r := range in.Reports {
		if r.Outcome != "success" {
			failed = append(failed, fmt.Sprintf("%s (%s)", r.Source, r.Outcome))
		}
	}
	if len(failed) > 0 {
		b.WriteString("Sources unavailable: " + strings.Join(failed, ", ") + "\n")
	}

	return strings.TrimRight(b.String(), "\n")
}

// meetingsLine names each recent meeting with its sentiment and agreement count.
func meetingsLine(s *domain.Standardization) string {
	if s == nil || len(s.RecentMeetings) == 0 {
		return ""
	}
	parts := make([]string, len(s.RecentMeetings))
	for i, m := range s.RecentMeetings {
		parts[i] = fmt.Sprintf("%s %s (%s, %d agreements)", m.WorkingGroup, m.MeetingID, m.Sentiment, len(m.KeyAgreements))
	}
	return "3GPP meetings: " + strings.Join(parts, ", ")
}

// latestMomentum lists the regions of the most recent window by score.
func latestMomentum(records []domain.MomentumRecord) string {
	if len(records) == 0 {
		return ""
	}
	window := records[0].TimeWindow
	for _, r := range records {
		window = max(window, r.TimeWindow)
	}
	var latest []domain.MomentumRecord
	for _, r := range records {
		if r.TimeWindow == window {
			latest = append(latest, r)
		}
	}
	slices.SortStableFunc(latest, func(a, b domain.MomentumRecord) int {
		return cmp.Compare(b.MomentumScore, a.MomentumScore)
	})
	parts := make([]string, len(latest))
	for i, r := range latest {
		parts[i] = fmt.Sprintf("%s %s", r.Region, formatFloat(r.MomentumScore))
	}
	return fmt.Sprintf("Momentum %s: %s", window, strings.Join(parts, ", "))
}

func strongestFlow(m domain.InfluenceMatrix) (domain.Region, domain.Region, float64) {
	var (
		src, dst domain.Region
		best     float64
	)
	for _, s := range domain.Regions {
		for _, d := range domain.Regions {
			if v := m[s][d]; v > best {
				src, dst, best = s, d, v
			}
		}
	}
	return src, dst, best
}

func joinCounts(items []domain.ConceptCount) string {
	parts := make([]string, len(items))
	for i, c := range items {
		parts[i] = fmt.Sprintf("%s (%d)", c.Concept, c.Frequency)
	}
	return strings.Join(parts, ", ")
}

func formatFloat(v float64) string {
	return strings.TrimRight(strings.TrimRight(fmt.Sprintf("%.2f", v), "0"), ".")
}
