package oracle

import (
	"errors"
	"fmt"
	"strings"

	"Sentinel6G/internal/analysis"
	"Sentinel6G/internal/domain"
)

// maxPromptSummary caps the article text sent to the model.
const maxPromptSummary = 4000

var errEmptyAnswer = errors.New("empty answer")

// SystemPrompt describes the answer schema shared by every provider.
func SystemPrompt() string {
	regions := make([]string, len(domain.Regions))
	for i, r := range domain.Regions {
		regions[i] = string(r)
	}
	dims := make([]string, len(domain.Dimensions))
	for i, d := range domain.Dimensions {
		dims[i] = d.Key()
	}

	var b strings.Builder
	b.WriteString("You are a 6G (IMT-2030) technology intelligence analyst. ")
	b.WriteString("Read the article and answer with a single JSON object and nothing else.\n\n")
	b.WriteString("Keys:\n")
	fmt.Fprintf(&b, "- 6g_topics: array, only values from [%s]\n", strings.Join(analysis.Topics, ", "))
	fmt.Fprintf(&b, "- impact_dimensions: object with integer scores 0-5 for %s\n", strings.Join(dims, ", "))
	b.WriteString("- time_horizon: one of near, mid, long\n")
	b.WriteString("- overall_6g_importance: number 0-10\n")
	fmt.Fprintf(&b, "- source_region: the region the news originates from, one of %s, or empty\n", strings.Join(regions, ", "))
	fmt.Fprintf(&b, "- world_power_impact: object with integer scores 0-5 for %s\n", strings.Join(regions, ", "))
	b.WriteString("- emerging_concepts: array of short technology names not covered by 6g_topics\n")
	b.WriteString("- key_evidence: array of short quotes from the article supporting the scores\n")
	return b.String()
}

// UserPrompt renders the article for the model.
func UserPrompt(article domain.Article) string {
	summary := article.RawSummary
	if r := []rune(summary); len(r) > maxPromptSummary {
		summary = string(r[:maxPromptSummary])
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Source: %s\n", article.SourceName)
	if article.SourceRegion != "" {
		fmt.Fprintf(&b, "Source region hint: %s\n", article.SourceRegion)
	}
	if !article.PublishedAt.IsZero() {
		fmt.Fprintf(&b, "Published: %s\n", article.PublishedAt.UTC().Format("2006-01-02"))
	}
	fmt.Fprintf(&b, "Title: %s\n", article.Title)
	fmt.Fprintf(&b, "URL: %s\n\n", article.URL)
	b.WriteString(summary)
	return b.String()
}

// unavailable wraps a transport or provider failure.
func unavailable(err error) error {
	return &domain.OracleError{Kind: domain.OracleUnavailable, Err: err}
}

func answer(text string) ([]byte, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, unavailable(errEmptyAnswer)
	}
	return []byte(text), nil
}
