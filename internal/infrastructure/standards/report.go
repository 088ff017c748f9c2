package standards

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/araddon/dateparse"
	"golang.org/x/net/html"

	"Sentinel6G/internal/domain"
)

const (
	maxAgreements     = 10
	maxAgreementRunes = 200
	maxTDocs          = 20
)

var (
	tdocPattern = regexp.MustCompile(`\b(?:R[1-4]|S[26])-\d{7}\b`)

	numericDatePatterns = []struct {
		re      *regexp.Regexp
		layouts []string
	}{
		{regexp.MustCompile(`\b(\d{1,2}[-/]\d{1,2}[-/]\d{4})\b`), []string{"2/1/2006", "2-1-2006"}},
		{regexp.MustCompile(`\b(\d{4}[-/]\d{1,2}[-/]\d{1,2})\b`), []string{"2006-1-2", "2006/1/2"}},
	}
	namedDatePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\b((?:jan|feb|mar|apr|may|jun|jul|aug|sep|oct|nov|dec)[a-z]*\s+\d{1,2},?\s+\d{4})\b`),
		regexp.MustCompile(`(?i)\b(\d{1,2}\s+(?:jan|feb|mar|apr|may|jun|jul|aug|sep|oct|nov|dec)[a-z]*\s+\d{4})\b`),
	}

	locationPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?:[Hh]eld\s+in|[Ll]ocation:|[Vv]enue:)\s*([A-Z][a-z]+(?:\s+[A-Z][a-z]+)*(?:,\s*[A-Z][a-z]+(?:\s+[A-Z][a-z]+)*)?)`),
		regexp.MustCompile(`([A-Z][a-z]+,\s*[A-Z][a-z]+)\s+meeting`),
	}

	sentenceSplit = regexp.MustCompile(`[.!?\n]+`)

	agreementKeywords = []string{"agreed:", "decision:", "conclusion:", "way forward:", "agreement:", "decided:"}

	positiveWords = []string{"agreed", "approved", "accepted", "confirmed", "decision"}
	neutralWords  = []string{"further study needed", "ffs", "for further study", "to be studied"}
	negativeWords = []string{"postponed", "rejected", "not agreed", "no consensus", "delayed"}

	blockElements = map[string]bool{
		"p": true, "div": true, "li": true, "tr": true, "td": true, "br": true, "table": true,
		"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	}
)

// ParseMeetingReport extracts the date, location, agreements and TDoc
// references of an HTML meeting report. Missing pieces stay empty.
func ParseMeetingReport(page []byte, meetingID, group string) (domain.Meeting, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page))
	if err != nil {
		return domain.Meeting{}, fmt.Errorf("read meeting report %s: %w", meetingID, err)
	}
	doc.Find("script, style, noscript").Remove()
	text := reportText(doc.Selection)

	return domain.Meeting{
		MeetingID:      meetingID,
		WorkingGroup:   group,
		Date:           meetingDate(text),
		Location:       meetingLocation(text),
		KeyAgreements:  agreements(text),
		TDocReferences: tdocs(text),
		Sentiment:      sentiment(text),
	}, nil
}

// reportText flattens the document to text with one line per block element,
// so that paragraphs never run into each other.
func reportText(sel *goquery.Selection) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		block := n.Type == html.ElementNode && blockElements[n.Data]
		if block {
			b.WriteByte('\n')
		}
		if n.Type == html.TextNode {
			if text := strings.Join(strings.Fields(n.Data), " "); text != "" {
				b.WriteString(text)
				b.WriteByte(' ')
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
		if block {
			b.WriteByte('\n')
		}
	}
	for _, n := range sel.Nodes {
		walk(n)
	}

	lines := strings.Split(b.String(), "\n")
	out := lines[:0]
	for _, line := range lines {
		if line = strings.Join(strings.Fields(line), " "); line != "" {
			out = append(out, line)
		}
	}
	return strings.Join(out, "\n")
}

// meetingDate returns the first date in the text as YYYY-MM-DD, or the raw
// match when it cannot be read. Numeric dates are day first.
func meetingDate(text string) string {
	for _, p := range numericDatePatterns {
		m := p.re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		for _, layout := range p.layouts {
			if t, err := time.Parse(layout, m[1]); err == nil {
				return t.Format(time.DateOnly)
			}
		}
		return m[1]
	}
	for _, re := range namedDatePatterns {
		m := re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		if t, err := dateparse.ParseAny(m[1]); err == nil {
			return t.Format(time.DateOnly)
		}
		return m[1]
	}
	return ""
}

func meetingLocation(text string) string {
	for _, re := range locationPatterns {
		if m := re.FindStringSubmatch(text); m != nil {
			return strings.TrimSpace(m[1])
		}
	}
	return ""
}

// agreements keeps the sentences carrying an agreement keyword. A bare
// "Agreement:" heading takes the sentence that follows it.
func agreements(text string) []string {
	sentences := sentenceSplit.Split(text, -1)
	out := []string{}
	for i := 0; i < len(sentences) && len(out) < maxAgreements; i++ {
		sentence := strings.TrimSpace(sentences[i])
		keyword, ok := agreementKeyword(sentence)
		if !ok {
			continue
		}
		if strings.EqualFold(sentence, keyword) {
			for i+1 < len(sentences) {
				i++
				if next := strings.TrimSpace(sentences[i]); next != "" {
					sentence += " " + next
					break
				}
			}
		}
		out = append(out, truncateRunes(sentence, maxAgreementRunes))
	}
	return out
}

func agreementKeyword(sentence string) (string, bool) {
	lower := strings.ToLower(sentence)
	for _, k := range agreementKeywords {
		if strings.Contains(lower, k) {
			return k, true
		}
	}
	return "", false
}

// tdocs returns the distinct TDoc numbers in order of first mention.
func tdocs(text string) []string {
	out := []string{}
	seen := map[string]bool{}
	for _, ref := range tdocPattern.FindAllString(text, -1) {
		if seen[ref] {
			continue
		}
		seen[ref] = true
		out = append(out, ref)
		if len(out) == maxTDocs {
			break
		}
	}
	return out
}

// sentiment weighs which keyword families appear in the report at all.
func sentiment(text string) string {
	lower := strings.ToLower(text)
	count := func(words []string) int {
		n := 0
		for _, w := range words {
			if strings.Contains(lower, w) {
				n++
			}
		}
		return n
	}
	positive, neutral, negative := count(positiveWords), count(neutralWords), count(negativeWords)

	switch {
	case positive+neutral+negative == 0:
		return domain.SentimentNeutral
	case positive > negative && positive > neutral:
		return domain.SentimentPositive
	case negative > positive:
		return domain.SentimentNegative
	default:
		return domain.SentimentMixed
	}
}

func truncateRunes(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	return string([]rune(s)[:limit])
}
