package parser

import (
	"bytes"
	"fmt"
	"html"
	"iter"
	"log/slog"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/araddon/dateparse"
	"github.com/microcosm-cc/bluemonday"
	"github.com/mmcdole/gofeed"

	"Sentinel6G/internal/domain"
	"Sentinel6G/internal/fetcher"
)

const maxSummaryRunes = 1000

// FeedParser turns raw RSS, Atom or JSON Feed payloads into candidate articles.
type FeedParser struct {
	policy *bluemonday.Policy
	logger *slog.Logger
}

// NewFeedParser builds a parser; the sanitizer policy is shared across calls.
func NewFeedParser(log *slog.Logger) *FeedParser {
	return &FeedParser{policy: bluemonday.StrictPolicy(), logger: log}
}

// Parse lazily yields the entries of a feed. Bad entries come out as
// *domain.ParseError and do not stop the sequence; a feed that cannot be read
// at all yields a single error.
func (p *FeedParser) Parse(payload []byte, source domain.Source) iter.Seq2[domain.Article, error] {
	return func(yield func(domain.Article, error) bool) {
		body, err := unwrapHTML(payload)
		if err != nil {
			yield(domain.Article{}, &domain.ParseError{Source: source.Name, Index: -1, Reason: err.Error()})
			return
		}

		feed, err := gofeed.NewParser().Parse(bytes.NewReader(body))
		if err != nil {
			yield(domain.Article{}, &domain.ParseError{Source: source.Name, Index: -1, Reason: fmt.Sprintf("read feed: %v", err)})
			return
		}
		p.debug("feed parsed", "source", source.Name, "type", feed.FeedType, "items", len(feed.Items))

		base := feedBase(feed, source)
		for i, item := range feed.Items {
			if item == nil {
				continue
			}
			article, err := p.toArticle(item, base, source)
			if err != nil {
				if !yield(domain.Article{}, &domain.ParseError{Source: source.Name, Index: i, Reason: err.Error()}) {
					return
				}
				continue
			}
			if !yield(article, nil) {
				return
			}
		}
	}
}

func (p *FeedParser) toArticle(item *gofeed.Item, base *url.URL, source domain.Source) (domain.Article, error) {
	link := strings.TrimSpace(item.Link)
	if link == "" && len(item.Links) > 0 {
		link = strings.TrimSpace(item.Links[0])
	}
	if link == "" {
		return domain.Article{}, fmt.Errorf("entry has no link")
	}

	resolved, err := resolveLink(base, link)
	if err != nil {
		return domain.Article{}, err
	}

	summary := item.Description
	if strings.TrimSpace(summary) == "" {
		summary = item.Content
	}

	return domain.Article{
		URL:          resolved,
		Title:        p.plainText(item.Title, 0),
		PublishedAt:  publishedAt(item),
		SourceName:   source.Name,
		SourceRegion: source.Region,
		RawSummary:   p.plainText(summary, maxSummaryRunes),
	}, nil
}

// plainText strips markup, decodes entities and collapses whitespace.
func (p *FeedParser) plainText(value string, limit int) string {
	text := html.UnescapeString(p.policy.Sanitize(value))
	text = strings.Join(strings.Fields(text), " ")
	if limit > 0 && utf8.RuneCountInString(text) > limit {
		runes := []rune(text)
		text = strings.TrimSpace(string(runes[:limit])) + "…"
	}
	return text
}

func publishedAt(item *gofeed.Item) time.Time {
	if item.PublishedParsed != nil {
		return item.PublishedParsed.UTC()
	}
	if item.UpdatedParsed != nil {
		return item.UpdatedParsed.UTC()
	}
	for _, raw := range []string{item.Published, item.Updated} {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		if t, err := dateparse.ParseAny(raw); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}

func feedBase(feed *gofeed.Feed, source domain.Source) *url.URL {
	for _, candidate := range []string{feed.Link, feed.FeedLink, source.URL} {
		if u, err := url.Parse(strings.TrimSpace(candidate)); err == nil && u.IsAbs() {
			return u
		}
	}
	return nil
}

func resolveLink(base *url.URL, link string) (string, error) {
	u, err := url.Parse(link)
	if err != nil {
		return "", fmt.Errorf("unparseable link %q: %w", link, err)
	}
	if !u.IsAbs() && base != nil {
		u = base.ResolveReference(u)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("link %q is not http(s)", link)
	}
	if u.Host == "" {
		return "", fmt.Errorf("link %q has no host", link)
	}
	return u.String(), nil
}

// unwrapHTML extracts the feed document from an HTML page that shows it
// inside <pre>, which is what bot walls and browser viewers hand back.
func unwrapHTML(payload []byte) ([]byte, error) {
	if !fetcher.IsHTML(payload) || !fetcher.IsWrappedFeed(payload) {
		return payload, nil
	}

	lower := bytes.ToLower(payload)
	if bytes.Contains(lower, []byte("&lt;?xml")) || bytes.Contains(lower, []byte("&lt;rss")) || bytes.Contains(lower, []byte("&lt;feed")) {
		doc, err := goquery.NewDocumentFromReader(bytes.NewReader(payload))
		if err != nil {
			return nil, fmt.Errorf("read html wrapper: %w", err)
		}
		var text string
		doc.Find("pre").EachWithBreak(func(_ int, s *goquery.Selection) bool {
			candidate := strings.TrimSpace(s.Text())
			if fetcher.LooksLikeFeed([]byte(candidate)) {
				text = candidate
				return false
			}
			return true
		})
		if text == "" {
			return nil, fmt.Errorf("html wrapper holds no feed")
		}
		return []byte(text), nil
	}

	// Unescaped markup inside <pre> would be re-parsed as HTML elements, so the
	// feed is cut out of the raw bytes instead.
	start := -1
	for _, marker := range []string{"<?xml", "<rss", "<feed", "<rdf:rdf"} {
		if i := bytes.Index(lower, []byte(marker)); i >= 0 && (start < 0 || i < start) {
			start = i
		}
	}
	if start < 0 {
		return nil, fmt.Errorf("html wrapper holds no feed")
	}
	end := bytes.LastIndex(lower, []byte("</pre>"))
	if end < start {
		end = len(payload)
	}
	return bytes.TrimSpace(payload[start:end]), nil
}

func (p *FeedParser) debug(msg string, args ...interface{}) {
	if p.logger != nil {
		p.logger.Debug(msg, args...)
	}
}
