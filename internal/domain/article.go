package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"sort"
	"strings"
	"time"
)

// Article is a candidate item recovered from a source feed.
type Article struct {
	URL          string
	Title        string
	PublishedAt  time.Time
	SourceName   string
	SourceRegion string
	RawSummary   string
}

// Fingerprint is the stable dedup identity of an article.
type Fingerprint string

// Fingerprint hashes the canonical form of the article URL.
func (a Article) Fingerprint() Fingerprint {
	return FingerprintOf(a.URL)
}

// Text joins the fields used for keyword scoring and oracle prompts.
func (a Article) Text() string {
	return strings.TrimSpace(a.Title + "\n" + a.RawSummary)
}

// FingerprintOf returns the hex SHA-256 of the canonical URL.
func FingerprintOf(rawURL string) Fingerprint {
	sum := sha256.Sum256([]byte(CanonicalURL(rawURL)))
	return Fingerprint(hex.EncodeToString(sum[:]))
}

var trackingParams = map[string]struct{}{
	"fbclid": {},
	"gclid":  {},
	"ref":    {},
	"mc_cid": {},
	"mc_eid": {},
}

// CanonicalURL normalizes a link so that cosmetic variants share one identity.
// Unparseable input is returned trimmed and lower-cased.
func CanonicalURL(rawURL string) string {
	trimmed := strings.TrimSpace(rawURL)
	parsed, err := url.Parse(trimmed)
	if err != nil || parsed.Host == "" {
		return strings.ToLower(trimmed)
	}

	parsed.Scheme = strings.ToLower(parsed.Scheme)
	host := strings.ToLower(parsed.Hostname())
	port := parsed.Port()
	if (parsed.Scheme == "http" && port == "80") || (parsed.Scheme == "https" && port == "443") {
		port = ""
	}
	if port != "" {
		host = host + ":" + port
	}
	parsed.Host = host
	parsed.Fragment = ""
	parsed.RawFragment = ""
	parsed.User = nil

	query := parsed.Query()
	for key := range query {
		lower := strings.ToLower(key)
		if strings.HasPrefix(lower, "utm_") {
			query.Del(key)
			continue
		}
		if _, ok := trackingParams[lower]; ok {
			query.Del(key)
		}
	}
	keys := make([]string, 0, len(query))
	for key := range query {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	var b strings.Builder
	for i, key := range keys {
		values := query[key]
		sort.Strings(values)
		for j, v := range values {
			if i > 0 || j > 0 {
				b.WriteByte('&')
			}
			b.WriteString(url.QueryEscape(key))
			b.WriteByte('=')
			b.WriteString(url.QueryEscape(v))
		}
	}
	parsed.RawQuery = b.String()

	if len(parsed.Path) > 1 {
		parsed.Path = strings.TrimRight(parsed.Path, "/")
		parsed.RawPath = ""
	}
	if parsed.Path == "/" {
		parsed.Path = ""
	}

	return parsed.String()
}

// DomainOf extracts the host used as the strategy cache key.
func DomainOf(rawURL string) string {
	parsed, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return ""
	}
	return strings.ToLower(parsed.Host)
}

// Source is one configured endpoint, usually a feed.
type Source struct {
	Name   string
	URL    string
	Region string
	// Strategy pins a fetch strategy and disables escalation when set.
	Strategy StrategyKind
	Payload  PayloadKind
}

// Domain is the strategy cache key of the source.
func (s Source) Domain() string {
	return DomainOf(s.URL)
}

// ProcessedArticle pairs an article with its analysis for the digest.
type ProcessedArticle struct {
	Article Article
	Profile AnalysisProfile
	Score   int
}
