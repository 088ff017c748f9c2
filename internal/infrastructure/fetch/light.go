package fetch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"golang.org/x/net/html/charset"

	"Sentinel6G/internal/domain"
	"Sentinel6G/internal/fetcher"
)

const maxPayloadBytes = 10 << 20

// Light retrieves sources with a plain HTTP GET and a browser-like header profile.
type Light struct {
	client *http.Client
	logger *slog.Logger
}

var _ fetcher.Strategy = (*Light)(nil)

// NewLight wires an HTTP client; timeout defaults to 30s when client is nil.
func NewLight(client *http.Client, timeout time.Duration, log *slog.Logger) *Light {
	if client == nil {
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}
	return &Light{client: client, logger: log}
}

// Kind identifies the strategy inside the registry.
func (l *Light) Kind() domain.StrategyKind {
	return domain.StrategyLight
}

// Attempt performs one GET and classifies the response.
func (l *Light) Attempt(ctx context.Context, url string, want domain.PayloadKind) fetcher.Outcome {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fetcher.Malformed(l.Kind(), fmt.Sprintf("build request: %v", err))
	}
	req.Header.Set("User-Agent", randomUserAgent())
	req.Header.Set("Accept", acceptHeader(want))
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := l.client.Do(req)
	if err != nil {
		return l.transportFailure(err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxPayloadBytes))
	if err != nil {
		return l.transportFailure(err)
	}

	if fetcher.IsHTML(raw) {
		raw = decodeHTML(raw, resp.Header.Get("Content-Type"))
	}

	out := fetcher.Classify(l.Kind(), resp.StatusCode, raw, want)
	l.debug("light attempt", "url", url, "status", resp.StatusCode, "outcome", out.Kind.String(), "bytes", len(raw))
	return out
}

func acceptHeader(want domain.PayloadKind) string {
	if want == domain.PayloadPage {
		return "text/html,application/xhtml+xml;q=0.9,*/*;q=0.8"
	}
	return "application/rss+xml, application/atom+xml, application/xml;q=0.9, text/xml;q=0.9, */*;q=0.8"
}

func (l *Light) transportFailure(err error) fetcher.Outcome {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return fetcher.TimedOut(l.Kind())
	}
	return fetcher.Malformed(l.Kind(), fmt.Sprintf("transport: %v", err))
}

// decodeHTML converts declared non-UTF-8 HTML to UTF-8 so that wrapped feeds
// survive extraction. XML payloads are left alone; the feed parser honours
// their own encoding declaration.
func decodeHTML(raw []byte, contentType string) []byte {
	if contentType == "" || strings.Contains(strings.ToLower(contentType), "utf-8") {
		return raw
	}
	reader, err := charset.NewReader(bytes.NewReader(raw), contentType)
	if err != nil {
		return raw
	}
	decoded, err := io.ReadAll(reader)
	if err != nil {
		return raw
	}
	return decoded
}

func (l *Light) debug(msg string, args ...interface{}) {
	if l.logger != nil {
		l.logger.Debug(msg, args...)
	}
}
