package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"Sentinel6G/internal/domain"
	"Sentinel6G/internal/fetcher"
)

const rssBody = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0"><channel><title>Ericsson</title>
<item><title>6G spectrum</title><link>https://example.com/a</link></item>
</channel></rss>`

func TestLightAttempt(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		status int
		ctype  string
		body   string
		want   fetcher.OutcomeKind
	}{
		{"feed", http.StatusOK, "application/rss+xml", rssBody, fetcher.OutcomeSuccess},
		{"forbidden", http.StatusForbidden, "text/html", "<html>no</html>", fetcher.OutcomeBlocked},
		{"throttled", http.StatusTooManyRequests, "text/plain", "slow down", fetcher.OutcomeBlocked},
		{"html instead of feed", http.StatusOK, "text/html; charset=utf-8", "<html><body>home</body></html>", fetcher.OutcomeMalformed},
		{"incapsula", http.StatusOK, "text/html", "<html><body>Incapsula incident ID: 1</body></html>", fetcher.OutcomeBlocked},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.NotEmpty(t, r.Header.Get("User-Agent"))
				assert.Contains(t, r.Header.Get("Accept"), "application/rss+xml")
				w.Header().Set("Content-Type", tc.ctype)
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			}))
			defer server.Close()

			light := NewLight(server.Client(), 0, nil)
			out := light.Attempt(context.Background(), server.URL, domain.PayloadFeed)
			assert.Equal(t, tc.want, out.Kind, out.Reason)
			assert.Equal(t, domain.StrategyLight, out.Strategy)
			if tc.want == fetcher.OutcomeBlocked && tc.status != http.StatusOK {
				assert.Equal(t, tc.status, out.StatusCode)
			}
		})
	}
}

func TestLightAttemptTimesOut(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	out := NewLight(server.Client(), 0, nil).Attempt(ctx, server.URL, domain.PayloadFeed)
	assert.Equal(t, fetcher.OutcomeTimedOut, out.Kind)
}

func TestLightAttemptDecodesWrappedFeed(t *testing.T) {
	t.Parallel()

	// windows-1252 "é" inside an escaped feed shown by a browser-style viewer.
	body := "<html><body><pre>&lt;?xml version=\"1.0\"?&gt;&lt;rss&gt;&lt;channel&gt;&lt;title&gt;R\xe9seau&lt;/title&gt;&lt;/channel&gt;&lt;/rss&gt;</pre></body></html>"
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=windows-1252")
		_, _ = w.Write([]byte(body))
	}))
	defer server.Close()

	out := NewLight(server.Client(), 0, nil).Attempt(context.Background(), server.URL, domain.PayloadFeed)
	require.True(t, out.OK(), out.Reason)
	assert.True(t, strings.Contains(string(out.Payload), "Réseau"))
}

func TestLightAttemptPage(t *testing.T) {
	t.Parallel()

	listing := `<html><head><title>www.3gpp.org - /ftp/tsg_ran/WG1_RL1/</title></head><body><a href="TSGR1_120/">TSGR1_120</a></body></html>`
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasPrefix(r.Header.Get("Accept"), "text/html"))
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(listing))
	}))
	defer server.Close()

	out := NewLight(server.Client(), 0, nil).Attempt(context.Background(), server.URL, domain.PayloadPage)
	require.True(t, out.OK(), out.Reason)
	assert.Equal(t, listing, string(out.Payload))
}

func TestLightAttemptRejectsBadURL(t *testing.T) {
	t.Parallel()

	out := NewLight(nil, time.Second, nil).Attempt(context.Background(), "://nope", domain.PayloadFeed)
	assert.Equal(t, fetcher.OutcomeMalformed, out.Kind)
}

func TestRandomUserAgentIsDesktop(t *testing.T) {
	t.Parallel()

	for range 20 {
		assert.Contains(t, desktopUserAgents, randomUserAgent())
	}
}
