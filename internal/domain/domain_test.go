package domain

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanonicalURL(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"HTTPS://WWW.Example.com:443/path/?b=2&a=1#frag":          "https://www.example.com/path?a=1&b=2",
		"http://example.com:80/":                                  "http://example.com",
		"https://example.com/news?utm_source=rss&utm_medium=feed": "https://example.com/news",
		"https://user:pw@example.com/x?fbclid=1&id=9":             "https://example.com/x?id=9",
		"https://example.com:8443/a":                              "https://example.com:8443/a",
		"  not a url  ":                                           "not a url",
	}
	for in, want := range cases {
		assert.Equal(t, want, CanonicalURL(in), in)
	}
}

func TestFingerprintIgnoresCosmeticVariants(t *testing.T) {
	t.Parallel()

	a := Article{URL: "https://www.ericsson.com/en/news/6g?utm_campaign=x"}
	b := Article{URL: "https://WWW.ERICSSON.COM/en/news/6g/#top"}
	c := Article{URL: "https://www.ericsson.com/en/news/5g"}

	assert.Equal(t, a.Fingerprint(), b.Fingerprint())
	assert.NotEqual(t, a.Fingerprint(), c.Fingerprint())
	assert.Len(t, string(a.Fingerprint()), 64)
}

func TestSourceDomain(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "www.nokia.com", Source{URL: "https://WWW.Nokia.com/rss"}.Domain())
	assert.Empty(t, Source{URL: "::"}.Domain())
}

func TestWindowKey(t *testing.T) {
	t.Parallel()

	cases := []struct {
		at   time.Time
		g    Granularity
		want string
	}{
		{time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), GranularityQuarter, "2026-Q1"},
		{time.Date(2026, 3, 31, 23, 59, 0, 0, time.UTC), GranularityQuarter, "2026-Q1"},
		{time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC), GranularityQuarter, "2026-Q2"},
		{time.Date(2026, 12, 31, 0, 0, 0, 0, time.UTC), GranularityQuarter, "2026-Q4"},
		{time.Date(2026, 6, 30, 0, 0, 0, 0, time.UTC), GranularityHalf, "2026-H1"},
		{time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC), GranularityHalf, "2026-H2"},
		{time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC), GranularityYear, "2026"},
		// 01:00 on April 1st in UTC+3 is still March in UTC.
		{time.Date(2026, 4, 1, 1, 0, 0, 0, time.FixedZone("MSK", 3*3600)), GranularityQuarter, "2026-Q1"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, WindowKey(tc.at, tc.g), tc.at.String())
	}
}

func TestParseGranularity(t *testing.T) {
	t.Parallel()

	g, err := ParseGranularity("")
	require.NoError(t, err)
	assert.Equal(t, GranularityQuarter, g)

	g, err = ParseGranularity(" Half ")
	require.NoError(t, err)
	assert.Equal(t, GranularityHalf, g)

	_, err = ParseGranularity("month")
	assert.Error(t, err)
}

func TestParseRegionAndStrategy(t *testing.T) {
	t.Parallel()

	r, ok := ParseRegion("South Korea")
	assert.True(t, ok)
	assert.Equal(t, RegionKorea, r)
	_, ok = ParseRegion("Atlantis")
	assert.False(t, ok)
	assert.Equal(t, 2, RegionEU.Index())
	assert.Equal(t, -1, Region("Mars").Index())

	s, err := ParseStrategyKind("playwright")
	require.NoError(t, err)
	assert.Equal(t, StrategyHeavy, s)
	s, err = ParseStrategyKind("HTTPX")
	require.NoError(t, err)
	assert.Equal(t, StrategyLight, s)
	_, err = ParseStrategyKind("carrier pigeon")
	assert.Error(t, err)
}

func TestInsightsJSONShape(t *testing.T) {
	t.Parallel()

	p := AnalysisProfile{
		Topics:           []string{"ISAC"},
		Impact:           Impact{1, 2, 3, 4, 5},
		Horizon:          HorizonNear,
		Importance:       7.5,
		SourceRegion:     RegionJapan,
		WorldPowerImpact: map[Region]int{RegionJapan: 3},
	}
	raw, err := json.Marshal(p.Insights())
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, []any{"ISAC"}, decoded["6g_topics"])
	assert.Equal(t, 7.5, decoded["overall_6g_importance"])
	assert.Equal(t, "Japan", decoded["source_region"])
	assert.Equal(t, []any{}, decoded["emerging_concepts"])
	assert.Len(t, decoded["world_power_impact"], len(Regions))
	assert.Equal(t, 5.0, decoded["impact_dimensions"].(map[string]any)["ecosystem_maturity"])
	assert.NotContains(t, decoded, "degraded")
}

func TestWindowStart(t *testing.T) {
	t.Parallel()

	at := time.Date(2026, 5, 17, 13, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC), WindowStart(at, GranularityQuarter, 0))
	assert.Equal(t, time.Date(2025, 10, 1, 0, 0, 0, 0, time.UTC), WindowStart(at, GranularityQuarter, 2))
	assert.Equal(t, time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC), WindowStart(at, GranularityHalf, 1))
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), WindowStart(at, GranularityYear, 2))
	assert.Equal(t, WindowKey(at, GranularityQuarter), WindowKey(WindowStart(at, GranularityQuarter, 0), GranularityQuarter))
}
