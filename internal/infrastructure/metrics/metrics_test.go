package metrics

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"Sentinel6G/internal/domain"
	"Sentinel6G/internal/fetcher"
)

func TestRecorderCounts(t *testing.T) {
	t.Parallel()

	r := New()
	src := domain.Source{Name: "Ericsson"}
	r.ObserveFetch(src, fetcher.Outcome{Kind: fetcher.OutcomeSuccess, Strategy: domain.StrategyHeavy, Escalated: true})
	r.ObserveFetch(src, fetcher.Outcome{Kind: fetcher.OutcomeBlocked, Strategy: domain.StrategyLight})
	r.ObserveFetch(src, fetcher.Outcome{Kind: fetcher.OutcomeBlocked, Strategy: domain.StrategyLight})
	r.Profile(true)
	r.Profile(false)
	r.Profile(true)
	r.Aggregation(7, 2)

	assert.InDelta(t, 1, testutil.ToFloat64(r.fetchOutcomes.WithLabelValues("heavy", "success")), 0)
	assert.InDelta(t, 2, testutil.ToFloat64(r.fetchOutcomes.WithLabelValues("light", "blocked")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(r.escalations), 0)
	assert.InDelta(t, 2, testutil.ToFloat64(r.profiles.WithLabelValues("degraded")), 0)
	assert.InDelta(t, 7, testutil.ToFloat64(r.records), 0)
	assert.InDelta(t, 2, testutil.ToFloat64(r.excluded), 0)
}

func TestWriteTextfile(t *testing.T) {
	t.Parallel()

	r := New()
	r.OracleCall("ok")
	r.RunFinished(12.5, true, 1767225600)

	path := filepath.Join(t.TempDir(), "sentinel.prom")
	require.NoError(t, r.WriteTextfile(path))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	body := string(raw)
	assert.Contains(t, body, `sentinel_oracle_calls_total{status="ok"} 1`)
	assert.Contains(t, body, "sentinel_run_duration_seconds 12.5")
	assert.Contains(t, body, "sentinel_last_success_timestamp_seconds 1.7672256e+09")
}
