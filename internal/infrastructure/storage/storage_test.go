package storage

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"Sentinel6G/internal/domain"
)

func TestWriteFileAtomicReplacesContent(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "nested", "out.json")
	require.NoError(t, WriteFileAtomic(path, []byte("old"), 0o644))
	require.NoError(t, WriteFileAtomic(path, []byte("new"), 0o644))

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "new", string(got))

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files must not linger")
}

func TestWriteJSONFailureKeepsPriorFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "out.json")
	require.NoError(t, WriteJSON(path, map[string]int{"a": 1}))

	err := WriteJSON(path, map[string]any{"bad": func() {}})
	require.Error(t, err)

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":1}`, string(got))
}

func TestStrategyCacheRoundTripAndLegacy(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, StrategyCacheFile)
	legacy := `{"www.ericsson.com": "playwright", "www.nokia.com": "httpx", "bad.example": 7, "odd.example": "carrier pigeon"}`
	require.NoError(t, os.WriteFile(path, []byte(legacy), 0o644))

	cache, err := LoadStrategyCache(path, nil)
	require.NoError(t, err)

	e, ok := cache.Lookup("www.ericsson.com")
	require.True(t, ok)
	assert.Equal(t, domain.StrategyHeavy, e.Strategy)
	e, ok = cache.Lookup("www.nokia.com")
	require.True(t, ok)
	assert.Equal(t, domain.StrategyLight, e.Strategy)
	_, ok = cache.Lookup("bad.example")
	assert.False(t, ok)
	assert.Len(t, cache.Entries(), 2)

	verified := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	cache.Store(domain.StrategyCacheEntry{Domain: "www.3gpp.org", Strategy: domain.StrategyHeavy, LastVerifiedAt: verified, HeavyStreak: 2})
	require.NoError(t, cache.Save())

	reloaded, err := LoadStrategyCache(path, nil)
	require.NoError(t, err)
	e, ok = reloaded.Lookup("www.3gpp.org")
	require.True(t, ok)
	assert.Equal(t, 2, e.HeavyStreak)
	assert.True(t, verified.Equal(e.LastVerifiedAt))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	var decoded map[string]map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, "heavy", decoded["www.3gpp.org"]["method"])
	assert.Equal(t, "light", decoded["www.nokia.com"]["method"])
}

func TestStrategyCacheSaveSkipsUnchanged(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), StrategyCacheFile)
	cache, err := LoadStrategyCache(path, nil)
	require.NoError(t, err)
	require.NoError(t, cache.Save())

	_, err = os.Stat(path)
	assert.True(t, errors.Is(err, os.ErrNotExist))

	cache.Store(domain.StrategyCacheEntry{Domain: "a.example", Strategy: domain.StrategyLight})
	cache.Reset()
	require.NoError(t, cache.Save())
	reloaded, err := LoadStrategyCache(path, nil)
	require.NoError(t, err)
	assert.Empty(t, reloaded.Entries())
}

func TestSeenStoreAcrossRuns(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), SeenStoreFile)
	article := domain.Article{URL: "https://www.nokia.com/6g?utm_source=x"}

	first, err := LoadSeenStore(path)
	require.NoError(t, err)
	assert.False(t, first.Seen(article.Fingerprint()))
	first.Mark(article.Fingerprint())
	first.Mark(domain.FingerprintOf("https://a.example/1"))
	require.NoError(t, first.Save())

	second, err := LoadSeenStore(path)
	require.NoError(t, err)
	assert.True(t, second.Seen(domain.FingerprintOf("https://www.nokia.com/6g")))
	assert.Equal(t, 2, second.Len())

	var onDisk []string
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, &onDisk))
	assert.IsNonDecreasing(t, onDisk)

	second.Reset()
	require.NoError(t, second.Save())
	third, err := LoadSeenStore(path)
	require.NoError(t, err)
	assert.Zero(t, third.Len())
}

func TestSeenStoreHashesLegacyLinks(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), SeenStoreFile)
	require.NoError(t, os.WriteFile(path, []byte(`["https://www.ericsson.com/6g/#x"]`), 0o644))

	s, err := LoadSeenStore(path)
	require.NoError(t, err)
	assert.True(t, s.Seen(domain.FingerprintOf("https://www.ericsson.com/6g")))
}

func TestSeenStoreRejectsCorruptFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), SeenStoreFile)
	require.NoError(t, os.WriteFile(path, []byte(`{not json`), 0o644))
	_, err := LoadSeenStore(path)
	assert.Error(t, err)
}

func TestRunLockIsExclusive(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	lock, err := AcquireRunLock(dir)
	require.NoError(t, err)

	_, err = AcquireRunLock(dir)
	require.ErrorIs(t, err, domain.ErrRunLocked)

	require.NoError(t, lock.Release())
	again, err := AcquireRunLock(dir)
	require.NoError(t, err)
	require.NoError(t, again.Release())
	require.NoError(t, again.Release())
}

func TestArtifactWriter(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	w := NewArtifactWriter(dir, nil)

	published := time.Date(2026, 2, 3, 4, 5, 6, 0, time.UTC)
	pa := domain.ProcessedArticle{
		Article: domain.Article{URL: "https://x.example/a", Title: "6G", SourceName: "X", PublishedAt: published, RawSummary: "s"},
		Profile: domain.AnalysisProfile{ArticleID: "abc", Horizon: domain.HorizonMid, Importance: 4},
		Score:   5,
	}
	require.NoError(t, w.WriteDigest(domain.Digest{Date: "2026-02-03", Articles: []domain.DigestArticle{pa.DigestEntry()}}))
	require.NoError(t, w.WriteMomentum(nil))
	require.NoError(t, w.WriteMatrix(nil))

	var digest map[string]any
	readFile(t, w.Path(DigestFile), &digest)
	assert.Equal(t, "2026-02-03", digest["date"])
	assert.NotContains(t, digest, "momentum_data")
	article := digest["articles"].([]any)[0].(map[string]any)
	assert.Equal(t, "https://x.example/a", article["link"])
	assert.Equal(t, "2026-02-03T04:05:06Z", article["date"])
	assert.Equal(t, "mid", article["ai_insights"].(map[string]any)["time_horizon"])

	var momentum []any
	readFile(t, w.Path(MomentumFile), &momentum)
	assert.Empty(t, momentum)
	assert.NotNil(t, momentum)

	var matrix map[string]map[string]float64
	readFile(t, w.Path(MatrixFile), &matrix)
	assert.Len(t, matrix, len(domain.Regions))
	assert.Len(t, matrix["EU"], len(domain.Regions))
}

func TestAppendSnapshotKeepsHistory(t *testing.T) {
	t.Parallel()

	w := NewArtifactWriter(t.TempDir(), nil)
	require.NoError(t, w.AppendSnapshot(domain.Snapshot{RunID: "r1", Date: "2026-01-01", ArticleCount: 3}))
	require.NoError(t, w.AppendSnapshot(domain.Snapshot{RunID: "r2", Date: "2026-02-01", DegradedCount: 1}))

	history, err := w.LoadHistory()
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "r1", history[0].RunID)
	assert.Equal(t, 1, history[1].DegradedCount)
	assert.NotNil(t, history[1].RegionalTotals)

	require.NoError(t, os.WriteFile(w.Path(HistoryFile), []byte("[{"), 0o644))
	require.Error(t, w.AppendSnapshot(domain.Snapshot{RunID: "r3"}))
	raw, err := os.ReadFile(w.Path(HistoryFile))
	require.NoError(t, err)
	assert.Equal(t, "[{", string(raw))
}

func TestSQLiteArchiveRoundTrip(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	archive, err := OpenSQLiteArchive(filepath.Join(t.TempDir(), ArchiveFile))
	require.NoError(t, err)
	t.Cleanup(func() { _ = archive.Close() })

	jan := time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC)
	may := time.Date(2026, 5, 10, 0, 0, 0, 0, time.UTC)
	old := domain.AnalysisProfile{
		ArticleID:        "old",
		Impact:           domain.Impact{1, 1, 1, 1, 1},
		Horizon:          domain.HorizonNear,
		Importance:       2,
		SourceRegion:     domain.RegionEU,
		WorldPowerImpact: map[domain.Region]int{domain.RegionChina: 3},
		PublishedAt:      jan,
		AnalyzedAt:       may,
	}
	recent := domain.AnalysisProfile{
		ArticleID:   "recent",
		Impact:      domain.Impact{5, 4, 3, 2, 1},
		Horizon:     domain.HorizonLong,
		Importance:  8.5,
		Degraded:    true,
		AnalyzedAt:  may,
		Topics:      []string{"ISAC"},
		Evidence:    []string{"quote"},
		PublishedAt: time.Time{},
	}
	require.NoError(t, archive.SaveProfiles(ctx, "run-1", []domain.AnalysisProfile{old, recent}))

	all, err := archive.LoadProfiles(ctx, time.Time{})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, domain.Fingerprint("old"), all[0].ArticleID)
	assert.Equal(t, domain.RegionEU, all[0].SourceRegion)
	assert.Equal(t, map[domain.Region]int{domain.RegionChina: 3}, all[0].WorldPowerImpact)
	assert.True(t, jan.Equal(all[0].PublishedAt))
	assert.True(t, all[1].PublishedAt.IsZero())
	assert.True(t, all[1].Degraded)
	assert.Equal(t, domain.Impact{5, 4, 3, 2, 1}, all[1].Impact)

	since, err := archive.LoadProfiles(ctx, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Len(t, since, 1)
	assert.Equal(t, domain.Fingerprint("recent"), since[0].ArticleID)

	old.Importance = 9
	require.NoError(t, archive.SaveProfiles(ctx, "run-2", []domain.AnalysisProfile{old}))
	all, err = archive.LoadProfiles(ctx, time.Time{})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.InDelta(t, 9.0, all[0].Importance, 1e-9)
}

func readFile(t *testing.T, path string, v any) {
	t.Helper()
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, v))
}
