package usecase

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"Sentinel6G/internal/domain"
)

var runDate = time.Date(2026, 3, 20, 9, 0, 0, 0, time.UTC)

func fixedNow() time.Time { return runDate }

type staticSource []domain.SourceBatch

func (s staticSource) Collect(context.Context) []domain.SourceBatch { return s }

type memorySeen struct {
	mu  sync.Mutex
	set map[domain.Fingerprint]bool
}

func newMemorySeen() *memorySeen { return &memorySeen{set: map[domain.Fingerprint]bool{}} }

func (m *memorySeen) Seen(fp domain.Fingerprint) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.set[fp]
}

func (m *memorySeen) Mark(fp domain.Fingerprint) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.set[fp] = true
}

// scriptedOracle answers per article URL; unknown URLs fail.
type scriptedOracle struct {
	mu      sync.Mutex
	answers map[string]string
	calls   int
}

func (o *scriptedOracle) Analyze(_ context.Context, a domain.Article) ([]byte, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.calls++
	answer, ok := o.answers[a.URL]
	if !ok {
		return nil, &domain.OracleError{Kind: domain.OracleUnavailable, Err: errors.New("503")}
	}
	return []byte(answer), nil
}

type blockingOracle struct{}

func (blockingOracle) Analyze(ctx context.Context, _ domain.Article) ([]byte, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

type memoryArtifacts struct {
	digest    *domain.Digest
	momentum  []domain.MomentumRecord
	matrix    domain.InfluenceMatrix
	snapshots []domain.Snapshot
	failWith  error
}

func (m *memoryArtifacts) WriteDigest(d domain.Digest) error {
	m.digest = &d
	return nil
}

func (m *memoryArtifacts) WriteMomentum(records []domain.MomentumRecord) error {
	if m.failWith != nil {
		return m.failWith
	}
	m.momentum = records
	return nil
}

func (m *memoryArtifacts) WriteMatrix(mx domain.InfluenceMatrix) error {
	m.matrix = mx
	return nil
}

func (m *memoryArtifacts) AppendSnapshot(s domain.Snapshot) error {
	m.snapshots = append(m.snapshots, s)
	return nil
}

type memoryArchive struct {
	profiles map[domain.Fingerprint]domain.AnalysisProfile
	since    time.Time
	loadErr  error
}

func newMemoryArchive() *memoryArchive {
	return &memoryArchive{profiles: map[domain.Fingerprint]domain.AnalysisProfile{}}
}

func (m *memoryArchive) SaveProfiles(_ context.Context, _ string, profiles []domain.AnalysisProfile) error {
	for _, p := range profiles {
		m.profiles[p.ArticleID] = p
	}
	return nil
}

func (m *memoryArchive) LoadProfiles(_ context.Context, since time.Time) ([]domain.AnalysisProfile, error) {
	m.since = since
	if m.loadErr != nil {
		return nil, m.loadErr
	}
	var out []domain.AnalysisProfile
	for _, p := range m.profiles {
		if since.IsZero() || !p.EffectiveDate().Before(since) {
			out = append(out, p)
		}
	}
	return out, nil
}

type recordingNotifier struct {
	sent []string
	err  error
}

func (n *recordingNotifier) PublishDigest(_ context.Context, digest string) error {
	n.sent = append(n.sent, digest)
	return n.err
}

type countingPersister struct {
	saves int
	err   error
}

func (c *countingPersister) Save() error {
	c.saves++
	return c.err
}

type countingRecorder struct {
	mu       sync.Mutex
	articles map[string]int
	calls    map[string]int
	degraded int
}

func newCountingRecorder() *countingRecorder {
	return &countingRecorder{articles: map[string]int{}, calls: map[string]int{}}
}

func (c *countingRecorder) Article(decision string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.articles[decision]++
}

func (c *countingRecorder) OracleCall(status string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls[status]++
}

func (c *countingRecorder) Profile(degraded bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if degraded {
		c.degraded++
	}
}

func (c *countingRecorder) Aggregation(int, int) {}

func batch(name, region string, articles ...domain.Article) domain.SourceBatch {
	src := domain.Source{Name: name, URL: "https://" + name + ".example/rss", Region: region}
	for i := range articles {
		articles[i].SourceName = name
		articles[i].SourceRegion = region
	}
	return domain.SourceBatch{
		Source:   src,
		Report:   domain.FetchReport{Source: name, Domain: src.Domain(), Outcome: "success", Attempts: 1, Articles: len(articles)},
		Articles: articles,
	}
}

func failedBatch(name, outcome string) domain.SourceBatch {
	src := domain.Source{Name: name, URL: "https://" + name + ".example/rss"}
	return domain.SourceBatch{
		Source: src,
		Report: domain.FetchReport{Source: name, Domain: src.Domain(), Outcome: outcome, StatusCode: 403, Attempts: 3},
		Err:    &domain.FetchError{Kind: domain.FetchBlocked, Source: name, Strategy: domain.StrategyHeavy, StatusCode: 403},
	}
}

func item(url, title string) domain.Article {
	return domain.Article{URL: url, Title: title, PublishedAt: runDate.AddDate(0, 0, -10)}
}

type fixedStandards struct {
	result domain.Standardization
	calls  atomic.Int32
}

func (f *fixedStandards) Recent(context.Context) domain.Standardization {
	f.calls.Add(1)
	return f.result
}
