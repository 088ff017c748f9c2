package fetcher

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"Sentinel6G/internal/domain"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type scriptedStrategy struct {
	kind    domain.StrategyKind
	mu      sync.Mutex
	calls   int
	respond func(call int) Outcome
}

func (s *scriptedStrategy) Kind() domain.StrategyKind { return s.kind }

func (s *scriptedStrategy) Attempt(_ context.Context, _ string, _ domain.PayloadKind) Outcome {
	s.mu.Lock()
	s.calls++
	call := s.calls
	s.mu.Unlock()
	return s.respond(call)
}

func (s *scriptedStrategy) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

type memoryCache struct {
	entries map[string]domain.StrategyCacheEntry
	stores  int
}

func newMemoryCache() *memoryCache {
	return &memoryCache{entries: map[string]domain.StrategyCacheEntry{}}
}

func (c *memoryCache) Lookup(host string) (domain.StrategyCacheEntry, bool) {
	e, ok := c.entries[host]
	return e, ok
}

func (c *memoryCache) Store(entry domain.StrategyCacheEntry) {
	c.stores++
	c.entries[entry.Domain] = entry
}

var feed = []byte(`<?xml version="1.0"?><rss version="2.0"><channel></channel></rss>`)

func fastOptions(attempts int) Options {
	return Options{
		Retry: RetryPolicy{MaxAttempts: attempts, InitialBackoff: time.Millisecond, MaxBackoff: 2 * time.Millisecond},
		Now:   func() time.Time { return time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC) },
	}
}

func alwaysBlocked(kind domain.StrategyKind) *scriptedStrategy {
	return &scriptedStrategy{kind: kind, respond: func(int) Outcome { return Blocked(kind, 403) }}
}

func alwaysOK(kind domain.StrategyKind) *scriptedStrategy {
	return &scriptedStrategy{kind: kind, respond: func(int) Outcome { return Success(kind, feed) }}
}

var source = domain.Source{Name: "thales", URL: "https://www.thalesgroup.com/en/rss.xml", Region: "EU"}

func TestOrchestratorEscalatesOnceAndRemembersHeavy(t *testing.T) {
	t.Parallel()

	light := alwaysBlocked(domain.StrategyLight)
	heavy := alwaysOK(domain.StrategyHeavy)
	cache := newMemoryCache()
	orch := NewOrchestrator(NewRegistry(light, heavy), cache, fastOptions(2), nil)

	out := orch.Fetch(context.Background(), source)
	require.True(t, out.OK())
	assert.Equal(t, domain.StrategyHeavy, out.Strategy)
	assert.True(t, out.Escalated)
	assert.Equal(t, 2, light.Calls(), "light is retried up to the policy limit")
	assert.Equal(t, 1, heavy.Calls(), "heavy is attempted exactly once")

	entry, ok := cache.Lookup("www.thalesgroup.com")
	require.True(t, ok)
	assert.Equal(t, domain.StrategyHeavy, entry.Strategy)
	assert.Zero(t, entry.HeavyStreak, "light was tried in this run")

	out = orch.Fetch(context.Background(), source)
	require.True(t, out.OK())
	assert.False(t, out.Escalated)
	assert.Equal(t, 2, light.Calls(), "light must not be retried after heavy was cached")
	assert.Equal(t, 2, heavy.Calls())

	entry, _ = cache.Lookup("www.thalesgroup.com")
	assert.Equal(t, 1, entry.HeavyStreak)
}

func TestOrchestratorLightSuccessIsCached(t *testing.T) {
	t.Parallel()

	light := alwaysOK(domain.StrategyLight)
	heavy := alwaysOK(domain.StrategyHeavy)
	cache := newMemoryCache()
	orch := NewOrchestrator(NewRegistry(light, heavy), cache, fastOptions(3), nil)

	for range 3 {
		out := orch.Fetch(context.Background(), source)
		require.True(t, out.OK())
		assert.Equal(t, domain.StrategyLight, out.Strategy)
	}
	assert.Equal(t, 3, light.Calls())
	assert.Zero(t, heavy.Calls())
	assert.Equal(t, domain.StrategyLight, cache.entries["www.thalesgroup.com"].Strategy)
}

func TestOrchestratorRetriesTransientFailures(t *testing.T) {
	t.Parallel()

	light := &scriptedStrategy{kind: domain.StrategyLight, respond: func(call int) Outcome {
		if call < 3 {
			return TimedOut(domain.StrategyLight)
		}
		return Success(domain.StrategyLight, feed)
	}}
	heavy := alwaysOK(domain.StrategyHeavy)
	orch := NewOrchestrator(NewRegistry(light, heavy), newMemoryCache(), fastOptions(3), nil)

	out := orch.Fetch(context.Background(), source)
	require.True(t, out.OK())
	assert.Equal(t, 3, out.Attempts)
	assert.Zero(t, heavy.Calls())
}

func TestOrchestratorTimeoutDoesNotEscalate(t *testing.T) {
	t.Parallel()

	light := &scriptedStrategy{kind: domain.StrategyLight, respond: func(int) Outcome { return TimedOut(domain.StrategyLight) }}
	heavy := alwaysOK(domain.StrategyHeavy)
	cache := newMemoryCache()
	orch := NewOrchestrator(NewRegistry(light, heavy), cache, fastOptions(2), nil)

	out := orch.Fetch(context.Background(), source)
	assert.Equal(t, OutcomeTimedOut, out.Kind)
	assert.Zero(t, heavy.Calls())
	assert.Zero(t, cache.stores, "failures never mutate the cache")
}

func TestOrchestratorHeavyFailureIsTerminal(t *testing.T) {
	t.Parallel()

	light := alwaysBlocked(domain.StrategyLight)
	heavy := &scriptedStrategy{kind: domain.StrategyHeavy, respond: func(int) Outcome {
		return Malformed(domain.StrategyHeavy, "html response instead of feed")
	}}
	cache := newMemoryCache()
	orch := NewOrchestrator(NewRegistry(light, heavy), cache, fastOptions(2), nil)

	var observed []Outcome
	orch.OnOutcome(func(_ domain.Source, out Outcome) { observed = append(observed, out) })

	out := orch.Fetch(context.Background(), source)
	assert.Equal(t, OutcomeMalformed, out.Kind)
	assert.Equal(t, 2, heavy.Calls())
	assert.Equal(t, 4, out.Attempts)
	assert.Zero(t, cache.stores)
	require.Len(t, observed, 1)

	var fe *domain.FetchError
	require.ErrorAs(t, out.Err(source.Name), &fe)
	assert.Equal(t, domain.FetchMalformed, fe.Kind)
}

func TestOrchestratorCachedHeavyFailureDoesNotFallBackToLight(t *testing.T) {
	t.Parallel()

	light := alwaysOK(domain.StrategyLight)
	heavy := alwaysBlocked(domain.StrategyHeavy)
	cache := newMemoryCache()
	cache.entries["www.thalesgroup.com"] = domain.StrategyCacheEntry{Domain: "www.thalesgroup.com", Strategy: domain.StrategyHeavy, HeavyStreak: 1}
	orch := NewOrchestrator(NewRegistry(light, heavy), cache, fastOptions(1), nil)

	out := orch.Fetch(context.Background(), source)
	assert.Equal(t, OutcomeBlocked, out.Kind)
	assert.Zero(t, light.Calls())
}

func TestOrchestratorRevalidatesLightAfterHeavyStreak(t *testing.T) {
	t.Parallel()

	light := alwaysBlocked(domain.StrategyLight)
	heavy := alwaysOK(domain.StrategyHeavy)
	cache := newMemoryCache()
	cache.entries["www.thalesgroup.com"] = domain.StrategyCacheEntry{Domain: "www.thalesgroup.com", Strategy: domain.StrategyHeavy, HeavyStreak: 3}
	opts := fastOptions(1)
	opts.RevalidateAfter = 3
	orch := NewOrchestrator(NewRegistry(light, heavy), cache, opts, nil)

	out := orch.Fetch(context.Background(), source)
	require.True(t, out.OK())
	assert.Equal(t, 1, light.Calls(), "light probed once")
	assert.Zero(t, cache.entries["www.thalesgroup.com"].HeavyStreak, "failed probe restarts the streak")

	out = orch.Fetch(context.Background(), source)
	require.True(t, out.OK())
	assert.Equal(t, 1, light.Calls(), "no probe until the streak is rebuilt")
}

func TestOrchestratorRevalidateAfterOneSkipsARun(t *testing.T) {
	t.Parallel()

	light := alwaysBlocked(domain.StrategyLight)
	heavy := alwaysOK(domain.StrategyHeavy)
	cache := newMemoryCache()
	opts := fastOptions(1)
	opts.RevalidateAfter = 1
	orch := NewOrchestrator(NewRegistry(light, heavy), cache, opts, nil)

	lightCalls := make([]int, 0, 5)
	for range 5 {
		out := orch.Fetch(context.Background(), source)
		require.True(t, out.OK())
		lightCalls = append(lightCalls, light.Calls())
	}
	// escalate, heavy only, probe, heavy only, probe
	assert.Equal(t, []int{1, 1, 2, 2, 3}, lightCalls)
}

func TestOrchestratorPinnedStrategyNeverEscalates(t *testing.T) {
	t.Parallel()

	light := alwaysBlocked(domain.StrategyLight)
	heavy := alwaysOK(domain.StrategyHeavy)
	orch := NewOrchestrator(NewRegistry(light, heavy), newMemoryCache(), fastOptions(1), nil)

	pinned := source
	pinned.Strategy = domain.StrategyLight
	out := orch.Fetch(context.Background(), pinned)
	assert.Equal(t, OutcomeBlocked, out.Kind)
	assert.Zero(t, heavy.Calls())
}

func TestOrchestratorStopsOnCancelledContext(t *testing.T) {
	t.Parallel()

	light := alwaysBlocked(domain.StrategyLight)
	heavy := alwaysOK(domain.StrategyHeavy)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	orch := NewOrchestrator(NewRegistry(light, heavy), newMemoryCache(), fastOptions(3), nil)
	out := orch.Fetch(ctx, source)
	assert.False(t, out.OK())
	assert.Zero(t, heavy.Calls())
}
