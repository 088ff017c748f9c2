package storage

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"maps"
	"sync"
	"time"

	"Sentinel6G/internal/domain"
	"Sentinel6G/internal/ports"
)

// StrategyCacheFile is the artifact name of the domain strategy cache.
const StrategyCacheFile = "fetch_method_cache.json"

// JSONStrategyCache keeps the per-domain strategy memory in a JSON file. It is
// loaded once at run start and saved once at run end.
type JSONStrategyCache struct {
	path    string
	logger  *slog.Logger
	mu      sync.Mutex
	entries map[string]domain.StrategyCacheEntry
	dirty   bool
}

var _ ports.StrategyCache = (*JSONStrategyCache)(nil)

type cacheRecord struct {
	Method         string    `json:"method"`
	LastVerifiedAt time.Time `json:"last_verified_at,omitzero"`
	HeavyStreak    int       `json:"heavy_streak,omitempty"`
}

// LoadStrategyCache reads path; a missing file yields an empty cache. Older
// files that map a domain straight to "httpx" or "playwright" are accepted.
func LoadStrategyCache(path string, log *slog.Logger) (*JSONStrategyCache, error) {
	c := &JSONStrategyCache{path: path, logger: log, entries: map[string]domain.StrategyCacheEntry{}}

	var raw map[string]json.RawMessage
	if _, err := readJSON(path, &raw); err != nil {
		return nil, fmt.Errorf("load strategy cache: %w", err)
	}

	for host, value := range raw {
		var rec cacheRecord
		if err := json.Unmarshal(value, &rec); err != nil {
			var legacy string
			if json.Unmarshal(value, &legacy) != nil {
				c.warn("skip unreadable cache entry", "domain", host)
				continue
			}
			rec = cacheRecord{Method: legacy}
		}
		kind, err := domain.ParseStrategyKind(rec.Method)
		if err != nil {
			c.warn("skip cache entry", "domain", host, "error", err)
			continue
		}
		c.entries[host] = domain.StrategyCacheEntry{
			Domain:         host,
			Strategy:       kind,
			LastVerifiedAt: rec.LastVerifiedAt,
			HeavyStreak:    rec.HeavyStreak,
		}
	}
	return c, nil
}

// Lookup returns the remembered strategy for a host.
func (c *JSONStrategyCache) Lookup(host string) (domain.StrategyCacheEntry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[host]
	return e, ok
}

// Store records a successful strategy.
func (c *JSONStrategyCache) Store(entry domain.StrategyCacheEntry) {
	if entry.Domain == "" {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[entry.Domain] = entry
	c.dirty = true
}

// Entries returns a copy of the cache contents.
func (c *JSONStrategyCache) Entries() map[string]domain.StrategyCacheEntry {
	c.mu.Lock()
	defer c.mu.Unlock()
	return maps.Clone(c.entries)
}

// Reset forgets every domain.
func (c *JSONStrategyCache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = map[string]domain.StrategyCacheEntry{}
	c.dirty = true
}

// Save writes the cache atomically when it changed since loading.
func (c *JSONStrategyCache) Save() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.dirty {
		return nil
	}

	out := make(map[string]cacheRecord, len(c.entries))
	for host, e := range c.entries {
		out[host] = cacheRecord{
			Method:         string(e.Strategy),
			LastVerifiedAt: e.LastVerifiedAt.UTC(),
			HeavyStreak:    e.HeavyStreak,
		}
	}
	if err := WriteJSON(c.path, out); err != nil {
		return fmt.Errorf("save strategy cache: %w", err)
	}
	c.dirty = false
	return nil
}

func (c *JSONStrategyCache) warn(msg string, args ...interface{}) {
	if c.logger != nil {
		c.logger.Warn(msg, args...)
	}
}
