package domain

import (
	"fmt"
	"strings"
	"time"
)

// StrategyKind is the closed set of fetch strategies.
type StrategyKind string

const (
	StrategyLight StrategyKind = "light"
	StrategyHeavy StrategyKind = "heavy"
)

// ParseStrategyKind accepts the current names and the historical aliases
// (httpx, playwright) found in older cache files.
func ParseStrategyKind(value string) (StrategyKind, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "light", "httpx", "http":
		return StrategyLight, nil
	case "heavy", "playwright", "browser":
		return StrategyHeavy, nil
	default:
		return "", fmt.Errorf("unknown fetch strategy %q", value)
	}
}

// PayloadKind is what a source is expected to serve. The zero value is a feed.
type PayloadKind string

const (
	PayloadFeed PayloadKind = ""
	PayloadPage PayloadKind = "page"
)

// StrategyCacheEntry remembers which strategy last worked for a domain.
type StrategyCacheEntry struct {
	Domain         string
	Strategy       StrategyKind
	LastVerifiedAt time.Time
	// HeavyStreak counts heavy runs since light was last tried, used for revalidation.
	HeavyStreak int
}
