package analysis

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"Sentinel6G/internal/domain"
)

var (
	yearExpr     = regexp.MustCompile(`\b(20\d{2})\b`)
	relativeExpr = regexp.MustCompile(`(\d+)\s*(?:-|–|to)?\s*(\d+)?\s*(?:years?|yrs?)`)
)

var horizonWords = []struct {
	words   []string
	horizon domain.Horizon
}{
	{[]string{"near", "short", "immediate", "imminent", "current", "now"}, domain.HorizonNear},
	{[]string{"mid", "medium", "intermediate"}, domain.HorizonMid},
	{[]string{"long", "far", "distant", "beyond"}, domain.HorizonLong},
}

// RepairHorizon maps whatever the oracle sent for time_horizon onto a bucket.
// Calendar years and year spans are judged by distance from runYear; anything
// unintelligible lands in the middle bucket.
func RepairHorizon(value any, runYear int) domain.Horizon {
	switch v := value.(type) {
	case json.Number:
		if f, err := v.Float64(); err == nil {
			return horizonFromNumber(f, runYear)
		}
	case float64:
		return horizonFromNumber(v, runYear)
	case string:
		return horizonFromText(v, runYear)
	}
	return domain.HorizonMid
}

func horizonFromText(text string, runYear int) domain.Horizon {
	lower := strings.ToLower(strings.TrimSpace(text))
	switch domain.Horizon(lower) {
	case domain.HorizonNear, domain.HorizonMid, domain.HorizonLong:
		return domain.Horizon(lower)
	}

	if years := yearExpr.FindAllString(lower, -1); len(years) > 0 {
		lo, hi := 0, 0
		for i, y := range years {
			n, _ := strconv.Atoi(y)
			if i == 0 || n < lo {
				lo = n
			}
			if n > hi {
				hi = n
			}
		}
		return horizonFromDistance(float64(lo+hi)/2 - float64(runYear))
	}

	if m := relativeExpr.FindStringSubmatch(lower); m != nil {
		lo, _ := strconv.Atoi(m[1])
		hi := lo
		if m[2] != "" {
			hi, _ = strconv.Atoi(m[2])
		}
		return horizonFromDistance(float64(lo+hi) / 2)
	}

	tokens := strings.FieldsFunc(lower, func(r rune) bool { return !unicode.IsLetter(r) })
	for _, group := range horizonWords {
		for _, w := range group.words {
			for _, tok := range tokens {
				if strings.HasPrefix(tok, w) {
					return group.horizon
				}
			}
		}
	}
	return domain.HorizonMid
}

func horizonFromNumber(n float64, runYear int) domain.Horizon {
	if n >= 2000 {
		return horizonFromDistance(n - float64(runYear))
	}
	return horizonFromDistance(n)
}

func horizonFromDistance(years float64) domain.Horizon {
	switch {
	case years <= 2:
		return domain.HorizonNear
	case years <= 5:
		return domain.HorizonMid
	default:
		return domain.HorizonLong
	}
}
