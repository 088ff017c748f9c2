package filter

import (
	"regexp"
	"strings"
)

// Keyword weights used by the default table.
const (
	WeightHigh   = 3
	WeightMedium = 2
)

// Keyword is one weighted term of the relevance table.
type Keyword struct {
	Term   string `yaml:"term"`
	Weight int    `yaml:"weight"`
}

// DefaultKeywords is the table used when the configuration provides none.
func DefaultKeywords() []Keyword {
	return []Keyword{
		{Term: "IMT-2030", Weight: WeightHigh},
		{Term: "AI-native", Weight: WeightHigh},
		{Term: "Release 21", Weight: WeightHigh},
		{Term: "terahertz", Weight: WeightHigh},
		{Term: "6G architecture", Weight: WeightHigh},
		{Term: "spectrum", Weight: WeightMedium},
		{Term: "6G", Weight: WeightMedium},
		{Term: "3GPP", Weight: WeightMedium},
		{Term: "ISAC", Weight: WeightMedium},
		{Term: "NTN", Weight: WeightMedium},
		{Term: "sub-THz", Weight: WeightMedium},
		{Term: "RIS", Weight: WeightMedium},
	}
}

type matcher struct {
	term   string
	weight int
	re     *regexp.Regexp
}

// compile builds whole-word, case-insensitive matchers so that short
// acronyms such as RIS do not fire inside ordinary words.
func compile(keywords []Keyword) []matcher {
	out := make([]matcher, 0, len(keywords))
	seen := map[string]struct{}{}
	for _, kw := range keywords {
		term := strings.TrimSpace(kw.Term)
		if term == "" || kw.Weight <= 0 {
			continue
		}
		key := strings.ToLower(term)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, matcher{
			term:   term,
			weight: kw.Weight,
			re:     regexp.MustCompile(`(?i)(^|[^\pL\pN])` + regexp.QuoteMeta(term) + `($|[^\pL\pN])`),
		})
	}
	return out
}
