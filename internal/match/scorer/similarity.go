package scorer

import (
	"strings"

	"github.com/agnivade/levenshtein"
)

// trigramSimilarity is the Jaccard overlap of character trigrams. Strings
// are lowercased and padded so short names still produce grams.
func trigramSimilarity(a, b string) float64 {
	ga := trigrams(a)
	gb := trigrams(b)
	if len(ga) == 0 || len(gb) == 0 {
		return 0
	}
	shared := 0
	for g := range ga {
		if _, ok := gb[g]; ok {
			shared++
		}
	}
	union := len(ga) + len(gb) - shared
	return float64(shared) / float64(union)
}

func trigrams(s string) map[string]struct{} {
	s = "  " + strings.ToLower(strings.TrimSpace(s)) + " "
	if len(s) < 3 {
		return nil
	}
	out := make(map[string]struct{}, len(s))
	for i := 0; i+3 <= len(s); i++ {
		out[s[i:i+3]] = struct{}{}
	}
	return out
}

// levenshteinSimilarity maps edit distance onto [0, 1].
func levenshteinSimilarity(a, b string) float64 {
	a = strings.ToLower(strings.TrimSpace(a))
	b = strings.ToLower(strings.TrimSpace(b))
	longest := max(len([]rune(a)), len([]rune(b)))
	if longest == 0 {
		return 0
	}
	dist := levenshtein.ComputeDistance(a, b)
	if dist >= longest {
		return 0
	}
	return 1 - float64(dist)/float64(longest)
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
