package command

import (
	"strings"

	"github.com/agnivade/levenshtein"
)

// verbCutoff and tagCutoff are the minimum similarity ratios accepted
// by the fuzzy matcher for, respectively, an unknown command verb and
// an unknown /updates OS tag.
const (
	verbCutoff = 0.6
	tagCutoff  = 0.5
)

// osTags are the canonical OS tokens /updates can filter by.
var osTags = []string{"ios", "ipados", "macos", "watchos", "tvos", "visionos"}

// ratio returns the Levenshtein similarity of a and b in [0, 1]: 1 for
// identical strings, 0 when they share no characters over the longer
// string's length.
func ratio(a, b string) float64 {
	if a == "" && b == "" {
		return 1
	}
	longest := len(a)
	if len(b) > longest {
		longest = len(b)
	}
	if longest == 0 {
		return 1
	}
	dist := levenshtein.ComputeDistance(a, b)
	return 1 - float64(dist)/float64(longest)
}

// bestMatch returns the candidate in candidates closest to target, and
// whether its ratio meets cutoff.
func bestMatch(target string, candidates []string, cutoff float64) (string, bool) {
	target = strings.ToLower(target)
	var best string
	var bestRatio float64
	for _, candidate := range candidates {
		r := ratio(target, strings.ToLower(candidate))
		if r > bestRatio {
			bestRatio = r
			best = candidate
		}
	}
	if bestRatio >= cutoff {
		return best, true
	}
	return "", false
}

// MatchVerb finds the known verb closest to an unrecognized one.
func MatchVerb(verb string, known []string) (string, bool) {
	return bestMatch(verb, known, verbCutoff)
}

// CandidateTags scans names for word-boundary occurrences of the
// canonical OS tokens, case-insensitively, and returns the distinct set
// found.
func CandidateTags(names []string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, name := range names {
		lower := strings.ToLower(name)
		for _, tag := range osTags {
			if seen[tag] {
				continue
			}
			if containsWord(lower, tag) {
				seen[tag] = true
				out = append(out, tag)
			}
		}
	}
	return out
}

// MatchTag finds the OS tag candidate closest to an unrecognized one.
func MatchTag(tag string, candidates []string) (string, bool) {
	return bestMatch(tag, candidates, tagCutoff)
}

// containsWord reports whether token appears in s bounded by non-letter
// characters or string edges (s and token are assumed already
// lowercased).
func containsWord(s, token string) bool {
	idx := 0
	for {
		pos := strings.Index(s[idx:], token)
		if pos < 0 {
			return false
		}
		start := idx + pos
		end := start + len(token)
		beforeOK := start == 0 || !isLetter(s[start-1])
		afterOK := end == len(s) || !isLetter(s[end])
		if beforeOK && afterOK {
			return true
		}
		idx = start + 1
	}
}

func isLetter(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}
