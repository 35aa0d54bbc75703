// Package challenge recognises bot-protection interstitials ("Just a
// moment...", "Checking your browser", and their translations) from a
// page's title and visible text.
package challenge

import (
	"strings"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"
)

// Similarity thresholds. Body text is noisier than titles.
const (
	TitleThreshold = 0.8
	BodyThreshold  = 0.7
)

var (
	normalizedTitlePatterns = normalizeAll(titlePatterns)
	normalizedBodyPatterns  = normalizeAll(bodyPatterns)
)

// Normalize lowercases s and collapses every run of whitespace into a
// single space.
func Normalize(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

func normalizeAll(patterns []string) []string {
	out := make([]string, 0, len(patterns))
	for _, p := range patterns {
		if n := Normalize(p); n != "" {
			out = append(out, n)
		}
	}
	return out
}

// Similarity returns 1 - lev(a, b) / max(len(a), len(b)), counted in runes.
// Two empty strings are identical.
func Similarity(a, b string) float64 {
	longer := max(utf8.RuneCountInString(a), utf8.RuneCountInString(b))
	if longer == 0 {
		return 1
	}
	return 1 - float64(levenshtein.ComputeDistance(a, b))/float64(longer)
}

// Matches reports whether pattern occurs in text, or whether the two are
// similar enough as whole strings. Both are normalized first.
func Matches(text, pattern string, threshold float64) bool {
	return matchNormalized(Normalize(text), Normalize(pattern), threshold)
}

func matchNormalized(text, pattern string, threshold float64) bool {
	if text == "" || pattern == "" {
		return false
	}
	if strings.Contains(text, pattern) {
		return true
	}

	// Edit distance is at least the length difference, so similarity can
	// never exceed shorter/longer.
	lt, lp := utf8.RuneCountInString(text), utf8.RuneCountInString(pattern)
	if float64(min(lt, lp))/float64(max(lt, lp)) < threshold {
		return false
	}
	return Similarity(text, pattern) >= threshold
}

// Detect reports whether title or body look like a challenge page. The
// caller's patterns are checked before the built-in ones. An empty title
// or body never matches.
func Detect(title, body string, titleIncludes, bodyIncludes []string) bool {
	if t := Normalize(title); t != "" {
		if anyMatch(t, normalizeAll(titleIncludes), TitleThreshold) ||
			anyMatch(t, normalizedTitlePatterns, TitleThreshold) {
			return true
		}
	}
	if b := Normalize(body); b != "" {
		if anyMatch(b, normalizeAll(bodyIncludes), BodyThreshold) ||
			anyMatch(b, normalizedBodyPatterns, BodyThreshold) {
			return true
		}
	}
	return false
}

func anyMatch(text string, patterns []string, threshold float64) bool {
	for _, p := range patterns {
		if matchNormalized(text, p, threshold) {
			return true
		}
	}
	return false
}

// ContainsAny reports whether the normalized text contains any of the
// normalized patterns as a substring.
func ContainsAny(text string, patterns []string) bool {
	t := Normalize(text)
	if t == "" {
		return false
	}
	for _, p := range patterns {
		if n := Normalize(p); n != "" && strings.Contains(t, n) {
			return true
		}
	}
	return false
}
