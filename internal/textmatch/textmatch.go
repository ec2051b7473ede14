// Package textmatch provides approximate string matching on a 0-100
// similarity scale, shared by the symptom extractor and the advice resolver.
package textmatch

import (
	"strings"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"
)

// Ratio returns a normalized edit-distance similarity between a and b:
// 100 means identical, 0 means nothing in common. Comparison is
// case-insensitive and treats underscores as spaces, so "homa_kali" and
// "Homa kali" score 100.
func Ratio(a, b string) int {
	a = Normalize(a)
	b = Normalize(b)
	if a == b {
		return 100
	}
	total := utf8.RuneCountInString(a) + utf8.RuneCountInString(b)
	if total == 0 {
		return 100
	}
	dist := levenshtein.ComputeDistance(a, b)
	score := (total - dist) * 100 / total
	if score < 0 {
		score = 0
	}
	return score
}

// Normalize lowercases s, trims it and collapses underscores to spaces.
func Normalize(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.ReplaceAll(s, "_", " ")
	return strings.Join(strings.Fields(s), " ")
}

// BestMatch returns the choice with the highest Ratio against query, along
// with its score. ok is false when choices is empty. Ties keep the earliest
// choice so the caller's ordering stays significant.
func BestMatch(query string, choices []string) (match string, score int, ok bool) {
	for _, c := range choices {
		if r := Ratio(query, c); !ok || r > score {
			match, score, ok = c, r, true
		}
	}
	return match, score, ok
}

// Matches returns every choice whose Ratio against query meets the threshold,
// in choice order. One query can legitimately hit several close vocabulary
// entries.
func Matches(query string, choices []string, threshold int) []string {
	var out []string
	for _, c := range choices {
		if Ratio(query, c) >= threshold {
			out = append(out, c)
		}
	}
	return out
}
