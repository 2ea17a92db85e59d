package learning

import (
	"strings"
	"unicode/utf8"

	"github.com/antzucaro/matchr"
)

const (
	// DefaultAlignmentThreshold is the minimum [Similarity] for two tokens to
	// be treated as occupying the same slot during alignment.
	DefaultAlignmentThreshold = 0.5

	// DefaultCorrectionThreshold is the minimum [Similarity] for an aligned
	// pair to be learned as a typo correction.
	DefaultCorrectionThreshold = 0.7

	// shortTokenRunes is the longest token length for which the standard
	// Jaro match window collapses to zero.
	shortTokenRunes = 3
)

// Similarity scores how alike two tokens are, from 0 (nothing in common) to
// 1 (equal ignoring case). It is Jaro-Winkler on the lower-cased tokens.
//
// Arguments are put in a fixed order before scoring so the result is
// symmetric. For tokens of at most three runes the Jaro match window is
// widened to one position; the standard window of max(len)/2-1 is zero there,
// which would score an adjacent swap like "teh"/"the" as two mismatches.
func Similarity(a, b string) float64 {
	a, b = strings.ToLower(a), strings.ToLower(b)
	if a == b {
		return 1
	}
	if a == "" || b == "" {
		return 0
	}
	if a > b {
		a, b = b, a
	}
	if max(utf8.RuneCountInString(a), utf8.RuneCountInString(b)) <= shortTokenRunes {
		return shortJaroWinkler([]rune(a), []rune(b))
	}
	return matchr.JaroWinkler(a, b, false)
}

// shortJaroWinkler is Jaro-Winkler with a fixed match window of 1. Winkler's
// prefix bonus is applied under the same rule matchr uses: only when the Jaro
// score already exceeds 0.7.
func shortJaroWinkler(r1, r2 []rune) float64 {
	const window = 1

	f1 := make([]bool, len(r1))
	f2 := make([]bool, len(r2))
	common := 0
	for i := range r1 {
		lo := max(0, i-window)
		hi := min(len(r2)-1, i+window)
		for j := lo; j <= hi; j++ {
			if !f2[j] && r1[i] == r2[j] {
				f1[i], f2[j] = true, true
				common++
				break
			}
		}
	}
	if common == 0 {
		return 0
	}

	trans, k := 0, 0
	for i := range r1 {
		if !f1[i] {
			continue
		}
		for !f2[k] {
			k++
		}
		if r1[i] != r2[k] {
			trans++
		}
		k++
	}
	trans /= 2

	c := float64(common)
	score := (c/float64(len(r1)) + c/float64(len(r2)) + (c-float64(trans))/c) / 3
	if score <= 0.7 {
		return score
	}

	prefix := 0
	for prefix < min(len(r1), len(r2), 4) && r1[prefix] == r2[prefix] {
		prefix++
	}
	return score + float64(prefix)*0.1*(1-score)
}

// lengthDiff returns the absolute difference in byte length between a and b.
// A multibyte letter therefore counts for more than one.
func lengthDiff(a, b string) int {
	d := len(a) - len(b)
	if d < 0 {
		return -d
	}
	return d
}
