package learning

import "strings"

// Pair is one alignment decision: a token from the original text and the
// token from the edited text believed to occupy the same position.
type Pair struct {
	Original string
	Edited   string
}

// Align pairs tokens of original with tokens of edited in a single forward
// pass with two cursors. It never backtracks and never re-pairs a token, so
// the result has at most min(len(original), len(edited)) pairs.
//
// At each step:
//
//  1. Tokens equal ignoring case are paired.
//  2. Otherwise tokens scoring at least threshold are paired.
//  3. Otherwise one token of lookahead is tried on each side. If only
//     original[i+1] matches edited[j] better, edited[j] is an inserted word
//     and only the original cursor advances. If only original[i] matches
//     edited[j+1] better, original[i] is a deleted word and only the edited
//     cursor advances.
//  4. In every other case the current tokens are force-paired so the cursors
//     stay in step.
//
// This is a linear heuristic, not an optimal edit-distance alignment. Forced
// pairs can be unrelated words; callers filter them by similarity.
func Align(original, edited []string, threshold float64) []Pair {
	if len(original) == 0 || len(edited) == 0 {
		return nil
	}

	pairs := make([]Pair, 0, min(len(original), len(edited)))
	i, j := 0, 0
	for i < len(original) && j < len(edited) {
		o, e := original[i], edited[j]

		if strings.EqualFold(o, e) {
			pairs = append(pairs, Pair{Original: o, Edited: e})
			i++
			j++
			continue
		}

		sim := Similarity(o, e)
		if sim >= threshold {
			pairs = append(pairs, Pair{Original: o, Edited: e})
			i++
			j++
			continue
		}

		skipOriginal := i+1 < len(original) && Similarity(original[i+1], e) > sim
		skipEdited := j+1 < len(edited) && Similarity(o, edited[j+1]) > sim

		switch {
		case skipOriginal && !skipEdited:
			i++
		case skipEdited && !skipOriginal:
			j++
		default:
			pairs = append(pairs, Pair{Original: o, Edited: e})
			i++
			j++
		}
	}
	return pairs
}
