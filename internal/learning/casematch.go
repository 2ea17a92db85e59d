package learning

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// MatchCase re-applies the capitalisation pattern of original to corrected.
//
//   - Title case ("Teh": first rune upper, every later letter lower) gives
//     corrected with its first rune upper-cased and the rest lower-cased.
//   - All caps ("TEH": every letter upper) gives corrected upper-cased.
//   - Anything else, including lower case and mixed case, returns corrected
//     unchanged.
//
// If either string is empty corrected is returned as is.
func MatchCase(corrected, original string) string {
	if corrected == "" || original == "" {
		return corrected
	}

	first, size := utf8.DecodeRuneInString(original)
	rest := original[size:]

	if unicode.IsUpper(first) && !containsLetter(rest, unicode.IsUpper) {
		c, n := utf8.DecodeRuneInString(corrected)
		return string(unicode.ToUpper(c)) + strings.ToLower(corrected[n:])
	}
	if containsLetter(original, unicode.IsUpper) && !containsLetter(original, notUpper) {
		return strings.ToUpper(corrected)
	}
	return corrected
}

// containsLetter reports whether s has a letter satisfying pred.
func containsLetter(s string, pred func(rune) bool) bool {
	for _, r := range s {
		if unicode.IsLetter(r) && pred(r) {
			return true
		}
	}
	return false
}

func notUpper(r rune) bool { return !unicode.IsUpper(r) }
