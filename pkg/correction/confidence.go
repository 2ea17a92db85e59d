package correction

// halfSaturation is the occurrence count at which confidence reaches 0.5.
// With 2, three observations give 0.6 and clear the default auto-apply
// threshold of 0.55 while two observations (0.5) do not.
const halfSaturation = 2.0

// ConfidenceFor maps an occurrence count to a confidence in [0, 1).
//
// The curve n/(n+2) is concave and strictly increasing and never reaches 1,
// so every extra observation adds less than the previous one. Counts below 1
// yield 0.
func ConfidenceFor(occurrences int) float64 {
	if occurrences <= 0 {
		return 0
	}
	n := float64(occurrences)
	return n / (n + halfSaturation)
}
