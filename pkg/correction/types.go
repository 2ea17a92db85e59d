// Package correction defines the durable record of a learned transcription
// typo and the persistence contract the learning engine consumes.
//
// A [Correction] is identified by the pair (lower-cased Original, Corrected).
// Observing the same pair again never creates a duplicate: stores increment
// [Correction.Occurrences] and recompute [Correction.Confidence] instead.
//
// Concrete stores live in sub-packages (sqlite, postgres, badgerstore);
// [MemStore] is the in-process implementation used by tests and the
// "memory" storage backend.
package correction

import (
	"strings"
	"time"
)

// Source records where a correction came from.
type Source string

const (
	// SourceUserEdit marks a correction observed from a user editing a
	// transcription. It is the only source the learning path writes.
	SourceUserEdit Source = "user_edit"

	// SourceManual marks a correction added administratively.
	SourceManual Source = "manual"

	// SourceImported marks a correction loaded from an external list.
	SourceImported Source = "imported"
)

// IsValid reports whether s is a recognised source.
func (s Source) IsValid() bool {
	switch s {
	case SourceUserEdit, SourceManual, SourceImported:
		return true
	}
	return false
}

// Correction is the durable record of one original→corrected token pair.
type Correction struct {
	// Original is the token as transcribed. Always lower-cased before it is
	// used as a key; see [Key].
	Original string `json:"original"`

	// Corrected is the replacement with the casing the user last typed.
	Corrected string `json:"corrected"`

	// Source is the provenance of the record.
	Source Source `json:"source"`

	// Occurrences counts how often the pair has been observed. It only grows.
	Occurrences int `json:"occurrences"`

	// Confidence is derived from Occurrences by [ConfidenceFor]. Never set it
	// directly; call [Correction.UpdateConfidence].
	Confidence float64 `json:"confidence"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// New returns a first observation of original→corrected with Occurrences 1
// and the matching confidence. original is lower-cased.
func New(original, corrected string, source Source) Correction {
	c := Correction{
		Original:    strings.ToLower(original),
		Corrected:   corrected,
		Source:      source,
		Occurrences: 1,
	}
	c.UpdateConfidence()
	return c
}

// UpdateConfidence recomputes Confidence from Occurrences.
func (c *Correction) UpdateConfidence() {
	c.Confidence = ConfidenceFor(c.Occurrences)
}

// Key returns the identity key of c.
func (c Correction) Key() (original, corrected string) {
	return strings.ToLower(c.Original), c.Corrected
}

// Entry is the read projection returned by [Store.GetCorrections]; it carries
// only what the engine's cache needs.
type Entry struct {
	Original   string  `json:"original"`
	Corrected  string  `json:"corrected"`
	Confidence float64 `json:"confidence"`
}
