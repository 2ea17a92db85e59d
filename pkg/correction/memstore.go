package correction

import (
	"cmp"
	"context"
	"slices"
	"strings"
	"sync"
	"time"
)

// Compile-time interface checks.
var (
	_ Store   = (*MemStore)(nil)
	_ Lister  = (*MemStore)(nil)
	_ Deleter = (*MemStore)(nil)
	_ Counter = (*MemStore)(nil)
)

type memKey struct {
	original  string
	corrected string
}

// MemStore is a thread-safe, in-memory [Store]. Nothing survives the
// process. The zero value is ready to use.
type MemStore struct {
	mu      sync.RWMutex
	records map[memKey]Correction
	now     func() time.Time
}

// NewMemStore returns an initialised [MemStore].
func NewMemStore() *MemStore {
	return &MemStore{records: make(map[memKey]Correction)}
}

// GetCorrections implements [Store].
func (s *MemStore) GetCorrections(ctx context.Context, minConfidence float64) ([]Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, StorageError("get corrections", err)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Entry, 0, len(s.records))
	for _, r := range s.records {
		if r.Confidence < minConfidence {
			continue
		}
		out = append(out, Entry{Original: r.Original, Corrected: r.Corrected, Confidence: r.Confidence})
	}
	SortEntries(out)
	return out, nil
}

// SaveCorrection implements [Store].
func (s *MemStore) SaveCorrection(ctx context.Context, c Correction) (Correction, error) {
	if err := ctx.Err(); err != nil {
		return Correction{}, StorageError("save correction", err)
	}
	orig, corr := c.Key()
	k := memKey{original: orig, corrected: corr}
	now := s.clock()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.records == nil {
		s.records = make(map[memKey]Correction)
	}

	rec, ok := s.records[k]
	if ok {
		rec.Occurrences++
	} else {
		rec = Correction{
			Original:    orig,
			Corrected:   corr,
			Source:      c.Source,
			Occurrences: 1,
			CreatedAt:   now,
		}
		if rec.Source == "" {
			rec.Source = SourceUserEdit
		}
	}
	rec.UpdatedAt = now
	rec.UpdateConfidence()
	s.records[k] = rec
	return rec, nil
}

// ListCorrections implements [Lister].
func (s *MemStore) ListCorrections(ctx context.Context) ([]Correction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Correction, 0, len(s.records))
	for _, r := range s.records {
		out = append(out, r)
	}
	slices.SortFunc(out, func(a, b Correction) int {
		return cmp.Or(cmp.Compare(a.Original, b.Original), cmp.Compare(a.Corrected, b.Corrected))
	})
	return out, nil
}

// DeleteCorrection implements [Deleter].
func (s *MemStore) DeleteCorrection(ctx context.Context, original, corrected string) error {
	k := memKey{original: strings.ToLower(original), corrected: corrected}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[k]; !ok {
		return ErrNotFound
	}
	delete(s.records, k)
	return nil
}

// DeleteByOriginal implements [Deleter].
func (s *MemStore) DeleteByOriginal(ctx context.Context, original string) (int, error) {
	orig := strings.ToLower(original)
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for k := range s.records {
		if k.original == orig {
			delete(s.records, k)
			n++
		}
	}
	return n, nil
}

// CountCorrections implements [Counter].
func (s *MemStore) CountCorrections(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records), nil
}

func (s *MemStore) clock() time.Time {
	if s.now != nil {
		return s.now()
	}
	return time.Now().UTC()
}

// SortEntries orders entries by confidence descending, then original and
// corrected ascending. Stores use it so bulk loads are deterministic.
func SortEntries(entries []Entry) {
	slices.SortFunc(entries, func(a, b Entry) int {
		return cmp.Or(
			cmp.Compare(b.Confidence, a.Confidence),
			cmp.Compare(a.Original, b.Original),
			cmp.Compare(a.Corrected, b.Corrected),
		)
	})
}
