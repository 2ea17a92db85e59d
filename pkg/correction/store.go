package correction

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrStorage is wrapped by every error a [Store] returns for a failed
	// read or write. Callers test for it with errors.Is.
	ErrStorage = errors.New("correction storage failure")

	// ErrNotFound is returned by administrative operations that address a
	// record that does not exist.
	ErrNotFound = errors.New("correction not found")
)

// StorageError wraps err so that errors.Is(result, ErrStorage) holds while
// the original cause stays reachable through errors.Unwrap chains.
func StorageError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrStorage) {
		return err
	}
	return fmt.Errorf("%w: %s: %w", ErrStorage, op, err)
}

// Store is the persistence collaborator of the learning engine. It is the
// only mutation path for durable correction state.
//
// Implementations must be safe for concurrent use.
type Store interface {
	// GetCorrections returns every record whose confidence is at least
	// minConfidence, ordered by confidence descending and then by original.
	GetCorrections(ctx context.Context, minConfidence float64) ([]Entry, error)

	// SaveCorrection upserts c keyed by (lower(c.Original), c.Corrected).
	// An existing record gets Occurrences+1; a new one starts at 1. In both
	// cases Confidence is recomputed and the stored record is returned.
	SaveCorrection(ctx context.Context, c Correction) (Correction, error)
}

// Lister is implemented by stores that can enumerate full records.
type Lister interface {
	ListCorrections(ctx context.Context) ([]Correction, error)
}

// Deleter is implemented by stores that support administrative deletion.
// The learning path never deletes.
type Deleter interface {
	// DeleteCorrection removes one (original, corrected) record. Returns
	// [ErrNotFound] when no such record exists.
	DeleteCorrection(ctx context.Context, original, corrected string) error

	// DeleteByOriginal removes every record for original and reports how many
	// were removed.
	DeleteByOriginal(ctx context.Context, original string) (int, error)
}

// Counter is implemented by stores that can count records cheaply.
type Counter interface {
	CountCorrections(ctx context.Context) (int, error)
}

// Pinger is implemented by stores backed by a connection that can be probed.
type Pinger interface {
	Ping(ctx context.Context) error
}
