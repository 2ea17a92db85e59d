// Package badgerstore provides a [correction.Store] on the embedded BadgerDB
// key-value store.
//
// Each record lives under the key "corr/<original>\x00<corrected>" as a JSON
// document. Bulk loads scan the "corr/" prefix and sort in memory, which is
// cheap for a per-user dictionary of a few thousand entries.
package badgerstore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/MrWong99/quillfix/pkg/correction"
)

// Compile-time interface checks.
var (
	_ correction.Store   = (*Store)(nil)
	_ correction.Lister  = (*Store)(nil)
	_ correction.Deleter = (*Store)(nil)
	_ correction.Counter = (*Store)(nil)
)

const keyPrefix = "corr/"

// Config configures [Open].
type Config struct {
	// Path is the database directory. Required unless InMemory is set.
	Path string

	// InMemory keeps everything in RAM. Used by tests.
	InMemory bool

	// SyncWrites fsyncs every commit.
	SyncWrites bool

	// Logger receives badger's internal log output. Nil silences it.
	Logger *slog.Logger
}

// badgerLogger adapts slog to badger.Logger.
type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...any) {
	l.logger.Error(strings.TrimSpace(fmt.Sprintf(format, args...)))
}

func (l *badgerLogger) Warningf(format string, args ...any) {
	l.logger.Warn(strings.TrimSpace(fmt.Sprintf(format, args...)))
}

func (l *badgerLogger) Infof(format string, args ...any) {
	l.logger.Debug(strings.TrimSpace(fmt.Sprintf(format, args...)))
}

func (l *badgerLogger) Debugf(format string, args ...any) {
	l.logger.Debug(strings.TrimSpace(fmt.Sprintf(format, args...)))
}

// record is the stored JSON document.
type record struct {
	Original    string    `json:"original"`
	Corrected   string    `json:"corrected"`
	Occurrences int       `json:"occurrences"`
	Confidence  float64   `json:"confidence"`
	Source      string    `json:"source"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (r record) correction() correction.Correction {
	return correction.Correction{
		Original:    r.Original,
		Corrected:   r.Corrected,
		Occurrences: r.Occurrences,
		Confidence:  r.Confidence,
		Source:      correction.Source(r.Source),
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
}

// Store is a BadgerDB-backed [correction.Store]. It is safe for concurrent use.
type Store struct {
	db *badger.DB

	// writeMu serialises upserts. Badger holds a directory lock, so this
	// process is the only writer, and read-modify-write transactions on one
	// key would otherwise fail with badger.ErrConflict.
	writeMu sync.Mutex
}

// Open opens the database described by cfg.
func Open(cfg Config) (*Store, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, errors.New("badgerstore: path is required for a persistent database")
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, 0o750); err != nil {
			return nil, fmt.Errorf("badgerstore: create directory %s: %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}
	opts = opts.WithSyncWrites(cfg.SyncWrites).WithNumVersionsToKeep(1)
	if cfg.Logger != nil {
		opts = opts.WithLogger(&badgerLogger{logger: cfg.Logger})
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("badgerstore: open: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

func key(original, corrected string) []byte {
	return []byte(keyPrefix + original + "\x00" + corrected)
}

// scan calls fn for every stored record.
func (s *Store) scan(ctx context.Context, fn func(record) error) error {
	return s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(keyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			var r record
			if err := it.Item().Value(func(v []byte) error {
				return json.Unmarshal(v, &r)
			}); err != nil {
				return fmt.Errorf("decode %q: %w", it.Item().Key(), err)
			}
			if err := fn(r); err != nil {
				return err
			}
		}
		return nil
	})
}

// GetCorrections implements [correction.Store].
func (s *Store) GetCorrections(ctx context.Context, minConfidence float64) ([]correction.Entry, error) {
	var out []correction.Entry
	err := s.scan(ctx, func(r record) error {
		if r.Confidence >= minConfidence {
			out = append(out, correction.Entry{Original: r.Original, Corrected: r.Corrected, Confidence: r.Confidence})
		}
		return nil
	})
	if err != nil {
		return nil, correction.StorageError("get corrections", err)
	}
	correction.SortEntries(out)
	return out, nil
}

// SaveCorrection implements [correction.Store].
func (s *Store) SaveCorrection(ctx context.Context, c correction.Correction) (correction.Correction, error) {
	orig, corr := c.Key()
	k := key(orig, corr)

	var saved record
	upsert := func(txn *badger.Txn) error {
		now := time.Now().UTC()
		r := record{Original: orig, Corrected: corr, Source: string(c.Source), CreatedAt: now}
		if r.Source == "" {
			r.Source = string(correction.SourceUserEdit)
		}

		item, err := txn.Get(k)
		switch {
		case err == nil:
			if err := item.Value(func(v []byte) error { return json.Unmarshal(v, &r) }); err != nil {
				return err
			}
		case !errors.Is(err, badger.ErrKeyNotFound):
			return err
		}

		r.Occurrences++
		r.UpdatedAt = now
		r.Confidence = correction.ConfidenceFor(r.Occurrences)

		v, err := json.Marshal(r)
		if err != nil {
			return err
		}
		if err := txn.Set(k, v); err != nil {
			return err
		}
		saved = r
		return nil
	}

	if err := ctx.Err(); err != nil {
		return correction.Correction{}, correction.StorageError("save correction", err)
	}
	s.writeMu.Lock()
	err := s.db.Update(upsert)
	s.writeMu.Unlock()
	if err != nil {
		return correction.Correction{}, correction.StorageError("save correction", err)
	}
	return saved.correction(), nil
}

// ListCorrections implements [correction.Lister]. Records come back in key
// order, which is original then corrected.
func (s *Store) ListCorrections(ctx context.Context) ([]correction.Correction, error) {
	var out []correction.Correction
	err := s.scan(ctx, func(r record) error {
		out = append(out, r.correction())
		return nil
	})
	if err != nil {
		return nil, correction.StorageError("list corrections", err)
	}
	return out, nil
}

// DeleteCorrection implements [correction.Deleter].
func (s *Store) DeleteCorrection(ctx context.Context, original, corrected string) error {
	k := key(strings.ToLower(original), corrected)
	err := s.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(k); err != nil {
			return err
		}
		return txn.Delete(k)
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return correction.ErrNotFound
	}
	return correction.StorageError("delete correction", err)
}

// DeleteByOriginal implements [correction.Deleter].
func (s *Store) DeleteByOriginal(ctx context.Context, original string) (int, error) {
	prefix := key(strings.ToLower(original), "")
	n := 0
	err := s.db.Update(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		var keys [][]byte
		for it.Rewind(); it.Valid(); it.Next() {
			keys = append(keys, bytes.Clone(it.Item().Key()))
		}
		it.Close()

		for _, k := range keys {
			if err := txn.Delete(k); err != nil {
				return err
			}
		}
		n = len(keys)
		return nil
	})
	if err != nil {
		return 0, correction.StorageError("delete by original", err)
	}
	return n, nil
}

// CountCorrections implements [correction.Counter].
func (s *Store) CountCorrections(ctx context.Context) (int, error) {
	n := 0
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(keyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			n++
		}
		return nil
	})
	if err != nil {
		return 0, correction.StorageError("count corrections", err)
	}
	return n, nil
}
