// Package sqlite provides a [correction.Store] backed by a local SQLite
// database file, using the pure-Go modernc.org/sqlite driver.
//
// The database is opened in WAL mode with a single connection, which is the
// shape a per-user desktop or CLI deployment needs: one writer, cheap reads,
// and no server process.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/MrWong99/quillfix/pkg/correction"
)

// Compile-time interface checks.
var (
	_ correction.Store   = (*Store)(nil)
	_ correction.Lister  = (*Store)(nil)
	_ correction.Deleter = (*Store)(nil)
	_ correction.Counter = (*Store)(nil)
	_ correction.Pinger  = (*Store)(nil)
)

const schema = `
CREATE TABLE IF NOT EXISTS corrections (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    original    TEXT    NOT NULL,
    corrected   TEXT    NOT NULL,
    occurrences INTEGER NOT NULL DEFAULT 1,
    confidence  REAL    NOT NULL DEFAULT 0,
    source      TEXT    NOT NULL DEFAULT 'user_edit',
    created_at  INTEGER NOT NULL,
    updated_at  INTEGER NOT NULL,
    UNIQUE (original, corrected)
);
CREATE INDEX IF NOT EXISTS idx_corrections_confidence ON corrections (confidence DESC);
`

// Store is a SQLite-backed [correction.Store]. It is safe for concurrent use.
type Store struct {
	db        *sql.DB
	closeOnce sync.Once
	closeErr  error
}

// DefaultPath returns the default database location, ~/.quillfix/quillfix.db.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("sqlite store: home directory: %w", err)
	}
	return filepath.Join(home, ".quillfix", "quillfix.db"), nil
}

// Open opens (creating if needed) the database at path and applies the
// schema. An empty path uses [DefaultPath]; ":memory:" opens a private
// in-memory database.
func Open(ctx context.Context, path string) (*Store, error) {
	if path == "" {
		var err error
		if path, err = DefaultPath(); err != nil {
			return nil, err
		}
	}

	dsn := "file::memory:?_pragma=foreign_keys(1)"
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("sqlite store: create directory: %w", err)
		}
		dsn = fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)", path)
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite store: open: %w", err)
	}
	// One connection: SQLite has a single writer, and an in-memory database
	// exists only on the connection that created it.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite store: connect: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite store: migrate: %w", err)
	}
	return &Store{db: db}, nil
}

// Close checkpoints the WAL and closes the database. It is safe to call more
// than once.
func (s *Store) Close() error {
	s.closeOnce.Do(func() {
		_, _ = s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
		s.closeErr = s.db.Close()
	})
	return s.closeErr
}

// Ping implements [correction.Pinger].
func (s *Store) Ping(ctx context.Context) error {
	return correction.StorageError("ping", s.db.PingContext(ctx))
}

// GetCorrections implements [correction.Store].
func (s *Store) GetCorrections(ctx context.Context, minConfidence float64) ([]correction.Entry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT original, corrected, confidence
		FROM corrections
		WHERE confidence >= ?
		ORDER BY confidence DESC, original ASC, corrected ASC`, minConfidence)
	if err != nil {
		return nil, correction.StorageError("get corrections", err)
	}
	defer rows.Close()

	var out []correction.Entry
	for rows.Next() {
		var e correction.Entry
		if err := rows.Scan(&e.Original, &e.Corrected, &e.Confidence); err != nil {
			return nil, correction.StorageError("get corrections", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, correction.StorageError("get corrections", err)
	}
	return out, nil
}

// SaveCorrection implements [correction.Store]. The occurrence increment and
// confidence update run in one transaction.
func (s *Store) SaveCorrection(ctx context.Context, c correction.Correction) (correction.Correction, error) {
	orig, corr := c.Key()
	source := c.Source
	if source == "" {
		source = correction.SourceUserEdit
	}
	now := time.Now().UTC()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return correction.Correction{}, correction.StorageError("save correction", err)
	}
	defer func() { _ = tx.Rollback() }()

	rec := correction.Correction{Original: orig, Corrected: corr}
	var src string
	var created, updated int64
	err = tx.QueryRowContext(ctx, `
		INSERT INTO corrections (original, corrected, occurrences, confidence, source, created_at, updated_at)
		VALUES (?, ?, 1, 0, ?, ?, ?)
		ON CONFLICT (original, corrected) DO UPDATE
		    SET occurrences = occurrences + 1,
		        updated_at  = excluded.updated_at
		RETURNING occurrences, source, created_at, updated_at`,
		orig, corr, string(source), now.UnixMilli(), now.UnixMilli(),
	).Scan(&rec.Occurrences, &src, &created, &updated)
	if err != nil {
		return correction.Correction{}, correction.StorageError("save correction", err)
	}

	rec.UpdateConfidence()
	if _, err := tx.ExecContext(ctx,
		`UPDATE corrections SET confidence = ? WHERE original = ? AND corrected = ?`,
		rec.Confidence, orig, corr,
	); err != nil {
		return correction.Correction{}, correction.StorageError("save correction", err)
	}
	if err := tx.Commit(); err != nil {
		return correction.Correction{}, correction.StorageError("save correction", err)
	}

	rec.Source = correction.Source(src)
	rec.CreatedAt = time.UnixMilli(created).UTC()
	rec.UpdatedAt = time.UnixMilli(updated).UTC()
	return rec, nil
}

// ListCorrections implements [correction.Lister].
func (s *Store) ListCorrections(ctx context.Context) ([]correction.Correction, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT original, corrected, occurrences, confidence, source, created_at, updated_at
		FROM corrections
		ORDER BY original ASC, corrected ASC`)
	if err != nil {
		return nil, correction.StorageError("list corrections", err)
	}
	defer rows.Close()

	var out []correction.Correction
	for rows.Next() {
		var (
			c                correction.Correction
			src              string
			created, updated int64
		)
		if err := rows.Scan(&c.Original, &c.Corrected, &c.Occurrences, &c.Confidence, &src, &created, &updated); err != nil {
			return nil, correction.StorageError("list corrections", err)
		}
		c.Source = correction.Source(src)
		c.CreatedAt = time.UnixMilli(created).UTC()
		c.UpdatedAt = time.UnixMilli(updated).UTC()
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, correction.StorageError("list corrections", err)
	}
	return out, nil
}

// DeleteCorrection implements [correction.Deleter].
func (s *Store) DeleteCorrection(ctx context.Context, original, corrected string) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM corrections WHERE original = ? AND corrected = ?`,
		strings.ToLower(original), corrected)
	if err != nil {
		return correction.StorageError("delete correction", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return correction.StorageError("delete correction", err)
	}
	if n == 0 {
		return correction.ErrNotFound
	}
	return nil
}

// DeleteByOriginal implements [correction.Deleter].
func (s *Store) DeleteByOriginal(ctx context.Context, original string) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM corrections WHERE original = ?`, strings.ToLower(original))
	if err != nil {
		return 0, correction.StorageError("delete by original", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, correction.StorageError("delete by original", err)
	}
	return int(n), nil
}

// CountCorrections implements [correction.Counter].
func (s *Store) CountCorrections(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM corrections`).Scan(&n); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil
		}
		return 0, correction.StorageError("count corrections", err)
	}
	return n, nil
}
