package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

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

// Store is a PostgreSQL-backed [correction.Store]. It holds a single
// [pgxpool.Pool] and is safe for concurrent use.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates a connection pool to the database at dsn, verifies it with
// a ping and runs [Migrate].
func NewStore(ctx context.Context, dsn string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres store: parse dsn: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("postgres store: create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres store: ping: %w", err)
	}

	if err := Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres store: migrate: %w", err)
	}

	return &Store{pool: pool}, nil
}

// Close releases all connections held by the pool. It always returns nil and
// exists so the store satisfies [io.Closer].
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

// Ping implements [correction.Pinger].
func (s *Store) Ping(ctx context.Context) error {
	return correction.StorageError("ping", s.pool.Ping(ctx))
}

// GetCorrections implements [correction.Store].
func (s *Store) GetCorrections(ctx context.Context, minConfidence float64) ([]correction.Entry, error) {
	const q = `
		SELECT original, corrected, confidence
		FROM   corrections
		WHERE  confidence >= $1
		ORDER  BY confidence DESC, original ASC, corrected ASC`

	rows, err := s.pool.Query(ctx, q, minConfidence)
	if err != nil {
		return nil, correction.StorageError("get corrections", err)
	}
	entries, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (correction.Entry, error) {
		var e correction.Entry
		err := row.Scan(&e.Original, &e.Corrected, &e.Confidence)
		return e, err
	})
	if err != nil {
		return nil, correction.StorageError("get corrections", err)
	}
	return entries, nil
}

// SaveCorrection implements [correction.Store]. The increment and the
// confidence update run in one transaction, so concurrent writers serialise
// on the row lock taken by ON CONFLICT DO UPDATE.
func (s *Store) SaveCorrection(ctx context.Context, c correction.Correction) (correction.Correction, error) {
	orig, corr := c.Key()
	source := c.Source
	if source == "" {
		source = correction.SourceUserEdit
	}

	var rec correction.Correction
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		const upsert = `
			INSERT INTO corrections (original, corrected, occurrences, confidence, source)
			VALUES ($1, $2, 1, 0, $3)
			ON CONFLICT (original, corrected) DO UPDATE
			    SET occurrences = corrections.occurrences + 1,
			        updated_at  = now()
			RETURNING original, corrected, occurrences, source, created_at, updated_at`

		var src string
		if err := tx.QueryRow(ctx, upsert, orig, corr, string(source)).Scan(
			&rec.Original, &rec.Corrected, &rec.Occurrences, &src, &rec.CreatedAt, &rec.UpdatedAt,
		); err != nil {
			return err
		}
		rec.Source = correction.Source(src)
		rec.UpdateConfidence()

		_, err := tx.Exec(ctx,
			`UPDATE corrections SET confidence = $3 WHERE original = $1 AND corrected = $2`,
			orig, corr, rec.Confidence)
		return err
	})
	if err != nil {
		return correction.Correction{}, correction.StorageError("save correction", err)
	}
	rec.CreatedAt = rec.CreatedAt.UTC()
	rec.UpdatedAt = rec.UpdatedAt.UTC()
	return rec, nil
}

// ListCorrections implements [correction.Lister].
func (s *Store) ListCorrections(ctx context.Context) ([]correction.Correction, error) {
	const q = `
		SELECT original, corrected, occurrences, confidence, source, created_at, updated_at
		FROM   corrections
		ORDER  BY original ASC, corrected ASC`

	rows, err := s.pool.Query(ctx, q)
	if err != nil {
		return nil, correction.StorageError("list corrections", err)
	}
	list, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (correction.Correction, error) {
		var (
			c                correction.Correction
			src              string
			created, updated time.Time
		)
		err := row.Scan(&c.Original, &c.Corrected, &c.Occurrences, &c.Confidence, &src, &created, &updated)
		c.Source = correction.Source(src)
		c.CreatedAt, c.UpdatedAt = created.UTC(), updated.UTC()
		return c, err
	})
	if err != nil {
		return nil, correction.StorageError("list corrections", err)
	}
	return list, nil
}

// DeleteCorrection implements [correction.Deleter].
func (s *Store) DeleteCorrection(ctx context.Context, original, corrected string) error {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM corrections WHERE original = $1 AND corrected = $2`,
		strings.ToLower(original), corrected)
	if err != nil {
		return correction.StorageError("delete correction", err)
	}
	if tag.RowsAffected() == 0 {
		return correction.ErrNotFound
	}
	return nil
}

// DeleteByOriginal implements [correction.Deleter].
func (s *Store) DeleteByOriginal(ctx context.Context, original string) (int, error) {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM corrections WHERE original = $1`, strings.ToLower(original))
	if err != nil {
		return 0, correction.StorageError("delete by original", err)
	}
	return int(tag.RowsAffected()), nil
}

// CountCorrections implements [correction.Counter].
func (s *Store) CountCorrections(ctx context.Context) (int, error) {
	var n int
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM corrections`).Scan(&n); err != nil {
		return 0, correction.StorageError("count corrections", err)
	}
	return n, nil
}
