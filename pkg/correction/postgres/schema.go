// Package postgres provides a PostgreSQL-backed [correction.Store] for
// deployments where several quillfix instances share one correction
// dictionary.
//
// Usage:
//
//	store, err := postgres.NewStore(ctx, dsn)
//	if err != nil { … }
//	defer store.Close()
//
//	engine, err := learning.FromStore(ctx, store)
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

const ddlCorrections = `
CREATE TABLE IF NOT EXISTS corrections (
    id          BIGSERIAL        PRIMARY KEY,
    original    TEXT             NOT NULL,
    corrected   TEXT             NOT NULL,
    occurrences INTEGER          NOT NULL DEFAULT 1,
    confidence  DOUBLE PRECISION NOT NULL DEFAULT 0,
    source      TEXT             NOT NULL DEFAULT 'user_edit',
    created_at  TIMESTAMPTZ      NOT NULL DEFAULT now(),
    updated_at  TIMESTAMPTZ      NOT NULL DEFAULT now(),
    CONSTRAINT corrections_original_corrected_key UNIQUE (original, corrected)
)`

const ddlCorrectionsConfidenceIdx = `
CREATE INDEX IF NOT EXISTS idx_corrections_confidence
    ON corrections (confidence DESC, original ASC)`

// Migrate creates the corrections table and its indexes. It is idempotent
// and safe to call on every application start.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	statements := []string{
		ddlCorrections,
		ddlCorrectionsConfidenceIdx,
	}

	for _, stmt := range statements {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("postgres migrate: %w", err)
		}
	}
	return nil
}
