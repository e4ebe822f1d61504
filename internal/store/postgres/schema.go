// Package postgres provides the PostgreSQL-backed implementation of
// [store.JobStore].
//
// All operations share a single [pgxpool.Pool]. [Migrate] runs on startup
// and is idempotent, so no external migration tooling is required.
//
// Usage:
//
//	st, err := postgres.NewStore(ctx, dsn)
//	if err != nil { … }
//	defer st.Close()
//
//	_ = st.SaveJob(ctx, job, segments)
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

const ddlJobs = `
CREATE TABLE IF NOT EXISTS alignment_jobs (
    id               UUID              PRIMARY KEY,
    filename         TEXT              NOT NULL DEFAULT '',
    sample_rate      INTEGER           NOT NULL,
    audio_seconds    DOUBLE PRECISION  NOT NULL,
    text             TEXT              NOT NULL,
    agreement        DOUBLE PRECISION,
    elapsed_seconds  DOUBLE PRECISION  NOT NULL DEFAULT 0,
    created_at       TIMESTAMPTZ       NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_alignment_jobs_created_at
    ON alignment_jobs (created_at);
`

const ddlSegments = `
CREATE TABLE IF NOT EXISTS alignment_segments (
    job_id      UUID              NOT NULL REFERENCES alignment_jobs (id) ON DELETE CASCADE,
    kind        TEXT              NOT NULL,
    ordinal     INTEGER           NOT NULL,
    label       TEXT              NOT NULL,
    word_index  INTEGER           NOT NULL DEFAULT -1,
    start_sec   DOUBLE PRECISION  NOT NULL,
    end_sec     DOUBLE PRECISION  NOT NULL,
    confidence  DOUBLE PRECISION  NOT NULL DEFAULT 0,
    PRIMARY KEY (job_id, kind, ordinal)
);

CREATE INDEX IF NOT EXISTS idx_alignment_segments_job
    ON alignment_segments (job_id);
`

// Migrate creates or ensures all required tables and indexes exist. It is
// idempotent (CREATE TABLE IF NOT EXISTS / CREATE INDEX IF NOT EXISTS) and
// safe to call on every application start.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	statements := []string{
		ddlJobs,
		ddlSegments,
	}

	for _, stmt := range statements {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("postgres migrate: %w", err)
		}
	}
	return nil
}
