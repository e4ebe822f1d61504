package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sorilab/hanalign/internal/store"
)

var _ store.JobStore = (*Store)(nil)

// defaultRecentLimit caps RecentJobs when the caller passes limit <= 0.
const defaultRecentLimit = 20

// Store is the PostgreSQL-backed [store.JobStore]. It holds a single
// [pgxpool.Pool] and is safe for concurrent use.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore establishes a connection pool to the PostgreSQL database at dsn
// and runs [Migrate] to ensure the schema exists.
func NewStore(ctx context.Context, dsn string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("job store: parse dsn: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("job store: create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("job store: ping: %w", err)
	}

	if err := Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("job store: %w", err)
	}

	return &Store{pool: pool}, nil
}

// Ping verifies the database connection is still alive.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close releases all connections held by the underlying connection pool.
func (s *Store) Close() {
	s.pool.Close()
}

// SaveJob implements [store.JobStore]. The job row and all segment rows are
// queued into a single [pgx.Batch], which PostgreSQL executes in an implicit
// transaction: a failure on any statement aborts the whole write.
//
// A zero job.CreatedAt is replaced with the current time.
func (s *Store) SaveJob(ctx context.Context, job store.Job, segments []store.Segment) error {
	const qJob = `
		INSERT INTO alignment_jobs
		    (id, filename, sample_rate, audio_seconds, text, agreement, elapsed_seconds, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	const qSegment = `
		INSERT INTO alignment_segments
		    (job_id, kind, ordinal, label, word_index, start_sec, end_sec, confidence)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	createdAt := job.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	batch := &pgx.Batch{}
	batch.Queue(qJob,
		job.ID,
		job.Filename,
		job.SampleRate,
		job.AudioSeconds,
		job.Text,
		job.Agreement,
		job.ElapsedSeconds,
		createdAt,
	)
	for _, seg := range segments {
		batch.Queue(qSegment,
			job.ID,
			seg.Kind,
			seg.Ordinal,
			seg.Label,
			seg.WordIndex,
			seg.Start,
			seg.End,
			seg.Confidence,
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()
	for i := 0; i < batch.Len(); i++ {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("job store: save job: %w", err)
		}
	}
	return nil
}

// GetJob implements [store.JobStore]. Returns (nil, nil) when no job with
// that ID exists.
func (s *Store) GetJob(ctx context.Context, id uuid.UUID) (*store.Job, error) {
	const q = `
		SELECT id, filename, sample_rate, audio_seconds, text, agreement, elapsed_seconds, created_at
		FROM   alignment_jobs
		WHERE  id = $1`

	rows, err := s.pool.Query(ctx, q, id)
	if err != nil {
		return nil, fmt.Errorf("job store: get job: %w", err)
	}
	jobs, err := collectJobs(rows)
	if err != nil {
		return nil, fmt.Errorf("job store: get job: %w", err)
	}
	if len(jobs) == 0 {
		return nil, nil
	}
	return &jobs[0], nil
}

// GetSegments implements [store.JobStore]. Segments are returned phoneme
// rows first and then word rows, each in ascending ordinal order.
func (s *Store) GetSegments(ctx context.Context, id uuid.UUID) ([]store.Segment, error) {
	const q = `
		SELECT kind, ordinal, label, word_index, start_sec, end_sec, confidence
		FROM   alignment_segments
		WHERE  job_id = $1
		ORDER  BY kind, ordinal`

	rows, err := s.pool.Query(ctx, q, id)
	if err != nil {
		return nil, fmt.Errorf("job store: get segments: %w", err)
	}
	return collectSegments(rows)
}

// RecentJobs implements [store.JobStore]. Jobs are returned most recent
// first. A limit <= 0 applies the default of 20.
func (s *Store) RecentJobs(ctx context.Context, limit int) ([]store.Job, error) {
	if limit <= 0 {
		limit = defaultRecentLimit
	}

	const q = `
		SELECT id, filename, sample_rate, audio_seconds, text, agreement, elapsed_seconds, created_at
		FROM   alignment_jobs
		ORDER  BY created_at DESC
		LIMIT  $1`

	rows, err := s.pool.Query(ctx, q, limit)
	if err != nil {
		return nil, fmt.Errorf("job store: recent jobs: %w", err)
	}
	jobs, err := collectJobs(rows)
	if err != nil {
		return nil, fmt.Errorf("job store: recent jobs: %w", err)
	}
	return jobs, nil
}

// collectJobs scans pgx rows into a slice of Job values.
func collectJobs(rows pgx.Rows) ([]store.Job, error) {
	jobs, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (store.Job, error) {
		var j store.Job
		if err := row.Scan(
			&j.ID,
			&j.Filename,
			&j.SampleRate,
			&j.AudioSeconds,
			&j.Text,
			&j.Agreement,
			&j.ElapsedSeconds,
			&j.CreatedAt,
		); err != nil {
			return store.Job{}, err
		}
		return j, nil
	})
	if err != nil {
		return nil, fmt.Errorf("job store: scan rows: %w", err)
	}
	if jobs == nil {
		jobs = []store.Job{}
	}
	return jobs, nil
}

// collectSegments scans pgx rows into a slice of Segment values.
func collectSegments(rows pgx.Rows) ([]store.Segment, error) {
	segments, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (store.Segment, error) {
		var seg store.Segment
		if err := row.Scan(
			&seg.Kind,
			&seg.Ordinal,
			&seg.Label,
			&seg.WordIndex,
			&seg.Start,
			&seg.End,
			&seg.Confidence,
		); err != nil {
			return store.Segment{}, err
		}
		return seg, nil
	})
	if err != nil {
		return nil, fmt.Errorf("job store: scan rows: %w", err)
	}
	if segments == nil {
		segments = []store.Segment{}
	}
	return segments, nil
}
