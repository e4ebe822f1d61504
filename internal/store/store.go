// Package store defines persistence for completed alignment jobs.
//
// A [Job] records the request metadata and outcome of one alignment; its
// [Segment] rows carry the aligned phoneme and word spans. Persistence is
// best-effort from the caller's perspective: servicing a request never
// depends on the store being available.
//
// The interface is satisfied by the PostgreSQL implementation in the
// postgres subpackage and by the test double in the mock subpackage.
// Implementations must be safe for concurrent use.
package store

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Segment kinds stored in alignment_segments.
const (
	KindPhoneme = "phoneme"
	KindWord    = "word"
)

// Job is the persisted record of one alignment request.
type Job struct {
	// ID is the unique job identifier assigned when the request is served.
	ID uuid.UUID

	// Filename is the client-supplied name of the uploaded audio file.
	// May be empty when the client did not provide one.
	Filename string

	// SampleRate is the sample rate of the decoded audio in Hz.
	SampleRate int

	// AudioSeconds is the duration of the decoded audio.
	AudioSeconds float64

	// Text is the original text the audio was aligned against.
	Text string

	// Agreement is the transcription cross-check agreement ratio in [0, 1].
	// Nil when no transcriber was configured for the request.
	Agreement *float64

	// ElapsedSeconds is the wall-clock processing time of the request.
	ElapsedSeconds float64

	// CreatedAt is when the job completed.
	CreatedAt time.Time
}

// Segment is one aligned span belonging to a job, either a single phoneme
// or a whole word depending on Kind.
type Segment struct {
	// Kind is [KindPhoneme] or [KindWord].
	Kind string

	// Ordinal is the position of this segment within its kind sequence.
	Ordinal int

	// Label is the phoneme symbol or the word text.
	Label string

	// WordIndex is the position of the segment's word in the transcript's
	// word list, or -1 for phonemes that fall outside any word (silences).
	// For word segments it matches Ordinal unless earlier words produced no
	// phonemes and were dropped.
	WordIndex int

	// Start and End are the span boundaries in seconds from audio start.
	Start float64
	End   float64

	// Confidence is the mean per-frame decoder confidence over the span.
	Confidence float64
}

// JobStore persists alignment jobs and serves them back for later retrieval.
type JobStore interface {
	// SaveJob writes the job record and all its segments atomically.
	// job.ID must be set by the caller.
	SaveJob(ctx context.Context, job Job, segments []Segment) error

	// GetJob retrieves a job by ID.
	// Returns (nil, nil) when no job with that ID exists.
	GetJob(ctx context.Context, id uuid.UUID) (*Job, error)

	// GetSegments returns all segments of the given job, phoneme segments
	// first and then word segments, each in ascending Ordinal order.
	// Returns an empty (non-nil) slice when the job has no segments.
	GetSegments(ctx context.Context, id uuid.UUID) ([]Segment, error)

	// RecentJobs returns up to limit jobs ordered most recent first.
	// A limit of 0 applies an implementation default.
	RecentJobs(ctx context.Context, limit int) ([]Job, error)
}
