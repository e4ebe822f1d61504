// Package mock provides a configurable in-memory test double for
// [store.JobStore].
//
// Exported fields control what each method returns; every call is recorded
// for assertion. The zero value is ready to use:
//
//	st := &mock.Store{}
//	st.GetJobResult = &store.Job{ID: id}
//
//	// inject st into the system under test …
//
//	if len(st.SaveJobCalls) != 1 {
//	    t.Errorf("expected 1 SaveJob call, got %d", len(st.SaveJobCalls))
//	}
package mock

import (
	"context"
	"slices"
	"sync"

	"github.com/google/uuid"

	"github.com/sorilab/hanalign/internal/store"
)

var _ store.JobStore = (*Store)(nil)

// SaveJobCall records the arguments of one SaveJob invocation.
type SaveJobCall struct {
	Job      store.Job
	Segments []store.Segment
}

// Store is a configurable test double for [store.JobStore].
// It is safe for concurrent use.
type Store struct {
	mu sync.Mutex

	// SaveJobErr is returned by SaveJob when non-nil.
	SaveJobErr error

	// GetJobResult is returned by GetJob. When nil, GetJob reports the job
	// as absent with (nil, nil).
	GetJobResult *store.Job

	// GetJobErr is returned by GetJob when non-nil.
	GetJobErr error

	// GetSegmentsResult is returned by GetSegments.
	// When nil, GetSegments returns an empty non-nil slice.
	GetSegmentsResult []store.Segment

	// GetSegmentsErr is returned by GetSegments when non-nil.
	GetSegmentsErr error

	// RecentJobsResult is returned by RecentJobs.
	// When nil, RecentJobs returns an empty non-nil slice.
	RecentJobsResult []store.Job

	// RecentJobsErr is returned by RecentJobs when non-nil.
	RecentJobsErr error

	// SaveJobCalls records every SaveJob invocation in order.
	SaveJobCalls []SaveJobCall

	// GetJobCalls records the ID passed to every GetJob invocation.
	GetJobCalls []uuid.UUID

	// GetSegmentsCalls records the ID passed to every GetSegments invocation.
	GetSegmentsCalls []uuid.UUID

	// RecentJobsCalls records the limit passed to every RecentJobs invocation.
	RecentJobsCalls []int
}

// SaveJob implements [store.JobStore].
func (m *Store) SaveJob(_ context.Context, job store.Job, segments []store.Segment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SaveJobCalls = append(m.SaveJobCalls, SaveJobCall{
		Job:      job,
		Segments: slices.Clone(segments),
	})
	return m.SaveJobErr
}

// GetJob implements [store.JobStore].
func (m *Store) GetJob(_ context.Context, id uuid.UUID) (*store.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.GetJobCalls = append(m.GetJobCalls, id)
	if m.GetJobErr != nil {
		return nil, m.GetJobErr
	}
	if m.GetJobResult == nil {
		return nil, nil
	}
	job := *m.GetJobResult
	return &job, nil
}

// GetSegments implements [store.JobStore].
func (m *Store) GetSegments(_ context.Context, id uuid.UUID) ([]store.Segment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.GetSegmentsCalls = append(m.GetSegmentsCalls, id)
	if m.GetSegmentsErr != nil {
		return nil, m.GetSegmentsErr
	}
	if m.GetSegmentsResult == nil {
		return []store.Segment{}, nil
	}
	return slices.Clone(m.GetSegmentsResult), nil
}

// RecentJobs implements [store.JobStore].
func (m *Store) RecentJobs(_ context.Context, limit int) ([]store.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RecentJobsCalls = append(m.RecentJobsCalls, limit)
	if m.RecentJobsErr != nil {
		return nil, m.RecentJobsErr
	}
	if m.RecentJobsResult == nil {
		return []store.Job{}, nil
	}
	return slices.Clone(m.RecentJobsResult), nil
}

// Reset clears all recorded calls without altering response configuration.
func (m *Store) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SaveJobCalls = nil
	m.GetJobCalls = nil
	m.GetSegmentsCalls = nil
	m.RecentJobsCalls = nil
}
