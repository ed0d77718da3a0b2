// Package memory provides in-memory store implementations for development
// and testing.
package memory

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"jobscout/internal/lead"
)

// ErrJobNotFound is returned for lookups of unknown job ids.
var ErrJobNotFound = errors.New("job not found")

// JobStore implements lead.JobStore over process memory.
type JobStore struct {
	mu    sync.RWMutex
	jobs  map[string]lead.Job
	byURL map[string]string
}

// NewJobStore constructs a JobStore.
func NewJobStore() *JobStore {
	return &JobStore{
		jobs:  make(map[string]lead.Job),
		byURL: make(map[string]string),
	}
}

// Create stores a new job, enforcing URL uniqueness.
func (s *JobStore) Create(_ context.Context, job lead.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.byURL[job.URL]; exists {
		return lead.ErrDuplicateURL
	}
	if _, exists := s.jobs[job.ID]; exists {
		return errors.New("job id already exists")
	}
	s.jobs[job.ID] = job
	s.byURL[job.URL] = job.ID
	return nil
}

// Get fetches a job by id.
func (s *JobStore) Get(_ context.Context, id string) (lead.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[id]
	if !ok {
		return lead.Job{}, ErrJobNotFound
	}
	return job, nil
}

// ExistsByURL reports whether any job holds the canonical URL.
func (s *JobStore) ExistsByURL(_ context.Context, url string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.byURL[url]
	return ok, nil
}

// NextQueued returns the oldest queued job by creation time, or nil.
func (s *JobStore) NextQueued(_ context.Context) (*lead.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var oldest *lead.Job
	for id := range s.jobs {
		job := s.jobs[id]
		if job.Status != lead.JobStatusQueued {
			continue
		}
		if oldest == nil || job.CreatedAt.Before(oldest.CreatedAt) ||
			(job.CreatedAt.Equal(oldest.CreatedAt) && job.ID < oldest.ID) {
			oldest = &job
		}
	}
	if oldest == nil {
		return nil, nil
	}
	out := *oldest
	return &out, nil
}

// MarkProcessing transitions a queued job to processing.
func (s *JobStore) MarkProcessing(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return ErrJobNotFound
	}
	if job.Status != lead.JobStatusQueued {
		return errors.New("job is not queued")
	}
	job.Status = lead.JobStatusProcessing
	s.jobs[id] = job
	return nil
}

// Complete stores the result and schedules dispatch.
func (s *JobStore) Complete(_ context.Context, id string, result lead.EnrichmentResult, processedAt, dispatchDue time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return ErrJobNotFound
	}
	job.Status = lead.JobStatusCompleted
	job.Result = result
	job.FailureReason = ""
	job.ProcessedAt = &processedAt
	job.DispatchStatus = lead.DispatchPending
	job.DispatchDue = &dispatchDue
	s.jobs[id] = job
	return nil
}

// Fail marks the job failed with a reason kept for inspection.
func (s *JobStore) Fail(_ context.Context, id, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return ErrJobNotFound
	}
	job.Status = lead.JobStatusFailed
	job.FailureReason = reason
	s.jobs[id] = job
	return nil
}

// DueForDispatch returns up to limit pending jobs due at or before now,
// oldest due first.
func (s *JobStore) DueForDispatch(_ context.Context, now time.Time, limit int) ([]lead.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var due []lead.Job
	for id := range s.jobs {
		job := s.jobs[id]
		if job.DispatchStatus != lead.DispatchPending || job.DispatchDue == nil {
			continue
		}
		if job.DispatchDue.After(now) {
			continue
		}
		due = append(due, job)
	}
	sortByDue(due)
	if limit > 0 && len(due) > limit {
		due = due[:limit]
	}
	return due, nil
}

// SetDispatchStatus records a dispatch outcome.
func (s *JobStore) SetDispatchStatus(_ context.Context, id string, status lead.DispatchStatus, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return ErrJobNotFound
	}
	job.DispatchStatus = status
	job.DispatchError = reason
	s.jobs[id] = job
	return nil
}

// RequeueProcessing resets processing jobs back to queued.
func (s *JobStore) RequeueProcessing(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for id, job := range s.jobs {
		if job.Status != lead.JobStatusProcessing {
			continue
		}
		job.Status = lead.JobStatusQueued
		s.jobs[id] = job
		n++
	}
	return n, nil
}

func sortByDue(jobs []lead.Job) {
	sort.Slice(jobs, func(i, j int) bool {
		return jobs[i].DispatchDue.Before(*jobs[j].DispatchDue)
	})
}
