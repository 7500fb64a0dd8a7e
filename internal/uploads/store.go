package uploads

import (
	"context"
	"fmt"
	"sync"
)

// MemoryStore is an in-memory JobStore. State is lost when the process exits,
// which matches the lifetime of a demo streaming run.
type MemoryStore struct {
	mu   sync.RWMutex
	jobs map[string]*Job
}

// NewMemoryStore creates an empty in-memory job store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{jobs: make(map[string]*Job)}
}

// SaveJob stores or updates a job. Jobs are copied on the way in so later
// caller mutations don't leak into the store.
func (s *MemoryStore) SaveJob(ctx context.Context, job *Job) error {
	if job.JobID == "" {
		return fmt.Errorf("uploads.SaveJob: job id is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	jobCopy := *job
	s.jobs[job.JobID] = &jobCopy
	return nil
}

// GetJob returns a copy of the job with the given id.
func (s *MemoryStore) GetJob(ctx context.Context, jobID string) (*Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, ok := s.jobs[jobID]
	if !ok {
		return nil, fmt.Errorf("uploads.GetJob: job not found: %s", jobID)
	}

	jobCopy := *job
	return &jobCopy, nil
}

// ListJobs returns copies of jobs, optionally filtered by status.
func (s *MemoryStore) ListJobs(ctx context.Context, status Status) ([]*Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*Job
	for _, job := range s.jobs {
		if status != "" && job.Status != status {
			continue
		}
		jobCopy := *job
		result = append(result, &jobCopy)
	}

	return result, nil
}

var _ JobStore = (*MemoryStore)(nil)
