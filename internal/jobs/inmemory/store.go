package inmemory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/dvloznov/sales-tracker/internal/jobs"
)

// DefaultMaxJobs is how many jobs NewStore keeps before evicting finished ones.
const DefaultMaxJobs = 500

// Store keeps run history in memory. It is safe for concurrent use and is
// lost on restart. Once more than maxJobs are held, the oldest finished jobs
// are evicted; pending and running jobs are never evicted.
type Store struct {
	mu      sync.RWMutex
	jobs    map[string]*jobs.RunPipelineJob
	maxJobs int
}

// NewStore creates a store holding up to DefaultMaxJobs jobs.
func NewStore() *Store {
	return NewStoreWithLimit(DefaultMaxJobs)
}

// NewStoreWithLimit creates a store holding up to maxJobs jobs. A limit below
// one disables eviction.
func NewStoreWithLimit(maxJobs int) *Store {
	return &Store{
		jobs:    make(map[string]*jobs.RunPipelineJob),
		maxJobs: maxJobs,
	}
}

// SaveJob stores a copy of job, replacing any previous state with the same ID.
func (s *Store) SaveJob(ctx context.Context, job *jobs.RunPipelineJob) error {
	if job.JobID == "" {
		return fmt.Errorf("SaveJob: job ID is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *job
	s.jobs[job.JobID] = &cp
	s.evictLocked()
	return nil
}

func (s *Store) evictLocked() {
	if s.maxJobs < 1 || len(s.jobs) <= s.maxJobs {
		return
	}
	finished := make([]*jobs.RunPipelineJob, 0, len(s.jobs))
	for _, j := range s.jobs {
		if j.Finished() {
			finished = append(finished, j)
		}
	}
	sortNewestFirst(finished)
	for i := len(finished) - 1; i >= 0 && len(s.jobs) > s.maxJobs; i-- {
		delete(s.jobs, finished[i].JobID)
	}
}

// GetJob returns a copy of the job with jobID.
func (s *Store) GetJob(ctx context.Context, jobID string) (*jobs.RunPipelineJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, ok := s.jobs[jobID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", jobs.ErrJobNotFound, jobID)
	}
	cp := *job
	return &cp, nil
}

// ListJobs returns copies of the matching jobs, newest first.
func (s *Store) ListJobs(ctx context.Context, filter jobs.JobFilter) ([]*jobs.RunPipelineJob, error) {
	s.mu.RLock()
	result := make([]*jobs.RunPipelineJob, 0, len(s.jobs))
	for _, job := range s.jobs {
		if filter.Source != "" && job.Source != filter.Source {
			continue
		}
		if filter.Status != "" && job.Status != filter.Status {
			continue
		}
		cp := *job
		result = append(result, &cp)
	}
	s.mu.RUnlock()

	sortNewestFirst(result)

	if filter.Offset > 0 {
		if filter.Offset >= len(result) {
			return []*jobs.RunPipelineJob{}, nil
		}
		result = result[filter.Offset:]
	}
	if filter.Limit > 0 && filter.Limit < len(result) {
		result = result[:filter.Limit]
	}
	return result, nil
}

func sortNewestFirst(list []*jobs.RunPipelineJob) {
	sort.Slice(list, func(i, j int) bool {
		if list[i].CreatedAt.Equal(list[j].CreatedAt) {
			return list[i].JobID < list[j].JobID
		}
		return list[i].CreatedAt.After(list[j].CreatedAt)
	})
}

var _ jobs.JobStore = (*Store)(nil)
