package storage

import (
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/nemanja-m/gomar/internal/producer/core"
)

// InMemoryJobStore holds the jobs a producer has in flight.
type InMemoryJobStore struct {
	mu   sync.RWMutex
	jobs map[uuid.UUID]*core.Job
}

func NewInMemoryJobStore() *InMemoryJobStore {
	return &InMemoryJobStore{
		jobs: make(map[uuid.UUID]*core.Job),
	}
}

func (s *InMemoryJobStore) SaveJob(job *core.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.jobs[job.ID]; exists {
		return fmt.Errorf("job already exists: %s", job.ID)
	}
	s.jobs[job.ID] = job
	return nil
}

func (s *InMemoryJobStore) RemoveJob(id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.jobs, id)
	return nil
}

func (s *InMemoryJobStore) GetJobByID(id uuid.UUID) (*core.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, exists := s.jobs[id]
	if !exists {
		return nil, nil
	}
	return job, nil
}

// GetJobs returns the jobs matching filter, oldest first, and the total
// number of matches before pagination.
func (s *InMemoryJobStore) GetJobs(filter core.JobFilter) ([]*core.Job, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var filtered []*core.Job
	for _, job := range s.jobs {
		if filter.Status != nil && job.Status() != *filter.Status {
			continue
		}
		filtered = append(filtered, job)
	}
	sort.Slice(filtered, func(i, j int) bool {
		if filtered[i].CreatedAt.Equal(filtered[j].CreatedAt) {
			return filtered[i].ID.String() < filtered[j].ID.String()
		}
		return filtered[i].CreatedAt.Before(filtered[j].CreatedAt)
	})

	total := len(filtered)
	limit := filter.Limit
	if limit <= 0 {
		limit = total
	}
	start := min(max(filter.Offset, 0), total)
	end := min(start+limit, total)

	return filtered[start:end], total, nil
}
