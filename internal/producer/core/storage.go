package core

import "github.com/google/uuid"

// JobStore tracks the jobs a producer currently has in flight.
type JobStore interface {
	SaveJob(job *Job) error
	RemoveJob(id uuid.UUID) error
	GetJobByID(id uuid.UUID) (*Job, error)
	GetJobs(filter JobFilter) ([]*Job, int, error)
}
