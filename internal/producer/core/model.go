package core

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nemanja-m/gomar/pkg/core"
)

type JobStatus string

const (
	JobStatusPending     JobStatus = "PENDING"
	JobStatusDispatching JobStatus = "DISPATCHING"
	JobStatusCollecting  JobStatus = "COLLECTING"
	JobStatusReducing    JobStatus = "REDUCING"
	JobStatusDone        JobStatus = "DONE"
	JobStatusFailed      JobStatus = "FAILED"
)

var transitions = map[JobStatus][]JobStatus{
	JobStatusPending:     {JobStatusDispatching, JobStatusReducing, JobStatusFailed},
	JobStatusDispatching: {JobStatusCollecting, JobStatusFailed},
	JobStatusCollecting:  {JobStatusReducing, JobStatusFailed},
	JobStatusReducing:    {JobStatusDone, JobStatusFailed},
}

// CanTransition reports whether a job may move from one status to another.
// PENDING goes straight to REDUCING when the source is empty.
func CanTransition(from, to JobStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

func (s JobStatus) Terminal() bool {
	return s == JobStatusDone || s == JobStatusFailed
}

// Job is one Map invocation. It is owned by the producer that created it
// and is safe for concurrent reads while the producer updates it.
type Job struct {
	ID        uuid.UUID
	Name      string
	Function  string
	Source    string
	NumShards int

	Map    core.MapFunc
	Reduce core.ReduceFunc

	CreatedAt time.Time

	mu          sync.RWMutex
	status      JobStatus
	progress    JobProgress
	startedAt   *time.Time
	completedAt *time.Time
	errors      []JobError
}

type JobProgress struct {
	Total     int
	Completed int
	Failed    int
	Retried   int
}

type JobError struct {
	Shard     int
	Attempt   int
	Error     string
	Timestamp time.Time
}

// JobSnapshot is a point-in-time copy of a job's mutable state.
type JobSnapshot struct {
	ID          uuid.UUID
	Name        string
	Function    string
	Source      string
	Status      JobStatus
	Progress    JobProgress
	CreatedAt   time.Time
	StartedAt   *time.Time
	CompletedAt *time.Time
	Errors      []JobError
}

func NewJob(name, function string, mapFn core.MapFunc, reduceFn core.ReduceFunc) *Job {
	return &Job{
		ID:        uuid.New(),
		Name:      name,
		Function:  function,
		Map:       mapFn,
		Reduce:    reduceFn,
		CreatedAt: time.Now().UTC(),
		status:    JobStatusPending,
	}
}

func (j *Job) Status() JobStatus {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.status
}

// Transition moves the job to status to, stamping start and completion
// times. Invalid transitions are rejected and leave the job unchanged.
func (j *Job) Transition(to JobStatus) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if !CanTransition(j.status, to) {
		return fmt.Errorf("job %s: invalid transition %s -> %s", j.ID, j.status, to)
	}
	now := time.Now().UTC()
	if j.status == JobStatusPending {
		j.startedAt = &now
	}
	if to.Terminal() {
		j.completedAt = &now
	}
	j.status = to
	return nil
}

// SetShards records the number of shards the job was split into.
func (j *Job) SetShards(source string, n int) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Source = source
	j.NumShards = n
	j.progress.Total = n
}

func (j *Job) RecordCompleted() {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.progress.Completed++
}

func (j *Job) RecordFailure(shard, attempt int, msg string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.progress.Failed++
	j.errors = append(j.errors, JobError{
		Shard:     shard,
		Attempt:   attempt,
		Error:     msg,
		Timestamp: time.Now().UTC(),
	})
}

func (j *Job) RecordRetry() {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.progress.Retried++
}

func (j *Job) Snapshot() JobSnapshot {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return JobSnapshot{
		ID:          j.ID,
		Name:        j.Name,
		Function:    j.Function,
		Source:      j.Source,
		Status:      j.status,
		Progress:    j.progress,
		CreatedAt:   j.CreatedAt,
		StartedAt:   j.startedAt,
		CompletedAt: j.completedAt,
		Errors:      append([]JobError(nil), j.errors...),
	}
}

func (s JobSnapshot) Duration() time.Duration {
	if s.StartedAt == nil {
		return 0
	}
	if s.CompletedAt == nil {
		return time.Since(*s.StartedAt)
	}
	return s.CompletedAt.Sub(*s.StartedAt)
}

type JobFilter struct {
	Status *JobStatus
	Limit  int
	Offset int
}
