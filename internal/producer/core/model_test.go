package core

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from JobStatus
		to   JobStatus
		want bool
	}{
		{JobStatusPending, JobStatusDispatching, true},
		{JobStatusPending, JobStatusReducing, true},
		{JobStatusPending, JobStatusFailed, true},
		{JobStatusPending, JobStatusCollecting, false},
		{JobStatusDispatching, JobStatusCollecting, true},
		{JobStatusDispatching, JobStatusFailed, true},
		{JobStatusDispatching, JobStatusDone, false},
		{JobStatusCollecting, JobStatusReducing, true},
		{JobStatusCollecting, JobStatusFailed, true},
		{JobStatusCollecting, JobStatusDispatching, false},
		{JobStatusReducing, JobStatusDone, true},
		{JobStatusReducing, JobStatusFailed, true},
		{JobStatusDone, JobStatusFailed, false},
		{JobStatusFailed, JobStatusPending, false},
		{JobStatusFailed, JobStatusDispatching, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.want, CanTransition(tt.from, tt.to))
		})
	}
}

func TestJob_TransitionStampsTimes(t *testing.T) {
	job := NewJob("wordcount", "wordcount", nil, nil)
	require.Equal(t, JobStatusPending, job.Status())
	assert.Nil(t, job.Snapshot().StartedAt)

	require.NoError(t, job.Transition(JobStatusDispatching))
	require.NoError(t, job.Transition(JobStatusCollecting))
	snap := job.Snapshot()
	assert.NotNil(t, snap.StartedAt)
	assert.Nil(t, snap.CompletedAt)

	require.NoError(t, job.Transition(JobStatusReducing))
	require.NoError(t, job.Transition(JobStatusDone))
	snap = job.Snapshot()
	assert.NotNil(t, snap.CompletedAt)
	assert.True(t, snap.Status.Terminal())

	err := job.Transition(JobStatusFailed)
	assert.Error(t, err)
	assert.Equal(t, JobStatusDone, job.Status())
}

func TestJob_Progress(t *testing.T) {
	job := NewJob("p", "f", nil, nil)
	job.SetShards("memory", 4)
	job.RecordCompleted()
	job.RecordCompleted()
	job.RecordFailure(3, 1, "boom")
	job.RecordRetry()

	snap := job.Snapshot()
	assert.Equal(t, "memory", snap.Source)
	assert.Equal(t, JobProgress{Total: 4, Completed: 2, Failed: 1, Retried: 1}, snap.Progress)
	require.Len(t, snap.Errors, 1)
	assert.Equal(t, 3, snap.Errors[0].Shard)
	assert.Equal(t, "boom", snap.Errors[0].Error)
}

func TestJobSnapshot_Duration(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name        string
		startedAt   *time.Time
		completedAt *time.Time
		want        time.Duration
	}{
		{
			name: "not started returns zero",
			want: 0,
		},
		{
			name:        "completed job returns duration",
			startedAt:   ptrTime(now),
			completedAt: ptrTime(now.Add(5 * time.Minute)),
			want:        5 * time.Minute,
		},
		{
			name:        "sub-second duration",
			startedAt:   ptrTime(now),
			completedAt: ptrTime(now.Add(500 * time.Millisecond)),
			want:        500 * time.Millisecond,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			snap := JobSnapshot{StartedAt: tt.startedAt, CompletedAt: tt.completedAt}
			if got := snap.Duration(); got != tt.want {
				t.Errorf("JobSnapshot.Duration() = %v, want %v", got, tt.want)
			}
		})
	}
}

func ptrTime(t time.Time) *time.Time {
	return &t
}
