package rest

import (
	"github.com/nemanja-m/gomar/internal/producer/core"
)

func ToGetJobResponse(job *core.Job) GetJobResponse {
	snap := job.Snapshot()

	errors := make([]ErrorInfo, 0, len(snap.Errors))
	for _, e := range snap.Errors {
		errors = append(errors, ErrorInfo{
			Shard:     e.Shard,
			Attempt:   e.Attempt,
			Error:     e.Error,
			Timestamp: e.Timestamp,
		})
	}

	return GetJobResponse{
		JobID:    snap.ID.String(),
		Name:     snap.Name,
		Function: snap.Function,
		Source:   snap.Source,
		Status:   string(snap.Status),
		Progress: ProgressInfo{
			Total:     snap.Progress.Total,
			Pending:   max(snap.Progress.Total-snap.Progress.Completed, 0),
			Completed: snap.Progress.Completed,
			Failed:    snap.Progress.Failed,
			Retried:   snap.Progress.Retried,
		},
		Timestamps: TimestampsInfo{
			Created:   snap.CreatedAt,
			Started:   snap.StartedAt,
			Completed: snap.CompletedAt,
		},
		Errors: errors,
	}
}

func ToJobSummary(job *core.Job) JobSummary {
	snap := job.Snapshot()
	return JobSummary{
		JobID:     snap.ID.String(),
		Name:      snap.Name,
		Status:    string(snap.Status),
		NumShards: snap.Progress.Total,
		Completed: snap.Progress.Completed,
		CreatedAt: snap.CreatedAt,
	}
}
