package rest

import (
	"time"
)

type GetJobResponse struct {
	JobID      string         `json:"job_id"`
	Name       string         `json:"name"`
	Function   string         `json:"function"`
	Source     string         `json:"source"`
	Status     string         `json:"status"`
	Progress   ProgressInfo   `json:"progress"`
	Timestamps TimestampsInfo `json:"timestamps"`
	Errors     []ErrorInfo    `json:"errors"`
}

type ProgressInfo struct {
	Total     int `json:"total"`
	Pending   int `json:"pending"`
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
	Retried   int `json:"retried"`
}

type TimestampsInfo struct {
	Created   time.Time  `json:"created"`
	Started   *time.Time `json:"started"`
	Completed *time.Time `json:"completed"`
}

type ErrorInfo struct {
	Shard     int       `json:"shard"`
	Attempt   int       `json:"attempt"`
	Error     string    `json:"error"`
	Timestamp time.Time `json:"timestamp"`
}

type ListJobsResponse struct {
	Jobs       []JobSummary `json:"jobs"`
	Total      int          `json:"total"`
	Limit      int          `json:"limit"`
	Offset     int          `json:"offset"`
	NextOffset *int         `json:"next_offset,omitempty"`
}

type JobSummary struct {
	JobID     string    `json:"job_id"`
	Name      string    `json:"name"`
	Status    string    `json:"status"`
	NumShards int       `json:"num_shards"`
	Completed int       `json:"completed"`
	CreatedAt time.Time `json:"created_at"`
}

type CancelJobResponse struct {
	JobID  string `json:"job_id"`
	Status string `json:"status"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Code    int    `json:"code"`
}
