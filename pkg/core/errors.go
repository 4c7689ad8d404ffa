package core

import (
	"errors"
	"fmt"
	"strings"
)

// ErrEmptySource is matched by EmptySourceError through errors.Is.
var ErrEmptySource = errors.New("data source is empty")

// ConfigurationError reports a bad data source or producer setup. It is
// raised before anything is dispatched.
type ConfigurationError struct {
	Component string
	Reason    string
	Err       error
}

func (e *ConfigurationError) Error() string {
	msg := fmt.Sprintf("configuration error: %s: %s", e.Component, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

// EmptySourceError is returned by a split over a dataset with no records.
type EmptySourceError struct {
	Source string
}

func (e *EmptySourceError) Error() string {
	return fmt.Sprintf("data source %q is empty", e.Source)
}

func (e *EmptySourceError) Is(target error) bool {
	return target == ErrEmptySource
}

// ShardFailedError reports a shard whose map function failed on every
// allowed attempt.
type ShardFailedError struct {
	Shard    int
	Attempts int
	Cause    error
}

func (e *ShardFailedError) Error() string {
	return fmt.Sprintf("shard %d failed after %d attempts: %v", e.Shard, e.Attempts, e.Cause)
}

func (e *ShardFailedError) Unwrap() error {
	return e.Cause
}

// PartialResultsTimeoutError reports the shards that had not reported when
// the collection deadline elapsed.
type PartialResultsTimeoutError struct {
	Missing []int
}

func (e *PartialResultsTimeoutError) Error() string {
	ids := make([]string, len(e.Missing))
	for i, shard := range e.Missing {
		ids[i] = fmt.Sprint(shard)
	}
	return fmt.Sprintf("timed out waiting for %d shard(s): [%s]", len(e.Missing), strings.Join(ids, " "))
}

// ReduceError wraps an error returned by the reduce function.
type ReduceError struct {
	Cause error
}

func (e *ReduceError) Error() string {
	return fmt.Sprintf("reduce failed: %v", e.Cause)
}

func (e *ReduceError) Unwrap() error {
	return e.Cause
}
