package service

import (
	"context"
	"fmt"

	"github.com/nemanja-m/gomar/internal/protocol"
	"github.com/nemanja-m/gomar/internal/worker/core"
	"github.com/nemanja-m/gomar/pkg/datasource"
	"github.com/nemanja-m/gomar/pkg/jobs"
)

type mapExecutor struct {
	lookup func(name string) (jobs.Job, error)
}

// NewMapExecutor returns an executor running map functions from the
// global job registry.
func NewMapExecutor() core.TaskExecutor {
	return &mapExecutor{lookup: jobs.Get}
}

// Execute opens the task's shard and runs the registered map function over
// it. A panicking map function is reported as an error.
func (e *mapExecutor) Execute(ctx context.Context, task *protocol.MapTask) (value []byte, err error) {
	job, err := e.lookup(task.Function)
	if err != nil {
		return nil, err
	}

	src, err := datasource.Resolve(ctx, task.Source)
	if err != nil {
		return nil, fmt.Errorf("failed to open shard %d: %w", task.Shard, err)
	}
	defer func() {
		if closeErr := src.Close(); closeErr != nil && err == nil {
			value, err = nil, fmt.Errorf("failed to close shard %d: %w", task.Shard, closeErr)
		}
	}()
	defer func() {
		if r := recover(); r != nil {
			value, err = nil, fmt.Errorf("map function %q panicked: %v", task.Function, r)
		}
	}()

	return job.Map(ctx, src)
}
