package core

import (
	"context"

	"github.com/nemanja-m/gomar/internal/protocol"
	"github.com/nemanja-m/gomar/internal/queue"
)

// Broker is the broker connection a worker pulls tasks from and publishes
// results to.
type Broker interface {
	queue.Transport
	queue.Markers
}

type WorkerService interface {
	Run(ctx context.Context) error
}

// TaskExecutor runs one map task and returns the serialized partial value.
type TaskExecutor interface {
	Execute(ctx context.Context, task *protocol.MapTask) ([]byte, error)
}
