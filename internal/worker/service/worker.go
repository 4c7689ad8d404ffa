package service

import (
	"context"
	"errors"
	"time"

	"github.com/nemanja-m/gomar/internal/protocol"
	"github.com/nemanja-m/gomar/internal/queue"
	"github.com/nemanja-m/gomar/internal/shared/logging"
	"github.com/nemanja-m/gomar/internal/worker/core"
)

const (
	minBackoff = 100 * time.Millisecond
	maxBackoff = 5 * time.Second

	DefaultLeaseRenewInterval = 10 * time.Second
)

type workerService struct {
	broker        core.Broker
	executor      core.TaskExecutor
	topic         string
	renewInterval time.Duration
	logger        logging.Logger
}

// NewWorkerService returns a worker serving the tasks of the named producer.
// It handles one task at a time and renews the task lease every
// renewInterval while the task runs.
func NewWorkerService(
	broker core.Broker,
	executor core.TaskExecutor,
	producer string,
	renewInterval time.Duration,
	logger logging.Logger,
) core.WorkerService {
	if renewInterval <= 0 {
		renewInterval = DefaultLeaseRenewInterval
	}
	return &workerService{
		broker:        broker,
		executor:      executor,
		topic:         protocol.TaskTopic(producer),
		renewInterval: renewInterval,
		logger:        logger,
	}
}

// Run pulls and executes tasks until ctx is done or the broker is closed.
func (w *workerService) Run(ctx context.Context) error {
	w.logger.Info("Worker started", "topic", w.topic)
	backoff := minBackoff

	for {
		if ctx.Err() != nil {
			w.logger.Info("Worker stopped", "topic", w.topic)
			return nil
		}

		d, err := w.broker.Consume(ctx, w.topic)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			if errors.Is(err, queue.ErrClosed) {
				return err
			}
			w.logger.Error("Failed to pull task", "error", err, "backoff_ms", backoff.Milliseconds())
			select {
			case <-ctx.Done():
			case <-time.After(backoff):
			}
			backoff = min(backoff*2, maxBackoff)
			continue
		}

		backoff = minBackoff
		w.handle(ctx, d)
	}
}

func (w *workerService) handle(ctx context.Context, d *queue.Delivery) {
	task, err := protocol.DecodeTask(d.Payload)
	if err != nil {
		w.logger.Warn("Dropping malformed task", "error", err)
		w.ack(ctx, d)
		return
	}

	jobID := task.JobID.String()
	marked, err := w.broker.Marked(ctx, protocol.CancelMarker(task.JobID))
	if err != nil {
		w.logger.Warn("Failed to check cancellation marker", "job_id", jobID, "error", err)
	}
	if marked {
		w.logger.Info("Skipping task of finished job", "job_id", jobID, "shard", task.Shard)
		w.ack(ctx, d)
		return
	}

	w.logger.Info("Received task",
		"job_id", jobID,
		"shard", task.Shard,
		"attempt", task.Attempt,
		"function", task.Function,
		"deliveries", d.Deliveries,
	)

	start := time.Now()
	stopRenewal := w.renewLease(ctx, d)
	value, execErr := w.executor.Execute(ctx, task)
	stopRenewal()

	if ctx.Err() != nil {
		// Unacked, so the broker redelivers it once the lease lapses.
		w.logger.Warn("Task interrupted by shutdown", "job_id", jobID, "shard", task.Shard)
		return
	}

	result := &protocol.MapResult{
		JobID:   task.JobID,
		Shard:   task.Shard,
		Attempt: task.Attempt,
		Value:   value,
	}
	if execErr != nil {
		result.Value = nil
		result.Error = execErr.Error()
		w.logger.Error("Task execution failed", "job_id", jobID, "shard", task.Shard, "error", execErr)
	} else {
		w.logger.Info("Task completed", "job_id", jobID, "shard", task.Shard, "duration_ms", time.Since(start).Milliseconds())
	}

	payload, err := protocol.EncodeResult(result)
	if err != nil {
		w.logger.Error("Failed to encode result", "job_id", jobID, "shard", task.Shard, "error", err)
		return
	}
	if err := w.broker.Publish(ctx, protocol.ResultTopic(task.JobID), payload); err != nil {
		// The task stays leased and is redelivered once the lease expires.
		w.logger.Error("Failed to publish result", "job_id", jobID, "shard", task.Shard, "error", err)
		return
	}
	w.ack(ctx, d)
}

// renewLease extends the lease of d every renewInterval until the returned
// stop function is called.
func (w *workerService) renewLease(ctx context.Context, d *queue.Delivery) (stop func()) {
	renewCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	go func() {
		defer close(done)
		ticker := time.NewTicker(w.renewInterval)
		defer ticker.Stop()

		for {
			select {
			case <-renewCtx.Done():
				return
			case <-ticker.C:
				err := w.broker.Extend(renewCtx, d.Handle)
				switch {
				case err == nil:
					w.logger.Debug("Task lease renewed", "handle", d.Handle)
				case renewCtx.Err() != nil:
					return
				case errors.Is(err, queue.ErrUnknownHandle):
					w.logger.Warn("Task lease lost", "handle", d.Handle)
					return
				default:
					w.logger.Error("Failed to renew task lease", "handle", d.Handle, "error", err)
				}
			}
		}
	}()

	return func() {
		cancel()
		<-done
	}
}

func (w *workerService) ack(ctx context.Context, d *queue.Delivery) {
	if err := w.broker.Ack(ctx, d.Handle); err != nil {
		w.logger.Warn("Failed to ack task", "handle", d.Handle, "error", err)
	}
}
