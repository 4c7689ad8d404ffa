package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nemanja-m/gomar/internal/producer/core"
	"github.com/nemanja-m/gomar/internal/protocol"
	"github.com/nemanja-m/gomar/internal/queue"
	"github.com/nemanja-m/gomar/internal/shared/logging"
	mr "github.com/nemanja-m/gomar/pkg/core"
	"github.com/nemanja-m/gomar/pkg/datasource"
	"github.com/nemanja-m/gomar/pkg/jobs"
)

const (
	DefaultMaxRetries     = 3
	DefaultResultTimeout  = 5 * time.Minute
	DefaultPublishTimeout = 10 * time.Second
)

var (
	ErrJobCancelled = fmt.Errorf("job cancelled: %w", context.Canceled)
	ErrJobNotFound  = errors.New("job not found")
)

// Broker is the part of a broker connection the producer needs.
type Broker interface {
	queue.Transport
	queue.Markers
}

// Config holds the dispatch settings of a producer.
type Config struct {
	// Name selects the task topic workers consume from.
	Name string
	// Function is the registered job name sent in map tasks. It defaults to
	// Name.
	Function string
	// Workers is the number of shards every job is split into.
	Workers int
	// MaxRetries bounds how many times a failed shard is republished.
	MaxRetries int
	// ResultTimeout bounds the whole collection phase of a job.
	ResultTimeout time.Duration
	// PublishTimeout bounds every single publish.
	PublishTimeout time.Duration
}

// Producer drives jobs through dispatch, collection and reduce. Jobs run
// concurrently and share nothing but the broker connection.
type Producer struct {
	cfg    Config
	job    jobs.Job
	broker Broker
	store  core.JobStore
	logger logging.Logger

	mu      sync.Mutex
	cancels map[uuid.UUID]context.CancelCauseFunc
}

func NewProducer(cfg Config, job jobs.Job, broker Broker, store core.JobStore, logger logging.Logger) (*Producer, error) {
	if cfg.Name == "" {
		return nil, &mr.ConfigurationError{Component: "producer", Reason: "name is required"}
	}
	if cfg.Function == "" {
		cfg.Function = cfg.Name
	}
	if cfg.Workers <= 0 {
		return nil, &mr.ConfigurationError{Component: "producer", Reason: fmt.Sprintf("workers must be positive, got %d", cfg.Workers)}
	}
	if cfg.MaxRetries < 0 {
		return nil, &mr.ConfigurationError{Component: "producer", Reason: fmt.Sprintf("max retries must not be negative, got %d", cfg.MaxRetries)}
	}
	if job.Map == nil || job.Reduce == nil {
		return nil, &mr.ConfigurationError{Component: "producer", Reason: "map and reduce functions are required"}
	}
	if cfg.ResultTimeout <= 0 {
		cfg.ResultTimeout = DefaultResultTimeout
	}
	if cfg.PublishTimeout <= 0 {
		cfg.PublishTimeout = DefaultPublishTimeout
	}

	return &Producer{
		cfg:     cfg,
		job:     job,
		broker:  broker,
		store:   store,
		logger:  logger,
		cancels: make(map[uuid.UUID]context.CancelCauseFunc),
	}, nil
}

// Map runs one job over the shards produced by factory and returns the
// reduced value. It never returns a partial result: every failure surfaces
// as an error and the reduce function only sees a complete, shard-ordered
// sequence.
func (p *Producer) Map(ctx context.Context, factory *datasource.Factory) ([]byte, error) {
	job := core.NewJob(p.cfg.Name, p.cfg.Function, p.job.Map, p.job.Reduce)

	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)
	if err := p.track(job, cancel); err != nil {
		return nil, err
	}
	defer p.untrack(job.ID)

	shards, err := factory.Split(ctx, p.cfg.Workers)
	if errors.Is(err, mr.ErrEmptySource) {
		p.logger.Info("Data source is empty, reducing without dispatch", "job_id", job.ID.String(), "source", factory.Source())
		job.SetShards(factory.Source(), 0)
		return p.reduce(ctx, job, nil)
	}
	if err != nil {
		p.fail(job, err)
		return nil, err
	}
	job.SetShards(factory.Source(), len(shards))

	if err := job.Transition(core.JobStatusDispatching); err != nil {
		return nil, err
	}
	if err := p.dispatch(ctx, job, shards); err != nil {
		p.retire(ctx, job)
		p.fail(job, err)
		return nil, err
	}

	if err := job.Transition(core.JobStatusCollecting); err != nil {
		return nil, err
	}
	partials, err := p.collect(ctx, job, shards)
	p.retire(ctx, job)
	if err != nil {
		p.fail(job, err)
		return nil, err
	}

	return p.reduce(ctx, job, partials)
}

// Cancel stops an in-flight job. Its Map call returns ErrJobCancelled.
func (p *Producer) Cancel(id uuid.UUID) error {
	p.mu.Lock()
	cancel, exists := p.cancels[id]
	p.mu.Unlock()
	if !exists {
		return ErrJobNotFound
	}
	cancel(ErrJobCancelled)
	return nil
}

func (p *Producer) GetJob(id uuid.UUID) (*core.Job, error) {
	return p.store.GetJobByID(id)
}

func (p *Producer) GetJobs(filter core.JobFilter) ([]*core.Job, int, error) {
	return p.store.GetJobs(filter)
}

func (p *Producer) dispatch(ctx context.Context, job *core.Job, shards []datasource.Shard) error {
	for _, shard := range shards {
		if err := p.publishTask(ctx, job, shard, 1); err != nil {
			return err
		}
	}
	p.logger.Info("Job dispatched",
		"job_id", job.ID.String(),
		"function", job.Function,
		"source", job.Source,
		"num_shards", len(shards),
	)
	return nil
}

func (p *Producer) publishTask(ctx context.Context, job *core.Job, shard datasource.Shard, attempt int) error {
	payload, err := protocol.EncodeTask(&protocol.MapTask{
		JobID:    job.ID,
		Shard:    shard.Index,
		Attempt:  attempt,
		Function: job.Function,
		Source:   shard,
	})
	if err != nil {
		return fmt.Errorf("failed to encode map task for shard %d: %w", shard.Index, err)
	}

	pubCtx, cancel := context.WithTimeout(ctx, p.cfg.PublishTimeout)
	defer cancel()
	if err := p.broker.Publish(pubCtx, protocol.TaskTopic(p.cfg.Name), payload); err != nil {
		if cause := context.Cause(ctx); cause != nil {
			return cause
		}
		return fmt.Errorf("failed to publish map task for shard %d: %w", shard.Index, err)
	}
	return nil
}

// collect gathers results until every shard has reported, a shard runs out
// of retries, or the result deadline elapses.
func (p *Producer) collect(ctx context.Context, job *core.Job, shards []datasource.Shard) ([][]byte, error) {
	collector := core.NewResultCollector(len(shards))
	attempts := make([]int, len(shards))
	for i := range attempts {
		attempts[i] = 1
	}

	deadline, cancel := context.WithTimeout(ctx, p.cfg.ResultTimeout)
	defer cancel()

	topic := protocol.ResultTopic(job.ID)
	for !collector.Complete() {
		d, err := p.broker.Consume(deadline, topic)
		if err != nil {
			if cause := context.Cause(ctx); cause != nil {
				return nil, cause
			}
			if errors.Is(err, context.DeadlineExceeded) {
				missing := collector.Missing()
				p.logger.Error("Timed out waiting for results", "job_id", job.ID.String(), "missing", missing)
				return nil, &mr.PartialResultsTimeoutError{Missing: missing}
			}
			return nil, fmt.Errorf("failed to consume results: %w", err)
		}

		result, decodeErr := protocol.DecodeResult(d.Payload)
		if err := p.broker.Ack(ctx, d.Handle); err != nil {
			p.logger.Warn("Failed to ack result", "job_id", job.ID.String(), "error", err)
		}
		if decodeErr != nil {
			p.logger.Warn("Dropping malformed result", "job_id", job.ID.String(), "error", decodeErr)
			continue
		}
		if result.JobID != job.ID || result.Shard < 0 || result.Shard >= len(shards) {
			p.logger.Warn("Dropping result for unknown shard", "job_id", job.ID.String(), "shard", result.Shard)
			continue
		}
		if collector.Has(result.Shard) {
			p.logger.Debug("Dropping duplicate result", "job_id", job.ID.String(), "shard", result.Shard)
			continue
		}

		if !result.Failed() {
			collector.Add(result.Shard, result.Value)
			job.RecordCompleted()
			p.logger.Debug("Shard completed",
				"job_id", job.ID.String(),
				"shard", result.Shard,
				"attempt", result.Attempt,
				"completed", collector.Len(),
				"total", len(shards),
			)
			continue
		}

		if result.Attempt < attempts[result.Shard] {
			// An older attempt already triggered a retry.
			continue
		}
		job.RecordFailure(result.Shard, result.Attempt, result.Error)
		if attempts[result.Shard] > p.cfg.MaxRetries {
			return nil, &mr.ShardFailedError{
				Shard:    result.Shard,
				Attempts: attempts[result.Shard],
				Cause:    errors.New(result.Error),
			}
		}

		attempts[result.Shard]++
		job.RecordRetry()
		p.logger.Warn("Shard failed, retrying",
			"job_id", job.ID.String(),
			"shard", result.Shard,
			"attempt", attempts[result.Shard],
			"error", result.Error,
		)
		if err := p.publishTask(ctx, job, shards[result.Shard], attempts[result.Shard]); err != nil {
			return nil, err
		}
	}

	return collector.Ordered(), nil
}

func (p *Producer) reduce(ctx context.Context, job *core.Job, partials [][]byte) ([]byte, error) {
	if err := job.Transition(core.JobStatusReducing); err != nil {
		return nil, err
	}

	out, err := safeReduce(ctx, job.Reduce, partials)
	if err != nil {
		reduceErr := &mr.ReduceError{Cause: err}
		p.fail(job, reduceErr)
		return nil, reduceErr
	}

	if err := job.Transition(core.JobStatusDone); err != nil {
		return nil, err
	}
	snap := job.Snapshot()
	p.logger.Info("Job completed",
		"job_id", job.ID.String(),
		"num_shards", snap.Progress.Total,
		"retries", snap.Progress.Retried,
		"duration_ms", snap.Duration().Milliseconds(),
	)
	return out, nil
}

func safeReduce(ctx context.Context, fn mr.ReduceFunc, partials [][]byte) (out []byte, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("reduce panicked: %v", r)
		}
	}()
	return fn(ctx, partials)
}

// retire sets the job's cancellation marker so workers skip any of its
// tasks still queued or redelivered, then purges the job's result topic.
func (p *Producer) retire(ctx context.Context, job *core.Job) {
	retireCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.cfg.PublishTimeout)
	defer cancel()
	if err := p.broker.Mark(retireCtx, protocol.CancelMarker(job.ID)); err != nil {
		p.logger.Error("Failed to set cancellation marker", "job_id", job.ID.String(), "error", err)
	}
	if err := p.broker.Purge(retireCtx, protocol.ResultTopic(job.ID)); err != nil {
		p.logger.Warn("Failed to purge result topic", "job_id", job.ID.String(), "error", err)
	}
}

func (p *Producer) fail(job *core.Job, err error) {
	if transitionErr := job.Transition(core.JobStatusFailed); transitionErr != nil {
		p.logger.Warn("Failed to mark job as failed", "job_id", job.ID.String(), "error", transitionErr)
	}
	p.logger.Error("Job failed", "job_id", job.ID.String(), "error", err)
}

func (p *Producer) track(job *core.Job, cancel context.CancelCauseFunc) error {
	if err := p.store.SaveJob(job); err != nil {
		return err
	}
	p.mu.Lock()
	p.cancels[job.ID] = cancel
	p.mu.Unlock()
	return nil
}

func (p *Producer) untrack(id uuid.UUID) {
	p.mu.Lock()
	delete(p.cancels, id)
	p.mu.Unlock()
	if err := p.store.RemoveJob(id); err != nil {
		p.logger.Warn("Failed to remove job", "job_id", id.String(), "error", err)
	}
}
