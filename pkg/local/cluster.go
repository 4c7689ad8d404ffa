// Package local runs a broker, a set of worker loops and a producer inside
// one process. It drives the same code paths as a distributed deployment
// and is meant for examples, tests and small inputs.
package local

import (
	"context"
	"fmt"
	"time"

	"github.com/nemanja-m/gomar/internal/producer/service"
	"github.com/nemanja-m/gomar/internal/producer/storage"
	"github.com/nemanja-m/gomar/internal/queue"
	"github.com/nemanja-m/gomar/internal/shared/logging"
	workerservice "github.com/nemanja-m/gomar/internal/worker/service"
	"github.com/nemanja-m/gomar/pkg/core"
	"github.com/nemanja-m/gomar/pkg/datasource"
	"github.com/nemanja-m/gomar/pkg/jobs"
)

const (
	DefaultLeaseTimeout = 30 * time.Second
	reapInterval        = time.Second
)

type Config struct {
	// Job is the registered job to run.
	Job string
	// Workers is both the number of worker loops and the shard count.
	Workers       int
	MaxRetries    int
	ResultTimeout time.Duration
	LeaseTimeout  time.Duration
}

type Cluster struct {
	cfg      Config
	broker   *queue.MemoryBroker
	pool     *Pool
	producer *service.Producer
	logger   logging.Logger
	cancel   context.CancelFunc
}

func NewCluster(cfg Config, logger logging.Logger) (*Cluster, error) {
	job, err := jobs.Get(cfg.Job)
	if err != nil {
		return nil, &core.ConfigurationError{Component: "local", Reason: fmt.Sprintf("unknown job %q, available: %v", cfg.Job, jobs.List()), Err: err}
	}
	if cfg.LeaseTimeout <= 0 {
		cfg.LeaseTimeout = DefaultLeaseTimeout
	}

	broker := queue.NewMemoryBroker(cfg.LeaseTimeout, logger)
	producer, err := service.NewProducer(service.Config{
		Name:          cfg.Job,
		Workers:       cfg.Workers,
		MaxRetries:    cfg.MaxRetries,
		ResultTimeout: cfg.ResultTimeout,
	}, job, broker, storage.NewInMemoryJobStore(), logger)
	if err != nil {
		return nil, err
	}

	return &Cluster{
		cfg:      cfg,
		broker:   broker,
		pool:     NewPool(cfg.Workers),
		producer: producer,
		logger:   logger,
	}, nil
}

// Start launches the lease reaper and the worker loops.
func (c *Cluster) Start(ctx context.Context) {
	ctx, c.cancel = context.WithCancel(ctx)
	go c.broker.Run(ctx, reapInterval)

	c.pool.Start(ctx)
	for i := range c.cfg.Workers {
		worker := workerservice.NewWorkerService(
			c.broker,
			workerservice.NewMapExecutor(),
			c.cfg.Job,
			c.cfg.LeaseTimeout/3,
			logging.With(c.logger, "worker", i),
		)
		c.pool.Submit(func(ctx context.Context) {
			if err := worker.Run(ctx); err != nil {
				c.logger.Error("Worker stopped with error", "worker", i, "error", err)
			}
		})
	}

	c.logger.Info("Local cluster started", "job", c.cfg.Job, "workers", c.cfg.Workers)
}

// Map runs one job over factory's source on the cluster.
func (c *Cluster) Map(ctx context.Context, factory *datasource.Factory) ([]byte, error) {
	return c.producer.Map(ctx, factory)
}

func (c *Cluster) Producer() *service.Producer {
	return c.producer
}

// Close stops the workers and the broker.
func (c *Cluster) Close() error {
	if c.cancel != nil {
		c.cancel()
		c.pool.Close()
	}
	return c.broker.Close()
}
