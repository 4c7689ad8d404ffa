package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"os/signal"
	"slices"
	"sync"
	"syscall"

	"github.com/nemanja-m/gomar/internal/queue/grpc"
	"github.com/nemanja-m/gomar/internal/shared/config"
	"github.com/nemanja-m/gomar/internal/shared/logging"
	"github.com/nemanja-m/gomar/internal/worker/service"
	"github.com/nemanja-m/gomar/pkg/datasource"
	"github.com/nemanja-m/gomar/pkg/jobs"

	_ "github.com/nemanja-m/gomar/examples/grep"
	_ "github.com/nemanja-m/gomar/examples/wordcount"
)

func main() {
	var (
		configPath = flag.String("config", "", "path to config file")
		producer   = flag.String("p", "", "producer (job) name to serve")
		queueAddr  = flag.String("q", "", "broker address")
		processes  = flag.Int("w", 0, "number of worker processes to launch")
		// Tasks name their own source, so -s only checks the driver is linked in.
		source     = flag.String("s", "", "data source the producer reads (optional)")
	)
	flag.Parse()

	cfg, err := config.LoadWorker(*configPath)
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}
	if *producer != "" {
		cfg.Producer = *producer
	}
	if *queueAddr != "" {
		cfg.Queue.Addr = *queueAddr
	}
	if *processes > 0 {
		cfg.Processes = *processes
	}

	logger := logging.New(cfg.Logging.Level, cfg.Logging.Format)

	if cfg.Producer == "" {
		logger.Fatal("Producer name must be set with -p or the producer config key", "available", jobs.List())
	}
	if err := checkSource(*source); err != nil {
		logger.Fatal("Unsupported data source", "error", err, "available", datasource.List())
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Processes > 1 {
		if err := supervise(ctx, cfg, logger); err != nil {
			logger.Fatal("Worker processes failed", "error", err)
		}
		return
	}

	client, err := grpc.NewClient(cfg.Queue)
	if err != nil {
		logger.Fatal("Failed to create broker client", "error", err)
	}
	defer client.Close()

	logger = logging.With(logger, "pid", os.Getpid(), "producer", cfg.Producer)
	worker := service.NewWorkerService(client, service.NewMapExecutor(), cfg.Producer, cfg.LeaseRenewInterval, logger)
	if err := worker.Run(ctx); err != nil {
		logger.Error("Worker stopped", "error", err)
		os.Exit(1)
	}
	logger.Info("Shutting down worker")
}

// checkSource reports whether this binary can open shards of source. An
// empty name is accepted.
func checkSource(source string) error {
	if source == "" || slices.Contains(datasource.List(), source) {
		return nil
	}
	return fmt.Errorf("no driver registered for data source %q", source)
}

// supervise re-executes this binary once per worker process, each child
// running a single worker loop, and waits for all of them to exit.
func supervise(ctx context.Context, cfg *config.WorkerConfig, logger logging.Logger) error {
	self, err := os.Executable()
	if err != nil {
		return fmt.Errorf("failed to locate worker binary: %w", err)
	}

	args := append([]string{}, os.Args[1:]...)
	args = append(args, "-w", "1", "-p", cfg.Producer, "-q", cfg.Queue.Addr)

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)
	for i := range cfg.Processes {
		cmd := exec.CommandContext(ctx, self, args...)
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr
		cmd.Cancel = func() error {
			return cmd.Process.Signal(syscall.SIGTERM)
		}
		if err := cmd.Start(); err != nil {
			return fmt.Errorf("failed to start worker process %d: %w", i, err)
		}
		logger.Info("Worker process started", "index", i, "pid", cmd.Process.Pid)

		wg.Go(func() {
			if err := cmd.Wait(); err != nil && ctx.Err() == nil {
				mu.Lock()
				errs = append(errs, fmt.Errorf("worker process %d: %w", i, err))
				mu.Unlock()
			}
		})
	}

	wg.Wait()
	return errors.Join(errs...)
}
