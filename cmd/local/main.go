package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/nemanja-m/gomar/internal/shared/logging"
	"github.com/nemanja-m/gomar/pkg/datasource"
	"github.com/nemanja-m/gomar/pkg/jobs"
	"github.com/nemanja-m/gomar/pkg/local"

	_ "github.com/nemanja-m/gomar/examples/grep"
	_ "github.com/nemanja-m/gomar/examples/wordcount"
)

func main() {
	var (
		input    = flag.String("input", "", "comma-separated input glob patterns")
		jobName  = flag.String("job", "", "job to run (e.g., wordcount, grep)")
		workers  = flag.Int("workers", 4, "number of worker loops and shards")
		retries  = flag.Int("retries", 3, "retries per failed shard")
		timeout  = flag.Duration("timeout", 5*time.Minute, "time to wait for all shard results")
		logLevel = flag.String("log-level", "info", "log level")
	)
	flag.Parse()

	logger := logging.New(*logLevel, "text")

	if *input == "" {
		logger.Fatal("Input pattern must be specified using the -input flag")
	}

	cluster, err := local.NewCluster(local.Config{
		Job:           *jobName,
		Workers:       *workers,
		MaxRetries:    *retries,
		ResultTimeout: *timeout,
	}, logger)
	if err != nil {
		logger.Fatal("Failed to create local cluster", "error", err, "available", jobs.List())
	}

	factory, err := datasource.NewFactory(datasource.FilesSource, datasource.FilesOptions{
		Paths: strings.Split(*input, ","),
	})
	if err != nil {
		logger.Fatal("Failed to create data source", "error", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cluster.Start(ctx)
	defer cluster.Close()

	logger.Info("Starting job", "job", *jobName, "input", *input, "workers", *workers)

	out, err := cluster.Map(ctx, factory)
	if err != nil {
		logger.Error("Job failed", "error", err)
		cluster.Close()
		os.Exit(1)
	}

	os.Stdout.Write(out)
	os.Stdout.WriteString("\n")
	logger.Info("Job completed successfully")
}
