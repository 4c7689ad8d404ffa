package main

import (
	"cmp"
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"slices"
	"strings"
	"syscall"
	"time"

	"github.com/nemanja-m/gomar/examples/wordcount"
	"github.com/nemanja-m/gomar/internal/producer/api/rest"
	"github.com/nemanja-m/gomar/internal/producer/service"
	"github.com/nemanja-m/gomar/internal/producer/storage"
	"github.com/nemanja-m/gomar/internal/queue/grpc"
	"github.com/nemanja-m/gomar/internal/shared/config"
	"github.com/nemanja-m/gomar/internal/shared/logging"
	"github.com/nemanja-m/gomar/pkg/core"
	"github.com/nemanja-m/gomar/pkg/datasource"
	"github.com/nemanja-m/gomar/pkg/jobs"
)

func main() {
	var (
		configPath = flag.String("config", "", "path to config file")
		queueAddr  = flag.String("q", "", "broker address")
		workers    = flag.Int("w", 0, "number of shards to split the input into")
		input      = flag.String("input", "", "comma-separated input glob patterns")
		apiAddr    = flag.String("api", "", "address of the job status API (disabled when empty)")
	)
	flag.Parse()

	cfg, err := config.LoadProducer(*configPath)
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}
	if *queueAddr != "" {
		cfg.Queue.Addr = *queueAddr
	}
	if *workers > 0 {
		cfg.Job.Workers = *workers
	}
	if *apiAddr != "" {
		cfg.API.Addr = *apiAddr
	}

	logger := logging.New(cfg.Logging.Level, cfg.Logging.Format)

	if *input == "" {
		logger.Fatal("Input pattern must be specified using the -input flag")
	}

	factory, err := datasource.NewFactory(datasource.FilesSource, datasource.FilesOptions{
		Paths: strings.Split(*input, ","),
	})
	if err != nil {
		logger.Fatal("Failed to create data source", "error", err)
	}

	client, err := grpc.NewClient(cfg.Queue)
	if err != nil {
		logger.Fatal("Failed to create broker client", "error", err)
	}
	defer client.Close()

	job, err := jobs.Get(wordcount.Name)
	if err != nil {
		logger.Fatal("Job is not registered", "job", wordcount.Name, "error", err)
	}

	producer, err := service.NewProducer(service.Config{
		Name:           wordcount.Name,
		Workers:        cfg.Job.Workers,
		MaxRetries:     cfg.Job.MaxRetries,
		ResultTimeout:  cfg.Job.ResultTimeout,
		PublishTimeout: cfg.Job.PublishTimeout,
	}, job, client, storage.NewInMemoryJobStore(), logger)
	if err != nil {
		logger.Fatal("Failed to create producer", "error", err)
	}

	if cfg.API.Addr != "" {
		server := rest.NewServer(cfg.API, producer, logger)
		go func() {
			logger.Info("Starting job status API", "addr", cfg.API.Addr)
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Fatal("API server error", "error", err)
			}
		}()
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			server.Shutdown(ctx)
		}()
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("Starting job", "job", wordcount.Name, "input", *input, "workers", cfg.Job.Workers, "queue", cfg.Queue.Addr)

	out, err := producer.Map(ctx, factory)
	if err != nil {
		logger.Error("Job failed", "error", err)
		os.Exit(1)
	}

	counts, err := core.DecodeJSON[map[string]int](out)
	if err != nil {
		logger.Fatal("Failed to decode result", "error", err)
	}
	printCounts(counts)
}

// printCounts writes word counts as TSV, most frequent first.
func printCounts(counts map[string]int) {
	words := make([]string, 0, len(counts))
	for word := range counts {
		words = append(words, word)
	}
	slices.SortFunc(words, func(a, b string) int {
		if c := cmp.Compare(counts[b], counts[a]); c != 0 {
			return c
		}
		return cmp.Compare(a, b)
	})
	for _, word := range words {
		fmt.Printf("%s\t%d\n", word, counts[word])
	}
}
