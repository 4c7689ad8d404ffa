package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/nemanja-m/gomar/internal/queue"
	"github.com/nemanja-m/gomar/internal/queue/grpc"
	"github.com/nemanja-m/gomar/internal/shared/config"
	"github.com/nemanja-m/gomar/internal/shared/logging"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	cfg, err := config.LoadBroker(*configPath)
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.Logging.Level, cfg.Logging.Format)

	broker := queue.NewMemoryBroker(cfg.Queue.LeaseTimeout, logger)
	broker.SetMarkerTTL(cfg.Queue.MarkerTTL)
	defer broker.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go broker.Run(ctx, cfg.Queue.ReapInterval)

	server := grpc.NewServer(cfg.GRPC, broker, logger)
	go func() {
		if err := server.Start(); err != nil {
			logger.Fatal("gRPC server error", "error", err)
		}
	}()

	logger.Info("Broker started",
		"addr", cfg.GRPC.Addr,
		"lease_timeout", cfg.Queue.LeaseTimeout.String(),
		"reap_interval", cfg.Queue.ReapInterval.String(),
		"marker_ttl", cfg.Queue.MarkerTTL.String(),
	)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down broker")
	cancel()
	broker.Close()
	server.Stop()
	logger.Info("Broker stopped")
}
