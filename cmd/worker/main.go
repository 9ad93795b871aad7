package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/Aduraleke/firstclasstransfers-sub001/internal/application/factories/infrastructure"
	"github.com/Aduraleke/firstclasstransfers-sub001/internal/config"
	"github.com/Aduraleke/firstclasstransfers-sub001/internal/observability"
	"github.com/Aduraleke/firstclasstransfers-sub001/internal/worker"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.New()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(os.Stdout, observability.ParseLevel(cfg.Log.Level), false)
	slog.SetDefault(logger)

	if cfg.Store.Driver != config.StorePostgres {
		logger.Error("outbox worker needs STORE_DRIVER=postgres", "driver", cfg.Store.Driver)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	infraFactory := infrastructure.NewFactory(cfg)
	defer infraFactory.Close()

	stores, err := infraFactory.Stores(ctx)
	if err != nil {
		logger.Error("failed to connect to postgres", "error", err)
		os.Exit(1)
	}

	observability.ServeMetrics(ctx, cfg.HTTP.MetricsPort)

	w := worker.NewOutboxPoller(stores.Outbox, infraFactory.KafkaProducer())

	logger.Info("outbox worker starting", "topic", cfg.Kafka.Topic, "brokers", cfg.Kafka.Brokers)
	if err := w.Run(ctx); err != nil {
		logger.Error("worker stopped with error", "error", err)
	}

	logger.Info("worker exited")
}
