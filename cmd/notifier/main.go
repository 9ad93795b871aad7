package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/Aduraleke/firstclasstransfers-sub001/internal/application/factories/infrastructure"
	"github.com/Aduraleke/firstclasstransfers-sub001/internal/config"
	"github.com/Aduraleke/firstclasstransfers-sub001/internal/notifier"
	"github.com/Aduraleke/firstclasstransfers-sub001/internal/observability"
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
		logger.Error("notifier needs STORE_DRIVER=postgres", "driver", cfg.Store.Driver)
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

	n := notifier.New(stores.Tx, stores.Inbox, notifier.LogMailer{})

	logger.Info("notifier starting", "topic", cfg.Kafka.Topic, "group", cfg.Kafka.GroupID)
	if err := n.Run(ctx, infraFactory.KafkaConsumer()); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("notifier stopped with error", "error", err)
	}

	logger.Info("notifier exited")
}
