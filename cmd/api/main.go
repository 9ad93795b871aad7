package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	go_redis "github.com/redis/go-redis/v9"

	"github.com/Aduraleke/firstclasstransfers-sub001/internal/api"
	"github.com/Aduraleke/firstclasstransfers-sub001/internal/api/middleware"
	"github.com/Aduraleke/firstclasstransfers-sub001/internal/application/factories/infrastructure"
	"github.com/Aduraleke/firstclasstransfers-sub001/internal/config"
	"github.com/Aduraleke/firstclasstransfers-sub001/internal/observability"
	"github.com/Aduraleke/firstclasstransfers-sub001/internal/usecase"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.New()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(os.Stdout, observability.ParseLevel(cfg.Log.Level), cfg.OTEL.Enabled)
	slog.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid config", "error", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if cfg.OTEL.Enabled {
		shutdown, err := observability.SetupOpenTelemetry(ctx, cfg.App.Name)
		if err != nil {
			logger.Error("failed to set up opentelemetry", "error", err)
			os.Exit(1)
		}
		defer func() {
			if err := shutdown(context.Background()); err != nil {
				logger.Error("opentelemetry shutdown", "error", err)
			}
		}()
	}

	infraFactory := infrastructure.NewFactory(cfg)
	defer infraFactory.Close()

	stores, err := infraFactory.Stores(ctx)
	if err != nil {
		logger.Error("failed to open stores", "error", err)
		os.Exit(1)
	}
	limiter, err := infraFactory.RateLimiter(ctx)
	if err != nil {
		logger.Error("failed to build rate limiter", "error", err)
		os.Exit(1)
	}
	engine, err := infraFactory.PricingEngine()
	if err != nil {
		logger.Error("failed to load price catalog", "error", err)
		os.Exit(1)
	}
	payments, err := infraFactory.Payments()
	if err != nil {
		logger.Error("failed to configure payment providers", "error", err)
		os.Exit(1)
	}
	codec := infraFactory.TokenCodec()
	cache := infraFactory.OrderCache(ctx)

	// UseCases
	issueOrderUC := usecase.NewIssueOrder(stores.Tx, stores.Orders, stores.Outbox, engine, codec, payments.Registry)
	getOrderUC := usecase.NewGetOrder(cache, stores.Orders)
	getTrailUC := usecase.NewGetTrail(stores.Orders, stores.Outbox, stores.Inbox)
	settleOrderUC := usecase.NewSettleOrder(stores.Tx, stores.Orders, stores.Outbox, cache, codec)

	handlers := api.NewHandlers(issueOrderUC, getOrderUC, getTrailUC, settleOrderUC)
	if payments.NotifyVerifier != nil {
		handlers.WithHostedForm(payments.NotifyVerifier)
	}
	if payments.OrderAPI != nil {
		handlers.WithOrderAPI(payments.WebhookVerifier, payments.OrderAPI)
	}

	// Idempotency keys need Redis; without it the route is served as is.
	var idempotencyStore go_redis.Cmdable
	if cfg.Redis.Enabled {
		if client, err := infraFactory.Redis(ctx); err == nil {
			idempotencyStore = client
		} else {
			logger.Warn("idempotency keys disabled", "error", err)
		}
	}

	// An order intake can make two provider calls (create + token), each
	// bounded by the client timeout.
	lockTTL := 2*cfg.OrderAPI.Timeout + 10*time.Second

	srv := &http.Server{
		Addr:    ":" + cfg.HTTP.Port,
		Handler: api.NewRouter(handlers, limiter, idempotencyStore, middleware.WithLockTTL(lockTTL)),
	}

	go func() {
		logger.Info("server starting", "port", cfg.HTTP.Port, "store", cfg.Store.Driver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("listen failed", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
	}

	logger.Info("server exited")
}
