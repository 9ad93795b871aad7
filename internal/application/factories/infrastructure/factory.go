package infrastructure

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	pgxpool "github.com/jackc/pgx/v5/pgxpool"
	go_redis "github.com/redis/go-redis/v9"

	"github.com/Aduraleke/firstclasstransfers-sub001/internal/config"
	"github.com/Aduraleke/firstclasstransfers-sub001/internal/domain/booking"
	"github.com/Aduraleke/firstclasstransfers-sub001/internal/domain/inbox"
	"github.com/Aduraleke/firstclasstransfers-sub001/internal/domain/outbox"
	"github.com/Aduraleke/firstclasstransfers-sub001/internal/infrastructure/kafka"
	"github.com/Aduraleke/firstclasstransfers-sub001/internal/infrastructure/memory"
	"github.com/Aduraleke/firstclasstransfers-sub001/internal/infrastructure/postgres"
	"github.com/Aduraleke/firstclasstransfers-sub001/internal/infrastructure/redis"
	"github.com/Aduraleke/firstclasstransfers-sub001/internal/ratelimit"
	"github.com/Aduraleke/firstclasstransfers-sub001/internal/usecase"
)

const connectAttempts = 5

type OutboxStore interface {
	outbox.Repository
	usecase.OutboxReader
}

// Stores is the persistence a process runs on, backed either by Postgres or
// by process memory.
type Stores struct {
	Orders booking.Repository
	Outbox OutboxStore
	Inbox  inbox.Repository
	Tx     usecase.Transactor
}

type Factory struct {
	cfg      *config.Config
	pgPool   *pgxpool.Pool
	redisCli *go_redis.Client
	producer *kafka.Producer
	consumer *kafka.Consumer
}

func NewFactory(cfg *config.Config) *Factory {
	return &Factory{
		cfg: cfg,
	}
}

func (f *Factory) postgresConfig() postgres.Config {
	return postgres.Config{
		Host:     f.cfg.Postgres.Host,
		Port:     f.cfg.Postgres.Port,
		User:     f.cfg.Postgres.User,
		Password: f.cfg.Postgres.Password,
		DBName:   f.cfg.Postgres.DBName,
		SSLMode:  f.cfg.Postgres.SSLMode,
	}
}

// Postgres connects with retries and applies pending migrations once.
func (f *Factory) Postgres(ctx context.Context) (*pgxpool.Pool, error) {
	if f.pgPool != nil {
		return f.pgPool, nil
	}

	var pool *pgxpool.Pool
	var err error

	for i := 0; i < connectAttempts; i++ {
		pool, err = postgres.NewClient(ctx, f.postgresConfig())
		if err == nil {
			break
		}
		slog.WarnContext(ctx, "failed to connect to postgres, retrying",
			"attempt", i+1, "max", connectAttempts, "error", err)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(2 * time.Second):
		}
	}

	if err != nil {
		return nil, fmt.Errorf("failed to init postgres after retries: %w", err)
	}

	if err := postgres.Migrate(f.postgresConfig()); err != nil {
		pool.Close()
		return nil, err
	}

	f.pgPool = pool
	return pool, nil
}

func (f *Factory) Redis(ctx context.Context) (*go_redis.Client, error) {
	if f.redisCli != nil {
		return f.redisCli, nil
	}

	client, err := redis.NewClient(ctx, redis.Config{
		Addr:     f.cfg.Redis.Addr,
		Password: f.cfg.Redis.Password,
		DB:       f.cfg.Redis.DB,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to init redis: %w", err)
	}

	f.redisCli = client
	return client, nil
}

// OrderCache returns nil when Redis is disabled or unreachable; reads then
// go straight to the store.
func (f *Factory) OrderCache(ctx context.Context) usecase.OrderCache {
	if !f.cfg.Redis.Enabled {
		return nil
	}
	client, err := f.Redis(ctx)
	if err != nil {
		slog.WarnContext(ctx, "order cache disabled", "error", err)
		return nil
	}
	return redis.NewOrderCache(client, f.cfg.Redis.CacheTTL)
}

func (f *Factory) Stores(ctx context.Context) (*Stores, error) {
	if f.cfg.Store.Driver == config.StoreMemory {
		slog.WarnContext(ctx, "using in-memory store; bookings are lost on restart")
		return &Stores{
			Orders: memory.NewOrderStore(),
			Outbox: memory.NewOutboxStore(),
			Inbox:  memory.NewInboxStore(),
			Tx:     memory.Transactor{},
		}, nil
	}

	pool, err := f.Postgres(ctx)
	if err != nil {
		return nil, err
	}
	return &Stores{
		Orders: postgres.NewOrderRepository(pool),
		Outbox: postgres.NewOutboxRepository(pool),
		Inbox:  postgres.NewInboxRepository(pool),
		Tx:     postgres.NewTxManager(pool),
	}, nil
}

func (f *Factory) RateLimiter(ctx context.Context) (ratelimit.Limiter, error) {
	if f.cfg.RateLimit.Backend == config.RateLimitRedis {
		client, err := f.Redis(ctx)
		if err != nil {
			return nil, err
		}
		return ratelimit.NewRedisWindow(client, f.cfg.RateLimit.Max, f.cfg.RateLimit.Window), nil
	}
	return ratelimit.NewWindow(f.cfg.RateLimit.Max, f.cfg.RateLimit.Window), nil
}

func (f *Factory) KafkaProducer() *kafka.Producer {
	if f.producer == nil {
		f.producer = kafka.NewProducer(kafka.Config{
			Brokers: f.cfg.Kafka.Brokers,
			Topic:   f.cfg.Kafka.Topic,
		})
	}
	return f.producer
}

func (f *Factory) KafkaConsumer() *kafka.Consumer {
	if f.consumer == nil {
		f.consumer = kafka.NewConsumer(kafka.ConsumerConfig{
			Brokers:     f.cfg.Kafka.Brokers,
			Topic:       f.cfg.Kafka.Topic,
			GroupID:     f.cfg.Kafka.GroupID,
			StartOffset: f.cfg.Kafka.StartOffset,
		})
	}
	return f.consumer
}

func (f *Factory) Close() {
	if f.producer != nil {
		if err := f.producer.Close(); err != nil {
			slog.Error("failed to close kafka producer", "error", err)
		}
	}
	if f.consumer != nil {
		if err := f.consumer.Close(); err != nil {
			slog.Error("failed to close kafka consumer", "error", err)
		}
	}
	if f.pgPool != nil {
		f.pgPool.Close()
	}
	if f.redisCli != nil {
		f.redisCli.Close()
	}
}
