package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

const minTokenSecretLen = 32

type Config struct {
	App        App        `yaml:"app"`
	HTTP       HTTP       `yaml:"http"`
	Log        Log        `yaml:"log"`
	OTEL       OTEL       `yaml:"otel"`
	Token      Token      `yaml:"token"`
	Store      Store      `yaml:"store"`
	Postgres   Postgres   `yaml:"postgres"`
	Redis      Redis      `yaml:"redis"`
	Kafka      Kafka      `yaml:"kafka"`
	RateLimit  RateLimit  `yaml:"rate_limit"`
	Catalog    Catalog    `yaml:"catalog"`
	Payments   Payments   `yaml:"payments"`
	HostedForm HostedForm `yaml:"hostedform"`
	OrderAPI   OrderAPI   `yaml:"orderapi"`
}

type App struct {
	Name    string `yaml:"name" env:"APP_NAME" env-default:"booking-api"`
	Version string `yaml:"version" env:"APP_VERSION" env-default:"1.0.0"`
}

type HTTP struct {
	Port            string        `yaml:"port" env:"HTTP_PORT" env-default:"8080"`
	MetricsPort     string        `yaml:"metrics_port" env:"METRICS_PORT" env-default:"9091"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"HTTP_SHUTDOWN_TIMEOUT" env-default:"10s"`
}

type Log struct {
	Level string `yaml:"level" env:"LOG_LEVEL" env-default:"info"`
}

type OTEL struct {
	Enabled bool `yaml:"enabled" env:"OTEL_ENABLED" env-default:"false"`
}

type Token struct {
	Secret string        `yaml:"secret" env:"ORDER_TOKEN_SECRET"`
	MaxAge time.Duration `yaml:"max_age" env:"ORDER_TOKEN_MAX_AGE" env-default:"0s"`
}

const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
)

type Store struct {
	Driver string `yaml:"driver" env:"STORE_DRIVER" env-default:"postgres"`
}

type Postgres struct {
	Host     string `yaml:"host" env:"POSTGRES_HOST" env-default:"localhost"`
	Port     string `yaml:"port" env:"POSTGRES_PORT" env-default:"5432"`
	User     string `yaml:"user" env:"POSTGRES_USER" env-default:"user"`
	Password string `yaml:"password" env:"POSTGRES_PASSWORD" env-default:"password"`
	DBName   string `yaml:"dbname" env:"POSTGRES_DB" env-default:"bookings"`
	SSLMode  string `yaml:"sslmode" env:"POSTGRES_SSLMODE" env-default:"disable"`
}

type Redis struct {
	Enabled  bool          `yaml:"enabled" env:"REDIS_ENABLED" env-default:"true"`
	Addr     string        `yaml:"addr" env:"REDIS_ADDR" env-default:"localhost:6379"`
	Password string        `yaml:"password" env:"REDIS_PASSWORD"`
	DB       int           `yaml:"db" env:"REDIS_DB" env-default:"0"`
	CacheTTL time.Duration `yaml:"cache_ttl" env:"REDIS_CACHE_TTL" env-default:"5s"`
}

type Kafka struct {
	Brokers     []string `yaml:"brokers" env:"KAFKA_BROKERS" env-default:"localhost:9092"`
	Topic       string   `yaml:"topic" env:"KAFKA_TOPIC" env-default:"booking-events"`
	GroupID     string   `yaml:"group_id" env:"KAFKA_GROUP_ID" env-default:"booking-notifier"`
	StartOffset string   `yaml:"start_offset" env:"KAFKA_START_OFFSET" env-default:"earliest"`
}

const (
	RateLimitMemory = "memory"
	RateLimitRedis  = "redis"
)

type RateLimit struct {
	Backend string        `yaml:"backend" env:"RATE_LIMIT_BACKEND" env-default:"memory"`
	Max     int           `yaml:"max" env:"RATE_LIMIT_MAX" env-default:"6"`
	Window  time.Duration `yaml:"window" env:"RATE_LIMIT_WINDOW" env-default:"60s"`
}

type Catalog struct {
	// Path to a YAML price table; the built-in table is used when empty.
	Path string `yaml:"path" env:"CATALOG_PATH"`
}

type Payments struct {
	Environment string `yaml:"environment" env:"PAYMENTS_ENVIRONMENT" env-default:"sandbox"`
	Currency    string `yaml:"currency" env:"PAYMENTS_CURRENCY" env-default:"EUR"`
	SuccessURL  string `yaml:"success_url" env:"PAYMENTS_SUCCESS_URL"`
	CancelURL   string `yaml:"cancel_url" env:"PAYMENTS_CANCEL_URL"`
	NotifyURL   string `yaml:"notify_url" env:"PAYMENTS_NOTIFY_URL"`
}

type HostedForm struct {
	MerchantID       string `yaml:"merchant_id" env:"HOSTEDFORM_MERCHANT_ID"`
	WalletID         string `yaml:"wallet_id" env:"HOSTEDFORM_WALLET_ID"`
	KeyIndex         string `yaml:"key_index" env:"HOSTEDFORM_KEY_INDEX" env-default:"1"`
	PrivateKeyPath   string `yaml:"private_key_path" env:"HOSTEDFORM_PRIVATE_KEY_PATH"`
	ProviderCertPath string `yaml:"provider_cert_path" env:"HOSTEDFORM_PROVIDER_CERT_PATH"`
	SandboxURL       string `yaml:"sandbox_url" env:"HOSTEDFORM_SANDBOX_URL"`
	ProductionURL    string `yaml:"production_url" env:"HOSTEDFORM_PRODUCTION_URL"`
}

// Enabled reports whether the hosted form provider is configured at all.
func (h HostedForm) Enabled() bool {
	return h.MerchantID != ""
}

type OrderAPI struct {
	SecretKey     string        `yaml:"secret_key" env:"ORDERAPI_SECRET_KEY"`
	WebhookSecret string        `yaml:"webhook_secret" env:"ORDERAPI_WEBHOOK_SECRET"`
	APIVersion    string        `yaml:"api_version" env:"ORDERAPI_API_VERSION" env-default:"2024-09-01"`
	SandboxURL    string        `yaml:"sandbox_url" env:"ORDERAPI_SANDBOX_URL"`
	ProductionURL string        `yaml:"production_url" env:"ORDERAPI_PRODUCTION_URL"`
	Timeout       time.Duration `yaml:"timeout" env:"ORDERAPI_TIMEOUT" env-default:"10s"`
}

func (o OrderAPI) Enabled() bool {
	return o.SecretKey != ""
}

// New reads config.yaml (or $CONFIG_PATH) and lets environment variables
// override it. Without a file, the environment alone is used.
func New() (*Config, error) {
	cfg := &Config{}

	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = "config.yaml"
	}

	if err := cleanenv.ReadConfig(path, cfg); err != nil {
		// fallback to env vars if file not found
		if err := cleanenv.ReadEnv(cfg); err != nil {
			return nil, fmt.Errorf("config error: %w", err)
		}
	}

	return cfg, nil
}

// Validate rejects configurations the service must not start with.
func (c *Config) Validate() error {
	var errs []error

	if len(c.Token.Secret) < minTokenSecretLen {
		errs = append(errs, fmt.Errorf("ORDER_TOKEN_SECRET must be at least %d bytes", minTokenSecretLen))
	}
	if c.Token.MaxAge < 0 {
		errs = append(errs, errors.New("ORDER_TOKEN_MAX_AGE must not be negative"))
	}

	switch c.Store.Driver {
	case StoreMemory, StorePostgres:
	default:
		errs = append(errs, fmt.Errorf("STORE_DRIVER %q is not one of memory, postgres", c.Store.Driver))
	}

	switch c.RateLimit.Backend {
	case RateLimitMemory:
	case RateLimitRedis:
		if !c.Redis.Enabled {
			errs = append(errs, errors.New("RATE_LIMIT_BACKEND=redis requires REDIS_ENABLED"))
		}
	default:
		errs = append(errs, fmt.Errorf("RATE_LIMIT_BACKEND %q is not one of memory, redis", c.RateLimit.Backend))
	}
	if c.RateLimit.Max <= 0 || c.RateLimit.Window <= 0 {
		errs = append(errs, errors.New("RATE_LIMIT_MAX and RATE_LIMIT_WINDOW must be positive"))
	}

	switch c.Payments.Environment {
	case "sandbox", "production":
	default:
		errs = append(errs, fmt.Errorf("PAYMENTS_ENVIRONMENT %q is not one of sandbox, production", c.Payments.Environment))
	}
	if len(c.Payments.Currency) != 3 {
		errs = append(errs, fmt.Errorf("PAYMENTS_CURRENCY %q is not a three letter code", c.Payments.Currency))
	}

	if c.HostedForm.Enabled() {
		if c.HostedForm.PrivateKeyPath == "" || c.HostedForm.ProviderCertPath == "" {
			errs = append(errs, errors.New("hosted form needs HOSTEDFORM_PRIVATE_KEY_PATH and HOSTEDFORM_PROVIDER_CERT_PATH"))
		}
		if c.Payments.NotifyURL == "" {
			errs = append(errs, errors.New("hosted form needs PAYMENTS_NOTIFY_URL"))
		}
	}
	if c.OrderAPI.Enabled() && c.OrderAPI.WebhookSecret == "" {
		errs = append(errs, errors.New("order API needs ORDERAPI_WEBHOOK_SECRET"))
	}

	return errors.Join(errs...)
}
