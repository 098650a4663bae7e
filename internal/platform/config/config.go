package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

const (
	StorageMemory   = "memory"
	StoragePostgres = "postgres"
)

// Config is centralized process configuration.
// Keep infra values here and pass typed config into builders.
type Config struct {
	ServiceName   string   `env:"SERVICE_NAME" envDefault:"ygbackend"`
	Environment   string   `env:"APP_ENV" envDefault:"development"`
	HTTPPort      string   `env:"HTTP_PORT" envDefault:"8080"`
	AppBaseURL    string   `env:"APP_BASE_URL" envDefault:"http://localhost:3000"`
	LogLevel      string   `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat     string   `env:"LOG_FORMAT" envDefault:"text"`
	StorageDriver string   `env:"STORAGE_DRIVER" envDefault:"memory"`
	PostgresDSN   string   `env:"POSTGRES_DSN"`
	AutoMigrate   bool     `env:"AUTO_MIGRATE" envDefault:"false"`
	KafkaBrokers  []string `env:"KAFKA_BROKERS" envSeparator:"," envDefault:"localhost:9092"`

	JWTSecret string `env:"JWT_SECRET"`
	JWTIssuer string `env:"JWT_ISSUER" envDefault:"ygbackend"`

	CORSAllowedOrigins []string      `env:"CORS_ALLOWED_ORIGINS" envSeparator:"," envDefault:"*"`
	RateLimitRequests  int           `env:"RATE_LIMIT_REQUESTS" envDefault:"120"`
	RateLimitWindow    time.Duration `env:"RATE_LIMIT_WINDOW" envDefault:"1m"`

	Stripe StripeConfig `envPrefix:"STRIPE_"`
	SMTP   SMTPConfig   `envPrefix:"SMTP_"`
	Media  MediaConfig  `envPrefix:"MEDIA_"`

	PlatformFeeBps      int           `env:"PLATFORM_FEE_BPS" envDefault:"1000"`
	MinPayoutCents      int64         `env:"MIN_PAYOUT_CENTS" envDefault:"1000"`
	LicenseExpiryNotice time.Duration `env:"LICENSE_EXPIRY_NOTICE" envDefault:"168h"`
	MessageRateLimit    int           `env:"MESSAGE_RATE_LIMIT" envDefault:"30"`
	AdminUserIDs        []string      `env:"ADMIN_USER_IDS" envSeparator:","`

	JobPolicyFile  string        `env:"JOB_POLICY_FILE"`
	JobHistoryDB   string        `env:"JOB_HISTORY_DB" envDefault:"file:job_history.db"`
	WorkerPoll     time.Duration `env:"WORKER_POLL_INTERVAL" envDefault:"2s"`
	WorkerID       string        `env:"WORKER_ID"`
	IdempotencyTTL time.Duration `env:"IDEMPOTENCY_TTL" envDefault:"168h"`

	OTELEndpoint string `env:"OTEL_ENDPOINT"`
	OTELEnabled  bool   `env:"OTEL_ENABLED" envDefault:"true"`
	SentryDSN    string `env:"SENTRY_DSN"`

	EnableEmailDelivery   bool `env:"ENABLE_EMAIL_DELIVERY" envDefault:"true"`
	EnablePayoutProcessor bool `env:"ENABLE_PAYOUT_PROCESSOR" envDefault:"true"`
	EnablePolicyWatch     bool `env:"ENABLE_JOB_POLICY_WATCH" envDefault:"true"`
	EnableLicenseSweeps   bool `env:"ENABLE_LICENSE_SWEEPS" envDefault:"true"`
}

type StripeConfig struct {
	SecretKey     string `env:"SECRET_KEY"`
	WebhookSecret string `env:"WEBHOOK_SECRET"`
	ReturnURL     string `env:"CONNECT_RETURN_URL" envDefault:"http://localhost:3000/payouts/onboarding/complete"`
	RefreshURL    string `env:"CONNECT_REFRESH_URL" envDefault:"http://localhost:3000/payouts/onboarding/refresh"`
	Country       string `env:"CONNECT_COUNTRY" envDefault:"US"`
}

type SMTPConfig struct {
	Host     string `env:"HOST"`
	Port     int    `env:"PORT" envDefault:"587"`
	Username string `env:"USERNAME"`
	Password string `env:"PASSWORD"`
	From     string `env:"FROM" envDefault:"no-reply@ygbackend.local"`
}

type MediaConfig struct {
	SigningSecret string        `env:"SIGNING_SECRET"`
	BaseURL       string        `env:"BASE_URL" envDefault:"http://localhost:8080/media-files"`
	QuotaBytes    int64         `env:"QUOTA_BYTES" envDefault:"10737418240"`
	UploadTTL     time.Duration `env:"UPLOAD_TTL" envDefault:"1h"`
	DownloadTTL   time.Duration `env:"DOWNLOAD_TTL" envDefault:"15m"`
}

// Load reads an optional .env file and then the process environment.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	cfg.StorageDriver = strings.ToLower(strings.TrimSpace(cfg.StorageDriver))
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	switch c.StorageDriver {
	case StorageMemory:
	case StoragePostgres:
		if strings.TrimSpace(c.PostgresDSN) == "" {
			return errors.New("POSTGRES_DSN is required when STORAGE_DRIVER=postgres")
		}
		if strings.TrimSpace(c.JWTSecret) == "" {
			return errors.New("JWT_SECRET is required when STORAGE_DRIVER=postgres")
		}
	default:
		return fmt.Errorf("unsupported STORAGE_DRIVER %q", c.StorageDriver)
	}
	if c.PlatformFeeBps < 0 || c.PlatformFeeBps > 10000 {
		return errors.New("PLATFORM_FEE_BPS must be between 0 and 10000")
	}
	if c.RateLimitRequests < 0 {
		return errors.New("RATE_LIMIT_REQUESTS must not be negative")
	}
	return nil
}

func (c Config) UsesPostgres() bool {
	return c.StorageDriver == StoragePostgres
}
