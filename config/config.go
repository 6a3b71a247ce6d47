package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds every setting the service reads from the environment.
type Config struct {
	DatabaseURL       string        `env:"DATABASE_URL,required"`
	DBConnectTimeout  time.Duration `env:"DB_CONNECT_TIMEOUT" envDefault:"5s"`
	DBMigrate         bool          `env:"DB_MIGRATE" envDefault:"false"`
	JWTSecretKey      string        `env:"JWT_SECRET_KEY,required"`
	ServerPort        int           `env:"SERVER_PORT" envDefault:"8080"`
	LogLevel          string        `env:"LOG_LEVEL" envDefault:"info"`
	CORSAllowedOrigin []string      `env:"CORS_ALLOWED_ORIGINS" envSeparator:","`

	StripeWebhookSecret string `env:"STRIPE_WEBHOOK_SECRET,required"`

	// Optional integrations, disabled when unset.
	RabbitMQURL  string `env:"RABBITMQ_URL"`
	OTLPEndpoint string `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`

	R2AccountID       string `env:"R2_ACCOUNT_ID"`
	R2AccessKeyID     string `env:"R2_ACCESS_KEY_ID"`
	R2SecretAccessKey string `env:"R2_SECRET_ACCESS_KEY"`
	R2BucketName      string `env:"R2_BUCKET_NAME"`
	R2Endpoint        string `env:"R2_ENDPOINT"`
}

// Load reads an optional .env file and then the process environment.
func Load() (*Config, error) {
	_ = godotenv.Load()
	return parse(env.Options{})
}

func parse(opts env.Options) (*Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	var problems []error
	if c.ServerPort <= 0 || c.ServerPort > 65535 {
		problems = append(problems, fmt.Errorf("SERVER_PORT must be between 1 and 65535, got %d", c.ServerPort))
	}
	if _, err := c.SlogLevel(); err != nil {
		problems = append(problems, err)
	}

	r2 := []string{c.R2AccessKeyID, c.R2SecretAccessKey, c.R2BucketName}
	set := 0
	for _, v := range r2 {
		if v != "" {
			set++
		}
	}
	if set > 0 && set < len(r2) {
		problems = append(problems, errors.New("R2_ACCESS_KEY_ID, R2_SECRET_ACCESS_KEY and R2_BUCKET_NAME must be set together"))
	}
	if set == len(r2) && c.R2AccountID == "" && c.R2Endpoint == "" {
		problems = append(problems, errors.New("R2_ACCOUNT_ID or R2_ENDPOINT is required when R2 is configured"))
	}
	return errors.Join(problems...)
}

// ArchiveEnabled reports whether webhook receipts should go to R2.
func (c *Config) ArchiveEnabled() bool {
	return c.R2BucketName != ""
}

func (c *Config) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(c.LogLevel))); err != nil {
		return slog.LevelInfo, fmt.Errorf("invalid LOG_LEVEL %q: %w", c.LogLevel, err)
	}
	return level, nil
}
