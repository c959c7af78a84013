package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// Config holds all application configuration.
type Config struct {
	LogLevel         string `env:"LOG_LEVEL" envDefault:"info" validate:"oneof=debug info warn error"`
	IntakeServerAddr string `env:"INTAKE_SERVER_ADDR" envDefault:":8080" validate:"required"`
	AdminServerAddr  string `env:"ADMIN_SERVER_ADDR" envDefault:":9091" validate:"required"`
	MaxBodySize      int64  `env:"MAX_BODY_SIZE_BYTES" envDefault:"1048576" validate:"gt=0"` // 1MB
	RedactFields     string `env:"REDACT_FIELDS" envDefault:""`

	// Diagnostic stream. Empty REDIS_URL keeps the intake service in log-only mode.
	RedisURL               string `env:"REDIS_URL"`
	DiagnosticStreamMaxLen int64  `env:"DIAGNOSTIC_STREAM_MAXLEN" envDefault:"100000" validate:"gte=0"`
	RedisDLQStream         string `env:"REDIS_DLQ_STREAM" envDefault:"intake_diagnostics_dlq" validate:"required"`

	WALPath        string `env:"WAL_PATH" envDefault:"./data/wal"`
	WALSegmentSize int64  `env:"WAL_SEGMENT_SIZE_BYTES" envDefault:"10485760" validate:"gt=0"`   // 10MB
	WALMaxDiskSize int64  `env:"WAL_MAX_DISK_SIZE_BYTES" envDefault:"104857600" validate:"gt=0"` // 100MB

	// Consumer only.
	PostgresURL          string        `env:"POSTGRES_URL"`
	ConsumerBatchSize    int           `env:"CONSUMER_BATCH_SIZE" envDefault:"500" validate:"gt=0"`
	ConsumerRetryCount   int           `env:"CONSUMER_RETRY_COUNT" envDefault:"3" validate:"gt=0"`
	ConsumerRetryBackoff time.Duration `env:"CONSUMER_RETRY_BACKOFF" envDefault:"1s"`
	// Sunk records older than this are deleted. Zero keeps them forever.
	DiagnosticRetention time.Duration `env:"DIAGNOSTIC_RETENTION" envDefault:"720h" validate:"gte=0"`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	// Attempt to load .env file for local development.
	_ = godotenv.Load()

	return parse(env.Options{})
}

func parse(opts env.Options) (*Config, error) {
	cfg := &Config{}
	if err := env.ParseWithOptions(cfg, opts); err != nil {
		return nil, fmt.Errorf("parsing environment: %w", err)
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// RedactFieldList splits REDACT_FIELDS into trimmed, non-empty field names.
func (c *Config) RedactFieldList() []string {
	var fields []string
	for _, f := range strings.Split(c.RedactFields, ",") {
		if f = strings.TrimSpace(f); f != "" {
			fields = append(fields, f)
		}
	}
	return fields
}

// StreamEnabled reports whether diagnostic records are mirrored to Redis.
func (c *Config) StreamEnabled() bool {
	return c.RedisURL != ""
}
