// Package config loads the endorsement pipeline's configuration from
// environment variables, following the teacher's env-tag + New()-with-
// defaults convention (pkg/config).
package config

import (
	"fmt"
	"strings"

	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"
)

// DatabaseConfig controls the Postgres connection.
type DatabaseConfig struct {
	DSN             string `env:"DATABASE_DSN"`
	MaxOpenConns    int    `env:"DATABASE_MAX_OPEN_CONNS"`
	MaxIdleConns    int    `env:"DATABASE_MAX_IDLE_CONNS"`
	ConnMaxLifetime int    `env:"DATABASE_CONN_MAX_LIFETIME"`
	MigrateOnStart  bool   `env:"DATABASE_MIGRATE_ON_START"`
}

// ServerConfig controls the process-local metrics HTTP listener. There is
// no domain-facing HTTP API here: the spec's external collaborators are
// bus topics, not HTTP endpoints.
type ServerConfig struct {
	MetricsAddr string `env:"METRICS_ADDR"`
}

// RedisConfig controls the KV/bus-backing Redis connection.
type RedisConfig struct {
	Addr     string `env:"REDIS_ADDR"`
	Password string `env:"REDIS_PASSWORD"`
	DB       int    `env:"REDIS_DB"`
}

// LoggingConfig controls the structured logger.
type LoggingConfig struct {
	Level  string `env:"LOG_LEVEL"`
	Format string `env:"LOG_FORMAT"`
}

// SchedulerConfig controls the smart scheduler's tumbling window and sweep
// cadence.
type SchedulerConfig struct {
	WindowSeconds     int    `env:"SCHEDULER_WINDOW_SECONDS"`
	SweepIntervalCron string `env:"SCHEDULER_SWEEP_CRON"`
}

// LedgerConfig controls dedup, retry and hold-release behavior.
type LedgerConfig struct {
	DedupTTLSeconds int     `env:"LEDGER_DEDUP_TTL_SECONDS"`
	BackoffBase     float64 `env:"LEDGER_BACKOFF_BASE"`
	MaxRetryCount   int     `env:"LEDGER_MAX_RETRY_COUNT"`
	ClearingPolicy  string  `env:"LEDGER_CLEARING_POLICY"`
}

// GatewayConfig controls outbound insurer call behavior.
type GatewayConfig struct {
	RequestTimeoutSeconds int    `env:"GATEWAY_REQUEST_TIMEOUT_SECONDS"`
	CircuitMaxFailures    int    `env:"GATEWAY_CIRCUIT_MAX_FAILURES"`
	CircuitOpenSeconds    int    `env:"GATEWAY_CIRCUIT_OPEN_SECONDS"`
	RetryPollIntervalSecs int    `env:"GATEWAY_RETRY_POLL_INTERVAL_SECONDS"`
	InsurerConfigPath     string `env:"GATEWAY_INSURER_CONFIG_PATH"`
}

// Config is the top-level configuration structure, decoded once at process
// startup and passed explicitly to every component constructor.
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Logging   LoggingConfig
	Scheduler SchedulerConfig
	Ledger    LedgerConfig
	Gateway   GatewayConfig
}

// New returns a Config populated with defaults.
func New() *Config {
	return &Config{
		Server: ServerConfig{
			MetricsAddr: ":9090",
		},
		Database: DatabaseConfig{
			MaxOpenConns:    10,
			MaxIdleConns:    5,
			ConnMaxLifetime: 300,
			MigrateOnStart:  true,
		},
		Redis: RedisConfig{
			Addr: "localhost:6379",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Scheduler: SchedulerConfig{
			WindowSeconds:     300,
			SweepIntervalCron: "@every 30s",
		},
		Ledger: LedgerConfig{
			DedupTTLSeconds: 24 * 60 * 60,
			BackoffBase:     2,
			MaxRetryCount:   5,
			ClearingPolicy:  "RESTORE",
		},
		Gateway: GatewayConfig{
			RequestTimeoutSeconds: 10,
			CircuitMaxFailures:    5,
			CircuitOpenSeconds:    60,
			RetryPollIntervalSecs: 5,
			InsurerConfigPath:     "configs/insurers.json",
		},
	}
}

// Load loads configuration from a .env file (if present) and the process
// environment, overlaying New()'s defaults.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := New()
	if err := envdecode.Decode(cfg); err != nil {
		if !strings.Contains(err.Error(), "none of the target fields were set") {
			return nil, fmt.Errorf("decode env: %w", err)
		}
	}
	return cfg, nil
}
