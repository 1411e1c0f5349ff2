package config

import (
	"fmt"
	"time"

	env "daystohire/common/config"
	"daystohire/services/calculator/internal/stats"
)

type Config struct {
	NATSURL         string
	NATSConnTimeout time.Duration

	ClickHouseDSN          string
	ClickHouseMaxOpenConns int
	ClickHouseMaxIdleConns int
	ClickHouseConnMaxLife  time.Duration
	ClickHouseUsername     string
	ClickHousePassword     string
	ClickHouseDatabase     string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	MinPostingsThreshold int
	AggregatorWorkers    int
	RunInterval          time.Duration
	RunOnStart           bool
	RunTimeout           time.Duration
	MaxRetries           int
	RetryDelay           time.Duration

	LogLevel         string
	MetricsAddr      string
	OTelCollectorURL string
	ServiceVersion   string
}

func LoadConfig() (*Config, error) {
	if err := env.LoadDotEnv(); err != nil {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	config := &Config{
		NATSURL:         env.String("NATS_URL", "nats://localhost:4222"),
		NATSConnTimeout: env.Duration("NATS_CONN_TIMEOUT", 10*time.Second),

		ClickHouseDSN:          env.String("CLICKHOUSE_DSN", "localhost:9000"),
		ClickHouseMaxOpenConns: env.Int("CLICKHOUSE_MAX_OPEN_CONNS", 10),
		ClickHouseMaxIdleConns: env.Int("CLICKHOUSE_MAX_IDLE_CONNS", 5),
		ClickHouseConnMaxLife:  env.Duration("CLICKHOUSE_CONN_MAX_LIFE", time.Hour),
		ClickHouseUsername:     env.String("CLICKHOUSE_USERNAME", "default"),
		ClickHousePassword:     env.String("CLICKHOUSE_PASSWORD", ""),
		ClickHouseDatabase:     env.String("CLICKHOUSE_DATABASE", "daystohire"),

		RedisAddr:     env.String("REDIS_ADDR", "localhost:6379"),
		RedisPassword: env.String("REDIS_PASSWORD", ""),
		RedisDB:       env.Int("REDIS_DB", 0),

		MinPostingsThreshold: env.Int("MIN_POSTINGS_THRESHOLD", stats.DefaultMinPostings),
		AggregatorWorkers:    env.Int("AGGREGATOR_WORKERS", 8),
		RunInterval:          env.Duration("RUN_INTERVAL", time.Hour),
		RunOnStart:           env.Bool("RUN_ON_START", true),
		RunTimeout:           env.Duration("RUN_TIMEOUT", 30*time.Minute),
		MaxRetries:           env.Int("MAX_RETRIES", 3),
		RetryDelay:           env.Duration("RETRY_DELAY", 200*time.Millisecond),

		LogLevel:         env.String("LOG_LEVEL", "info"),
		MetricsAddr:      env.String("METRICS_ADDR", ":9102"),
		OTelCollectorURL: env.String("OTEL_COLLECTOR_URL", ""),
		ServiceVersion:   env.String("SERVICE_VERSION", "dev"),
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

func (c *Config) Validate() error {
	if c.MinPostingsThreshold < 1 {
		return fmt.Errorf("MIN_POSTINGS_THRESHOLD must be at least 1, got %d", c.MinPostingsThreshold)
	}
	if c.AggregatorWorkers < 1 {
		return fmt.Errorf("AGGREGATOR_WORKERS must be at least 1, got %d", c.AggregatorWorkers)
	}
	if c.RunInterval < 0 {
		return fmt.Errorf("RUN_INTERVAL must not be negative, got %s", c.RunInterval)
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("MAX_RETRIES must not be negative, got %d", c.MaxRetries)
	}
	if c.ClickHouseDSN == "" {
		return fmt.Errorf("CLICKHOUSE_DSN is required")
	}
	return nil
}
