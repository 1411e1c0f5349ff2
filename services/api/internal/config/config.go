package config

import (
	"fmt"
	"time"

	env "daystohire/common/config"
)

type Config struct {
	HTTPAddr        string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	Debug           bool

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
	CacheTTL      time.Duration

	LogLevel         string
	OTelCollectorURL string
	ServiceVersion   string
}

func LoadConfig() (*Config, error) {
	if err := env.LoadDotEnv(); err != nil {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	config := &Config{
		HTTPAddr:        env.String("HTTP_ADDR", ":8080"),
		ReadTimeout:     env.Duration("HTTP_READ_TIMEOUT", 10*time.Second),
		WriteTimeout:    env.Duration("HTTP_WRITE_TIMEOUT", 10*time.Second),
		ShutdownTimeout: env.Duration("HTTP_SHUTDOWN_TIMEOUT", 15*time.Second),
		Debug:           env.Bool("DEBUG", false),

		NATSURL:         env.String("NATS_URL", "nats://localhost:4222"),
		NATSConnTimeout: env.Duration("NATS_CONN_TIMEOUT", 10*time.Second),

		ClickHouseDSN:          env.String("CLICKHOUSE_DSN", "localhost:9000"),
		ClickHouseMaxOpenConns: env.Int("CLICKHOUSE_MAX_OPEN_CONNS", 20),
		ClickHouseMaxIdleConns: env.Int("CLICKHOUSE_MAX_IDLE_CONNS", 10),
		ClickHouseConnMaxLife:  env.Duration("CLICKHOUSE_CONN_MAX_LIFE", time.Hour),
		ClickHouseUsername:     env.String("CLICKHOUSE_USERNAME", "default"),
		ClickHousePassword:     env.String("CLICKHOUSE_PASSWORD", ""),
		ClickHouseDatabase:     env.String("CLICKHOUSE_DATABASE", "daystohire"),

		RedisAddr:     env.String("REDIS_ADDR", "localhost:6379"),
		RedisPassword: env.String("REDIS_PASSWORD", ""),
		RedisDB:       env.Int("REDIS_DB", 0),
		CacheTTL:      env.Duration("CACHE_TTL", 5*time.Minute),

		LogLevel:         env.String("LOG_LEVEL", "info"),
		OTelCollectorURL: env.String("OTEL_COLLECTOR_URL", ""),
		ServiceVersion:   env.String("SERVICE_VERSION", "dev"),
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

func (c *Config) Validate() error {
	if c.HTTPAddr == "" {
		return fmt.Errorf("HTTP_ADDR is required")
	}
	if c.ClickHouseDSN == "" {
		return fmt.Errorf("CLICKHOUSE_DSN is required")
	}
	if c.CacheTTL < 0 {
		return fmt.Errorf("CACHE_TTL must not be negative, got %s", c.CacheTTL)
	}
	return nil
}
