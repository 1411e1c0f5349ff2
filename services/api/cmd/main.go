package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"daystohire/common/cache"
	"daystohire/common/cache/redis"
	env "daystohire/common/config"
	"daystohire/common/database"
	"daystohire/common/statsstore"
	"daystohire/common/telemetry"
	"daystohire/services/api/internal/config"
	"daystohire/services/api/internal/events"
	"daystohire/services/api/internal/handler"
	"daystohire/services/api/internal/query"
	"daystohire/services/api/internal/server"

	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
)

const serviceName = "days-to-hire-api"

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	level, err := env.ParseLogLevel(cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.LogLevel, err)
	}

	zcfg := zap.NewProductionConfig()
	zcfg.Level = level
	logger, err := zcfg.Build()
	if err != nil {
		return nil, err
	}
	return logger.With(zap.String("service", serviceName)), nil
}

func newNATSConnection(cfg *config.Config) (*nats.Conn, error) {
	opts := []nats.Option{
		nats.Timeout(cfg.NATSConnTimeout),
		nats.Name(serviceName),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
	}
	return nats.Connect(cfg.NATSURL, opts...)
}

func newDatabase(lc fx.Lifecycle, cfg *config.Config, logger *zap.Logger) (*database.Database, error) {
	db, err := database.New(context.Background(), database.Options{
		DSN:             cfg.ClickHouseDSN,
		MaxOpenConns:    cfg.ClickHouseMaxOpenConns,
		MaxIdleConns:    cfg.ClickHouseMaxIdleConns,
		ConnMaxLifetime: cfg.ClickHouseConnMaxLife,
		Username:        cfg.ClickHouseUsername,
		Password:        cfg.ClickHousePassword,
		Database:        cfg.ClickHouseDatabase,
	}, logger)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{OnStop: func(context.Context) error { return db.Close() }})
	return db, nil
}

func newCache(lc fx.Lifecycle, cfg *config.Config) *redis.Cache {
	c := redis.New(cache.Options{
		DefaultTTL:    cfg.CacheTTL,
		RedisURL:      cfg.RedisAddr,
		RedisPassword: cfg.RedisPassword,
		RedisDB:       cfg.RedisDB,
	})
	lc.Append(fx.Hook{OnStop: func(context.Context) error { return c.Close() }})
	return c
}

func newRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return reg
}

func newQueryService(db *database.Database, c *redis.Cache, cfg *config.Config, logger *zap.Logger) *query.Service {
	return query.NewService(statsstore.New(db.DB()), c, cfg.CacheTTL, logger)
}

func newDaysToHireHandler(svc *query.Service, logger *zap.Logger) *handler.DaysToHireHandler {
	return handler.NewDaysToHireHandler(svc, logger)
}

func newHealthHandler(db *database.Database, c *redis.Cache, logger *zap.Logger) *handler.HealthHandler {
	return handler.NewHealthHandler(handler.PingerFunc(db.PingContext), c, logger)
}

func newEventHandler(logger *zap.Logger, nc *nats.Conn, tracer trace.Tracer, c *redis.Cache) *events.Handler {
	return events.NewHandler(logger, nc, tracer, c)
}

func newTracer() trace.Tracer {
	return telemetry.GetTracer("daystohire/api")
}

func startTracing(lc fx.Lifecycle, cfg *config.Config) error {
	shutdown, err := telemetry.InitTracer(context.Background(), serviceName, cfg.ServiceVersion, cfg.OTelCollectorURL)
	if err != nil {
		return err
	}
	lc.Append(fx.Hook{OnStop: shutdown})
	return nil
}

func main() {
	app := fx.New(
		fx.Provide(
			config.LoadConfig,
			newLogger,
			newNATSConnection,
			newDatabase,
			newCache,
			newRegistry,
			newQueryService,
			newDaysToHireHandler,
			newHealthHandler,
			newEventHandler,
			newTracer,
			server.NewRouter,
			server.NewServer,
		),
		fx.Invoke(
			startTracing,
			func(handler *events.Handler, lc fx.Lifecycle) error {
				return handler.RegisterSubscriptions(lc)
			},
			func(s *server.Server, lc fx.Lifecycle) {
				s.RegisterLifecycle(lc)
			},
		),
		fx.WithLogger(func(logger *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: logger.Named("fx")}
		}),
	)

	startCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := app.Start(startCtx); err != nil {
		log.Fatal(err)
	}

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	<-c

	stopCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := app.Stop(stopCtx); err != nil {
		log.Fatal(err)
	}
}
