package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
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
	"daystohire/services/calculator/internal/config"
	"daystohire/services/calculator/internal/events"
	"daystohire/services/calculator/internal/metrics"
	"daystohire/services/calculator/internal/persister"
	"daystohire/services/calculator/internal/scheduler"
	"daystohire/services/calculator/internal/source"

	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
)

const serviceName = "days-to-hire-calculator"

func main() {
	root := &cobra.Command{
		Use:           "calculator",
		Short:         "Compute days-to-hire statistics",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().String("log-level", "", "log level (DEBUG, INFO, WARNING, ERROR, CRITICAL); overrides LOG_LEVEL")
	root.AddCommand(runCommand(), serveCommand())

	if err := root.ExecuteContext(context.Background()); err != nil {
		log.Printf("calculator: %v", err)
		os.Exit(1)
	}
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, err
	}
	if level, _ := cmd.Flags().GetString("log-level"); level != "" {
		cfg.LogLevel = level
	}
	return cfg, nil
}

func runCommand() *cobra.Command {
	var minPostings int

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one statistics pass and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if minPostings > 0 {
				cfg.MinPostingsThreshold = minPostings
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			return runOnce(cmd.Context(), cfg)
		},
	}
	cmd.Flags().IntVar(&minPostings, "min-postings", 0, "minimum postings kept after trimming; overrides MIN_POSTINGS_THRESHOLD")
	return cmd
}

func serveCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run statistics periodically and on request",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			return serve(cfg)
		},
	}
}

func runOnce(ctx context.Context, cfg *config.Config) error {
	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracer, err := telemetry.InitTracer(ctx, serviceName, cfg.ServiceVersion, cfg.OTelCollectorURL)
	if err != nil {
		return err
	}
	defer shutdownTracer(context.Background())

	db, err := newDatabase(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer db.Close()

	statsCache := newCache(cfg)
	defer statsCache.Close()

	// A one-shot run still announces its result when NATS is reachable.
	var publisher scheduler.RunPublisher
	if nc, err := nats.Connect(cfg.NATSURL, nats.Timeout(cfg.NATSConnTimeout), nats.Name(serviceName)); err != nil {
		logger.Warn("NATS unavailable, run completion will not be published", zap.Error(err))
	} else {
		defer func() {
			if err := nc.FlushTimeout(cfg.NATSConnTimeout); err != nil {
				logger.Warn("failed to flush NATS connection", zap.Error(err))
			}
			nc.Close()
		}()
		publisher = events.NewPublisher(nc, logger)
	}

	p := newPersister(statsstore.New(db.DB()), statsCache, logger, cfg)
	s := scheduler.NewJobScheduler(source.NewClickHouseSource(db.DB()), p, publisher,
		metrics.New(prometheus.NewRegistry()), logger, cfg)

	summary, err := s.RunOnce(ctx, cfg.MinPostingsThreshold)
	if err != nil {
		return err
	}
	if summary.Failed > 0 {
		return fmt.Errorf("%d of %d combinations failed", summary.Failed, summary.Groups)
	}
	return nil
}

func serve(cfg *config.Config) error {
	app := fx.New(
		fx.Supply(cfg),
		fx.Provide(
			newLogger,
			newNATSConnection,
			func(lc fx.Lifecycle, cfg *config.Config, logger *zap.Logger) (*database.Database, error) {
				db, err := newDatabase(context.Background(), cfg, logger)
				if err != nil {
					return nil, err
				}
				lc.Append(fx.Hook{OnStop: func(context.Context) error { return db.Close() }})
				return db, nil
			},
			func(lc fx.Lifecycle, cfg *config.Config) cache.Cache {
				c := newCache(cfg)
				lc.Append(fx.Hook{OnStop: func(context.Context) error { return c.Close() }})
				return c
			},
			func() *prometheus.Registry {
				reg := prometheus.NewRegistry()
				reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
				return reg
			},
			func(reg *prometheus.Registry) *metrics.Metrics { return metrics.New(reg) },
			func(db *database.Database) source.PostingSource { return source.NewClickHouseSource(db.DB()) },
			func(db *database.Database, c cache.Cache, logger *zap.Logger, cfg *config.Config) *persister.Persister {
				return newPersister(statsstore.New(db.DB()), c, logger, cfg)
			},
			func(nc *nats.Conn, logger *zap.Logger) scheduler.RunPublisher { return events.NewPublisher(nc, logger) },
			scheduler.NewJobScheduler,
			func(s *scheduler.JobScheduler) events.Runner { return s },
			events.NewHandler,
			newTracer,
		),
		fx.Invoke(
			startTracing,
			func(handler *events.Handler, lc fx.Lifecycle) error {
				return handler.RegisterSubscriptions(lc)
			},
			startScheduler,
			startMetricsServer,
		),
		fx.WithLogger(func(logger *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: logger.Named("fx")}
		}),
	)

	startCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := app.Start(startCtx); err != nil {
		return err
	}

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	<-c

	stopCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return app.Stop(stopCtx)
}

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

func newDatabase(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*database.Database, error) {
	return database.New(ctx, database.Options{
		DSN:             cfg.ClickHouseDSN,
		MaxOpenConns:    cfg.ClickHouseMaxOpenConns,
		MaxIdleConns:    cfg.ClickHouseMaxIdleConns,
		ConnMaxLifetime: cfg.ClickHouseConnMaxLife,
		Username:        cfg.ClickHouseUsername,
		Password:        cfg.ClickHousePassword,
		Database:        cfg.ClickHouseDatabase,
	}, logger)
}

func newCache(cfg *config.Config) *redis.Cache {
	return redis.New(cache.Options{
		RedisURL:      cfg.RedisAddr,
		RedisPassword: cfg.RedisPassword,
		RedisDB:       cfg.RedisDB,
	})
}

func newPersister(store persister.Store, c cache.Cache, logger *zap.Logger, cfg *config.Config) *persister.Persister {
	opts := persister.DefaultOptions()
	opts.MaxRetries = uint64(cfg.MaxRetries)
	opts.InitialInterval = cfg.RetryDelay
	return persister.New(store, c, logger, opts)
}

func newTracer() trace.Tracer {
	return telemetry.GetTracer("daystohire/calculator")
}

func startTracing(lc fx.Lifecycle, cfg *config.Config) error {
	shutdown, err := telemetry.InitTracer(context.Background(), serviceName, cfg.ServiceVersion, cfg.OTelCollectorURL)
	if err != nil {
		return err
	}
	lc.Append(fx.Hook{OnStop: shutdown})
	return nil
}

func startScheduler(lc fx.Lifecycle, s *scheduler.JobScheduler, logger *zap.Logger) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				defer close(done)
				if err := s.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
					logger.Error("scheduler stopped", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(stopCtx context.Context) error {
			cancel()
			select {
			case <-done:
				return nil
			case <-stopCtx.Done():
				return stopCtx.Err()
			}
		},
	})
}

func startMetricsServer(lc fx.Lifecycle, reg *prometheus.Registry, cfg *config.Config, logger *zap.Logger) {
	if cfg.MetricsAddr == "" {
		return
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: cfg.MetricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					logger.Error("metrics server failed", zap.Error(err))
				}
			}()
			logger.Info("metrics server listening", zap.String("addr", cfg.MetricsAddr))
			return nil
		},
		OnStop: srv.Shutdown,
	})
}
