package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"daystohire/common/config"
	"daystohire/common/database"
	"daystohire/common/database/schema"
	"daystohire/common/database/schema/migrations"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func main() {
	logger, err := zap.NewDevelopment()
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	if err := config.LoadDotEnv(); err != nil {
		logger.Warn("Failed to read .env", zap.Error(err))
	}

	root := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the days-to-hire ClickHouse schema",
	}
	root.AddCommand(upCommand(logger), downCommand(logger))

	if err := root.ExecuteContext(context.Background()); err != nil {
		logger.Fatal("Migration failed", zap.Error(err))
	}
}

func upCommand(logger *zap.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMigrator(cmd.Context(), logger, func(ctx context.Context, m *schema.Migrator) error {
				count, err := m.Up(ctx, migrations.All)
				if err != nil {
					return err
				}
				logger.Info("All migrations completed successfully", zap.Int("applied", count))
				return nil
			})
		},
	}
}

func downCommand(logger *zap.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "down",
		Short: "Roll back the latest applied migration",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMigrator(cmd.Context(), logger, func(ctx context.Context, m *schema.Migrator) error {
				applied, err := m.GetAppliedMigrations(ctx)
				if err != nil {
					return err
				}

				for i := len(migrations.All) - 1; i >= 0; i-- {
					migration := migrations.All[i]
					if _, ok := applied[migration.Version]; !ok {
						continue
					}
					if err := m.RollbackMigration(ctx, migration); err != nil {
						return err
					}
					logger.Info("Rolled back migration",
						zap.Int("version", migration.Version),
						zap.String("description", migration.Description),
					)
					return nil
				}

				logger.Info("No applied migrations to roll back")
				return nil
			})
		},
	}
}

func withMigrator(ctx context.Context, logger *zap.Logger, fn func(context.Context, *schema.Migrator) error) error {
	db, err := database.New(ctx, database.Options{
		DSN:         config.String("CLICKHOUSE_DSN", "127.0.0.1:9000"),
		Username:    config.String("CLICKHOUSE_USERNAME", "default"),
		Password:    config.String("CLICKHOUSE_PASSWORD", ""),
		Database:    config.String("CLICKHOUSE_DATABASE", "daystohire"),
		DialTimeout: config.Duration("CLICKHOUSE_DIAL_TIMEOUT", 30*time.Second),
	}, logger)
	if err != nil {
		return fmt.Errorf("connect to clickhouse: %w", err)
	}
	defer db.Close()

	return fn(ctx, schema.NewMigrator(db.DB(), logger))
}
