package main

import (
	"context"
	mongoMigration "roomly/internal/migrations/mongo"
	pgMigration "roomly/internal/migrations/postgres"
	"roomly/pkg/config"
	"time"
)

const JobName = "roomly-migration"

func main() {
	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Second)
	defer cancel()

	cfg := config.Load(JobName)
	if err := cfg.Validate(); err != nil {
		cfg.Log.Fatal("Invalid configuration", "error", err)
	}
	cfg.SetStore()
	defer cfg.GracefulShutdown()

	cfg.Log.Info("Starting migration job", "store_driver", cfg.StoreDriver)
	if err := migrate(ctx, cfg); err != nil {
		cfg.Log.Fatal("Migration failed", "error", err)
	}
	cfg.Log.Info("Migration completed successfully")
}

func migrate(ctx context.Context, cfg *config.Config) error {
	switch cfg.StoreDriver {
	case config.StorePostgres:
		return pgMigration.RunMigration(ctx, cfg.Client.Postgres, cfg.Log)
	case config.StoreMongo:
		return mongoMigration.RunMigration(ctx, cfg.Client.Mongo.Database(cfg.MongoDatabaseName), cfg.Log)
	default:
		cfg.Log.Info("Nothing to migrate for store driver", "store_driver", cfg.StoreDriver)
		return nil
	}
}
