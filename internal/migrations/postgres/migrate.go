package postgres

import (
	"context"
	"embed"
	"fmt"
	"roomly/pkg/logger"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

//go:embed sql/*.sql
var migrations embed.FS

const migrationsDir = "sql"

// RunMigration applies every pending schema migration to the database behind
// pool and reports the resulting version.
func RunMigration(ctx context.Context, pool *pgxpool.Pool, log *logger.Logger) error {
	goose.SetBaseFS(migrations)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}

	db := stdlib.OpenDBFromPool(pool)
	defer db.Close()

	log.Info("Applying PostgreSQL migrations")
	if err := goose.UpContext(ctx, db, migrationsDir); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}

	version, err := goose.GetDBVersionContext(ctx, db)
	if err != nil {
		return fmt.Errorf("get version: %w", err)
	}
	log.Info("PostgreSQL migrations applied", "version", version)
	return nil
}
