package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"go.uber.org/zap"

	"github.com/kevin07696/card-reconciliation/internal/db/migrations"
)

const dialect = "postgres"

// RunMigrations applies a goose command ("up", "down", "status", ...) using
// the migrations embedded in the binary.
func RunMigrations(ctx context.Context, pool *pgxpool.Pool, command string, logger *zap.Logger, args ...string) error {
	db := stdlib.OpenDBFromPool(pool)
	defer db.Close()

	goose.SetBaseFS(migrations.FS)
	defer goose.SetBaseFS(nil)

	if err := goose.SetDialect(dialect); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}

	logger.Info("Running database migrations", zap.String("command", command))
	if err := goose.RunContext(ctx, command, db, ".", args...); err != nil {
		return fmt.Errorf("goose %s: %w", command, err)
	}
	return nil
}

// Migrate brings the schema to the latest version
func Migrate(ctx context.Context, pool *pgxpool.Pool, logger *zap.Logger) error {
	return RunMigrations(ctx, pool, "up", logger)
}
