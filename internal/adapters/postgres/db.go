package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DBExecutor implements ports.DBPort on a pgx pool
type DBExecutor struct {
	pool        *pgxpool.Pool
	lockTimeout time.Duration
}

// ExecutorOption configures a DBExecutor
type ExecutorOption func(*DBExecutor)

// WithLockTimeout bounds how long a write transaction waits on row locks.
// Selections racing for the same payments fail fast instead of queueing.
func WithLockTimeout(d time.Duration) ExecutorOption {
	return func(db *DBExecutor) {
		db.lockTimeout = d
	}
}

// NewDBExecutor creates a PostgreSQL database executor
func NewDBExecutor(pool *pgxpool.Pool, opts ...ExecutorOption) *DBExecutor {
	db := &DBExecutor{pool: pool}
	for _, opt := range opts {
		opt(db)
	}
	return db
}

// GetDB returns the underlying database connection pool
func (db *DBExecutor) GetDB() *pgxpool.Pool {
	return db.pool
}

// WithTransaction executes fn within a write transaction.
// Every write made through tx commits together or not at all.
func (db *DBExecutor) WithTransaction(ctx context.Context, fn func(ctx context.Context, tx pgx.Tx) error) error {
	return db.run(ctx, pgx.TxOptions{}, func(ctx context.Context, tx pgx.Tx) error {
		if db.lockTimeout > 0 {
			stmt := fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", db.lockTimeout.Milliseconds())
			if _, err := tx.Exec(ctx, stmt); err != nil {
				return fmt.Errorf("set lock timeout: %w", err)
			}
		}
		return fn(ctx, tx)
	})
}

// WithReadOnlyTransaction executes fn within a read-only transaction.
// Used for exports so every line is read from one snapshot.
func (db *DBExecutor) WithReadOnlyTransaction(ctx context.Context, fn func(ctx context.Context, tx pgx.Tx) error) error {
	return db.run(ctx, pgx.TxOptions{AccessMode: pgx.ReadOnly, IsoLevel: pgx.RepeatableRead}, fn)
}

func (db *DBExecutor) run(ctx context.Context, opts pgx.TxOptions, fn func(ctx context.Context, tx pgx.Tx) error) error {
	tx, err := db.pool.BeginTx(ctx, opts)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback(ctx)
			panic(p)
		}
	}()

	if err := fn(ctx, tx); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil {
			return fmt.Errorf("rollback failed: %v (original error: %w)", rbErr, err)
		}
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}
