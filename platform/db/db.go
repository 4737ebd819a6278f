// Package db provides the Postgres pool and schema migrations.
package db

import (
	"context"
	"fmt"
	"time"

	"whatsapp_sdr_backend/platform/config"

	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	defaultMaxConns   = 20
	minIdleConns      = 2
	maxConnLifetime   = time.Hour
	maxConnIdleTime   = 15 * time.Minute
	healthCheckPeriod = time.Minute
)

// NewPool connects to Postgres and verifies the connection. Every turn holds a
// connection only for short reads and the stage write; the classifier call runs
// without one, so the pool is sized for worker concurrency rather than for
// in-flight LLM calls.
func NewPool(ctx context.Context, cfg config.DatabaseConfig) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.GetDatabaseURL())
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}

	maxConns := cfg.GetDatabaseMaxConns()
	if maxConns <= 0 {
		maxConns = defaultMaxConns
	}
	poolConfig.MaxConns = int32(maxConns)
	poolConfig.MinConns = min(int32(minIdleConns), poolConfig.MaxConns)
	poolConfig.MaxConnLifetime = maxConnLifetime
	poolConfig.MaxConnIdleTime = maxConnIdleTime
	poolConfig.HealthCheckPeriod = healthCheckPeriod

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("open pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return pool, nil
}
