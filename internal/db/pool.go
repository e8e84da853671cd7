package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spbu-ds-practicum-2025/transfer-saga/internal/config"
)

// Pool wraps pgxpool.Pool to provide database connection pooling for the
// event store and its durable subscription state.
type Pool struct {
	*pgxpool.Pool
}

// NewPool creates a connection pool from the configured DSN and limits.
// Appends are short writes under a per-aggregate-type advisory lock, so the
// configured pool sizes should stay modest to keep lock queues short.
func NewPool(ctx context.Context, cfg config.PostgresConfig) (*Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection string: %w", err)
	}

	poolConfig.MaxConns = cfg.MaxConns
	poolConfig.MinConns = cfg.MinConns

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Pool{Pool: pool}, nil
}
