// Package postgres implements the RepoStore and PRStore ports on Postgres
// using a pgx connection pool.
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Config configures the pgx pool.
type Config struct {
	URL      string
	MaxConns int32
}

// DB wraps a pgx pool shared by the repository stores.
type DB struct {
	Pool *pgxpool.Pool
}

// Open parses cfg.URL, creates the pool and pings the server.
func Open(ctx context.Context, cfg Config) (*DB, error) {
	pcfg, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	if cfg.MaxConns > 0 {
		pcfg.MaxConns = cfg.MaxConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, pcfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return &DB{Pool: pool}, nil
}

// Close closes the pool. It never fails; the error return matches io.Closer.
func (db *DB) Close() error {
	if db != nil && db.Pool != nil {
		db.Pool.Close()
	}
	return nil
}
