package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Pool wraps pgxpool.Pool for dependency injection.
type Pool struct {
	*pgxpool.Pool
}

// PoolOption configures Pool.
type PoolOption func(*pgxpool.Config)

// WithMaxConns sets the pool size bounds.
func WithMaxConns(maxConns, minConns int32) PoolOption {
	return func(c *pgxpool.Config) {
		if maxConns > 0 {
			c.MaxConns = maxConns
		}
		if minConns >= 0 {
			c.MinConns = minConns
		}
	}
}

// WithConnLifetime sets max connection lifetime and idle time.
func WithConnLifetime(lifetime, idle time.Duration) PoolOption {
	return func(c *pgxpool.Config) {
		if lifetime > 0 {
			c.MaxConnLifetime = lifetime
		}
		if idle > 0 {
			c.MaxConnIdleTime = idle
		}
	}
}

// NewPool creates a Postgres connection pool and verifies it with a ping.
func NewPool(ctx context.Context, dsn string, opts ...PoolOption) (*Pool, error) {
	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	for _, opt := range opts {
		opt(config)
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return &Pool{Pool: pool}, nil
}

// Health pings the pool.
func (p *Pool) Health(ctx context.Context) error {
	return p.Pool.Ping(ctx)
}

// Close closes the connection pool.
func (p *Pool) Close() {
	p.Pool.Close()
}

// InitSchema runs idempotent DDL statements in order.
func (p *Pool) InitSchema(ctx context.Context, stmts []string) error {
	for _, stmt := range stmts {
		if _, err := p.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("init schema: %w", err)
		}
	}
	return nil
}

// IsNotFound reports an empty single-row result.
func IsNotFound(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}
