// Package db opens the Postgres pool and applies schema migrations.
package db

import (
	"context"
	"fmt"
	"time"

	"crm_backend/platform/config"

	"github.com/jackc/pgx/v5/pgxpool"
)

type poolOptions struct {
	appName  string
	maxConns int32
	minConns int32
}

// Option tunes the pool built by NewPool.
type Option func(*poolOptions)

// WithApplicationName tags sessions so pg_stat_activity shows which binary holds them.
func WithApplicationName(name string) Option {
	return func(o *poolOptions) { o.appName = name }
}

// WithMaxConns caps the pool. The idle floor shrinks with it.
func WithMaxConns(n int32) Option {
	return func(o *poolOptions) {
		if n <= 0 {
			return
		}
		o.maxConns = n
		if o.minConns > n {
			o.minConns = n
		}
	}
}

// NewPool connects and pings before returning.
func NewPool(ctx context.Context, cfg config.DatabaseConfig, opts ...Option) (*pgxpool.Pool, error) {
	o := poolOptions{maxConns: 25, minConns: 5}
	for _, opt := range opts {
		opt(&o)
	}

	poolConfig, err := pgxpool.ParseConfig(cfg.GetDatabaseURL())
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	poolConfig.MaxConns = o.maxConns
	poolConfig.MinConns = o.minConns
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute
	poolConfig.HealthCheckPeriod = time.Minute
	if o.appName != "" {
		poolConfig.ConnConfig.RuntimeParams["application_name"] = o.appName
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return pool, nil
}
