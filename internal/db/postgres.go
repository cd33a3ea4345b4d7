// Package db opens the Postgres pool behind the record store.
package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hackgods/clinic-appointment-assistant/internal/logging"
)

// PoolOptions tunes the pool for one process. Zero fields other than
// MinConns take defaults.
type PoolOptions struct {
	AppName       string // reported as application_name in pg_stat_activity
	MaxConns      int32
	MinConns      int32
	ConnectTries  uint
	RetryInterval time.Duration
	Logger        *logging.Logger
}

func (o PoolOptions) withDefaults() PoolOptions {
	if o.AppName == "" {
		o.AppName = "clinic-appointment-assistant"
	}
	if o.MaxConns <= 0 {
		o.MaxConns = 10
	}
	if o.MinConns < 0 || o.MinConns > o.MaxConns {
		o.MinConns = 1
	}
	if o.ConnectTries == 0 {
		o.ConnectTries = 5
	}
	if o.RetryInterval <= 0 {
		o.RetryInterval = 500 * time.Millisecond
	}
	if o.Logger == nil {
		o.Logger = logging.Default()
	}
	return o
}

// PoolConfig parses dsn and applies opts. Sessions run in UTC because
// appointment dates are stored as civil dates at UTC midnight.
func PoolConfig(dsn string, opts PoolOptions) (*pgxpool.Config, error) {
	if dsn == "" {
		return nil, errors.New("postgres dsn is empty")
	}
	opts = opts.withDefaults()

	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	cfg.MaxConns = opts.MaxConns
	cfg.MinConns = opts.MinConns
	cfg.HealthCheckPeriod = 30 * time.Second
	cfg.MaxConnLifetime = time.Hour
	cfg.MaxConnIdleTime = 15 * time.Minute

	params := cfg.ConnConfig.RuntimeParams
	if _, ok := params["application_name"]; !ok {
		params["application_name"] = opts.AppName
	}
	params["timezone"] = "UTC"
	return cfg, nil
}

// Connect builds the pool and waits until the server answers a ping. A
// server still starting up is retried with backoff until ctx or the tries
// run out.
func Connect(ctx context.Context, dsn string, opts PoolOptions) (*pgxpool.Pool, error) {
	opts = opts.withDefaults()
	cfg, err := PoolConfig(dsn, opts)
	if err != nil {
		return nil, err
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pgx pool: %w", err)
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = opts.RetryInterval
	attempt := 0
	_, err = backoff.Retry(ctx, func() (struct{}, error) {
		attempt++
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := pool.Ping(pingCtx); err != nil {
			opts.Logger.Warn("postgres not ready", "attempt", attempt, "error", err)
			return struct{}{}, err
		}
		return struct{}{}, nil
	}, backoff.WithBackOff(b), backoff.WithMaxTries(opts.ConnectTries))
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	opts.Logger.Info("postgres pool ready", "host", cfg.ConnConfig.Host, "database", cfg.ConnConfig.Database,
		"max_conns", cfg.MaxConns, "attempts", attempt)
	return pool, nil
}
