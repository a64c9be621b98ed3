package app

import (
	"context"
	"time"

	"github.com/A1dos-Creations/login-api-website/cmd/internal/migrations"

	"github.com/jackc/pgx/v5/pgxpool"
)

// NewDBPool builds a pgxpool bound (via search_path) to cfg.DBSchema and validates connectivity.
// With cfg.AutoMigrate set it also applies pending goose migrations.
func NewDBPool(ctx context.Context, cfg Config, log Logger) (*pgxpool.Pool, error) {
	pcfg, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	pcfg.ConnConfig.RuntimeParams["search_path"] = cfg.DBSchema

	if cfg.DBMaxConns > 0 {
		pcfg.MaxConns = cfg.DBMaxConns
	}
	if cfg.DBMinConns >= 0 {
		pcfg.MinConns = cfg.DBMinConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, pcfg)
	if err != nil {
		return nil, err
	}

	if err := PingDB(ctx, pool, 3*time.Second); err != nil {
		pool.Close()
		return nil, err
	}

	if cfg.AutoMigrate {
		if err := migrations.Up(ctx, pool, cfg.DBSchema, log); err != nil {
			pool.Close()
			return nil, err
		}
	}

	return pool, nil
}

// PingDB checks if we can acquire a connection within timeout.
func PingDB(parent context.Context, pool *pgxpool.Pool, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	conn, err := pool.Acquire(ctx)
	if err != nil {
		return err
	}
	conn.Release()
	return nil
}
