// Package pgtest opens throwaway Postgres schemas for integration tests.
//
// Tests are opt-in: they run only when STL_DATABASE_URL is set. Outside CI an
// unreachable server skips the test instead of failing it.
package pgtest

import (
	"context"
	"errors"
	"net"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/A1dos-Creations/login-api-website/cmd/identity/ids"
	"github.com/A1dos-Creations/login-api-website/cmd/internal/migrations"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// EnvDatabaseURL names the variable holding the integration database URL.
const EnvDatabaseURL = "STL_DATABASE_URL"

// Open returns a pool bound (via search_path) to a fresh, fully migrated schema.
// The schema is dropped and the pool closed when the test ends.
func Open(t testing.TB) (*pgxpool.Pool, string) {
	t.Helper()

	raw := strings.TrimSpace(os.Getenv(EnvDatabaseURL))
	if raw == "" {
		t.Skipf("integration test skipped: %s not set", EnvDatabaseURL)
	}

	id, err := ids.New(time.Now().UTC())
	if err != nil {
		t.Fatalf("ulid: %v", err)
	}
	schema := "stl_it_" + strings.ToLower(id)

	cfg, err := pgxpool.ParseConfig(raw)
	if err != nil {
		t.Fatalf("parse %s: %v", EnvDatabaseURL, err)
	}
	cfg.ConnConfig.RuntimeParams["search_path"] = schema
	cfg.MaxConns = 16

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		t.Fatalf("connect postgres: %v", err)
	}

	pingCtx, pingCancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer pingCancel()

	c, err := pool.Acquire(pingCtx)
	if err != nil {
		pool.Close()
		if ShouldSkip(err) {
			t.Skipf("integration test skipped: Postgres unreachable (%s set): %v", EnvDatabaseURL, err)
		}
		t.Fatalf("acquire: %v", err)
	}
	c.Release()

	t.Cleanup(func() {
		dropCtx, dropCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer dropCancel()
		_, _ = pool.Exec(dropCtx, `DROP SCHEMA IF EXISTS `+pgx.Identifier{schema}.Sanitize()+` CASCADE`)
		pool.Close()
	})

	if err := migrations.Up(ctx, pool, schema, nil); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	return pool, schema
}

// ShouldSkip reports whether err looks like "no database here" rather than a real failure.
// In CI every error is a failure.
func ShouldSkip(err error) bool {
	if err == nil {
		return false
	}
	if os.Getenv("CI") != "" {
		return false
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "context deadline exceeded") ||
		strings.Contains(msg, "timeout") ||
		strings.Contains(msg, "dial tcp") ||
		strings.Contains(msg, "no such host")
}

// Exec runs sql and fails the test on error.
func Exec(t testing.TB, pool *pgxpool.Pool, sql string, args ...any) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if _, err := pool.Exec(ctx, sql, args...); err != nil {
		t.Fatalf("exec failed: %v", err)
	}
}
