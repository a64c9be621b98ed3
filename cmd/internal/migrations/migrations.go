// Package migrations embeds the database schema and applies it with goose.
//
// Migration files use unqualified table names. Up creates the target schema and runs
// goose on a connection whose search_path points at it, so the same files serve the
// production schema and throwaway test schemas.
package migrations

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"log/slog"
	"regexp"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

//go:embed sql/*.sql
var files embed.FS

var schemaRe = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// ValidSchema reports whether s is a plain PostgreSQL identifier.
func ValidSchema(s string) bool { return schemaRe.MatchString(s) }

// Up creates schema if needed and applies every pending migration to it.
//
// The pool must have been opened with search_path set to schema (see app.NewDBPool).
func Up(ctx context.Context, pool *pgxpool.Pool, schema string, log *slog.Logger) error {
	if log == nil {
		log = slog.Default()
	}
	if pool == nil {
		return fmt.Errorf("migrations: nil pool")
	}
	if !ValidSchema(schema) {
		return fmt.Errorf("migrations: invalid schema %q", schema)
	}

	if _, err := pool.Exec(ctx, `CREATE SCHEMA IF NOT EXISTS `+pgx.Identifier{schema}.Sanitize()); err != nil {
		return fmt.Errorf("migrations: create schema: %w", err)
	}

	sub, err := fs.Sub(files, "sql")
	if err != nil {
		return err
	}

	// The provider is not closed: closing it would close the *sql.DB, and the pool owns the connections.
	provider, err := goose.NewProvider(goose.DialectPostgres, stdlib.OpenDBFromPool(pool), sub)
	if err != nil {
		return fmt.Errorf("migrations: provider: %w", err)
	}

	results, err := provider.Up(ctx)
	if err != nil {
		return fmt.Errorf("migrations: up: %w", err)
	}
	for _, r := range results {
		log.Info("db.migrate.applied", "schema", schema, "version", r.Source.Version, "duration", r.Duration)
	}
	return nil
}
