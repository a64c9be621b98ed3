package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/A1dos-Creations/login-api-website/cmd/identity/ids"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore implements Store using PostgreSQL (<schema>.user_sessions).
type PostgresStore struct {
	pool  *pgxpool.Pool
	table string
}

var _ Store = (*PostgresStore)(nil)

// NewPostgresStore creates a Postgres-backed session store in schema.
func NewPostgresStore(pool *pgxpool.Pool, schema string) (*PostgresStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("session: nil pool")
	}
	if strings.TrimSpace(schema) == "" {
		schema = "stl"
	}
	return &PostgresStore{
		pool:  pool,
		table: pgx.Identifier{schema, "user_sessions"}.Sanitize(),
	}, nil
}

const recordColumns = `id, user_id, token_hash, device_info, ip_address, location, login_time, last_activity`

func scanRecord(row pgx.Row) (Record, error) {
	var r Record
	err := row.Scan(
		&r.ID,
		&r.UserID,
		&r.TokenHash,
		&r.DeviceInfo,
		&r.IPAddress,
		&r.Location,
		&r.LoginTime,
		&r.LastActivity,
	)
	return r, err
}

// Create inserts a new session row and returns its ULID.
func (s *PostgresStore) Create(ctx context.Context, now time.Time, userID, tokenHash string, dev Device) (string, error) {
	id, err := ids.New(now)
	if err != nil {
		return "", err
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO `+s.table+` (
			id, user_id, token_hash, device_info, ip_address, location, login_time, last_activity
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $7)
	`, id, userID, tokenHash, dev.Info, dev.IP, dev.Location, now)
	if err != nil {
		return "", err
	}
	return id, nil
}

// ListLatestPerDevice picks the newest row per (device_info, location) with DISTINCT ON,
// then re-sorts the survivors by recency.
func (s *PostgresStore) ListLatestPerDevice(ctx context.Context, userID string) ([]Record, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+recordColumns+`
		FROM (
			SELECT DISTINCT ON (device_info, location) `+recordColumns+`
			FROM `+s.table+`
			WHERE user_id = $1
			ORDER BY device_info, location, login_time DESC, id DESC
		) latest
		ORDER BY login_time DESC, id DESC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Record, 0, 4)
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// DeleteForUser deletes one row scoped to its owner.
func (s *PostgresStore) DeleteForUser(ctx context.Context, sessionID, userID string) (string, error) {
	var tokenHash string
	err := s.pool.QueryRow(ctx, `
		DELETE FROM `+s.table+`
		WHERE id = $1 AND user_id = $2
		RETURNING token_hash
	`, sessionID, userID).Scan(&tokenHash)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrSessionNotFound
	}
	if err != nil {
		return "", err
	}
	return tokenHash, nil
}

// TouchByTokenHash bumps last_activity and doubles as the session-exists check.
func (s *PostgresStore) TouchByTokenHash(ctx context.Context, now time.Time, tokenHash string) (Record, error) {
	r, err := scanRecord(s.pool.QueryRow(ctx, `
		UPDATE `+s.table+`
		SET last_activity = GREATEST(last_activity, $2)
		WHERE token_hash = $1
		RETURNING `+recordColumns,
		tokenHash, now))
	if errors.Is(err, pgx.ErrNoRows) {
		return Record{}, ErrSessionNotFound
	}
	if err != nil {
		return Record{}, err
	}
	return r, nil
}
