package identity

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/A1dos-Creations/login-api-website/cmd/identity/ids"
	"github.com/A1dos-Creations/login-api-website/cmd/security/password"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore implements Store over PostgreSQL.
//
// The pgx pool is owned by the caller; this store never closes it.
// Schema/table identifiers are quoted with pgx.Identifier.
type PostgresStore struct {
	pool      *pgxpool.Pool
	schema    string
	passwords password.Config
	dummyHash string
}

var _ Store = (*PostgresStore)(nil)

// PostgresOption configures the store.
type PostgresOption func(*PostgresStore) error

var pgIdentRe = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// WithSchema sets the Postgres schema used by the store (default "stl").
func WithSchema(schema string) PostgresOption {
	return func(s *PostgresStore) error {
		schema = strings.TrimSpace(schema)
		if schema == "" {
			return fmt.Errorf("identity: empty schema")
		}
		if !pgIdentIsValid(schema) {
			return fmt.Errorf("identity: invalid schema identifier")
		}
		s.schema = schema
		return nil
	}
}

// WithPasswordConfig overrides the password hashing configuration.
func WithPasswordConfig(cfg password.Config) PostgresOption {
	return func(s *PostgresStore) error {
		if err := cfg.Check(); err != nil {
			return err
		}
		s.passwords = cfg
		return nil
	}
}

// NewPostgresStore constructs a PostgresStore.
func NewPostgresStore(pool *pgxpool.Pool, opts ...PostgresOption) (*PostgresStore, error) {
	st := &PostgresStore{
		pool:      pool,
		schema:    "stl",
		passwords: password.DefaultConfig(),
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(st); err != nil {
			return nil, err
		}
	}
	if st.pool == nil {
		return nil, fmt.Errorf("identity: nil pool")
	}

	// Verified against when the email is unknown so both failure paths cost one hash.
	dummy, err := st.passwords.Hash("dummy-password-for-timing-only")
	if err != nil {
		return nil, err
	}
	st.dummyHash = dummy

	return st, nil
}

const userColumns = `id, name, email, premium, email_notifications, google_id, created_at, updated_at`

func scanUser(row pgx.Row) (User, error) {
	var u User
	err := row.Scan(
		&u.ID,
		&u.Name,
		&u.Email,
		&u.Premium,
		&u.EmailNotifications,
		&u.GoogleID,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	return u, err
}

// CreateUser creates a user and its credential row transactionally.
// A second registration with the same (case-insensitive) email yields a ConflictError.
func (s *PostgresStore) CreateUser(ctx context.Context, in CreateUserInput) (User, error) {
	const op = "identity.CreateUser"

	name := NormalizeName(in.Name)
	email := strings.TrimSpace(in.Email)
	pw := in.Password

	if name == "" || email == "" || strings.TrimSpace(pw) == "" {
		return User{}, pgInvalid(op, "name, email and password are required")
	}
	if !strings.Contains(email, "@") {
		return User{}, pgInvalid(op, "invalid email")
	}
	if err := s.passwords.Validate(pw); err != nil {
		return User{}, pgInvalid(op, err.Error())
	}

	now := in.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}

	pwHash, err := s.passwords.Hash(pw)
	if err != nil {
		return User{}, err
	}

	userID, err := ids.New(now)
	if err != nil {
		return User{}, err
	}

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{
		IsoLevel:   pgx.ReadCommitted,
		AccessMode: pgx.ReadWrite,
	})
	if err != nil {
		return User{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	users := pgIdent(s.schema, "users")
	creds := pgIdent(s.schema, "user_credentials")

	u, err := scanUser(tx.QueryRow(ctx,
		`INSERT INTO `+users+` (
		     id, name, email, email_norm, premium, email_notifications, created_at, updated_at
		   ) VALUES ($1, $2, $3, $4, false, true, $5, $5)
		 RETURNING `+userColumns,
		userID, name, email, NormalizeEmail(email), now,
	))
	if err != nil {
		if field, ok := pgClassifyUniqueViolation(err); ok {
			return User{}, ConflictError{Op: op, Field: field}
		}
		return User{}, err
	}

	if _, err := tx.Exec(ctx,
		`INSERT INTO `+creds+` (user_id, password_hash, created_at, updated_at)
		 VALUES ($1, $2, $3, $3)`,
		userID, pwHash, now,
	); err != nil {
		return User{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return User{}, err
	}
	return u, nil
}

// GetUserByID loads a user by id.
func (s *PostgresStore) GetUserByID(ctx context.Context, userID string) (User, error) {
	const op = "identity.GetUserByID"

	userID = strings.TrimSpace(userID)
	if userID == "" {
		return User{}, pgInvalid(op, "missing user_id")
	}

	u, err := scanUser(s.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM `+pgIdent(s.schema, "users")+` WHERE id = $1`,
		userID,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, NotFoundError{Op: op, Resource: "user"}
		}
		return User{}, err
	}
	return u, nil
}

// GetUserByEmail loads a user by case-insensitive email.
func (s *PostgresStore) GetUserByEmail(ctx context.Context, email string) (User, error) {
	const op = "identity.GetUserByEmail"

	norm := NormalizeEmail(email)
	if norm == "" {
		return User{}, pgInvalid(op, "missing email")
	}

	u, err := scanUser(s.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM `+pgIdent(s.schema, "users")+` WHERE email_norm = $1`,
		norm,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, NotFoundError{Op: op, Resource: "user"}
		}
		return User{}, err
	}
	return u, nil
}

// VerifyCredentials checks an email/password pair.
//
// Unknown email and wrong password both return ErrInvalidCredentials after one hash
// verification. A matching legacy (bcrypt) or under-parameterized hash is replaced
// with a fresh Argon2id hash on the way out.
func (s *PostgresStore) VerifyCredentials(ctx context.Context, email, pw string, now time.Time) (User, error) {
	const op = "identity.VerifyCredentials"

	norm := NormalizeEmail(email)
	if norm == "" || strings.TrimSpace(pw) == "" {
		return User{}, pgInvalid(op, "email and password are required")
	}

	users := pgIdent(s.schema, "users")
	creds := pgIdent(s.schema, "user_credentials")

	var (
		u    User
		hash string
	)
	err := s.pool.QueryRow(ctx,
		`SELECT u.id, u.name, u.email, u.premium, u.email_notifications, u.google_id,
		        u.created_at, u.updated_at, c.password_hash
		   FROM `+users+` u
		   JOIN `+creds+` c ON c.user_id = u.id
		  WHERE u.email_norm = $1`,
		norm,
	).Scan(
		&u.ID,
		&u.Name,
		&u.Email,
		&u.Premium,
		&u.EmailNotifications,
		&u.GoogleID,
		&u.CreatedAt,
		&u.UpdatedAt,
		&hash,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			_, _ = s.passwords.Verify(s.dummyHash, pw)
			return User{}, OpError{Op: op, Kind: ErrInvalidCredentials}
		}
		return User{}, err
	}

	matched, ok := s.matchPassword(hash, pw)
	if !ok {
		return User{}, OpError{Op: op, Kind: ErrInvalidCredentials}
	}

	if s.passwords.NeedsRehash(hash) {
		if fresh, err := s.passwords.Hash(matched); err == nil {
			// Best-effort: the login already succeeded.
			_ = s.setPasswordHash(ctx, s.pool, u.ID, fresh, now)
		}
	}

	return u, nil
}

// CheckPassword reports whether pw matches the user's current password.
func (s *PostgresStore) CheckPassword(ctx context.Context, userID, pw string) (bool, error) {
	const op = "identity.CheckPassword"

	var hash string
	err := s.pool.QueryRow(ctx,
		`SELECT password_hash FROM `+pgIdent(s.schema, "user_credentials")+` WHERE user_id = $1`,
		strings.TrimSpace(userID),
	).Scan(&hash)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, NotFoundError{Op: op, Resource: "user"}
		}
		return false, err
	}

	_, ok := s.matchPassword(hash, pw)
	return ok, nil
}

// matchPassword verifies pw against hash and returns the form that matched.
// Legacy bcrypt hashes written at sign-up were made from the trimmed password, so
// for those the trimmed form is tried too.
func (s *PostgresStore) matchPassword(hash, pw string) (string, bool) {
	if ok, err := s.passwords.Verify(hash, pw); err == nil && ok {
		return pw, true
	}
	if t := strings.TrimSpace(pw); t != pw && password.IsBcrypt(hash) {
		if ok, err := s.passwords.Verify(hash, t); err == nil && ok {
			return t, true
		}
	}
	return "", false
}

// UpdatePassword validates and hashes newPassword and stores it through q.
func (s *PostgresStore) UpdatePassword(ctx context.Context, q Querier, userID, newPassword string, now time.Time) error {
	const op = "identity.UpdatePassword"

	if strings.TrimSpace(newPassword) == "" {
		return pgInvalid(op, "password is required")
	}
	if err := s.passwords.Validate(newPassword); err != nil {
		return pgInvalid(op, err.Error())
	}

	hash, err := s.passwords.Hash(newPassword)
	if err != nil {
		return err
	}
	if err := s.setPasswordHash(ctx, q, userID, hash, now); err != nil {
		if errors.Is(err, ErrNotFound) {
			return NotFoundError{Op: op, Resource: "user"}
		}
		return err
	}
	return nil
}

func (s *PostgresStore) setPasswordHash(ctx context.Context, q Querier, userID, hash string, now time.Time) error {
	if q == nil {
		q = s.pool
	}
	tag, err := q.Exec(ctx,
		`UPDATE `+pgIdent(s.schema, "user_credentials")+`
		    SET password_hash = $2, updated_at = $3
		  WHERE user_id = $1`,
		userID, hash, now,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateEmail changes the user's email through q. A taken email yields a ConflictError.
func (s *PostgresStore) UpdateEmail(ctx context.Context, q Querier, userID, newEmail string, now time.Time) error {
	const op = "identity.UpdateEmail"

	newEmail = strings.TrimSpace(newEmail)
	if newEmail == "" || !strings.Contains(newEmail, "@") {
		return pgInvalid(op, "invalid email")
	}
	if q == nil {
		q = s.pool
	}

	tag, err := q.Exec(ctx,
		`UPDATE `+pgIdent(s.schema, "users")+`
		    SET email = $2, email_norm = $3, updated_at = $4
		  WHERE id = $1`,
		userID, newEmail, NormalizeEmail(newEmail), now,
	)
	if err != nil {
		if field, ok := pgClassifyUniqueViolation(err); ok {
			return ConflictError{Op: op, Field: field}
		}
		return err
	}
	if tag.RowsAffected() == 0 {
		return NotFoundError{Op: op, Resource: "user"}
	}
	return nil
}

// SetPremium marks the user premium through q.
func (s *PostgresStore) SetPremium(ctx context.Context, q Querier, userID string, now time.Time) error {
	const op = "identity.SetPremium"

	if q == nil {
		q = s.pool
	}
	tag, err := q.Exec(ctx,
		`UPDATE `+pgIdent(s.schema, "users")+` SET premium = true, updated_at = $2 WHERE id = $1`,
		userID, now,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return NotFoundError{Op: op, Resource: "user"}
	}
	return nil
}

// SetEmailNotifications updates the notification flag and returns the updated user.
func (s *PostgresStore) SetEmailNotifications(ctx context.Context, userID string, enabled bool, now time.Time) (User, error) {
	const op = "identity.SetEmailNotifications"

	u, err := scanUser(s.pool.QueryRow(ctx,
		`UPDATE `+pgIdent(s.schema, "users")+`
		    SET email_notifications = $2, updated_at = $3
		  WHERE id = $1
		 RETURNING `+userColumns,
		userID, enabled, now,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, NotFoundError{Op: op, Resource: "user"}
		}
		return User{}, err
	}
	return u, nil
}

// SaveGoogleLink stores OAuth credentials. A nil GoogleID or empty RefreshToken keeps
// the stored value, since Google omits both on token refresh.
func (s *PostgresStore) SaveGoogleLink(ctx context.Context, userID string, link GoogleLink, now time.Time) error {
	const op = "identity.SaveGoogleLink"

	tag, err := s.pool.Exec(ctx,
		`UPDATE `+pgIdent(s.schema, "users")+`
		    SET google_id = COALESCE($2, google_id),
		        google_access_token = $3,
		        google_refresh_token = COALESCE(NULLIF($4, ''), google_refresh_token),
		        google_token_expiry = $5,
		        updated_at = $6
		  WHERE id = $1`,
		userID, link.GoogleID, link.AccessToken, link.RefreshToken, link.Expiry, now,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return NotFoundError{Op: op, Resource: "user"}
	}
	return nil
}

// GetGoogleLink loads the stored Google credentials. An unlinked account returns
// a NotFoundError for resource "google_link".
func (s *PostgresStore) GetGoogleLink(ctx context.Context, userID string) (GoogleLink, error) {
	const op = "identity.GetGoogleLink"

	var (
		link    GoogleLink
		access  *string
		refresh *string
	)
	err := s.pool.QueryRow(ctx,
		`SELECT google_id, google_access_token, google_refresh_token, google_token_expiry
		   FROM `+pgIdent(s.schema, "users")+`
		  WHERE id = $1`,
		userID,
	).Scan(&link.GoogleID, &access, &refresh, &link.Expiry)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return GoogleLink{}, NotFoundError{Op: op, Resource: "user"}
		}
		return GoogleLink{}, err
	}
	if access == nil || *access == "" {
		return GoogleLink{}, NotFoundError{Op: op, Resource: "google_link"}
	}

	link.AccessToken = *access
	if refresh != nil {
		link.RefreshToken = *refresh
	}
	return link, nil
}

// ClearGoogleLink removes the linked account and its tokens.
func (s *PostgresStore) ClearGoogleLink(ctx context.Context, userID string, now time.Time) error {
	const op = "identity.ClearGoogleLink"

	tag, err := s.pool.Exec(ctx,
		`UPDATE `+pgIdent(s.schema, "users")+`
		    SET google_id = NULL,
		        google_access_token = NULL,
		        google_refresh_token = NULL,
		        google_token_expiry = NULL,
		        updated_at = $2
		  WHERE id = $1`,
		userID, now,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return NotFoundError{Op: op, Resource: "user"}
	}
	return nil
}

// ---- helpers ----

func pgInvalid(op, msg string) error {
	return OpError{Op: op, Kind: ErrInvalidInput, Msg: msg}
}

func pgIdentIsValid(s string) bool {
	return pgIdentRe.MatchString(s)
}

// pgIdent quotes a schema-qualified identifier: "schema"."name".
func pgIdent(schema, name string) string {
	return pgx.Identifier{schema, name}.Sanitize()
}

func pgClassifyUniqueViolation(err error) (field string, ok bool) {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return "", false
	}
	if pgErr.Code != "23505" { // unique_violation
		return "", false
	}

	c := strings.ToLower(strings.TrimSpace(pgErr.ConstraintName))
	switch {
	case c == "uq_users_email_norm", strings.Contains(c, "email"):
		return "email", true
	default:
		return "unique", true
	}
}
