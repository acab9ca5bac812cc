// Package pgstore is the Postgres account store. One Store wraps either a
// pool or a transaction behind the same DB interface, so the engine's
// transactional flows run against the exact same query code.
//
// Expected schema: see schema.sql in this directory.
package pgstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/wrenhollow/authcore"
	"github.com/wrenhollow/authcore/session"
)

// DB is the subset of pgx used by the store. *pgxpool.Pool, pgx.Tx, and
// pgxmock pools all satisfy it.
type DB interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Store implements authcore.Store over Postgres.
type Store struct {
	db DB
}

var _ authcore.Store = (*Store)(nil)

// New returns a Store over db.
func New(db DB) *Store {
	return &Store{db: db}
}

// WithTx begins a transaction and runs fn against a transaction-scoped
// Store. Commit on success, rollback on error or panic; panics are
// rethrown.
func (s *Store) WithTx(ctx context.Context, fn func(tx authcore.Store) error) (err error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return err
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback(ctx)
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback(ctx)
			return
		}
		err = tx.Commit(ctx)
	}()

	err = fn(&Store{db: tx})
	return err
}

// Sessions exposes the session rows of the same handle, so a session
// insert can join the surrounding transaction.
func (s *Store) Sessions() session.Store {
	return &sessionStore{db: s.db}
}

// SweepExpiredSessions deletes rows whose expiry has passed. Expired
// sessions are already treated as absent on read; this is housekeeping
// for an optional periodic job.
func (s *Store) SweepExpiredSessions(ctx context.Context) (int64, error) {
	tag, err := s.db.Exec(ctx, `DELETE FROM sessions WHERE expires_at <= now()`)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// CreateUser inserts a user row. The store's unique constraints on email
// and username surface as plain errors; the engine pre-checks both.
func (s *Store) CreateUser(ctx context.Context, u *authcore.User) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO users (id, username, email, name, dob, avatar_url, created_at)
		VALUES ($1, NULLIF($2, ''), $3, $4, $5, $6, $7)
	`, u.ID, u.Username, u.Email, u.Name, u.DOB, u.AvatarURL, u.CreatedAt)
	if err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

const userColumns = `id, COALESCE(username, ''), email, COALESCE(name, ''), COALESCE(dob, ''), COALESCE(avatar_url, ''), created_at`

func (s *Store) scanUser(row pgx.Row) (*authcore.User, error) {
	var u authcore.User
	err := row.Scan(&u.ID, &u.Username, &u.Email, &u.Name, &u.DOB, &u.AvatarURL, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, authcore.ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}

// FindUserByID loads one user row by primary key.
func (s *Store) FindUserByID(ctx context.Context, id string) (*authcore.User, error) {
	return s.scanUser(s.db.QueryRow(ctx, `
		SELECT `+userColumns+` FROM users WHERE id = $1
	`, id))
}

// FindUserByEmail loads one user row by email.
func (s *Store) FindUserByEmail(ctx context.Context, email string) (*authcore.User, error) {
	return s.scanUser(s.db.QueryRow(ctx, `
		SELECT `+userColumns+` FROM users WHERE email = $1
	`, email))
}

// FindUserByIdentifier resolves an email or username.
func (s *Store) FindUserByIdentifier(ctx context.Context, identifier string) (*authcore.User, error) {
	return s.scanUser(s.db.QueryRow(ctx, `
		SELECT `+userColumns+` FROM users WHERE email = $1 OR username = $1
	`, identifier))
}

// UpsertCredential inserts or updates on the (provider, provider_id)
// unique key. Password resets land here as updates.
func (s *Store) UpsertCredential(ctx context.Context, c *authcore.Credential) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO account_credentials (user_id, provider, provider_id, password_hash, created_at, updated_at)
		VALUES ($1, $2, $3, NULLIF($4, ''), $5, $6)
		ON CONFLICT (provider, provider_id)
		DO UPDATE SET password_hash = EXCLUDED.password_hash, updated_at = EXCLUDED.updated_at
	`, c.UserID, string(c.Provider), c.ProviderID, c.PasswordHash, c.CreatedAt, c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert credential: %w", err)
	}
	return nil
}

const credentialColumns = `user_id, provider, provider_id, COALESCE(password_hash, ''), created_at, updated_at`

// FindCredential loads one credential row by its unique key.
func (s *Store) FindCredential(ctx context.Context, provider authcore.Provider, providerID string) (*authcore.Credential, error) {
	var c authcore.Credential
	err := s.db.QueryRow(ctx, `
		SELECT `+credentialColumns+` FROM account_credentials
		WHERE provider = $1 AND provider_id = $2
	`, string(provider), providerID).
		Scan(&c.UserID, &c.Provider, &c.ProviderID, &c.PasswordHash, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, authcore.ErrNotFound
		}
		return nil, err
	}
	return &c, nil
}

// FindCredentialsByUser lists every credential row linked to a user.
func (s *Store) FindCredentialsByUser(ctx context.Context, userID string) ([]authcore.Credential, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+credentialColumns+` FROM account_credentials
		WHERE user_id = $1 ORDER BY provider, provider_id
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []authcore.Credential
	for rows.Next() {
		var c authcore.Credential
		if err := rows.Scan(&c.UserID, &c.Provider, &c.ProviderID, &c.PasswordHash, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
