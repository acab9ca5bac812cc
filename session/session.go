// Package session issues, resolves, and destroys durable login sessions.
// A session is one row per logged-in device keyed by an opaque random
// bearer token; expiry is a fixed window set at creation and never slides.
package session

import (
	"context"
	"errors"
	"time"

	"github.com/wrenhollow/authcore/internal/randx"
)

var (
	// ErrNotFound covers unknown and expired tokens alike; callers must
	// not distinguish the two.
	ErrNotFound = errors.New("session not found")
)

const (
	// DefaultLifetime is the long-lived session window.
	DefaultLifetime = 30 * 24 * time.Hour
	// ShortLifetime is the mid-flow window for sessions minted before a
	// pending email verification completes.
	ShortLifetime = 10 * time.Minute
)

// Record is one persisted session row.
type Record struct {
	Token     string
	UserID    string
	UserAgent string
	Location  string
	CreatedAt time.Time
	ExpiresAt time.Time
}

// Meta carries the request-scoped context denormalized onto the session
// row. The route layer fills it; this package never touches cookies or
// HTTP requests.
type Meta struct {
	UserAgent string
	Location  string
}

// Store persists session rows. Implementations enforce token uniqueness.
type Store interface {
	Insert(ctx context.Context, rec *Record) error
	FindByToken(ctx context.Context, tok string) (*Record, error)
	DeleteByToken(ctx context.Context, tok string) error
	DeleteByUser(ctx context.Context, userID string) error
}

// Manager mints and resolves sessions over a Store. Safe for concurrent
// use.
type Manager struct {
	store    Store
	lifetime time.Duration
	now      func() time.Time
}

// NewManager returns a Manager. A non-positive lifetime falls back to
// DefaultLifetime.
func NewManager(store Store, lifetime time.Duration) (*Manager, error) {
	if store == nil {
		return nil, errors.New("session: store is required")
	}
	if lifetime <= 0 {
		lifetime = DefaultLifetime
	}
	return &Manager{store: store, lifetime: lifetime, now: time.Now}, nil
}

// SetClock replaces the manager's time source. Intended for tests.
func (m *Manager) SetClock(now func() time.Time) {
	if now != nil {
		m.now = now
	}
}

// Create mints a session for userID against the manager's own store.
func (m *Manager) Create(ctx context.Context, userID string, meta Meta) (*Record, error) {
	return m.CreateIn(ctx, m.store, userID, meta)
}

// CreateIn mints a session against st, which may be a transaction-scoped
// store so the session row commits atomically with account creation.
func (m *Manager) CreateIn(ctx context.Context, st Store, userID string, meta Meta) (*Record, error) {
	tok, err := randx.NewSessionToken()
	if err != nil {
		return nil, err
	}

	now := m.now()
	rec := &Record{
		Token:     tok,
		UserID:    userID,
		UserAgent: meta.UserAgent,
		Location:  meta.Location,
		CreatedAt: now,
		ExpiresAt: now.Add(m.lifetime),
	}
	if err := st.Insert(ctx, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// Resolve maps a bearer token to its owning user id. Unknown and expired
// tokens both return ErrNotFound; expiry is not slid on read.
func (m *Manager) Resolve(ctx context.Context, tok string) (string, error) {
	if tok == "" {
		return "", ErrNotFound
	}
	rec, err := m.store.FindByToken(ctx, tok)
	if err != nil {
		return "", err
	}
	if !rec.ExpiresAt.After(m.now()) {
		return "", ErrNotFound
	}
	return rec.UserID, nil
}

// Destroy deletes the session row. Best-effort: a token that is already
// gone is not an error, since "no valid session" already holds.
func (m *Manager) Destroy(ctx context.Context, tok string) error {
	if tok == "" {
		return nil
	}
	if err := m.store.DeleteByToken(ctx, tok); err != nil && !errors.Is(err, ErrNotFound) {
		return err
	}
	return nil
}

// DestroyAll deletes every session row owned by userID.
func (m *Manager) DestroyAll(ctx context.Context, userID string) error {
	return m.store.DeleteByUser(ctx, userID)
}

// Lifetime reports the fixed expiry window applied at creation.
func (m *Manager) Lifetime() time.Duration {
	return m.lifetime
}
