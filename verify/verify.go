// Package verify issues and checks short one-time codes bound to a
// (target, purpose) pair. Only a SHA-256 hash of the current code is
// persisted, together with an attempt counter and an expiry; the raw code
// travels out of band (email) and the carrier state travels in a signed
// token minted at issue time.
package verify

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/wrenhollow/authcore/internal/randx"
	"github.com/wrenhollow/authcore/token"
)

var (
	// ErrNotFound covers absent and expired records. Callers collapse it
	// with the other failures into one generic message.
	ErrNotFound = errors.New("verification record not found")
	// ErrMismatch is returned when the provided code hashes differently.
	ErrMismatch = errors.New("verification code mismatch")
	// ErrAttemptsExceeded is returned once the retry budget is spent.
	ErrAttemptsExceeded = errors.New("verification attempts exceeded")
	// ErrUnavailable wraps store/backend failures.
	ErrUnavailable = errors.New("verification backend unavailable")
)

const (
	// DefaultCodeLength is the number of symbols in an issued code.
	DefaultCodeLength = 6
	// DefaultTTL bounds how long an issued code stays checkable.
	DefaultTTL = 10 * time.Minute
	// DefaultMaxAttempts is the failed-check budget per record.
	DefaultMaxAttempts = 5
)

// Record is the persisted shape of a pending verification.
type Record struct {
	CodeHash  [32]byte
	Attempts  uint16
	ExpiresAt int64
}

// Store persists one Record per (target, purpose), last writer wins.
type Store interface {
	// Put upserts the record, resetting any prior attempt counter.
	Put(ctx context.Context, target, purpose string, rec Record, ttl time.Duration) error
	// Consume atomically checks providedHash against the stored record:
	// on match it deletes the record and returns nil; on mismatch it
	// increments the attempt counter and returns ErrMismatch; absent and
	// expired records return ErrNotFound; a spent budget returns
	// ErrAttemptsExceeded before any comparison.
	Consume(ctx context.Context, target, purpose string, providedHash [32]byte, maxAttempts int, now int64) error
	// Delete removes the record. Best-effort: missing records are not an
	// error.
	Delete(ctx context.Context, target, purpose string) error
}

// Claims is the payload of the signed carrier token that threads a
// verification through its multi-step flow.
type Claims struct {
	Target        string          `json:"target"`
	Purpose       string          `json:"purpose"`
	Payload       json.RawMessage `json:"payload,omitempty"`
	EmailVerified bool            `json:"emailVerified,omitempty"`
	ExpiresAt     int64           `json:"expiresAt"`
}

// Challenge is returned by Issue. Code is delivered out of band; Token is
// handed to the client and echoed back on the next step.
type Challenge struct {
	Code      string
	Token     string
	ExpiresAt time.Time
}

// Config tunes an Engine. Zero values fall back to the defaults above.
type Config struct {
	CodeLength  int
	TTL         time.Duration
	MaxAttempts int
}

// Engine is the verification state machine over a Store. Safe for
// concurrent use.
type Engine struct {
	store       Store
	codec       *token.Codec
	codeLength  int
	ttl         time.Duration
	maxAttempts int
	now         func() time.Time
}

// NewEngine returns an Engine over store, minting carrier tokens with codec.
func NewEngine(store Store, codec *token.Codec, cfg Config) (*Engine, error) {
	if store == nil {
		return nil, errors.New("verify: store is required")
	}
	if codec == nil {
		return nil, errors.New("verify: token codec is required")
	}
	e := &Engine{
		store:       store,
		codec:       codec,
		codeLength:  cfg.CodeLength,
		ttl:         cfg.TTL,
		maxAttempts: cfg.MaxAttempts,
		now:         time.Now,
	}
	if e.codeLength <= 0 {
		e.codeLength = DefaultCodeLength
	}
	if e.ttl <= 0 {
		e.ttl = DefaultTTL
	}
	if e.maxAttempts <= 0 {
		e.maxAttempts = DefaultMaxAttempts
	}
	return e, nil
}

// SetClock replaces the engine's time source. Intended for tests.
func (e *Engine) SetClock(now func() time.Time) {
	if now != nil {
		e.now = now
	}
}

// Issue generates a fresh code for (target, purpose), upserting over any
// pending record for the same pair, and mints the signed carrier token with
// payload embedded. The raw code is returned for out-of-band delivery and
// is never persisted.
func (e *Engine) Issue(ctx context.Context, target, purpose string, payload any) (*Challenge, error) {
	code, err := randx.NewCode(e.codeLength)
	if err != nil {
		return nil, err
	}

	expiresAt := e.now().Add(e.ttl)
	rec := Record{
		CodeHash:  HashCode(code),
		Attempts:  0,
		ExpiresAt: expiresAt.Unix(),
	}
	if err := e.store.Put(ctx, target, purpose, rec, e.ttl); err != nil {
		return nil, err
	}

	var raw json.RawMessage
	if payload != nil {
		raw, err = json.Marshal(payload)
		if err != nil {
			return nil, err
		}
	}
	tok, err := e.codec.Encode(Claims{
		Target:    target,
		Purpose:   purpose,
		Payload:   raw,
		ExpiresAt: expiresAt.Unix(),
	})
	if err != nil {
		return nil, err
	}

	return &Challenge{Code: code, Token: tok, ExpiresAt: expiresAt}, nil
}

// Check consumes the pending record for (target, purpose) against code.
// Success deletes the record (single use). Every failed check burns one
// attempt regardless of the failure sub-reason; once the budget is spent
// even the correct code fails until the record expires.
func (e *Engine) Check(ctx context.Context, target, purpose, code string) error {
	provided := HashCode(NormalizeCode(code))
	return e.store.Consume(ctx, target, purpose, provided, e.maxAttempts, e.now().Unix())
}

// Forget drops any pending record for (target, purpose). Best-effort
// cleanup after a consuming step; failures are swallowed by callers since
// expiry makes stale records harmless.
func (e *Engine) Forget(ctx context.Context, target, purpose string) error {
	return e.store.Delete(ctx, target, purpose)
}

// NormalizeCode uppercases and trims a user-entered code. Codes are issued
// from an uppercase alphabet.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// HashCode returns the SHA-256 digest of a code. A fast hash is fine here:
// the operative protections are the attempt budget and the expiry, not
// hash cost.
func HashCode(code string) [32]byte {
	return sha256.Sum256([]byte(code))
}
