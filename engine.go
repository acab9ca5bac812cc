package authcore

import (
	"context"
	"log/slog"
	netmail "net/mail"
	"regexp"
	"strings"
	"time"

	"github.com/wrenhollow/authcore/audit"
	"github.com/wrenhollow/authcore/identity"
	"github.com/wrenhollow/authcore/internal/rate"
	"github.com/wrenhollow/authcore/mail"
	"github.com/wrenhollow/authcore/session"
	"github.com/wrenhollow/authcore/token"
	"github.com/wrenhollow/authcore/verify"
)

// passwordHasher is the hashing seam. The engine depends on the interface
// so tests can count hashing calls without touching timing.
type passwordHasher interface {
	Hash(secret string) (string, error)
	Verify(secret, record string) bool
}

// BreachChecker reports whether a candidate password appears in a known
// breach corpus. Implementations must fail open.
type BreachChecker interface {
	IsCommon(ctx context.Context, password string) bool
}

// Engine is the credential and session lifecycle core. Construct it with
// New().Build(); an Engine is immutable after construction and safe for
// concurrent use.
type Engine struct {
	config    Config
	logger    *slog.Logger
	store     Store
	mailer    mail.Mailer
	hasher    passwordHasher
	codec     *token.Codec
	verifier  *verify.Engine
	sessions  *session.Manager
	resend    *rate.Limiter
	breach    BreachChecker
	providers *identity.Registry
	audit     *audit.Dispatcher
	metrics   *Metrics
	clock     func() time.Time
}

// Close flushes the audit pipeline. Safe on a nil Engine.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	e.audit.Close()
}

// SetClock replaces the time source of the engine, the verification
// engine, and the session manager. Intended for tests.
func (e *Engine) SetClock(now func() time.Time) {
	if now == nil {
		return
	}
	e.clock = now
	e.verifier.SetClock(now)
	e.sessions.SetClock(now)
}

func (e *Engine) now() time.Time {
	if e.clock != nil {
		return e.clock()
	}
	return time.Now()
}

func (e *Engine) emit(ctx context.Context, eventType, userID, target string, success bool, cause error) {
	ev := audit.Event{
		Timestamp: time.Now(),
		EventType: eventType,
		UserID:    userID,
		Target:    target,
		Success:   success,
	}
	if cause != nil {
		ev.Error = cause.Error()
	}
	e.audit.Emit(ctx, ev)
}

var usernameRe = regexp.MustCompile(`^[a-zA-Z0-9_]{3,24}$`)

func normalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	addr, err := netmail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", ErrInvalidInput
	}
	return email, nil
}

func validateUsername(username string) error {
	if !usernameRe.MatchString(username) {
		return ErrInvalidInput
	}
	return nil
}

// checkPassword enforces the static policy and then the soft breach
// check. The breach lookup is bounded and fails open inside the checker.
func (e *Engine) checkPassword(ctx context.Context, candidate string) error {
	n := len(candidate)
	if n < e.config.Policy.MinLength || n > e.config.Policy.MaxLength {
		return ErrWeakPassword
	}
	if e.breach != nil && e.breach.IsCommon(ctx, candidate) {
		return ErrWeakPassword
	}
	return nil
}
