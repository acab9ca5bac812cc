package authcore

import (
	"context"
	"fmt"
	"time"

	"github.com/wrenhollow/authcore/session"
)

// Purpose is the closed set of reasons a verification code or carrier
// token is issued. Switches over Purpose include a default that fails
// loudly, so adding a value forces every branch site to be revisited.
type Purpose int

const (
	// PurposeSignup gates the email-verification step of signup.
	PurposeSignup Purpose = iota + 1
	// PurposePasswordReset gates a password reset.
	PurposePasswordReset
	// PurposeVerifyEmail gates session issuance for an external identity
	// whose provider did not verify the email.
	PurposeVerifyEmail
)

// Purposes lists every valid Purpose. Exhaustiveness tests range over it.
func Purposes() []Purpose {
	return []Purpose{PurposeSignup, PurposePasswordReset, PurposeVerifyEmail}
}

// String returns the wire form of the purpose, used as the verification
// store key segment and inside carrier tokens.
func (p Purpose) String() string {
	switch p {
	case PurposeSignup:
		return "signup"
	case PurposePasswordReset:
		return "password-reset"
	case PurposeVerifyEmail:
		return "verify-email"
	default:
		return fmt.Sprintf("purpose(%d)", int(p))
	}
}

// ParsePurpose maps a wire string back to its Purpose.
func ParsePurpose(s string) (Purpose, error) {
	switch s {
	case "signup":
		return PurposeSignup, nil
	case "password-reset":
		return PurposePasswordReset, nil
	case "verify-email":
		return PurposeVerifyEmail, nil
	default:
		return 0, fmt.Errorf("unknown purpose %q", s)
	}
}

// Provider identifies how a credential row authenticates. ProviderPassword
// is the distinguished local value; everything else names an external
// identity provider.
type Provider string

// ProviderPassword is the local password provider.
const ProviderPassword Provider = "password"

// User is one account row.
type User struct {
	ID        string
	Username  string
	Email     string
	Name      string
	DOB       string
	AvatarURL string
	CreatedAt time.Time
}

// Credential is one (user, provider) link. For ProviderPassword the
// ProviderID equals the user id and PasswordHash is set; for external
// providers ProviderID is the provider-scoped external id.
type Credential struct {
	UserID       string
	Provider     Provider
	ProviderID   string
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Session is the client-facing result of session issuance.
type Session struct {
	Token     string
	UserID    string
	ExpiresAt time.Time
}

// Store is the account store the engine operates on. Implementations
// return ErrNotFound for absent rows and enforce the unique constraints:
// users unique on email and username, credentials unique on
// (provider, provider id), at most one ProviderPassword row per user.
type Store interface {
	// WithTx runs fn against a transaction-scoped Store. fn returning an
	// error rolls everything back. Nested calls are not required.
	WithTx(ctx context.Context, fn func(tx Store) error) error

	CreateUser(ctx context.Context, u *User) error
	FindUserByID(ctx context.Context, id string) (*User, error)
	FindUserByEmail(ctx context.Context, email string) (*User, error)
	// FindUserByIdentifier resolves an email or username.
	FindUserByIdentifier(ctx context.Context, identifier string) (*User, error)

	// UpsertCredential inserts or updates on the (provider, provider id)
	// key. Password resets go through this path.
	UpsertCredential(ctx context.Context, c *Credential) error
	FindCredential(ctx context.Context, provider Provider, providerID string) (*Credential, error)
	FindCredentialsByUser(ctx context.Context, userID string) ([]Credential, error)

	// Sessions exposes the session rows of the same backing store, so a
	// session insert can join the surrounding transaction.
	Sessions() session.Store
}
