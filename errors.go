package authcore

import "errors"

var (
	// ErrInvalidCredentials is the uniform login failure. Unknown
	// identifier, missing password credential, and wrong password all
	// surface as this one value; the cause is logged server-side only.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrInvalidCode is the uniform verification failure. Not found,
	// expired, mismatched, and attempts-exceeded all collapse into it.
	ErrInvalidCode = errors.New("invalid code")
	// ErrInvalidToken covers malformed, tampered, expired, and
	// wrong-purpose signed tokens alike.
	ErrInvalidToken = errors.New("invalid token")
	// ErrAccountExists is returned when signup targets an email or
	// username that is already taken.
	ErrAccountExists = errors.New("account already exists")
	// ErrWeakPassword is returned when a candidate password fails policy,
	// including appearing in the breach corpus.
	ErrWeakPassword = errors.New("password does not meet requirements")
	// ErrInvalidInput is returned for malformed identifiers and profile
	// fields before any deeper logic runs.
	ErrInvalidInput = errors.New("invalid input")
	// ErrResendRateLimited is returned when the resend budget for a
	// (target, purpose) pair is spent.
	ErrResendRateLimited = errors.New("resend rate limited")
	// ErrMailDelivery is returned when the verification mail cannot be
	// sent. The pending record stays behind for a later resend.
	ErrMailDelivery = errors.New("mail delivery failed")
	// ErrSessionNotFound covers unknown and expired session tokens alike.
	ErrSessionNotFound = errors.New("session not found")
	// ErrUnknownProvider is returned for an external provider name with
	// no registered implementation.
	ErrUnknownProvider = errors.New("unknown identity provider")
	// ErrNotFound is the sentinel Store implementations return for absent
	// rows. It never reaches clients directly.
	ErrNotFound = errors.New("not found")
)
