package authcore

import (
	"context"
	"errors"

	"github.com/wrenhollow/authcore/session"
)

// Login authenticates an email or username against the local password
// credential and mints a session. Unknown identifier, missing password
// credential, and wrong password are indistinguishable to the caller, and
// every path performs exactly one hashing operation so response timing
// does not leak which one occurred.
func (e *Engine) Login(ctx context.Context, identifier, secret string, meta session.Meta) (*Session, error) {
	user, err := e.store.FindUserByIdentifier(ctx, identifier)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			return nil, err
		}
		e.burnHash(secret)
		e.metrics.login("failure")
		e.emit(ctx, "login", "", identifier, false, err)
		return nil, ErrInvalidCredentials
	}

	cred, err := e.store.FindCredential(ctx, ProviderPassword, user.ID)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			return nil, err
		}
		e.burnHash(secret)
		e.metrics.login("failure")
		e.emit(ctx, "login", user.ID, identifier, false, err)
		return nil, ErrInvalidCredentials
	}

	if !e.hasher.Verify(secret, cred.PasswordHash) {
		e.metrics.login("failure")
		e.emit(ctx, "login", user.ID, identifier, false, ErrInvalidCredentials)
		return nil, ErrInvalidCredentials
	}

	rec, err := e.sessions.Create(ctx, user.ID, meta)
	if err != nil {
		return nil, err
	}

	e.metrics.login("success")
	e.metrics.sessionIssued()
	e.emit(ctx, "login", user.ID, identifier, true, nil)
	return &Session{Token: rec.Token, UserID: rec.UserID, ExpiresAt: rec.ExpiresAt}, nil
}

// burnHash spends one hashing operation on a dummy value so failure paths
// that never reach Verify still cost the same as a real comparison.
func (e *Engine) burnHash(secret string) {
	_, _ = e.hasher.Hash(secret)
}
