package authcore

import (
	"context"
	"errors"

	"github.com/wrenhollow/authcore/session"
)

// ResolveSession maps a bearer token to the owning user id. Unknown and
// expired tokens both return ErrSessionNotFound.
func (e *Engine) ResolveSession(ctx context.Context, tok string) (string, error) {
	userID, err := e.sessions.Resolve(ctx, tok)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) || errors.Is(err, ErrNotFound) {
			return "", ErrSessionNotFound
		}
		return "", err
	}
	return userID, nil
}

// CurrentUser resolves the session and loads its user row.
func (e *Engine) CurrentUser(ctx context.Context, tok string) (*User, error) {
	userID, err := e.ResolveSession(ctx, tok)
	if err != nil {
		return nil, err
	}
	user, err := e.store.FindUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}
	return user, nil
}

// Logout destroys one session. Best-effort: an already-gone token is not
// an error.
func (e *Engine) Logout(ctx context.Context, tok string) error {
	if err := e.sessions.Destroy(ctx, tok); err != nil {
		return err
	}
	e.emit(ctx, "logout", "", "", true, nil)
	return nil
}

// LogoutAll destroys every session the user holds across devices.
func (e *Engine) LogoutAll(ctx context.Context, userID string) error {
	if err := e.sessions.DestroyAll(ctx, userID); err != nil {
		return err
	}
	e.emit(ctx, "logout.all", userID, "", true, nil)
	return nil
}
