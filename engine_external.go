package authcore

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/google/uuid"

	"github.com/wrenhollow/authcore/session"
)

// ExternalAuth is the result of an external identity login. Exactly one
// of Session and Challenge is set: Challenge means the provider did not
// verify the email and the caller must run the code step before a
// session is issued.
type ExternalAuth struct {
	Session   *Session
	Challenge *Challenge
}

// externalClaims rides inside the verify-email carrier token while the
// unverified identity waits for its code.
type externalClaims struct {
	Provider   string `json:"provider"`
	ProviderID string `json:"providerId"`
	Email      string `json:"email"`
	Name       string `json:"name"`
	AvatarURL  string `json:"avatarUrl,omitempty"`
}

// AuthenticateExternal exchanges a provider artifact for a verified
// identity and reconciles it into a local account. Identities with an
// unverified email are parked behind a verify-email challenge; nothing
// is written to the account store until the code is confirmed.
func (e *Engine) AuthenticateExternal(ctx context.Context, providerName, artifact string, meta session.Meta) (*ExternalAuth, error) {
	provider, err := e.providers.Lookup(providerName)
	if err != nil {
		return nil, ErrUnknownProvider
	}

	id, err := provider.Exchange(ctx, artifact)
	if err != nil {
		e.metrics.externalLogin(providerName, "failure")
		e.emit(ctx, "external.login", "", providerName, false, err)
		return nil, ErrInvalidToken
	}
	email, err := normalizeEmail(id.Email)
	if err != nil {
		return nil, ErrInvalidInput
	}

	ext := externalClaims{
		Provider:   providerName,
		ProviderID: id.ProviderID,
		Email:      email,
		Name:       id.Name,
		AvatarURL:  id.AvatarURL,
	}

	if !id.EmailVerified {
		ch, err := e.issueChallenge(ctx, email, PurposeVerifyEmail, ext)
		if err != nil {
			return nil, err
		}
		e.emit(ctx, "external.login", "", providerName, true, nil)
		return &ExternalAuth{Challenge: ch}, nil
	}

	sess, err := e.reconcileExternal(ctx, ext, meta)
	if err != nil {
		e.metrics.externalLogin(providerName, "failure")
		return nil, err
	}
	e.metrics.externalLogin(providerName, "success")
	return &ExternalAuth{Session: sess}, nil
}

// ConfirmExternalEmail consumes the verify-email code issued for an
// unverified external identity, then reconciles and mints the session.
func (e *Engine) ConfirmExternalEmail(ctx context.Context, tok, code string, meta session.Meta) (*Session, error) {
	claims, err := e.confirmChallenge(ctx, tok, code, PurposeVerifyEmail)
	if err != nil {
		return nil, err
	}

	var ext externalClaims
	if err := json.Unmarshal(claims.Payload, &ext); err != nil || ext.ProviderID == "" {
		return nil, ErrInvalidToken
	}

	sess, err := e.reconcileExternal(ctx, ext, meta)
	if err != nil {
		e.metrics.externalLogin(ext.Provider, "failure")
		return nil, err
	}
	e.metrics.externalLogin(ext.Provider, "success")
	return sess, nil
}

// reconcileExternal links a verified external identity to a local
// account: an existing credential wins, then an email match links a new
// credential, then a fresh user is created. The write path and the
// session insert share one transaction.
func (e *Engine) reconcileExternal(ctx context.Context, ext externalClaims, meta session.Meta) (*Session, error) {
	provider := Provider(ext.Provider)

	var rec *session.Record
	err := e.store.WithTx(ctx, func(tx Store) error {
		userID, err := e.resolveExternalUser(ctx, tx, provider, ext)
		if err != nil {
			return err
		}
		rec, err = e.sessions.CreateIn(ctx, tx.Sessions(), userID, meta)
		return err
	})
	if err != nil {
		e.emit(ctx, "external.reconcile", "", ext.Email, false, err)
		return nil, err
	}

	e.metrics.sessionIssued()
	e.emit(ctx, "external.reconcile", rec.UserID, ext.Email, true, nil)
	return &Session{Token: rec.Token, UserID: rec.UserID, ExpiresAt: rec.ExpiresAt}, nil
}

func (e *Engine) resolveExternalUser(ctx context.Context, tx Store, provider Provider, ext externalClaims) (string, error) {
	cred, err := tx.FindCredential(ctx, provider, ext.ProviderID)
	if err == nil {
		return cred.UserID, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return "", err
	}

	now := e.now()
	link := func(userID string) error {
		return tx.UpsertCredential(ctx, &Credential{
			UserID:     userID,
			Provider:   provider,
			ProviderID: ext.ProviderID,
			CreatedAt:  now,
			UpdatedAt:  now,
		})
	}

	user, err := tx.FindUserByEmail(ctx, ext.Email)
	if err == nil {
		return user.ID, link(user.ID)
	}
	if !errors.Is(err, ErrNotFound) {
		return "", err
	}

	fresh := &User{
		ID:        uuid.NewString(),
		Email:     ext.Email,
		Name:      ext.Name,
		AvatarURL: ext.AvatarURL,
		CreatedAt: now,
	}
	if err := tx.CreateUser(ctx, fresh); err != nil {
		return "", err
	}
	return fresh.ID, link(fresh.ID)
}
