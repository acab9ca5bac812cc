package authcore

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/google/uuid"

	"github.com/wrenhollow/authcore/session"
)

// SignupProfile is the profile collected at the start of signup. It rides
// inside the signed carrier token until the account row is created.
type SignupProfile struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	DOB   string `json:"dob"`
}

// BeginSignup validates the profile, issues a signup code to the email,
// and returns the carrier token embedding the profile. No rows are
// written to the account store yet.
func (e *Engine) BeginSignup(ctx context.Context, profile SignupProfile) (*Challenge, error) {
	email, err := normalizeEmail(profile.Email)
	if err != nil {
		return nil, err
	}
	if profile.Name == "" {
		return nil, ErrInvalidInput
	}
	profile.Email = email

	if _, err := e.store.FindUserByEmail(ctx, email); err == nil {
		e.emit(ctx, "signup.begin", "", email, false, ErrAccountExists)
		return nil, ErrAccountExists
	} else if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	return e.issueChallenge(ctx, email, PurposeSignup, profile)
}

// ConfirmSignup consumes the signup code and returns the short-lived
// token marked emailVerified that gates the final step.
func (e *Engine) ConfirmSignup(ctx context.Context, tok, code string) (*Challenge, error) {
	claims, err := e.confirmChallenge(ctx, tok, code, PurposeSignup)
	if err != nil {
		return nil, err
	}
	return e.mintVerified(claims, PurposeSignup)
}

// CompleteSignup creates the user, the password credential, and the first
// session in one transaction, gated by a verified signup token. A partial
// account is never observable.
func (e *Engine) CompleteSignup(ctx context.Context, tok, username, secret string, meta session.Meta) (*Session, error) {
	claims, err := e.decodeClaims(tok, PurposeSignup, true)
	if err != nil {
		e.emit(ctx, "signup.complete", "", "", false, err)
		return nil, err
	}

	var profile SignupProfile
	if err := json.Unmarshal(claims.Payload, &profile); err != nil {
		return nil, ErrInvalidToken
	}

	if err := validateUsername(username); err != nil {
		return nil, err
	}
	if err := e.checkPassword(ctx, secret); err != nil {
		return nil, err
	}
	hash, err := e.hasher.Hash(secret)
	if err != nil {
		return nil, err
	}

	user := &User{
		ID:        uuid.NewString(),
		Username:  username,
		Email:     claims.Target,
		Name:      profile.Name,
		DOB:       profile.DOB,
		CreatedAt: e.now(),
	}

	var rec *session.Record
	err = e.store.WithTx(ctx, func(tx Store) error {
		if _, err := tx.FindUserByEmail(ctx, user.Email); err == nil {
			return ErrAccountExists
		} else if !errors.Is(err, ErrNotFound) {
			return err
		}
		if _, err := tx.FindUserByIdentifier(ctx, username); err == nil {
			return ErrAccountExists
		} else if !errors.Is(err, ErrNotFound) {
			return err
		}

		if err := tx.CreateUser(ctx, user); err != nil {
			return err
		}
		now := e.now()
		if err := tx.UpsertCredential(ctx, &Credential{
			UserID:       user.ID,
			Provider:     ProviderPassword,
			ProviderID:   user.ID,
			PasswordHash: hash,
			CreatedAt:    now,
			UpdatedAt:    now,
		}); err != nil {
			return err
		}

		var err error
		rec, err = e.sessions.CreateIn(ctx, tx.Sessions(), user.ID, meta)
		return err
	})
	if err != nil {
		e.emit(ctx, "signup.complete", "", user.Email, false, err)
		return nil, err
	}

	// Fresh resend budget for any future flow on this address.
	_ = e.resend.Reset(ctx, user.Email, PurposeSignup.String())

	e.metrics.signup()
	e.metrics.sessionIssued()
	e.emit(ctx, "signup.complete", user.ID, user.Email, true, nil)
	return &Session{Token: rec.Token, UserID: rec.UserID, ExpiresAt: rec.ExpiresAt}, nil
}
