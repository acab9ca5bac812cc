package authcore

import (
	"context"
	"encoding/json"
	"errors"
)

// resetClaims rides inside the password-reset carrier token.
type resetClaims struct {
	UserID string `json:"userId"`
}

// BeginPasswordReset resolves the identifier and issues a reset code to
// the account's email. An unknown identifier returns the same generic
// failure as the rest of the login surface.
func (e *Engine) BeginPasswordReset(ctx context.Context, identifier string) (*Challenge, error) {
	user, err := e.store.FindUserByIdentifier(ctx, identifier)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			return nil, err
		}
		e.emit(ctx, "reset.begin", "", identifier, false, err)
		return nil, ErrInvalidCredentials
	}

	ch, err := e.issueChallenge(ctx, user.Email, PurposePasswordReset, resetClaims{UserID: user.ID})
	if err != nil {
		return nil, err
	}
	e.emit(ctx, "reset.begin", user.ID, user.Email, true, nil)
	return ch, nil
}

// ConfirmPasswordReset consumes the reset code and returns the verified
// token that gates setting the new password.
func (e *Engine) ConfirmPasswordReset(ctx context.Context, tok, code string) (*Challenge, error) {
	claims, err := e.confirmChallenge(ctx, tok, code, PurposePasswordReset)
	if err != nil {
		return nil, err
	}
	return e.mintVerified(claims, PurposePasswordReset)
}

// CompletePasswordReset sets the new password by upserting the password
// credential. It deliberately mints no session: a reset ends at the login
// screen, forcing fresh authentication.
func (e *Engine) CompletePasswordReset(ctx context.Context, tok, newSecret string) error {
	claims, err := e.decodeClaims(tok, PurposePasswordReset, true)
	if err != nil {
		e.emit(ctx, "reset.complete", "", "", false, err)
		return err
	}

	var rc resetClaims
	if err := json.Unmarshal(claims.Payload, &rc); err != nil || rc.UserID == "" {
		return ErrInvalidToken
	}

	if err := e.checkPassword(ctx, newSecret); err != nil {
		return err
	}
	hash, err := e.hasher.Hash(newSecret)
	if err != nil {
		return err
	}

	now := e.now()
	if err := e.store.UpsertCredential(ctx, &Credential{
		UserID:       rc.UserID,
		Provider:     ProviderPassword,
		ProviderID:   rc.UserID,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}); err != nil {
		return err
	}

	_ = e.resend.Reset(ctx, claims.Target, PurposePasswordReset.String())

	e.metrics.passwordReset()
	e.emit(ctx, "reset.complete", rc.UserID, claims.Target, true, nil)
	return nil
}
