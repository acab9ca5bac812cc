package authcore

import (
	"context"
	"errors"
	"time"

	"github.com/wrenhollow/authcore/internal/rate"
	"github.com/wrenhollow/authcore/mail"
	"github.com/wrenhollow/authcore/token"
	"github.com/wrenhollow/authcore/verify"
)

// Challenge is handed to the client between flow steps. The code itself
// travels out of band; the token comes back verbatim on the next step.
type Challenge struct {
	Token     string
	ExpiresAt time.Time
}

// decodeClaims verifies a carrier token and checks purpose, expiry, and
// optionally the emailVerified mark. Every failure collapses into
// ErrInvalidToken; the cause is not distinguishable by the caller.
func (e *Engine) decodeClaims(tok string, want Purpose, requireVerified bool) (*verify.Claims, error) {
	claims := token.Decode[verify.Claims](e.codec, tok)
	if claims == nil {
		return nil, ErrInvalidToken
	}
	got, err := ParsePurpose(claims.Purpose)
	if err != nil || got != want {
		return nil, ErrInvalidToken
	}
	if requireVerified && !claims.EmailVerified {
		return nil, ErrInvalidToken
	}
	if e.now().Unix() > claims.ExpiresAt {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// issueChallenge writes a fresh verification record, mails the code, and
// returns the carrier token. A failed send leaves the record behind so a
// later resend can pick it up.
func (e *Engine) issueChallenge(ctx context.Context, target string, purpose Purpose, payload any) (*Challenge, error) {
	ch, err := e.verifier.Issue(ctx, target, purpose.String(), payload)
	if err != nil {
		return nil, err
	}
	e.metrics.codeIssued(purpose)

	if err := e.mailer.Send(ctx, mail.CodeMessage(target, purpose.String(), ch.Code)); err != nil {
		e.logger.Error("verification mail send failed",
			"purpose", purpose.String(), "error", err)
		e.emit(ctx, "code.issue", "", target, false, err)
		return nil, ErrMailDelivery
	}

	e.emit(ctx, "code.issue", "", target, true, nil)
	return &Challenge{Token: ch.Token, ExpiresAt: ch.ExpiresAt}, nil
}

// confirmChallenge checks a code against the record named by the carrier
// token. On success the record is consumed; on failure the attempt budget
// burns and the caller sees only the generic errors.
func (e *Engine) confirmChallenge(ctx context.Context, tok, code string, want Purpose) (*verify.Claims, error) {
	claims, err := e.decodeClaims(tok, want, false)
	if err != nil {
		e.emit(ctx, "code.check", "", "", false, err)
		return nil, err
	}

	if err := e.verifier.Check(ctx, claims.Target, want.String(), code); err != nil {
		e.metrics.codeChecked(want, "failure")
		e.emit(ctx, "code.check", "", claims.Target, false, err)
		if errors.Is(err, verify.ErrUnavailable) {
			return nil, err
		}
		return nil, ErrInvalidCode
	}

	e.metrics.codeChecked(want, "success")
	e.emit(ctx, "code.check", "", claims.Target, true, nil)
	return claims, nil
}

// mintVerified issues the short-lived follow-up token that marks the
// email as verified while carrying the original payload forward.
func (e *Engine) mintVerified(claims *verify.Claims, purpose Purpose) (*Challenge, error) {
	expiresAt := e.now().Add(e.config.VerifiedTokenTTL)
	tok, err := e.codec.Encode(verify.Claims{
		Target:        claims.Target,
		Purpose:       purpose.String(),
		Payload:       claims.Payload,
		EmailVerified: true,
		ExpiresAt:     expiresAt.Unix(),
	})
	if err != nil {
		return nil, err
	}
	return &Challenge{Token: tok, ExpiresAt: expiresAt}, nil
}

// ResendCode re-issues the pending code named by a carrier token,
// overwriting the prior record and resetting its attempt counter. The
// resend budget is per (target, purpose).
func (e *Engine) ResendCode(ctx context.Context, tok string) (*Challenge, error) {
	claims := token.Decode[verify.Claims](e.codec, tok)
	if claims == nil || claims.EmailVerified {
		return nil, ErrInvalidToken
	}
	purpose, err := ParsePurpose(claims.Purpose)
	if err != nil {
		return nil, ErrInvalidToken
	}
	if e.now().Unix() > claims.ExpiresAt {
		return nil, ErrInvalidToken
	}

	// Exhaustive on purpose: every flow allows resending its pending code.
	switch purpose {
	case PurposeSignup, PurposePasswordReset, PurposeVerifyEmail:
	default:
		return nil, ErrInvalidToken
	}

	if err := e.resend.AllowResend(ctx, claims.Target, purpose.String()); err != nil {
		if errors.Is(err, rate.ErrRateLimited) {
			e.emit(ctx, "code.resend", "", claims.Target, false, err)
			return nil, ErrResendRateLimited
		}
		return nil, err
	}

	var payload any
	if len(claims.Payload) > 0 {
		payload = claims.Payload
	}
	ch, err := e.issueChallenge(ctx, claims.Target, purpose, payload)
	if err != nil {
		return nil, err
	}
	e.emit(ctx, "code.resend", "", claims.Target, true, nil)
	return ch, nil
}
