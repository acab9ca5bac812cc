// Package mail defines the outbound delivery seam for verification codes.
// The engine composes messages and hands them to a Mailer; wiring a real
// provider (SMTP, SES, a queue) is the embedding application's concern.
package mail

import (
	"context"
	"fmt"
	"log/slog"
)

// Message is one outbound mail.
type Message struct {
	To      string
	Subject string
	Body    string
}

// Mailer delivers messages. Implementations must be safe for concurrent
// use.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// CodeMessage renders the standard verification-code mail for a purpose.
func CodeMessage(to, purpose, code string) Message {
	var subject string
	switch purpose {
	case "password-reset":
		subject = "Reset your password"
	default:
		subject = "Confirm your email address"
	}
	return Message{
		To:      to,
		Subject: subject,
		Body:    fmt.Sprintf("Your verification code is %s. It expires in 10 minutes.", code),
	}
}

// LogMailer logs instead of sending. Useful in development and tests.
type LogMailer struct {
	Logger *slog.Logger
}

// Send implements Mailer.
func (m LogMailer) Send(_ context.Context, msg Message) error {
	logger := m.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("mail delivery (log only)",
		slog.String("to", msg.To),
		slog.String("subject", msg.Subject),
		slog.String("body", msg.Body),
	)
	return nil
}

// FuncMailer adapts a function to the Mailer interface.
type FuncMailer func(ctx context.Context, msg Message) error

// Send implements Mailer.
func (f FuncMailer) Send(ctx context.Context, msg Message) error {
	return f(ctx, msg)
}
