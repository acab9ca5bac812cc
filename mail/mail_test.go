package mail

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
)

func TestCodeMessage(t *testing.T) {
	msg := CodeMessage("ada@example.com", "signup", "ABC234")
	if msg.To != "ada@example.com" {
		t.Fatalf("to = %q", msg.To)
	}
	if !strings.Contains(msg.Body, "ABC234") {
		t.Fatalf("code missing from body %q", msg.Body)
	}
	if msg.Subject != "Confirm your email address" {
		t.Fatalf("subject = %q", msg.Subject)
	}

	reset := CodeMessage("bob@example.com", "password-reset", "XYZ789")
	if reset.Subject != "Reset your password" {
		t.Fatalf("reset subject = %q", reset.Subject)
	}
}

func TestLogMailerLogsInsteadOfSending(t *testing.T) {
	var buf bytes.Buffer
	m := LogMailer{Logger: slog.New(slog.NewTextHandler(&buf, nil))}

	err := m.Send(context.Background(), Message{To: "ada@example.com", Subject: "s", Body: "b"})
	if err != nil {
		t.Fatalf("Send error: %v", err)
	}
	if !strings.Contains(buf.String(), "ada@example.com") {
		t.Fatal("recipient not logged")
	}
}

func TestFuncMailer(t *testing.T) {
	var got Message
	f := FuncMailer(func(_ context.Context, msg Message) error {
		got = msg
		return nil
	})
	if err := f.Send(context.Background(), Message{To: "x"}); err != nil {
		t.Fatalf("Send error: %v", err)
	}
	if got.To != "x" {
		t.Fatal("message not forwarded")
	}
}
