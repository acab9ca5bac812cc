package rate

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func testLimiter(t *testing.T, cfg Config) (*Limiter, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return New(client, cfg), mr
}

func TestAllowResendBudget(t *testing.T) {
	l, _ := testLimiter(t, Config{Enabled: true, MaxResends: 3, Window: time.Minute})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := l.AllowResend(ctx, "ada@example.com", "signup"); err != nil {
			t.Fatalf("resend %d: %v", i+1, err)
		}
	}
	if err := l.AllowResend(ctx, "ada@example.com", "signup"); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}

	// A different purpose has its own budget.
	if err := l.AllowResend(ctx, "ada@example.com", "password-reset"); err != nil {
		t.Fatalf("cross-purpose resend: %v", err)
	}
}

func TestWindowExpires(t *testing.T) {
	l, mr := testLimiter(t, Config{Enabled: true, MaxResends: 1, Window: time.Minute})
	ctx := context.Background()

	if err := l.AllowResend(ctx, "ada@example.com", "signup"); err != nil {
		t.Fatalf("first resend: %v", err)
	}
	if err := l.AllowResend(ctx, "ada@example.com", "signup"); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}

	mr.FastForward(2 * time.Minute)
	if err := l.AllowResend(ctx, "ada@example.com", "signup"); err != nil {
		t.Fatalf("resend after window: %v", err)
	}
}

func TestReset(t *testing.T) {
	l, _ := testLimiter(t, Config{Enabled: true, MaxResends: 1, Window: time.Minute})
	ctx := context.Background()

	if err := l.AllowResend(ctx, "ada@example.com", "signup"); err != nil {
		t.Fatalf("first resend: %v", err)
	}
	if err := l.Reset(ctx, "ada@example.com", "signup"); err != nil {
		t.Fatalf("Reset error: %v", err)
	}
	if err := l.AllowResend(ctx, "ada@example.com", "signup"); err != nil {
		t.Fatalf("resend after reset: %v", err)
	}
}

func TestDisabledLimiterAllowsEverything(t *testing.T) {
	l, _ := testLimiter(t, Config{Enabled: false})
	ctx := context.Background()
	for i := 0; i < 100; i++ {
		if err := l.AllowResend(ctx, "ada@example.com", "signup"); err != nil {
			t.Fatalf("disabled limiter rejected: %v", err)
		}
	}
}
