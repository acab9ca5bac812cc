package verify

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/wrenhollow/authcore/token"
)

func testEngine(t *testing.T) (*Engine, *token.Codec) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	codec, err := token.NewCodec([]byte("0123456789abcdef0123456789abcdef"))
	if err != nil {
		t.Fatalf("NewCodec error: %v", err)
	}

	engine, err := NewEngine(NewRedisStore(client, ""), codec, Config{})
	if err != nil {
		t.Fatalf("NewEngine error: %v", err)
	}
	return engine, codec
}

func TestIssueAndCheck(t *testing.T) {
	engine, codec := testEngine(t)
	ctx := context.Background()

	ch, err := engine.Issue(ctx, "ada@example.com", "signup", map[string]string{"name": "Ada"})
	if err != nil {
		t.Fatalf("Issue error: %v", err)
	}
	if len(ch.Code) != DefaultCodeLength {
		t.Fatalf("unexpected code length: %d", len(ch.Code))
	}
	for _, r := range ch.Code {
		if r == 'I' || r == 'O' || r == '0' || r == '1' {
			t.Fatalf("ambiguous symbol %q in code %s", r, ch.Code)
		}
	}

	claims := token.Decode[Claims](codec, ch.Token)
	if claims == nil {
		t.Fatal("carrier token did not decode")
	}
	if claims.Target != "ada@example.com" || claims.Purpose != "signup" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
	if claims.ExpiresAt != ch.ExpiresAt.Unix() {
		t.Fatal("token expiry does not match challenge expiry")
	}

	if err := engine.Check(ctx, "ada@example.com", "signup", ch.Code); err != nil {
		t.Fatalf("Check error: %v", err)
	}
}

func TestCheckIsSingleUse(t *testing.T) {
	engine, _ := testEngine(t)
	ctx := context.Background()

	ch, err := engine.Issue(ctx, "ada@example.com", "signup", nil)
	if err != nil {
		t.Fatalf("Issue error: %v", err)
	}
	if err := engine.Check(ctx, "ada@example.com", "signup", ch.Code); err != nil {
		t.Fatalf("first Check error: %v", err)
	}
	if err := engine.Check(ctx, "ada@example.com", "signup", ch.Code); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound on replay, got %v", err)
	}
}

func TestCheckAttemptCeiling(t *testing.T) {
	engine, _ := testEngine(t)
	ctx := context.Background()

	ch, err := engine.Issue(ctx, "ada@example.com", "signup", nil)
	if err != nil {
		t.Fatalf("Issue error: %v", err)
	}

	for i := 0; i < DefaultMaxAttempts; i++ {
		if err := engine.Check(ctx, "ada@example.com", "signup", "WRONG2"); !errors.Is(err, ErrMismatch) {
			t.Fatalf("attempt %d: expected ErrMismatch, got %v", i+1, err)
		}
	}

	// Budget is spent: even the correct code must fail now.
	if err := engine.Check(ctx, "ada@example.com", "signup", ch.Code); !errors.Is(err, ErrAttemptsExceeded) {
		t.Fatalf("expected ErrAttemptsExceeded with correct code, got %v", err)
	}
}

func TestCheckExpiry(t *testing.T) {
	engine, _ := testEngine(t)
	ctx := context.Background()

	base := time.Now()
	engine.SetClock(func() time.Time { return base })

	ch, err := engine.Issue(ctx, "ada@example.com", "signup", nil)
	if err != nil {
		t.Fatalf("Issue error: %v", err)
	}

	engine.SetClock(func() time.Time { return base.Add(DefaultTTL + time.Second) })
	if err := engine.Check(ctx, "ada@example.com", "signup", ch.Code); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after expiry, got %v", err)
	}
}

func TestReissueOverwritesAndResetsAttempts(t *testing.T) {
	engine, _ := testEngine(t)
	ctx := context.Background()

	first, err := engine.Issue(ctx, "ada@example.com", "signup", nil)
	if err != nil {
		t.Fatalf("Issue error: %v", err)
	}
	for i := 0; i < 3; i++ {
		_ = engine.Check(ctx, "ada@example.com", "signup", "WRONG2")
	}

	second, err := engine.Issue(ctx, "ada@example.com", "signup", nil)
	if err != nil {
		t.Fatalf("reissue error: %v", err)
	}

	// Old code is superseded; new code works despite earlier failures.
	if err := engine.Check(ctx, "ada@example.com", "signup", first.Code); err == nil && first.Code != second.Code {
		t.Fatal("expected superseded code to fail")
	}
	reissued, err := engine.Issue(ctx, "ada@example.com", "signup", nil)
	if err != nil {
		t.Fatalf("reissue error: %v", err)
	}
	if err := engine.Check(ctx, "ada@example.com", "signup", reissued.Code); err != nil {
		t.Fatalf("Check after reissue error: %v", err)
	}
}

func TestCheckNormalizesInput(t *testing.T) {
	engine, _ := testEngine(t)
	ctx := context.Background()

	ch, err := engine.Issue(ctx, "ada@example.com", "signup", nil)
	if err != nil {
		t.Fatalf("Issue error: %v", err)
	}
	lowered := "  " + NormalizeCode(ch.Code) + " "
	if err := engine.Check(ctx, "ada@example.com", "signup", lowered); err != nil {
		t.Fatalf("Check with padded code error: %v", err)
	}
}

func TestPurposesAreIsolated(t *testing.T) {
	engine, _ := testEngine(t)
	ctx := context.Background()

	signup, err := engine.Issue(ctx, "ada@example.com", "signup", nil)
	if err != nil {
		t.Fatalf("Issue error: %v", err)
	}
	if _, err := engine.Issue(ctx, "ada@example.com", "password-reset", nil); err != nil {
		t.Fatalf("Issue error: %v", err)
	}

	// Signup code does not satisfy the reset record.
	if err := engine.Check(ctx, "ada@example.com", "password-reset", signup.Code); err == nil {
		t.Fatal("expected cross-purpose check to fail")
	}
	if err := engine.Check(ctx, "ada@example.com", "signup", signup.Code); err != nil {
		t.Fatalf("same-purpose check error: %v", err)
	}
}

func TestForgetIsIdempotent(t *testing.T) {
	engine, _ := testEngine(t)
	ctx := context.Background()

	if _, err := engine.Issue(ctx, "ada@example.com", "signup", nil); err != nil {
		t.Fatalf("Issue error: %v", err)
	}
	if err := engine.Forget(ctx, "ada@example.com", "signup"); err != nil {
		t.Fatalf("Forget error: %v", err)
	}
	if err := engine.Forget(ctx, "ada@example.com", "signup"); err != nil {
		t.Fatalf("second Forget error: %v", err)
	}
}
