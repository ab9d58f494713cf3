package rate

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestLimiter(t *testing.T, cfg Config) (*Limiter, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis run failed: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = rdb.Close()
		mr.Close()
	})

	return New(rdb, cfg), mr
}

func TestSignInBudgetExhaustsAndResets(t *testing.T) {
	l, _ := newTestLimiter(t, Config{MaxSignInFailures: 2, SignInCooldownDuration: time.Minute})
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if err := l.CheckSignIn(ctx, "a@b.com"); err != nil {
			t.Fatalf("attempt %d unexpectedly limited: %v", i, err)
		}
		if err := l.RecordSignInFailure(ctx, "a@b.com"); err != nil {
			t.Fatalf("record failure: %v", err)
		}
	}

	if err := l.CheckSignIn(ctx, "a@b.com"); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}
	if err := l.CheckSignIn(ctx, "other@b.com"); err != nil {
		t.Fatalf("other email should not be limited: %v", err)
	}

	if err := l.ResetSignIn(ctx, "a@b.com"); err != nil {
		t.Fatalf("reset: %v", err)
	}
	n, err := l.SignInFailures(ctx, "a@b.com")
	if err != nil || n != 0 {
		t.Fatalf("expected 0 failures after reset, got %d err=%v", n, err)
	}
}

func TestSignInWindowExpires(t *testing.T) {
	l, mr := newTestLimiter(t, Config{MaxSignInFailures: 1, SignInCooldownDuration: time.Minute})
	ctx := context.Background()

	_ = l.RecordSignInFailure(ctx, "a@b.com")
	if err := l.CheckSignIn(ctx, "a@b.com"); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected limited, got %v", err)
	}

	mr.FastForward(2 * time.Minute)

	if err := l.CheckSignIn(ctx, "a@b.com"); err != nil {
		t.Fatalf("expected window to expire, got %v", err)
	}
}

func TestSignUpBudget(t *testing.T) {
	l, _ := newTestLimiter(t, Config{MaxSignUpAttempts: 2, SignUpCooldownDuration: time.Minute})
	ctx := context.Background()

	if err := l.EnforceSignUp(ctx, "a@b.com"); err != nil {
		t.Fatalf("first: %v", err)
	}
	if err := l.EnforceSignUp(ctx, "a@b.com"); err != nil {
		t.Fatalf("second: %v", err)
	}
	if err := l.EnforceSignUp(ctx, "a@b.com"); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited on third, got %v", err)
	}
}

func TestZeroBudgetsDisableThrottling(t *testing.T) {
	l, _ := newTestLimiter(t, Config{})
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_ = l.RecordSignInFailure(ctx, "a@b.com")
		if err := l.EnforceSignUp(ctx, "a@b.com"); err != nil {
			t.Fatalf("sign-up should not be limited: %v", err)
		}
	}
	if err := l.CheckSignIn(ctx, "a@b.com"); err != nil {
		t.Fatalf("sign-in should not be limited: %v", err)
	}
}

func TestRedisFailureIsWrapped(t *testing.T) {
	l, mr := newTestLimiter(t, Config{MaxSignUpAttempts: 1, SignUpCooldownDuration: time.Minute})
	mr.Close()

	err := l.EnforceSignUp(context.Background(), "a@b.com")
	if !errors.Is(err, ErrRedisUnavailable) {
		t.Fatalf("expected ErrRedisUnavailable, got %v", err)
	}
}
