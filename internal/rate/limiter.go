package rate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Config holds rate limiter tuning parameters.
type Config struct {
	Prefix                 string
	MaxSignInFailures      int
	SignInCooldownDuration time.Duration
	MaxSignUpAttempts      int
	SignUpCooldownDuration time.Duration
}

// Limiter enforces per-email budgets for failed sign-ins and for sign-up
// attempts using Redis counters.
type Limiter struct {
	redis  redis.UniversalClient
	config Config
}

// New creates a rate [Limiter] backed by the given Redis client.
func New(redisClient redis.UniversalClient, cfg Config) *Limiter {
	if cfg.Prefix == "" {
		cfg.Prefix = "gs"
	}
	return &Limiter{
		redis:  redisClient,
		config: cfg,
	}
}

// CheckSignIn reports ErrRateLimited when the email has exhausted its failed
// sign-in budget for the current window. A zero budget disables the check.
func (l *Limiter) CheckSignIn(ctx context.Context, email string) error {
	if l.config.MaxSignInFailures <= 0 {
		return nil
	}
	return l.checkCounter(ctx, l.signInKey(email), l.config.MaxSignInFailures)
}

// RecordSignInFailure counts one failed sign-in for email.
func (l *Limiter) RecordSignInFailure(ctx context.Context, email string) error {
	if l.config.MaxSignInFailures <= 0 {
		return nil
	}
	_, err := l.incrementWithTTL(ctx, l.signInKey(email), l.config.SignInCooldownDuration)
	return err
}

// ResetSignIn clears the failed sign-in counter after a successful sign-in.
func (l *Limiter) ResetSignIn(ctx context.Context, email string) error {
	if l.config.MaxSignInFailures <= 0 {
		return nil
	}
	if err := l.redis.Del(ctx, l.signInKey(email)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// EnforceSignUp counts one sign-up attempt for email and reports
// ErrRateLimited once the window budget is exceeded.
func (l *Limiter) EnforceSignUp(ctx context.Context, email string) error {
	if l.config.MaxSignUpAttempts <= 0 {
		return nil
	}
	count, err := l.incrementWithTTL(ctx, l.signUpKey(email), l.config.SignUpCooldownDuration)
	if err != nil {
		return err
	}
	if count > int64(l.config.MaxSignUpAttempts) {
		return ErrRateLimited
	}
	return nil
}

// SignInFailures returns the current failed sign-in counter for email.
// Missing keys return zero and do not reveal account existence.
func (l *Limiter) SignInFailures(ctx context.Context, email string) (int, error) {
	count, err := l.redis.Get(ctx, l.signInKey(email)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if count < 0 {
		return 0, nil
	}
	return int(count), nil
}

func (l *Limiter) checkCounter(ctx context.Context, key string, maxAttempts int) error {
	count, err := l.redis.Get(ctx, key).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	if count >= int64(maxAttempts) {
		return ErrRateLimited
	}

	return nil
}

func (l *Limiter) incrementWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	count, err := l.redis.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	// Fixed-window semantics: set TTL only for the first hit in the window.
	if count == 1 && ttl > 0 {
		if err := l.redis.Expire(ctx, key, ttl).Err(); err != nil {
			return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
	}

	return count, nil
}

func (l *Limiter) signInKey(email string) string {
	return l.config.Prefix + ":rl:in:" + email
}

func (l *Limiter) signUpKey(email string) string {
	return l.config.Prefix + ":rl:up:" + email
}
