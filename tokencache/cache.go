package tokencache

import (
	"context"
	"errors"
	"time"
)

// ErrInvalidToken is returned by Save for a token without a user ID.
var ErrInvalidToken = errors.New("token requires a user ID")

// Token is the provider session persisted on the device between runs.
type Token struct {
	UserID       string    `json:"user_id"`
	Email        string    `json:"email"`
	IDToken      string    `json:"id_token"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	ExpiresAt    time.Time `json:"expires_at"`
	Provider     string    `json:"provider"`
}

// Expired reports whether the ID token has expired at now. A zero
// ExpiresAt never expires.
func (t Token) Expired(now time.Time) bool {
	return !t.ExpiresAt.IsZero() && !now.Before(t.ExpiresAt)
}

// Cache stores at most one token. Load reports false when nothing is stored.
// Clear on an empty cache is not an error.
type Cache interface {
	Load(ctx context.Context) (Token, bool, error)
	Save(ctx context.Context, tok Token) error
	Clear(ctx context.Context) error
}

func validate(tok Token) error {
	if tok.UserID == "" {
		return ErrInvalidToken
	}
	return nil
}
