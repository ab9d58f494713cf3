package provider

import (
	"context"
	"time"
)

// User is the identity handle returned by a provider after a successful
// sign-in or sign-up, and by CurrentUser when a session is cached.
type User struct {
	ID         string
	Email      string
	Provider   string
	SignedInAt time.Time
}

// IsZero reports whether u carries no identity.
func (u User) IsZero() bool {
	return u.ID == "" && u.Email == ""
}

// Client is implemented by every identity backend.
//
// SignIn and SignUp perform network or storage round-trips and must honour
// ctx cancellation. SignOut ends the provider-side session. CurrentUser reads
// state the provider already holds (a cached token) and must not make a
// network call.
type Client interface {
	Name() string
	SignIn(ctx context.Context, email, password string) (User, error)
	SignUp(ctx context.Context, email, password string) (User, error)
	SignOut(ctx context.Context) error
	CurrentUser(ctx context.Context) (User, bool)
}
