package session

// Session is a server-side record of one signed-in identity. The local
// identity service creates it on sign-in and removes it on sign-out.
type Session struct {
	SessionID string
	UserID    string
	Email     string

	CreatedAt int64
	ExpiresAt int64
}
