package middleware

import (
	"context"
	"encoding/json"
	"net/http"

	goSession "github.com/MrEthical07/goSession"
	"github.com/MrEthical07/goSession/provider"
)

type userContextKey struct{}

// UserFromContext returns the user injected by a guard.
func UserFromContext(ctx context.Context) (provider.User, bool) {
	u, ok := ctx.Value(userContextKey{}).(provider.User)
	return u, ok
}

// Guard returns middleware that calls next with the signed-in user in the
// request context, or reject when the controller is signed out.
func Guard(c *goSession.Controller, reject http.Handler) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if c == nil {
				reject.ServeHTTP(w, r)
				return
			}

			s := c.State()
			if !s.SignedIn {
				reject.ServeHTTP(w, r)
				return
			}

			ctx := context.WithValue(r.Context(), userContextKey{}, s.User)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireSignedIn rejects with 401 and a JSON body while the controller is
// signed out.
func RequireSignedIn(c *goSession.Controller) func(http.Handler) http.Handler {
	return Guard(c, http.HandlerFunc(unauthorized))
}

func unauthorized(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"code":    "signed_out",
		"message": "no user is signed in",
	})
}
