package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	goSession "github.com/MrEthical07/goSession"
	"github.com/MrEthical07/goSession/provider"
	"github.com/MrEthical07/goSession/provider/providertest"
)

func newController(t *testing.T) *goSession.Controller {
	t.Helper()
	c, err := goSession.New().WithProvider(providertest.New()).Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	t.Cleanup(c.Close)
	return c
}

func userEcho(t *testing.T) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, ok := UserFromContext(r.Context())
		if !ok {
			t.Error("expected user in context")
		}
		_, _ = w.Write([]byte(u.ID))
	})
}

func TestRequireSignedInRejectsSignedOut(t *testing.T) {
	c := newController(t)
	h := RequireSignedIn(c)(userEcho(t))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}
}

func TestRequireSignedInPassesUser(t *testing.T) {
	c := newController(t)
	if err := c.SignIn(context.Background(), "a@b.com", "pw1"); err != nil {
		t.Fatalf("sign in: %v", err)
	}
	h := RequireSignedIn(c)(userEcho(t))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	if rr.Code != http.StatusOK || rr.Body.String() != "stub-user" {
		t.Fatalf("expected 200 stub-user, got %d %q", rr.Code, rr.Body.String())
	}

	if err := c.SignOut(context.Background()); err != nil {
		t.Fatalf("sign out: %v", err)
	}
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 after sign-out, got %d", rr.Code)
	}
}

func TestGuardCustomReject(t *testing.T) {
	reject := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	h := Guard(nil, reject)(userEcho(t))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	if rr.Code != http.StatusTeapot {
		t.Fatalf("expected custom reject, got %d", rr.Code)
	}
}

func TestUserFromContextEmpty(t *testing.T) {
	if _, ok := UserFromContext(context.Background()); ok {
		t.Fatal("expected no user")
	}
	ctx := context.WithValue(context.Background(), userContextKey{}, provider.User{ID: "x"})
	if u, ok := UserFromContext(ctx); !ok || u.ID != "x" {
		t.Fatalf("unexpected user %+v", u)
	}
}
