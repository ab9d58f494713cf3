package rest

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/MrEthical07/goSession/provider"
	"github.com/MrEthical07/goSession/tokencache"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *tokencache.Memory) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cache := tokencache.NewMemory()
	c, err := New(Config{
		Endpoint:   srv.URL,
		APIKey:     "test-key",
		HTTPClient: srv.Client(),
		Cache:      cache,
		Logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return c, cache
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{"code": status, "message": message},
	})
}

func TestSignInRequestShapeAndSuccess(t *testing.T) {
	var seen credentialsRequest
	c, cache := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("unexpected method %s", r.Method)
		}
		if r.URL.Path != signInPath {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.URL.Query().Get("key") != "test-key" {
			t.Errorf("missing api key, got %q", r.URL.RawQuery)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("unexpected content type %q", ct)
		}
		_ = json.NewDecoder(r.Body).Decode(&seen)
		_ = json.NewEncoder(w).Encode(authResponse{
			LocalID:      "uid-1",
			Email:        "a@b.com",
			IDToken:      "id-token",
			RefreshToken: "refresh-token",
			ExpiresIn:    "3600",
		})
	})

	u, err := c.SignIn(context.Background(), "a@b.com", "secret1")
	if err != nil {
		t.Fatalf("sign in: %v", err)
	}
	if u.ID != "uid-1" || u.Email != "a@b.com" || u.Provider != Name {
		t.Fatalf("unexpected user %+v", u)
	}
	if seen.Email != "a@b.com" || seen.Password != "secret1" || !seen.ReturnSecureToken {
		t.Fatalf("unexpected request body %+v", seen)
	}

	tok, ok, _ := cache.Load(context.Background())
	if !ok || tok.RefreshToken != "refresh-token" || tok.ExpiresAt.IsZero() {
		t.Fatalf("expected token cached, got %+v ok=%v", tok, ok)
	}
	if time.Until(tok.ExpiresAt) < 59*time.Minute {
		t.Fatalf("unexpected expiry %v", tok.ExpiresAt)
	}
}

func TestSignUpUsesSignUpEndpoint(t *testing.T) {
	var path atomic.Value
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		path.Store(r.URL.Path)
		_ = json.NewEncoder(w).Encode(authResponse{LocalID: "uid-2", Email: "n@b.com", IDToken: "t", RefreshToken: "r"})
	})

	if _, err := c.SignUp(context.Background(), "n@b.com", "secret1"); err != nil {
		t.Fatalf("sign up: %v", err)
	}
	if got := path.Load(); got != signUpPath {
		t.Fatalf("expected %s, got %v", signUpPath, got)
	}
}

func TestErrorMessageMapping(t *testing.T) {
	cases := []struct {
		status  int
		message string
		kind    provider.Kind
		code    string
	}{
		{400, "EMAIL_NOT_FOUND", provider.KindInvalidCredentials, "EMAIL_NOT_FOUND"},
		{400, "INVALID_PASSWORD", provider.KindInvalidCredentials, "INVALID_PASSWORD"},
		{400, "INVALID_LOGIN_CREDENTIALS", provider.KindInvalidCredentials, "INVALID_LOGIN_CREDENTIALS"},
		{400, "EMAIL_EXISTS", provider.KindEmailExists, "EMAIL_EXISTS"},
		{400, "WEAK_PASSWORD : Password should be at least 6 characters", provider.KindWeakPassword, "WEAK_PASSWORD"},
		{400, "INVALID_EMAIL", provider.KindInvalidEmail, "INVALID_EMAIL"},
		{400, "TOO_MANY_ATTEMPTS_TRY_LATER : Try again later.", provider.KindRateLimited, "TOO_MANY_ATTEMPTS_TRY_LATER"},
		{400, "USER_DISABLED", provider.KindUserDisabled, "USER_DISABLED"},
		{400, "OPERATION_NOT_ALLOWED", provider.KindUnknown, "OPERATION_NOT_ALLOWED"},
		{503, "BACKEND_ERROR", provider.KindNetwork, "BACKEND_ERROR"},
		{502, "", provider.KindNetwork, ""},
	}

	for _, tc := range cases {
		t.Run(tc.message, func(t *testing.T) {
			c, cache := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				writeError(w, tc.status, tc.message)
			})

			_, err := c.SignIn(context.Background(), "a@b.com", "secret1")
			var pe *provider.Error
			if !errors.As(err, &pe) {
				t.Fatalf("expected *provider.Error, got %v", err)
			}
			if pe.Kind != tc.kind || pe.Code != tc.code {
				t.Fatalf("expected %v/%q, got %v/%q", tc.kind, tc.code, pe.Kind, pe.Code)
			}
			if _, ok, _ := cache.Load(context.Background()); ok {
				t.Fatal("failed call must not cache a token")
			}
		})
	}
}

func TestTransportFailureIsNetwork(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c, err := New(Config{Endpoint: url, APIKey: "k"})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	_, err = c.SignIn(context.Background(), "a@b.com", "secret1")
	if provider.KindOf(err) != provider.KindNetwork {
		t.Fatalf("expected network kind, got %v", err)
	}
}

func TestCanceledContextReturnsContextError(t *testing.T) {
	release := make(chan struct{})
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	})
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := c.SignIn(ctx, "a@b.com", "secret1")
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

func TestSignOutClearsCacheAndCurrentUser(t *testing.T) {
	c, cache := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(authResponse{LocalID: "uid-1", Email: "a@b.com", IDToken: "t", RefreshToken: "r"})
	})
	ctx := context.Background()

	if _, ok := c.CurrentUser(ctx); ok {
		t.Fatal("expected no current user before sign-in")
	}
	if _, err := c.SignIn(ctx, "a@b.com", "secret1"); err != nil {
		t.Fatalf("sign in: %v", err)
	}
	if u, ok := c.CurrentUser(ctx); !ok || u.ID != "uid-1" {
		t.Fatalf("expected current user, got %+v ok=%v", u, ok)
	}

	if err := c.SignOut(ctx); err != nil {
		t.Fatalf("sign out: %v", err)
	}
	if _, ok := c.CurrentUser(ctx); ok {
		t.Fatal("expected no current user after sign-out")
	}
	if _, ok, _ := cache.Load(ctx); ok {
		t.Fatal("expected cache cleared")
	}
}

func TestCurrentUserIgnoresOtherProviderTokens(t *testing.T) {
	c, cache := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {})
	ctx := context.Background()
	_ = cache.Save(ctx, tokencache.Token{UserID: "u", RefreshToken: "r", Provider: "local"})

	if _, ok := c.CurrentUser(ctx); ok {
		t.Fatal("expected tokens from another provider to be ignored")
	}
}

func TestClientThrottle(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_ = json.NewEncoder(w).Encode(authResponse{LocalID: "u", IDToken: "t", RefreshToken: "r"})
	}))
	defer srv.Close()

	c, err := New(Config{Endpoint: srv.URL, APIKey: "k", RequestsPerSecond: 0.001, Burst: 1})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	if _, err := c.SignIn(context.Background(), "a@b.com", "secret1"); err != nil {
		t.Fatalf("first call: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_, err = c.SignIn(ctx, "a@b.com", "secret1")
	if provider.KindOf(err) != provider.KindRateLimited {
		t.Fatalf("expected client throttle, got %v", err)
	}
	if hits.Load() != 1 {
		t.Fatalf("throttled call must not reach the server, hits=%d", hits.Load())
	}
}

func TestNewRequiresAPIKey(t *testing.T) {
	if _, err := New(Config{}); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
}
