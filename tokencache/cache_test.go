package tokencache

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func sampleToken() Token {
	return Token{
		UserID:       "u-1",
		Email:        "a@b.com",
		IDToken:      "id.token.value",
		RefreshToken: "refresh",
		ExpiresAt:    time.UnixMilli(1_900_000_000_123).UTC(),
		Provider:     "local",
	}
}

func backends(t *testing.T) map[string]Cache {
	t.Helper()
	dir := t.TempDir()

	file, err := NewFile(filepath.Join(dir, "nested", "token.json"))
	if err != nil {
		t.Fatalf("new file cache: %v", err)
	}
	db, err := OpenSQLite(filepath.Join(dir, "token.db"))
	if err != nil {
		t.Fatalf("open sqlite cache: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	return map[string]Cache{
		"memory": NewMemory(),
		"file":   file,
		"sqlite": db,
	}
}

func TestCacheContract(t *testing.T) {
	for name, cache := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			if _, ok, err := cache.Load(ctx); err != nil || ok {
				t.Fatalf("empty cache: ok=%v err=%v", ok, err)
			}

			want := sampleToken()
			if err := cache.Save(ctx, want); err != nil {
				t.Fatalf("save: %v", err)
			}
			got, ok, err := cache.Load(ctx)
			if err != nil || !ok {
				t.Fatalf("load after save: ok=%v err=%v", ok, err)
			}
			if got.UserID != want.UserID || got.Email != want.Email || got.IDToken != want.IDToken ||
				got.RefreshToken != want.RefreshToken || got.Provider != want.Provider || !got.ExpiresAt.Equal(want.ExpiresAt) {
				t.Fatalf("round trip mismatch: got %+v want %+v", got, want)
			}

			next := want
			next.UserID = "u-2"
			if err := cache.Save(ctx, next); err != nil {
				t.Fatalf("overwrite: %v", err)
			}
			if got, _, _ := cache.Load(ctx); got.UserID != "u-2" {
				t.Fatalf("expected overwrite, got %q", got.UserID)
			}

			for i := 0; i < 2; i++ {
				if err := cache.Clear(ctx); err != nil {
					t.Fatalf("clear %d: %v", i, err)
				}
			}
			if _, ok, err := cache.Load(ctx); err != nil || ok {
				t.Fatalf("after clear: ok=%v err=%v", ok, err)
			}

			if err := cache.Save(ctx, Token{Email: "x@y.z"}); !errors.Is(err, ErrInvalidToken) {
				t.Fatalf("expected ErrInvalidToken, got %v", err)
			}
		})
	}
}

func TestFileCachePermissions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token.json")
	cache, err := NewFile(path)
	if err != nil {
		t.Fatalf("new file cache: %v", err)
	}
	if err := cache.Save(context.Background(), sampleToken()); err != nil {
		t.Fatalf("save: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Fatalf("expected 0600, got %o", perm)
	}
}

func TestFileCacheCorruptContent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	cache, _ := NewFile(path)
	if _, _, err := cache.Load(context.Background()); err == nil {
		t.Fatal("expected corrupt cache to return an error")
	}
}

func TestSQLiteCacheSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token.db")
	db, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := db.Save(context.Background(), sampleToken()); err != nil {
		t.Fatalf("save: %v", err)
	}
	_ = db.Close()

	reopened, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()
	tok, ok, err := reopened.Load(context.Background())
	if err != nil || !ok || tok.UserID != "u-1" {
		t.Fatalf("expected persisted token, got %+v ok=%v err=%v", tok, ok, err)
	}
}

func TestTokenExpired(t *testing.T) {
	now := time.Now()
	if (Token{}).Expired(now) {
		t.Fatal("zero expiry must not be expired")
	}
	if !(Token{ExpiresAt: now.Add(-time.Second)}).Expired(now) {
		t.Fatal("past expiry must be expired")
	}
	if (Token{ExpiresAt: now.Add(time.Minute)}).Expired(now) {
		t.Fatal("future expiry must not be expired")
	}
}

func TestNewFileRequiresPath(t *testing.T) {
	if _, err := NewFile("  "); err == nil {
		t.Fatal("expected empty path to be rejected")
	}
	if _, err := OpenSQLite(""); err == nil {
		t.Fatal("expected empty path to be rejected")
	}
}
