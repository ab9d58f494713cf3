package tokencache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// File is a Cache backed by a single JSON file. Writes go to a temporary
// file in the same directory which is then renamed over the target.
type File struct {
	mu   sync.Mutex
	path string
}

// NewFile returns a file cache at path. The directory is created on the
// first Save.
func NewFile(path string) (*File, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("token cache path is required")
	}
	return &File{path: filepath.Clean(path)}, nil
}

// Path returns the cache file location.
func (f *File) Path() string {
	return f.path
}

// Load reads the cached token. A missing file reports false.
func (f *File) Load(_ context.Context) (Token, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := os.ReadFile(f.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Token{}, false, nil
		}
		return Token{}, false, fmt.Errorf("read token cache: %w", err)
	}

	var tok Token
	if err := json.Unmarshal(data, &tok); err != nil {
		return Token{}, false, fmt.Errorf("decode token cache: %w", err)
	}
	if tok.UserID == "" {
		return Token{}, false, nil
	}
	return tok, true, nil
}

// Save writes tok with 0600 permissions.
func (f *File) Save(_ context.Context, tok Token) error {
	if err := validate(tok); err != nil {
		return err
	}
	data, err := json.MarshalIndent(tok, "", "  ")
	if err != nil {
		return fmt.Errorf("encode token cache: %w", err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create token cache dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".token-*")
	if err != nil {
		return fmt.Errorf("create temp token cache: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if err := tmp.Chmod(0o600); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("chmod token cache: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write token cache: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close token cache: %w", err)
	}
	if err := os.Rename(tmpName, f.path); err != nil {
		return fmt.Errorf("replace token cache: %w", err)
	}
	return nil
}

// Clear removes the cache file.
func (f *File) Clear(_ context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := os.Remove(f.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove token cache: %w", err)
	}
	return nil
}
