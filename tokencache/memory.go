package tokencache

import (
	"context"
	"sync"
)

// Memory is an in-process Cache. The zero value is not usable; call
// NewMemory.
type Memory struct {
	mu  sync.RWMutex
	tok Token
	ok  bool
}

// NewMemory returns an empty in-process cache.
func NewMemory() *Memory {
	return &Memory{}
}

// Load returns the stored token.
func (m *Memory) Load(_ context.Context) (Token, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.tok, m.ok, nil
}

// Save replaces the stored token.
func (m *Memory) Save(_ context.Context, tok Token) error {
	if err := validate(tok); err != nil {
		return err
	}
	m.mu.Lock()
	m.tok, m.ok = tok, true
	m.mu.Unlock()
	return nil
}

// Clear drops the stored token.
func (m *Memory) Clear(_ context.Context) error {
	m.mu.Lock()
	m.tok, m.ok = Token{}, false
	m.mu.Unlock()
	return nil
}
