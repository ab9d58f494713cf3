package tokencache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS token_cache (
	slot          INTEGER PRIMARY KEY CHECK (slot = 1),
	user_id       TEXT    NOT NULL,
	email         TEXT    NOT NULL,
	id_token      TEXT    NOT NULL,
	refresh_token TEXT    NOT NULL,
	expires_at    INTEGER NOT NULL,
	provider      TEXT    NOT NULL,
	updated_at    INTEGER NOT NULL
)`

// SQLite is a Cache backed by a single-row SQLite table.
type SQLite struct {
	sqlDB *sql.DB
}

// OpenSQLite opens (and creates when needed) a SQLite token cache at path.
func OpenSQLite(path string) (*SQLite, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("token cache path is required")
	}

	dsn := filepath.Clean(path) + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := sqlDB.Exec(sqliteSchema); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("create token cache table: %w", err)
	}
	return &SQLite{sqlDB: sqlDB}, nil
}

// Close releases the underlying SQLite connection.
func (s *SQLite) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// Load returns the stored token.
func (s *SQLite) Load(ctx context.Context) (Token, bool, error) {
	row := s.sqlDB.QueryRowContext(ctx,
		`SELECT user_id, email, id_token, refresh_token, expires_at, provider
		 FROM token_cache WHERE slot = 1`)

	var (
		tok       Token
		expiresAt int64
	)
	if err := row.Scan(&tok.UserID, &tok.Email, &tok.IDToken, &tok.RefreshToken, &expiresAt, &tok.Provider); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Token{}, false, nil
		}
		return Token{}, false, fmt.Errorf("load token: %w", err)
	}
	tok.ExpiresAt = unixMillisToTime(expiresAt)
	return tok, true, nil
}

// Save upserts the single cached token.
func (s *SQLite) Save(ctx context.Context, tok Token) error {
	if err := validate(tok); err != nil {
		return err
	}
	_, err := s.sqlDB.ExecContext(ctx,
		`INSERT INTO token_cache (slot, user_id, email, id_token, refresh_token, expires_at, provider, updated_at)
		 VALUES (1, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(slot) DO UPDATE SET
			user_id = excluded.user_id,
			email = excluded.email,
			id_token = excluded.id_token,
			refresh_token = excluded.refresh_token,
			expires_at = excluded.expires_at,
			provider = excluded.provider,
			updated_at = excluded.updated_at`,
		tok.UserID,
		tok.Email,
		tok.IDToken,
		tok.RefreshToken,
		timeToUnixMillis(tok.ExpiresAt),
		tok.Provider,
		time.Now().UTC().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("save token: %w", err)
	}
	return nil
}

// Clear deletes the cached token.
func (s *SQLite) Clear(ctx context.Context) error {
	if _, err := s.sqlDB.ExecContext(ctx, `DELETE FROM token_cache WHERE slot = 1`); err != nil {
		return fmt.Errorf("clear token: %w", err)
	}
	return nil
}

func timeToUnixMillis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UTC().UnixMilli()
}

func unixMillisToTime(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}
