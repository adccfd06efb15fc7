// Package localstore persists the client's small key-value state
// (credential blobs, checkout staging, last-order snapshot) in a local
// SQLite file, the way the browser build kept it in localStorage.
package localstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	_ "modernc.org/sqlite"
)

// Well-known keys, kept byte-for-byte compatible with the browser build
// so a migration tool can copy them over.
const (
	KeyAccessToken     = "accessToken"
	KeyRefreshToken    = "refreshToken"
	KeyUser            = "user"
	KeyVendorToken     = "vendorToken"
	KeyVendorProfile   = "vendorName"
	KeyDeliveryToken   = "deliveryToken"
	KeyDeliveryAgent   = "deliveryAgent"
	KeyPendingCheckout = "order_temp"
	KeyLastOrder       = "order_final"
)

type Store struct {
	db *sql.DB
}

func Open(path string) (*Store, error) {
	// Busy timeout + WAL, same pragmas the services use
	db, err := sql.Open("sqlite", path+"?_pragma=busy_timeout=5000&_pragma=journal_mode=WAL")
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS kv (
		key   TEXT PRIMARY KEY,
		value TEXT NOT NULL
	)`); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) Get(ctx context.Context, key string) (string, bool, error) {
	var v string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ?`, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

func (s *Store) Put(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO kv(key, value) VALUES(?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value)
	return err
}

func (s *Store) Delete(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM kv WHERE key = ?`, key)
	return err
}

// Reset drops every entry. Used on full logout.
func (s *Store) Reset(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM kv`)
	return err
}

// GetJSON decodes the blob stored under key into out. A corrupted blob
// is treated as absent and removed, never surfaced as an error.
func (s *Store) GetJSON(ctx context.Context, key string, out any) (bool, error) {
	raw, ok, err := s.Get(ctx, key)
	if err != nil || !ok {
		return false, err
	}
	if err := json.Unmarshal([]byte(raw), out); err != nil {
		_ = s.Delete(ctx, key)
		return false, nil
	}
	return true, nil
}

func (s *Store) PutJSON(ctx context.Context, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return s.Put(ctx, key, string(raw))
}
