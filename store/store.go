// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package store

import (
	"context"
	"database/sql"
	"log/slog"
	"sync"
	"time"
)

// KeyStore is the fallback tier: a durable string map that is only ever a
// hint for freshly created cells, never a source of truth.
// Implementations must not panic or surface storage errors.
type KeyStore interface {
	Get(key string) (string, bool)
	Set(key, value string)
	Remove(key string)
}

// MemoryStore keeps values for the lifetime of the process.
type MemoryStore struct {
	mu     sync.RWMutex
	values map[string]string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{values: make(map[string]string)}
}

func (s *MemoryStore) Get(key string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[key]
	return v, ok
}

func (s *MemoryStore) Set(key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
}

func (s *MemoryStore) Remove(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.values, key)
}

// Len is used by tests.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.values)
}

// NopStore stands in when no storage medium is available.
type NopStore struct{}

func (NopStore) Get(string) (string, bool) { return "", false }
func (NopStore) Set(string, string)        {}
func (NopStore) Remove(string)             {}

// queryTimeout bounds each statement so a wedged database can't stall a
// render-path Get.
const queryTimeout = 2 * time.Second

// SQLStore persists values in the fallback_kv table (see db.CreateSchema).
// Works with both the sqlite and postgres drivers.
type SQLStore struct {
	db *sql.DB
}

// Open returns a SQLStore for db, or a NopStore if db is nil.
func Open(db *sql.DB) KeyStore {
	if db == nil {
		return NopStore{}
	}
	return &SQLStore{db: db}
}

func (s *SQLStore) Get(key string) (string, bool) {
	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()

	var value string
	err := s.db.QueryRowContext(ctx, `
		SELECT value FROM fallback_kv WHERE key = $1
	`, key).Scan(&value)

	if err == sql.ErrNoRows {
		return "", false
	}
	if err != nil {
		slog.Warn("fallback store read failed", "key", key, "error", err)
		return "", false
	}
	return value, true
}

func (s *SQLStore) Set(key, value string) {
	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO fallback_kv (key, value, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`, key, value, time.Now().UTC())

	if err != nil {
		slog.Warn("fallback store write failed", "key", key, "error", err)
	}
}

func (s *SQLStore) Remove(key string) {
	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()

	if _, err := s.db.ExecContext(ctx, `DELETE FROM fallback_kv WHERE key = $1`, key); err != nil {
		slog.Warn("fallback store delete failed", "key", key, "error", err)
	}
}
