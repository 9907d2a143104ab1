// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package db

import (
	"database/sql"
	"fmt"
	"strings"
)

// Supported database types
const (
	TypeSQLite   = "sqlite"
	TypePostgres = "postgres"
)

// DriverName maps a configured database type to its database/sql driver.
func DriverName(dbType string) (string, error) {
	switch strings.ToLower(dbType) {
	case TypeSQLite, "":
		return "sqlite", nil
	case TypePostgres, "postgresql":
		return "postgres", nil
	}
	return "", fmt.Errorf("unsupported database type %q", dbType)
}

// CreateSchema creates all tables needed for the application.
// Safe to call multiple times - uses IF NOT EXISTS.
// The DDL sticks to the subset shared by SQLite and PostgreSQL.
func CreateSchema(db *sql.DB) error {
	_, err := db.Exec(schema)
	if err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	return nil
}

// DropSchema removes every table. Used by tests.
func DropSchema(db *sql.DB) error {
	_, err := db.Exec(`
		DROP TABLE IF EXISTS fallback_kv;
		DROP TABLE IF EXISTS poll_vote;
		DROP TABLE IF EXISTS poll_option;
		DROP TABLE IF EXISTS poll;
		DROP TABLE IF EXISTS opinion;
		DROP TABLE IF EXISTS app_user;
	`)
	if err != nil {
		return fmt.Errorf("failed to drop schema: %w", err)
	}
	return nil
}

const schema = `
-- Users
CREATE TABLE IF NOT EXISTS app_user (
    id TEXT PRIMARY KEY,
    username TEXT NOT NULL UNIQUE,
    created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

-- Boolean opinions (like, participation, comment_like, comment_dislike)
CREATE TABLE IF NOT EXISTS opinion (
    kind TEXT NOT NULL CHECK (kind IN ('like', 'participation', 'comment_like', 'comment_dislike')),
    entity_id TEXT NOT NULL,
    user_id TEXT NOT NULL REFERENCES app_user(id) ON DELETE CASCADE,
    value BOOLEAN NOT NULL,
    updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    PRIMARY KEY (kind, entity_id, user_id)
);

CREATE INDEX IF NOT EXISTS idx_opinion_entity ON opinion(kind, entity_id);

-- Polls
CREATE TABLE IF NOT EXISTS poll (
    id TEXT PRIMARY KEY,
    title TEXT NOT NULL,
    creator_id TEXT NOT NULL REFERENCES app_user(id) ON DELETE CASCADE,
    created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

-- Options, ordered by idx
CREATE TABLE IF NOT EXISTS poll_option (
    poll_id TEXT NOT NULL REFERENCES poll(id) ON DELETE CASCADE,
    idx INTEGER NOT NULL,
    label TEXT NOT NULL,
    PRIMARY KEY (poll_id, idx)
);

-- Votes: one per user per poll
CREATE TABLE IF NOT EXISTS poll_vote (
    poll_id TEXT NOT NULL REFERENCES poll(id) ON DELETE CASCADE,
    user_id TEXT NOT NULL REFERENCES app_user(id) ON DELETE CASCADE,
    option_idx INTEGER NOT NULL,
    updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    PRIMARY KEY (poll_id, user_id)
);

CREATE INDEX IF NOT EXISTS idx_poll_vote_poll_id ON poll_vote(poll_id);

-- Client fallback values (store.SQLStore)
CREATE TABLE IF NOT EXISTS fallback_kv (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL,
    updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`
