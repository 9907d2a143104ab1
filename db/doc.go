// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package db handles database schema creation.

# Schema Creation

CreateSchema initializes all required tables:

	if err := db.CreateSchema(conn); err != nil {
		log.Fatal(err)
	}

Safe to call multiple times - uses IF NOT EXISTS for all tables and indexes.
The same DDL runs on SQLite (modernc.org/sqlite, the default) and
PostgreSQL (lib/pq); DriverName maps the configured type to the driver.

# Tables

  - app_user: Users and their usernames
  - opinion: Boolean opinions per (kind, entity, user)
  - poll: Poll metadata
  - poll_option: Ordered options per poll
  - poll_vote: One vote per user per poll
  - fallback_kv: Persisted client fallback values

# Relationships

	app_user 1──* opinion
	app_user 1──* poll_vote
	poll 1──* poll_option
	poll 1──* poll_vote

All foreign keys use ON DELETE CASCADE.
*/
package db
