// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package store provides the persistent key store used as the fallback tier
of the reconciler.

A KeyStore is a plain string map. Callers serialize values themselves
(the reconciler uses JSON). Nothing here is a source of truth: values only
let a freshly created cell show the last known state instead of flashing
to a default while the first server value is loading.

# Implementations

  - MemoryStore: in-process map, for tests and ephemeral sessions
  - SQLStore: fallback_kv table on SQLite or PostgreSQL
  - NopStore: used when no storage medium is available

Open chooses between the SQL store and NopStore:

	ks := store.Open(conn) // NopStore when conn is nil

None of the methods return errors. SQLStore logs failures and reports a
missing value instead.
*/
package store
