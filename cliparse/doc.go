// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package cliparse handles command-line argument parsing and configuration.

# Configuration

ParseFlags returns a Config struct with all settings:

	cfg, err := cliparse.ParseFlags(os.Args[1:])

# Config Fields

  - Port: Server listen port (default: 3318)
  - DatabaseType: sqlite (default) or postgres
  - DatabaseURL: SQLite path or PostgreSQL connection string
    (default for sqlite: opinionsync.db)
  - UserTokenSalt: Secret for user token HMAC (required)
  - MutationRate: Per-user mutations per second (default: 5)
  - MutationBurst: Per-user mutation burst (default: 10)

# CLI Flags

	-p             Server port
	-d             Database URL
	-t             Database type
	--token-salt   User token salt
	--rate         Mutations per second per user
	--burst        Mutation burst per user
	--env          Dotenv file (default: .env, missing is fine)

# Environment Variables

Flags fall back to environment variables:

	PORT            → -p
	DATABASE_URL    → -d
	DATABASE_TYPE   → -t
	USER_TOKEN_SALT → --token-salt
	MUTATION_RATE   → --rate
	MUTATION_BURST  → --burst

CLI flags take precedence over environment variables, which take
precedence over the dotenv file.
*/
package cliparse
