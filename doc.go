// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package main provides the entry point for the opinionsync API server.

opinionsync stores per-user opinions (likes, participation, comment
reactions and single-choice poll votes) and pushes every change to
subscribed clients over WebSockets. The companion client, session and
reconcile packages apply those opinions optimistically in the UI and
reconcile them with the server.

# Starting the Server

The server requires environment variables or CLI flags for configuration:

	USER_TOKEN_SALT=change-me go run .

Or with flags:

	go run . -p 3318 -t postgres -d "postgres://..." --token-salt change-me

A .env file in the working directory is loaded first when present.

# Configuration

Required settings:

  - USER_TOKEN_SALT (--token-salt): Secret for user token HMAC
  - DATABASE_URL (-d): Required for postgres; sqlite defaults to opinionsync.db

Optional settings:

  - PORT (-p): Server port (default: 3318)
  - DATABASE_TYPE (-t): sqlite (default) or postgres
  - MUTATION_RATE (--rate), MUTATION_BURST (--burst): Per-user write limits

# Architecture

The server uses a handler-based architecture with dependency injection:

  - handlers: HTTP request handlers (sessions, opinions, polls, subscriptions)
  - router: Route definitions using Go 1.22+ routing
  - middleware: CORS, logging, rate limiting, JSON helpers
  - pubsub: Change notification fan-out for subscriptions
  - metrics: Prometheus collectors
  - models: Request/response and opinion types
  - auth: Token generation and validation
  - db: Schema creation
  - cliparse: Configuration parsing

Client side:

  - reconcile: Optimistic value cells, dispatch and subscription bridge
  - store: Fallback persistence for reconciled values
  - client: HTTP and WebSocket client for the API
  - session: Per-user facade wiring the above together

See package documentation for each component.
*/
package main
