// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package router defines HTTP routes for the opinionsync API.

# Route Registration

NewRouter creates a configured http.ServeMux with all endpoints:

	mux := router.NewRouter(db, cfg)

# Endpoints

Operational:

	GET /health  - Liveness
	GET /metrics - Prometheus metrics

Identity:

	POST /sessions - Claim a username, returns user_id and user_token
	GET  /me       - Current user (requires X-User-ID, X-User-Token)

Opinions (requires credentials):

	GET /opinions/{kind}/{entity} - Caller's value
	PUT /opinions/{kind}/{entity} - Set caller's value

Polls:

	POST /polls           - Create poll (requires credentials)
	GET  /polls/{id}      - Options and counts
	POST /polls/{id}/vote - Vote, switch or retract (requires credentials)

Push:

	GET /subscribe/{kind}/{entity} - WebSocket stream of OpinionEvent

# Rate Limiting

POST /sessions, PUT /opinions, POST /polls and POST /polls/{id}/vote share
one per-caller token bucket sized by cfg.MutationRate and cfg.MutationBurst.

# Handler Initialization

The router creates one pubsub.Hub and hands it to every handler that
changes or pushes opinions, so a write on one connection reaches the
subscribers on all others.
*/
package router
