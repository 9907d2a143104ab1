// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package handlers contains HTTP request handlers for the opinionsync API.

# Handler Types

Each handler is a struct with database and config dependencies:

  - SessionHandler: Username claims and identity
  - OpinionHandler: Boolean opinions (like, participation, comment reactions)
  - PollHandler: Poll creation, lookup and voting
  - SubscribeHandler: WebSocket push of opinion changes

Handlers that change state also take the pubsub hub so subscribers hear
about it:

	hub := pubsub.NewHub()
	opinionHandler := handlers.NewOpinionHandler(db, cfg, hub)

# Authentication

POST /sessions returns a user_id and user_token. Every other mutating
request carries them in the X-User-ID and X-User-Token headers. The token
is an HMAC of the user id, so nothing but the user row is stored.

# Opinions

	GET /opinions/{kind}/{entity} → GetOpinion
	PUT /opinions/{kind}/{entity} → SetOpinion {"value": true}

Kinds are like, participation, comment_like and comment_dislike. Setting
comment_like to true clears comment_dislike for the same user and comment,
and the other way round.

# Polls

	POST /polls           → CreatePoll {"title", "options": [...]}
	GET  /polls/{id}      → GetPoll (counts, plus own selection when authenticated)
	POST /polls/{id}/vote → CastVote {"option": 1} or {"option": null} to retract

CastVote answers with the caller's PollVote, the same value subscribers of
the poll receive.

# Subscriptions

	GET /subscribe/{kind}/{entity}

The socket receives an OpinionEvent for the caller immediately and again
whenever anyone changes the entity. Clients send nothing; pings keep the
connection alive.
*/
package handlers
