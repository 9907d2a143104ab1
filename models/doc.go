// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package models defines the opinion key, value, request and response types
shared by the reconciler, the backend and the client.

# Keys

An OpinionKey names one per-user opinion value:

	key := models.OpinionKey{EntityID: postID, UserID: me, Kind: models.KindLike}
	key.String() // "opinion:like:<post>:<user>"
	key.Topic()  // "like:<post>"

String is the registry and fallback-store key; Topic is the push channel
every viewer of the entity shares.

# Kinds

	KindLike           = "like"
	KindPollVote       = "poll_vote"
	KindParticipation  = "participation"
	KindCommentLike    = "comment_like"
	KindCommentDislike = "comment_dislike"

All kinds except KindPollVote carry a bool. Poll votes carry a PollVote:
the selected option index (nil when not voted) plus per-option counts.

# Request Types

  - CreateSessionRequest: username
  - CreatePollRequest: title, options
  - SetOpinionRequest: value
  - CastVoteRequest: option (null retracts)

# Response Types

  - CreateSessionResponse: user_id, user_token
  - CreatePollResponse: poll_id
  - OpinionResponse: kind, entity_id, value
  - OpinionEvent: pushed on every change over the subscription socket
  - ErrorResponse: error, message
*/
package models
