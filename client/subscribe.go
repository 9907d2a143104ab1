// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package client

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/gorilla/websocket"

	"github.com/danielhkuo/opinionsync/auth"
	"github.com/danielhkuo/opinionsync/models"
	"github.com/danielhkuo/opinionsync/reconcile"
)

// SubscribeOpinion streams the caller's value of a boolean opinion. The
// first emission is Loading; the channel closes when ctx is cancelled or
// the connection drops.
func (c *Client) SubscribeOpinion(ctx context.Context, kind models.Kind, entityID string) (<-chan reconcile.Emission[bool], error) {
	if !kind.IsBoolean() {
		return nil, ErrNotBooleanKind
	}
	return subscribe(ctx, c, kind, entityID, func(e models.OpinionEvent) (bool, bool) {
		if e.Value == nil {
			return false, false
		}
		return *e.Value, true
	})
}

// SubscribePoll streams the caller's PollVote for pollID, including
// changes made by other voters.
func (c *Client) SubscribePoll(ctx context.Context, pollID string) (<-chan reconcile.Emission[models.PollVote], error) {
	return subscribe(ctx, c, models.KindPollVote, pollID, func(e models.OpinionEvent) (models.PollVote, bool) {
		if e.Vote == nil {
			return models.PollVote{}, false
		}
		return *e.Vote, true
	})
}

func subscribe[T any](ctx context.Context, c *Client, kind models.Kind, entityID string, extract func(models.OpinionEvent) (T, bool)) (<-chan reconcile.Emission[T], error) {
	userID, token, err := c.credentials()
	if err != nil {
		return nil, err
	}

	u := *c.baseURL
	if u.Scheme == "https" {
		u.Scheme = "wss"
	} else {
		u.Scheme = "ws"
	}
	target := u.String() + "/subscribe/" + url.PathEscape(string(kind)) + "/" + url.PathEscape(entityID)

	header := http.Header{}
	auth.SetCredentials(header, userID, token)

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, target, header)
	if err != nil {
		if resp != nil {
			defer resp.Body.Close()
			return nil, decodeAPIError(resp)
		}
		return nil, fmt.Errorf("subscribe %s:%s: %w", kind, entityID, err)
	}

	out := make(chan reconcile.Emission[T], 1)
	out <- reconcile.Loading[T]()

	// Unblock the reader when the caller is done
	stop := context.AfterFunc(ctx, func() {
		conn.Close()
	})

	go func() {
		defer close(out)
		defer stop()
		defer conn.Close()

		for {
			var event models.OpinionEvent
			if err := conn.ReadJSON(&event); err != nil {
				if ctx.Err() == nil && websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					slog.Warn("subscription closed", "kind", kind, "entity_id", entityID, "error", err)
				}
				return
			}

			v, ok := extract(event)
			if !ok {
				slog.Warn("ignoring malformed subscription event", "kind", event.Kind, "entity_id", event.EntityID)
				continue
			}

			select {
			case out <- reconcile.Value(v):
			case <-ctx.Done():
				return
			}
		}
	}()

	return out, nil
}
