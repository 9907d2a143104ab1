// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package client is a Go client for the opinionsync API.

	c, err := client.New("http://localhost:3318")
	_, err = c.CreateSession(ctx, "alice")
	err = c.SetOpinion(ctx, models.KindLike, "post-1", true)

Subscriptions return channels of reconcile.Emission so they can be fed
straight into reconcile.Attach:

	stream, err := c.SubscribeOpinion(ctx, models.KindLike, "post-1")

Non-2xx answers come back as *APIError; errors.Is(err, ErrUnauthorized)
matches a 401.
*/
package client
