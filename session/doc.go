// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package session ties the reconciler to a running server for one user.

A Session owns a reconcile.Registry keyed by the client's user ID. Reads
never block on the network:

	s := session.New(c, store.Open(conn))
	defer s.Close()

	s.WatchOpinion(models.KindLike, postID)
	liked := s.Opinion(models.KindLike, postID)
	outcome, err := s.ToggleLike(ctx, postID)

Writes go through the registry's dispatch, so the new value shows up
immediately and is rolled back if the server rejects it. Watches attach the
server's subscription stream to the matching cell and keep it in sync with
changes made from other devices or by other voters.

Polls must be loaded with LoadPoll before voting or watching, since the
option count fixes the shape of the reconciled value.
*/
package session
