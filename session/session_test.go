// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package session

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danielhkuo/opinionsync/client"
	"github.com/danielhkuo/opinionsync/models"
	"github.com/danielhkuo/opinionsync/reconcile"
	"github.com/danielhkuo/opinionsync/router"
	"github.com/danielhkuo/opinionsync/store"
	"github.com/danielhkuo/opinionsync/testutil"
)

const (
	waitFor = 5 * time.Second
	tick    = 10 * time.Millisecond
)

func newServer(t *testing.T) *httptest.Server {
	t.Helper()

	db := testutil.SetupTestDB(t)
	srv := httptest.NewServer(router.NewRouter(db, testutil.GetTestConfig()))
	t.Cleanup(srv.Close)
	return srv
}

func signIn(t *testing.T, srv *httptest.Server, username string) *client.Client {
	t.Helper()

	c, err := client.New(srv.URL)
	require.NoError(t, err)
	_, err = c.CreateSession(context.Background(), username)
	require.NoError(t, err)
	return c
}

// sameUser returns a second client signed in as c's user, like another device
func sameUser(t *testing.T, srv *httptest.Server, c *client.Client, token string) *client.Client {
	t.Helper()

	other, err := client.New(srv.URL)
	require.NoError(t, err)
	other.SetCredentials(c.UserID(), token)
	return other
}

func newSession(t *testing.T, c *client.Client, ks store.KeyStore) *Session {
	t.Helper()

	s := New(c, ks)
	t.Cleanup(s.Close)
	return s
}

// confirmed waits until the subscription has confirmed the cell's own
// write, so later pushes from other actors are applied rather than shadowed.
func confirmed[T any](t *testing.T, cell *reconcile.Cell[T]) {
	t.Helper()
	require.Eventually(t, func() bool {
		return !cell.State().HasOptimistic
	}, waitFor, tick)
}

func TestLikeConfirmsAndSyncs(t *testing.T) {
	srv := newServer(t)
	ctx := context.Background()

	c, err := client.New(srv.URL)
	require.NoError(t, err)
	creds, err := c.CreateSession(ctx, "alice")
	require.NoError(t, err)

	s := newSession(t, c, store.NewMemoryStore())
	require.NoError(t, s.WatchOpinion(models.KindLike, "post-1"))

	outcome, err := s.Like(ctx, "post-1")
	require.NoError(t, err)
	assert.Equal(t, reconcile.OutcomeConfirmed, outcome)
	assert.True(t, s.Opinion(models.KindLike, "post-1"))
	confirmed(t, s.Registry().Opinion(s.key(models.KindLike, "post-1")))

	// Another device of the same user unlikes
	phone := sameUser(t, srv, c, creds.UserToken)
	require.NoError(t, phone.SetOpinion(ctx, models.KindLike, "post-1", false))

	require.Eventually(t, func() bool {
		return !s.Opinion(models.KindLike, "post-1")
	}, waitFor, tick)

	outcome, err = s.ToggleLike(ctx, "post-1")
	require.NoError(t, err)
	assert.Equal(t, reconcile.OutcomeConfirmed, outcome)
	assert.True(t, s.Opinion(models.KindLike, "post-1"))
}

func TestRejectedWriteRollsBack(t *testing.T) {
	srv := newServer(t)
	c := signIn(t, srv, "alice")

	// Keep the user id but break the token
	c.SetCredentials(c.UserID(), "forged")
	s := newSession(t, c, nil)

	outcome, err := s.Participate(context.Background(), "event-1", true)
	assert.Equal(t, reconcile.OutcomeRolledBack, outcome)

	var rejected *reconcile.MutationRejectedError
	require.True(t, errors.As(err, &rejected))
	assert.ErrorIs(t, err, client.ErrUnauthorized)

	assert.False(t, s.Opinion(models.KindParticipation, "event-1"))
}

func TestCommentReactionsStayExclusive(t *testing.T) {
	srv := newServer(t)
	ctx := context.Background()
	s := newSession(t, signIn(t, srv, "alice"), nil)

	_, err := s.DislikeComment(ctx, "c1", true)
	require.NoError(t, err)
	assert.True(t, s.Opinion(models.KindCommentDislike, "c1"))

	outcome, err := s.LikeComment(ctx, "c1", true)
	require.NoError(t, err)
	assert.Equal(t, reconcile.OutcomeConfirmed, outcome)

	assert.True(t, s.Opinion(models.KindCommentLike, "c1"))
	assert.False(t, s.Opinion(models.KindCommentDislike, "c1"))
}

func TestPollVotingWithOtherVoters(t *testing.T) {
	srv := newServer(t)
	ctx := context.Background()

	aliceClient := signIn(t, srv, "alice")
	bob := signIn(t, srv, "bob")

	pollID, err := aliceClient.CreatePoll(ctx, "Lunch?", []string{"Pizza", "Tacos", "Salad"})
	require.NoError(t, err)

	alice := newSession(t, aliceClient, nil)

	_, err = alice.Vote(ctx, pollID, models.Option(0))
	require.ErrorIs(t, err, ErrUnknownPoll)

	poll, err := alice.LoadPoll(ctx, pollID)
	require.NoError(t, err)
	require.Len(t, poll.Options, 3)
	require.NoError(t, alice.WatchPoll(pollID))

	outcome, err := alice.Vote(ctx, pollID, models.Option(1))
	require.NoError(t, err)
	assert.Equal(t, reconcile.OutcomeConfirmed, outcome)

	got := alice.Poll(pollID)
	require.NotNil(t, got.Selected)
	assert.Equal(t, 1, *got.Selected)
	assert.Equal(t, []int{0, 1, 0}, got.Counts)
	confirmed(t, alice.Registry().PollVote(alice.key(models.KindPollVote, pollID), 3))

	_, err = bob.Vote(ctx, pollID, models.Option(2))
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		v := alice.Poll(pollID)
		return v.Selected != nil && *v.Selected == 1 && len(v.Counts) == 3 && v.Counts[2] == 1
	}, waitFor, tick)

	views := alice.PollOptions(pollID)
	require.Len(t, views, 3)
	assert.True(t, views[1].Selected)
	assert.Equal(t, 1, views[2].Count)

	_, err = alice.Vote(ctx, pollID, models.Option(9))
	assert.ErrorIs(t, err, reconcile.ErrInvalidOption)

	outcome, err = alice.Vote(ctx, pollID, nil)
	require.NoError(t, err)
	assert.Equal(t, reconcile.OutcomeConfirmed, outcome)
	assert.Nil(t, alice.Poll(pollID).Selected)
}

func TestFallbackSurvivesRestart(t *testing.T) {
	srv := newServer(t)
	ctx := context.Background()
	c := signIn(t, srv, "alice")

	ks := store.Open(testutil.SetupTestDB(t))

	first := New(c, ks)
	require.NoError(t, first.WatchOpinion(models.KindLike, "post-9"))
	_, err := first.Like(ctx, "post-9")
	require.NoError(t, err)
	first.Close()

	// A fresh session resolves the persisted value before any network traffic
	second := newSession(t, c, ks)
	assert.True(t, second.Opinion(models.KindLike, "post-9"))
}

func TestClosedSession(t *testing.T) {
	srv := newServer(t)
	s := New(signIn(t, srv, "alice"), nil)
	require.NoError(t, s.WatchOpinion(models.KindLike, "post-1"))

	s.Close()
	s.Close()

	_, err := s.Like(context.Background(), "post-1")
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, s.WatchOpinion(models.KindLike, "post-2"), ErrClosed)

	// Values stay readable
	assert.False(t, s.Opinion(models.KindLike, "post-1"))
}

func TestWatchIsIdempotent(t *testing.T) {
	srv := newServer(t)
	s := newSession(t, signIn(t, srv, "alice"), nil)

	require.NoError(t, s.WatchOpinion(models.KindLike, "post-1"))
	require.NoError(t, s.WatchOpinion(models.KindLike, "post-1"))
	assert.Len(t, s.watches, 1)

	s.Unwatch(models.KindLike, "post-1")
	s.Unwatch(models.KindLike, "post-1")
	assert.Empty(t, s.watches)
}

func TestSessionWithoutCredentials(t *testing.T) {
	srv := newServer(t)
	c, err := client.New(srv.URL)
	require.NoError(t, err)

	s := newSession(t, c, nil)
	_, err = s.Like(context.Background(), "post-1")
	assert.ErrorIs(t, err, client.ErrNoCredentials)
}
