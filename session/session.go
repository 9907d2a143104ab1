// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/danielhkuo/opinionsync/client"
	"github.com/danielhkuo/opinionsync/models"
	"github.com/danielhkuo/opinionsync/reconcile"
	"github.com/danielhkuo/opinionsync/store"
)

var (
	ErrClosed      = errors.New("session closed")
	ErrUnknownPoll = errors.New("poll not loaded: call LoadPoll first")
)

// Session is one signed-in user's view of their opinions. Reads resolve
// from local cells; writes are applied optimistically and reconciled with
// the server through the client.
type Session struct {
	client *client.Client
	reg    *reconcile.Registry

	ctx    context.Context
	cancel context.CancelFunc

	mu           sync.Mutex
	watches      map[string]reconcile.DisposeFn
	optionCounts map[string]int
	closed       bool
}

// New wraps an authenticated client. ks persists fallback values across
// sessions; nil keeps nothing.
func New(c *client.Client, ks store.KeyStore) *Session {
	ctx, cancel := context.WithCancel(context.Background())
	return &Session{
		client:       c,
		reg:          reconcile.NewRegistry(ks),
		ctx:          ctx,
		cancel:       cancel,
		watches:      make(map[string]reconcile.DisposeFn),
		optionCounts: make(map[string]int),
	}
}

func (s *Session) Registry() *reconcile.Registry {
	return s.reg
}

func (s *Session) key(kind models.Kind, entityID string) models.OpinionKey {
	return models.OpinionKey{Kind: kind, EntityID: entityID, UserID: s.client.UserID()}
}

func (s *Session) ready() error {
	if s.client.UserID() == "" {
		return client.ErrNoCredentials
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	return nil
}

// Opinion resolves a boolean opinion without touching the network.
func (s *Session) Opinion(kind models.Kind, entityID string) bool {
	return s.reg.ResolveOpinion(s.key(kind, entityID))
}

// SetOpinion writes value optimistically and sends it to the server.
// Only one write per opinion is in flight; extra writes are Ignored.
func (s *Session) SetOpinion(ctx context.Context, kind models.Kind, entityID string, value bool) (reconcile.Outcome, error) {
	if err := s.ready(); err != nil {
		return 0, err
	}
	if !kind.IsBoolean() {
		return 0, client.ErrNotBooleanKind
	}

	key := s.key(kind, entityID)
	outcome, err := s.reg.DispatchOpinion(ctx, key, value, func(ctx context.Context) error {
		return s.client.SetOpinion(ctx, kind, entityID, value)
	})

	// The server cleared the opposite reaction
	if outcome == reconcile.OutcomeConfirmed && value {
		if opposite, ok := kind.Opposite(); ok {
			s.clearOpposite(s.key(opposite, entityID))
		}
	}
	return outcome, err
}

// clearOpposite mirrors the server clearing a reaction. A write in flight
// on that cell is left to settle through its own subscription.
func (s *Session) clearOpposite(key models.OpinionKey) {
	cell := s.reg.Opinion(key)
	if cell.InFlight() {
		return
	}
	cell.SetOptimistic(false)
	cell.Confirm(false)
}

func (s *Session) Like(ctx context.Context, postID string) (reconcile.Outcome, error) {
	return s.SetOpinion(ctx, models.KindLike, postID, true)
}

func (s *Session) Unlike(ctx context.Context, postID string) (reconcile.Outcome, error) {
	return s.SetOpinion(ctx, models.KindLike, postID, false)
}

// ToggleLike flips the currently resolved like.
func (s *Session) ToggleLike(ctx context.Context, postID string) (reconcile.Outcome, error) {
	return s.SetOpinion(ctx, models.KindLike, postID, !s.Opinion(models.KindLike, postID))
}

func (s *Session) Participate(ctx context.Context, eventID string, going bool) (reconcile.Outcome, error) {
	return s.SetOpinion(ctx, models.KindParticipation, eventID, going)
}

// LikeComment sets or clears the like on a comment. Setting it clears a dislike.
func (s *Session) LikeComment(ctx context.Context, commentID string, on bool) (reconcile.Outcome, error) {
	return s.SetOpinion(ctx, models.KindCommentLike, commentID, on)
}

// DislikeComment sets or clears the dislike on a comment. Setting it clears a like.
func (s *Session) DislikeComment(ctx context.Context, commentID string, on bool) (reconcile.Outcome, error) {
	return s.SetOpinion(ctx, models.KindCommentDislike, commentID, on)
}

// LoadPoll fetches the poll and confirms the caller's vote from it.
func (s *Session) LoadPoll(ctx context.Context, pollID string) (models.PollWithOptions, error) {
	poll, err := s.client.GetPoll(ctx, pollID)
	if err != nil {
		return poll, err
	}

	n := len(poll.Options)
	s.mu.Lock()
	s.optionCounts[pollID] = n
	s.mu.Unlock()

	vote := models.PollVote{Selected: poll.Selected, Counts: make([]int, n)}
	for _, opt := range poll.Options {
		if opt.Index >= 0 && opt.Index < n {
			vote.Counts[opt.Index] = opt.Count
		}
	}
	if s.client.UserID() != "" {
		s.reg.PollVote(s.key(models.KindPollVote, pollID), n).Confirm(vote)
	}
	return poll, nil
}

func (s *Session) optionCount(pollID string) (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.optionCounts[pollID]
	return n, ok
}

// Poll resolves the caller's vote and the counts. Unloaded polls resolve empty.
func (s *Session) Poll(pollID string) models.PollVote {
	n, ok := s.optionCount(pollID)
	if !ok {
		return models.PollVote{}
	}
	return s.reg.ResolvePoll(s.key(models.KindPollVote, pollID), n)
}

// PollOptions is Poll shaped for rendering.
func (s *Session) PollOptions(pollID string) []reconcile.OptionView {
	n, ok := s.optionCount(pollID)
	if !ok {
		return nil
	}
	return reconcile.OptionViews(s.Poll(pollID), n)
}

// Vote selects option (nil retracts) optimistically, adjusting counts.
func (s *Session) Vote(ctx context.Context, pollID string, option *int) (reconcile.Outcome, error) {
	if err := s.ready(); err != nil {
		return 0, err
	}
	n, ok := s.optionCount(pollID)
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnknownPoll, pollID)
	}

	return s.reg.DispatchVote(ctx, s.key(models.KindPollVote, pollID), option, n, func(ctx context.Context) error {
		_, err := s.client.Vote(ctx, pollID, option)
		return err
	})
}

// WatchOpinion keeps the opinion's cell in sync with the server until
// Unwatch or Close. Watching an already watched opinion is a no-op.
func (s *Session) WatchOpinion(kind models.Kind, entityID string) error {
	key := s.key(kind, entityID)
	return s.watch(key, func(ctx context.Context) (reconcile.DisposeFn, error) {
		stream, err := s.client.SubscribeOpinion(ctx, kind, entityID)
		if err != nil {
			return nil, err
		}
		return s.reg.AttachOpinion(key, stream), nil
	})
}

// WatchPoll is WatchOpinion for a loaded poll.
func (s *Session) WatchPoll(pollID string) error {
	n, ok := s.optionCount(pollID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownPoll, pollID)
	}
	key := s.key(models.KindPollVote, pollID)
	return s.watch(key, func(ctx context.Context) (reconcile.DisposeFn, error) {
		stream, err := s.client.SubscribePoll(ctx, pollID)
		if err != nil {
			return nil, err
		}
		return s.reg.AttachPoll(key, n, stream), nil
	})
}

func (s *Session) watch(key models.OpinionKey, start func(ctx context.Context) (reconcile.DisposeFn, error)) error {
	if err := s.ready(); err != nil {
		return err
	}
	id := key.String()

	s.mu.Lock()
	_, watching := s.watches[id]
	s.mu.Unlock()
	if watching {
		return nil
	}

	ctx, cancel := context.WithCancel(s.ctx)
	dispose, err := start(ctx)
	if err != nil {
		cancel()
		return fmt.Errorf("watch %s: %w", id, err)
	}
	stop := func() {
		dispose()
		cancel()
	}

	s.mu.Lock()
	_, raced := s.watches[id]
	if raced || s.closed {
		s.mu.Unlock()
		stop()
		return nil
	}
	s.watches[id] = stop
	s.mu.Unlock()

	slog.Debug("watching opinion", "key", id)
	return nil
}

// Unwatch stops syncing an opinion. Its last value stays resolvable.
func (s *Session) Unwatch(kind models.Kind, entityID string) {
	id := s.key(kind, entityID).String()

	s.mu.Lock()
	stop, ok := s.watches[id]
	delete(s.watches, id)
	s.mu.Unlock()

	if ok {
		stop()
	}
}

// Close stops every watch. The session can still resolve values afterwards.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	watches := s.watches
	s.watches = make(map[string]reconcile.DisposeFn)
	s.mu.Unlock()

	for _, stop := range watches {
		stop()
	}
	s.cancel()
}
