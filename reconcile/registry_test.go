// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package reconcile

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danielhkuo/opinionsync/models"
	"github.com/danielhkuo/opinionsync/store"
)

func TestGetOrCreateReturnsSameCell(t *testing.T) {
	reg := NewRegistry(nil)

	a := reg.Opinion(likeKey)
	b := reg.Opinion(models.OpinionKey{EntityID: "post-1", UserID: "user-1", Kind: models.KindLike})

	assert.Same(t, a, b)
	assert.Equal(t, 1, reg.Len())
}

func TestCellsAreIndependentPerKey(t *testing.T) {
	reg := NewRegistry(nil)
	other := models.OpinionKey{EntityID: "post-1", UserID: "user-2", Kind: models.KindLike}
	dislike := models.OpinionKey{EntityID: "post-1", UserID: "user-1", Kind: models.KindCommentDislike}

	reg.Opinion(likeKey).SetOptimistic(true)

	assert.False(t, reg.ResolveOpinion(other))
	assert.False(t, reg.ResolveOpinion(dislike))
	assert.Equal(t, 3, reg.Len())
}

func TestNewCellStartsIdle(t *testing.T) {
	ks := store.NewMemoryStore()
	ks.Set(likeKey.String(), "true")
	reg := NewRegistry(ks)

	st := reg.Opinion(likeKey).State()
	assert.True(t, st.HasFallback)
	assert.True(t, st.Fallback)
	assert.False(t, st.HasConfirmed)
	assert.False(t, st.HasOptimistic)
	assert.False(t, st.InFlight)
	assert.Equal(t, Token(0), st.Generation)
}

func TestUnreadableFallbackIsDiscarded(t *testing.T) {
	ks := store.NewMemoryStore()
	ks.Set(likeKey.String(), "{not json")
	reg := NewRegistry(ks)

	c := reg.Opinion(likeKey)
	assert.False(t, c.State().HasFallback)
	assert.False(t, c.Resolve())
}

func TestPollFallbackIsNormalized(t *testing.T) {
	ks := store.NewMemoryStore()
	key := models.OpinionKey{EntityID: "poll-1", UserID: "user-1", Kind: models.KindPollVote}
	ks.Set(key.String(), `{"selected_option":4,"counts":[2,-1]}`)
	reg := NewRegistry(ks)

	v := reg.ResolvePoll(key, 3)
	assert.Nil(t, v.Selected, "selection beyond the option list is dropped")
	assert.Equal(t, []int{2, 0, 0}, v.Counts)
}

func TestWrongValueTypePanics(t *testing.T) {
	reg := NewRegistry(nil)
	reg.Opinion(likeKey)

	require.Panics(t, func() {
		GetOrCreate(reg, likeKey, JSONCodec(func(a, b int) bool { return a == b }))
	})
	require.Panics(t, func() {
		reg.PollVote(likeKey, 2)
	})
	require.Panics(t, func() {
		reg.Opinion(models.OpinionKey{EntityID: "p", UserID: "u", Kind: models.KindPollVote})
	})
}

func TestEmptyPollDefault(t *testing.T) {
	reg := NewRegistry(nil)
	key := models.OpinionKey{EntityID: "poll-1", UserID: "user-1", Kind: models.KindPollVote}

	v := reg.ResolvePoll(key, 4)
	assert.Nil(t, v.Selected)
	assert.Equal(t, []int{0, 0, 0, 0}, v.Counts)
}
