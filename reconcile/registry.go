// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package reconcile

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/danielhkuo/opinionsync/models"
	"github.com/danielhkuo/opinionsync/store"
)

// Registry owns one cell per opinion key for as long as it is referenced.
// Create one per client session and pass it where it is needed.
type Registry struct {
	store store.KeyStore

	mu    sync.Mutex
	cells map[string]any
}

// NewRegistry creates an empty registry. A nil store disables fallbacks.
func NewRegistry(ks store.KeyStore) *Registry {
	if ks == nil {
		ks = store.NopStore{}
	}
	return &Registry{
		store: ks,
		cells: make(map[string]any),
	}
}

func (r *Registry) Store() store.KeyStore {
	return r.store
}

// Len returns the number of cells created so far.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.cells)
}

// GetOrCreate returns the cell for key, creating it with the persisted
// fallback on first access. Asking for an existing key with a different
// value type panics.
func GetOrCreate[T any](r *Registry, key models.OpinionKey, codec Codec[T]) *Cell[T] {
	id := key.String()

	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.cells[id]; ok {
		cell, ok := existing.(*Cell[T])
		if !ok {
			panic(fmt.Sprintf("reconcile: cell %s has type %T, requested %T", id, existing, (*Cell[T])(nil)))
		}
		return cell
	}

	var fallback *T
	if raw, ok := r.store.Get(id); ok && codec.Decode != nil {
		v, err := codec.Decode(raw)
		if err != nil {
			slog.Warn("discarding unreadable fallback value", "key", id, "error", err)
		} else {
			fallback = &v
		}
	}

	cell := newCell(key, codec, fallback)
	r.cells[id] = cell
	return cell
}

// Opinion returns the cell of a boolean opinion.
func (r *Registry) Opinion(key models.OpinionKey) *Cell[bool] {
	if !key.Kind.IsBoolean() {
		panic(fmt.Sprintf("reconcile: %s is not a boolean opinion", key.Kind))
	}
	return GetOrCreate(r, key, BoolCodec())
}

// PollVote returns the cell of a poll vote with optionCount options.
func (r *Registry) PollVote(key models.OpinionKey, optionCount int) *Cell[models.PollVote] {
	if key.Kind != models.KindPollVote {
		panic(fmt.Sprintf("reconcile: %s is not a poll vote", key.Kind))
	}
	return GetOrCreate(r, key, PollVoteCodec(optionCount))
}

func (r *Registry) ResolveOpinion(key models.OpinionKey) bool {
	return r.Opinion(key).Resolve()
}

func (r *Registry) DispatchOpinion(ctx context.Context, key models.OpinionKey, value bool, mutation Mutation) (Outcome, error) {
	return Invoke(ctx, r.Opinion(key), value, mutation)
}

// AttachOpinion bridges stream into the opinion's cell using the
// registry's store.
func (r *Registry) AttachOpinion(key models.OpinionKey, stream <-chan Emission[bool]) DisposeFn {
	return Attach(r.Opinion(key), stream, r.store, BoolCodec())
}

func (r *Registry) ResolvePoll(key models.OpinionKey, optionCount int) models.PollVote {
	return r.PollVote(key, optionCount).Resolve()
}

// DispatchVote moves the user's vote to option (nil retracts) and adjusts
// the counts optimistically.
func (r *Registry) DispatchVote(ctx context.Context, key models.OpinionKey, option *int, optionCount int, mutation Mutation) (Outcome, error) {
	if !validOption(option, optionCount) {
		return 0, fmt.Errorf("%w: %d of %d", ErrInvalidOption, *option, optionCount)
	}
	cell := r.PollVote(key, optionCount)
	return InvokeFunc(ctx, cell, func(prev models.PollVote) models.PollVote {
		return ApplyVote(prev, option, optionCount)
	}, mutation)
}

func (r *Registry) AttachPoll(key models.OpinionKey, optionCount int, stream <-chan Emission[models.PollVote]) DisposeFn {
	return Attach(r.PollVote(key, optionCount), stream, r.store, PollVoteCodec(optionCount))
}
