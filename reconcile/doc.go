// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package reconcile keeps per-user opinion values (likes, poll votes,
participation, comment likes) responsive while the server catches up.

# Layers

Every value lives in a Cell with three layers, read in this order by
Resolve:

  - optimistic: the user's latest intent, set before the server answers
  - confirmed: the latest value pushed by the server subscription
  - fallback: the value persisted by a previous cell for the same key

and finally the codec default (false, or an empty PollVote). Once the
first confirmed value arrives the fallback is never read again.

# Dispatching

Invoke (or Registry.DispatchOpinion / DispatchVote) applies the optimistic
value, runs the outward mutation and then either settles or rolls back:

	outcome, err := reg.DispatchOpinion(ctx, key, true, func(ctx context.Context) error {
		return api.SetOpinion(ctx, models.KindLike, postID, true)
	})

Only one mutation per cell may be in flight; others return OutcomeIgnored.
A rejected mutation returns OutcomeRolledBack with a *MutationRejectedError.
Nothing is retried.

# Convergence

Confirm clears the optimistic layer only when the server value matches it.
A different server value is assumed to be a read that predates the write
and is kept underneath until the mutation settles or rolls back. Settling
keeps the optimistic value on display until the subscription delivers the
matching value, so the display never flashes back to the old state.

Each optimistic write bumps a generation counter; Rollback and Settle carry
the token of the write they belong to and are ignored once a newer write
exists.

# Subscriptions

Attach bridges a stream of Emission values into a cell and mirrors the
resolved value into a store.KeyStore, which is where the next cell for the
same key gets its fallback:

	dispose := reg.AttachOpinion(key, stream)
	defer dispose()

# Polls

Poll votes use the same cell with a models.PollVote value. ApplyVote moves
the selection and adjusts both affected counts; OptionViews splits the
result into per-option rows for rendering.
*/
package reconcile
