// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package reconcile

import (
	"sync"

	"github.com/danielhkuo/opinionsync/metrics"
	"github.com/danielhkuo/opinionsync/models"
)

// Token identifies one optimistic write. Rollback and Settle only act on
// the token of the latest write.
type Token uint64

// Cell holds the optimistic, confirmed and fallback layers of one opinion
// value. Resolve reads them in that order.
type Cell[T any] struct {
	key   models.OpinionKey
	codec Codec[T]

	mu sync.Mutex

	confirmed    T
	hasConfirmed bool

	optimistic    T
	hasOptimistic bool
	// shadowing is set when the latest optimistic write replaced an older
	// optimistic value rather than falling through to confirmed.
	shadowing bool

	fallback    T
	hasFallback bool

	inFlight   bool
	generation uint64
	settled    uint64

	watchers    []watcher[T]
	nextWatchID int
}

type watcher[T any] struct {
	id int
	fn func(T)
}

// State is a point-in-time copy of a cell's layers.
type State[T any] struct {
	Confirmed     T
	HasConfirmed  bool
	Optimistic    T
	HasOptimistic bool
	Fallback      T
	HasFallback   bool
	InFlight      bool
	Generation    Token
	Settled       bool
}

func newCell[T any](key models.OpinionKey, codec Codec[T], fallback *T) *Cell[T] {
	c := &Cell[T]{key: key, codec: codec}
	if fallback != nil {
		c.fallback = *fallback
		c.hasFallback = true
	}
	return c
}

func (c *Cell[T]) Key() models.OpinionKey {
	return c.key
}

// Resolve returns optimistic, else confirmed, else fallback, else the
// codec default.
func (c *Cell[T]) Resolve() T {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.codec.clone(c.resolveLocked())
}

func (c *Cell[T]) resolveLocked() T {
	switch {
	case c.hasOptimistic:
		return c.optimistic
	case c.hasConfirmed:
		return c.confirmed
	case c.hasFallback:
		return c.fallback
	}
	return c.codec.zero()
}

// SetOptimistic records a local intent and returns its token. It does not
// look at the in-flight flag; Invoke does.
func (c *Cell[T]) SetOptimistic(v T) Token {
	var tok Token
	c.update(func() {
		tok = c.setOptimisticLocked(v)
	})
	return tok
}

func (c *Cell[T]) setOptimisticLocked(v T) Token {
	c.shadowing = c.hasOptimistic
	c.optimistic = c.codec.clone(v)
	c.hasOptimistic = true
	c.generation++
	return Token(c.generation)
}

// Confirm applies an authoritative value. A matching optimistic value is
// cleared; a different one keeps shadowing it until its mutation settles
// or rolls back.
func (c *Cell[T]) Confirm(v T) {
	result := "applied"
	c.update(func() {
		c.confirmed = c.codec.clone(v)
		c.hasConfirmed = true
		c.hasFallback = false

		if !c.hasOptimistic {
			return
		}
		if c.codec.Equal(c.optimistic, v) {
			c.hasOptimistic = false
			c.shadowing = false
			result = "settled"
			return
		}
		result = "shadowed"
	})
	metrics.Confirms.WithLabelValues(string(c.key.Kind), result).Inc()
}

// Rollback undoes the write identified by tok. If it replaced an earlier
// optimistic value, previous is restored in its place; otherwise the
// optimistic layer is cleared. Stale tokens are ignored.
func (c *Cell[T]) Rollback(tok Token, previous T) {
	c.update(func() {
		if Token(c.generation) != tok {
			return
		}
		if c.shadowing && !(c.hasConfirmed && c.codec.Equal(c.confirmed, previous)) {
			c.optimistic = c.codec.clone(previous)
		} else {
			c.hasOptimistic = false
		}
		c.shadowing = false
	})
}

// Settle marks the write identified by tok as accepted by the server. The
// optimistic value stays until the subscription confirms it.
func (c *Cell[T]) Settle(tok Token) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if Token(c.generation) == tok {
		c.settled = c.generation
	}
}

func (c *Cell[T]) InFlight() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inFlight
}

func (c *Cell[T]) Generation() Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Token(c.generation)
}

func (c *Cell[T]) State() State[T] {
	c.mu.Lock()
	defer c.mu.Unlock()
	return State[T]{
		Confirmed:     c.codec.clone(c.confirmed),
		HasConfirmed:  c.hasConfirmed,
		Optimistic:    c.codec.clone(c.optimistic),
		HasOptimistic: c.hasOptimistic,
		Fallback:      c.codec.clone(c.fallback),
		HasFallback:   c.hasFallback,
		InFlight:      c.inFlight,
		Generation:    Token(c.generation),
		Settled:       c.hasOptimistic && c.settled == c.generation,
	}
}

// begin takes the in-flight lock and applies the optimistic value computed
// from the current resolved value, in one critical section.
func (c *Cell[T]) begin(next func(prev T) T) (prev T, tok Token, ok bool) {
	c.update(func() {
		if c.inFlight {
			return
		}
		prev = c.codec.clone(c.resolveLocked())
		c.inFlight = true
		tok = c.setOptimisticLocked(next(c.codec.clone(prev)))
		ok = true
	})
	return prev, tok, ok
}

func (c *Cell[T]) end() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.inFlight = false
}

// watch registers fn to run after every change of the resolved value.
// fn runs outside the cell lock.
func (c *Cell[T]) watch(fn func(T)) (cancel func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextWatchID++
	id := c.nextWatchID
	c.watchers = append(c.watchers, watcher[T]{id: id, fn: fn})

	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		for i, w := range c.watchers {
			if w.id == id {
				c.watchers = append(c.watchers[:i], c.watchers[i+1:]...)
				return
			}
		}
	}
}

// update runs fn under the lock and notifies watchers if the resolved
// value changed.
func (c *Cell[T]) update(fn func()) {
	c.mu.Lock()
	before := c.resolveLocked()
	fn()
	after := c.resolveLocked()
	if c.codec.Equal(before, after) || len(c.watchers) == 0 {
		c.mu.Unlock()
		return
	}
	fns := make([]func(T), len(c.watchers))
	for i, w := range c.watchers {
		fns[i] = w.fn
	}
	after = c.codec.clone(after)
	c.mu.Unlock()

	for _, fn := range fns {
		fn(after)
	}
}
