// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package reconcile

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/danielhkuo/opinionsync/metrics"
	"github.com/danielhkuo/opinionsync/models"
)

// Outcome reports what happened to a dispatched mutation.
// The zero value means nothing was dispatched (invalid input).
type Outcome int

const (
	OutcomeConfirmed Outcome = iota + 1
	OutcomeRolledBack
	OutcomeIgnored
)

func (o Outcome) String() string {
	switch o {
	case OutcomeConfirmed:
		return "confirmed"
	case OutcomeRolledBack:
		return "rolled_back"
	case OutcomeIgnored:
		return "ignored"
	}
	return "none"
}

// Mutation is the outward call that makes a local intent durable on the
// server. Any non-nil error is treated as a rejection.
type Mutation func(ctx context.Context) error

// MutationRejectedError is returned alongside OutcomeRolledBack.
type MutationRejectedError struct {
	Key models.OpinionKey
	Err error
}

func (e *MutationRejectedError) Error() string {
	return fmt.Sprintf("mutation for %s rejected: %v", e.Key, e.Err)
}

func (e *MutationRejectedError) Unwrap() error {
	return e.Err
}

// Invoke shows value immediately and runs mutation. While a mutation is in
// flight further calls on the same cell return OutcomeIgnored.
//
// No timeout is applied; a mutation that never returns keeps the cell in
// flight. Put a deadline on ctx to bound it.
func Invoke[T any](ctx context.Context, cell *Cell[T], value T, mutation Mutation) (Outcome, error) {
	return InvokeFunc(ctx, cell, func(T) T { return value }, mutation)
}

// InvokeFunc is Invoke with the optimistic value derived from the value
// displayed at dispatch time.
func InvokeFunc[T any](ctx context.Context, cell *Cell[T], next func(prev T) T, mutation Mutation) (outcome Outcome, err error) {
	kind := string(cell.key.Kind)
	start := time.Now()

	previous, tok, ok := cell.begin(next)
	if !ok {
		metrics.Dispatches.WithLabelValues(kind, OutcomeIgnored.String()).Inc()
		slog.Debug("mutation ignored, another is in flight", "key", cell.key.String())
		return OutcomeIgnored, nil
	}

	settled := false
	defer func() {
		if !settled {
			// mutation panicked
			cell.Rollback(tok, previous)
		}
		cell.end()
		metrics.Dispatches.WithLabelValues(kind, outcome.String()).Inc()
		metrics.DispatchDuration.WithLabelValues(kind).Observe(time.Since(start).Seconds())
	}()

	if mErr := mutation(ctx); mErr != nil {
		cell.Rollback(tok, previous)
		settled = true
		slog.Warn("mutation rejected, rolled back", "key", cell.key.String(), "error", mErr)
		return OutcomeRolledBack, &MutationRejectedError{Key: cell.key, Err: mErr}
	}

	cell.Settle(tok)
	settled = true
	return OutcomeConfirmed, nil
}
