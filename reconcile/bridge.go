// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package reconcile

import (
	"context"
	"log/slog"
	"sync"

	"github.com/danielhkuo/opinionsync/store"
)

// Emission is one item of a subscription stream. Loading emissions carry no
// value and are distinct from a legitimate default value.
type Emission[T any] struct {
	Value   T
	Loading bool
}

func Loading[T any]() Emission[T] {
	return Emission[T]{Loading: true}
}

func Value[T any](v T) Emission[T] {
	return Emission[T]{Value: v}
}

// DisposeFn stops a bridge. It is safe to call more than once.
type DisposeFn func()

// Attach forwards every non-loading emission of stream into cell.Confirm
// and mirrors the cell's resolved value into ks. Only the bridge goroutine
// writes ks; changes made elsewhere (optimistic writes, rollbacks) just
// wake it, and it persists whatever the cell resolves to at that moment.
//
// Forwarding ends when the stream is closed; mirroring ends when the
// returned DisposeFn is called. The last persisted value is left in place.
func Attach[T any](cell *Cell[T], stream <-chan Emission[T], ks store.KeyStore, codec Codec[T]) DisposeFn {
	if ks == nil {
		ks = store.NopStore{}
	}
	key := cell.key.String()

	persist := func() {
		if codec.Encode == nil {
			return
		}
		s, err := codec.Encode(cell.Resolve())
		if err != nil {
			slog.Warn("failed to persist fallback value", "key", key, "error", err)
			return
		}
		ks.Set(key, s)
	}

	dirty := make(chan struct{}, 1)
	unwatch := cell.watch(func(T) {
		select {
		case dirty <- struct{}{}:
		default:
		}
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		defer close(done)
		for {
			select {
			case <-ctx.Done():
				// Flush a change that raced with dispose
				select {
				case <-dirty:
					persist()
				default:
				}
				return
			case <-dirty:
				persist()
			case e, ok := <-stream:
				if !ok {
					slog.Debug("subscription stream closed", "key", key)
					stream = nil
					continue
				}
				if e.Loading {
					continue
				}
				if ctx.Err() != nil {
					return
				}
				cell.Confirm(e.Value)
				persist()
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			unwatch()
			cancel()
			<-done
		})
	}
}
