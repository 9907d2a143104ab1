// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package reconcile

import (
	"encoding/json"
	"fmt"

	"github.com/danielhkuo/opinionsync/models"
)

// Codec describes a value type to the reconciler: how to compare it, what
// its default is, how to copy it and how it is persisted in the store.
type Codec[T any] struct {
	Equal func(a, b T) bool
	// Default is used when no layer has a value. Nil means the zero value.
	Default func() T
	// Clone deep-copies values with reference fields. Nil means plain copy.
	Clone  func(T) T
	Encode func(T) (string, error)
	Decode func(string) (T, error)
}

func (c Codec[T]) zero() T {
	if c.Default != nil {
		return c.Default()
	}
	var v T
	return v
}

func (c Codec[T]) clone(v T) T {
	if c.Clone != nil {
		return c.Clone(v)
	}
	return v
}

// JSONCodec persists values as JSON.
func JSONCodec[T any](equal func(a, b T) bool) Codec[T] {
	return Codec[T]{
		Equal: equal,
		Encode: func(v T) (string, error) {
			b, err := json.Marshal(v)
			if err != nil {
				return "", fmt.Errorf("failed to encode value: %w", err)
			}
			return string(b), nil
		},
		Decode: func(s string) (T, error) {
			var v T
			if err := json.Unmarshal([]byte(s), &v); err != nil {
				return v, fmt.Errorf("failed to decode value: %w", err)
			}
			return v, nil
		},
	}
}

// BoolCodec is the codec of every boolean opinion kind.
func BoolCodec() Codec[bool] {
	return JSONCodec(func(a, b bool) bool { return a == b })
}

// PollVoteCodec normalizes decoded counts to optionCount entries so a
// stale fallback from a poll that gained options still lines up.
func PollVoteCodec(optionCount int) Codec[models.PollVote] {
	c := JSONCodec(func(a, b models.PollVote) bool { return a.Equal(b) })
	c.Clone = models.PollVote.Clone
	c.Default = func() models.PollVote {
		return models.PollVote{Counts: make([]int, optionCount)}
	}
	decode := c.Decode
	c.Decode = func(s string) (models.PollVote, error) {
		v, err := decode(s)
		if err != nil {
			return v, err
		}
		v.Counts = NormalizeCounts(v.Counts, optionCount)
		if v.Selected != nil && (*v.Selected < 0 || *v.Selected >= optionCount) {
			v.Selected = nil
		}
		return v, nil
	}
	return c
}
