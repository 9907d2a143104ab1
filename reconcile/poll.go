// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package reconcile

import (
	"errors"

	"github.com/danielhkuo/opinionsync/models"
)

var ErrInvalidOption = errors.New("option index out of range")

// NormalizeCounts pads with zeros or truncates counts to n entries and
// clamps negatives to zero. The input is never modified.
func NormalizeCounts(counts []int, n int) []int {
	if n < 0 {
		n = 0
	}
	out := make([]int, n)
	copy(out, counts)
	for i, c := range out {
		if c < 0 {
			out[i] = 0
		}
	}
	return out
}

// ApplyVote moves the user's vote from prev.Selected to option, adjusting
// the counts of both options. A nil option retracts the vote.
func ApplyVote(prev models.PollVote, option *int, optionCount int) models.PollVote {
	next := models.PollVote{Counts: NormalizeCounts(prev.Counts, optionCount)}

	if prev.Selected != nil && option != nil && *prev.Selected == *option {
		next.Selected = models.Option(*option)
		return next
	}

	if prev.Selected != nil {
		if i := *prev.Selected; i >= 0 && i < optionCount && next.Counts[i] > 0 {
			next.Counts[i]--
		}
	}
	if option != nil && validOption(option, optionCount) {
		next.Counts[*option]++
		next.Selected = models.Option(*option)
	}
	return next
}

func validOption(option *int, optionCount int) bool {
	return option == nil || (*option >= 0 && *option < optionCount)
}

// OptionView is one row of a rendered poll.
type OptionView struct {
	Index    int
	Count    int
	Selected bool
}

// OptionViews splits a vote into per-option rows for rendering.
func OptionViews(v models.PollVote, optionCount int) []OptionView {
	counts := NormalizeCounts(v.Counts, optionCount)
	views := make([]OptionView, optionCount)
	for i := range views {
		views[i] = OptionView{
			Index:    i,
			Count:    counts[i],
			Selected: v.Selected != nil && *v.Selected == i,
		}
	}
	return views
}
