package models

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"
)

// Kind identifies which opinion a key refers to.
type Kind string

// Opinion kinds
const (
	KindLike           Kind = "like"
	KindPollVote       Kind = "poll_vote"
	KindParticipation  Kind = "participation"
	KindCommentLike    Kind = "comment_like"
	KindCommentDislike Kind = "comment_dislike"
)

var (
	ErrInvalidKind     = errors.New("invalid opinion kind")
	ErrInvalidEntityID = errors.New("invalid entity id")
)

// ParseKind validates a kind taken from a path or a persisted key.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(s); k {
	case KindLike, KindPollVote, KindParticipation, KindCommentLike, KindCommentDislike:
		return k, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidKind, s)
}

// IsBoolean reports whether values of this kind are plain booleans.
// Everything except poll votes is.
func (k Kind) IsBoolean() bool {
	return k != KindPollVote
}

// Opposite returns the kind that is mutually exclusive with k, if any.
func (k Kind) Opposite() (Kind, bool) {
	switch k {
	case KindCommentLike:
		return KindCommentDislike, true
	case KindCommentDislike:
		return KindCommentLike, true
	}
	return "", false
}

// keySeparator joins OpinionKey fields, so no field may contain it.
const keySeparator = ":"

// ValidateEntityID rejects ids that could not round-trip through an
// OpinionKey string.
func ValidateEntityID(id string) error {
	if id == "" {
		return fmt.Errorf("%w: empty", ErrInvalidEntityID)
	}
	if strings.Contains(id, keySeparator) {
		return fmt.Errorf("%w: %q contains %q", ErrInvalidEntityID, id, keySeparator)
	}
	return nil
}

// OpinionKey identifies one reconciled value.
type OpinionKey struct {
	EntityID string `json:"entity_id"`
	UserID   string `json:"user_id"`
	Kind     Kind   `json:"kind"`
}

// String is used both as the registry map key and as the fallback store key.
func (k OpinionKey) String() string {
	return strings.Join([]string{"opinion", string(k.Kind), k.EntityID, k.UserID}, keySeparator)
}

// Topic is the push channel shared by every user watching the entity.
func (k OpinionKey) Topic() string {
	return string(k.Kind) + ":" + k.EntityID
}

// ParseOpinionKey is the inverse of OpinionKey.String.
func ParseOpinionKey(s string) (OpinionKey, error) {
	parts := strings.Split(s, keySeparator)
	if len(parts) != 4 || parts[0] != "opinion" || parts[2] == "" || parts[3] == "" {
		return OpinionKey{}, fmt.Errorf("malformed opinion key %q", s)
	}
	kind, err := ParseKind(parts[1])
	if err != nil {
		return OpinionKey{}, err
	}
	return OpinionKey{Kind: kind, EntityID: parts[2], UserID: parts[3]}, nil
}

// PollVote is the value type of KindPollVote keys.
// Selected is nil when the user has not voted.
type PollVote struct {
	Selected *int  `json:"selected_option"`
	Counts   []int `json:"counts"`
}

// Equal compares the selection and every count.
func (v PollVote) Equal(o PollVote) bool {
	if (v.Selected == nil) != (o.Selected == nil) {
		return false
	}
	if v.Selected != nil && *v.Selected != *o.Selected {
		return false
	}
	return slices.Equal(v.Counts, o.Counts)
}

// Clone deep-copies the vote so callers can't alias cell state.
func (v PollVote) Clone() PollVote {
	out := PollVote{Counts: slices.Clone(v.Counts)}
	if v.Selected != nil {
		s := *v.Selected
		out.Selected = &s
	}
	return out
}

// Option returns a pointer suitable for PollVote.Selected.
func Option(i int) *int {
	return &i
}

// Request types

type CreateSessionRequest struct {
	Username string `json:"username"`
}

type CreatePollRequest struct {
	Title   string   `json:"title"`
	Options []string `json:"options"`
}

type SetOpinionRequest struct {
	Value bool `json:"value"`
}

// Option nil retracts the caller's vote.
type CastVoteRequest struct {
	Option *int `json:"option"`
}

// Response types

type CreateSessionResponse struct {
	UserID    string `json:"user_id"`
	UserToken string `json:"user_token"`
}

type CreatePollResponse struct {
	PollID string `json:"poll_id"`
}

type OpinionResponse struct {
	Kind     Kind   `json:"kind"`
	EntityID string `json:"entity_id"`
	Value    bool   `json:"value"`
}

// OpinionEvent is pushed over the subscription socket. Exactly one of
// Value and Vote is set, depending on Kind.
type OpinionEvent struct {
	Kind     Kind      `json:"kind"`
	EntityID string    `json:"entity_id"`
	Value    *bool     `json:"value,omitempty"`
	Vote     *PollVote `json:"vote,omitempty"`
	SentAt   time.Time `json:"sent_at"`
}

// Domain types

type Poll struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	CreatorID string    `json:"creator_id"`
	CreatedAt time.Time `json:"created_at"`
}

type PollOption struct {
	Index int    `json:"index"`
	Label string `json:"label"`
	Count int    `json:"count"`
}

type PollWithOptions struct {
	Poll    Poll         `json:"poll"`
	Options []PollOption `json:"options"`
	// Selected is the caller's own vote, when authenticated.
	Selected *int `json:"selected_option,omitempty"`
}

type User struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

// Error response

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
