// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/lib/pq"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/danielhkuo/opinionsync/auth"
	"github.com/danielhkuo/opinionsync/middleware"
	"github.com/danielhkuo/opinionsync/models"
)

var ErrPollNotFound = errors.New("poll not found")

// Poll limits
const (
	minPollOptions = 2
	maxPollOptions = 20
)

// requireUser authenticates the request and checks the user still exists.
// On failure it writes the error response and returns false.
func requireUser(w http.ResponseWriter, r *http.Request, db *sql.DB, salt string) (string, bool) {
	userID, err := auth.UserFromRequest(r, salt)
	if err != nil {
		middleware.ErrorResponse(w, http.StatusUnauthorized, err.Error())
		return "", false
	}

	var exists bool
	err = db.QueryRow(`SELECT EXISTS (SELECT 1 FROM app_user WHERE id = $1)`, userID).Scan(&exists)
	if err != nil {
		slog.Error("failed to query user", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return "", false
	}
	if !exists {
		middleware.ErrorResponse(w, http.StatusUnauthorized, "Unknown user")
		return "", false
	}

	return userID, true
}

// parseOpinionPath reads {kind} and {entity} from the request path
func parseOpinionPath(r *http.Request) (models.Kind, string, error) {
	kind, err := models.ParseKind(r.PathValue("kind"))
	if err != nil {
		return "", "", err
	}
	entityID := r.PathValue("entity")
	if err := models.ValidateEntityID(entityID); err != nil {
		return "", "", err
	}
	return kind, entityID, nil
}

// loadOpinion returns the stored value, or false when the user never set one
func loadOpinion(db *sql.DB, kind models.Kind, entityID, userID string) (bool, error) {
	var value bool
	err := db.QueryRow(`
		SELECT value FROM opinion
		WHERE kind = $1 AND entity_id = $2 AND user_id = $3
	`, string(kind), entityID, userID).Scan(&value)

	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to query opinion: %w", err)
	}
	return value, nil
}

// loadPoll returns a poll with its options and vote counts
func loadPoll(db *sql.DB, pollID string) (models.PollWithOptions, error) {
	var result models.PollWithOptions
	err := db.QueryRow(`
		SELECT id, title, creator_id, created_at
		FROM poll
		WHERE id = $1
	`, pollID).Scan(&result.Poll.ID, &result.Poll.Title, &result.Poll.CreatorID, &result.Poll.CreatedAt)

	if err == sql.ErrNoRows {
		return result, ErrPollNotFound
	}
	if err != nil {
		return result, fmt.Errorf("failed to query poll: %w", err)
	}

	rows, err := db.Query(`
		SELECT o.idx, o.label, COUNT(v.user_id)
		FROM poll_option o
		LEFT JOIN poll_vote v ON v.poll_id = o.poll_id AND v.option_idx = o.idx
		WHERE o.poll_id = $1
		GROUP BY o.idx, o.label
		ORDER BY o.idx
	`, pollID)
	if err != nil {
		return result, fmt.Errorf("failed to query options: %w", err)
	}
	defer rows.Close()

	result.Options = []models.PollOption{}
	for rows.Next() {
		var opt models.PollOption
		if err := rows.Scan(&opt.Index, &opt.Label, &opt.Count); err != nil {
			return result, fmt.Errorf("failed to scan option: %w", err)
		}
		result.Options = append(result.Options, opt)
	}
	if err := rows.Err(); err != nil {
		return result, fmt.Errorf("failed to read options: %w", err)
	}

	return result, nil
}

// loadSelection returns the user's chosen option index, or nil
func loadSelection(db *sql.DB, pollID, userID string) (*int, error) {
	var idx int
	err := db.QueryRow(`
		SELECT option_idx FROM poll_vote
		WHERE poll_id = $1 AND user_id = $2
	`, pollID, userID).Scan(&idx)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query vote: %w", err)
	}
	return &idx, nil
}

// loadVote builds the reconciled poll value for one user
func loadVote(db *sql.DB, pollID, userID string) (models.PollVote, error) {
	poll, err := loadPoll(db, pollID)
	if err != nil {
		return models.PollVote{}, err
	}

	vote := models.PollVote{Counts: make([]int, len(poll.Options))}
	for i, opt := range poll.Options {
		vote.Counts[i] = opt.Count
	}

	vote.Selected, err = loadSelection(db, pollID, userID)
	if err != nil {
		return models.PollVote{}, err
	}
	return vote, nil
}

// countOptions returns how many options the poll has
func countOptions(db *sql.DB, pollID string) (int, error) {
	var exists bool
	err := db.QueryRow(`SELECT EXISTS (SELECT 1 FROM poll WHERE id = $1)`, pollID).Scan(&exists)
	if err != nil {
		return 0, fmt.Errorf("failed to query poll: %w", err)
	}
	if !exists {
		return 0, ErrPollNotFound
	}

	var n int
	err = db.QueryRow(`SELECT COUNT(*) FROM poll_option WHERE poll_id = $1`, pollID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count options: %w", err)
	}
	return n, nil
}

// isUniqueViolation recognizes duplicate key errors from both drivers
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		switch liteErr.Code() {
		case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
			return true
		case sqlite3.SQLITE_CONSTRAINT:
			// extended codes disabled
			return strings.Contains(liteErr.Error(), "UNIQUE")
		}
	}
	return false
}
