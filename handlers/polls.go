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
	"time"

	"github.com/danielhkuo/opinionsync/auth"
	"github.com/danielhkuo/opinionsync/cliparse"
	"github.com/danielhkuo/opinionsync/middleware"
	"github.com/danielhkuo/opinionsync/models"
	"github.com/danielhkuo/opinionsync/pubsub"
)

type PollHandler struct {
	db  *sql.DB
	cfg cliparse.Config
	hub *pubsub.Hub
}

func NewPollHandler(db *sql.DB, cfg cliparse.Config, hub *pubsub.Hub) *PollHandler {
	return &PollHandler{db: db, cfg: cfg, hub: hub}
}

// CreatePoll handles POST /polls
func (h *PollHandler) CreatePoll(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r, h.db, h.cfg.UserTokenSalt)
	if !ok {
		return
	}

	var req models.CreatePollRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	// Validate input
	title := strings.TrimSpace(req.Title)
	if title == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "title is required")
		return
	}
	if len(req.Options) < minPollOptions || len(req.Options) > maxPollOptions {
		middleware.ErrorResponse(w, http.StatusBadRequest,
			fmt.Sprintf("poll must have %d-%d options", minPollOptions, maxPollOptions))
		return
	}
	labels := make([]string, len(req.Options))
	for i, label := range req.Options {
		labels[i] = strings.TrimSpace(label)
		if labels[i] == "" {
			middleware.ErrorResponse(w, http.StatusBadRequest, fmt.Sprintf("option %d has an empty label", i))
			return
		}
	}

	pollID, err := auth.GenerateID(16)
	if err != nil {
		slog.Error("failed to generate poll ID", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to create poll")
		return
	}

	tx, err := h.db.Begin()
	if err != nil {
		slog.Error("failed to begin transaction", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		INSERT INTO poll (id, title, creator_id, created_at)
		VALUES ($1, $2, $3, $4)
	`, pollID, title, userID, time.Now())

	if err != nil {
		slog.Error("failed to insert poll", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to create poll")
		return
	}

	for i, label := range labels {
		_, err = tx.Exec(`
			INSERT INTO poll_option (poll_id, idx, label)
			VALUES ($1, $2, $3)
		`, pollID, i, label)

		if err != nil {
			slog.Error("failed to insert option", "error", err, "poll_id", pollID)
			middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to create poll")
			return
		}
	}

	if err := tx.Commit(); err != nil {
		slog.Error("failed to commit transaction", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to create poll")
		return
	}

	slog.Info("poll created", "poll_id", pollID, "creator_id", userID, "options", len(labels))

	middleware.JSONResponse(w, http.StatusCreated, models.CreatePollResponse{
		PollID: pollID,
	})
}

// GetPoll handles GET /polls/{id}
// Counts are public. With valid credentials the caller's own selection is included.
func (h *PollHandler) GetPoll(w http.ResponseWriter, r *http.Request) {
	pollID := r.PathValue("id")
	if pollID == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "poll_id is required")
		return
	}

	poll, err := loadPoll(h.db, pollID)
	if errors.Is(err, ErrPollNotFound) {
		middleware.ErrorResponse(w, http.StatusNotFound, "Poll not found")
		return
	}
	if err != nil {
		slog.Error("failed to load poll", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	if userID, err := auth.UserFromRequest(r, h.cfg.UserTokenSalt); err == nil {
		poll.Selected, err = loadSelection(h.db, pollID, userID)
		if err != nil {
			slog.Error("failed to load selection", "error", err)
			middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
			return
		}
	}

	middleware.JSONResponse(w, http.StatusOK, poll)
}

// CastVote handles POST /polls/{id}/vote
// A null option retracts the caller's vote. Returns the caller's updated PollVote.
func (h *PollHandler) CastVote(w http.ResponseWriter, r *http.Request) {
	pollID := r.PathValue("id")
	if pollID == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "poll_id is required")
		return
	}

	userID, ok := requireUser(w, r, h.db, h.cfg.UserTokenSalt)
	if !ok {
		return
	}

	var req models.CastVoteRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	n, err := countOptions(h.db, pollID)
	if errors.Is(err, ErrPollNotFound) {
		middleware.ErrorResponse(w, http.StatusNotFound, "Poll not found")
		return
	}
	if err != nil {
		slog.Error("failed to count options", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	if req.Option == nil {
		_, err = h.db.Exec(`
			DELETE FROM poll_vote WHERE poll_id = $1 AND user_id = $2
		`, pollID, userID)
	} else {
		if *req.Option < 0 || *req.Option >= n {
			middleware.ErrorResponse(w, http.StatusBadRequest,
				fmt.Sprintf("option must be between 0 and %d", n-1))
			return
		}
		_, err = h.db.Exec(`
			INSERT INTO poll_vote (poll_id, user_id, option_idx, updated_at)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (poll_id, user_id)
			DO UPDATE SET option_idx = excluded.option_idx, updated_at = excluded.updated_at
		`, pollID, userID, *req.Option, time.Now())
	}

	if err != nil {
		slog.Error("failed to save vote", "error", err, "poll_id", pollID)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to save vote")
		return
	}

	key := models.OpinionKey{Kind: models.KindPollVote, EntityID: pollID, UserID: userID}
	h.hub.Publish(key.Topic())

	vote, err := loadVote(h.db, pollID, userID)
	if err != nil {
		slog.Error("failed to load vote", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	if req.Option == nil {
		slog.Info("vote retracted", "poll_id", pollID, "user_id", userID)
	} else {
		slog.Info("vote cast", "poll_id", pollID, "user_id", userID, "option", *req.Option)
	}

	middleware.JSONResponse(w, http.StatusOK, vote)
}
