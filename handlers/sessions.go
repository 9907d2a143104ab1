// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"database/sql"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/danielhkuo/opinionsync/auth"
	"github.com/danielhkuo/opinionsync/cliparse"
	"github.com/danielhkuo/opinionsync/middleware"
	"github.com/danielhkuo/opinionsync/models"
)

type SessionHandler struct {
	db  *sql.DB
	cfg cliparse.Config
}

func NewSessionHandler(db *sql.DB, cfg cliparse.Config) *SessionHandler {
	return &SessionHandler{db: db, cfg: cfg}
}

// CreateSession handles POST /sessions
// Claims a username and returns the credentials for it
func (h *SessionHandler) CreateSession(w http.ResponseWriter, r *http.Request) {
	var req models.CreateSessionRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	username := strings.TrimSpace(req.Username)
	if username == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "username is required")
		return
	}
	if len(username) < 2 || len(username) > 50 {
		middleware.ErrorResponse(w, http.StatusBadRequest, "username must be 2-50 characters")
		return
	}

	userID := auth.NewUserID()

	// UNIQUE constraint prevents duplicates
	_, err := h.db.Exec(`
		INSERT INTO app_user (id, username, created_at)
		VALUES ($1, $2, $3)
	`, userID, username, time.Now())

	if err != nil {
		if isUniqueViolation(err) {
			middleware.ErrorResponse(w, http.StatusConflict, "Username already taken")
			return
		}
		slog.Error("failed to insert user", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to create session")
		return
	}

	slog.Info("session created", "user_id", userID, "username", username)

	middleware.JSONResponse(w, http.StatusCreated, models.CreateSessionResponse{
		UserID:    userID,
		UserToken: auth.GenerateUserToken(userID, h.cfg.UserTokenSalt),
	})
}

// GetMe handles GET /me
func (h *SessionHandler) GetMe(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r, h.db, h.cfg.UserTokenSalt)
	if !ok {
		return
	}

	var user models.User
	err := h.db.QueryRow(`
		SELECT id, username FROM app_user WHERE id = $1
	`, userID).Scan(&user.ID, &user.Username)

	if err == sql.ErrNoRows {
		middleware.ErrorResponse(w, http.StatusNotFound, "User not found")
		return
	}
	if err != nil {
		slog.Error("failed to query user", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	middleware.JSONResponse(w, http.StatusOK, user)
}
