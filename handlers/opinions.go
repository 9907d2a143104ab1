// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"database/sql"
	"log/slog"
	"net/http"
	"time"

	"github.com/danielhkuo/opinionsync/cliparse"
	"github.com/danielhkuo/opinionsync/middleware"
	"github.com/danielhkuo/opinionsync/models"
	"github.com/danielhkuo/opinionsync/pubsub"
)

type OpinionHandler struct {
	db  *sql.DB
	cfg cliparse.Config
	hub *pubsub.Hub
}

func NewOpinionHandler(db *sql.DB, cfg cliparse.Config, hub *pubsub.Hub) *OpinionHandler {
	return &OpinionHandler{db: db, cfg: cfg, hub: hub}
}

// GetOpinion handles GET /opinions/{kind}/{entity}
func (h *OpinionHandler) GetOpinion(w http.ResponseWriter, r *http.Request) {
	kind, entityID, ok := booleanOpinionPath(w, r)
	if !ok {
		return
	}

	userID, ok := requireUser(w, r, h.db, h.cfg.UserTokenSalt)
	if !ok {
		return
	}

	value, err := loadOpinion(h.db, kind, entityID, userID)
	if err != nil {
		slog.Error("failed to load opinion", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	middleware.JSONResponse(w, http.StatusOK, models.OpinionResponse{
		Kind:     kind,
		EntityID: entityID,
		Value:    value,
	})
}

// SetOpinion handles PUT /opinions/{kind}/{entity}
// Setting comment_like clears comment_dislike for the same user, and vice versa
func (h *OpinionHandler) SetOpinion(w http.ResponseWriter, r *http.Request) {
	kind, entityID, ok := booleanOpinionPath(w, r)
	if !ok {
		return
	}

	userID, ok := requireUser(w, r, h.db, h.cfg.UserTokenSalt)
	if !ok {
		return
	}

	var req models.SetOpinionRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	tx, err := h.db.Begin()
	if err != nil {
		slog.Error("failed to begin transaction", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}
	defer tx.Rollback()

	now := time.Now()
	_, err = tx.Exec(`
		INSERT INTO opinion (kind, entity_id, user_id, value, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (kind, entity_id, user_id)
		DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`, string(kind), entityID, userID, req.Value, now)

	if err != nil {
		slog.Error("failed to upsert opinion", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to save opinion")
		return
	}

	// Clear the opposite reaction
	opposite, hasOpposite := kind.Opposite()
	clearedOpposite := false
	if hasOpposite && req.Value {
		res, err := tx.Exec(`
			UPDATE opinion
			SET value = $1, updated_at = $2
			WHERE kind = $3 AND entity_id = $4 AND user_id = $5 AND value = $6
		`, false, now, string(opposite), entityID, userID, true)

		if err != nil {
			slog.Error("failed to clear opposite opinion", "error", err)
			middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to save opinion")
			return
		}
		n, _ := res.RowsAffected()
		clearedOpposite = n > 0
	}

	if err := tx.Commit(); err != nil {
		slog.Error("failed to commit transaction", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to save opinion")
		return
	}

	key := models.OpinionKey{Kind: kind, EntityID: entityID, UserID: userID}
	h.hub.Publish(key.Topic())
	if clearedOpposite {
		key.Kind = opposite
		h.hub.Publish(key.Topic())
	}

	slog.Info("opinion set",
		"kind", kind,
		"entity_id", entityID,
		"user_id", userID,
		"value", req.Value,
		"cleared_opposite", clearedOpposite,
	)

	middleware.JSONResponse(w, http.StatusOK, models.OpinionResponse{
		Kind:     kind,
		EntityID: entityID,
		Value:    req.Value,
	})
}

// booleanOpinionPath parses the path and rejects poll votes, which have their own endpoint
func booleanOpinionPath(w http.ResponseWriter, r *http.Request) (models.Kind, string, bool) {
	kind, entityID, err := parseOpinionPath(r)
	if err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, err.Error())
		return "", "", false
	}
	if !kind.IsBoolean() {
		middleware.ErrorResponse(w, http.StatusBadRequest, "poll votes are cast via POST /polls/{id}/vote")
		return "", "", false
	}
	return kind, entityID, true
}
