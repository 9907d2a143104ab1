// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/danielhkuo/opinionsync/cliparse"
	"github.com/danielhkuo/opinionsync/metrics"
	"github.com/danielhkuo/opinionsync/middleware"
	"github.com/danielhkuo/opinionsync/models"
	"github.com/danielhkuo/opinionsync/pubsub"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = 54 * time.Second

	// Subscribers never send data, only control frames
	maxMessageSize = 512
)

type SubscribeHandler struct {
	db       *sql.DB
	cfg      cliparse.Config
	hub      *pubsub.Hub
	upgrader websocket.Upgrader
}

func NewSubscribeHandler(db *sql.DB, cfg cliparse.Config, hub *pubsub.Hub) *SubscribeHandler {
	return &SubscribeHandler{
		db:  db,
		cfg: cfg,
		hub: hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 2048,
			// Auth is header based, so any origin may connect
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Subscribe handles GET /subscribe/{kind}/{entity}
// Upgrades to a WebSocket and pushes the caller's current value on connect
// and again after every change to the entity.
func (h *SubscribeHandler) Subscribe(w http.ResponseWriter, r *http.Request) {
	kind, entityID, err := parseOpinionPath(r)
	if err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	userID, ok := requireUser(w, r, h.db, h.cfg.UserTokenSalt)
	if !ok {
		return
	}

	key := models.OpinionKey{Kind: kind, EntityID: entityID, UserID: userID}

	// Subscribe before the first read so no change slips between them
	sub := h.hub.Subscribe(key.Topic())
	defer sub.Close()

	// Fail before upgrading so the client sees a normal HTTP error
	first, err := h.snapshot(key)
	if errors.Is(err, ErrPollNotFound) {
		middleware.ErrorResponse(w, http.StatusNotFound, "Poll not found")
		return
	}
	if err != nil {
		slog.Error("failed to load subscription snapshot", "error", err, "key", key.String())
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error
		slog.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	metrics.Subscribers.Inc()
	defer metrics.Subscribers.Dec()

	slog.Info("subscriber connected", "subscription_id", sub.ID, "topic", sub.Topic, "user_id", userID)

	done := make(chan struct{})
	go readPump(conn, done)

	if err := h.push(conn, first); err != nil {
		slog.Debug("initial push failed", "error", err, "subscription_id", sub.ID)
		return
	}

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			slog.Info("subscriber disconnected", "subscription_id", sub.ID, "topic", sub.Topic)
			return

		case <-r.Context().Done():
			return

		case <-sub.C:
			event, err := h.snapshot(key)
			if err != nil {
				slog.Error("failed to load subscription snapshot", "error", err, "key", key.String())
				continue
			}
			if err := h.push(conn, event); err != nil {
				slog.Debug("push failed", "error", err, "subscription_id", sub.ID)
				return
			}

		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (h *SubscribeHandler) push(conn *websocket.Conn, event models.OpinionEvent) error {
	event.SentAt = time.Now()
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(event); err != nil {
		return err
	}
	metrics.Pushes.WithLabelValues(string(event.Kind)).Inc()
	return nil
}

// snapshot reads the current value of key as an event
func (h *SubscribeHandler) snapshot(key models.OpinionKey) (models.OpinionEvent, error) {
	event := models.OpinionEvent{Kind: key.Kind, EntityID: key.EntityID}

	if key.Kind.IsBoolean() {
		value, err := loadOpinion(h.db, key.Kind, key.EntityID, key.UserID)
		if err != nil {
			return event, err
		}
		event.Value = &value
		return event, nil
	}

	vote, err := loadVote(h.db, key.EntityID, key.UserID)
	if err != nil {
		return event, fmt.Errorf("failed to load vote: %w", err)
	}
	event.Vote = &vote
	return event, nil
}

// readPump drains control frames and closes done when the peer goes away
func readPump(conn *websocket.Conn, done chan<- struct{}) {
	defer close(done)

	conn.SetReadLimit(maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Warn("subscriber read error", "error", err)
			}
			return
		}
	}
}
