// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package router

import (
	"database/sql"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/danielhkuo/opinionsync/cliparse"
	"github.com/danielhkuo/opinionsync/handlers"
	"github.com/danielhkuo/opinionsync/middleware"
	"github.com/danielhkuo/opinionsync/pubsub"
)

func NewRouter(db *sql.DB, cfg cliparse.Config) *http.ServeMux {
	mux := http.NewServeMux()

	// Shared by every handler that changes or pushes opinions
	hub := pubsub.NewHub()
	limiter := middleware.NewRateLimiter(cfg.MutationRate, cfg.MutationBurst)

	// Initialize handlers
	sessionHandler := handlers.NewSessionHandler(db, cfg)
	opinionHandler := handlers.NewOpinionHandler(db, cfg, hub)
	pollHandler := handlers.NewPollHandler(db, cfg, hub)
	subscribeHandler := handlers.NewSubscribeHandler(db, cfg, hub)

	// Health check
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	// Prometheus exposition
	mux.Handle("GET /metrics", promhttp.Handler())

	// Identity
	mux.HandleFunc("POST /sessions", middleware.WithLogging(limiter.Wrap(sessionHandler.CreateSession)))
	mux.HandleFunc("GET /me", middleware.WithLogging(sessionHandler.GetMe))

	// Boolean opinions
	mux.HandleFunc("GET /opinions/{kind}/{entity}", middleware.WithLogging(opinionHandler.GetOpinion))
	mux.HandleFunc("PUT /opinions/{kind}/{entity}", middleware.WithLogging(limiter.Wrap(opinionHandler.SetOpinion)))

	// Polls
	mux.HandleFunc("POST /polls", middleware.WithLogging(limiter.Wrap(pollHandler.CreatePoll)))
	mux.HandleFunc("GET /polls/{id}", middleware.WithLogging(pollHandler.GetPoll))
	mux.HandleFunc("POST /polls/{id}/vote", middleware.WithLogging(limiter.Wrap(pollHandler.CastVote)))

	// Push subscriptions (WebSocket)
	mux.HandleFunc("GET /subscribe/{kind}/{entity}", middleware.WithLogging(subscribeHandler.Subscribe))

	// Root endpoint
	mux.HandleFunc("GET /", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("opinionsync API v1"))
	})

	return mux
}
