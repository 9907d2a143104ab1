// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package middleware provides HTTP middleware and helper functions.

# Request Logging

Wrap handlers with request logging:

	mux.HandleFunc("GET /health", middleware.WithLogging(handler))

Logs request start (method, path, remote) and completion (status,
duration_ms), and counts the request in the http_requests_total metric
labelled by the matched route pattern.

# Rate Limiting

Mutating endpoints are wrapped in a per-caller token bucket:

	limiter := middleware.NewRateLimiter(cfg.MutationRate, cfg.MutationBurst)
	mux.HandleFunc("PUT /opinions/{kind}/{entity}", middleware.WithLogging(limiter.Wrap(h.SetOpinion)))

Callers are keyed by X-User-ID, or by client IP without it. Requests over
the limit get 429 with Retry-After.

# CORS Middleware

Enable cross-origin requests for frontend access:

	server := http.Server{
		Handler: middleware.CORS(mux),
	}

Allows methods GET, POST, PUT, DELETE, OPTIONS with headers
Content-Type, Authorization, X-User-ID, X-User-Token.

# JSON Helpers

	middleware.JSONResponse(w, http.StatusOK, data)
	middleware.ErrorResponse(w, http.StatusBadRequest, "message")

	var req models.SetOpinionRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

# Client IP Extraction

	ip := middleware.GetClientIP(r)

Handles X-Forwarded-For and X-Real-IP.
*/
package middleware
