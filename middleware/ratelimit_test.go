// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestRateLimiter(t *testing.T) {
	okHandler := func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}

	send := func(h http.HandlerFunc, userID string) *httptest.ResponseRecorder {
		req := httptest.NewRequest("PUT", "/opinions/like/p1", nil)
		if userID != "" {
			req.Header.Set("X-User-ID", userID)
		}
		w := httptest.NewRecorder()
		h(w, req)
		return w
	}

	t.Run("rejects over burst", func(t *testing.T) {
		rl := NewRateLimiter(0.001, 2)
		h := rl.Wrap(okHandler)

		for i := 0; i < 2; i++ {
			if w := send(h, "alice"); w.Code != http.StatusOK {
				t.Fatalf("request %d: expected 200, got %d", i, w.Code)
			}
		}

		w := send(h, "alice")
		if w.Code != http.StatusTooManyRequests {
			t.Fatalf("Expected 429, got %d", w.Code)
		}
		if w.Header().Get("Retry-After") == "" {
			t.Error("Expected Retry-After header")
		}
	})

	t.Run("buckets are per user", func(t *testing.T) {
		rl := NewRateLimiter(0.001, 1)
		h := rl.Wrap(okHandler)

		if w := send(h, "alice"); w.Code != http.StatusOK {
			t.Fatalf("Expected 200, got %d", w.Code)
		}
		if w := send(h, "alice"); w.Code != http.StatusTooManyRequests {
			t.Fatalf("Expected 429, got %d", w.Code)
		}
		if w := send(h, "bob"); w.Code != http.StatusOK {
			t.Errorf("Expected bob unaffected, got %d", w.Code)
		}
	})

	t.Run("falls back to client IP", func(t *testing.T) {
		rl := NewRateLimiter(0.001, 1)
		h := rl.Wrap(okHandler)

		send(h, "")
		if w := send(h, ""); w.Code != http.StatusTooManyRequests {
			t.Errorf("Expected 429 for anonymous caller, got %d", w.Code)
		}
	})

	t.Run("zero rate disables limiting", func(t *testing.T) {
		rl := NewRateLimiter(0, 0)
		h := rl.Wrap(okHandler)

		for i := 0; i < 50; i++ {
			if w := send(h, "alice"); w.Code != http.StatusOK {
				t.Fatalf("request %d: expected 200, got %d", i, w.Code)
			}
		}
	})
}
