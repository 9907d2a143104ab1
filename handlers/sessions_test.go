// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/danielhkuo/opinionsync/auth"
	"github.com/danielhkuo/opinionsync/models"
	"github.com/danielhkuo/opinionsync/testutil"
)

func TestCreateSession(t *testing.T) {
	db := testutil.SetupTestDB(t)
	cfg := testutil.GetTestConfig()
	handler := NewSessionHandler(db, cfg)

	testutil.CreateTestUser(t, db, cfg, "taken")

	tests := []struct {
		name           string
		requestBody    interface{}
		expectedStatus int
	}{
		{"valid username", models.CreateSessionRequest{Username: "alice"}, http.StatusCreated},
		{"username with spaces is trimmed", models.CreateSessionRequest{Username: "  bob  "}, http.StatusCreated},
		{"missing username", models.CreateSessionRequest{}, http.StatusBadRequest},
		{"too short", models.CreateSessionRequest{Username: "a"}, http.StatusBadRequest},
		{"duplicate username", models.CreateSessionRequest{Username: "taken"}, http.StatusConflict},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := testutil.MakeRequest("POST", "/sessions", tt.requestBody, nil)
			w := httptest.NewRecorder()

			handler.CreateSession(w, req)

			testutil.AssertStatus(t, w, tt.expectedStatus)
			if tt.expectedStatus != http.StatusCreated {
				return
			}

			var resp models.CreateSessionResponse
			testutil.AssertJSON(t, w, &resp)

			if resp.UserID == "" || resp.UserToken == "" {
				t.Fatal("Expected user_id and user_token")
			}
			if err := auth.ValidateUserToken(resp.UserID, resp.UserToken, cfg.UserTokenSalt); err != nil {
				t.Errorf("Returned token does not validate: %v", err)
			}
		})
	}

	t.Run("invalid JSON", func(t *testing.T) {
		req := httptest.NewRequest("POST", "/sessions", nil)
		w := httptest.NewRecorder()
		handler.CreateSession(w, req)
		testutil.AssertStatus(t, w, http.StatusBadRequest)
	})
}

// TestConcurrentSessionClaims verifies that when several goroutines claim
// the same username, exactly one succeeds
func TestConcurrentSessionClaims(t *testing.T) {
	db := testutil.SetupTestDB(t)
	cfg := testutil.GetTestConfig()
	handler := NewSessionHandler(db, cfg)

	var created, conflicts atomic.Int32
	var wg sync.WaitGroup

	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			req := testutil.MakeRequest("POST", "/sessions", models.CreateSessionRequest{Username: "popular"}, nil)
			w := httptest.NewRecorder()
			handler.CreateSession(w, req)

			switch w.Code {
			case http.StatusCreated:
				created.Add(1)
			case http.StatusConflict:
				conflicts.Add(1)
			}
		}()
	}
	wg.Wait()

	if created.Load() != 1 {
		t.Errorf("Expected exactly 1 success, got %d", created.Load())
	}
	if conflicts.Load() != 7 {
		t.Errorf("Expected 7 conflicts, got %d", conflicts.Load())
	}
}

func TestGetMe(t *testing.T) {
	db := testutil.SetupTestDB(t)
	cfg := testutil.GetTestConfig()
	handler := NewSessionHandler(db, cfg)

	userID, token := testutil.CreateTestUser(t, db, cfg, "alice")

	t.Run("valid credentials", func(t *testing.T) {
		req := testutil.MakeRequest("GET", "/me", nil, testutil.AuthHeaders(userID, token))
		w := httptest.NewRecorder()
		handler.GetMe(w, req)

		testutil.AssertStatus(t, w, http.StatusOK)
		var user models.User
		testutil.AssertJSON(t, w, &user)
		if user.ID != userID || user.Username != "alice" {
			t.Errorf("Unexpected user %+v", user)
		}
	})

	t.Run("wrong token", func(t *testing.T) {
		req := testutil.MakeRequest("GET", "/me", nil, testutil.AuthHeaders(userID, "forged"))
		w := httptest.NewRecorder()
		handler.GetMe(w, req)
		testutil.AssertStatus(t, w, http.StatusUnauthorized)
	})

	t.Run("missing headers", func(t *testing.T) {
		req := testutil.MakeRequest("GET", "/me", nil, nil)
		w := httptest.NewRecorder()
		handler.GetMe(w, req)
		testutil.AssertStatus(t, w, http.StatusUnauthorized)
	})

	t.Run("valid token for unknown user", func(t *testing.T) {
		ghost := auth.NewUserID()
		headers := testutil.AuthHeaders(ghost, auth.GenerateUserToken(ghost, cfg.UserTokenSalt))
		req := testutil.MakeRequest("GET", "/me", nil, headers)
		w := httptest.NewRecorder()
		handler.GetMe(w, req)
		testutil.AssertStatus(t, w, http.StatusUnauthorized)
	})
}
