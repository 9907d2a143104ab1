// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package testutil

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/danielhkuo/opinionsync/auth"
	"github.com/danielhkuo/opinionsync/cliparse"
	"github.com/danielhkuo/opinionsync/db"
	_ "modernc.org/sqlite"
)

// SetupTestDB creates a fresh SQLite database with the full schema.
// The file lives in t.TempDir and is removed with it.
func SetupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	conn, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	// SQLite allows one writer; serialize everything through one connection
	conn.SetMaxOpenConns(1)
	t.Cleanup(func() { conn.Close() })

	if err := db.CreateSchema(conn); err != nil {
		t.Fatalf("Failed to create schema: %v", err)
	}

	return conn
}

// GetTestConfig returns a standard test configuration
func GetTestConfig() cliparse.Config {
	return cliparse.Config{
		Port:          3318,
		DatabaseType:  db.TypeSQLite,
		DatabaseURL:   ":memory:",
		UserTokenSalt: "test-token-salt",
		MutationRate:  1000,
		MutationBurst: 1000,
	}
}

// CreateTestUser inserts a user and returns its ID and token
func CreateTestUser(t *testing.T, conn *sql.DB, cfg cliparse.Config, username string) (userID, token string) {
	t.Helper()

	userID = auth.NewUserID()
	_, err := conn.Exec(`
		INSERT INTO app_user (id, username, created_at)
		VALUES ($1, $2, $3)
	`, userID, username, time.Now())
	if err != nil {
		t.Fatalf("Failed to create test user: %v", err)
	}

	return userID, auth.GenerateUserToken(userID, cfg.UserTokenSalt)
}

// CreateTestPoll creates a poll with the given option labels and returns its ID
func CreateTestPoll(t *testing.T, conn *sql.DB, creatorID string, labels ...string) string {
	t.Helper()

	pollID, _ := auth.GenerateID(16)
	_, err := conn.Exec(`
		INSERT INTO poll (id, title, creator_id, created_at)
		VALUES ($1, 'Test Poll', $2, $3)
	`, pollID, creatorID, time.Now())
	if err != nil {
		t.Fatalf("Failed to create test poll: %v", err)
	}

	for i, label := range labels {
		_, err := conn.Exec(`
			INSERT INTO poll_option (poll_id, idx, label)
			VALUES ($1, $2, $3)
		`, pollID, i, label)
		if err != nil {
			t.Fatalf("Failed to create test option: %v", err)
		}
	}

	return pollID
}

// CastTestVote records a vote directly, bypassing the handler
func CastTestVote(t *testing.T, conn *sql.DB, pollID, userID string, option int) {
	t.Helper()

	_, err := conn.Exec(`
		INSERT INTO poll_vote (poll_id, user_id, option_idx, updated_at)
		VALUES ($1, $2, $3, $4)
	`, pollID, userID, option, time.Now())
	if err != nil {
		t.Fatalf("Failed to create test vote: %v", err)
	}
}

// AuthHeaders returns the credential headers for a user
func AuthHeaders(userID, token string) map[string]string {
	return map[string]string{
		auth.HeaderUserID:    userID,
		auth.HeaderUserToken: token,
	}
}

// MakeRequest creates an HTTP test request
func MakeRequest(method, path string, body interface{}, headers map[string]string) *http.Request {
	var req *http.Request
	if body != nil {
		jsonBody, _ := json.Marshal(body)
		req = httptest.NewRequest(method, path, bytes.NewReader(jsonBody))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}

	for k, v := range headers {
		req.Header.Set(k, v)
	}

	return req
}

// AssertStatus checks that the response has the expected status code
func AssertStatus(t *testing.T, w *httptest.ResponseRecorder, expected int) {
	t.Helper()
	if w.Code != expected {
		t.Errorf("Expected status %d, got %d. Body: %s", expected, w.Code, w.Body.String())
	}
}

// AssertJSON decodes the response body into the provided struct
func AssertJSON(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.NewDecoder(w.Body).Decode(v); err != nil {
		t.Fatalf("Failed to decode JSON response: %v", err)
	}
}
