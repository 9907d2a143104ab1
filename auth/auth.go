// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package auth

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"
)

// Credential headers
const (
	HeaderUserID    = "X-User-ID"
	HeaderUserToken = "X-User-Token"
)

var (
	ErrInvalidToken   = errors.New("invalid user token")
	ErrMissingHeaders = errors.New("X-User-ID and X-User-Token headers required")
)

// GenerateID creates a random hex ID of the specified byte length
func GenerateID(byteLen int) (string, error) {
	b := make([]byte, byteLen)
	_, err := rand.Read(b)
	if err != nil {
		return "", fmt.Errorf("failed to generate random ID: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// NewUserID returns a random UUID for a new user
func NewUserID() string {
	return uuid.NewString()
}

// GenerateUserToken creates an HMAC-based token for a user
// This is deterministic and verifiable without storing it
func GenerateUserToken(userID, salt string) string {
	h := hmac.New(sha256.New, []byte(salt))
	h.Write([]byte(userID))
	sum := h.Sum(nil)
	// Use URL-safe base64 and trim padding for cleaner tokens
	return strings.TrimRight(base64.URLEncoding.EncodeToString(sum), "=")
}

// ValidateUserToken checks if the provided token is valid for the user
func ValidateUserToken(userID, token, salt string) error {
	if _, err := uuid.Parse(userID); err != nil {
		return ErrInvalidToken
	}
	expected := GenerateUserToken(userID, salt)
	if !hmac.Equal([]byte(token), []byte(expected)) {
		return ErrInvalidToken
	}
	return nil
}

// UserFromRequest returns the authenticated user ID of r
func UserFromRequest(r *http.Request, salt string) (string, error) {
	userID := r.Header.Get(HeaderUserID)
	token := r.Header.Get(HeaderUserToken)
	if userID == "" || token == "" {
		return "", ErrMissingHeaders
	}
	if err := ValidateUserToken(userID, token, salt); err != nil {
		return "", err
	}
	return userID, nil
}

// SetCredentials adds the credential headers to an outgoing request
func SetCredentials(h http.Header, userID, token string) {
	h.Set(HeaderUserID, userID)
	h.Set(HeaderUserToken, token)
}
