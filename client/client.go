// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/danielhkuo/opinionsync/auth"
	"github.com/danielhkuo/opinionsync/models"
)

var (
	ErrUnauthorized   = errors.New("unauthorized")
	ErrNoCredentials  = errors.New("no session: call CreateSession or SetCredentials first")
	ErrNotBooleanKind = errors.New("kind is not a boolean opinion")
)

// APIError is a non-2xx answer from the server.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api error: %d %s", e.Status, http.StatusText(e.Status))
	}
	return fmt.Sprintf("api error: %d %s", e.Status, e.Message)
}

// Is lets errors.Is(err, ErrUnauthorized) match 401 answers.
func (e *APIError) Is(target error) bool {
	return target == ErrUnauthorized && e.Status == http.StatusUnauthorized
}

// Client talks to one opinionsync server on behalf of one user.
// It is safe for concurrent use.
type Client struct {
	baseURL *url.URL
	http    *http.Client

	mu     sync.RWMutex
	userID string
	token  string
}

type Option func(*Client)

// WithHTTPClient replaces the default client, which has a 10s timeout.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = hc
	}
}

// New returns a client for the server at baseURL, e.g. "http://localhost:3318".
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid base URL %q: scheme must be http or https", baseURL)
	}

	c := &Client{
		baseURL: u,
		http:    &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// SetCredentials restores a session created earlier.
func (c *Client) SetCredentials(userID, token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.userID = userID
	c.token = token
}

// UserID returns the current user, or "" before a session exists.
func (c *Client) UserID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.userID
}

func (c *Client) credentials() (string, string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.userID == "" || c.token == "" {
		return "", "", ErrNoCredentials
	}
	return c.userID, c.token, nil
}

// CreateSession claims username and keeps the returned credentials.
func (c *Client) CreateSession(ctx context.Context, username string) (models.CreateSessionResponse, error) {
	var resp models.CreateSessionResponse
	err := c.do(ctx, http.MethodPost, "/sessions", models.CreateSessionRequest{Username: username}, &resp, false)
	if err != nil {
		return resp, err
	}
	c.SetCredentials(resp.UserID, resp.UserToken)
	return resp, nil
}

func (c *Client) Me(ctx context.Context) (models.User, error) {
	var user models.User
	err := c.do(ctx, http.MethodGet, "/me", nil, &user, true)
	return user, err
}

func (c *Client) GetOpinion(ctx context.Context, kind models.Kind, entityID string) (bool, error) {
	if !kind.IsBoolean() {
		return false, ErrNotBooleanKind
	}
	var resp models.OpinionResponse
	err := c.do(ctx, http.MethodGet, opinionPath(kind, entityID), nil, &resp, true)
	return resp.Value, err
}

func (c *Client) SetOpinion(ctx context.Context, kind models.Kind, entityID string, value bool) error {
	if !kind.IsBoolean() {
		return ErrNotBooleanKind
	}
	return c.do(ctx, http.MethodPut, opinionPath(kind, entityID), models.SetOpinionRequest{Value: value}, nil, true)
}

// CreatePoll returns the new poll's ID.
func (c *Client) CreatePoll(ctx context.Context, title string, options []string) (string, error) {
	var resp models.CreatePollResponse
	err := c.do(ctx, http.MethodPost, "/polls", models.CreatePollRequest{Title: title, Options: options}, &resp, true)
	return resp.PollID, err
}

// GetPoll includes the caller's selection when a session exists.
func (c *Client) GetPoll(ctx context.Context, pollID string) (models.PollWithOptions, error) {
	var poll models.PollWithOptions
	_, _, credErr := c.credentials()
	err := c.do(ctx, http.MethodGet, "/polls/"+url.PathEscape(pollID), nil, &poll, credErr == nil)
	return poll, err
}

// Vote selects option, or retracts the vote when option is nil.
func (c *Client) Vote(ctx context.Context, pollID string, option *int) (models.PollVote, error) {
	var vote models.PollVote
	err := c.do(ctx, http.MethodPost, "/polls/"+url.PathEscape(pollID)+"/vote", models.CastVoteRequest{Option: option}, &vote, true)
	return vote, err
}

func opinionPath(kind models.Kind, entityID string) string {
	return "/opinions/" + url.PathEscape(string(kind)) + "/" + url.PathEscape(entityID)
}

func (c *Client) endpoint(path string) string {
	return c.baseURL.String() + path
}

// do sends body as JSON and decodes the answer into out when non-nil
func (c *Client) do(ctx context.Context, method, path string, body, out any, authenticated bool) error {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.endpoint(path), reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if authenticated {
		userID, token, err := c.credentials()
		if err != nil {
			return err
		}
		auth.SetCredentials(req.Header, userID, token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeAPIError(resp)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s %s response: %w", method, path, err)
	}
	return nil
}

func decodeAPIError(resp *http.Response) error {
	apiErr := &APIError{Status: resp.StatusCode}
	var body models.ErrorResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err == nil {
		apiErr.Message = body.Message
	}
	return apiErr
}
