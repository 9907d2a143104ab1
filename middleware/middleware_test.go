// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package middleware

import (
	"bufio"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/danielhkuo/opinionsync/models"
)

// requestCount scrapes the HTTP request counter for one label set
func requestCount(t *testing.T, method, route string, status int) float64 {
	t.Helper()

	w := httptest.NewRecorder()
	promhttp.Handler().ServeHTTP(w, httptest.NewRequest("GET", "/metrics", nil))

	prefix := fmt.Sprintf(`opinionsync_http_requests_total{method=%q,route=%q,status="%d"} `, method, route, status)
	scanner := bufio.NewScanner(w.Body)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, prefix) {
			continue
		}
		v, err := strconv.ParseFloat(strings.TrimPrefix(line, prefix), 64)
		if err != nil {
			t.Fatalf("Failed to parse %q: %v", line, err)
		}
		return v
	}
	return 0
}

func TestWithLogging_StatusCapture(t *testing.T) {
	testCases := []struct {
		name     string
		handler  http.HandlerFunc
		expected int
	}{
		{
			name: "implicit 200",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte("OK"))
			},
			expected: http.StatusOK,
		},
		{
			name: "created session",
			handler: func(w http.ResponseWriter, r *http.Request) {
				JSONResponse(w, http.StatusCreated, models.CreateSessionResponse{UserID: "u1", UserToken: "t1"})
			},
			expected: http.StatusCreated,
		},
		{
			name: "username conflict",
			handler: func(w http.ResponseWriter, r *http.Request) {
				ErrorResponse(w, http.StatusConflict, "Username already taken")
			},
			expected: http.StatusConflict,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			before := requestCount(t, "POST", "unmatched", tc.expected)

			w := httptest.NewRecorder()
			WithLogging(tc.handler)(w, httptest.NewRequest("POST", "/sessions", nil))

			if w.Code != tc.expected {
				t.Errorf("Expected status %d, got %d", tc.expected, w.Code)
			}
			if got := requestCount(t, "POST", "unmatched", tc.expected) - before; got != 1 {
				t.Errorf("Expected one request counted as %d, got %v", tc.expected, got)
			}
		})
	}
}

func TestWithLogging_RouteLabel(t *testing.T) {
	const route = "PUT /opinions/{kind}/{entity}"

	mux := http.NewServeMux()
	mux.HandleFunc(route, WithLogging(func(w http.ResponseWriter, r *http.Request) {
		ErrorResponse(w, http.StatusUnauthorized, "missing credentials")
	}))

	before := requestCount(t, "PUT", route, http.StatusUnauthorized)

	// Two different entities share the pattern label
	for _, path := range []string{"/opinions/like/p1", "/opinions/like/p2"} {
		w := httptest.NewRecorder()
		mux.ServeHTTP(w, httptest.NewRequest("PUT", path, nil))
		if w.Code != http.StatusUnauthorized {
			t.Fatalf("Expected 401 for %s, got %d", path, w.Code)
		}
	}

	if got := requestCount(t, "PUT", route, http.StatusUnauthorized) - before; got != 2 {
		t.Errorf("Expected 2 requests under %q, got %v", route, got)
	}
}

func TestWithLogging_HijackReportsSwitchingProtocols(t *testing.T) {
	upgrader := websocket.Upgrader{}
	server := httptest.NewServer(WithLogging(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("Upgrade through the logging wrapper failed: %v", err)
			return
		}
		defer conn.Close()
		conn.WriteJSON(models.OpinionEvent{Kind: models.KindLike, EntityID: "p1"})
	}))
	defer server.Close()

	before := requestCount(t, "GET", "unmatched", http.StatusSwitchingProtocols)

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(server.URL, "http"), nil)
	if err != nil {
		t.Fatalf("Failed to dial: %v", err)
	}
	defer conn.Close()

	var event models.OpinionEvent
	if err := conn.ReadJSON(&event); err != nil {
		t.Fatalf("Failed to read event: %v", err)
	}
	if event.EntityID != "p1" {
		t.Errorf("Unexpected event %+v", event)
	}

	// The counter is written after the handler returns
	deadline := time.Now().Add(5 * time.Second)
	for requestCount(t, "GET", "unmatched", http.StatusSwitchingProtocols)-before != 1 {
		if time.Now().After(deadline) {
			t.Fatal("Expected the upgrade to be counted as 101")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestStatusRecorder_HijackUnsupported(t *testing.T) {
	rec := &statusRecorder{ResponseWriter: httptest.NewRecorder(), status: http.StatusOK}

	if _, _, err := rec.Hijack(); err == nil {
		t.Fatal("Expected an error from a writer that cannot hijack")
	}
	if rec.status != http.StatusOK {
		t.Errorf("Failed hijack should not change the status, got %d", rec.status)
	}
}

func TestErrorResponse(t *testing.T) {
	w := httptest.NewRecorder()
	ErrorResponse(w, http.StatusTooManyRequests, "slow down")

	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Expected application/json, got %q", ct)
	}
	expected := `{"error":"Too Many Requests","message":"slow down"}`
	if got := strings.TrimSpace(w.Body.String()); got != expected {
		t.Errorf("Expected %s, got %s", expected, got)
	}
}

func TestJSONResponse_OpinionEvent(t *testing.T) {
	value := true
	w := httptest.NewRecorder()
	JSONResponse(w, http.StatusOK, models.OpinionEvent{Kind: models.KindCommentLike, EntityID: "c1", Value: &value})

	body := w.Body.String()
	if !strings.Contains(body, `"kind":"comment_like"`) || !strings.Contains(body, `"value":true`) {
		t.Errorf("Unexpected body %s", body)
	}
	if strings.Contains(body, `"vote"`) {
		t.Errorf("Boolean events should omit vote, got %s", body)
	}
}

func TestParseJSONBody_CastVote(t *testing.T) {
	testCases := []struct {
		name      string
		body      string
		expectErr bool
		expected  *int
	}{
		{"select option", `{"option": 2}`, false, models.Option(2)},
		{"retract with null", `{"option": null}`, false, nil},
		{"retract by omission", `{}`, false, nil},
		{"wrong type", `{"option": "two"}`, true, nil},
		{"malformed", `{"option":`, true, nil},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest("POST", "/polls/abc/vote", strings.NewReader(tc.body))

			var parsed models.CastVoteRequest
			err := ParseJSONBody(req, &parsed)
			if tc.expectErr {
				if err == nil {
					t.Error("Expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}

			switch {
			case tc.expected == nil && parsed.Option != nil:
				t.Errorf("Expected retraction, got option %d", *parsed.Option)
			case tc.expected != nil && (parsed.Option == nil || *parsed.Option != *tc.expected):
				t.Errorf("Expected option %d, got %v", *tc.expected, parsed.Option)
			}
		})
	}
}

func TestCORS_Preflight(t *testing.T) {
	nextCalled := false
	handler := CORS(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		nextCalled = true
	}))

	req := httptest.NewRequest("OPTIONS", "/opinions/like/p1", nil)
	req.Header.Set("Origin", "https://app.example.com")
	req.Header.Set("Access-Control-Request-Method", "PUT")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if nextCalled {
		t.Error("Preflight should not reach the handler")
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "https://app.example.com" {
		t.Errorf("Expected origin echoed, got %q", got)
	}
	if got := w.Header().Get("Access-Control-Allow-Methods"); !strings.Contains(got, "PUT") {
		t.Errorf("Expected PUT allowed, got %q", got)
	}
	allowed := w.Header().Get("Access-Control-Allow-Headers")
	for _, h := range []string{"X-User-ID", "X-User-Token"} {
		if !strings.Contains(allowed, h) {
			t.Errorf("Expected %s in allowed headers, got %q", h, allowed)
		}
	}
}

func TestGetClientIP(t *testing.T) {
	testCases := []struct {
		name       string
		remoteAddr string
		headers    map[string]string
		expected   string
	}{
		{"remote addr", "10.0.0.5:4242", nil, "10.0.0.5"},
		{"forwarded chain", "10.0.0.5:4242", map[string]string{"X-Forwarded-For": "203.0.113.7, 10.0.0.1"}, "203.0.113.7"},
		{"real ip", "10.0.0.5:4242", map[string]string{"X-Real-IP": "198.51.100.2"}, "198.51.100.2"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest("PUT", "/opinions/like/p1", nil)
			req.RemoteAddr = tc.remoteAddr
			for k, v := range tc.headers {
				req.Header.Set(k, v)
			}
			if got := GetClientIP(req); got != tc.expected {
				t.Errorf("Expected %q, got %q", tc.expected, got)
			}
		})
	}
}
