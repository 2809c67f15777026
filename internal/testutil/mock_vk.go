// Package testutil provides testing utilities for the VK client.
package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"time"
)

// MockVKResponse defines the behavior for a mock VK method response.
type MockVKResponse struct {
	StatusCode int
	Body       string
	Delay      time.Duration
}

// WallPost is a minimal wall post served by the mock.
type WallPost struct {
	ID      int64  `json:"id"`
	OwnerID int64  `json:"owner_id"`
	FromID  int64  `json:"from_id"`
	Text    string `json:"text"`
}

// MockVK is a configurable mock VK API server for testing.
type MockVK struct {
	server   *httptest.Server
	mu       sync.RWMutex
	handlers map[string]func(w http.ResponseWriter, r *http.Request)

	// Tracking
	RequestCount int
	LastForm     map[string]string
	Calls        []string
}

// NewMockVK creates a new mock VK server.
// Methods are served at /method/<name>, so the client base URL is URL()+"/method/".
func NewMockVK() *MockVK {
	mock := &MockVK{
		handlers: make(map[string]func(w http.ResponseWriter, r *http.Request)),
	}

	mock.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		method := strings.TrimPrefix(r.URL.Path, "/method/")

		mock.mu.Lock()
		mock.RequestCount++
		mock.Calls = append(mock.Calls, method)
		mock.LastForm = make(map[string]string, len(r.Form))
		for k := range r.Form {
			mock.LastForm[k] = r.Form.Get(k)
		}
		handler, exists := mock.handlers[method]
		mock.mu.Unlock()

		if exists {
			handler(w, r)
			return
		}

		WriteError(w, 3, "Unknown method passed")
	}))

	return mock
}

// URL returns the mock server URL.
func (m *MockVK) URL() string {
	return m.server.URL
}

// BaseURL returns the method endpoint prefix to configure the client with.
func (m *MockVK) BaseURL() string {
	return m.server.URL + "/method/"
}

// Close shuts down the mock server.
func (m *MockVK) Close() {
	m.server.Close()
}

// Reset clears all tracking counters.
func (m *MockVK) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RequestCount = 0
	m.LastForm = nil
	m.Calls = nil
}

// SetHandler sets a custom handler for a method.
func (m *MockVK) SetHandler(method string, handler func(w http.ResponseWriter, r *http.Request)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[method] = handler
}

// SetResponse configures a fixed response for a method.
func (m *MockVK) SetResponse(method string, resp MockVKResponse) {
	m.SetHandler(method, func(w http.ResponseWriter, r *http.Request) {
		if resp.Delay > 0 {
			time.Sleep(resp.Delay)
		}

		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(resp.StatusCode)
		if resp.Body != "" {
			w.Write([]byte(resp.Body))
		}
	})
}

// SetWall serves wall.get from posts, honoring offset and count.
// In extended mode every page carries profiles and groups for the ids returned by
// authors; the same author appearing on several pages is repeated, as VK does.
func (m *MockVK) SetWall(posts []WallPost, authors func(post WallPost) (profiles, groups []map[string]any)) {
	m.SetHandler("wall.get", func(w http.ResponseWriter, r *http.Request) {
		offset, _ := strconv.Atoi(r.Form.Get("offset"))
		count, err := strconv.Atoi(r.Form.Get("count"))
		if err != nil || count <= 0 {
			count = 20
		}
		if count > 100 {
			WriteError(w, 100, "One of the parameters specified was missing or invalid: count is out of range")
			return
		}

		page := map[string]any{"count": len(posts)}
		items := []WallPost{}
		for i := offset; i < offset+count && i < len(posts); i++ {
			items = append(items, posts[i])
		}
		page["items"] = items

		if r.Form.Get("extended") == "1" {
			profiles := []map[string]any{}
			groups := []map[string]any{}
			if authors != nil {
				for _, p := range items {
					ps, gs := authors(p)
					profiles = append(profiles, ps...)
					groups = append(groups, gs...)
				}
			}
			page["profiles"] = profiles
			page["groups"] = groups
		}

		WriteResponse(w, page)
	})
}

// GetRequestCount returns the number of requests made to the server.
func (m *MockVK) GetRequestCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.RequestCount
}

// GetLastForm returns the form values of the last request.
func (m *MockVK) GetLastForm() map[string]string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.LastForm
}

// WriteResponse writes a successful VK envelope.
func WriteResponse(w http.ResponseWriter, response any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	json.NewEncoder(w).Encode(map[string]any{"response": response})
}

// WriteError writes a VK error envelope with HTTP 200, as the API does.
func WriteError(w http.ResponseWriter, code int, msg string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{
			"error_code": code,
			"error_msg":  msg,
			"request_params": []map[string]string{
				{"key": "v", "value": "5.199"},
			},
		},
	})
}

// NewWall generates n posts on ownerID's wall, newest first.
func NewWall(ownerID int64, n int) []WallPost {
	posts := make([]WallPost, n)
	for i := range posts {
		posts[i] = WallPost{
			ID:      int64(n - i),
			OwnerID: ownerID,
			FromID:  int64(i%3 + 1),
			Text:    fmt.Sprintf("post %d", n-i),
		}
	}
	return posts
}

// NewHealthyResponse creates a standard response envelope around data.
func NewHealthyResponse(data string) MockVKResponse {
	return MockVKResponse{
		StatusCode: http.StatusOK,
		Body:       `{"response":` + data + `}`,
	}
}

// NewAPIErrorResponse creates a VK error envelope (HTTP 200).
func NewAPIErrorResponse(code int, msg string) MockVKResponse {
	body, _ := json.Marshal(map[string]any{
		"error": map[string]any{"error_code": code, "error_msg": msg},
	})
	return MockVKResponse{
		StatusCode: http.StatusOK,
		Body:       string(body),
	}
}

// NewServerErrorResponse creates a 500 Internal Server Error response.
func NewServerErrorResponse() MockVKResponse {
	return MockVKResponse{
		StatusCode: http.StatusInternalServerError,
		Body:       `<html>Internal Server Error</html>`,
	}
}
