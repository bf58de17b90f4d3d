// Package testutil provides testing utilities for the cache API client.
package testutil

import (
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"time"
)

// MockResponse defines the behavior for a mock cache API response.
type MockResponse struct {
	StatusCode int
	Body       string
	Headers    map[string]string
	Delay      time.Duration
}

// RecordedRequest is what the mock server saw for one request.
type RecordedRequest struct {
	Method   string
	Path     string
	Body     string
	Username string
	Password string
	HasAuth  bool
}

// MockCache is a configurable mock cache API server.
type MockCache struct {
	server    *httptest.Server
	mu        sync.RWMutex
	responses map[string]MockResponse
	requests  []RecordedRequest
}

// NewMockCache creates a new mock cache API server. Paths without a
// configured response answer 200 with an empty JSON object.
func NewMockCache() *MockCache {
	mock := &MockCache{
		responses: make(map[string]MockResponse),
	}

	mock.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		user, pass, ok := r.BasicAuth()

		mock.mu.Lock()
		mock.requests = append(mock.requests, RecordedRequest{
			Method:   r.Method,
			Path:     r.URL.Path,
			Body:     string(body),
			Username: user,
			Password: pass,
			HasAuth:  ok,
		})
		resp, exists := mock.responses[r.Method+" "+r.URL.Path]
		if !exists {
			resp, exists = mock.responses[r.URL.Path]
		}
		mock.mu.Unlock()

		if !exists {
			resp = NewJSONResponse(`{}`)
		}
		if resp.Delay > 0 {
			time.Sleep(resp.Delay)
		}
		for key, value := range resp.Headers {
			w.Header().Set(key, value)
		}
		w.WriteHeader(resp.StatusCode)
		if resp.Body != "" {
			w.Write([]byte(resp.Body))
		}
	}))

	return mock
}

// URL returns the mock server URL.
func (m *MockCache) URL() string {
	return m.server.URL
}

// Addr returns host:port of the mock server, as expected by cacheapi.Config.
func (m *MockCache) Addr() string {
	return m.server.Listener.Addr().String()
}

// Close shuts down the mock server.
func (m *MockCache) Close() {
	m.server.Close()
}

// SetResponse configures the response for a path, or for "METHOD /path".
func (m *MockCache) SetResponse(route string, resp MockResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses[route] = resp
}

// Requests returns a copy of all recorded requests.
func (m *MockCache) Requests() []RecordedRequest {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]RecordedRequest, len(m.requests))
	copy(out, m.requests)
	return out
}

// LastRequest returns the most recent request, or false if there was none.
func (m *MockCache) LastRequest() (RecordedRequest, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if len(m.requests) == 0 {
		return RecordedRequest{}, false
	}
	return m.requests[len(m.requests)-1], true
}

// RequestCount returns the number of requests made to the server.
func (m *MockCache) RequestCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.requests)
}

// Reset clears recorded requests.
func (m *MockCache) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = nil
}

// NewJSONResponse creates a 200 OK JSON response.
func NewJSONResponse(body string) MockResponse {
	return MockResponse{
		StatusCode: http.StatusOK,
		Body:       body,
		Headers:    map[string]string{"Content-Type": "application/json"},
	}
}

// NewNotFoundResponse creates a 404 response with an empty JSON object.
func NewNotFoundResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusNotFound,
		Body:       `{}`,
		Headers:    map[string]string{"Content-Type": "application/json"},
	}
}

// NewServerErrorResponse creates a 500 response with a plain-text body.
func NewServerErrorResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusInternalServerError,
		Body:       "Internal Server Error",
		Headers:    map[string]string{"Content-Type": "text/plain"},
	}
}
