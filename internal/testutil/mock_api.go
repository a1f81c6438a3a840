// Package testutil provides testing utilities for tagpages.
package testutil

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"time"
)

// MockResponse defines the behavior for one mocked page response.
type MockResponse struct {
	StatusCode int
	Body       string
	Delay      time.Duration

	// Drop hijacks and closes the connection without a response.
	Drop bool
}

// MockAPI is a configurable mock tag-listing server.
//
// Responses are scripted per page index: each request for a page consumes the
// next scripted response; once the script is exhausted the last entry keeps
// being served. Pages without a script get NewPageResponse(page).
type MockAPI struct {
	server *httptest.Server

	mu       sync.Mutex
	scripts  map[int][]MockResponse
	requests map[int]int
	total    int
	query    map[string]string
}

// NewMockAPI creates and starts a new mock server.
func NewMockAPI() *MockAPI {
	mock := &MockAPI{
		scripts:  make(map[int][]MockResponse),
		requests: make(map[int]int),
	}

	mock.server = httptest.NewServer(http.HandlerFunc(mock.handle))
	return mock
}

// URL returns the endpoint URL of the mock server.
func (m *MockAPI) URL() string {
	return m.server.URL + "/index.php"
}

// Close shuts down the mock server.
func (m *MockAPI) Close() {
	m.server.Close()
}

// Reset clears scripts and tracking counters.
func (m *MockAPI) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scripts = make(map[int][]MockResponse)
	m.requests = make(map[int]int)
	m.total = 0
	m.query = nil
}

// Script sets the sequence of responses for a page.
func (m *MockAPI) Script(page int, responses ...MockResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scripts[page] = responses
}

// RequestCount returns the number of requests made for a page.
func (m *MockAPI) RequestCount(page int) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.requests[page]
}

// TotalRequests returns the number of requests made to the server.
func (m *MockAPI) TotalRequests() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.total
}

// LastQuery returns the query parameters of the most recent request.
func (m *MockAPI) LastQuery() map[string]string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.query
}

func (m *MockAPI) handle(w http.ResponseWriter, r *http.Request) {
	query := make(map[string]string)
	for key := range r.URL.Query() {
		query[key] = r.URL.Query().Get(key)
	}

	page, err := strconv.Atoi(query["pid"])
	if err != nil {
		http.Error(w, "missing pid", http.StatusBadRequest)
		return
	}

	m.mu.Lock()
	m.total++
	n := m.requests[page]
	m.requests[page] = n + 1
	m.query = query

	resp := NewPageResponse(page)
	if script, ok := m.scripts[page]; ok && len(script) > 0 {
		if n >= len(script) {
			n = len(script) - 1
		}
		resp = script[n]
	}
	m.mu.Unlock()

	if resp.Delay > 0 {
		time.Sleep(resp.Delay)
	}

	if resp.Drop {
		hj, ok := w.(http.Hijacker)
		if !ok {
			http.Error(w, "hijack unsupported", http.StatusInternalServerError)
			return
		}
		conn, _, err := hj.Hijack()
		if err == nil {
			conn.Close()
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(resp.StatusCode)
	if resp.Body != "" {
		w.Write([]byte(resp.Body))
	}
}

// PageBody renders a well-formed page body with the given number of tags.
func PageBody(page, count int) string {
	var b strings.Builder
	fmt.Fprintf(&b, `{"@attributes":{"limit":100,"offset":%d,"count":%d},"tag":[`, page*100, count)
	for i := 0; i < count; i++ {
		if i > 0 {
			b.WriteString(",")
		}
		fmt.Fprintf(&b, `{"id":%d,"name":"tag_%d_%d","count":%d,"type":0,"ambiguous":0}`, page*100+i, page, i, i+1)
	}
	b.WriteString("]}")
	return b.String()
}

// NewPageResponse creates a 200 OK response with two tags for the page.
func NewPageResponse(page int) MockResponse {
	return MockResponse{
		StatusCode: http.StatusOK,
		Body:       PageBody(page, 2),
	}
}

// NewEmptyResponse creates a 200 OK response without tags.
func NewEmptyResponse(page int) MockResponse {
	return MockResponse{
		StatusCode: http.StatusOK,
		Body:       fmt.Sprintf(`{"@attributes":{"limit":100,"offset":%d,"count":0}}`, page*100),
	}
}

// NewMalformedResponse creates a 200 OK response that is not JSON.
func NewMalformedResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusOK,
		Body:       `<html><body>Too many requests</body></html>`,
	}
}

// NewServerErrorResponse creates a 500 Internal Server Error response.
func NewServerErrorResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusInternalServerError,
		Body:       `{"error": "Internal server error"}`,
	}
}

// NewDroppedResponse closes the connection without answering.
func NewDroppedResponse() MockResponse {
	return MockResponse{Drop: true}
}
