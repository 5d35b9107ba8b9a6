// Package testutil provides testing utilities for the catalog picker.
package testutil

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/Sternrassler/catalog-picker/pkg/catalog"
	"github.com/shopspring/decimal"
)

// SearchPath is the path the mock serves search results on.
const SearchPath = "/products/search"

// MockResponse defines a canned response for a path.
type MockResponse struct {
	StatusCode int
	Body       string
	Headers    map[string]string
	Delay      time.Duration
}

// MockCatalog is a configurable mock catalog server. By default it serves
// paginated, substring-filtered results from its product fixture and
// requires the configured API key.
type MockCatalog struct {
	server   *httptest.Server
	mu       sync.RWMutex
	handlers map[string]func(w http.ResponseWriter, r *http.Request)
	products []catalog.Product
	apiKey   string
	etags    bool
	delay    time.Duration

	// Tracking
	RequestCount     int
	ConditionalCount int
	LastQuery        url.Values
	LastHeader       http.Header
}

// NewMockCatalog creates a mock catalog that accepts apiKey.
func NewMockCatalog(apiKey string) *MockCatalog {
	mock := &MockCatalog{
		handlers: make(map[string]func(w http.ResponseWriter, r *http.Request)),
		apiKey:   apiKey,
	}

	mock.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mock.mu.Lock()
		mock.RequestCount++
		mock.LastQuery = r.URL.Query()
		mock.LastHeader = r.Header.Clone()
		if r.Header.Get("If-None-Match") != "" || r.Header.Get("If-Modified-Since") != "" {
			mock.ConditionalCount++
		}
		handler, exists := mock.handlers[r.URL.Path]
		delay := mock.delay
		mock.mu.Unlock()

		if delay > 0 {
			select {
			case <-time.After(delay):
			case <-r.Context().Done():
				return
			}
		}

		if exists {
			handler(w, r)
			return
		}

		mock.searchHandler(w, r)
	}))

	return mock
}

// URL returns the mock server URL, usable as the client's BaseURL.
func (m *MockCatalog) URL() string {
	return m.server.URL
}

// Close shuts down the mock server.
func (m *MockCatalog) Close() {
	m.server.Close()
}

// Reset clears all tracking counters.
func (m *MockCatalog) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RequestCount = 0
	m.ConditionalCount = 0
	m.LastQuery = nil
	m.LastHeader = nil
}

// SetProducts replaces the product fixture.
func (m *MockCatalog) SetProducts(products []catalog.Product) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.products = products
}

// EnableETags makes the default handler emit ETags and answer matching
// If-None-Match requests with 304.
func (m *MockCatalog) EnableETags() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.etags = true
}

// SetDelay delays every response.
func (m *MockCatalog) SetDelay(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delay = d
}

// SetHandler sets a custom handler for a specific path.
func (m *MockCatalog) SetHandler(path string, handler func(w http.ResponseWriter, r *http.Request)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[path] = handler
}

// SetResponse configures a canned response for a path.
func (m *MockCatalog) SetResponse(path string, resp MockResponse) {
	m.SetHandler(path, func(w http.ResponseWriter, r *http.Request) {
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
	})
}

// GetRequestCount returns the number of requests made to the server.
func (m *MockCatalog) GetRequestCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.RequestCount
}

// GetConditionalCount returns the number of conditional requests.
func (m *MockCatalog) GetConditionalCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.ConditionalCount
}

// GetLastQuery returns the query parameters of the last request.
func (m *MockCatalog) GetLastQuery() url.Values {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.LastQuery
}

// GetLastHeader returns the headers of the last request.
func (m *MockCatalog) GetLastHeader() http.Header {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.LastHeader
}

// searchHandler mimics the hosted catalog search endpoint.
func (m *MockCatalog) searchHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")

	if r.URL.Path != SearchPath {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"message": "not found"}`))
		return
	}

	if key := r.Header.Get("x-api-key"); key == "" || key != m.apiKey {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"message": "Invalid API key"}`))
		return
	}

	q := r.URL.Query()
	page, err := strconv.Atoi(q.Get("page"))
	if err != nil || page < 0 {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"message": "invalid page"}`))
		return
	}
	limit := 10
	if l := q.Get("limit"); l != "" {
		if limit, err = strconv.Atoi(l); err != nil || limit <= 0 {
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"message": "invalid limit"}`))
			return
		}
	}

	m.mu.RLock()
	matches := filterProducts(m.products, q.Get("search"))
	etags := m.etags
	m.mu.RUnlock()

	start := page * limit
	pageItems := []catalog.Product{}
	if start < len(matches) {
		end := start + limit
		if end > len(matches) {
			end = len(matches)
		}
		pageItems = matches[start:end]
	}

	body, err := json.Marshal(pageItems)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	if etags {
		sum := sha256.Sum256(body)
		etag := `"` + hex.EncodeToString(sum[:8]) + `"`
		w.Header().Set("ETag", etag)
		w.Header().Set("Cache-Control", "max-age=0")
		if r.Header.Get("If-None-Match") == etag {
			w.WriteHeader(http.StatusNotModified)
			return
		}
	}

	w.WriteHeader(http.StatusOK)
	w.Write(body)
}

func filterProducts(products []catalog.Product, search string) []catalog.Product {
	if search == "" {
		return products
	}
	needle := strings.ToLower(search)
	var out []catalog.Product
	for _, p := range products {
		if strings.Contains(strings.ToLower(p.Title), needle) {
			out = append(out, p)
		}
	}
	return out
}

// GenerateProducts builds n products titled "<title> 1".."<title> n" with
// IDs starting at firstID. Each product has two variants.
func GenerateProducts(title string, firstID int64, n int) []catalog.Product {
	products := make([]catalog.Product, 0, n)
	for i := 0; i < n; i++ {
		id := firstID + int64(i)
		products = append(products, catalog.Product{
			ID:    id,
			Title: fmt.Sprintf("%s %d", title, i+1),
			Image: &catalog.Image{ID: id, Src: fmt.Sprintf("https://cdn.example.com/%d.jpg", id)},
			Variants: []catalog.Variant{
				{ID: id*10 + 1, ProductID: id, Title: "S", Price: decimal.NewFromInt(10 + int64(i))},
				{ID: id*10 + 2, ProductID: id, Title: "M", Price: decimal.NewFromInt(12 + int64(i))},
			},
		})
	}
	return products
}

// NewUnauthorizedResponse creates a 401 response.
func NewUnauthorizedResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusUnauthorized,
		Body:       `{"message": "Invalid API key"}`,
		Headers:    map[string]string{"Content-Type": "application/json"},
	}
}

// NewServerErrorResponse creates a 500 response.
func NewServerErrorResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusInternalServerError,
		Body:       `{"message": "Internal server error"}`,
		Headers:    map[string]string{"Content-Type": "application/json"},
	}
}

// NewRateLimitResponse creates a 429 response with Retry-After.
func NewRateLimitResponse(retryAfter int) MockResponse {
	return MockResponse{
		StatusCode: http.StatusTooManyRequests,
		Body:       `{"message": "Too many requests"}`,
		Headers: map[string]string{
			"Content-Type":          "application/json",
			"Retry-After":           strconv.Itoa(retryAfter),
			"X-RateLimit-Remaining": "0",
		},
	}
}
