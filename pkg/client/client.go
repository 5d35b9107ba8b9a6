// Package client provides the catalog HTTP client with typed errors,
// optional Redis caching, rate limit gating and opt-in retries.
package client

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Sternrassler/catalog-picker/pkg/cache"
	"github.com/Sternrassler/catalog-picker/pkg/catalog"
	"github.com/Sternrassler/catalog-picker/pkg/ratelimit"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Prometheus metrics for catalog client operations.
var (
	catalogRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "catalog_requests_total",
		Help: "Total catalog requests by endpoint and status",
	}, []string{"endpoint", "status"})

	catalogRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "catalog_request_duration_seconds",
		Help:    "Catalog request duration in seconds by endpoint",
		Buckets: []float64{0.05, 0.1, 0.5, 1, 2, 5, 10},
	}, []string{"endpoint"})

	catalogErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "catalog_errors_total",
		Help: "Total catalog errors by class",
	}, []string{"class"})

	catalogRetriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "catalog_retries_total",
		Help: "Total number of retry attempts by error class",
	}, []string{"error_class"})

	catalogRetryBackoffSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "catalog_retry_backoff_seconds",
		Help:    "Backoff duration for retries by error class",
		Buckets: []float64{0.25, 0.5, 1, 2, 5},
	}, []string{"error_class"})

	catalogRetryExhaustedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "catalog_retry_exhausted_total",
		Help: "Total number of times retry attempts were exhausted by error class",
	}, []string{"error_class"})
)

// ErrorClass represents a classification of fetch errors.
type ErrorClass string

const (
	// ErrorClassUnauthorized represents a missing or rejected API key.
	ErrorClassUnauthorized ErrorClass = "unauthorized"

	// ErrorClassClient represents other 4xx client errors.
	ErrorClassClient ErrorClass = "client"

	// ErrorClassServer represents 5xx server errors.
	ErrorClassServer ErrorClass = "server"

	// ErrorClassRateLimit represents 429 responses and local rate limit blocks.
	ErrorClassRateLimit ErrorClass = "rate_limit"

	// ErrorClassNetwork represents network and timeout errors.
	ErrorClassNetwork ErrorClass = "network"
)

// SearchEndpoint is the catalog search path relative to BaseURL.
const SearchEndpoint = "/products/search"

// Defaults taken from the hosted catalog.
const (
	DefaultBaseURL = "http://stageapi.monkcommerce.app/task"
	DefaultLimit   = 10
	DefaultTimeout = 10 * time.Second
)

// Client is the catalog search client. It is safe for concurrent use.
type Client struct {
	httpClient  *http.Client
	baseURL     *url.URL
	rateLimiter *ratelimit.Tracker
	cache       *cache.Manager
	config      Config
	retry       RetryConfig
	logger      zerolog.Logger
}

// Config holds the client configuration.
type Config struct {
	// BaseURL of the catalog service, without the search path.
	BaseURL string

	// APIKey is sent as the x-api-key header. An empty key fails every
	// fetch with ErrUnauthorized.
	APIKey string

	// UserAgent header.
	UserAgent string

	// DefaultLimit is used when FetchPage is called with limit <= 0.
	DefaultLimit int

	// Timeout bounds a single HTTP attempt.
	Timeout time.Duration

	// Redis enables response caching and shared rate limit state (optional).
	Redis *redis.Client

	// Retry (opt-in). MaxRetries = 0 means a single attempt.
	MaxRetries     int
	InitialBackoff time.Duration
}

// DefaultConfig returns the default configuration for the hosted catalog.
func DefaultConfig(apiKey string) Config {
	return Config{
		BaseURL:        DefaultBaseURL,
		APIKey:         apiKey,
		UserAgent:      "catalog-picker/0.1.0",
		DefaultLimit:   DefaultLimit,
		Timeout:        DefaultTimeout,
		MaxRetries:     0,
		InitialBackoff: 500 * time.Millisecond,
	}
}

// New creates a new catalog client.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base url is required")
	}

	baseURL, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil || baseURL.Scheme == "" || baseURL.Host == "" {
		return nil, fmt.Errorf("invalid base url %q", cfg.BaseURL)
	}

	if cfg.DefaultLimit <= 0 {
		return nil, fmt.Errorf("default_limit must be > 0 (got %d)", cfg.DefaultLimit)
	}

	if cfg.Timeout <= 0 {
		return nil, fmt.Errorf("timeout must be > 0 (got %s)", cfg.Timeout)
	}

	if cfg.MaxRetries < 0 {
		return nil, fmt.Errorf("max_retries must be >= 0 (got %d)", cfg.MaxRetries)
	}

	logger := log.With().Str("component", "catalog-client").Logger()

	c := &Client{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		baseURL: baseURL,
		config:  cfg,
		retry:   retryConfigFor(cfg),
		logger:  logger,
	}

	if cfg.Redis != nil {
		c.rateLimiter = ratelimit.NewTracker(cfg.Redis, logger)
		c.cache = cache.NewManager(cfg.Redis)
	}

	return c, nil
}

// FetchPage fetches one page of search results. page is zero-based.
// Errors are ErrUnauthorized, *HTTPError or *TransportError.
func (c *Client) FetchPage(ctx context.Context, query string, page, limit int) ([]catalog.Product, error) {
	if c.config.APIKey == "" {
		catalogErrorsTotal.WithLabelValues(string(ErrorClassUnauthorized)).Inc()
		return nil, ErrUnauthorized
	}
	if page < 0 {
		return nil, fmt.Errorf("page must be >= 0 (got %d)", page)
	}
	if limit <= 0 {
		limit = c.config.DefaultLimit
	}

	params := url.Values{}
	params.Set("search", query)
	params.Set("page", strconv.Itoa(page))
	params.Set("limit", strconv.Itoa(limit))

	body, err := c.get(ctx, SearchEndpoint, params)
	if err != nil {
		return nil, err
	}

	products, err := catalog.DecodePage(body)
	if err != nil {
		c.logger.Error().Err(err).Str("query", query).Int("page", page).Msg("Undecodable catalog response")
		return nil, &HTTPError{StatusCode: http.StatusOK, Body: body, Err: err}
	}

	c.logger.Info().
		Str("query", query).
		Int("page", page).
		Int("items", len(products)).
		Msg("Fetched catalog page")

	return products, nil
}

// get performs a GET with rate limiting, caching and error handling and
// returns the response body of a successful request.
func (c *Client) get(ctx context.Context, endpoint string, params url.Values) ([]byte, error) {
	startTime := time.Now()
	defer func() {
		catalogRequestDuration.WithLabelValues(endpoint).Observe(time.Since(startTime).Seconds())
	}()

	// Step 1: Check Rate Limit
	if c.rateLimiter != nil {
		allowed, err := c.rateLimiter.ShouldAllowRequest(ctx)
		if err != nil {
			c.logger.Warn().Err(err).Msg("Rate limit check failed, allowing request")
		} else if !allowed {
			c.logger.Warn().Str("endpoint", endpoint).Msg("Request blocked by rate limiter")
			catalogRequestsTotal.WithLabelValues(endpoint, "rate_limited").Inc()
			catalogErrorsTotal.WithLabelValues(string(ErrorClassRateLimit)).Inc()
			return nil, ErrRateLimited
		}
	}

	// Step 2: Check Cache
	cacheKey := cache.CacheKey{
		Endpoint:    endpoint,
		QueryParams: params,
		Tenant:      fingerprint(c.config.APIKey),
	}

	var cachedEntry *cache.CacheEntry
	if c.cache != nil {
		entry, err := c.cache.Get(ctx, cacheKey)
		switch {
		case err == nil && !entry.IsExpired():
			c.logger.Debug().Str("key", cacheKey.String()).Msg("Serving catalog page from cache")
			catalogRequestsTotal.WithLabelValues(endpoint, "cached").Inc()
			return entry.Data, nil
		case err == nil:
			cachedEntry = entry
		case !errors.Is(err, cache.ErrCacheMiss):
			c.logger.Warn().Err(err).Str("endpoint", endpoint).Msg("Cache get error")
		}
	}

	reqURL := *c.baseURL
	reqURL.Path = reqURL.Path + endpoint
	reqURL.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("x-api-key", c.config.APIKey)
	req.Header.Set("Accept", "application/json")
	if c.config.UserAgent != "" {
		req.Header.Set("User-Agent", c.config.UserAgent)
	}

	// Step 3: Conditional request for a stale entry
	if cache.ShouldMakeConditionalRequest(cachedEntry) {
		cache.AddConditionalHeaders(req, cachedEntry)
		cache.ConditionalRequestsSent.Inc()
		c.logger.Debug().
			Str("endpoint", endpoint).
			Str("etag", cachedEntry.ETag).
			Msg("Making conditional request")
	}

	c.logger.Debug().
		Str("endpoint", endpoint).
		Str("query", params.Encode()).
		Msg("Executing catalog request")

	// Step 4: Execute with (opt-in) retry
	var resp *http.Response
	var body []byte
	retryErr := retryWithBackoff(ctx, c.retry, func() error {
		var attemptErr error
		resp, body, attemptErr = c.attempt(ctx, req.Clone(ctx), endpoint)
		return attemptErr
	}, ClassOf)
	if retryErr != nil {
		return nil, retryErr
	}

	// Step 5: 304 Not Modified refreshes the stale entry
	if resp.StatusCode == http.StatusNotModified && cachedEntry != nil {
		cache.NotModifiedResponses.Inc()
		newExpires := cache.ParseExpires(resp.Header)
		if err := c.cache.UpdateTTL(ctx, cacheKey, newExpires); err != nil {
			c.logger.Warn().Err(err).Msg("Failed to update cache TTL")
		}
		c.logger.Debug().Str("endpoint", endpoint).Msg("304 Not Modified - using cache")
		return cachedEntry.Data, nil
	}

	// Step 6: Update cache on success
	if c.cache != nil && resp.StatusCode == http.StatusOK {
		entry := cache.NewEntry(resp, body)
		if err := c.cache.Set(ctx, cacheKey, entry); err != nil {
			c.logger.Warn().Err(err).Msg("Failed to cache response")
		} else {
			c.logger.Debug().
				Str("endpoint", endpoint).
				Dur("ttl", entry.TTL()).
				Msg("Cached response")
		}
	}

	return body, nil
}

// attempt executes a single HTTP request and maps the outcome onto the
// error taxonomy. The response body is always consumed and closed.
func (c *Client) attempt(ctx context.Context, req *http.Request, endpoint string) (*http.Response, []byte, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error().Err(err).Str("endpoint", endpoint).Msg("HTTP request failed")
		catalogErrorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
		catalogRequestsTotal.WithLabelValues(endpoint, "network_error").Inc()
		return nil, nil, &TransportError{Err: err}
	}
	defer resp.Body.Close()

	if c.rateLimiter != nil {
		if err := c.rateLimiter.UpdateFromHeaders(ctx, resp.Header); err != nil {
			c.logger.Warn().Err(err).Msg("Failed to update rate limit from headers")
		}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		catalogErrorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
		return nil, nil, &TransportError{Err: fmt.Errorf("read response body: %w", err)}
	}

	catalogRequestsTotal.WithLabelValues(endpoint, strconv.Itoa(resp.StatusCode)).Inc()

	switch {
	case resp.StatusCode == http.StatusNotModified:
		return resp, body, nil
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		catalogErrorsTotal.WithLabelValues(string(ErrorClassUnauthorized)).Inc()
		c.logger.Warn().Str("endpoint", endpoint).Int("status", resp.StatusCode).Msg("API key rejected")
		return nil, nil, fmt.Errorf("%w (status %d)", ErrUnauthorized, resp.StatusCode)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		errClass := classifyStatus(resp.StatusCode)
		catalogErrorsTotal.WithLabelValues(string(errClass)).Inc()
		c.logger.Warn().
			Str("endpoint", endpoint).
			Int("status", resp.StatusCode).
			Str("error_class", string(errClass)).
			Msg("Catalog request error")
		return nil, nil, &HTTPError{StatusCode: resp.StatusCode, Body: body}
	}

	return resp, body, nil
}

// classifyStatus categorizes an HTTP status code.
func classifyStatus(status int) ErrorClass {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return ErrorClassUnauthorized
	case status == http.StatusTooManyRequests:
		return ErrorClassRateLimit
	case status >= 400 && status < 500:
		return ErrorClassClient
	case status >= 500:
		return ErrorClassServer
	default:
		return ErrorClassClient
	}
}

// fingerprint scopes cache keys to an API key without storing the key.
func fingerprint(apiKey string) string {
	sum := sha256.Sum256([]byte(apiKey))
	return hex.EncodeToString(sum[:6])
}

// PurgeCache deletes every cached search page fetched with this client's
// API key. It is a no-op without Redis.
func (c *Client) PurgeCache(ctx context.Context) (int, error) {
	if c.cache == nil {
		return 0, nil
	}
	return c.cache.Purge(ctx, SearchEndpoint, fingerprint(c.config.APIKey))
}

// Close releases idle connections. The Redis client is owned by the caller.
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

// SetHTTPClient sets a custom HTTP client (for testing).
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}

// GetCache returns the cache manager, nil when caching is disabled.
func (c *Client) GetCache() *cache.Manager {
	return c.cache
}
