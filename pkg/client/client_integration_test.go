//go:build integration

package client

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Sternrassler/catalog-picker/internal/testutil"
	"github.com/Sternrassler/catalog-picker/pkg/cache"
	"github.com/Sternrassler/catalog-picker/pkg/ratelimit"
	"github.com/redis/go-redis/v9"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// setupRedisContainer creates a Redis container for integration testing.
func setupRedisContainer(t *testing.T) (*redis.Client, func()) {
	t.Helper()

	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForLog("Ready to accept connections"),
	}

	redisContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("Failed to start Redis container: %v", err)
	}

	host, err := redisContainer.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}

	port, err := redisContainer.MappedPort(ctx, "6379")
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}

	client := redis.NewClient(&redis.Options{
		Addr: host + ":" + port.Port(),
	})

	cleanup := func() {
		client.Close()
		redisContainer.Terminate(ctx)
	}

	return client, cleanup
}

func newIntegrationClient(t *testing.T, redisClient *redis.Client, mock *testutil.MockCatalog) *Client {
	t.Helper()

	cfg := DefaultConfig("test-key")
	cfg.BaseURL = mock.URL()
	cfg.Redis = redisClient
	cfg.Timeout = 5 * time.Second

	c, err := New(cfg)
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

// TestIntegration_FullRequestFlow covers rate limit check, cache miss,
// fetch, cache store and conditional revalidation.
func TestIntegration_FullRequestFlow(t *testing.T) {
	redisClient, cleanup := setupRedisContainer(t)
	defer cleanup()

	mock := testutil.NewMockCatalog("test-key")
	defer mock.Close()
	mock.SetProducts(testutil.GenerateProducts("Hat", 1, 12))
	mock.EnableETags()

	c := newIntegrationClient(t, redisClient, mock)
	ctx := context.Background()

	t.Log("Request 1: cache miss")
	page0, err := c.FetchPage(ctx, "hat", 0, 10)
	if err != nil {
		t.Fatalf("Request 1 failed: %v", err)
	}
	if len(page0) != 10 {
		t.Errorf("len(page 0) = %d, want 10", len(page0))
	}
	if mock.GetRequestCount() != 1 {
		t.Errorf("After request 1: requests = %d, want 1", mock.GetRequestCount())
	}

	t.Log("Request 2: conditional request")
	again, err := c.FetchPage(ctx, "hat", 0, 10)
	if err != nil {
		t.Fatalf("Request 2 failed: %v", err)
	}
	if len(again) != 10 || again[0].ID != page0[0].ID {
		t.Error("revalidated page differs from original")
	}
	if mock.GetRequestCount() != 2 {
		t.Errorf("After request 2: requests = %d, want 2", mock.GetRequestCount())
	}
	if mock.GetConditionalCount() != 1 {
		t.Errorf("conditional requests = %d, want 1", mock.GetConditionalCount())
	}

	key := cache.CacheKey{
		Endpoint:    SearchEndpoint,
		QueryParams: mock.GetLastQuery(),
		Tenant:      fingerprint("test-key"),
	}
	entry, err := c.GetCache().Get(ctx, key)
	if err != nil {
		t.Fatalf("Cache lookup failed: %v", err)
	}
	if entry.ETag == "" {
		t.Error("cached entry should carry an ETag")
	}

	t.Log("Request 3: second page")
	page1, err := c.FetchPage(ctx, "hat", 1, 10)
	if err != nil {
		t.Fatalf("Request 3 failed: %v", err)
	}
	if len(page1) != 2 {
		t.Errorf("len(page 1) = %d, want 2", len(page1))
	}
}

func TestIntegration_CacheHitSkipsServer(t *testing.T) {
	redisClient, cleanup := setupRedisContainer(t)
	defer cleanup()

	mock := testutil.NewMockCatalog("test-key")
	defer mock.Close()
	mock.SetProducts(testutil.GenerateProducts("Cap", 100, 3))

	c := newIntegrationClient(t, redisClient, mock)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := c.FetchPage(ctx, "cap", 0, 10); err != nil {
			t.Fatalf("request %d failed: %v", i+1, err)
		}
	}

	if mock.GetRequestCount() != 1 {
		t.Errorf("requests = %d, want 1 (default TTL serves from cache)", mock.GetRequestCount())
	}
}

func TestIntegration_RateLimitBlocks(t *testing.T) {
	redisClient, cleanup := setupRedisContainer(t)
	defer cleanup()

	ctx := context.Background()

	// Pre-seed Redis with an exhausted window.
	redisClient.Set(ctx, ratelimit.RedisKeyRemaining, 0, 0)
	redisClient.Set(ctx, ratelimit.RedisKeyResetTimestamp, time.Now().Add(60*time.Second).Unix(), 0)

	mock := testutil.NewMockCatalog("test-key")
	defer mock.Close()

	c := newIntegrationClient(t, redisClient, mock)

	_, err := c.FetchPage(ctx, "hat", 0, 10)
	if !errors.Is(err, ErrRateLimited) {
		t.Errorf("FetchPage() error = %v, want ErrRateLimited", err)
	}
	if mock.GetRequestCount() != 0 {
		t.Errorf("requests = %d, want 0", mock.GetRequestCount())
	}

	state, err := c.rateLimiter.GetState(ctx)
	if err != nil {
		t.Fatalf("Failed to get rate limit state: %v", err)
	}
	if !state.NeedsCriticalBlock() {
		t.Error("Expected state to need critical block")
	}
}

func TestIntegration_RateLimitHeadersTracked(t *testing.T) {
	redisClient, cleanup := setupRedisContainer(t)
	defer cleanup()

	mock := testutil.NewMockCatalog("test-key")
	defer mock.Close()
	mock.SetResponse(testutil.SearchPath, testutil.MockResponse{
		StatusCode: 200,
		Body:       `[]`,
		Headers: map[string]string{
			"X-RateLimit-Remaining": "3",
			"X-RateLimit-Reset":     "30",
		},
	})

	c := newIntegrationClient(t, redisClient, mock)
	ctx := context.Background()

	if _, err := c.FetchPage(ctx, "hat", 0, 10); err != nil {
		t.Fatalf("FetchPage() error = %v", err)
	}

	state, err := c.rateLimiter.GetState(ctx)
	if err != nil {
		t.Fatalf("Failed to get rate limit state: %v", err)
	}
	if state.Remaining != 3 {
		t.Errorf("Remaining = %d, want 3", state.Remaining)
	}
	if !state.NeedsThrottling() {
		t.Error("Expected state to need throttling")
	}
}

func TestIntegration_ErrorClassification(t *testing.T) {
	redisClient, cleanup := setupRedisContainer(t)
	defer cleanup()

	testCases := []struct {
		name     string
		response testutil.MockResponse
		errClass ErrorClass
	}{
		{"unauthorized", testutil.NewUnauthorizedResponse(), ErrorClassUnauthorized},
		{"client error", testutil.MockResponse{StatusCode: 404}, ErrorClassClient},
		{"server error", testutil.NewServerErrorResponse(), ErrorClassServer},
		{"rate limit error", testutil.NewRateLimitResponse(1), ErrorClassRateLimit},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			redisClient.FlushDB(context.Background())

			mock := testutil.NewMockCatalog("test-key")
			defer mock.Close()
			mock.SetResponse(testutil.SearchPath, tc.response)

			c := newIntegrationClient(t, redisClient, mock)

			_, err := c.FetchPage(context.Background(), "hat", 0, 10)
			if err == nil {
				t.Fatal("Expected error")
			}
			if got := ClassOf(err); got != tc.errClass {
				t.Errorf("ClassOf() = %q, want %q", got, tc.errClass)
			}
		})
	}
}
