// catalog-proxy is a caching HTTP proxy in front of the catalog search
// endpoint. It holds the API key, so browser front ends never see it, and
// shares cached pages and rate limit state through Redis.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/Sternrassler/catalog-picker/pkg/catalog"
	"github.com/Sternrassler/catalog-picker/pkg/client"
	"github.com/Sternrassler/catalog-picker/pkg/config"
	"github.com/Sternrassler/catalog-picker/pkg/logging"
	"github.com/Sternrassler/catalog-picker/pkg/metrics"
	"github.com/Sternrassler/catalog-picker/pkg/prefetch"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/spf13/pflag"
)

// Fetcher is the part of the catalog client the proxy uses.
type Fetcher interface {
	FetchPage(ctx context.Context, query string, page, limit int) ([]catalog.Product, error)
}

// Purger drops cached pages.
type Purger interface {
	PurgeCache(ctx context.Context) (int, error)
}

// Catalog is a Fetcher with a purgeable cache, such as *client.Client.
type Catalog interface {
	Fetcher
	Purger
}

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	var configPath, apiKey, redisURL string
	var port, warmPages int

	flagSet := pflag.NewFlagSet("catalog-proxy", pflag.ContinueOnError)
	flagSet.StringVarP(&configPath, "config", "c", "", "path to a TOML config file")
	flagSet.StringVar(&apiKey, "api-key", "", "catalog API key (overrides CATALOG_API_KEY)")
	flagSet.StringVar(&redisURL, "redis-url", "", "Redis address or URL")
	flagSet.IntVarP(&port, "port", "p", 0, "listen port (overrides PORT)")
	flagSet.IntVar(&warmPages, "warm-pages", 0, "pages of the empty query to cache at startup")
	if err := flagSet.Parse(args); err != nil {
		if err == pflag.ErrHelp {
			return nil
		}
		return err
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if flagSet.Changed("api-key") {
		cfg.Catalog.APIKey = apiKey
	}
	if flagSet.Changed("redis-url") {
		cfg.Redis.URL = redisURL
	}
	if flagSet.Changed("port") {
		cfg.Proxy.Port = port
	}
	if flagSet.Changed("warm-pages") {
		cfg.Proxy.WarmPages = warmPages
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logging.Setup(cfg.LoggingConfig())
	logger := logging.NewLogger("proxy")

	var redisClient *redis.Client
	redisOpts, err := cfg.RedisOptions()
	if err != nil {
		return err
	}
	if redisOpts != nil {
		redisClient = redis.NewClient(redisOpts)
		defer redisClient.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		err := redisClient.Ping(ctx).Err()
		cancel()
		if err != nil {
			return fmt.Errorf("connect to redis at %s: %w", redisOpts.Addr, err)
		}
		logger.Info().Str("addr", redisOpts.Addr).Msg("Connected to Redis")
	} else {
		logger.Warn().Msg("REDIS_URL not set, running without cache")
	}

	catalogClient, err := client.New(cfg.ClientConfig(redisClient))
	if err != nil {
		return fmt.Errorf("create catalog client: %w", err)
	}
	defer catalogClient.Close()

	server := &http.Server{
		Addr:              ":" + strconv.Itoa(cfg.Proxy.Port),
		Handler:           newMux(catalogClient, redisClient, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Proxy.WarmPages > 0 && redisClient != nil {
		go warmCache(ctx, catalogClient, cfg.Proxy.WarmPages, logger)
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().
			Str("addr", server.Addr).
			Str("base_url", cfg.Catalog.BaseURL).
			Msg("Starting catalog proxy")
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info().Msg("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// warmCache fetches the first pages of the empty query so that pickers
// opening against a cold proxy are served from Redis.
func warmCache(ctx context.Context, fetcher Fetcher, pages int, logger zerolog.Logger) {
	cfg := prefetch.DefaultConfig()
	cfg.MaxPages = pages

	warmer, err := prefetch.New(fetcher, cfg)
	if err != nil {
		logger.Error().Err(err).Msg("Cannot create cache warmer")
		return
	}
	results, err := warmer.Warm(ctx, "")
	if err != nil {
		logger.Warn().Err(err).Int("pages", len(results)).Msg("Cache warm incomplete")
		return
	}
	logger.Info().Int("pages", len(results)).Msg("Cache warmed")
}

func newMux(catalogClient Catalog, redisClient *redis.Client, logger zerolog.Logger) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", healthHandler)
	mux.HandleFunc("/ready", readyHandler(redisClient))
	mux.Handle("/metrics", metrics.Handler())
	mux.HandleFunc(client.SearchEndpoint, searchHandler(catalogClient, logger))
	mux.HandleFunc("/cache/purge", purgeHandler(catalogClient, logger))
	return mux
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, "OK")
}

// readyHandler reports 503 while a configured Redis is unreachable.
func readyHandler(redisClient *redis.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if redisClient != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := redisClient.Ping(ctx).Err(); err != nil {
				http.Error(w, "redis unavailable", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, "OK")
	}
}

// searchHandler serves GET /products/search?search=&page=&limit= with the
// same parameters and response shape as the catalog itself.
func searchHandler(fetcher Fetcher, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		q := r.URL.Query()
		page, err := intParam(q.Get("page"), 0)
		if err != nil || page < 0 {
			http.Error(w, "invalid page", http.StatusBadRequest)
			return
		}
		limit, err := intParam(q.Get("limit"), 0)
		if err != nil || limit < 0 {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
		defer cancel()

		products, err := fetcher.FetchPage(ctx, q.Get("search"), page, limit)
		if err != nil {
			status := statusFor(err)
			logger.Warn().
				Err(err).
				Str("query", q.Get("search")).
				Int("page", page).
				Int("status", status).
				Msg("Search failed")
			http.Error(w, fmt.Sprintf("catalog request failed: %v", err), status)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(products); err != nil {
			logger.Error().Err(err).Msg("Failed to write response")
		}
	}
}

// purgeHandler serves POST /cache/purge and responds with the number of
// deleted entries.
func purgeHandler(purger Purger, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		deleted, err := purger.PurgeCache(r.Context())
		if err != nil {
			logger.Error().Err(err).Int("deleted", deleted).Msg("Cache purge failed")
			http.Error(w, fmt.Sprintf("purge failed: %v", err), http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]int{"deleted": deleted})
	}
}

// statusFor maps a client error onto the proxy's response status.
func statusFor(err error) int {
	var httpErr *client.HTTPError
	var transportErr *client.TransportError

	switch {
	case errors.Is(err, client.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, client.ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.As(err, &httpErr):
		return http.StatusBadGateway
	case errors.As(err, &transportErr):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func intParam(raw string, def int) (int, error) {
	if raw == "" {
		return def, nil
	}
	return strconv.Atoi(raw)
}
