package prefetch

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/Sternrassler/catalog-picker/pkg/catalog"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var prefetchPagesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "catalog_prefetch_pages_total",
	Help: "Pages fetched by the cache warmer by result (ok, empty, error)",
}, []string{"result"})

// Config holds warmer configuration.
type Config struct {
	// MaxConcurrency is the maximum number of parallel requests.
	MaxConcurrency int

	// MaxPages is the number of pages to warm, starting at page 0.
	MaxPages int

	// Limit is the page size sent to the catalog; 0 uses the client default.
	Limit int

	// Timeout per page fetch.
	Timeout time.Duration
}

// DefaultConfig returns a configuration that stays well inside the
// catalog's rate limit.
func DefaultConfig() Config {
	return Config{
		MaxConcurrency: 4,
		MaxPages:       5,
		Timeout:        10 * time.Second,
	}
}

// Fetcher fetches a single page of search results.
type Fetcher interface {
	FetchPage(ctx context.Context, query string, page, limit int) ([]catalog.Product, error)
}

// PageResult is the result of fetching a single page.
type PageResult struct {
	Page     int
	Products []catalog.Product
	Err      error
}

// Warmer fetches pages of a query in parallel.
type Warmer struct {
	fetcher Fetcher
	config  Config
	logger  zerolog.Logger
}

// New creates a warmer.
func New(fetcher Fetcher, cfg Config) (*Warmer, error) {
	if fetcher == nil {
		return nil, fmt.Errorf("fetcher is required")
	}
	if cfg.MaxConcurrency <= 0 {
		return nil, fmt.Errorf("max_concurrency must be > 0 (got %d)", cfg.MaxConcurrency)
	}
	if cfg.MaxPages <= 0 {
		return nil, fmt.Errorf("max_pages must be > 0 (got %d)", cfg.MaxPages)
	}
	if cfg.Limit < 0 {
		return nil, fmt.Errorf("limit must be >= 0 (got %d)", cfg.Limit)
	}
	if cfg.Timeout <= 0 {
		return nil, fmt.Errorf("timeout must be > 0 (got %s)", cfg.Timeout)
	}

	return &Warmer{
		fetcher: fetcher,
		config:  cfg,
		logger:  log.With().Str("component", "prefetch").Logger(),
	}, nil
}

// Warm fetches up to MaxPages pages of query and returns them keyed by
// page number. Pages at or after the first empty page are dropped. On
// error the pages fetched so far are returned with the error.
func (w *Warmer) Warm(ctx context.Context, query string) (map[int][]catalog.Product, error) {
	start := time.Now()

	first, err := w.fetch(ctx, query, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch first page: %w", err)
	}

	results := map[int][]catalog.Product{0: first}
	if len(first) == 0 || w.config.MaxPages == 1 {
		w.logger.Info().
			Str("query", query).
			Int("pages", 1).
			Dur("duration", time.Since(start)).
			Msg("Warm complete (single page)")
		return results, nil
	}

	pageQueue := make(chan int, w.config.MaxPages)
	for page := 1; page < w.config.MaxPages; page++ {
		pageQueue <- page
	}
	close(pageQueue)

	pageResults := make(chan PageResult, w.config.MaxPages)

	var wg sync.WaitGroup
	workers := w.config.MaxConcurrency
	if workers > w.config.MaxPages-1 {
		workers = w.config.MaxPages - 1
	}
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go w.worker(ctx, query, pageQueue, pageResults, &wg, i)
	}

	go func() {
		wg.Wait()
		close(pageResults)
	}()

	var firstErr error
	for result := range pageResults {
		if result.Err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("page %d: %w", result.Page, result.Err)
			}
			continue
		}
		results[result.Page] = result.Products
	}

	trimAfterEmpty(results)

	if firstErr != nil {
		w.logger.Warn().
			Err(firstErr).
			Str("query", query).
			Int("fetched_pages", len(results)).
			Msg("Warm incomplete - returning partial results")
		return results, fmt.Errorf("warm incomplete (%d pages): %w", len(results), firstErr)
	}

	w.logger.Info().
		Str("query", query).
		Int("pages", len(results)).
		Dur("duration", time.Since(start)).
		Msg("Warm complete")

	return results, nil
}

// worker processes pages from the queue until it is drained, the context
// ends or a fetch fails.
func (w *Warmer) worker(ctx context.Context, query string, pageQueue <-chan int, results chan<- PageResult, wg *sync.WaitGroup, workerID int) {
	defer wg.Done()
	pagesProcessed := 0

	for page := range pageQueue {
		if ctx.Err() != nil {
			w.logger.Debug().
				Int("worker_id", workerID).
				Int("pages_processed", pagesProcessed).
				Msg("Worker stopping (context cancelled)")
			return
		}

		products, err := w.fetch(ctx, query, page)
		results <- PageResult{Page: page, Products: products, Err: err}
		if err != nil {
			return
		}
		pagesProcessed++
	}

	w.logger.Debug().
		Int("worker_id", workerID).
		Int("pages_processed", pagesProcessed).
		Msg("Worker completed")
}

func (w *Warmer) fetch(ctx context.Context, query string, page int) ([]catalog.Product, error) {
	pageCtx, cancel := context.WithTimeout(ctx, w.config.Timeout)
	defer cancel()

	products, err := w.fetcher.FetchPage(pageCtx, query, page, w.config.Limit)
	switch {
	case err != nil:
		prefetchPagesTotal.WithLabelValues("error").Inc()
		w.logger.Warn().Err(err).Int("page", page).Msg("Page fetch failed")
	case len(products) == 0:
		prefetchPagesTotal.WithLabelValues("empty").Inc()
	default:
		prefetchPagesTotal.WithLabelValues("ok").Inc()
	}
	return products, err
}

// trimAfterEmpty deletes every page after the first empty page, and the
// empty page itself unless it is page 0. Pages missing because of errors
// end the contiguous range too.
func trimAfterEmpty(results map[int][]catalog.Product) {
	pages := make([]int, 0, len(results))
	for page := range results {
		pages = append(pages, page)
	}
	sort.Ints(pages)

	end := len(pages)
	for i, page := range pages {
		if page != i || (page > 0 && len(results[page]) == 0) {
			end = i
			break
		}
	}
	for _, page := range pages[end:] {
		delete(results, page)
	}
}
