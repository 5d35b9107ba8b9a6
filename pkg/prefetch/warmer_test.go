package prefetch

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Sternrassler/catalog-picker/pkg/catalog"
)

// pagedFetcher serves total products in pages of limit.
type pagedFetcher struct {
	total   int
	failAt  int
	delay   time.Duration
	mu      sync.Mutex
	pages   []int
	active  int32
	maxSeen int32
}

func (f *pagedFetcher) FetchPage(ctx context.Context, query string, page, limit int) ([]catalog.Product, error) {
	n := atomic.AddInt32(&f.active, 1)
	defer atomic.AddInt32(&f.active, -1)
	for {
		seen := atomic.LoadInt32(&f.maxSeen)
		if n <= seen || atomic.CompareAndSwapInt32(&f.maxSeen, seen, n) {
			break
		}
	}

	f.mu.Lock()
	f.pages = append(f.pages, page)
	f.mu.Unlock()

	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if f.failAt > 0 && page == f.failAt {
		return nil, errors.New("boom")
	}

	if limit <= 0 {
		limit = 10
	}
	out := []catalog.Product{}
	for i := page * limit; i < (page+1)*limit && i < f.total; i++ {
		out = append(out, catalog.Product{ID: int64(i + 1)})
	}
	return out, nil
}

func TestNew_Validation(t *testing.T) {
	f := &pagedFetcher{}
	tests := []struct {
		name    string
		fetcher Fetcher
		mutate  func(*Config)
		wantErr string
	}{
		{"nil fetcher", nil, func(*Config) {}, "fetcher is required"},
		{"zero concurrency", f, func(c *Config) { c.MaxConcurrency = 0 }, "max_concurrency must be > 0"},
		{"zero pages", f, func(c *Config) { c.MaxPages = 0 }, "max_pages must be > 0"},
		{"negative limit", f, func(c *Config) { c.Limit = -1 }, "limit must be >= 0"},
		{"zero timeout", f, func(c *Config) { c.Timeout = 0 }, "timeout must be > 0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			_, err := New(tt.fetcher, cfg)
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("New() error = %v, want %q", err, tt.wantErr)
			}
		})
	}
}

func TestWarm(t *testing.T) {
	tests := []struct {
		name      string
		total     int
		maxPages  int
		wantPages []int
	}{
		{"fills all pages", 100, 5, []int{0, 1, 2, 3, 4}},
		{"stops at end of results", 25, 5, []int{0, 1, 2}},
		{"exact multiple", 20, 5, []int{0, 1}},
		{"empty catalog", 0, 5, []int{0}},
		{"single page", 100, 1, []int{0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.MaxPages = tt.maxPages
			w, err := New(&pagedFetcher{total: tt.total}, cfg)
			if err != nil {
				t.Fatalf("New failed: %v", err)
			}

			results, err := w.Warm(context.Background(), "")
			if err != nil {
				t.Fatalf("Warm failed: %v", err)
			}

			if len(results) != len(tt.wantPages) {
				t.Fatalf("pages = %d, want %d (%v)", len(results), len(tt.wantPages), results)
			}
			for _, page := range tt.wantPages {
				if _, ok := results[page]; !ok {
					t.Errorf("page %d missing", page)
				}
			}
		})
	}
}

func TestWarm_BoundedConcurrency(t *testing.T) {
	f := &pagedFetcher{total: 1000, delay: 20 * time.Millisecond}
	cfg := DefaultConfig()
	cfg.MaxConcurrency = 2
	cfg.MaxPages = 9
	w, _ := New(f, cfg)

	if _, err := w.Warm(context.Background(), "hat"); err != nil {
		t.Fatalf("Warm failed: %v", err)
	}

	if got := atomic.LoadInt32(&f.maxSeen); got > 2 {
		t.Errorf("max concurrent fetches = %d, want <= 2", got)
	}
	if len(f.pages) != 9 {
		t.Errorf("fetches = %d, want 9", len(f.pages))
	}
}

func TestWarm_FirstPageError(t *testing.T) {
	w, _ := New(fetcherFunc(func(context.Context, string, int, int) ([]catalog.Product, error) {
		return nil, errors.New("unauthorized")
	}), DefaultConfig())

	results, err := w.Warm(context.Background(), "")
	if err == nil || !strings.Contains(err.Error(), "failed to fetch first page") {
		t.Errorf("error = %v, want first page error", err)
	}
	if results != nil {
		t.Errorf("results = %v, want nil", results)
	}
}

func TestWarm_PartialResults(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxConcurrency = 1
	w, _ := New(&pagedFetcher{total: 100, failAt: 2}, cfg)

	results, err := w.Warm(context.Background(), "")
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "page 2") {
		t.Errorf("error = %v, want page 2", err)
	}
	if len(results) != 2 {
		t.Errorf("pages = %d, want 2 (pages before the failure)", len(results))
	}
}

func TestWarm_ContextCancelled(t *testing.T) {
	f := &pagedFetcher{total: 1000}
	ctx, cancel := context.WithCancel(context.Background())
	cfg := DefaultConfig()
	cfg.MaxConcurrency = 1
	w, _ := New(fetcherFunc(func(c context.Context, q string, page, limit int) ([]catalog.Product, error) {
		if page == 1 {
			cancel()
		}
		return f.FetchPage(c, q, page, limit)
	}), cfg)

	results, err := w.Warm(ctx, "")
	if err != nil {
		t.Fatalf("Warm failed: %v", err)
	}
	if len(results) != 2 {
		t.Errorf("pages = %d, want 2 (worker stops after cancellation)", len(results))
	}
}

func TestTrimAfterEmpty(t *testing.T) {
	p := []catalog.Product{{ID: 1}}
	results := map[int][]catalog.Product{0: p, 1: p, 2: {}, 3: p, 5: p}

	trimAfterEmpty(results)

	if len(results) != 2 {
		t.Errorf("len = %d, want 2 (%v)", len(results), results)
	}

	gap := map[int][]catalog.Product{0: p, 2: p}
	trimAfterEmpty(gap)
	if len(gap) != 1 {
		t.Errorf("gap len = %d, want 1", len(gap))
	}
}

type fetcherFunc func(ctx context.Context, query string, page, limit int) ([]catalog.Product, error)

func (f fetcherFunc) FetchPage(ctx context.Context, query string, page, limit int) ([]catalog.Product, error) {
	return f(ctx, query, page, limit)
}
