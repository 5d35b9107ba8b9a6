package search

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Sternrassler/catalog-picker/pkg/catalog"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var (
	searchPagesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "catalog_search_pages_total",
		Help: "Search page completions by outcome",
	}, []string{"outcome"})

	searchQueriesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "catalog_search_queries_total",
		Help: "Total number of query changes",
	})
)

// ErrTimeout is returned in a Completion when a fetch exceeds Config.Timeout.
var ErrTimeout = errors.New("fetch timed out")

// Fetcher fetches one page of products. pkg/client.Client implements it.
type Fetcher interface {
	FetchPage(ctx context.Context, query string, page, limit int) ([]catalog.Product, error)
}

// Config holds controller configuration.
type Config struct {
	// PageSize is passed as the limit of every fetch.
	PageSize int

	// Timeout bounds a single fetch.
	Timeout time.Duration

	// Context is the parent of every fetch context (optional).
	Context context.Context
}

// DefaultConfig returns the default controller configuration.
func DefaultConfig() Config {
	return Config{
		PageSize: 10,
		Timeout:  10 * time.Second,
	}
}

// State is a snapshot of the search state.
type State struct {
	Query   string
	Page    int
	Results []catalog.Product
	Loading bool
	HasMore bool
	Epoch   uint64
	Err     error
}

// Completion is the result of running a Command.
type Completion struct {
	Epoch    uint64
	Seq      uint64
	Query    string
	Page     int
	Products []catalog.Product
	Err      error
}

// Command performs one fetch. It is safe to run on any goroutine and does
// not touch controller state.
type Command func() Completion

// Outcome describes what Apply did with a Completion.
type Outcome int

const (
	// OutcomeStale means the completion belonged to a superseded fetch and was dropped.
	OutcomeStale Outcome = iota
	// OutcomeAppended means a non-empty page was appended to the results.
	OutcomeAppended
	// OutcomeExhausted means an empty page was received; HasMore is now false.
	OutcomeExhausted
	// OutcomeFailed means the fetch failed; the error is in State.Err.
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeStale:
		return "stale"
	case OutcomeAppended:
		return "appended"
	case OutcomeExhausted:
		return "exhausted"
	case OutcomeFailed:
		return "failed"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// Controller is the incremental search state machine.
type Controller struct {
	fetcher Fetcher
	config  Config
	base    context.Context
	logger  zerolog.Logger

	state State

	// seq is the last issued sequence number; inflight is the one whose
	// completion is awaited, 0 when idle.
	seq      uint64
	inflight uint64
	cancel   context.CancelFunc

	// failed is set when the last fetch of the epoch failed; the next
	// request repeats its page.
	failed bool
}

// New creates a controller. No fetch happens until SetQuery is called.
func New(fetcher Fetcher, cfg Config) (*Controller, error) {
	if fetcher == nil {
		return nil, fmt.Errorf("fetcher is required")
	}
	if cfg.PageSize <= 0 {
		return nil, fmt.Errorf("page_size must be > 0 (got %d)", cfg.PageSize)
	}
	if cfg.Timeout <= 0 {
		return nil, fmt.Errorf("timeout must be > 0 (got %s)", cfg.Timeout)
	}

	base := cfg.Context
	if base == nil {
		base = context.Background()
	}

	return &Controller{
		fetcher: fetcher,
		config:  cfg,
		base:    base,
		logger:  log.With().Str("component", "search").Logger(),
		state:   State{Results: []catalog.Product{}},
	}, nil
}

// SetQuery starts a new epoch for text and returns the fetch of its first
// page. Any fetch still in flight is cancelled and its completion will be
// discarded. An empty text is an ordinary search.
func (c *Controller) SetQuery(text string) Command {
	c.abort()

	c.state = State{
		Query:   text,
		Page:    0,
		Results: []catalog.Product{},
		HasMore: true,
		Epoch:   c.state.Epoch + 1,
	}
	c.failed = false
	searchQueriesTotal.Inc()

	c.logger.Debug().
		Str("query", text).
		Uint64("epoch", c.state.Epoch).
		Msg("Query changed")

	return c.issue(0)
}

// RequestNextPage returns the fetch of the next page, or nil when a fetch is
// in flight or the results are exhausted. After a failed fetch it returns a
// fetch of the failed page again, so pages are never skipped.
func (c *Controller) RequestNextPage() Command {
	if c.state.Epoch == 0 || c.state.Loading || !c.state.HasMore {
		return nil
	}

	if c.failed {
		return c.retry()
	}

	c.state.Page++
	return c.issue(c.state.Page)
}

// Retry re-issues the fetch that failed last. It returns nil when the last
// fetch did not fail or a fetch is in flight.
func (c *Controller) Retry() Command {
	if !c.failed || c.state.Loading {
		return nil
	}
	return c.retry()
}

func (c *Controller) retry() Command {
	c.failed = false
	c.state.Err = nil

	c.logger.Debug().
		Str("query", c.state.Query).
		Int("page", c.state.Page).
		Msg("Retrying failed page")

	return c.issue(c.state.Page)
}

// issue marks a fetch of page as in flight and builds its command.
func (c *Controller) issue(page int) Command {
	c.seq++
	c.inflight = c.seq
	c.state.Loading = true

	ctx, cancel := context.WithCancel(c.base)
	c.cancel = cancel

	done := Completion{
		Epoch: c.state.Epoch,
		Seq:   c.seq,
		Query: c.state.Query,
		Page:  page,
	}
	fetcher := c.fetcher
	limit := c.config.PageSize
	timeout := c.config.Timeout

	return func() Completion {
		fetchCtx, stop := context.WithTimeout(ctx, timeout)
		defer stop()

		products, err := fetcher.FetchPage(fetchCtx, done.Query, done.Page, limit)
		if err != nil && errors.Is(fetchCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			err = fmt.Errorf("%w after %s: %w", ErrTimeout, timeout, err)
		}
		done.Products = products
		done.Err = err
		return done
	}
}

// Apply folds a completion into the state. It must be called on the same
// goroutine as the other methods.
func (c *Controller) Apply(done Completion) Outcome {
	if done.Epoch != c.state.Epoch || done.Seq != c.inflight {
		c.logger.Debug().
			Uint64("epoch", done.Epoch).
			Uint64("current_epoch", c.state.Epoch).
			Str("query", done.Query).
			Int("page", done.Page).
			Msg("Discarding stale completion")
		searchPagesTotal.WithLabelValues(OutcomeStale.String()).Inc()
		return OutcomeStale
	}

	c.inflight = 0
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.state.Loading = false

	outcome := c.fold(done)
	searchPagesTotal.WithLabelValues(outcome.String()).Inc()
	return outcome
}

func (c *Controller) fold(done Completion) Outcome {
	if done.Err != nil {
		c.state.Err = done.Err
		c.failed = true
		c.logger.Error().
			Err(done.Err).
			Str("query", done.Query).
			Int("page", done.Page).
			Msg("Search page failed")
		return OutcomeFailed
	}

	c.state.Err = nil
	c.failed = false

	if len(done.Products) == 0 {
		c.state.HasMore = false
		c.logger.Debug().
			Str("query", done.Query).
			Int("page", done.Page).
			Int("total", len(c.state.Results)).
			Msg("Search results exhausted")
		return OutcomeExhausted
	}

	c.state.Results = append(c.state.Results, done.Products...)
	c.logger.Debug().
		Str("query", done.Query).
		Int("page", done.Page).
		Int("items", len(done.Products)).
		Int("total", len(c.state.Results)).
		Msg("Search page appended")
	return OutcomeAppended
}

// State returns a snapshot of the search state. The Results slice is a copy.
func (c *Controller) State() State {
	s := c.state
	s.Results = append([]catalog.Product(nil), c.state.Results...)
	return s
}

// Results returns the accumulated results. Callers must not modify the slice.
func (c *Controller) Results() []catalog.Product {
	return c.state.Results
}

// Loading reports whether a fetch is in flight.
func (c *Controller) Loading() bool {
	return c.state.Loading
}

// HasMore reports whether further pages may exist.
func (c *Controller) HasMore() bool {
	return c.state.HasMore
}

// Err returns the error of the last fetch, nil after a success.
func (c *Controller) Err() error {
	return c.state.Err
}

// Close cancels any fetch in flight. Its completion will be discarded.
func (c *Controller) Close() {
	c.abort()
	c.state.Loading = false
}

func (c *Controller) abort() {
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.inflight = 0
}
