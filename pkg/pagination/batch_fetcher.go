package pagination

import (
	"context"
	"fmt"
	"time"

	"github.com/Sternrassler/casedesk-client/pkg/cases"
	"github.com/Sternrassler/casedesk-client/pkg/client"
	"github.com/Sternrassler/casedesk-client/pkg/logging"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"golang.org/x/sync/errgroup"
)

var (
	pagesFetched = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "casedesk_pages_fetched_total",
		Help: "Pages fetched by endpoint",
	}, []string{"endpoint"})

	fetchDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "casedesk_fetch_duration_seconds",
		Help:    "Duration of complete multi-page fetches by endpoint",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
	}, []string{"endpoint"})

	fetchesAborted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "casedesk_fetch_aborted_total",
		Help: "Multi-page fetches stopped by the caller",
	}, []string{"endpoint"})
)

// Defaults used when Config leaves a field unset.
const (
	DefaultPageSize    = 50
	DefaultConcurrency = 5
)

// Config holds batch fetcher configuration.
type Config struct {
	// PageSize is used when FetchAll is called with pageSize <= 0.
	PageSize int

	// Concurrency is used when FetchAll is called with limit <= 0. It is the
	// number of pages requested together in one chunk.
	Concurrency int

	// OnProgress is called after page 1 and after every completed chunk with
	// the number of pages fetched so far and the total page count.
	OnProgress func(fetched, total int)
}

// DefaultConfig returns the defaults of the case backend.
func DefaultConfig() Config {
	return Config{
		PageSize:    DefaultPageSize,
		Concurrency: DefaultConcurrency,
	}
}

// PageFetcher fetches one page. pageIndex is 1-based; total is the number of
// records across all pages. *client.Client implements it.
type PageFetcher interface {
	FetchPage(ctx context.Context, endpoint string, payload map[string]any, pageIndex, size int) (records []cases.Record, total int, err error)
}

// BatchFetcher retrieves every page of a list endpoint.
type BatchFetcher struct {
	fetcher PageFetcher
	config  Config
}

// NewBatchFetcher creates a new batch fetcher.
func NewBatchFetcher(fetcher PageFetcher, config Config) *BatchFetcher {
	if config.PageSize <= 0 {
		config.PageSize = DefaultPageSize
	}
	if config.Concurrency <= 0 {
		config.Concurrency = DefaultConcurrency
	}
	return &BatchFetcher{fetcher: fetcher, config: config}
}

// PageCount returns ceil(total / pageSize), and 0 for an empty result.
func PageCount(total, pageSize int) int {
	if total <= 0 || pageSize <= 0 {
		return 0
	}
	return (total + pageSize - 1) / pageSize
}

// Chunks splits pages first..last into consecutive groups of at most size.
func Chunks(first, last, size int) [][]int {
	if size <= 0 {
		size = 1
	}
	var out [][]int
	for start := first; start <= last; start += size {
		end := start + size - 1
		if end > last {
			end = last
		}
		chunk := make([]int, 0, end-start+1)
		for p := start; p <= end; p++ {
			chunk = append(chunk, p)
		}
		out = append(out, chunk)
	}
	return out
}

// FetchAll requests page 1 to learn the total, then the remaining pages in
// chunks of limit concurrent requests. A chunk starts only after the previous
// one has completed. Records are returned in page order.
//
// Any page failure fails the whole fetch and discards what was retrieved.
// Cancellation of ctx yields an error matching client.ErrAborted.
func (bf *BatchFetcher) FetchAll(ctx context.Context, endpoint string, basePayload map[string]any, pageSize, limit int) ([]cases.Record, error) {
	if pageSize <= 0 {
		pageSize = bf.config.PageSize
	}
	if limit <= 0 {
		limit = bf.config.Concurrency
	}

	logger := logging.NewLogger("pagination").With().Str("endpoint", endpoint).Logger()
	start := time.Now()

	first, total, err := bf.fetcher.FetchPage(ctx, endpoint, basePayload, 1, pageSize)
	if err != nil {
		return nil, bf.fail(ctx, endpoint, 1, err)
	}
	pagesFetched.WithLabelValues(endpoint).Inc()

	totalPages := PageCount(total, pageSize)
	bf.progress(1, max(totalPages, 1))

	if totalPages <= 1 {
		fetchDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
		logger.Debug().Int("records", len(first)).Msg("Fetch complete (single page)")
		return first, nil
	}

	logger.Info().
		Int("total_records", total).
		Int("total_pages", totalPages).
		Int("concurrency", limit).
		Msg("Starting chunked page fetch")

	// One slot per page keeps the result in page order regardless of which
	// request inside a chunk finishes first.
	slots := make([][]cases.Record, totalPages+1)
	slots[1] = first
	fetched := 1

	for _, chunk := range Chunks(2, totalPages, limit) {
		if err := ctx.Err(); err != nil {
			return nil, bf.fail(ctx, endpoint, chunk[0], err)
		}

		g, gctx := errgroup.WithContext(ctx)
		for _, page := range chunk {
			page := page
			g.Go(func() error {
				records, _, err := bf.fetcher.FetchPage(gctx, endpoint, basePayload, page, pageSize)
				if err != nil {
					return &pageError{page: page, err: err}
				}
				slots[page] = records
				pagesFetched.WithLabelValues(endpoint).Inc()
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			page := chunk[0]
			if pe, ok := err.(*pageError); ok {
				page, err = pe.page, pe.err
			}
			return nil, bf.fail(ctx, endpoint, page, err)
		}

		fetched += len(chunk)
		bf.progress(fetched, totalPages)
		logger.Debug().Int("fetched", fetched).Int("total", totalPages).Msg("Chunk complete")
	}

	n := 0
	for _, s := range slots {
		n += len(s)
	}
	out := make([]cases.Record, 0, n)
	for _, s := range slots {
		out = append(out, s...)
	}

	fetchDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
	logger.Info().
		Int("pages", totalPages).
		Int("records", len(out)).
		Dur("duration", time.Since(start)).
		Msg("Fetch complete")

	return out, nil
}

type pageError struct {
	page int
	err  error
}

func (e *pageError) Error() string { return fmt.Sprintf("page %d: %v", e.page, e.err) }
func (e *pageError) Unwrap() error { return e.err }

// fail wraps a page failure. When the caller cancelled, the result matches
// client.ErrAborted whatever the failing request reported.
func (bf *BatchFetcher) fail(ctx context.Context, endpoint string, page int, err error) error {
	logger := logging.NewLogger("pagination")
	if ctx.Err() != nil || client.IsAborted(err) {
		fetchesAborted.WithLabelValues(endpoint).Inc()
		logger.Info().Str("endpoint", endpoint).Int("page", page).Msg("Fetch aborted")
		return fmt.Errorf("fetch %s: %w: %v", endpoint, client.ErrAborted, err)
	}
	logger.Warn().Err(err).Str("endpoint", endpoint).Int("page", page).Msg("Page fetch failed, discarding partial results")
	return fmt.Errorf("fetch %s page %d: %w", endpoint, page, err)
}

func (bf *BatchFetcher) progress(fetched, total int) {
	if bf.config.OnProgress != nil {
		bf.config.OnProgress(fetched, total)
	}
}
