// Package coordinator serves case lists through a two-layer cache and
// collapses concurrent identical requests into one multi-page fetch.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Sternrassler/casedesk-client/pkg/cache"
	"github.com/Sternrassler/casedesk-client/pkg/cases"
	"github.com/Sternrassler/casedesk-client/pkg/client"
	"github.com/Sternrassler/casedesk-client/pkg/logging"
	"github.com/Sternrassler/casedesk-client/pkg/pagination"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

var (
	inFlightFetches = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "casedesk_inflight_fetches",
		Help: "Distinct multi-page fetches currently running",
	})

	dedupJoinsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "casedesk_dedup_joins_total",
		Help: "Requests served by joining an identical in-flight fetch",
	})
)

// Fetcher retrieves all pages of a list. *pagination.BatchFetcher implements it.
type Fetcher interface {
	FetchAll(ctx context.Context, endpoint string, basePayload map[string]any, pageSize, limit int) ([]cases.Record, error)
}

// SharedCache is the optional second layer. *cache.RedisStore implements it.
type SharedCache interface {
	Get(ctx context.Context, fingerprint string) (*cache.Entry, error)
	Set(ctx context.Context, entry *cache.Entry) error
	Clear(ctx context.Context) (int, error)
}

// Config holds coordinator configuration.
type Config struct {
	PageSize    int
	Concurrency int

	// TTL and Capacity size the in-memory layer.
	TTL      time.Duration
	Capacity int

	// Shared is consulted on an in-memory miss. Its failures are logged and
	// treated as misses.
	Shared SharedCache

	// Now overrides the clock of the in-memory layer (tests).
	Now func() time.Time
}

// DefaultConfig returns the defaults of the case window.
func DefaultConfig() Config {
	return Config{
		PageSize:    pagination.DefaultPageSize,
		Concurrency: pagination.DefaultConcurrency,
		TTL:         cache.DefaultTTL,
		Capacity:    cache.DefaultCapacity,
	}
}

// Coordinator is safe for concurrent use.
type Coordinator struct {
	fetcher Fetcher
	config  Config
	memory  *cache.ExpiringCache[[]cases.Record]
	group   singleflight.Group
	logger  zerolog.Logger

	mu      sync.Mutex
	flights map[string]*flight

	inFlight   atomic.Int64
	generation atomic.Uint64
}

// flight is the context of one shared fetch. It is cancelled when the last
// waiting caller leaves.
type flight struct {
	ctx     context.Context
	cancel  context.CancelFunc
	waiters int
}

// New creates a coordinator around fetcher.
func New(fetcher Fetcher, cfg Config) *Coordinator {
	if cfg.PageSize <= 0 {
		cfg.PageSize = pagination.DefaultPageSize
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = pagination.DefaultConcurrency
	}
	var opts []cache.Option
	if cfg.Now != nil {
		opts = append(opts, cache.WithClock(cfg.Now))
	}

	return &Coordinator{
		fetcher: fetcher,
		config:  cfg,
		memory:  cache.NewExpiringCache[[]cases.Record](cfg.Capacity, cfg.TTL, opts...),
		logger:  logging.NewLogger("coordinator"),
		flights: make(map[string]*flight),
	}
}

// FetchWithCache returns every record of endpoint for payload. A cached
// result is returned without a network call. While a fetch for the same
// endpoint and payload runs, further callers wait for its result instead of
// starting their own. A request made after ClearCache never joins a fetch
// started before it. label names the request in logs.
//
// A caller whose ctx is cancelled gets an error matching client.ErrAborted.
// The shared fetch is detached from the callers and stops only when every
// waiting caller has left.
func (c *Coordinator) FetchWithCache(ctx context.Context, endpoint string, payload map[string]any, label string) ([]cases.Record, error) {
	fp := cache.Fingerprint(endpoint, payload)
	logger := c.logger.With().Str("label", label).Str("endpoint", endpoint).Logger()

	if records, ok := c.memory.Get(fp); ok {
		logger.Debug().Int("records", len(records)).Msg("Served from cache")
		return slices.Clone(records), nil
	}

	records, err := c.join(ctx, fp, endpoint, payload, label, logger)
	// A joined fetch may have been stopped after its last waiter left while
	// this caller was arriving. A live caller starts its own.
	if client.IsAborted(err) && ctx.Err() == nil {
		logger.Debug().Msg("Joined fetch was stopped, fetching again")
		records, err = c.join(ctx, fp, endpoint, payload, label, logger)
	}
	return records, err
}

func (c *Coordinator) join(ctx context.Context, fp, endpoint string, payload map[string]any, label string, logger zerolog.Logger) ([]cases.Record, error) {
	gen := c.generation.Load()
	key := fp + "#" + strconv.FormatUint(gen, 10)

	f := c.enter(ctx, key)
	defer c.leave(key, f)

	ch := c.group.DoChan(key, func() (any, error) {
		return c.load(f.ctx, gen, fp, endpoint, payload, logger)
	})

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w: %v", label, client.ErrAborted, ctx.Err())
	case res := <-ch:
		if res.Shared {
			dedupJoinsTotal.Inc()
		}
		if res.Err != nil {
			return nil, res.Err
		}
		return slices.Clone(res.Val.([]cases.Record)), nil
	}
}

// enter registers a waiter for key, creating the flight context when no live
// one exists.
func (c *Coordinator) enter(ctx context.Context, key string) *flight {
	c.mu.Lock()
	defer c.mu.Unlock()

	f, ok := c.flights[key]
	if !ok || f.ctx.Err() != nil {
		fctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
		f = &flight{ctx: fctx, cancel: cancel}
		c.flights[key] = f
	}
	f.waiters++
	return f
}

// leave drops a waiter and stops the flight when none remain.
func (c *Coordinator) leave(key string, f *flight) {
	c.mu.Lock()
	defer c.mu.Unlock()

	f.waiters--
	if f.waiters > 0 {
		return
	}
	f.cancel()
	if c.flights[key] == f {
		delete(c.flights, key)
	}
}

// load runs once per fingerprint and cache generation at a time.
func (c *Coordinator) load(ctx context.Context, gen uint64, fp, endpoint string, payload map[string]any, logger zerolog.Logger) ([]cases.Record, error) {
	c.inFlight.Add(1)
	inFlightFetches.Inc()
	defer func() {
		c.inFlight.Add(-1)
		inFlightFetches.Dec()
	}()

	// A concurrent leader may have filled the cache between our miss and now.
	if records, ok := c.memory.Peek(fp); ok {
		return records, nil
	}

	if c.config.Shared != nil {
		entry, err := c.config.Shared.Get(ctx, fp)
		switch {
		case err == nil:
			c.memory.Set(fp, entry.Records)
			logger.Debug().Int("records", len(entry.Records)).Msg("Served from shared cache")
			return entry.Records, nil
		case !errors.Is(err, cache.ErrCacheMiss):
			logger.Warn().Err(err).Msg("Shared cache read failed")
		}
	}

	logger.Info().Msg("Fetching case list")
	records, err := c.fetcher.FetchAll(ctx, endpoint, payload, c.config.PageSize, c.config.Concurrency)
	if err != nil {
		if client.IsAborted(err) {
			logger.Info().Msg("Fetch aborted")
		} else {
			logger.Error().Err(err).Msg("Fetch failed")
		}
		return nil, err
	}

	if c.generation.Load() != gen {
		logger.Debug().Msg("Cache cleared during fetch, result not stored")
		return records, nil
	}

	c.memory.Set(fp, records)
	if c.config.Shared != nil {
		entry := &cache.Entry{Key: fp, Records: records, InsertedAt: time.Now()}
		if err := c.config.Shared.Set(ctx, entry); err != nil {
			logger.Warn().Err(err).Msg("Shared cache write failed")
		}
	}

	logger.Info().Int("records", len(records)).Msg("Case list fetched")
	return records, nil
}

// InFlight returns the number of distinct fetches currently running.
func (c *Coordinator) InFlight() int {
	return int(c.inFlight.Load())
}

// Cached reports whether a live result for endpoint and payload is cached in
// memory.
func (c *Coordinator) Cached(endpoint string, payload map[string]any) bool {
	_, ok := c.memory.Peek(cache.Fingerprint(endpoint, payload))
	return ok
}

// ClearCache drops every cached result in both layers. Fetches running at
// the time of the call do not store their results.
func (c *Coordinator) ClearCache(ctx context.Context) error {
	c.generation.Add(1)
	c.memory.Clear()

	if c.config.Shared == nil {
		c.logger.Info().Msg("Cache cleared")
		return nil
	}
	n, err := c.config.Shared.Clear(ctx)
	if err != nil {
		return fmt.Errorf("clear shared cache: %w", err)
	}
	c.logger.Info().Int("shared_entries", n).Msg("Cache cleared")
	return nil
}
