package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/Sternrassler/casedesk-client/pkg/cache"
	"github.com/Sternrassler/casedesk-client/pkg/client"
	"github.com/Sternrassler/casedesk-client/pkg/config"
	"github.com/Sternrassler/casedesk-client/pkg/coordinator"
	"github.com/Sternrassler/casedesk-client/pkg/logging"
	"github.com/Sternrassler/casedesk-client/pkg/pagination"
	"github.com/Sternrassler/casedesk-client/pkg/token"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

// globalOptions are the persistent flags of every command.
type globalOptions struct {
	envFiles []string
	logLevel string
}

func newRootCmd() *cobra.Command {
	opts := &globalOptions{}

	cmd := &cobra.Command{
		Use:           "casedesk",
		Short:         "List, export and assign insurance cases",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringSliceVar(&opts.envFiles, "env-file", nil, "Env files to load (default .env, .env.local)")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "Override LOG_LEVEL")

	cmd.AddCommand(newListCmd(opts))
	cmd.AddCommand(newAssignCmd(opts))
	cmd.AddCommand(newTokenCmd(opts))
	cmd.AddCommand(newCacheCmd(opts))
	cmd.AddCommand(newRunCmd(opts))
	cmd.AddCommand(newServeCmd(opts))
	return cmd
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
}

// app holds the wired components shared by the commands.
type app struct {
	cfg    *config.Configuration
	logger zerolog.Logger

	redis   *redis.Client
	shared  *cache.RedisStore
	tokens  token.Store
	client  *client.Client
	fetcher *pagination.BatchFetcher
	coord   *coordinator.Coordinator
}

// appOption adjusts the fetcher configuration before it is wired.
type appOption func(*pagination.Config)

// withProgress reports page progress of every multi-page fetch.
func withProgress(fn func(fetched, total int)) appOption {
	return func(pc *pagination.Config) {
		pc.OnProgress = fn
	}
}

func loadConfig(opts *globalOptions) (*config.Configuration, error) {
	cfg, err := config.Load(opts.envFiles...)
	if err != nil {
		return nil, err
	}
	if opts.logLevel != "" {
		cfg.LogLevel = opts.logLevel
	}
	return cfg, nil
}

// newApp loads configuration and wires the token store, backend client,
// batch fetcher and coordinator. Redis backs the token store and the shared
// cache layer when configured.
func newApp(ctx context.Context, opts *globalOptions, extra ...appOption) (*app, error) {
	cfg, err := loadConfig(opts)
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg}
	a.logger = logging.Setup(cfg.Logging()).With().Str("component", "casedesk").Logger()

	if cfg.RedisEnabled() {
		ropts, err := cfg.RedisOptions()
		if err != nil {
			return nil, err
		}
		a.redis = redis.NewClient(ropts)
		if err := a.redis.Ping(ctx).Err(); err != nil {
			a.redis.Close()
			return nil, fmt.Errorf("connect to redis at %s: %w", ropts.Addr, err)
		}
		a.logger.Debug().Str("addr", ropts.Addr).Msg("Connected to Redis")
		a.shared = cache.NewRedisStore(a.redis, cfg.CacheTTL)
		a.tokens = token.NewRedisStore(a.redis, logging.NewLogger("token"))
	} else {
		path, err := cfg.TokenPath()
		if err != nil {
			return nil, err
		}
		a.tokens = token.NewFileStore(path)
	}

	a.client, err = client.New(cfg.ClientConfig(token.NewSource(a.tokens)))
	if err != nil {
		a.Close()
		return nil, err
	}

	pc := pagination.Config{PageSize: cfg.PageSize, Concurrency: cfg.Concurrency}
	for _, o := range extra {
		o(&pc)
	}
	a.fetcher = pagination.NewBatchFetcher(a.client, pc)

	ccfg := coordinator.Config{
		PageSize:    cfg.PageSize,
		Concurrency: cfg.Concurrency,
		TTL:         cfg.CacheTTL,
		Capacity:    cfg.CacheSize,
	}
	if a.shared != nil {
		ccfg.Shared = a.shared
	}
	a.coord = coordinator.New(a.fetcher, ccfg)

	a.logger.Debug().
		Str("environment", cfg.Environment.Name).
		Str("base_url", cfg.APIBaseURL()).
		Bool("redis", a.redis != nil).
		Msg("Application wired")
	return a, nil
}

// Close releases the Redis connection.
func (a *app) Close() {
	if a.redis != nil {
		a.redis.Close()
	}
}

// commandContext bounds one-shot commands.
func commandContext(parent context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(parent)
	}
	return context.WithTimeout(parent, timeout)
}
