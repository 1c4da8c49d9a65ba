// Package config loads the casedesk configuration from .env files and the
// process environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/Sternrassler/casedesk-client/pkg/client"
	"github.com/Sternrassler/casedesk-client/pkg/logging"
	"github.com/Sternrassler/casedesk-client/pkg/token"
	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
)

// DefaultEnvFiles are read in order when present. Variables already set in
// the environment win over file values.
var DefaultEnvFiles = []string{".env", ".env.local"}

// Configuration is the complete runtime configuration.
type Configuration struct {
	// Host is the hostname of the case web application. It selects the
	// API gateway unless BaseURL is set.
	Host    string `env:"CASEDESK_HOST"`
	BaseURL string `env:"CASEDESK_BASE_URL" validate:"omitempty,url"`

	UserAgent      string        `env:"CASEDESK_USER_AGENT" envDefault:"casedesk-client/1.0"`
	RequestTimeout time.Duration `env:"CASEDESK_REQUEST_TIMEOUT" envDefault:"30s" validate:"gt=0"`

	PageSize    int `env:"CASEDESK_PAGE_SIZE" envDefault:"50" validate:"min=1,max=500"`
	Concurrency int `env:"CASEDESK_CONCURRENCY" envDefault:"5" validate:"min=1,max=32"`

	CacheTTL  time.Duration `env:"CASEDESK_CACHE_TTL" envDefault:"5m" validate:"gt=0"`
	CacheSize int           `env:"CASEDESK_CACHE_SIZE" envDefault:"50" validate:"min=1"`

	// RedisURL enables the shared cache layer and the shared token store.
	// Both "redis://host:port/db" and "host:port" are accepted.
	RedisURL  string `env:"CASEDESK_REDIS_URL"`
	TokenFile string `env:"CASEDESK_TOKEN_FILE"`

	LogLevel  string `env:"LOG_LEVEL" envDefault:"info" validate:"oneof=debug info warn warning error disabled off none"`
	LogPretty bool   `env:"LOG_PRETTY" envDefault:"false"`

	Port int `env:"PORT" envDefault:"8080" validate:"min=1,max=65535"`

	// Environment is resolved after parsing.
	Environment client.Environment `env:"-"`
}

// LoadEnv loads the env files that exist and returns how many were read.
func LoadEnv(envFiles []string) (int, error) {
	existing := make([]string, 0, len(envFiles))
	for _, file := range envFiles {
		if _, err := os.Stat(file); err == nil {
			existing = append(existing, file)
		}
	}
	if len(existing) == 0 {
		return 0, nil
	}
	return len(existing), godotenv.Load(existing...)
}

// Load reads envFiles (DefaultEnvFiles when none are given) and then the
// process environment.
func Load(envFiles ...string) (*Configuration, error) {
	if len(envFiles) == 0 {
		envFiles = DefaultEnvFiles
	}
	if _, err := LoadEnv(envFiles); err != nil {
		return nil, fmt.Errorf("load env files: %w", err)
	}
	return parse(env.Options{})
}

// FromMap builds a configuration from explicit variables only.
func FromMap(vars map[string]string) (*Configuration, error) {
	return parse(env.Options{Environment: vars})
}

func parse(opts env.Options) (*Configuration, error) {
	c := &Configuration{}
	if err := env.ParseWithOptions(c, opts); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	c.LogLevel = strings.ToLower(strings.TrimSpace(c.LogLevel))
	if err := c.Validate(); err != nil {
		return nil, err
	}
	c.resolve()
	return c, nil
}

// Validate checks value ranges.
func (c *Configuration) Validate() error {
	v := validator.New(validator.WithRequiredStructEnabled())
	err := v.Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return fmt.Errorf("invalid configuration: %s=%v fails %q", fe.Field(), fe.Value(), fe.Tag())
	}
	return fmt.Errorf("invalid configuration: %w", err)
}

func (c *Configuration) resolve() {
	if c.BaseURL != "" {
		c.Environment = client.Environment{Name: "custom", BaseURL: strings.TrimRight(c.BaseURL, "/")}
		return
	}
	c.Environment = client.ResolveEnvironment(c.Host)
}

// APIBaseURL returns the gateway the client talks to.
func (c *Configuration) APIBaseURL() string {
	return c.Environment.BaseURL
}

// Logging returns the logger configuration.
func (c *Configuration) Logging() logging.Config {
	cfg := logging.DefaultConfig()
	cfg.Level = logging.LogLevel(c.LogLevel)
	cfg.Pretty = c.LogPretty
	return cfg
}

// RedisEnabled reports whether a Redis URL is configured.
func (c *Configuration) RedisEnabled() bool {
	return strings.TrimSpace(c.RedisURL) != ""
}

// RedisOptions converts RedisURL into client options.
func (c *Configuration) RedisOptions() (*redis.Options, error) {
	raw := strings.TrimSpace(c.RedisURL)
	if raw == "" {
		return nil, errors.New("no redis URL configured")
	}
	if !strings.Contains(raw, "://") {
		return &redis.Options{Addr: raw}, nil
	}
	opts, err := redis.ParseURL(raw)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}
	return opts, nil
}

// TokenPath returns the token file location.
func (c *Configuration) TokenPath() (string, error) {
	if c.TokenFile != "" {
		return c.TokenFile, nil
	}
	return token.DefaultPath()
}

// ClientConfig returns the backend client configuration.
func (c *Configuration) ClientConfig(tokens client.TokenSource) client.Config {
	cfg := client.DefaultConfig(c.APIBaseURL(), tokens)
	cfg.UserAgent = c.UserAgent
	cfg.Timeout = c.RequestTimeout
	return cfg
}
