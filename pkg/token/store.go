package token

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

var (
	tokenSavesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "casedesk_token_saves_total",
		Help: "Total number of SSO tokens saved",
	})

	tokenInvalidationsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "casedesk_token_invalidations_total",
		Help: "Total number of SSO tokens rejected by the backend",
	})
)

// Store persists a single SSO token.
type Store interface {
	// Load returns ErrNoToken when nothing is stored.
	Load(ctx context.Context) (*Token, error)
	Save(ctx context.Context, t Token) error
	Clear(ctx context.Context) error
}

// MarkInvalid flags the stored token as rejected.
func MarkInvalid(ctx context.Context, s Store) error {
	t, err := s.Load(ctx)
	if errors.Is(err, ErrNoToken) {
		return nil
	}
	if err != nil {
		return err
	}
	if t.Invalid {
		return nil
	}
	t.Invalid = true
	tokenInvalidationsTotal.Inc()
	return s.Save(ctx, *t)
}

// MemoryStore keeps the token in process memory.
type MemoryStore struct {
	mu    sync.RWMutex
	token *Token
}

// NewMemoryStore creates an empty memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Load implements Store.
func (m *MemoryStore) Load(context.Context) (*Token, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.token == nil {
		return nil, ErrNoToken
	}
	t := *m.token
	return &t, nil
}

// Save implements Store.
func (m *MemoryStore) Save(_ context.Context, t Token) error {
	if t.Value == "" {
		return fmt.Errorf("save token: %w", ErrNoToken)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.token = &t
	tokenSavesTotal.Inc()
	return nil
}

// Clear implements Store.
func (m *MemoryStore) Clear(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.token = nil
	return nil
}

// FileStore keeps the token as JSON in a file readable only by the owner.
type FileStore struct {
	path string
	mu   sync.Mutex
}

// NewFileStore creates a store at path. The file is created on first Save.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// DefaultPath returns the token file below the user config directory.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("resolve config dir: %w", err)
	}
	return filepath.Join(dir, "casedesk", "token.json"), nil
}

// Path returns the file location.
func (f *FileStore) Path() string {
	return f.path
}

// Load implements Store.
func (f *FileStore) Load(context.Context) (*Token, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNoToken
	}
	if err != nil {
		return nil, fmt.Errorf("read token file: %w", err)
	}

	var t Token
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("parse token file: %w", err)
	}
	if t.Value == "" {
		return nil, ErrNoToken
	}
	return &t, nil
}

// Save implements Store.
func (f *FileStore) Save(_ context.Context, t Token) error {
	if t.Value == "" {
		return fmt.Errorf("save token: %w", ErrNoToken)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := json.MarshalIndent(t, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal token: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(f.path), 0o700); err != nil {
		return fmt.Errorf("create token dir: %w", err)
	}

	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write token file: %w", err)
	}
	if err := os.Rename(tmp, f.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("replace token file: %w", err)
	}
	tokenSavesTotal.Inc()
	return nil
}

// Clear implements Store.
func (f *FileStore) Clear(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := os.Remove(f.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove token file: %w", err)
	}
	return nil
}

// RedisStore shares the token between processes via Redis.
type RedisStore struct {
	redis  *redis.Client
	logger zerolog.Logger
}

// NewRedisStore creates a Redis-backed store.
func NewRedisStore(redisClient *redis.Client, logger zerolog.Logger) *RedisStore {
	return &RedisStore{redis: redisClient, logger: logger}
}

// Load implements Store.
func (r *RedisStore) Load(ctx context.Context) (*Token, error) {
	data, err := r.redis.Get(ctx, RedisKeyToken).Bytes()
	if err == redis.Nil {
		r.logger.Debug().Msg("No SSO token in Redis")
		return nil, ErrNoToken
	}
	if err != nil {
		return nil, fmt.Errorf("get token: %w", err)
	}

	var t Token
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}
	return &t, nil
}

// Save implements Store. The key has no expiry; the backend decides when a
// token is no longer accepted.
func (r *RedisStore) Save(ctx context.Context, t Token) error {
	if t.Value == "" {
		return fmt.Errorf("save token: %w", ErrNoToken)
	}
	data, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("marshal token: %w", err)
	}
	if err := r.redis.Set(ctx, RedisKeyToken, data, 0).Err(); err != nil {
		return fmt.Errorf("set token: %w", err)
	}
	tokenSavesTotal.Inc()
	r.logger.Debug().Bool("invalid", t.Invalid).Msg("Stored SSO token in Redis")
	return nil
}

// Clear implements Store.
func (r *RedisStore) Clear(ctx context.Context) error {
	if err := r.redis.Del(ctx, RedisKeyToken).Err(); err != nil {
		return fmt.Errorf("delete token: %w", err)
	}
	return nil
}
