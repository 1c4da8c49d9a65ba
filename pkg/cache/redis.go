package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisKeyPrefix namespaces result sets in Redis.
const RedisKeyPrefix = "casedesk:cache:"

var (
	// ErrCacheMiss indicates the requested key was not found in cache
	ErrCacheMiss = errors.New("cache miss")

	// ErrInvalidEntry indicates the cache entry is invalid or corrupted
	ErrInvalidEntry = errors.New("invalid cache entry")
)

// RedisStore is the optional shared second cache layer. Entries carry the
// same TTL as the in-memory layer and are dropped by Redis on expiry.
type RedisStore struct {
	redis *redis.Client
	ttl   time.Duration
	now   func() time.Time
}

// NewRedisStore creates a Redis-backed store.
func NewRedisStore(redisClient *redis.Client, ttl time.Duration) *RedisStore {
	if redisClient == nil {
		panic("redis client cannot be nil")
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisStore{
		redis: redisClient,
		ttl:   ttl,
		now:   time.Now,
	}
}

func redisKey(fingerprint string) string {
	return RedisKeyPrefix + fingerprint
}

// Get retrieves an entry by fingerprint.
// Returns ErrCacheMiss if the key doesn't exist or the entry is stale.
func (s *RedisStore) Get(ctx context.Context, fingerprint string) (*Entry, error) {
	data, err := s.redis.Get(ctx, redisKey(fingerprint)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			CacheMisses.WithLabelValues(LayerRedis).Inc()
			return nil, ErrCacheMiss
		}
		CacheErrors.WithLabelValues("get").Inc()
		return nil, fmt.Errorf("redis get: %w", err)
	}

	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		CacheErrors.WithLabelValues("get").Inc()
		return nil, fmt.Errorf("%w: %v", ErrInvalidEntry, err)
	}

	// Redis expiry is second-granular; re-check against our own clock.
	if entry.IsExpired(s.now(), s.ttl) {
		_ = s.Delete(ctx, fingerprint)
		CacheEvictions.WithLabelValues(ReasonExpired).Inc()
		CacheMisses.WithLabelValues(LayerRedis).Inc()
		return nil, ErrCacheMiss
	}

	CacheHits.WithLabelValues(LayerRedis).Inc()
	return &entry, nil
}

// Set stores an entry with the remaining TTL computed from InsertedAt.
func (s *RedisStore) Set(ctx context.Context, entry *Entry) error {
	if entry == nil {
		return fmt.Errorf("cache entry cannot be nil")
	}
	if entry.Key == "" {
		return fmt.Errorf("cache entry key cannot be empty")
	}
	if entry.InsertedAt.IsZero() {
		entry.InsertedAt = s.now()
	}

	ttl := entry.Remaining(s.now(), s.ttl)
	if ttl <= 0 {
		// Already stale, don't cache
		return nil
	}

	data, err := json.Marshal(entry)
	if err != nil {
		CacheErrors.WithLabelValues("set").Inc()
		return fmt.Errorf("marshal cache entry: %w", err)
	}

	if err := s.redis.Set(ctx, redisKey(entry.Key), data, ttl).Err(); err != nil {
		CacheErrors.WithLabelValues("set").Inc()
		return fmt.Errorf("redis set: %w", err)
	}

	return nil
}

// Delete removes an entry.
func (s *RedisStore) Delete(ctx context.Context, fingerprint string) error {
	if err := s.redis.Del(ctx, redisKey(fingerprint)).Err(); err != nil {
		CacheErrors.WithLabelValues("delete").Inc()
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

// Clear removes every entry under RedisKeyPrefix and returns how many were deleted.
func (s *RedisStore) Clear(ctx context.Context) (int, error) {
	var keys []string
	iter := s.redis.Scan(ctx, 0, RedisKeyPrefix+"*", 200).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		CacheErrors.WithLabelValues("clear").Inc()
		return 0, fmt.Errorf("redis scan: %w", err)
	}

	deleted := 0
	for start := 0; start < len(keys); start += 500 {
		end := min(start+500, len(keys))
		n, err := s.redis.Del(ctx, keys[start:end]...).Result()
		if err != nil {
			CacheErrors.WithLabelValues("clear").Inc()
			return deleted, fmt.Errorf("redis del: %w", err)
		}
		deleted += int(n)
	}

	return deleted, nil
}
