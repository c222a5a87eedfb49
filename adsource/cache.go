package adsource

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/blake2b"

	"github.com/wudi/pdfstamp/observability"
)

// KeyPrefix namespaces cached responses.
const KeyPrefix = "pdfstamp:ads:"

// Store is the part of a Redis client the cache needs. *redis.Client
// satisfies it.
type Store interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
}

// RedisCache keeps ad responses in Redis for TTL. Cache failures are logged
// and fall through to the wrapped source.
type RedisCache struct {
	next   Source
	store  Store
	ttl    time.Duration
	logger observability.Logger
}

func NewRedisCache(next Source, store Store, ttl time.Duration, logger observability.Logger) *RedisCache {
	if logger == nil {
		logger = observability.NopLogger{}
	}
	return &RedisCache{next: next, store: store, ttl: ttl, logger: logger}
}

// NewRedisClient connects to a single Redis node.
func NewRedisClient(addr, password string, db int) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
}

// CacheKey is the Redis key for url.
func CacheKey(url string) string {
	sum := blake2b.Sum256([]byte(url))
	return KeyPrefix + hex.EncodeToString(sum[:])
}

func (c *RedisCache) Fetch(ctx context.Context, url string) (*Response, error) {
	key := CacheKey(url)
	val, err := c.store.Get(ctx, key).Result()
	switch {
	case err == nil:
		var resp Response
		if jerr := json.Unmarshal([]byte(val), &resp); jerr == nil {
			return &resp, nil
		}
		c.logger.Warn("discarding unreadable cached ads", observability.String("key", key))
	case !errors.Is(err, redis.Nil):
		c.logger.Warn("ad cache read failed", observability.String("key", key), observability.Error("error", err))
	}

	resp, err := c.next.Fetch(ctx, url)
	if err != nil {
		return nil, err
	}
	data, err := json.Marshal(resp)
	if err != nil {
		return resp, nil
	}
	if err := c.store.Set(ctx, key, data, c.ttl).Err(); err != nil {
		c.logger.Warn("ad cache write failed", observability.String("key", key), observability.Error("error", err))
	}
	return resp, nil
}
