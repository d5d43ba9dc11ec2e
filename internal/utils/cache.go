package utils

import (
	"context"
	"encoding/json"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Cache stores JSON-encoded values with a TTL. Misses and backend failures
// both read as "not cached"; callers always fall back to the database.
type Cache interface {
	Get(ctx context.Context, key string, dst interface{}) bool
	Set(ctx context.Context, key string, data interface{}, ttl time.Duration)
	Delete(ctx context.Context, key string)
}

// cacheItem wraps the encoded data and its expiry time
type cacheItem struct {
	Data      []byte
	ExpiresAt time.Time
}

// LRUCache is the in-process cache used when no Redis is configured.
type LRUCache struct {
	lruCache *lru.Cache[string, cacheItem]
	now      func() time.Time
}

func NewLRUCache(size int) (*LRUCache, error) {
	l, err := lru.New[string, cacheItem](size)
	if err != nil {
		return nil, err
	}
	return &LRUCache{lruCache: l, now: time.Now}, nil
}

func (c *LRUCache) Set(ctx context.Context, key string, data interface{}, ttl time.Duration) {
	encoded, err := json.Marshal(data)
	if err != nil {
		return
	}
	c.lruCache.Add(key, cacheItem{
		Data:      encoded,
		ExpiresAt: c.now().Add(ttl),
	})
}

func (c *LRUCache) Get(ctx context.Context, key string, dst interface{}) bool {
	val, ok := c.lruCache.Get(key)
	if !ok {
		return false
	}

	if c.now().After(val.ExpiresAt) {
		c.lruCache.Remove(key)
		return false
	}

	return json.Unmarshal(val.Data, dst) == nil
}

func (c *LRUCache) Delete(ctx context.Context, key string) {
	c.lruCache.Remove(key)
}

// RedisCache shares cached threads across instances.
type RedisCache struct {
	client *redis.Client
	prefix string
	log    zerolog.Logger
}

func NewRedisCache(client *redis.Client, log zerolog.Logger) *RedisCache {
	return &RedisCache{
		client: client,
		prefix: "pathway:",
		log:    log.With().Str("component", "cache").Logger(),
	}
}

func (c *RedisCache) Set(ctx context.Context, key string, data interface{}, ttl time.Duration) {
	encoded, err := json.Marshal(data)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, c.prefix+key, encoded, ttl).Err(); err != nil {
		c.log.Warn().Err(err).Str("key", key).Msg("cache set failed")
	}
}

func (c *RedisCache) Get(ctx context.Context, key string, dst interface{}) bool {
	encoded, err := c.client.Get(ctx, c.prefix+key).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.log.Warn().Err(err).Str("key", key).Msg("cache get failed")
		}
		return false
	}
	return json.Unmarshal(encoded, dst) == nil
}

func (c *RedisCache) Delete(ctx context.Context, key string) {
	if err := c.client.Del(ctx, c.prefix+key).Err(); err != nil {
		c.log.Warn().Err(err).Str("key", key).Msg("cache delete failed")
	}
}

// NopCache never stores anything.
type NopCache struct{}

func (NopCache) Get(ctx context.Context, key string, dst interface{}) bool { return false }
func (NopCache) Set(ctx context.Context, key string, data interface{}, ttl time.Duration) {}
func (NopCache) Delete(ctx context.Context, key string)                                  {}
